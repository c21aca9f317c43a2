package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
	"time"

	// Packages
	schema "github.com/FileZen/filezen/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Signer creates and verifies signed URLs for the storage API. The API key
// is the base64 encoding of "accessKey,secret".
type Signer struct {
	accessKey string
	secret    []byte
	apiUrl    string
	now       func() time.Time
}

// Opt is a functional option for the signer
type Opt func(*Signer) error

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

// Separator between the file key and the expiry in the string to sign. The
// service expects these two literal characters.
const separator = "/n"

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New returns a signer for an API key and the API base URL
func New(apiKey, apiUrl string, opts ...Opt) (*Signer, error) {
	self := &Signer{now: time.Now}

	// Decode the API key
	if accessKey, secret, err := DecodeApiKey(apiKey); err != nil {
		return nil, err
	} else {
		self.accessKey, self.secret = accessKey, []byte(secret)
	}

	// Check the API URL
	if apiUrl == "" {
		apiUrl = schema.DefaultApiUrl
	}
	if u, err := url.Parse(apiUrl); err != nil || u.Host == "" {
		return nil, schema.ErrValidation.Withf("invalid api url %q", apiUrl)
	}
	self.apiUrl = strings.TrimSuffix(apiUrl, "/")

	// Apply options
	for _, fn := range opts {
		if err := fn(self); err != nil {
			return nil, err
		}
	}

	// Return success
	return self, nil
}

// WithClock sets the clock used to calculate expiry
func WithClock(fn func() time.Time) Opt {
	return func(s *Signer) error {
		s.now = fn
		return nil
	}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// EncodeApiKey returns the API key for an access key and secret
func EncodeApiKey(accessKey, secret string) string {
	return base64.StdEncoding.EncodeToString([]byte(accessKey + "," + secret))
}

// DecodeApiKey returns the access key and secret from an API key
func DecodeApiKey(apiKey string) (string, string, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(apiKey))
	if err != nil {
		return "", "", schema.ErrValidation.Withf("invalid api key: %v", err)
	}
	accessKey, secret, ok := strings.Cut(string(data), ",")
	if !ok || accessKey == "" || secret == "" {
		return "", "", schema.ErrValidation.With("invalid api key: expected accessKey,secret")
	}
	return accessKey, secret, nil
}

// AccessKey returns the public part of the API key
func (s *Signer) AccessKey() string {
	return s.accessKey
}

// Sign returns a URL for the path, valid for req.ExpiresIn seconds
func (s *Signer) Sign(req schema.SignRequest) (string, error) {
	if req.FileKey == "" {
		return "", schema.ErrValidation.With("missing file key")
	}
	expiresIn := req.ExpiresIn
	if expiresIn == 0 {
		expiresIn = schema.DefaultExpiresIn
	} else if expiresIn < 0 {
		return "", schema.ErrValidation.Withf("invalid expiresIn %d", expiresIn)
	}
	expires := s.now().Unix() + int64(expiresIn)

	// Build the URL
	query := url.Values{}
	query.Set(schema.SignatureParam, s.signature(req.FileKey, expires))
	query.Set(schema.AccessKeyParam, s.accessKey)
	query.Set(schema.ExpiresParam, strconv.FormatInt(expires, 10))
	return s.apiUrl + "/" + strings.TrimPrefix(req.Path, "/") + "?" + query.Encode(), nil
}

// Verify checks the signature, access key and expiry in a query against
// the file key
func (s *Signer) Verify(fileKey string, query url.Values) error {
	if query.Get(schema.AccessKeyParam) != s.accessKey {
		return schema.ErrUnauthorized.With("access key mismatch")
	}
	expires, err := strconv.ParseInt(query.Get(schema.ExpiresParam), 10, 64)
	if err != nil {
		return schema.ErrUnauthorized.With("invalid expiry")
	} else if s.now().Unix() > expires {
		return schema.ErrUnauthorized.With("signature expired")
	}
	expected := s.signature(fileKey, expires)
	if !hmac.Equal([]byte(expected), []byte(query.Get(schema.SignatureParam))) {
		return schema.ErrUnauthorized.With("signature mismatch")
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (s *Signer) signature(fileKey string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(fileKey + separator + strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
