package httphandler

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	// Packages
	schema "github.com/FileZen/filezen/pkg/schema"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// authorize checks the ApiKey header, the bearer token or, when fileKey is
// not empty, a signed query for fileKey
func (a *api) authorize(r *http.Request, fileKey string) error {
	if len(a.apiKeys) == 0 && a.signer == nil {
		return nil
	}

	// Key-based authentication
	token := r.Header.Get(schema.ApiKeyHeader)
	if token == "" {
		if bearer, ok := strings.CutPrefix(r.Header.Get(schema.AuthorizationHeader), "Bearer "); ok {
			token = strings.TrimSpace(bearer)
		}
	}
	if token != "" {
		for _, key := range a.apiKeys {
			if subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1 {
				return nil
			}
		}
		return schema.ErrUnauthorized.With("invalid api key")
	}

	// Signed request
	if a.signer != nil && fileKey != "" && r.URL.Query().Has(schema.SignatureParam) {
		return a.signer.Verify(fileKey, r.URL.Query())
	}

	return schema.ErrUnauthorized.With("missing credentials")
}

// withUrl returns a copy of the file with its content URL set
func (a *api) withUrl(r *http.Request, file *schema.File) *schema.File {
	if file == nil {
		return nil
	}
	base := a.baseUrl
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	result := *file
	result.Url = fmt.Sprintf("%s/files/%s/content", base, file.Id)
	return &result
}

// httpErr converts an error kind to an HTTP error
func httpErr(err error) error {
	if kind := schema.Kind(err); kind > schema.ErrSuccess {
		return httpresponse.Err(kind.Code()).With(err.Error())
	}
	return err
}

// fail logs and writes an error response
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) error {
	if a.logger != nil {
		a.logger.Printf(r.Context(), "%s %s: %v", r.Method, r.URL.Path, err)
	}
	return httpresponse.Error(w, httpErr(err))
}
