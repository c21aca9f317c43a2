package httpclient

import (
	"crypto/tls"
	"net/http"
	"os"
	"strings"
	"sync"

	// Packages
	filezen "github.com/FileZen/filezen"
	schema "github.com/FileZen/filezen/pkg/schema"
	signer "github.com/FileZen/filezen/pkg/signer"
	version "github.com/FileZen/filezen/pkg/version"
	client "github.com/mutablelogic/go-client"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Client is a FileZen HTTP client that wraps the base HTTP client
// and provides typed methods for interacting with the storage API.
type Client struct {
	*client.Client
	opt
	endpoint string
	signer   *signer.Signer
	once     sync.Once
}

var _ filezen.Transfer = (*Client)(nil)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates a new FileZen HTTP client with the given base URL and options.
// When url is empty, FILEZEN_API_URL or the hosted API is used. When no API
// key or bearer token is set, FILEZEN_API_KEY is used.
func New(url string, opts ...Opt) (*Client, error) {
	c := new(Client)

	// Apply options
	for _, fn := range opts {
		if err := fn(&c.opt); err != nil {
			return nil, err
		}
	}

	// Defaults from the environment
	if url == "" {
		url = os.Getenv(schema.EnvApiUrl)
	}
	if url == "" {
		url = schema.DefaultApiUrl
	}
	if c.apiKey == "" && c.bearer == "" {
		c.apiKey = strings.TrimSpace(os.Getenv(schema.EnvApiKey))
	}
	c.endpoint = strings.TrimSuffix(url, "/")

	// A key which encodes accessKey,secret can also sign URLs
	if c.apiKey != "" {
		if s, err := signer.New(c.apiKey, c.endpoint); err == nil {
			c.signer = s
		}
	}

	clientOpts := append([]client.ClientOpt{client.OptUserAgent(version.UserAgent())}, c.clientOpts...)
	cl, err := client.New(append(clientOpts, client.OptEndpoint(c.endpoint))...)
	if err != nil {
		return nil, err
	}
	if isTruthyEnv("FILEZEN_HTTP1") {
		tr, ok := cl.Client.Transport.(*http.Transport)
		if ok && tr != nil {
			tr = tr.Clone()
		} else {
			tr = http.DefaultTransport.(*http.Transport).Clone()
		}
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
		cl.Client.Transport = tr
	}
	c.Client = cl
	return c, nil
}

// Close releases idle connections. It is safe to call more than once.
func (c *Client) Close() error {
	c.once.Do(func() {
		if c.Client != nil && c.Client.Client != nil {
			c.Client.Client.CloseIdleConnections()
		}
	})
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Endpoint returns the API base URL
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Sign returns a signed URL. The API key must encode an access key and secret.
func (c *Client) Sign(req schema.SignRequest) (string, error) {
	if c.signer == nil {
		return "", schema.ErrValidation.With("signing requires an api key of the form base64(accessKey,secret)")
	}
	return c.signer.Sign(req)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// auth returns the request options which authenticate with the API
func (c *Client) auth() []client.RequestOpt {
	switch {
	case c.bearer != "":
		return []client.RequestOpt{client.OptReqHeader(schema.AuthorizationHeader, "Bearer "+c.bearer)}
	case c.apiKey != "":
		return []client.RequestOpt{client.OptReqHeader(schema.ApiKeyHeader, c.apiKey)}
	default:
		return nil
	}
}

func isTruthyEnv(key string) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	return v != "" && v != "0" && v != "false" && v != "no" && v != "off"
}
