package httphandler

import (
	"net/url"
	"strings"

	// Packages
	filezen "github.com/FileZen/filezen"
	schema "github.com/FileZen/filezen/pkg/schema"
	signer "github.com/FileZen/filezen/pkg/signer"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt is a functional option for the storage API handlers
type Opt func(*opt) error

type opt struct {
	apiKeys []string
	signer  *signer.Signer
	baseUrl string
	logger  filezen.Logger
}

///////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithApiKey accepts requests which carry key in the ApiKey header or as a
// bearer token. When no key or signer is set, all requests are accepted.
func WithApiKey(key string) Opt {
	return func(o *opt) error {
		if key = strings.TrimSpace(key); key == "" {
			return schema.ErrValidation.With("empty api key")
		}
		o.apiKeys = append(o.apiKeys, key)
		return nil
	}
}

// WithSigner accepts upload requests carrying a valid signature
func WithSigner(s *signer.Signer) Opt {
	return func(o *opt) error {
		o.signer = s
		return nil
	}
}

// WithBaseURL sets the public URL of the API, used to build file URLs. By
// default the URL is derived from each request.
func WithBaseURL(value string) Opt {
	return func(o *opt) error {
		if u, err := url.Parse(value); err != nil || u.Host == "" {
			return schema.ErrValidation.Withf("invalid base url %q", value)
		}
		o.baseUrl = strings.TrimSuffix(value, "/")
		return nil
	}
}

// WithLogger sets the logger for request failures
func WithLogger(logger filezen.Logger) Opt {
	return func(o *opt) error {
		o.logger = logger
		return nil
	}
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func applyOpts(opts ...Opt) (opt, error) {
	var o opt
	for _, fn := range opts {
		if err := fn(&o); err != nil {
			return opt{}, err
		}
	}

	// Return success
	return o, nil
}
