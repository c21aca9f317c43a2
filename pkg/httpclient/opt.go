package httpclient

import (
	"net/url"
	"time"

	// Packages
	schema "github.com/FileZen/filezen/pkg/schema"
	client "github.com/mutablelogic/go-client"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt is a functional option for the client
type Opt func(*opt) error

type opt struct {
	apiKey     string
	bearer     string
	signUrl    string
	timeout    time.Duration
	clientOpts []client.ClientOpt
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// WithApiKey sets the key sent in the ApiKey header. It is also used to sign
// URLs when it encodes an access key and secret.
func WithApiKey(key string) Opt {
	return func(o *opt) error {
		o.apiKey = key
		return nil
	}
}

// WithBearer sends an Authorization: Bearer header instead of an API key
func WithBearer(token string) Opt {
	return func(o *opt) error {
		o.bearer = token
		return nil
	}
}

// WithSignURL asks the sign endpoint at url for a signed upload URL before
// each upload, so no API key is needed on the client
func WithSignURL(value string) Opt {
	return func(o *opt) error {
		if u, err := url.Parse(value); err != nil || u.Host == "" {
			return schema.ErrValidation.Withf("invalid sign url %q", value)
		}
		o.signUrl = value
		return nil
	}
}

// WithTransferTimeout bounds each upload or chunk transfer. Zero means the
// transfer is bounded only by the context.
func WithTransferTimeout(d time.Duration) Opt {
	return func(o *opt) error {
		if d < 0 {
			return schema.ErrValidation.Withf("invalid timeout %v", d)
		}
		o.timeout = d
		return nil
	}
}

// WithClientOpt passes options to the underlying HTTP client, for example
// client.OptTrace or client.OptTimeout
func WithClientOpt(opts ...client.ClientOpt) Opt {
	return func(o *opt) error {
		o.clientOpts = append(o.clientOpts, opts...)
		return nil
	}
}
