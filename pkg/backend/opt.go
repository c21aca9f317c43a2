package backend

import (
	"fmt"
	"net/url"
	"time"

	// Packages
	filezen "github.com/FileZen/filezen"
	logger "github.com/FileZen/filezen/pkg/logger"
	schema "github.com/FileZen/filezen/pkg/schema"
	aws "github.com/aws/aws-sdk-go-v2/aws"
	trace "go.opentelemetry.io/otel/trace"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type opt struct {
	url       *url.URL
	awsConfig *aws.Config
	endpoint  string
	anonymous bool
	tracer    trace.Tracer
	maxSize   int64
	logger    filezen.Logger
	ttl       time.Duration
}

type Opt func(*opt) error

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	// DefaultSessionTTL is how long a multipart session may sit idle before
	// it is removed along with its chunks
	DefaultSessionTTL = 24 * time.Hour
)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func apply(url *url.URL, opts ...Opt) (*opt, error) {
	o := opt{url: url, maxSize: schema.MaxPayloadSize, logger: logger.Discard(), ttl: DefaultSessionTTL}
	for _, fn := range opts {
		if err := fn(&o); err != nil {
			return nil, err
		}
	}

	// Return success
	return &o, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// WithEndpoint sets the endpoint of an S3-compatible service. Path-style
// addressing is forced, and HTTPS is disabled for http:// endpoints.
func WithEndpoint(endpoint string) Opt {
	return func(o *opt) error {
		u, err := url.Parse(endpoint)
		if err != nil {
			return err
		}
		switch u.Scheme {
		case "http":
			o.set("disable_https", "true")
		case "https":
			o.set("disable_https", "")
		default:
			return fmt.Errorf("endpoint must be http:// or https://, got %s://", u.Scheme)
		}
		o.endpoint = u.String()
		o.set("endpoint", o.endpoint)
		o.set("s3ForcePathStyle", "true")
		return nil
	}
}

// WithRegion sets the bucket region, which is also reported on stored files
func WithRegion(region string) Opt {
	return func(o *opt) error {
		o.set("region", region)
		return nil
	}
}

// WithProfile selects a named profile from the shared AWS configuration
func WithProfile(profile string) Opt {
	return func(o *opt) error {
		o.set("profile", profile)
		return nil
	}
}

// WithAnonymous uses anonymous credentials
func WithAnonymous() Opt {
	return func(o *opt) error {
		o.anonymous = true
		o.set("anonymous", "true")
		return nil
	}
}

// WithCreateDir creates the directory of a file:// bucket when missing
func WithCreateDir() Opt {
	return func(o *opt) error {
		o.set("create_dir", "true")
		return nil
	}
}

// WithMaxSize bounds the size of a stored file. Zero or less removes the bound.
func WithMaxSize(size int64) Opt {
	return func(o *opt) error {
		o.maxSize = size
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer. On s3:// backends opened with
// WithAWSConfig each S3 API call produces a child span.
func WithTracer(tracer trace.Tracer) Opt {
	return func(o *opt) error {
		o.tracer = tracer
		return nil
	}
}

// WithLogger sets the logger for failures which do not fail a request,
// such as removing chunk objects
func WithLogger(logger filezen.Logger) Opt {
	return func(o *opt) error {
		if logger == nil {
			return fmt.Errorf("logger is nil")
		}
		o.logger = logger
		return nil
	}
}

// WithSessionTTL sets how long a multipart session may sit idle. Zero or
// less keeps sessions until they complete.
func WithSessionTTL(ttl time.Duration) Opt {
	return func(o *opt) error {
		o.ttl = ttl
		return nil
	}
}

// WithAWSConfig opens s3:// buckets with an AWS SDK v2 configuration instead
// of the URL query parameters
func WithAWSConfig(cfg aws.Config) Opt {
	return func(o *opt) error {
		o.awsConfig = &cfg
		return nil
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (o *opt) set(key, value string) {
	if o.url == nil {
		return
	}
	q := o.url.Query()
	if value == "" {
		q.Del(key)
	} else {
		q.Set(key, value)
	}
	o.url.RawQuery = q.Encode()
}
