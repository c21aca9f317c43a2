package resolver

import (
	"time"

	// Packages
	schema "github.com/FileZen/filezen/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type opt struct {
	limit int64
	now   func() time.Time
}

// Opt is a functional option for the resolver
type Opt func(*opt) error

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func applyOpts(opts ...Opt) (opt, error) {
	o := opt{
		limit: schema.MaxPayloadSize,
		now:   time.Now,
	}
	for _, fn := range opts {
		if err := fn(&o); err != nil {
			return o, err
		}
	}
	return o, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// WithMaxSize sets the largest payload, in bytes, which can be resolved into memory
func WithMaxSize(limit int64) Opt {
	return func(o *opt) error {
		if limit <= 0 {
			return schema.ErrValidation.Withf("invalid max size %d", limit)
		}
		o.limit = limit
		return nil
	}
}

// WithClock sets the clock used to generate placeholder names
func WithClock(fn func() time.Time) Opt {
	return func(o *opt) error {
		if fn == nil {
			return schema.ErrValidation.With("nil clock")
		}
		o.now = fn
		return nil
	}
}
