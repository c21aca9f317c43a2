package bulk

import (
	// Packages
	schema "github.com/FileZen/filezen/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt is a functional option for the coordinator
type Opt func(*opt) error

type opt struct {
	concurrency int
	queue       int
	failfast    bool
}

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	DefaultConcurrency = 4
	DefaultMaxQueue    = 96
)

///////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithConcurrency sets the number of items which run at once
func WithConcurrency(n int) Opt {
	return func(o *opt) error {
		if n < 1 {
			return schema.ErrValidation.Withf("invalid concurrency %d", n)
		}
		o.concurrency = n
		return nil
	}
}

// WithMaxQueue sets the number of items which can wait for a slot
func WithMaxQueue(n int) Opt {
	return func(o *opt) error {
		if n < 0 {
			return schema.ErrValidation.Withf("invalid queue depth %d", n)
		}
		o.queue = n
		return nil
	}
}

// WithFailFast cancels the remaining items after the first failure
func WithFailFast(v bool) Opt {
	return func(o *opt) error {
		o.failfast = v
		return nil
	}
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func applyOpts(opts ...Opt) (opt, error) {
	o := opt{
		concurrency: DefaultConcurrency,
		queue:       DefaultMaxQueue,
	}
	for _, fn := range opts {
		if err := fn(&o); err != nil {
			return opt{}, err
		}
	}
	return o, nil
}
