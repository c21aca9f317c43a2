package task

import (
	"time"

	// Packages
	schema "github.com/FileZen/filezen/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt is a functional option for a task
type Opt func(*opt) error

type opt struct {
	id        string
	notifier  Notifier
	now       func() time.Time
	threshold int64
	chunkSize int64
}

///////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithId sets the local identifier instead of generating one
func WithId(id string) Opt {
	return func(o *opt) error {
		if id == "" {
			return schema.ErrValidation.With("empty task id")
		}
		o.id = id
		return nil
	}
}

// WithNotifier sets the receiver of lifecycle events
func WithNotifier(n Notifier) Opt {
	return func(o *opt) error {
		o.notifier = n
		return nil
	}
}

// WithClock sets the clock used for timestamps
func WithClock(fn func() time.Time) Opt {
	return func(o *opt) error {
		o.now = fn
		return nil
	}
}

// WithChunkSize sets the size of multipart chunks, and the payload size above
// which a multipart session is used
func WithChunkSize(size int64) Opt {
	return func(o *opt) error {
		if size <= 0 {
			return schema.ErrValidation.Withf("invalid chunk size %d", size)
		}
		o.threshold, o.chunkSize = size, size
		return nil
	}
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func applyOpts(opts ...Opt) (opt, error) {
	o := opt{
		now:       time.Now,
		threshold: schema.MultipartThreshold,
		chunkSize: schema.ChunkSize,
	}
	for _, fn := range opts {
		if err := fn(&o); err != nil {
			return opt{}, err
		}
	}

	// Return success
	return o, nil
}
