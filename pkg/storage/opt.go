package storage

import (
	// Packages
	filezen "github.com/FileZen/filezen"
	bulk "github.com/FileZen/filezen/pkg/bulk"
	logger "github.com/FileZen/filezen/pkg/logger"
	schema "github.com/FileZen/filezen/pkg/schema"
	metric "go.opentelemetry.io/otel/metric"
	noop "go.opentelemetry.io/otel/metric/noop"
	trace "go.opentelemetry.io/otel/trace"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt is a functional option for storage configuration.
type Opt func(*opts) error

type opts struct {
	tracer      trace.Tracer
	meter       metric.Meter
	logger      filezen.Logger
	concurrency int
	queue       int
	failfast    bool
	maxSize     int64
	chunkSize   int64
	retention   int
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

// DefaultRetention is the number of finished uploads kept for AllUploads
const DefaultRetention = 100

////////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithTracer sets the tracer used for tracing operations.
func WithTracer(tracer trace.Tracer) Opt {
	return func(o *opts) error {
		o.tracer = tracer
		return nil
	}
}

// WithMeter sets the meter used for upload counters.
func WithMeter(meter metric.Meter) Opt {
	return func(o *opts) error {
		if meter == nil {
			return schema.ErrValidation.With("nil meter")
		}
		o.meter = meter
		return nil
	}
}

// WithLogger sets the logger for listener faults and aborted sessions.
func WithLogger(logger filezen.Logger) Opt {
	return func(o *opts) error {
		if logger == nil {
			return schema.ErrValidation.With("nil logger")
		}
		o.logger = logger
		return nil
	}
}

// WithConcurrency sets the number of bulk items which upload at once.
func WithConcurrency(n int) Opt {
	return func(o *opts) error {
		if n < 1 {
			return schema.ErrValidation.Withf("invalid concurrency %d", n)
		}
		o.concurrency = n
		return nil
	}
}

// WithMaxQueue sets the number of bulk items which can wait for a slot.
func WithMaxQueue(n int) Opt {
	return func(o *opts) error {
		if n < 0 {
			return schema.ErrValidation.Withf("invalid queue depth %d", n)
		}
		o.queue = n
		return nil
	}
}

// WithFailFast cancels the rest of a bulk upload after the first failure.
func WithFailFast() Opt {
	return func(o *opts) error {
		o.failfast = true
		return nil
	}
}

// WithMaxPayloadSize sets the largest payload which is resolved into memory.
func WithMaxPayloadSize(size int64) Opt {
	return func(o *opts) error {
		if size <= 0 {
			return schema.ErrValidation.Withf("invalid payload size %d", size)
		}
		o.maxSize = size
		return nil
	}
}

// WithChunkSize sets the multipart chunk size, which is also the payload
// size above which uploads use a multipart session.
func WithChunkSize(size int64) Opt {
	return func(o *opts) error {
		if size <= 0 {
			return schema.ErrValidation.Withf("invalid chunk size %d", size)
		}
		o.chunkSize = size
		return nil
	}
}

// WithRetention sets the number of finished uploads kept for AllUploads.
func WithRetention(n int) Opt {
	return func(o *opts) error {
		if n < 0 {
			return schema.ErrValidation.Withf("invalid retention %d", n)
		}
		o.retention = n
		return nil
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func applyOpts(opt []Opt) (opts, error) {
	// Set defaults
	o := opts{
		concurrency: bulk.DefaultConcurrency,
		queue:       bulk.DefaultMaxQueue,
		maxSize:     schema.MaxPayloadSize,
		chunkSize:   schema.ChunkSize,
		retention:   DefaultRetention,
	}

	// Apply options
	for _, fn := range opt {
		if err := fn(&o); err != nil {
			return opts{}, err
		}
	}
	if o.meter == nil {
		o.meter = noop.NewMeterProvider().Meter(schema.SchemaName)
	}
	if o.logger == nil {
		o.logger = logger.Discard()
	}

	// Return success
	return o, nil
}
