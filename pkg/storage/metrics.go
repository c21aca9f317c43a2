package storage

import (
	"context"

	// Packages
	schema "github.com/FileZen/filezen/pkg/schema"
	attribute "go.opentelemetry.io/otel/attribute"
	metric "go.opentelemetry.io/otel/metric"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type metrics struct {
	uploads metric.Int64Counter
	bytes   metric.Int64Counter
	active  metric.Int64UpDownCounter
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func newMetrics(meter metric.Meter) (*metrics, error) {
	self := new(metrics)
	if c, err := meter.Int64Counter(schema.SchemaName+".uploads",
		metric.WithDescription("Finished uploads by status"),
		metric.WithUnit("{upload}"),
	); err != nil {
		return nil, err
	} else {
		self.uploads = c
	}
	if c, err := meter.Int64Counter(schema.SchemaName+".uploads.bytes",
		metric.WithDescription("Bytes of completed uploads"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	} else {
		self.bytes = c
	}
	if c, err := meter.Int64UpDownCounter(schema.SchemaName+".uploads.active",
		metric.WithDescription("Uploads which have not finished"),
		metric.WithUnit("{upload}"),
	); err != nil {
		return nil, err
	} else {
		self.active = c
	}
	return self, nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (m *metrics) start(ctx context.Context) {
	m.active.Add(ctx, 1)
}

func (m *metrics) finish(ctx context.Context, upload schema.Upload) {
	m.active.Add(ctx, -1)
	m.uploads.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(upload.Status))))
	if upload.Status == schema.StatusCompleted {
		m.bytes.Add(ctx, upload.Size)
	}
}
