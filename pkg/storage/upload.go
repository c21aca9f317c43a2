package storage

import (
	"cmp"
	"context"
	"slices"

	// Packages
	filezen "github.com/FileZen/filezen"
	bulk "github.com/FileZen/filezen/pkg/bulk"
	schema "github.com/FileZen/filezen/pkg/schema"
	task "github.com/FileZen/filezen/pkg/task"
	otel "github.com/mutablelogic/go-client/pkg/otel"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Upload resolves and uploads a single source, and returns the final
// snapshot of the upload. On failure the snapshot is returned with the
// error.
func (storage *Storage) Upload(ctx context.Context, src schema.Source, opt ...filezen.Opt) (_ schema.Upload, err error) {
	opts, err := filezen.ApplyOpts(opt...)
	if err != nil {
		return schema.Upload{}, err
	}

	// OTEL span
	child, endFunc := otel.StartSpan(storage.tracer, ctx, spanStorageName("Upload"))
	defer func() { endFunc(err) }()

	return storage.upload(child, src, opts)
}

// BulkUpload uploads a batch of sources with bounded concurrency, and
// returns one outcome per item in input order. An error is returned only
// when the batch is rejected, in which case no upload is started.
func (storage *Storage) BulkUpload(ctx context.Context, items []schema.BulkItem) (_ []bulk.Outcome, err error) {
	if err := storage.bulk.Validate(len(items)); err != nil {
		return nil, err
	}

	// OTEL span
	child, endFunc := otel.StartSpan(storage.tracer, ctx, spanStorageName("BulkUpload"))
	defer func() { endFunc(err) }()

	return storage.bulk.Run(child, len(items), func(ctx context.Context, i int) bulk.Outcome {
		upload, err := storage.upload(ctx, items[i].Source, items[i].Options)
		return bulk.Outcome{Upload: upload, File: upload.File, Err: err}
	})
}

// Cancel an active upload by local id. Returns ErrNotFound if the upload
// is not active.
func (storage *Storage) Cancel(id string) error {
	storage.Lock()
	t, exists := storage.active[id]
	storage.Unlock()
	if !exists || !t.Cancel() {
		return schema.ErrNotFound.Withf("no active upload %q", id)
	}
	return nil
}

// ActiveUploads returns snapshots of the uploads which have not finished,
// oldest first
func (storage *Storage) ActiveUploads() []schema.Upload {
	storage.Lock()
	defer storage.Unlock()
	return storage.activeUploads()
}

// AllUploads returns snapshots of the active uploads and of the most
// recently finished uploads, oldest first
func (storage *Storage) AllUploads() []schema.Upload {
	storage.Lock()
	defer storage.Unlock()
	result := storage.activeUploads()
	for _, t := range storage.history {
		result = append(result, t.Snapshot())
	}
	sortUploads(result)
	return result
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// upload runs one task through its lifecycle
func (storage *Storage) upload(ctx context.Context, src schema.Source, opts schema.UploadOptions) (schema.Upload, error) {
	t, err := task.New(src, opts, task.WithNotifier(storage.listeners), task.WithChunkSize(storage.chunkSize))
	if err != nil {
		return schema.Upload{}, err
	}

	// Track the task
	if err := storage.track(ctx, t); err != nil {
		return t.Snapshot(), err
	}
	defer storage.untrack(ctx, t)

	// Cancelled before it started, when a bulk upload fails fast
	if ctx.Err() != nil {
		t.Cancel()
	}

	// Run the task
	_, err = t.Run(ctx, storage.resolver, storage.transfer, storage.sessions)
	return t.Snapshot(), err
}

func (storage *Storage) track(ctx context.Context, t *task.Task) error {
	storage.Lock()
	if storage.closed {
		storage.Unlock()
		return schema.ErrValidation.With("storage is closed")
	}
	storage.active[t.Id()] = t
	uploads := storage.activeUploads()
	storage.Unlock()

	storage.metrics.start(ctx)
	storage.listeners.Notify(ctx, schema.Event{Type: schema.EventChange, Uploads: uploads})
	return nil
}

func (storage *Storage) untrack(ctx context.Context, t *task.Task) {
	snapshot := t.Snapshot()

	storage.Lock()
	delete(storage.active, t.Id())
	if storage.retention > 0 {
		storage.history = append(storage.history, t)
		if n := len(storage.history) - storage.retention; n > 0 {
			storage.history = slices.Delete(storage.history, 0, n)
		}
	}
	uploads := storage.activeUploads()
	storage.Unlock()

	if snapshot.Status == schema.StatusFailed {
		storage.logger.Printf(ctx, "upload %q failed: %v", snapshot.Name, snapshot.Error)
	}
	storage.metrics.finish(ctx, snapshot)
	storage.listeners.Notify(ctx, schema.Event{Type: schema.EventChange, Uploads: uploads})
}

// activeUploads must be called with the lock held
func (storage *Storage) activeUploads() []schema.Upload {
	result := make([]schema.Upload, 0, len(storage.active))
	for _, t := range storage.active {
		result = append(result, t.Snapshot())
	}
	sortUploads(result)
	return result
}

func sortUploads(uploads []schema.Upload) {
	slices.SortStableFunc(uploads, func(a, b schema.Upload) int {
		if c := a.Created.Compare(b.Created); c != 0 {
			return c
		}
		return cmp.Compare(a.LocalId, b.LocalId)
	})
}
