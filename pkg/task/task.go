// Package task implements the lifecycle of a single upload.
//
// A task moves from pending through resolving and transferring to one of
// completed, failed or cancelled. Each transition is reported to a
// notifier: one start event, zero or more progress events, then exactly one
// complete, error or cancel event.
package task

import (
	"context"
	"sync"

	// Packages
	filezen "github.com/FileZen/filezen"
	schema "github.com/FileZen/filezen/pkg/schema"
	uuid "github.com/google/uuid"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Notifier receives task events
type Notifier interface {
	Notify(context.Context, schema.Event)
}

// Uploader sends a payload in one request
type Uploader interface {
	UploadOnce(context.Context, *schema.Payload, schema.UploadOptions, filezen.ProgressFunc) (*schema.File, error)
}

// Sessions sends a payload as a multipart session
type Sessions interface {
	Start(context.Context, schema.MultipartStartRequest) (string, error)
	UploadPart(ctx context.Context, id string, chunk []byte, index int, fn filezen.ProgressFunc) (*schema.ChunkResponse, error)
	Finish(ctx context.Context, id string) (*schema.File, error)
	Abort(id string) error
}

// Task is one logical upload
type Task struct {
	opt
	source schema.Source
	opts   schema.UploadOptions

	// Guards the state below
	sync.Mutex
	upload schema.Upload
	ctx    context.Context
	cancel context.CancelFunc

	// Serializes event delivery
	emitMu sync.Mutex
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New returns a pending task for a source
func New(source schema.Source, opts schema.UploadOptions, o ...Opt) (*Task, error) {
	t := &Task{source: source, opts: opts}
	if o, err := applyOpts(o...); err != nil {
		return nil, err
	} else {
		t.opt = o
	}
	if t.id == "" {
		t.id = uuid.NewString()
	}

	now := t.now()
	t.upload = schema.Upload{
		LocalId:  t.id,
		Name:     opts.Name,
		MimeType: opts.MimeType,
		Status:   schema.StatusPending,
		Created:  now,
		Updated:  now,
	}
	return t, nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Id returns the local identifier, which is stable for the task lifetime
func (t *Task) Id() string {
	return t.id
}

// Snapshot returns the current state of the task
func (t *Task) Snapshot() schema.Upload {
	t.Lock()
	defer t.Unlock()
	return t.upload
}

// Cancel a task which has not reached a terminal state, and return true
// if it was cancelled. Data already sent is not removed remotely.
func (t *Task) Cancel() bool {
	t.Lock()
	if t.upload.Status.Terminal() {
		t.Unlock()
		return false
	}
	t.set(schema.StatusCancelled)
	t.upload.Error = schema.ErrCancelled
	snapshot := t.upload
	if t.cancel != nil {
		t.cancel()
	}
	ctx := t.ctx
	t.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	t.emitAsync(ctx, schema.Event{Type: schema.EventCancel, Upload: snapshot})
	return true
}

// Run resolves and transfers the source, and returns the file. It can only
// be called once.
func (t *Task) Run(ctx context.Context, resolver filezen.Resolver, uploader Uploader, sessions Sessions) (*schema.File, error) {
	// Enter resolving
	t.Lock()
	switch t.upload.Status {
	case schema.StatusPending:
		// Ok
	case schema.StatusCancelled:
		t.Unlock()
		return nil, schema.ErrCancelled
	default:
		t.Unlock()
		return nil, schema.ErrValidation.Withf("task %q has already run", t.id)
	}
	t.ctx = context.WithoutCancel(ctx)
	ctx, t.cancel = context.WithCancel(ctx)
	defer t.cancel()
	t.set(schema.StatusResolving)
	t.emitLocked(schema.Event{Type: schema.EventStart})

	// Resolve the source
	payload, err := resolver.Resolve(ctx, t.source, t.opts)
	if err != nil {
		return nil, t.fail(schema.ErrResolution.Wrap(err))
	}
	defer payload.Close()

	// Enter transferring
	t.Lock()
	if t.upload.Status != schema.StatusResolving {
		t.Unlock()
		return nil, schema.ErrCancelled
	}
	t.upload.Name = payload.Name
	t.upload.MimeType = payload.MimeType
	t.upload.Size = max(payload.Size, 0)
	t.upload.Progress = schema.NewProgress(0, t.upload.Size)
	t.set(schema.StatusTransferring)
	t.Unlock()

	// Transfer
	var file *schema.File
	switch {
	case payload.Streaming():
		file, err = t.stream(ctx, payload, sessions)
	case payload.Size > t.threshold:
		file, err = t.chunked(ctx, payload, sessions)
	default:
		file, err = uploader.UploadOnce(ctx, payload, t.opts, t.progress)
	}
	if err != nil {
		return nil, t.fail(schema.ErrUpload.Wrap(err))
	}

	// Enter completed
	t.Lock()
	if t.upload.Status != schema.StatusTransferring {
		t.Unlock()
		return nil, schema.ErrCancelled
	}
	t.upload.File = file
	t.upload.Progress = schema.Progress{Bytes: t.upload.Size, Total: t.upload.Size, Percent: 100}
	t.set(schema.StatusCompleted)
	t.emitLocked(schema.Event{Type: schema.EventComplete})

	// Return success
	return file, nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// set changes the status. Must be called with the lock held.
func (t *Task) set(status schema.Status) {
	t.upload.Status = status
	t.upload.Updated = t.now()
}

// fail enters the failed state unless the task was cancelled
func (t *Task) fail(err error) error {
	t.Lock()
	if t.upload.Status == schema.StatusCancelled {
		t.Unlock()
		return schema.ErrCancelled
	}
	t.upload.Error = err
	t.set(schema.StatusFailed)
	t.emitLocked(schema.Event{Type: schema.EventError, Err: err})
	return err
}

// progress updates the transferred bytes while transferring
func (t *Task) progress(written, total int64) {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.Lock()
	if t.upload.Status != schema.StatusTransferring {
		t.Unlock()
		return
	}
	if total <= 0 {
		total = t.upload.Size
	}
	t.upload.Progress = schema.NewProgress(written, total)
	t.upload.Updated = t.now()
	evt := schema.Event{Type: schema.EventProgress, Upload: t.upload, Progress: t.upload.Progress}
	ctx := t.ctx
	t.Unlock()

	t.notify(ctx, evt)
}

// emitLocked takes a snapshot for the event, releases the lock and delivers
// the event. Must be called with the lock held.
func (t *Task) emitLocked(evt schema.Event) {
	evt.Upload = t.upload
	ctx := t.ctx
	t.Unlock()

	t.emitMu.Lock()
	defer t.emitMu.Unlock()
	t.notify(ctx, evt)
}

// emitAsync delivers an event, deferring delivery to a goroutine when
// another event is being delivered, for example when a listener cancels
// the task from within a callback
func (t *Task) emitAsync(ctx context.Context, evt schema.Event) {
	if t.emitMu.TryLock() {
		defer t.emitMu.Unlock()
		t.notify(ctx, evt)
		return
	}
	go func() {
		t.emitMu.Lock()
		defer t.emitMu.Unlock()
		t.notify(ctx, evt)
	}()
}

func (t *Task) notify(ctx context.Context, evt schema.Event) {
	if t.notifier != nil {
		t.notifier.Notify(ctx, evt)
	}
}
