package task_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	// Packages
	filezen "github.com/FileZen/filezen"
	resolver "github.com/FileZen/filezen/pkg/resolver"
	schema "github.com/FileZen/filezen/pkg/schema"
	task "github.com/FileZen/filezen/pkg/task"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

///////////////////////////////////////////////////////////////////////////////
// FAKES

type recorder struct {
	sync.Mutex
	events []schema.Event
}

func (r *recorder) Notify(_ context.Context, evt schema.Event) {
	r.Lock()
	defer r.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) types() []schema.EventType {
	r.Lock()
	defer r.Unlock()
	var result []schema.EventType
	for _, evt := range r.events {
		result = append(result, evt.Type)
	}
	return result
}

// terminal returns the event types other than progress
func (r *recorder) terminal() []schema.EventType {
	var result []schema.EventType
	for _, t := range r.types() {
		if t != schema.EventProgress {
			result = append(result, t)
		}
	}
	return result
}

type uploader struct {
	calls   int
	err     error
	block   bool
	entered chan struct{}
}

func (u *uploader) UploadOnce(ctx context.Context, payload *schema.Payload, _ schema.UploadOptions, fn filezen.ProgressFunc) (*schema.File, error) {
	u.calls++
	if u.block {
		fn(1, payload.Size)
		close(u.entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if u.err != nil {
		return nil, u.err
	}
	fn(payload.Size, payload.Size)
	return &schema.File{Id: "file-1", Name: payload.Name, Size: payload.Size}, nil
}

type sessions struct {
	req      schema.MultipartStartRequest
	chunks   []string
	indices  []int
	finished bool
	aborted  bool
	err      error
}

func (s *sessions) Start(_ context.Context, req schema.MultipartStartRequest) (string, error) {
	s.req = req
	return "session-1", nil
}

func (s *sessions) UploadPart(_ context.Context, _ string, chunk []byte, index int, fn filezen.ProgressFunc) (*schema.ChunkResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.chunks = append(s.chunks, string(chunk))
	s.indices = append(s.indices, index)
	fn(int64(len(chunk)), int64(len(chunk)))
	return &schema.ChunkResponse{}, nil
}

func (s *sessions) Finish(_ context.Context, _ string) (*schema.File, error) {
	s.finished = true
	return &schema.File{Id: "file-2", Name: s.req.FileName}, nil
}

func (s *sessions) Abort(string) error {
	s.aborted = true
	return nil
}

func newResolver(t *testing.T, opts ...resolver.Opt) *resolver.Resolver {
	t.Helper()
	r, err := resolver.New(nil, opts...)
	require.NoError(t, err)
	return r
}

///////////////////////////////////////////////////////////////////////////////
// TESTS

func Test_Task_Once(t *testing.T) {
	assert := assert.New(t)
	events := new(recorder)
	up := new(uploader)
	s := new(sessions)

	tk, err := task.New(schema.FromText("hello"), schema.UploadOptions{Name: "a.txt"}, task.WithNotifier(events), task.WithId("local-1"))
	require.NoError(t, err)
	assert.Equal("local-1", tk.Id())
	assert.Equal(schema.StatusPending, tk.Snapshot().Status)

	file, err := tk.Run(context.TODO(), newResolver(t), up, s)
	require.NoError(t, err)
	assert.Equal("file-1", file.Id)
	assert.Equal(1, up.calls)
	assert.Empty(s.chunks)

	snapshot := tk.Snapshot()
	assert.Equal(schema.StatusCompleted, snapshot.Status)
	assert.Equal("a.txt", snapshot.Name)
	assert.Equal("text/plain", snapshot.MimeType)
	assert.Equal(int64(5), snapshot.Size)
	assert.Equal(float64(100), snapshot.Progress.Percent)
	assert.Equal(file, snapshot.File)

	assert.Equal([]schema.EventType{schema.EventStart, schema.EventProgress, schema.EventComplete}, events.types())
	assert.Equal(schema.StatusResolving, events.events[0].Upload.Status)
	assert.Equal(int64(5), events.events[1].Progress.Bytes)
	assert.Equal("local-1", events.events[2].Upload.LocalId)

	// A task runs once
	_, err = tk.Run(context.TODO(), newResolver(t), up, s)
	assert.ErrorIs(err, schema.ErrValidation)
	assert.False(tk.Cancel())
}

func Test_Task_Chunked(t *testing.T) {
	assert := assert.New(t)
	events := new(recorder)
	up := new(uploader)
	s := new(sessions)

	opts := schema.UploadOptions{Name: "data.bin", FolderId: "folder-1", Metadata: map[string]any{"k": "v"}}
	tk, err := task.New(schema.FromBytes([]byte("0123456789")), opts, task.WithNotifier(events), task.WithChunkSize(4))
	require.NoError(t, err)

	file, err := tk.Run(context.TODO(), newResolver(t), up, s)
	require.NoError(t, err)
	assert.Equal("file-2", file.Id)
	assert.Zero(up.calls)
	assert.Equal([]string{"0123", "4567", "89"}, s.chunks)
	assert.Equal([]int{0, 1, 2}, s.indices)
	assert.True(s.finished)
	assert.False(s.aborted)
	assert.Equal(schema.ModeChunked, s.req.Mode)
	assert.Equal(int64(10), s.req.TotalSize)
	assert.Equal("folder-1", s.req.ParentId)
	assert.Equal("v", s.req.Metadata["k"])

	// Progress is relative to the whole payload
	var bytes []int64
	for _, evt := range events.events {
		if evt.Type == schema.EventProgress {
			bytes = append(bytes, evt.Progress.Bytes)
		}
	}
	assert.Equal([]int64{4, 8, 10}, bytes)
	assert.Equal([]schema.EventType{schema.EventStart, schema.EventComplete}, events.terminal())
}

func Test_Task_Stream(t *testing.T) {
	assert := assert.New(t)
	s := new(sessions)

	tk, err := task.New(schema.FromFile(strings.NewReader("abcdefghij")), schema.UploadOptions{Name: "s.txt", Streaming: true}, task.WithChunkSize(3))
	require.NoError(t, err)

	_, err = tk.Run(context.TODO(), newResolver(t), new(uploader), s)
	require.NoError(t, err)
	assert.Equal(schema.ModeStreaming, s.req.Mode)
	assert.Equal([]string{"abc", "def", "ghi", "j"}, s.chunks)
	assert.True(s.finished)
}

func Test_Task_Errors(t *testing.T) {
	t.Run("Resolution", func(t *testing.T) {
		assert := assert.New(t)
		events := new(recorder)
		up := new(uploader)

		// 101 MiB exceeds the default limit
		src := schema.FromFile(io.LimitReader(zeros{}, 101*1024*1024))
		tk, err := task.New(src, schema.UploadOptions{Name: "big.bin"}, task.WithNotifier(events))
		require.NoError(t, err)

		_, err = tk.Run(context.TODO(), newResolver(t), up, new(sessions))
		assert.ErrorIs(err, schema.ErrResolution)
		assert.ErrorIs(err, schema.ErrPayloadTooLarge)
		assert.Zero(up.calls)
		assert.Equal(schema.StatusFailed, tk.Snapshot().Status)
		assert.Equal([]schema.EventType{schema.EventStart, schema.EventError}, events.types())
		for _, evt := range events.events {
			assert.NotEqual(schema.StatusTransferring, evt.Upload.Status)
		}
	})

	t.Run("Upload", func(t *testing.T) {
		assert := assert.New(t)
		events := new(recorder)
		cause := errors.New("connection reset")

		tk, err := task.New(schema.FromText("x"), schema.UploadOptions{Name: "x.txt"}, task.WithNotifier(events))
		require.NoError(t, err)

		_, err = tk.Run(context.TODO(), newResolver(t), &uploader{err: cause}, new(sessions))
		assert.ErrorIs(err, schema.ErrUpload)
		assert.ErrorIs(err, cause)
		snapshot := tk.Snapshot()
		assert.Equal(schema.StatusFailed, snapshot.Status)
		assert.ErrorIs(snapshot.Error, cause)
		assert.Equal([]schema.EventType{schema.EventStart, schema.EventError}, events.types())
		assert.ErrorIs(events.events[1].Err, schema.ErrUpload)
	})

	t.Run("Chunk", func(t *testing.T) {
		assert := assert.New(t)
		s := &sessions{err: errors.New("chunk rejected")}

		tk, err := task.New(schema.FromBytes([]byte("0123456789")), schema.UploadOptions{Name: "d.bin"}, task.WithChunkSize(4))
		require.NoError(t, err)

		_, err = tk.Run(context.TODO(), newResolver(t), new(uploader), s)
		assert.ErrorIs(err, schema.ErrUpload)
		assert.True(s.aborted)
		assert.False(s.finished)
	})

	t.Run("Options", func(t *testing.T) {
		_, err := task.New(schema.FromText("x"), schema.UploadOptions{}, task.WithChunkSize(0))
		assert.ErrorIs(t, err, schema.ErrValidation)
		_, err = task.New(schema.FromText("x"), schema.UploadOptions{}, task.WithId(""))
		assert.ErrorIs(t, err, schema.ErrValidation)
	})
}

func Test_Task_Cancel(t *testing.T) {
	t.Run("Transferring", func(t *testing.T) {
		assert := assert.New(t)
		events := new(recorder)
		up := &uploader{block: true, entered: make(chan struct{})}

		tk, err := task.New(schema.FromText("hello"), schema.UploadOptions{Name: "a.txt"}, task.WithNotifier(events))
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() {
			_, err := tk.Run(context.TODO(), newResolver(t), up, new(sessions))
			done <- err
		}()

		<-up.entered
		assert.True(tk.Cancel())
		assert.False(tk.Cancel())

		select {
		case err := <-done:
			assert.ErrorIs(err, schema.ErrCancelled)
		case <-time.After(5 * time.Second):
			t.Fatal("task did not stop")
		}

		assert.Equal(schema.StatusCancelled, tk.Snapshot().Status)
		assert.Equal([]schema.EventType{schema.EventStart, schema.EventProgress, schema.EventCancel}, events.types())
	})

	t.Run("Pending", func(t *testing.T) {
		assert := assert.New(t)
		events := new(recorder)
		up := new(uploader)

		tk, err := task.New(schema.FromText("hello"), schema.UploadOptions{Name: "a.txt"}, task.WithNotifier(events))
		require.NoError(t, err)
		assert.True(tk.Cancel())

		_, err = tk.Run(context.TODO(), newResolver(t), up, new(sessions))
		assert.ErrorIs(err, schema.ErrCancelled)
		assert.Zero(up.calls)
		assert.Equal([]schema.EventType{schema.EventCancel}, events.types())
	})

	t.Run("FromListener", func(t *testing.T) {
		assert := assert.New(t)
		up := &uploader{block: true, entered: make(chan struct{})}
		var tk *task.Task
		events := &cancelling{task: &tk}

		tk, _ = task.New(schema.FromText("hello"), schema.UploadOptions{Name: "a.txt"}, task.WithNotifier(events))
		_, err := tk.Run(context.TODO(), newResolver(t), up, new(sessions))
		assert.ErrorIs(err, schema.ErrCancelled)
		assert.Eventually(func() bool {
			return events.count() == 3
		}, 5*time.Second, 10*time.Millisecond)
	})
}

///////////////////////////////////////////////////////////////////////////////
// HELPERS

type zeros struct{}

func (zeros) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

// cancelling cancels the task on the first progress event
type cancelling struct {
	recorder
	task **task.Task
}

func (c *cancelling) Notify(ctx context.Context, evt schema.Event) {
	c.recorder.Notify(ctx, evt)
	if evt.Type == schema.EventProgress {
		(*c.task).Cancel()
	}
}

func (c *cancelling) count() int {
	return len(c.types())
}
