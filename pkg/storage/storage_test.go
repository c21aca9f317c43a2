package storage_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	// Packages
	filezen "github.com/FileZen/filezen"
	backend "github.com/FileZen/filezen/pkg/backend"
	httpclient "github.com/FileZen/filezen/pkg/httpclient"
	httphandler "github.com/FileZen/filezen/pkg/httphandler"
	schema "github.com/FileZen/filezen/pkg/schema"
	storage "github.com/FileZen/filezen/pkg/storage"
	httprouter "github.com/mutablelogic/go-server/pkg/httprouter"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
	noop "go.opentelemetry.io/otel/metric/noop"
)

////////////////////////////////////////////////////////////////////////////////
// TEST SERVER

// newTestStorage returns storage connected to an API server over a memory
// bucket
func newTestStorage(t *testing.T, opts ...storage.Opt) (*storage.Storage, *httptest.Server) {
	t.Helper()
	b, err := backend.NewBlobBackend(context.Background(), "mem://filezen")
	require.NoError(t, err)

	router, err := httprouter.NewRouter(context.Background(), http.NewServeMux(), "", "*", "filezen", "test")
	require.NoError(t, err)
	srv := httptest.NewServer(router)
	require.NoError(t, httphandler.RegisterHandlers(b, router))

	c, err := httpclient.New(srv.URL)
	require.NoError(t, err)

	opts = append([]storage.Opt{storage.WithMeter(noop.NewMeterProvider().Meter("test"))}, opts...)
	s, err := storage.New(context.Background(), c, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
		srv.Close()
		b.Close()
	})
	return s, srv
}

// recorder records the events delivered to a listener
type recorder struct {
	sync.Mutex
	events  []schema.EventType
	uploads []schema.Upload
	changes [][]schema.Upload
}

func (r *recorder) add(evt schema.EventType, upload schema.Upload) {
	r.Lock()
	defer r.Unlock()
	r.events = append(r.events, evt)
	r.uploads = append(r.uploads, upload)
}

func (r *recorder) OnUploadStart(u schema.Upload) { r.add(schema.EventStart, u) }
func (r *recorder) OnUploadProgress(u schema.Upload, _ schema.Progress) {
	r.add(schema.EventProgress, u)
}
func (r *recorder) OnUploadComplete(u schema.Upload)       { r.add(schema.EventComplete, u) }
func (r *recorder) OnUploadError(u schema.Upload, _ error) { r.add(schema.EventError, u) }
func (r *recorder) OnUploadCancel(u schema.Upload)         { r.add(schema.EventCancel, u) }
func (r *recorder) OnUploadsChange(uploads []schema.Upload) {
	r.Lock()
	defer r.Unlock()
	r.changes = append(r.changes, uploads)
}

func (r *recorder) has(evt schema.EventType) bool {
	r.Lock()
	defer r.Unlock()
	for _, e := range r.events {
		if e == evt {
			return true
		}
	}
	return false
}

type zeros struct{}

func (zeros) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

func download(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE TESTS

func Test_Storage_New(t *testing.T) {
	assert := assert.New(t)

	t.Run("NilTransfer", func(t *testing.T) {
		_, err := storage.New(context.TODO(), nil)
		assert.ErrorIs(err, schema.ErrValidation)
	})

	t.Run("InvalidOptions", func(t *testing.T) {
		c, err := httpclient.New("http://localhost")
		require.NoError(t, err)
		for _, opt := range []storage.Opt{
			storage.WithConcurrency(0),
			storage.WithMaxQueue(-1),
			storage.WithMaxPayloadSize(0),
			storage.WithChunkSize(-1),
			storage.WithRetention(-1),
			storage.WithLogger(nil),
			storage.WithMeter(nil),
		} {
			_, err := storage.New(context.TODO(), c, opt)
			assert.ErrorIs(err, schema.ErrValidation)
		}
	})

	t.Run("NewWithApiKey", func(t *testing.T) {
		_, err := storage.NewWithApiKey(context.TODO(), "")
		assert.ErrorIs(err, schema.ErrValidation)

		s, err := storage.NewWithApiKey(context.TODO(), "key")
		require.NoError(t, err)
		assert.NoError(s.Close())
	})

	t.Run("Close", func(t *testing.T) {
		s, _ := newTestStorage(t)
		assert.NoError(s.Close())
		assert.NoError(s.Close())

		_, err := s.Upload(context.TODO(), schema.FromText("x"), filezen.WithName("x.txt"))
		assert.ErrorIs(err, schema.ErrValidation)
	})
}

////////////////////////////////////////////////////////////////////////////////
// UPLOAD TESTS

func Test_Storage_Upload(t *testing.T) {
	assert := assert.New(t)
	s, _ := newTestStorage(t)
	events := new(recorder)
	require.NoError(t, s.AddListener(events))

	upload, err := s.Upload(context.TODO(), schema.FromText("Hello, World!"), filezen.WithName("a.txt"), filezen.WithMeta("k", "v"))
	require.NoError(t, err)
	assert.Equal(schema.StatusCompleted, upload.Status)
	assert.Equal(int64(13), upload.Size)
	assert.Equal("text/plain", upload.MimeType)
	require.NotNil(t, upload.File)
	assert.Equal("a.txt", upload.File.Name)
	assert.Equal("v", upload.File.Metadata["k"])
	assert.Equal("Hello, World!", download(t, upload.File.Url))

	// Events and active set
	assert.Equal(schema.EventStart, events.events[0])
	assert.Equal(schema.EventComplete, events.events[len(events.events)-1])
	require.Len(t, events.changes, 2)
	assert.Len(events.changes[0], 1)
	assert.Empty(events.changes[1])
	assert.Empty(s.ActiveUploads())
	all := s.AllUploads()
	require.Len(t, all, 1)
	assert.Equal(upload.LocalId, all[0].LocalId)

	// Removed listener receives nothing more
	assert.True(s.RemoveListener(events))
	assert.False(s.RemoveListener(events))
	n := len(events.events)
	_, err = s.Upload(context.TODO(), schema.FromBytes([]byte{1}), filezen.WithName("b.bin"))
	assert.NoError(err)
	assert.Len(events.events, n)
}

func Test_Storage_UploadMultipart(t *testing.T) {
	assert := assert.New(t)
	s, _ := newTestStorage(t, storage.WithChunkSize(4))

	upload, err := s.Upload(context.TODO(), schema.FromText("0123456789"), filezen.WithName("digits.txt"))
	require.NoError(t, err)
	assert.Equal(schema.StatusCompleted, upload.Status)
	require.NotNil(t, upload.File)
	assert.Equal(int64(10), upload.File.Size)
	assert.Equal("0123456789", download(t, upload.File.Url))
	assert.Empty(s.Sessions())

	// Streaming a reader of unknown length
	upload, err = s.Upload(context.TODO(), schema.FromFile(strings.NewReader("abcdefghij")), filezen.WithName("letters.txt"), filezen.WithStreaming())
	require.NoError(t, err)
	assert.Equal("abcdefghij", download(t, upload.File.Url))
}

func Test_Storage_TooLarge(t *testing.T) {
	assert := assert.New(t)
	s, _ := newTestStorage(t)
	events := new(recorder)
	require.NoError(t, s.AddListener(events))

	// One byte over the default limit
	src := schema.FromFile(io.LimitReader(zeros{}, schema.MaxPayloadSize+1))
	upload, err := s.Upload(context.TODO(), src, filezen.WithName("big.bin"))
	assert.ErrorIs(err, schema.ErrPayloadTooLarge)
	assert.ErrorIs(err, schema.ErrResolution)
	assert.Equal(schema.StatusFailed, upload.Status)
	assert.Equal([]schema.EventType{schema.EventStart, schema.EventError}, events.events)
	for _, u := range events.uploads {
		assert.NotEqual(schema.StatusTransferring, u.Status)
	}
}

func Test_Storage_Bulk(t *testing.T) {
	assert := assert.New(t)
	s, srv := newTestStorage(t, storage.WithConcurrency(2))

	outcomes, err := s.BulkUpload(context.TODO(), []schema.BulkItem{
		{Source: schema.FromText("A"), Options: schema.UploadOptions{Name: "a.txt"}},
		{Source: schema.FromURL(srv.URL + "/missing.png")},
		{Source: schema.FromText("C"), Options: schema.UploadOptions{Name: "c.txt"}},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.NoError(outcomes[0].Err)
	assert.Equal("a.txt", outcomes[0].File.Name)
	assert.ErrorIs(outcomes[1].Err, schema.ErrFetch)
	assert.Equal(schema.StatusFailed, outcomes[1].Upload.Status)
	assert.NoError(outcomes[2].Err)
	assert.Equal("c.txt", outcomes[2].File.Name)
	assert.Len(s.AllUploads(), 3)

	t.Run("Empty", func(t *testing.T) {
		events := new(recorder)
		require.NoError(t, s.AddListener(events))
		defer s.RemoveListener(events)

		_, err := s.BulkUpload(context.TODO(), nil)
		assert.ErrorIs(err, schema.ErrValidation)
		assert.Empty(s.ActiveUploads())
		assert.Empty(events.changes)
	})

	t.Run("TooMany", func(t *testing.T) {
		s, _ := newTestStorage(t, storage.WithConcurrency(1), storage.WithMaxQueue(1))
		items := make([]schema.BulkItem, 3)
		_, err := s.BulkUpload(context.TODO(), items)
		assert.ErrorIs(err, schema.ErrValidation)
		assert.Empty(s.AllUploads())
	})
}

func Test_Storage_Retention(t *testing.T) {
	assert := assert.New(t)
	s, _ := newTestStorage(t, storage.WithRetention(2))

	var last string
	for _, name := range []string{"a", "b", "c"} {
		upload, err := s.Upload(context.TODO(), schema.FromText(name), filezen.WithName(name))
		require.NoError(t, err)
		last = upload.LocalId
	}
	all := s.AllUploads()
	assert.Len(all, 2)
	assert.Equal(last, all[1].LocalId)
}

////////////////////////////////////////////////////////////////////////////////
// LISTENER TESTS

type panicking struct {
	filezen.NopListener
}

func (*panicking) OnUploadStart(schema.Upload) {
	panic("listener fault")
}

func Test_Storage_PanickingListener(t *testing.T) {
	assert := assert.New(t)
	s, _ := newTestStorage(t)
	events := new(recorder)
	require.NoError(t, s.AddListener(new(panicking)))
	require.NoError(t, s.AddListener(events))

	upload, err := s.Upload(context.TODO(), schema.FromText("x"), filezen.WithName("x.txt"))
	require.NoError(t, err)
	assert.Equal(schema.StatusCompleted, upload.Status)
	assert.True(events.has(schema.EventStart))
	assert.True(events.has(schema.EventComplete))
}

// canceller cancels uploads on their first progress event
type canceller struct {
	recorder
	storage *storage.Storage
}

func (c *canceller) OnUploadProgress(u schema.Upload, p schema.Progress) {
	c.recorder.OnUploadProgress(u, p)
	c.storage.Cancel(u.LocalId)
}

func Test_Storage_Cancel(t *testing.T) {
	assert := assert.New(t)
	s, _ := newTestStorage(t)
	events := &canceller{storage: s}
	require.NoError(t, s.AddListener(events))

	upload, err := s.Upload(context.TODO(), schema.FromText("Hello, World!"), filezen.WithName("a.txt"))
	assert.ErrorIs(err, schema.ErrCancelled)
	assert.Equal(schema.StatusCancelled, upload.Status)
	assert.Eventually(func() bool {
		return events.has(schema.EventCancel)
	}, 5*time.Second, 10*time.Millisecond)
	assert.False(events.has(schema.EventComplete))
	assert.False(events.has(schema.EventError))

	// No longer active
	assert.ErrorIs(s.Cancel(upload.LocalId), schema.ErrNotFound)
}

////////////////////////////////////////////////////////////////////////////////
// MULTIPART AND FILE TESTS

func Test_Storage_Multipart(t *testing.T) {
	assert := assert.New(t)
	ctx := context.TODO()
	s, _ := newTestStorage(t)

	id, err := s.StartMultipart(ctx, schema.MultipartStartRequest{FileName: "m.txt", TotalSize: 6})
	require.NoError(t, err)
	require.Len(t, s.Sessions(), 1)

	_, err = s.UploadPart(ctx, id, []byte("def"), 1, nil)
	require.NoError(t, err)
	resp, err := s.UploadPart(ctx, id, []byte("abc"), 0, nil)
	require.NoError(t, err)
	assert.True(resp.IsComplete)

	file, err := s.FinishMultipart(ctx, id)
	require.NoError(t, err)
	assert.Equal("abcdef", download(t, file.Url))
	assert.Empty(s.Sessions())

	_, err = s.FinishMultipart(ctx, id)
	assert.ErrorIs(err, schema.ErrUnknownSession)

	// Abort
	id, err = s.StartMultipart(ctx, schema.MultipartStartRequest{FileName: "n.txt", Mode: schema.ModeStreaming})
	require.NoError(t, err)
	assert.NoError(s.AbortMultipart(id))
	assert.ErrorIs(s.AbortMultipart(id), schema.ErrUnknownSession)
}

func Test_Storage_Files(t *testing.T) {
	assert := assert.New(t)
	ctx := context.TODO()
	s, _ := newTestStorage(t)

	var files []*schema.File
	for _, name := range []string{"a", "b", "c"} {
		upload, err := s.Upload(ctx, schema.FromText(name), filezen.WithName(name))
		require.NoError(t, err)
		files = append(files, upload.File)
	}

	list, err := s.ListFiles(ctx, schema.ListFilesRequest{Limit: 2})
	require.NoError(t, err)
	assert.Equal(3, list.Total)
	assert.Len(list.Data, 2)

	file, err := s.GetFile(ctx, files[0].Id)
	require.NoError(t, err)
	assert.Equal("a", file.Name)

	// Delete by id and by url
	require.NoError(t, s.Delete(ctx, files[0].Id))
	require.NoError(t, s.Delete(ctx, files[1].Url))
	require.NoError(t, s.DeleteByUrl(ctx, files[2].Url))
	_, err = s.GetFile(ctx, files[0].Id)
	assert.Error(err)

	list, err = s.ListFiles(ctx, schema.ListFilesRequest{})
	require.NoError(t, err)
	assert.Zero(list.Total)

	assert.ErrorIs(s.Delete(ctx, ""), schema.ErrValidation)
	assert.ErrorIs(s.DeleteByUrl(ctx, ""), schema.ErrValidation)

	// Signing requires an access key and secret
	_, err = s.GenerateSignedUrl(schema.SignRequest{Path: "/files/upload", FileKey: "a"})
	assert.ErrorIs(err, schema.ErrValidation)
}
