package storage

import (
	"context"

	// Packages
	filezen "github.com/FileZen/filezen"
	schema "github.com/FileZen/filezen/pkg/schema"
	uuid "github.com/google/uuid"
	otel "github.com/mutablelogic/go-client/pkg/otel"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - MULTIPART

// StartMultipart starts a multipart session and returns its id
func (storage *Storage) StartMultipart(ctx context.Context, req schema.MultipartStartRequest) (_ string, err error) {
	child, endFunc := otel.StartSpan(storage.tracer, ctx, spanStorageName("StartMultipart"))
	defer func() { endFunc(err) }()

	return storage.sessions.Start(child, req)
}

// UploadPart sends one chunk of a multipart session. fn may be nil.
func (storage *Storage) UploadPart(ctx context.Context, id string, chunk []byte, index int, fn filezen.ProgressFunc) (_ *schema.ChunkResponse, err error) {
	child, endFunc := otel.StartSpan(storage.tracer, ctx, spanStorageName("UploadPart"))
	defer func() { endFunc(err) }()

	return storage.sessions.UploadPart(child, id, chunk, index, fn)
}

// FinishMultipart completes a multipart session and returns the file
func (storage *Storage) FinishMultipart(ctx context.Context, id string) (_ *schema.File, err error) {
	child, endFunc := otel.StartSpan(storage.tracer, ctx, spanStorageName("FinishMultipart"))
	defer func() { endFunc(err) }()

	return storage.sessions.Finish(child, id)
}

// AbortMultipart abandons a multipart session
func (storage *Storage) AbortMultipart(id string) error {
	return storage.sessions.Abort(id)
}

// Sessions returns the live multipart sessions
func (storage *Storage) Sessions() []schema.Session {
	return storage.sessions.List()
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - FILES

func (storage *Storage) GetFile(ctx context.Context, id string) (_ *schema.File, err error) {
	child, endFunc := otel.StartSpan(storage.tracer, ctx, spanStorageName("GetFile"))
	defer func() { endFunc(err) }()

	return storage.transfer.GetFile(child, id)
}

func (storage *Storage) ListFiles(ctx context.Context, req schema.ListFilesRequest) (_ *schema.FileList, err error) {
	child, endFunc := otel.StartSpan(storage.tracer, ctx, spanStorageName("ListFiles"))
	defer func() { endFunc(err) }()

	return storage.transfer.ListFiles(child, req)
}

// DeleteByUrl deletes the file served at a URL
func (storage *Storage) DeleteByUrl(ctx context.Context, url string) (err error) {
	if url == "" {
		return schema.ErrValidation.With("missing url")
	}

	child, endFunc := otel.StartSpan(storage.tracer, ctx, spanStorageName("DeleteByUrl"))
	defer func() { endFunc(err) }()

	return storage.transfer.DeleteByUrl(child, url)
}

// Delete a file by id when the argument is a UUID, or otherwise by URL
func (storage *Storage) Delete(ctx context.Context, urlOrId string) (err error) {
	if urlOrId == "" {
		return schema.ErrValidation.With("missing url or id")
	}

	child, endFunc := otel.StartSpan(storage.tracer, ctx, spanStorageName("Delete"))
	defer func() { endFunc(err) }()

	if _, err := uuid.Parse(urlOrId); err == nil {
		return storage.transfer.DeleteById(child, urlOrId)
	}
	return storage.transfer.DeleteByUrl(child, urlOrId)
}

// GenerateSignedUrl returns a URL which authorizes a request for a file key
// until it expires
func (storage *Storage) GenerateSignedUrl(req schema.SignRequest) (string, error) {
	return storage.transfer.Sign(req)
}
