package filezen

import (
	"context"
	"io"

	// Packages
	schema "github.com/FileZen/filezen/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// ProgressFunc receives the number of bytes written so far and the total,
// which is zero or negative when unknown
type ProgressFunc func(written, total int64)

////////////////////////////////////////////////////////////////////////////////
// INTERFACES

// Fetcher retrieves the content of a remote URL, reading at most limit bytes
type Fetcher interface {
	Fetch(ctx context.Context, url string, limit int64) ([]byte, string, error)
}

// Transfer is the boundary to the remote storage service
type Transfer interface {
	io.Closer
	Fetcher

	// Single-shot upload of a payload
	UploadOnce(context.Context, *schema.Payload, schema.UploadOptions, ProgressFunc) (*schema.File, error)

	// Multipart sessions
	MultipartStart(context.Context, schema.MultipartStartRequest) (string, error)
	MultipartUploadChunk(ctx context.Context, session string, index int, chunk []byte, fn ProgressFunc) (*schema.ChunkResponse, error)
	MultipartFinish(ctx context.Context, session string) (*schema.File, error)

	// Files
	GetFile(ctx context.Context, id string) (*schema.File, error)
	ListFiles(context.Context, schema.ListFilesRequest) (*schema.FileList, error)
	DeleteById(ctx context.Context, id string) error
	DeleteByUrl(ctx context.Context, url string) error

	// Return a signed URL
	Sign(schema.SignRequest) (string, error)
}

// Resolver turns a source into a payload
type Resolver interface {
	Resolve(context.Context, schema.Source, schema.UploadOptions) (*schema.Payload, error)
}

// Listener receives upload lifecycle notifications. Methods are called
// synchronously and should return quickly. Embed NopListener to implement
// only the methods of interest.
type Listener interface {
	OnUploadStart(schema.Upload)
	OnUploadProgress(schema.Upload, schema.Progress)
	OnUploadComplete(schema.Upload)
	OnUploadError(schema.Upload, error)
	OnUploadCancel(schema.Upload)
	OnUploadsChange([]schema.Upload)
}

// Logger is the logging contract shared with go-server loggers
type Logger interface {
	Print(context.Context, ...any)
	Printf(context.Context, string, ...any)
}

// NopListener implements Listener with methods which do nothing
type NopListener struct{}

var _ Listener = NopListener{}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (NopListener) OnUploadStart(schema.Upload)                     {}
func (NopListener) OnUploadProgress(schema.Upload, schema.Progress) {}
func (NopListener) OnUploadComplete(schema.Upload)                  {}
func (NopListener) OnUploadError(schema.Upload, error)              {}
func (NopListener) OnUploadCancel(schema.Upload)                    {}
func (NopListener) OnUploadsChange([]schema.Upload)                 {}
