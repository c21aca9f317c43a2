package backend

import (
	"context"
	"io"
	"net/url"

	// Packages
	schema "github.com/FileZen/filezen/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Backend stores files and multipart sessions for the local API server
type Backend interface {
	io.Closer

	// Name returns the name of the backend
	Name() string

	// URL returns the backend destination URL
	URL() *url.URL

	// Create a file from a body
	CreateFile(context.Context, schema.CreateFileRequest) (*schema.File, error)

	// Get file metadata
	GetFile(ctx context.Context, id string) (*schema.File, error)

	// Read file content. Caller must close the returned reader.
	ReadFile(ctx context.Context, id string) (io.ReadCloser, *schema.File, error)

	// List files, oldest first
	ListFiles(context.Context, schema.ListFilesRequest) (*schema.FileList, error)

	// Delete a file, returning its metadata
	DeleteFile(ctx context.Context, id string) (*schema.File, error)

	// Multipart sessions
	StartSession(context.Context, schema.MultipartStartRequest) (*schema.MultipartStartResponse, error)
	WriteChunk(ctx context.Context, session string, index int, body io.Reader) (*schema.ChunkResponse, error)
	CompleteSession(ctx context.Context, session string) (*schema.File, error)
}
