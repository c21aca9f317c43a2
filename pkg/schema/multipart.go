package schema

import (
	// Packages
	types "github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// UploadMode selects how chunks of a multipart session are accepted
type UploadMode string

// SessionState is the lifecycle state of a multipart session
type SessionState string

// MultipartStartRequest initializes a multipart session. TotalSize is -1 or
// zero when the size is not known in advance.
type MultipartStartRequest struct {
	FileName  string         `json:"fileName"`
	MimeType  string         `json:"mimeType"`
	TotalSize int64          `json:"totalSize,omitempty"`
	Mode      UploadMode     `json:"uploadMode"`
	ChunkSize int64          `json:"chunkSize,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	ParentId  string         `json:"parentId,omitempty"`
	ProjectId string         `json:"projectId,omitempty"`
}

type MultipartStartResponse struct {
	Id string `json:"id"`
}

// ChunkResponse is the remote acknowledgement of a chunk
type ChunkResponse struct {
	IsComplete     bool  `json:"isComplete"`
	File           *File `json:"file,omitempty"`
	NextChunkIndex *int  `json:"nextChunkIndex,omitempty"`
}

type MultipartFinishRequest struct {
	SessionId string `json:"sessionId"`
}

type MultipartFinishResponse struct {
	File *File `json:"file"`
}

// Session is a snapshot of a multipart session
type Session struct {
	Id        string       `json:"id"`
	Name      string       `json:"name"`
	MimeType  string       `json:"mimeType,omitempty"`
	TotalSize int64        `json:"totalSize"`
	Mode      UploadMode   `json:"mode"`
	State     SessionState `json:"state"`
	Received  []int        `json:"received,omitempty"`
	Bytes     int64        `json:"bytes"`
	Complete  bool         `json:"complete"`
	File      *File        `json:"file,omitempty"`
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	// Chunks may arrive in any order
	ModeChunked UploadMode = "CHUNKED"

	// Chunk indices must be strictly increasing and the session is finished
	// explicitly
	ModeStreaming UploadMode = "STREAMING"
)

const (
	SessionStarted      SessionState = "started"
	SessionAccumulating SessionState = "accumulating"
	SessionFinalizing   SessionState = "finalizing"
	SessionCompleted    SessionState = "completed"
	SessionAborted      SessionState = "aborted"
)

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (r MultipartStartRequest) String() string {
	return types.Stringify(r)
}

func (s Session) String() string {
	return types.Stringify(s)
}
