package schema

import (
	// Packages
	types "github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// UploadForm is the multipart form for a single-shot upload. Only the first
// file part is used.
type UploadForm struct {
	Files    []types.File `json:"file"`
	Name     string       `json:"name"`
	Size     string       `json:"size,omitempty"`
	Type     string       `json:"type,omitempty"`
	Metadata string       `json:"metadata,omitempty"`
}

// ChunkForm is the multipart form for one chunk of a multipart session
type ChunkForm struct {
	Chunks []types.File `json:"chunk"`
}

// DeleteRequest identifies a file by id or by URL
type DeleteRequest struct {
	UrlOrId string `json:"urlOrId"`
}
