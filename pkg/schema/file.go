package schema

import (
	"io"
	"time"

	// Packages
	types "github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type FileType string

type FileState string

// File is a file or folder as stored by the remote service
type File struct {
	Id        string         `json:"id"`
	CreatedAt time.Time      `json:"createdAt,omitzero"`
	UpdatedAt time.Time      `json:"updatedAt,omitzero"`
	Type      FileType       `json:"type,omitempty"`
	State     FileState      `json:"state,omitempty"`
	Name      string         `json:"name"`
	MimeType  string         `json:"mimeType,omitempty"`
	Size      int64          `json:"size"`
	Region    string         `json:"region,omitempty"`
	Url       string         `json:"url,omitempty"`
	CdnUrl    string         `json:"cdnUrl,omitempty"`
	ProjectId string         `json:"projectId,omitempty"`
	Project   *Project       `json:"project,omitempty"`
	ParentId  string         `json:"parentId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type Project struct {
	Id             string    `json:"id"`
	CreatedAt      time.Time `json:"createdAt,omitzero"`
	UpdatedAt      time.Time `json:"updatedAt,omitzero"`
	Name           string    `json:"name"`
	OrganisationId string    `json:"organisationId,omitempty"`
	Region         string    `json:"region,omitempty"`
}

// FileList is a page of files
type FileList struct {
	Data      []File `json:"data"`
	Page      int    `json:"page"`
	PageCount int    `json:"pageCount"`
	Count     int    `json:"count"`
	Total     int    `json:"total"`
}

// CreateFileRequest stores a new file
type CreateFileRequest struct {
	Name      string
	MimeType  string
	ProjectId string
	ParentId  string
	Metadata  map[string]any
	Body      io.Reader `json:"-"`
}

type ListFilesRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

type DeleteByUrlRequest struct {
	Url string `json:"url"`
}

type DeleteResponse struct {
	Success bool `json:"success"`
}

// SignRequest asks for a signed URL. ExpiresIn is in seconds; zero selects
// DefaultExpiresIn.
type SignRequest struct {
	Path      string `json:"path"`
	FileKey   string `json:"fileKey"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

type SignResponse struct {
	Url string `json:"url"`
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	FileTypeFile   FileType = "file"
	FileTypeFolder FileType = "folder"
)

const (
	FileStateDeleting  FileState = "deleting"
	FileStateUploading FileState = "uploading"
	FileStateCompleted FileState = "completed"
)

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (f File) String() string {
	return types.Stringify(f)
}

func (l FileList) String() string {
	return types.Stringify(l)
}

func (r SignRequest) String() string {
	return types.Stringify(r)
}
