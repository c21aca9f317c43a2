package schema

import (
	"time"

	// Packages
	types "github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Status is the lifecycle state of an upload
type Status string

// Progress of a transfer. Total is zero when the size is not known.
type Progress struct {
	Bytes   int64   `json:"bytes"`
	Total   int64   `json:"total,omitempty"`
	Percent float64 `json:"percent"`
}

// Upload is a point-in-time snapshot of an upload task
type Upload struct {
	LocalId  string    `json:"localId"`
	Name     string    `json:"name,omitempty"`
	MimeType string    `json:"mimeType,omitempty"`
	Size     int64     `json:"size,omitempty"`
	Status   Status    `json:"status"`
	Progress Progress  `json:"progress"`
	File     *File     `json:"file,omitempty"`
	Error    error     `json:"-"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated,omitzero"`
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	StatusPending      Status = "pending"
	StatusResolving    Status = "resolving"
	StatusTransferring Status = "transferring"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewProgress returns progress with the percentage calculated from bytes and total
func NewProgress(bytes, total int64) Progress {
	p := Progress{Bytes: bytes, Total: total}
	if total > 0 {
		p.Percent = float64(bytes) * 100 / float64(total)
		if p.Percent > 100 {
			p.Percent = 100
		}
	}
	return p
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (u Upload) String() string {
	return types.Stringify(u)
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Terminal returns true for completed, failed and cancelled
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Active returns true when the upload has not reached a terminal state
func (u Upload) Active() bool {
	return !u.Status.Terminal()
}
