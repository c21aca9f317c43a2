package schema

////////////////////////////////////////////////////////////////////////////////
// TYPES

// EventType names a lifecycle notification
type EventType string

// Event is delivered to listeners. Upload is always set except for
// EventChange, which carries the active uploads instead.
type Event struct {
	Type     EventType `json:"type"`
	Upload   Upload    `json:"upload,omitzero"`
	Progress Progress  `json:"progress,omitzero"`
	Err      error     `json:"-"`
	Uploads  []Upload  `json:"uploads,omitempty"`
}

////////////////////////////////////////////////////////////////////////////////
// CONSTANTS

const (
	// EventStart is sent once when the task begins resolving its source
	EventStart EventType = "start"

	// EventProgress is sent zero or more times while transferring
	EventProgress EventType = "progress"

	// EventComplete is sent once when the remote confirms the file
	EventComplete EventType = "complete"

	// EventError is sent once when the task fails. Err holds the cause.
	EventError EventType = "error"

	// EventCancel is sent once when the task is cancelled. No further
	// events are sent for the task.
	EventCancel EventType = "cancel"

	// EventChange is sent when the set of active uploads changes
	EventChange EventType = "change"
)
