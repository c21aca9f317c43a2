// Package multipart tracks multipart upload sessions on the client side.
//
// A session is started on the remote service, accumulates acknowledged
// chunks and is finished with a handshake which returns the file. The table
// enforces chunk ordering for streaming sessions, makes a repeated chunk an
// idempotent no-op, and removes sessions once they complete or abort.
package multipart

import (
	"context"
	"slices"
	"sync"

	// Packages
	filezen "github.com/FileZen/filezen"
	schema "github.com/FileZen/filezen/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Client is the part of the transfer client used by sessions
type Client interface {
	MultipartStart(context.Context, schema.MultipartStartRequest) (string, error)
	MultipartUploadChunk(ctx context.Context, session string, index int, chunk []byte, fn filezen.ProgressFunc) (*schema.ChunkResponse, error)
	MultipartFinish(ctx context.Context, session string) (*schema.File, error)
}

// Table is the set of live sessions, keyed by session id
type Table struct {
	sync.Mutex
	client   Client
	logger   filezen.Logger
	sessions map[string]*session
}

type session struct {
	req      schema.MultipartStartRequest
	state    schema.SessionState
	received map[int]int64
	inflight map[int]struct{}
	highest  int
	bytes    int64
	complete bool
	file     *schema.File
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New returns an empty session table. The logger may be nil.
func New(client Client, logger filezen.Logger) *Table {
	return &Table{
		client:   client,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Start a session on the remote service and return its id. A zero mode
// selects chunked uploads; a total size of zero or less means unknown.
func (t *Table) Start(ctx context.Context, req schema.MultipartStartRequest) (string, error) {
	if req.FileName == "" {
		return "", schema.ErrValidation.With("missing file name")
	}
	switch req.Mode {
	case "":
		req.Mode = schema.ModeChunked
	case schema.ModeChunked, schema.ModeStreaming:
		// Valid
	default:
		return "", schema.ErrValidation.Withf("invalid upload mode %q", req.Mode)
	}
	if req.TotalSize <= 0 {
		req.TotalSize = -1
	}

	// Allocate the session remotely
	id, err := t.client.MultipartStart(ctx, req)
	if err != nil {
		return "", schema.ErrSessionCreate.Wrap(err)
	} else if id == "" {
		return "", schema.ErrSessionCreate.With("empty session id")
	}

	t.Lock()
	defer t.Unlock()
	if _, exists := t.sessions[id]; exists {
		return "", schema.ErrSessionCreate.Withf("duplicate session id %q", id)
	}
	t.sessions[id] = &session{
		req:      req,
		state:    schema.SessionAccumulating,
		received: make(map[int]int64),
		inflight: make(map[int]struct{}),
		highest:  -1,
	}

	// Return success
	return id, nil
}

// UploadPart sends one chunk. A chunk index which has already been
// acknowledged returns the current session state without being resent. The
// response reports whether the session has received all its data.
func (t *Table) UploadPart(ctx context.Context, id string, chunk []byte, index int, fn filezen.ProgressFunc) (*schema.ChunkResponse, error) {
	t.Lock()
	s, exists := t.sessions[id]
	switch {
	case !exists:
		t.Unlock()
		return nil, schema.ErrChunkUpload.Withf("unknown session %q", id)
	case s.state != schema.SessionAccumulating:
		t.Unlock()
		return nil, schema.ErrChunkUpload.Withf("session %q is %s", id, s.state)
	case index < 0:
		t.Unlock()
		return nil, schema.ErrChunkUpload.Withf("invalid chunk index %d", index)
	}
	if _, exists := s.received[index]; exists {
		defer t.Unlock()
		return s.response(nil), nil
	}
	if _, exists := s.inflight[index]; exists {
		t.Unlock()
		return nil, schema.ErrChunkUpload.Withf("chunk %d is already being uploaded", index)
	}
	if s.complete {
		t.Unlock()
		return nil, schema.ErrChunkUpload.Withf("session %q has received all its data", id)
	}
	if s.req.Mode == schema.ModeStreaming && index <= s.highest {
		t.Unlock()
		return nil, schema.ErrOutOfOrderChunk.Withf("chunk %d follows chunk %d", index, s.highest)
	}
	previous := s.highest
	s.highest = max(s.highest, index)
	s.inflight[index] = struct{}{}
	t.Unlock()

	// Send the chunk
	response, err := t.client.MultipartUploadChunk(ctx, id, index, chunk, fn)
	if err == nil && response == nil {
		err = schema.ErrChunkUpload.Withf("chunk %d was not acknowledged", index)
	}

	t.Lock()
	defer t.Unlock()
	delete(s.inflight, index)
	if err != nil {
		// Allow the chunk to be retried
		if s.highest == index {
			s.highest = max(previous, s.maxIndex())
		}
		return nil, schema.ErrChunkUpload.Wrap(err)
	} else if s.state != schema.SessionAccumulating {
		return nil, schema.ErrChunkUpload.Withf("session %q is %s", id, s.state)
	}

	// Acknowledge the chunk
	s.received[index] = int64(len(chunk))
	s.bytes += int64(len(chunk))
	if response.IsComplete || (s.req.TotalSize > 0 && s.bytes >= s.req.TotalSize) {
		s.complete = true
	}
	if response.File != nil {
		s.file = response.File
	}

	// Return success
	return s.response(response.NextChunkIndex), nil
}

// Finish completes the session with the remote service and returns the
// file. A session with a declared size must have received all its data.
// The session is removed from the table whether or not the handshake
// succeeds.
func (t *Table) Finish(ctx context.Context, id string) (*schema.File, error) {
	t.Lock()
	s, exists := t.sessions[id]
	switch {
	case !exists:
		t.Unlock()
		return nil, schema.ErrUnknownSession.Withf("session %q", id)
	case s.state == schema.SessionFinalizing:
		t.Unlock()
		return nil, schema.ErrSessionFinish.Withf("session %q is already finishing", id)
	case len(s.inflight) > 0:
		t.Unlock()
		return nil, schema.ErrSessionFinish.Withf("session %q has %d chunks in flight", id, len(s.inflight))
	case s.req.TotalSize > 0 && !s.complete:
		t.Unlock()
		return nil, schema.ErrSessionFinish.Withf("session %q received %d of %d bytes", id, s.bytes, s.req.TotalSize)
	}
	s.state = schema.SessionFinalizing
	t.Unlock()

	// Handshake
	file, err := t.client.MultipartFinish(ctx, id)

	t.Lock()
	defer t.Unlock()
	delete(t.sessions, id)
	if err != nil {
		s.state = schema.SessionAborted
		if t.logger != nil {
			t.logger.Printf(ctx, "multipart session %q aborted: %v", id, err)
		}
		return nil, schema.ErrSessionFinish.Wrap(err)
	}
	s.state = schema.SessionCompleted
	s.file = file

	// Return success
	return file, nil
}

// Abort abandons a session. Chunks already sent are not removed remotely.
func (t *Table) Abort(id string) error {
	t.Lock()
	defer t.Unlock()
	s, exists := t.sessions[id]
	if !exists {
		return schema.ErrUnknownSession.Withf("session %q", id)
	}
	s.state = schema.SessionAborted
	delete(t.sessions, id)
	return nil
}

// Get returns a snapshot of a live session
func (t *Table) Get(id string) (schema.Session, bool) {
	t.Lock()
	defer t.Unlock()
	if s, exists := t.sessions[id]; exists {
		return s.snapshot(id), true
	}
	return schema.Session{}, false
}

// List returns snapshots of all live sessions, ordered by id
func (t *Table) List() []schema.Session {
	t.Lock()
	defer t.Unlock()
	result := make([]schema.Session, 0, len(t.sessions))
	for id, s := range t.sessions {
		result = append(result, s.snapshot(id))
	}
	slices.SortFunc(result, func(a, b schema.Session) int {
		switch {
		case a.Id < b.Id:
			return -1
		case a.Id > b.Id:
			return 1
		default:
			return 0
		}
	})
	return result
}

// Len returns the number of live sessions
func (t *Table) Len() int {
	t.Lock()
	defer t.Unlock()
	return len(t.sessions)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (s *session) maxIndex() int {
	result := -1
	for index := range s.received {
		result = max(result, index)
	}
	for index := range s.inflight {
		result = max(result, index)
	}
	return result
}

func (s *session) response(next *int) *schema.ChunkResponse {
	if next == nil && !s.complete {
		n := s.highest + 1
		next = &n
	}
	return &schema.ChunkResponse{
		IsComplete:     s.complete,
		File:           s.file,
		NextChunkIndex: next,
	}
}

func (s *session) snapshot(id string) schema.Session {
	received := make([]int, 0, len(s.received))
	for index := range s.received {
		received = append(received, index)
	}
	slices.Sort(received)
	return schema.Session{
		Id:        id,
		Name:      s.req.FileName,
		MimeType:  s.req.MimeType,
		TotalSize: s.req.TotalSize,
		Mode:      s.req.Mode,
		State:     s.state,
		Received:  received,
		Bytes:     s.bytes,
		Complete:  s.complete,
		File:      s.file,
	}
}
