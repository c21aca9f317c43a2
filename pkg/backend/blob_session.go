package backend

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	// Packages
	schema "github.com/FileZen/filezen/pkg/schema"
	uuid "github.com/google/uuid"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// session is a multipart upload in progress. Chunks are stored as separate
// objects and assembled into a file when the session completes.
type session struct {
	sync.Mutex
	schema.MultipartStartRequest
	id       string
	received map[int]int64
	bytes    int64
	next     int
	file     *schema.File
	touched  time.Time
	expired  bool
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// StartSession allocates a new multipart session
func (b *blobbackend) StartSession(ctx context.Context, req schema.MultipartStartRequest) (*schema.MultipartStartResponse, error) {
	switch {
	case req.FileName == "":
		return nil, httpresponse.ErrBadRequest.With("missing fileName")
	case req.Mode != schema.ModeChunked && req.Mode != schema.ModeStreaming:
		return nil, httpresponse.ErrBadRequest.Withf("invalid uploadMode %q", req.Mode)
	case req.TotalSize < 0:
		return nil, httpresponse.ErrBadRequest.With("negative totalSize")
	case b.maxSize > 0 && req.TotalSize > b.maxSize:
		return nil, schema.ErrPayloadTooLarge.Withf("totalSize exceeds the limit of %d bytes", b.maxSize)
	}

	// Remove abandoned sessions
	b.expire(ctx)

	s := &session{
		MultipartStartRequest: req,
		id:                    uuid.NewString(),
		received:              make(map[int]int64),
		touched:               time.Now(),
	}

	b.Lock()
	defer b.Unlock()
	b.sessions[s.id] = s

	// Return success
	return &schema.MultipartStartResponse{Id: s.id}, nil
}

// WriteChunk stores one chunk. A chunk already stored is acknowledged
// again without being rewritten. In chunked mode with a declared total the
// file is assembled as soon as all bytes have arrived.
func (b *blobbackend) WriteChunk(ctx context.Context, id string, index int, body io.Reader) (*schema.ChunkResponse, error) {
	s := b.session(id)
	if s == nil {
		return nil, schema.ErrUnknownSession.Withf("session %q", id)
	} else if index < 0 {
		return nil, schema.ErrChunkUpload.Withf("invalid chunk index %d", index)
	}

	s.Lock()
	defer s.Unlock()
	if s.expired {
		return nil, schema.ErrUnknownSession.Withf("session %q has expired", id)
	}
	s.touched = time.Now()

	// Already assembled or already received
	if s.file != nil {
		return s.response(), nil
	} else if _, exists := s.received[index]; exists {
		return s.response(), nil
	} else if s.Mode == schema.ModeStreaming && index != s.next {
		return nil, schema.ErrOutOfOrderChunk.Withf("expected chunk %d, got %d", s.next, index)
	}

	// Write the chunk
	if b.maxSize > 0 {
		body = io.LimitReader(body, b.maxSize-s.bytes+1)
	}
	key := b.chunkKey(id, index)
	n, err := b.writeChunk(ctx, key, body)
	if err != nil {
		return nil, err
	}
	if (b.maxSize > 0 && s.bytes+n > b.maxSize) || (s.TotalSize > 0 && s.bytes+n > s.TotalSize) {
		b.remove(ctx, key)
		return nil, schema.ErrChunkUpload.Withf("chunk %d exceeds the declared size", index)
	}
	s.received[index] = n
	s.bytes += n
	if index >= s.next {
		s.next = index + 1
	}

	// Assemble when all declared bytes have arrived
	if s.Mode == schema.ModeChunked && s.TotalSize > 0 && s.bytes == s.TotalSize {
		if file, err := b.assemble(ctx, s); err != nil {
			return nil, err
		} else {
			s.file = file
		}
	}

	// Return success
	return s.response(), nil
}

// CompleteSession assembles the file if required and removes the session.
// A chunked session with a declared total must have received every byte.
func (b *blobbackend) CompleteSession(ctx context.Context, id string) (*schema.File, error) {
	s := b.session(id)
	if s == nil {
		return nil, schema.ErrUnknownSession.Withf("session %q", id)
	}

	s.Lock()
	defer s.Unlock()
	if s.expired {
		return nil, schema.ErrUnknownSession.Withf("session %q has expired", id)
	}
	if s.file == nil {
		if s.Mode == schema.ModeChunked && s.TotalSize > 0 && s.bytes != s.TotalSize {
			return nil, schema.ErrSessionFinish.Withf("received %d of %d bytes", s.bytes, s.TotalSize)
		} else if file, err := b.assemble(ctx, s); err != nil {
			return nil, err
		} else {
			s.file = file
		}
	}

	b.Lock()
	delete(b.sessions, id)
	b.Unlock()

	// Return success
	return s.file, nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (b *blobbackend) session(id string) *session {
	b.Lock()
	defer b.Unlock()
	return b.sessions[id]
}

func (b *blobbackend) writeChunk(ctx context.Context, key string, body io.Reader) (int64, error) {
	w, err := b.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return 0, blobErr(err, key)
	}
	n, err := io.Copy(w, body)
	if err != nil {
		err = errors.Join(err, w.Close())
		b.remove(ctx, key)
		return 0, blobErr(err, key)
	} else if err := w.Close(); err != nil {
		b.remove(ctx, key)
		return 0, blobErr(err, key)
	}
	return n, nil
}

// assemble concatenates the chunks in index order into a new file and
// removes the chunk objects. Indices must be contiguous from zero.
func (b *blobbackend) assemble(ctx context.Context, s *session) (*schema.File, error) {
	indices := make([]int, 0, len(s.received))
	for index := range s.received {
		indices = append(indices, index)
	}
	sort.Ints(indices)
	for i, index := range indices {
		if i != index {
			return nil, schema.ErrSessionFinish.Withf("missing chunk %d", i)
		}
	}

	// Stream the chunks into the file
	pr, pw := io.Pipe()
	go func() {
		for _, index := range indices {
			r, err := b.bucket.NewReader(ctx, b.chunkKey(s.id, index), nil)
			if err != nil {
				pw.CloseWithError(blobErr(err, s.id))
				return
			}
			_, err = io.Copy(pw, r)
			r.Close()
			if err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		pw.Close()
	}()
	file, err := b.writeFile(ctx, uuid.NewString(), schema.CreateFileRequest{
		Name:      s.FileName,
		MimeType:  s.MimeType,
		ProjectId: s.ProjectId,
		ParentId:  s.ParentId,
		Metadata:  s.Metadata,
		Body:      pr,
	})
	pr.Close()
	if err != nil {
		return nil, err
	}

	// Remove the chunks
	for _, index := range indices {
		b.remove(ctx, b.chunkKey(s.id, index))
	}

	// Return success
	return file, nil
}

// expire removes sessions idle for longer than the session lifetime along
// with their chunks. Sessions with a request in progress are skipped.
func (b *blobbackend) expire(ctx context.Context) {
	if b.ttl <= 0 {
		return
	}

	var keys []string
	b.Lock()
	for id, s := range b.sessions {
		if !s.TryLock() {
			continue
		}
		if time.Since(s.touched) > b.ttl {
			s.expired = true
			delete(b.sessions, id)
			if s.file == nil {
				for index := range s.received {
					keys = append(keys, b.chunkKey(id, index))
				}
			}
		}
		s.Unlock()
	}
	b.Unlock()

	for _, key := range keys {
		b.remove(ctx, key)
	}
}

// remove deletes an object, logging a failure
func (b *blobbackend) remove(ctx context.Context, key string) {
	if err := b.bucket.Delete(ctx, key); err != nil {
		b.logger.Printf(ctx, "unable to remove %q: %v", key, err)
	}
}

func (s *session) response() *schema.ChunkResponse {
	response := &schema.ChunkResponse{
		IsComplete: s.file != nil,
		File:       s.file,
	}
	if s.file == nil {
		next := s.next
		response.NextChunkIndex = &next
	}
	return response
}
