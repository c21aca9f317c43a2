package task

import (
	"context"
	"errors"
	"io"

	// Packages
	schema "github.com/FileZen/filezen/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// chunked sends a buffered payload as a chunked session with a declared size
func (t *Task) chunked(ctx context.Context, payload *schema.Payload, sessions Sessions) (*schema.File, error) {
	id, err := sessions.Start(ctx, t.startRequest(payload, schema.ModeChunked))
	if err != nil {
		return nil, err
	}

	for index, offset := 0, int64(0); offset < payload.Size; index++ {
		end := min(offset+t.chunkSize, payload.Size)
		if err := t.part(ctx, sessions, id, payload.Data[offset:end], index, offset, payload.Size); err != nil {
			sessions.Abort(id)
			return nil, err
		}
		offset = end
	}

	return t.finish(ctx, sessions, id)
}

// stream reads a streaming payload one chunk at a time into a streaming
// session, and finishes the session at the end of the stream
func (t *Task) stream(ctx context.Context, payload *schema.Payload, sessions Sessions) (*schema.File, error) {
	id, err := sessions.Start(ctx, t.startRequest(payload, schema.ModeStreaming))
	if err != nil {
		return nil, err
	}

	buf := make([]byte, t.chunkSize)
	for index, offset := 0, int64(0); ; index++ {
		n, err := io.ReadFull(payload.Reader, buf)
		if n > 0 {
			if err := t.part(ctx, sessions, id, buf[:n], index, offset, payload.Size); err != nil {
				sessions.Abort(id)
				return nil, err
			}
			offset += int64(n)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		} else if err != nil {
			sessions.Abort(id)
			return nil, err
		}
	}

	return t.finish(ctx, sessions, id)
}

// part sends one chunk, reporting progress relative to the whole payload
func (t *Task) part(ctx context.Context, sessions Sessions, id string, chunk []byte, index int, offset, total int64) error {
	_, err := sessions.UploadPart(ctx, id, chunk, index, func(written, _ int64) {
		t.progress(offset+written, total)
	})
	return err
}

func (t *Task) finish(ctx context.Context, sessions Sessions, id string) (*schema.File, error) {
	file, err := sessions.Finish(ctx, id)
	if err != nil {
		sessions.Abort(id)
		return nil, err
	}
	return file, nil
}

func (t *Task) startRequest(payload *schema.Payload, mode schema.UploadMode) schema.MultipartStartRequest {
	return schema.MultipartStartRequest{
		FileName:  payload.Name,
		MimeType:  payload.MimeType,
		TotalSize: payload.Size,
		Mode:      mode,
		ChunkSize: t.chunkSize,
		Metadata:  t.opts.Metadata,
		ParentId:  t.opts.FolderId,
		ProjectId: t.opts.ProjectId,
	}
}
