package schema

import (
	"errors"
	"fmt"
	"net/http"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Err is the kind of a failure. Errors returned by this module wrap exactly
// one Err, so callers can branch with errors.Is(err, schema.ErrFetch) and
// still reach the underlying cause.
type Err int

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	ErrSuccess Err = iota
	ErrValidation
	ErrDecode
	ErrFetch
	ErrPayloadTooLarge
	ErrResolution
	ErrUpload
	ErrSessionCreate
	ErrChunkUpload
	ErrOutOfOrderChunk
	ErrSessionFinish
	ErrUnknownSession
	ErrCancelled
	ErrNotFound
	ErrUnauthorized
)

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (e Err) Error() string {
	switch e {
	case ErrSuccess:
		return "success"
	case ErrValidation:
		return "validation error"
	case ErrDecode:
		return "decode error"
	case ErrFetch:
		return "fetch error"
	case ErrPayloadTooLarge:
		return "payload too large"
	case ErrResolution:
		return "resolution error"
	case ErrUpload:
		return "upload error"
	case ErrSessionCreate:
		return "session create error"
	case ErrChunkUpload:
		return "chunk upload error"
	case ErrOutOfOrderChunk:
		return "out of order chunk"
	case ErrSessionFinish:
		return "session finish error"
	case ErrUnknownSession:
		return "unknown session"
	case ErrCancelled:
		return "cancelled"
	case ErrNotFound:
		return "not found"
	case ErrUnauthorized:
		return "unauthorized"
	}
	return fmt.Sprintf("error code %d", int(e))
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (e Err) With(args ...any) error {
	return fmt.Errorf("%w: %s", e, fmt.Sprint(args...))
}

func (e Err) Withf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", e, fmt.Sprintf(format, args...))
}

// Wrap returns err tagged with the kind, or nil when err is nil. An error
// which already carries the same kind is returned unchanged.
func (e Err) Wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, e) {
		return err
	}
	return fmt.Errorf("%w: %w", e, err)
}

// Code returns the HTTP status code used when the error is returned by a handler
func (e Err) Code() int {
	switch e {
	case ErrSuccess:
		return http.StatusOK
	case ErrValidation, ErrDecode, ErrChunkUpload, ErrOutOfOrderChunk:
		return http.StatusBadRequest
	case ErrPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrFetch:
		return http.StatusBadGateway
	case ErrUnknownSession, ErrNotFound:
		return http.StatusNotFound
	case ErrSessionFinish:
		return http.StatusConflict
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrCancelled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// Kind returns the first Err found in the chain of err, or ErrSuccess
// when err is nil and -1 when no kind is present.
func Kind(err error) Err {
	if err == nil {
		return ErrSuccess
	}
	var kind Err
	if errors.As(err, &kind) {
		return kind
	}
	return Err(-1)
}
