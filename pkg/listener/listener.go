package listener

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"

	// Packages
	filezen "github.com/FileZen/filezen"
	schema "github.com/FileZen/filezen/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Registry fans out events to registered listeners. Delivery is synchronous
// and in registration order; a listener which panics is logged and skipped,
// and never prevents delivery to the others.
type Registry struct {
	sync.RWMutex
	listeners []filezen.Listener
	logger    filezen.Logger
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New returns an empty registry which reports listener faults to logger,
// which may be nil
func New(logger filezen.Logger) *Registry {
	return &Registry{logger: logger}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Register adds a listener. Listeners are compared by identity, so they
// must be comparable (use a pointer). Registering the same listener twice
// has no effect.
func (r *Registry) Register(l filezen.Listener) error {
	if l == nil {
		return schema.ErrValidation.With("nil listener")
	} else if !reflect.TypeOf(l).Comparable() {
		return schema.ErrValidation.Withf("listener of type %T is not comparable", l)
	}

	r.Lock()
	defer r.Unlock()
	if !slices.Contains(r.listeners, l) {
		r.listeners = append(r.listeners, l)
	}
	return nil
}

// Unregister removes a listener, and returns false if it was not registered
func (r *Registry) Unregister(l filezen.Listener) bool {
	if l == nil || !reflect.TypeOf(l).Comparable() {
		return false
	}

	r.Lock()
	defer r.Unlock()
	if i := slices.Index(r.listeners, l); i >= 0 {
		r.listeners = slices.Delete(r.listeners, i, i+1)
		return true
	}
	return false
}

// Len returns the number of registered listeners
func (r *Registry) Len() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.listeners)
}

// Notify delivers the event to every listener registered at the time of
// the call
func (r *Registry) Notify(ctx context.Context, evt schema.Event) {
	r.RLock()
	listeners := slices.Clone(r.listeners)
	r.RUnlock()

	for _, l := range listeners {
		if err := deliver(l, evt); err != nil && r.logger != nil {
			r.logger.Printf(ctx, "listener %T: %v", l, err)
		}
	}
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func deliver(l filezen.Listener, evt schema.Event) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("panic on %q event: %v", evt.Type, v)
		}
	}()
	switch evt.Type {
	case schema.EventStart:
		l.OnUploadStart(evt.Upload)
	case schema.EventProgress:
		l.OnUploadProgress(evt.Upload, evt.Progress)
	case schema.EventComplete:
		l.OnUploadComplete(evt.Upload)
	case schema.EventError:
		l.OnUploadError(evt.Upload, evt.Err)
	case schema.EventCancel:
		l.OnUploadCancel(evt.Upload)
	case schema.EventChange:
		l.OnUploadsChange(slices.Clone(evt.Uploads))
	default:
		return fmt.Errorf("unknown event type %q", evt.Type)
	}
	return nil
}
