// Package storage is the entry point of the SDK. It resolves sources,
// runs upload tasks alone or in bulk, manages multipart sessions and
// notifies listeners, over a transfer client.
package storage

import (
	"context"
	"errors"
	"sync"

	// Packages
	filezen "github.com/FileZen/filezen"
	bulk "github.com/FileZen/filezen/pkg/bulk"
	httpclient "github.com/FileZen/filezen/pkg/httpclient"
	listener "github.com/FileZen/filezen/pkg/listener"
	multipart "github.com/FileZen/filezen/pkg/multipart"
	resolver "github.com/FileZen/filezen/pkg/resolver"
	schema "github.com/FileZen/filezen/pkg/schema"
	task "github.com/FileZen/filezen/pkg/task"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type Storage struct {
	opts
	transfer  filezen.Transfer
	resolver  *resolver.Resolver
	sessions  *multipart.Table
	bulk      *bulk.Coordinator
	listeners *listener.Registry
	metrics   *metrics
	once      sync.Once

	// Guards the upload tables
	sync.Mutex
	closed  bool
	active  map[string]*task.Task
	history []*task.Task
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates storage over a transfer client, which is closed when the
// storage is closed.
func New(ctx context.Context, transfer filezen.Transfer, opts ...Opt) (*Storage, error) {
	self := new(Storage)
	if transfer == nil {
		return nil, schema.ErrValidation.With("nil transfer")
	}

	// Apply options
	if opt, err := applyOpts(opts); err != nil {
		return nil, err
	} else {
		self.opts = opt
	}

	// Compose
	if r, err := resolver.New(transfer, resolver.WithMaxSize(self.maxSize)); err != nil {
		return nil, err
	} else {
		self.resolver = r
	}
	if b, err := bulk.New(bulk.WithConcurrency(self.concurrency), bulk.WithMaxQueue(self.queue), bulk.WithFailFast(self.failfast)); err != nil {
		return nil, err
	} else {
		self.bulk = b
	}
	if m, err := newMetrics(self.meter); err != nil {
		return nil, err
	} else {
		self.metrics = m
	}
	self.transfer = transfer
	self.sessions = multipart.New(transfer, self.logger)
	self.listeners = listener.New(self.logger)
	self.active = make(map[string]*task.Task)

	// Return success
	return self, nil
}

// NewWithApiKey creates storage over the hosted API, or the API at
// FILEZEN_API_URL, authenticated with an API key.
func NewWithApiKey(ctx context.Context, apiKey string, opts ...Opt) (*Storage, error) {
	if apiKey == "" {
		return nil, schema.ErrValidation.With("missing api key")
	}
	client, err := httpclient.New("", httpclient.WithApiKey(apiKey))
	if err != nil {
		return nil, err
	}
	self, err := New(ctx, client, opts...)
	if err != nil {
		return nil, errors.Join(err, client.Close())
	}
	return self, nil
}

// Close cancels active uploads and releases the transfer client. It is safe
// to call more than once.
func (storage *Storage) Close() error {
	var result error
	storage.once.Do(func() {
		storage.Lock()
		storage.closed = true
		tasks := make([]*task.Task, 0, len(storage.active))
		for _, t := range storage.active {
			tasks = append(tasks, t)
		}
		storage.Unlock()

		for _, t := range tasks {
			t.Cancel()
		}
		if err := storage.transfer.Close(); err != nil {
			result = errors.Join(result, err)
		}
	})

	// Return any errors
	return result
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// AddListener registers a listener for upload events
func (storage *Storage) AddListener(l filezen.Listener) error {
	return storage.listeners.Register(l)
}

// RemoveListener unregisters a listener, and returns false if it was not
// registered
func (storage *Storage) RemoveListener(l filezen.Listener) bool {
	return storage.listeners.Unregister(l)
}

// Transfer returns the underlying transfer client
func (storage *Storage) Transfer() filezen.Transfer {
	return storage.transfer
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func spanStorageName(op string) string {
	return schema.SchemaName + ".storage." + op
}
