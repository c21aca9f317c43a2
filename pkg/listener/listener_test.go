package listener_test

import (
	"bytes"
	"context"
	"testing"

	// Packages
	filezen "github.com/FileZen/filezen"
	listener "github.com/FileZen/filezen/pkg/listener"
	logger "github.com/FileZen/filezen/pkg/logger"
	schema "github.com/FileZen/filezen/pkg/schema"
	assert "github.com/stretchr/testify/assert"
)

type recorder struct {
	filezen.NopListener
	events []schema.EventType
}

func (r *recorder) OnUploadStart(schema.Upload) {
	r.events = append(r.events, schema.EventStart)
}

func (r *recorder) OnUploadProgress(schema.Upload, schema.Progress) {
	r.events = append(r.events, schema.EventProgress)
}

func (r *recorder) OnUploadComplete(schema.Upload) {
	r.events = append(r.events, schema.EventComplete)
}

func (r *recorder) OnUploadError(schema.Upload, error) {
	r.events = append(r.events, schema.EventError)
}

type panicker struct {
	filezen.NopListener
}

func (*panicker) OnUploadStart(schema.Upload) {
	panic("boom")
}

type funcs struct {
	filezen.NopListener
	fn func()
}

func Test_Registry_Register(t *testing.T) {
	assert := assert.New(t)
	r := listener.New(nil)

	a, b := new(recorder), new(recorder)
	assert.NoError(r.Register(a))
	assert.NoError(r.Register(a))
	assert.NoError(r.Register(b))
	assert.Equal(2, r.Len())

	assert.True(r.Unregister(a))
	assert.False(r.Unregister(a))
	assert.Equal(1, r.Len())

	assert.ErrorIs(r.Register(nil), schema.ErrValidation)
	assert.ErrorIs(r.Register(funcs{}), schema.ErrValidation)
}

func Test_Registry_Notify(t *testing.T) {
	assert := assert.New(t)
	r := listener.New(nil)

	a := new(recorder)
	assert.NoError(r.Register(a))
	r.Notify(context.TODO(), schema.Event{Type: schema.EventStart})
	r.Notify(context.TODO(), schema.Event{Type: schema.EventProgress})
	r.Notify(context.TODO(), schema.Event{Type: schema.EventComplete})

	// NopListener handles the rest
	r.Notify(context.TODO(), schema.Event{Type: schema.EventCancel})
	r.Notify(context.TODO(), schema.Event{Type: schema.EventChange})
	assert.Equal([]schema.EventType{schema.EventStart, schema.EventProgress, schema.EventComplete}, a.events)

	// Unregistered listeners receive nothing further
	r.Unregister(a)
	r.Notify(context.TODO(), schema.Event{Type: schema.EventError})
	assert.Len(a.events, 3)
}

func Test_Registry_PanicIsolation(t *testing.T) {
	assert := assert.New(t)
	var buf bytes.Buffer
	r := listener.New(logger.NewText(&buf, false))

	p, a := new(panicker), new(recorder)
	assert.NoError(r.Register(p))
	assert.NoError(r.Register(a))

	assert.NotPanics(func() {
		r.Notify(context.TODO(), schema.Event{Type: schema.EventStart})
	})
	assert.Equal([]schema.EventType{schema.EventStart}, a.events)
	assert.Contains(buf.String(), "boom")
}
