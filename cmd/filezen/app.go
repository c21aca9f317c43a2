package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Packages
	httpclient "github.com/FileZen/filezen/pkg/httpclient"
	logger "github.com/FileZen/filezen/pkg/logger"
	storage "github.com/FileZen/filezen/pkg/storage"
	kong "github.com/alecthomas/kong"
	client "github.com/mutablelogic/go-client"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type Globals struct {
	Endpoint string        `env:"FILEZEN_API_URL" help:"API endpoint (defaults to the hosted API)"`
	ApiKey   string        `name:"api-key" env:"FILEZEN_API_KEY" help:"API key"`
	SignURL  string        `name:"sign-url" help:"Obtain upload URLs from this sign endpoint instead of sending the API key"`
	Timeout  time.Duration `help:"Timeout for each transfer" default:"0s"`
	Debug    bool          `help:"Enable debug output"`
	Trace    bool          `help:"Trace HTTP requests"`

	vars   kong.Vars `kong:"-"` // Variables for kong
	ctx    context.Context
	cancel context.CancelFunc
	logger *logger.Logger
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func NewApp(app Globals, vars kong.Vars) *Globals {
	// Set the vars
	app.vars = vars

	// Create the context
	// This context is cancelled when the process receives a SIGINT or SIGTERM
	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	// Log to stderr
	app.logger = logger.NewText(os.Stderr, app.Debug)

	// Return the app
	return &app
}

func (app *Globals) Close() error {
	app.cancel()
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// METHODS

func (app *Globals) Context() context.Context {
	return app.ctx
}

// Client builds a transfer client from the global flags
func (app *Globals) Client() (*httpclient.Client, error) {
	opts := []httpclient.Opt{}
	if app.ApiKey != "" {
		opts = append(opts, httpclient.WithApiKey(app.ApiKey))
	}
	if app.SignURL != "" {
		opts = append(opts, httpclient.WithSignURL(app.SignURL))
	}
	if app.Timeout > 0 {
		opts = append(opts, httpclient.WithTransferTimeout(app.Timeout))
	}
	if app.Trace {
		opts = append(opts, httpclient.WithClientOpt(client.OptTrace(os.Stderr, false)))
	}
	return httpclient.New(app.Endpoint, opts...)
}

// Storage builds storage over the transfer client. The caller must close it.
func (app *Globals) Storage(opts ...storage.Opt) (*storage.Storage, error) {
	c, err := app.Client()
	if err != nil {
		return nil, err
	}
	s, err := storage.New(app.ctx, c, append([]storage.Opt{storage.WithLogger(app.logger)}, opts...)...)
	if err != nil {
		return nil, errors.Join(err, c.Close())
	}
	return s, nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func prettyJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
