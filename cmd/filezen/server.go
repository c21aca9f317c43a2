package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	// Packages
	filezen "github.com/FileZen/filezen"
	backend "github.com/FileZen/filezen/pkg/backend"
	httphandler "github.com/FileZen/filezen/pkg/httphandler"
	schema "github.com/FileZen/filezen/pkg/schema"
	signer "github.com/FileZen/filezen/pkg/signer"
	version "github.com/FileZen/filezen/pkg/version"
	config "github.com/aws/aws-sdk-go-v2/config"
	credentials "github.com/aws/aws-sdk-go-v2/credentials"
	uuid "github.com/google/uuid"
	httprouter "github.com/mutablelogic/go-server/pkg/httprouter"
	httpserver "github.com/mutablelogic/go-server/pkg/httpserver"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/httphandler"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type ServerCommands struct {
	Server ServerCommand `cmd:"" name:"server" group:"SERVER" help:"Run a FileZen compatible API server over a bucket"`
}

type ServerCommand struct {
	Listen    string   `name:"listen" help:"Address to listen on" default:"localhost:8080"`
	Prefix    string   `name:"prefix" help:"Path prefix for the API routes" default:""`
	Origin    string   `name:"origin" help:"Allowed cross-origin requests: empty for same-origin, * for any, or scheme://host[:port]" default:"*"`
	Bucket    string   `name:"bucket" help:"Bucket URL (mem://name, file://name/path, s3://bucket/prefix)" default:"mem://filezen"`
	Key       []string `name:"key" env:"FILEZEN_SERVER_KEYS" sep:"," help:"Accepted API keys. A key of the form base64(accessKey,secret) also verifies signed urls."`
	BaseURL   string   `name:"base-url" help:"Public URL of the server, used for file urls and signing"`
	SignPath  string   `name:"sign-path" help:"Path of the sign endpoint, or empty to disable" default:"/sign"`
	MaxSize   int64    `name:"max-size" help:"Largest stored file in bytes, zero for no limit" default:"104857600"`
	CreateDir bool     `name:"create-dir" help:"Create the directory of a file:// bucket"`

	// Multipart
	SessionTTL time.Duration `name:"session-ttl" help:"How long an idle multipart session is kept, zero to keep sessions until they complete" default:"24h"`

	// S3
	Region          string `name:"region" env:"AWS_REGION" help:"S3 region"`
	Endpoint        string `name:"s3-endpoint" help:"S3 compatible endpoint (e.g. http://localhost:9000)"`
	Profile         string `name:"profile" env:"AWS_PROFILE" help:"AWS shared config profile"`
	AccessKeyId     string `name:"access-key-id" env:"AWS_ACCESS_KEY_ID" help:"AWS access key id"`
	SecretAccessKey string `name:"secret-access-key" env:"AWS_SECRET_ACCESS_KEY" help:"AWS secret access key"`
	Anonymous       bool   `name:"anonymous" help:"Access the bucket without credentials"`
}

// signStorage signs urls with the server key and deletes files from the
// bucket
type signStorage struct {
	*signer.Signer
	backend backend.Backend
}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *ServerCommand) Run(app *Globals) error {
	// Open the bucket
	b, err := backend.NewBlobBackend(app.ctx, cmd.Bucket, cmd.backendOpts(app)...)
	if err != nil {
		return err
	}
	defer b.Close()

	// Create the server and the router over its mux
	srv, err := httpserver.New(cmd.Listen, nil)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	middleware := []httprouter.HTTPMiddlewareFunc{}
	if app.Debug {
		middleware = append(middleware, logRequests(app.logger))
	}
	router, err := httprouter.NewRouter(app.ctx, srv.Router(), cmd.Prefix, cmd.Origin, "filezen", version.Version(), middleware...)
	if err != nil {
		return fmt.Errorf("failed to create router: %w", err)
	}
	srv.SetHandler(router)

	// Register handlers
	baseUrl := cmd.BaseURL
	if baseUrl == "" {
		baseUrl = "http://" + httpserver.ListenAddr(cmd.Listen, false)
	}
	handlerOpts := []httphandler.Opt{httphandler.WithLogger(app.logger)}
	if cmd.BaseURL != "" {
		handlerOpts = append(handlerOpts, httphandler.WithBaseURL(cmd.BaseURL))
	}
	var s *signer.Signer
	for _, key := range cmd.Key {
		handlerOpts = append(handlerOpts, httphandler.WithApiKey(key))
		if s == nil {
			if v, err := signer.New(key, baseUrl); err == nil {
				s = v
			}
		}
	}
	if s != nil {
		handlerOpts = append(handlerOpts, httphandler.WithSigner(s))
		if cmd.SignPath != "" {
			if err := httphandler.RegisterSignHandler(signStorage{s, b}, router, cmd.SignPath); err != nil {
				return err
			}
		}
	}
	if err := httphandler.RegisterHandlers(b, router, handlerOpts...); err != nil {
		return fmt.Errorf("failed to register handlers: %w", err)
	}
	if err := openapi.RegisterHandler(router); err != nil {
		return fmt.Errorf("failed to register handlers: %w", err)
	}

	// Run until the context is done
	app.logger.Printf(app.ctx, "filezen@%s serving %s on %s", version.Version(), b.URL(), srv.Addr())
	if err := srv.Run(app.ctx); err != nil {
		return err
	}
	app.logger.Printf(context.Background(), "filezen stopped")
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (s signStorage) GenerateSignedUrl(req schema.SignRequest) (string, error) {
	return s.Sign(req)
}

func (s signStorage) Delete(ctx context.Context, urlOrId string) error {
	id := urlOrId
	if _, err := uuid.Parse(urlOrId); err != nil {
		id = httphandler.FileIdFromUrl(urlOrId)
	}
	if id == "" {
		return schema.ErrNotFound.Withf("no file for %q", urlOrId)
	}
	_, err := s.backend.DeleteFile(ctx, id)
	return err
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (cmd *ServerCommand) backendOpts(app *Globals) []backend.Opt {
	opts := []backend.Opt{
		backend.WithMaxSize(cmd.MaxSize),
		backend.WithSessionTTL(cmd.SessionTTL),
		backend.WithLogger(app.logger),
	}
	if cmd.CreateDir {
		opts = append(opts, backend.WithCreateDir())
	}
	if cmd.Endpoint != "" {
		opts = append(opts, backend.WithEndpoint(cmd.Endpoint))
	}
	if cmd.Anonymous {
		opts = append(opts, backend.WithAnonymous())
	}

	// Load an AWS configuration for s3:// buckets when credentials or a
	// profile are given, otherwise the URL query parameters are used
	loadOpts := []func(*config.LoadOptions) error{}
	if cmd.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cmd.Region))
	}
	if cmd.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cmd.Profile))
	}
	if cmd.AccessKeyId != "" && cmd.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cmd.AccessKeyId, cmd.SecretAccessKey, ""),
		))
	}
	if cmd.Profile != "" || cmd.AccessKeyId != "" {
		if cfg, err := config.LoadDefaultConfig(app.ctx, loadOpts...); err == nil {
			opts = append(opts, backend.WithAWSConfig(cfg))
		}
	} else if cmd.Region != "" {
		opts = append(opts, backend.WithRegion(cmd.Region))
	}
	return opts
}

// logRequests logs each request with its duration
func logRequests(logger filezen.Logger) httprouter.HTTPMiddlewareFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next(w, r)
			logger.Printf(r.Context(), "%s %s (%v)", r.Method, r.URL.Path, time.Since(start).Truncate(time.Millisecond))
		}
	}
}
