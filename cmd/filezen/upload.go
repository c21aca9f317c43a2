package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	// Packages
	filezen "github.com/FileZen/filezen"
	schema "github.com/FileZen/filezen/pkg/schema"
	storage "github.com/FileZen/filezen/pkg/storage"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type UploadCommands struct {
	Upload UploadCommand `cmd:"" group:"FILES" help:"Upload local files, URLs, data URLs, base64 or text"`
}

type UploadCommand struct {
	Source      []string          `arg:"" help:"Local path, http(s) URL, data URL, base64 or text"`
	Name        string            `name:"name" short:"n" help:"Remote file name (single source only)"`
	Folder      string            `name:"folder" help:"Remote folder path prefixed to the name"`
	FolderId    string            `name:"folder-id" help:"Parent folder id"`
	Project     string            `name:"project" help:"Project id"`
	Type        string            `name:"type" help:"Mime type, overriding the inferred type"`
	Meta        map[string]string `name:"meta" help:"Metadata key=value pairs"`
	Stream      bool              `name:"stream" help:"Stream local files in chunks instead of reading them into memory"`
	Concurrency int               `name:"concurrency" help:"Number of sources uploaded at once" default:"4"`
	FailFast    bool              `name:"fail-fast" help:"Stop after the first failed upload"`
}

type outcome struct {
	Index  int          `json:"index"`
	Source string       `json:"source"`
	File   *schema.File `json:"file,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// progress logs transfer progress
type progress struct {
	filezen.NopListener
	app *Globals
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (cmd *UploadCommand) Run(app *Globals) error {
	if len(cmd.Source) > 1 && cmd.Name != "" {
		return schema.ErrValidation.With("--name can only be used with a single source")
	}

	// Create storage
	opts := []storage.Opt{storage.WithConcurrency(cmd.Concurrency), storage.WithMaxQueue(max(len(cmd.Source), 1))}
	if cmd.FailFast {
		opts = append(opts, storage.WithFailFast())
	}
	s, err := app.Storage(opts...)
	if err != nil {
		return err
	}
	defer s.Close()
	if app.Debug {
		if err := s.AddListener(&progress{app: app}); err != nil {
			return err
		}
	}

	// Upload a single source
	if len(cmd.Source) == 1 {
		upload, err := s.Upload(app.ctx, source(cmd.Source[0]), cmd.opts()...)
		if err != nil {
			return err
		}
		return prettyJSON(upload.File)
	}

	// Upload in bulk
	uploadOpts, err := filezen.ApplyOpts(cmd.opts()...)
	if err != nil {
		return err
	}
	items := make([]schema.BulkItem, 0, len(cmd.Source))
	for _, value := range cmd.Source {
		items = append(items, schema.BulkItem{Source: source(value), Options: uploadOpts})
	}
	outcomes, err := s.BulkUpload(app.ctx, items)
	if err != nil {
		return err
	}

	// Report every outcome, and fail when any upload failed
	var result error
	report := make([]outcome, 0, len(outcomes))
	for i, o := range outcomes {
		r := outcome{Index: o.Index, Source: cmd.Source[i], File: o.File}
		if o.Err != nil {
			r.Error = o.Err.Error()
			result = errors.Join(result, fmt.Errorf("%s: %w", cmd.Source[i], o.Err))
		}
		report = append(report, r)
	}
	if err := prettyJSON(report); err != nil {
		return err
	}
	return result
}

func (p *progress) OnUploadProgress(upload schema.Upload, progress schema.Progress) {
	p.app.logger.Printf(context.Background(), "%s: %d bytes (%.0f%%)", upload.Name, progress.Bytes, progress.Percent)
}

func (p *progress) OnUploadError(upload schema.Upload, err error) {
	p.app.logger.Printf(context.Background(), "%s: %v", upload.Name, err)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (cmd *UploadCommand) opts() []filezen.Opt {
	var opts []filezen.Opt
	if cmd.Name != "" {
		opts = append(opts, filezen.WithName(cmd.Name))
	}
	if cmd.Folder != "" {
		opts = append(opts, filezen.WithFolder(cmd.Folder))
	}
	if cmd.FolderId != "" {
		opts = append(opts, filezen.WithFolderId(cmd.FolderId))
	}
	if cmd.Project != "" {
		opts = append(opts, filezen.WithProject(cmd.Project))
	}
	if cmd.Type != "" {
		opts = append(opts, filezen.WithMimeType(cmd.Type))
	}
	for k, v := range cmd.Meta {
		opts = append(opts, filezen.WithMeta(k, v))
	}
	if cmd.Stream {
		opts = append(opts, filezen.WithStreaming())
	}
	return opts
}

// source treats an existing local file as a path, and classifies anything
// else by its content
func source(value string) schema.Source {
	if info, err := os.Stat(value); err == nil && info.Mode().IsRegular() {
		return schema.FromPath(value)
	}
	return schema.ParseSource(value)
}
