package httpclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	// Packages
	schema "github.com/FileZen/filezen/pkg/schema"
	client "github.com/mutablelogic/go-client"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// ListFiles returns a page of files
func (c *Client) ListFiles(ctx context.Context, req schema.ListFilesRequest) (*schema.FileList, error) {
	if req.Limit <= 0 {
		req.Limit = schema.DefaultListLimit
	}
	query := make(url.Values)
	query.Set("limit", strconv.Itoa(req.Limit))
	query.Set("offset", strconv.Itoa(req.Offset))

	var response schema.FileList
	if err := c.DoWithContext(ctx, client.NewRequest(), &response,
		append(c.auth(), client.OptPath("files"), client.OptQuery(query))...,
	); err != nil {
		return nil, err
	}
	return &response, nil
}

// GetFile returns a file by id
func (c *Client) GetFile(ctx context.Context, id string) (*schema.File, error) {
	if id == "" {
		return nil, schema.ErrValidation.With("missing file id")
	}
	var response schema.File
	if err := c.DoWithContext(ctx, client.NewRequest(), &response,
		append(c.auth(), client.OptPath("files", id))...,
	); err != nil {
		return nil, err
	}
	return &response, nil
}

// DeleteById deletes a file by id
func (c *Client) DeleteById(ctx context.Context, id string) error {
	if id == "" {
		return schema.ErrValidation.With("missing file id")
	}
	var response schema.DeleteResponse
	return c.DoWithContext(ctx,
		client.NewRequestEx(http.MethodDelete, types.ContentTypeJSON),
		&response,
		append(c.auth(), client.OptPath("files", id))...,
	)
}

// DeleteByUrl deletes a file by its URL
func (c *Client) DeleteByUrl(ctx context.Context, fileUrl string) error {
	if fileUrl == "" {
		return schema.ErrValidation.With("missing file url")
	}
	query := make(url.Values)
	query.Set("url", fileUrl)

	var response schema.DeleteResponse
	return c.DoWithContext(ctx,
		client.NewRequestEx(http.MethodDelete, types.ContentTypeJSON),
		&response,
		append(c.auth(), client.OptPath("files", "delete-by-url"), client.OptQuery(query))...,
	)
}
