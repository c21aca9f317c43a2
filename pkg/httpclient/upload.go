package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"

	// Packages
	filezen "github.com/FileZen/filezen"
	schema "github.com/FileZen/filezen/pkg/schema"
	client "github.com/mutablelogic/go-client"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

// progressInterval is the number of bytes between progress callbacks
const progressInterval = 64 * 1024

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// UploadOnce uploads a payload in a single multipart form POST. fn, which may
// be nil, is called as the body is written.
func (c *Client) UploadOnce(ctx context.Context, payload *schema.Payload, opts schema.UploadOptions, fn filezen.ProgressFunc) (*schema.File, error) {
	ctx, cancel := c.transferContext(ctx)
	defer cancel()

	// Wrap the body for progress reporting
	body := payload.Body()
	if fn != nil {
		body = newUploadProgressReadCloser(body, payload.Size, fn)
	}
	defer body.Close()

	// Part header carries the declared size when known
	h := textproto.MIMEHeader{}
	if payload.Size >= 0 {
		h.Set(types.ContentLengthHeader, strconv.FormatInt(payload.Size, 10))
	}

	form := schema.UploadForm{
		Files: []types.File{{
			Path:        payload.Name,
			Body:        body,
			ContentType: payload.MimeType,
			Header:      h,
		}},
		Name: payload.Name,
		Type: payload.MimeType,
	}
	if payload.Size >= 0 {
		form.Size = strconv.FormatInt(payload.Size, 10)
	}
	if len(opts.Metadata) > 0 {
		if data, err := json.Marshal(opts.Metadata); err != nil {
			return nil, schema.ErrValidation.Withf("metadata: %v", err)
		} else {
			form.Metadata = string(data)
		}
	}

	// Build a streaming multipart payload. The encoder reflect-walks the
	// struct and writes each types.File as a separate multipart part.
	request, err := client.NewStreamingMultipartRequest(&form, types.ContentTypeJSON)
	if err != nil {
		return nil, err
	}

	// Set the destination and headers
	reqOpts, err := c.uploadOpts(ctx, payload.Name, "files", "upload")
	if err != nil {
		return nil, err
	}
	if opts.ProjectId != "" {
		reqOpts = append(reqOpts, client.OptReqHeader(schema.ProjectIdHeader, opts.ProjectId))
	}
	if opts.FolderId != "" {
		reqOpts = append(reqOpts, client.OptReqHeader(schema.FolderIdHeader, opts.FolderId))
	}

	var response schema.File
	if err := c.DoWithContext(ctx, request, &response, append(reqOpts, client.OptNoTimeout())...); err != nil {
		return nil, err
	}
	return &response, nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// uploadOpts returns the destination for an upload: either the API path with
// authentication headers, or a signed URL obtained from the sign endpoint
func (c *Client) uploadOpts(ctx context.Context, fileKey string, path ...any) ([]client.RequestOpt, error) {
	if c.signUrl == "" {
		return append(c.auth(), client.OptPath(path...)), nil
	}

	// Request a signed URL
	var signPath strings.Builder
	for _, segment := range path {
		signPath.WriteString("/" + fmt.Sprint(segment))
	}
	request, err := client.NewJSONRequest(schema.SignRequest{
		Path:    signPath.String(),
		FileKey: fileKey,
	})
	if err != nil {
		return nil, err
	}
	var response schema.SignResponse
	if err := c.DoWithContext(ctx, request, &response, client.OptReqEndpoint(c.signUrl)); err != nil {
		return nil, err
	} else if response.Url == "" {
		return nil, schema.ErrUpload.With("sign endpoint returned no url")
	}
	return []client.RequestOpt{client.OptReqEndpoint(response.Url)}, nil
}

// transferContext bounds a transfer with the transfer timeout
func (c *Client) transferContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

type uploadProgressReadCloser struct {
	r        io.ReadCloser
	total    int64
	written  int64
	lastEmit int64
	cb       filezen.ProgressFunc
}

func newUploadProgressReadCloser(r io.ReadCloser, total int64, cb filezen.ProgressFunc) io.ReadCloser {
	return &uploadProgressReadCloser{
		r:     r,
		total: total,
		cb:    cb,
	}
}

func (r *uploadProgressReadCloser) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.written += int64(n)
		if r.written-r.lastEmit >= progressInterval || (r.total > 0 && r.written >= r.total) {
			r.lastEmit = r.written
			r.cb(r.written, r.total)
		}
	}
	return n, err
}

func (r *uploadProgressReadCloser) Close() error {
	return r.r.Close()
}
