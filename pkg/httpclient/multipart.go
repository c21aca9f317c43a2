package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/textproto"
	"strconv"

	// Packages
	filezen "github.com/FileZen/filezen"
	schema "github.com/FileZen/filezen/pkg/schema"
	client "github.com/mutablelogic/go-client"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// MultipartStart initializes a multipart session and returns its id
func (c *Client) MultipartStart(ctx context.Context, req schema.MultipartStartRequest) (string, error) {
	if req.ChunkSize == 0 {
		req.ChunkSize = schema.ChunkSize
	}
	if req.TotalSize < 0 {
		req.TotalSize = 0
	}
	request, err := client.NewJSONRequest(req)
	if err != nil {
		return "", err
	}
	reqOpts, err := c.uploadOpts(ctx, req.FileName, "files", "chunk-upload", "initialize")
	if err != nil {
		return "", err
	}
	var response schema.MultipartStartResponse
	if err := c.DoWithContext(ctx, request, &response, reqOpts...); err != nil {
		return "", err
	} else if response.Id == "" {
		return "", schema.ErrSessionCreate.With("no session id in response")
	}
	return response.Id, nil
}

// MultipartUploadChunk uploads one chunk of a session. fn, which may be nil,
// is called as the chunk is written.
func (c *Client) MultipartUploadChunk(ctx context.Context, session string, index int, chunk []byte, fn filezen.ProgressFunc) (*schema.ChunkResponse, error) {
	ctx, cancel := c.transferContext(ctx)
	defer cancel()

	size := int64(len(chunk))
	var body io.ReadCloser = io.NopCloser(bytes.NewReader(chunk))
	if fn != nil {
		body = newUploadProgressReadCloser(body, size, fn)
	}
	defer body.Close()

	h := textproto.MIMEHeader{}
	h.Set(types.ContentLengthHeader, strconv.FormatInt(size, 10))
	form := schema.ChunkForm{
		Chunks: []types.File{{
			Path:        "chunk-" + strconv.Itoa(index),
			Body:        body,
			ContentType: types.ContentTypeBinary,
			Header:      h,
		}},
	}
	request, err := client.NewStreamingMultipartRequest(&form, types.ContentTypeJSON)
	if err != nil {
		return nil, err
	}

	reqOpts, err := c.uploadOpts(ctx, session, "files", "chunk-upload", "part")
	if err != nil {
		return nil, err
	}
	reqOpts = append(reqOpts,
		client.OptReqHeader(schema.ChunkSessionIdHeader, session),
		client.OptReqHeader(schema.ChunkSizeHeader, strconv.FormatInt(size, 10)),
		client.OptReqHeader(schema.ChunkIndexHeader, strconv.Itoa(index)),
		client.OptNoTimeout(),
	)

	var response schema.ChunkResponse
	if err := c.DoWithContext(ctx, request, &response, reqOpts...); err != nil {
		return nil, err
	}
	return &response, nil
}

// MultipartFinish completes a session and returns the file
func (c *Client) MultipartFinish(ctx context.Context, session string) (*schema.File, error) {
	request, err := client.NewJSONRequest(schema.MultipartFinishRequest{SessionId: session})
	if err != nil {
		return nil, err
	}
	reqOpts, err := c.uploadOpts(ctx, session, "files", "chunk-upload", "complete")
	if err != nil {
		return nil, err
	}
	var response schema.MultipartFinishResponse
	if err := c.DoWithContext(ctx, request, &response, reqOpts...); err != nil {
		return nil, err
	} else if response.File == nil {
		return nil, schema.ErrSessionFinish.With("no file in response")
	}
	return response.File, nil
}
