package httpclient

import (
	"context"
	"io"
	"net/http"

	// Packages
	schema "github.com/FileZen/filezen/pkg/schema"
	client "github.com/mutablelogic/go-client"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// fetchResponse reads a response body of any content type, up to a limit,
// and captures the Content-Type header
type fetchResponse struct {
	limit       int64
	data        []byte
	contentType string
}

var _ client.Unmarshaler = (*fetchResponse)(nil)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Fetch downloads the content at url, reading at most limit bytes, and
// returns the content and its type. No credentials are sent.
func (c *Client) Fetch(ctx context.Context, url string, limit int64) ([]byte, string, error) {
	response := fetchResponse{limit: limit}
	if err := c.DoWithContext(ctx,
		client.NewRequestEx(http.MethodGet, ""),
		&response,
		client.OptReqEndpoint(url),
	); err != nil {
		return nil, "", err
	}
	return response.data, response.contentType, nil
}

///////////////////////////////////////////////////////////////////////////////
// INTERFACE IMPLEMENTATION

func (r *fetchResponse) Unmarshal(header http.Header, reader io.Reader) error {
	r.contentType = header.Get(types.ContentTypeHeader)
	if r.limit <= 0 {
		r.limit = schema.MaxPayloadSize
	}
	data, err := io.ReadAll(io.LimitReader(reader, r.limit+1))
	if err != nil {
		return err
	} else if int64(len(data)) > r.limit {
		return schema.ErrPayloadTooLarge.Withf("response exceeds the limit of %d bytes", r.limit)
	}
	r.data = data
	return nil
}
