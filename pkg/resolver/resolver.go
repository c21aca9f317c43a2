package resolver

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	// Packages
	filezen "github.com/FileZen/filezen"
	schema "github.com/FileZen/filezen/pkg/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Resolver turns sources into payloads. URL sources are fetched through the
// fetcher, which is normally the transfer client.
type Resolver struct {
	opt
	fetcher filezen.Fetcher
}

type statter interface {
	Stat() (fs.FileInfo, error)
}

var _ filezen.Resolver = (*Resolver)(nil)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	contentTypeText = "text/plain"
	sniffLength     = 512
)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New returns a resolver. The fetcher may be nil, in which case URL sources
// fail with a fetch error.
func New(fetcher filezen.Fetcher, opts ...Opt) (*Resolver, error) {
	self := new(Resolver)
	if o, err := applyOpts(opts...); err != nil {
		return nil, err
	} else {
		self.opt = o
	}
	self.fetcher = fetcher
	return self, nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// MaxSize returns the largest payload which can be resolved into memory
func (r *Resolver) MaxSize() int64 {
	return r.limit
}

// Resolve the source into a payload, applying the name, folder and mime type
// from the options. A streaming payload is returned only for file sources
// when opts.Streaming is set; the caller must close it.
func (r *Resolver) Resolve(ctx context.Context, src schema.Source, opts schema.UploadOptions) (*schema.Payload, error) {
	if err := opts.Validate(src); err != nil {
		return nil, err
	}

	// Resolve by kind
	var payload *schema.Payload
	var err error
	switch src.Kind {
	case schema.SourceBytes:
		payload = &schema.Payload{Data: bytes.Clone(src.Data)}
	case schema.SourceBase64:
		payload, err = decodeBase64(src.Value)
	case schema.SourceText:
		payload = &schema.Payload{Data: []byte(src.Value)}
	case schema.SourceURL:
		payload, err = r.fetch(ctx, src.Value)
	case schema.SourceFile:
		payload, err = r.file(src, opts.Streaming)
	}
	if err != nil {
		return nil, err
	}

	// Check the size of buffered payloads
	if !payload.Streaming() {
		payload.Size = int64(len(payload.Data))
		if payload.Size > r.limit {
			return nil, schema.ErrPayloadTooLarge.Withf("%d bytes exceeds the limit of %d bytes", payload.Size, r.limit)
		}
	}

	// Set the name, which is never empty
	name := opts.Name
	if name == "" {
		name = payload.Name
	}
	if name == "" {
		name = fmt.Sprintf("file-%d", r.now().UnixMilli())
	}
	payload.Name = opts.FileName(name)

	// Set the mime type
	switch {
	case opts.MimeType != "":
		payload.MimeType = opts.MimeType
	case src.Kind == schema.SourceText:
		payload.MimeType = contentTypeText
	case isGeneric(payload.MimeType):
		if ct := MIMEByName(name); ct != "" {
			payload.MimeType = ct
		} else if payload.MimeType == "" {
			payload.MimeType = types.ContentTypeBinary
		}
	}

	// Return success
	return payload, nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// decodeBase64 decodes plain base64 or a data URL
func decodeBase64(value string) (*schema.Payload, error) {
	payload := new(schema.Payload)
	data := strings.TrimSpace(value)

	// Strip a data URL prefix: data:[<mediatype>][;base64],<data>
	encoded := true
	if rest, ok := strings.CutPrefix(data, "data:"); ok {
		header, body, ok := strings.Cut(rest, ",")
		if !ok {
			return nil, schema.ErrDecode.With("data url has no comma separator")
		}
		mediatype, isBase64 := strings.CutSuffix(header, ";base64")
		payload.MimeType = baseType(mediatype)
		encoded = isBase64
		data = body
	}

	// Percent-encoded data URL
	if !encoded {
		if decoded, err := url.PathUnescape(data); err != nil {
			return nil, schema.ErrDecode.Wrap(err)
		} else {
			payload.Data = []byte(decoded)
		}
		return payload, nil
	}

	// Try padded and then unpadded encodings
	if decoded, err := base64.StdEncoding.DecodeString(data); err == nil {
		payload.Data = decoded
	} else if decoded, err2 := base64.RawStdEncoding.DecodeString(data); err2 == nil {
		payload.Data = decoded
	} else {
		return nil, schema.ErrDecode.Wrap(err)
	}

	// Return success
	return payload, nil
}

// fetch retrieves a remote URL, taking the mime type from the response and
// the name from the URL
func (r *Resolver) fetch(ctx context.Context, value string) (*schema.Payload, error) {
	if r.fetcher == nil {
		return nil, schema.ErrFetch.Withf("no fetcher for %q", value)
	}
	data, contentType, err := r.fetcher.Fetch(ctx, value, r.limit)
	if errors.Is(err, schema.ErrPayloadTooLarge) {
		return nil, err
	} else if err != nil {
		return nil, schema.ErrFetch.Wrap(err)
	}
	return &schema.Payload{
		Data:     data,
		Name:     NameFromURL(value),
		MimeType: baseType(contentType),
	}, nil
}

// file reads a file handle, or opens a local path. When streaming is true the
// returned payload wraps the reader instead of buffering it.
func (r *Resolver) file(src schema.Source, streaming bool) (*schema.Payload, error) {
	payload := &schema.Payload{Size: -1}

	// Open a path
	reader, closer := src.Reader, io.Closer(nil)
	if reader == nil {
		f, err := os.Open(src.Value)
		if err != nil {
			return nil, err
		}
		reader, closer = f, f
		payload.Name = filepath.Base(src.Value)
	}
	release := func() {
		if closer != nil {
			closer.Close()
		}
	}

	// Take the name and size from the file info when available
	if s, ok := reader.(statter); ok {
		if info, err := s.Stat(); err == nil {
			if info.IsDir() {
				release()
				return nil, schema.ErrValidation.Withf("%q is a directory", info.Name())
			}
			payload.Name = info.Name()
			if info.Mode().IsRegular() {
				payload.Size = info.Size()
			}
		}
	}
	if !streaming && payload.Size > r.limit {
		release()
		return nil, schema.ErrPayloadTooLarge.Withf("%d bytes exceeds the limit of %d bytes", payload.Size, r.limit)
	}

	// Sniff the content type from the first bytes when the extension is not known
	head := make([]byte, sniffLength)
	n, err := io.ReadFull(reader, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		release()
		return nil, err
	}
	head = head[:n]
	if ct := MIMEByName(payload.Name); ct != "" {
		payload.MimeType = ct
	} else {
		payload.MimeType = MIMEBySniff(head)
	}
	body := io.MultiReader(bytes.NewReader(head), reader)

	// Return a streaming payload, which owns the closer
	if streaming {
		if closer == nil {
			closer = io.NopCloser(nil)
		}
		payload.Reader = struct {
			io.Reader
			io.Closer
		}{body, closer}
		return payload, nil
	}

	// Read the remainder of the file, bounded by the limit
	defer release()
	data, err := io.ReadAll(io.LimitReader(body, r.limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > r.limit {
		return nil, schema.ErrPayloadTooLarge.Withf("file exceeds the limit of %d bytes", r.limit)
	}
	payload.Data = data
	return payload, nil
}
