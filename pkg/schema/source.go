package schema

import (
	"bytes"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"

	// Packages
	types "github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// SourceKind tags the variant held by a Source
type SourceKind int

// Source is something which can be uploaded. Construct with one of the From
// functions; the resolver never mutates a Source.
type Source struct {
	Kind   SourceKind
	Data   []byte    // SourceBytes
	Value  string    // base64 string, text, URL or file path
	Reader io.Reader // SourceFile, when not opened from a path
}

// Payload is a resolved source, ready to be transferred. A buffered payload
// holds Data with Size equal to len(Data). A streaming payload holds Reader
// with Size -1 when the length is unknown.
type Payload struct {
	Data     []byte
	Reader   io.ReadCloser
	Size     int64
	Name     string
	MimeType string
}

// UploadOptions are the caller-supplied options for a single upload
type UploadOptions struct {
	Name      string         `json:"name,omitempty"`
	MimeType  string         `json:"mimeType,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	ProjectId string         `json:"projectId,omitempty"`
	FolderId  string         `json:"folderId,omitempty"`
	Folder    string         `json:"folder,omitempty"`
	Streaming bool           `json:"streaming,omitempty"`
}

// BulkItem is one entry of a bulk upload
type BulkItem struct {
	Source  Source
	Options UploadOptions
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	SourceBytes SourceKind = iota + 1
	SourceBase64
	SourceText
	SourceURL
	SourceFile
)

var (
	reBase64 = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)
)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func FromBytes(data []byte) Source {
	return Source{Kind: SourceBytes, Data: bytes.Clone(data)}
}

// FromBase64 accepts plain base64 or a data URL ("data:<mime>;base64,<data>")
func FromBase64(value string) Source {
	return Source{Kind: SourceBase64, Value: value}
}

func FromText(text string) Source {
	return Source{Kind: SourceText, Value: text}
}

func FromURL(url string) Source {
	return Source{Kind: SourceURL, Value: url}
}

// FromFile reads from an open file handle. When r implements Stat, the file
// name and size are taken from it.
func FromFile(r io.Reader) Source {
	return Source{Kind: SourceFile, Reader: r}
}

// FromPath opens the named local file when the upload is resolved
func FromPath(path string) Source {
	return Source{Kind: SourceFile, Value: path}
}

// ParseSource classifies a string: http and https URLs become URL sources,
// data URLs and base64 strings become base64 sources and anything else is text.
func ParseSource(value string) Source {
	switch {
	case isURL(value):
		return FromURL(value)
	case strings.HasPrefix(value, "data:") || isBase64(value):
		return FromBase64(value)
	default:
		return FromText(value)
	}
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (k SourceKind) String() string {
	switch k {
	case SourceBytes:
		return "bytes"
	case SourceBase64:
		return "base64"
	case SourceText:
		return "text"
	case SourceURL:
		return "url"
	case SourceFile:
		return "file"
	default:
		return "unknown"
	}
}

func (o UploadOptions) String() string {
	return types.Stringify(o)
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Validate checks the options against the source before a task is created
func (o UploadOptions) Validate(src Source) error {
	switch src.Kind {
	case SourceBytes:
		// Empty payloads are allowed
	case SourceBase64, SourceText:
		if strings.TrimSpace(o.Name) == "" {
			return ErrValidation.Withf("name is required for %s sources", src.Kind)
		}
	case SourceURL:
		if !isURL(src.Value) {
			return ErrValidation.Withf("invalid url %q", src.Value)
		}
	case SourceFile:
		if src.Reader == nil && src.Value == "" {
			return ErrValidation.With("missing file handle or path")
		}
	default:
		return ErrValidation.Withf("unsupported source kind %d", int(src.Kind))
	}
	return nil
}

// FileName returns name with the folder prefix applied
func (o UploadOptions) FileName(name string) string {
	if folder := strings.Trim(o.Folder, "/"); folder != "" {
		return path.Join(folder, name)
	}
	return name
}

// Streaming returns true when the payload is read from a stream
func (p *Payload) Streaming() bool {
	return p.Reader != nil
}

// Body returns a reader over the payload content. The caller closes it.
func (p *Payload) Body() io.ReadCloser {
	if p.Reader != nil {
		return p.Reader
	}
	return io.NopCloser(bytes.NewReader(p.Data))
}

// Close releases a streaming payload. It is safe to call on a buffered payload.
func (p *Payload) Close() error {
	if p.Reader == nil {
		return nil
	}
	return p.Reader.Close()
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func isURL(value string) bool {
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isBase64(value string) bool {
	if len(value) < 4 || len(value)%4 != 0 {
		return false
	}
	return reBase64.MatchString(value)
}
