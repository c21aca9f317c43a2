package filezen

import (
	"mime"
	"strings"

	// Packages
	schema "github.com/FileZen/filezen/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt represents a function that modifies the upload options
type Opt func(*schema.UploadOptions) error

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// ApplyOpts applies the given options to a new set of upload options
func ApplyOpts(opts ...Opt) (schema.UploadOptions, error) {
	var o schema.UploadOptions

	// Apply the options
	for _, fn := range opts {
		if err := fn(&o); err != nil {
			return schema.UploadOptions{}, err
		}
	}

	// Return success
	return o, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Set the remote file name
func WithName(name string) Opt {
	return func(o *schema.UploadOptions) error {
		if name = strings.TrimSpace(name); name == "" {
			return schema.ErrValidation.With("empty name")
		} else if strings.ContainsAny(name, "\x00") {
			return schema.ErrValidation.Withf("invalid name %q", name)
		}
		o.Name = name
		return nil
	}
}

// Set the mime type, overriding any inferred type
func WithMimeType(v string) Opt {
	return func(o *schema.UploadOptions) error {
		if _, _, err := mime.ParseMediaType(v); err != nil {
			return schema.ErrValidation.Withf("invalid mime type %q: %v", v, err)
		}
		o.MimeType = v
		return nil
	}
}

// Set a metadata key. May be repeated.
func WithMeta(key string, value any) Opt {
	return func(o *schema.UploadOptions) error {
		if key == "" {
			return schema.ErrValidation.With("empty metadata key")
		}
		if o.Metadata == nil {
			o.Metadata = make(map[string]any)
		}
		o.Metadata[key] = value
		return nil
	}
}

// Set the project for the upload
func WithProject(id string) Opt {
	return func(o *schema.UploadOptions) error {
		o.ProjectId = id
		return nil
	}
}

// Set the parent folder id for the upload
func WithFolderId(id string) Opt {
	return func(o *schema.UploadOptions) error {
		o.FolderId = id
		return nil
	}
}

// Prefix the remote file name with a folder path
func WithFolder(folder string) Opt {
	return func(o *schema.UploadOptions) error {
		o.Folder = strings.Trim(folder, "/")
		return nil
	}
}

// Read file sources as a stream and upload them in chunks
func WithStreaming() Opt {
	return func(o *schema.UploadOptions) error {
		o.Streaming = true
		return nil
	}
}
