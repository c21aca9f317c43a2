package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	// Packages
	schema "github.com/FileZen/filezen/pkg/schema"
	aws "github.com/aws/aws-sdk-go-v2/aws"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	types "github.com/mutablelogic/go-server/pkg/types"
	otelaws "go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	blob "gocloud.dev/blob"
	s3blob "gocloud.dev/blob/s3blob"
	gcerrors "gocloud.dev/gcerrors"

	// Drivers
	_ "gocloud.dev/blob/fileblob" // file:// URLs
	_ "gocloud.dev/blob/memblob"  // mem:// URLs
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type blobbackend struct {
	sync.Mutex
	*opt
	bucket       *blob.Bucket
	bucketPrefix string // key prefix for bucket operations (empty for file://)
	sessions     map[string]*session
}

var _ Backend = (*blobbackend)(nil)

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	filesPrefix    = "files"
	sessionsPrefix = "sessions"
)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewBlobBackend creates a new blob backend using Go CDK.
// Supported URL schemes: s3://, file://, mem://
// Examples:
//   - "s3://my-bucket?region=us-east-1"
//   - "file://name/path/to/directory"
//   - "mem://name"
//
// For S3 URLs, you can optionally provide an aws.Config via WithAWSConfig()
// for full control over AWS SDK configuration.
func NewBlobBackend(ctx context.Context, u string, opts ...Opt) (*blobbackend, error) {
	self := new(blobbackend)
	self.sessions = make(map[string]*session)

	// Set the options
	if url, err := url.Parse(u); err != nil {
		return nil, err
	} else if opt, err := apply(url, opts...); err != nil {
		return nil, err
	} else {
		self.opt = opt
	}

	// Validate the backend name (URL host) is a valid identifier
	if !types.IsIdentifier(self.url.Host) {
		return nil, fmt.Errorf("backend name %q must be a valid identifier (letter, digits, underscores, hyphens; max 64 chars)", self.url.Host)
	}

	// For file:// the path is the bucket root directory; otherwise the
	// path is a key prefix within the bucket
	if self.url.Scheme != "file" {
		self.bucketPrefix = strings.Trim(self.url.Path, "/")
	}

	// Open the bucket
	var bucket *blob.Bucket
	var err error
	switch {
	case self.url.Scheme == "s3" && self.awsConfig != nil:
		cfg := self.s3Config()
		bucket, err = s3blob.OpenBucket(ctx, s3blob.Dial(cfg), self.url.Host, nil)
	case self.url.Scheme == "file":
		openURL := &url.URL{Scheme: "file", Path: self.url.Path, RawQuery: self.url.RawQuery}
		bucket, err = blob.OpenBucket(ctx, openURL.String())
	default:
		openURL := *self.url
		openURL.Path = ""
		openURL.RawPath = ""
		openURL.User = nil
		if openURL.Scheme == "mem" {
			// memblob accepts no query parameters
			openURL.RawQuery = ""
		}
		bucket, err = blob.OpenBucket(ctx, openURL.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}
	self.bucket = bucket

	// Return success
	return self, nil
}

// Close the backend
func (b *blobbackend) Close() error {
	var result error
	if b.bucket != nil {
		result = errors.Join(result, b.bucket.Close())
		b.bucket = nil
	}

	// Return any errors
	return result
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Name returns the name of the backend (the host component of the URL)
func (b *blobbackend) Name() string {
	return b.url.Host
}

// URL returns the backend URL without credentials
func (b *blobbackend) URL() *url.URL {
	u := *b.url
	u.User = nil
	return &u
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// s3Config returns the AWS config with the endpoint and credential options
// applied, and SDK tracing middleware when a tracer is set
func (b *blobbackend) s3Config() aws.Config {
	cfg := b.awsConfig.Copy()
	if b.endpoint != "" {
		cfg.BaseEndpoint = aws.String(b.endpoint)
	}
	if b.anonymous {
		cfg.Credentials = aws.AnonymousCredentials{}
	}
	if b.tracer != nil {
		otelaws.AppendMiddlewares(&cfg.APIOptions)
	}
	return cfg
}

// storageKey returns the blob storage key for path elements
func (b *blobbackend) storageKey(elems ...string) string {
	key := strings.Join(elems, "/")
	if b.bucketPrefix != "" {
		return b.bucketPrefix + "/" + key
	}
	return key
}

func (b *blobbackend) fileKey(id string) string {
	return b.storageKey(filesPrefix, id)
}

func (b *blobbackend) chunkKey(session string, index int) string {
	return b.storageKey(sessionsPrefix, session, fmt.Sprintf("%08d", index))
}

// idFromKey returns the file id for a storage key, or empty string
func (b *blobbackend) idFromKey(key string) string {
	prefix := b.storageKey(filesPrefix) + "/"
	if !strings.HasPrefix(key, prefix) {
		return ""
	}
	return strings.TrimPrefix(key, prefix)
}

// fileMetadata returns the blob metadata for a new file
func fileMetadata(req schema.CreateFileRequest, now time.Time) (map[string]string, error) {
	meta := map[string]string{
		schema.AttrName:      req.Name,
		schema.AttrCreatedAt: now.UTC().Format(time.RFC3339Nano),
	}
	if req.ProjectId != "" {
		meta[schema.AttrProjectId] = req.ProjectId
	}
	if req.ParentId != "" {
		meta[schema.AttrParentId] = req.ParentId
	}
	if len(req.Metadata) > 0 {
		data, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, httpresponse.ErrBadRequest.Withf("metadata: %v", err)
		}
		meta[schema.AttrMetadata] = string(data)
	}
	return meta, nil
}

// attrsToFile builds a file from blob attributes
func (b *blobbackend) attrsToFile(id string, attrs *blob.Attributes) *schema.File {
	file := &schema.File{
		Id:        id,
		Type:      schema.FileTypeFile,
		State:     schema.FileStateCompleted,
		Name:      attrs.Metadata[schema.AttrName],
		MimeType:  attrs.ContentType,
		Size:      attrs.Size,
		UpdatedAt: attrs.ModTime,
		ProjectId: attrs.Metadata[schema.AttrProjectId],
		ParentId:  attrs.Metadata[schema.AttrParentId],
		Region:    b.url.Query().Get("region"),
	}
	if created, err := time.Parse(time.RFC3339Nano, attrs.Metadata[schema.AttrCreatedAt]); err == nil {
		file.CreatedAt = created
	} else {
		file.CreatedAt = attrs.ModTime
	}
	if data := attrs.Metadata[schema.AttrMetadata]; data != "" {
		_ = json.Unmarshal([]byte(data), &file.Metadata)
	}
	return file
}

// blobErr wraps a go-cloud blob error with the appropriate httpresponse error
func blobErr(err error, key string) error {
	if err == nil {
		return nil
	}
	switch gcerrors.Code(err) {
	case gcerrors.NotFound:
		return httpresponse.ErrNotFound.Withf("%q not found", key)
	case gcerrors.PermissionDenied:
		return httpresponse.ErrForbidden.Withf("permission denied for %q", key)
	case gcerrors.InvalidArgument:
		return httpresponse.ErrBadRequest.Withf("invalid argument for %q: %v", key, err)
	case gcerrors.FailedPrecondition:
		return httpresponse.ErrConflict.Withf("precondition failed for %q: %v", key, err)
	default:
		return httpresponse.ErrInternalError.Withf("blob operation failed: %v", err)
	}
}
