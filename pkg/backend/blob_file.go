package backend

import (
	"context"
	"errors"
	"io"
	"sort"
	"time"

	// Packages
	schema "github.com/FileZen/filezen/pkg/schema"
	uuid "github.com/google/uuid"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	types "github.com/mutablelogic/go-server/pkg/types"
	blob "gocloud.dev/blob"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// CreateFile writes the body under a new file id
func (b *blobbackend) CreateFile(ctx context.Context, req schema.CreateFileRequest) (*schema.File, error) {
	if req.Name == "" {
		return nil, httpresponse.ErrBadRequest.With("missing file name")
	} else if req.Body == nil {
		return nil, httpresponse.ErrBadRequest.With("missing file body")
	}
	return b.writeFile(ctx, uuid.NewString(), req)
}

// GetFile returns the metadata for a file
func (b *blobbackend) GetFile(ctx context.Context, id string) (*schema.File, error) {
	attrs, err := b.bucket.Attributes(ctx, b.fileKey(id))
	if err != nil {
		return nil, blobErr(err, id)
	}
	return b.attrsToFile(id, attrs), nil
}

// ReadFile returns a reader for the file content
func (b *blobbackend) ReadFile(ctx context.Context, id string) (io.ReadCloser, *schema.File, error) {
	file, err := b.GetFile(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	r, err := b.bucket.NewReader(ctx, b.fileKey(id), nil)
	if err != nil {
		return nil, nil, blobErr(err, id)
	}
	return r, file, nil
}

// ListFiles returns a page of files ordered by creation time
func (b *blobbackend) ListFiles(ctx context.Context, req schema.ListFilesRequest) (*schema.FileList, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = schema.DefaultListLimit
	} else if limit > schema.MaxListLimit {
		return nil, httpresponse.ErrBadRequest.Withf("limit %d exceeds %d", limit, schema.MaxListLimit)
	}
	if req.Offset < 0 {
		return nil, httpresponse.ErrBadRequest.With("negative offset")
	}

	// Gather all files under the prefix
	var files []schema.File
	iter := b.bucket.List(&blob.ListOptions{
		Prefix: b.storageKey(filesPrefix) + "/",
	})
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, blobErr(err, filesPrefix)
		}
		id := b.idFromKey(obj.Key)
		if id == "" || obj.IsDir {
			continue
		}
		attrs, err := b.bucket.Attributes(ctx, obj.Key)
		if err != nil {
			// Deleted since listed
			continue
		}
		files = append(files, *b.attrsToFile(id, attrs))
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].Id < files[j].Id
		}
		return files[i].CreatedAt.Before(files[j].CreatedAt)
	})

	// Paginate
	response := schema.FileList{
		Total:     len(files),
		Page:      req.Offset/limit + 1,
		PageCount: (len(files) + limit - 1) / limit,
		Data:      []schema.File{},
	}
	if req.Offset < len(files) {
		end := min(req.Offset+limit, len(files))
		response.Data = files[req.Offset:end]
	}
	response.Count = len(response.Data)

	// Return success
	return &response, nil
}

// DeleteFile removes a file and returns its last metadata
func (b *blobbackend) DeleteFile(ctx context.Context, id string) (*schema.File, error) {
	file, err := b.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.bucket.Delete(ctx, b.fileKey(id)); err != nil {
		return nil, blobErr(err, id)
	}
	file.State = schema.FileStateDeleting
	return file, nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// writeFile copies the body into storage, bounded by the maximum size. On
// failure the partial object is removed.
func (b *blobbackend) writeFile(ctx context.Context, id string, req schema.CreateFileRequest) (*schema.File, error) {
	key := b.fileKey(id)
	meta, err := fileMetadata(req, time.Now())
	if err != nil {
		return nil, err
	}
	contentType := req.MimeType
	if contentType == "" {
		contentType = types.ContentTypeBinary
	}

	body := req.Body
	if b.maxSize > 0 {
		body = io.LimitReader(body, b.maxSize+1)
	}

	w, err := b.bucket.NewWriter(ctx, key, &blob.WriterOptions{
		ContentType: contentType,
		Metadata:    meta,
	})
	if err != nil {
		return nil, blobErr(err, id)
	}
	n, err := io.Copy(w, body)
	if err != nil {
		err = errors.Join(err, w.Close())
		b.remove(ctx, key)
		return nil, blobErr(err, id)
	} else if b.maxSize > 0 && n > b.maxSize {
		// Too large
		w.Close()
		b.remove(ctx, key)
		return nil, schema.ErrPayloadTooLarge.Withf("file exceeds the limit of %d bytes", b.maxSize)
	} else if err := w.Close(); err != nil {
		b.remove(ctx, key)
		return nil, blobErr(err, id)
	}

	// Read back the attributes
	attrs, err := b.bucket.Attributes(ctx, key)
	if err != nil {
		// The write succeeded, so return what is known
		return &schema.File{
			Id:        id,
			Type:      schema.FileTypeFile,
			State:     schema.FileStateCompleted,
			Name:      req.Name,
			MimeType:  contentType,
			Size:      n,
			ProjectId: req.ProjectId,
			ParentId:  req.ParentId,
			Metadata:  req.Metadata,
		}, nil
	}

	// Return success
	return b.attrsToFile(id, attrs), nil
}
