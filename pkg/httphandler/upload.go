package httphandler

import (
	"encoding/json"
	"net/http"
	"path"

	// Packages
	schema "github.com/FileZen/filezen/pkg/schema"
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi"
)

///////////////////////////////////////////////////////////////////////////////
// HANDLER FUNCTIONS

// Path: files/upload
// POST uploads one file using multipart/form-data (field name: "file")
func (a *api) uploadHandler() (string, httprequest.PathItem) {
	return "files/upload", httprequest.NewPathItem("Upload", "Single request file upload", tagFiles).
		Post(func(w http.ResponseWriter, r *http.Request) {
			_ = a.upload(w, r)
		}, "Upload a file", openapi.WithDescription("multipart/form-data with fields file, name, size, type and metadata"))
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (a *api) upload(w http.ResponseWriter, r *http.Request) error {
	var form schema.UploadForm
	if err := httprequest.Read(r, &form); err != nil {
		return a.fail(w, r, httpresponse.ErrBadRequest.With(err.Error()))
	} else if len(form.Files) == 0 {
		return a.fail(w, r, httpresponse.ErrBadRequest.With(`missing or unreadable "file" form field`))
	}
	for _, f := range form.Files {
		defer f.Body.Close() //nolint:gocritic
	}
	part := form.Files[0]

	// The name field takes precedence over the part filename
	name := form.Name
	if name == "" {
		name = path.Base(part.Path)
	}
	if err := a.authorize(r, name); err != nil {
		return a.fail(w, r, err)
	}

	contentType := form.Type
	if contentType == "" {
		contentType = part.ContentType
	}
	var metadata map[string]any
	if form.Metadata != "" {
		if err := json.Unmarshal([]byte(form.Metadata), &metadata); err != nil {
			return a.fail(w, r, httpresponse.ErrBadRequest.Withf("metadata: %v", err))
		}
	}

	file, err := a.backend.CreateFile(r.Context(), schema.CreateFileRequest{
		Name:      name,
		MimeType:  contentType,
		ProjectId: r.Header.Get(schema.ProjectIdHeader),
		ParentId:  r.Header.Get(schema.FolderIdHeader),
		Metadata:  metadata,
		Body:      part.Body,
	})
	if err != nil {
		return a.fail(w, r, err)
	}
	return httpresponse.JSON(w, http.StatusCreated, httprequest.Indent(r), a.withUrl(r, file))
}
