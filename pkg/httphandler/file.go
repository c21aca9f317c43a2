package httphandler

import (
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	// Packages
	schema "github.com/FileZen/filezen/pkg/schema"
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// HANDLER FUNCTIONS

// Path: files
// GET lists files, paged with the limit and offset query parameters
func (a *api) fileListHandler() (string, httprequest.PathItem) {
	return "files", httprequest.NewPathItem("Files", "Stored files", tagFiles).
		Get(func(w http.ResponseWriter, r *http.Request) {
			_ = a.fileList(w, r)
		}, "List files")
}

// Path: files/{id}
// GET returns file metadata, DELETE removes the file
func (a *api) fileHandler() (string, httprequest.PathItem) {
	return "files/{id}", httprequest.NewPathItem("File", "A stored file", tagFiles).
		Get(func(w http.ResponseWriter, r *http.Request) {
			_ = a.fileGet(w, r)
		}, "Get file metadata").
		Delete(func(w http.ResponseWriter, r *http.Request) {
			_ = a.fileDelete(w, r, r.PathValue("id"))
		}, "Delete a file")
}

// Path: files/{id}/content
// GET downloads the file content
func (a *api) fileContentHandler() (string, httprequest.PathItem) {
	return "files/{id}/content", httprequest.NewPathItem("File content", "The content of a stored file", tagFiles).
		Get(func(w http.ResponseWriter, r *http.Request) {
			_ = a.fileContent(w, r)
		}, "Download file content", openapi.WithDescription("Readable by anyone who knows the file id"))
}

// Path: files/delete-by-url
// DELETE removes the file with the URL given in the url query parameter
func (a *api) deleteByUrlHandler() (string, httprequest.PathItem) {
	return "files/delete-by-url", httprequest.NewPathItem("Delete by URL", "Delete a file given its URL", tagFiles).
		Delete(func(w http.ResponseWriter, r *http.Request) {
			_ = a.deleteByUrl(w, r)
		}, "Delete a file by its URL")
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (a *api) fileList(w http.ResponseWriter, r *http.Request) error {
	var req schema.ListFilesRequest
	if err := a.authorize(r, ""); err != nil {
		return a.fail(w, r, err)
	} else if err := httprequest.Query(r.URL.Query(), &req); err != nil {
		return a.fail(w, r, httpresponse.ErrBadRequest.With(err.Error()))
	}

	list, err := a.backend.ListFiles(r.Context(), req)
	if err != nil {
		return a.fail(w, r, err)
	}
	for i := range list.Data {
		list.Data[i] = *a.withUrl(r, &list.Data[i])
	}
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), list)
}

func (a *api) fileGet(w http.ResponseWriter, r *http.Request) error {
	if err := a.authorize(r, ""); err != nil {
		return a.fail(w, r, err)
	}
	file, err := a.backend.GetFile(r.Context(), r.PathValue("id"))
	if err != nil {
		return a.fail(w, r, err)
	}
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), a.withUrl(r, file))
}

// fileContent is readable by anyone who knows the file id
func (a *api) fileContent(w http.ResponseWriter, r *http.Request) error {
	reader, file, err := a.backend.ReadFile(r.Context(), r.PathValue("id"))
	if err != nil {
		return a.fail(w, r, err)
	}
	defer reader.Close()

	contentType := file.MimeType
	if contentType == "" {
		contentType = types.ContentTypeBinary
	}
	w.Header().Set(types.ContentTypeHeader, contentType)
	if cd := mime.FormatMediaType("inline", map[string]string{"filename": file.Name}); cd != "" {
		w.Header().Set(types.ContentDispositonHeader, cd)
	}
	w.Header().Set(types.ContentLengthHeader, strconv.FormatInt(file.Size, 10))
	w.WriteHeader(http.StatusOK)

	_, err = io.Copy(w, reader)
	return err
}

func (a *api) fileDelete(w http.ResponseWriter, r *http.Request, id string) error {
	if err := a.authorize(r, ""); err != nil {
		return a.fail(w, r, err)
	}
	if _, err := a.backend.DeleteFile(r.Context(), id); err != nil {
		return a.fail(w, r, err)
	}
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), schema.DeleteResponse{Success: true})
}

func (a *api) deleteByUrl(w http.ResponseWriter, r *http.Request) error {
	var req schema.DeleteByUrlRequest
	if err := httprequest.Query(r.URL.Query(), &req); err != nil {
		return a.fail(w, r, httpresponse.ErrBadRequest.With(err.Error()))
	} else if req.Url == "" {
		return a.fail(w, r, httpresponse.ErrBadRequest.With("url query parameter is required"))
	}
	id := FileIdFromUrl(req.Url)
	if id == "" {
		return a.fail(w, r, httpresponse.ErrNotFound.Withf("no file for %q", req.Url))
	}
	return a.fileDelete(w, r, id)
}

// FileIdFromUrl returns the file id from a URL of the form .../files/{id}[/...],
// or empty string
func FileIdFromUrl(value string) string {
	u, err := url.Parse(value)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segments) - 2; i >= 0; i-- {
		if segments[i] == "files" && segments[i+1] != "" {
			return segments[i+1]
		}
	}
	return ""
}
