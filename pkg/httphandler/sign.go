package httphandler

import (
	"context"
	"net/http"

	// Packages
	schema "github.com/FileZen/filezen/pkg/schema"
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Storage signs URLs and deletes files on behalf of browser clients
type Storage interface {
	GenerateSignedUrl(schema.SignRequest) (string, error)
	Delete(ctx context.Context, urlOrId string) error
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// RegisterSignHandler registers a handler at path which signs upload URLs
// and deletes files, so that clients never hold the API key.
func RegisterSignHandler(storage Storage, router Router, path string) error {
	path, item := SignHandler(storage, path)
	return router.RegisterPath(path, nil, item)
}

// Path: {path}
// POST returns a signed URL for a path and file key, DELETE removes a file
// given its id or URL in the urlOrId query parameter
func SignHandler(storage Storage, path string) (string, httprequest.PathItem) {
	return path, httprequest.NewPathItem("Sign", "Signed uploads for browser clients", "Sign").
		Post(func(w http.ResponseWriter, r *http.Request) {
			_ = sign(w, r, storage)
		}, "Sign an upload URL", openapi.WithDescription("Fields: path, fileKey, expiresIn")).
		Delete(func(w http.ResponseWriter, r *http.Request) {
			_ = signDelete(w, r, storage)
		}, "Delete a file by id or URL")
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func sign(w http.ResponseWriter, r *http.Request, storage Storage) error {
	var req schema.SignRequest
	if err := httprequest.Read(r, &req); err != nil {
		return httpresponse.Error(w, httpresponse.ErrBadRequest.With(err.Error()))
	} else if req.Path == "" || req.FileKey == "" {
		return httpresponse.Error(w, httpresponse.ErrBadRequest.With("path and fileKey are required"))
	}

	url, err := storage.GenerateSignedUrl(req)
	if err != nil {
		return httpresponse.Error(w, httpErr(err))
	}
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), schema.SignResponse{Url: url})
}

func signDelete(w http.ResponseWriter, r *http.Request, storage Storage) error {
	var req schema.DeleteRequest
	if err := httprequest.Query(r.URL.Query(), &req); err != nil {
		return httpresponse.Error(w, httpresponse.ErrBadRequest.With(err.Error()))
	} else if req.UrlOrId == "" {
		return httpresponse.Error(w, httpresponse.ErrBadRequest.With("urlOrId query parameter is required"))
	}

	if err := storage.Delete(r.Context(), req.UrlOrId); err != nil {
		return httpresponse.Error(w, httpErr(err))
	}
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), schema.DeleteResponse{Success: true})
}
