package httphandler

import (
	"net/http"
	"strconv"

	// Packages
	schema "github.com/FileZen/filezen/pkg/schema"
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi"
)

///////////////////////////////////////////////////////////////////////////////
// HANDLER FUNCTIONS

// Path: files/chunk-upload/initialize
// POST starts a multipart session
func (a *api) chunkInitializeHandler() (string, httprequest.PathItem) {
	return "files/chunk-upload/initialize", httprequest.NewPathItem("Chunk upload", "Multipart upload sessions", tagFiles).
		Post(func(w http.ResponseWriter, r *http.Request) {
			_ = a.chunkInitialize(w, r)
		}, "Start a multipart upload session")
}

// Path: files/chunk-upload/part
// POST uploads one chunk using multipart/form-data (field name: "chunk")
func (a *api) chunkPartHandler() (string, httprequest.PathItem) {
	return "files/chunk-upload/part", httprequest.NewPathItem("Chunk upload part", "Multipart upload sessions", tagFiles).
		Post(func(w http.ResponseWriter, r *http.Request) {
			_ = a.chunkPart(w, r)
		}, "Upload a chunk", openapi.WithDescription("The session and index are given by the Chunk-Session-Id and Chunk-Index headers"))
}

// Path: files/chunk-upload/complete
// POST finishes a multipart session
func (a *api) chunkCompleteHandler() (string, httprequest.PathItem) {
	return "files/chunk-upload/complete", httprequest.NewPathItem("Chunk upload complete", "Multipart upload sessions", tagFiles).
		Post(func(w http.ResponseWriter, r *http.Request) {
			_ = a.chunkComplete(w, r)
		}, "Finish a multipart session and return the file")
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (a *api) chunkInitialize(w http.ResponseWriter, r *http.Request) error {
	var req schema.MultipartStartRequest
	if err := httprequest.Read(r, &req); err != nil {
		return a.fail(w, r, httpresponse.ErrBadRequest.With(err.Error()))
	} else if err := a.authorize(r, req.FileName); err != nil {
		return a.fail(w, r, err)
	}

	response, err := a.backend.StartSession(r.Context(), req)
	if err != nil {
		return a.fail(w, r, err)
	}
	return httpresponse.JSON(w, http.StatusCreated, httprequest.Indent(r), response)
}

func (a *api) chunkPart(w http.ResponseWriter, r *http.Request) error {
	session := r.Header.Get(schema.ChunkSessionIdHeader)
	if session == "" {
		return a.fail(w, r, httpresponse.ErrBadRequest.Withf("missing %s header", schema.ChunkSessionIdHeader))
	}
	index, err := strconv.Atoi(r.Header.Get(schema.ChunkIndexHeader))
	if err != nil {
		return a.fail(w, r, httpresponse.ErrBadRequest.Withf("invalid %s header", schema.ChunkIndexHeader))
	}
	if err := a.authorize(r, session); err != nil {
		return a.fail(w, r, err)
	}

	var form schema.ChunkForm
	if err := httprequest.Read(r, &form); err != nil {
		return a.fail(w, r, httpresponse.ErrBadRequest.With(err.Error()))
	} else if len(form.Chunks) == 0 {
		return a.fail(w, r, httpresponse.ErrBadRequest.With(`missing or unreadable "chunk" form field`))
	}
	for _, f := range form.Chunks {
		defer f.Body.Close() //nolint:gocritic
	}

	response, err := a.backend.WriteChunk(r.Context(), session, index, form.Chunks[0].Body)
	if err != nil {
		return a.fail(w, r, err)
	}
	response.File = a.withUrl(r, response.File)
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), response)
}

func (a *api) chunkComplete(w http.ResponseWriter, r *http.Request) error {
	var req schema.MultipartFinishRequest
	if err := httprequest.Read(r, &req); err != nil {
		return a.fail(w, r, httpresponse.ErrBadRequest.With(err.Error()))
	} else if req.SessionId == "" {
		return a.fail(w, r, httpresponse.ErrBadRequest.With("missing sessionId"))
	} else if err := a.authorize(r, req.SessionId); err != nil {
		return a.fail(w, r, err)
	}

	file, err := a.backend.CompleteSession(r.Context(), req.SessionId)
	if err != nil {
		return a.fail(w, r, err)
	}
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), schema.MultipartFinishResponse{File: a.withUrl(r, file)})
}
