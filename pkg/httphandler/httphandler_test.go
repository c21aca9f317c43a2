package httphandler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"testing"

	// Packages
	backend "github.com/FileZen/filezen/pkg/backend"
	httphandler "github.com/FileZen/filezen/pkg/httphandler"
	schema "github.com/FileZen/filezen/pkg/schema"
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httprouter "github.com/mutablelogic/go-server/pkg/httprouter"
	jsonschema "github.com/mutablelogic/go-server/pkg/jsonschema"
)

///////////////////////////////////////////////////////////////////////////////
// ROUTERS

type mockRouter struct {
	paths  []string
	retErr error
}

func (m *mockRouter) RegisterPath(path string, params *jsonschema.Schema, pathitem httprequest.PathItem) error {
	m.paths = append(m.paths, path)
	return m.retErr
}

///////////////////////////////////////////////////////////////////////////////
// HELPERS

func newRouter(t *testing.T) *httprouter.Router {
	t.Helper()
	router, err := httprouter.NewRouter(context.Background(), http.NewServeMux(), "", "*", "filezen", "test")
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return router
}

func newTestMux(t *testing.T, opts ...httphandler.Opt) http.Handler {
	t.Helper()
	b, err := backend.NewBlobBackend(context.Background(), "mem://filezen")
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	router := newRouter(t)
	if err := httphandler.RegisterHandlers(b, router, opts...); err != nil {
		t.Fatalf("RegisterHandlers: %v", err)
	}
	return router
}

// uploadRequest builds a multipart upload request for content
func uploadRequest(t *testing.T, name, contentType, content string, metadata map[string]any) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(content))
	mw.WriteField("name", name)
	mw.WriteField("size", strconv.Itoa(len(content)))
	mw.WriteField("type", contentType)
	if metadata != nil {
		data, _ := json.Marshal(metadata)
		mw.WriteField("metadata", string(data))
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/files/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, path string, v any) *http.Request {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func chunkRequest(t *testing.T, session string, index int, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("chunk", "chunk-"+strconv.Itoa(index))
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/files/chunk-upload/part", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(schema.ChunkSessionIdHeader, session)
	req.Header.Set(schema.ChunkIndexHeader, strconv.Itoa(index))
	req.Header.Set(schema.ChunkSizeHeader, strconv.Itoa(len(content)))
	return req
}

func serve(h http.Handler, req *http.Request) *http.Response {
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	return rw.Result()
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

///////////////////////////////////////////////////////////////////////////////
// TESTS

func Test_RegisterHandlers(t *testing.T) {
	b, err := backend.NewBlobBackend(context.Background(), "mem://filezen")
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	defer b.Close()

	router := &mockRouter{}
	if err := httphandler.RegisterHandlers(b, router); err != nil {
		t.Fatalf("RegisterHandlers: %v", err)
	}
	if len(router.paths) != 8 {
		t.Errorf("expected 8 registered paths, got %d: %v", len(router.paths), router.paths)
	}
}

func Test_RegisterHandlers_routerError(t *testing.T) {
	b, err := backend.NewBlobBackend(context.Background(), "mem://filezen")
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	defer b.Close()

	router := &mockRouter{retErr: fmt.Errorf("router error")}
	if err := httphandler.RegisterHandlers(b, router); err == nil {
		t.Fatal("expected error when router.RegisterPath fails, got nil")
	}
}

func Test_RegisterHandlers_badOption(t *testing.T) {
	b, err := backend.NewBlobBackend(context.Background(), "mem://filezen")
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	defer b.Close()

	if err := httphandler.RegisterHandlers(b, &mockRouter{}, httphandler.WithBaseURL("not a url")); err == nil {
		t.Fatal("expected error for invalid base url")
	}
}

func Test_upload(t *testing.T) {
	mux := newTestMux(t)

	resp := serve(mux, uploadRequest(t, "a.txt", "text/plain", "Hello, World!", map[string]any{"k": "v"}))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.StatusCode)
	}
	var file schema.File
	decode(t, resp, &file)
	if file.Id == "" || file.Name != "a.txt" || file.Size != 13 || file.MimeType != "text/plain" {
		t.Errorf("unexpected file: %v", file)
	}
	if file.Metadata["k"] != "v" {
		t.Errorf("expected metadata k=v, got %v", file.Metadata)
	}
	if want := "http://example.com/files/" + file.Id + "/content"; file.Url != want {
		t.Errorf("expected url %q, got %q", want, file.Url)
	}

	// Download the content
	resp = serve(mux, httptest.NewRequest(http.MethodGet, "/files/"+file.Id+"/content", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	if string(data) != "Hello, World!" {
		t.Errorf("unexpected content %q", data)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/plain" {
		t.Errorf("unexpected content type %q", ct)
	}
}

func Test_upload_headers(t *testing.T) {
	mux := newTestMux(t, httphandler.WithBaseURL("https://cdn.example.com/api/"))

	req := uploadRequest(t, "b.bin", "application/octet-stream", "xyz", nil)
	req.Header.Set(schema.ProjectIdHeader, "project")
	req.Header.Set(schema.FolderIdHeader, "folder")
	resp := serve(mux, req)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.StatusCode)
	}
	var file schema.File
	decode(t, resp, &file)
	if file.ProjectId != "project" || file.ParentId != "folder" {
		t.Errorf("unexpected linkage: %v", file)
	}
	if want := "https://cdn.example.com/api/files/" + file.Id + "/content"; file.Url != want {
		t.Errorf("expected url %q, got %q", want, file.Url)
	}
}

func Test_upload_missingFile(t *testing.T) {
	mux := newTestMux(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("name", "x")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/files/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	if resp := serve(mux, req); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", resp.StatusCode)
	}
}

func Test_methodNotAllowed(t *testing.T) {
	mux := newTestMux(t)
	if resp := serve(mux, httptest.NewRequest(http.MethodGet, "/files/upload", nil)); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", resp.StatusCode)
	}
}

func Test_chunkUpload(t *testing.T) {
	mux := newTestMux(t)

	resp := serve(mux, jsonRequest(t, http.MethodPost, "/files/chunk-upload/initialize", schema.MultipartStartRequest{
		FileName:  "big.txt",
		MimeType:  "text/plain",
		TotalSize: 30,
		Mode:      schema.ModeChunked,
	}))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.StatusCode)
	}
	var start schema.MultipartStartResponse
	decode(t, resp, &start)
	if start.Id == "" {
		t.Fatal("expected a session id")
	}

	var chunk schema.ChunkResponse
	for _, index := range []int{1, 0, 2} {
		resp := serve(mux, chunkRequest(t, start.Id, index, string(rune('a'+index))+"123456789"))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("chunk %d: expected status 200, got %d", index, resp.StatusCode)
		}
		chunk = schema.ChunkResponse{}
		decode(t, resp, &chunk)
		if index != 2 && chunk.IsComplete {
			t.Errorf("chunk %d: unexpected completion", index)
		}
	}
	if !chunk.IsComplete || chunk.File == nil || chunk.File.Size != 30 {
		t.Fatalf("expected complete response with file, got %+v", chunk)
	}

	resp = serve(mux, jsonRequest(t, http.MethodPost, "/files/chunk-upload/complete", schema.MultipartFinishRequest{SessionId: start.Id}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	var finish schema.MultipartFinishResponse
	decode(t, resp, &finish)
	if finish.File == nil || finish.File.Id != chunk.File.Id || finish.File.Url == "" {
		t.Errorf("unexpected finish response: %+v", finish)
	}

	// A second finish refers to an unknown session
	resp = serve(mux, jsonRequest(t, http.MethodPost, "/files/chunk-upload/complete", schema.MultipartFinishRequest{SessionId: start.Id}))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", resp.StatusCode)
	}
}

func Test_chunkUpload_errors(t *testing.T) {
	mux := newTestMux(t)

	// Unknown session
	if resp := serve(mux, chunkRequest(t, "missing", 0, "x")); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", resp.StatusCode)
	}

	// Missing headers
	req := chunkRequest(t, "missing", 0, "x")
	req.Header.Del(schema.ChunkIndexHeader)
	if resp := serve(mux, req); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", resp.StatusCode)
	}

	// Invalid mode
	resp := serve(mux, jsonRequest(t, http.MethodPost, "/files/chunk-upload/initialize", schema.MultipartStartRequest{FileName: "x", Mode: "OTHER"}))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", resp.StatusCode)
	}
}

func Test_files(t *testing.T) {
	mux := newTestMux(t)

	var ids []string
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		var file schema.File
		decode(t, serve(mux, uploadRequest(t, name, "text/plain", name, nil)), &file)
		ids = append(ids, file.Id)
	}

	// List
	var list schema.FileList
	decode(t, serve(mux, httptest.NewRequest(http.MethodGet, "/files?limit=2", nil)), &list)
	if list.Total != 3 || list.Count != 2 || list.PageCount != 2 {
		t.Errorf("unexpected list: %v", list)
	}

	// Get
	var file schema.File
	decode(t, serve(mux, httptest.NewRequest(http.MethodGet, "/files/"+ids[0], nil)), &file)
	if file.Id != ids[0] || file.Url == "" {
		t.Errorf("unexpected file: %v", file)
	}

	// Delete by id
	var result schema.DeleteResponse
	decode(t, serve(mux, httptest.NewRequest(http.MethodDelete, "/files/"+ids[0], nil)), &result)
	if !result.Success {
		t.Error("expected success")
	}
	if resp := serve(mux, httptest.NewRequest(http.MethodGet, "/files/"+ids[0], nil)); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", resp.StatusCode)
	}

	// Delete by url
	fileUrl := "http://example.com/files/" + ids[1] + "/content"
	resp := serve(mux, httptest.NewRequest(http.MethodDelete, "/files/delete-by-url?url="+fileUrl, nil))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if resp := serve(mux, httptest.NewRequest(http.MethodDelete, "/files/delete-by-url", nil)); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", resp.StatusCode)
	}

	decode(t, serve(mux, httptest.NewRequest(http.MethodGet, "/files", nil)), &list)
	if list.Total != 1 || list.Data[0].Id != ids[2] {
		t.Errorf("unexpected list after delete: %v", list)
	}
}
