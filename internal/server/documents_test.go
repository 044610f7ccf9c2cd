package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/propgen/ragcore/internal/fault"
	"github.com/propgen/ragcore/internal/ingestion"
)

// multipartUpload builds a multipart request body with a "file" part and a
// "profile_id" field.
func multipartUpload(t *testing.T, profileID, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if profileID != "" {
		if err := mw.WriteField("profile_id", profileID); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("write file part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

// TestHandleUpload_Success verifies a full multipart ingest round trip.
func TestHandleUpload_Success(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	ing := &fakeIngestor{result: &ingestion.Result{
		DocumentID:    "d0c",
		ChunksCreated: 3,
	}}
	s.ingestor = ing

	body, ct := multipartUpload(t, "client-a", "proposal.pdf", []byte("%PDF-1.7 fake"))
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	s.handleUpload(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d — body: %s", w.Code, w.Body.String())
	}

	var resp uploadResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.DocumentID != "d0c" {
		t.Errorf("document_id: expected d0c, got %q", resp.DocumentID)
	}
	if resp.ChunksCreated != 3 {
		t.Errorf("chunks_created: expected 3, got %d", resp.ChunksCreated)
	}
	if len(resp.DegradedChunks) != 0 {
		t.Errorf("expected no degraded chunks, got %v", resp.DegradedChunks)
	}

	if ing.lastProfileID != "client-a" {
		t.Errorf("profile passed to ingest: expected client-a, got %q", ing.lastProfileID)
	}
	if ing.lastFilename != "proposal.pdf" {
		t.Errorf("filename passed to ingest: expected proposal.pdf, got %q", ing.lastFilename)
	}
	if !bytes.Equal(ing.lastData, []byte("%PDF-1.7 fake")) {
		t.Error("upload bytes were not passed through unchanged")
	}
}

// TestHandleUpload_DegradedChunksReported verifies that degraded chunk
// indices from the ingest result are echoed in the response.
func TestHandleUpload_DegradedChunksReported(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.ingestor = &fakeIngestor{result: &ingestion.Result{
		DocumentID:     "d0c",
		ChunksCreated:  2,
		DegradedChunks: []int{1},
	}}

	body, ct := multipartUpload(t, "client-a", "proposal.pdf", []byte("pdf"))
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	s.handleUpload(w, req)

	var resp uploadResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.DegradedChunks) != 1 || resp.DegradedChunks[0] != 1 {
		t.Errorf("degraded_chunks: expected [1], got %v", resp.DegradedChunks)
	}
}

// TestHandleUpload_MissingProfile verifies that an upload without a
// profile_id field is rejected with 422.
func TestHandleUpload_MissingProfile(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	body, ct := multipartUpload(t, "", "proposal.pdf", []byte("pdf"))
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	s.handleUpload(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", w.Code)
	}
}

// TestHandleUpload_MissingFile verifies that an upload without a file part
// is rejected with 422.
func TestHandleUpload_MissingFile(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	body, ct := multipartUpload(t, "client-a", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	s.handleUpload(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", w.Code)
	}
}

// TestHandleUpload_IngestFault verifies that ingest faults are mapped to
// their HTTP status: an unchunkable document yields 422.
func TestHandleUpload_IngestFault(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.ingestor = &fakeIngestor{err: fault.ErrNoChunks}

	body, ct := multipartUpload(t, "client-a", "empty.pdf", []byte("pdf"))
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	s.handleUpload(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d — body: %s", w.Code, w.Body.String())
	}

	var resp errorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == "" {
		t.Error("expected a non-empty error message")
	}
}

// TestHandleDeleteDocument_Success verifies deletion reports the chunk count.
func TestHandleDeleteDocument_Success(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	ing := &fakeIngestor{deleted: 4}
	s.ingestor = ing

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/doc-9?profile=client-a", nil)
	req.SetPathValue("id", "doc-9")
	w := httptest.NewRecorder()

	s.handleDeleteDocument(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}

	var resp deleteResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.DocumentID != "doc-9" {
		t.Errorf("document_id: expected doc-9, got %q", resp.DocumentID)
	}
	if resp.ChunksDeleted != 4 {
		t.Errorf("chunks_deleted: expected 4, got %d", resp.ChunksDeleted)
	}
	if ing.lastDocumentID != "doc-9" || ing.lastProfileID != "client-a" {
		t.Errorf("unexpected delete args: profile=%q doc=%q", ing.lastProfileID, ing.lastDocumentID)
	}
}

// TestHandleDeleteDocument_MissingProfile verifies that the profile query
// parameter is mandatory.
func TestHandleDeleteDocument_MissingProfile(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodDelete, "/api/documents/doc-9", nil)
	req.SetPathValue("id", "doc-9")
	w := httptest.NewRecorder()

	s.handleDeleteDocument(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", w.Code)
	}
}

// TestHandleDropProfile_Success verifies a successful collection drop.
func TestHandleDropProfile_Success(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	ing := &fakeIngestor{}
	s.ingestor = ing

	req := httptest.NewRequest(http.MethodDelete, "/api/profiles/client-a/collection", nil)
	req.SetPathValue("id", "client-a")
	w := httptest.NewRecorder()

	s.handleDropProfile(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	if ing.lastProfileID != "client-a" {
		t.Errorf("profile passed to drop: expected client-a, got %q", ing.lastProfileID)
	}
}

// TestHandleDropProfile_NotFound verifies that dropping a collection that
// does not exist returns 404.
func TestHandleDropProfile_NotFound(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.ingestor = &fakeIngestor{err: fault.ErrCollectionNotFound}

	req := httptest.NewRequest(http.MethodDelete, "/api/profiles/ghost/collection", nil)
	req.SetPathValue("id", "ghost")
	w := httptest.NewRecorder()

	s.handleDropProfile(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
