package server

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/propgen/ragcore/internal/fault"
	"github.com/propgen/ragcore/internal/logging"
)

// handleUpload handles POST /api/documents. It accepts a multipart form with
// a "file" part (the PDF) and a "profile_id" field, runs the full ingestion
// flow, and returns the document id and chunk count.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, r, fault.Wrap(fault.KindInput, err, "invalid multipart upload"))
		return
	}

	profileID := strings.TrimSpace(r.FormValue("profile_id"))
	if profileID == "" {
		writeError(w, r, fault.New(fault.KindInput, "profile_id is required"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, fault.Wrap(fault.KindInput, err, "file part is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, fault.Wrap(fault.KindInput, err, "failed to read upload"))
		return
	}

	res, err := s.ingestor.Ingest(r.Context(), profileID, header.Filename, data)

	outcome := outcomeForError(err)
	s.metrics.ingestDocumentsTotal.WithLabelValues(outcome).Inc()
	s.metrics.ingestDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		writeError(w, r, err)
		return
	}

	s.metrics.ingestChunksTotal.Add(float64(res.ChunksCreated))

	log.Info("document ingested",
		slog.String("profile_id", profileID),
		slog.String("document_id", res.DocumentID),
		slog.String("filename", header.Filename),
		slog.Int("chunks", res.ChunksCreated),
		slog.Int("degraded", len(res.DegradedChunks)),
	)

	writeJSON(w, r, http.StatusCreated, uploadResponse{
		DocumentID:     res.DocumentID,
		ChunksCreated:  res.ChunksCreated,
		DegradedChunks: res.DegradedChunks,
	})
}

// handleDeleteDocument handles DELETE /api/documents/{id}. The owning profile
// is passed as the "profile" query parameter. Deleting a document that has no
// chunks is not an error; the response reports zero deletions.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")
	profileID := strings.TrimSpace(r.URL.Query().Get("profile"))
	if profileID == "" {
		writeError(w, r, fault.New(fault.KindInput, "profile query parameter is required"))
		return
	}

	deleted, err := s.ingestor.DeleteDocument(r.Context(), profileID, documentID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("document deleted",
		slog.String("profile_id", profileID),
		slog.String("document_id", documentID),
		slog.Uint64("chunks_deleted", deleted),
	)

	writeJSON(w, r, http.StatusOK, deleteResponse{
		DocumentID:    documentID,
		ChunksDeleted: deleted,
	})
}

// handleDropProfile handles DELETE /api/profiles/{id}/collection.
// Dropping a profile that has never ingested anything returns 404.
func (s *Server) handleDropProfile(w http.ResponseWriter, r *http.Request) {
	profileID := r.PathValue("id")

	if err := s.ingestor.DropProfile(r.Context(), profileID); err != nil {
		writeError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("profile collection dropped",
		slog.String("profile_id", profileID),
	)

	writeJSON(w, r, http.StatusOK, map[string]string{"profile_id": profileID, "status": "dropped"})
}
