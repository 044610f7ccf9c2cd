package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/propgen/ragcore/internal/fault"
	"github.com/propgen/ragcore/internal/history"
	"github.com/propgen/ragcore/internal/logging"
	"github.com/propgen/ragcore/internal/pipeline"
)

// defaultHistoryPageSize is the number of turns GET /api/history returns when
// no limit is given.
const defaultHistoryPageSize = 20

// maxHistoryPageSize caps the limit parameter of GET /api/history.
const maxHistoryPageSize = 100

// handleQuery handles POST /api/query. It runs the retrieval-augmented
// pipeline and, on success, persists the question and answer as conversation
// turns. A history write failure never fails the response.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fault.Wrap(fault.KindInput, err, "invalid request body"))
		return
	}

	ans, err := s.answerer.Answer(r.Context(), &pipeline.Request{
		Question:     req.Question,
		ProfileID:    req.ProfileID,
		TopK:         req.TopK,
		Filter:       req.Filter,
		SystemPrompt: req.SystemPrompt,
		HistoryLimit: req.HistoryLimit,
	})

	outcome := outcomeForError(err)
	s.metrics.queryRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.queryDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		writeError(w, r, err)
		return
	}

	s.recordTurns(r, &req, ans.Text)

	log.Info("query answered",
		slog.String("profile_id", req.ProfileID),
		slog.Int("source_chunks", len(ans.SourceChunks)),
		slog.Bool("history_used", ans.HistoryUsed),
		slog.Duration("duration", time.Since(start)),
	)

	resp := queryResponse{
		Answer:       ans.Text,
		SourceChunks: make([]sourceChunk, 0, len(ans.SourceChunks)),
		HistoryUsed:  ans.HistoryUsed,
	}
	for _, c := range ans.SourceChunks {
		resp.SourceChunks = append(resp.SourceChunks, sourceChunk{
			ID:       c.ID,
			Text:     c.Text,
			Score:    c.Score,
			Metadata: c.Metadata,
		})
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// recordTurns persists the question/answer pair for the next query's
// transcript. Failures are logged and swallowed: history is best-effort.
func (s *Server) recordTurns(r *http.Request, req *queryRequest, answer string) {
	if s.history == nil {
		return
	}

	log := logging.FromContext(r.Context())

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = req.ProfileID
	}

	turns := []history.Message{
		{ProfileID: req.ProfileID, ConversationID: conversationID, Role: history.RoleUser, Content: req.Question},
		{ProfileID: req.ProfileID, ConversationID: conversationID, Role: history.RoleAssistant, Content: answer},
	}
	for _, msg := range turns {
		if err := s.history.Append(r.Context(), msg); err != nil {
			log.Warn("history write failed",
				slog.String("profile_id", req.ProfileID),
				slog.String("role", string(msg.Role)),
				slog.Any("error", err),
			)
			return
		}
	}
}

// handleHistory handles GET /api/history?profile=<id>&limit=<n>.
// Returns the most recent turns for the profile, oldest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, r, fault.New(fault.KindUnavailable, "conversation history is not configured"))
		return
	}

	profileID := strings.TrimSpace(r.URL.Query().Get("profile"))
	if profileID == "" {
		writeError(w, r, fault.New(fault.KindInput, "profile query parameter is required"))
		return
	}

	limit := defaultHistoryPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, fault.New(fault.KindInput, "limit must be a positive integer"))
			return
		}
		limit = min(n, maxHistoryPageSize)
	}

	msgs, err := s.history.Recent(r.Context(), profileID, limit)
	if err != nil {
		writeError(w, r, fault.Wrap(fault.KindUnavailable, err, "history fetch failed"))
		return
	}

	resp := historyResponse{ProfileID: profileID, Messages: make([]historyMessage, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, historyMessage{
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}

	writeJSON(w, r, http.StatusOK, resp)
}
