package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// FeedbackRequest is the body of POST /api/feedback.
type FeedbackRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	SQL       string `json:"sql"`
	Feedback  string `json:"feedback"`
	Comments  string `json:"comments"`
}

// FeedbackHandler appends user feedback to daily JSONL files. Feedback
// marked "wrong" is additionally copied to a priority review file.
type FeedbackHandler struct {
	dir    string
	now    func() time.Time
	logger *zap.Logger
}

// NewFeedbackHandler creates a FeedbackHandler writing under dir.
func NewFeedbackHandler(dir string, logger *zap.Logger) *FeedbackHandler {
	return &FeedbackHandler{dir: dir, now: time.Now, logger: logger}
}

// RegisterRoutes registers the feedback handler's routes on the given mux.
func (h *FeedbackHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/feedback", h.Feedback)
}

// Feedback handles POST /api/feedback requests.
func (h *FeedbackHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Feedback) == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_feedback", "feedback is required")
		return
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		h.logger.Error("failed to create feedback dir", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "store_failed", "Could not persist feedback")
		return
	}

	now := h.now().UTC()
	entry := map[string]any{
		"timestamp":  now.Format(time.RFC3339),
		"session_id": req.SessionID,
		"question":   req.Question,
		"sql":        req.SQL,
		"feedback":   req.Feedback,
		"comments":   req.Comments,
	}

	daily := filepath.Join(h.dir, fmt.Sprintf("feedback_%s.jsonl", now.Format("2006-01-02")))
	if err := appendJSONL(daily, entry); err != nil {
		h.logger.Error("failed to write feedback", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "store_failed", "Could not persist feedback")
		return
	}

	if strings.EqualFold(req.Feedback, "wrong") {
		if err := appendJSONL(filepath.Join(h.dir, "priority_review.jsonl"), entry); err != nil {
			h.logger.Error("failed to write priority review entry", zap.Error(err))
		}
	}

	if err := WriteJSON(w, http.StatusOK, map[string]string{"status": "recorded"}); err != nil {
		h.logger.Error("Failed to encode feedback response", zap.Error(err))
	}
}
