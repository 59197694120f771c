package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/emsight-ai/emsight-engine/pkg/chat"
	"github.com/emsight-ai/emsight-engine/pkg/generator"
	"github.com/emsight-ai/emsight-engine/pkg/sql"
	"github.com/emsight-ai/emsight-engine/pkg/warehouse"
)

// Generator produces a validated query for a refined question.
type Generator interface {
	Generate(ctx context.Context, question string, contextEntities []string) (generator.Result, error)
}

// GenerateRequest is the body of POST /api/generate-sql.
type GenerateRequest struct {
	SessionID          string `json:"session_id"`
	Question           string `json:"question"`
	UseFollowupContext *bool  `json:"use_followup_context"`
}

// GenerateResponse is the body returned by POST /api/generate-sql.
// Violations is non-empty only when every attempt failed validation and
// the last candidate is returned degraded.
type GenerateResponse struct {
	SQL        string          `json:"sql"`
	Attempts   int             `json:"attempts"`
	Violations []sql.Violation `json:"violations,omitempty"`
}

// ExecuteRequest is the body of POST /api/execute-sql. RefinedQuestion is
// used to classify the result for follow-up context.
type ExecuteRequest struct {
	SessionID       string `json:"session_id"`
	SQL             string `json:"sql"`
	RefinedQuestion string `json:"refined_question"`
}

// ExecuteResponse is the body returned by POST /api/execute-sql. Execution
// failures return 200 with Error set so the conversation can recover.
type ExecuteResponse struct {
	Columns  []string         `json:"columns,omitempty"`
	Rows     []map[string]any `json:"rows,omitempty"`
	RowCount int              `json:"row_count"`
	Error    string           `json:"error,omitempty"`
}

// QueryHandler exposes query generation and execution over HTTP.
type QueryHandler struct {
	generator   Generator
	executor    warehouse.Executor
	chat        *chat.Controller
	errorLogDir string
	logger      *zap.Logger
}

// NewQueryHandler creates a QueryHandler. The executor may be nil, which
// disables /api/execute-sql.
func NewQueryHandler(gen Generator, executor warehouse.Executor, chatController *chat.Controller, errorLogDir string, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		generator:   gen,
		executor:    executor,
		chat:        chatController,
		errorLogDir: errorLogDir,
		logger:      logger,
	}
}

// RegisterRoutes registers the query handler's routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/generate-sql", h.GenerateSQL)
	mux.HandleFunc("POST /api/execute-sql", h.ExecuteSQL)
}

// GenerateSQL handles POST /api/generate-sql requests.
func (h *QueryHandler) GenerateSQL(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_question", "question is required")
		return
	}

	var contextEntities []string
	followup := req.UseFollowupContext == nil || *req.UseFollowupContext
	if followup && req.SessionID != "" {
		contextEntities = h.chat.ContextEntities(req.SessionID)
	}

	result, err := h.generator.Generate(r.Context(), req.Question, contextEntities)
	if err != nil {
		h.logger.Error("generation failed",
			zap.String("question", req.Question),
			zap.Error(err))
		_ = ErrorResponse(w, http.StatusBadGateway, "generation_failed",
			"The generation service is unavailable")
		return
	}
	if result.SQL == "" {
		_ = ErrorResponse(w, http.StatusUnprocessableEntity, "no_query_generated",
			"The model did not produce a usable query")
		return
	}

	response := GenerateResponse{
		SQL:        result.SQL,
		Attempts:   result.Attempts,
		Violations: result.Violations,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode generate response", zap.Error(err))
	}
}

// ExecuteSQL handles POST /api/execute-sql requests.
func (h *QueryHandler) ExecuteSQL(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_sql", "sql is required")
		return
	}
	if h.executor == nil {
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "warehouse_unavailable",
			"No warehouse connection is configured")
		return
	}

	result, err := h.executor.Execute(r.Context(), req.SQL)
	if err != nil {
		h.logExecutionError(req, err)
		// Recoverable from the conversation's point of view: surface
		// the database error in-band rather than failing the request.
		response := ExecuteResponse{Error: err.Error()}
		if writeErr := WriteJSON(w, http.StatusOK, response); writeErr != nil {
			h.logger.Error("Failed to encode execute response", zap.Error(writeErr))
		}
		return
	}

	if req.SessionID != "" && req.RefinedQuestion != "" {
		h.chat.UpdateQueryResults(req.SessionID, req.RefinedQuestion, req.SQL, result)
	}

	response := ExecuteResponse{
		Columns:  result.Columns,
		Rows:     result.Rows,
		RowCount: result.RowCount,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode execute response", zap.Error(err))
	}
}

// logExecutionError appends the failed statement to a JSONL file for later
// rule mining.
func (h *QueryHandler) logExecutionError(req ExecuteRequest, execErr error) {
	h.logger.Warn("query execution failed",
		zap.String("session_id", req.SessionID),
		zap.Error(execErr))

	if h.errorLogDir == "" {
		return
	}
	if err := os.MkdirAll(h.errorLogDir, 0o755); err != nil {
		h.logger.Error("failed to create error log dir", zap.Error(err))
		return
	}

	entry := map[string]any{
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"session_id":       req.SessionID,
		"refined_question": req.RefinedQuestion,
		"sql":              req.SQL,
		"error":            execErr.Error(),
	}
	if err := appendJSONL(filepath.Join(h.errorLogDir, "sql_execution_errors.jsonl"), entry); err != nil {
		h.logger.Error("failed to write error log", zap.Error(err))
	}
}

// appendJSONL appends one JSON object per line to path.
func appendJSONL(path string, entry any) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(data, '\n'))
	return err
}
