package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/emsight-ai/emsight-engine/pkg/golden"
)

// GoldenAddRequest is the body of POST /api/golden-query/add and of the
// admin correction endpoint.
type GoldenAddRequest struct {
	Question string   `json:"question"`
	SQL      string   `json:"sql"`
	Notes    string   `json:"notes"`
	Tags     []string `json:"tags"`
}

// GoldenHandler exposes the golden-example store over HTTP.
type GoldenHandler struct {
	store  *golden.Store
	logger *zap.Logger
}

// NewGoldenHandler creates a GoldenHandler.
func NewGoldenHandler(store *golden.Store, logger *zap.Logger) *GoldenHandler {
	return &GoldenHandler{store: store, logger: logger}
}

// RegisterRoutes registers the golden handler's routes on the given mux.
func (h *GoldenHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/golden-query/add", h.Add)
	mux.HandleFunc("GET /api/golden-query/stats", h.Stats)
	mux.HandleFunc("POST /api/admin/correct-sql", h.CorrectSQL)
}

// Add handles POST /api/golden-query/add requests.
func (h *GoldenHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req GoldenAddRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	h.addExample(w, r, req)
}

// CorrectSQL handles POST /api/admin/correct-sql requests. Corrections are
// regular golden examples tagged for later review.
func (h *GoldenHandler) CorrectSQL(w http.ResponseWriter, r *http.Request) {
	var req GoldenAddRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	req.Tags = []string{"admin_correction"}
	h.addExample(w, r, req)
}

func (h *GoldenHandler) addExample(w http.ResponseWriter, r *http.Request, req GoldenAddRequest) {
	if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.SQL) == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_fields", "question and sql are required")
		return
	}

	if err := h.store.AddExample(r.Context(), req.Question, req.SQL, req.Notes, req.Tags); err != nil {
		h.logger.Error("failed to store golden example", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "store_failed",
			"Could not persist the example")
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]string{"status": "stored"}); err != nil {
		h.logger.Error("Failed to encode golden add response", zap.Error(err))
	}
}

// Stats handles GET /api/golden-query/stats requests.
func (h *GoldenHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, h.store.Stats()); err != nil {
		h.logger.Error("Failed to encode golden stats response", zap.Error(err))
	}
}
