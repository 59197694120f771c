package handlers

import (
	"net/http"
	"os"
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/emsight-ai/emsight-engine/pkg/config"
)

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// StatusResponse reports pipeline readiness. The generation model warms up
// in the background after startup, so /api/status lets clients poll before
// sending their first question.
type StatusResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
}

// HealthHandler handles health check, ping, and readiness endpoints.
type HealthHandler struct {
	cfg    *config.Config
	ready  *atomic.Bool
	logger *zap.Logger
}

// NewHealthHandler creates a HealthHandler. The ready flag is flipped by
// the warmup goroutine once the generation endpoint answers.
func NewHealthHandler(cfg *config.Config, ready *atomic.Bool, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, ready: ready, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
	mux.HandleFunc("GET /api/status", h.Status)
}

// Health handles GET /health requests.
// Returns a simple "ok" status for load balancer health checks.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "emsight-engine",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}

// Status handles GET /api/status requests.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	response := StatusResponse{Status: "warming_up", Ready: false}
	if h.ready.Load() {
		response = StatusResponse{Status: "ready", Ready: true}
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode status response", zap.Error(err))
	}
}
