package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emsight-ai/emsight-engine/pkg/apperrors"
	"github.com/emsight-ai/emsight-engine/pkg/chat"
)

// ChatRequest is the body of POST /api/chat. UseFollowupContext defaults
// to true; sending false marks the message as a fresh question and drops
// the session's analytical carry-over first.
type ChatRequest struct {
	SessionID          string `json:"session_id"`
	Message            string `json:"message"`
	UseFollowupContext *bool  `json:"use_followup_context"`
}

// ChatResponse is the body returned by POST /api/chat.
type ChatResponse struct {
	SessionID       string `json:"session_id"`
	Type            string `json:"type"`
	Message         string `json:"message"`
	RefinedQuestion string `json:"refined_question,omitempty"`
}

// ChatHandler exposes the conversation controller over HTTP.
type ChatHandler struct {
	chat   *chat.Controller
	logger *zap.Logger
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(controller *chat.Controller, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: controller, logger: logger}
}

// RegisterRoutes registers the chat handler's routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.Chat)
}

// Chat handles POST /api/chat requests.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_message", "message is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	if req.UseFollowupContext != nil && !*req.UseFollowupContext {
		h.chat.ResetContext(req.SessionID)
	}

	reply, err := h.chat.HandleMessage(r.Context(), req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoRefinedQuestion) {
			_ = ErrorResponse(w, http.StatusUnprocessableEntity, "no_refined_question",
				"Could not derive an analytical question from the message")
			return
		}
		h.logger.Error("chat handling failed",
			zap.String("session_id", req.SessionID),
			zap.Error(err))
		_ = ErrorResponse(w, http.StatusBadGateway, "refinement_failed",
			"The refinement service is unavailable")
		return
	}

	response := ChatResponse{
		SessionID:       req.SessionID,
		Type:            reply.Type,
		Message:         reply.Message,
		RefinedQuestion: reply.RefinedQuestion,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode chat response", zap.Error(err))
	}
}
