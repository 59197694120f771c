package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emsight-ai/emsight-engine/pkg/chat"
	"github.com/emsight-ai/emsight-engine/pkg/llm"
	"github.com/emsight-ai/emsight-engine/pkg/semantics"
)

const handlerTestGlossary = `## Output Discipline
Answer only what was asked.

## Name Matching Semantics
Names are fuzzy matched.

## Corrections
Apply corrections to the previous question.

## Follow-Up Query Handling
Follow-ups reference the previous result.

## Result Context Awareness
The previous result scopes ambiguous questions.
`

func newChatController(t *testing.T, mock *llm.MockClient) *chat.Controller {
	t.Helper()
	logger := zap.NewNop()
	compressor := semantics.NewGlossaryCompressor(handlerTestGlossary, logger)
	refiner := chat.NewRefiner(mock, compressor, 0, logger)
	sessions := chat.NewSessionStore(0, logger)
	t.Cleanup(sessions.Stop)
	return chat.NewController(sessions, refiner, logger)
}

func postJSON(t *testing.T, mux *http.ServeMux, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	mux.ServeHTTP(rec, req)
	return rec
}

func TestChat_Greeting(t *testing.T) {
	mock := llm.NewMockClient()
	h := NewChatHandler(newChatController(t, mock), zap.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := postJSON(t, mux, "/api/chat", ChatRequest{Message: "hello"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, chat.ReplyGreeting, resp.Type)
	assert.NotEmpty(t, resp.SessionID, "a session id is assigned when absent")
	assert.Zero(t, mock.CompleteCalls)
}

func TestChat_RefinedQuestion(t *testing.T) {
	mock := llm.NewMockClient()
	mock.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		return `{
  "refined_question": "Total expense for Bhiwandi in February 2026",
  "state_updates": {},
  "needs_clarification": false,
  "clarification_question": null,
  "is_followup": false,
  "context_entities": null
}`, nil
	}
	h := NewChatHandler(newChatController(t, mock), zap.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := postJSON(t, mux, "/api/chat", ChatRequest{
		SessionID: "s1",
		Message:   "expense for bhiwandi last month",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, chat.ReplyAnalytics, resp.Type)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, "Total expense for Bhiwandi in February 2026", resp.RefinedQuestion)
}

func TestChat_MissingMessage(t *testing.T) {
	h := NewChatHandler(newChatController(t, llm.NewMockClient()), zap.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := postJSON(t, mux, "/api/chat", ChatRequest{SessionID: "s1", Message: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_InvalidBody(t *testing.T) {
	h := NewChatHandler(newChatController(t, llm.NewMockClient()), zap.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{not json"))
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_NoRefinedQuestionMapsTo422(t *testing.T) {
	mock := llm.NewMockClient()
	mock.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		return `{
  "refined_question": null,
  "state_updates": {},
  "needs_clarification": false,
  "clarification_question": null,
  "is_followup": false,
  "context_entities": null
}`, nil
	}
	h := NewChatHandler(newChatController(t, mock), zap.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := postJSON(t, mux, "/api/chat", ChatRequest{SessionID: "s1", Message: "hmm"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
