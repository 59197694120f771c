package chat

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emsight-ai/emsight-engine/pkg/llm"
	"github.com/emsight-ai/emsight-engine/pkg/models"
	"github.com/emsight-ai/emsight-engine/pkg/semantics"
)

func TestFlattenContextEntities(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"plain list", `["A", "B"]`, []string{"A", "B"}},
		{"null", `null`, nil},
		{"grouped by vendors", `{"vendors": ["KBR", "Acme"]}`, []string{"KBR", "Acme"}},
		{"grouped by accounts", `{"accounts": ["Acme Corp"]}`, []string{"Acme Corp"}},
		{"grouped by warehouses", `{"warehouses": ["Bhiwandi"]}`, []string{"Bhiwandi"}},
		{"unusable shape", `42`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw json.RawMessage
			if tt.raw != "" {
				raw = json.RawMessage(tt.raw)
			}
			assert.Equal(t, tt.want, flattenContextEntities(raw))
		})
	}
}

func TestRefine_GroupedContextEntitiesFlattened(t *testing.T) {
	mock := llm.NewMockClient()
	mock.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		return `{
  "refined_question": "Invoices for vendors KBR and Acme in March 2026",
  "state_updates": {},
  "needs_clarification": false,
  "clarification_question": null,
  "is_followup": true,
  "context_entities": {"vendors": ["KBR", "Acme"]}
}`, nil
	}
	refiner := NewRefiner(mock, semantics.NewGlossaryCompressor(testGlossary, zap.NewNop()), 0, zap.NewNop())

	result, err := refiner.Refine(context.Background(), "their invoices", models.NewSession("s1"))
	require.NoError(t, err)
	assert.True(t, result.IsFollowup)
	assert.Equal(t, []string{"KBR", "Acme"}, result.ContextEntities)
	assert.False(t, result.Fallback)
}

func TestRefine_FencedJSONAccepted(t *testing.T) {
	mock := llm.NewMockClient()
	mock.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		return "```json\n" + refinedJSON("Total expense for Bhiwandi in February 2026") + "\n```", nil
	}
	refiner := NewRefiner(mock, semantics.NewGlossaryCompressor(testGlossary, zap.NewNop()), 0, zap.NewNop())

	result, err := refiner.Refine(context.Background(), "expense bhiwandi last month", models.NewSession("s1"))
	require.NoError(t, err)
	assert.False(t, result.Fallback)
	assert.Equal(t, "Total expense for Bhiwandi in February 2026", result.RefinedQuestion)
}

func TestRefine_PromptCarriesStateAndHistory(t *testing.T) {
	mock := llm.NewMockClient()
	mock.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		return refinedJSON("ok"), nil
	}
	refiner := NewRefiner(mock, semantics.NewGlossaryCompressor(testGlossary, zap.NewNop()), 0, zap.NewNop())

	session := models.NewSession("s1")
	warehouse := "Bhiwandi"
	session.LastWarehouse = &warehouse
	session.AddTurn("user", "first question")
	session.AddTurn("assistant", "first answer")
	session.AddTurn("user", "second question")

	_, err := refiner.Refine(context.Background(), "and for last month?", session)
	require.NoError(t, err)
	require.Len(t, mock.Prompts, 1)

	prompt := mock.Prompts[0]
	assert.Contains(t, prompt, `"last_warehouse": "Bhiwandi"`)
	assert.Contains(t, prompt, "ASSISTANT: first answer")
	assert.Contains(t, prompt, "USER: second question")
	assert.NotContains(t, prompt, "USER: first question", "only the last two turns are included")
	assert.Contains(t, prompt, "TIME INTERPRETATION")
}
