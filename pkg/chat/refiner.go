package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/emsight-ai/emsight-engine/pkg/llm"
	"github.com/emsight-ai/emsight-engine/pkg/models"
	"github.com/emsight-ai/emsight-engine/pkg/semantics"
)

const (
	// DefaultRefineTimeout bounds the refiner completion call. The
	// refiner sits on the interactive path, so it gets a tight budget.
	DefaultRefineTimeout = 8 * time.Second

	// shortInputWords is the threshold below which input is treated as
	// an entity substitution for the previous question.
	shortInputWords = 7

	// maxConstraintEntities bounds the entity list in the follow-up
	// constraint block.
	maxConstraintEntities = 15
)

// RefineResult is the outcome of one refinement call. Fallback marks the
// safe degradation applied when the model returned unparsable output: the
// raw input stands in as the refined question.
type RefineResult struct {
	NeedsClarification    bool
	ClarificationQuestion string
	RefinedQuestion       string
	StateUpdates          map[string]*string
	IsFollowup            bool
	ContextEntities       []string
	Fallback              bool
}

// refinerResponse is the JSON shape the model is instructed to return.
type refinerResponse struct {
	RefinedQuestion       *string            `json:"refined_question"`
	StateUpdates          map[string]*string `json:"state_updates"`
	NeedsClarification    bool               `json:"needs_clarification"`
	ClarificationQuestion *string            `json:"clarification_question"`
	IsFollowup            bool               `json:"is_followup"`
	ContextEntities       json.RawMessage    `json:"context_entities"`
}

// Refiner rewrites raw conversational input into one self-contained
// analytical question, or decides a clarification is needed first.
type Refiner struct {
	client     llm.Client
	compressor *semantics.GlossaryCompressor
	timeout    time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewRefiner creates a Refiner. A zero timeout uses DefaultRefineTimeout.
func NewRefiner(client llm.Client, compressor *semantics.GlossaryCompressor, timeout time.Duration, logger *zap.Logger) *Refiner {
	if timeout <= 0 {
		timeout = DefaultRefineTimeout
	}
	return &Refiner{
		client:     client,
		compressor: compressor,
		timeout:    timeout,
		logger:     logger.Named("refiner"),
		now:        time.Now,
	}
}

// Refine runs the pre-LLM clarification heuristics and, if none fire, one
// completion call. Malformed model output never fails: the result falls
// back to the raw input. Transport errors propagate.
func (r *Refiner) Refine(ctx context.Context, input string, session *models.Session) (RefineResult, error) {
	if q := rankingClarification(input, session); q != "" {
		r.logger.Info("clarification required before refinement",
			zap.String("session_id", session.ID))
		return RefineResult{
			NeedsClarification:    true,
			ClarificationQuestion: q,
			IsFollowup:            true,
			ContextEntities:       session.LastResultEntities,
		}, nil
	}
	if needsLocationDisambiguation(input) {
		return RefineResult{
			NeedsClarification:    true,
			ClarificationQuestion: locationClarificationQuestion,
			IsFollowup:            true,
		}, nil
	}

	prompt := r.buildPrompt(input, session)

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.client.Complete(cctx, prompt)
	if err != nil {
		return RefineResult{}, fmt.Errorf("refiner completion: %w", err)
	}

	resp, err := llm.ParseJSONResponse[refinerResponse](raw)
	if err != nil {
		r.logger.Error("refiner returned unparsable output",
			zap.String("output", raw))
		return RefineResult{
			RefinedQuestion: input,
			StateUpdates:    map[string]*string{},
			Fallback:        true,
		}, nil
	}

	result := RefineResult{
		NeedsClarification: resp.NeedsClarification,
		StateUpdates:       resp.StateUpdates,
		IsFollowup:         resp.IsFollowup,
		ContextEntities:    flattenContextEntities(resp.ContextEntities),
	}
	if resp.ClarificationQuestion != nil {
		result.ClarificationQuestion = *resp.ClarificationQuestion
	}
	if resp.RefinedQuestion != nil {
		result.RefinedQuestion = *resp.RefinedQuestion
	}
	if result.StateUpdates == nil {
		result.StateUpdates = map[string]*string{}
	}
	return result, nil
}

// flattenContextEntities accepts either a plain list or an object keyed by
// entity kind; anything else discards the context.
func flattenContextEntities(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var grouped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &grouped); err == nil {
		for _, key := range []string{"accounts", "vendors", "warehouses"} {
			var inner []string
			if v, ok := grouped[key]; ok && json.Unmarshal(v, &inner) == nil {
				return inner
			}
		}
	}
	return nil
}

func (r *Refiner) buildPrompt(input string, session *models.Session) string {
	var b strings.Builder

	recent := recentTurns(session, 2)

	isFollowup := detectFollowup(input, session)

	followupConstraint := ""
	if isFollowup {
		followupConstraint = buildFollowupConstraint(session)
	}

	timeHint := ""
	if parsed := parseCalendarTime(input, r.now()); parsed != nil {
		timeHint = fmt.Sprintf(`TIME INTERPRETATION:
User said: "%s"
This means: %s
Include this in your refined question to make the time period clear.
`, input, parsed.description)
	}

	resultContext := ""
	if len(session.LastResultEntities) > 0 {
		entities := session.LastResultEntities
		entitiesStr := strings.Join(entities[:min(10, len(entities))], ", ")
		if len(entities) > 10 {
			entitiesStr += "..."
		}
		queryType := ""
		if session.LastQueryType != nil {
			queryType = *session.LastQueryType
		}
		lastQuestion := ""
		if session.LastRefinedQuestion != nil {
			lastQuestion = *session.LastRefinedQuestion
		}
		resultContext = fmt.Sprintf(`PREVIOUS QUERY RESULT:
- Question: %s
- Returned: %d %s
- Entities: %s
`, lastQuestion, session.LastResultCount, queryType, entitiesStr)
	}

	substitutionHint := ""
	if len(strings.Fields(input)) < shortInputWords && session.LastRefinedQuestion != nil {
		substitutionHint = fmt.Sprintf(
			"SUBSTITUTION DETECTED: The user input is short ('%s'). "+
				"They are likely asking to run the PREVIOUS question with a NEW entity. "+
				"Previous Question: '%s'. "+
				"Task: Replace the entity in the previous question with the new one from user input.",
			input, *session.LastRefinedQuestion)
	}

	contextEntitiesJSON := "null"
	if isFollowup {
		entities := session.LastResultEntities
		if data, err := json.Marshal(entities[:min(10, len(entities))]); err == nil {
			contextEntitiesJSON = string(data)
		}
	}

	followupBanner := ""
	if isFollowup {
		followupBanner = "FOLLOW-UP MODE ACTIVE\n" +
			"The user is asking about entities from the PREVIOUS result.\n" +
			"You MUST explicitly mention those specific entities in your refined question."
	}

	fmt.Fprintf(&b, `You are an analytics query refiner for an Expense Management System (EMS).

You understand business meaning but NOT databases or SQL.

RULES:
1. ENTITY SWAPPING: If the user input is just an entity name (e.g., "in Dasna 2"), preserve the intent and swap the entity.
   - Bad: "Where is Dasna 2?"
   - Good: "What is the total expense in Dasna 2...?"

2. TIME PARSING: Use the "TIME INTERPRETATION" block below to interpret relative dates.

3. FOLLOW-UP CONTEXT: If the user asks about "they" or "those", explicitly list the entities from the PREVIOUS RESULT in the new question.

4. RESTRUCTURING & PIVOTS: If the user asks to "group by X" or "list by X", do NOT append the text literally. Rewrite the question to make 'X' the primary subject.
   - Previous: "Which warehouses do they operate in?" (Result: Warehouse -> Vendor List)
   - User: "group by vendor"
   - Bad: "Which warehouses do they operate in group by vendor?"
   - Good: "List the warehouses associated with each of the top 5 vendors." (Pivots the view)

IMPORTANT:
- Your ENTIRE response MUST be valid JSON
- Do NOT include explanations
- Do NOT repeat the user query unless refining it

--- REFINER SEMANTICS (COMPRESSED) ---
%s
---------------------------------------------------------------

RECENT CONTEXT:
%s

%s

%s

%s

%s

%s

CURRENT STATE:
%s

USER QUERY:
"%s"

OUTPUT FORMAT (JSON ONLY):
{
  "refined_question": null | string,
  "state_updates": {
    "last_account": null | string,
    "last_vendor": null | string,
    "last_warehouse": null | string,
    "last_city": null | string,
    "last_region": null | string,
    "last_metric": null | string,
    "last_time_filter": null | string
  },
  "needs_clarification": boolean,
  "clarification_question": null | string,
  "is_followup": %t,
  "context_entities": %s
}

CRITICAL EXAMPLES FOR FOLLOW-UP:

Example 1 - Vendor Follow-up:
Previous: "15 vendors inconsistent: KBR Enterprises, Safe X Security, ..."
User: "in which months were they inconsistent?"
Correct: "In which months did vendors KBR Enterprises, Safe X Security, [and 13 others] fail to upload invoices?"
Wrong: "In which months were vendors inconsistent?" (too vague)

Example 2 - Temporal Follow-up:
Previous: "Vendors who haven't uploaded in last 6 months"
User: "which months for KBR?"
Correct: "Which specific months in the last 6 months is vendor KBR Enterprises missing invoice uploads?"
Wrong: "Show KBR Enterprises data" (lost temporal context)`,
		r.compressor.Compress(input),
		recent,
		resultContext,
		followupConstraint,
		timeHint,
		substitutionHint,
		followupBanner,
		session.StateJSON(),
		input,
		isFollowup,
		contextEntitiesJSON,
	)

	return b.String()
}

// recentTurns renders the last n turns as "ROLE: content" lines.
func recentTurns(session *models.Session, n int) string {
	turns := session.RecentTurns
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	if len(turns) == 0 {
		return "None"
	}
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = fmt.Sprintf("%s: %s", strings.ToUpper(t.Role), t.Content)
	}
	return strings.Join(lines, "\n")
}

// buildFollowupConstraint spells out the entities a follow-up question must
// reference explicitly.
func buildFollowupConstraint(session *models.Session) string {
	if len(session.LastResultEntities) == 0 {
		return ""
	}

	queryType := ""
	if session.LastQueryType != nil {
		queryType = *session.LastQueryType
	}
	switch {
	case strings.Contains(queryType, "vendor"),
		strings.Contains(queryType, "account"),
		strings.Contains(queryType, "warehouse"):
	default:
		return ""
	}

	entities := session.LastResultEntities
	if len(entities) > maxConstraintEntities {
		entities = entities[:maxConstraintEntities]
	}
	preview := strings.Join(entities[:min(10, len(entities))], ", ")
	if len(entities) > 10 {
		preview += "..."
	}

	return fmt.Sprintf(`CRITICAL FOLLOW-UP CONSTRAINT
The user is asking about entities from the PREVIOUS query result.
You MUST explicitly mention these %d specific entities in your refined question:
%s

Your refined question MUST include: "... for vendors [list names] ..." or similar explicit reference.
DO NOT make this a global query. Scope MUST remain limited to these entities.
`, len(entities), preview)
}
