package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/emsight-ai/emsight-engine/pkg/apperrors"
	"github.com/emsight-ai/emsight-engine/pkg/models"
)

// Reply types returned by HandleMessage.
const (
	ReplyGreeting      = "GREETING"
	ReplyClarification = "CLARIFICATION"
	ReplyAnalytics     = "ANALYTICS"
)

const greetingMessage = "Hello! How can I help you with EMS data?"

var greetings = map[string]bool{
	"hi":    true,
	"hello": true,
	"hey":   true,
}

// Reply is the controller's answer to one inbound message.
type Reply struct {
	Type            string `json:"type"`
	Message         string `json:"message"`
	RefinedQuestion string `json:"refined_question,omitempty"`
}

// Controller routes inbound messages through the conversation state
// machine: greeting short-circuit, pending clarification merge, refinement,
// and session state updates.
type Controller struct {
	sessions *SessionStore
	refiner  *Refiner
	logger   *zap.Logger
}

// NewController creates a conversation controller.
func NewController(sessions *SessionStore, refiner *Refiner, logger *zap.Logger) *Controller {
	return &Controller{
		sessions: sessions,
		refiner:  refiner,
		logger:   logger.Named("chat"),
	}
}

// HandleMessage processes one user message within a session and returns
// either a greeting, a clarification question, or a refined analytical
// question ready for generation.
func (c *Controller) HandleMessage(ctx context.Context, sessionID, text string) (Reply, error) {
	session := c.sessions.GetOrCreate(sessionID)

	clarificationInProgress := session.HasPendingClarification()
	if clarificationInProgress {
		combined := fmt.Sprintf("Original question: %s\nClarification answer: %s",
			*session.PendingUserQuery, text)
		session.ClearPendingClarification()
		c.logger.Info("merged clarification answer",
			zap.String("session_id", sessionID))
		text = combined
	}

	session.AddTurn("user", text)

	// Greetings record only the user turn; the canned reply must not
	// occupy a slot in the rolling history the refiner reads.
	if !clarificationInProgress && greetings[strings.ToLower(strings.TrimSpace(text))] {
		return Reply{Type: ReplyGreeting, Message: greetingMessage}, nil
	}

	result, err := c.refiner.Refine(ctx, text, session)
	if err != nil {
		return Reply{}, err
	}

	if result.NeedsClarification {
		session.SetPendingClarification(result.ClarificationQuestion, text)
		session.AddTurn("assistant", result.ClarificationQuestion)
		return Reply{
			Type:    ReplyClarification,
			Message: result.ClarificationQuestion,
		}, nil
	}

	refined := strings.TrimSpace(result.RefinedQuestion)
	if refined == "" && clarificationInProgress {
		// The model sometimes returns only state updates for a
		// clarification answer; the merged text already carries the
		// full question.
		refined = text
	}
	if refined == "" && len(result.StateUpdates) > 0 {
		refined = text
	}
	if refined == "" {
		return Reply{}, apperrors.ErrNoRefinedQuestion
	}

	session.ClearPendingClarification()

	for key, value := range result.StateUpdates {
		session.ApplyStateUpdate(key, value)
	}

	session.AddTurn("assistant", refined)

	c.logger.Info("question refined",
		zap.String("session_id", sessionID),
		zap.Bool("followup", result.IsFollowup),
		zap.Bool("fallback", result.Fallback))

	return Reply{
		Type:            ReplyAnalytics,
		Message:         refined,
		RefinedQuestion: refined,
	}, nil
}

// ResetContext drops all analytical carry-over for the session. Used when
// the caller marks a message as a fresh question.
func (c *Controller) ResetContext(sessionID string) {
	session := c.sessions.GetOrCreate(sessionID)
	session.ResetAnalyticalContext()
	c.logger.Info("analytical context reset", zap.String("session_id", sessionID))
}

// ContextEntities returns the entity names from the session's last result,
// for scoping follow-up generation.
func (c *Controller) ContextEntities(sessionID string) []string {
	return c.sessions.GetOrCreate(sessionID).LastResultEntities
}

// UpdateQueryResults records an executed query's outcome on the session so
// follow-up questions can reference it.
func (c *Controller) UpdateQueryResults(sessionID, refinedQuestion, sqlQuery string, result *models.ExecutionResult) {
	session := c.sessions.GetOrCreate(sessionID)
	queryType, entities := extractResultMetadata(refinedQuestion, result)
	session.UpdateResultContext(refinedQuestion, queryType, entities, result.RowCount, sqlQuery)
	c.logger.Info("result context updated",
		zap.String("session_id", sessionID),
		zap.String("query_type", queryType),
		zap.Int("entities", len(entities)))
}

// extractResultMetadata classifies a result set and pulls out the entity
// names worth remembering for follow-ups.
func extractResultMetadata(question string, result *models.ExecutionResult) (string, []string) {
	if result == nil || result.Empty() {
		return "empty_result", nil
	}

	lowerQ := strings.ToLower(question)
	columns := make(map[string]string, len(result.Columns))
	for _, col := range result.Columns {
		columns[strings.ToLower(col)] = col
	}

	pick := func(col string) []string {
		entities := make([]string, 0, len(result.Rows))
		for _, row := range result.Rows {
			if v, ok := row[col]; ok && v != nil {
				entities = append(entities, fmt.Sprintf("%v", v))
			}
			if len(entities) >= models.MaxResultEntities {
				break
			}
		}
		return entities
	}

	if len(result.Columns) == 0 {
		return "query_result", nil
	}
	firstCol := result.Columns[0]

	vendorCol, hasVendorName := columns["vendor_name"]
	fullNameCol, hasFullName := columns["full_name"]
	if (hasVendorName || hasFullName) && strings.Contains(lowerQ, "vendor") {
		col := vendorCol
		if !hasVendorName {
			col = fullNameCol
		}
		return "vendor_list", pick(col)
	}

	if col, ok := columns["account_name"]; ok {
		return "account_list", pick(col)
	}
	if strings.Contains(lowerQ, "account") && hasNameColumn(result.Columns) {
		return "account_list", pick(firstCol)
	}

	if col, ok := columns["warehouse_name"]; ok {
		return "warehouse_list", pick(col)
	}
	if strings.Contains(lowerQ, "warehouse") {
		return "warehouse_list", pick(firstCol)
	}

	if strings.Contains(lowerQ, "invoice") {
		if result.RowCount == 1 && hasAggregateColumn(columns) {
			// No row entities to keep, but the domain survives for
			// follow-up scoping.
			switch {
			case strings.Contains(lowerQ, "vendor"):
				return "vendor_aggregate", nil
			case strings.Contains(lowerQ, "account"):
				return "account_aggregate", nil
			case strings.Contains(lowerQ, "warehouse"):
				return "warehouse_aggregate", nil
			}
			return "aggregate_result", nil
		}
		return "invoice_list", nil
	}

	if strings.Contains(strings.ToLower(firstCol), "name") {
		return "entity_list", pick(firstCol)
	}
	return "query_result", nil
}

func hasNameColumn(cols []string) bool {
	for _, col := range cols {
		if strings.Contains(strings.ToLower(col), "name") {
			return true
		}
	}
	return false
}

// hasAggregateColumn matches bare aggregate column names only; a derived
// alias like total_amount marks a listing, not an aggregate.
func hasAggregateColumn(columns map[string]string) bool {
	for _, agg := range []string{"count", "total", "sum", "avg"} {
		if _, ok := columns[agg]; ok {
			return true
		}
	}
	return false
}
