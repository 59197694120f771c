package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MaxRecentTurns bounds the rolling conversation history kept per session.
const MaxRecentTurns = 4

// MaxResultEntities bounds the entity names remembered from the last
// executed query.
const MaxResultEntities = 20

// Turn is one role-tagged message in the rolling history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session holds per-conversation state. One message is handled at a time
// within a session; concurrent messages for the same session id are not
// part of the contract.
type Session struct {
	ID string

	RecentTurns []Turn

	// Authoritative extracted slots. Nil means unknown.
	LastAccount    *string
	LastVendor     *string
	LastWarehouse  *string
	LastCity       *string
	LastRegion     *string
	LastMetric     *string
	LastTimeFilter *string

	// Clarification pair. Set and cleared together, never one without
	// the other; mutate only via SetPendingClarification /
	// ClearPendingClarification.
	PendingClarificationQuestion *string
	PendingUserQuery             *string

	// Result context, populated after a query is executed.
	LastRefinedQuestion *string
	LastQueryType       *string
	LastResultEntities  []string
	LastResultCount     int
	LastSQLQuery        *string
}

// NewSession creates an empty session for the given id.
func NewSession(id string) *Session {
	return &Session{ID: id}
}

// AddTurn appends a role-tagged turn, dropping the oldest once the
// rolling history exceeds MaxRecentTurns.
func (s *Session) AddTurn(role, content string) {
	s.RecentTurns = append(s.RecentTurns, Turn{Role: role, Content: content})
	if len(s.RecentTurns) > MaxRecentTurns {
		s.RecentTurns = s.RecentTurns[len(s.RecentTurns)-MaxRecentTurns:]
	}
}

// HasPendingClarification reports whether the next inbound message must be
// interpreted as a clarification answer.
func (s *Session) HasPendingClarification() bool {
	return s.PendingClarificationQuestion != nil
}

// SetPendingClarification records the clarification question together with
// the user query that triggered it.
func (s *Session) SetPendingClarification(question, userQuery string) {
	s.PendingClarificationQuestion = &question
	s.PendingUserQuery = &userQuery
}

// ClearPendingClarification clears both halves of the clarification pair.
// Idempotent.
func (s *Session) ClearPendingClarification() {
	s.PendingClarificationQuestion = nil
	s.PendingUserQuery = nil
}

// ApplyStateUpdate sets one extracted slot by key. Only the seven
// recognized keys are accepted; anything else is ignored and reported
// false. Nil values never overwrite existing state.
func (s *Session) ApplyStateUpdate(key string, value *string) bool {
	if value == nil {
		return false
	}
	switch key {
	case "last_account":
		s.LastAccount = value
	case "last_vendor":
		s.LastVendor = value
	case "last_warehouse":
		s.LastWarehouse = value
	case "last_city":
		s.LastCity = value
	case "last_region":
		s.LastRegion = value
	case "last_metric":
		s.LastMetric = value
	case "last_time_filter":
		s.LastTimeFilter = value
	default:
		return false
	}
	return true
}

// UpdateResultContext records the outcome of an executed query so that
// follow-up questions can reference it.
func (s *Session) UpdateResultContext(refinedQuestion, queryType string, entities []string, count int, sqlQuery string) {
	if len(entities) > MaxResultEntities {
		entities = entities[:MaxResultEntities]
	}
	s.LastRefinedQuestion = &refinedQuestion
	s.LastQueryType = &queryType
	s.LastResultEntities = entities
	s.LastResultCount = count
	s.LastSQLQuery = &sqlQuery
}

// ClearResultContext drops the remembered query result.
func (s *Session) ClearResultContext() {
	s.LastRefinedQuestion = nil
	s.LastQueryType = nil
	s.LastResultEntities = nil
	s.LastResultCount = 0
	s.LastSQLQuery = nil
}

// ResetAnalyticalContext clears all analytical carry-over while keeping
// the session alive. Used for "new question" mode.
func (s *Session) ResetAnalyticalContext() {
	s.LastAccount = nil
	s.LastVendor = nil
	s.LastWarehouse = nil
	s.LastCity = nil
	s.LastRegion = nil
	s.LastMetric = nil
	s.LastTimeFilter = nil
	s.ClearResultContext()
}

// ResultContextSummary renders a short human-readable summary of the last
// query result for prompt injection.
func (s *Session) ResultContextSummary() string {
	if len(s.LastResultEntities) == 0 {
		return "No previous query results"
	}
	preview := strings.Join(s.LastResultEntities[:min(5, len(s.LastResultEntities))], ", ")
	if len(s.LastResultEntities) > 5 {
		preview += fmt.Sprintf(", ... (and %d more)", len(s.LastResultEntities)-5)
	}
	queryType := "results"
	if s.LastQueryType != nil {
		queryType = *s.LastQueryType
	}
	return fmt.Sprintf("%d %s: %s", s.LastResultCount, queryType, preview)
}

// StateJSON renders the seven extracted slots as a JSON object for the
// refiner prompt. Nil slots render as null.
func (s *Session) StateJSON() string {
	obj := map[string]*string{
		"last_account":     s.LastAccount,
		"last_vendor":      s.LastVendor,
		"last_warehouse":   s.LastWarehouse,
		"last_city":        s.LastCity,
		"last_region":      s.LastRegion,
		"last_metric":      s.LastMetric,
		"last_time_filter": s.LastTimeFilter,
	}
	b, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
