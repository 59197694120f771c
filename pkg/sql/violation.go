package sql

import (
	"fmt"
	"strings"
)

// Violation is one semantic rule breach in a generated query, with enough
// detail for the model to fix it on retry.
type Violation struct {
	Rule        string `json:"rule"`
	Description string `json:"description"`
	FixHint     string `json:"fix_hint"`
}

// BuildRetryPromptAddition renders violations as a feedback block appended
// to the next generation attempt's prompt.
func BuildRetryPromptAddition(violations []Violation) string {
	if len(violations) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\n=== CRITICAL: YOUR PREVIOUS ATTEMPT HAD ERRORS ===\n")
	b.WriteString("You MUST fix these violations:\n\n")
	for i, v := range violations {
		fmt.Fprintf(&b, "%d. %s\n", i+1, v.Description)
		fmt.Fprintf(&b, "   FIX: %s\n\n", v.FixHint)
	}
	b.WriteString("Generate the corrected SQL now:\n")
	return b.String()
}

// RuleNames extracts the rule identifiers for logging.
func RuleNames(violations []Violation) []string {
	names := make([]string, len(violations))
	for i, v := range violations {
		names[i] = v.Rule
	}
	return names
}
