package generator

import (
	"fmt"
	"strings"
	"time"

	"github.com/emsight-ai/emsight-engine/pkg/golden"
)

// maxPromptEntities bounds the entity list spelled out in the scope block.
const maxPromptEntities = 15

var divider = strings.Repeat("=", 70)

// promptInput carries everything buildPrompt needs for one attempt.
type promptInput struct {
	question        string
	contextEntities []string
	criticalRules   []string
	example         *golden.Match
	rulesDoc        string
	schemaContext   string
	retryFeedback   string
	now             time.Time
}

// buildPrompt assembles the generation prompt. Section order is load
// bearing: the explicit-date and entity-scope blocks come first so they
// override relative-time reasoning, and the golden example precedes the
// rules document so the model reads the pattern before the fine print.
func buildPrompt(in promptInput) string {
	var parts []string
	add := func(lines ...string) { parts = append(parts, lines...) }

	add("You are an expert SQL generator for EMS databases.", "")

	if start, end, ok := ExplicitDateRange(in.question); ok {
		add(divider,
			" EXPLICIT DATE RANGE DETECTED ",
			divider,
			"",
			"The question mentions a specific date range.",
			"You MUST use these EXACT dates in your SQL:",
			"",
			fmt.Sprintf("  Start: %s", start),
			fmt.Sprintf("  End (exclusive): %s", end),
			"",
			"MANDATORY SQL:",
			fmt.Sprintf("  WHERE date_column >= '%s'", start),
			fmt.Sprintf("  AND date_column < '%s'", end),
			"",
			"DO NOT use DATE_SUB, CURDATE(), or INTERVAL for this query.",
			"Use the LITERAL dates shown above.",
			"",
			divider,
			"")
	}

	if len(in.contextEntities) > 0 {
		add(divider,
			"FOLLOW-UP QUERY - ENTITY SCOPE RESTRICTION",
			divider,
			"",
			fmt.Sprintf("This query MUST filter to ONLY these %d specific entities:", len(in.contextEntities)),
			"")
		for i, entity := range in.contextEntities {
			if i >= maxPromptEntities {
				add(fmt.Sprintf("  ... and %d more", len(in.contextEntities)-maxPromptEntities))
				break
			}
			add(fmt.Sprintf("  %d. %s", i+1, entity))
		}
		add("",
			"MANDATORY SQL REQUIREMENT:",
			"Your WHERE clause MUST include one of:",
			"  - WHERE u.full_name IN ('entity1', 'entity2', ...)",
			"  - WHERE ai.account_name IN (...)",
			"  - WHERE wi.warehouse_name IN (...)",
			"",
			"Use LIKE for each entity: u.full_name LIKE '%entity%'",
			"Or use IN clause with exact names from list above.",
			"",
			divider,
			"")
	}

	if len(in.criticalRules) > 0 {
		add("=== CRITICAL RULES (NEVER VIOLATE) ===")
		for _, rule := range in.criticalRules {
			add("- " + rule)
		}
		add("")
	}

	if in.example != nil {
		add(fmt.Sprintf("=== SIMILAR EXAMPLE (Learn from this pattern, similarity: %.2f) ===", in.example.Score),
			fmt.Sprintf("Question: %s", in.example.Example.Question),
			"Correct SQL:",
			in.example.Example.SQL)
		if in.example.Example.Notes != "" {
			add(fmt.Sprintf("Why this is correct: %s", in.example.Example.Notes))
		}
		add("",
			"IMPORTANT: Adapt this pattern to the new question. Notice:",
			"- How status filtering is done (master_status join + LIKE)",
			"- How time calculations work (updated_at - created_at)",
			"- How geography is resolved (warehouse -> quick_code_master)",
			"")
	}

	add("=== SEMANTIC BUSINESS RULES ===", in.rulesDoc, "")
	add("=== DATABASE SCHEMA ===", in.schemaContext, "")

	add("=== SYSTEM TIME CONTEXT ===",
		fmt.Sprintf("Current System Date: %s (%s)", in.now.Format("2006-01-02"), in.now.Weekday()),
		fmt.Sprintf("Current Month: %s %d", in.now.Month(), in.now.Year()),
		"CRITICAL: All relative dates (e.g., 'last 6 months', 'this year') MUST be calculated relative to the Current System Date.",
		"")

	if in.retryFeedback != "" {
		add(in.retryFeedback)
	}

	add("=== YOUR TASK ===",
		fmt.Sprintf("Question: %s", in.question),
		"",
		"Instructions:",
		"1. Follow the CRITICAL RULES exactly")
	if in.example != nil {
		add("2. Adapt the pattern from the SIMILAR EXAMPLE above")
	}
	add("3. Generate valid MySQL compatible SQL",
		"4. Use fully qualified table names with backticks: `ems-portal-service`.`invoice_info`",
		"5. Use snake_case for aliases (e.g. `vendor_name`, NOT `Vendor Name`).",
		"6. Filter by `user_type` when querying the `user` table (e.g. user_type LIKE '%VENDOR%').",
		"7. Return ONLY the SQL. No markdown, no explanations.",
		"",
		"SQL:")

	return strings.Join(parts, "\n")
}
