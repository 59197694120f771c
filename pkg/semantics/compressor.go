// Package semantics selects keyword-relevant slices of the business rules
// documents so prompts stay bounded without losing applicable rules.
package semantics

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// maxTriggeredSections is the safety valve: once a question pulls in more
// distinct sections than this, partial context is riskier than token cost
// and the full document is used instead.
const maxTriggeredSections = 9

var sectionHeaderRe = regexp.MustCompile(`^(\d+)\.\s+(.+)$`)

// SectionCompressor compresses a rules document organized as numbered
// sections ("6. PENDING & APPROVAL SEMANTICS"). A fixed core section set
// is always included.
type SectionCompressor struct {
	fullDoc      string
	sections     map[int]string
	triggers     TriggerConfig
	coreSections []int
	logger       *zap.Logger
}

// NewSectionCompressor parses the document into numbered sections once.
// A nil triggers argument uses the built-in mapping.
func NewSectionCompressor(doc string, triggers TriggerConfig, logger *zap.Logger) *SectionCompressor {
	if triggers == nil {
		triggers = DefaultTriggers()
	}
	return &SectionCompressor{
		fullDoc:  doc,
		sections: parseNumberedSections(doc),
		triggers: triggers,
		// Global conventions, terminology, service semantics, join
		// policy, monetary rules, name matching, schema integrity.
		coreSections: []int{1, 2, 3, 4, 5, 7, 11},
		logger:       logger.Named("compressor"),
	}
}

// NewSectionCompressorFromFile loads the rules document from disk.
func NewSectionCompressorFromFile(path string, triggers TriggerConfig, logger *zap.Logger) (*SectionCompressor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules document %s: %w", path, err)
	}
	return NewSectionCompressor(string(data), triggers, logger), nil
}

func parseNumberedSections(doc string) map[int]string {
	sections := make(map[int]string)
	current := 0
	var content []string

	for _, line := range strings.Split(doc, "\n") {
		m := sectionHeaderRe.FindStringSubmatch(strings.TrimSpace(line))
		if m != nil {
			if current > 0 {
				sections[current] = strings.Join(content, "\n")
			}
			current, _ = strconv.Atoi(m[1])
			content = []string{line}
		} else {
			content = append(content, line)
		}
	}
	if current > 0 {
		sections[current] = strings.Join(content, "\n")
	}
	return sections
}

// Compress returns the core sections plus every section triggered by a
// keyword present in the question. Falls back to the full document when
// too many sections trigger or the result is degenerate.
func (c *SectionCompressor) Compress(question string) string {
	questionLower := strings.ToLower(question)

	relevant := make(map[int]bool)
	for _, n := range c.coreSections {
		relevant[n] = true
	}
	for _, trigger := range c.triggers {
		for _, kw := range trigger.Keywords {
			if strings.Contains(questionLower, kw) {
				for _, n := range trigger.Sections {
					relevant[n] = true
				}
				break
			}
		}
	}

	if len(relevant) > maxTriggeredSections {
		c.logger.Debug("compression skipped, too many sections triggered",
			zap.Int("sections", len(relevant)))
		return c.fullDoc
	}

	parts := []string{
		"# Warehouse Rules (Relevant Sections)",
		"Status: ACTIVE - AUTHORITATIVE",
		"",
	}
	nums := make([]int, 0, len(relevant))
	for n := range relevant {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for _, n := range nums {
		if body, ok := c.sections[n]; ok {
			parts = append(parts, body, "")
		}
	}
	compressed := strings.Join(parts, "\n")

	if len(strings.TrimSpace(compressed)) == 0 {
		return c.fullDoc
	}

	c.logger.Debug("rules document compressed",
		zap.Int("original_chars", len(c.fullDoc)),
		zap.Int("compressed_chars", len(compressed)))
	return compressed
}

// CriticalRules extracts must-not-violate rules for the question as bullet
// points, combining lookup-table constraints with programmatic ones.
func (c *SectionCompressor) CriticalRules(question string) []string {
	q := strings.ToLower(question)
	var rules []string

	if containsAny(q, "vendor", "supplier", "payee") {
		rules = append(rules,
			"VENDOR IDENTITY: Vendors are USERS, NOT Quick Codes.",
			"JOIN: JOIN `ems-auth-service`.`user` u ON invoice_info.vendor_id = u.id",
			"SELECT: u.full_name (as Vendor Name)")
	}

	if containsAny(q, "spend", "amount", "cost", "total", "bill", "expense", "value") {
		rules = append(rules,
			"MONETARY SOURCE: Use `invoice_info`.`total_amount` ONLY.",
			"PROHIBITED: Do NOT sum `invoice_line_items` columns.",
			"PROHIBITED: Do NOT use `invoice_line_items_expense` table.")
	}

	if containsAny(q, "approval time", "approval duration", "approved", "tat", "turnaround") {
		rules = append(rules,
			"Approval time = updated_at - created_at (NEVER use NOW())",
			"MUST join master_status for status filtering",
			"Use TIMESTAMPDIFF or DATEDIFF for time calculations")
	}

	if containsAny(q, "approved", "rejected", "pending", "status") {
		rules = append(rules,
			"approval_status MUST be resolved via master_status.name",
			"NEVER use numeric approval_status values",
			"Use: LOWER(ms.name) LIKE LOWER('%status%')")
	}

	if containsAny(q, "ratio", "rate", "rejection", "approval") {
		rules = append(rules,
			"Ratio denominator = COUNT(all invoices), not filtered count",
			"Use NULLIF to guard against division by zero")
	}

	if containsAny(q, "region", "south", "north", "east", "west") {
		rules = append(rules,
			"Region comes from warehouse_info.region_id -> quick_code_master",
			"NOT from account_info.state_id")
	}

	if containsAny(q, "missing", "gap", "inconsistent", "not uploaded", "haven't") {
		rules = append(rules,
			"Missing data requires CTE to generate expected values, then LEFT JOIN to find gaps",
			"Cannot use HAVING COUNT = 0 for absence - no rows means nothing to count")
	}

	if containsAny(q, "month", "monthly", "trend", "over time") {
		rules = append(rules,
			"TIME CONSISTENCY: Filter AND Group by `invoice_month`.",
			"PROHIBITED: Do not filter by `invoice_date` if grouping by `invoice_month`.")
	}

	if m := lastNMonthsRe.FindStringSubmatch(q); m != nil {
		months := m[1]
		rules = append(rules,
			fmt.Sprintf("CALENDAR TIME: 'Last %s months' means %s FULL COMPLETED months.", months, months),
			fmt.Sprintf("START DATE: DATE_FORMAT(DATE_SUB(CURDATE(), INTERVAL %s MONTH), '%%Y-%%m-01')", months),
			"END DATE: DATE_FORMAT(CURDATE(), '%Y-%m-01') (Strictly excludes current partial month)",
			"FILTER COLUMN: Use `invoice_month` (Bill Date), NOT `invoice_date`.")
	}

	return rules
}

var lastNMonthsRe = regexp.MustCompile(`last (\d+) months?`)

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
