package semantics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var sectionTitles = map[int]string{
	1:  "GLOBAL CONVENTIONS",
	2:  "TERMINOLOGY & ENTITY MODEL",
	3:  "SERVICE & SCHEMA SEMANTICS",
	4:  "JOIN POLICY",
	5:  "MONETARY RULES",
	6:  "PENDING & APPROVAL SEMANTICS",
	7:  "NAME MATCHING",
	8:  "STATUS RESOLUTION",
	9:  "RATIOS & COMPARATIVE ANALYSIS",
	10: "TIME & CALENDAR SEMANTICS",
	11: "SCHEMA INTEGRITY",
	12: "EXPENSE CATEGORY RESOLUTION",
}

func testRulesDoc() string {
	var b strings.Builder
	b.WriteString("WAREHOUSE RULES\n\npreamble text\n\n")
	for n := 1; n <= 12; n++ {
		fmt.Fprintf(&b, "%d. %s\nsection-%d-body\n\n", n, sectionTitles[n], n)
	}
	return b.String()
}

func newTestCompressor(t *testing.T) *SectionCompressor {
	t.Helper()
	return NewSectionCompressor(testRulesDoc(), nil, zap.NewNop())
}

func TestCompress_CoreSectionsAlwaysIncluded(t *testing.T) {
	c := newTestCompressor(t)

	out := c.Compress("what is the schema")

	for _, n := range []int{1, 2, 3, 4, 5, 7, 11} {
		assert.Contains(t, out, fmt.Sprintf("section-%d-body", n), "core section %d", n)
	}
	for _, n := range []int{6, 8, 9, 10, 12} {
		assert.NotContains(t, out, fmt.Sprintf("section-%d-body", n), "untriggered section %d", n)
	}
	assert.NotContains(t, out, "preamble text")
}

func TestCompress_KeywordPullsInSection(t *testing.T) {
	c := newTestCompressor(t)

	out := c.Compress("how many invoices are pending?")

	assert.Contains(t, out, "section-6-body")
	assert.NotContains(t, out, "section-12-body")
}

func TestCompress_TooManySectionsFallsBackToFullDoc(t *testing.T) {
	c := newTestCompressor(t)

	// Hits pending, rejection, time, expense-category and comparative
	// triggers on top of the core set.
	out := c.Compress("pending vs rejected diesel expense trend last month compare top vendors")

	assert.Equal(t, c.fullDoc, out)
}

func TestCompress_CustomTriggerConfig(t *testing.T) {
	triggers := TriggerConfig{
		"freight": {Keywords: []string{"freight"}, Sections: []int{12}},
	}
	c := NewSectionCompressor(testRulesDoc(), triggers, zap.NewNop())

	out := c.Compress("freight charges this quarter")

	assert.Contains(t, out, "section-12-body")
	// Built-in triggers are replaced, not merged.
	out = c.Compress("pending invoices")
	assert.NotContains(t, out, "section-6-body")
}

func TestLoadTriggerConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triggers.yaml")
	yaml := `
freight:
  keywords: ["freight", "shipping"]
  sections: [5, 12]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadTriggerConfig(path)
	require.NoError(t, err)

	require.Contains(t, cfg, "freight")
	assert.Equal(t, []string{"freight", "shipping"}, cfg["freight"].Keywords)
	assert.Equal(t, []int{5, 12}, cfg["freight"].Sections)

	_, err = LoadTriggerConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCriticalRules(t *testing.T) {
	c := newTestCompressor(t)

	t.Run("vendor identity", func(t *testing.T) {
		rules := c.CriticalRules("top vendors by invoice count")
		joined := strings.Join(rules, "\n")
		assert.Contains(t, joined, "Vendors are USERS, NOT Quick Codes")
	})

	t.Run("monetary source", func(t *testing.T) {
		rules := c.CriticalRules("total expense per warehouse")
		joined := strings.Join(rules, "\n")
		assert.Contains(t, joined, "total_amount")
		assert.Contains(t, joined, "invoice_line_items")
	})

	t.Run("last n months window", func(t *testing.T) {
		rules := c.CriticalRules("expense for the last 3 months")
		joined := strings.Join(rules, "\n")
		assert.Contains(t, joined, "3 FULL COMPLETED months")
		assert.Contains(t, joined, "INTERVAL 3 MONTH")
	})

	t.Run("status resolution", func(t *testing.T) {
		rules := c.CriticalRules("rejected invoices in March")
		joined := strings.Join(rules, "\n")
		assert.Contains(t, joined, "master_status.name")
	})

	t.Run("neutral question has none", func(t *testing.T) {
		assert.Empty(t, c.CriticalRules("list all warehouses"))
	})
}
