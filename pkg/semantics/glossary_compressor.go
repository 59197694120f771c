package semantics

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// minCompressedLength guards against degenerate compression: anything
// shorter than this falls back to the full document.
const minCompressedLength = 500

// glossaryTriggers maps query keywords to glossary section headers.
var glossaryTriggers = map[string][]string{
	"vendor":        {"vendor", "supplier", "payee"},
	"account":       {"account", "customer", "client"},
	"warehouse":     {"warehouse", "facility", "location"},
	"city":          {"city", "cities"},
	"region":        {"region", "zone", "north", "south", "east", "west"},
	"approval_time": {"approval time", "approval duration", "tat", "turnaround"},
	"pending":       {"pending", "stuck", "awaiting"},
	"metric":        {"metric", "expense", "total expense", "invoice amount"},
	"time":          {"last month", "last week", "yesterday", "today", "time semantic"},
	"follow_up":     {"which", "that", "those", "this", "he", "she", "they"},
	"projection": {
		"list", "names", "name", "show", "details",
		"break down", "give me", "display",
	},
	"attribute": {"remarks", "comments", "notes", "attribute"},
	"missing":   {"missing", "gap", "inconsistent", "not uploaded", "absent", "haven't"},
}

// glossaryCoreSections are always included regardless of keywords.
var glossaryCoreSections = []string{
	"output discipline",
	"name matching semantics",
	"corrections",
	"follow-up query handling",
	"result context awareness",
}

type glossarySection struct {
	header  string // lowercased header text
	content string // full section text including header line
}

// GlossaryCompressor compresses the business-glossary document used by the
// refiner. Unlike SectionCompressor it keys sections by markdown "##"
// headers rather than numbers.
type GlossaryCompressor struct {
	fullDoc  string
	sections []glossarySection
	logger   *zap.Logger
}

var headerSplitRe = regexp.MustCompile(`(?m)^##\s+`)

// NewGlossaryCompressor parses the glossary into header-keyed sections.
func NewGlossaryCompressor(doc string, logger *zap.Logger) *GlossaryCompressor {
	return &GlossaryCompressor{
		fullDoc:  doc,
		sections: parseHeaderSections(doc),
		logger:   logger.Named("glossary_compressor"),
	}
}

// NewGlossaryCompressorFromFile loads the glossary document from disk.
func NewGlossaryCompressorFromFile(path string, logger *zap.Logger) (*GlossaryCompressor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read glossary document %s: %w", path, err)
	}
	return NewGlossaryCompressor(string(data), logger), nil
}

func parseHeaderSections(doc string) []glossarySection {
	parts := headerSplitRe.Split(doc, -1)
	sections := make([]glossarySection, 0, len(parts))

	// parts[0] is whatever precedes the first "##" header.
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "" {
			continue
		}
		lines := strings.SplitN(part, "\n", 2)
		header := strings.ToLower(strings.TrimSpace(lines[0]))
		content := ""
		if len(lines) > 1 {
			content = lines[1]
		}
		sections = append(sections, glossarySection{
			header:  header,
			content: fmt.Sprintf("## %s\n%s", lines[0], content),
		})
	}
	return sections
}

// Compress returns the core sections plus every section whose trigger
// keywords appear in the question, in document order. Falls back to the
// full document when the result is empty or suspiciously short.
func (c *GlossaryCompressor) Compress(question string) string {
	questionLower := strings.ToLower(question)

	include := make(map[string]bool, len(glossaryCoreSections))
	for _, core := range glossaryCoreSections {
		include[core] = true
	}
	for category, keywords := range glossaryTriggers {
		for _, kw := range keywords {
			if strings.Contains(questionLower, kw) {
				include[category] = true
				break
			}
		}
	}

	var parts []string
	for _, section := range c.sections {
		for key := range include {
			if strings.Contains(section.header, key) {
				parts = append(parts, section.content)
				break
			}
		}
	}
	compressed := strings.Join(parts, "\n\n")

	if len(compressed) < minCompressedLength {
		return c.fullDoc
	}

	c.logger.Debug("glossary compressed",
		zap.Int("original_chars", len(c.fullDoc)),
		zap.Int("compressed_chars", len(compressed)))
	return compressed
}
