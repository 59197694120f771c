// Package schema loads warehouse table metadata and renders the bounded
// schema context that goes into generation prompts.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const (
	// maxPromptTables bounds the schema context. Priority tables are
	// never truncated.
	maxPromptTables = 15
	// maxPromptColumns bounds columns listed per table.
	maxPromptColumns = 10
)

// priorityTables must always appear in the prompt regardless of limits.
var priorityTables = map[string]bool{
	"invoice_info":       true,
	"invoice_line_items": true,
	"user":               true,
	"master_status":      true,
	"quick_code_master":  true,
	"warehouse_info":     true,
	"account_info":       true,
}

// tableAnnotations inject known footguns next to the table definition.
var tableAnnotations = map[string]string{
	"user":               "MIXED ROLES: Contains Vendors, Admins, & Staff. MUST filter by `user_type` (e.g., 'VENDOR').",
	"invoice_info":       "MONEY: Use `total_amount`. TIME: Use `invoice_month` for all monthly reporting/filtering.",
	"invoice_line_items": "DETAILS: Only use for item-level detail. NOT for total spend.",
	"quick_code_master":  "LOOKUP: Use for City/Region names. NEVER for Vendor names.",
	"master_status":      "STATUS: Join on `approval_status`. Filter by `name` (Approved, Pending, etc).",
}

// Column is one column definition from the metadata file.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Table is one entity from the metadata file.
type Table struct {
	Schema  string   `json:"schema"`
	Table   string   `json:"table"`
	Columns []Column `json:"columns"`
}

type metadataFile struct {
	Entities map[string]Table `json:"entities"`
}

// Metadata is the loaded warehouse schema. Immutable after construction.
type Metadata struct {
	entities map[string]Table
	// order preserves a stable iteration order over entity keys.
	order  []string
	logger *zap.Logger
}

// Load reads the table metadata JSON ({"entities": {...}}) from path. A
// missing file is an error: without the schema the generator hallucinates
// table names.
func Load(path string, logger *zap.Logger) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema metadata %s: %w", path, err)
	}
	return Parse(data, logger)
}

// Parse builds Metadata from raw JSON bytes.
func Parse(data []byte, logger *zap.Logger) (*Metadata, error) {
	var file metadataFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse schema metadata: %w", err)
	}

	order := make([]string, 0, len(file.Entities))
	for name := range file.Entities {
		order = append(order, name)
	}
	sort.Strings(order)

	m := &Metadata{
		entities: file.Entities,
		order:    order,
		logger:   logger.Named("schema"),
	}
	m.logger.Info("schema metadata loaded", zap.Int("tables", len(m.entities)))
	return m, nil
}

// TableSchemaMap returns lowercased table name -> schema name, used by the
// validator to catch wrong-schema references.
func (m *Metadata) TableSchemaMap() map[string]string {
	out := make(map[string]string, len(m.entities))
	for _, t := range m.entities {
		if t.Table != "" {
			out[strings.ToLower(t.Table)] = t.Schema
		}
	}
	return out
}

// TableCount reports how many tables the metadata describes.
func (m *Metadata) TableCount() int {
	return len(m.entities)
}

// BuildPromptContext renders the schema section of the generation prompt.
// Priority tables come first and are always included; remaining tables fill
// up to the table cap, each with at most ten columns.
func (m *Metadata) BuildPromptContext() string {
	if len(m.entities) == 0 {
		return ""
	}

	var out []string
	for _, name := range m.order {
		t := m.entities[name]
		if priorityTables[t.Table] {
			out = append(out, formatTable(t))
		}
	}
	count := len(out)
	for _, name := range m.order {
		t := m.entities[name]
		if priorityTables[t.Table] {
			continue
		}
		if count >= maxPromptTables {
			break
		}
		out = append(out, formatTable(t))
		count++
	}
	return strings.Join(out, "\n")
}

func formatTable(t Table) string {
	lines := []string{fmt.Sprintf("Table: %s.%s", t.Schema, t.Table)}
	if note, ok := tableAnnotations[t.Table]; ok {
		lines = append(lines, "  NOTE: "+note)
	}
	for i, col := range t.Columns {
		if i >= maxPromptColumns {
			break
		}
		lines = append(lines, fmt.Sprintf(" - %s (%s)", col.Name, col.Type))
	}
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}
