package semantics

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SectionTrigger maps a keyword set to the numbered sections it pulls in.
type SectionTrigger struct {
	Keywords []string `yaml:"keywords"`
	Sections []int    `yaml:"sections"`
}

// TriggerConfig is the full keyword-to-section mapping for the generation
// rules document, keyed by rule category.
type TriggerConfig map[string]SectionTrigger

// LoadTriggerConfig reads a trigger mapping from a YAML file. Used to
// override the built-in triggers without a rebuild.
func LoadTriggerConfig(path string) (TriggerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trigger config: %w", err)
	}
	var cfg TriggerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse trigger config: %w", err)
	}
	return cfg, nil
}

// DefaultTriggers returns the built-in keyword-to-section mapping for the
// warehouse rules document.
func DefaultTriggers() TriggerConfig {
	return TriggerConfig{
		"approval_time": {
			Keywords: []string{
				"approval time", "approval duration", "time to approve",
				"approval period", "longest approval", "shortest approval",
				"approved", "approval", "slowest", "fastest approval",
				"how long to approve", "approval speed", "tat", "turnaround",
			},
			Sections: []int{6, 8},
		},
		"pending_duration": {
			Keywords: []string{
				"pending", "pending time", "pending duration", "waiting",
				"not approved", "stuck", "not yet approved",
				"awaiting approval", "under review",
			},
			Sections: []int{6},
		},
		"rejection_ratio": {
			Keywords: []string{
				"rejection", "rejection rate", "rejection ratio",
				"rejection to approval", "worst vendor", "best vendor",
				"rejected", "reject", "rejection performance",
			},
			Sections: []int{8, 9},
		},
		"status_filtering": {
			Keywords: []string{
				"approved", "rejected", "pending", "commented",
				"status", "approval status", "invoice status",
			},
			Sections: []int{8},
		},
		"region_filtering": {
			Keywords: []string{
				"region", "south", "north", "east", "west", "zone",
				"geographic", "geography", "city", "state",
				"location-based", "area",
			},
			Sections: []int{2, 3, 7},
		},
		"vendor_analysis": {
			Keywords: []string{
				"vendor", "supplier", "created by", "payee",
				"who created", "which vendor",
			},
			Sections: []int{2, 3, 7},
		},
		"account_analysis": {
			Keywords: []string{
				"account", "customer", "client", "account name",
				"which account", "account performance",
			},
			Sections: []int{2, 3, 4, 7},
		},
		"warehouse_analysis": {
			Keywords: []string{
				"warehouse", "facility", "location", "warehouse name",
				"which warehouse", "where",
			},
			Sections: []int{2, 3, 7},
		},
		"simple_aggregation": {
			Keywords: []string{
				"count", "total", "sum", "average", "avg",
				"how many", "number of", "amount", "total amount",
				"invoice count", "invoice amount", "total invoices",
				"expense", "expenses", "spend", "spending", "cost", "costs",
				"bill", "bills", "value", "payment", "payments", "financial",
			},
			Sections: []int{5},
		},
		"time_filtering": {
			Keywords: []string{
				"last month", "last week", "this month", "this week",
				"yesterday", "today", "last year", "time period",
				"date range", "between dates", "last 6 months", "last 3 months",
				"july", "august", "september", "october", "november", "december",
				"january", "february", "march", "april", "may", "june",
				"period from", "inconsistent", "missing months", "which months",
				"2025", "2026", "when",
			},
			Sections: []int{10},
		},
		"comparative_analysis": {
			Keywords: []string{
				"compare", "comparison", "versus", "vs", "more than",
				"less than", "higher than", "lower than", "better than",
				"worse than", "performance",
				"highest", "lowest", "most", "least", "top", "bottom", "rank",
			},
			Sections: []int{9},
		},
		"temporal_gaps": {
			Keywords: []string{
				"missing", "gap", "inconsistent", "not uploaded", "absent",
				"missing months", "gap in", "not consistently", "haven't uploaded",
				"which months", "missing data", "incomplete",
			},
			Sections: []int{2, 3, 10},
		},
		"expense_category": {
			Keywords: []string{
				"rent", "manpower", "security", "electricity", "diesel",
				"courier", "transport", "mhe", "insurance", "tyre",
				"fuel", "maintenance", "repair", "water", "internet",
			},
			Sections: []int{12},
		},
	}
}
