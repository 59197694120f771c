package models

// GoldenExample is a verified-correct question/query pair used as an
// in-context pattern for new generations.
type GoldenExample struct {
	Question string   `json:"question"`
	SQL      string   `json:"sql"`
	Notes    string   `json:"notes"`
	Tags     []string `json:"tags"`
}

// ExecutionResult is the tabular outcome of running a finished query.
type ExecutionResult struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"data"`
	RowCount int              `json:"row_count"`
}

// Empty reports whether the result contains no rows.
func (r *ExecutionResult) Empty() bool {
	return r == nil || r.RowCount == 0
}
