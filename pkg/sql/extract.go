package sql

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultRowLimit caps result sets when the model omits a LIMIT clause.
const DefaultRowLimit = 1000

var codeFenceRe = regexp.MustCompile("(?s)```(?:sql)?(.*?)```")

// ExtractStatement pulls a single executable statement out of raw model
// output. Markdown fences and any prose before the first WITH or SELECT are
// discarded, everything after the first statement terminator is dropped,
// and a LIMIT clause is appended when missing.
func ExtractStatement(raw string, rowLimit int) string {
	if rowLimit <= 0 {
		rowLimit = DefaultRowLimit
	}

	clean := codeFenceRe.ReplaceAllString(raw, "$1")
	clean = strings.TrimSpace(clean)

	upper := strings.ToUpper(clean)
	idxWith := strings.Index(upper, "WITH")
	idxSelect := strings.Index(upper, "SELECT")

	// CTEs start at WITH; otherwise start at SELECT. Prose before either
	// token is model chatter.
	switch {
	case idxWith != -1 && (idxSelect == -1 || idxWith < idxSelect):
		clean = clean[idxWith:]
	case idxSelect != -1:
		clean = clean[idxSelect:]
	default:
		// No query in the response at all.
		return ""
	}

	if i := semicolonOutsideStrings(clean); i != -1 {
		clean = clean[:i]
	}
	clean = strings.TrimSpace(clean)

	if clean != "" && !strings.Contains(strings.ToUpper(clean), "LIMIT") {
		clean += fmt.Sprintf(" LIMIT %d", rowLimit)
	}
	return clean
}

// semicolonOutsideStrings returns the index of the first semicolon that is
// not inside a quoted literal, or -1.
func semicolonOutsideStrings(sqlText string) int {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	prev := rune(0)

	for i, ch := range sqlText {
		switch state {
		case stateNormal:
			switch ch {
			case ';':
				return i
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			// Both backslash escapes and SQL doubled quotes exit and
			// re-enter correctly here.
			if ch == '\'' && prev != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if ch == '"' && prev != '\\' {
				state = stateNormal
			}
		}
		prev = ch
	}
	return -1
}
