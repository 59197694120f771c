package sql

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

var (
	// ErrNotReadOnly indicates the query is not a SELECT/WITH statement.
	ErrNotReadOnly = errors.New("only SELECT statements are permitted")
	// ErrWriteOperation indicates a data-modifying keyword in the query.
	ErrWriteOperation = errors.New("write operations are not permitted")
	// ErrInjectionDetected indicates a string literal that looks like an
	// injection payload.
	ErrInjectionDetected = errors.New("possible SQL injection in literal")
)

var writeOpRe = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|TRUNCATE|ALTER|CREATE|GRANT|REVOKE|REPLACE|MERGE|CALL|EXEC)\b`)

var stringLiteralRe = regexp.MustCompile(`'([^']*)'`)

// EnsureReadOnly rejects anything that is not a single read-only statement.
// The executor calls it before a generated query reaches a connection.
func EnsureReadOnly(sqlText string) error {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return ErrNotReadOnly
	}

	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return ErrNotReadOnly
	}

	// Strip literals first so a value like 'UPDATE STATUS' cannot trip
	// the keyword scan.
	withoutLiterals := stringLiteralRe.ReplaceAllString(trimmed, "''")
	if m := writeOpRe.FindString(withoutLiterals); m != "" {
		return fmt.Errorf("%w: %s", ErrWriteOperation, strings.ToUpper(m))
	}

	for _, m := range stringLiteralRe.FindAllStringSubmatch(trimmed, -1) {
		literal := m[1]
		if literal == "" {
			continue
		}
		if isSQLi, fingerprint := libinjection.IsSQLi(literal); isSQLi {
			return fmt.Errorf("%w (fingerprint %s)", ErrInjectionDetected, fingerprint)
		}
	}
	return nil
}
