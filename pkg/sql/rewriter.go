package sql

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// ident matches a SQL identifier, optionally backticked.
const ident = "`?[a-zA-Z_][a-zA-Z0-9_]*`?"

var (
	// Unquoted hyphenated schema followed by a table reference. The
	// leading capture stands in for a negative lookbehind on backtick.
	unquotedSchemaRe = regexp.MustCompile("(^|[^`a-zA-Z0-9_-])([a-zA-Z_][a-zA-Z0-9_-]*-[a-zA-Z0-9_-]*)\\.(" + ident + ")")

	quickCodeAliasRe = regexp.MustCompile("(?i)(?:FROM|JOIN)\\s+`?quick_code_master`?(?:\\s+AS)?\\s+(" + ident + ")")

	accountNameEqRe = regexp.MustCompile("(?i)((?:" + ident + "\\.)?\\baccount_name\\b)\\s*=\\s*'([^']+)'")

	// Business-name columns that must always be matched fuzzily.
	fuzzyNameEqRe = regexp.MustCompile("(?i)(" + ident + "\\.(?:warehouse_name|region_name|name)\\b)\\s*=\\s*'([^']+)'")
)

// Rewriter applies deterministic textual fixes to generated queries. Every
// rewrite is pure and idempotent; Refine runs them in a fixed order because
// each step changes what the next pattern can match.
type Rewriter struct {
	logger *zap.Logger
}

// NewRewriter creates a Rewriter.
func NewRewriter(logger *zap.Logger) *Rewriter {
	return &Rewriter{logger: logger.Named("rewriter")}
}

// Refine applies all rewrite rules. Backtick quoting must run first so the
// later rules see canonical schema references.
func (r *Rewriter) Refine(sqlText string) string {
	original := sqlText

	sqlText = r.fixHyphenatedSchemaNames(sqlText)
	sqlText = r.fixQuickCodeJoins(sqlText)
	sqlText = r.enforceAccountNameLike(sqlText)
	sqlText = r.applyFuzzyNameLike(sqlText)

	if sqlText != original {
		r.logger.Debug("query rewritten")
	}
	return sqlText
}

// fixHyphenatedSchemaNames backtick-quotes schema names containing hyphens:
// ems-portal-service.invoice_info becomes `ems-portal-service`.invoice_info.
func (r *Rewriter) fixHyphenatedSchemaNames(sqlText string) string {
	out := unquotedSchemaRe.ReplaceAllString(sqlText, "${1}`${2}`.${3}")
	if out != sqlText {
		r.logger.Info("fixed unquoted hyphenated schema names")
	}
	return out
}

// fixQuickCodeJoins repairs join predicates against quick_code_master that
// target the wrong key column: any "ON lhs = <alias>.<col>" for a
// quick_code_master alias is forced to join on <alias>.id.
func (r *Rewriter) fixQuickCodeJoins(sqlText string) string {
	aliases := map[string]bool{}
	for _, m := range quickCodeAliasRe.FindAllStringSubmatch(sqlText, -1) {
		alias := strings.Trim(m[1], "`")
		// "JOIN quick_code_master ON ..." has no alias; the pattern
		// would capture the ON keyword itself.
		if strings.EqualFold(alias, "on") {
			continue
		}
		aliases[alias] = true
	}
	if len(aliases) == 0 {
		return sqlText
	}

	fixes := 0
	for alias := range aliases {
		joinOnRe := regexp.MustCompile(`(?i)ON\s+([^=]+?)\s*=\s*` + regexp.QuoteMeta(alias) + `\.\w+`)
		sqlText = joinOnRe.ReplaceAllStringFunc(sqlText, func(match string) string {
			fixes++
			lhs := strings.TrimSpace(joinOnRe.FindStringSubmatch(match)[1])
			return "ON " + lhs + " = " + alias + ".id"
		})
	}
	if fixes > 0 {
		r.logger.Info("fixed quick_code_master join conditions", zap.Int("count", fixes))
	}
	return sqlText
}

// enforceAccountNameLike converts account_name equality (qualified or bare)
// to a fuzzy match. Account names in questions rarely match stored names
// exactly.
func (r *Rewriter) enforceAccountNameLike(sqlText string) string {
	out := accountNameEqRe.ReplaceAllString(sqlText, "${1} LIKE '%${2}%'")
	if out != sqlText {
		r.logger.Info("enforced LIKE for account_name")
	}
	return out
}

// applyFuzzyNameLike does the same for the other business-name columns
// (warehouse names and quick-code city/region names).
func (r *Rewriter) applyFuzzyNameLike(sqlText string) string {
	out := fuzzyNameEqRe.ReplaceAllString(sqlText, "${1} LIKE '%${2}%'")
	if out != sqlText {
		r.logger.Info("enforced LIKE for business name columns")
	}
	return out
}
