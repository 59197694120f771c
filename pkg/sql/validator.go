// Package sql validates, rewrites, and guards generated warehouse queries.
package sql

import (
	"fmt"
	"regexp"
	"strings"
)

// roleDefinition binds question keywords to the user_type filter they demand.
type roleDefinition struct {
	name        string
	keywords    []string
	filterLogic string
}

var roleDefinitions = []roleDefinition{
	{
		name:        "vendor",
		keywords:    []string{"vendor", "supplier", "payee"},
		filterLogic: "user_type LIKE '%VENDOR%'",
	},
	{
		name:        "admin",
		keywords:    []string{"admin", "administrator", "super user"},
		filterLogic: "user_type LIKE '%ADMIN%'",
	},
	{
		name:        "staff",
		keywords:    []string{"staff", "employee", "internal"},
		filterLogic: "user_type LIKE '%EMPLOYEE%'",
	},
}

var (
	tableRefRe      = regexp.MustCompile("`([^`]+)`\\.`([^`]+)`")
	badAliasRe      = regexp.MustCompile(`(?i)\bAS\s+([a-zA-Z0-9]+)\s+([a-zA-Z0-9]+)\b`)
	nowCallRe       = regexp.MustCompile(`(?i)\bNOW\s*\(\)`)
	numericStatusRe = regexp.MustCompile(`(?i)approval_status\s*=\s*\d+`)
	caseDivCaseRe   = regexp.MustCompile(`(?is)CASE\s+WHEN.*?END.*?/.*?CASE\s+WHEN.*?END`)
	notEqNumberRe   = regexp.MustCompile(`<>\s*\d+`)
	hyphenSchemaRe  = regexp.MustCompile("`?([a-zA-Z]+-[a-zA-Z]+-[a-zA-Z]+)\\.([a-zA-Z_]+)`?")
)

// Validator checks generated queries against the warehouse's semantic rules
// and produces retry feedback. It is a safety net behind the prompt, not a
// SQL parser: checks are keyword and pattern based on purpose, so they stay
// cheap and never reject on syntax they do not understand.
type Validator struct {
	// tableSchemaMap is lowercased table name -> owning schema.
	tableSchemaMap map[string]string
}

// NewValidator builds a validator. The schema map may be nil, which
// disables the wrong-schema check only.
func NewValidator(tableSchemaMap map[string]string) *Validator {
	if tableSchemaMap == nil {
		tableSchemaMap = map[string]string{}
	}
	return &Validator{tableSchemaMap: tableSchemaMap}
}

// Validate runs every check against the query and the question that
// produced it. An empty result means the query passed.
func (v *Validator) Validate(sqlText, question string) []Violation {
	var violations []Violation

	violations = append(violations, v.checkAliasSyntax(sqlText)...)
	violations = append(violations, v.checkUserRoleSafety(sqlText, question)...)
	violations = append(violations, v.checkApprovalTime(sqlText, question)...)
	violations = append(violations, v.checkStatusResolution(sqlText, question)...)
	violations = append(violations, v.checkRegionResolution(sqlText, question)...)
	violations = append(violations, v.checkRatioDenominator(sqlText, question)...)
	violations = append(violations, v.checkSchemaNames(sqlText)...)
	violations = append(violations, v.checkMasterStatusJoinIntegrity(sqlText)...)
	violations = append(violations, v.checkVendorSource(sqlText, question)...)
	violations = append(violations, v.checkSpendAggregation(sqlText, question)...)
	violations = append(violations, v.checkExpenseCategoryResolution(sqlText, question)...)
	violations = append(violations, v.checkSchemaIntegrity(sqlText)...)
	violations = append(violations, v.checkWarehouseSource(sqlText)...)
	violations = append(violations, v.checkAmbiguousColumns(sqlText)...)

	return violations
}

// checkAliasSyntax flags aliases with embedded spaces ("AS Vendor Name").
// Reported at most once per query.
func (v *Validator) checkAliasSyntax(sqlText string) []Violation {
	m := badAliasRe.FindStringSubmatch(sqlText)
	if m == nil {
		return nil
	}
	return []Violation{{
		Rule:        "INVALID_ALIAS_SYNTAX",
		Description: fmt.Sprintf("Aliases cannot contain spaces: '%s %s'", m[1], m[2]),
		FixHint:     "Use snake_case (e.g., 'vendor_name') or remove spaces.",
	}}
}

// checkUserRoleSafety ensures role questions resolve through the user table
// with the matching user_type filter.
func (v *Validator) checkUserRoleSafety(sqlText, question string) []Violation {
	var violations []Violation
	sqlLower := strings.ToLower(sqlText)
	qLower := strings.ToLower(question)

	usesUserTable := strings.Contains(sqlLower, "ems-auth-service") && strings.Contains(sqlLower, "user")

	if !usesUserTable {
		for _, role := range roleDefinitions {
			if containsAny(qLower, role.keywords...) {
				violations = append(violations, Violation{
					Rule:        "WRONG_TABLE_FOR_ROLE",
					Description: fmt.Sprintf("Queries for %s must join `ems-auth-service`.`user`.", role.name),
					FixHint:     fmt.Sprintf("JOIN `ems-auth-service`.`user` AND filter by %s", role.filterLogic),
				})
			}
		}
		return violations
	}

	for _, role := range roleDefinitions {
		if !containsAny(qLower, role.keywords...) {
			continue
		}
		if !strings.Contains(sqlLower, "user_type") {
			violations = append(violations, Violation{
				Rule:        fmt.Sprintf("MISSING_%s_FILTER", strings.ToUpper(role.name)),
				Description: fmt.Sprintf("You queried Users for '%s' but forgot the type filter.", role.name),
				FixHint:     fmt.Sprintf("Add condition: AND %s", role.filterLogic),
			})
		} else if !strings.Contains(sqlLower, role.name) {
			violations = append(violations, Violation{
				Rule:        "WRONG_TYPE_VALUE",
				Description: fmt.Sprintf("Filter seems to miss the specific '%s' value.", role.name),
				FixHint:     fmt.Sprintf("Ensure you use: %s", role.filterLogic),
			})
		}
	}
	return violations
}

func (v *Validator) checkApprovalTime(sqlText, question string) []Violation {
	qLower := strings.ToLower(question)
	if !containsAny(qLower, "approval time", "approval duration", "time to approve",
		"approval period", "tat", "turnaround") {
		return nil
	}

	var violations []Violation
	sqlLower := strings.ToLower(sqlText)

	if nowCallRe.MatchString(sqlText) {
		violations = append(violations, Violation{
			Rule:        "APPROVAL_TIME_NOW_FORBIDDEN",
			Description: "NOW() must not be used in approval time calculations",
			FixHint:     "Use: DATEDIFF(updated_at, created_at) or TIMESTAMPDIFF(unit, created_at, updated_at)",
		})
	}
	if !strings.Contains(sqlLower, "updated_at") {
		violations = append(violations, Violation{
			Rule:        "APPROVAL_TIME_MISSING_UPDATED_AT",
			Description: "Approval time requires updated_at column",
			FixHint:     "Approval time = updated_at - created_at (NOT NOW() - created_at)",
		})
	}
	if !strings.Contains(sqlLower, "master_status") {
		violations = append(violations, Violation{
			Rule:        "APPROVAL_TIME_MISSING_STATUS_JOIN",
			Description: "Approval queries must join master_status table",
			FixHint:     "JOIN `ems-portal-service`.`master_status` ms ON ii.approval_status = ms.id",
		})
	}
	return violations
}

func (v *Validator) checkStatusResolution(sqlText, question string) []Violation {
	// "approval" pulls in approval-time questions, whose queries filter on
	// approval_status and face the same resolution rules.
	qLower := strings.ToLower(question)
	if !containsAny(qLower, "approved", "rejected", "pending", "commented", "status", "approval") {
		return nil
	}

	var violations []Violation
	sqlLower := strings.ToLower(sqlText)

	if numericStatusRe.MatchString(sqlText) {
		violations = append(violations, Violation{
			Rule:        "STATUS_NUMERIC_FORBIDDEN",
			Description: "Numeric approval_status values are forbidden",
			FixHint:     "Must join master_status and use: LOWER(ms.name) LIKE LOWER('%status_name%')",
		})
	}
	if strings.Contains(sqlLower, "approval_status") && !strings.Contains(sqlLower, "master_status") {
		violations = append(violations, Violation{
			Rule:        "STATUS_MISSING_MASTER_STATUS_JOIN",
			Description: "Status filtering requires master_status join",
			FixHint:     "JOIN `ems-portal-service`.`master_status` ms ON ii.approval_status = ms.id",
		})
	}
	if strings.Contains(sqlLower, "master_status") && !strings.Contains(strings.ToUpper(sqlText), "LIKE") {
		violations = append(violations, Violation{
			Rule:        "STATUS_EXACT_MATCH_DISCOURAGED",
			Description: "Status matching should use LIKE for fuzzy matching",
			FixHint:     "Use: LOWER(ms.name) LIKE LOWER('%status_name%') instead of exact equality",
		})
	}
	return violations
}

func (v *Validator) checkRegionResolution(sqlText, question string) []Violation {
	qLower := strings.ToLower(question)
	if !containsAny(qLower, "region", "south", "north", "east", "west", "zone") {
		return nil
	}

	sqlLower := strings.ToLower(sqlText)
	if strings.Contains(sqlLower, "account_info") && !strings.Contains(sqlLower, "warehouse_info") {
		if containsAny(sqlLower, "state_id", "city_id", "zone_id") {
			return []Violation{{
				Rule:        "REGION_FROM_ACCOUNT_INVALID",
				Description: "Region must come from warehouse, not account",
				FixHint:     "Join: invoice_info -> warehouse_info -> quick_code_master (via region_id)",
			}}
		}
	}
	return nil
}

func (v *Validator) checkRatioDenominator(sqlText, question string) []Violation {
	qLower := strings.ToLower(question)
	if !containsAny(qLower, "ratio", "rate", "percentage", "rejection to approval") {
		return nil
	}

	if caseDivCaseRe.MatchString(sqlText) && notEqNumberRe.MatchString(sqlText) {
		return []Violation{{
			Rule:        "RATIO_DENOMINATOR_FILTERED",
			Description: "Ratio denominator should not be filtered by same condition",
			FixHint:     "Denominator = COUNT(id) or SUM(all cases). Example: rejected / approved, not rejected / (total - rejected)",
		}}
	}
	return nil
}

// checkSchemaNames flags hyphenated schema names without backticks.
// Reported at most once per query.
func (v *Validator) checkSchemaNames(sqlText string) []Violation {
	for _, m := range hyphenSchemaRe.FindAllString(sqlText, -1) {
		sub := hyphenSchemaRe.FindStringSubmatch(m)
		schemaName, tableName := sub[1], sub[2]

		backticked := strings.HasPrefix(m, "`") || strings.Contains(m, "`"+schemaName+"`")
		if !backticked {
			return []Violation{{
				Rule:        "SCHEMA_NAME_NOT_BACKTICKED",
				Description: fmt.Sprintf("Schema name with hyphens must be backticked: %s", schemaName),
				FixHint:     fmt.Sprintf("Use: `%s`.`%s` instead of %s.%s", schemaName, tableName, schemaName, tableName),
			}}
		}
	}
	return nil
}

func (v *Validator) checkMasterStatusJoinIntegrity(sqlText string) []Violation {
	sqlLower := strings.ToLower(sqlText)

	referencesStatusName := strings.Contains(sqlLower, "master_status.name")
	hasJoin := strings.Contains(sqlLower, "join") && strings.Contains(sqlLower, "master_status")

	if referencesStatusName && !hasJoin {
		return []Violation{{
			Rule:        "MASTER_STATUS_REFERENCE_WITHOUT_JOIN",
			Description: "master_status.name is referenced but master_status is not joined",
			FixHint:     "Add: JOIN `ems-portal-service`.`master_status` ms ON ii.approval_status = ms.id",
		}}
	}
	return nil
}

func (v *Validator) checkVendorSource(sqlText, question string) []Violation {
	qLower := strings.ToLower(question)
	if !containsAny(qLower, "vendor", "supplier", "payee") {
		return nil
	}

	var violations []Violation
	sqlLower := strings.ToLower(sqlText)

	if !strings.Contains(sqlLower, "ems-auth-service") || !strings.Contains(sqlLower, "user") {
		violations = append(violations, Violation{
			Rule:        "WRONG_VENDOR_SOURCE",
			Description: "Vendors must be queried from `ems-auth-service`.`user`",
			FixHint:     "JOIN `ems-auth-service`.`user` u ON invoice_info.vendor_id = u.id",
		})
	}
	if strings.Contains(sqlLower, "quick_code_master") && strings.Contains(sqlLower, "vendor_name") {
		violations = append(violations, Violation{
			Rule:        "VENDOR_IS_NOT_QUICK_CODE",
			Description: "Vendors are NOT Quick Codes.",
			FixHint:     "Remove quick_code_master join. Use `user`.`full_name`.",
		})
	}
	return violations
}

func (v *Validator) checkSpendAggregation(sqlText, question string) []Violation {
	qLower := strings.ToLower(question)
	if !containsAny(qLower, "spend", "amount", "cost", "total", "bill", "expense") {
		return nil
	}

	sqlLower := strings.ToLower(sqlText)
	if strings.Contains(sqlLower, "invoice_line_items") {
		// Item-level questions legitimately need line items.
		if !containsAny(qLower, "expense", "category", "line item", "item") {
			return []Violation{{
				Rule:        "WRONG_SPEND_SOURCE",
				Description: "Warehouse/account spend must be aggregated directly from invoice_info without line items",
				FixHint:     "Remove invoice_line_items joins and aggregate only invoice_info.total_amount",
			}}
		}
	}
	return nil
}

func (v *Validator) checkExpenseCategoryResolution(sqlText, question string) []Violation {
	qLower := strings.ToLower(question)
	if !containsAny(qLower, "rent", "manpower", "security", "electricity", "diesel",
		"transport", "mhe", "insurance", "tyre", "fuel") {
		return nil
	}

	var violations []Violation
	sqlLower := strings.ToLower(sqlText)

	if !strings.Contains(sqlLower, "expenses_master") {
		violations = append(violations, Violation{
			Rule:        "EXPENSE_MASTER_MISSING",
			Description: "Expense category queries must resolve via expenses_master",
			FixHint:     "Join invoice_info -> invoice_line_items -> expenses_master and filter on expenses_master.expense_name",
		})
	}
	if !strings.Contains(sqlLower, "invoice_line_items") {
		violations = append(violations, Violation{
			Rule:        "LINE_ITEMS_MISSING_FOR_EXPENSE",
			Description: "Expense category filtering requires invoice_line_items join",
			FixHint:     "Join invoice_line_items ON invoice_line_items.invoice_id = invoice_info.id",
		})
	}
	return violations
}

// checkSchemaIntegrity verifies every `schema`.`table` reference against the
// metadata. Unknown tables are ignored here, other checks cover those.
func (v *Validator) checkSchemaIntegrity(sqlText string) []Violation {
	var violations []Violation

	for _, m := range tableRefRe.FindAllStringSubmatch(sqlText, -1) {
		schemaName, tableName := m[1], m[2]
		expected, known := v.tableSchemaMap[strings.ToLower(tableName)]
		if !known {
			continue
		}
		if !strings.EqualFold(schemaName, expected) {
			violations = append(violations, Violation{
				Rule: "WRONG_SCHEMA",
				Description: fmt.Sprintf(
					"Table `%s` is referenced from schema `%s`, but metadata defines it under `%s`",
					tableName, schemaName, expected),
				FixHint: fmt.Sprintf("Use `%s`.`%s` instead of `%s`.`%s`",
					expected, tableName, schemaName, tableName),
			})
		}
	}
	return violations
}

func (v *Validator) checkWarehouseSource(sqlText string) []Violation {
	sqlLower := strings.ToLower(sqlText)
	if !strings.Contains(sqlLower, "warehouse") {
		return nil
	}
	// A bare "warehouse" table does not exist; only warehouse_info does.
	if strings.Contains(sqlLower, "`ems-portal-service`.`warehouse`") ||
		strings.Contains(sqlLower, "warehouse ") {
		return []Violation{{
			Rule:        "WRONG_WAREHOUSE_TABLE",
			Description: "Warehouse data must be queried from ems-warehouse-service.warehouse_info",
			FixHint:     "JOIN `ems-warehouse-service`.`warehouse_info` wi ON invoice_info.warehouse_id = wi.id",
		}}
	}
	return nil
}

func (v *Validator) checkAmbiguousColumns(sqlText string) []Violation {
	if strings.Contains(strings.ToLower(sqlText), "sum(total_amount)") {
		return []Violation{{
			Rule:        "AMBIGUOUS_COLUMN",
			Description: "total_amount must be fully qualified as invoice_info.total_amount",
			FixHint:     "Use SUM(invoice_info.total_amount)",
		}}
	}
	return nil
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
