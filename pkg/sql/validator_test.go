package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchemaMap = map[string]string{
	"invoice_info":       "ems-portal-service",
	"invoice_line_items": "ems-portal-service",
	"master_status":      "ems-portal-service",
	"quick_code_master":  "ems-portal-service",
	"user":               "ems-auth-service",
	"warehouse_info":     "ems-warehouse-service",
	"account_info":       "ems-portal-service",
}

func ruleSet(violations []Violation) map[string]bool {
	set := make(map[string]bool, len(violations))
	for _, v := range violations {
		set[v.Rule] = true
	}
	return set
}

func TestValidate_ApprovalTimeAgainstNow(t *testing.T) {
	v := NewValidator(testSchemaMap)

	sql := "SELECT DATEDIFF(NOW(), ii.created_at) AS approval_time FROM invoice_info ii WHERE ii.approval_status = 2"
	rules := ruleSet(v.Validate(sql, "What is the approval time?"))

	assert.True(t, rules["APPROVAL_TIME_NOW_FORBIDDEN"])
	assert.True(t, rules["APPROVAL_TIME_MISSING_UPDATED_AT"])
	assert.True(t, rules["APPROVAL_TIME_MISSING_STATUS_JOIN"])
	assert.True(t, rules["STATUS_NUMERIC_FORBIDDEN"])
}

func TestValidate_CleanApprovalQuery(t *testing.T) {
	v := NewValidator(testSchemaMap)

	sql := "SELECT AVG(TIMESTAMPDIFF(HOUR, ii.created_at, ii.updated_at)) AS avg_hours " +
		"FROM `ems-portal-service`.`invoice_info` ii " +
		"JOIN `ems-portal-service`.`master_status` ms ON ii.approval_status = ms.id " +
		"WHERE LOWER(ms.name) LIKE LOWER('%approved%')"
	violations := v.Validate(sql, "What is the average approval time in hours for approved invoices?")

	assert.Empty(t, violations)
}

func TestValidate_IsPure(t *testing.T) {
	v := NewValidator(testSchemaMap)
	sql := "SELECT DATEDIFF(NOW(), ii.created_at) FROM invoice_info ii"
	question := "What is the approval time?"

	first := v.Validate(sql, question)
	second := v.Validate(sql, question)
	assert.Equal(t, first, second)
}

func TestValidate_AliasWithSpaces(t *testing.T) {
	v := NewValidator(testSchemaMap)

	violations := v.Validate("SELECT u.full_name AS Vendor Name", "list names")
	rules := ruleSet(violations)
	assert.True(t, rules["INVALID_ALIAS_SYNTAX"])
}

func TestValidate_VendorMustComeFromUserTable(t *testing.T) {
	v := NewValidator(testSchemaMap)

	sql := "SELECT qcm.name AS vendor_name FROM `ems-portal-service`.`quick_code_master` qcm"
	rules := ruleSet(v.Validate(sql, "Which vendor has the highest spend?"))

	assert.True(t, rules["WRONG_TABLE_FOR_ROLE"])
	assert.True(t, rules["WRONG_VENDOR_SOURCE"])
	assert.True(t, rules["VENDOR_IS_NOT_QUICK_CODE"])
}

func TestValidate_VendorMissingTypeFilter(t *testing.T) {
	v := NewValidator(testSchemaMap)

	sql := "SELECT u.full_name FROM `ems-auth-service`.`user` u"
	rules := ruleSet(v.Validate(sql, "List all vendors"))
	assert.True(t, rules["MISSING_VENDOR_FILTER"])

	sql = "SELECT u.full_name FROM `ems-auth-service`.`user` u WHERE u.user_type LIKE '%ADMIN%'"
	rules = ruleSet(v.Validate(sql, "List all vendors"))
	assert.True(t, rules["WRONG_TYPE_VALUE"])
}

func TestValidate_StatusChecks(t *testing.T) {
	v := NewValidator(testSchemaMap)

	sql := "SELECT COUNT(*) FROM `ems-portal-service`.`invoice_info` ii WHERE ii.approval_status = 3"
	rules := ruleSet(v.Validate(sql, "How many rejected invoices?"))
	assert.True(t, rules["STATUS_NUMERIC_FORBIDDEN"])
	assert.True(t, rules["STATUS_MISSING_MASTER_STATUS_JOIN"])

	sql = "SELECT COUNT(*) FROM `ems-portal-service`.`invoice_info` ii " +
		"JOIN `ems-portal-service`.`master_status` ms ON ii.approval_status = ms.id " +
		"WHERE ms.name = 'Rejected'"
	rules = ruleSet(v.Validate(sql, "How many rejected invoices?"))
	assert.True(t, rules["STATUS_EXACT_MATCH_DISCOURAGED"])

	// Approval-time questions filter on status without naming one.
	sql = "SELECT DATEDIFF(ii.updated_at, ii.created_at) FROM `ems-portal-service`.`invoice_info` ii " +
		"WHERE ii.approval_status = 2"
	rules = ruleSet(v.Validate(sql, "What is the approval time?"))
	assert.True(t, rules["STATUS_NUMERIC_FORBIDDEN"])
}

func TestValidate_RegionFromAccount(t *testing.T) {
	v := NewValidator(testSchemaMap)

	sql := "SELECT COUNT(*) FROM `ems-portal-service`.`account_info` ai WHERE ai.state_id = 5"
	rules := ruleSet(v.Validate(sql, "Invoices in the South region"))
	assert.True(t, rules["REGION_FROM_ACCOUNT_INVALID"])
}

func TestValidate_RatioDenominatorFiltered(t *testing.T) {
	v := NewValidator(testSchemaMap)

	sql := "SELECT SUM(CASE WHEN x THEN 1 ELSE 0 END) / SUM(CASE WHEN ii.approval_status <> 2 THEN 1 ELSE 0 END) " +
		"FROM `ems-portal-service`.`invoice_info` ii " +
		"JOIN `ems-portal-service`.`master_status` ms ON ii.approval_status = ms.id WHERE ms.name LIKE '%x%'"
	rules := ruleSet(v.Validate(sql, "What is the rejection rate?"))
	assert.True(t, rules["RATIO_DENOMINATOR_FILTERED"])
}

func TestValidate_SchemaNameBackticks(t *testing.T) {
	v := NewValidator(testSchemaMap)

	rules := ruleSet(v.Validate("SELECT * FROM ems-portal-service.invoice_info", "count invoices"))
	assert.True(t, rules["SCHEMA_NAME_NOT_BACKTICKED"])

	rules = ruleSet(v.Validate("SELECT * FROM `ems-portal-service`.`invoice_info`", "count invoices"))
	assert.False(t, rules["SCHEMA_NAME_NOT_BACKTICKED"])
}

func TestValidate_WrongSchema(t *testing.T) {
	v := NewValidator(testSchemaMap)

	violations := v.Validate("SELECT * FROM `ems-portal-service`.`warehouse_info` wi", "count rows")
	var found *Violation
	for i := range violations {
		if violations[i].Rule == "WRONG_SCHEMA" {
			found = &violations[i]
		}
	}
	require.NotNil(t, found)
	assert.Contains(t, found.FixHint, "`ems-warehouse-service`.`warehouse_info`")
}

func TestValidate_UnknownTableIgnoredBySchemaIntegrity(t *testing.T) {
	v := NewValidator(testSchemaMap)

	rules := ruleSet(v.Validate("SELECT * FROM `ems-portal-service`.`mystery_table`", "count rows"))
	assert.False(t, rules["WRONG_SCHEMA"])
}

func TestValidate_MasterStatusReferenceWithoutJoin(t *testing.T) {
	v := NewValidator(testSchemaMap)

	sql := "SELECT * FROM `ems-portal-service`.`invoice_info` WHERE master_status.name LIKE '%approved%'"
	rules := ruleSet(v.Validate(sql, "show invoices"))
	assert.True(t, rules["MASTER_STATUS_REFERENCE_WITHOUT_JOIN"])
}

func TestValidate_SpendFromLineItems(t *testing.T) {
	v := NewValidator(testSchemaMap)

	sql := "SELECT SUM(ili.amount) FROM `ems-portal-service`.`invoice_line_items` ili"
	rules := ruleSet(v.Validate(sql, "Total spend per warehouse"))
	assert.True(t, rules["WRONG_SPEND_SOURCE"])

	// Item-level questions may use line items.
	rules = ruleSet(v.Validate(sql, "Total expense by category"))
	assert.False(t, rules["WRONG_SPEND_SOURCE"])
}

func TestValidate_ExpenseCategoryJoins(t *testing.T) {
	v := NewValidator(testSchemaMap)

	sql := "SELECT SUM(invoice_info.total_amount) FROM `ems-portal-service`.`invoice_info`"
	rules := ruleSet(v.Validate(sql, "What did we spend on diesel?"))
	assert.True(t, rules["EXPENSE_MASTER_MISSING"])
	assert.True(t, rules["LINE_ITEMS_MISSING_FOR_EXPENSE"])
}

func TestValidate_AmbiguousTotalAmount(t *testing.T) {
	v := NewValidator(testSchemaMap)

	rules := ruleSet(v.Validate("SELECT SUM(total_amount) FROM `ems-portal-service`.`invoice_info`", "total billed"))
	assert.True(t, rules["AMBIGUOUS_COLUMN"])

	rules = ruleSet(v.Validate("SELECT SUM(invoice_info.total_amount) FROM `ems-portal-service`.`invoice_info`", "total billed"))
	assert.False(t, rules["AMBIGUOUS_COLUMN"])
}

func TestBuildRetryPromptAddition(t *testing.T) {
	violations := []Violation{
		{Rule: "A", Description: "first problem", FixHint: "first fix"},
		{Rule: "B", Description: "second problem", FixHint: "second fix"},
	}

	text := BuildRetryPromptAddition(violations)
	assert.Contains(t, text, "PREVIOUS ATTEMPT HAD ERRORS")
	assert.Contains(t, text, "1. first problem")
	assert.Contains(t, text, "FIX: first fix")
	assert.Contains(t, text, "2. second problem")

	assert.Empty(t, BuildRetryPromptAddition(nil))
}
