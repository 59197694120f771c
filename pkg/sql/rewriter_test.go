package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRefine_BackticksHyphenatedSchema(t *testing.T) {
	r := NewRewriter(zap.NewNop())

	out := r.Refine("SELECT * FROM ems-portal-service.invoice_info ii")
	assert.Contains(t, out, "`ems-portal-service`.invoice_info")
}

func TestRefine_LeavesQuotedSchemaAlone(t *testing.T) {
	r := NewRewriter(zap.NewNop())

	in := "SELECT * FROM `ems-portal-service`.`invoice_info` ii"
	assert.Equal(t, in, r.Refine(in))
}

func TestRefine_QuickCodeJoinRepair(t *testing.T) {
	r := NewRewriter(zap.NewNop())

	in := "SELECT qcm.name FROM `ems-warehouse-service`.`warehouse_info` wi " +
		"JOIN `ems-portal-service`.`quick_code_master` qcm ON wi.region_id = qcm.code"
	out := r.Refine(in)
	assert.Contains(t, out, "ON wi.region_id = qcm.id")
	assert.NotContains(t, out, "qcm.code")
}

func TestRefine_QuickCodeWithoutAlias(t *testing.T) {
	r := NewRewriter(zap.NewNop())

	in := "SELECT name FROM quick_code_master ON a.region_id = b.code"
	assert.Equal(t, in, r.Refine(in))
}

func TestRefine_AccountNameBecomesFuzzy(t *testing.T) {
	r := NewRewriter(zap.NewNop())

	out := r.Refine("SELECT * FROM account_info WHERE account_name = 'Acme Corp'")
	assert.Contains(t, out, "account_name LIKE '%Acme Corp%'")

	out = r.Refine("SELECT * FROM account_info ai WHERE ai.account_name = 'Acme Corp'")
	assert.Contains(t, out, "ai.account_name LIKE '%Acme Corp%'")
}

func TestRefine_BusinessNamesBecomeFuzzy(t *testing.T) {
	r := NewRewriter(zap.NewNop())

	out := r.Refine("SELECT * FROM warehouse_info wi WHERE wi.warehouse_name = 'Bhiwandi'")
	assert.Contains(t, out, "wi.warehouse_name LIKE '%Bhiwandi%'")

	out = r.Refine("SELECT * FROM quick_code_master qcm WHERE qcm.name = 'South'")
	assert.Contains(t, out, "qcm.name LIKE '%South%'")
}

func TestRefine_DoesNotFuzzOtherColumns(t *testing.T) {
	r := NewRewriter(zap.NewNop())

	in := "SELECT * FROM `ems-auth-service`.`user` u WHERE u.full_name = 'John'"
	assert.Equal(t, in, r.Refine(in))
}

func TestRefine_Idempotent(t *testing.T) {
	r := NewRewriter(zap.NewNop())

	inputs := []string{
		"SELECT * FROM ems-portal-service.invoice_info WHERE account_name = 'Acme'",
		"SELECT qcm.name FROM x JOIN quick_code_master qcm ON wi.region_id = qcm.code",
		"SELECT * FROM warehouse_info wi WHERE wi.warehouse_name = 'Pune'",
	}
	for _, in := range inputs {
		once := r.Refine(in)
		twice := r.Refine(once)
		assert.Equal(t, once, twice)
	}
}
