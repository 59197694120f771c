package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testMetadata(t *testing.T, extraTables int) *Metadata {
	t.Helper()

	entities := map[string]any{
		"InvoiceInfo": map[string]any{
			"schema": "ems-portal-service",
			"table":  "invoice_info",
			"columns": []map[string]string{
				{"name": "id", "type": "bigint"},
				{"name": "total_amount", "type": "decimal"},
				{"name": "invoice_month", "type": "varchar"},
			},
		},
		"User": map[string]any{
			"schema": "ems-auth-service",
			"table":  "user",
			"columns": []map[string]string{
				{"name": "id", "type": "bigint"},
				{"name": "full_name", "type": "varchar"},
				{"name": "user_type", "type": "varchar"},
			},
		},
	}
	for i := 0; i < extraTables; i++ {
		cols := make([]map[string]string, 12)
		for c := range cols {
			cols[c] = map[string]string{"name": fmt.Sprintf("col_%d", c), "type": "varchar"}
		}
		entities[fmt.Sprintf("Extra%02d", i)] = map[string]any{
			"schema":  "ems-portal-service",
			"table":   fmt.Sprintf("extra_table_%02d", i),
			"columns": cols,
		}
	}

	data, err := json.Marshal(map[string]any{"entities": entities})
	require.NoError(t, err)
	m, err := Parse(data, zap.NewNop())
	require.NoError(t, err)
	return m
}

func TestParse_InvalidJSON(t *testing.T) {
	_, err := Parse([]byte("{not json"), zap.NewNop())
	assert.Error(t, err)
}

func TestTableSchemaMap(t *testing.T) {
	m := testMetadata(t, 0)

	schemaMap := m.TableSchemaMap()
	assert.Equal(t, "ems-portal-service", schemaMap["invoice_info"])
	assert.Equal(t, "ems-auth-service", schemaMap["user"])
}

func TestBuildPromptContext_PriorityTablesFirst(t *testing.T) {
	m := testMetadata(t, 20)

	ctx := m.BuildPromptContext()
	invoiceIdx := strings.Index(ctx, "Table: ems-portal-service.invoice_info")
	userIdx := strings.Index(ctx, "Table: ems-auth-service.user")
	extraIdx := strings.Index(ctx, "Table: ems-portal-service.extra_table_00")

	require.NotEqual(t, -1, invoiceIdx)
	require.NotEqual(t, -1, userIdx)
	require.NotEqual(t, -1, extraIdx)
	assert.Less(t, invoiceIdx, extraIdx)
	assert.Less(t, userIdx, extraIdx)
}

func TestBuildPromptContext_CapsTables(t *testing.T) {
	m := testMetadata(t, 30)

	ctx := m.BuildPromptContext()
	assert.Equal(t, maxPromptTables, strings.Count(ctx, "Table: "))
}

func TestBuildPromptContext_CapsColumns(t *testing.T) {
	m := testMetadata(t, 1)

	ctx := m.BuildPromptContext()
	assert.Contains(t, ctx, "col_9")
	assert.NotContains(t, ctx, "col_10")
	assert.NotContains(t, ctx, "col_11")
}

func TestBuildPromptContext_Annotations(t *testing.T) {
	m := testMetadata(t, 0)

	ctx := m.BuildPromptContext()
	assert.Contains(t, ctx, "NOTE: MIXED ROLES")
	assert.Contains(t, ctx, "NOTE: MONEY: Use `total_amount`")
}

func TestBuildPromptContext_Empty(t *testing.T) {
	m, err := Parse([]byte(`{"entities": {}}`), zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, m.BuildPromptContext())
}
