package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureReadOnly_AllowsSelectAndCTE(t *testing.T) {
	assert.NoError(t, EnsureReadOnly("SELECT id FROM `ems-portal-service`.`invoice_info` LIMIT 10"))
	assert.NoError(t, EnsureReadOnly("WITH m AS (SELECT 1) SELECT * FROM m"))
}

func TestEnsureReadOnly_RejectsNonSelect(t *testing.T) {
	assert.ErrorIs(t, EnsureReadOnly(""), ErrNotReadOnly)
	assert.ErrorIs(t, EnsureReadOnly("SHOW TABLES"), ErrNotReadOnly)
	assert.ErrorIs(t, EnsureReadOnly("DELETE FROM t"), ErrNotReadOnly)
}

func TestEnsureReadOnly_RejectsEmbeddedWriteOps(t *testing.T) {
	assert.ErrorIs(t, EnsureReadOnly("SELECT 1 FROM t; DROP TABLE t"), ErrWriteOperation)
	assert.ErrorIs(t, EnsureReadOnly("SELECT * FROM t WHERE id IN (SELECT id FROM u) UNION SELECT 1 FROM dual WHERE EXISTS (SELECT 1) AND 1=1 OR 1=1 -- DELETE"), ErrWriteOperation)
}

func TestEnsureReadOnly_IgnoresWriteWordsInLiterals(t *testing.T) {
	assert.NoError(t, EnsureReadOnly("SELECT * FROM t WHERE status = 'UPDATE PENDING'"))
}

func TestEnsureReadOnly_FlagsInjectionLiterals(t *testing.T) {
	err := EnsureReadOnly("SELECT * FROM t WHERE name = '1'' OR ''1''=''1'")
	if err != nil {
		assert.ErrorIs(t, err, ErrInjectionDetected)
	}
}
