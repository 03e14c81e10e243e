package warehouse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTransactionQuerySelectsMandatoryColumns(t *testing.T) {
	sql, err := BuildTransactionQuery("TRANSACTIONS_ENRICHED", "ip", 7, 500)
	require.NoError(t, err)

	for _, col := range MandatoryColumns {
		assert.Contains(t, sql, col)
	}
	assert.Contains(t, sql, "FROM TRANSACTIONS_ENRICHED")
	assert.Contains(t, sql, "WHERE IP = :entity_id")
	assert.Contains(t, sql, "DATEADD(day, -7, CURRENT_TIMESTAMP)")
	assert.Contains(t, sql, "ORDER BY TX_DATETIME DESC")
	assert.True(t, strings.HasSuffix(sql, "LIMIT 500"))
}

func TestBuildTransactionQueryEntityColumns(t *testing.T) {
	cases := map[string]string{
		"ip":          "IP",
		"email":       "EMAIL",
		"device_id":   "DEVICE_ID",
		"fingerprint": "DEVICE_FINGERPRINT",
	}
	for entityType, col := range cases {
		sql, err := BuildTransactionQuery("T", entityType, 1, 10)
		require.NoError(t, err)
		assert.Contains(t, sql, "WHERE "+col+" = :entity_id")
	}
}

func TestBuildTransactionQueryRejectsBadInput(t *testing.T) {
	_, err := BuildTransactionQuery("", "ip", 7, 500)
	assert.Error(t, err)
	_, err = BuildTransactionQuery("T", "ssn", 7, 500)
	assert.Error(t, err)
	_, err = BuildTransactionQuery("T", "ip", 0, 500)
	assert.Error(t, err)
	_, err = BuildTransactionQuery("T", "ip", 7, 0)
	assert.Error(t, err)
}

func TestMeanModelScore(t *testing.T) {
	rows := []map[string]any{
		{"MODEL_SCORE": 0.2},
		{"MODEL_SCORE": 0.6},
		{"MODEL_SCORE": "not numeric"},
		{},
	}
	mean, ok := MeanModelScore(rows)
	require.True(t, ok)
	assert.InDelta(t, 0.4, mean, 1e-9)

	_, ok = MeanModelScore(nil)
	assert.False(t, ok)
}

func TestBindNamedParameters(t *testing.T) {
	sql, args := bindNamed("SELECT * FROM t WHERE a = :entity_id AND b = :entity_id",
		map[string]any{"entity_id": "x"})
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $1", sql)
	assert.Equal(t, []any{"x"}, args)
}
