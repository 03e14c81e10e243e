package warehouse

import (
	"fmt"
	"strings"
)

// MandatoryColumns is the column set every transaction query must select.
// Order is fixed so generated SQL is stable across runs.
var MandatoryColumns = []string{
	"TX_ID_KEY",
	"EMAIL",
	"MODEL_SCORE",
	"IS_FRAUD_TX",
	"NSURE_LAST_DECISION",
	"DISPUTES",
	"FRAUD_ALERTS",
	"PAID_AMOUNT_VALUE",
	"IP",
	"IP_COUNTRY_CODE",
	"DEVICE_ID",
	"DEVICE_FINGERPRINT",
	"USER_AGENT",
	"DEVICE_TYPE",
	"TX_DATETIME",
}

// entityColumns maps supported entity types to the column they filter on.
var entityColumns = map[string]string{
	"ip":          "IP",
	"email":       "EMAIL",
	"device_id":   "DEVICE_ID",
	"fingerprint": "DEVICE_FINGERPRINT",
}

// EntityColumn resolves the filter column for an entity type.
func EntityColumn(entityType string) (string, error) {
	col, ok := entityColumns[strings.ToLower(entityType)]
	if !ok {
		return "", fmt.Errorf("unsupported entity type %q", entityType)
	}
	return col, nil
}

// BuildTransactionQuery assembles the mandatory transaction query: the full
// mandatory column set from the configured table, filtered by the entity
// field over the date range, newest first, capped by limit. The entity value
// is bound as a parameter, never interpolated.
func BuildTransactionQuery(table, entityType string, dateRangeDays, limit int) (string, error) {
	if table == "" {
		return "", fmt.Errorf("transactions table is required")
	}
	if dateRangeDays < 1 {
		return "", fmt.Errorf("date_range_days must be >= 1, got %d", dateRangeDays)
	}
	if limit < 1 {
		return "", fmt.Errorf("result limit must be >= 1, got %d", limit)
	}
	col, err := EntityColumn(entityType)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(MandatoryColumns, ", "))
	fmt.Fprintf(&b, " FROM %s", table)
	fmt.Fprintf(&b, " WHERE %s = :entity_id", col)
	fmt.Fprintf(&b, " AND TX_DATETIME >= DATEADD(day, -%d, CURRENT_TIMESTAMP)", dateRangeDays)
	b.WriteString(" ORDER BY TX_DATETIME DESC")
	fmt.Fprintf(&b, " LIMIT %d", limit)
	return b.String(), nil
}

// MeanModelScore averages MODEL_SCORE across rows, tolerating missing or
// non-numeric values. Returns 0 with ok=false when no usable score exists.
func MeanModelScore(rows []map[string]any) (float64, bool) {
	var sum float64
	var n int
	for _, row := range rows {
		if score, ok := numeric(row["MODEL_SCORE"]); ok {
			sum += score
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}
