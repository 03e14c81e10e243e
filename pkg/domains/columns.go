package domains

import (
	"strconv"
	"strings"

	"github.com/nsure-ai/inquest/pkg/graph"
	"github.com/nsure-ai/inquest/pkg/models"
)

// Shared row accessors. Warehouse rows arrive as generic JSON maps; column
// values may be strings, numbers or booleans depending on the driver.

func distinctValues(rows []map[string]any, column string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range rows {
		v := stringValue(row[column])
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func numberValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func boolValue(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "true" || s == "1" || s == "yes"
	default:
		return false
	}
}

// countWhere counts rows for which the column predicate holds.
func countWhere(rows []map[string]any, column string, pred func(any) bool) int {
	n := 0
	for _, row := range rows {
		if pred(row[column]) {
			n++
		}
	}
	return n
}

// sumColumn totals the numeric values of a column, skipping non-numbers.
func sumColumn(rows []map[string]any, column string) float64 {
	total := 0.0
	for _, row := range rows {
		if f, ok := numberValue(row[column]); ok {
			total += f
		}
	}
	return total
}

// baseConfidence scales agent confidence with the amount of evidence: no
// warehouse rows means every verdict is weakly supported.
func baseConfidence(st graph.State) float64 {
	switch {
	case len(st.SnowflakeData) == 0:
		return 0.2
	case len(st.SnowflakeData) < 5:
		return 0.6
	default:
		return 0.8
	}
}

// toolParsed returns the parsed payload of a completed tool, or nil when the
// tool was not used or failed.
func toolParsed(st graph.State, name string) map[string]any {
	p, ok := st.ToolResults[name]
	if !ok || p == nil || p.Kind != models.PayloadParsed {
		return nil
	}
	obj, _ := p.Parsed.(map[string]any)
	return obj
}

// toolRiskSignal extracts a conventional {"risk_score": x} field from a tool
// payload when present.
func toolRiskSignal(st graph.State, name string) (float64, bool) {
	obj := toolParsed(st, name)
	if obj == nil {
		return 0, false
	}
	f, ok := numberValue(obj["risk_score"])
	if !ok {
		return 0, false
	}
	return models.Clamp01(f), true
}
