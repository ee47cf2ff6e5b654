package google

import (
	"fmt"
	"strings"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

// parseRows converts a values matrix (as returned by the Sheets API) into
// transactions. The first row must be the header; columns are located by
// name. Rows that do not form a valid transaction are counted as skipped.
func parseRows(values [][]any) ([]core.Transaction, int) {
	if len(values) == 0 {
		return nil, 0
	}
	headers := toStrings(values[0])
	cols := make([]int, len(ports.Header))
	for i, h := range ports.Header {
		cols[i] = indexOf(headers, h)
		if cols[i] == -1 {
			return nil, len(values) - 1
		}
	}

	var (
		out     []core.Transaction
		skipped int
	)
	for _, raw := range values[1:] {
		row := toStrings(raw)
		fields := make([]string, len(cols))
		for i, col := range cols {
			fields[i] = strings.TrimSpace(safeGet(row, col))
		}
		// Sheets may render amounts with grouping; the ledger form has none.
		fields[3] = strings.ReplaceAll(strings.TrimPrefix(fields[3], "$"), ",", "")

		t, err := core.ParseRecord(strings.Join(fields, core.Delimiter))
		if err != nil {
			skipped++
			continue
		}
		out = append(out, t)
	}
	return out, skipped
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx >= 0 && idx < len(arr) {
		return arr[idx]
	}
	return ""
}
