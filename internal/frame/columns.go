package frame

import (
	"strconv"
	"strings"
)

// normalizeCol lowercases and strips separators for cross-format column
// matching. "Sum_Turnov" → "sumturnov", "Facility ID" → "facilityid".
func normalizeCol(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

// mapColumns builds a normalized column name → index map.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		m[normalizeCol(col)] = i
	}
	return m
}

// getCol gets a column value by any of the given names, first match wins.
// Input files disagree on header spellings between export tools.
func getCol(record []string, colIdx map[string]int, names ...string) string {
	for _, name := range names {
		idx, ok := colIdx[normalizeCol(name)]
		if !ok || idx >= len(record) {
			continue
		}
		if v := strings.TrimSpace(record[idx]); v != "" {
			return v
		}
	}
	return ""
}

// hasCol reports whether any of the given column names is present.
func hasCol(colIdx map[string]int, names ...string) bool {
	for _, name := range names {
		if _, ok := colIdx[normalizeCol(name)]; ok {
			return true
		}
	}
	return false
}

// parseFloatOr parses a string as a float64, returning def on empty or
// suppression flags the official files use for disclosive cells.
func parseFloatOr(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" || s == ".." {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

// parseIntOr parses a string as an int, accepting spreadsheet floats like
// "250.0", returning def when parsing fails.
func parseIntOr(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return def
}

// canonicalID normalizes a facility identifier. ArcMap exports sometimes
// render integer IDs as "12345.0".
func canonicalID(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, ".0") {
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return strings.TrimSuffix(s, ".0")
		}
	}
	return s
}
