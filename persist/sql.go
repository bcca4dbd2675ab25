package persist

import (
	"fmt"
	"sort"
	"strings"
)

// isIdentifier reports whether s is a plain SQL identifier:
// [A-Za-z_][A-Za-z0-9_]*. Anything else must go through a placeholder.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// isColumnExpr reports whether s is usable on the left side of a condition:
// either a plain identifier or a json_extract expression produced by
// JSONField.
func isColumnExpr(s string) bool {
	if isIdentifier(s) {
		return true
	}
	const prefix = "json_extract(data, '$."
	const suffix = "')"
	if !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, suffix) {
		return false
	}
	return isIdentifier(s[len(prefix) : len(s)-len(suffix)])
}

// validateIdentifier returns an error naming the offending identifier.
func validateIdentifier(kind, s string) error {
	if !isIdentifier(s) {
		return fmt.Errorf("invalid %s %q", kind, s)
	}
	return nil
}

// columnList joins column names for a SELECT or INSERT column list.
func columnList(cols []string) string {
	return strings.Join(cols, ", ")
}

// placeholders returns n comma-separated ? placeholders.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('?')
	}
	return b.String()
}

// setClause builds "a = ?, b = ?" for the given columns.
func setClause(cols []string) string {
	var b strings.Builder
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c)
		b.WriteString(" = ?")
	}
	return b.String()
}

// excludedSetClause builds "a = excluded.a, b = excluded.b" for upserts.
func excludedSetClause(cols []string) string {
	var b strings.Builder
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c)
		b.WriteString(" = excluded.")
		b.WriteString(c)
	}
	return b.String()
}

// sortedKeys returns the map's keys in ascending order so generated SQL is
// deterministic.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
