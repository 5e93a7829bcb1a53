package analyzer

import (
	"regexp"
	"strings"
)

var predicateColRe = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_\.]*)\s*(=|<|>|<=|>=|IN|LIKE|ILIKE)`)

// ExtractColumns pulls candidate column names out of a predicate string:
// identifiers immediately followed by a comparison or membership operator,
// qualifiers stripped, first-seen order, deduplicated. This is a
// best-effort tokenizer, not an expression parser; it under- and
// over-matches on function calls and casts, which is acceptable for index
// hints.
func ExtractColumns(predicate string) []string {
	if predicate == "" {
		return nil
	}

	seen := make(map[string]bool)
	var cols []string
	for _, m := range predicateColRe.FindAllStringSubmatch(predicate, -1) {
		col := m[1]
		if i := strings.LastIndex(col, "."); i >= 0 {
			col = col[i+1:]
		}
		if col == "" || seen[col] {
			continue
		}
		seen[col] = true
		cols = append(cols, col)
	}
	return cols
}
