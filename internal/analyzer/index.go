package analyzer

import (
	"fmt"
	"strings"
)

// IndexCandidate is a proposed index. Column order is the key order of the
// index and feeds the generated name, so it must never be re-sorted.
type IndexCandidate struct {
	Table          string   `json:"table"`
	Columns        []string `json:"columns"`
	Include        []string `json:"include,omitempty"`
	WherePredicate string   `json:"where_predicate,omitempty"`
	Unique         bool     `json:"unique,omitempty"`
	Schema         string   `json:"schema,omitempty"`
}

// DDL renders the candidate as a CREATE INDEX statement.
func (c IndexCandidate) DDL() (string, error) {
	if len(c.Columns) == 0 {
		return "", fmt.Errorf("index candidate for %q has no columns", c.Table)
	}

	var b strings.Builder
	b.WriteString("CREATE ")
	if c.Unique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString("INDEX IF NOT EXISTS idx_")
	b.WriteString(c.Table)
	b.WriteString("_")
	b.WriteString(strings.Join(c.Columns, "_"))
	b.WriteString(" ON ")
	if c.Schema != "" {
		b.WriteString(quoteIdent(c.Schema))
		b.WriteString(".")
	}
	b.WriteString(quoteIdent(c.Table))
	b.WriteString(" (")
	b.WriteString(strings.Join(c.Columns, ", "))
	b.WriteString(")")
	if len(c.Include) > 0 {
		b.WriteString(" INCLUDE (")
		b.WriteString(strings.Join(c.Include, ", "))
		b.WriteString(")")
	}
	b.WriteString(";")
	return b.String(), nil
}

func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
