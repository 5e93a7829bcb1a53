// Package sqlmeta statically analyzes SQL text: which tables a statement
// touches, which columns it reads, and which columns participate in
// filtering clauses. It parses with the server's own grammar and never
// needs a database connection.
package sqlmeta

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// TableMeta describes one referenced table. FilterColumns are the columns
// appearing in WHERE, JOIN quals, GROUP BY, ORDER BY, or HAVING; they are
// the interesting ones for index work.
type TableMeta struct {
	Name          string   `json:"name"`
	Alias         string   `json:"alias,omitempty"`
	Columns       []string `json:"columns"`
	FilterColumns []string `json:"filter_columns"`
}

// QueryMeta is the static view of one statement. Tables keep first-seen
// order so downstream rendering is deterministic.
type QueryMeta struct {
	Tables []TableMeta `json:"tables"`
}

// Table returns the entry for a (possibly schema-qualified) table name.
func (m *QueryMeta) Table(name string) *TableMeta {
	for i := range m.Tables {
		if m.Tables[i].Name == name {
			return &m.Tables[i]
		}
	}
	return nil
}

// Analyze parses sql and extracts table and column usage. CTE names are
// excluded from the table list; a column qualified by an alias or table
// name is attributed to that table, an unqualified column only when the
// statement references exactly one table.
func Analyze(sql string) (*QueryMeta, error) {
	result, err := pg_query.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("parsing SQL: %w", err)
	}
	if len(result.Stmts) == 0 {
		return nil, fmt.Errorf("no statements found")
	}

	c := &collector{
		index:    make(map[string]*TableMeta),
		aliases:  make(map[string]string),
		cteNames: make(map[string]bool),
	}
	for _, raw := range result.Stmts {
		c.stmt(raw.Stmt)
	}
	c.attribute()

	meta := &QueryMeta{}
	for _, t := range c.order {
		tab := *c.index[t]
		if tab.Columns == nil {
			tab.Columns = []string{}
		}
		if tab.FilterColumns == nil {
			tab.FilterColumns = []string{}
		}
		meta.Tables = append(meta.Tables, tab)
	}
	return meta, nil
}

// colRef is a column occurrence awaiting attribution; attribution runs
// after the walk so the single-table fallback sees the full table list.
type colRef struct {
	qualifier string
	name      string
	filter    bool
}

type collector struct {
	order    []string
	index    map[string]*TableMeta
	aliases  map[string]string
	cteNames map[string]bool
	refs     []colRef
}

func (c *collector) stmt(n *pg_query.Node) {
	if n == nil {
		return
	}
	switch {
	case n.GetSelectStmt() != nil:
		c.selectStmt(n.GetSelectStmt())
	case n.GetInsertStmt() != nil:
		s := n.GetInsertStmt()
		c.rangeVar(s.Relation)
		c.stmt(s.SelectStmt)
	case n.GetUpdateStmt() != nil:
		s := n.GetUpdateStmt()
		c.rangeVar(s.Relation)
		for _, t := range s.TargetList {
			c.expr(t, false)
		}
		for _, f := range s.FromClause {
			c.fromItem(f)
		}
		c.expr(s.WhereClause, true)
	case n.GetDeleteStmt() != nil:
		s := n.GetDeleteStmt()
		c.rangeVar(s.Relation)
		for _, f := range s.UsingClause {
			c.fromItem(f)
		}
		c.expr(s.WhereClause, true)
	case n.GetExplainStmt() != nil:
		c.stmt(n.GetExplainStmt().Query)
	}
}

func (c *collector) selectStmt(s *pg_query.SelectStmt) {
	if s == nil {
		return
	}

	if s.WithClause != nil {
		for _, node := range s.WithClause.Ctes {
			cte := node.GetCommonTableExpr()
			if cte == nil {
				continue
			}
			c.cteNames[cte.Ctename] = true
			c.stmt(cte.Ctequery)
		}
	}

	// Set operations carry their branches in Larg/Rarg.
	c.selectStmt(s.Larg)
	c.selectStmt(s.Rarg)

	for _, f := range s.FromClause {
		c.fromItem(f)
	}
	for _, t := range s.TargetList {
		c.expr(t, false)
	}
	c.expr(s.WhereClause, true)
	for _, g := range s.GroupClause {
		c.expr(g, true)
	}
	c.expr(s.HavingClause, true)
	for _, o := range s.SortClause {
		c.expr(o, true)
	}
}

func (c *collector) fromItem(n *pg_query.Node) {
	if n == nil {
		return
	}
	switch {
	case n.GetRangeVar() != nil:
		c.rangeVar(n.GetRangeVar())
	case n.GetJoinExpr() != nil:
		j := n.GetJoinExpr()
		c.fromItem(j.Larg)
		c.fromItem(j.Rarg)
		c.expr(j.Quals, true)
	case n.GetRangeSubselect() != nil:
		c.stmt(n.GetRangeSubselect().Subquery)
	}
}

func (c *collector) rangeVar(rv *pg_query.RangeVar) {
	if rv == nil {
		return
	}

	// An unqualified name matching a CTE is the CTE, not a table.
	if rv.Schemaname == "" && c.cteNames[rv.Relname] {
		if rv.Alias != nil {
			c.aliases[rv.Alias.Aliasname] = ""
		}
		return
	}

	name := rv.Relname
	if rv.Schemaname != "" {
		name = rv.Schemaname + "." + rv.Relname
	}

	t, ok := c.index[name]
	if !ok {
		t = &TableMeta{Name: name}
		c.index[name] = t
		c.order = append(c.order, name)
	}
	if rv.Alias != nil {
		c.aliases[rv.Alias.Aliasname] = name
		if t.Alias == "" {
			t.Alias = rv.Alias.Aliasname
		}
	}
}

func (c *collector) expr(n *pg_query.Node, filter bool) {
	if n == nil {
		return
	}
	switch {
	case n.GetColumnRef() != nil:
		c.columnRef(n.GetColumnRef(), filter)
	case n.GetAExpr() != nil:
		a := n.GetAExpr()
		c.expr(a.Lexpr, filter)
		c.expr(a.Rexpr, filter)
	case n.GetBoolExpr() != nil:
		for _, arg := range n.GetBoolExpr().Args {
			c.expr(arg, filter)
		}
	case n.GetFuncCall() != nil:
		for _, arg := range n.GetFuncCall().Args {
			c.expr(arg, filter)
		}
	case n.GetTypeCast() != nil:
		c.expr(n.GetTypeCast().Arg, filter)
	case n.GetNullTest() != nil:
		c.expr(n.GetNullTest().Arg, filter)
	case n.GetCaseExpr() != nil:
		ce := n.GetCaseExpr()
		c.expr(ce.Arg, filter)
		for _, w := range ce.Args {
			c.expr(w, filter)
		}
		c.expr(ce.Defresult, filter)
	case n.GetCaseWhen() != nil:
		w := n.GetCaseWhen()
		c.expr(w.Expr, filter)
		c.expr(w.Result, filter)
	case n.GetCoalesceExpr() != nil:
		for _, arg := range n.GetCoalesceExpr().Args {
			c.expr(arg, filter)
		}
	case n.GetSubLink() != nil:
		sl := n.GetSubLink()
		c.expr(sl.Testexpr, filter)
		c.stmt(sl.Subselect)
	case n.GetList() != nil:
		for _, item := range n.GetList().Items {
			c.expr(item, filter)
		}
	case n.GetSortBy() != nil:
		c.expr(n.GetSortBy().Node, filter)
	case n.GetResTarget() != nil:
		c.expr(n.GetResTarget().Val, filter)
	case n.GetRowExpr() != nil:
		for _, arg := range n.GetRowExpr().Args {
			c.expr(arg, filter)
		}
	case n.GetAArrayExpr() != nil:
		for _, el := range n.GetAArrayExpr().Elements {
			c.expr(el, filter)
		}
	}
}

func (c *collector) columnRef(ref *pg_query.ColumnRef, filter bool) {
	var parts []string
	for _, f := range ref.Fields {
		if f.GetAStar() != nil {
			return
		}
		if s := f.GetString_(); s != nil {
			parts = append(parts, s.Sval)
		}
	}
	if len(parts) == 0 {
		return
	}

	r := colRef{name: parts[len(parts)-1], filter: filter}
	if len(parts) > 1 {
		r.qualifier = strings.Join(parts[:len(parts)-1], ".")
	}
	c.refs = append(c.refs, r)
}

func (c *collector) attribute() {
	for _, r := range c.refs {
		t := c.resolve(r.qualifier)
		if t == nil {
			continue
		}
		t.Columns = appendUnique(t.Columns, r.name)
		if r.filter {
			t.FilterColumns = appendUnique(t.FilterColumns, r.name)
		}
	}
}

func (c *collector) resolve(qualifier string) *TableMeta {
	if qualifier == "" {
		if len(c.order) == 1 {
			return c.index[c.order[0]]
		}
		return nil
	}
	if name, ok := c.aliases[qualifier]; ok {
		return c.index[name]
	}
	if t, ok := c.index[qualifier]; ok {
		return t
	}
	// Qualified by bare table name while the table is registered with its
	// schema prefix.
	for _, name := range c.order {
		if strings.HasSuffix(name, "."+qualifier) {
			return c.index[name]
		}
	}
	return nil
}

func appendUnique(list []string, s string) []string {
	for _, have := range list {
		if have == s {
			return list
		}
	}
	return append(list, s)
}
