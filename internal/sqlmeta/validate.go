package sqlmeta

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Normalize replaces literals in sql with placeholders ($1, $2, ...) so
// that structurally identical queries compare equal.
func Normalize(sql string) (string, error) {
	normalized, err := pg_query.Normalize(sql)
	if err != nil {
		return "", fmt.Errorf("normalizing SQL: %w", err)
	}
	return normalized, nil
}

// Fingerprint returns a stable hash of the query structure, shared by
// queries that differ only in literal values.
func Fingerprint(sql string) (string, error) {
	fp, err := pg_query.Fingerprint(sql)
	if err != nil {
		return "", fmt.Errorf("fingerprinting SQL: %w", err)
	}
	return fp, nil
}

// Validate rejects everything except plain SELECT statements, including
// selects wrapped in WITH and set operations. It guards the paths that
// send user SQL to a live server with ANALYZE enabled, where a DML
// statement would actually modify data.
func Validate(sql string) error {
	result, err := pg_query.Parse(sql)
	if err != nil {
		return fmt.Errorf("parsing SQL: %w", err)
	}
	if len(result.Stmts) == 0 {
		return fmt.Errorf("no statements found")
	}
	for _, raw := range result.Stmts {
		sel := raw.Stmt.GetSelectStmt()
		if sel == nil {
			return fmt.Errorf("only SELECT statements are allowed, found %s", stmtKind(raw.Stmt))
		}
		if err := validateSelect(sel); err != nil {
			return err
		}
	}
	return nil
}

func validateSelect(sel *pg_query.SelectStmt) error {
	if sel == nil {
		return nil
	}
	if sel.WithClause != nil {
		for _, node := range sel.WithClause.Ctes {
			cte := node.GetCommonTableExpr()
			if cte == nil || cte.Ctequery == nil {
				continue
			}
			inner := cte.Ctequery.GetSelectStmt()
			if inner == nil {
				return fmt.Errorf("only SELECT statements are allowed, CTE %q contains %s", cte.Ctename, stmtKind(cte.Ctequery))
			}
			if err := validateSelect(inner); err != nil {
				return err
			}
		}
	}
	if err := validateSelect(sel.Larg); err != nil {
		return err
	}
	return validateSelect(sel.Rarg)
}

func stmtKind(n *pg_query.Node) string {
	switch {
	case n == nil:
		return "empty statement"
	case n.GetSelectStmt() != nil:
		return "a SELECT statement"
	case n.GetInsertStmt() != nil:
		return "an INSERT statement"
	case n.GetUpdateStmt() != nil:
		return "an UPDATE statement"
	case n.GetDeleteStmt() != nil:
		return "a DELETE statement"
	case n.GetMergeStmt() != nil:
		return "a MERGE statement"
	case n.GetExplainStmt() != nil:
		return "an EXPLAIN statement"
	case n.GetCreateStmt() != nil:
		return "a CREATE TABLE statement"
	case n.GetIndexStmt() != nil:
		return "a CREATE INDEX statement"
	case n.GetDropStmt() != nil:
		return "a DROP statement"
	case n.GetTruncateStmt() != nil:
		return "a TRUNCATE statement"
	case n.GetCopyStmt() != nil:
		return "a COPY statement"
	case n.GetTransactionStmt() != nil:
		return "a transaction control statement"
	case n.GetVariableSetStmt() != nil:
		return "a SET statement"
	default:
		return fmt.Sprintf("an unsupported statement (%T)", n.Node)
	}
}
