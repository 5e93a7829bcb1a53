// Package catalog reads table metadata from a live PostgreSQL server:
// column types, existing indexes, row estimates, and planner statistics.
// It complements the static analysis in sqlmeta with what the server
// actually knows about the schema.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Column is one column of a table as reported by information_schema.
type Column struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

// Index is one existing index with its full definition from pg_indexes.
type Index struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

// ColumnStats carries planner statistics for a single column. NDistinct
// follows the pg_stats convention: negative values are fractions of the
// row count.
type ColumnStats struct {
	Column         string  `json:"column"`
	NDistinct      float64 `json:"n_distinct"`
	NullFrac       float64 `json:"null_frac"`
	MostCommonVals string  `json:"most_common_vals,omitempty"`
}

// TableInfo aggregates everything the catalog knows about one table.
// Columns and Indexes are never nil. UnindexedFilterColumns lists
// requested filter columns that no existing index has as its leading
// column.
type TableInfo struct {
	Schema                 string        `json:"schema"`
	Table                  string        `json:"table"`
	EstimatedRows          int64         `json:"estimated_rows"`
	Columns                []Column      `json:"columns"`
	Indexes                []Index       `json:"indexes"`
	Stats                  []ColumnStats `json:"column_stats,omitempty"`
	UnindexedFilterColumns []string      `json:"unindexed_filter_columns,omitempty"`
}

// Catalog holds one connection for the duration of a metadata session,
// so a bundle covering several tables does not reconnect per table.
type Catalog struct {
	conn *pgx.Conn
}

// Connect opens a catalog session against connStr.
func Connect(ctx context.Context, connStr string) (*Catalog, error) {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return &Catalog{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Catalog) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// Columns returns name and type for the named columns of a table. Columns
// that do not exist are silently absent from the result.
func (c *Catalog) Columns(ctx context.Context, schema, table string, columns []string) ([]Column, error) {
	rows, err := c.conn.Query(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2 AND column_name = ANY($3)
		ORDER BY ordinal_position`,
		schema, table, columns)
	if err != nil {
		return nil, fmt.Errorf("querying columns of %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	out := []Column{}
	for rows.Next() {
		var col Column
		if err := rows.Scan(&col.Name, &col.DataType); err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}
		out = append(out, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading column rows: %w", err)
	}
	return out, nil
}

// Indexes returns all indexes on a table from pg_indexes.
func (c *Catalog) Indexes(ctx context.Context, schema, table string) ([]Index, error) {
	rows, err := c.conn.Query(ctx, `
		SELECT indexname, indexdef
		FROM pg_indexes
		WHERE schemaname = $1 AND tablename = $2
		ORDER BY indexname`,
		schema, table)
	if err != nil {
		return nil, fmt.Errorf("querying indexes of %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	out := []Index{}
	for rows.Next() {
		var idx Index
		if err := rows.Scan(&idx.Name, &idx.Definition); err != nil {
			return nil, fmt.Errorf("scanning index row: %w", err)
		}
		out = append(out, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading index rows: %w", err)
	}
	return out, nil
}

// EstimatedRows returns the planner's row estimate from pg_class, or zero
// when the table is unknown.
func (c *Catalog) EstimatedRows(ctx context.Context, schema, table string) (int64, error) {
	var rows int64
	err := c.conn.QueryRow(ctx, `
		SELECT c.reltuples::BIGINT
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relname = $1 AND n.nspname = $2`,
		table, schema).Scan(&rows)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("querying row estimate for %s.%s: %w", schema, table, err)
	}
	if rows < 0 {
		// reltuples is -1 for never-analyzed tables.
		rows = 0
	}
	return rows, nil
}

// Stats returns planner statistics for one column, or nil when the column
// has no entry in pg_stats.
func (c *Catalog) Stats(ctx context.Context, schema, table, column string) (*ColumnStats, error) {
	var (
		st  = ColumnStats{Column: column}
		mcv *string
	)
	err := c.conn.QueryRow(ctx, `
		SELECT attname, n_distinct, null_frac, most_common_vals::text
		FROM pg_stats
		WHERE schemaname = $1 AND tablename = $2 AND attname = $3`,
		schema, table, column).Scan(&st.Column, &st.NDistinct, &st.NullFrac, &mcv)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying statistics for %s.%s.%s: %w", schema, table, column, err)
	}
	if mcv != nil {
		st.MostCommonVals = *mcv
	}
	return &st, nil
}

// TableInfo fetches the full metadata picture for one table. The name may
// be schema-qualified; unqualified names default to public. filterColumns
// selects which columns get type and statistics lookups.
func (c *Catalog) TableInfo(ctx context.Context, qualified string, filterColumns []string) (*TableInfo, error) {
	schema, table := splitQualified(qualified)
	info := &TableInfo{Schema: schema, Table: table, Columns: []Column{}}

	var err error
	info.EstimatedRows, err = c.EstimatedRows(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	info.Indexes, err = c.Indexes(ctx, schema, table)
	if err != nil {
		return nil, err
	}

	if len(filterColumns) > 0 {
		info.Columns, err = c.Columns(ctx, schema, table, filterColumns)
		if err != nil {
			return nil, err
		}
		for _, col := range filterColumns {
			st, err := c.Stats(ctx, schema, table, col)
			if err != nil {
				return nil, err
			}
			if st != nil {
				info.Stats = append(info.Stats, *st)
			}
		}
		info.UnindexedFilterColumns = unindexedColumns(filterColumns, info.Indexes)
	}
	return info, nil
}

func splitQualified(name string) (schema, table string) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "public", name
}

// unindexedColumns returns the filter columns that are not the leading
// column of any existing index. An index only accelerates a predicate on
// its first key column, so trailing coverage does not count.
func unindexedColumns(filterColumns []string, indexes []Index) []string {
	var out []string
	for _, col := range filterColumns {
		covered := false
		for _, idx := range indexes {
			if leadingIndexColumn(idx.Definition) == col {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, col)
		}
	}
	return out
}

// leadingIndexColumn extracts the first key column from a pg_indexes
// definition like "CREATE INDEX i ON t USING btree (a, b DESC)". For
// expression indexes the result is not a plain column name and matches
// nothing, which is the conservative answer.
func leadingIndexColumn(indexdef string) string {
	open := strings.IndexByte(indexdef, '(')
	if open < 0 {
		return ""
	}
	rest := indexdef[open+1:]
	if end := strings.IndexAny(rest, ",)"); end >= 0 {
		rest = rest[:end]
	}
	rest = strings.TrimSpace(rest)
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		rest = rest[:i]
	}
	return strings.Trim(rest, `"`)
}
