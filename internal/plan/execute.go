package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ExplainOptions select which EXPLAIN flags are sent to the server.
// BUFFERS and TIMING are only meaningful under ANALYZE and are omitted
// otherwise.
type ExplainOptions struct {
	Analyze  bool
	Verbose  bool
	Buffers  bool
	Timing   bool
	Settings bool
	Costs    bool
}

func DefaultExplainOptions() ExplainOptions {
	return ExplainOptions{
		Analyze: true,
		Verbose: true,
		Buffers: true,
		Timing:  true,
		Costs:   true,
	}
}

func (o ExplainOptions) clauses() string {
	var parts []string
	if o.Analyze {
		parts = append(parts, "ANALYZE")
	}
	if o.Verbose {
		parts = append(parts, "VERBOSE")
	}
	if o.Analyze && o.Buffers {
		parts = append(parts, "BUFFERS")
	}
	if o.Analyze && !o.Timing {
		parts = append(parts, "TIMING OFF")
	}
	if o.Settings {
		parts = append(parts, "SETTINGS")
	}
	if !o.Costs {
		parts = append(parts, "COSTS OFF")
	}
	parts = append(parts, "FORMAT JSON")
	return strings.Join(parts, ", ")
}

// Explain runs EXPLAIN for sql against the database and returns the raw
// JSON document. The statement runs inside a transaction that is always
// rolled back, so ANALYZE on writing statements leaves no trace.
func Explain(ctx context.Context, connStr string, sql string, opts ExplainOptions) ([]byte, error) {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	defer conn.Close(ctx)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := "EXPLAIN (" + opts.clauses() + ") " + sql

	var jsonStr string
	if err := tx.QueryRow(ctx, query).Scan(&jsonStr); err != nil {
		return nil, fmt.Errorf("executing EXPLAIN: %w", err)
	}

	return []byte(jsonStr), nil
}
