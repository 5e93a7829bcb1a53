// Package bundle assembles a self-contained metadata document for one
// query: the SQL itself, its normalized form and fingerprint, static
// parser output, live catalog metadata for every referenced table, and
// optionally the execution plan with metrics and heuristic findings. The
// result is a single JSON payload suitable for archiving or for feeding
// to downstream tooling.
package bundle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/pglens/pglens/internal/analyzer"
	"github.com/pglens/pglens/internal/catalog"
	"github.com/pglens/pglens/internal/plan"
	"github.com/pglens/pglens/internal/sqlmeta"
)

// Heuristics groups the analyzer findings inside a payload.
type Heuristics struct {
	Issues          []analyzer.Issue          `json:"issues"`
	Suggestions     []analyzer.Suggestion     `json:"suggestions"`
	IndexCandidates []analyzer.IndexCandidate `json:"index_candidates"`
}

// Payload is the bundle document. Optional sections are omitted rather
// than emitted empty, and Warnings records every section that had to be
// skipped because a data source failed.
type Payload struct {
	SQL           string               `json:"sql"`
	NormalizedSQL string               `json:"normalized_sql"`
	Fingerprint   string               `json:"fingerprint"`
	ParserOutput  *sqlmeta.QueryMeta   `json:"parser_output"`
	Metadata      []*catalog.TableInfo `json:"metadata,omitempty"`
	ExplainJSON   json.RawMessage      `json:"explain_json,omitempty"`
	Metrics       *plan.Metrics        `json:"metrics,omitempty"`
	Heuristics    *Heuristics          `json:"heuristics,omitempty"`
	ConfigUsed    *plan.Config         `json:"config_used,omitempty"`
	Warnings      []string             `json:"warnings,omitempty"`
}

// Builder configures which data sources a bundle draws from. A nil
// Catalog skips table metadata, a nil Explain skips the plan sections;
// the static analysis always runs.
type Builder struct {
	Catalog *catalog.Catalog
	Explain func(sql string) ([]byte, error)
	Config  plan.Config
}

// Build assembles the payload for sql. Failures in the optional sources
// degrade to warnings; only unparseable SQL is a hard error.
func (b *Builder) Build(ctx context.Context, sql string) (*Payload, error) {
	meta, err := sqlmeta.Analyze(sql)
	if err != nil {
		return nil, err
	}
	normalized, err := sqlmeta.Normalize(sql)
	if err != nil {
		return nil, err
	}
	fp, err := sqlmeta.Fingerprint(sql)
	if err != nil {
		return nil, err
	}

	p := &Payload{
		SQL:           sql,
		NormalizedSQL: normalized,
		Fingerprint:   fp,
		ParserOutput:  meta,
	}

	if b.Catalog != nil {
		for _, tab := range meta.Tables {
			info, err := b.Catalog.TableInfo(ctx, tab.Name, tab.FilterColumns)
			if err != nil {
				p.Warnings = append(p.Warnings, fmt.Sprintf("metadata for %s unavailable: %v", tab.Name, err))
				continue
			}
			p.Metadata = append(p.Metadata, info)
		}
	}

	if b.Explain != nil {
		raw, err := b.Explain(sql)
		if err != nil {
			p.Warnings = append(p.Warnings, fmt.Sprintf("EXPLAIN unavailable: %v", err))
			return p, nil
		}
		res, err := analyzer.New(b.Config).Analyze(sql, raw)
		if err != nil {
			p.Warnings = append(p.Warnings, fmt.Sprintf("plan analysis failed: %v", err))
			return p, nil
		}
		p.ExplainJSON = json.RawMessage(raw)
		p.Metrics = &res.Metrics
		p.Heuristics = &Heuristics{
			Issues:          res.Issues,
			Suggestions:     res.Suggestions,
			IndexCandidates: res.IndexCandidates,
		}
		cfg := b.Config
		p.ConfigUsed = &cfg
	}
	return p, nil
}

// Render serializes the payload as indented JSON. HTML escaping is off so
// SQL operators survive verbatim.
func (p *Payload) Render() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("encoding bundle: %w", err)
	}
	return buf.Bytes(), nil
}
