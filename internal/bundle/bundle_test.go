package bundle

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pglens/pglens/internal/plan"
)

const pendingOrdersSQL = "SELECT * FROM orders WHERE status = 'pending'"

var pendingOrdersPlan = []byte(`[{
	"Plan": {
		"Node Type": "Seq Scan",
		"Relation Name": "orders",
		"Filter": "status = 'pending'",
		"Total Cost": 25.88
	}
}]`)

func TestBuild_StaticOnly(t *testing.T) {
	b := &Builder{Config: plan.DefaultConfig()}
	p, err := b.Build(context.Background(), pendingOrdersSQL)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	if p.SQL != pendingOrdersSQL {
		t.Errorf("SQL = %q, want original text", p.SQL)
	}
	if !strings.Contains(p.NormalizedSQL, "$1") {
		t.Errorf("NormalizedSQL = %q, want literal replaced with placeholder", p.NormalizedSQL)
	}
	if p.Fingerprint == "" {
		t.Error("Fingerprint should be set")
	}
	if p.ParserOutput == nil || len(p.ParserOutput.Tables) != 1 || p.ParserOutput.Tables[0].Name != "orders" {
		t.Fatalf("ParserOutput = %+v, want single orders table", p.ParserOutput)
	}
	fc := p.ParserOutput.Tables[0].FilterColumns
	if len(fc) != 1 || fc[0] != "status" {
		t.Errorf("filter columns = %v, want [status]", fc)
	}

	if p.Metadata != nil {
		t.Error("Metadata should be absent without a catalog")
	}
	if p.ExplainJSON != nil || p.Metrics != nil || p.Heuristics != nil || p.ConfigUsed != nil {
		t.Error("plan sections should be absent without an explain source")
	}
	if len(p.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", p.Warnings)
	}
}

func TestBuild_WithExplain(t *testing.T) {
	var explained string
	b := &Builder{
		Config: plan.DefaultConfig(),
		Explain: func(sql string) ([]byte, error) {
			explained = sql
			return pendingOrdersPlan, nil
		},
	}
	p, err := b.Build(context.Background(), pendingOrdersSQL)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	if explained != pendingOrdersSQL {
		t.Errorf("explain received %q, want the bundle SQL", explained)
	}
	if string(p.ExplainJSON) != string(pendingOrdersPlan) {
		t.Error("ExplainJSON should carry the raw document verbatim")
	}
	if p.Metrics == nil || p.Metrics.TotalCost != 25.88 {
		t.Fatalf("Metrics = %+v, want total cost 25.88", p.Metrics)
	}
	if p.Heuristics == nil {
		t.Fatal("Heuristics should be set")
	}
	if len(p.Heuristics.Issues) != 1 || len(p.Heuristics.Suggestions) != 1 || len(p.Heuristics.IndexCandidates) != 1 {
		t.Fatalf("heuristics = %d issues, %d suggestions, %d candidates, want 1 each",
			len(p.Heuristics.Issues), len(p.Heuristics.Suggestions), len(p.Heuristics.IndexCandidates))
	}
	if p.ConfigUsed == nil || p.ConfigUsed.WorkMemMB != 4 {
		t.Errorf("ConfigUsed = %+v, want the settings the analysis ran with", p.ConfigUsed)
	}
	wantDDL := `CREATE INDEX IF NOT EXISTS idx_orders_status ON "orders" (status);`
	if p.Heuristics.Suggestions[0].Fix != wantDDL {
		t.Errorf("Fix = %q, want %q", p.Heuristics.Suggestions[0].Fix, wantDDL)
	}
}

func TestBuild_ExplainFailureDegradesToWarning(t *testing.T) {
	b := &Builder{
		Config: plan.DefaultConfig(),
		Explain: func(string) ([]byte, error) {
			return nil, errors.New("server down")
		},
	}
	p, err := b.Build(context.Background(), pendingOrdersSQL)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	if p.ExplainJSON != nil || p.Metrics != nil || p.Heuristics != nil || p.ConfigUsed != nil {
		t.Error("plan sections should be absent when EXPLAIN fails")
	}
	if p.ParserOutput == nil {
		t.Error("static analysis should survive an EXPLAIN failure")
	}
	if len(p.Warnings) != 1 || !strings.Contains(p.Warnings[0], "server down") {
		t.Errorf("Warnings = %v, want one mentioning the failure", p.Warnings)
	}
}

func TestBuild_UnusablePlanDegradesToWarning(t *testing.T) {
	b := &Builder{
		Config: plan.DefaultConfig(),
		Explain: func(string) ([]byte, error) {
			return []byte(`[]`), nil
		},
	}
	p, err := b.Build(context.Background(), pendingOrdersSQL)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if p.ExplainJSON != nil {
		t.Error("unusable plan document should not be embedded")
	}
	if len(p.Warnings) != 1 || !strings.Contains(p.Warnings[0], "plan analysis failed") {
		t.Errorf("Warnings = %v, want one about plan analysis", p.Warnings)
	}
}

func TestBuild_UnparseableSQLFails(t *testing.T) {
	b := &Builder{Config: plan.DefaultConfig()}
	if _, err := b.Build(context.Background(), "definitely not sql ("); err == nil {
		t.Fatal("expected error for unparseable SQL")
	}
}

func TestRender_DeterministicAndUnescaped(t *testing.T) {
	b := &Builder{Config: plan.DefaultConfig()}
	p, err := b.Build(context.Background(), "SELECT * FROM orders WHERE total < 10")
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	first, err := p.Render()
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	second, err := p.Render()
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("Render should be deterministic")
	}

	out := string(first)
	if !strings.Contains(out, "total < 10") {
		t.Errorf("output should carry SQL operators verbatim:\n%s", out)
	}
	if strings.Contains(out, "u003c") {
		t.Error("output should not HTML-escape the SQL")
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("output should end with a newline")
	}
}
