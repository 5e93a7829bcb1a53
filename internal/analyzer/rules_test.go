package analyzer

import (
	"strings"
	"testing"

	"github.com/pglens/pglens/internal/plan"
)

func tree(root plan.PlanNode) *plan.Plan {
	return &plan.Plan{Root: root}
}

func issuesByCode(issues []Issue, code string) []Issue {
	var out []Issue
	for _, it := range issues {
		if it.Code == code {
			out = append(out, it)
		}
	}
	return out
}

func suggestionsByCode(sugs []Suggestion, code string) []Suggestion {
	var out []Suggestion
	for _, s := range sugs {
		if s.Code == code {
			out = append(out, s)
		}
	}
	return out
}

func TestSeqScanRule_PendingOrdersScenario(t *testing.T) {
	p := tree(plan.PlanNode{
		NodeType:     "Seq Scan",
		RelationName: "orders",
		Filter:       "status = 'pending'",
	})

	res := seqScanRule(p)

	if len(res.Issues) != 1 {
		t.Fatalf("got %d issues, want exactly 1", len(res.Issues))
	}
	issue := res.Issues[0]
	if issue.Code != "SEQSCAN" {
		t.Errorf("Code = %q, want SEQSCAN", issue.Code)
	}
	if issue.Severity != SeverityMedium {
		t.Errorf("Severity = %v, want medium", issue.Severity)
	}
	if issue.NodePath != "orders" {
		t.Errorf("NodePath = %q, want orders", issue.NodePath)
	}

	if len(res.Suggestions) != 1 {
		t.Fatalf("got %d suggestions, want exactly 1", len(res.Suggestions))
	}
	sug := res.Suggestions[0]
	if sug.Code != "INDEX_FOR_SEQSCAN" {
		t.Errorf("Code = %q, want INDEX_FOR_SEQSCAN", sug.Code)
	}
	wantDDL := `CREATE INDEX IF NOT EXISTS idx_orders_status ON "orders" (status);`
	if sug.Fix != wantDDL {
		t.Errorf("Fix = %q, want %q", sug.Fix, wantDDL)
	}

	if len(res.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(res.Candidates))
	}
	if res.Candidates[0].Table != "orders" {
		t.Errorf("candidate table = %q, want orders", res.Candidates[0].Table)
	}
}

func TestSeqScanRule_NoRelationNameNeverFires(t *testing.T) {
	p := tree(plan.PlanNode{NodeType: "Seq Scan", Filter: "(x = 1)"})

	res := seqScanRule(p)
	if len(res.Issues) != 0 || len(res.Suggestions) != 0 || len(res.Candidates) != 0 {
		t.Errorf("rule fired on a scan without a relation name: %+v", res)
	}
}

func TestSeqScanRule_NoFilterMeansIssueOnly(t *testing.T) {
	p := tree(plan.PlanNode{NodeType: "Seq Scan", RelationName: "users"})

	res := seqScanRule(p)
	if len(res.Issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(res.Issues))
	}
	if len(res.Suggestions) != 0 || len(res.Candidates) != 0 {
		t.Error("no filter should mean no index proposal")
	}
}

func TestSeqScanRule_FiresPerMatchingNode(t *testing.T) {
	p := tree(plan.PlanNode{
		NodeType: "Hash Join",
		Children: []plan.PlanNode{
			{NodeType: "Seq Scan", RelationName: "orders"},
			{NodeType: "Seq Scan", RelationName: "customers"},
		},
	})

	res := seqScanRule(p)
	if len(res.Issues) != 2 {
		t.Fatalf("got %d issues, want 2", len(res.Issues))
	}
	if res.Issues[0].NodePath != "orders" || res.Issues[1].NodePath != "customers" {
		t.Errorf("issues out of tree order: %v, %v", res.Issues[0].NodePath, res.Issues[1].NodePath)
	}
}

func TestSeqScanRule_MultiColumnFilter(t *testing.T) {
	p := tree(plan.PlanNode{
		NodeType:     "Seq Scan",
		RelationName: "orders",
		Filter:       "((status = 'open') AND (region = 'eu'))",
	})

	res := seqScanRule(p)
	if len(res.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(res.Candidates))
	}
	cols := res.Candidates[0].Columns
	if len(cols) != 2 || cols[0] != "status" || cols[1] != "region" {
		t.Errorf("columns = %v, want [status region]", cols)
	}
}

func TestJoinRule_PositionalAttribution(t *testing.T) {
	p := tree(plan.PlanNode{
		NodeType: "Hash Join",
		HashCond: "((o.customer_id = c.id) AND (o.region = c.region))",
		Children: []plan.PlanNode{
			{NodeType: "Seq Scan", RelationName: "orders"},
			{NodeType: "Hash", RelationName: "customers"},
		},
	})

	res := joinRule(p)

	if len(res.Issues) != 0 {
		t.Errorf("join rule must not emit issues, got %d", len(res.Issues))
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(res.Candidates))
	}
	first, second := res.Candidates[0], res.Candidates[1]
	if first.Table != "orders" || first.Columns[0] != "customer_id" {
		t.Errorf("first candidate = %+v, want orders(customer_id)", first)
	}
	if second.Table != "customers" || second.Columns[0] != "region" {
		t.Errorf("second candidate = %+v, want customers(region)", second)
	}

	if len(res.Suggestions) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(res.Suggestions))
	}
	fix := res.Suggestions[0].Fix
	parts := strings.Split(fix, "\n")
	if len(parts) != 2 {
		t.Fatalf("fix should carry two DDL statements, got %q", fix)
	}
	if !strings.Contains(parts[0], "idx_orders_customer_id") {
		t.Errorf("first DDL = %q", parts[0])
	}
	if !strings.Contains(parts[1], "idx_customers_region") {
		t.Errorf("second DDL = %q", parts[1])
	}
}

func TestJoinRule_FallbackTableNames(t *testing.T) {
	p := tree(plan.PlanNode{
		NodeType:  "Merge Join",
		MergeCond: "((a.x = b.y) AND (a.z = b.w))",
		Children: []plan.PlanNode{
			{NodeType: "Sort"},
			{NodeType: "Sort"},
		},
	})

	res := joinRule(p)
	if len(res.Candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(res.Candidates))
	}
	if res.Candidates[0].Table != "left" || res.Candidates[1].Table != "right" {
		t.Errorf("tables = %q, %q; want left, right", res.Candidates[0].Table, res.Candidates[1].Table)
	}
}

func TestJoinRule_SingleColumnConditionSkipped(t *testing.T) {
	p := tree(plan.PlanNode{
		NodeType: "Hash Join",
		HashCond: "(o.customer_id = c.id)",
		Children: []plan.PlanNode{
			{NodeType: "Seq Scan", RelationName: "orders"},
			{NodeType: "Hash", RelationName: "customers"},
		},
	})

	res := joinRule(p)
	if len(res.Suggestions) != 0 || len(res.Candidates) != 0 {
		t.Errorf("single extracted column should not produce candidates: %+v", res)
	}
}

func TestJoinRule_RequiresTwoChildren(t *testing.T) {
	p := tree(plan.PlanNode{
		NodeType: "Nested Loop",
		HashCond: "((a.x = b.y) AND (a.z = b.w))",
		Children: []plan.PlanNode{
			{NodeType: "Seq Scan", RelationName: "t"},
		},
	})

	res := joinRule(p)
	if len(res.Candidates) != 0 {
		t.Errorf("one child should not produce candidates: %+v", res)
	}
}

func TestJoinRule_NoConditionSkipped(t *testing.T) {
	p := tree(plan.PlanNode{
		NodeType: "Nested Loop",
		Children: []plan.PlanNode{
			{NodeType: "Seq Scan", RelationName: "a"},
			{NodeType: "Seq Scan", RelationName: "b"},
		},
	})

	res := joinRule(p)
	if len(res.Suggestions) != 0 {
		t.Errorf("join without hash/merge cond should stay silent: %+v", res)
	}
}

func TestSortRule_IssueAlwaysCandidateWithKeys(t *testing.T) {
	p := tree(plan.PlanNode{
		NodeType: "Sort",
		SortKey:  []string{"created_at DESC", "id"},
		Children: []plan.PlanNode{{NodeType: "Seq Scan", RelationName: "events"}},
	})

	res := sortRule(p)
	if len(res.Issues) != 1 || res.Issues[0].Code != "SORT_NODE" {
		t.Fatalf("issues = %+v, want one SORT_NODE", res.Issues)
	}
	if res.Issues[0].Severity != SeverityLow {
		t.Errorf("Severity = %v, want low", res.Issues[0].Severity)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(res.Candidates))
	}
	cand := res.Candidates[0]
	if cand.Table != "?" {
		t.Errorf("table = %q, want placeholder", cand.Table)
	}
	if len(cand.Columns) != 2 || cand.Columns[0] != "created_at DESC" {
		t.Errorf("columns = %v, want verbatim sort keys", cand.Columns)
	}
}

func TestSortRule_NoKeysMeansIssueOnly(t *testing.T) {
	p := tree(plan.PlanNode{NodeType: "Sort"})

	res := sortRule(p)
	if len(res.Issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(res.Issues))
	}
	if len(res.Suggestions) != 0 || len(res.Candidates) != 0 {
		t.Error("no sort keys should mean no index proposal")
	}
}

func TestAggregateRule(t *testing.T) {
	p := tree(plan.PlanNode{
		NodeType: "HashAggregate",
		Children: []plan.PlanNode{
			{NodeType: "GroupAggregate", Children: []plan.PlanNode{
				{NodeType: "Aggregate"},
			}},
		},
	})

	res := aggregateRule(p)
	if len(res.Issues) != 2 {
		t.Fatalf("got %d issues, want 2 (plain Aggregate is not flagged)", len(res.Issues))
	}
	for _, it := range res.Issues {
		if it.Code != "AGGREGATE_NODE" || it.Severity != SeverityLow {
			t.Errorf("unexpected issue %+v", it)
		}
	}
	if len(res.Suggestions) != 0 {
		t.Error("aggregate rule proposes no indexes")
	}
}

func TestLimitRule_ImmediateSortSuppresses(t *testing.T) {
	p := tree(plan.PlanNode{
		NodeType: "Limit",
		Children: []plan.PlanNode{
			{NodeType: "Sort", Children: []plan.PlanNode{{NodeType: "Seq Scan"}}},
		},
	})

	res := limitWithoutOrderRule(p)
	if len(res.Issues) != 0 {
		t.Errorf("immediate Sort child should suppress the warning: %+v", res.Issues)
	}
}

func TestLimitRule_DeepSortStillFires(t *testing.T) {
	p := tree(plan.PlanNode{
		NodeType: "Limit",
		Children: []plan.PlanNode{
			{NodeType: "Gather", Children: []plan.PlanNode{
				{NodeType: "Sort"},
			}},
		},
	})

	res := limitWithoutOrderRule(p)
	if len(res.Issues) != 1 || res.Issues[0].Code != "LIMIT_WITHOUT_ORDER" {
		t.Fatalf("a Sort below an intermediate node must not suppress the warning: %+v", res.Issues)
	}
}

func TestLimitRule_NoChildren(t *testing.T) {
	p := tree(plan.PlanNode{NodeType: "Limit"})

	res := limitWithoutOrderRule(p)
	if len(res.Issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(res.Issues))
	}
}

func TestDMLRule_DeleteWithoutFilter(t *testing.T) {
	p := tree(plan.PlanNode{
		NodeType: "Delete",
		Children: []plan.PlanNode{
			{NodeType: "Seq Scan", RelationName: "orders"},
		},
	})

	res := dmlWithoutWhereRule(p)
	if len(res.Issues) != 1 {
		t.Fatalf("got %d issues, want exactly 1", len(res.Issues))
	}
	if res.Issues[0].Code != "DML_NO_WHERE" {
		t.Errorf("Code = %q, want DML_NO_WHERE", res.Issues[0].Code)
	}
	if res.Issues[0].Severity != SeverityHigh {
		t.Errorf("Severity = %v, want high", res.Issues[0].Severity)
	}
}

func TestDMLRule_DeepFilterSuppresses(t *testing.T) {
	p := tree(plan.PlanNode{
		NodeType: "Update",
		Children: []plan.PlanNode{
			{NodeType: "Nested Loop", Children: []plan.PlanNode{
				{NodeType: "Seq Scan", RelationName: "t"},
				{NodeType: "Index Scan", RelationName: "u", Filter: "(id > 5)"},
			}},
		},
	})

	res := dmlWithoutWhereRule(p)
	if len(res.Issues) != 0 {
		t.Errorf("a filter anywhere in the tree must suppress the issue: %+v", res.Issues)
	}
}

func TestDMLRule_NonDMLRootIgnored(t *testing.T) {
	p := tree(plan.PlanNode{
		NodeType: "Seq Scan",
		Children: []plan.PlanNode{{NodeType: "Delete"}},
	})

	res := dmlWithoutWhereRule(p)
	if len(res.Issues) != 0 {
		t.Errorf("non-root Delete must not fire: %+v", res.Issues)
	}
}

func TestDMLRule_UpdateRoot(t *testing.T) {
	p := tree(plan.PlanNode{NodeType: "Update"})

	res := dmlWithoutWhereRule(p)
	if len(res.Issues) != 1 || !strings.Contains(res.Issues[0].Title, "Update") {
		t.Fatalf("issues = %+v, want one Update warning", res.Issues)
	}
}

func TestWorkMemSortRule(t *testing.T) {
	big := tree(plan.PlanNode{NodeType: "Sort", PlanRows: 50000})

	cfg := plan.DefaultConfig()
	res := workMemSortRule(cfg).Evaluate(big)
	if len(res.Suggestions) != 1 || res.Suggestions[0].Code != "WORK_MEM_SORT" {
		t.Fatalf("suggestions = %+v, want one WORK_MEM_SORT", res.Suggestions)
	}
	if res.Suggestions[0].Fix != "SET work_mem = '32MB';" {
		t.Errorf("Fix = %q", res.Suggestions[0].Fix)
	}

	cfg.WorkMemMB = 64
	res = workMemSortRule(cfg).Evaluate(big)
	if len(res.Suggestions) != 0 {
		t.Errorf("ample work_mem should silence the rule: %+v", res.Suggestions)
	}

	small := tree(plan.PlanNode{NodeType: "Sort", PlanRows: 100})
	res = workMemSortRule(plan.DefaultConfig()).Evaluate(small)
	if len(res.Suggestions) != 0 {
		t.Errorf("small sorts should not trigger the rule: %+v", res.Suggestions)
	}
}

func TestWorkMemHashRule(t *testing.T) {
	p := tree(plan.PlanNode{
		NodeType: "Hash Join",
		PlanRows: 50000,
		Children: []plan.PlanNode{
			{NodeType: "Seq Scan", PlanRows: 50000},
			{NodeType: "Hash", PlanRows: 50000},
		},
	})

	res := workMemHashRule(plan.DefaultConfig()).Evaluate(p)
	if len(res.Suggestions) != 2 {
		t.Fatalf("got %d suggestions, want 2 (Hash Join and Hash)", len(res.Suggestions))
	}
	for _, s := range res.Suggestions {
		if s.Code != "WORK_MEM_HASH" {
			t.Errorf("Code = %q, want WORK_MEM_HASH", s.Code)
		}
	}
}

func TestDefaultRules_Order(t *testing.T) {
	rules := DefaultRules(plan.DefaultConfig())

	want := []string{
		"seqscan",
		"joins",
		"sort",
		"group_by",
		"limit_without_order",
		"dml_without_where",
		"work_mem_sort",
		"work_mem_hash",
	}
	if len(rules) != len(want) {
		t.Fatalf("got %d rules, want %d", len(rules), len(want))
	}
	for i, r := range rules {
		if r.Code() != want[i] {
			t.Errorf("rules[%d] = %q, want %q", i, r.Code(), want[i])
		}
	}
}
