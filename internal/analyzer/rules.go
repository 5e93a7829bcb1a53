package analyzer

import (
	"fmt"
	"strings"

	"github.com/pglens/pglens/internal/plan"
)

const (
	spillRowThreshold  = 10000
	sortWorkMemFloorMB = 32
	hashWorkMemFloorMB = 64
)

// RuleResult is one rule's contribution to an analysis.
type RuleResult struct {
	Issues      []Issue
	Suggestions []Suggestion
	Candidates  []IndexCandidate
}

// Rule inspects a plan tree and reports what it finds. Implementations
// treat the tree as read-only.
type Rule interface {
	Code() string
	Evaluate(p *plan.Plan) RuleResult
}

type ruleFunc struct {
	code string
	fn   func(p *plan.Plan) RuleResult
}

func (r ruleFunc) Code() string                     { return r.code }
func (r ruleFunc) Evaluate(p *plan.Plan) RuleResult { return r.fn(p) }

// DefaultRules returns the standard detector set in evaluation order.
// Output order is stable: registration order first, then each rule's own
// emission order.
func DefaultRules(cfg plan.Config) []Rule {
	return []Rule{
		ruleFunc{"seqscan", seqScanRule},
		ruleFunc{"joins", joinRule},
		ruleFunc{"sort", sortRule},
		ruleFunc{"group_by", aggregateRule},
		ruleFunc{"limit_without_order", limitWithoutOrderRule},
		ruleFunc{"dml_without_where", dmlWithoutWhereRule},
		workMemSortRule(cfg),
		workMemHashRule(cfg),
	}
}

func seqScanRule(p *plan.Plan) RuleResult {
	var res RuleResult
	p.Walk(func(n *plan.PlanNode) {
		if n.NodeType != "Seq Scan" || n.RelationName == "" {
			return
		}

		res.Issues = append(res.Issues, Issue{
			Code:     "SEQSCAN",
			Title:    fmt.Sprintf("Sequential scan on %s", n.RelationName),
			Severity: SeverityMedium,
			Details:  fmt.Sprintf("The query reads every row of %s.", n.RelationName),
			NodePath: n.RelationName,
		})

		if n.Filter == "" {
			return
		}
		cols := ExtractColumns(n.Filter)
		if len(cols) == 0 {
			return
		}

		cand := IndexCandidate{Table: n.RelationName, Columns: cols}
		ddl, err := cand.DDL()
		if err != nil {
			return
		}
		res.Candidates = append(res.Candidates, cand)
		res.Suggestions = append(res.Suggestions, Suggestion{
			Code:       "INDEX_FOR_SEQSCAN",
			Title:      fmt.Sprintf("Consider an index on %s(%s)", n.RelationName, strings.Join(cols, ", ")),
			Rationale:  fmt.Sprintf("The filter `%s` could be served by an index.", n.Filter),
			Fix:        ddl,
			Candidates: []IndexCandidate{cand},
		})
	})
	return res
}

// joinRule attributes the first two extracted columns to the first two
// children positionally, so child order in the tree decides which table
// each index lands on.
func joinRule(p *plan.Plan) RuleResult {
	var res RuleResult
	p.Walk(func(n *plan.PlanNode) {
		switch n.NodeType {
		case "Hash Join", "Merge Join", "Nested Loop":
		default:
			return
		}

		cond := n.HashCond
		if cond == "" {
			cond = n.MergeCond
		}
		if cond == "" {
			return
		}

		cols := ExtractColumns(cond)
		if len(cols) < 2 || len(n.Children) < 2 {
			return
		}

		ltab := n.Children[0].RelationName
		if ltab == "" {
			ltab = "left"
		}
		rtab := n.Children[1].RelationName
		if rtab == "" {
			rtab = "right"
		}

		left := IndexCandidate{Table: ltab, Columns: []string{cols[0]}}
		right := IndexCandidate{Table: rtab, Columns: []string{cols[1]}}
		leftDDL, err := left.DDL()
		if err != nil {
			return
		}
		rightDDL, err := right.DDL()
		if err != nil {
			return
		}

		res.Candidates = append(res.Candidates, left, right)
		res.Suggestions = append(res.Suggestions, Suggestion{
			Code: "INDEX_FOR_JOIN",
			Title: fmt.Sprintf("Indexes for join condition: %s(%s), %s(%s)",
				ltab, cols[0], rtab, cols[1]),
			Rationale:  fmt.Sprintf("The join condition `%s` could be served by indexes on both sides.", cond),
			Fix:        leftDDL + "\n" + rightDDL,
			Candidates: []IndexCandidate{left, right},
		})
	})
	return res
}

func sortRule(p *plan.Plan) RuleResult {
	var res RuleResult
	p.Walk(func(n *plan.PlanNode) {
		if n.NodeType != "Sort" {
			return
		}

		res.Issues = append(res.Issues, Issue{
			Code:     "SORT_NODE",
			Title:    "Sort in plan",
			Severity: SeverityLow,
			Details:  "The plan sorts rows. Check whether an index could provide the order instead.",
		})

		if len(n.SortKey) == 0 {
			return
		}

		// Sort keys are kept verbatim and the target table is unknown at
		// this level of the plan.
		cand := IndexCandidate{Table: "?", Columns: n.SortKey}
		ddl, err := cand.DDL()
		if err != nil {
			return
		}
		res.Candidates = append(res.Candidates, cand)
		res.Suggestions = append(res.Suggestions, Suggestion{
			Code:       "INDEX_FOR_SORT",
			Title:      fmt.Sprintf("Index for ORDER BY (%s)", strings.Join(n.SortKey, ", ")),
			Rationale:  "An index matching the sort order can avoid the sort step.",
			Fix:        ddl,
			Candidates: []IndexCandidate{cand},
		})
	})
	return res
}

func aggregateRule(p *plan.Plan) RuleResult {
	var res RuleResult
	p.Walk(func(n *plan.PlanNode) {
		if n.NodeType != "GroupAggregate" && n.NodeType != "HashAggregate" {
			return
		}
		res.Issues = append(res.Issues, Issue{
			Code:     "AGGREGATE_NODE",
			Title:    fmt.Sprintf("Aggregation (%s)", n.NodeType),
			Severity: SeverityLow,
			Details:  "The plan aggregates rows. GROUP BY or DISTINCT can sometimes use an index.",
		})
	})
	return res
}

// limitWithoutOrderRule only looks at the Limit node's immediate children.
// A Sort further down the subtree still triggers the warning.
func limitWithoutOrderRule(p *plan.Plan) RuleResult {
	var res RuleResult
	p.Walk(func(n *plan.PlanNode) {
		if n.NodeType != "Limit" {
			return
		}
		for i := range n.Children {
			if n.Children[i].NodeType == "Sort" {
				return
			}
		}
		res.Issues = append(res.Issues, Issue{
			Code:     "LIMIT_WITHOUT_ORDER",
			Title:    "LIMIT without ORDER BY",
			Severity: SeverityLow,
			Details:  "The query limits rows without ordering them, so which rows are returned is not guaranteed.",
		})
	})
	return res
}

func dmlWithoutWhereRule(p *plan.Plan) RuleResult {
	var res RuleResult

	root := p.Root.NodeType
	if root != "Delete" && root != "Update" {
		return res
	}

	hasFilter := false
	p.Walk(func(n *plan.PlanNode) {
		if n.Filter != "" {
			hasFilter = true
		}
	})
	if hasFilter {
		return res
	}

	res.Issues = append(res.Issues, Issue{
		Code:     "DML_NO_WHERE",
		Title:    fmt.Sprintf("%s without WHERE", root),
		Severity: SeverityHigh,
		Details:  fmt.Sprintf("This %s can touch every row of the table.", root),
	})
	return res
}

func workMemSortRule(cfg plan.Config) Rule {
	return ruleFunc{"work_mem_sort", func(p *plan.Plan) RuleResult {
		var res RuleResult
		if cfg.WorkMemMB >= sortWorkMemFloorMB {
			return res
		}
		p.Walk(func(n *plan.PlanNode) {
			if n.NodeType != "Sort" || n.PlanRows <= spillRowThreshold {
				return
			}
			res.Suggestions = append(res.Suggestions, Suggestion{
				Code:  "WORK_MEM_SORT",
				Title: "Raise work_mem for large sorts",
				Rationale: fmt.Sprintf("A sort of roughly %d rows is likely to spill to disk with work_mem at %.0fMB.",
					n.PlanRows, cfg.WorkMemMB),
				Fix: fmt.Sprintf("SET work_mem = '%dMB';", sortWorkMemFloorMB),
			})
		})
		return res
	}}
}

func workMemHashRule(cfg plan.Config) Rule {
	return ruleFunc{"work_mem_hash", func(p *plan.Plan) RuleResult {
		var res RuleResult
		if cfg.WorkMemMB >= hashWorkMemFloorMB {
			return res
		}
		p.Walk(func(n *plan.PlanNode) {
			if !strings.Contains(n.NodeType, "Hash") || n.PlanRows <= spillRowThreshold {
				return
			}
			res.Suggestions = append(res.Suggestions, Suggestion{
				Code:  "WORK_MEM_HASH",
				Title: fmt.Sprintf("Raise work_mem for %s", n.NodeType),
				Rationale: fmt.Sprintf("Hashing roughly %d rows is likely to batch to disk with work_mem at %.0fMB.",
					n.PlanRows, cfg.WorkMemMB),
				Fix: fmt.Sprintf("SET work_mem = '%dMB';", hashWorkMemFloorMB),
			})
		})
		return res
	}}
}
