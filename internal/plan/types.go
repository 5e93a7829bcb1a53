package plan

// PlanNode is one operator of an execution plan. Fields mirror the keys a
// node object carries in EXPLAIN (FORMAT JSON) output; absent keys keep
// their zero value, except the actual-statistics fields which stay nil so
// a measured zero remains distinguishable from "not measured".
type PlanNode struct {
	NodeType     string `json:"node_type"`
	RelationName string `json:"relation_name,omitempty"`
	Alias        string `json:"alias,omitempty"`

	StartupCost float64 `json:"startup_cost"`
	TotalCost   float64 `json:"total_cost"`
	PlanRows    int64   `json:"plan_rows"`
	PlanWidth   int     `json:"plan_width"`

	// Present only when the plan was collected with ANALYZE.
	ActualRows        *float64 `json:"actual_rows,omitempty"`
	ActualTotalTimeMs *float64 `json:"actual_total_time_ms,omitempty"`

	// Predicate text as the planner printed it. Never parsed into an
	// expression tree; rules only scrape column names out of it.
	Filter      string `json:"filter,omitempty"`
	HashCond    string `json:"hash_cond,omitempty"`
	MergeCond   string `json:"merge_cond,omitempty"`
	RecheckCond string `json:"recheck_cond,omitempty"`

	JoinType  string   `json:"join_type,omitempty"`
	IndexName string   `json:"index_name,omitempty"`
	SortKey   []string `json:"sort_key,omitempty"`

	// Buffer counters, populated only for keys present in the source
	// document. Keys are the wire names (see bufferKeys).
	Buffers map[string]float64 `json:"buffers,omitempty"`

	// Children in document order. Order is load-bearing: join rules
	// attribute columns to the first two children positionally.
	Children []PlanNode `json:"children,omitempty"`
}

// Plan wraps a parsed plan tree together with the optional top-level
// timing keys. Zero means the key was absent (the server never reports a
// literal zero duration).
type Plan struct {
	Root            PlanNode `json:"root"`
	PlanningTimeMs  float64  `json:"planning_time_ms,omitempty"`
	ExecutionTimeMs float64  `json:"execution_time_ms,omitempty"`

	// Shape statistics recorded at build time.
	NodeCount int `json:"node_count"`
	Depth     int `json:"depth"`
}

// Walk visits every node in document order, parents before children.
func (p *Plan) Walk(fn func(*PlanNode)) {
	p.Root.Walk(fn)
}

// Walk visits n and its descendants in document order without unbounded
// recursion; the tree depth is already capped at parse time.
func (n *PlanNode) Walk(fn func(*PlanNode)) {
	stack := []*PlanNode{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(cur)
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, &cur.Children[i])
		}
	}
}
