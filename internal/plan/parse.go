package plan

import (
	"encoding/json"
	"fmt"
)

// maxPlanDepth bounds tree construction so a pathologically nested
// document cannot blow the stack.
const maxPlanDepth = 512

// bufferKeys is the fixed set of per-node buffer counters collected from
// the source document. Anything else under a node is ignored.
var bufferKeys = []string{
	"Shared Hit Blocks",
	"Shared Read Blocks",
	"Shared Dirtied Blocks",
	"Shared Written Blocks",
	"Local Hit Blocks",
	"Local Read Blocks",
	"Local Dirtied Blocks",
	"Local Written Blocks",
	"Temp Read Blocks",
	"Temp Written Blocks",
	"I/O Read Time",
	"I/O Write Time",
	"Temp I/O Read Time",
	"Temp I/O Write Time",
}

// ParseError reports a structurally invalid plan document. JSON syntax
// errors are wrapped separately; ParseError means the JSON decoded fine
// but does not describe a plan.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "invalid plan document: " + e.Reason
}

// Parse decodes one EXPLAIN (FORMAT JSON) document. The server emits a
// JSON array holding a single object; a bare object is accepted too since
// several tools strip the array.
func Parse(data []byte) (*Plan, error) {
	var top any
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("decoding EXPLAIN JSON: %w", err)
	}

	var doc map[string]any
	switch v := top.(type) {
	case []any:
		if len(v) == 0 {
			return nil, &ParseError{Reason: "empty EXPLAIN document"}
		}
		first, ok := v[0].(map[string]any)
		if !ok {
			return nil, &ParseError{Reason: "document element is not an object"}
		}
		doc = first
	case map[string]any:
		doc = v
	default:
		return nil, &ParseError{Reason: "expected a JSON array or object"}
	}

	return FromDocument(doc)
}

// FromDocument builds a Plan from one already-decoded document object.
// A missing "Plan" key is the only fatal condition besides excessive
// nesting; every other absent or oddly-typed field falls back to its
// documented default.
func FromDocument(doc map[string]any) (*Plan, error) {
	raw, ok := doc["Plan"]
	if !ok {
		return nil, &ParseError{Reason: `missing top-level "Plan" key`}
	}
	rawPlan, ok := raw.(map[string]any)
	if !ok {
		return nil, &ParseError{Reason: `"Plan" is not an object`}
	}

	var st treeStats
	root, err := buildNode(rawPlan, 0, &st)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Root:            root,
		PlanningTimeMs:  numField(doc, "Planning Time"),
		ExecutionTimeMs: numField(doc, "Execution Time"),
		NodeCount:       st.nodes,
		Depth:           st.depth,
	}, nil
}

type treeStats struct {
	nodes int
	depth int
}

func buildNode(raw map[string]any, depth int, st *treeStats) (PlanNode, error) {
	if depth > maxPlanDepth {
		return PlanNode{}, &ParseError{Reason: fmt.Sprintf("plan nesting exceeds %d levels", maxPlanDepth)}
	}
	st.nodes++
	if depth > st.depth {
		st.depth = depth
	}

	n := PlanNode{
		NodeType:          strField(raw, "Node Type"),
		RelationName:      strField(raw, "Relation Name"),
		Alias:             strField(raw, "Alias"),
		StartupCost:       numField(raw, "Startup Cost"),
		TotalCost:         numField(raw, "Total Cost"),
		PlanRows:          int64(numField(raw, "Plan Rows")),
		PlanWidth:         int(numField(raw, "Plan Width")),
		ActualRows:        optNumField(raw, "Actual Rows"),
		ActualTotalTimeMs: optNumField(raw, "Actual Total Time"),
		Filter:            strField(raw, "Filter"),
		HashCond:          strField(raw, "Hash Cond"),
		MergeCond:         strField(raw, "Merge Cond"),
		RecheckCond:       strField(raw, "Recheck Cond"),
		JoinType:          strField(raw, "Join Type"),
		IndexName:         strField(raw, "Index Name"),
		SortKey:           strListField(raw, "Sort Key"),
	}

	for _, key := range bufferKeys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		f, ok := v.(float64)
		if !ok {
			continue
		}
		if n.Buffers == nil {
			n.Buffers = make(map[string]float64)
		}
		n.Buffers[key] = f
	}

	if kids, ok := raw["Plans"].([]any); ok {
		for _, k := range kids {
			km, ok := k.(map[string]any)
			if !ok {
				continue
			}
			child, err := buildNode(km, depth+1, st)
			if err != nil {
				return PlanNode{}, err
			}
			n.Children = append(n.Children, child)
		}
	}

	return n, nil
}

// numField coerces a numeric field to float64. Absent keys, nulls, and
// unexpected types all come back as 0; the source format occasionally
// carries any of those for optional statistics.
func numField(m map[string]any, key string) float64 {
	f, _ := m[key].(float64)
	return f
}

// optNumField is numField for fields where a present zero must stay
// distinguishable from an absent key.
func optNumField(m map[string]any, key string) *float64 {
	f, ok := m[key].(float64)
	if !ok {
		return nil
	}
	return &f
}

func strField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func strListField(m map[string]any, key string) []string {
	items, ok := m[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
