package plan

import "strings"

// Config carries the server parameters the estimator assumes and the
// thresholds the classification labels are judged against. Sizes are in
// megabytes.
type Config struct {
	WorkMemMB            float64 `yaml:"work_mem_mb" json:"work_mem_mb"`
	SharedBuffersMB      float64 `yaml:"shared_buffers_mb" json:"shared_buffers_mb"`
	EffectiveCacheSizeMB float64 `yaml:"effective_cache_size_mb" json:"effective_cache_size_mb"`

	// Classification thresholds. They label results, they never change
	// how metrics are computed.
	LargeTableRows int64   `yaml:"large_table_rows" json:"large_table_rows"`
	ExpensiveCost  float64 `yaml:"expensive_cost" json:"expensive_cost"`
	SlowMs         float64 `yaml:"slow_ms" json:"slow_ms"`
}

// DefaultConfig mirrors a stock server installation.
func DefaultConfig() Config {
	return Config{
		WorkMemMB:            4,
		SharedBuffersMB:      128,
		EffectiveCacheSizeMB: 4096,
		LargeTableRows:       1_000_000,
		ExpensiveCost:        1000.0,
		SlowMs:               100.0,
	}
}

// Metrics are the aggregate resource estimates derived from one plan
// tree. All of it is heuristic: cost is the planner's unit-less number,
// time/IO/memory are rough projections from it, not measurements.
type Metrics struct {
	TotalCost         float64 `json:"total_cost"`
	EstimatedTimeMs   float64 `json:"estimated_time_ms"`
	EstimatedIOMB     float64 `json:"estimated_io_mb"`
	EstimatedMemoryMB float64 `json:"estimated_memory_mb"`
	EstimatedRows     int64   `json:"estimated_rows"`

	ParallelWorkers int      `json:"max_parallel_workers"`
	ScanTypes       []string `json:"scan_types"`
	JoinTypes       []string `json:"join_types"`

	// Classification labels derived from Config thresholds.
	Expensive  bool `json:"expensive"`
	Slow       bool `json:"slow"`
	LargeTable bool `json:"large_table"`
}

const (
	// costTimeFactorMs converts planner cost units to a rough duration.
	costTimeFactorMs = 0.01

	bytesPerMB = 1024 * 1024

	parallelSeqScanRows = 100_000
	rowsPerWorker       = 50_000
	maxParallelWorkers  = 4
)

// Estimate computes Metrics in one pass over the tree. Total cost is the
// sum of every node's own totalCost: nodes already include their children
// in the planner's cumulative number, so this double-counts relative to
// the root cost. That is intentional, observable behavior; treat it as a
// pessimistic aggregate, not as the planner's estimate.
func Estimate(p *Plan, cfg Config) Metrics {
	m := Metrics{ParallelWorkers: 1}
	seenScan := make(map[string]bool)
	seenJoin := make(map[string]bool)

	p.Walk(func(n *PlanNode) {
		m.TotalCost += n.TotalCost
		m.EstimatedIOMB += ioEstimateMB(n)
		m.EstimatedMemoryMB += memoryEstimateMB(n, cfg.WorkMemMB)

		if strings.Contains(n.NodeType, "Scan") && !seenScan[n.NodeType] {
			seenScan[n.NodeType] = true
			m.ScanTypes = append(m.ScanTypes, n.NodeType)
		}
		if strings.Contains(n.NodeType, "Join") && !seenJoin[n.NodeType] {
			seenJoin[n.NodeType] = true
			m.JoinTypes = append(m.JoinTypes, n.NodeType)
		}

		if w := workerEstimate(n); w > m.ParallelWorkers {
			m.ParallelWorkers = w
		}

		if n.RelationName != "" && n.PlanRows > cfg.LargeTableRows {
			m.LargeTable = true
		}
	})

	m.EstimatedTimeMs = m.TotalCost * costTimeFactorMs
	m.EstimatedRows = aggregateRows(&p.Root)
	m.Expensive = m.TotalCost > cfg.ExpensiveCost
	m.Slow = m.EstimatedTimeMs > cfg.SlowMs
	return m
}

// ioEstimateMB projects how much data a node pulls in. Index-driven scans
// are credited a tenth of the row volume; every other node type is
// charged the full planRows times planWidth.
func ioEstimateMB(n *PlanNode) float64 {
	rowBytes := float64(n.PlanRows) * float64(n.PlanWidth)
	switch n.NodeType {
	case "Index Scan", "Index Only Scan":
		return rowBytes / bytesPerMB * 0.1
	default:
		return rowBytes / bytesPerMB
	}
}

// memoryEstimateMB charges memory only to the operators that buffer
// rows, each capped at the configured work_mem ceiling.
func memoryEstimateMB(n *PlanNode, workMemMB float64) float64 {
	switch n.NodeType {
	case "Hash", "Hash Join", "Sort", "Materialize":
		mb := float64(n.PlanRows) * float64(n.PlanWidth) / bytesPerMB
		if mb > workMemMB {
			return workMemMB
		}
		return mb
	}
	return 0
}

// workerEstimate guesses parallelism per node: only large sequential
// scans are assumed to fan out, capped at maxParallelWorkers.
func workerEstimate(n *PlanNode) int {
	if n.NodeType != "Seq Scan" || n.PlanRows <= parallelSeqScanRows {
		return 1
	}
	w := n.PlanRows / rowsPerWorker
	if w < 1 {
		w = 1
	}
	if w > maxParallelWorkers {
		w = maxParallelWorkers
	}
	return int(w)
}

// aggregateRows estimates the rows flowing through a subtree. Append and
// Union concatenate alternative branches, so their children sum; every
// other operator consumes its children's output, so the maximum wins.
// Recursion depth is bounded by the parse-time cap.
func aggregateRows(n *PlanNode) int64 {
	if n.NodeType == "Append" || n.NodeType == "Union" {
		var sum int64
		for i := range n.Children {
			sum += aggregateRows(&n.Children[i])
		}
		return sum
	}
	rows := n.PlanRows
	for i := range n.Children {
		if r := aggregateRows(&n.Children[i]); r > rows {
			rows = r
		}
	}
	return rows
}
