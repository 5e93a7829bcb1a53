package analyzer

import (
	"encoding/json"
	"fmt"

	"github.com/pglens/pglens/internal/plan"
)

// Analyzer runs an ordered rule set over parsed plans. It holds no state
// across calls; concurrent use is safe.
type Analyzer struct {
	cfg   plan.Config
	rules []Rule
}

func New(cfg plan.Config) *Analyzer {
	return &Analyzer{cfg: cfg, rules: DefaultRules(cfg)}
}

// NewWithRules builds an analyzer with a caller-chosen rule set.
func NewWithRules(cfg plan.Config, rules []Rule) *Analyzer {
	return &Analyzer{cfg: cfg, rules: rules}
}

// Analyze parses a raw EXPLAIN JSON document and produces the full result,
// including the rendered Markdown report and the verbatim source document.
func (a *Analyzer) Analyze(query string, raw []byte) (*AnalysisResult, error) {
	p, err := plan.Parse(raw)
	if err != nil {
		return nil, err
	}

	result := a.AnalyzePlan(p)
	result.Query = query
	result.RawPlan = json.RawMessage(raw)
	result.Markdown = RenderMarkdown(result)
	return result, nil
}

// AnalyzePlan runs the estimator and every registered rule over an
// already-parsed plan. A failing rule is recorded and skipped; it never
// aborts the remaining rules.
func (a *Analyzer) AnalyzePlan(p *plan.Plan) *AnalysisResult {
	result := &AnalysisResult{
		Plan:            p,
		Metrics:         plan.Estimate(p, a.cfg),
		Issues:          []Issue{},
		Suggestions:     []Suggestion{},
		IndexCandidates: []IndexCandidate{},
	}

	for _, rule := range a.rules {
		res, err := runRule(rule, p)
		if err != nil {
			result.RuleFailures = append(result.RuleFailures, RuleFailure{
				Rule:  rule.Code(),
				Error: err.Error(),
			})
			continue
		}
		result.Issues = append(result.Issues, res.Issues...)
		result.Suggestions = append(result.Suggestions, res.Suggestions...)
		result.IndexCandidates = append(result.IndexCandidates, res.Candidates...)
	}

	result.Suggestions = append(result.Suggestions, metricAdvisories(result.Metrics, a.cfg)...)

	return result
}

func runRule(r Rule, p *plan.Plan) (res RuleResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("rule %s panicked: %v", r.Code(), rec)
		}
	}()
	return r.Evaluate(p), nil
}

// metricAdvisories derives suggestions from whole-plan metrics. These are
// appended after all rule output.
func metricAdvisories(m plan.Metrics, cfg plan.Config) []Suggestion {
	var out []Suggestion

	if m.Slow {
		out = append(out, Suggestion{
			Code:  "SLOW_QUERY_LIMIT",
			Title: "Query is estimated to be slow",
			Rationale: fmt.Sprintf("Estimated execution time %.1fms exceeds the %.0fms threshold. Consider limiting the result set or narrowing predicates.",
				m.EstimatedTimeMs, cfg.SlowMs),
		})
	}
	if m.EstimatedIOMB > cfg.SharedBuffersMB {
		out = append(out, Suggestion{
			Code:  "HIGH_IO_SHARED_BUFFERS",
			Title: "Estimated I/O exceeds shared_buffers",
			Rationale: fmt.Sprintf("Roughly %.1fMB of I/O against %.0fMB of shared_buffers means most reads will miss the cache.",
				m.EstimatedIOMB, cfg.SharedBuffersMB),
		})
	}
	if m.Expensive {
		out = append(out, Suggestion{
			Code:  "EXPENSIVE_QUERY_ANALYZE",
			Title: "Query is expensive",
			Rationale: fmt.Sprintf("Total cost %.1f exceeds the %.0f threshold. Run EXPLAIN ANALYZE to confirm and check table statistics are current.",
				m.TotalCost, cfg.ExpensiveCost),
		})
	}
	return out
}
