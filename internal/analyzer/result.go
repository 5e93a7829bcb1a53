package analyzer

import (
	"encoding/json"

	"github.com/pglens/pglens/internal/plan"
)

type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Issue is a detected problem. NodePath is a human-readable locator such
// as a relation name, not a positional tree path.
type Issue struct {
	Code     string   `json:"code"`
	Title    string   `json:"title"`
	Severity Severity `json:"severity"`
	Details  string   `json:"details,omitempty"`
	NodePath string   `json:"node_path,omitempty"`
}

// Suggestion is a proposed remediation. Fix, when set, is literal SQL or
// DDL ready to run.
type Suggestion struct {
	Code       string           `json:"code"`
	Title      string           `json:"title"`
	Rationale  string           `json:"rationale,omitempty"`
	Fix        string           `json:"fix,omitempty"`
	Candidates []IndexCandidate `json:"index_candidates,omitempty"`
}

// RuleFailure records a rule that failed mid-evaluation. The analysis
// continues without that rule's contribution.
type RuleFailure struct {
	Rule  string `json:"rule"`
	Error string `json:"error"`
}

// AnalysisResult carries everything one analysis produced. The three rule
// output lists are concatenated across rules, never deduplicated, and are
// always non-nil. RawPlan retains the source document verbatim for
// downstream consumers.
type AnalysisResult struct {
	Query           string           `json:"query,omitempty"`
	Plan            *plan.Plan       `json:"plan"`
	Metrics         plan.Metrics     `json:"metrics"`
	Issues          []Issue          `json:"issues"`
	Suggestions     []Suggestion     `json:"suggestions"`
	IndexCandidates []IndexCandidate `json:"index_candidates"`
	RuleFailures    []RuleFailure    `json:"rule_failures,omitempty"`
	Markdown        string           `json:"markdown_report,omitempty"`
	RawPlan         json.RawMessage  `json:"raw_explain_json,omitempty"`
}
