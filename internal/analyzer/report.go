package analyzer

import (
	"fmt"
	"strings"
)

// RenderMarkdown produces the report with its three fixed sections:
// issues, suggestions, index candidates, in that order. Empty sections
// render an explicit placeholder line. Output is deterministic for a
// given result.
func RenderMarkdown(res *AnalysisResult) string {
	sections := []string{
		renderHeader(res),
		renderIssues(res.Issues),
		renderSuggestions(res.Suggestions),
		renderCandidates(res.IndexCandidates),
	}
	return strings.Join(sections, "\n\n") + "\n"
}

func renderHeader(res *AnalysisResult) string {
	var b strings.Builder
	b.WriteString("# Query Analysis Report")

	if res.Query != "" {
		b.WriteString("\n\n```sql\n")
		b.WriteString(res.Query)
		b.WriteString("\n```")
	}

	var timing []string
	if res.Plan != nil {
		if res.Plan.PlanningTimeMs > 0 {
			timing = append(timing, fmt.Sprintf("Planning time: %.2f ms", res.Plan.PlanningTimeMs))
		}
		if res.Plan.ExecutionTimeMs > 0 {
			timing = append(timing, fmt.Sprintf("Execution time: %.2f ms", res.Plan.ExecutionTimeMs))
		}
	}
	if len(timing) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(timing, "\n"))
	}

	return b.String()
}

func renderIssues(issues []Issue) string {
	if len(issues) == 0 {
		return "**No issues found.**"
	}
	lines := []string{"### Issues"}
	for _, it := range issues {
		lines = append(lines, fmt.Sprintf("- **[%s] %s** (code=%s)\n\n  %s",
			strings.ToUpper(it.Severity.String()), it.Title, it.Code, it.Details))
	}
	return strings.Join(lines, "\n")
}

func renderSuggestions(sugs []Suggestion) string {
	if len(sugs) == 0 {
		return "**No suggestions.**"
	}
	lines := []string{"### Suggestions"}
	for _, s := range sugs {
		fix := s.Fix
		if fix == "" {
			fix = "-- see rationale above"
		}
		lines = append(lines, fmt.Sprintf("- **%s** (code=%s)\n\n  %s\n\n  ```sql\n%s\n  ```",
			s.Title, s.Code, s.Rationale, indentLines(fix, "  ")))
	}
	return strings.Join(lines, "\n")
}

func renderCandidates(cands []IndexCandidate) string {
	if len(cands) == 0 {
		return "**No index candidates.**"
	}
	lines := []string{"### Index Candidates"}
	for _, c := range cands {
		ddl, err := c.DDL()
		if err != nil {
			continue
		}
		lines = append(lines, "- "+ddl)
	}
	return strings.Join(lines, "\n")
}

func indentLines(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
