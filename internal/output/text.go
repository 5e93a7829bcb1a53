package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/pglens/pglens/internal/analyzer"
	"github.com/pglens/pglens/internal/catalog"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

type textWriter struct {
	w   io.Writer
	err error
}

func (tw *textWriter) printf(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.w, format, args...)
}

func RenderAnalysisText(w io.Writer, result *analyzer.AnalysisResult) error {
	tw := &textWriter{w: w}
	m := result.Metrics

	tw.printf("%s%sPlan Summary%s\n\n", colorBold, colorCyan, colorReset)
	tw.printf("  Total Cost:       %.2f\n", m.TotalCost)
	tw.printf("  Estimated Time:   %.2f ms\n", m.EstimatedTimeMs)
	tw.printf("  Estimated I/O:    %.2f MB\n", m.EstimatedIOMB)
	tw.printf("  Estimated Memory: %.2f MB\n", m.EstimatedMemoryMB)
	tw.printf("  Estimated Rows:   %d\n", m.EstimatedRows)
	if m.ParallelWorkers > 1 {
		tw.printf("  Parallel Workers: %d\n", m.ParallelWorkers)
	}
	if len(m.ScanTypes) > 0 {
		tw.printf("  Scans:            %s\n", strings.Join(m.ScanTypes, ", "))
	}
	if len(m.JoinTypes) > 0 {
		tw.printf("  Joins:            %s\n", strings.Join(m.JoinTypes, ", "))
	}
	if result.Plan != nil && result.Plan.ExecutionTimeMs > 0 {
		tw.printf("  Execution Time:   %.3f ms\n", result.Plan.ExecutionTimeMs)
	}
	if result.Plan != nil && result.Plan.PlanningTimeMs > 0 {
		tw.printf("  Planning Time:    %.3f ms\n", result.Plan.PlanningTimeMs)
	}
	if m.Expensive {
		tw.printf("  %sExpensive:        yes%s\n", colorRed, colorReset)
	}
	if m.Slow {
		tw.printf("  %sSlow:             yes%s\n", colorYellow, colorReset)
	}
	if m.LargeTable {
		tw.printf("  %sLarge Table:      yes%s\n", colorYellow, colorReset)
	}
	tw.printf("\n")

	if len(result.Issues) == 0 {
		tw.printf("%s%sNo issues found.%s\n", colorBold, colorGreen, colorReset)
	} else {
		tw.printf("%s%sIssues (%d)%s\n\n", colorBold, colorCyan, len(result.Issues), colorReset)
		for i, issue := range result.Issues {
			label, color := severityFormat(issue.Severity)
			tw.printf("  %s%-8s%s %s\n", color, label, colorReset, issue.Title)
			if issue.Details != "" {
				tw.printf("           %s%s%s\n", colorDim, issue.Details, colorReset)
			}
			if i < len(result.Issues)-1 {
				tw.printf("\n")
			}
		}
	}

	if len(result.Suggestions) > 0 {
		tw.printf("\n%s%sSuggestions (%d)%s\n\n", colorBold, colorCyan, len(result.Suggestions), colorReset)
		for i, s := range result.Suggestions {
			tw.printf("  %s%s%s\n", colorBold, s.Title, colorReset)
			if s.Rationale != "" {
				tw.printf("  %s%s%s\n", colorDim, s.Rationale, colorReset)
			}
			for _, line := range fixLines(s.Fix) {
				tw.printf("  %s→ %s%s\n", colorDim, line, colorReset)
			}
			if i < len(result.Suggestions)-1 {
				tw.printf("\n")
			}
		}
	}

	if len(result.IndexCandidates) > 0 {
		tw.printf("\n%s%sIndex Candidates (%d)%s\n\n", colorBold, colorCyan, len(result.IndexCandidates), colorReset)
		for _, c := range result.IndexCandidates {
			ddl, err := c.DDL()
			if err != nil {
				continue
			}
			tw.printf("  %s\n", ddl)
		}
	}

	if len(result.RuleFailures) > 0 {
		tw.printf("\n")
		for _, f := range result.RuleFailures {
			tw.printf("  %srule %s skipped: %s%s\n", colorDim, f.Rule, f.Error, colorReset)
		}
	}
	return tw.err
}

func fixLines(fix string) []string {
	if fix == "" {
		return nil
	}
	return strings.Split(fix, "\n")
}

func severityFormat(s analyzer.Severity) (string, string) {
	switch s {
	case analyzer.SeverityCritical:
		return "CRITICAL", colorRed
	case analyzer.SeverityHigh:
		return "HIGH", colorRed
	case analyzer.SeverityMedium:
		return "MEDIUM", colorYellow
	default:
		return "LOW", colorCyan
	}
}

func RenderTableText(w io.Writer, info *catalog.TableInfo) error {
	tw := &textWriter{w: w}

	tw.printf("%s%s%s.%s%s\n\n", colorBold, colorCyan, info.Schema, info.Table, colorReset)
	tw.printf("  Estimated Rows: %d\n", info.EstimatedRows)

	if len(info.Columns) > 0 {
		tw.printf("\n%s%sColumns%s\n\n", colorBold, colorCyan, colorReset)
		for _, col := range info.Columns {
			tw.printf("  %-24s %s\n", col.Name, col.DataType)
		}
	}

	if len(info.Indexes) == 0 {
		tw.printf("\n%s%sNo indexes.%s\n", colorBold, colorYellow, colorReset)
	} else {
		tw.printf("\n%s%sIndexes%s\n\n", colorBold, colorCyan, colorReset)
		for _, idx := range info.Indexes {
			tw.printf("  %s\n", idx.Definition)
		}
	}

	if len(info.Stats) > 0 {
		tw.printf("\n%s%sColumn Statistics%s\n\n", colorBold, colorCyan, colorReset)
		for _, st := range info.Stats {
			tw.printf("  %-24s n_distinct=%g null_frac=%g\n", st.Column, st.NDistinct, st.NullFrac)
		}
	}

	if len(info.UnindexedFilterColumns) > 0 {
		tw.printf("\n  %sUnindexed filter columns: %s%s\n",
			colorYellow, strings.Join(info.UnindexedFilterColumns, ", "), colorReset)
	}
	return tw.err
}
