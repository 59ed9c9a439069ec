// Package report renders a completed audit into its output forms: Markdown
// for humans, JSON for machines, and a styled terminal summary.
package report

import (
	"fmt"
	"strings"

	"tribunal/internal/docket"
)

const scoringNote = "Judge scores are on a 0 to 10 scale. Final scores are normalised to a 1 to 5 scale."

// Markdown renders the report as a Markdown document, one section per
// criterion with scores, dissent, judge opinions, and remediation.
func Markdown(r *docket.AuditReport) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("# Audit Report for %s", r.Target))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("**Executive Summary:** %s", r.ExecutiveSummary))
	lines = append(lines, fmt.Sprintf("**Note:** %s", scoringNote))
	lines = append(lines, fmt.Sprintf("**Overall Score:** %.2f", r.OverallScore))
	if r.Degraded {
		lines = append(lines, "**Coverage:** degraded; some analyzers or judges did not report")
	}
	lines = append(lines, "")

	for _, cr := range r.Criteria {
		lines = append(lines, fmt.Sprintf("## Criterion: %s (%s)", cr.DisplayName, cr.CriterionID))
		lines = append(lines, fmt.Sprintf("Final Score: %d out of 5", cr.FinalScore))
		if cr.DissentSummary != "" {
			lines = append(lines, fmt.Sprintf("Dissent: %s", cr.DissentSummary))
		}
		if len(cr.AppliedRules) > 0 {
			lines = append(lines, fmt.Sprintf("Applied Rules: %s", strings.Join(cr.AppliedRules, ", ")))
		}
		lines = append(lines, "### Judge Opinions:")
		for _, op := range cr.Opinions {
			line := fmt.Sprintf("- **%s**: Score %d out of 10, Argument: %s", op.JudgeID, op.Score, op.Argument)
			if op.Synthetic {
				line += " (synthetic fallback)"
			}
			lines = append(lines, line)
		}
		lines = append(lines, "### Remediation:")
		lines = append(lines, cr.Remediation)
		lines = append(lines, "")
	}

	lines = append(lines, "## Remediation Plan")
	lines = append(lines, r.RemediationPlan)
	return strings.Join(lines, "\n")
}
