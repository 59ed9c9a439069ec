package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"tribunal/internal/docket"
)

var (
	summaryTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("12"))

	summaryMutedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("8"))

	summaryGoodStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("10"))

	summaryWarnStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("11"))

	summaryBadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	summaryBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			Padding(0, 1)
)

// Summary renders a compact styled terminal summary of the report: one line
// per criterion with a color-coded score, plus the overall verdict.
func Summary(r *docket.AuditReport) string {
	var b strings.Builder

	b.WriteString(summaryTitleStyle.Render("Audit: "+r.Target) + "\n")
	b.WriteString(summaryMutedStyle.Render(r.ExecutiveSummary) + "\n\n")

	for _, cr := range r.Criteria {
		score := scoreStyle(cr.FinalScore).Render(fmt.Sprintf("%d/5", cr.FinalScore))
		line := fmt.Sprintf("%-28s %s", cr.DisplayName, score)
		if cr.Dissent {
			line += summaryWarnStyle.Render("  (dissent)")
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	overall := fmt.Sprintf("Overall: %.2f/5", r.OverallScore)
	if r.Degraded {
		overall += summaryWarnStyle.Render("  degraded coverage")
	}
	b.WriteString(summaryTitleStyle.Render(overall) + "\n")

	return summaryBoxStyle.Render(b.String())
}

func scoreStyle(score int) lipgloss.Style {
	switch {
	case score >= 4:
		return summaryGoodStyle
	case score >= 3:
		return summaryWarnStyle
	default:
		return summaryBadStyle
	}
}
