package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"tribunal/internal/docket"
)

// Verdict is the machine-readable report shape. Score labels carry their
// scale so downstream consumers cannot confuse the 0-10 judge scale with
// the 1-5 final scale.
type Verdict struct {
	RunID            string            `json:"run_id"`
	Target           string            `json:"target"`
	ExecutiveSummary string            `json:"executive_summary"`
	OverallScore     float64           `json:"overall_score"`
	ScoringNote      string            `json:"scoring_note"`
	Degraded         bool              `json:"degraded"`
	Criteria         []VerdictCriteria `json:"criteria"`
	RemediationPlan  string            `json:"remediation_plan"`
}

// VerdictCriteria is one criterion's entry in the JSON verdict.
type VerdictCriteria struct {
	CriterionID    string           `json:"criterion_id"`
	DisplayName    string           `json:"display_name"`
	FinalScoreText string           `json:"final_score_label"`
	FinalScore     int              `json:"final_score"`
	Dissent        bool             `json:"dissent"`
	DissentSummary string           `json:"dissent_summary,omitempty"`
	AppliedRules   []string         `json:"applied_rules"`
	JudgeOpinions  []VerdictOpinion `json:"judge_opinions"`
	Remediation    []string         `json:"remediation"`
}

// VerdictOpinion is one judge's entry in the JSON verdict.
type VerdictOpinion struct {
	Judge         string   `json:"judge"`
	CriterionID   string   `json:"criterion_id"`
	ScoreText     string   `json:"score_label"`
	Score         int      `json:"score"`
	Argument      string   `json:"argument"`
	CitedEvidence []string `json:"cited_evidence"`
	Synthetic     bool     `json:"synthetic,omitempty"`
}

// BuildVerdict converts an AuditReport into its JSON shape.
func BuildVerdict(r *docket.AuditReport) Verdict {
	v := Verdict{
		RunID:            r.RunID,
		Target:           r.Target,
		ExecutiveSummary: r.ExecutiveSummary,
		OverallScore:     r.OverallScore,
		ScoringNote:      scoringNote,
		Degraded:         r.Degraded,
		RemediationPlan:  r.RemediationPlan,
	}
	for _, cr := range r.Criteria {
		vc := VerdictCriteria{
			CriterionID:    cr.CriterionID,
			DisplayName:    cr.DisplayName,
			FinalScoreText: fmt.Sprintf("%d out of 5", cr.FinalScore),
			FinalScore:     cr.FinalScore,
			Dissent:        cr.Dissent,
			DissentSummary: cr.DissentSummary,
			AppliedRules:   cr.AppliedRules,
			Remediation:    splitLines(cr.Remediation),
		}
		for _, op := range cr.Opinions {
			vc.JudgeOpinions = append(vc.JudgeOpinions, VerdictOpinion{
				Judge:         op.JudgeID,
				CriterionID:   op.CriterionID,
				ScoreText:     fmt.Sprintf("%d out of 10", op.Score),
				Score:         op.Score,
				Argument:      op.Argument,
				CitedEvidence: op.CitedEvidence,
				Synthetic:     op.Synthetic,
			})
		}
		v.Criteria = append(v.Criteria, vc)
	}
	return v
}

// WriteJSON writes the verdict to path, indented.
func WriteJSON(r *docket.AuditReport, path string) error {
	data, err := json.MarshalIndent(BuildVerdict(r), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding verdict: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing verdict: %w", err)
	}
	return nil
}

func splitLines(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
