package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tribunal/internal/docket"
)

func sampleReport() *docket.AuditReport {
	return &docket.AuditReport{
		RunID:            "run-1",
		Target:           "github.com/acme/widget",
		ExecutiveSummary: "Automated audit completed. See detailed criteria below.",
		OverallScore:     3.5,
		RemediationPlan:  "Apply remediation steps per criterion to improve architecture and compliance.",
		Degraded:         true,
		Criteria: []docket.CriterionResult{
			{
				CriterionID:    "code_quality",
				DisplayName:    "Code Quality",
				FinalScore:     4,
				AppliedRules:   []string{"weighted_average"},
				Remediation:    "To improve Code Quality:\n- Aim for: small reviewed changes\n- Avoid: untested pushes\n- Next step: add CI gates",
				Opinions: []docket.JudicialOpinion{
					{JudgeID: "defense", CriterionID: "code_quality", Score: 8, Argument: "solid work", CitedEvidence: []string{"git/code_quality"}},
					{JudgeID: "prosecutor", CriterionID: "code_quality", Score: 7, Argument: "minor gaps"},
				},
			},
			{
				CriterionID:    "secret_handling",
				DisplayName:    "Secret Handling",
				FinalScore:     3,
				Dissent:        true,
				DissentSummary: "Significant disagreement among judges.",
				AppliedRules:   []string{"security_override", "weighted_average", "dissent_check"},
				Remediation:    "To improve Secret Handling:\n- Next step: rotate the committed key",
				Opinions: []docket.JudicialOpinion{
					{JudgeID: "techlead", CriterionID: "secret_handling", Score: 5, Argument: "fallback", Synthetic: true},
				},
			},
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleReport())

	wantFragments := []string{
		"# Audit Report for github.com/acme/widget",
		"**Overall Score:** 3.50",
		"## Criterion: Code Quality (code_quality)",
		"Final Score: 4 out of 5",
		"- **defense**: Score 8 out of 10, Argument: solid work",
		"Dissent: Significant disagreement among judges.",
		"(synthetic fallback)",
		"## Remediation Plan",
		"degraded",
	}
	for _, frag := range wantFragments {
		if !strings.Contains(md, frag) {
			t.Errorf("Markdown() missing %q", frag)
		}
	}

	// Criteria render in report order.
	if strings.Index(md, "Code Quality") > strings.Index(md, "Secret Handling") {
		t.Error("Markdown() criteria out of order")
	}
}

func TestBuildVerdict(t *testing.T) {
	v := BuildVerdict(sampleReport())

	if v.ScoringNote == "" {
		t.Error("ScoringNote is empty")
	}
	if len(v.Criteria) != 2 {
		t.Fatalf("len(Criteria) = %d, want 2", len(v.Criteria))
	}

	cq := v.Criteria[0]
	if cq.FinalScoreText != "4 out of 5" {
		t.Errorf("FinalScoreText = %q, want %q", cq.FinalScoreText, "4 out of 5")
	}
	if len(cq.Remediation) != 4 {
		t.Errorf("Remediation = %v, want 4 lines", cq.Remediation)
	}
	if cq.JudgeOpinions[0].ScoreText != "8 out of 10" {
		t.Errorf("ScoreText = %q, want %q", cq.JudgeOpinions[0].ScoreText, "8 out of 10")
	}

	sh := v.Criteria[1]
	if !sh.Dissent || sh.DissentSummary == "" {
		t.Errorf("dissent fields = %v %q, want dissent carried through", sh.Dissent, sh.DissentSummary)
	}
	if !sh.JudgeOpinions[0].Synthetic {
		t.Error("Synthetic flag dropped from opinion")
	}
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verdict.json")
	if err := WriteJSON(sampleReport(), path); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	var v Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if v.Target != "github.com/acme/widget" || v.OverallScore != 3.5 {
		t.Errorf("round-tripped verdict = %+v", v)
	}
	if !v.Degraded {
		t.Error("Degraded flag dropped")
	}
}

func TestSummary(t *testing.T) {
	out := Summary(sampleReport())

	for _, frag := range []string{"Audit:", "Code Quality", "3.50/5", "dissent"} {
		if !strings.Contains(out, frag) {
			t.Errorf("Summary() missing %q", frag)
		}
	}
}
