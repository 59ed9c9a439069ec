// Package docket defines the domain types that flow through an audit run:
// evidence collected by analyzers, opinions rendered by judges, and the
// per-criterion results produced by synthesis.
//
// All types in this package are plain values. Once produced by a stage they
// are treated as immutable; mutation happens only by constructing new values.
package docket

import (
	"fmt"
	"strings"
)

// Persona identifies one of the three adversarial judge roles.
type Persona string

const (
	// PersonaProsecutor scrutinises evidence for gaps and flaws.
	PersonaProsecutor Persona = "prosecutor"

	// PersonaDefense argues for the strongest favorable reading of evidence.
	PersonaDefense Persona = "defense"

	// PersonaTechLead evaluates practical soundness and maintainability.
	PersonaTechLead Persona = "techlead"
)

// Personas returns every judge persona in canonical order.
func Personas() []Persona {
	return []Persona{PersonaProsecutor, PersonaDefense, PersonaTechLead}
}

// Valid reports whether p is a known persona.
func (p Persona) Valid() bool {
	switch p {
	case PersonaProsecutor, PersonaDefense, PersonaTechLead:
		return true
	}
	return false
}

// Payload keys with rule-engine significance. Analyzers set these on
// Evidence.Payload; synthesis rules read them.
const (
	// PayloadSecurityFlaw marks evidence of a confirmed security defect.
	// Value is a bool.
	PayloadSecurityFlaw = "security_flaw_confirmed"

	// PayloadCommitAuthors carries the distinct commit author names found in
	// the target's history. Value is a []string.
	PayloadCommitAuthors = "commit_authors"
)

// Evidence is a single typed fact produced by one analyzer for one rubric
// criterion. An analyzer may emit several facts for the same criterion, so a
// Ref identifies the (source, criterion) pair rather than one item.
type Evidence struct {
	SourceID    string         `json:"source_id"`
	CriterionID string         `json:"criterion_id"`
	Payload     map[string]any `json:"payload,omitempty"`
	Found       bool           `json:"found"`
	Location    string         `json:"location,omitempty"`
	Rationale   string         `json:"rationale,omitempty"`
	Confidence  float64        `json:"confidence"`
}

// Ref returns the stable citation identifier for this evidence. Opinions
// reference evidence by Ref in their CitedEvidence lists.
func (e Evidence) Ref() string {
	return e.SourceID + "/" + e.CriterionID
}

// Validate checks that the evidence is well-formed.
func (e Evidence) Validate() error {
	if e.SourceID == "" {
		return fmt.Errorf("evidence: empty source id")
	}
	if e.CriterionID == "" {
		return fmt.Errorf("evidence %q: empty criterion id", e.SourceID)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("evidence %q: confidence %v outside [0,1]", e.Ref(), e.Confidence)
	}
	return nil
}

// EvidenceBundle is all evidence for one criterion plus the aggregate
// confidence derived from it. Bundles are created once by the evidence
// aggregator and read-only afterward.
type EvidenceBundle struct {
	CriterionID string     `json:"criterion_id"`
	Items       []Evidence `json:"items"`
	Confidence  float64    `json:"confidence"`
	Degraded    bool       `json:"degraded"`
}

// Find returns the evidence with the given citation ref, if present.
func (b EvidenceBundle) Find(ref string) (Evidence, bool) {
	for _, ev := range b.Items {
		if ev.Ref() == ref {
			return ev, true
		}
	}
	return Evidence{}, false
}

// Judge score bounds on the raw 0-10 scale.
const (
	MinJudgeScore = 0
	MaxJudgeScore = 10
)

// FallbackScore is the neutral midpoint assigned to synthetic opinions when
// an evaluator exhausts its retries.
const FallbackScore = 5

// JudicialOpinion is one judge's scored judgment for one criterion. Exactly
// one opinion exists per (judge, criterion) pair once the opinion tier closes;
// missing judges are backfilled with synthetic fallback opinions.
type JudicialOpinion struct {
	JudgeID       string   `json:"judge_id"`
	CriterionID   string   `json:"criterion_id"`
	Score         int      `json:"score"`
	Argument      string   `json:"argument"`
	CitedEvidence []string `json:"cited_evidence,omitempty"`
	Synthetic     bool     `json:"synthetic,omitempty"`
}

// Validate checks the opinion against the schema: known judge, non-empty
// criterion, score within the raw 0-10 scale, and a non-blank argument.
func (o JudicialOpinion) Validate() error {
	if o.JudgeID == "" {
		return fmt.Errorf("opinion: empty judge id")
	}
	if o.CriterionID == "" {
		return fmt.Errorf("opinion from %q: empty criterion id", o.JudgeID)
	}
	if o.Score < MinJudgeScore || o.Score > MaxJudgeScore {
		return fmt.Errorf("opinion %s/%s: score %d outside [%d,%d]",
			o.JudgeID, o.CriterionID, o.Score, MinJudgeScore, MaxJudgeScore)
	}
	if strings.TrimSpace(o.Argument) == "" {
		return fmt.Errorf("opinion %s/%s: empty argument", o.JudgeID, o.CriterionID)
	}
	return nil
}

// SyntheticOpinion builds the neutral fallback opinion used when a judge
// fails to return a valid opinion within the retry budget.
func SyntheticOpinion(judgeID, criterionID string) JudicialOpinion {
	return JudicialOpinion{
		JudgeID:     judgeID,
		CriterionID: criterionID,
		Score:       FallbackScore,
		Argument:    "synthetic fallback opinion: evaluator produced no valid judgment",
		Synthetic:   true,
	}
}

// OpinionBundle is all opinions for one criterion. A bundle with fewer than
// the expected judge count is degraded but still synthesized.
type OpinionBundle struct {
	CriterionID string            `json:"criterion_id"`
	Opinions    []JudicialOpinion `json:"opinions"`
	Degraded    bool              `json:"degraded"`
}

// ByJudge returns the opinion from the given judge, if present.
func (b OpinionBundle) ByJudge(judgeID string) (JudicialOpinion, bool) {
	for _, op := range b.Opinions {
		if op.JudgeID == judgeID {
			return op, true
		}
	}
	return JudicialOpinion{}, false
}

// Final score bounds on the normalised 1-5 scale.
const (
	MinFinalScore = 1
	MaxFinalScore = 5
)

// CriterionResult is the terminal verdict for one criterion: the normalised
// score, the dissent flag, and the ordered list of synthesis rules that fired.
type CriterionResult struct {
	CriterionID    string            `json:"criterion_id"`
	DisplayName    string            `json:"display_name"`
	FinalScore     int               `json:"final_score"`
	Dissent        bool              `json:"dissent"`
	DissentSummary string            `json:"dissent_summary,omitempty"`
	AppliedRules   []string          `json:"applied_rules"`
	Remediation    string            `json:"remediation,omitempty"`
	Opinions       []JudicialOpinion `json:"judge_opinions"`
}

// AuditReport is the terminal output of a run: per-criterion results in
// rubric order plus the overall score on the 1-5 scale.
type AuditReport struct {
	RunID            string            `json:"run_id"`
	Target           string            `json:"target"`
	ExecutiveSummary string            `json:"executive_summary"`
	OverallScore     float64           `json:"overall_score"`
	Criteria         []CriterionResult `json:"criteria"`
	RemediationPlan  string            `json:"remediation_plan"`
	Degraded         bool              `json:"degraded"`
}
