package collab

import (
	"context"
	"fmt"
	"math"
	"strings"

	"tribunal/internal/docket"
)

// Policy parameterizes a judge persona. The three personas share the same
// scoring code; only these knobs differ.
type Policy struct {
	// Bias shifts the raw score on the 0-10 scale. Negative for skeptical
	// personas, positive for charitable ones.
	Bias float64
	// FoundWeight and ConfidenceWeight split the raw score between how much
	// of the evidence was found and how confident the analyzers were. They
	// should sum to 1.
	FoundWeight      float64
	ConfidenceWeight float64
	// FlawPenalty is subtracted once when the bundle carries a confirmed
	// security defect.
	FlawPenalty int
	// CiteMissing makes the persona cite absent-artifact evidence in its
	// argument, the prosecutor's habit.
	CiteMissing bool
}

// PolicyFor returns the canonical policy for a persona.
func PolicyFor(p docket.Persona) Policy {
	switch p {
	case docket.PersonaProsecutor:
		return Policy{Bias: -1.5, FoundWeight: 0.7, ConfidenceWeight: 0.3, FlawPenalty: 4, CiteMissing: true}
	case docket.PersonaDefense:
		return Policy{Bias: 1.5, FoundWeight: 0.5, ConfidenceWeight: 0.5, FlawPenalty: 1}
	default:
		return Policy{Bias: 0, FoundWeight: 0.6, ConfidenceWeight: 0.4, FlawPenalty: 2}
	}
}

// Judge scores evidence bundles according to a persona policy. It satisfies
// stage.EvaluatorTool.
type Judge struct {
	policy Policy
}

// NewJudge creates a Judge with the given policy.
func NewJudge(policy Policy) *Judge {
	return &Judge{policy: policy}
}

// NewPersonaJudge creates a Judge with the canonical policy for persona.
func NewPersonaJudge(persona docket.Persona) *Judge {
	return NewJudge(PolicyFor(persona))
}

// Judge produces an opinion from the bundle. Scoring is a weighted blend of
// the found ratio and the aggregate confidence, shifted by the persona bias
// and penalized for confirmed security defects.
func (j *Judge) Judge(ctx context.Context, bundle docket.EvidenceBundle, persona docket.Persona) (docket.JudicialOpinion, error) {
	if err := ctx.Err(); err != nil {
		return docket.JudicialOpinion{}, err
	}

	if len(bundle.Items) == 0 {
		return docket.JudicialOpinion{
			JudgeID:     string(persona),
			CriterionID: bundle.CriterionID,
			Score:       clampScore(int(math.Round(docket.FallbackScore + j.policy.Bias))),
			Argument:    "no evidence was collected for this criterion",
		}, nil
	}

	found := 0
	flawed := false
	var cited []string
	seen := make(map[string]bool, len(bundle.Items))
	cite := func(ref string) {
		// Items can share a ref, and an item can be cited for more than one
		// reason; CitedEvidence stays a set.
		if !seen[ref] {
			seen[ref] = true
			cited = append(cited, ref)
		}
	}
	for _, item := range bundle.Items {
		if item.Found {
			found++
		}
		if flag, ok := item.Payload[docket.PayloadSecurityFlaw].(bool); ok && flag {
			flawed = true
			cite(item.Ref())
		}
		if j.policy.CiteMissing && !item.Found {
			cite(item.Ref())
		}
	}
	if len(cited) == 0 {
		// Charitable personas cite the supporting evidence instead.
		for _, item := range bundle.Items {
			if item.Found {
				cite(item.Ref())
			}
		}
	}

	foundRatio := float64(found) / float64(len(bundle.Items))
	raw := (j.policy.FoundWeight*foundRatio + j.policy.ConfidenceWeight*bundle.Confidence) * 10
	raw += j.policy.Bias
	score := clampScore(int(math.Round(raw)))
	if flawed {
		score = clampScore(score - j.policy.FlawPenalty)
	}

	return docket.JudicialOpinion{
		JudgeID:       string(persona),
		CriterionID:   bundle.CriterionID,
		Score:         score,
		Argument:      argument(persona, found, len(bundle.Items), flawed),
		CitedEvidence: cited,
	}, nil
}

func argument(persona docket.Persona, found, total int, flawed bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d of %d evidence items confirmed", found, total)
	if flawed {
		sb.WriteString("; a security defect is confirmed by the evidence")
	}
	switch persona {
	case docket.PersonaProsecutor:
		sb.WriteString("; gaps weigh against the project")
	case docket.PersonaDefense:
		sb.WriteString("; the confirmed work deserves credit")
	case docket.PersonaTechLead:
		sb.WriteString("; judged on maintainability of what ships")
	}
	return sb.String()
}

func clampScore(s int) int {
	if s < docket.MinJudgeScore {
		return docket.MinJudgeScore
	}
	if s > docket.MaxJudgeScore {
		return docket.MaxJudgeScore
	}
	return s
}
