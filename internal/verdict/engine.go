package verdict

import (
	"fmt"
	"math"

	"tribunal/internal/docket"
	"tribunal/internal/rubric"
)

// Engine evaluates the ordered rule list per criterion. Given identical
// closed bundles it produces bit-identical results.
type Engine struct {
	cfg   Config
	rules []Rule
}

// NewEngine creates an engine with the default rule order.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, rules: defaultRules()}
}

// NewEngineWithRules creates an engine with a custom ordered rule list.
// Used by tests to exercise individual rules.
func NewEngineWithRules(cfg Config, rules []Rule) *Engine {
	return &Engine{cfg: cfg, rules: rules}
}

// Synthesize reconciles one criterion's opinions against its evidence and
// returns the terminal CriterionResult.
func (e *Engine) Synthesize(c rubric.Criterion, toggles rubric.Rules, eb docket.EvidenceBundle, ob docket.OpinionBundle) docket.CriterionResult {
	ctx := newContext(c, toggles, e.cfg, eb, ob)

	for _, r := range e.rules {
		if r.Matches(ctx) {
			r.Apply(ctx)
			ctx.applied = append(ctx.applied, r.Name())
		}
	}

	remediation := c.Remediation()
	for _, note := range ctx.notes {
		remediation += fmt.Sprintf("- %s.\n", capitalize(note))
	}

	return docket.CriterionResult{
		CriterionID:    c.ID,
		DisplayName:    c.DisplayName,
		FinalScore:     ctx.finalScore,
		Dissent:        ctx.dissent,
		DissentSummary: ctx.summary,
		AppliedRules:   append([]string(nil), ctx.applied...),
		Remediation:    remediation,
		Opinions:       append([]docket.JudicialOpinion(nil), ctx.Opinions...),
	}
}

// Overall computes the report-level score: the arithmetic mean of the final
// scores, rounded to two decimals. An empty result list scores zero.
func Overall(results []docket.CriterionResult) float64 {
	if len(results) == 0 {
		return 0
	}
	sum := 0
	for _, r := range results {
		sum += r.FinalScore
	}
	mean := float64(sum) / float64(len(results))
	return math.Round(mean*100) / 100
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
