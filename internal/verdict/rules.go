// Package verdict implements the synthesis rule engine: an ordered,
// deterministic list of rules that reconciles the three judge opinions for
// each criterion into a single CriterionResult, and assembles the final
// AuditReport.
//
// Rules are explicit objects with Matches/Apply methods so firing order and
// effects are independently testable and new rules can be added without
// touching the engine loop.
package verdict

import (
	"sort"

	"tribunal/internal/docket"
	"tribunal/internal/rubric"
)

// Rule names recorded in CriterionResult.AppliedRules, in firing order.
const (
	RuleSecurityOverride      = "security_override"
	RuleFactSupremacy         = "fact_supremacy"
	RuleFunctionalityWeight   = "functionality_weight"
	RuleWeightedAverage       = "weighted_average"
	RuleCollaborationOverride = "collaboration_override"
	RuleDissentCheck          = "dissent_check"
)

// DissentSummary is the one-line disagreement annotation.
const DissentSummary = "Significant disagreement among judges."

// Config holds the named constants of the rule engine. The variance
// threshold and normalization divisor are configuration, not literals; the
// defaults document the authoritative rubric's current values.
type Config struct {
	// VarianceThreshold flags dissent when max-min judge score exceeds it.
	VarianceThreshold int
	// ScoreDivisor maps the 0-10 judge scale onto the 1-5 final scale.
	ScoreDivisor float64
	// SecurityCap is the highest final score a criterion with a confirmed
	// security defect can receive.
	SecurityCap int
	// CollaborationCap is the highest final score when the commit history
	// shows a single author and the rubric enables the override.
	CollaborationCap int
	// TechLeadWeight is the weight multiplier for the TechLead opinion on
	// architecture-tagged criteria.
	TechLeadWeight float64
}

// DefaultConfig returns the documented rule constants.
func DefaultConfig() Config {
	return Config{
		VarianceThreshold: 2,
		ScoreDivisor:      2,
		SecurityCap:       3,
		CollaborationCap:  3,
		TechLeadWeight:    2,
	}
}

// Context is the working state a rule list evaluates for one criterion.
// Rules mutate only the scoring fields; the bundles are read-only inputs.
type Context struct {
	Criterion rubric.Criterion
	Toggles   rubric.Rules
	Evidence  docket.EvidenceBundle
	Opinions  []docket.JudicialOpinion // sorted by judge id for determinism
	Cfg       Config

	weights  map[string]float64 // judge id -> averaging weight
	excluded map[string]bool    // judge scores discarded from the average
	capScore int                // 0 means no cap
	notes    []string
	applied  []string

	finalScore int
	dissent    bool
	summary    string
}

// newContext prepares the working state for one criterion. Opinions are
// sorted by judge id so the outcome is independent of merge arrival order.
func newContext(c rubric.Criterion, toggles rubric.Rules, cfg Config, eb docket.EvidenceBundle, ob docket.OpinionBundle) *Context {
	ops := append([]docket.JudicialOpinion(nil), ob.Opinions...)
	sort.Slice(ops, func(i, j int) bool { return ops[i].JudgeID < ops[j].JudgeID })

	weights := make(map[string]float64, len(ops))
	for _, op := range ops {
		weights[op.JudgeID] = 1
	}

	return &Context{
		Criterion: c,
		Toggles:   toggles,
		Evidence:  eb,
		Opinions:  ops,
		Cfg:       cfg,
		weights:   weights,
		excluded:  make(map[string]bool),
	}
}

func (c *Context) opinionBy(persona docket.Persona) (docket.JudicialOpinion, bool) {
	for _, op := range c.Opinions {
		if op.JudgeID == string(persona) {
			return op, true
		}
	}
	return docket.JudicialOpinion{}, false
}

// applyCap lowers the pending cap, keeping the strictest one.
func (c *Context) applyCap(cap int) {
	if c.capScore == 0 || cap < c.capScore {
		c.capScore = cap
	}
}

// Rule is one step of the ordered synthesis list. Matches must be free of
// side effects; Apply records its name in applied_rules when it fires.
type Rule interface {
	// Name returns the identifier recorded in applied_rules.
	Name() string
	// Matches reports whether the rule fires for this context.
	Matches(*Context) bool
	// Apply mutates the context's scoring state.
	Apply(*Context)
}

// securityOverride clamps the final score when the Prosecutor cites
// evidence of a confirmed security defect. Later score-raising rules cannot
// lift the cap.
type securityOverride struct{}

func (securityOverride) Name() string { return RuleSecurityOverride }

func (securityOverride) Matches(c *Context) bool {
	if !c.Toggles.SecurityOverride {
		return false
	}
	op, ok := c.opinionBy(docket.PersonaProsecutor)
	if !ok {
		return false
	}
	for _, ref := range op.CitedEvidence {
		// A ref can cover several items from the same source; any flagged
		// one confirms the defect.
		for _, ev := range c.Evidence.Items {
			if ev.Ref() != ref {
				continue
			}
			if flagged, _ := ev.Payload[docket.PayloadSecurityFlaw].(bool); flagged {
				return true
			}
		}
	}
	return false
}

func (securityOverride) Apply(c *Context) {
	c.applyCap(c.Cfg.SecurityCap)
	c.notes = append(c.notes, "confirmed security defect caps the score")
}

// factSupremacy discards a Defense opinion whose claim contradicts the
// evidence: citing an artifact the detectives marked absent. Detective
// facts outrank judge opinions.
type factSupremacy struct{}

func (factSupremacy) Name() string { return RuleFactSupremacy }

func (factSupremacy) Matches(c *Context) bool {
	if !c.Toggles.FactSupremacy {
		return false
	}
	op, ok := c.opinionBy(docket.PersonaDefense)
	if !ok {
		return false
	}
	for _, ref := range op.CitedEvidence {
		for _, ev := range c.Evidence.Items {
			if ev.Ref() == ref && !ev.Found {
				return true
			}
		}
	}
	return false
}

func (factSupremacy) Apply(c *Context) {
	c.excluded[string(docket.PersonaDefense)] = true
	c.notes = append(c.notes, "defense opinion contradicts evidence and is discarded")
}

// functionalityWeight doubles the TechLead's weight on architecture-tagged
// criteria.
type functionalityWeight struct{}

func (functionalityWeight) Name() string { return RuleFunctionalityWeight }

func (functionalityWeight) Matches(c *Context) bool {
	if !c.Toggles.FunctionalityWeight || c.Criterion.Tag != rubric.TagArchitecture {
		return false
	}
	_, ok := c.opinionBy(docket.PersonaTechLead)
	return ok
}

func (functionalityWeight) Apply(c *Context) {
	c.weights[string(docket.PersonaTechLead)] = c.Cfg.TechLeadWeight
}

// weightedAverage always fires: it computes the weighted mean of the
// remaining judge scores and maps it onto the 1-5 scale, honoring any cap
// set by earlier rules.
type weightedAverage struct{}

func (weightedAverage) Name() string { return RuleWeightedAverage }

func (weightedAverage) Matches(*Context) bool { return true }

func (weightedAverage) Apply(c *Context) {
	sum, weightSum := 0.0, 0.0
	for _, op := range c.Opinions {
		if c.excluded[op.JudgeID] {
			continue
		}
		w := c.weights[op.JudgeID]
		sum += w * float64(op.Score)
		weightSum += w
	}

	final := docket.MinFinalScore
	if weightSum > 0 {
		avg := sum / weightSum
		final = clamp(roundHalfUp(avg/c.Cfg.ScoreDivisor), docket.MinFinalScore, docket.MaxFinalScore)
	} else {
		c.notes = append(c.notes, "no usable opinions; floor score assigned")
	}
	if c.capScore > 0 && final > c.capScore {
		final = c.capScore
	}
	c.finalScore = final
}

// collaborationOverride caps the final score when repository evidence shows
// a single commit author. Enabled per rubric.
type collaborationOverride struct{}

func (collaborationOverride) Name() string { return RuleCollaborationOverride }

func (collaborationOverride) Matches(c *Context) bool {
	if !c.Toggles.CollaborationOverride {
		return false
	}
	for _, ev := range c.Evidence.Items {
		if authors, ok := ev.Payload[docket.PayloadCommitAuthors].([]string); ok && len(authors) == 1 {
			return true
		}
	}
	return false
}

func (collaborationOverride) Apply(c *Context) {
	if c.finalScore > c.Cfg.CollaborationCap {
		c.finalScore = c.Cfg.CollaborationCap
	}
	c.notes = append(c.notes, "single contributor in commit history caps the score")
}

// dissentCheck annotates the result when pre-override judge scores diverge
// beyond the variance threshold. It never changes the final score.
type dissentCheck struct{}

func (dissentCheck) Name() string { return RuleDissentCheck }

func (dissentCheck) Matches(c *Context) bool {
	if len(c.Opinions) == 0 {
		return false
	}
	lo, hi := c.Opinions[0].Score, c.Opinions[0].Score
	for _, op := range c.Opinions[1:] {
		if op.Score < lo {
			lo = op.Score
		}
		if op.Score > hi {
			hi = op.Score
		}
	}
	return hi-lo > c.Cfg.VarianceThreshold
}

func (dissentCheck) Apply(c *Context) {
	c.dissent = true
	c.summary = DissentSummary
}

// defaultRules returns the rule list in its documented firing order.
func defaultRules() []Rule {
	return []Rule{
		securityOverride{},
		factSupremacy{},
		functionalityWeight{},
		weightedAverage{},
		collaborationOverride{},
		dissentCheck{},
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// roundHalfUp rounds to the nearest integer with halves away from zero,
// matching the documented normalization examples (5/2 -> 3).
func roundHalfUp(v float64) int {
	if v >= 0 {
		return int(v + 0.5)
	}
	return -int(-v + 0.5)
}
