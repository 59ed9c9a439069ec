package verdict

import (
	"context"
	"fmt"

	"tribunal/internal/docket"
	"tribunal/internal/rubric"
	"tribunal/internal/stage"
	"tribunal/internal/state"
)

// StageID is the graph node id of the synthesis stage.
const StageID = "synthesis"

// Stage is the terminal graph node: it runs the rule engine over every
// criterion's closed bundles and contributes the results map.
type Stage struct {
	rubric *rubric.Rubric
	engine *Engine
}

// NewStage creates the synthesis stage for a rubric.
func NewStage(r *rubric.Rubric, cfg Config) *Stage {
	return &Stage{rubric: r, engine: NewEngine(cfg)}
}

// ID implements stage.Stage.
func (s *Stage) ID() string { return StageID }

// Run synthesizes one CriterionResult per rubric criterion. It degrades
// when any input bundle was degraded and never fails: missing bundles are
// treated as empty, which the rules score at the floor.
func (s *Stage) Run(_ context.Context, snap state.Snapshot) (state.Delta, stage.Status) {
	results := make(map[string]docket.CriterionResult, len(s.rubric.Criteria))
	degraded := 0

	for _, crit := range s.rubric.Criteria {
		if crit.DisplayName == "" {
			crit.DisplayName = s.rubric.DisplayName(crit.ID)
		}

		eb, ok := snap.EvidenceBundles[crit.ID]
		if !ok {
			eb = docket.EvidenceBundle{CriterionID: crit.ID, Degraded: true}
		}
		ob, ok := snap.OpinionBundles[crit.ID]
		if !ok {
			ob = docket.OpinionBundle{CriterionID: crit.ID, Degraded: true}
		}
		if eb.Degraded || ob.Degraded {
			degraded++
		}

		results[crit.ID] = s.engine.Synthesize(crit, s.rubric.Rules, eb, ob)
	}

	delta := state.Delta{Results: results}
	if degraded > 0 {
		return delta, stage.Degraded(fmt.Sprintf("%d of %d criteria synthesized from degraded bundles", degraded, len(results)))
	}
	return delta, stage.Ok()
}

// BuildReport assembles the terminal AuditReport from synthesized results,
// ordering criteria by rubric order.
func BuildReport(runID, target string, r *rubric.Rubric, snap state.Snapshot, degraded bool) docket.AuditReport {
	criteria := make([]docket.CriterionResult, 0, len(r.Criteria))
	for _, c := range r.Criteria {
		if res, ok := snap.Results[c.ID]; ok {
			criteria = append(criteria, res)
		}
	}

	return docket.AuditReport{
		RunID:            runID,
		Target:           target,
		ExecutiveSummary: "Automated audit completed. See detailed criteria below.",
		OverallScore:     Overall(criteria),
		Criteria:         criteria,
		RemediationPlan: "Apply remediation steps per criterion to improve " +
			"architecture and compliance.",
		Degraded: degraded,
	}
}
