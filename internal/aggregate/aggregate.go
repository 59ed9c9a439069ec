// Package aggregate implements the two fan-in stages of the pipeline: the
// evidence aggregator and the opinions aggregator. Both are pure functions
// over the snapshot they receive; the stage wrappers exist so the engine
// can place them at barrier points of the graph.
package aggregate

import (
	"context"
	"fmt"

	"tribunal/internal/docket"
	"tribunal/internal/stage"
	"tribunal/internal/state"
)

// BundleEvidence groups evidence by criterion into one bundle per criterion.
// Aggregate confidence is the mean over the expected sources, with missing
// sources contributing zero: a partially failed analysis tier yields a
// visibly degraded confidence, never a falsely confident one. A source that
// emits several items for the same criterion contributes the mean of its own
// item confidences, so prolific sources do not outweigh quiet ones.
func BundleEvidence(criteria, sources []string, evidence []docket.Evidence) map[string]docket.EvidenceBundle {
	byCriterion := make(map[string][]docket.Evidence, len(criteria))
	for _, ev := range evidence {
		byCriterion[ev.CriterionID] = append(byCriterion[ev.CriterionID], ev)
	}

	bundles := make(map[string]docket.EvidenceBundle, len(criteria))
	for _, id := range criteria {
		items := byCriterion[id]

		sums := make(map[string]float64, len(items))
		counts := make(map[string]int, len(items))
		for _, ev := range items {
			sums[ev.SourceID] += ev.Confidence
			counts[ev.SourceID]++
		}

		confidence := 0.0
		if len(sources) > 0 {
			// Missing sources divide into the mean as zero contributions.
			total := 0.0
			for src, n := range counts {
				total += sums[src] / float64(n)
			}
			confidence = total / float64(len(sources))
		}

		degraded := false
		for _, src := range sources {
			if counts[src] == 0 {
				degraded = true
				break
			}
		}

		bundles[id] = docket.EvidenceBundle{
			CriterionID: id,
			Items:       items,
			Confidence:  confidence,
			Degraded:    degraded,
		}
	}
	return bundles
}

// BundleOpinions groups opinions by criterion into one bundle per criterion.
// A bundle holding fewer opinions than the expected judge count is marked
// degraded but still forwarded to synthesis.
func BundleOpinions(criteria, judges []string, opinions []docket.JudicialOpinion) map[string]docket.OpinionBundle {
	byCriterion := make(map[string][]docket.JudicialOpinion, len(criteria))
	for _, op := range opinions {
		byCriterion[op.CriterionID] = append(byCriterion[op.CriterionID], op)
	}

	bundles := make(map[string]docket.OpinionBundle, len(criteria))
	for _, id := range criteria {
		ops := byCriterion[id]
		bundles[id] = docket.OpinionBundle{
			CriterionID: id,
			Opinions:    ops,
			Degraded:    len(ops) < len(judges),
		}
	}
	return bundles
}

// EvidenceStage is the barrier stage closing the analysis tier. It bundles
// all merged evidence per criterion.
type EvidenceStage struct {
	criteria []string
	sources  []string
}

// StageIDEvidence is the graph node id of the evidence aggregator.
const StageIDEvidence = "evidence_aggregator"

// NewEvidenceStage creates the evidence aggregation stage. sources lists the
// analyzer stage ids whose evidence is expected per criterion.
func NewEvidenceStage(criteria, sources []string) *EvidenceStage {
	return &EvidenceStage{criteria: criteria, sources: sources}
}

// ID implements stage.Stage.
func (s *EvidenceStage) ID() string { return StageIDEvidence }

// Run bundles the snapshot's evidence. It degrades when any criterion bundle
// is degraded and never fails.
func (s *EvidenceStage) Run(_ context.Context, snap state.Snapshot) (state.Delta, stage.Status) {
	bundles := BundleEvidence(s.criteria, s.sources, snap.Evidence)

	degraded := 0
	for _, b := range bundles {
		if b.Degraded {
			degraded++
		}
	}

	delta := state.Delta{EvidenceBundles: bundles}
	if degraded > 0 {
		return delta, stage.Degraded(fmt.Sprintf("%d of %d criteria missing evidence sources", degraded, len(bundles)))
	}
	return delta, stage.Ok()
}

// OpinionsStage is the barrier stage closing the evaluation tier.
type OpinionsStage struct {
	criteria []string
	judges   []string
}

// StageIDOpinions is the graph node id of the opinions aggregator.
const StageIDOpinions = "opinions_aggregator"

// NewOpinionsStage creates the opinion aggregation stage. judges lists the
// evaluator stage ids whose opinions are expected per criterion.
func NewOpinionsStage(criteria, judges []string) *OpinionsStage {
	return &OpinionsStage{criteria: criteria, judges: judges}
}

// ID implements stage.Stage.
func (s *OpinionsStage) ID() string { return StageIDOpinions }

// Run bundles the snapshot's opinions, degrading when judges are missing.
func (s *OpinionsStage) Run(_ context.Context, snap state.Snapshot) (state.Delta, stage.Status) {
	bundles := BundleOpinions(s.criteria, s.judges, snap.Opinions)

	degraded := 0
	for _, b := range bundles {
		if b.Degraded {
			degraded++
		}
	}

	delta := state.Delta{OpinionBundles: bundles}
	if degraded > 0 {
		return delta, stage.Degraded(fmt.Sprintf("%d of %d criteria missing judges", degraded, len(bundles)))
	}
	return delta, stage.Ok()
}
