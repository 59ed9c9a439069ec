// Package state implements the shared state store for an audit run.
//
// The store is the only shared mutable resource in the pipeline. Stages
// never touch it directly: they receive an immutable Snapshot and return a
// Delta, which the engine merges under a single mutex. List fields merge by
// concatenation and map fields by key-wise union, so the merged content is
// the same set regardless of stage completion order.
package state

import (
	"sync"

	"tribunal/internal/docket"
	"tribunal/internal/errors"
)

// Delta is the contribution one stage makes to the store. All fields are
// optional; zero-value deltas merge as no-ops.
type Delta struct {
	Evidence        []docket.Evidence
	Opinions        []docket.JudicialOpinion
	EvidenceBundles map[string]docket.EvidenceBundle
	OpinionBundles  map[string]docket.OpinionBundle
	Results         map[string]docket.CriterionResult
}

// Empty reports whether the delta contributes nothing.
func (d Delta) Empty() bool {
	return len(d.Evidence) == 0 && len(d.Opinions) == 0 &&
		len(d.EvidenceBundles) == 0 && len(d.OpinionBundles) == 0 &&
		len(d.Results) == 0
}

// Snapshot is an immutable copy of the store contents handed to stages.
// Stages must not mutate it; containers are copied down to payload maps and
// citation slices, so a misbehaving stage cannot corrupt the live store.
type Snapshot struct {
	Evidence        []docket.Evidence
	Opinions        []docket.JudicialOpinion
	EvidenceBundles map[string]docket.EvidenceBundle
	OpinionBundles  map[string]docket.OpinionBundle
	Results         map[string]docket.CriterionResult
}

// Store accumulates deltas for one run. All fields are append-only: a merge
// never overwrites existing content, only extends it. Safe for concurrent
// use.
type Store struct {
	mu     sync.Mutex
	closed bool

	evidence        []docket.Evidence
	opinions        []docket.JudicialOpinion
	evidenceBundles map[string]docket.EvidenceBundle
	opinionBundles  map[string]docket.OpinionBundle
	results         map[string]docket.CriterionResult
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		evidenceBundles: make(map[string]docket.EvidenceBundle),
		opinionBundles:  make(map[string]docket.OpinionBundle),
		results:         make(map[string]docket.CriterionResult),
	}
}

// Merge applies a delta atomically. List fields concatenate; map fields
// union key-wise. When two contributions target the same bundle key their
// contents are combined rather than one replacing the other, since each
// producer owns disjoint items for the criterion. Merging into a closed
// store returns ErrStoreClosed and discards the delta.
func (s *Store) Merge(d Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrStoreClosed
	}

	s.evidence = append(s.evidence, d.Evidence...)
	s.opinions = append(s.opinions, d.Opinions...)

	for id, b := range d.EvidenceBundles {
		if prev, ok := s.evidenceBundles[id]; ok {
			b = combineEvidenceBundles(prev, b)
		}
		s.evidenceBundles[id] = b
	}
	for id, b := range d.OpinionBundles {
		if prev, ok := s.opinionBundles[id]; ok {
			b = combineOpinionBundles(prev, b)
		}
		s.opinionBundles[id] = b
	}
	for id, r := range d.Results {
		// A criterion result is computed exactly once; first writer wins and
		// a duplicate indicates a synthesis re-run with identical output.
		if _, ok := s.results[id]; !ok {
			s.results[id] = r
		}
	}
	return nil
}

// Snapshot returns a copy of the current store contents. Containers are
// copied down to payload maps and citation slices; payload values are
// treated as immutable once merged.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Evidence:        cloneEvidence(s.evidence),
		Opinions:        cloneOpinions(s.opinions),
		EvidenceBundles: make(map[string]docket.EvidenceBundle, len(s.evidenceBundles)),
		OpinionBundles:  make(map[string]docket.OpinionBundle, len(s.opinionBundles)),
		Results:         make(map[string]docket.CriterionResult, len(s.results)),
	}
	for id, b := range s.evidenceBundles {
		b.Items = cloneEvidence(b.Items)
		snap.EvidenceBundles[id] = b
	}
	for id, b := range s.opinionBundles {
		b.Opinions = cloneOpinions(b.Opinions)
		snap.OpinionBundles[id] = b
	}
	for id, r := range s.results {
		snap.Results[id] = r
	}
	return snap
}

func cloneEvidence(src []docket.Evidence) []docket.Evidence {
	out := append([]docket.Evidence(nil), src...)
	for i := range out {
		if out[i].Payload == nil {
			continue
		}
		p := make(map[string]any, len(out[i].Payload))
		for k, v := range out[i].Payload {
			p[k] = v
		}
		out[i].Payload = p
	}
	return out
}

func cloneOpinions(src []docket.JudicialOpinion) []docket.JudicialOpinion {
	out := append([]docket.JudicialOpinion(nil), src...)
	for i := range out {
		out[i].CitedEvidence = append([]string(nil), out[i].CitedEvidence...)
	}
	return out
}

// Close marks the store closed. Committed merges remain visible through
// Snapshot; further merges are rejected. Used on run cancellation so
// in-flight stages cannot commit after the run has ended.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Closed reports whether the store has been closed.
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func combineEvidenceBundles(a, b docket.EvidenceBundle) docket.EvidenceBundle {
	out := a
	out.Items = append(append([]docket.Evidence(nil), a.Items...), b.Items...)
	out.Degraded = a.Degraded || b.Degraded
	return out
}

func combineOpinionBundles(a, b docket.OpinionBundle) docket.OpinionBundle {
	out := a
	out.Opinions = append(append([]docket.JudicialOpinion(nil), a.Opinions...), b.Opinions...)
	out.Degraded = a.Degraded || b.Degraded
	return out
}
