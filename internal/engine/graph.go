package engine

import (
	"fmt"

	"tribunal/internal/errors"
	"tribunal/internal/stage"
)

// node is one vertex of the stage graph. A node becomes ready when every
// declared predecessor has reached a terminal status, regardless of which
// status that is — barriers count siblings individually.
type node struct {
	st   stage.Stage
	deps []string
	tier string
}

// graph is the fixed two-tier fan-out/fan-in pipeline plus the terminal
// synthesis node.
type graph struct {
	nodes map[string]*node
	order []string // registration order, for deterministic launch sweeps
}

// Tier names used in events and logs.
const (
	tierAnalysis   = "analysis"
	tierEvaluation = "evaluation"
	tierSynthesis  = "synthesis"
)

// buildGraph wires analyzers ahead of the evidence aggregator, evaluators
// between the two aggregators, and synthesis last.
func buildGraph(analyzers, evaluators []stage.Stage, evidenceAgg, opinionsAgg, synthesis stage.Stage) (*graph, error) {
	g := &graph{nodes: make(map[string]*node)}

	var analyzerIDs []string
	for _, st := range analyzers {
		if err := g.add(st, nil, tierAnalysis); err != nil {
			return nil, err
		}
		analyzerIDs = append(analyzerIDs, st.ID())
	}

	if err := g.add(evidenceAgg, analyzerIDs, tierAnalysis); err != nil {
		return nil, err
	}

	var evaluatorIDs []string
	for _, st := range evaluators {
		if err := g.add(st, []string{evidenceAgg.ID()}, tierEvaluation); err != nil {
			return nil, err
		}
		evaluatorIDs = append(evaluatorIDs, st.ID())
	}

	if err := g.add(opinionsAgg, evaluatorIDs, tierEvaluation); err != nil {
		return nil, err
	}
	if err := g.add(synthesis, []string{opinionsAgg.ID()}, tierSynthesis); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *graph) add(st stage.Stage, deps []string, tier string) error {
	id := st.ID()
	if _, exists := g.nodes[id]; exists {
		return errors.NewStructuralError("engine.buildGraph",
			fmt.Errorf("%w: %q", errors.ErrDuplicateStage, id))
	}
	g.nodes[id] = &node{st: st, deps: deps, tier: tier}
	g.order = append(g.order, id)
	return nil
}

// ready returns the ids of nodes whose predecessors are all terminal and
// that have not started yet, in registration order.
func (g *graph) ready(started map[string]bool, done map[string]stage.Status) []string {
	var out []string
	for _, id := range g.order {
		if started[id] {
			continue
		}
		n := g.nodes[id]
		ok := true
		for _, dep := range n.deps {
			if _, terminal := done[dep]; !terminal {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, id)
		}
	}
	return out
}

// tierDone reports whether every node of a tier is terminal.
func (g *graph) tierDone(tier string, done map[string]stage.Status) bool {
	for id, n := range g.nodes {
		if n.tier != tier {
			continue
		}
		if _, terminal := done[id]; !terminal {
			return false
		}
	}
	return true
}

func (g *graph) size() int { return len(g.nodes) }
