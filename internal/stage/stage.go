// Package stage defines the uniform contract every pipeline node implements
// and the adapters that wrap external collaborator tools as stages.
//
// A stage is a function of (immutable state snapshot, injected collaborator)
// to (state delta, status). Stages never mutate the snapshot they are given
// and never block on one another; the engine owns scheduling and merging.
package stage

import (
	"context"

	"tribunal/internal/docket"
	"tribunal/internal/state"
)

// Code classifies a stage's terminal status.
type Code int

const (
	// CodeOk means the stage completed fully.
	CodeOk Code = iota
	// CodeDegraded means the stage completed with reduced coverage or
	// synthesized output.
	CodeDegraded
	// CodeFailed means the stage produced nothing usable. A failed stage
	// never aborts the run; its absence is visible as missing evidence or
	// opinions downstream.
	CodeFailed
)

// String returns the lowercase status name used in events and logs.
func (c Code) String() string {
	switch c {
	case CodeOk:
		return "ok"
	case CodeDegraded:
		return "degraded"
	case CodeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is a stage's terminal status plus an optional reason for
// degradation or failure.
type Status struct {
	Code   Code
	Reason string
}

// Ok returns a successful status.
func Ok() Status { return Status{Code: CodeOk} }

// Degraded returns a degraded status with the given reason.
func Degraded(reason string) Status { return Status{Code: CodeDegraded, Reason: reason} }

// Failed returns a failed status with the given reason.
func Failed(reason string) Status { return Status{Code: CodeFailed, Reason: reason} }

// Stage is a single pipeline node. Implementations must treat the snapshot
// as read-only and may block only on their own collaborator calls, honoring
// ctx cancellation.
type Stage interface {
	// ID returns the stage's unique identifier within the graph.
	ID() string

	// Run consumes a snapshot and produces a delta for the engine to merge.
	Run(ctx context.Context, snap state.Snapshot) (state.Delta, Status)
}

// AnalyzerTool is the collaborator interface behind analyzer stages: it
// collects evidence about a target. Implementations live outside the core
// (repository forensics, document analysis).
type AnalyzerTool interface {
	Collect(ctx context.Context, target string) ([]docket.Evidence, error)
}

// EvaluatorTool is the collaborator interface behind evaluator stages: it
// renders one judgment over an evidence bundle in a given persona.
type EvaluatorTool interface {
	Judge(ctx context.Context, bundle docket.EvidenceBundle, persona docket.Persona) (docket.JudicialOpinion, error)
}
