// Package engine executes the audit stage graph: analyzers fan out, the
// evidence aggregator barriers them, evaluators fan out over the shared
// bundles, the opinions aggregator barriers again, and synthesis closes the
// run. Each node runs in its own goroutine; the engine is the single
// consumer of their deltas and the only writer to the state store.
//
// Stage failures are isolated: a failed analyzer or evaluator is recorded
// and the run proceeds with degraded coverage. Only structural problems
// (malformed rubric, no stages) abort a run, and they do so before any
// stage executes.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tribunal/internal/aggregate"
	"tribunal/internal/docket"
	"tribunal/internal/errors"
	"tribunal/internal/event"
	"tribunal/internal/logging"
	"tribunal/internal/rubric"
	"tribunal/internal/stage"
	"tribunal/internal/state"
	"tribunal/internal/verdict"
)

// Config holds the dependencies and tuning of one engine instance.
type Config struct {
	Rubric     *rubric.Rubric
	Target     string
	Analyzers  []stage.Stage
	Evaluators []stage.Stage
	// Synthesis overrides the default verdict stage; tests use this.
	Synthesis stage.Stage
	// EvidenceAgg and OpinionsAgg override the default aggregators.
	EvidenceAgg stage.Stage
	OpinionsAgg stage.Stage

	Bus    *event.Bus
	Logger *logging.Logger

	// StageTimeout bounds each node individually; zero disables it.
	StageTimeout time.Duration
	// RunTimeout bounds the whole run; zero disables it.
	RunTimeout time.Duration
	// Verdict configures the synthesis rule constants.
	Verdict verdict.Config
}

// Engine executes one audit run over a fixed stage graph.
type Engine struct {
	cfg   Config
	graph *graph
	log   *logging.Logger
	bus   *event.Bus
	runID string
}

// New validates the configuration and builds the stage graph. All
// structural failures surface here, before Run ever starts a stage.
func New(cfg Config) (*Engine, error) {
	if cfg.Rubric == nil {
		return nil, errors.NewStructuralError("engine.New", errors.ErrRubricEmpty)
	}
	if err := cfg.Rubric.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Analyzers) == 0 {
		return nil, errors.NewStructuralError("engine.New", errors.ErrNoAnalyzers)
	}
	if len(cfg.Evaluators) == 0 {
		return nil, errors.NewStructuralError("engine.New", errors.ErrNoEvaluators)
	}

	if cfg.Bus == nil {
		cfg.Bus = event.NewBus()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger()
	}
	if cfg.Verdict == (verdict.Config{}) {
		cfg.Verdict = verdict.DefaultConfig()
	}

	criteria := cfg.Rubric.IDs()
	if cfg.EvidenceAgg == nil {
		cfg.EvidenceAgg = aggregate.NewEvidenceStage(criteria, stageIDs(cfg.Analyzers))
	}
	if cfg.OpinionsAgg == nil {
		cfg.OpinionsAgg = aggregate.NewOpinionsStage(criteria, stageIDs(cfg.Evaluators))
	}
	if cfg.Synthesis == nil {
		cfg.Synthesis = verdict.NewStage(cfg.Rubric, cfg.Verdict)
	}

	g, err := buildGraph(cfg.Analyzers, cfg.Evaluators, cfg.EvidenceAgg, cfg.OpinionsAgg, cfg.Synthesis)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	return &Engine{
		cfg:   cfg,
		graph: g,
		log:   cfg.Logger.WithRun(runID),
		bus:   cfg.Bus,
		runID: runID,
	}, nil
}

// RunID returns the identifier assigned to this engine's run.
func (e *Engine) RunID() string { return e.runID }

// nodeResult carries a finished node's contribution back to the scheduler.
type nodeResult struct {
	id     string
	delta  state.Delta
	status stage.Status
	dur    time.Duration
}

// Run executes the graph to completion and assembles the audit report.
// It returns an error only on structural failure or cancellation; degraded
// and failed stages are absorbed into the report instead.
func (e *Engine) Run(ctx context.Context) (*docket.AuditReport, error) {
	if e.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RunTimeout)
		defer cancel()
	}

	store := state.NewStore()
	started := make(map[string]bool, e.graph.size())
	done := make(map[string]stage.Status, e.graph.size())
	results := make(chan nodeResult)
	tiersAnnounced := make(map[string]bool)

	e.bus.Publish(event.NewRunStartedEvent(e.runID, e.cfg.Target, e.graph.size()))
	e.log.Info("run started", "target", e.cfg.Target, "stages", e.graph.size())

	launch := func(id string) {
		started[id] = true
		n := e.graph.nodes[id]
		e.bus.Publish(event.NewStageStartedEvent(e.runID, id))

		go func() {
			begin := time.Now()
			sctx := ctx
			var cancel context.CancelFunc
			if e.cfg.StageTimeout > 0 {
				sctx, cancel = context.WithTimeout(ctx, e.cfg.StageTimeout)
				defer cancel()
			}

			delta, status := n.st.Run(sctx, store.Snapshot())

			// A stage that overran its own deadline is failed, whatever it
			// reported.
			if sctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
				status = stage.Failed(errors.NewTimeoutError(id, e.cfg.StageTimeout).Error())
				delta = state.Delta{}
			}

			select {
			case results <- nodeResult{id: id, delta: delta, status: status, dur: time.Since(begin)}:
			case <-ctx.Done():
			}
		}()
	}

	for _, id := range e.graph.ready(started, done) {
		launch(id)
	}

	for len(done) < e.graph.size() {
		select {
		case <-ctx.Done():
			// Cooperative cancellation: committed merges remain, new ones
			// are refused, in-flight stages observe their context.
			store.Close()
			err := fmt.Errorf("run cancelled: %w", ctx.Err())
			e.bus.Publish(event.NewRunCompletedEvent(e.runID, 0, true, err))
			e.log.Warn("run cancelled", "error", ctx.Err())
			return nil, err

		case r := <-results:
			e.finishNode(store, r, done)
			for _, tier := range []string{tierAnalysis, tierEvaluation} {
				if !tiersAnnounced[tier] && e.graph.tierDone(tier, done) {
					tiersAnnounced[tier] = true
					e.bus.Publish(event.NewTierCompletedEvent(e.runID, tier))
				}
			}
			for _, id := range e.graph.ready(started, done) {
				launch(id)
			}
		}
	}

	snap := store.Snapshot()
	report := verdict.BuildReport(e.runID, e.cfg.Target, e.cfg.Rubric, snap, e.degraded(done, snap))

	e.bus.Publish(event.NewRunCompletedEvent(e.runID, report.OverallScore, report.Degraded, nil))
	e.log.Info("run completed", "overall", report.OverallScore, "degraded", report.Degraded)
	return &report, nil
}

// finishNode records a terminal status and merges the node's delta. Deltas
// from failed stages are discarded; merge refusal after close is benign.
func (e *Engine) finishNode(store *state.Store, r nodeResult, done map[string]stage.Status) {
	if r.status.Code != stage.CodeFailed && !r.delta.Empty() {
		if err := store.Merge(r.delta); err != nil {
			e.log.Warn("delta discarded", "stage", r.id, "error", err)
		}
	}
	done[r.id] = r.status

	e.bus.Publish(event.NewStageCompletedEvent(e.runID, r.id, r.status.Code.String(), r.status.Reason, r.dur))
	switch r.status.Code {
	case stage.CodeOk:
		e.log.Info("stage completed", "stage", r.id, "duration", r.dur)
	default:
		e.log.Warn("stage "+r.status.Code.String(), "stage", r.id, "reason", r.status.Reason, "duration", r.dur)
	}
}

// degraded reports whether any stage fell short or any bundle was marked
// degraded, which the report surfaces as reduced confidence.
func (e *Engine) degraded(done map[string]stage.Status, snap state.Snapshot) bool {
	for _, st := range done {
		if st.Code != stage.CodeOk {
			return true
		}
	}
	for _, b := range snap.EvidenceBundles {
		if b.Degraded {
			return true
		}
	}
	for _, b := range snap.OpinionBundles {
		if b.Degraded {
			return true
		}
	}
	return false
}

func stageIDs(stages []stage.Stage) []string {
	ids := make([]string, len(stages))
	for i, s := range stages {
		ids[i] = s.ID()
	}
	return ids
}
