package stage

import (
	"context"
	"fmt"
	"time"

	"tribunal/internal/docket"
	"tribunal/internal/errors"
	"tribunal/internal/logging"
	"tribunal/internal/state"
)

// RetryConfig bounds the per-call retry state machine of an evaluator.
type RetryConfig struct {
	// MaxAttempts is the total attempt budget per (judge, criterion) call.
	MaxAttempts int
	// Backoff is the base delay before a retry; attempt n waits n*Backoff.
	Backoff time.Duration
}

// DefaultRetryConfig returns the documented defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, Backoff: 250 * time.Millisecond}
}

// Evaluator adapts an EvaluatorTool to the Stage contract. It produces
// exactly one opinion per criterion: tool responses failing schema
// validation are retried with backoff up to the configured budget, after
// which a neutral synthetic opinion fills the slot so synthesis always has
// a full bench to reason over.
type Evaluator struct {
	id       string
	persona  docket.Persona
	criteria []string // criterion ids in rubric order
	tool     EvaluatorTool
	retry    RetryConfig
	tracker  *CallTracker
	log      *logging.Logger
}

// NewEvaluator creates an evaluator stage for one judge persona. The
// tracker may be shared across evaluators; if nil a private one is used.
func NewEvaluator(id string, persona docket.Persona, criteria []string, tool EvaluatorTool, retry RetryConfig, tracker *CallTracker, log *logging.Logger) *Evaluator {
	if log == nil {
		log = logging.NopLogger()
	}
	if tracker == nil {
		tracker = NewCallTracker()
	}
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &Evaluator{
		id:       id,
		persona:  persona,
		criteria: criteria,
		tool:     tool,
		retry:    retry,
		tracker:  tracker,
		log:      log.WithStage(id),
	}
}

// ID returns the stage identifier, which doubles as the judge id.
func (e *Evaluator) ID() string { return e.id }

// Tracker exposes the call tracker for inspection.
func (e *Evaluator) Tracker() *CallTracker { return e.tracker }

// Run judges every criterion's evidence bundle and returns the opinions as
// a delta. The stage fails only on cancellation; fallback opinions degrade
// it instead.
func (e *Evaluator) Run(ctx context.Context, snap state.Snapshot) (state.Delta, Status) {
	opinions := make([]docket.JudicialOpinion, 0, len(e.criteria))
	fallbacks := 0

	for _, criterionID := range e.criteria {
		if err := ctx.Err(); err != nil {
			return state.Delta{}, Failed(err.Error())
		}

		bundle, ok := snap.EvidenceBundles[criterionID]
		if !ok {
			bundle = docket.EvidenceBundle{CriterionID: criterionID, Degraded: true}
		}

		op, synthetic := e.judge(ctx, criterionID, bundle)
		if synthetic {
			fallbacks++
		}
		opinions = append(opinions, op)
	}

	delta := state.Delta{Opinions: opinions}
	if fallbacks > 0 {
		return delta, Degraded(fmt.Sprintf("%d synthetic fallback opinions", fallbacks))
	}
	return delta, Ok()
}

// judge walks the bounded retry state machine for one criterion and always
// returns a usable opinion. The bool result reports whether the opinion is
// a synthesized fallback.
func (e *Evaluator) judge(ctx context.Context, criterionID string, bundle docket.EvidenceBundle) (docket.JudicialOpinion, bool) {
	e.tracker.Begin(e.id, criterionID, e.retry.MaxAttempts)

	for attempt := 1; attempt <= e.retry.MaxAttempts; attempt++ {
		op, err := e.tool.Judge(ctx, bundle, e.persona)
		e.tracker.Transition(e.id, criterionID, CallValidating, nil)

		if err == nil {
			err = e.validate(op, criterionID)
		}
		if err == nil {
			e.tracker.Transition(e.id, criterionID, CallAccepted, nil)
			return op, false
		}

		e.log.Warn("judgment rejected",
			"criterion", criterionID, "attempt", attempt, "error", err)

		// Retry transport and validation failures alike; only structural
		// errors and cancellation end the attempt loop early.
		if ctx.Err() != nil || attempt == e.retry.MaxAttempts || errors.IsStructural(err) {
			e.tracker.Transition(e.id, criterionID, CallFallbackSynthesized, err)
			break
		}

		e.tracker.Transition(e.id, criterionID, CallRetryPending, err)
		if !sleep(ctx, time.Duration(attempt)*e.retry.Backoff) {
			e.tracker.Transition(e.id, criterionID, CallFallbackSynthesized, ctx.Err())
			break
		}
	}

	return docket.SyntheticOpinion(e.id, criterionID), true
}

// validate checks a tool response against the opinion schema and the
// criterion it was asked about. Failures are retryable.
func (e *Evaluator) validate(op docket.JudicialOpinion, criterionID string) error {
	if err := op.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidOpinion, err)
	}
	if op.CriterionID != criterionID {
		return fmt.Errorf("%w: opinion targets %q, asked about %q",
			errors.ErrInvalidOpinion, op.CriterionID, criterionID)
	}
	if op.JudgeID != e.id {
		return fmt.Errorf("%w: opinion claims judge %q, expected %q",
			errors.ErrInvalidOpinion, op.JudgeID, e.id)
	}
	return nil
}

// sleep waits for d or until ctx is done, reporting whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
