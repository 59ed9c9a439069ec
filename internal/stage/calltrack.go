package stage

import (
	"fmt"
	"sync"
)

// CallState is one step of the bounded per-call state machine an evaluator
// walks for each (judge, criterion) pair.
type CallState string

const (
	// CallPending means no attempt has been made yet.
	CallPending CallState = "pending"
	// CallValidating means a response was received and is being checked
	// against the opinion schema.
	CallValidating CallState = "validating"
	// CallAccepted means a valid opinion was produced.
	CallAccepted CallState = "accepted"
	// CallRetryPending means the last attempt failed validation and another
	// attempt remains in the budget.
	CallRetryPending CallState = "retry_pending"
	// CallFallbackSynthesized means the retry budget was exhausted and a
	// neutral synthetic opinion was substituted.
	CallFallbackSynthesized CallState = "fallback_synthesized"
)

// Terminal reports whether the state ends the call.
func (s CallState) Terminal() bool {
	return s == CallAccepted || s == CallFallbackSynthesized
}

// CallRecord tracks the attempts behind one (judge, criterion) call.
type CallRecord struct {
	JudgeID     string    `json:"judge_id"`
	CriterionID string    `json:"criterion_id"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	State       CallState `json:"state"`
	LastError   string    `json:"last_error,omitempty"`
}

// CallTracker records the retry state machine for every evaluator call in a
// run. It is safe for concurrent use and exists for logging, testing, and
// post-hoc inspection of why a fallback opinion was synthesized.
type CallTracker struct {
	mu      sync.RWMutex
	records map[string]*CallRecord
}

// NewCallTracker creates an empty tracker.
func NewCallTracker() *CallTracker {
	return &CallTracker{records: make(map[string]*CallRecord)}
}

func callKey(judgeID, criterionID string) string {
	return judgeID + "/" + criterionID
}

// Begin registers a call in the pending state.
func (t *CallTracker) Begin(judgeID, criterionID string, maxAttempts int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[callKey(judgeID, criterionID)] = &CallRecord{
		JudgeID:     judgeID,
		CriterionID: criterionID,
		MaxAttempts: maxAttempts,
		State:       CallPending,
	}
}

// Transition moves a call to the given state, bumping the attempt counter
// when entering validation. Unknown calls are ignored.
func (t *CallTracker) Transition(judgeID, criterionID string, to CallState, lastErr error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[callKey(judgeID, criterionID)]
	if !ok || rec.State.Terminal() {
		return
	}
	if to == CallValidating {
		rec.Attempts++
	}
	if lastErr != nil {
		rec.LastError = lastErr.Error()
	}
	rec.State = to
}

// Record returns a copy of the record for one call.
func (t *CallTracker) Record(judgeID, criterionID string) (CallRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[callKey(judgeID, criterionID)]
	if !ok {
		return CallRecord{}, false
	}
	return *rec, true
}

// Fallbacks returns the keys of all calls that ended in a synthesized
// fallback, in no particular order.
func (t *CallTracker) Fallbacks() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var keys []string
	for k, rec := range t.records {
		if rec.State == CallFallbackSynthesized {
			keys = append(keys, k)
		}
	}
	return keys
}

// Summary returns a short human-readable accounting of call outcomes.
func (t *CallTracker) Summary() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	accepted, fallback, open := 0, 0, 0
	for _, rec := range t.records {
		switch rec.State {
		case CallAccepted:
			accepted++
		case CallFallbackSynthesized:
			fallback++
		default:
			open++
		}
	}
	return fmt.Sprintf("%d accepted, %d fallback, %d open", accepted, fallback, open)
}
