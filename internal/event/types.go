package event

import "time"

// Event type identifiers follow the "category.action" convention.
const (
	TypeRunStarted     = "run.started"
	TypeRunCompleted   = "run.completed"
	TypeStageStarted   = "stage.started"
	TypeStageCompleted = "stage.completed"
	TypeTierCompleted  = "tier.completed"
)

// Event is implemented by every published event.
type Event interface {
	// EventType returns the "category.action" identifier for the event.
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{eventType: eventType, timestamp: time.Now()}
}

// RunStartedEvent is emitted once before any stage executes.
type RunStartedEvent struct {
	baseEvent
	RunID  string
	Target string
	Stages int // total node count in the stage graph
}

// NewRunStartedEvent creates a RunStartedEvent.
func NewRunStartedEvent(runID, target string, stages int) RunStartedEvent {
	return RunStartedEvent{
		baseEvent: newBaseEvent(TypeRunStarted),
		RunID:     runID,
		Target:    target,
		Stages:    stages,
	}
}

// RunCompletedEvent is emitted once when the run reaches a terminal state,
// whether it produced a report or failed structurally.
type RunCompletedEvent struct {
	baseEvent
	RunID        string
	OverallScore float64
	Degraded     bool
	Err          error // non-nil only on structural failure or cancellation
}

// NewRunCompletedEvent creates a RunCompletedEvent.
func NewRunCompletedEvent(runID string, overall float64, degraded bool, err error) RunCompletedEvent {
	return RunCompletedEvent{
		baseEvent:    newBaseEvent(TypeRunCompleted),
		RunID:        runID,
		OverallScore: overall,
		Degraded:     degraded,
		Err:          err,
	}
}

// StageStartedEvent is emitted when a graph node begins execution.
type StageStartedEvent struct {
	baseEvent
	RunID   string
	StageID string
}

// NewStageStartedEvent creates a StageStartedEvent.
func NewStageStartedEvent(runID, stageID string) StageStartedEvent {
	return StageStartedEvent{
		baseEvent: newBaseEvent(TypeStageStarted),
		RunID:     runID,
		StageID:   stageID,
	}
}

// StageCompletedEvent is emitted when a graph node reaches a terminal status.
type StageCompletedEvent struct {
	baseEvent
	RunID    string
	StageID  string
	Status   string // "ok", "degraded", or "failed"
	Reason   string // populated for degraded/failed stages
	Duration time.Duration
}

// NewStageCompletedEvent creates a StageCompletedEvent.
func NewStageCompletedEvent(runID, stageID, status, reason string, d time.Duration) StageCompletedEvent {
	return StageCompletedEvent{
		baseEvent: newBaseEvent(TypeStageCompleted),
		RunID:     runID,
		StageID:   stageID,
		Status:    status,
		Reason:    reason,
		Duration:  d,
	}
}

// TierCompletedEvent is emitted when every stage in a fan-out tier has
// reached a terminal status and its barrier opens.
type TierCompletedEvent struct {
	baseEvent
	RunID string
	Tier  string // "analysis" or "evaluation"
}

// NewTierCompletedEvent creates a TierCompletedEvent.
func NewTierCompletedEvent(runID, tier string) TierCompletedEvent {
	return TierCompletedEvent{
		baseEvent: newBaseEvent(TypeTierCompleted),
		RunID:     runID,
		Tier:      tier,
	}
}
