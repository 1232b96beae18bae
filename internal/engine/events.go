package engine

import (
	"context"
	"time"

	"declutter/internal/plan"
)

// EventType names a status event.
type EventType string

const (
	EventScanComplete           EventType = "scan_complete"
	EventCategorizationProgress EventType = "categorization_progress"
	EventPlanReady              EventType = "plan_ready"
	EventMoveProgress           EventType = "move_progress"
	EventUndoProgress           EventType = "undo_progress"
	EventDone                   EventType = "done"
)

// Event is a discrete status update. Only the fields relevant to Type are set.
type Event struct {
	Type    EventType
	RunID   string
	Time    time.Time
	Done    int
	Total   int
	Path    string
	Outcome string
	Stats   plan.Stats
	Err     error
}

// emit delivers ev unless the channel is unset or the context is done.
func (e *Engine) emit(ctx context.Context, ev Event) {
	if e.deps.Events == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = e.now()
	}
	select {
	case e.deps.Events <- ev:
	case <-ctx.Done():
	}
}
