package a2a

import (
	"context"
	"sync"
	"time"

	"github.com/harrison/orchestra/internal/models"
)

// taskRecord tracks one message/send call's external task across the
// asynchronous orchestration run it kicked off.
type taskRecord struct {
	id, contextID string
	createdAt     time.Time
	updatedAt     time.Time

	mu                sync.Mutex
	state             string
	statusMessage     string
	linkedTaskIDs     []string
	completionSummary string
	cancel            context.CancelFunc
}

func newTaskRecord(id, contextID string, cancel context.CancelFunc, at time.Time) *taskRecord {
	return &taskRecord{
		id:        id,
		contextID: contextID,
		createdAt: at,
		updatedAt: at,
		state:     StateSubmitted,
		cancel:    cancel,
	}
}

// isTerminalState reports whether state is one of the terminal states
// (spec.md:300): once reached, no later call should overwrite it.
func isTerminalState(state string) bool {
	switch state {
	case StateCompleted, StateCanceled, StateFailed, StateRejected:
		return true
	default:
		return false
	}
}

// setState transitions the record to state, unless it is already in a
// terminal state: a tasks/cancel call racing with runOrchestration's own
// post-hoc Failed/Completed write must not get clobbered once canceled, and
// symmetrically a late-arriving setState from a finishing run must not
// overwrite a cancellation that already landed. Returns whether the
// transition was applied.
func (r *taskRecord) setState(state, message string, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if isTerminalState(r.state) {
		return false
	}
	r.state = state
	r.statusMessage = message
	r.updatedAt = at
	return true
}

func (r *taskRecord) setLinkedTasks(ids []string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.linkedTaskIDs = ids
	r.updatedAt = at
}

func (r *taskRecord) setCompletionSummary(summary string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completionSummary = summary
	r.updatedAt = at
}

// snapshot returns the record's current external Task envelope. liveStatus
// resolves each linked workspace task's current status; the statuses are
// folded into the aggregate state only while the record's state is working
// and linked task IDs have been set (setLinkedTasks runs after Execute
// returns, so during the run the recorded state is reported unchanged).
func (r *taskRecord) snapshot(liveStatus func(taskID string) (models.TaskStatus, bool)) Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.state
	if state == StateWorking && len(r.linkedTaskIDs) > 0 {
		statuses := make([]models.TaskStatus, 0, len(r.linkedTaskIDs))
		for _, id := range r.linkedTaskIDs {
			if s, ok := liveStatus(id); ok {
				statuses = append(statuses, s)
			}
		}
		if len(statuses) > 0 {
			state = aggregateState(statuses)
		}
	}

	task := Task{
		ID:        r.id,
		ContextID: r.contextID,
		Status: TaskStatus{
			State:     state,
			Timestamp: r.updatedAt.UTC().Format(time.RFC3339),
			Message:   r.statusMessage,
		},
	}
	if r.completionSummary != "" {
		task.Artifacts = []Artifact{{
			Name:  "completion_summary",
			Parts: []MessagePart{{Type: "text", Text: r.completionSummary}},
		}}
	}
	return task
}
