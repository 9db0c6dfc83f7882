package a2a

import "github.com/harrison/orchestra/internal/models"

// External task states (spec.md §4.10).
const (
	StateSubmitted     = "submitted"
	StateWorking       = "working"
	StateInputRequired = "input-required"
	StateCompleted     = "completed"
	StateCanceled      = "canceled"
	StateFailed        = "failed"
	StateRejected      = "rejected"
)

// mapTaskStatus maps one internal workspace task status to its external
// A2A state per spec.md §4.10's table.
func mapTaskStatus(status models.TaskStatus) string {
	switch status {
	case models.TaskPending:
		return StateSubmitted
	case models.TaskInProgress, models.TaskReviewRequired, models.TaskNeedsFix:
		return StateWorking
	case models.TaskCompleted:
		return StateCompleted
	case models.TaskCancelled:
		return StateCanceled
	case models.TaskBlocked:
		return StateInputRequired
	default:
		return StateSubmitted
	}
}

// aggregateState combines a run's linked workspace task states into one
// external state for the wrapping A2A task: input-required dominates (a
// human is needed), then working (still in flight), then completed only
// once every linked task agrees, canceled only when every linked task does.
func aggregateState(statuses []models.TaskStatus) string {
	if len(statuses) == 0 {
		return StateSubmitted
	}

	allCompleted, allCanceled := true, true
	for _, s := range statuses {
		external := mapTaskStatus(s)
		if external == StateInputRequired {
			return StateInputRequired
		}
		if external != StateCompleted {
			allCompleted = false
		}
		if external != StateCanceled {
			allCanceled = false
		}
	}
	if allCompleted {
		return StateCompleted
	}
	if allCanceled {
		return StateCanceled
	}
	return StateWorking
}
