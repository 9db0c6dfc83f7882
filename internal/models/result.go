package models

// OutcomeKind tags the variant of an orchestrator Result (spec.md §4.9/§7).
type OutcomeKind string

const (
	OutcomeSuccess         OutcomeKind = "SUCCESS"
	OutcomeNoTasks         OutcomeKind = "NO_TASKS"
	OutcomeMaxWavesReached OutcomeKind = "MAX_WAVES_REACHED"
	OutcomeFailed          OutcomeKind = "FAILED"
	OutcomeCancelled       OutcomeKind = "CANCELLED"
)

// Result is the tagged union returned by Driver.Execute.
type Result struct {
	Kind        OutcomeKind
	Tasks       []Task
	WavesRun    int
	Err         error
}

// Success builds a Result for the happy path.
func Success(tasks []Task, waves int) Result {
	return Result{Kind: OutcomeSuccess, Tasks: tasks, WavesRun: waves}
}

// NoTasks builds a Result for an empty plan.
func NoTasks() Result {
	return Result{Kind: OutcomeNoTasks}
}

// MaxWavesReached builds a Result for wave-budget exhaustion.
func MaxWavesReached(tasks []Task, waves int) Result {
	return Result{Kind: OutcomeMaxWavesReached, Tasks: tasks, WavesRun: waves}
}

// Failed builds a Result for an unrecoverable error.
func Failed(err error, waves int) Result {
	return Result{Kind: OutcomeFailed, Err: err, WavesRun: waves}
}

// Cancelled builds a Result for a run stopped via stopExecution (spec.md §6.4).
func Cancelled(tasks []Task, waves int) Result {
	return Result{Kind: OutcomeCancelled, Tasks: tasks, WavesRun: waves}
}
