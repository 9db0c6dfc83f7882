package models

// TaskSpec is the plan-parser's output record for one parsed task block,
// before it becomes a stored Task (it has no ID, workspace or status yet).
type TaskSpec struct {
	Title                string   `json:"title" validate:"required"`
	Objective            string   `json:"objective,omitempty"`
	Scope                string   `json:"scope,omitempty"`
	AcceptanceCriteria   []string `json:"acceptance_criteria,omitempty"`
	VerificationCommands []string `json:"verification_commands,omitempty"`
	Dependencies         []string `json:"dependencies,omitempty"`
	ParallelGroup        int      `json:"parallel_group,omitempty"`
}

// PlanStrategy selects how an externally-supplied JSON plan should be executed.
type PlanStrategy string

const (
	StrategySingleAgent PlanStrategy = "single_agent"
	StrategyMultiAgent  PlanStrategy = "multi_agent"
)

// JSONPlan is the alternative ingestion format for external callers (spec.md §4.3).
type JSONPlan struct {
	Tasks          []TaskSpec   `json:"tasks" validate:"required,dive"`
	Strategy       PlanStrategy `json:"strategy,omitempty"`
	MaxParallelism int          `json:"max_parallelism,omitempty"`
}

// ClampMaxParallelism clamps p to [1,5] per spec.md §4.3/§5.
func ClampMaxParallelism(p int) int {
	if p < 1 {
		return 1
	}
	if p > 5 {
		return 5
	}
	return p
}

// Normalize applies JSONPlan defaults: strategy defaults to multi_agent,
// max_parallelism defaults to 1 and is always clamped to [1,5].
func (p *JSONPlan) Normalize() {
	if p.Strategy == "" {
		p.Strategy = StrategyMultiAgent
	}
	if p.MaxParallelism == 0 {
		p.MaxParallelism = 1
	}
	p.MaxParallelism = ClampMaxParallelism(p.MaxParallelism)
}
