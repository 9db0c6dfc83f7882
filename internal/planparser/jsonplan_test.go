package planparser

import "testing"

func TestParseJSONPlanDefaultsAndClamp(t *testing.T) {
	plan, err := ParseJSONPlan(`{"tasks":[{"title":"Do the thing"}],"max_parallelism":99}`)
	if err != nil {
		t.Fatalf("parse json plan: %v", err)
	}
	if plan.Strategy != "multi_agent" {
		t.Fatalf("expected default strategy multi_agent, got %q", plan.Strategy)
	}
	if plan.MaxParallelism != 5 {
		t.Fatalf("expected max_parallelism clamped to 5, got %d", plan.MaxParallelism)
	}
	if len(plan.Tasks) != 1 || plan.Tasks[0].Title != "Do the thing" {
		t.Fatalf("unexpected tasks: %+v", plan.Tasks)
	}
}

func TestParseJSONPlanFencedBlock(t *testing.T) {
	input := "Here is the plan:\n```json\n{\"tasks\":[{\"title\":\"Fenced task\"}]}\n```\nthanks"
	plan, err := ParseJSONPlan(input)
	if err != nil {
		t.Fatalf("parse fenced json plan: %v", err)
	}
	if len(plan.Tasks) != 1 || plan.Tasks[0].Title != "Fenced task" {
		t.Fatalf("unexpected tasks: %+v", plan.Tasks)
	}
}

func TestParseJSONPlanMissingTitleRejected(t *testing.T) {
	_, err := ParseJSONPlan(`{"tasks":[{"objective":"no title"}]}`)
	if err == nil {
		t.Fatalf("expected validation error for missing title")
	}
}

func TestParseDispatchesOnShape(t *testing.T) {
	tasks, _, err := Parse(`{"tasks":[{"title":"json path"}]}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "json path" {
		t.Fatalf("expected json dispatch, got %+v", tasks)
	}

	tasks, _, err = Parse("@@@task\n# markdown path\n@@@")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "markdown path" {
		t.Fatalf("expected markdown dispatch, got %+v", tasks)
	}
}
