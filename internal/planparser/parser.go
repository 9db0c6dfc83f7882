package planparser

import (
	"strings"

	"github.com/harrison/orchestra/internal/models"
)

// Parse dispatches to the JSON-plan parser when text looks like a JSON
// object (bare or fenced), falling back to the `@@@task` markdown grammar
// otherwise. This lets callers feed either a plan format produced by a
// tool-driven workspace agent or free-form planner output through one entry
// point.
func Parse(text string) ([]models.TaskSpec, []Warning, error) {
	if looksLikeJSON(text) {
		plan, err := ParseJSONPlan(text)
		if err != nil {
			return nil, nil, err
		}
		return plan.Tasks, nil, nil
	}

	result := ParseMarkdown(text)
	return result.Tasks, result.Warnings, nil
}

func looksLikeJSON(text string) bool {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		return fencedJSONPattern.MatchString(trimmed)
	}
	return strings.HasPrefix(trimmed, "{")
}
