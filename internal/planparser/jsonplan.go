package planparser

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/harrison/orchestra/internal/models"
)

// fencedJSONPattern extracts the first ```json ... ``` (or bare ``` ... ```)
// fenced code block containing a JSON object, so callers can paste a plan
// into a chat-style message without hand-stripping the fence themselves.
var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(\\{.*?\\})\\s*\\n```")

var planValidate = validator.New()

// ParseJSONPlan parses the alternative JSON-plan ingestion format
// (spec.md §4.3): either a bare JSON object or one fenced in a ```json
// code block. Strategy and MaxParallelism are normalized and clamped, and
// every task in the plan is struct-validated before being returned.
func ParseJSONPlan(text string) (models.JSONPlan, error) {
	raw := []byte(text)
	if m := fencedJSONPattern.FindSubmatch([]byte(text)); m != nil {
		raw = m[1]
	}

	var plan models.JSONPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return models.JSONPlan{}, fmt.Errorf("decode json plan: %w", err)
	}
	plan.Normalize()

	if err := planValidate.Struct(plan); err != nil {
		return models.JSONPlan{}, fmt.Errorf("invalid json plan: %w", err)
	}
	return plan, nil
}
