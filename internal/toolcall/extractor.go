// Package toolcall implements the batch extractor and incremental stream
// filter for `<tool_call>{json}</tool_call>` regions in model output
// (spec.md §4.4).
package toolcall

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/harrison/orchestra/internal/models"
)

// openTag/closeTag delimit the canonical tool-call region.
const (
	openTag  = "<tool_call>"
	closeTag = "</tool_call>"
)

// taggedPattern matches `<tool_call>...</tool_call>`, non-greedy so
// adjacent calls in one blob split correctly.
var taggedPattern = regexp.MustCompile(`(?s)<tool_call>\s*(.*?)\s*</tool_call>`)

// fencedPattern matches a ```json fenced block shaped like a tool call.
var fencedPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(\\{.*?\\})\\s*\\n```")

// Extract parses every recognized tool-call region out of text, in order:
// `<tool_call>` tags first, then fenced ```json blocks, then bare inline
// JSON objects shaped like a tool call. Malformed candidates (invalid
// JSON, missing "name") are skipped rather than causing an error — the
// extractor never throws.
func Extract(text string) []models.ToolCall {
	var calls []models.ToolCall

	for _, m := range taggedPattern.FindAllStringSubmatch(text, -1) {
		if call, ok := decodeCall(m[1]); ok {
			calls = append(calls, call)
		}
	}

	withoutTagged := taggedPattern.ReplaceAllString(text, "")

	for _, m := range fencedPattern.FindAllStringSubmatch(withoutTagged, -1) {
		if call, ok := decodeCall(m[1]); ok {
			calls = append(calls, call)
		}
	}

	withoutFenced := fencedPattern.ReplaceAllString(withoutTagged, "")
	for _, candidate := range scanBraceObjects(withoutFenced) {
		if call, ok := decodeCall(candidate); ok {
			calls = append(calls, call)
		}
	}

	return calls
}

// scanBraceObjects finds top-level `{...}` substrings by brace-depth
// counting (strings.Index-based regexes can't balance nested braces).
func scanBraceObjects(text string) []string {
	var out []string
	depth := 0
	start := -1
	for i, r := range text {
		switch r {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					out = append(out, text[start:i+1])
					start = -1
				}
			}
		}
	}
	return out
}

// decodeCall attempts to decode candidate as a {name, arguments} object.
func decodeCall(candidate string) (models.ToolCall, bool) {
	var call models.ToolCall
	if err := json.Unmarshal([]byte(strings.TrimSpace(candidate)), &call); err != nil {
		return models.ToolCall{}, false
	}
	if call.Name == "" {
		return models.ToolCall{}, false
	}
	return call, true
}

// RemoveToolCalls strips every recognized tool-call region from text,
// leaving the clean, user-visible remainder.
func RemoveToolCalls(text string) string {
	without := taggedPattern.ReplaceAllString(text, "")
	without = fencedPattern.ReplaceAllStringFunc(without, func(block string) string {
		m := fencedPattern.FindStringSubmatch(block)
		if m == nil {
			return block
		}
		if _, ok := decodeCall(m[1]); ok {
			return ""
		}
		return block
	})
	for _, candidate := range scanBraceObjects(without) {
		if _, ok := decodeCall(candidate); ok {
			without = strings.Replace(without, candidate, "", 1)
		}
	}
	return without
}
