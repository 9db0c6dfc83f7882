// Package planparser extracts structured TaskSpec records from free-form
// LLM text (the `@@@task` grammar, spec.md §4.3) and from an alternative
// JSON-plan ingestion format used by external callers.
package planparser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"github.com/harrison/orchestra/internal/models"
)

// taskBlockPattern finds `@@@task ... @@@` fenced regions, non-greedy so
// adjacent blocks in one input are split correctly. The grammar fence isn't
// itself markdown, so it's carved out with a regexp before each block's body
// is handed to the markdown parser.
var taskBlockPattern = regexp.MustCompile(`(?s)@@@task\s*\n(.*?)\n@@@`)

var markdownEngine = goldmark.New()

// knownSection names the sections the grammar assigns a dedicated bucket.
type knownSection int

const (
	sectionNone knownSection = iota
	sectionObjective
	sectionScope
	sectionDoD
	sectionVerification
)

func classifySection(heading string) knownSection {
	switch strings.ToLower(strings.TrimSpace(heading)) {
	case "objective":
		return sectionObjective
	case "scope":
		return sectionScope
	case "definition of done":
		return sectionDoD
	case "verification":
		return sectionVerification
	default:
		return sectionNone
	}
}

// Warning describes a non-fatal issue found while parsing a plan.
type Warning struct {
	Message string
}

// ParseResult bundles the ordered TaskSpecs extracted from a plan along
// with non-fatal warnings (e.g. a block discarded for missing a title).
type ParseResult struct {
	Tasks    []models.TaskSpec
	Warnings []Warning
}

// ParseMarkdown extracts an ordered list of TaskSpec records from free-form
// text containing zero or more `@@@task` blocks. Regions outside the
// blocks are ignored. A block missing a title is discarded with a
// non-fatal warning; all other fields default to zero values when absent.
func ParseMarkdown(input string) ParseResult {
	var result ParseResult

	matches := taskBlockPattern.FindAllStringSubmatch(input, -1)
	for _, m := range matches {
		spec, warn, ok := parseTaskBlock(m[1])
		if !ok {
			result.Warnings = append(result.Warnings, Warning{Message: warn})
			continue
		}
		result.Tasks = append(result.Tasks, spec)
	}
	return result
}

// parseTaskBlock walks the goldmark AST of one task block body, bucketing
// paragraph and list-item text under the heading section it falls beneath.
// The first level-1 heading encountered anywhere in the block is the title;
// a block with none is discarded.
func parseTaskBlock(body string) (models.TaskSpec, string, bool) {
	source := []byte(body)
	doc := markdownEngine.Parser().Parse(gmtext.NewReader(source))

	var (
		title                              string
		titleFound                         bool
		objectiveLines, scopeLines         []string
		dodItems, verificationItems        []string
		current                            = sectionNone
		sawKnown                           bool
	)

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			headingText := strings.TrimSpace(extractText(node, source))
			if node.Level == 1 && !titleFound {
				title = headingText
				titleFound = true
				return ast.WalkSkipChildren, nil
			}
			sec := classifySection(headingText)
			switch {
			case sec != sectionNone:
				current = sec
				sawKnown = true
			case !sawKnown:
				// Unknown section before any known heading: fold into objective.
				current = sectionObjective
			default:
				// Unknown section after a known heading: ignored entirely.
				current = sectionNone
			}
			return ast.WalkSkipChildren, nil

		case *ast.Paragraph:
			text := strings.TrimSpace(extractText(node, source))
			if text == "" {
				return ast.WalkSkipChildren, nil
			}
			switch current {
			case sectionObjective:
				objectiveLines = append(objectiveLines, text)
			case sectionScope:
				scopeLines = append(scopeLines, text)
			case sectionNone:
				if !sawKnown {
					objectiveLines = append(objectiveLines, text)
				}
			}
			return ast.WalkSkipChildren, nil

		case *ast.ListItem:
			text := strings.TrimSpace(extractText(node, source))
			if text == "" {
				return ast.WalkSkipChildren, nil
			}
			switch current {
			case sectionDoD:
				dodItems = append(dodItems, text)
			case sectionVerification:
				verificationItems = append(verificationItems, text)
			case sectionObjective:
				objectiveLines = append(objectiveLines, text)
			case sectionScope:
				scopeLines = append(scopeLines, text)
			}
			return ast.WalkSkipChildren, nil
		}

		return ast.WalkContinue, nil
	})
	if err != nil {
		return models.TaskSpec{}, fmt.Sprintf("task block failed to parse: %v", err), false
	}

	if !titleFound || title == "" {
		return models.TaskSpec{}, "task block missing a title heading, discarded", false
	}

	spec := models.TaskSpec{
		Title:                title,
		Objective:            strings.TrimSpace(strings.Join(objectiveLines, "\n")),
		Scope:                strings.TrimSpace(strings.Join(scopeLines, "\n")),
		AcceptanceCriteria:   dodItems,
		VerificationCommands: verificationItems,
	}
	return spec, "", true
}

// extractText concatenates a node's text content, inserting a newline
// wherever the source had a line break within the same block.
func extractText(n ast.Node, source []byte) string {
	var buf strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte('\n')
			}
			continue
		}
		buf.WriteString(extractText(c, source))
	}
	return buf.String()
}
