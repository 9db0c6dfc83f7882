package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/orchestra/internal/planparser"
)

// NewValidateCommand creates the validate subcommand: parse a plan file
// without executing it, reporting task counts and any non-fatal warnings.
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plan-file>",
		Short: "Parse a plan file and report tasks and warnings",
		Long: `Validate parses a Markdown (@@@task blocks) or JSON plan file the
way ROUTA's planning output is parsed, without registering or executing
any tasks. Exit code is 0 if at least one task parses, 1 otherwise.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validatePlanFile(args[0], cmd.OutOrStdout())
		},
		SilenceUsage: true,
	}
	return cmd
}

func validatePlanFile(path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read plan file: %w", err)
	}

	tasks, warnings, err := planparser.Parse(string(data))
	if err != nil {
		return fmt.Errorf("parse plan: %w", err)
	}

	fmt.Fprintf(out, "Parsed %d task(s) from %s\n", len(tasks), path)
	for i, task := range tasks {
		fmt.Fprintf(out, "  %d. %s (deps: %v, group: %d)\n", i+1, task.Title, task.Dependencies, task.ParallelGroup)
	}
	if len(warnings) > 0 {
		fmt.Fprintf(out, "Warnings:\n")
		for _, w := range warnings {
			fmt.Fprintf(out, "  - %s\n", w.Message)
		}
	}

	if len(tasks) == 0 {
		return fmt.Errorf("plan contains no tasks")
	}
	return nil
}
