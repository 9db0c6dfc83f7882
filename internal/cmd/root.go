// Package cmd wires the orchestrator's cobra command surface: run, serve
// and validate, each loading internal/config and handing off to the
// internal/orchestrator driver or the internal/a2a HTTP server.
package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// NewRootCommand creates the root "orchestra" cobra command.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orchestra",
		Short: "Multi-agent task orchestrator",
		Long: `orchestra drives a plan through a coordinator state machine:
ROUTA plans and registers tasks, CRAFTER agents execute them wave by
wave, and GATE verifies each wave before the next begins.`,
		Version:      Version,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewServeCommand())

	return cmd
}
