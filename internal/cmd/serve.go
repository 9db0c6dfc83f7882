package cmd

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/orchestra/internal/a2a"
	"github.com/harrison/orchestra/internal/config"
	"github.com/harrison/orchestra/internal/logger"
)

// NewServeCommand creates the serve command: expose the orchestrator over
// the A2A JSON-RPC HTTP adapter (spec.md §4.10).
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the orchestrator over JSON-RPC (A2A adapter)",
		Long: `Serve starts an HTTP server exposing message/send, tasks/get and
tasks/cancel as JSON-RPC 2.0 methods, plus an agent-card discovery
endpoint, so external A2A clients can drive the orchestrator.`,
		Args: cobra.NoArgs,
		RunE: serveCommand,
	}

	cmd.Flags().String("config", "", "path to config file (default: ./orchestra.yaml)")
	cmd.Flags().String("workspace", "", "workspace root directory")
	cmd.Flags().String("listen", "", "address to listen on (e.g. :8787)")

	return cmd
}

func serveCommand(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = "orchestra.yaml"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if workspace, _ := cmd.Flags().GetString("workspace"); workspace != "" {
		cfg.WorkspaceRoot = workspace
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.A2A.ListenAddr = listen
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.NewConsoleLogger(os.Stdout, cfg.LogLevel)

	orch, closeStores, err := buildWorkspace(cfg, log)
	if err != nil {
		return fmt.Errorf("build workspace: %w", err)
	}
	defer closeStores()

	srv := a2a.NewServer(orch.Coordinator, orch, cfg.WorkspaceRoot, a2a.AgentCard{
		Name:        "orchestra",
		Description: "Multi-agent task orchestrator: plan, execute in waves, verify",
		Version:     Version,
		Capabilities: a2a.Capabilities{Streaming: false},
		Skills: []a2a.Skill{
			{ID: "orchestrate", Name: "Orchestrate", Description: "Plan and execute a request across CRAFTER waves with GATE verification"},
		},
		Provider:   a2a.Provider{Organization: "orchestra"},
		Interfaces: []a2a.Interface{{Transport: "JSONRPC", URL: "http://" + cfg.A2A.ListenAddr + "/a2a"}},
	})

	log.Infof("listening on %s", cfg.A2A.ListenAddr)
	return http.ListenAndServe(cfg.A2A.ListenAddr, srv.Router(cfg.A2A.CORSOrigins))
}
