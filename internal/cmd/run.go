package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrison/orchestra/internal/config"
	"github.com/harrison/orchestra/internal/filelock"
	"github.com/harrison/orchestra/internal/logger"
	"github.com/harrison/orchestra/internal/models"
)

// NewRunCommand creates the run command: drive a single request through
// the coordinator state machine to completion.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <request>",
		Short: "Run an orchestration request to completion",
		Long: `Run submits <request> to the ROUTA planning agent, registers the
resulting tasks, and drives wave execution and verification (running a
fix wave whenever verification rejects work) until the plan completes,
the wave budget is exhausted, or the run is interrupted.

Examples:
  orchestra run "add rate limiting to the API handlers"
  orchestra run --config orchestra.yaml --max-waves 5 "migrate to v2 schema"
  orchestra run --workspace ./myrepo "fix the flaky auth test"`,
		Args: cobra.ExactArgs(1),
		RunE: runCommand,
	}

	cmd.Flags().String("config", "", "path to config file (default: ./orchestra.yaml)")
	cmd.Flags().String("workspace", "", "workspace root directory")
	cmd.Flags().Int("max-waves", 0, "maximum number of execution waves")
	cmd.Flags().Int("max-parallelism", 0, "maximum concurrent CRAFTER agents per wave")
	cmd.Flags().String("provider", "", "provider kind: anthropic or cli")
	cmd.Flags().String("log-level", "", "log level: trace, debug, info, warn, error")

	return cmd
}

func runCommand(cmd *cobra.Command, args []string) error {
	request := args[0]

	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = "orchestra.yaml"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var workspacePtr *string
	if cmd.Flags().Changed("workspace") {
		v, _ := cmd.Flags().GetString("workspace")
		workspacePtr = &v
	}
	var maxWavesPtr *int
	if cmd.Flags().Changed("max-waves") {
		v, _ := cmd.Flags().GetInt("max-waves")
		maxWavesPtr = &v
	}
	var maxParallelismPtr *int
	if cmd.Flags().Changed("max-parallelism") {
		v, _ := cmd.Flags().GetInt("max-parallelism")
		maxParallelismPtr = &v
	}
	var providerPtr *string
	if cmd.Flags().Changed("provider") {
		v, _ := cmd.Flags().GetString("provider")
		providerPtr = &v
	}
	cfg.MergeWithFlags(workspacePtr, maxWavesPtr, maxParallelismPtr, providerPtr)

	if logLevel, _ := cmd.Flags().GetString("log-level"); logLevel != "" {
		cfg.LogLevel = logLevel
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

	lock := filelock.NewFileLock(filepath.Join(cfg.WorkspaceRoot, ".orchestra.lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire workspace lock: %w", err)
	}
	defer lock.Unlock()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	// StopExecution (spec.md §6.4) interrupts every in-flight agent loop on
	// SIGINT, on top of ctx cancellation reaching the provider's Model.Complete.
	go func() {
		<-ctx.Done()
		orch.StopExecution()
	}()

	result := orch.Execute(ctx, request)
	log.LogResult(result)

	if result.Kind == models.OutcomeFailed {
		return fmt.Errorf("orchestration failed: %w", result.Err)
	}
	return nil
}
