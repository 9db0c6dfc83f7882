package cmd

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/harrison/orchestra/internal/config"
	"github.com/harrison/orchestra/internal/coordinator"
	"github.com/harrison/orchestra/internal/eventbus"
	"github.com/harrison/orchestra/internal/logger"
	"github.com/harrison/orchestra/internal/models"
	"github.com/harrison/orchestra/internal/orchestrator"
	"github.com/harrison/orchestra/internal/provider"
	"github.com/harrison/orchestra/internal/store"
	"github.com/harrison/orchestra/internal/toolexec"
)

// buildStores constructs the Agent/Task/Conversation stores named by
// cfg.Store.Backend. sqlite backs agents/tasks; conversations always use
// either memory or redis, since the sqlite schema carries no message log.
func buildStores(cfg *config.Config) (store.AgentStore, store.TaskStore, store.ConversationStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemoryAgentStore(), store.NewMemoryTaskStore(), store.NewMemoryConversationStore(), noop, nil

	case "sqlite":
		sqliteStore, err := store.OpenSQLiteStore(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, nil, noop, fmt.Errorf("open sqlite store: %w", err)
		}
		return sqliteStore, sqliteStore.TaskStore(), store.NewMemoryConversationStore(), sqliteStore.Close, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		conversations := store.NewRedisConversationStore(client, cfg.Store.RedisPrefix)
		return store.NewMemoryAgentStore(), store.NewMemoryTaskStore(), conversations, client.Close, nil

	default:
		return nil, nil, nil, noop, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// buildWorkspace assembles the coordinator, provider and orchestrator for
// one workspace run, wiring the Workspace file tools and the text-based
// tool-call loop over the configured Model backend.
func buildWorkspace(cfg *config.Config, log *logger.ConsoleLogger) (*orchestrator.Orchestrator, func() error, error) {
	agents, tasks, conversations, closeStores, err := buildStores(cfg)
	if err != nil {
		return nil, nil, err
	}

	bus := eventbus.New()
	coord := coordinator.New(cfg.WorkspaceRoot, agents, tasks, conversations, bus)
	coord.MaxParallelism = cfg.MaxParallelism

	registry := toolexec.NewRegistry()
	workspace, err := toolexec.NewWorkspace(cfg.WorkspaceRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve workspace: %w", err)
	}
	workspace.AllowWrite = true
	workspace.RegisterBuiltins(registry)
	coord.Tools.RegisterTools(registry, cfg.WorkspaceRoot)

	model, err := buildModel(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	loopProvider := provider.NewLoopProvider(model, registry, conversations, defaultSystemPrompts(), cfg.Provider.MaxIterations, provider.Capabilities{
		Streaming:   true,
		ToolCalling: true,
		Interrupt:   true,
	})

	orch := orchestrator.New(coord, loopProvider, cfg.MaxWaves)
	orch.PhaseEvents = log.LogPhaseEvent

	return orch, closeStores, nil
}

func buildModel(cfg *config.Config, log *logger.ConsoleLogger) (provider.Model, error) {
	var base provider.Model
	switch cfg.Provider.Kind {
	case "anthropic":
		base = provider.NewAnthropicModel(cfg.Provider.AnthropicAPIKey, cfg.Provider.AnthropicModel, cfg.Provider.MaxTokens)
	case "cli":
		cliModel := provider.NewCLIModel()
		cliModel.Path = cfg.Provider.CLIPath
		cliModel.Timeout = cfg.Provider.CLITimeout
		base = cliModel
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Provider.Kind)
	}
	return provider.NewResilientModel(base, "orchestrator-model", log), nil
}

func defaultSystemPrompts() provider.SystemPrompts {
	return provider.SystemPrompts{
		models.RoleRouta: "You are ROUTA, the planning agent. Break the request into @@@task blocks " +
			"with a title, objective, scope, acceptance criteria and dependencies. Use the " +
			"coordination tools (list_agents, create_agent, delegate, message_agent, " +
			"report_to_parent) and the workspace file tools to inspect the repository first.",
		models.RoleCrafter: "You are a CRAFTER agent. Complete the task you were delegated, using " +
			"the workspace file tools to read and write code. When done, call report_to_parent " +
			"with a summary, the files you modified, and success.",
		models.RoleGate: "You are the GATE verification agent. Review every REVIEW_REQUIRED task's " +
			"changes against its acceptance criteria. Call report_to_parent with APPROVED or " +
			"NOT APPROVED and your reasoning.",
	}
}
