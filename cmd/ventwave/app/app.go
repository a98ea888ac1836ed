package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ventwave/internal/agent"
	"ventwave/internal/config"
	"ventwave/internal/db"
	"ventwave/internal/history"
	"ventwave/internal/llm"
	"ventwave/internal/secret"
	"ventwave/internal/tools"
	"ventwave/internal/trace"
)

// ConfigPath is bound to the global --config flag.
var ConfigPath string

// App is the wired agent shared by the subcommands.
type App struct {
	Config  *config.Config
	Runner  *agent.Runner
	History *history.Store

	closers []func(context.Context) error
}

// LoadConfig reads and validates the config file.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if issues := config.Validate(cfg); len(issues) > 0 {
		msgs := make([]string, len(issues))
		for i, is := range issues {
			msgs[i] = is.String()
		}
		return nil, fmt.Errorf("invalid config:\n  %s", strings.Join(msgs, "\n  "))
	}
	return cfg, nil
}

// New loads the config and wires the agent, its model client and, when
// enabled, tracing and the history store. Callers must Close the result.
func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg}

	secrets := Secrets(cfg)

	if cfg.Trace.Enabled {
		if err := a.initTrace(ctx, secrets); err != nil {
			return nil, err
		}
	}

	registry := agent.NewRegistry()
	registry.Register(tools.NewLiteratureSearch(secret.Named(secrets, cfg.Services.Brave.APIKeySecret)))

	agentCfg, err := agent.FromProfile(agent.AgentProfile{
		Name:       cfg.Agent.Name,
		Provider:   cfg.Agent.Provider,
		Model:      cfg.Agent.Model,
		Credential: cfg.Agent.Credential,
		Output:     cfg.Agent.Output,
		Tools:      cfg.Agent.Tools,
	}, secrets, registry)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	llmCfg := cfg.LLMs[cfg.Agent.Provider]
	opts := llm.Options{Timeout: llmCfg.Timeout()}
	if llmCfg != nil {
		opts.BaseURL = llmCfg.BaseURL
	}
	client, err := llm.New(cfg.Agent.Provider, opts)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	runnerOpts := []agent.RunnerOption{agent.WithMaxToolRounds(cfg.Agent.MaxToolRounds)}
	if cfg.DB.Enabled {
		database, err := db.Open(cfg.DB.Path)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("opening database: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return database.Close() })
		if err := database.Migrate(); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		a.History = history.NewStore(database)
		runnerOpts = append(runnerOpts, agent.WithHistory(a.History))
	}

	a.Runner, err = agent.NewRunner(client, agentCfg, runnerOpts...)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	slog.Debug("agent ready",
		"name", agentCfg.Name(),
		"provider", agentCfg.Model().Provider,
		"model", agentCfg.Model().ModelID,
		"tools", agentCfg.ToolNames(),
		"history", a.History != nil,
	)
	return a, nil
}

// Secrets is the provider chain: environment first, then the secrets dir.
func Secrets(cfg *config.Config) secret.Provider {
	chain := secret.Chain{secret.NewEnv()}
	if cfg.Secrets.Dir != "" {
		chain = append(chain, secret.NewDir(cfg.Secrets.Dir))
	}
	return chain
}

func (a *App) initTrace(ctx context.Context, secrets secret.Provider) error {
	tc := trace.Config{
		Endpoint:    a.Config.Trace.Endpoint,
		URLPath:     a.Config.Trace.URLPath,
		Insecure:    a.Config.Trace.Insecure,
		SampleRatio: a.Config.Trace.SampleRatio,
	}
	if name := a.Config.Trace.APIKeySecret; name != "" {
		key, err := secrets.GetSecret(ctx, name)
		switch {
		case err == nil:
			tc.APIKey = key
		case !errors.Is(err, secret.ErrNotFound):
			return fmt.Errorf("resolving trace api key: %w", err)
		}
	}

	shutdown, err := trace.Init(ctx, tc)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	a.closers = append(a.closers, shutdown)
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			slog.Warn("shutdown step failed", "error", err)
		}
	}
	a.closers = nil
}
