// Command inquest runs the investigation engine API (serve, the default) or
// executes a phased deployment (deploy).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nsure-ai/inquest/pkg/api"
	"github.com/nsure-ai/inquest/pkg/config"
	"github.com/nsure-ai/inquest/pkg/deploy"
	"github.com/nsure-ai/inquest/pkg/engine"
	"github.com/nsure-ai/inquest/pkg/graph"
	"github.com/nsure-ai/inquest/pkg/health"
	"github.com/nsure-ai/inquest/pkg/journal"
	"github.com/nsure-ai/inquest/pkg/llm"
	"github.com/nsure-ai/inquest/pkg/tools"
	"github.com/nsure-ai/inquest/pkg/version"
	"github.com/nsure-ai/inquest/pkg/warehouse"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Missing .env is fine; explicit environment wins either way.
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, err := config.Initialize(configDir())
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	mode := "serve"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	slog.Info("Starting inquest",
		"version", version.Version, "commit", version.Commit, "mode", mode)

	switch mode {
	case "serve":
		return runServe(cfg)
	case "deploy":
		return runDeploy(cfg)
	default:
		return fmt.Errorf("unknown mode %q (expected serve or deploy)", mode)
	}
}

func configDir() string {
	if dir := os.Getenv("INQUEST_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "."
}

func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := buildLLMClient(cfg)
	if err != nil {
		return err
	}

	registry, closeWarehouse, err := buildRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeWarehouse()

	var jnl graph.Journal
	if cfg.Engine.Journal.Enabled {
		dsn := os.Getenv(cfg.Engine.Journal.DSNEnv)
		if dsn == "" {
			return fmt.Errorf("journal enabled but %s is not set", cfg.Engine.Journal.DSNEnv)
		}
		pg, err := journal.Open(ctx, dsn)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer pg.Close()
		jnl = pg
	}

	service := engine.NewService(cfg, client, registry, jnl)
	server := api.NewServer(service, cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	return service.Shutdown(shutdownCtx)
}

func buildLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.Engine.LLM.Provider {
	case "mock":
		return llm.NewScriptedClient(), nil
	default:
		apiKey := os.Getenv(cfg.Engine.LLM.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("LLM api key %s is not set", cfg.Engine.LLM.APIKeyEnv)
		}
		inner, err := llm.NewAnthropicClient(apiKey)
		if err != nil {
			return nil, err
		}
		return llm.NewRetryingClient(inner), nil
	}
}

// buildRegistry wires the tool registry. The warehouse tool runs against
// Postgres when a DSN is configured and an empty-result stub otherwise, so
// the engine stays runnable without a warehouse.
func buildRegistry(ctx context.Context, cfg *config.Config) (*tools.Registry, func(), error) {
	registry := tools.NewRegistry()

	exec, closeFn, err := buildWarehouseExecutor(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	wh := warehouse.NewTool(exec, cfg.Engine.Warehouse.TransactionsTable, cfg.Engine.Warehouse.ResultLimit)
	if err := registry.Register(wh); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("register warehouse tool: %w", err)
	}
	return registry, closeFn, nil
}

func buildWarehouseExecutor(ctx context.Context, cfg *config.Config) (warehouse.QueryExecutor, func(), error) {
	dsn := os.Getenv(cfg.Engine.Warehouse.DSNEnv)
	if dsn == "" {
		slog.Warn("Warehouse DSN not set, queries return no rows",
			"env", cfg.Engine.Warehouse.DSNEnv)
		stub := warehouse.ExecutorFunc(func(context.Context, string, map[string]any) (*warehouse.QueryResult, error) {
			return &warehouse.QueryResult{}, nil
		})
		return stub, func() {}, nil
	}

	exec, err := warehouse.NewPgxExecutor(ctx, dsn, cfg.Limits.PerToolTimeout)
	if err != nil {
		return nil, nil, err
	}
	return exec, exec.Close, nil
}

func runDeploy(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(cfg.Deploy.Services) == 0 {
		return fmt.Errorf("deploy: no services configured")
	}

	probe := health.NewProbe(cfg.Deploy.Health.ProbeTimeout)
	coordinator := deploy.NewCoordinator(cfg.Deploy, deploy.NewExecDeployer(), probe)

	state, err := coordinator.Run(ctx)
	if state != nil {
		slog.Info("Deployment finished",
			"deployment_id", state.DeploymentID, "status", state.Status)
	}
	return err
}
