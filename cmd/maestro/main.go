// Command maestro runs the multi-agent supervisor runtime.
//
// Usage:
//
//	maestro serve
//	maestro serve --addr :9090 --prompts prompts.yaml --data-db data.db
//	maestro version
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/orchestrahq/maestro"
	"github.com/orchestrahq/maestro/pkg/checkpoint"
	"github.com/orchestrahq/maestro/pkg/config"
	"github.com/orchestrahq/maestro/pkg/datateam"
	"github.com/orchestrahq/maestro/pkg/llms"
	"github.com/orchestrahq/maestro/pkg/logger"
	"github.com/orchestrahq/maestro/pkg/performance"
	"github.com/orchestrahq/maestro/pkg/prompts"
	"github.com/orchestrahq/maestro/pkg/server"
	"github.com/orchestrahq/maestro/pkg/service"
	"github.com/orchestrahq/maestro/pkg/tools"
	"github.com/orchestrahq/maestro/pkg/worker"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve   ServeCmd   `cmd:"" default:"withargs" help:"Start the HTTP server."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(maestro.GetVersion())
	return nil
}

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Addr    string `help:"Listen address (overrides SERVER_ADDR)."`
	Prompts string `help:"Prompt override file, watched for changes (overrides PROMPTS_PATH)." type:"path"`
	DataDB  string `name:"data-db" help:"SQLite database for the DataTeam worker (overrides DATA_DB_PATH)." type:"path"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	cfg := config.Load()
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}
	if c.Prompts != "" {
		cfg.PromptsPath = c.Prompts
	}
	if c.DataDB != "" {
		cfg.DataDBPath = c.DataDB
	}

	pm, err := buildPrompts(ctx, cfg.PromptsPath)
	if err != nil {
		return err
	}

	models := llms.NewHTTPFactory(cfg.Model)

	toolReg := tools.NewRegistry()
	if err := toolReg.Register(tools.DatetimeToolName, tools.NewDatetimeTool("UTC")); err != nil {
		return fmt.Errorf("failed to register datetime tool: %w", err)
	}

	workers := worker.NewRegistry()
	registerWorkers(workers, models, pm, toolReg, cfg)

	svc := service.New(cfg, models, pm, workers, buildPerformanceLayer(ctx, cfg), checkpoint.NewMemory())

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(svc).Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Server shutdown error", "error", err)
		}
	}()

	slog.Info("maestro server ready", "addr", cfg.Server.Addr, "workers", workers.Count())
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// buildPrompts loads the prompt tree and starts the hot-reload watcher
// when a file is configured.
func buildPrompts(ctx context.Context, path string) (*prompts.Manager, error) {
	if path == "" {
		return prompts.New(), nil
	}
	pm, err := prompts.NewFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}
	go func() {
		if err := pm.Watch(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("Prompt watcher stopped", "error", err)
		}
	}()
	return pm, nil
}

// registerWorkers wires the built-in worker set. The DataTeam worker is
// only registered when a database is configured.
func registerWorkers(workers *worker.Registry, models llms.Factory, pm *prompts.Manager, toolReg *tools.Registry, cfg config.Config) {
	fb := worker.NewFallbackManager()

	// No search backend ships by default; the researcher degrades to a
	// best-effort answer.
	_ = workers.Register(worker.NewResearcher(models, pm, nil))
	_ = workers.Register(worker.NewDataAnalyst(models, pm))
	_ = workers.Register(worker.NewWriter(models, pm))
	_ = workers.Register(worker.NewGeneral(models, pm, toolReg, fb))

	if cfg.DataDBPath != "" {
		db, err := datateam.OpenSQLite(cfg.DataDBPath)
		if err != nil {
			slog.Warn("DataTeam disabled: cannot open database", "path", cfg.DataDBPath, "error", err)
			return
		}
		_ = workers.Register(datateam.NewDataTeam(models, pm, db))
	}
}

// buildPerformanceLayer assembles the enabled gates. A cache backend
// that cannot be reached disables the cache rather than failing startup.
func buildPerformanceLayer(ctx context.Context, cfg config.Config) *performance.Layer {
	var rules *performance.RuleEngine
	if cfg.Performance.EnableRuleEngine {
		rules = performance.NewRuleEngine()
	}

	var cache *performance.SemanticCache
	if cfg.Performance.EnableSemanticCache {
		kv := performance.NewRedisKV(cfg.Performance.RedisAddr, cfg.Performance.RedisPassword, cfg.Performance.RedisDB)
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		err := kv.Ping(pingCtx)
		pingCancel()
		if err != nil {
			slog.Warn("Semantic cache disabled: redis unreachable", "addr", cfg.Performance.RedisAddr, "error", err)
		} else {
			cache = performance.NewSemanticCache(
				kv,
				performance.NewHTTPEmbedder(cfg.Embedder),
				cfg.Performance.SimilarityThreshold,
				time.Duration(cfg.Performance.CacheTTLDays)*24*time.Hour,
			)
		}
	}

	if rules == nil && cache == nil {
		return nil
	}
	return performance.NewLayer(rules, cache)
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("maestro"),
		kong.Description("Multi-agent supervisor runtime."),
		kong.UsageOnError(),
	)

	output := os.Stderr
	if cli.LogFile != "" {
		file, cleanup, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		output = file
	}
	logger.Init(logger.ParseLevel(cli.LogLevel), output, cli.LogFormat)

	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
