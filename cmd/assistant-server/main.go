// Command assistant-server is the public entrypoint: it loads
// configuration, wires C1 through C11, and serves the /v1/chat
// endpoint over HTTP (spec.md §6).
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/corebridge/agentcore/pkg/auth"
	"github.com/corebridge/agentcore/pkg/capability"
	"github.com/corebridge/agentcore/pkg/config"
	"github.com/corebridge/agentcore/pkg/convstore"
	"github.com/corebridge/agentcore/pkg/llm"
	"github.com/corebridge/agentcore/pkg/logger"
	"github.com/corebridge/agentcore/pkg/observability"
	"github.com/corebridge/agentcore/pkg/orchestrator"
	"github.com/corebridge/agentcore/pkg/registry"
	"github.com/corebridge/agentcore/pkg/resolver"
	"github.com/corebridge/agentcore/pkg/server"
)

func main() {
	configPath := flag.String("config", envOr("AGENTCORE_CONFIG", "config.yaml"), "path to the YAML configuration file")
	dotenvPath := flag.String("dotenv", envOr("AGENTCORE_DOTENV", ""), "optional .env file loaded before ${VAR} expansion")
	flag.Parse()

	cfg, err := config.Load(config.LoadOptions{Type: config.SourceFile, Path: *configPath, DotEnvPath: *dotenvPath})
	if err != nil {
		// Logging isn't initialized yet; this is the one place a bare
		// stderr write is correct.
		println("assistant-server: config load failed:", err.Error())
		os.Exit(1)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	logOutput := os.Stderr
	if cfg.LogFile != "" {
		file, cleanup, err := logger.OpenLogFile(cfg.LogFile)
		if err != nil {
			println("assistant-server: open log file failed:", err.Error())
			os.Exit(1)
		}
		defer cleanup()
		logOutput = file
	}
	logger.Init(level, logOutput, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := observability.InitGlobalTracer(ctx, cfg)
	if err != nil {
		slog.Error("assistant-server: tracer init failed", "error", err)
		os.Exit(1)
	}
	if shutdowner, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdowner.Shutdown(shutdownCtx); err != nil {
				slog.Warn("assistant-server: tracer shutdown", "error", err)
			}
		}()
	}

	// registerer is deliberately left a nil interface (not a nil
	// *prometheus.Registry) when metrics are disabled -- orchestrator.New
	// takes prometheus.Registerer, and a nil-valued concrete pointer
	// boxed into that interface would compare non-nil and panic the
	// first time something tries to register against it.
	var promReg *prometheus.Registry
	var registerer prometheus.Registerer
	if cfg.MetricsEnabled {
		promReg = prometheus.NewRegistry()
		registerer = promReg
	}

	authExtractor := auth.NewExtractor(cfg.Mode)

	capRegistry := registry.NewCapabilityRegistry(cfg)
	mint := newServiceCredentialMinter(cfg.ServiceJWTSecret)
	loader := capability.NewLoader(capRegistry, mint)
	defer loader.CloseAll()

	chat, err := llm.NewClient(llm.Config{
		Model:     cfg.LLMModel,
		APIKey:    cfg.LLMAPIKey,
		Host:      cfg.LLMHost,
		Timeout:   cfg.LLMTimeout(),
	})
	if err != nil {
		slog.Error("assistant-server: build llm client", "error", err)
		os.Exit(1)
	}

	store, err := convstore.Open(cfg.ConvStoreDSN, cfg.MaxTurnsRetained)
	if err != nil {
		slog.Error("assistant-server: open conversation store", "error", err)
		os.Exit(1)
	}

	var res *resolver.Resolver
	if cfg.ResolverCorpusPath != "" {
		entities, err := resolver.LoadEntitiesYAML(cfg.ResolverCorpusPath)
		if err != nil {
			slog.Error("assistant-server: load resolver corpus", "error", err)
			os.Exit(1)
		}
		res = resolver.New(resolver.Config{
			MinSimilarity:      cfg.ResolverMinSimilarity,
			MaxCandidates:      cfg.ResolverMaxCandidates,
			ConfidentThreshold: cfg.ResolverConfidentThreshold,
		})
		res.Refit(entities)
		slog.Info("assistant-server: resolver corpus loaded", "entities", len(entities))
	}

	orch := orchestrator.New(orchestrator.Config{
		MaxRounds:             cfg.MaxRounds,
		MaxParallelToolCalls:  cfg.MaxParallelToolCalls,
		HistoryTurnsInContext: cfg.HistoryTurnsInContext,
		DangerousPatterns:     cfg.DangerousPatterns,
		TokenBudgetChars:      cfg.TokenBudgetChars,
		SystemPrompt:          defaultSystemPrompt,
	}, capRegistry, loader, chat, store, res, registerer)

	srv := server.New(authExtractor, orch, cfg.RequestDeadline(), promReg)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("assistant-server: listening", "addr", cfg.ListenAddr, "mode", cfg.Mode)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("assistant-server: serve", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("assistant-server: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("assistant-server: graceful shutdown failed", "error", err)
	}
}

const defaultSystemPrompt = "You are an enterprise assistant. Answer questions about the business " +
	"data you have access to by calling the tools available this turn. " +
	"Only use information returned by those tools; say so plainly when " +
	"you don't have access to the data needed to answer."

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
