// Command ingestd is the main entry point for the knowledge-graph ingestion
// orchestrator.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/graphkb/internal/config"
	"github.com/MrWong99/graphkb/internal/health"
	"github.com/MrWong99/graphkb/internal/observe"
	"github.com/MrWong99/graphkb/internal/orchestrator"
	"github.com/MrWong99/graphkb/pkg/provider/embeddings"
	"github.com/MrWong99/graphkb/pkg/provider/embeddings/ollama"
	"github.com/MrWong99/graphkb/pkg/provider/embeddings/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "ingestd: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "ingestd: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("ingestd starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── OpenTelemetry providers ───────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "graphkb"})
	if err != nil {
		slog.Error("failed to initialise telemetry providers", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Embeddings provider registry ──────────────────────────────────────────
	registry := config.NewRegistry()
	registerBuiltinProviders(registry)

	// ── Application wiring ────────────────────────────────────────────────────
	application, err := orchestrator.New(ctx, cfg, registry)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	// ── HTTP surface: health, readiness, metrics ──────────────────────────────
	metrics := observe.DefaultMetrics()
	healthHandler := health.New(
		health.Checker{Name: "graph_store", Check: application.Store().Ping},
		health.Checker{Name: "embeddings", Check: func(ctx context.Context) error {
			_, err := application.EmbeddingProvider().Embed(ctx, "readyz probe")
			return err
		}},
	)

	mux := http.NewServeMux()
	healthHandler.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: observe.Middleware(metrics)(mux),
	}

	serverErrCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	slog.Info("ingestd ready — press Ctrl+C to shut down")

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping…")
	case err := <-serverErrCh:
		if err != nil {
			slog.Error("http server error", "err", err)
			return 1
		}
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown error", "err", err)
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("application shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders registers the embeddings provider factories that
// ship with the orchestrator.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterEmbeddings("ollama", func(e config.ProviderEntry) (embeddings.Provider, error) {
		baseURL := e.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.New(baseURL, e.Model)
	})
	reg.RegisterEmbeddings("openai", func(e config.ProviderEntry) (embeddings.Provider, error) {
		var opts []openai.Option
		if e.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(e.BaseURL))
		}
		return openai.New(e.APIKey, e.Model, opts...)
	})
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║      graphkb ingestd — startup        ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	fmt.Printf("║  Graph host      : %-19s ║\n", truncate(graphHost(cfg.Graph.URI, cfg.Graph.Host), 19))
	fmt.Printf("║  Embeddings      : %-19s ║\n", truncate(cfg.Embeddings.Name+"/"+cfg.Embeddings.Model, 19))
	fmt.Printf("║  Connector tmout : %-19s ║\n", truncate(cfg.Timeouts.Connector().String(), 19))
	fmt.Printf("║  Embed tmout     : %-19s ║\n", truncate(cfg.Timeouts.Embed().String(), 19))
	fmt.Printf("║  Doc tmout       : %-19s ║\n", truncate(cfg.Timeouts.Document().String(), 19))
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", truncate(cfg.Server.ListenAddr, 19))
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

// graphHost extracts a connection string's host for the startup summary,
// never its credentials.
func graphHost(uri, host string) string {
	if host != "" {
		return host
	}
	if uri == "" {
		return "(not configured)"
	}
	at := strings.LastIndex(uri, "@")
	if at == -1 {
		return uri
	}
	rest := uri[at+1:]
	if slash := strings.Index(rest, "/"); slash != -1 {
		return rest[:slash]
	}
	return rest
}

func truncate(s string, n int) string {
	if s == "" {
		return "(not configured)"
	}
	if len(s) > n {
		return s[:n-1] + "…"
	}
	return s
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
