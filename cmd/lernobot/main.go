// Command lernobot is the main entry point for the Lernobot mediation server.
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
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lernobot/lernobot/internal/catalog"
	"github.com/lernobot/lernobot/internal/config"
	"github.com/lernobot/lernobot/internal/engine"
	"github.com/lernobot/lernobot/internal/notify"
	"github.com/lernobot/lernobot/internal/observe"
	"github.com/lernobot/lernobot/internal/registry"
	"github.com/lernobot/lernobot/internal/secrets"
	"github.com/lernobot/lernobot/internal/vision"
	"github.com/lernobot/lernobot/pkg/provider/ocr"
	"github.com/lernobot/lernobot/pkg/provider/ocr/httpocr"
	"github.com/lernobot/lernobot/pkg/provider/model/ollama"
	"github.com/lernobot/lernobot/pkg/store"
	"github.com/lernobot/lernobot/pkg/store/postgres"
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
			fmt.Fprintf(os.Stderr, "lernobot: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "lernobot: %v\n", err)
		}
		return 1
	}

	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("lernobot starting",
		"config", *configPath,
		"metrics_addr", cfg.Server.MetricsAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "lernobot",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(observe.MeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	var metricsSrv *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "err", err)
			}
		}()
		slog.Info("metrics endpoint listening", "addr", cfg.Server.MetricsAddr)
	}

	// ── Durable store ─────────────────────────────────────────────────────────
	var (
		conversations store.ConversationStore
		providers     store.ProviderStore
		overrides     store.OverrideStore
		notifications store.NotificationSink
	)
	if cfg.Storage.PostgresDSN != "" {
		pg, err := postgres.New(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pg.Close()
		conversations = pg.Conversations()
		providers = pg.Providers()
		overrides = pg.Overrides()
		notifications = pg.Notifications()
		slog.Info("using postgres store")
	} else {
		mem := store.NewMemStore()
		conversations = mem.Conversations()
		providers = mem.Providers()
		overrides = mem.Overrides()
		notifications = mem.Notifications()
		slog.Warn("no postgres dsn configured, using non-durable in-memory store")
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	cipher, err := secrets.FromKey(cfg.Security.EncryptionKey)
	if err != nil {
		slog.Error("failed to initialise credential cipher", "err", err)
		return 1
	}
	reg := registry.New(providers, cipher,
		registry.WithFactory(registry.NewDefaultFactory(cfg.Providers.OllamaBaseURL)),
		registry.WithPreferredDefault(cfg.Engine.DefaultProvider),
	)

	if err := reg.StartupLoad(ctx); err != nil {
		slog.Error("failed to load provider registry", "err", err)
		return 1
	}
	if err := reg.BootstrapFromConfig(ctx, &cfg.Providers); err != nil {
		slog.Error("failed to bootstrap providers from config", "err", err)
		return 1
	}

	// Local model discovery is best effort: a missing Ollama server is normal.
	if localModels, err := ollama.ListLocalModels(ctx, cfg.Providers.OllamaBaseURL); err != nil {
		slog.Debug("no local ollama server discovered", "err", err)
	} else if len(localModels) > 0 {
		keys := make([]string, len(localModels))
		for i, m := range localModels {
			keys[i] = "ollama-" + m
		}
		if err := reg.RegisterLocal(ctx, keys, func(key string) string {
			return key[len("ollama-"):]
		}); err != nil {
			slog.Warn("failed to register local models", "err", err)
		} else {
			slog.Info("registered local models", "count", len(localModels))
		}
	}

	// ── Mediation engine ──────────────────────────────────────────────────────
	cat, err := catalog.New()
	if err != nil {
		slog.Error("failed to build prompt catalog", "err", err)
		return 1
	}

	var extractor ocr.Extractor
	if cfg.OCR.Endpoint != "" {
		ex, err := httpocr.New(cfg.OCR.Endpoint)
		if err != nil {
			slog.Error("failed to configure ocr fallback", "err", err)
			return 1
		}
		extractor = ex
		slog.Info("ocr fallback enabled", "endpoint", cfg.OCR.Endpoint)
	}
	pipeline := vision.New(reg, extractor, metrics)

	watchdog := notify.New(notifications, conversations, cfg.Engine.InactivityWindow)
	defer watchdog.Close()

	eng, err := engine.New(engine.Config{
		States:      conversations,
		Overrides:   overrides,
		Registry:    reg,
		Catalog:     cat,
		Pipeline:    pipeline,
		Watchdog:    watchdog,
		Metrics:     metrics,
		LockStripes: cfg.Engine.SessionLockStripes,
	})
	if err != nil {
		slog.Error("failed to initialise engine", "err", err)
		return 1
	}

	// ── HTTP ingress ──────────────────────────────────────────────────────────
	api := newServer(eng, reg, overrides)
	apiSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           api.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api server error", "err", err)
			stop()
		}
	}()

	slog.Info("server ready — press Ctrl+C to shut down",
		"listen_addr", cfg.Server.ListenAddr,
		"default_provider", reg.DefaultName(),
	)

	<-ctx.Done()
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("api server shutdown error", "err", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown error", "err", err)
		}
	}
	slog.Info("goodbye")
	return 0
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
