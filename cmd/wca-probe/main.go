// Command wca-probe checks the health of a configured WCA pipeline. By
// default it runs the probe once and exits non-zero when any subsystem is
// unavailable. With --serve it stays up and exposes the probe and
// Prometheus metrics over HTTP, for use as a sidecar or smoke-test target.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ansible-wisdom/wca-pipeline/internal/adapters/secrets/memory"
	redisstore "github.com/ansible-wisdom/wca-pipeline/internal/adapters/secrets/redis"
	sqlitestore "github.com/ansible-wisdom/wca-pipeline/internal/adapters/secrets/sqlite"
	"github.com/ansible-wisdom/wca-pipeline/internal/config"
	"github.com/ansible-wisdom/wca-pipeline/internal/credentials"
	"github.com/ansible-wisdom/wca-pipeline/internal/pipeline"
	"github.com/ansible-wisdom/wca-pipeline/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file")
	serveAddr := flag.String("serve", "", "listen address; when set, serve /health and /metrics instead of exiting")
	probeTimeout := flag.Duration("timeout", 30*time.Second, "overall deadline for one probe")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(*configPath, *serveAddr, *probeTimeout, logger); err != nil {
		logger.Error("probe failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// errUnhealthy distinguishes a clean "pipeline is down" exit from setup
// failures.
var errUnhealthy = errors.New("pipeline unhealthy")

func run(configPath, serveAddr string, probeTimeout time.Duration, logger *slog.Logger) error {
	shutdown, err := telemetry.InitTracer("wca-pipeline", logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, closeStore, err := newSecretStore(cfg)
	if err != nil {
		return fmt.Errorf("open secret store: %w", err)
	}
	defer closeStore()

	metrics := telemetry.NewPrometheus(prometheus.DefaultRegisterer)

	p, err := pipeline.New(cfg, store, metrics, pipeline.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	if serveAddr == "" {
		return probeOnce(p, probeTimeout, logger)
	}
	return serve(serveAddr, p, probeTimeout, logger)
}

func probeOnce(p *pipeline.Pipeline, timeout time.Duration, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	summary := p.HealthProbe(ctx)
	out, _ := json.Marshal(summary)
	fmt.Println(string(out))

	if !summary.Healthy() {
		return errUnhealthy
	}
	logger.Info("pipeline healthy", slog.String("variant", string(p.Variant())))
	return nil
}

func serve(addr string, p *pipeline.Pipeline, probeTimeout time.Duration, logger *slog.Logger) error {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), probeTimeout)
		defer cancel()

		summary := p.HealthProbe(ctx)
		w.Header().Set("Content-Type", "application/json")
		if !summary.Healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(summary)
	})
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: r}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("probe server listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newSecretStore builds the configured local secret-store adapter. The
// returned close function is a no-op for stores without resources.
func newSecretStore(cfg *config.Config) (credentials.Store, func(), error) {
	noop := func() {}
	switch cfg.Secrets.Type {
	case "":
		return nil, noop, nil
	case "memory":
		return memory.New(), noop, nil
	case "sqlite":
		s, err := sqlitestore.New(cfg.Secrets.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { s.Close() }, nil
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s, err := redisstore.New(ctx, redisstore.Options{
			Addr:     cfg.Secrets.RedisAddr,
			Password: cfg.Secrets.RedisPassword,
			DB:       cfg.Secrets.RedisDB,
		})
		if err != nil {
			return nil, noop, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown secret store type %q", cfg.Secrets.Type)
	}
}
