package main

import (
	"context"
	"database/sql"
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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/twmb/franz-go/pkg/kgo"

	"sitegen/internal/audit"
	companymetrics "sitegen/internal/company/metrics"
	"sitegen/internal/company/registry"
	"sitegen/internal/company/resolver"
	"sitegen/internal/company/store"
	"sitegen/internal/platform/config"
	"sitegen/internal/platform/httpserver"
	"sitegen/internal/platform/kafka"
	"sitegen/internal/platform/logger"
	platformmetrics "sitegen/internal/platform/metrics"
	"sitegen/internal/platform/postgres"
	platformredis "sitegen/internal/platform/redis"
	"sitegen/internal/site/archive"
	"sitegen/internal/site/handler"
	"sitegen/internal/site/history"
	sitemetrics "sitegen/internal/site/metrics"
	"sitegen/internal/site/render"
	"sitegen/internal/site/retention"
	"sitegen/internal/site/service"
	"sitegen/pkg/platform/httputil"
	"sitegen/pkg/platform/middleware/metadata"
	"sitegen/pkg/platform/middleware/requestid"
	"sitegen/pkg/platform/middleware/requesttime"
)

// main wires dependencies, exposes the HTTP router and owns the server
// lifecycle. Pipeline logic lives in the internal/company and internal/site
// packages.
func main() {
	configPath := flag.String("config", os.Getenv("SITEGEN_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

type infra struct {
	redis *platformredis.Client
	db    *sql.DB
	kafka *kgo.Client
}

func (i *infra) close() {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
}

// health reports the first unreachable backing service.
func (i *infra) health(ctx context.Context) error {
	if i.redis != nil {
		if err := i.redis.Health(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if i.db != nil {
		if err := i.db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	return nil
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := platformmetrics.New(reg)
	companyMetrics := companymetrics.New(reg)
	siteMetrics := sitemetrics.New(reg)

	var deps infra
	defer deps.close()

	cache, err := buildCache(ctx, cfg, &deps)
	if err != nil {
		return err
	}

	client := registry.New(cfg.Registry.BaseURL,
		registry.WithTimeout(cfg.Registry.Timeout),
		registry.WithUserAgent(cfg.Registry.UserAgent),
		registry.WithInsecureSkipVerify(cfg.Registry.InsecureSkipVerify),
		registry.WithRateLimit(cfg.Registry.RatePerSecond, cfg.Registry.Burst),
		registry.WithCircuitBreaker(cfg.Registry.BreakerFailures, cfg.Registry.BreakerCooldown),
		registry.WithMetrics(companyMetrics),
	)
	res := resolver.New(client, cache,
		resolver.WithFreshness(cfg.Cache.Freshness),
		resolver.WithLogger(log),
		resolver.WithMetrics(companyMetrics),
	)

	sink := render.NewDirSink(cfg.Site.OutputDir)
	engine := render.NewEngine(render.NewDirSource(cfg.Site.TemplateDir), sink, render.WithLogger(log))

	var packager service.Packager = archive.Disabled{}
	if cfg.Site.ArchiveEnabled {
		packager = archive.NewZipPackager(cfg.Site.OutputDir, archive.WithLogger(log))
	}

	var eventSink audit.Sink = audit.NewLogSink(log)
	deps.kafka, err = kafka.New(ctx, cfg.Kafka)
	if err != nil {
		return err
	}
	if deps.kafka != nil {
		eventSink = audit.NewKafkaSink(deps.kafka, cfg.Kafka.Topic)
	}
	publisher := audit.NewPublisher(eventSink, audit.WithAsyncBuffer(256), audit.WithLogger(log))
	defer publisher.Close()

	svc := service.New(res, engine, packager,
		history.NewFileStore(cfg.Site.HistoryFile, history.WithLogger(log)),
		service.WithDocuments(sink),
		service.WithPublisher(publisher),
		service.WithLogger(log),
		service.WithMetrics(siteMetrics),
	)

	if cfg.Retention.Interval > 0 {
		sweeper := retention.New(cfg.Site.OutputDir,
			retention.WithMaxAge(cfg.Retention.MaxAge),
			retention.WithLogger(log),
		)
		go func() {
			if err := sweeper.Run(ctx, cfg.Retention.Interval); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("retention sweeper stopped", "error", err)
			}
		}()
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestid.Middleware)
	router.Use(requesttime.Middleware)
	router.Use(metadata.ClientMetadata)
	router.Use(httpMetrics.Middleware)
	router.Handle("/metrics", platformmetrics.Handler(reg))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := deps.health(ctx); err != nil {
			log.WarnContext(ctx, "health check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	handler.New(svc, log).Register(router)

	srv := httpserver.New(cfg.Server.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting sitegen", "addr", cfg.Server.Addr, "cache_backend", cfg.Cache.Backend, "registry", client.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func buildCache(ctx context.Context, cfg *config.Config, deps *infra) (resolver.Store, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendMemory:
		return store.NewInMemoryCache(), nil
	case config.CacheBackendRedis:
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		deps.redis = client
		return store.NewRedisCache(client.Client), nil
	case config.CacheBackendPostgres:
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		deps.db = db
		cache := store.NewPostgresCache(db)
		if err := cache.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return cache, nil
	default:
		return store.NewFileCache(cfg.Cache.Dir)
	}
}
