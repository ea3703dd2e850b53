package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"kpi/internal/domain/audit"
	"kpi/internal/domain/auth"
	"kpi/internal/domain/directory"
	"kpi/internal/domain/kpi"
	"kpi/internal/domain/notifications"
	"kpi/internal/platform/config"
	"kpi/internal/platform/db"
	"kpi/internal/platform/email"
	"kpi/internal/platform/jobs"
	"kpi/internal/platform/metrics"
	"kpi/internal/transport/http/api"
	audithandler "kpi/internal/transport/http/handlers/audit"
	kpihandler "kpi/internal/transport/http/handlers/kpi"
	notificationshandler "kpi/internal/transport/http/handlers/notifications"
	"kpi/internal/transport/http/middleware"
)

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Redis   *redis.Client
	KPI     *kpi.Service
	Jobs    *jobs.Service
	Metrics *metrics.Collector
	Router  http.Handler

	cancel context.CancelFunc
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	app := &App{Config: cfg, DB: pool, Metrics: metrics.New()}

	var cache kpi.ConfigCache = kpi.NewInMemoryConfigCache()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("redis url: %w", err)
		}
		app.Redis = redis.NewClient(opts)
		cache = kpi.NewRedisConfigCache(app.Redis, "kpi")
	}

	kpiStore := kpi.NewStore(pool)
	dir := directory.NewStore(pool)
	app.KPI = kpi.NewService(kpiStore, dir, cache)
	app.KPI.Concurrency = cfg.BatchConcurrency
	app.KPI.CacheTTL = cfg.ConfigCacheTTL

	notificationService := notifications.NewService(notifications.NewStore(pool), dir, email.New(cfg), cfg.EmailFrom, cfg.EmailEnabled)
	app.Jobs = jobs.New(jobs.NewRunStore(pool), cfg, &jobs.OutboxDrainer{
		Store:       kpiStore,
		Dispatcher:  notificationService,
		MaxAttempts: cfg.OutboxMaxAttempts,
		BatchSize:   cfg.OutboxBatchSize,
	})
	app.KPI.Committed = func(context.Context, kpi.CommitResult) {
		app.Jobs.EnqueueOutboxDrain()
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel
	app.Jobs.Start(jobCtx)

	perms := auth.NewStore(pool)
	auditService := audit.New(pool)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.Auth(cfg.JWTSecret))
	router.Use(middleware.LoggerWithMetrics(app.Metrics))
	router.Use(middleware.Recoverer)
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if app.Redis != nil {
			if err := app.Redis.Ping(ctx).Err(); err != nil {
				http.Error(w, "cache not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, app.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		kpiHandler := kpihandler.NewHandler(app.KPI, notificationService, perms)
		kpiHandler.Audit = auditService
		kpiHandler.Idempotency = middleware.NewIdempotencyStore(pool)
		kpiHandler.Metrics = app.Metrics
		kpiHandler.Company = cfg.LetterCompanyName
		kpiHandler.MaxRows = cfg.BatchMaxRows

		r.Route("/kpi", func(r chi.Router) {
			kpiHandler.RegisterRoutes(r)
			notificationshandler.NewHandler(notificationService).RegisterRoutes(r)
		})

		audithandler.NewHandler(auditService, perms).RegisterRoutes(r)
	})

	app.Router = router
	return app, nil
}

func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			slog.Warn("redis close failed", "err", err)
		}
	}
	a.DB.Close()
}

func Run() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("server shutdown failed", "err", err)
		}
	}()

	log.Printf("KPI server listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}
