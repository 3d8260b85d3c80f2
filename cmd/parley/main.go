package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/parleyhq/parley/pkg/api"
	"github.com/parleyhq/parley/pkg/audit"
	"github.com/parleyhq/parley/pkg/auth"
	"github.com/parleyhq/parley/pkg/config"
	"github.com/parleyhq/parley/pkg/members"
	"github.com/parleyhq/parley/pkg/middleware"
	"github.com/parleyhq/parley/pkg/moderation"
	"github.com/parleyhq/parley/pkg/observability"
	"github.com/parleyhq/parley/pkg/policy"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Infof("starting parley (storage=%s)", cfg.Storage.Type)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("failed to shut down telemetry")
		}
	}()

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	memberStore, warningStore, recorder, db, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, revocations, err := openRevocations(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	codec, err := auth.NewTokenCodec([]byte(cfg.Auth.SigningKey), cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	engine := moderation.NewEngine(warningStore, memberStore).
		WithThreshold(cfg.Moderation.BanThreshold).
		WithBanDuration(cfg.Moderation.BanDuration).
		WithAuditRecorder(recorder)
	if metrics != nil {
		engine.WithMetrics(metrics)
	}

	table := policy.DefaultTable()
	if cfg.Auth.PolicyFile != "" {
		table, err = policy.LoadFile(cfg.Auth.PolicyFile)
		if err != nil {
			return err
		}
		logger.Infof("loaded policy table from %s", cfg.Auth.PolicyFile)
	}

	throttle := middleware.NewLoginThrottle(&middleware.ThrottleConfig{
		AttemptsPerWindow: cfg.Auth.LoginAttemptsPerMinute,
		WindowDuration:    time.Minute,
		BurstSize:         5,
	})
	if metrics != nil {
		throttle.WithMetrics(metrics)
	}

	server := api.NewServer(api.Options{
		Members:       memberStore,
		Codec:         codec,
		Hasher:        auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Engine:        engine,
		Revocations:   revocations,
		Policy:        table,
		Recorder:      recorder,
		Metrics:       metrics,
		Logger:        logger,
		LoginThrottle: throttle,
	})

	handler := server.Handler()
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "parley")
	}

	scheduler, err := startScheduler(ctx, cfg, engine, revocations, logger)
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	return serve(ctx, cfg, handler, db, redisClient, metrics, logger)
}

// openStores builds the member store, warning store, and audit recorder
// for the configured storage type. The returned *sql.DB is nil for the
// memory backend.
func openStores(ctx context.Context, cfg *config.Config, logger *observability.Logger) (members.Store, moderation.Store, audit.Recorder, *sql.DB, error) {
	switch cfg.Storage.Type {
	case "memory":
		logger.Warn("using in-memory storage; all data is lost on restart")
		return members.NewMemoryStore(), moderation.NewMemoryStore(), audit.NewMemoryRecorder(), nil, nil

	case "postgres", "sqlite3":
		dsn := cfg.Storage.PostgresURL
		driver := "postgres"
		if cfg.Storage.Type == "sqlite3" {
			dsn = cfg.Storage.SQLitePath
			driver = "sqlite3"
		}

		db, err := sql.Open(driver, dsn)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("failed to open %s database: %w", driver, err)
		}
		db.SetMaxOpenConns(cfg.Storage.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Storage.MaxIdleConns)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, nil, nil, nil, fmt.Errorf("database unreachable: %w", err)
		}

		memberStore := members.NewSQLStore(db, driver)
		if err := memberStore.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, nil, nil, err
		}
		warningStore := moderation.NewSQLStore(db, driver)
		if err := warningStore.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, nil, nil, err
		}
		recorder := audit.NewSQLRecorder(db)
		if err := recorder.EnsureSchema(ctx, driver); err != nil {
			db.Close()
			return nil, nil, nil, nil, err
		}

		logger.Infof("connected to %s storage", driver)
		return memberStore, warningStore, recorder, db, nil

	default:
		return nil, nil, nil, nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

// openRevocations builds the token revocation list: redis-backed when a
// redis URL is configured, in-memory otherwise.
func openRevocations(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*redis.Client, auth.RevocationList, error) {
	if cfg.Storage.RedisURL == "" {
		return nil, auth.NewMemoryRevocationList(), nil
	}

	var opts *redis.Options
	if strings.Contains(cfg.Storage.RedisURL, "://") {
		parsed, err := redis.ParseURL(cfg.Storage.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: cfg.Storage.RedisURL}
	}
	if cfg.Storage.RedisPassword != "" {
		opts.Password = cfg.Storage.RedisPassword
	}
	if cfg.Storage.RedisDB != 0 {
		opts.DB = cfg.Storage.RedisDB
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis unreachable: %w", err)
	}

	list, err := auth.NewRedisRevocationList(client, cfg.Storage.RevocationCacheSize)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	logger.Info("token revocation list backed by redis")
	return client, list, nil
}

// startScheduler runs the periodic jobs: the expired-ban sweep and, for
// the in-memory revocation list, the lapsed-entry purge.
func startScheduler(ctx context.Context, cfg *config.Config, engine *moderation.Engine, revocations auth.RevocationList, logger *observability.Logger) (*cron.Cron, error) {
	scheduler := cron.New()

	_, err := scheduler.AddFunc(cfg.Moderation.SweepSchedule, func() {
		lifted, err := engine.LiftExpiredBans(ctx)
		if err != nil {
			logger.WithError(err).Error("expired-ban sweep failed")
			return
		}
		if lifted > 0 {
			logger.Infof("lifted %d expired bans", lifted)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", cfg.Moderation.SweepSchedule, err)
	}

	if memList, ok := revocations.(*auth.MemoryRevocationList); ok {
		if _, err := scheduler.AddFunc("@every 10m", func() {
			memList.Purge()
		}); err != nil {
			return nil, err
		}
	}

	scheduler.Start()
	return scheduler, nil
}

// serve runs the API server and the health/metrics server until the
// context is cancelled, then shuts both down gracefully.
func serve(ctx context.Context, cfg *config.Config, handler http.Handler, db *sql.DB, redisClient *redis.Client, metrics *observability.Metrics, logger *observability.Logger) error {
	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	health := observability.NewHealthChecker(db, redisClient)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", health.Liveness)
	healthMux.HandleFunc("/readyz", health.Readiness)
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Infof("API server listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.Infof("health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("API server shutdown failed")
		}
		return healthServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
