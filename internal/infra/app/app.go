package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/arklim/auth-core/internal/core/port"
	"github.com/arklim/auth-core/internal/infra/config"
	"github.com/arklim/auth-core/internal/infra/database"
	"github.com/arklim/auth-core/internal/infra/kafka"
	"github.com/arklim/auth-core/internal/infra/notify"
	infraredis "github.com/arklim/auth-core/internal/infra/redis"
	"github.com/arklim/auth-core/internal/infra/security"
	"github.com/arklim/auth-core/internal/infra/telemetry"
	"github.com/arklim/auth-core/internal/repository/memory"
	pgrepo "github.com/arklim/auth-core/internal/repository/postgres"
	redisrepo "github.com/arklim/auth-core/internal/repository/redis"
	"github.com/arklim/auth-core/internal/transport/http/handlers"
	"github.com/arklim/auth-core/internal/transport/http/middleware"
	"github.com/arklim/auth-core/internal/transport/http/routes"
	"github.com/arklim/auth-core/internal/usecase"
)

// App owns every long-lived dependency and the HTTP server.
type App struct {
	cfg    *config.AppConfig
	logger *zap.Logger

	pool      *pgxpool.Pool
	redis     *infraredis.Client
	publisher port.EventPublisher
	kafkaStop func() error
	traceStop func(context.Context) error

	server *http.Server
}

// New wires the application from configuration. Kafka and tracing are
// optional: absence of brokers or an OTLP endpoint degrades to no-ops.
func New(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*App, error) {
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := infraredis.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	traceStop, err := telemetry.Attach(ctx, cfg)
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	}

	var publisher port.EventPublisher = kafka.NoopPublisher{}
	var kafkaStop func() error
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewPublisher(cfg.Kafka, cfg.App.Name, cfg.App.Env, log)
		if err != nil {
			log.Warn("kafka publisher disabled", zap.Error(err))
		} else {
			publisher = producer
			kafkaStop = producer.Close
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	securityMetrics, err := telemetry.NewSecurityMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("init security metrics: %w", err)
	}

	httpMetrics, err := middleware.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	keys, err := security.NewFileKeyProvider(cfg.JWT.KeyDirectory)
	if err != nil {
		return nil, fmt.Errorf("load signing keys: %w", err)
	}

	codec, err := security.NewTokenCodec(keys, cfg.JWT.SigningKID, cfg.App.Name, cfg.JWT.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	users := pgrepo.NewUserRepository(pool)
	sessions := pgrepo.NewSessionRepository(pool)

	var resets port.ResetRepository
	switch cfg.Reset.Store {
	case config.ResetStorePostgres:
		resets = pgrepo.NewResetRepository(pool)
	default:
		resets = memory.NewResetStore(cfg.Reset.CacheCapacity)
	}
	log.Info("reset store selected", zap.String("store", cfg.Reset.Store))
	lockout := redisrepo.NewLockoutStore(redisClient.Client())
	throttle := redisrepo.NewThrottleStore(redisClient.Client())
	sender := notify.NewLogSender(log, cfg.App.Env != "production")

	authService := usecase.NewAuthService(
		users,
		sessions,
		lockout,
		publisher,
		codec,
		securityMetrics,
		log,
		cfg.JWT.RefreshTokenTTL,
		cfg.Lockout.Threshold,
		cfg.Lockout.Duration,
	)

	resetService := usecase.NewPasswordResetService(
		users,
		sessions,
		resets,
		throttle,
		sender,
		publisher,
		security.DefaultPasswordValidator(),
		log,
		cfg.Reset.CodeTTL,
		cfg.Reset.TokenTTL,
		cfg.Reset.RequestLimit,
		cfg.Reset.RequestWindow,
	)

	router := routes.New(cfg.App.Env, routes.Deps{
		Auth:     handlers.NewAuthHandler(authService, codec),
		Password: handlers.NewPasswordHandler(resetService, int64(cfg.Reset.TokenTTL.Seconds())),
		Health: handlers.NewHealthHandler(map[string]handlers.HealthChecker{
			"postgres": poolChecker{pool},
			"redis":    redisClient,
		}),
		Metrics:  httpMetrics,
		Registry: registry,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &App{
		cfg:       cfg,
		logger:    log,
		pool:      pool,
		redis:     redisClient,
		publisher: publisher,
		kafkaStop: kafkaStop,
		traceStop: traceStop,
		server:    server,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown failed", zap.Error(err))
	}

	if a.kafkaStop != nil {
		if err := a.kafkaStop(); err != nil {
			a.logger.Error("kafka shutdown failed", zap.Error(err))
		}
	}

	if a.traceStop != nil {
		if err := a.traceStop(shutdownCtx); err != nil {
			a.logger.Error("tracer shutdown failed", zap.Error(err))
		}
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis shutdown failed", zap.Error(err))
	}

	a.pool.Close()

	return nil
}

type poolChecker struct {
	pool *pgxpool.Pool
}

func (p poolChecker) HealthCheck(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
