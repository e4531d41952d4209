package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/irfndi/crossover-go/internal/api"
	"github.com/irfndi/crossover-go/internal/api/handlers"
	"github.com/irfndi/crossover-go/internal/cache"
	"github.com/irfndi/crossover-go/internal/ccxt"
	"github.com/irfndi/crossover-go/internal/config"
	"github.com/irfndi/crossover-go/internal/database"
	"github.com/irfndi/crossover-go/internal/logging"
	"github.com/irfndi/crossover-go/internal/middleware"
	"github.com/irfndi/crossover-go/internal/services"
	"github.com/irfndi/crossover-go/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

// app holds everything main starts and later has to stop.
type app struct {
	router    *gin.Engine
	logger    *logrus.Logger
	closers   []func()
	telemetry *telemetry.Provider
	logs      *sdklog.LoggerProvider
}

func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if a.logs != nil {
		if err := a.logs.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to shutdown log exporter: %v\n", err)
		}
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to shutdown telemetry: %v\n", err)
		}
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.Environment)

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           a.router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       15 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"service":     cfg.Telemetry.ServiceName,
			"version":     cfg.Telemetry.ServiceVersion,
			"port":        cfg.Server.Port,
			"environment": cfg.Environment,
		}).Info("Application startup")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		logger.WithField("signal", sig.String()).Info("Application shutdown")
	case err := <-serverErr:
		runErr = fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	a.close(shutdownCtx)

	logger.Info("Server exited gracefully")
	return runErr
}

type namedCheck struct {
	name     string
	required bool
	fn       handlers.HealthCheckFunc
}

// newApp wires storage, market data, services and the router. Postgres and
// Redis are optional: when disabled or unreachable the service runs without
// persistence or caching.
func newApp(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*app, error) {
	a := &app{logger: logger}

	tp, err := telemetry.InitTelemetry(ctx, telemetry.TelemetryConfig{
		Enabled:        cfg.Telemetry.Enabled,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Environment,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.telemetry = tp

	if cfg.Telemetry.Enabled && cfg.Telemetry.ExportLogs {
		logs, err := logging.NewOTLPLoggerProvider(ctx, logging.OTLPConfig{
			Endpoint:    cfg.Telemetry.OTLPEndpoint,
			ServiceName: cfg.Telemetry.ServiceName,
		}, tp.Resource)
		if err != nil {
			logger.WithError(err).Warn("Log export disabled")
		} else {
			a.logs = logs
			logger.AddHook(logging.NewOTelHook(logs, cfg.Telemetry.ServiceName, logging.ParseLogrusLevel(cfg.LogLevel)))
		}
	}

	for _, w := range cfg.Warnings {
		logger.WithField("warning", w).Warn("Unusual strategy defaults")
	}

	erm := services.NewErrorRecoveryManager(logger)
	erm.RegisterCircuitBreaker(services.OperationMarketDataFetch, services.CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	})

	var checks []namedCheck

	var runStore *database.RunRepository
	if cfg.Database.Enabled {
		db, err := database.NewPostgresConnection(ctx, &cfg.Database, logger)
		if err != nil {
			logger.WithError(err).Warn("PostgreSQL unavailable, runs will not be persisted")
		} else {
			a.closers = append(a.closers, db.Close)
			repo := database.NewRunRepository(db.Pool)
			if err := repo.EnsureSchema(ctx); err != nil {
				a.close(ctx)
				return nil, err
			}
			runStore = repo
			checks = append(checks, namedCheck{"database", false, db.HealthCheck})
		}
	}

	ccxtClient := ccxt.NewClient(&cfg.CCXT, logger)
	logger.WithFields(logrus.Fields{
		"ccxt_url": ccxtClient.BaseURL(),
		"exchange": cfg.MarketData.Exchange,
		"symbol":   cfg.MarketData.Symbol,
	}).Info("Market data source configured")
	checks = append(checks, namedCheck{"ccxt", true, func(ctx context.Context) error {
		_, err := ccxtClient.HealthCheck(ctx)
		return err
	}})

	var provider services.PriceSeriesProvider = ccxt.NewSeriesProvider(ccxtClient, logger)
	var cacheStats handlers.CacheStatsProvider

	if cfg.Redis.Enabled {
		rdb, err := database.NewRedisConnectionWithRetry(ctx, cfg.Redis, erm, logger)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, price series will not be cached")
		} else {
			a.closers = append(a.closers, rdb.Close)
			seriesCache := cache.NewRedisPriceSeriesCache(rdb.Client, cfg.MarketData.CacheTTL, logger)
			provider = cache.NewCachedSeriesProvider(provider, seriesCache, logger)
			cacheStats = seriesCache
			checks = append(checks, namedCheck{"redis", false, rdb.HealthCheck})
		}
	}

	health := handlers.NewHealthHandler(cfg.Telemetry.ServiceVersion, erm, cacheStats)
	for _, c := range checks {
		health.AddCheck(c.name, c.required, c.fn)
	}

	var notifier services.Notifier
	if tg, err := services.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger); err != nil {
		logger.WithError(err).Warn("Telegram notifications disabled")
	} else if tg != nil {
		notifier = tg
	}

	var runs services.RunStore
	if runStore != nil {
		runs = runStore
	}

	crossover := services.NewCrossoverService(provider, runs, notifier, erm, services.AnalysisDefaults{
		Exchange:     cfg.MarketData.Exchange,
		Symbol:       cfg.MarketData.Symbol,
		Timeframe:    cfg.MarketData.Timeframe,
		LookbackDays: cfg.MarketData.LookbackDays,
		Params:       cfg.StrategyParams(),
	}, logger)

	routes := api.Handlers{
		Backtest: handlers.NewBacktestHandler(crossover),
		Health:   health,
	}

	if cfg.Security.JWTSecret != "" {
		jwt := middleware.NewAuthMiddleware(cfg.Security.JWTSecret, cfg.Telemetry.ServiceName)
		routes.JWT = jwt
		routes.APIKeys = middleware.NewAPIKeyVerifier(cfg.Security.APIKeyHash)
		routes.Auth = handlers.NewAuthHandler(jwt, cfg.JWTExpiryDuration())
		if runStore != nil {
			routes.Runs = handlers.NewRunsHandler(runStore)
		}
	} else {
		logger.Warn("JWT_SECRET not set, token and run history endpoints are disabled")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	a.router = api.NewRouter(cfg.Telemetry.ServiceName, cfg.Server.AllowedOrigins, logger)
	api.SetupRoutes(a.router, routes)

	return a, nil
}
