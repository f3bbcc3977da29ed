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

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"home-service-server/config"
	"home-service-server/database"
	"home-service-server/jobs"
	"home-service-server/middleware"
	"home-service-server/notifications"
	"home-service-server/repository"
	"home-service-server/routes"
	"home-service-server/services"
	"home-service-server/telemetry"
	ws "home-service-server/websocket"
)

const maxRequestBody = 1 << 20

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one command and returns the process exit code.
// Deferred cleanup, including the logger flush, runs before main exits.
func run(args []string) int {
	command := "serve"
	if len(args) > 0 {
		command = args[0]
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := initLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	switch command {
	case "serve":
		err = serve(cfg, logger)
	case "migrate":
		err = migrate(cfg, logger)
	case "seed":
		err = seed(cfg, logger)
	default:
		err = fmt.Errorf("unknown command %q (expected serve, migrate or seed)", command)
	}
	if err != nil {
		logger.Error("Command failed", zap.String("command", command), zap.Error(err))
		return 1
	}
	return 0
}

func migrate(cfg *config.Config, logger *zap.Logger) error {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		return err
	}
	logger.Info("Database migrated")
	return nil
}

// seed loads demo servicemen for local development
func seed(cfg *config.Config, logger *zap.Logger) error {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)

	created, err := database.SeedServicemen(context.Background(), db)
	if err != nil {
		return err
	}
	logger.Info("Demo servicemen seeded", zap.Int("created", created))
	return nil
}

func serve(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.Warn("Tracing disabled", zap.Error(err))
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
		logger.Info("Database migrated")
	}

	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	sinks := notifications.MultiSink{hub, notifications.NewLogSink(logger)}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unreachable, events will be retried by the relay", zap.Error(err))
		}
		sinks = append(sinks, notifications.NewRedisSink(rdb, cfg.Redis.Channel))
	}

	notificationRepo := repository.NewNotificationRepository(db)
	outbox := notifications.NewOutbox(notificationRepo, sinks, logger)

	deps := services.Deps{DB: db, Outbox: outbox, Logger: logger}
	lifecycle := services.NewLifecycleService(deps)
	svc := routes.Services{
		Dispatch: services.NewDispatchService(deps, services.DispatchOptions{
			DefaultRadiusKm: cfg.Dispatch.NearbyRadiusKm,
			MaxRadiusKm:     cfg.Dispatch.MaxRadiusKm,
			AverageSpeedKmh: cfg.Dispatch.AverageSpeedKmh,
			MaxLocationAge:  cfg.Dispatch.LocationMaxAge,
		}),
		Assignment:    services.NewAssignmentService(deps),
		Lifecycle:     lifecycle,
		Settlement:    services.NewSettlementService(deps, services.StubSettler{}),
		Notifications: services.NewNotificationService(notificationRepo),
	}

	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	limiter := middleware.NewRateLimiter(cfg.Security.RateLimitPerMinute, cfg.Security.RateLimitBurst)

	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(corsMiddleware(cfg.Security.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/ws"})))
	router.Use(middleware.InputValidationMiddleware(maxRequestBody))
	router.Use(limiter.Middleware(logger))

	routes.RegisterRoutes(router, svc, routes.Options{
		JWTSecret: cfg.JWT.Secret,
		JWTIssuer: cfg.JWT.Issuer,
		Hub:       hub,
		Upgrader:  ws.NewUpgrader(cfg.Security.AllowedOrigins),
	})

	background := []*jobs.Job{
		jobs.NewNotificationRelayJob(outbox, cfg.Notify.RelayInterval, logger),
		jobs.NewStaleAssignmentJob(lifecycle, cfg.Dispatch.StaleAssignmentAfter, cfg.Dispatch.StaleScanInterval, logger),
		jobs.NewRateLimiterCleanupJob(limiter, 10*time.Minute, logger),
	}
	for _, j := range background {
		j.Start(ctx)
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           otelhttp.NewHandler(router, "home-service-server"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	for _, j := range background {
		j.Stop()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Tracer shutdown failed", zap.Error(err))
	}

	logger.Info("Server exited")
	return nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}
