package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"diagnostics-api/config"
	"diagnostics-api/controllers"
	"diagnostics-api/middleware"
	"diagnostics-api/monitor"
	"diagnostics-api/routes"
	"diagnostics-api/services"
)

const serviceName = "diagnostics-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logFile, logger := config.InitLogging(cfg.IsProduction())
	if logFile != nil {
		defer logFile.Close()
	}
	defer func() { _ = logger.Sync() }()

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := config.SetupTracing(ctx, cfg, serviceName)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}

	if err := config.InitDB(cfg); err != nil {
		logger.Fatal("database", zap.Error(err))
	}

	rdb, err := config.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn("redis unavailable, signed links are not cached", zap.Error(err))
	}

	var events services.EventPublisher = services.NopPublisher{}
	if cfg.AMQPURL != "" {
		publisher, err := services.NewAMQPPublisher(cfg.AMQPURL)
		if err != nil {
			logger.Warn("amqp unavailable, domain events are dropped", zap.Error(err))
		} else {
			defer publisher.Close()
			events = publisher
		}
	}

	storage, err := services.NewLocalStorage(cfg.UploadPath)
	if err != nil {
		logger.Fatal("upload storage", zap.Error(err))
	}

	mailer := config.NewSMTPMailer(cfg)
	if !mailer.Configured() {
		logger.Warn("smtp not configured, e-mails will fail and be logged")
	}

	llm := services.NewLLMClient(cfg)
	if llm == nil {
		logger.Warn("OPENAI_API_KEY not set, AI features return 503")
	}

	svcs := buildServices(cfg, config.DB, infra{
		storage: storage,
		signer:  services.NewURLSigner(cfg.JWTSecret, cfg.PublicBaseURL, cfg.SignedURLTTL, rdb),
		mailer:  mailer,
		events:  events,
		llm:     llm,
		logger:  logger,
	})
	controllers.Configure(svcs)

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.LoggerWithWriter(config.LogWriter))
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigin))
	router.Use(middleware.Tracing(serviceName))
	router.Use(monitor.Middleware())
	router.Use(middleware.ErrorHandler(logger))

	monitor.RegisterMetricsRoute(router)
	monitor.RegisterMonitorPage(router)
	monitor.RegisterLogsRoute(router, config.LogFilePath(), cfg.LogsToken)

	routes.SetupRoutes(router, routes.Options{
		DB:         config.DB,
		Auth:       svcs.Auth,
		CronSecret: cfg.CronSecret,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("flush traces", zap.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
