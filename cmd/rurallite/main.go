package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/rurallite/rurallite/internal/app"
	"github.com/rurallite/rurallite/internal/auth"
	"github.com/rurallite/rurallite/internal/cors"
	"github.com/rurallite/rurallite/internal/dashboard"
	"github.com/rurallite/rurallite/internal/gate"
	jobmetrics "github.com/rurallite/rurallite/internal/jobs"
	"github.com/rurallite/rurallite/internal/lessons"
	"github.com/rurallite/rurallite/internal/observability"
	"github.com/rurallite/rurallite/internal/platform/cache"
	"github.com/rurallite/rurallite/internal/platform/db"
	"github.com/rurallite/rurallite/internal/platform/httpx"
	"github.com/rurallite/rurallite/internal/quizzes"
	"github.com/rurallite/rurallite/internal/shared"
	"github.com/rurallite/rurallite/internal/telemetry"
	"github.com/rurallite/rurallite/internal/users"
	"github.com/rurallite/rurallite/internal/view"
	"github.com/rurallite/rurallite/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	shutdownTracing := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: "rurallite",
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		Environment: cfg.AppEnv,
	}, logger)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown", slog.Any("error", err))
		}
	}()

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	responder := httpx.Responder{Logger: logger, ExposeDetails: !cfg.IsProduction()}

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}
	sessionManager := shared.NewSessionManager(shared.SessionCookieName, cfg.TokenTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret, cfg.IsProduction())

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts, jobmetrics.NewMetrics(metrics.Registerer()))
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	codec := auth.NewCodec(cfg.JWTSecret, cfg.TokenTTL)
	authService := auth.NewService(auth.NewRepository(dbpool), codec, jobClient, logger)
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager, responder)

	quizStore := quizzes.NewRedisStore(redisClient)
	quizService := quizzes.NewService(quizStore, quizzes.NewPGAttempts(dbpool))
	quizHandler := quizzes.NewHandler(quizService, logger, responder)

	lessonCache := cache.NewVersioned(redisClient, "lessons", cfg.LessonsCache)
	lessonService := lessons.NewService(lessons.NewRepository(dbpool), lessonCache, logger)
	lessonHandler := lessons.NewHandler(lessonService, responder)

	usersService := users.NewService(users.NewRepository(dbpool), authService, quizStore, db.Host(cfg.PGDSN), cfg.AppEnv)
	usersHandler := users.NewHandler(logger, usersService, templates, csrfManager, sessionManager, responder)

	dashboardService := dashboard.NewService(authService, lessonService, quizService, usersService)
	dashboardHandler := dashboard.NewHandler(logger, dashboardService, templates, csrfManager, sessionManager)

	authGate := gate.New(gate.Config{
		Verifier:   codec,
		CORS:       cors.NewPolicy(cfg.CORSAllowedOrigins, cfg.IsDevelopment()),
		CookieName: sessionManager.CookieName(),
		Logger:     logger,
		Registerer: metrics.Registerer(),
	})

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Gate:             authGate,
		Metrics:          metrics,
		AuthHandler:      authHandler,
		UsersHandler:     usersHandler,
		LessonsHandler:   lessonHandler,
		QuizzesHandler:   quizHandler,
		DashboardHandler: dashboardHandler,
		JobHandler:       jobs.NewHandler(inspector, logger, responder),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
