package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tullo/trust/config"
	"github.com/tullo/trust/internal/auth"
	"github.com/tullo/trust/internal/cache"
	"github.com/tullo/trust/internal/clock"
	"github.com/tullo/trust/internal/database"
	"github.com/tullo/trust/internal/handlers"
	"github.com/tullo/trust/internal/karma"
	"github.com/tullo/trust/internal/middleware"
	"github.com/tullo/trust/internal/models"
	"github.com/tullo/trust/internal/moderation"
	"github.com/tullo/trust/internal/notify"
	"github.com/tullo/trust/internal/report"
	"github.com/tullo/trust/internal/repository"
	"github.com/tullo/trust/internal/warning"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpiryHours)

	var store repository.Store
	switch cfg.Server.Store {
	case config.StoreMemory:
		mem := repository.NewMemoryStore()
		seedDevUsers(mem, jwtService, logger)
		store = mem
		logger.Warn("using in-memory store; state is lost on exit")
	default:
		db, err := database.NewPostgresDB(cfg.GetDSN())
		if err != nil {
			logger.Error("failed to connect to database", "err", err)
			os.Exit(1)
		}
		defer db.Close()

		logger.Info("running database migrations")
		if err := database.RunMigrations(db.DB); err != nil {
			logger.Error("failed to run migrations", "err", err)
			os.Exit(1)
		}
		store = repository.NewPostgresStore(db)
	}

	// Connect to Redis
	var (
		dispatcher notify.Dispatcher = notify.LogDispatcher{Logger: logger}
		mailer     notify.Mailer     = notify.LogMailer{Logger: logger}
		buckets    middleware.BucketStore
	)
	redis, err := cache.NewRedisClient(cfg.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("running without redis; notifications are logged only", "err", err)
		redis = nil
	} else {
		defer redis.Close()
		dispatcher = notify.NewRedisDispatcher(redis)
		mailer = notify.NewRedisMailer(redis)
		buckets = redis
	}

	// Initialize services
	ledger := karma.NewLedger(store, clk, logger)
	tracker := warning.NewTracker(store, ledger, clk, logger)
	registry := report.NewRegistry(store, dispatcher, clk, logger)
	engine := moderation.NewEngine(moderation.Config{
		Store:    store,
		Warnings: tracker,
		Ledger:   ledger,
		Notifier: dispatcher,
		Mailer:   mailer,
		Clock:    clk,
		Logger:   logger,
	})

	if redis != nil {
		go karma.NewSubscriber(redis, ledger, logger).Run(ctx)
	}

	reportLimiter := middleware.NewRateLimiter("report", cfg.Moderation.ReportRatePerMinute, cfg.Moderation.ReportBurst, buckets, logger)
	reportLimiter.Cleanup(ctx)

	// Initialize handlers
	reportHandler := handlers.NewReportHandler(registry, engine, logger)
	userHandler := handlers.NewUserHandler(tracker, engine, ledger, clk, logger)
	karmaHandler := handlers.NewKarmaHandler(ledger, logger)

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtService, store.Repos().Users))

	// Restricted users can still see why they are locked out
	api.GET("/me/standing", userHandler.GetStanding)

	gated := api.Group("")
	gated.Use(middleware.SuspensionGate(clk))
	{
		gated.POST("/reports",
			middleware.RequireVerifiedEmail(),
			middleware.RateLimitMiddleware(reportLimiter),
			reportHandler.CreateReport)

		gated.GET("/users/:id/karma", karmaHandler.GetKarma)
		gated.GET("/users/:id/karma/history", karmaHandler.GetHistory)

		// Moderator routes
		mod := gated.Group("")
		mod.Use(middleware.RequireRole(models.RoleModerator, models.RoleAdmin))
		{
			mod.GET("/reports", reportHandler.ListReports)
			mod.GET("/reports/:id", reportHandler.GetReport)
			mod.POST("/reports/:id/resolve", reportHandler.ResolveReport)
			mod.GET("/users/:id/warnings", userHandler.GetWarnings)
			mod.GET("/users/:id/moderation-logs", userHandler.GetModerationLogs)
		}

		// Service-to-service routes
		internal := gated.Group("/internal")
		internal.Use(middleware.RequireRole(models.RoleService))
		{
			internal.POST("/karma", karmaHandler.ApplyKarma)
		}
	}

	// Start server
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting trust server", "addr", srv.Addr, "env", cfg.Server.Env, "store", cfg.Server.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Server.LogLevel}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// seedDevUsers creates a moderator, two members and a service account in the
// memory store and logs a token for each so the API can be exercised locally.
func seedDevUsers(mem *repository.MemoryStore, jwtService *auth.JWTService, logger *slog.Logger) {
	now := time.Now().UTC()
	seeds := []struct{ email, name, role string }{
		{"mod@trust.local", "Moderator", models.RoleModerator},
		{"alice@trust.local", "Alice", models.RoleUser},
		{"bob@trust.local", "Bob", models.RoleUser},
		{"events@trust.local", "Event Service", models.RoleService},
	}
	for _, s := range seeds {
		u := models.User{
			ID:            uuid.New(),
			Email:         s.email,
			DisplayName:   s.name,
			EmailVerified: true,
			Role:          s.role,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		mem.AddUser(u)

		token, err := jwtService.GenerateToken(u.ID, u.Email, u.Role, u.TokenVersion)
		if err != nil {
			logger.Error("failed to issue dev token", "email", u.Email, "err", err)
			continue
		}
		logger.Info("dev user", "id", u.ID, "email", u.Email, "role", u.Role, "token", token)
	}
}
