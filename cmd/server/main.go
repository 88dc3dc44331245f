// Package main runs the event registration HTTP server with the websocket check-in feed and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/occasio/backend/config"
	"github.com/occasio/backend/internal/analytics"
	"github.com/occasio/backend/internal/attendees"
	"github.com/occasio/backend/internal/auth"
	"github.com/occasio/backend/internal/clock"
	"github.com/occasio/backend/internal/emaillogs"
	"github.com/occasio/backend/internal/events"
	"github.com/occasio/backend/internal/mailer"
	"github.com/occasio/backend/internal/middleware"
	"github.com/occasio/backend/internal/models"
	"github.com/occasio/backend/internal/notifications"
	"github.com/occasio/backend/internal/organizations"
	"github.com/occasio/backend/internal/realtime"
	"github.com/occasio/backend/internal/tickets"
	"github.com/occasio/backend/internal/worker"
	"github.com/occasio/backend/pkg/database"
	"github.com/occasio/backend/pkg/queue"
	"github.com/occasio/backend/pkg/redis"
	"github.com/occasio/backend/pkg/response"
	"github.com/occasio/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database.DSN(), logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
	}
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolConfig{
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	// Redis backs the email queue, auth codes and cross-instance feed fan-out. Without it
	// emails and OTP flows are off and the feed is local to this instance.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
	} else {
		logger.Warn("REDIS_ADDR not set: email, OTP and password reset are disabled")
	}

	var s3Client *storage.S3
	if cfg.AWS.BannerBucket != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			BannerBucket:         cfg.AWS.BannerBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
			s3Client = nil
		}
	}

	clk := clock.NewSystem()
	txm := database.NewTxManager(pool)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpireHours)*time.Hour)

	authRepo := auth.NewRepository(pool)
	orgRepo := organizations.NewRepository(pool)
	eventRepo := events.NewRepository(pool)
	attendeeRepo := attendees.NewRepository(pool)
	emailLogRepo := emaillogs.NewRepository(pool)

	// Email pipeline: sender logs + enqueues, worker delivers.
	renderer := mailer.NewRenderer()
	mailCfg := mailer.Config{
		Provider:        cfg.Email.Provider,
		FromAddress:     cfg.Email.FromAddress,
		FromName:        cfg.Email.FromName,
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
	}
	var (
		jobQueue *queue.Queue
		sender   *notifications.Sender
	)
	if rdb != nil {
		jobQueue = queue.NewQueue(rdb.Client, logger)
		sender = notifications.NewSender(emailLogRepo, jobQueue, renderer, mailCfg.Enabled(), logger)
	}

	// Realtime check-in feed
	var hub *realtime.Hub
	if rdb != nil {
		ps := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(ps, ps, logger)
	} else {
		hub = realtime.NewHub(nil, nil, logger)
	}
	defer hub.Close()

	policy := events.StatusPolicy{DefaultDuration: cfg.Events.DefaultDuration, Location: cfg.Events.Location()}
	resolver := events.NewStatusResolver(policy, clk, eventRepo, cfg.Events.StatusWriteBack, logger)

	// Events
	eventDeps := events.Deps{Store: eventRepo, Orgs: orgRepo, Attendees: attendeeRepo, Status: resolver}
	if s3Client != nil {
		eventDeps.Images = s3Client
	}
	if sender != nil {
		eventDeps.Reminders = sender
	}
	eventSvc := events.NewService(eventDeps, logger)
	eventHandler := events.NewHandler(eventSvc)
	requireManager := events.RequireManager(eventSvc)

	// Attendees
	attendeeDeps := attendees.Deps{
		Store:       attendeeRepo,
		Events:      eventRepo,
		Tx:          txm,
		Codes:       tickets.NewGenerator(clk),
		QR:          tickets.NewEncoder(),
		Status:      resolver,
		Users:       authRepo,
		Broadcaster: hub,
	}
	if sender != nil {
		attendeeDeps.Notifier = sender
	}
	attendeeHandler := attendees.NewHandler(attendees.NewService(attendeeDeps, logger))

	// Organizations
	orgSvc := organizations.NewService(orgRepo, authRepo, txm, clk, logger)
	orgHandler := organizations.NewHandler(orgSvc)

	// Auth and users
	var (
		codes   auth.Codes
		account auth.Mail
	)
	if rdb != nil {
		codes = auth.NewCodeStore(rdb.Client)
		account = sender
	}
	authSvc := auth.NewService(authRepo, codes, account, jwtService, auth.Options{
		RequireEmailOTP: cfg.Auth.RequireEmailOTP,
		OTPTTL:          cfg.Auth.OTPTTL,
		OTPVerifiedTTL:  cfg.Auth.OTPVerifiedTTL,
		ResetTTL:        cfg.Auth.ResetTTL,
		FrontendURL:     cfg.Auth.FrontendURL,
	}, logger)
	authHandler := auth.NewHandler(authSvc)

	// Email logs and analytics
	var resendQueue emaillogs.Enqueuer
	if jobQueue != nil {
		resendQueue = jobQueue
	}
	emailLogHandler := emaillogs.NewHandler(emaillogs.NewService(emailLogRepo, resendQueue, logger))
	analyticsHandler := analytics.NewHandler(analytics.NewService(attendeeRepo, emailLogRepo, resolver, hub))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		if rdb != nil {
			authGroup.POST("/send-otp", authHandler.SendOTP)
			authGroup.POST("/verify-otp", authHandler.VerifyOTP)
			authGroup.POST("/forgot-password", authHandler.ForgotPassword)
			authGroup.POST("/verify-reset-token", authHandler.VerifyResetToken)
			authGroup.PATCH("/reset-password", authHandler.ResetPassword)
		}
	}

	// Public event browsing
	router.GET("/events", eventHandler.List)
	router.GET("/events/:id", eventHandler.Get)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me)
		api.GET("/me/events", eventHandler.ListMine)

		// Users (admin only)
		admin := middleware.RequireRole(models.RoleAdmin)
		api.GET("/users", admin, authHandler.List)
		api.POST("/users", admin, authHandler.Create)
		api.PATCH("/users/:id", admin, authHandler.Update)
		api.PATCH("/users/:id/archive", admin, authHandler.Archive)
		api.PATCH("/users/:id/restore", admin, authHandler.Restore)

		// Events
		api.POST("/events", eventHandler.Create)
		api.PATCH("/events/:id", eventHandler.Update)
		api.POST("/events/:id/cancel", eventHandler.Cancel)
		api.POST("/events/:id/banner", eventHandler.UploadBanner)
		api.POST("/events/:id/banner/presign", eventHandler.PresignBanner)
		api.PUT("/events/:id/banner", eventHandler.SetBanner)
		api.DELETE("/events/:id", eventHandler.Delete)
		api.POST("/events/:id/notify-attendees", eventHandler.NotifyAttendees)

		// Registration and tickets
		api.POST("/events/:id/join", attendeeHandler.Join)
		api.POST("/events/:id/leave", attendeeHandler.Leave)
		api.GET("/events/:id/ticket/:userId", attendeeHandler.GetTicket)
		api.GET("/tickets/:userId", attendeeHandler.ListTickets)

		// Manager views
		api.POST("/events/:id/verify-attendee", requireManager, attendeeHandler.Verify)
		api.GET("/events/:id/attendees", requireManager, attendeeHandler.ListByEvent)
		api.GET("/events/:id/stats", requireManager, analyticsHandler.EventStats)
		api.GET("/events/:id/emails", requireManager, emailLogHandler.ListByEvent)
		api.POST("/events/:id/emails/resend", requireManager, emailLogHandler.Resend)

		// Organizations
		api.POST("/organizations", orgHandler.Create)
		api.GET("/organizations", admin, orgHandler.List)
		api.GET("/organizations/pending", admin, orgHandler.ListPending)
		api.GET("/organizations/mine", orgHandler.ListMine)
		api.GET("/organizations/:id", orgHandler.Get)
		api.PATCH("/organizations/:id", orgHandler.Update)
		api.PATCH("/organizations/:id/verify", admin, orgHandler.Verify)
		api.DELETE("/organizations/:id", admin, orgHandler.Delete)
		api.GET("/organizations/:id/members", organizations.RequireMember(orgSvc), orgHandler.ListMembers)
		api.POST("/organizations/:id/members", orgHandler.AddMember)
	}

	// WebSocket check-in feed (token in query; browsers cannot set headers on upgrade)
	router.GET("/ws/events/:id", middleware.JWTQuery(jwtService), requireManager,
		realtime.ServeWs(hub, realtime.NewUpgrader(cfg.Server.CORSAllowedOrigins), logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Optional in-process email worker
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	workerDone := make(chan struct{})
	if cfg.Worker.InProcess && jobQueue != nil {
		m, err := mailer.New(ctx, mailCfg, logger)
		if err != nil {
			logger.Fatal("mailer", zap.Error(err))
		}
		processor := worker.NewEmailProcessor(emailLogRepo, m, renderer, jobQueue, clk, logger)
		go func() {
			processor.Run(workerCtx)
			close(workerDone)
		}()
	} else {
		close(workerDone)
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	workerCancel()
	<-workerDone
	resolver.Wait()
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
