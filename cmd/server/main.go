package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/akvora/backend/config"
	"github.com/akvora/backend/internal/auth"
	"github.com/akvora/backend/internal/certificates"
	"github.com/akvora/backend/internal/events"
	"github.com/akvora/backend/internal/identity"
	"github.com/akvora/backend/internal/middleware"
	"github.com/akvora/backend/internal/notifications"
	"github.com/akvora/backend/internal/realtime"
	"github.com/akvora/backend/internal/registrations"
	"github.com/akvora/backend/internal/users"
	"github.com/akvora/backend/pkg/database"
	"github.com/akvora/backend/pkg/queue"
	redisclient "github.com/akvora/backend/pkg/redis"
	"github.com/akvora/backend/pkg/response"
	"github.com/akvora/backend/pkg/storage"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("run migrations", zap.Error(err))
	}

	// Redis is optional: without it push events stay instance-local and
	// notification emails are skipped.
	var (
		redisPub  realtime.RedisPublisher
		redisSub  realtime.RedisSubscriber
		jobQueue  *queue.Queue
		redisConn *redisclient.Client
	)
	if cfg.Redis.Addr != "" {
		redisConn, err = redisclient.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Warn("redis unavailable, running without pub/sub and email queue", zap.Error(err))
		} else {
			defer func() { _ = redisConn.Close() }()
			pubsub := realtime.NewRedisPubSub(redisConn.Client, logger)
			redisPub = pubsub
			redisSub = pubsub
			jobQueue = queue.NewQueue(redisConn.Client, logger)
		}
	}

	var s3 *storage.S3
	if cfg.AWS.Region != "" {
		s3, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ImagesBucket:         cfg.AWS.ImagesBucket,
			CertificatesBucket:   cfg.AWS.CertificatesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 unavailable, uploads and certificate downloads disabled", zap.Error(err))
			s3 = nil
		}
	}

	hub := realtime.NewHub(logger, redisPub, redisSub)

	userRepo := users.NewRepository(pool)
	eventRepo := events.NewRepository(pool)
	regRepo := registrations.NewRepository(pool)
	noteRepo := notifications.NewRepository(pool)
	certRepo := certificates.NewRepository(pool)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	resolver := identity.NewTokenResolver(cfg.Identity.Secret, cfg.Identity.Issuer)

	var emails registrations.EmailEnqueuer
	if jobQueue != nil {
		emails = jobQueue
	}
	regService := registrations.NewService(regRepo, eventRepo, userRepo, noteRepo, hub, emails, logger)

	authHandler := auth.NewHandler(userRepo, jwtService, logger)
	userHandler := users.NewHandler(userRepo, logger)
	eventHandler := events.NewHandler(eventRepo, noteRepo, hub, s3, logger)
	regHandler := registrations.NewHandler(regService, regRepo, logger)
	noteHandler := notifications.NewHandler(noteRepo, logger)
	certHandler := certificates.NewHandler(certRepo, regRepo, userRepo, noteRepo, hub, s3, logger)

	authorize := wsAuthorizer(resolver, jwtService)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", realtime.ServeWs(hub, logger, authorize))

	limiter := middleware.NewTokenBucket(cfg.Server.RateLimitPerMinute, cfg.Server.RateLimitPerMinute)

	api := router.Group("/api")
	{
		// public catalog
		api.GET("/events", eventHandler.List)
		api.GET("/events/dashboard-posts", eventHandler.DashboardPosts)
		api.GET("/events/type/:type", eventHandler.ListByType)
		api.GET("/events/:id", eventHandler.Get)
		api.GET("/certificates/verify/:serial", certHandler.Verify)
		api.GET("/payment-details", func(c *gin.Context) {
			response.OK(c, gin.H{"upiId": cfg.Payment.UPIID, "payeeName": cfg.Payment.PayeeName})
		})

		api.POST("/admin/login", authHandler.Login)

		// identity-provider authenticated
		user := api.Group("")
		user.Use(identity.Middleware(resolver, userRepo, logger))
		{
			user.GET("/users/me", userHandler.Me)
			user.PUT("/users/me", userHandler.UpdateMe)

			user.POST("/events/:id/register", limiter.Handler(), eventHandler.Register)
			user.DELETE("/events/:id/register", eventHandler.Unregister)
			user.GET("/events/my", eventHandler.MyEvents)

			user.POST("/registrations", limiter.Handler(), regHandler.Submit)
			user.GET("/registrations/my", regHandler.My)
			user.GET("/registrations/history", regHandler.History)

			user.GET("/notifications", noteHandler.List)
			user.PUT("/notifications/read-all", noteHandler.MarkAllRead)
			user.PUT("/notifications/:id/read", noteHandler.MarkRead)

			user.GET("/certificates/my", certHandler.My)
			user.GET("/certificates/:id/download-url", certHandler.DownloadURL)
		}

		// admin console
		admin := api.Group("/admin")
		admin.Use(middleware.JWT(jwtService), middleware.RequireRole("admin"))
		{
			admin.GET("/stats", eventHandler.Stats)

			admin.POST("/events", eventHandler.Create)
			admin.PUT("/events/:id", eventHandler.Update)
			admin.DELETE("/events/:id", eventHandler.Delete)
			admin.POST("/events/upload-url", eventHandler.UploadURL)
			admin.GET("/events/:id/participants", eventHandler.Participants)
			admin.PUT("/events/:id/participants/:userId/status", eventHandler.SetParticipantStatus)

			admin.GET("/registrations/counts", regHandler.Counts)
			admin.GET("/registrations/event/:eventId", regHandler.ListForEvent)
			admin.PUT("/registrations/:id/status", regHandler.SetStatus)

			admin.POST("/certificates", certHandler.Issue)
			admin.DELETE("/certificates/:id", certHandler.Revoke)

			admin.GET("/users", userHandler.List)
			admin.PUT("/users/:id/block", userHandler.Block)
			admin.PUT("/users/:id/unblock", userHandler.Unblock)
			admin.DELETE("/users/:id", userHandler.Delete)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// wsAuthorizer maps websocket tokens to hub channels: identity-provider
// tokens join the caller's user channel, admin JWTs join the admin channel.
func wsAuthorizer(resolver identity.Resolver, jwtService *auth.JWTService) realtime.ChannelAuthorizer {
	return func(token string) ([]string, error) {
		if ident, err := resolver.Resolve(token); err == nil {
			return []string{realtime.UserChannel(ident.ExternalID)}, nil
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			return nil, err
		}
		if claims.Role != "admin" {
			return nil, auth.ErrInvalidToken
		}
		return []string{realtime.ChannelAdmin}, nil
	}
}
