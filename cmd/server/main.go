// Package main runs the BlessBox HTTP API with the live check-in feed and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blessbox/backend/config"
	"github.com/blessbox/backend/internal/analytics"
	"github.com/blessbox/backend/internal/auth"
	"github.com/blessbox/backend/internal/checkin"
	"github.com/blessbox/backend/internal/emaillogs"
	"github.com/blessbox/backend/internal/exports"
	"github.com/blessbox/backend/internal/middleware"
	"github.com/blessbox/backend/internal/models"
	"github.com/blessbox/backend/internal/organizations"
	"github.com/blessbox/backend/internal/qrcodes"
	"github.com/blessbox/backend/internal/realtime"
	"github.com/blessbox/backend/internal/registrations"
	"github.com/blessbox/backend/internal/scanlog"
	"github.com/blessbox/backend/pkg/database"
	"github.com/blessbox/backend/pkg/logger"
	"github.com/blessbox/backend/pkg/queue"
	"github.com/blessbox/backend/pkg/redis"
	"github.com/blessbox/backend/pkg/response"
	"github.com/blessbox/backend/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger, _ := logger.New(logger.Options{})
		bootLogger.Fatal("load config", zap.Error(err))
	}
	log, err := logger.New(logger.Options{Level: cfg.Log.Level, Dev: cfg.Log.Dev, File: cfg.Log.File})
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("public url resolved", zap.String("url", cfg.App.PublicURL), zap.String("source", cfg.App.PublicURLSource))

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{MaxConns: cfg.Database.MaxConns}, log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, log); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, log)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.ExportsBucket != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ExportsBucket:        cfg.AWS.ExportsBucket,
			Endpoint:             cfg.AWS.Endpoint,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, log)
		if err != nil {
			log.Warn("s3 disabled", zap.Error(err))
			s3Client = nil
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, log)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, log)
	hub := realtime.NewHub(log, redisPubSub, redisPubSub)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, log)

	// Organizations
	orgRepo := organizations.NewRepository(pool)
	orgHandler := organizations.NewHandler(orgRepo, authRepo, log)

	// QR code sets
	setRepo := qrcodes.NewRepository(pool)
	setHandler := qrcodes.NewHandler(setRepo, log)

	// Registrations and check-in
	tokens := checkin.NewTokenGenerator(cfg.App.PublicURL)
	registrationRepo := registrations.NewRepository(pool)
	registrationHandler := registrations.NewHandler(registrationRepo, setRepo, jobQueue, tokens, log)

	scanRepo := scanlog.NewRepository(pool)
	scanHandler := scanlog.NewHandler(scanRepo, log)

	processor := checkin.NewProcessor(registrationRepo, log)
	processor.SetScanRecorder(scanRepo)
	processor.SetNotifier(hub)
	checkinHandler := checkin.NewHandler(processor, log)

	analyticsHandler := analytics.NewHandler(registrationRepo, scanRepo, log)
	emailLogsHandler := emaillogs.NewHandler(emaillogs.NewRepository(pool), log)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(log))

	router.GET("/health", func(c *gin.Context) {
		hctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(hctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, response.Body{Success: false, Error: "database unavailable"})
			return
		}
		if err := rdb.Healthy(hctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, response.Body{Success: false, Error: "redis unavailable"})
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	// Public: registration form, submission and token format check
	router.GET("/qr-code-sets/:id/form", setHandler.PublicForm)
	router.POST("/qr-code-sets/:id/register", registrationHandler.Submit)
	router.GET("/check-in/:token/validate", checkinHandler.ValidateFormat)

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/organizations", orgHandler.ListMyOrganizations)
		api.POST("/organizations", orgHandler.CreateOrganization)

		member := organizations.RequireMember(orgRepo, false, log)
		manager := organizations.RequireMember(orgRepo, true, log)
		api.GET("/organizations/:id/members", member, orgHandler.ListMembers)
		api.POST("/organizations/:id/members", manager, orgHandler.AddMember)
		api.GET("/organizations/:id/qr-code-sets", member, setHandler.ListSets)
		api.POST("/organizations/:id/qr-code-sets", manager, setHandler.CreateSet)

		// Scanning: any member, including staff
		api.POST("/organizations/:id/check-ins", member, checkinHandler.CheckIn)
		api.GET("/organizations/:id/check-ins/:token", member, checkinHandler.Preview)

		setView := qrcodes.RequireSetOrgAccess(setRepo, orgRepo, false, log)
		setManage := qrcodes.RequireSetOrgAccess(setRepo, orgRepo, true, log)
		api.GET("/qr-code-sets/:id", setView, setHandler.GetSet)
		api.PATCH("/qr-code-sets/:id", setManage, setHandler.UpdateSet)
		api.GET("/qr-code-sets/:id/codes", setView, setHandler.ListCodes)
		api.POST("/qr-code-sets/:id/codes", setManage, setHandler.AddCode)

		api.GET("/qr-code-sets/:id/registrations", setView, registrationHandler.List)
		api.GET("/qr-code-sets/:id/registrations/:registrationId", setView, registrationHandler.Get)
		api.POST("/qr-code-sets/:id/registrations/:registrationId/cancel", setManage, registrationHandler.Cancel)
		api.POST("/qr-code-sets/:id/emails/resend", setManage, registrationHandler.Resend)
		api.GET("/qr-code-sets/:id/emails", setManage, emailLogsHandler.ListBySet)

		api.GET("/qr-code-sets/:id/stats", setView, analyticsHandler.GetBySet)
		api.GET("/qr-code-sets/:id/scans", setView, scanHandler.List)
		api.GET("/qr-code-sets/:id/viewers", setView, func(c *gin.Context) {
			setID := c.MustGet(qrcodes.ContextQRCodeSetID).(uuid.UUID)
			response.OK(c, gin.H{"qr_code_set_id": setID, "viewers": hub.Viewers(setID)})
		})

		api.GET("/admin/queues", middleware.RequireRole(models.RoleAdmin), func(c *gin.Context) {
			depths, err := jobQueue.Depths(c.Request.Context())
			if err != nil {
				log.Error("queue depths failed", zap.Error(err))
				response.Internal(c, "failed to read queues")
				return
			}
			response.OK(c, depths)
		})

		if s3Client != nil {
			exportHandler := exports.NewHandler(jobQueue, s3Client, log)
			api.POST("/qr-code-sets/:id/exports", setManage, exportHandler.Create)
			api.GET("/qr-code-sets/:id/exports/:exportId", setManage, exportHandler.Get)
		} else {
			log.Warn("exports disabled: AWS_S3_EXPORTS_BUCKET not set")
		}
	}

	// Live check-in feed (token in query; browsers cannot set headers on upgrade)
	authorizeFeed := realtime.NewFeedAuthorizer(jwtService, setRepo, orgRepo)
	router.GET("/ws", realtime.ServeWs(hub, realtime.NewUpgrader(cfg.Server.CORSAllowedOrigins), authorizeFeed, log))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}
