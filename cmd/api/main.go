package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/edu-sharks/lms-api/api/swagger"
	"github.com/edu-sharks/lms-api/internal/handler"
	"github.com/edu-sharks/lms-api/internal/middleware"
	"github.com/edu-sharks/lms-api/internal/models"
	"github.com/edu-sharks/lms-api/internal/repository"
	"github.com/edu-sharks/lms-api/internal/service"
	"github.com/edu-sharks/lms-api/pkg/cache"
	"github.com/edu-sharks/lms-api/pkg/config"
	"github.com/edu-sharks/lms-api/pkg/database"
	"github.com/edu-sharks/lms-api/pkg/jobs"
	"github.com/edu-sharks/lms-api/pkg/logger"
	corsmiddleware "github.com/edu-sharks/lms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edu-sharks/lms-api/pkg/middleware/requestid"
	"github.com/edu-sharks/lms-api/pkg/storage"
)

// @title Edu Sharks LMS API
// @version 0.1.0
// @description Course content catalog with uploads, auth and activity trail
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	if err := database.EnsureSchema(ctx, db); err != nil {
		logr.Sugar().Fatalw("failed to ensure schema", "error", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, activityRepo, cfg.JWT, validate, logr)
	catalogSvc := service.NewCatalogService(catalogRepo, cacheRepo, activityRepo, metricsSvc, validate, logr, service.CatalogConfig{
		CacheEnabled: cfg.Catalog.CacheEnabled,
		CacheTTL:     cfg.Catalog.CacheTTL,
	})
	filterSvc := service.NewFilterService(catalogRepo, logr)
	uploadSvc := service.NewUploadService(catalogSvc, activityRepo, validate, logr)
	activitySvc := service.NewActivityService(activityRepo, logr)

	if err := authSvc.SeedAdmin(ctx, cfg.Admin); err != nil {
		logr.Sugar().Fatalw("failed to bootstrap admin account", "error", err)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc, metricsSvc)
	catalogHandler := handler.NewCatalogHandler(catalogSvc, filterSvc)
	uploadHandler := handler.NewUploadHandler(uploadSvc, metricsSvc)
	activityHandler := handler.NewActivityHandler(activitySvc)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	catalog := api.Group("/catalog", middleware.JWT(authSvc))
	catalog.GET("/tree", catalogHandler.Tree)
	catalog.GET("/categories", catalogHandler.Categories)
	catalog.GET("/streams", catalogHandler.Streams)
	catalog.GET("/subjects", catalogHandler.Subjects)
	catalog.GET("/content", catalogHandler.Content)
	catalog.POST("/subjects", middleware.RequireRoles(models.RoleAdmin), catalogHandler.CreateSubject)

	api.POST("/uploads", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin), uploadHandler.Upload)
	api.GET("/activity", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin), activityHandler.List)
	r.GET("/metrics", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin), gin.WrapH(metricsSvc.Handler()))

	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportRepo := repository.NewExportRepository(db)
		exportWorker := service.NewExportWorker(exportRepo, catalogRepo, activityRepo, store, logr)

		queue := jobs.NewQueue("exports", exportWorker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()

		exportSvc := service.NewExportService(exportRepo, queue, signer, store, logr)
		exportSvc.StartCleanup(ctx, time.Hour, cfg.Exports.SignedURLTTL)

		exportHandler := handler.NewExportHandler(exportSvc)
		exports := api.Group("/exports", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
		exports.POST("", exportHandler.Create)
		exports.GET("/:id", exportHandler.Status)
		// Download is token-authenticated, not session-authenticated.
		api.GET("/exports/download", exportHandler.Download)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
