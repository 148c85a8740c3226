package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/wims-bridge-api/api/swagger"
	"github.com/noah-isme/wims-bridge-api/internal/handler"
	"github.com/noah-isme/wims-bridge-api/internal/middleware"
	"github.com/noah-isme/wims-bridge-api/internal/repository"
	"github.com/noah-isme/wims-bridge-api/internal/scheduler"
	"github.com/noah-isme/wims-bridge-api/internal/service"
	"github.com/noah-isme/wims-bridge-api/internal/session"
	"github.com/noah-isme/wims-bridge-api/internal/wims"
	"github.com/noah-isme/wims-bridge-api/pkg/cache"
	"github.com/noah-isme/wims-bridge-api/pkg/config"
	"github.com/noah-isme/wims-bridge-api/pkg/database"
	"github.com/noah-isme/wims-bridge-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/wims-bridge-api/pkg/middleware/cors"
	"github.com/noah-isme/wims-bridge-api/pkg/storage"
	reqidmiddleware "github.com/noah-isme/wims-bridge-api/pkg/middleware/requestid"
)

// @title WIMS Bridge API
// @version 1.0.0
// @description Bridge between a course platform and a WIMS exercise server
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	metricsSvc := service.NewMetricsService()
	wimsClient := wims.NewClient(cfg.WIMS, logr, metricsSvc)
	sessions := session.NewManager(wimsClient, cfg.WIMS, logr)

	activityRepo := repository.NewActivityRepository(db)
	userRepo := repository.NewUserRepository(db)
	gradebookRepo := repository.NewGradebookRepository(db)
	reportRepo := repository.NewReportRepository(redisClient, cfg.Sync.ReportTTL)

	exportArchive, err := storage.NewExportArchive(cfg.Export.ArchiveDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export archive", "error", err)
	}
	downloadSigner := storage.NewDownloadSigner(cfg.Export.DownloadSecret, cfg.Export.DownloadTTL)

	authSvc := service.NewAuthService(cfg.Auth, logr)
	classSvc := service.NewClassService(activityRepo, wimsClient, sessions, cfg.WIMS, logr)
	syncSvc := service.NewSyncService(activityRepo, userRepo, gradebookRepo, wimsClient, reportRepo, sessions, metricsSvc, cfg.Sync, logr)
	exportSvc := service.NewExportService(gradebookRepo, exportArchive, downloadSigner, logr)

	syncScheduler := scheduler.New(syncSvc, cfg.Sync, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	activityHandler := handler.NewActivityHandler(activityRepo, classSvc)
	classHandler := handler.NewClassHandler(classSvc, activityRepo, userRepo)
	syncHandler := handler.NewSyncHandler(syncSvc, syncScheduler)
	exportHandler := handler.NewExportHandler(exportSvc)
	statusHandler := handler.NewStatusHandler(classSvc)

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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "postgres unavailable"})
			return
		}
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	// Download tokens are self-authenticating, no JWT required.
	api.GET("/exports/:token", exportHandler.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	protected.GET("/wims/status", statusHandler.WimsStatus)

	protected.POST("/activities", activityHandler.Create)
	protected.GET("/activities", activityHandler.List)
	protected.GET("/activities/:id", activityHandler.Get)
	protected.PUT("/activities/:id", activityHandler.Update)
	protected.DELETE("/activities/:id", activityHandler.Delete)
	protected.POST("/activities/:id/class", activityHandler.Provision)

	protected.GET("/activities/:id/class/config", classHandler.Config)
	protected.PUT("/activities/:id/class/config", classHandler.UpdateConfig)
	protected.GET("/activities/:id/class/sheets", classHandler.Sheets)
	protected.GET("/activities/:id/class/worksheets/:sheet", classHandler.Worksheet)
	protected.PUT("/activities/:id/class/worksheets/:sheet", classHandler.UpdateWorksheet)
	protected.GET("/activities/:id/class/exams/:sheet", classHandler.Exam)
	protected.PUT("/activities/:id/class/exams/:sheet", classHandler.UpdateExam)
	protected.GET("/activities/:id/class/users/:userID/scores", classHandler.UserScores)
	protected.DELETE("/activities/:id/class/users/:userID", classHandler.RemoveUser)
	protected.DELETE("/activities/:id/class/participants", classHandler.Clean)
	protected.GET("/activities/:id/class/backups", classHandler.Backups)
	protected.POST("/activities/:id/class/backups/restore", classHandler.Restore)

	protected.GET("/activities/:id/access/supervisor", classHandler.SupervisorURL)
	protected.GET("/activities/:id/access/users/:userID", classHandler.StudentURL)

	protected.POST("/sync/runs", syncHandler.Trigger)
	protected.GET("/sync/runs/last", syncHandler.LastRun)
	protected.GET("/sync/runs/:runID", syncHandler.Run)

	protected.GET("/courses/:courseID/grades/export", exportHandler.CourseGrades)
	protected.POST("/courses/:courseID/grades/export", exportHandler.Archive)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	syncScheduler.Start(ctx)
	defer syncScheduler.Stop()

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		<-ctx.Done()
		logr.Sugar().Infow("shutting down")
		if err := server.Shutdown(context.Background()); err != nil {
			logr.Sugar().Errorw("server shutdown failed", "error", err)
		}
	}()

	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
