package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/asproject/assignment-portal-api/api/swagger"
	"github.com/asproject/assignment-portal-api/internal/handler"
	"github.com/asproject/assignment-portal-api/internal/middleware"
	"github.com/asproject/assignment-portal-api/internal/models"
	"github.com/asproject/assignment-portal-api/internal/repository"
	"github.com/asproject/assignment-portal-api/internal/service"
	"github.com/asproject/assignment-portal-api/pkg/cache"
	"github.com/asproject/assignment-portal-api/pkg/config"
	"github.com/asproject/assignment-portal-api/pkg/database"
	"github.com/asproject/assignment-portal-api/pkg/logger"
	corsmiddleware "github.com/asproject/assignment-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/asproject/assignment-portal-api/pkg/middleware/requestid"
	"github.com/asproject/assignment-portal-api/pkg/storage"
)

// @title Assignment Portal API
// @version 1.0.0
// @description Assignment submission and grading portal
// @BasePath /
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
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	cacheRepo := repository.NewCacheRepository(nil, logr)
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	blobStore, err := storage.NewLocalBlobStore(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare uploads storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	submissionRepo := repository.NewSubmissionRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(
		[]service.CredentialProvider{
			service.NewDatabaseCredentialProvider(teacherRepo),
			service.NewLegacyFileCredentialProvider(cfg.Legacy.TeachersFile, logr),
		},
		auditRepo, nil, logr,
		service.AuthConfig{
			TokenSecret:       cfg.JWT.Secret,
			TokenExpiry:       cfg.JWT.Expiration,
			Issuer:            cfg.JWT.Issuer,
			AdminUsername:     cfg.Admin.Username,
			AdminPasswordHash: cfg.Admin.PasswordHash,
		},
	)

	submissionSvc := service.NewSubmissionService(
		submissionRepo, blobStore, signer, cacheRepo, cfg.Cache.TTL, metricsSvc, auditRepo, nil, logr,
		service.SubmissionServiceConfig{
			MaxFileSize:  cfg.Uploads.MaxFileSizeBytes,
			AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
			FileURLBase:  cfg.APIPrefix + "/files",
		},
	)
	teacherSvc := service.NewTeacherService(teacherRepo, cacheRepo, cfg.Cache.TTL, metricsSvc, auditRepo, nil, logr)
	exportSvc := service.NewExportService(submissionSvc, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	submissionHandler := handler.NewSubmissionHandler(submissionSvc, exportSvc, metricsSvc)
	adminHandler := handler.NewAdminHandler(teacherSvc, auditRepo)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	pagesHandler := handler.NewPagesHandler()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.MaxMultipartMemory = cfg.Uploads.MaxFileSizeBytes

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// public pages and student flows
	api.GET("/", pagesHandler.Root)
	api.GET("/home", pagesHandler.Home)
	api.GET("/student", pagesHandler.Student)
	api.POST("/submit", submissionHandler.Submit)
	api.GET("/track", submissionHandler.Track)
	api.POST("/track", submissionHandler.Track)
	api.GET("/files/:token", submissionHandler.File)

	// authentication
	api.POST("/login", authHandler.TeacherLogin)
	api.POST("/admin/login", authHandler.AdminLogin)
	// logout acknowledges even an expired or absent token
	api.GET("/logout", middleware.OptionalJWT(authSvc), authHandler.Logout)
	api.GET("/admin/logout", middleware.OptionalJWT(authSvc), authHandler.Logout)

	// teacher grading area
	teacherArea := api.Group("", middleware.JWT(authSvc), middleware.RequireRoles(models.UserRoleTeacher))
	teacherArea.GET("/teacher", submissionHandler.List)
	teacherArea.GET("/teacher/export", submissionHandler.Export)
	teacherArea.POST("/grade", submissionHandler.Grade)

	// admin area
	adminArea := api.Group("/admin", middleware.JWT(authSvc), middleware.RequireRoles(models.UserRoleAdmin))
	adminArea.GET("/dashboard", adminHandler.Dashboard)
	adminArea.GET("/teachers", adminHandler.ListTeachers)
	adminArea.GET("/audit", adminHandler.AuditTrail)
	adminArea.POST("/create-teacher", adminHandler.CreateTeacher)
	adminArea.POST("/delete-teacher/:id", adminHandler.DeleteTeacher)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
