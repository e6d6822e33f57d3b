package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/kwabena-dev/courseattend-api/api/swagger"
	"github.com/kwabena-dev/courseattend-api/internal/handler"
	"github.com/kwabena-dev/courseattend-api/internal/middleware"
	"github.com/kwabena-dev/courseattend-api/internal/repository"
	"github.com/kwabena-dev/courseattend-api/internal/service"
	"github.com/kwabena-dev/courseattend-api/pkg/cache"
	"github.com/kwabena-dev/courseattend-api/pkg/config"
	"github.com/kwabena-dev/courseattend-api/pkg/database"
	"github.com/kwabena-dev/courseattend-api/pkg/logger"
	corsmiddleware "github.com/kwabena-dev/courseattend-api/pkg/middleware/cors"
	reqidmiddleware "github.com/kwabena-dev/courseattend-api/pkg/middleware/requestid"
)

// @title CourseAttend API
// @version 1.0.0
// @description Course enrollment and attendance workflow service
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
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, summary caching disabled", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	courseService := service.NewCourseService(courseRepo, cacheRepo, validate, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, courseRepo, cacheRepo, logr).
		WithMetrics(metricsService)
	sessionService := service.NewSessionService(sessionRepo, courseRepo, enrollmentRepo, attendanceRepo, validate, logr, cfg.Attendance.CodeLength)
	attendanceService := service.NewAttendanceService(attendanceRepo, sessionRepo, courseRepo, enrollmentRepo, userRepo, cacheRepo, validate, logr, cfg.Attendance.LateThreshold, cfg.Summary.CacheTTL).
		WithMetrics(metricsService)

	authHandler := handler.NewAuthHandler(authService)
	courseHandler := handler.NewCourseHandler(courseService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService)
	sessionHandler := handler.NewSessionHandler(sessionService)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.JWT(authService), authHandler.Me)

	secured := api.Group("")
	secured.Use(middleware.JWT(authService))

	courses := secured.Group("/courses")
	courses.GET("", courseHandler.List)
	courses.GET("/:id", courseHandler.Get)
	courses.POST("", middleware.RequireInstructor(), courseHandler.Create)
	courses.PUT("/:id", middleware.RequireInstructor(), courseHandler.Update)
	courses.DELETE("/:id", middleware.RequireInstructor(), courseHandler.Delete)
	courses.GET("/:id/attendance/summary", attendanceHandler.CourseSummary)
	courses.GET("/:id/attendance/export", middleware.RequireInstructor(), attendanceHandler.ExportCourseSummary)

	enrollments := secured.Group("/enrollments")
	enrollments.POST("", middleware.RequireStudent(), enrollmentHandler.Request)
	enrollments.GET("/mine", middleware.RequireStudent(), enrollmentHandler.ListMine)
	enrollments.GET("/courses", middleware.RequireStudent(), enrollmentHandler.ListEnrolledCourses)
	enrollments.GET("", middleware.RequireInstructor(), enrollmentHandler.ListForInstructor)
	enrollments.PUT("/:id/review", middleware.RequireInstructor(), enrollmentHandler.Review)

	sessions := secured.Group("/sessions")
	sessions.GET("", sessionHandler.List)
	sessions.GET("/available", middleware.RequireStudent(), sessionHandler.AvailableToday)
	sessions.GET("/:id", sessionHandler.Get)
	sessions.POST("", middleware.RequireInstructor(), sessionHandler.Create)
	sessions.PUT("/:id", middleware.RequireInstructor(), sessionHandler.Update)
	sessions.PUT("/:id/status", middleware.RequireInstructor(), sessionHandler.UpdateStatus)
	sessions.POST("/:id/code", middleware.RequireInstructor(), sessionHandler.RegenerateCode)
	sessions.DELETE("/:id", middleware.RequireInstructor(), sessionHandler.Delete)
	sessions.GET("/:id/attendance", attendanceHandler.SessionAttendance)
	sessions.POST("/:id/attendance", middleware.RequireInstructor(), attendanceHandler.BulkMark)
	sessions.PUT("/:id/attendance/mark", middleware.RequireInstructor(), attendanceHandler.MarkOne)
	sessions.PUT("/:id/attendance/:studentId", middleware.RequireInstructor(), attendanceHandler.UpdateOne)

	attendance := secured.Group("/attendance")
	attendance.POST("/checkin", middleware.RequireStudent(), attendanceHandler.SelfMark)
	attendance.GET("/mine", middleware.RequireStudent(), attendanceHandler.MyHistory)
	attendance.GET("/students/:id", attendanceHandler.StudentHistory)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := r.Run(addr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}
