package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/course-registration-api/api/swagger"
	"github.com/noah-isme/course-registration-api/internal/handler"
	"github.com/noah-isme/course-registration-api/internal/messaging"
	internalmiddleware "github.com/noah-isme/course-registration-api/internal/middleware"
	"github.com/noah-isme/course-registration-api/internal/repository"
	"github.com/noah-isme/course-registration-api/internal/service"
	"github.com/noah-isme/course-registration-api/pkg/cache"
	"github.com/noah-isme/course-registration-api/pkg/config"
	"github.com/noah-isme/course-registration-api/pkg/database"
	"github.com/noah-isme/course-registration-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-registration-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-registration-api/pkg/middleware/requestid"
)

const shutdownTimeout = 10 * time.Second

type eventSink interface {
	Publish(ctx context.Context, name string, event interface{}) error
}

// @title Course Registration API
// @version 1.0.0
// @description Course catalog, scheduling and enrollment service
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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		version, err := database.Migrate(cfg.Database)
		if err != nil {
			return err
		}
		logr.Info("database schema ready", zap.Uint("version", version))
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis, cfg.Catalog.CacheEnabled)
	if err != nil {
		logr.Warn("catalog cache disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher, err := messaging.NewPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logr)
	if err != nil {
		logr.Warn("enrollment events disabled", zap.Error(err))
		publisher = nil
	}
	defer publisher.Close() //nolint:errcheck

	var events eventSink
	if publisher != nil {
		dispatcher := messaging.NewDispatcher(publisher, messaging.DispatcherConfig{
			Workers:    cfg.NATS.PublishWorkers,
			BufferSize: cfg.NATS.PublishBuffer,
			MaxRetries: cfg.NATS.PublishRetries,
			RetryDelay: cfg.NATS.PublishRetryGap,
		}, logr)
		dispatcher.Start(context.Background())
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			dispatcher.Stop(stopCtx)
		}()
		events = dispatcher
	}

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, cfg.Catalog.CacheTTL, logr, redisClient != nil)

	courseRepo := repository.NewCourseRepository(db)
	instanceRepo := repository.NewCourseInstanceRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	assignmentRepo := repository.NewCourseInstanceTeacherRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	validate := service.NewValidator()
	courseSvc := service.NewCourseService(courseRepo, cacheSvc, validate, logr)
	instanceSvc := service.NewCourseInstanceService(instanceRepo, courseRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, validate, logr)
	assignmentSvc := service.NewCourseInstanceTeacherService(assignmentRepo, instanceRepo, teacherRepo, validate, logr)
	rosterSvc := service.NewRosterService(enrollmentRepo, instanceRepo, courseRepo, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, instanceRepo, enrollmentRepo, events, metrics, validate, logr)

	checks := map[string]handler.ReadinessCheck{"database": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics", "/health", "/ready"))

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Courses:         handler.NewCourseHandler(courseSvc),
		CourseInstances: handler.NewCourseInstanceHandler(instanceSvc, assignmentSvc, rosterSvc),
		Students:        handler.NewStudentHandler(studentSvc),
		Teachers:        handler.NewTeacherHandler(teacherSvc),
		Enrollments:     handler.NewEnrollmentHandler(enrollmentSvc),
		Metrics:         handler.NewMetricsHandler(metrics, checks),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "prefix", cfg.APIPrefix)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logr.Info("server stopped")
	return nil
}
