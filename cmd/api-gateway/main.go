package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/migrations"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// @title School Timetable API
// @version 1.0.0
// @description Course catalog, timetable scheduling and student enrollment
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		if err := runMigrations(cfg.Database, logr); err != nil {
			logr.Fatal("migrations failed", zap.Error(err))
		}
	}

	dbHandle := database.NewHandle(cfg.Database)
	db, err := dbHandle.Connect(ctx)
	if err != nil {
		logr.Fatal("database unavailable", zap.Error(err))
	}
	defer dbHandle.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, timetable cache disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	metricsSvc := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Timetable.CacheTTL, logr, cfg.Timetable.CacheEnabled && redisClient != nil)
	validate := service.NewValidator()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	classRepo := repository.NewClassRepository(db)
	unitRepo := repository.NewUnitRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SignupKey:          cfg.Auth.SignupKey,
		ResetTokenTTL:      cfg.Auth.ResetTokenTTL,
		ExposeResetToken:   cfg.Auth.ExposeResetToken && cfg.Env != config.EnvProduction,
	})
	userSvc := service.NewUserService(userRepo, logr)
	catalogSvc := service.NewCatalogService(courseRepo, classRepo, unitRepo, userRepo, validate, logr)
	timetableSvc := service.NewTimetableService(timetableRepo, courseRepo, classRepo, unitRepo, userRepo, cacheSvc, metricsSvc, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, userRepo, courseRepo, classRepo, unitRepo, timetableRepo, metricsSvc, logr)
	dashboardSvc := service.NewDashboardService(userRepo, enrollmentRepo, courseRepo, classRepo, unitRepo, timetableRepo, logr)
	gradeSvc := service.NewGradeService(gradeRepo, classRepo, unitRepo, userRepo, validate, logr)
	maintenanceSvc := service.NewMaintenanceService(userRepo, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	registerRoutes(r, cfg, routeHandlers{
		auth:       handler.NewAuthHandler(authSvc),
		users:      handler.NewUserHandler(userSvc),
		catalog:    handler.NewCatalogHandler(catalogSvc),
		timetables: handler.NewTimetableHandler(timetableSvc),
		enrollment: handler.NewEnrollmentHandler(enrollmentSvc),
		dashboards: handler.NewDashboardHandler(dashboardSvc),
		grades:     handler.NewGradeHandler(gradeSvc),
		metrics:    handler.NewMetricsHandler(metricsSvc, map[string]handler.Pinger{"postgres": dbHandle, "redis": cacheRepo}),
	}, authSvc)

	scheduler := jobs.NewScheduler(logr, time.Minute)
	if cfg.Maintenance.Enabled {
		if err := scheduler.Register(service.ResetTokenPurgeJob, cfg.Maintenance.ResetTokenSchedule, maintenanceSvc.PurgeExpiredResetTokens); err != nil {
			logr.Fatal("failed to register maintenance job", zap.Error(err))
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func runMigrations(cfg config.DatabaseConfig, logr *zap.Logger) error {
	migrator, err := database.NewMigrator(migrations.FS, cfg)
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck

	if err := migrator.Up(); err != nil {
		return err
	}
	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	logr.Info("migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
