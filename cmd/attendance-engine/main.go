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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/bio-attendance-api/api/swagger"
	"github.com/noah-isme/bio-attendance-api/internal/attendance"
	"github.com/noah-isme/bio-attendance-api/internal/handler"
	internalmiddleware "github.com/noah-isme/bio-attendance-api/internal/middleware"
	"github.com/noah-isme/bio-attendance-api/internal/repository"
	"github.com/noah-isme/bio-attendance-api/internal/service"
	"github.com/noah-isme/bio-attendance-api/pkg/cache"
	"github.com/noah-isme/bio-attendance-api/pkg/config"
	"github.com/noah-isme/bio-attendance-api/pkg/database"
	"github.com/noah-isme/bio-attendance-api/pkg/jobs"
	"github.com/noah-isme/bio-attendance-api/pkg/lock"
	"github.com/noah-isme/bio-attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/bio-attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/bio-attendance-api/pkg/middleware/requestid"
)

// @title Bio Attendance API
// @version 1.0.0
// @description Shift classification and attendance point lifecycle engine
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

	policy, err := attendance.PolicyFromConfig(cfg.Attendance)
	if err != nil {
		logr.Sugar().Fatalw("invalid attendance policy", "error", err)
	}
	rules, err := attendance.PointRulesFromConfig(cfg.Points)
	if err != nil {
		logr.Sugar().Fatalw("invalid point rules", "error", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Sugar().Fatalw("failed to run migrations", "error", err)
		}
	}

	metrics := service.NewMetricsService()

	var (
		redisClient *redis.Client
		cacheRepo   service.CacheRepository
		locker      interface {
			Acquire(ctx context.Context, name string, ttl time.Duration) (lock.Lease, error)
		}
	)
	redisClient, err = cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, summary cache disabled and run lock uses postgres advisory locks", "error", err)
		locker = lock.NewPostgresLocker(db, "bio-attendance:lock:")
	} else {
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		locker = lock.NewRedisLocker(redisClient, "bio-attendance:lock:")
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Points.SummaryCacheTTL, logr, cacheRepo != nil)

	scanRepo := repository.NewScanRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	leaveRepo := repository.NewLeaveRepository(db)
	recordRepo := repository.NewShiftRecordRepository(db, scanRepo)
	pointRepo := repository.NewPointRepository(db)
	runRepo := repository.NewExpirationRunRepository(db)

	pointSvc := service.NewPointService(pointRepo, service.PointServiceConfig{
		Rules:    rules,
		Cache:    cacheSvc,
		CacheTTL: cfg.Points.SummaryCacheTTL,
		Metrics:  metrics,
		Logger:   logr,
	})
	groupingSvc := service.NewGroupingService(scheduleRepo, leaveRepo, scanRepo, recordRepo, pointSvc, service.GroupingServiceConfig{
		Policy:    policy,
		Retention: cfg.Retention.Scans,
		Metrics:   metrics,
		Logger:    logr,
	})
	expirationSvc := service.NewExpirationService(pointRepo, runRepo, locker, service.ExpirationServiceConfig{
		WindowDays: cfg.Expiration.GBROWindowDays,
		BatchSize:  cfg.Expiration.GBROBatchSize,
		LockTTL:    cfg.Expiration.LockTTL,
		Summaries:  pointSvc,
		Metrics:    metrics,
		Logger:     logr,
	})

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	worker := service.NewReclassifyWorker(groupingSvc, logr)
	queue := jobs.NewQueue("reclassify", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reclassify.Workers,
		MaxRetries: cfg.Reclassify.Retries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	queue.Start(rootCtx)
	groupingSvc.AttachQueue(queue)

	var scheduler *service.ExpirationScheduler
	if cfg.Expiration.SchedulerEnabled {
		scheduler = service.NewExpirationScheduler(expirationSvc, groupingSvc, service.ExpirationSchedulerConfig{
			Spec:     cfg.Expiration.Cron,
			Location: policy.Location,
			Logger:   logr,
		})
		if err := scheduler.Start(); err != nil {
			logr.Sugar().Fatalw("failed to start expiration scheduler", "error", err)
		}
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/health", "/ready", "/metrics"))

	handler.RegisterRoutes(r, r.Group(cfg.APIPrefix), handler.Handlers{
		Scans:        handler.NewScanHandler(groupingSvc),
		ShiftRecords: handler.NewShiftRecordHandler(groupingSvc),
		Points:       handler.NewPointHandler(pointSvc, expirationSvc),
		Metrics:      handler.NewMetricsHandler(metrics, db),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := queue.Wait(shutdownCtx); err != nil {
		logr.Warn("reclassify queue not drained", zap.Int("pending", queue.Pending()))
	}
	queue.Stop()
	cancelRoot()
}
