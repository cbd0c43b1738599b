// Package main runs the survey HTTP server with WebSocket and graceful shutdown.
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

	"github.com/surveyflow/backend/config"
	"github.com/surveyflow/backend/internal/attend"
	"github.com/surveyflow/backend/internal/drafts"
	"github.com/surveyflow/backend/internal/exports"
	"github.com/surveyflow/backend/internal/middleware"
	"github.com/surveyflow/backend/internal/realtime"
	"github.com/surveyflow/backend/internal/responses"
	"github.com/surveyflow/backend/internal/statistics"
	"github.com/surveyflow/backend/internal/surveys"
	"github.com/surveyflow/backend/internal/worker"
	"github.com/surveyflow/backend/pkg/database"
	applog "github.com/surveyflow/backend/pkg/logger"
	"github.com/surveyflow/backend/pkg/queue"
	"github.com/surveyflow/backend/pkg/redis"
	"github.com/surveyflow/backend/pkg/response"
	"github.com/surveyflow/backend/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	logger := applog.New(applog.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logger.Sync()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Exports stay disabled unless a region is configured.
	var objects exports.ObjectStore
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ExportsBucket:        cfg.AWS.ExportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			objects = s3Client
		}
	}

	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Surveys and authoring
	surveyRepo := surveys.NewRepository(pool)
	surveyService := surveys.NewService(surveyRepo, logger)
	surveyHandler := surveys.NewHandler(surveyRepo, surveyService, logger)
	draftHandler := drafts.NewHandler(drafts.NewRedisStore(rdb.Client, cfg.Session.DraftTTL), surveyService, surveyRepo, logger)

	// Responses and take-time sessions
	responseRepo := responses.NewRepository(pool)
	responseService := responses.NewService(surveyRepo, responseRepo, hub, jobQueue, logger)
	responseHandler := responses.NewHandler(responseService, logger)
	attendHandler := attend.NewHandler(attend.NewRedisStore(rdb.Client, cfg.Session.AttendTTL), responseService, responseService, logger)

	// Results and exports
	statisticsService := statistics.NewService(surveyRepo, responseRepo, statistics.NewRedisCache(rdb.Client, cfg.Statistics.CacheTTL), logger)
	statisticsHandler := statistics.NewHandler(statisticsService, logger)
	exportRepo := exports.NewRepository(pool)
	exportService := exports.NewService(exportRepo, surveyRepo, responseRepo, jobQueue, objects, logger)
	exportHandler := exports.NewHandler(exportService, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(config.SplitTrim(cfg.Server.CORSAllowedOrigins, ",")))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	api := router.Group("/api")
	surveyHandler.Register(api)
	draftHandler.Register(api)
	responseHandler.Register(api)
	attendHandler.Register(api)
	statisticsHandler.Register(api)
	exportHandler.Register(api)

	router.GET("/ws/surveys/:no", realtime.ServeWs(hub, responseRepo.AttendCount, logger))
	router.GET("/ws/attend/:id", attendHandler.ServeWs)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background jobs and the closing sweep, unless a separate worker process runs them
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if cfg.RunWorker {
		processor := worker.NewProcessor(jobQueue, statisticsService, exportService, logger)
		sweeper := worker.NewSweeper(surveyRepo, cfg.Worker.CloseSweepInterval, logger)
		go processor.Run(workerCtx)
		go sweeper.Run(workerCtx)
		logger.Info("in-process worker started")
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

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
