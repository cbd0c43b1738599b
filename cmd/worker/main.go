// Package main runs the background job worker (result refreshes, CSV exports, closing sweep).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/surveyflow/backend/config"
	"github.com/surveyflow/backend/internal/exports"
	"github.com/surveyflow/backend/internal/responses"
	"github.com/surveyflow/backend/internal/statistics"
	"github.com/surveyflow/backend/internal/surveys"
	"github.com/surveyflow/backend/internal/worker"
	"github.com/surveyflow/backend/pkg/database"
	applog "github.com/surveyflow/backend/pkg/logger"
	"github.com/surveyflow/backend/pkg/queue"
	"github.com/surveyflow/backend/pkg/redis"
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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

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
			logger.Fatal("s3", zap.Error(err))
		}
		objects = s3Client
	}

	surveyRepo := surveys.NewRepository(pool)
	responseRepo := responses.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	statisticsService := statistics.NewService(surveyRepo, responseRepo, statistics.NewRedisCache(rdb.Client, cfg.Statistics.CacheTTL), logger)

	var exporter worker.Exporter
	if objects != nil {
		exporter = exports.NewService(exports.NewRepository(pool), surveyRepo, responseRepo, jobQueue, objects, logger)
	} else {
		logger.Warn("AWS_REGION not set; export jobs will fail until object storage is configured")
	}

	processor := worker.NewProcessor(jobQueue, statisticsService, exporter, logger)
	sweeper := worker.NewSweeper(surveyRepo, cfg.Worker.CloseSweepInterval, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	go sweeper.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}
