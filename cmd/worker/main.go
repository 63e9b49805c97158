// Package main runs the background job worker (registrant email, registration exports).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/blessbox/backend/config"
	"github.com/blessbox/backend/internal/emaillogs"
	"github.com/blessbox/backend/internal/mailer"
	"github.com/blessbox/backend/internal/qrcodes"
	"github.com/blessbox/backend/internal/registrations"
	"github.com/blessbox/backend/internal/worker"
	"github.com/blessbox/backend/pkg/database"
	"github.com/blessbox/backend/pkg/logger"
	"github.com/blessbox/backend/pkg/queue"
	"github.com/blessbox/backend/pkg/redis"
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

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{MaxConns: cfg.Database.MaxConns}, log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, log)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var sender mailer.Sender
	if cfg.Email.SMTPHost != "" {
		sender, err = mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:        cfg.Email.SMTPHost,
			Port:        cfg.Email.SMTPPort,
			User:        cfg.Email.SMTPUser,
			Pass:        cfg.Email.SMTPPass,
			FromAddress: cfg.Email.FromAddress,
			FromName:    cfg.Email.FromName,
			NodeID:      cfg.Email.NodeID,
		}, log)
		if err != nil {
			log.Fatal("smtp", zap.Error(err))
		}
	} else {
		log.Warn("SMTP_HOST not set; emails are logged, not sent")
		sender = mailer.NewLogSender(log)
	}

	registrationRepo := registrations.NewRepository(pool)
	setRepo := qrcodes.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, log)

	runner := worker.NewRunner(jobQueue, log)
	delivery := worker.NewDeliveryProcessor(registrationRepo, setRepo, sender, emaillogs.NewRepository(pool), log)
	if err := runner.Handle(queue.JobTypeEmail, delivery); err != nil {
		log.Fatal("register email processor", zap.Error(err))
	}

	if cfg.AWS.ExportsBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ExportsBucket:        cfg.AWS.ExportsBucket,
			Endpoint:             cfg.AWS.Endpoint,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, log)
		if err != nil {
			log.Fatal("s3", zap.Error(err))
		}
		if err := runner.Handle(queue.JobTypeExport, worker.NewExportProcessor(registrationRepo, setRepo, s3Client, log)); err != nil {
			log.Fatal("register export processor", zap.Error(err))
		}
	} else {
		log.Warn("exports disabled: AWS_S3_EXPORTS_BUCKET not set")
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(workerCtx)
		close(done)
	}()
	log.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Warn("worker did not stop in time")
	}
	log.Info("worker stopped")
}
