package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hszk-dev/clipstream/internal/app"
	"github.com/hszk-dev/clipstream/internal/config"
	"github.com/hszk-dev/clipstream/internal/domain/repository"
	"github.com/hszk-dev/clipstream/internal/infrastructure/postgres"
	"github.com/hszk-dev/clipstream/internal/infrastructure/queue"
	"github.com/hszk-dev/clipstream/internal/infrastructure/storage"
	"github.com/hszk-dev/clipstream/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Worker.TempDir, 0755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	pgClient, err := postgres.NewClient(ctx, postgres.DefaultClientConfig(cfg.Database.DSN()))
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pgClient.Close()
	logger.Info("connected to PostgreSQL")

	storageClient, err := storage.NewClient(ctx, storage.ClientConfig{
		Endpoint:     cfg.MinIO.Endpoint,
		AccessKey:    cfg.MinIO.AccessKey,
		SecretKey:    cfg.MinIO.SecretKey,
		Bucket:       cfg.MinIO.Bucket,
		UseSSL:       cfg.MinIO.UseSSL,
		CreateBucket: cfg.MinIO.CreateBucket,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to MinIO: %w", err)
	}
	logger.Info("connected to MinIO")

	queueClient, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()))
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer queueClient.Close()
	logger.Info("connected to RabbitMQ")

	sessions, cacheCloser, err := app.NewSessionCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer cacheCloser.Close()
	logger.Info("session cache ready", slog.String("backend", cfg.Cache.Backend))

	pipeline, err := app.NewPipeline(cfg, sessions)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	worker := usecase.NewClipWorker(
		postgres.NewClipJobRepository(pgClient.Pool()),
		storageClient,
		pipeline,
		usecase.ClipWorkerConfig{
			TempDir:    cfg.Worker.TempDir,
			MaxRetries: cfg.Worker.MaxRetries,
		},
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// in-flight tasks
	var wg sync.WaitGroup

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting worker, consuming clip tasks")
		err := queueClient.ConsumeClipTasks(ctx, func(task repository.ClipTask) error {
			wg.Add(1)
			defer wg.Done()

			logger.Info("processing task",
				slog.String("job_id", task.JobID.String()),
				slog.Int("retry_count", task.RetryCount),
			)

			if err := worker.ProcessTask(ctx, task); err != nil {
				logger.Error("task processing failed",
					slog.String("job_id", task.JobID.String()),
					slog.Int("retry_count", task.RetryCount),
					slog.String("error", err.Error()),
				)
				return err
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("consumer error: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	// Stop consuming; running pipelines see the cancellation and clean up.
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all in-flight tasks completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, some tasks may not have completed")
	}

	logger.Info("worker stopped")
	return nil
}
