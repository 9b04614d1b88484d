package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/herewego/transfer-admin/internal/config"
	"github.com/herewego/transfer-admin/internal/logger"
	"github.com/herewego/transfer-admin/internal/store"
)

type purger interface {
	DeleteOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
}

func main() {
	log := logger.New("retention")
	cfg, err := config.LoadRetention()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	esClient, err := connect(ctx, log, cfg)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("shutdown signal received during startup")
			return
		}
		log.Error("failed to connect to elasticsearch after retries", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("retention job running",
		slog.String("index", cfg.ElasticsearchIndex),
		slog.Duration("interval", cfg.Interval),
		slog.Duration("max_age", cfg.MaxAge),
	)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	runOnce(ctx, log, esClient, cfg)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return
		case <-ticker.C:
			runOnce(ctx, log, esClient, cfg)
		}
	}
}

// connect retries with exponential backoff capped at 30s until the cluster
// answers a ping.
func connect(ctx context.Context, log *slog.Logger, cfg *config.Retention) (*store.Client, error) {
	const maxRetries = 10
	retryDelay := 2 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		esClient, err := store.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = esClient.Ping(pingCtx)
			cancel()
			if err == nil {
				log.Info("connected to elasticsearch", slog.Int("attempt", attempt))
				return esClient, nil
			}
		}

		lastErr = err
		log.Warn("elasticsearch not ready, retrying",
			slog.Any("err", err),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", maxRetries),
			slog.Duration("retry_in", retryDelay),
		)

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		retryDelay = min(retryDelay*2, 30*time.Second)
	}

	return nil, lastErr
}

// runOnce purges items older than MaxAge. Failures are logged and retried on
// the next tick.
func runOnce(ctx context.Context, log *slog.Logger, p purger, cfg *config.Retention) int64 {
	subCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	deleted, err := p.DeleteOlderThan(subCtx, cfg.MaxAge, cfg.BatchSize)
	if err != nil {
		log.Warn("retention run failed (will retry on next interval)", slog.Any("err", err))
		return deleted
	}

	if deleted > 0 {
		log.Info("stale news items purged", slog.Int64("deleted", deleted))
	} else {
		log.Debug("retention run completed, no stale news items")
	}
	return deleted
}
