package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"google.golang.org/api/option"

	"github.com/herewego/transfer-admin/internal/changefeed"
	"github.com/herewego/transfer-admin/internal/config"
	"github.com/herewego/transfer-admin/internal/dedupe"
	"github.com/herewego/transfer-admin/internal/dispatch"
	"github.com/herewego/transfer-admin/internal/logger"
	"github.com/herewego/transfer-admin/internal/models"
	"github.com/herewego/transfer-admin/internal/push"
)

type changeDispatcher interface {
	Dispatch(ctx context.Context, change models.Change) dispatch.Report
}

func main() {
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	sender, breaker, err := buildSender(ctx, cfg, log)
	if err != nil {
		log.Error("init push sender", slog.Any("err", err))
		os.Exit(1)
	}

	dispatcher := dispatch.New(sender, dispatch.Config{
		ChannelID:      cfg.ChannelID,
		MaxConcurrency: cfg.MaxConcurrency,
		SendTimeout:    cfg.SendTimeout,
	}, log)

	cache := dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)

	stopMetrics := startMetricsServer(cfg.MetricsAddr, log, breaker)
	defer stopMetrics()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.ChangesTopic,
		GroupID:        cfg.KafkaConsumer,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit only
	})
	defer reader.Close()

	dlqTopic := cfg.ChangesTopic + "_dlq"
	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       dlqTopic,
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.ChangesTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", dlqTopic),
		slog.String("push_provider", cfg.Provider),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processMessage(ctx, log, dispatcher, cache, msg); err != nil {
			log.Warn("undecodable change event, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			if !sendToDLQ(ctx, log, dlqWriter, msg, err) {
				if ctx.Err() != nil {
					return
				}
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
				continue
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// buildSender wraps the configured provider in a circuit breaker and a rate
// limiter. The limiter sits outside so throttled sends never count against
// the breaker.
func buildSender(ctx context.Context, cfg *config.Worker, log *slog.Logger) (push.Sender, *push.Breaker, error) {
	var base push.Sender
	switch cfg.Provider {
	case "log":
		base = push.NewLogSender(log)
	default:
		var opts []option.ClientOption
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		fcmSender, err := push.NewFCMSender(ctx, cfg.ProjectID, opts...)
		if err != nil {
			return nil, nil, err
		}
		base = fcmSender
	}

	breaker := push.NewBreaker(base, push.DefaultBreakerConfig(), log)
	return push.NewThrottled(breaker, cfg.RatePerSecond, cfg.RateBurst), breaker, nil
}

// processMessage handles one change event. Only undecodable events return an
// error; push failures are reported by the dispatcher and never block the
// partition.
func processMessage(ctx context.Context, log *slog.Logger, d changeDispatcher, cache *dedupe.Cache, msg kafka.Message) error {
	event, change, err := changefeed.Decode(msg)
	if err != nil {
		return err
	}

	if cache.IsSeen(event.EventID) {
		log.Debug("duplicate change event",
			slog.String("event_id", event.EventID),
			slog.String("news_id", event.DocumentID),
		)
		return nil
	}

	report := d.Dispatch(ctx, change)
	cache.MarkSeen(event.EventID)

	log.Debug("change event handled",
		slog.String("event_id", event.EventID),
		slog.String("news_id", report.NewsID),
		slog.String("kind", report.Kind.String()),
		slog.Int("topics", len(report.Topics)),
	)
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// sendToDLQ retries with exponential backoff and reports whether the message
// reached the dead letter topic.
func sendToDLQ(ctx context.Context, log *slog.Logger, w messageWriter, msg kafka.Message, cause error) bool {
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		),
	}

	for attempt := 0; attempt < 5; attempt++ {
		dlqErr := w.WriteMessages(ctx, dlqMsg)
		if dlqErr == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", dlqErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			log.Info("context canceled during DLQ retry")
			return false
		}
	}
	return false
}
