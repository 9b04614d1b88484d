// Package dispatch fans a news document change out to its push topics.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/herewego/transfer-admin/internal/models"
	"github.com/herewego/transfer-admin/internal/push"
	"github.com/herewego/transfer-admin/internal/topics"
)

// DefaultChannelID groups transfer notifications on Android clients.
const DefaultChannelID = "here_we_go_news"

const titlePrefix = "Transfer Update: "

// Config tunes the fan-out.
type Config struct {
	ChannelID      string
	MaxConcurrency int           // 0 means unbounded
	SendTimeout    time.Duration // 0 relies on the sender's own timeout
}

// Result is the outcome of one topic send.
type Result struct {
	Topic     string
	MessageID string
	Err       error
}

// Report summarises one Dispatch call.
type Report struct {
	NewsID  string
	Kind    models.ChangeKind
	Topics  []string
	Results []Result
}

// Sent returns the number of successful sends.
func (r Report) Sent() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of failed sends.
func (r Report) Failed() int {
	return len(r.Results) - r.Sent()
}

// Dispatcher turns change events into topic sends. It holds no per-event
// state and is safe for concurrent use.
type Dispatcher struct {
	sender push.Sender
	cfg    Config
	log    *slog.Logger
}

// New creates a Dispatcher.
func New(sender push.Sender, cfg Config, log *slog.Logger) *Dispatcher {
	if cfg.ChannelID == "" {
		cfg.ChannelID = DefaultChannelID
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{sender: sender, cfg: cfg, log: log}
}

// Dispatch notifies every topic interested in change. Delivery is best
// effort: individual send failures are logged and reported, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, change models.Change) (report Report) {
	report = Report{NewsID: change.DocumentID, Kind: change.Kind}
	log := d.log.With(slog.String("news_id", change.DocumentID), slog.String("kind", change.Kind.String()))

	defer func() {
		if r := recover(); r != nil {
			log.Error("unexpected error during dispatch",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	if change.Kind == models.Deleted || change.After == nil {
		log.Info("news item deleted, no notification")
		recordEvent(change.Kind.String(), "deleted")
		return report
	}

	log.Debug("processing write", slog.Any("before", change.Before), slog.Any("after", change.After))

	report.Topics = topics.Derive(change).Sorted()
	recordTopics(len(report.Topics))
	if len(report.Topics) == 0 {
		log.Info("no relevant topics, no notification sent")
		recordEvent(change.Kind.String(), "no_topics")
		return report
	}

	fields := topics.Extract(change.After)
	base := push.Message{
		Title:     titlePrefix + fields.PlayerName,
		Body:      fields.FromTo,
		ChannelID: d.cfg.ChannelID,
	}

	log.Info("attempting send", slog.Any("topics", report.Topics))

	results := make([]Result, len(report.Topics))
	var g errgroup.Group
	if d.cfg.MaxConcurrency > 0 {
		g.SetLimit(d.cfg.MaxConcurrency)
	}
	for i, topic := range report.Topics {
		i, topic := i, topic
		g.Go(func() error {
			results[i] = d.send(ctx, log, base, topic)
			return nil
		})
	}
	_ = g.Wait()

	report.Results = results
	recordEvent(change.Kind.String(), "dispatched")
	log.Info("finished send attempts",
		slog.Int("topics", len(report.Topics)),
		slog.Int("sent", report.Sent()),
		slog.Int("failed", report.Failed()),
	)
	return report
}

func (d *Dispatcher) send(ctx context.Context, log *slog.Logger, base push.Message, topic string) (res Result) {
	res.Topic = topic
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("send panicked: %v", r)
			recordSend(topic, "failure", time.Since(start))
			log.Error("panic in topic send",
				slog.String("topic", topic),
				slog.Any("panic", r),
			)
		}
	}()

	if d.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.SendTimeout)
		defer cancel()
	}

	msg := base
	msg.Topic = topic

	id, err := d.sender.Send(ctx, msg)
	if err != nil {
		res.Err = err
		log.Error("failed send to topic", slog.String("topic", topic), slog.Any("err", err))
		switch {
		case push.IsInvalidTopic(err):
			log.Warn("invalid topic name, check sanitization", slog.String("topic", topic))
			recordSend(topic, "invalid_topic", time.Since(start))
		case errors.Is(err, push.ErrBreakerOpen):
			recordSend(topic, "breaker_open", time.Since(start))
		default:
			recordSend(topic, "failure", time.Since(start))
		}
		return res
	}

	res.MessageID = id
	recordSend(topic, "success", time.Since(start))
	log.Info("sent to topic", slog.String("topic", topic), slog.String("message_id", id))
	return res
}
