package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrBreakerOpen is returned while the push provider is considered unhealthy.
var ErrBreakerOpen = errors.New("push circuit breaker is open")

// Throttled limits the rate of sends towards the wrapped sender.
type Throttled struct {
	next    Sender
	limiter *rate.Limiter
}

// NewThrottled allows perSecond sends with the given burst. A non-positive
// rate disables throttling.
func NewThrottled(next Sender, perSecond float64, burst int) *Throttled {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Send implements Sender.
func (t *Throttled) Send(ctx context.Context, msg Message) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return t.next.Send(ctx, msg)
}

// BreakerConfig tunes the circuit breaker around the push provider.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns settings suited to the push provider.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "push",
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      10,
	}
}

// Breaker stops calling the wrapped sender after repeated provider failures.
// Invalid-topic rejections count as successes: they say nothing about provider health.
type Breaker struct {
	next    Sender
	breaker *gobreaker.CircuitBreaker
}

// NewBreaker wraps next with a circuit breaker.
func NewBreaker(next Sender, cfg BreakerConfig, log *slog.Logger) *Breaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsInvalidTopic(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.Warn("circuit breaker state changed",
					slog.String("circuit", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			}
		},
	}
	return &Breaker{next: next, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Send implements Sender.
func (b *Breaker) Send(ctx context.Context, msg Message) (string, error) {
	res, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.Send(ctx, msg)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %v", ErrBreakerOpen, err)
		}
		return "", err
	}
	id, _ := res.(string)
	return id, nil
}

// State exposes the breaker state for health reporting.
func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}
