// Package push delivers notification messages to push topics.
package push

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// ErrInvalidTopic marks a send rejected because the topic name is malformed.
var ErrInvalidTopic = errors.New("invalid topic name")

// Message is a single topic send.
type Message struct {
	Topic     string
	Title     string
	Body      string
	ChannelID string
}

// Sender issues one send to one topic and returns the provider message id.
// Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// IsInvalidTopic reports whether err looks like a rejected topic name.
func IsInvalidTopic(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidTopic) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid-topic-name") ||
		strings.Contains(msg, "invalid-argument") ||
		strings.Contains(msg, "invalid_argument")
}

// LogSender only logs messages. Used for local runs without push credentials.
type LogSender struct {
	log *slog.Logger
}

// NewLogSender returns a dry-run sender.
func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, msg Message) (string, error) {
	s.log.Info("dry-run push",
		slog.String("topic", msg.Topic),
		slog.String("title", msg.Title),
		slog.String("body", msg.Body),
		slog.String("channel_id", msg.ChannelID),
	)
	return "dry-run/" + msg.Topic, nil
}
