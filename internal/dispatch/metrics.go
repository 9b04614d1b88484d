package dispatch

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "news_dispatch_events_total",
			Help: "Total number of news change events handled by the dispatcher",
		},
		[]string{"kind", "outcome"}, // outcome: deleted|no_topics|dispatched
	)

	topicsPerEvent = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "news_dispatch_topics_per_event",
			Help:    "Number of topics derived for a single change event",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8},
		},
	)

	sendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "news_dispatch_sends_total",
			Help: "Total number of topic sends",
		},
		[]string{"family", "status"}, // status: success|failure|invalid_topic|breaker_open
	)

	sendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "news_dispatch_send_duration_seconds",
			Help:    "Topic send duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"family"},
	)
)

// topicFamily keeps label cardinality bounded: item, club or breaking.
func topicFamily(topic string) string {
	switch {
	case strings.HasPrefix(topic, "item_"):
		return "item"
	case strings.HasPrefix(topic, "club_"):
		return "club"
	case topic == "breaking_news":
		return "breaking"
	default:
		return "other"
	}
}

func recordEvent(kind, outcome string) {
	eventsTotal.WithLabelValues(kind, outcome).Inc()
}

func recordTopics(n int) {
	topicsPerEvent.Observe(float64(n))
}

func recordSend(topic, status string, d time.Duration) {
	family := topicFamily(topic)
	sendsTotal.WithLabelValues(family, status).Inc()
	sendDuration.WithLabelValues(family).Observe(d.Seconds())
}
