package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Common contains the store and change feed parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
	KafkaBrokers       []string
	ChangesTopic       string
}

// Push configures delivery to the push provider.
type Push struct {
	Provider        string // fcm | log
	ProjectID       string
	CredentialsFile string
	ChannelID       string
	MaxConcurrency  int
	RatePerSecond   float64
	RateBurst       int
	SendTimeout     time.Duration
}

// Worker holds configuration for the change feed -> push dispatcher.
type Worker struct {
	Common
	Push
	KafkaConsumer  string
	DedupeCapacity int
	DedupeTTL      time.Duration
	BatchSize      int
	MetricsAddr    string
}

// Images configures the S3-compatible bucket holding news images.
type Images struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	PublicURL string
	MaxBytes  int64
}

// Enabled reports whether image uploads are configured.
func (i Images) Enabled() bool {
	return i.Endpoint != "" && i.Bucket != ""
}

// API describes HTTP-layer configuration for the admin backend.
type API struct {
	Common
	Images
	BindAddr       string
	DefaultPage    int
	MaxPage        int
	JWTSecret      string
	KeywordLimit   int
	KeywordMinLen  int
	PublishTimeout time.Duration
	RequestTimeout time.Duration
}

// Retention configures the cleanup loop.
type Retention struct {
	Common
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

func loadCommon() Common {
	return Common{
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "news_items"),
		KafkaBrokers:       splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		ChangesTopic:       getEnv("KAFKA_CHANGES_TOPIC", "news_items_changes"),
	}
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	c := &Worker{
		Common: loadCommon(),
		Push: Push{
			Provider:        strings.ToLower(getEnv("PUSH_PROVIDER", "fcm")),
			ProjectID:       getEnv("FCM_PROJECT_ID", ""),
			CredentialsFile: getEnv("FCM_CREDENTIALS_FILE", ""),
			ChannelID:       getEnv("PUSH_CHANNEL_ID", "here_we_go_news"),
			MaxConcurrency:  getInt("PUSH_MAX_CONCURRENCY", 16),
			RatePerSecond:   getFloat("PUSH_RATE_PER_SEC", 50),
			RateBurst:       getInt("PUSH_RATE_BURST", 10),
			SendTimeout:     getDuration("PUSH_SEND_TIMEOUT", "10s"),
		},
		KafkaConsumer:  getEnv("KAFKA_CONSUMER_GROUP", "notification-dispatcher"),
		DedupeCapacity: getInt("WORKER_DEDUPE_CAPACITY", 20000),
		DedupeTTL:      getDuration("WORKER_DEDUPE_TTL", "24h"),
		BatchSize:      getInt("WORKER_BATCH_SIZE", 10),
		MetricsAddr:    getEnv("METRICS_ADDR", ":9090"),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}
	switch c.Provider {
	case "fcm":
		if c.ProjectID == "" {
			return nil, fmt.Errorf("FCM_PROJECT_ID is required when PUSH_PROVIDER=fcm")
		}
	case "log":
	default:
		return nil, fmt.Errorf("PUSH_PROVIDER must be one of fcm, log")
	}
	if c.MaxConcurrency < 0 {
		return nil, fmt.Errorf("PUSH_MAX_CONCURRENCY cannot be negative")
	}
	if c.RatePerSecond < 0 {
		return nil, fmt.Errorf("PUSH_RATE_PER_SEC cannot be negative")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common: loadCommon(),
		Images: Images{
			Endpoint:  getEnv("IMAGE_ENDPOINT", ""),
			AccessKey: getEnv("IMAGE_ACCESS_KEY", ""),
			SecretKey: getEnv("IMAGE_SECRET_KEY", ""),
			UseSSL:    getBool("IMAGE_USE_SSL", true),
			Bucket:    getEnv("IMAGE_BUCKET", "news-images"),
			PublicURL: strings.TrimRight(getEnv("IMAGE_PUBLIC_URL", ""), "/"),
			MaxBytes:  int64(getInt("IMAGE_MAX_BYTES", 5<<20)),
		},
		BindAddr:       getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		DefaultPage:    getInt("API_PAGE_SIZE", 20),
		MaxPage:        getInt("API_MAX_PAGE_SIZE", 100),
		JWTSecret:      getEnv("API_JWT_SECRET", ""),
		KeywordLimit:   getInt("API_KEYWORD_LIMIT", 8),
		KeywordMinLen:  getInt("API_KEYWORD_MIN_LEN", 4),
		PublishTimeout: getDuration("API_PUBLISH_TIMEOUT", "5s"),
		RequestTimeout: getDuration("API_REQUEST_TIMEOUT", "10s"),
	}

	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}
	if len(c.JWTSecret) < 32 {
		return nil, fmt.Errorf("API_JWT_SECRET must be at least 32 characters")
	}
	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.Images.Enabled() && c.PublicURL == "" {
		return nil, fmt.Errorf("IMAGE_PUBLIC_URL is required when IMAGE_ENDPOINT is set")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common:    loadCommon(),
		Interval:  getDuration("RETENTION_CRON", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "8760h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_CRON must be positive")
	}

	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
