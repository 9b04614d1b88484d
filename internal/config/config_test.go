package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/herewego/transfer-admin/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadWorkerDefaults(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "")
	t.Setenv("ELASTICSEARCH_INDEX", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_CHANGES_TOPIC", "")
	t.Setenv("KAFKA_CONSUMER_GROUP", "")
	t.Setenv("PUSH_PROVIDER", "")
	t.Setenv("FCM_PROJECT_ID", "here-we-go")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, "http://elasticsearch:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "news_items", cfg.ElasticsearchIndex)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "news_items_changes", cfg.ChangesTopic)
	require.Equal(t, "notification-dispatcher", cfg.KafkaConsumer)
	require.Equal(t, "fcm", cfg.Provider)
	require.Equal(t, "here_we_go_news", cfg.ChannelID)
	require.Equal(t, 16, cfg.MaxConcurrency)
	require.Equal(t, 10*time.Second, cfg.SendTimeout)
	require.Equal(t, ":9090", cfg.MetricsAddr)
}

func TestLoadWorkerOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker-a:29092, broker-b:29093")
	t.Setenv("KAFKA_CHANGES_TOPIC", "custom_changes")
	t.Setenv("KAFKA_CONSUMER_GROUP", "custom-group")
	t.Setenv("PUSH_PROVIDER", "LOG")
	t.Setenv("PUSH_CHANNEL_ID", "transfers")
	t.Setenv("PUSH_MAX_CONCURRENCY", "4")
	t.Setenv("PUSH_RATE_PER_SEC", "2.5")
	t.Setenv("PUSH_RATE_BURST", "3")
	t.Setenv("PUSH_SEND_TIMEOUT", "3s")
	t.Setenv("WORKER_DEDUPE_CAPACITY", "5")
	t.Setenv("WORKER_DEDUPE_TTL", "48h")
	t.Setenv("WORKER_BATCH_SIZE", "3")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, []string{"broker-a:29092", "broker-b:29093"}, cfg.KafkaBrokers)
	require.Equal(t, "custom_changes", cfg.ChangesTopic)
	require.Equal(t, "custom-group", cfg.KafkaConsumer)
	require.Equal(t, "log", cfg.Provider)
	require.Equal(t, "transfers", cfg.ChannelID)
	require.Equal(t, 4, cfg.MaxConcurrency)
	require.Equal(t, 2.5, cfg.RatePerSecond)
	require.Equal(t, 3, cfg.RateBurst)
	require.Equal(t, 3*time.Second, cfg.SendTimeout)
	require.Equal(t, 5, cfg.DedupeCapacity)
	require.Equal(t, 48*time.Hour, cfg.DedupeTTL)
	require.Equal(t, 3, cfg.BatchSize)
}

func TestLoadWorkerValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "fcm without project", env: map[string]string{"PUSH_PROVIDER": "fcm", "FCM_PROJECT_ID": ""}},
		{name: "unknown provider", env: map[string]string{"PUSH_PROVIDER": "carrier-pigeon"}},
		{name: "no brokers", env: map[string]string{"PUSH_PROVIDER": "log", "KAFKA_BROKERS": " , "}},
		{name: "zero batch", env: map[string]string{"PUSH_PROVIDER": "log", "WORKER_BATCH_SIZE": "0"}},
		{name: "negative concurrency", env: map[string]string{"PUSH_PROVIDER": "log", "PUSH_MAX_CONCURRENCY": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.LoadWorker()
			require.Error(t, err)
		})
	}
}

func TestLoadAPI(t *testing.T) {
	t.Setenv("API_BIND_ADDR", ":9090")
	t.Setenv("API_PAGE_SIZE", "15")
	t.Setenv("API_MAX_PAGE_SIZE", "200")
	t.Setenv("API_JWT_SECRET", testSecret)
	t.Setenv("ELASTICSEARCH_ADDR", "http://api-es:9200")
	t.Setenv("ELASTICSEARCH_INDEX", "api-index")
	t.Setenv("IMAGE_ENDPOINT", "minio:9000")
	t.Setenv("IMAGE_PUBLIC_URL", "https://cdn.example.com/")
	t.Setenv("IMAGE_USE_SSL", "false")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.BindAddr)
	require.Equal(t, 15, cfg.DefaultPage)
	require.Equal(t, 200, cfg.MaxPage)
	require.Equal(t, "http://api-es:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "api-index", cfg.ElasticsearchIndex)
	require.True(t, cfg.Images.Enabled())
	require.False(t, cfg.UseSSL)
	require.Equal(t, "https://cdn.example.com", cfg.PublicURL)
	require.Equal(t, "news-images", cfg.Bucket)
}

func TestLoadAPIRequiresSecret(t *testing.T) {
	t.Setenv("API_JWT_SECRET", "short")
	_, err := config.LoadAPI()
	require.Error(t, err)
}

func TestLoadRetention(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "http://ret-es:9200")
	t.Setenv("ELASTICSEARCH_INDEX", "ret-index")
	t.Setenv("RETENTION_CRON", "12h")
	t.Setenv("RETENTION_MAX_AGE", "36h")
	t.Setenv("RETENTION_BATCH_SIZE", "123")

	cfg, err := config.LoadRetention()
	require.NoError(t, err)

	require.Equal(t, 12*time.Hour, cfg.Interval)
	require.Equal(t, 36*time.Hour, cfg.MaxAge)
	require.Equal(t, 123, cfg.BatchSize)
	require.Equal(t, "http://ret-es:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "ret-index", cfg.ElasticsearchIndex)
}
