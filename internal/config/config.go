// Package config loads the scheduler's configuration from environment
// variables, a .env file, and an optional config file layered on top via
// viper — the same env-first shape the teacher used, extended with
// file-based overrides for the scheduler's own tuning knobs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// QueueBackend selects which TaskStore implementation the scheduler wires
// up at startup.
type QueueBackend string

const (
	QueueBackendMemory QueueBackend = "memory"
	QueueBackendRedis  QueueBackend = "redis"
	QueueBackendKafka  QueueBackend = "kafka"
)

// Config holds all configuration values for the scheduler and its
// collaborators.
type Config struct {
	// MongoDB (task metadata store)
	MongoURI         string
	MongoCollection  string
	MongoMaxPoolSize int
	MongoBulkDelayMs int

	// OpenSearch (document index)
	OpenSearchHosts       []string
	OpenSearchUser        string
	OpenSearchPassword    string
	OpenSearchIndex       string
	OpenSearchVerifyCerts bool
	OpenSearchBulkSize    int

	// Queue
	QueueBackend QueueBackend
	RedisAddr    string
	RedisListKey string
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Scheduler
	PrefixSize   int
	PollInterval int // milliseconds between empty-queue polls

	// Retry
	MaxRetries int
	RetryDelay int

	// Checkpoint
	CheckpointDir string

	// OpenSearch settings cache (avoids redundant UpdateSettings calls)
	SettingsCacheDir string

	// Metrics
	MetricsAddr string
}

// Load reads configuration from environment variables (with a .env file
// loaded first, if present), then layers an optional config file
// (config.yaml/json/toml, searched via viper) on top for values that
// aren't simple per-deployment secrets.
func Load() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/search-indexer")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.ReadInConfig() // absent config file is not an error

	cfg := &Config{
		MongoURI:         getEnv(v, "MONGODB_URI", "mongodb://localhost:27017/search_db"),
		MongoCollection:  getEnv(v, "MONGODB_COLLECTION", "tasks"),
		MongoMaxPoolSize: getEnvInt(v, "MONGO_MAX_POOL_SIZE", 20),
		MongoBulkDelayMs: getEnvInt(v, "MONGO_BULK_DELAY_MS", 50),

		OpenSearchHosts:       strings.Split(getEnv(v, "OPENSEARCH_HOSTS", "https://localhost:9200"), ","),
		OpenSearchUser:        getEnv(v, "OPENSEARCH_USER", "admin"),
		OpenSearchPassword:    getEnv(v, "OPENSEARCH_PASSWORD", "admin"),
		OpenSearchIndex:       getEnv(v, "OPENSEARCH_INDEX", "documents"),
		OpenSearchVerifyCerts: getEnv(v, "OPENSEARCH_VERIFY_CERTS", "false") == "true",
		OpenSearchBulkSize:    getEnvInt(v, "OPENSEARCH_BULK_SIZE", 100),

		QueueBackend: QueueBackend(getEnv(v, "QUEUE_BACKEND", string(QueueBackendMemory))),
		RedisAddr:    getEnv(v, "REDIS_ADDR", "localhost:6379"),
		RedisListKey: getEnv(v, "REDIS_LIST_KEY", "search-indexer:tasks"),
		KafkaBrokers: strings.Split(getEnv(v, "KAFKA_BROKERS", "localhost:9092"), ","),
		KafkaTopic:   getEnv(v, "KAFKA_TOPIC", "index-tasks"),
		KafkaGroupID: getEnv(v, "KAFKA_GROUP_ID", "search-indexer"),

		PrefixSize:   getEnvInt(v, "PREFIX_SIZE", 200),
		PollInterval: getEnvInt(v, "POLL_INTERVAL_MS", 500),

		MaxRetries: getEnvInt(v, "MAX_RETRIES", 3),
		RetryDelay: getEnvInt(v, "RETRY_DELAY", 5),

		CheckpointDir:    getEnv(v, "CHECKPOINT_DIR", ".checkpoint"),
		SettingsCacheDir: getEnv(v, "SETTINGS_CACHE_DIR", ".checkpoint/settings-cache"),

		MetricsAddr: getEnv(v, "METRICS_ADDR", ":9090"),
	}

	return cfg
}

// Validate reports a contract violation in the loaded configuration that
// would otherwise surface as a confusing error deep in a collaborator.
func (c *Config) Validate() error {
	switch c.QueueBackend {
	case QueueBackendMemory, QueueBackendRedis, QueueBackendKafka:
	default:
		return fmt.Errorf("config: unknown queue backend %q", c.QueueBackend)
	}
	if c.PrefixSize <= 0 {
		return fmt.Errorf("config: prefix size must be positive, got %d", c.PrefixSize)
	}
	return nil
}

func getEnv(v *viper.Viper, key, defaultVal string) string {
	if val := v.GetString(key); val != "" {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(v *viper.Viper, key string, defaultVal int) int {
	if val := v.GetString(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
