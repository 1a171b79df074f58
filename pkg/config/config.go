package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures the full runtime configuration of the podping watcher.
type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Tracing  TracingConfig
	Metrics  MetricsConfig
	Accounts AccountsConfig
	Podping  PodpingConfig
}

type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"podping-watcher"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	Version     string `env:"APP_VERSION" envDefault:"0.1.0"`
	LogLevel    string `env:"APP_LOG_LEVEL" envDefault:"info"`
}

type HTTPConfig struct {
	Addr         string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	MaxBodyBytes int64         `env:"HTTP_MAX_BODY_BYTES" envDefault:"65536"`
}

type KafkaConfig struct {
	Brokers          []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	OperationsTopic  string        `env:"KAFKA_OPERATIONS_TOPIC" envDefault:"hive.custom_json"`
	EventsTopic      string        `env:"KAFKA_EVENTS_TOPIC" envDefault:"podping.events"`
	GroupID          string        `env:"KAFKA_GROUP_ID" envDefault:"podping-watcher"`
	StartFromLatest  bool          `env:"KAFKA_START_FROM_LATEST" envDefault:"true"`
	HandlerTimeout   time.Duration `env:"KAFKA_HANDLER_TIMEOUT" envDefault:"10s"`
	Retries          int           `env:"KAFKA_RETRIES" envDefault:"3"`
	RetryBackoff     time.Duration `env:"KAFKA_RETRY_BACKOFF" envDefault:"500ms"`
	CompressionCodec string        `env:"KAFKA_COMPRESSION_CODEC" envDefault:"snappy"`
	BatchSize        int           `env:"KAFKA_BATCH_SIZE" envDefault:"100"`
	BatchTimeout     time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"50ms"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type StorageConfig struct {
	Provider  string `env:"STORAGE_PROVIDER" envDefault:"minio"`
	Endpoint  string `env:"STORAGE_ENDPOINT" envDefault:"localhost:9000"`
	Region    string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	Bucket    string `env:"STORAGE_BUCKET" envDefault:"podping-trust"`
	AccessKey string `env:"STORAGE_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey string `env:"STORAGE_SECRET_KEY" envDefault:"minioadmin"`
	UseSSL    bool   `env:"STORAGE_USE_SSL" envDefault:"false"`
}

type TracingConfig struct {
	Endpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	Insecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio  float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"0.1"`
	ResourceAttr string  `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:"service.namespace=podping"`
}

type MetricsConfig struct {
	Addr string `env:"METRICS_ADDR" envDefault:":9102"`
}

// AccountsConfig controls where the trusted poster set comes from.
type AccountsConfig struct {
	Source          string        `env:"ACCOUNTS_SOURCE" envDefault:"static"`
	Anchors         []string      `env:"ACCOUNTS_ANCHORS" envSeparator:"," envDefault:"podping"`
	Static          []string      `env:"ACCOUNTS_STATIC" envSeparator:","`
	RedisKey        string        `env:"ACCOUNTS_REDIS_KEY" envDefault:"podping:accounts"`
	ObjectKey       string        `env:"ACCOUNTS_OBJECT_KEY" envDefault:"accounts.json"`
	RefreshInterval time.Duration `env:"ACCOUNTS_REFRESH_INTERVAL" envDefault:"1h"`
}

type PodpingConfig struct {
	Livetest bool `env:"PODPING_LIVETEST" envDefault:"false"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
