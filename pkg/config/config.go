package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures the full runtime configuration for the docgate service.
type Config struct {
	App     AppConfig
	HTTP    HTTPConfig
	Upload  UploadConfig
	Storage StorageConfig
	Kafka   KafkaConfig
	Session SessionConfig
	Tracing TracingConfig
}

type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"docgate"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	Version     string `env:"APP_VERSION" envDefault:"0.1.0"`
	LogLevel    string `env:"APP_LOG_LEVEL" envDefault:"info"`
}

type HTTPConfig struct {
	Addr           string        `env:"HTTP_ADDR" envDefault:":8000"`
	ReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout    time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	AllowedOrigins []string      `env:"HTTP_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost,http://localhost:5173"`
}

// UploadConfig bounds and classifies submitted documents. The defaults accept
// only PDF payloads up to 30 MiB.
type UploadConfig struct {
	MaxSizeBytes      int64  `env:"UPLOAD_MAX_SIZE_BYTES" envDefault:"31457280"`
	MultipartMemBytes int64  `env:"UPLOAD_MULTIPART_MEM_BYTES" envDefault:"33554432"`
	AcceptedExtension string `env:"UPLOAD_ACCEPTED_EXTENSION" envDefault:".pdf"`
	AcceptedMIMEType  string `env:"UPLOAD_ACCEPTED_MIME_TYPE" envDefault:"application/pdf"`
}

// StorageConfig selects where accepted documents are persisted. The default
// filesystem provider writes into a single flat directory; minio/s3 remain
// available for deployments backed by an object store.
type StorageConfig struct {
	Provider  string `env:"STORAGE_PROVIDER" envDefault:"filesystem"`
	Directory string `env:"STORAGE_DIRECTORY" envDefault:"uploads"`
	Endpoint  string `env:"STORAGE_ENDPOINT" envDefault:"localhost:9000"`
	Region    string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	Bucket    string `env:"STORAGE_BUCKET" envDefault:"docgate-documents"`
	AccessKey string `env:"STORAGE_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey string `env:"STORAGE_SECRET_KEY" envDefault:"minioadmin"`
	UseSSL    bool   `env:"STORAGE_USE_SSL" envDefault:"false"`
}

type KafkaConfig struct {
	Enabled          bool          `env:"KAFKA_ENABLED" envDefault:"false"`
	Brokers          []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	DocumentTopic    string        `env:"KAFKA_DOCUMENT_TOPIC" envDefault:"docgate.documents"`
	Retries          int           `env:"KAFKA_RETRIES" envDefault:"3"`
	CompressionCodec string        `env:"KAFKA_COMPRESSION_CODEC" envDefault:"snappy"`
	BatchSize        int           `env:"KAFKA_BATCH_SIZE" envDefault:"100"`
	BatchTimeout     time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"1s"`
}

// SessionConfig tunes the WebSocket side of an admitted session.
type SessionConfig struct {
	WriteWait      time.Duration `env:"SESSION_WRITE_WAIT" envDefault:"10s"`
	PongWait       time.Duration `env:"SESSION_PONG_WAIT" envDefault:"60s"`
	MaxMessageSize int64         `env:"SESSION_MAX_MESSAGE_SIZE" envDefault:"8192"`
}

type TracingConfig struct {
	Endpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	Insecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio  float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1.0"`
	ResourceAttr string  `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:"service.namespace=docgate"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
