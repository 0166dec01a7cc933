package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	BackendHugot = "hugot"
	BackendORT   = "ort"

	StoreFile     = "file"
	StoreDynamoDB = "dynamodb"
)

type Config struct {
	Env      string
	LogLevel string
	HTTPAddr string

	ScoringBackend string
	ModelDir       string
	ORTLibraryPath string

	StoreBackend string
	DataDir      string
	AWSEndpoint  string
	AWSRegion    string

	ValkeyAddress  string
	ValkeyPassword string
	ValkeyTLS      bool

	KafkaBroker      string
	KafkaReviewTopic string

	ImportBatchSize int
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

// Load builds a Config from the process environment. Call LoadEnv first when
// an env file should be honoured.
func Load() (Config, error) {
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8000"),
		ScoringBackend:   getEnv("SCORING_BACKEND", BackendHugot),
		ModelDir:         getEnv("MODEL_DIR", "./models"),
		ORTLibraryPath:   os.Getenv("ORT_LIBRARY_PATH"),
		StoreBackend:     getEnv("STORE_BACKEND", StoreFile),
		DataDir:          getEnv("DATA_DIR", "."),
		AWSEndpoint:      os.Getenv("AWS_ENDPOINT"),
		AWSRegion:        getEnv("AWS_REGION", "us-west-2"),
		ValkeyAddress:    os.Getenv("VALKEY_INIT_ADDRESS"),
		ValkeyPassword:   os.Getenv("VALKEY_PASSWORD"),
		ValkeyTLS:        os.Getenv("VALKEY_TLS") == "true",
		KafkaBroker:      os.Getenv("KAFKA_BROKER"),
		KafkaReviewTopic: getEnv("KAFKA_REVIEW_TOPIC", "review-sentiment"),
		ImportBatchSize:  16,
	}

	if raw := os.Getenv("IMPORT_BATCH_SIZE"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid IMPORT_BATCH_SIZE %q", raw)
		}
		cfg.ImportBatchSize = n
	}

	switch cfg.ScoringBackend {
	case BackendHugot, BackendORT:
	default:
		return cfg, fmt.Errorf("unknown SCORING_BACKEND %q", cfg.ScoringBackend)
	}

	switch cfg.StoreBackend {
	case StoreFile, StoreDynamoDB:
	default:
		return cfg, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	return cfg, nil
}

// CacheEnabled reports whether a Valkey address was configured.
func (c Config) CacheEnabled() bool {
	return c.ValkeyAddress != ""
}

// EventsEnabled reports whether a Kafka broker was configured.
func (c Config) EventsEnabled() bool {
	return c.KafkaBroker != ""
}
