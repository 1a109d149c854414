package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Source backends.
const (
	BackendFile = "file"
	BackendS3   = "s3"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Source files (local paths, or object keys with the s3 backend).
	IndicatorsPath string
	GlossaryPath   string
	BoundariesPath string
	// RegionsPath overrides the embedded regions/operations/scope YAML.
	RegionsPath string

	SourceBackend     string
	S3Endpoint        string
	S3Bucket          string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// RefreshSchedule is a cron spec; empty disables periodic reloads.
	RefreshSchedule string
	ChartCacheSize  int
	// RegionValueCap caps aggregated region values; 0 disables.
	RegionValueCap float64

	// Snapshot publishing.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSnapshotTopic string
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is read first when present;
// variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	chartCacheSize, err := parsePositiveInt("CHART_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	valueCap, err := parseValueCap()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		IndicatorsPath: sharedcfg.EnvOrDefault("INDICATORS_PATH", "./data/sire_indicador_valor_grid.csv"),
		GlossaryPath:   sharedcfg.EnvOrDefault("GLOSSARY_PATH", "./data/sire_indicador_grid.csv"),
		BoundariesPath: sharedcfg.EnvOrDefault("BOUNDARIES_PATH", "./data/geojs-25-mun.json"),
		RegionsPath:    os.Getenv("REGIONS_PATH"),

		SourceBackend:     sharedcfg.EnvOrDefault("SOURCE_BACKEND", BackendFile),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3Region:          sharedcfg.EnvOrDefault("S3_REGION", "us-east-1"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),

		RefreshSchedule: envOrDefaultAllowEmpty("REFRESH_SCHEDULE", "@every 5m"),
		ChartCacheSize:  chartCacheSize,
		RegionValueCap:  valueCap,

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSnapshotTopic: sharedcfg.EnvOrDefault("KAFKA_SNAPSHOT_TOPIC", "sire-region-snapshots"),
	}

	switch cfg.SourceBackend {
	case BackendFile:
	case BackendS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("S3_BUCKET is required when SOURCE_BACKEND is s3")
		}
	default:
		return nil, fmt.Errorf("invalid SOURCE_BACKEND %q: must be %q or %q", cfg.SourceBackend, BackendFile, BackendS3)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaSnapshotTopic == "" {
		return nil, errors.New("KAFKA_SNAPSHOT_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, s)
	}
	return n, nil
}

func parseValueCap() (float64, error) {
	s := os.Getenv("REGION_VALUE_CAP")
	if s == "" {
		return 100, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid REGION_VALUE_CAP %q", s)
	}
	return v, nil
}

// envOrDefaultAllowEmpty distinguishes an unset variable from one explicitly
// set to "", which disables the feature.
func envOrDefaultAllowEmpty(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}
