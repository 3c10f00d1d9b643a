// Package config loads scheduler and API settings from .env and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// SourceConfig holds the External Record Source settings handed to ingestion.
type SourceConfig struct {
	BaseURL       string        `validate:"required,url"`
	APIKey        string        // empty: network ingestion is skipped with a warning
	Timeout       time.Duration `validate:"gt=0"`
	RateLimit     float64       `validate:"gt=0"`
	LocalFeedPath string        // when set the CSV feed replaces the network path
	PhoneRegion   string        `validate:"len=2"`
}

// Configured reports whether any record source is usable.
func (s SourceConfig) Configured() bool {
	return s.LocalFeedPath != "" || s.APIKey != ""
}

type GotenbergConfig struct {
	URL      string
	Username string
	Password string
}

func (g GotenbergConfig) Enabled() bool { return g.URL != "" }

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func (m MinIOConfig) Enabled() bool {
	return m.Endpoint != "" && m.AccessKey != "" && m.SecretKey != "" && m.Bucket != ""
}

type PrinterConfig struct {
	AMQPURL string
	Queue   string `validate:"required"`
}

type SchedulerConfig struct {
	Tick        string `validate:"required"`
	Concurrency int    `validate:"min=1,max=32"`
}

// Config holds all application configuration values.
type Config struct {
	Env             string `validate:"required"`
	HTTPAddr        string `validate:"required"`
	DatabaseURL     string `validate:"required"`
	MigrationsDir   string
	TemplateCatalog string `validate:"required"`

	Source    SourceConfig
	Gotenberg GotenbergConfig
	MinIO     MinIOConfig
	Printer   PrinterConfig
	Scheduler SchedulerConfig
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		MigrationsDir:   getEnv("MIGRATIONS_DIR", "internal/db/migrations"),
		TemplateCatalog: getEnv("TEMPLATE_CATALOG", "templates.yaml"),
		Source: SourceConfig{
			BaseURL:       getEnv("RADAR_BASE_URL", "https://api.propertyradar.com"),
			APIKey:        getEnv("RADAR_API_KEY", ""),
			Timeout:       mustDuration(getEnv("RADAR_TIMEOUT", "30s")),
			RateLimit:     mustFloat(getEnv("RADAR_RATE_LIMIT", "2")),
			LocalFeedPath: getEnv("LOCAL_FEED_PATH", ""),
			PhoneRegion:   strings.ToUpper(getEnv("PHONE_REGION", "US")),
		},
		Gotenberg: GotenbergConfig{
			URL:      getEnv("GOTENBERG_URL", ""),
			Username: getEnv("GOTENBERG_USERNAME", ""),
			Password: getEnv("GOTENBERG_PASSWORD", ""),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "printed-letters"),
			UseSSL:    strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		},
		Printer: PrinterConfig{
			AMQPURL: getEnv("AMQP_URL", ""),
			Queue:   getEnv("PRINT_QUEUE", "print_jobs"),
		},
		Scheduler: SchedulerConfig{
			Tick:        getEnv("SCHEDULER_TICK", "@every 1m"),
			Concurrency: mustInt(getEnv("SCHEDULER_CONCURRENCY", "1")),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return n
}

func mustFloat(value string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return f
}
