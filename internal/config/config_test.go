package config_test

import (
	"testing"
	"time"

	"github.com/unclebandit/directmail-scheduler/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/mail?sslmode=disable")
	t.Setenv("RADAR_API_KEY", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Source.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", cfg.Source.Timeout)
	}
	if cfg.Scheduler.Concurrency != 1 {
		t.Errorf("expected concurrency 1, got %d", cfg.Scheduler.Concurrency)
	}
	if cfg.Printer.Queue != "print_jobs" {
		t.Errorf("expected print_jobs queue, got %q", cfg.Printer.Queue)
	}
	if cfg.Source.Configured() {
		t.Error("source should not be configured without api key or local feed")
	}
	if cfg.MinIO.Enabled() {
		t.Error("minio should be disabled without endpoint")
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is empty")
	}
}

func TestLoadRejectsBadConcurrency(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/mail")
	t.Setenv("SCHEDULER_CONCURRENCY", "zero")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected validation error for unparsable concurrency")
	}
}

func TestLocalFeedMakesSourceConfigured(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/mail")
	t.Setenv("LOCAL_FEED_PATH", "/tmp/leads.csv")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Source.Configured() {
		t.Error("expected local feed to count as a configured source")
	}
}
