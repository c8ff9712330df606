package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Worker.BatchSize != 100 {
		t.Errorf("batch size = %d, want 100", cfg.Worker.BatchSize)
	}
	if cfg.Worker.MaxWait != "1s" {
		t.Errorf("max wait = %q, want 1s", cfg.Worker.MaxWait)
	}
	if _, err := time.ParseDuration(cfg.Worker.MaxWait); err != nil {
		t.Errorf("default max wait does not parse: %v", err)
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "localhost:9092" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Kafka.Topic != "request-response-logs" {
		t.Errorf("topic = %q", cfg.Kafka.Topic)
	}
	if cfg.ClickHouse.Addr != "localhost:9000" {
		t.Errorf("clickhouse addr = %q", cfg.ClickHouse.Addr)
	}
	if cfg.Admin.Port != 8090 {
		t.Errorf("admin port = %d, want 8090", cfg.Admin.Port)
	}
	if cfg.Analytics.Enabled {
		t.Error("analytics must default to disabled")
	}
	if cfg.DeadLetter.Path != "dead_letters.db" {
		t.Errorf("dead-letter path = %q", cfg.DeadLetter.Path)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("INGEST_KAFKA__TOPIC", "traffic-logs")
	t.Setenv("INGEST_WORKER__BATCH_SIZE", "250")
	t.Setenv("INGEST_CLICKHOUSE__ADDR", "ch.internal:9000")
	t.Setenv("INGEST_ANALYTICS__ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Kafka.Topic != "traffic-logs" {
		t.Errorf("topic = %q, want traffic-logs", cfg.Kafka.Topic)
	}
	if cfg.Worker.BatchSize != 250 {
		t.Errorf("batch size = %d, want 250", cfg.Worker.BatchSize)
	}
	if cfg.ClickHouse.Addr != "ch.internal:9000" {
		t.Errorf("clickhouse addr = %q, want ch.internal:9000", cfg.ClickHouse.Addr)
	}
	if !cfg.Analytics.Enabled {
		t.Error("analytics enabled override ignored")
	}
	// Untouched settings keep their defaults.
	if cfg.Kafka.GroupID != "ingest-worker" {
		t.Errorf("group id = %q, want ingest-worker", cfg.Kafka.GroupID)
	}
}
