package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.LifecycleSubject != "connections.lifecycle" {
		t.Errorf("LifecycleSubject = %q", cfg.LifecycleSubject)
	}
	if cfg.BlobContainer != "recordings" {
		t.Errorf("BlobContainer = %q", cfg.BlobContainer)
	}
}

func TestLoadRejectsBlobAccountWithoutKey(t *testing.T) {
	t.Setenv("BLOB_ACCOUNT_NAME", "recstore")
	t.Setenv("BLOB_ACCOUNT_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when BLOB_ACCOUNT_NAME is set without BLOB_ACCOUNT_KEY")
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := &Config{
		EgressTimeout:     "5s",
		BlobSASTTL:        "30m",
		CommandStaleAfter: "bogus",
		RecordingLookback: "",
	}
	if got := cfg.EgressCallTimeout(); got != 5*time.Second {
		t.Errorf("EgressCallTimeout = %v", got)
	}
	if got := cfg.SASTTL(); got != 30*time.Minute {
		t.Errorf("SASTTL = %v", got)
	}
	if got := cfg.StaleAfter(); got != 2*time.Minute {
		t.Errorf("StaleAfter fallback = %v", got)
	}
	if got := cfg.Lookback(); got != 60*time.Minute {
		t.Errorf("Lookback fallback = %v", got)
	}
}

func TestTelemetryKafkaBrokersList(t *testing.T) {
	cfg := &Config{TelemetryKafkaBrokers: "a:9092, b:9092 ,"}
	got := cfg.TelemetryKafkaBrokersList()
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Errorf("brokers = %v", got)
	}
	var nilCfg *Config
	if nilCfg.TelemetryKafkaBrokersList() != nil {
		t.Error("nil config should return nil")
	}
}
