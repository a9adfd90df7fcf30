package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("QUIZ_PG_URL", "postgres://quiz@db/quiz")
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := "server:\n  port: \"9090\"\npostgres:\n  url: ${QUIZ_PG_URL}\nsession:\n  secondsPerQuestion: 30\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Postgres.URL != "postgres://quiz@db/quiz" || cfg.Session.SecondsPerQuestion != 30 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestTTLDuration(t *testing.T) {
	if d := TTLDuration("", time.Minute); d != time.Minute {
		t.Fatalf("expected fallback, got %v", d)
	}
	if d := TTLDuration("bogus", time.Minute); d != time.Minute {
		t.Fatalf("expected fallback for bad input, got %v", d)
	}
	if d := TTLDuration("250ms", time.Minute); d != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", d)
	}
}
