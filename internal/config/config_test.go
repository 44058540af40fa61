package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_HOST", "")
	t.Setenv("INSTANCE_CONNECTION_NAME", "")
	t.Setenv("FIREBASE_PROJECT_ID", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ReminderInterval != time.Minute || cfg.InflightTTL != 30*time.Second || cfg.SessionIdleTimeout != 30*time.Minute {
		t.Fatalf("unexpected durations %+v", cfg)
	}
	if cfg.AuditLogEnabled() || cfg.UseFirestore() {
		t.Fatalf("audit log and firestore should be off by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "demo")
	t.Setenv("DOC_STORE", "memory")
	t.Setenv("REMINDER_INTERVAL", "15s")
	t.Setenv("SESSION_IDLE_TIMEOUT", "5m")
	t.Setenv("DB_HOST", "localhost")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.UseFirestore() {
		t.Fatalf("DOC_STORE=memory must win over project id")
	}
	if cfg.ReminderInterval != 15*time.Second || cfg.SessionIdleTimeout != 5*time.Minute || !cfg.AuditLogEnabled() {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
