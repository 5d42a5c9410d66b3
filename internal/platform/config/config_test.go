package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnv_defaults(t *testing.T) {
	for _, k := range []string{"PORT", "QUEUE_MAX_ITEMS", "QUEUE_POLL_INTERVAL", "SIM_ZONES"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	if cfg.Port != "3443" {
		t.Errorf("Port: got %q", cfg.Port)
	}
	if cfg.QueueMaxItems != 20 {
		t.Errorf("QueueMaxItems: got %d", cfg.QueueMaxItems)
	}
	if cfg.QueuePollInterval != 2*time.Second {
		t.Errorf("QueuePollInterval: got %s", cfg.QueuePollInterval)
	}
	if len(cfg.SimZones) != 2 {
		t.Errorf("SimZones: got %v", cfg.SimZones)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Run("duration_string", func(t *testing.T) {
		t.Setenv("X_DUR", "500ms")
		if d := GetEnvDuration("X_DUR", time.Second); d != 500*time.Millisecond {
			t.Errorf("got %s", d)
		}
	})
	t.Run("bare_seconds", func(t *testing.T) {
		t.Setenv("X_DUR", "3")
		if d := GetEnvDuration("X_DUR", time.Second); d != 3*time.Second {
			t.Errorf("got %s", d)
		}
	})
	t.Run("invalid_falls_back", func(t *testing.T) {
		t.Setenv("X_DUR", "soon")
		if d := GetEnvDuration("X_DUR", time.Second); d != time.Second {
			t.Errorf("got %s", d)
		}
	})
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("X_LIST", " Kitchen, ,Office ")
	got := GetEnvList("X_LIST", nil)
	if len(got) != 2 || got[0] != "Kitchen" || got[1] != "Office" {
		t.Errorf("got %v", got)
	}

	t.Setenv("X_LIST", " , ")
	if got := GetEnvList("X_LIST", []string{"a"}); len(got) != 1 || got[0] != "a" {
		t.Errorf("blank list should fall back, got %v", got)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("ROON_WEB_TEST_KEY=42\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ROON_WEB_TEST_KEY", "")
	os.Unsetenv("ROON_WEB_TEST_KEY")

	if err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n := GetEnvInt("ROON_WEB_TEST_KEY", 0); n != 42 {
		t.Errorf("expected 42 from env file, got %d", n)
	}

	if err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected error for missing file")
	}
}
