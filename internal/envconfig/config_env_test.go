package envconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("ENVPOOL_SUITE", "backend")
	t.Setenv("ENVPOOL_LISTEN", ":7070")
	t.Setenv("ENVPOOL_AUTH_KEY", "from-env")
	t.Setenv("ENVPOOL_STOP_TIMEOUT", "20s")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}

	if cfg.Suite != "backend" {
		t.Errorf("Suite = %q, want backend", cfg.Suite)
	}
	if cfg.Listen != ":7070" {
		t.Errorf("Listen = %q, want :7070", cfg.Listen)
	}
	if cfg.AuthKey != "from-env" {
		t.Errorf("AuthKey = %q, want from-env", cfg.AuthKey)
	}
	if cfg.StopTimeout != 20*time.Second {
		t.Errorf("StopTimeout = %v, want 20s", cfg.StopTimeout)
	}
}

func TestApplyEnvConfig_FlagPrecedence(t *testing.T) {
	t.Setenv("ENVPOOL_SUITE", "from-env")

	cfg := DefaultConfig()
	cfg.Suite = "from-flag"
	if err := ApplyEnvConfig(&cfg, map[string]bool{"suite": true}); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}
	if cfg.Suite != "from-flag" {
		t.Errorf("Suite = %q, want flag value preserved", cfg.Suite)
	}
}

func TestApplyEnvConfig_InvalidDuration(t *testing.T) {
	t.Setenv("ENVPOOL_STOP_TIMEOUT", "soon")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err == nil {
		t.Error("invalid duration accepted")
	}
}
