package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "LISTEN_ADDR", "AUTOSAVE_DELAY", "AUTOSAVE_TEXT_DELAY", "ANALYSIS_PROXY_URL", "ANTHROPIC_MODEL", "DATABASE_URL"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("expected default listen addr, got %q", cfg.ListenAddr)
	}
	if cfg.AutoSaveDelay != 500*time.Millisecond {
		t.Fatalf("expected 500ms delay, got %s", cfg.AutoSaveDelay)
	}
	if cfg.AutoSaveTextDelay != 5*time.Second {
		t.Fatalf("expected 5s text delay, got %s", cfg.AutoSaveTextDelay)
	}
	if cfg.AnalysisProxyURL != "http://127.0.0.1:8080/api/analyze" {
		t.Fatalf("unexpected proxy url %q", cfg.AnalysisProxyURL)
	}
	if cfg.AnthropicModel != "claude-haiku-4-5-20251001" {
		t.Fatalf("unexpected model %q", cfg.AnthropicModel)
	}
}

func TestFromEnvDurations(t *testing.T) {
	t.Setenv("AUTOSAVE_DELAY", "750")
	t.Setenv("AUTOSAVE_TEXT_DELAY", "2s")
	t.Setenv("SESSION_IDLE_TIMEOUT", "nonsense")

	cfg := FromEnv()
	if cfg.AutoSaveDelay != 750*time.Millisecond {
		t.Fatalf("expected bare number to be milliseconds, got %s", cfg.AutoSaveDelay)
	}
	if cfg.AutoSaveTextDelay != 2*time.Second {
		t.Fatalf("expected 2s, got %s", cfg.AutoSaveTextDelay)
	}
	if cfg.SessionIdleTimeout != defaultSessionIdleTimeout {
		t.Fatalf("expected fallback for invalid duration, got %s", cfg.SessionIdleTimeout)
	}
}

func TestFromEnvTrimsValues(t *testing.T) {
	t.Setenv("PORT", " 9090 ")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("ANALYSIS_PROXY_URL", "")
	t.Setenv("ANTHROPIC_BASE_URL", "https://proxy.example.com/")

	cfg := FromEnv()
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("expected :9090, got %q", cfg.ListenAddr)
	}
	if cfg.AnthropicBaseURL != "https://proxy.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.AnthropicBaseURL)
	}
}
