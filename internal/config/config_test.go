package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.MatchThreshold != defaultMatchThreshold {
		t.Fatalf("MatchThreshold = %v, want %v", cfg.MatchThreshold, defaultMatchThreshold)
	}
	if cfg.BlurThreshold != defaultBlurThreshold {
		t.Fatalf("BlurThreshold = %v, want %v", cfg.BlurThreshold, defaultBlurThreshold)
	}
	if cfg.ResultCacheTTL != 5*time.Minute {
		t.Fatalf("ResultCacheTTL = %v, want 5m", cfg.ResultCacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("FACE_MATCH_THRESHOLD", "0.45")
	t.Setenv("LIVENESS_BLUR_THRESHOLD", "80")
	t.Setenv("RESULT_CACHE_TTL", "90s")

	cfg := Load()

	if cfg.Addr != ":9999" {
		t.Fatalf("Addr = %q, want :9999", cfg.Addr)
	}
	if cfg.MatchThreshold != 0.45 {
		t.Fatalf("MatchThreshold = %v, want 0.45", cfg.MatchThreshold)
	}
	if cfg.BlurThreshold != 80 {
		t.Fatalf("BlurThreshold = %v, want 80", cfg.BlurThreshold)
	}
	if cfg.ResultCacheTTL != 90*time.Second {
		t.Fatalf("ResultCacheTTL = %v, want 90s", cfg.ResultCacheTTL)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("FACE_MATCH_THRESHOLD", "not-a-number")
	t.Setenv("RESULT_CACHE_TTL", "soon")

	cfg := Load()

	if cfg.MatchThreshold != defaultMatchThreshold {
		t.Fatalf("MatchThreshold = %v, want default %v", cfg.MatchThreshold, defaultMatchThreshold)
	}
	if cfg.ResultCacheTTL != 5*time.Minute {
		t.Fatalf("ResultCacheTTL = %v, want default 5m", cfg.ResultCacheTTL)
	}
}
