package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "ARTIFACT_BACKEND", "MERKLE_SORT_LEAVES", "PROOF_MAX_AGE", "HISTORY_LIMIT", "TOKEN_DECIMALS"} {
		t.Setenv(key, "")
	}
	cfg := FromEnv()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr)
	}
	if cfg.ArtifactBackend != "fs" {
		t.Fatalf("unexpected backend %q", cfg.ArtifactBackend)
	}
	if !cfg.MerkleSortLeaves {
		t.Fatalf("expected leaves sorted by default")
	}
	if cfg.ProofMaxAge != 365*24*time.Hour {
		t.Fatalf("unexpected max age %s", cfg.ProofMaxAge)
	}
	if cfg.HistoryLimit != 100 || cfg.TokenDecimals != 18 {
		t.Fatalf("unexpected limits %d %d", cfg.HistoryLimit, cfg.TokenDecimals)
	}
}

func TestEnvDurationDefault(t *testing.T) {
	cases := []struct {
		value string
		want  time.Duration
	}{
		{"", time.Minute},
		{"90s", 90 * time.Second},
		{"30", 30 * time.Second},
		{"-5s", time.Minute},
		{"soon", time.Minute},
	}
	for _, tc := range cases {
		t.Setenv("TEST_DURATION", tc.value)
		if got := envDurationDefault("TEST_DURATION", time.Minute); got != tc.want {
			t.Fatalf("%q: expected %s, got %s", tc.value, tc.want, got)
		}
	}
}

func TestEnvBoolDefault(t *testing.T) {
	t.Setenv("MERKLE_SORT_LEAVES", "false")
	if FromEnv().MerkleSortLeaves {
		t.Fatalf("expected sorting disabled")
	}
	t.Setenv("MERKLE_SORT_LEAVES", "maybe")
	if !FromEnv().MerkleSortLeaves {
		t.Fatalf("expected fallback to default")
	}
}
