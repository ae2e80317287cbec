package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.DataDir == "" {
		t.Error("data dir should default under the home directory")
	}
	if cfg.SessionIdleTTL != 24*time.Hour {
		t.Errorf("session idle TTL = %v, want 24h", cfg.SessionIdleTTL)
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("cache TTL = %v, want 1h", cfg.CacheTTL)
	}
	if cfg.FullLoadLimit != 3 || cfg.MinScore != 0.35 {
		t.Errorf("load policy = %d/%v, want 3/0.35", cfg.FullLoadLimit, cfg.MinScore)
	}
	if cfg.CandidateCap != 50 || cfg.MaxResults != 10 || cfg.ExploreDepth != 2 {
		t.Errorf("caps = %d/%d/%d, want 50/10/2", cfg.CandidateCap, cfg.MaxResults, cfg.ExploreDepth)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RECALL_DATA_DIR", "/tmp/recall-test")
	t.Setenv("RECALL_SESSION_IDLE_TTL", "30m")
	t.Setenv("RECALL_CANDIDATE_CAP", "25")
	t.Setenv("RECALL_MIN_SCORE", "0.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.DataDir != "/tmp/recall-test" {
		t.Errorf("data dir = %q, want override", cfg.DataDir)
	}
	if cfg.SessionIdleTTL != 30*time.Minute {
		t.Errorf("session idle TTL = %v, want 30m", cfg.SessionIdleTTL)
	}
	if cfg.CandidateCap != 25 {
		t.Errorf("candidate cap = %d, want 25", cfg.CandidateCap)
	}
	if cfg.MinScore != 0.5 {
		t.Errorf("min score = %v, want 0.5", cfg.MinScore)
	}
}

func TestLoad_MalformedValuesFail(t *testing.T) {
	cases := []struct {
		key, val string
	}{
		{"RECALL_SESSION_IDLE_TTL", "soon"},
		{"RECALL_SESSION_IDLE_TTL", "-1h"},
		{"RECALL_CANDIDATE_CAP", "many"},
		{"RECALL_CANDIDATE_CAP", "0"},
		{"RECALL_MIN_SCORE", "1.5"},
		{"RECALL_MIN_SCORE", "abc"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.val, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			if err == nil {
				t.Fatalf("Load should reject %s=%q", tc.key, tc.val)
			}
			if !strings.Contains(err.Error(), tc.key) {
				t.Errorf("error should name the variable, got: %v", err)
			}
		})
	}
}
