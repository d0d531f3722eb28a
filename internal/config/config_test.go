package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
backend:
  base_url: https://attend.example.edu
feed:
  reconnect_delay: 5s
  reconnect_jitter: 500ms
dashboard:
  dedupe: true
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ConfigPath != path {
		t.Fatalf("expected config path %s, got %s", path, cfg.ConfigPath)
	}
	if cfg.Backend.BaseURL != "https://attend.example.edu" {
		t.Fatalf("unexpected base url %q", cfg.Backend.BaseURL)
	}
	if cfg.Feed.ReconnectDelay != 5*time.Second || cfg.Feed.ReconnectJitter != 500*time.Millisecond {
		t.Fatalf("unexpected reconnect settings %v/%v", cfg.Feed.ReconnectDelay, cfg.Feed.ReconnectJitter)
	}
	if !cfg.Dashboard.Dedupe {
		t.Fatal("expected dedupe to be enabled")
	}
	// untouched sections keep their defaults
	if cfg.Server.Port != 8090 {
		t.Fatalf("expected default port, got %d", cfg.Server.Port)
	}
	if cfg.Dashboard.NoticeTTL != 3*time.Second {
		t.Fatalf("expected default notice ttl, got %v", cfg.Dashboard.NoticeTTL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadOrDefaultFallsBackOnlyWhenMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	cfg, fellBack, err := LoadOrDefault(missing)
	if err != nil || !fellBack {
		t.Fatalf("expected defaults for a missing file, got fellBack=%v err=%v", fellBack, err)
	}
	if cfg.Feed.ReconnectDelay != Default().Feed.ReconnectDelay || cfg.ConfigPath != missing {
		t.Fatalf("unexpected fallback config %+v", cfg)
	}

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("feed: [not, a, map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadOrDefault(bad); err == nil {
		t.Fatal("expected a parse error instead of silent defaults")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("feed:\n  reconnect_delay: -1s\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadOrDefault(invalid); err == nil {
		t.Fatal("expected a validation error instead of silent defaults")
	}
}

func TestLoadOrDefaultValidatesEnvOverrides(t *testing.T) {
	for _, v := range []string{"0s", "-2s"} {
		t.Setenv("ATTEND_RECONNECT_DELAY", v)
		_, fellBack, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
		if err == nil {
			t.Fatalf("ATTEND_RECONNECT_DELAY=%s: expected validation error", v)
		}
		if !fellBack {
			t.Fatalf("ATTEND_RECONNECT_DELAY=%s: expected the fallback path", v)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("ATTEND_BACKEND_URL", "http://10.0.0.5:9000")
	t.Setenv("ATTEND_PORT", "9999")
	t.Setenv("ATTEND_RECONNECT_DELAY", "750ms")

	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if cfg.Backend.BaseURL != "http://10.0.0.5:9000" {
		t.Fatalf("unexpected base url %q", cfg.Backend.BaseURL)
	}
	if cfg.Server.Port != 9999 {
		t.Fatalf("unexpected port %d", cfg.Server.Port)
	}
	if cfg.Feed.ReconnectDelay != 750*time.Millisecond {
		t.Fatalf("unexpected delay %v", cfg.Feed.ReconnectDelay)
	}
}

func TestApplyEnvRejectsBadPort(t *testing.T) {
	t.Setenv("ATTEND_PORT", "eighty")
	if err := Default().ApplyEnv(); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}

func TestFeedURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		base     string
		override string
		want     string
	}{
		{base: "http://localhost:8000", want: "ws://localhost:8000/ws/attendance"},
		{base: "https://attend.example.edu/", want: "wss://attend.example.edu/ws/attendance"},
		{base: "https://attend.example.edu/campus", want: "wss://attend.example.edu/campus/ws/attendance"},
		{base: "http://localhost:8000", override: "ws://feed:1/x", want: "ws://feed:1/x"},
	}

	for _, tc := range cases {
		cfg := Default()
		cfg.Backend.BaseURL = tc.base
		cfg.Feed.URL = tc.override
		got, err := cfg.FeedURL()
		if err != nil {
			t.Fatalf("FeedURL(%s) failed: %v", tc.base, err)
		}
		if got != tc.want {
			t.Fatalf("FeedURL(%s): expected %s, got %s", tc.base, tc.want, got)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Backend.BaseURL = "ftp://example"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected scheme error")
	}

	cfg = Default()
	cfg.Feed.ReconnectDelay = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected reconnect delay error")
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Feed.ReconnectJitter = time.Second
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Feed.ReconnectJitter != time.Second {
		t.Fatalf("expected jitter to survive save, got %v", loaded.Feed.ReconnectJitter)
	}
}
