package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestEnvOr(t *testing.T) {
	t.Setenv("REFLEXIAD_TEST_KEY", "set")
	if got := envOr("REFLEXIAD_TEST_KEY", "def"); got != "set" {
		t.Fatalf("expected env value, got %q", got)
	}
	if got := envOr("REFLEXIAD_TEST_MISSING", "def"); got != "def" {
		t.Fatalf("expected default, got %q", got)
	}
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	if lvl := newLogger("bogus").GetLevel(); lvl != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %s", lvl)
	}
	if lvl := newLogger("debug").GetLevel(); lvl != zerolog.DebugLevel {
		t.Fatalf("expected debug, got %s", lvl)
	}
}

func TestLoadConfigFlagOverridesFile(t *testing.T) {
	d := t.TempDir()
	p := filepath.Join(d, "cfg.yaml")
	if err := os.WriteFile(p, []byte("addr: :5000\nbackend:\n  url: http://file\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cmd := newRootCmd()
	if err := cmd.Flags().Set("config", p); err != nil {
		t.Fatalf("set config: %v", err)
	}
	if err := cmd.Flags().Set("addr", ":6000"); err != nil {
		t.Fatalf("set addr: %v", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Addr != ":6000" {
		t.Fatalf("flag should override file, got %q", cfg.Addr)
	}
	if cfg.Backend.URL != "http://file" {
		t.Fatalf("file value lost, got %q", cfg.Backend.URL)
	}
	if cfg.Memory.SoftPct != 80 {
		t.Fatalf("defaults not applied: %+v", cfg.Memory)
	}
}
