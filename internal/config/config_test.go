package config

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{
		"LUNA_BIND_ADDR", "LUNA_PORT_CANDIDATES", "LUNA_DATA_DIR", "LUNA_JOURNAL_DIR",
		"LUNA_TIME_FORMAT", "LUNA_WS_RATE", "CHROMIUM_CDP_PORT", "LUNA_LAUNCH_BROWSER",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != "127.0.0.1:8290" {
		t.Fatalf("BindAddr = %q; want 127.0.0.1:8290", cfg.BindAddr)
	}
	if len(cfg.PortCandidates) != 3 {
		t.Fatalf("PortCandidates = %v; want 3 entries", cfg.PortCandidates)
	}
	if cfg.JournalDir != filepath.Join("./luna_data", "journal") {
		t.Fatalf("JournalDir = %q", cfg.JournalDir)
	}
	if cfg.PackageDir() != filepath.Join("./luna_data", "packages") {
		t.Fatalf("PackageDir() = %q", cfg.PackageDir())
	}
	if cfg.CDPURL() != "http://127.0.0.1:9230" {
		t.Fatalf("CDPURL() = %q", cfg.CDPURL())
	}
	if cfg.LaunchBrowser || cfg.Use24Hour() {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LUNA_DATA_DIR", "/var/lib/luna")
	t.Setenv("LUNA_PORT_CANDIDATES", " 127.0.0.1:9001 ,,127.0.0.1:9002")
	t.Setenv("LUNA_TIME_FORMAT", "hh24")
	t.Setenv("LUNA_WS_RATE", "2.5")
	t.Setenv("LUNA_WS_BURST", "0")
	t.Setenv("LUNA_LOG_LEVEL", "DEBUG")
	t.Setenv("CHROMIUM_CDP_PORT", "not-a-port")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if want := []string{"127.0.0.1:9001", "127.0.0.1:9002"}; !reflect.DeepEqual(cfg.PortCandidates, want) {
		t.Fatalf("PortCandidates = %v; want %v", cfg.PortCandidates, want)
	}
	if cfg.JournalDir != "/var/lib/luna/journal" || cfg.ProfileDir != "/var/lib/luna/browser" {
		t.Fatalf("derived dirs = %q, %q", cfg.JournalDir, cfg.ProfileDir)
	}
	if !cfg.Use24Hour() || cfg.WSRate != 2.5 || cfg.WSBurst != 1 || cfg.LogLevel != "debug" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.CDPPort != 9230 {
		t.Fatalf("CDPPort = %d; want default on bad value", cfg.CDPPort)
	}
}

func TestLoadRejectsTimeFormat(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LUNA_TIME_FORMAT", "HH36")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil; want time format error")
	}
}
