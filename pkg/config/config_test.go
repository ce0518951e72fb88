package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("MPV_GRID_STATE_DIR", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("grid:\n  rows: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Grid.Rows != 2 || cfg.Grid.Cols != 3 {
		t.Errorf("grid = %dx%d, want 2x3", cfg.Grid.Rows, cfg.Grid.Cols)
	}
	if cfg.Player.Volume != 30 {
		t.Errorf("Player.Volume = %d, want 30", cfg.Player.Volume)
	}
	if cfg.Player.Executable != "mpv" {
		t.Errorf("Player.Executable = %q, want mpv", cfg.Player.Executable)
	}
	if !cfg.SkipperEnabled() {
		t.Error("SkipperEnabled() = false, want true by default")
	}
	if cfg.Skipper.Percent != 0.33 {
		t.Errorf("Skipper.Percent = %v, want 0.33", cfg.Skipper.Percent)
	}
}

func TestLoadConfig_SkipperDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("skipper:\n  enabled: false\n"), 0644)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.SkipperEnabled() {
		t.Error("SkipperEnabled() = true, want false")
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("grid: [unterminated"), 0644)
	neg := filepath.Join(dir, "neg.yaml")
	os.WriteFile(neg, []byte("grid:\n  rows: -1\n"), 0644)

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadConfig(missing) should fail")
	}
	if _, err := LoadConfig(bad); err == nil {
		t.Error("LoadConfig(bad yaml) should fail")
	}
	if _, err := LoadConfig(neg); !errors.Is(err, ErrInvalidGrid) {
		t.Errorf("LoadConfig(neg rows) error = %v, want ErrInvalidGrid", err)
	}
}

func TestLoadOrDefault_Missing(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}
	if cfg.Grid.Rows != 3 || cfg.Grid.Cols != 3 {
		t.Errorf("grid = %dx%d, want 3x3", cfg.Grid.Rows, cfg.Grid.Cols)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := Default()
	cfg.Grid.Rows = 4
	cfg.Stats.MQTT.Broker = "tcp://localhost:1883"

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if got.Grid.Rows != 4 || got.Stats.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("reloaded config = %+v", got)
	}
}

func TestWatch_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("grid:\n  rows: 1\n"), 0644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan struct{}, 8)
	if err := Watch(ctx, path, func() { changed <- struct{}{} }); err != nil {
		t.Fatalf("Watch() error: %v", err)
	}

	os.WriteFile(path, []byte("grid:\n  rows: 2\n"), 0644)
	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("Watch() did not report the write")
	}
}
