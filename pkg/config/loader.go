package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/b/mpv-grid/pkg/paths"
)

var (
	ErrInvalidGrid = errors.New("grid must have at least one row and one column")
)

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads path, returning defaults when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// SaveConfig writes the config to the specified path
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate rejects values no wall can be built from.
func Validate(cfg *Config) error {
	if cfg.Grid.Rows < 1 || cfg.Grid.Cols < 1 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidGrid, cfg.Grid.Rows, cfg.Grid.Cols)
	}
	if cfg.Skipper.Percent < 0 || cfg.Skipper.Percent >= 1 {
		return fmt.Errorf("skipper percent %.2f out of range [0,1)", cfg.Skipper.Percent)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Grid.Rows == 0 {
		cfg.Grid.Rows = 3
	}
	if cfg.Grid.Cols == 0 {
		cfg.Grid.Cols = 3
	}
	if cfg.Player.Executable == "" {
		cfg.Player.Executable = "mpv"
	}
	if cfg.Player.Volume == 0 {
		cfg.Player.Volume = 30
	}
	if cfg.Player.ImageDuration == 0 {
		cfg.Player.ImageDuration = 5
	}
	if cfg.Player.SeekSeconds == 0 {
		cfg.Player.SeekSeconds = 30
	}
	if cfg.Player.ScreenshotDir == "" {
		cfg.Player.ScreenshotDir = defaultScreenshotDir()
	}
	if cfg.Skipper.Percent == 0 {
		cfg.Skipper.Percent = 0.33
	}
	if cfg.Stats.EventFile == "" {
		cfg.Stats.EventFile = paths.StatePath("stats.jsonl")
	}
	if cfg.Stats.MQTT.Topic == "" {
		cfg.Stats.MQTT.Topic = "mpv-grid"
	}
	if cfg.Display.Width == 0 {
		cfg.Display.Width = 1600
	}
	if cfg.Display.Height == 0 {
		cfg.Display.Height = 900
	}
	if cfg.Display.PanelHeight == 0 {
		cfg.Display.PanelHeight = 28
	}
}
