package config

import (
	"os"
	"path/filepath"

	"github.com/b/mpv-grid/pkg/paths"
)

type Config struct {
	Grid    Grid    `yaml:"grid"`
	Player  Player  `yaml:"player"`
	Source  string  `yaml:"source"`
	Skipper Skipper `yaml:"skipper"`
	Stats   Stats   `yaml:"stats"`
	Display Display `yaml:"display"`
}

type Grid struct {
	Rows int `yaml:"rows"` // default: 3
	Cols int `yaml:"cols"` // default: 3
}

type Player struct {
	Executable    string   `yaml:"executable"`     // default: mpv
	Volume        int      `yaml:"volume"`         // default: 30
	ImageDuration float64  `yaml:"image_duration"` // seconds per still image (default: 5)
	SeekSeconds   int      `yaml:"seek_seconds"`   // wheel seek step (default: 30)
	ScreenshotDir string   `yaml:"screenshot_dir"`
	ExtraArgs     []string `yaml:"extra_args"`
	CaptureOutput bool     `yaml:"capture_output"` // log player stdout/stderr through a pty
}

type Skipper struct {
	Enabled *bool   `yaml:"enabled"` // default: true
	Percent float64 `yaml:"percent"` // fraction of the file skipped on start (default: 0.33)
}

type Stats struct {
	Disabled  bool   `yaml:"disabled"`
	EventFile string `yaml:"event_file"` // JSON lines; default: state dir stats.jsonl
	MQTT      MQTT   `yaml:"mqtt"`
}

type MQTT struct {
	Broker   string `yaml:"broker"` // e.g. tcp://localhost:1883; empty disables
	Topic    string `yaml:"topic"`  // default: mpv-grid
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type Display struct {
	Width       int  `yaml:"width"`        // wall window width (default: 1600)
	Height      int  `yaml:"height"`       // wall window height (default: 900)
	PanelHeight int  `yaml:"panel_height"` // status strip height (default: 28)
	DisableX11  bool `yaml:"disable_x11"`
}

// SkipperEnabled reports whether the in-player skipper script should auto-seek.
func (c *Config) SkipperEnabled() bool {
	return c.Skipper.Enabled == nil || *c.Skipper.Enabled
}

func DefaultConfigPath() string {
	return paths.ConfigPath()
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func defaultScreenshotDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return filepath.Join(home, "Pictures", "mpv-grid")
}
