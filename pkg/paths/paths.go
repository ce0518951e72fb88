// Package paths provides centralized path resolution for mpv-grid's config, state and runtime files.
//
// Layout (XDG-style):
//
//	Config:  ~/.config/mpv-grid/config.yaml   (override: MPV_GRID_CONFIG_DIR)
//	State:   ~/.local/state/mpv-grid/         (override: MPV_GRID_STATE_DIR)
//	Runtime: /tmp/mpv-grid-<wall>-*           (sockets, logs, control socket)
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SocketGlobEnv carries the wall-scoped socket glob into every player's environment.
const SocketGlobEnv = "MPV_GRID_SOCKET_GLOB"

var (
	configDirOnce   sync.Once
	configDirCached string

	stateDirOnce   sync.Once
	stateDirCached string

	// runtimeDir is where sockets and logs live. Tests point it elsewhere.
	runtimeDir = "/tmp"
)

// ConfigDir resolves the config directory.
// Priority: MPV_GRID_CONFIG_DIR env > ~/.config/mpv-grid/
func ConfigDir() string {
	configDirOnce.Do(func() {
		if env := os.Getenv("MPV_GRID_CONFIG_DIR"); env != "" {
			configDirCached = env
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				configDirCached = "."
			} else {
				configDirCached = filepath.Join(home, ".config", "mpv-grid")
			}
		}
	})
	return configDirCached
}

// StateDir resolves the state directory.
// Priority: MPV_GRID_STATE_DIR env > ~/.local/state/mpv-grid/
func StateDir() string {
	stateDirOnce.Do(func() {
		if env := os.Getenv("MPV_GRID_STATE_DIR"); env != "" {
			stateDirCached = env
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				stateDirCached = "."
			} else {
				stateDirCached = filepath.Join(home, ".local", "state", "mpv-grid")
			}
		}
	})
	return stateDirCached
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// StatePath returns the full path to a state file (e.g. "stats.jsonl").
func StatePath(filename string) string {
	return filepath.Join(StateDir(), filename)
}

// EnsureStateDir creates the state directory if it doesn't exist and returns its path.
func EnsureStateDir() (string, error) {
	dir := StateDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create state dir %s: %w", dir, err)
	}
	return dir, nil
}

// NewWallID identifies one run of the wall: process id plus start time.
func NewWallID() string {
	return fmt.Sprintf("%d-%d", os.Getpid(), time.Now().Unix())
}

// SocketPath is the IPC socket of one cell of one wall run.
func SocketPath(wallID string, row, col int) string {
	return filepath.Join(runtimeDir, fmt.Sprintf("mpv-grid-%s-%d-%d.sock", wallID, row, col))
}

// SocketGlob matches every cell socket of one wall run and nothing else.
func SocketGlob(wallID string) string {
	return filepath.Join(runtimeDir, fmt.Sprintf("mpv-grid-%s-*.sock", wallID))
}

// DefaultSocketGlob matches the sockets of every wall on this host.
func DefaultSocketGlob() string {
	return filepath.Join(runtimeDir, "mpv-grid-*.sock")
}

// ControlSocket is the wall's own command socket. The suffix keeps it out of SocketGlob.
func ControlSocket(wallID string) string {
	return filepath.Join(runtimeDir, fmt.Sprintf("mpv-grid-%s.ctl", wallID))
}

// ControlSocketGlob matches the control socket of every running wall.
func ControlSocketGlob() string {
	return filepath.Join(runtimeDir, "mpv-grid-*.ctl")
}

// WallDir holds one wall run's playlists and player assets.
func WallDir(wallID string) string {
	return filepath.Join(runtimeDir, fmt.Sprintf("mpv-grid-%s.d", wallID))
}

// LogPath returns /tmp/mpv-grid-<wall>-<kind>.log.
func LogPath(wallID, kind string) string {
	return filepath.Join(runtimeDir, fmt.Sprintf("mpv-grid-%s-%s.log", wallID, kind))
}

// ResetForTest clears cached values so tests can re-run resolution logic.
// Only use in tests.
func ResetForTest() {
	configDirOnce = sync.Once{}
	configDirCached = ""
	stateDirOnce = sync.Once{}
	stateDirCached = ""
}

// SetRuntimeDirForTest moves sockets and logs under dir and returns a restore func.
// Only use in tests.
func SetRuntimeDirForTest(dir string) func() {
	prev := runtimeDir
	runtimeDir = dir
	return func() { runtimeDir = prev }
}
