// Package supervisor launches and tears down the wall's player processes.
package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/b/mpv-grid/pkg/grid"
	"github.com/b/mpv-grid/pkg/paths"
)

// Options configure every player of one wall.
type Options struct {
	Executable    string
	WallID        string
	RuntimeDir    string
	Volume        int
	ImageDuration float64
	ScreenshotDir string
	ExtraArgs     []string
	CaptureOutput bool
	Logger        *log.Logger

	// Environ is the base environment for players; nil means os.Environ().
	Environ []string
}

// LaunchSpec is one cell to start.
type LaunchSpec struct {
	Cell     grid.Cell
	Playlist []string
	Surface  uint32
}

// Supervisor spawns players with the shared runtime assets.
type Supervisor struct {
	opts   Options
	assets *Assets
	logger *log.Logger
}

// New prepares the runtime dir. Assets must already be written into it.
func New(opts Options, assets *Assets) (*Supervisor, error) {
	if opts.WallID == "" {
		return nil, errors.New("supervisor: wall id required")
	}
	if opts.Executable == "" {
		opts.Executable = "mpv"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.RuntimeDir == "" {
		return nil, errors.New("supervisor: runtime dir required")
	}
	if err := os.MkdirAll(opts.RuntimeDir, 0755); err != nil {
		return nil, fmt.Errorf("create runtime dir: %w", err)
	}
	return &Supervisor{opts: opts, assets: assets, logger: opts.Logger}, nil
}

func (s *Supervisor) Assets() *Assets {
	return s.assets
}

// BaseArgs are the options every embedded cell starts with.
func (s *Supervisor) BaseArgs() []string {
	args := []string{
		"--no-config",
		"--no-shuffle",
		fmt.Sprintf("--volume=%d", s.opts.Volume),
		"--keep-open=yes",
		"--loop-file=no",
		"--screenshot-directory=" + s.opts.ScreenshotDir,
		"--idle=yes",
		"--force-window=yes",
		"--focus-on=never",
		fmt.Sprintf("--image-display-duration=%g", s.opts.ImageDuration),
		"--no-border",
		"--no-window-dragging",
	}
	args = append(args, s.opts.ExtraArgs...)
	return args
}

func (s *Supervisor) assetArgs() []string {
	if s.assets == nil {
		return nil
	}
	args := []string{"--input-conf=" + s.assets.InputConf}
	for _, script := range s.assets.Scripts {
		args = append(args, "--script="+script)
	}
	return args
}

// BuildArgs returns the full player argument list for one cell.
func (s *Supervisor) BuildArgs(spec LaunchSpec, socket, playlistFile string) []string {
	args := append(s.BaseArgs(), s.assetArgs()...)
	if s.wayland() {
		// --wid embedding needs XWayland
		args = append(args, "--gpu-context=x11egl", "--x11-name=mpv-grid-cell")
	}
	args = append(args, "--input-ipc-server="+socket)
	if spec.Surface != 0 {
		args = append(args, fmt.Sprintf("--wid=%d", spec.Surface))
	}
	return append(args, "--playlist="+playlistFile)
}

func (s *Supervisor) environ() []string {
	if s.opts.Environ != nil {
		return s.opts.Environ
	}
	return os.Environ()
}

func (s *Supervisor) wayland() bool {
	return lookupEnv(s.environ(), "WAYLAND_DISPLAY") != ""
}

// Env is the player environment: the helper dir first on PATH, and the glob that scopes
// broadcasts to this wall.
func (s *Supervisor) Env() []string {
	base := s.environ()
	env := make([]string, 0, len(base)+2)
	for _, kv := range base {
		if strings.HasPrefix(kv, "PATH=") || strings.HasPrefix(kv, paths.SocketGlobEnv+"=") {
			continue
		}
		env = append(env, kv)
	}
	path := lookupEnv(base, "PATH")
	if s.assets != nil {
		if path == "" {
			path = s.assets.BinDir
		} else {
			path = s.assets.BinDir + string(os.PathListSeparator) + path
		}
	}
	env = append(env, "PATH="+path)
	return append(env, paths.SocketGlobEnv+"="+paths.SocketGlob(s.opts.WallID))
}

func lookupEnv(env []string, key string) string {
	prefix := key + "="
	for i := len(env) - 1; i >= 0; i-- {
		if strings.HasPrefix(env[i], prefix) {
			return env[i][len(prefix):]
		}
	}
	return ""
}

// WritePlaylist writes an m3u with one path per line.
func WritePlaylist(path string, files []string) error {
	var b strings.Builder
	for _, f := range files {
		b.WriteString(f)
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// Spawn starts the player for one cell. Launch failures are returned as is, without
// retry.
func (s *Supervisor) Spawn(spec LaunchSpec) (*Process, error) {
	socket := paths.SocketPath(s.opts.WallID, spec.Cell.Row, spec.Cell.Col)
	if err := os.Remove(socket); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale socket %s: %w", socket, err)
	}

	playlistFile := filepath.Join(s.opts.RuntimeDir, fmt.Sprintf("cell-%d-%d.m3u", spec.Cell.Row, spec.Cell.Col))
	if err := WritePlaylist(playlistFile, spec.Playlist); err != nil {
		return nil, fmt.Errorf("write playlist: %w", err)
	}

	cmd := exec.Command(s.opts.Executable, s.BuildArgs(spec, socket, playlistFile)...)
	cmd.Env = s.Env()

	p := &Process{
		cell:         spec.Cell,
		socket:       socket,
		playlistFile: playlistFile,
		cmd:          cmd,
		done:         make(chan struct{}),
		logger:       s.logger,
	}
	var err error
	if s.opts.CaptureOutput {
		err = p.startCaptured()
	} else {
		err = p.start()
	}
	if err != nil {
		os.Remove(playlistFile)
		return nil, fmt.Errorf("launch %s for cell %s: %w", s.opts.Executable, spec.Cell, err)
	}
	s.logger.Info("player started", "cell", spec.Cell, "pid", p.PID(), "socket", socket, "files", len(spec.Playlist))
	return p, nil
}

// LaunchDetached starts a standalone fullscreen player on one file and forgets it.
func (s *Supervisor) LaunchDetached(file string) error {
	args := []string{"--no-config"}
	args = append(args, s.assetArgs()...)
	args = append(args, "--fullscreen", "--keep-open=yes", fmt.Sprintf("--volume=%d", s.opts.Volume), file)

	cmd := exec.Command(s.opts.Executable, args...)
	cmd.Env = s.Env()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch pop-out: %w", err)
	}
	go cmd.Wait()
	s.logger.Info("pop-out started", "file", filepath.Base(file), "pid", cmd.Process.Pid)
	return nil
}

// Cleanup removes the runtime dir with its playlists and assets.
func (s *Supervisor) Cleanup() error {
	return os.RemoveAll(s.opts.RuntimeDir)
}
