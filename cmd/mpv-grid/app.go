package main

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/b/mpv-grid/pkg/config"
	"github.com/b/mpv-grid/pkg/daemon"
	"github.com/b/mpv-grid/pkg/grid"
	"github.com/b/mpv-grid/pkg/wall"
)

type ctlRequest struct {
	cmd   daemon.CommandPayload
	reply chan daemon.ResultPayload
}

// app owns the wall. Everything that touches it runs on one control thread:
// the bubbletea update loop or the headless select loop.
type app struct {
	wall    *wall.Wall
	cfg     *config.Config
	cfgPath string
	logger  *log.Logger
	server  *daemon.Server
	files   []string

	requests chan ctlRequest
	reload   chan struct{}
	exited   chan struct{}

	status   atomic.Pointer[daemon.StatusPayload]
	lastNote string
}

func newApp(cfg *config.Config, cfgPath string, logger *log.Logger) *app {
	return &app{
		cfg:      cfg,
		cfgPath:  cfgPath,
		logger:   logger,
		requests: make(chan ctlRequest),
		reload:   make(chan struct{}, 1),
		exited:   make(chan struct{}, 1),
	}
}

func (a *app) note(format string, args ...any) {
	a.lastNote = fmt.Sprintf(format, args...)
	a.logger.Info(a.lastNote)
}

// submit runs on a socket goroutine and waits for the control thread.
func (a *app) submit(cmd daemon.CommandPayload) daemon.ResultPayload {
	req := ctlRequest{cmd: cmd, reply: make(chan daemon.ResultPayload, 1)}
	timer := time.NewTimer(daemon.DefaultRequestTimeout)
	defer timer.Stop()
	select {
	case a.requests <- req:
	case <-timer.C:
		return daemon.ResultPayload{Error: "wall busy"}
	}
	select {
	case res := <-req.reply:
		return res
	case <-timer.C:
		return daemon.ResultPayload{Error: "wall did not answer"}
	}
}

func (a *app) notifyReload() {
	select {
	case a.reload <- struct{}{}:
	default:
	}
}

func (a *app) notifyExited() {
	select {
	case a.exited <- struct{}{}:
	default:
	}
}

func (a *app) lastStatus() *daemon.StatusPayload {
	return a.status.Load()
}

func (a *app) statusPayload() *daemon.StatusPayload {
	rows, cols := a.wall.Size()
	mode := a.wall.Mode().String()
	if !a.wall.Running() {
		mode = "stopped"
	}
	p := &daemon.StatusPayload{
		WallID: a.wall.ID(),
		Mode:   mode,
		Rows:   rows,
		Cols:   cols,
	}
	for _, s := range a.wall.Status() {
		p.Cells = append(p.Cells, daemon.CellStatus{
			Row:      s.Cell.Row,
			Col:      s.Cell.Col,
			Path:     s.Path,
			Pos:      s.Pos,
			Duration: s.Duration,
			Paused:   s.Paused,
			Muted:    s.Muted,
			Loop:     s.Loop,
			Alive:    s.Alive,
		})
	}
	return p
}

// applyPoll folds an off-thread poll into the wall and pushes it to watchers.
func (a *app) applyPoll(polled []wall.Status) {
	a.wall.Apply(polled)
	a.publish()
}

func (a *app) publish() {
	p := a.statusPayload()
	a.status.Store(p)
	if a.server != nil {
		a.server.BroadcastStatus(*p)
	}
}

// start builds a rows x cols wall from the scanned files, replacing a running one.
// A partial start is not an error: the cells that came up keep playing.
func (a *app) start(rows, cols int) (string, error) {
	err := a.wall.Start(rows, cols, a.files)
	a.publish()
	switch {
	case err != nil && !a.wall.Running():
		return "", err
	case err != nil:
		return fmt.Sprintf("partial start %dx%d: %v", rows, cols, err), nil
	}
	return fmt.Sprintf("started %dx%d", rows, cols), nil
}

func (a *app) reloadConfig() {
	cfg, err := config.LoadConfig(a.cfgPath)
	if err == nil {
		err = config.Validate(cfg)
	}
	if err != nil {
		a.note("config not reloaded: %v", err)
		return
	}
	if cfg.Player.Volume != a.cfg.Player.Volume {
		a.note("config reloaded: volume %d", a.wall.SetVolumeAll(cfg.Player.Volume))
	} else {
		a.note("config reloaded")
	}
	a.cfg = cfg
}

// parseVolume accepts an absolute level or a +N/-N step from the current one.
func parseVolume(value string, current int) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid volume %q", value)
	}
	if strings.HasPrefix(value, "+") || strings.HasPrefix(value, "-") {
		return current + v, nil
	}
	return v, nil
}

func (a *app) handle(cmd daemon.CommandPayload) (res daemon.ResultPayload) {
	defer func() {
		if r := recover(); r != nil {
			logCrash("command "+cmd.Action, r)
			res = daemon.ResultPayload{Error: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	cell := grid.Cell{Row: cmd.Row, Col: cmd.Col}
	var msg string
	var err error
	sent := func(what string, n int) string { return fmt.Sprintf("%s: %d player(s)", what, n) }

	switch cmd.Action {
	case daemon.ActFullscreen:
		err = a.wall.ToggleGlobal()
		msg = "mode " + a.wall.Mode().String()
	case daemon.ActExitFullscreen:
		err = a.wall.ExitFullscreen()
		msg = "mode " + a.wall.Mode().String()
	case daemon.ActTile:
		err = a.wall.ToggleTile(cell)
		msg = "mode " + a.wall.Mode().String()
	case daemon.ActReset:
		err = a.wall.Recover()
		msg = "layout reset"
	case daemon.ActNext:
		msg = sent("next", a.wall.NextAll())
	case daemon.ActPrev:
		msg = sent("prev", a.wall.PrevAll())
	case daemon.ActShuffle:
		msg = sent("shuffle", a.wall.ShuffleAll())
	case daemon.ActPause:
		msg = sent("pause", a.wall.TogglePauseAll())
	case daemon.ActMute:
		msg = sent("mute", a.wall.ToggleMuteAll())
	case daemon.ActVolume:
		var v int
		if v, err = parseVolume(cmd.Value, a.wall.Volume()); err == nil {
			msg = fmt.Sprintf("volume %d", a.wall.SetVolumeAll(v))
		}
	case daemon.ActSyncNext:
		msg = sent("sync next", a.wall.SyncNext())
	case daemon.ActSyncShuffle:
		msg = sent("sync shuffle", a.wall.SyncShuffle())
	case daemon.ActLoop:
		var on bool
		if on, err = a.wall.ToggleLoop(cell); err == nil {
			msg = fmt.Sprintf("loop %s: %v", cell, on)
		}
	case daemon.ActRename:
		var path string
		if path, err = a.wall.Rename(cell, cmd.Value); err == nil {
			msg = "renamed to " + path
		}
	case daemon.ActPopout:
		var path string
		if path, err = a.wall.Popout(cell); err == nil {
			msg = "popped out " + path
		}
	case daemon.ActStatus:
		return daemon.ResultPayload{OK: true, Status: a.statusPayload()}
	case daemon.ActStart:
		rows, cols := a.wall.Size()
		if rows < 1 || cols < 1 {
			rows, cols = a.cfg.Grid.Rows, a.cfg.Grid.Cols
		}
		if cmd.Value != "" {
			rows, cols, err = daemon.ParseGrid(cmd.Value)
		}
		if err == nil {
			msg, err = a.start(rows, cols)
		}
	case daemon.ActStop:
		err = a.wall.Stop()
		a.publish()
		msg = "stopped"
	default:
		err = fmt.Errorf("unknown action %q", cmd.Action)
	}

	if err != nil {
		a.note("%s failed: %v", cmd.Action, err)
		return daemon.ResultPayload{Error: err.Error()}
	}
	a.note("%s", msg)
	return daemon.ResultPayload{OK: true, Message: msg}
}

// allExited handles the liveness monitor's report that no player is left. The wall
// is stopped and stays available for a restart.
func (a *app) allExited() {
	if err := a.wall.Stop(); err != nil {
		a.logger.Warn("stop after exit", "err", err)
	}
	a.publish()
	a.note("all players exited, stopped")
}
