// Package wall is the control-thread owner of a running grid: it spawns the players,
// drives the fullscreen machine, propagates renames and turns polled state into stats.
package wall

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"

	"github.com/b/mpv-grid/pkg/attempt"
	"github.com/b/mpv-grid/pkg/broadcast"
	"github.com/b/mpv-grid/pkg/fullscreen"
	"github.com/b/mpv-grid/pkg/grid"
	"github.com/b/mpv-grid/pkg/layout"
	"github.com/b/mpv-grid/pkg/mpvipc"
	"github.com/b/mpv-grid/pkg/paths"
	"github.com/b/mpv-grid/pkg/rename"
	"github.com/b/mpv-grid/pkg/stats"
	"github.com/b/mpv-grid/pkg/supervisor"
)

var (
	ErrNotRunning  = errors.New("wall is not running")
	ErrUnknownCell = errors.New("no player in cell")
	ErrNoFiles     = errors.New("no files to play")
	ErrNotLocal    = errors.New("current item is not a local file")
)

// MaxVolume is mpv's default --volume-max.
const MaxVolume = 130

// Spawner starts one cell's player and can launch untracked pop-out players.
type Spawner interface {
	Spawn(spec supervisor.LaunchSpec) (*grid.Entry, error)
	LaunchDetached(file string) error
}

// Options wire a Wall to its collaborators. Host and Spawner are required.
type Options struct {
	WallID  string
	Host    layout.Host
	Spawner Spawner
	Sink    stats.Sink
	Logger  *log.Logger
	Volume  int

	// Grace is how long a player gets between SIGTERM and SIGKILL.
	Grace time.Duration
	// OnAllExited fires from the liveness monitor's goroutine.
	OnAllExited func()
	// Shuffle reorders one cell's playlist; nil means a uniform random shuffle.
	Shuffle func([]string)
}

// Wall is not safe for concurrent use: every method except Poll runs on the control
// thread.
type Wall struct {
	id      string
	host    layout.Host
	spawner Spawner
	sink    stats.Sink
	logger  *log.Logger
	grace   time.Duration
	shuffle func([]string)
	bus     *broadcast.Bus

	reg      *grid.Registry
	machine  *fullscreen.Machine
	renamer  *rename.Propagator
	sessions *stats.Sessions
	monitor  *supervisor.Monitor

	rows, cols int
	running    bool
	volume     int
	status     []Status
	now        func() time.Time
}

func New(opts Options) *Wall {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Sink == nil {
		opts.Sink = stats.Discard{}
	}
	if opts.Grace <= 0 {
		opts.Grace = supervisor.DefaultGrace
	}
	if opts.Shuffle == nil {
		opts.Shuffle = func(s []string) {
			rand.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
		}
	}
	w := &Wall{
		id:       opts.WallID,
		host:     opts.Host,
		spawner:  opts.Spawner,
		sink:     opts.Sink,
		logger:   opts.Logger,
		grace:    opts.Grace,
		shuffle:  opts.Shuffle,
		bus:      &broadcast.Bus{Logger: opts.Logger},
		reg:      grid.NewRegistry(),
		sessions: stats.NewSessions(opts.Sink),
		monitor:  supervisor.NewMonitor(opts.OnAllExited),
		volume:   opts.Volume,
		now:      time.Now,
	}
	w.machine = fullscreen.NewMachine(&env{w: w}, opts.Logger)
	w.machine.OnTransition = func(t fullscreen.Transition) {
		w.sink.Emit(stats.Fullscreen{Time: t.Time, Entering: t.Entering, Mode: t.Kind, Cell: t.Cell})
	}
	w.renamer = rename.NewPropagator(w.reg, opts.Logger)
	w.renamer.OnRename = func(oldPath, newPath string) {
		w.sink.Emit(stats.Rename{Time: w.now(), Old: oldPath, New: newPath})
	}
	return w
}

func (w *Wall) ID() string                   { return w.id }
func (w *Wall) Running() bool                { return w.running }
func (w *Wall) Size() (rows, cols int)       { return w.rows, w.cols }
func (w *Wall) Mode() fullscreen.Mode        { return w.machine.Mode() }
func (w *Wall) Monitor() *supervisor.Monitor { return w.monitor }
func (w *Wall) Volume() int                  { return w.volume }

// Cells lists the registered cells, row-major.
func (w *Wall) Cells() []grid.Cell {
	return w.reg.Cells()
}

// Start builds a rows x cols grid and gives every cell its own shuffled copy of files.
// A running wall is stopped first. The first spawn failure ends startup; the cells
// started before it keep playing.
func (w *Wall) Start(rows, cols int, files []string) error {
	if rows < 1 || cols < 1 {
		return fmt.Errorf("invalid grid %dx%d", rows, cols)
	}
	if len(files) == 0 {
		return ErrNoFiles
	}
	if w.running {
		if err := w.Stop(); err != nil {
			w.logger.Warn("stop before restart incomplete", "err", err)
		}
	}

	surfaces, err := w.host.Build(rows, cols)
	if err != nil {
		return fmt.Errorf("build grid: %w", err)
	}
	w.machine.Reset()
	w.monitor.Clear()
	w.rows, w.cols = rows, cols
	w.status = nil

	for _, c := range grid.Cells(rows, cols) {
		playlist := append([]string(nil), files...)
		w.shuffle(playlist)
		e, err := w.spawner.Spawn(supervisor.LaunchSpec{Cell: c, Playlist: playlist, Surface: uint32(surfaces[c])})
		if err != nil {
			w.running = w.reg.Len() > 0
			w.logger.Error("spawn failed", "cell", c, "err", err)
			return fmt.Errorf("start cell %s: %w", c, err)
		}
		if err := w.reg.Add(e); err != nil {
			e.Proc.Terminate(w.grace)
			w.running = w.reg.Len() > 0
			return err
		}
		w.monitor.Track(e.Proc)
	}
	w.running = true
	w.logger.Info("wall started", "wall", w.id, "rows", rows, "cols", cols, "files", len(files))
	w.host.SetStatus(w.summary())
	return nil
}

// Stop resets the layout, terminates every player and ends their sessions. Failures
// are collected; the wall is stopped regardless.
func (w *Wall) Stop() error {
	if !w.running && w.reg.Len() == 0 {
		return nil
	}
	w.monitor.Clear()
	batch := attempt.New("wall-stop", w.logger)
	if w.machine.Mode() != fullscreen.Normal {
		batch.Do("layout", w.machine.Recover)
	}
	for _, e := range w.reg.Entries() {
		batch.Do("terminate "+e.Cell.String(), func() error { return e.Proc.Terminate(w.grace) })
	}
	w.reg.Clear()
	w.machine.Reset()
	w.sessions.CloseAll()
	w.status = nil
	w.running = false
	w.logger.Info("wall stopped", "wall", w.id, "failed", batch.Failed())
	w.host.SetStatus(w.summary())
	return batch.Err()
}

func (w *Wall) summary() string {
	if !w.running {
		return "stopped"
	}
	return fmt.Sprintf("%dx%d  %s  vol %d", w.rows, w.cols, w.machine.Mode(), w.volume)
}

func (w *Wall) entry(c grid.Cell) (*grid.Entry, error) {
	if !w.running {
		return nil, ErrNotRunning
	}
	e, ok := w.reg.Get(c)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCell, c)
	}
	return e, nil
}

// each sends one request per cell and returns how many players accepted it.
func (w *Wall) each(what string, fn func(e *grid.Entry) mpvipc.Result) int {
	ok := 0
	for _, e := range w.reg.Entries() {
		if res := fn(e); !res.OK() {
			w.logger.Debug(what+" failed", "cell", e.Cell, "err", res.Err)
			continue
		}
		ok++
	}
	w.logger.Info(what, "cells", ok)
	return ok
}

func (w *Wall) skip(e *grid.Entry, how string) {
	from := -1.0
	if st, ok := w.statusOf(e.Cell); ok {
		from = st.Pos
	}
	w.sink.Emit(stats.Skip{Time: w.now(), Cell: e.Cell, File: e.LastPath, From: from, How: how})
}

func (w *Wall) NextAll() int {
	return w.each("next", func(e *grid.Entry) mpvipc.Result {
		res := e.Player.PlaylistNext(false)
		if res.OK() {
			w.skip(e, stats.SkipNext)
		}
		return res
	})
}

func (w *Wall) PrevAll() int {
	return w.each("prev", func(e *grid.Entry) mpvipc.Result {
		res := e.Player.PlaylistPrev()
		if res.OK() {
			w.skip(e, stats.SkipPrev)
		}
		return res
	})
}

func (w *Wall) ShuffleAll() int {
	return w.each("shuffle", func(e *grid.Entry) mpvipc.Result { return e.Player.PlaylistShuffle() })
}

func (w *Wall) TogglePauseAll() int {
	return w.each("pause", func(e *grid.Entry) mpvipc.Result { return e.Player.Cycle("pause") })
}

func (w *Wall) ToggleMuteAll() int {
	return w.each("mute", func(e *grid.Entry) mpvipc.Result { return e.Player.Cycle("mute") })
}

// SetVolumeAll clamps v to 0..MaxVolume, applies it to every cell and returns it.
func (w *Wall) SetVolumeAll(v int) int {
	v = min(max(v, 0), MaxVolume)
	w.volume = v
	w.each("volume", func(e *grid.Entry) mpvipc.Result { return e.Player.SetProperty("volume", v) })
	w.host.SetStatus(w.summary())
	return v
}

// SyncNext asks every player of this wall, through its own script, to advance. Cells
// looping forever stay put.
func (w *Wall) SyncNext() int {
	n := w.bus.Fanout(paths.SocketGlob(w.id), "script-message", mpvipc.MsgGridSyncNext)
	for _, e := range w.reg.Entries() {
		if st, ok := w.statusOf(e.Cell); ok && st.Loop {
			continue
		}
		w.skip(e, stats.SkipSync)
	}
	return n
}

func (w *Wall) SyncShuffle() int {
	return w.bus.Fanout(paths.SocketGlob(w.id), "script-message", mpvipc.MsgGridSyncShuffle)
}

// ToggleLoop flips the cell's loop-forever state through the player script.
func (w *Wall) ToggleLoop(c grid.Cell) (bool, error) {
	e, err := w.entry(c)
	if err != nil {
		return false, err
	}
	before, _ := e.Player.String("loop-file")
	if res := e.Player.ToggleCustomLoop(); !res.OK() {
		return false, fmt.Errorf("toggle loop %s: %s", c, res.Err)
	}
	enabled := before != "inf"
	w.sink.Emit(stats.LoopToggle{Time: w.now(), Cell: c, File: e.LastPath, Enabled: enabled})
	return enabled, nil
}

// Rename renames the file playing in c and patches every cell that lists it.
func (w *Wall) Rename(c grid.Cell, newBase string) (string, error) {
	e, err := w.entry(c)
	if err != nil {
		return "", err
	}
	oldPath, err := localPath(e)
	if err != nil {
		return "", err
	}
	return w.renamer.Rename(oldPath, newBase)
}

// Popout pauses c and opens its current file in a separate fullscreen player.
func (w *Wall) Popout(c grid.Cell) (string, error) {
	e, err := w.entry(c)
	if err != nil {
		return "", err
	}
	p, err := localPath(e)
	if err != nil {
		return "", err
	}
	if res := e.Player.SetProperty("pause", true); !res.OK() {
		w.logger.Warn("pause before pop-out failed", "cell", c, "err", res.Err)
	}
	if err := w.spawner.LaunchDetached(p); err != nil {
		return "", err
	}
	return p, nil
}

func (w *Wall) ToggleGlobal() error   { return w.machine.ToggleGlobal() }
func (w *Wall) EnterGlobal() error    { return w.machine.EnterGlobal() }
func (w *Wall) ExitFullscreen() error { return w.machine.ExitFullscreen() }
func (w *Wall) Recover() error        { return w.machine.Recover() }

// ToggleTile exits the active tile or makes c the tile.
func (w *Wall) ToggleTile(c grid.Cell) error {
	if !w.running {
		return ErrNotRunning
	}
	return w.machine.ToggleTile(c)
}
