package fullscreen

import (
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/b/mpv-grid/pkg/attempt"
	"github.com/b/mpv-grid/pkg/grid"
	"github.com/b/mpv-grid/pkg/layout"
	"github.com/b/mpv-grid/pkg/perf"
)

// Env is the live wall as the machine sees it.
type Env interface {
	Cells() []grid.Cell
	SplitPosition() (int, error)
	Placement(c grid.Cell) (layout.Placement, error)
	// Playback reads pause and mute; unreadable flags read as false.
	Playback(c grid.Cell) (paused, muted bool)
	Apply(e Effect) error
}

// Transition is reported for every mode change the machine makes.
type Transition struct {
	Time     time.Time
	Entering bool
	Kind     string // "tile" or "global"
	Cell     *grid.Cell
}

const (
	KindGlobal = "global"
	KindTile   = "tile"
)

// Machine owns the wall's fullscreen State. It is driven from the control thread only.
type Machine struct {
	state  State
	staged *State // next state while its effects are being applied
	env    Env
	logger *log.Logger

	// OnTransition, when set, is called after each committed mode change.
	OnTransition func(Transition)
	now          func() time.Time
}

func NewMachine(env Env, logger *log.Logger) *Machine {
	if logger == nil {
		logger = log.Default()
	}
	return &Machine{state: NewState(), env: env, logger: logger, now: time.Now}
}

// State returns a copy of the current state.
func (m *Machine) State() State {
	return m.state.Clone()
}

func (m *Machine) Mode() Mode {
	return m.state.Mode
}

// Reset forgets all state without touching the wall. Used when the grid is rebuilt.
func (m *Machine) Reset() {
	m.state.Reset()
	m.staged = nil
}

func isValidation(err error) bool {
	return errors.Is(err, ErrUnknownCell) || errors.Is(err, ErrTileActive)
}

// run is the transition boundary: failures and panics inside fn end in Recover.
func (m *Machine) run(name string, fn func() error) (err error) {
	timer := perf.Start("fullscreen", "transition", name)
	defer timer.Stop()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("transition panic", "transition", name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%s: panic: %v", name, r)
			m.Recover()
		}
	}()

	if err := fn(); err != nil {
		if isValidation(err) {
			return err
		}
		m.logger.Error("transition failed, recovering", "transition", name, "err", err)
		if rerr := m.Recover(); rerr != nil {
			m.logger.Warn("recovery incomplete", "err", rerr)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (m *Machine) apply(effects []Effect) error {
	for _, e := range effects {
		if err := m.env.Apply(e); err != nil {
			return fmt.Errorf("apply %s: %w", e, err)
		}
	}
	return nil
}

func (m *Machine) emit(entering bool, kind string, cell *grid.Cell) {
	if m.OnTransition == nil {
		return
	}
	var c *grid.Cell
	if cell != nil {
		cp := *cell
		c = &cp
	}
	m.OnTransition(Transition{Time: m.now(), Entering: entering, Kind: kind, Cell: c})
}

// emitChange reports what changed between two modes.
func (m *Machine) emitChange(prev State, next State) {
	if prev.Mode == Tile && next.Mode != Tile {
		m.emit(false, KindTile, prev.ActiveTile)
	}
	if prev.Mode != Normal && next.Mode == Normal {
		m.emit(false, KindGlobal, nil)
	}
	if prev.Mode == Normal && next.Mode != Normal {
		m.emit(true, KindGlobal, nil)
	}
	if prev.Mode != Tile && next.Mode == Tile {
		m.emit(true, KindTile, next.ActiveTile)
	}
}

func (m *Machine) commit(next State) {
	prev := m.state
	m.state = next
	m.staged = nil
	m.emitChange(prev, next)
}

func (m *Machine) readSplit() *int {
	pos, err := m.env.SplitPosition()
	if err != nil {
		m.logger.Debug("split position unreadable", "err", err)
		return nil
	}
	return &pos
}

func (m *Machine) EnterGlobal() error {
	return m.run("enter-global", func() error {
		if m.state.Mode != Normal {
			return nil
		}
		next, effects := PlanEnterGlobal(m.state, m.readSplit())
		if err := m.apply(effects); err != nil {
			return err
		}
		m.commit(next)
		return nil
	})
}

// ExitFullscreen leaves Tile and Global, ending in Normal.
func (m *Machine) ExitFullscreen() error {
	return m.run("exit-fullscreen", func() error {
		if m.state.Mode == Normal {
			return nil
		}
		next, effects := PlanExitFullscreen(m.state, m.env.Cells())
		if err := m.apply(effects); err != nil {
			return err
		}
		m.commit(next)
		return nil
	})
}

// ToggleGlobal enters Global from Normal and otherwise exits fullscreen entirely.
func (m *Machine) ToggleGlobal() error {
	if m.state.IsFullscreen() {
		return m.ExitFullscreen()
	}
	return m.EnterGlobal()
}

// EnterTile requires that no tile is active; switching tiles means ExitTile first.
func (m *Machine) EnterTile(target grid.Cell) error {
	return m.run("enter-tile", func() error {
		cells := m.env.Cells()
		if !slices.Contains(cells, target) {
			return fmt.Errorf("%w: %s", ErrUnknownCell, target)
		}
		if m.state.Mode == Tile {
			return fmt.Errorf("%w (active %s)", ErrTileActive, m.state.ActiveTile)
		}
		next, effects, err := PlanEnterTile(m.state, target, m.snapshot(cells, target))
		if err != nil {
			return err
		}
		m.staged = &next
		if err := m.apply(effects); err != nil {
			return err
		}
		m.commit(next)
		return nil
	})
}

func (m *Machine) ExitTile() error {
	return m.run("exit-tile", func() error {
		if m.state.Mode != Tile {
			return nil
		}
		next, effects := PlanExitTile(m.state, m.env.Cells())
		if err := m.apply(effects); err != nil {
			return err
		}
		m.commit(next)
		return nil
	})
}

// ToggleTile exits the active tile, whichever it is, or makes target the tile.
func (m *Machine) ToggleTile(target grid.Cell) error {
	if m.state.Mode == Tile {
		return m.ExitTile()
	}
	return m.EnterTile(target)
}

func (m *Machine) snapshot(cells []grid.Cell, target grid.Cell) Snapshot {
	snap := Snapshot{
		Cells:  cells,
		Layout: make(map[grid.Cell]*layout.Placement, len(cells)),
		Pause:  make(map[grid.Cell]bool, len(cells)),
		Mute:   make(map[grid.Cell]bool, len(cells)),
	}
	if m.state.Mode == Normal {
		snap.Split = m.readSplit()
	}
	for _, c := range cells {
		if p, err := m.env.Placement(c); err == nil {
			snap.Layout[c] = &p
		} else {
			m.logger.Debug("placement unreadable", "cell", c, "err", err)
		}
		if c == target {
			continue
		}
		snap.Pause[c], snap.Mute[c] = m.env.Playback(c)
	}
	return snap
}

// Recover forces Normal. Each corrective effect is attempted independently; the state
// ends Normal with nothing saved even when some of them fail.
func (m *Machine) Recover() error {
	cells := m.safeCells()
	prev := m.state
	source := prev
	if m.staged != nil {
		// a half-applied tile entry: its snapshot is the best record of the layout
		source = *m.staged
		m.staged = nil
	}
	next, effects := PlanRecovery(source, cells)

	batch := attempt.New("fullscreen-recovery", m.logger)
	for _, e := range effects {
		batch.Do(e.String(), func() error { return m.env.Apply(e) })
	}
	m.state = next
	m.emitChange(prev, next)
	m.logger.Info("fullscreen recovered", "from", prev.Mode, "failed", batch.Failed())
	return batch.Err()
}

// Check validates the saved state against the live cells and recovers on mismatch.
func (m *Machine) Check() error {
	if err := m.state.Validate(m.safeCells()); err != nil {
		m.logger.Error("fullscreen state inconsistent", "err", err)
		m.Recover()
		return err
	}
	return nil
}

func (m *Machine) safeCells() (cells []grid.Cell) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("listing cells panicked", "panic", r)
			cells = nil
		}
	}()
	return m.env.Cells()
}
