package fullscreen

import (
	"fmt"
	"slices"

	"github.com/b/mpv-grid/pkg/grid"
	"github.com/b/mpv-grid/pkg/layout"
)

// Snapshot is what the planners read from the live wall.
type Snapshot struct {
	Cells  []grid.Cell
	Split  *int
	Layout map[grid.Cell]*layout.Placement
	Pause  map[grid.Cell]bool
	Mute   map[grid.Cell]bool
}

// PlanEnterGlobal hides the side panel and asks for full-window.
// The split is saved only when leaving Normal. Anything but Normal is a no-op.
func PlanEnterGlobal(s State, currentSplit *int) (State, []Effect) {
	if s.Mode != Normal {
		return s, nil
	}
	next := s.Clone()
	if currentSplit != nil {
		v := *currentSplit
		next.SavedSplit = &v
	}
	next.SideVisible = false
	next.Mode = Global
	return next, []Effect{sidePanel(false), fullWindow(true)}
}

// PlanExitGlobal returns to Normal: full-window off, side panel back, then the saved split.
func PlanExitGlobal(s State) (State, []Effect) {
	if s.Mode == Normal {
		return s, nil
	}
	effects := []Effect{fullWindow(false), sidePanel(true)}
	if s.SavedSplit != nil {
		effects = append(effects, split(*s.SavedSplit))
	}
	next := NewState()
	return next, effects
}

// PlanEnterTile gives target the whole grid. Entering from Normal goes through Global
// first and remembers it, so leaving the tile also leaves Global.
func PlanEnterTile(s State, target grid.Cell, snap Snapshot) (State, []Effect, error) {
	if !slices.Contains(snap.Cells, target) {
		return s, nil, fmt.Errorf("%w: %s", ErrUnknownCell, target)
	}
	if s.Mode == Tile {
		return s, nil, ErrTileActive
	}

	next := s.Clone()
	var effects []Effect
	if next.Mode == Normal {
		next, effects = PlanEnterGlobal(next, snap.Split)
		next.TileForcedGlobal = true
	}

	next.SavedLayout = make(map[grid.Cell]*layout.Placement, len(snap.Cells))
	next.SavedPause = make(map[grid.Cell]bool, len(snap.Cells))
	next.SavedMute = make(map[grid.Cell]bool, len(snap.Cells))
	for _, c := range snap.Cells {
		var saved *layout.Placement
		if p := snap.Layout[c]; p != nil {
			cp := *p
			saved = &cp
		}
		next.SavedLayout[c] = saved
	}

	for _, c := range snap.Cells {
		if c == target {
			continue
		}
		next.SavedPause[c] = snap.Pause[c]
		next.SavedMute[c] = snap.Mute[c]
		effects = append(effects, pause(c, true), mute(c, true))
	}
	effects = append(effects, mute(target, false))
	for _, c := range snap.Cells {
		if c != target {
			effects = append(effects, hide(c))
		}
	}
	effects = append(effects, expand(target))

	active := target
	next.ActiveTile = &active
	next.Mode = Tile
	return next, effects, nil
}

// PlanExitTile puts every current cell back and restores the playback flags saved on entry.
// Cells without a saved descriptor fall back to their default placement; cells that are
// gone are skipped. Ends in Global, or Normal when the tile forced Global.
func PlanExitTile(s State, cells []grid.Cell) (State, []Effect) {
	if s.Mode != Tile {
		return s, nil
	}
	var effects []Effect
	for _, c := range cells {
		effects = append(effects, restore(c, s.SavedLayout[c]))
	}
	for _, c := range cells {
		if s.ActiveTile != nil && c == *s.ActiveTile {
			continue
		}
		if v, ok := s.SavedPause[c]; ok {
			effects = append(effects, pause(c, v))
		}
		if v, ok := s.SavedMute[c]; ok {
			effects = append(effects, mute(c, v))
		}
	}

	next := s.Clone()
	next.clearSaved()
	next.Mode = Global
	if next.TileForcedGlobal {
		var more []Effect
		next, more = PlanExitGlobal(next)
		effects = append(effects, more...)
	}
	return next, effects
}

// PlanExitFullscreen leaves whatever fullscreen mode is active, all the way to Normal.
func PlanExitFullscreen(s State, cells []grid.Cell) (State, []Effect) {
	var effects []Effect
	if s.Mode == Tile {
		s, effects = PlanExitTile(s, cells)
	}
	if s.Mode == Global {
		var more []Effect
		s, more = PlanExitGlobal(s)
		effects = append(effects, more...)
	}
	return s, effects
}

// PlanRecovery forces the wall back to a usable Normal layout. Playback flags are reset,
// not restored: the snapshot may be what went wrong.
func PlanRecovery(s State, cells []grid.Cell) (State, []Effect) {
	effects := []Effect{fullWindow(false), sidePanel(true)}
	for _, c := range cells {
		effects = append(effects, restore(c, s.SavedLayout[c]))
	}
	for _, c := range cells {
		effects = append(effects, mute(c, false), pause(c, false))
	}
	return NewState(), effects
}
