// Package fullscreen moves the wall between Normal, Global and Tile modes.
//
// Planning is pure: a Plan* function takes the current State plus a Snapshot of the
// wall and returns the next State and the Effects that get there. A Machine applies
// those effects through an Env and routes any failure to recovery.
package fullscreen

import (
	"errors"
	"fmt"
	"maps"

	"github.com/b/mpv-grid/pkg/grid"
	"github.com/b/mpv-grid/pkg/layout"
)

var (
	ErrUnknownCell = errors.New("cell not in grid")
	ErrTileActive  = errors.New("a tile is already fullscreen; exit it first")
)

type Mode int

const (
	Normal Mode = iota
	Global
	Tile
)

func (m Mode) String() string {
	switch m {
	case Normal:
		return "normal"
	case Global:
		return "global"
	case Tile:
		return "tile"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// State is everything needed to undo a transition.
// The saved maps are populated only while Mode is Tile.
type State struct {
	Mode             Mode
	ActiveTile       *grid.Cell
	SavedSplit       *int
	SideVisible      bool
	SavedLayout      map[grid.Cell]*layout.Placement
	SavedPause       map[grid.Cell]bool
	SavedMute        map[grid.Cell]bool
	TileForcedGlobal bool
}

func NewState() State {
	return State{Mode: Normal, SideVisible: true}
}

// Reset returns s to Normal with nothing saved.
func (s *State) Reset() {
	*s = NewState()
}

func (s State) IsFullscreen() bool {
	return s.Mode == Global || s.Mode == Tile
}

// Clone deep-copies s so planners never alias the caller's maps.
func (s State) Clone() State {
	out := s
	if s.ActiveTile != nil {
		c := *s.ActiveTile
		out.ActiveTile = &c
	}
	if s.SavedSplit != nil {
		v := *s.SavedSplit
		out.SavedSplit = &v
	}
	if s.SavedLayout != nil {
		out.SavedLayout = make(map[grid.Cell]*layout.Placement, len(s.SavedLayout))
		for c, p := range s.SavedLayout {
			if p != nil {
				cp := *p
				p = &cp
			}
			out.SavedLayout[c] = p
		}
	}
	out.SavedPause = maps.Clone(s.SavedPause)
	out.SavedMute = maps.Clone(s.SavedMute)
	return out
}

func (s *State) clearSaved() {
	s.SavedLayout = nil
	s.SavedPause = nil
	s.SavedMute = nil
	s.ActiveTile = nil
}

// Validate checks the saved maps against the registered cells.
func (s State) Validate(cells []grid.Cell) error {
	if s.Mode != Tile {
		if len(s.SavedLayout)+len(s.SavedPause)+len(s.SavedMute) > 0 || s.ActiveTile != nil {
			return fmt.Errorf("mode %s holds tile snapshots", s.Mode)
		}
		return nil
	}
	if s.ActiveTile == nil {
		return errors.New("tile mode without an active tile")
	}
	if len(s.SavedLayout) != len(cells) {
		return fmt.Errorf("tile snapshot covers %d cells, grid has %d", len(s.SavedLayout), len(cells))
	}
	for _, c := range cells {
		if _, ok := s.SavedLayout[c]; !ok {
			return fmt.Errorf("cell %s missing from tile snapshot", c)
		}
		if c == *s.ActiveTile {
			continue
		}
		_, okPause := s.SavedPause[c]
		_, okMute := s.SavedMute[c]
		if !okPause || !okMute {
			return fmt.Errorf("cell %s missing saved playback flags", c)
		}
	}
	return nil
}
