package fullscreen

import (
	"fmt"

	"github.com/b/mpv-grid/pkg/grid"
	"github.com/b/mpv-grid/pkg/layout"
)

type EffectKind int

const (
	SetFullWindow EffectKind = iota
	SetSidePanel
	SetSplit
	PlaceSurface
	PlaceDefault
	HideSurface
	ExpandSurface
	SetPause
	SetMute
)

var effectNames = map[EffectKind]string{
	SetFullWindow: "full-window",
	SetSidePanel:  "side-panel",
	SetSplit:      "split",
	PlaceSurface:  "place",
	PlaceDefault:  "place-default",
	HideSurface:   "hide",
	ExpandSurface: "expand",
	SetPause:      "pause",
	SetMute:       "mute",
}

func (k EffectKind) String() string {
	if n, ok := effectNames[k]; ok {
		return n
	}
	return fmt.Sprintf("effect(%d)", int(k))
}

// Effect is one side effect of a transition.
type Effect struct {
	Kind      EffectKind
	Cell      grid.Cell
	On        bool // full-window, panel visible, pause or mute value
	Split     int
	Placement layout.Placement
}

// IsPlayback reports effects delivered over a player's IPC channel rather than the layout host.
func (e Effect) IsPlayback() bool {
	return e.Kind == SetPause || e.Kind == SetMute
}

func (e Effect) String() string {
	switch e.Kind {
	case SetFullWindow, SetSidePanel:
		return fmt.Sprintf("%s=%v", e.Kind, e.On)
	case SetSplit:
		return fmt.Sprintf("split=%d", e.Split)
	case SetPause, SetMute:
		return fmt.Sprintf("%s%s=%v", e.Kind, e.Cell, e.On)
	}
	return fmt.Sprintf("%s%s", e.Kind, e.Cell)
}

func fullWindow(on bool) Effect { return Effect{Kind: SetFullWindow, On: on} }
func sidePanel(on bool) Effect  { return Effect{Kind: SetSidePanel, On: on} }
func split(pos int) Effect      { return Effect{Kind: SetSplit, Split: pos} }
func hide(c grid.Cell) Effect   { return Effect{Kind: HideSurface, Cell: c} }
func expand(c grid.Cell) Effect { return Effect{Kind: ExpandSurface, Cell: c} }
func pause(c grid.Cell, on bool) Effect {
	return Effect{Kind: SetPause, Cell: c, On: on}
}
func mute(c grid.Cell, on bool) Effect {
	return Effect{Kind: SetMute, Cell: c, On: on}
}

// restore places c from its saved descriptor, or where the grid build puts it.
func restore(c grid.Cell, saved *layout.Placement) Effect {
	if saved == nil {
		return Effect{Kind: PlaceDefault, Cell: c}
	}
	return Effect{Kind: PlaceSurface, Cell: c, Placement: *saved}
}
