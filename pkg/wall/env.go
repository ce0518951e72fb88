package wall

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/b/mpv-grid/pkg/fullscreen"
	"github.com/b/mpv-grid/pkg/grid"
	"github.com/b/mpv-grid/pkg/layout"
)

// env is the live wall as the fullscreen machine sees it: layout effects go to the
// host, playback effects go over IPC.
type env struct {
	w *Wall
}

func (e *env) Cells() []grid.Cell {
	return e.w.reg.Cells()
}

func (e *env) SplitPosition() (int, error) {
	return e.w.host.SplitPosition()
}

func (e *env) Placement(c grid.Cell) (layout.Placement, error) {
	return e.w.host.Placement(c)
}

func (e *env) Playback(c grid.Cell) (paused, muted bool) {
	entry, ok := e.w.reg.Get(c)
	if !ok {
		return false, false
	}
	paused, _ = entry.Player.Bool("pause")
	muted, _ = entry.Player.Bool("mute")
	return paused, muted
}

// Apply fails only on layout errors. A player that does not answer keeps its old flag
// and the transition goes on.
func (e *env) Apply(eff fullscreen.Effect) error {
	h := e.w.host
	switch eff.Kind {
	case fullscreen.SetFullWindow:
		return h.SetFullWindow(eff.On)
	case fullscreen.SetSidePanel:
		return h.SetSidePanelVisible(eff.On)
	case fullscreen.SetSplit:
		return h.SetSplitPosition(eff.Split)
	case fullscreen.PlaceSurface:
		return h.Place(eff.Cell, eff.Placement)
	case fullscreen.PlaceDefault:
		return h.PlaceDefault(eff.Cell)
	case fullscreen.HideSurface:
		return h.Hide(eff.Cell)
	case fullscreen.ExpandSurface:
		return h.Expand(eff.Cell)
	case fullscreen.SetPause, fullscreen.SetMute:
		entry, ok := e.w.reg.Get(eff.Cell)
		if !ok {
			return nil
		}
		prop := "pause"
		if eff.Kind == fullscreen.SetMute {
			prop = "mute"
		}
		if res := entry.Player.SetProperty(prop, eff.On); !res.OK() {
			e.w.logger.Warn("playback effect not applied", "effect", eff, "err", res.Err)
		}
		return nil
	}
	return fmt.Errorf("unsupported effect %s", eff.Kind)
}

// localPath resolves what the cell is playing to an existing file on disk. Relative
// paths are taken against the player's working directory.
func localPath(e *grid.Entry) (string, error) {
	p, ok := e.Player.String("path")
	if !ok || p == "" {
		p = e.LastPath
	}
	if p == "" || strings.Contains(p, "://") {
		return "", fmt.Errorf("%w: %q", ErrNotLocal, p)
	}
	if !filepath.IsAbs(p) {
		wd, _ := e.Player.String("working-directory")
		if wd == "" {
			wd, _ = os.Getwd()
		}
		p = filepath.Join(wd, p)
	}
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotLocal, err)
	}
	return p, nil
}
