package fullscreen

import (
	"errors"
	"testing"

	"github.com/b/mpv-grid/pkg/grid"
	"github.com/b/mpv-grid/pkg/layout"
)

func snapshotOf(rows, cols int) Snapshot {
	cells := grid.Cells(rows, cols)
	snap := Snapshot{
		Cells:  cells,
		Layout: make(map[grid.Cell]*layout.Placement),
		Pause:  make(map[grid.Cell]bool),
		Mute:   make(map[grid.Cell]bool),
	}
	for _, c := range cells {
		p := layout.Default(c)
		snap.Layout[c] = &p
	}
	split := 640
	snap.Split = &split
	return snap
}

func countKind(effects []Effect, kind EffectKind) int {
	n := 0
	for _, e := range effects {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func TestPlanEnterGlobal(t *testing.T) {
	split := 512
	next, effects := PlanEnterGlobal(NewState(), &split)
	if next.Mode != Global || next.SideVisible {
		t.Errorf("state = %+v, want Global with side hidden", next)
	}
	if next.SavedSplit == nil || *next.SavedSplit != 512 {
		t.Errorf("SavedSplit = %v, want 512", next.SavedSplit)
	}
	want := []Effect{sidePanel(false), fullWindow(true)}
	if len(effects) != len(want) || effects[0] != want[0] || effects[1] != want[1] {
		t.Errorf("effects = %v, want %v", effects, want)
	}

	again, effects := PlanEnterGlobal(next, nil)
	if len(effects) != 0 || *again.SavedSplit != 512 {
		t.Errorf("re-entering Global should be a no-op, got %v", effects)
	}
}

func TestPlanExitGlobal_RestoresSplitLast(t *testing.T) {
	split := 300
	s, _ := PlanEnterGlobal(NewState(), &split)
	next, effects := PlanExitGlobal(s)
	if next.Mode != Normal || !next.SideVisible || next.SavedSplit != nil {
		t.Errorf("state = %+v, want clean Normal", next)
	}
	if len(effects) != 3 || effects[1] != sidePanel(true) || effects[2] != (Effect{Kind: SetSplit, Split: 300}) {
		t.Errorf("effects = %v, want panel shown before split restore", effects)
	}
}

func TestPlanEnterTile_FromNormal(t *testing.T) {
	snap := snapshotOf(2, 2)
	target := grid.Cell{Row: 0, Col: 1}
	snap.Pause[grid.Cell{Row: 1, Col: 0}] = true
	snap.Mute[grid.Cell{Row: 1, Col: 1}] = true

	next, effects, err := PlanEnterTile(NewState(), target, snap)
	if err != nil {
		t.Fatalf("PlanEnterTile() error: %v", err)
	}
	if next.Mode != Tile || *next.ActiveTile != target || !next.TileForcedGlobal {
		t.Errorf("state = %+v", next)
	}
	if err := next.Validate(snap.Cells); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if len(next.SavedPause) != 3 || len(next.SavedLayout) != 4 {
		t.Errorf("saved pause=%d layout=%d, want 3 and 4", len(next.SavedPause), len(next.SavedLayout))
	}
	if !next.SavedPause[grid.Cell{Row: 1, Col: 0}] || !next.SavedMute[grid.Cell{Row: 1, Col: 1}] {
		t.Error("saved flags do not match snapshot")
	}
	if got := countKind(effects, HideSurface); got != 3 {
		t.Errorf("hide effects = %d, want 3", got)
	}
	last := effects[len(effects)-1]
	if last != expand(target) {
		t.Errorf("last effect = %v, want expand target", last)
	}
	var targetUnmuted bool
	for _, e := range effects {
		if e.Cell == target && e.Kind == SetPause {
			t.Error("target pause must not be touched")
		}
		if e == mute(target, false) {
			targetUnmuted = true
		}
	}
	if !targetUnmuted {
		t.Error("target mute=false missing")
	}
}

func TestPlanEnterTile_Preconditions(t *testing.T) {
	snap := snapshotOf(1, 2)
	if _, _, err := PlanEnterTile(NewState(), grid.Cell{Row: 5}, snap); !errors.Is(err, ErrUnknownCell) {
		t.Errorf("unknown cell error = %v", err)
	}
	s, _, _ := PlanEnterTile(NewState(), grid.Cell{}, snap)
	if _, _, err := PlanEnterTile(s, grid.Cell{Col: 1}, snap); !errors.Is(err, ErrTileActive) {
		t.Errorf("second tile error = %v, want ErrTileActive", err)
	}
}

func TestPlanExitTile_UnwindsForcedGlobal(t *testing.T) {
	snap := snapshotOf(2, 2)
	s, _, _ := PlanEnterTile(NewState(), grid.Cell{}, snap)
	next, effects := PlanExitTile(s, snap.Cells)
	if next.Mode != Normal {
		t.Errorf("mode = %s, want normal", next.Mode)
	}
	if err := next.Validate(snap.Cells); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if countKind(effects, SetFullWindow) != 1 || countKind(effects, SetSplit) != 1 {
		t.Errorf("effects = %v, want the global exit appended", effects)
	}
}

func TestPlanExitTile_StaysGlobal(t *testing.T) {
	snap := snapshotOf(2, 2)
	s, _ := PlanEnterGlobal(NewState(), snap.Split)
	s, _, _ = PlanEnterTile(s, grid.Cell{}, snap)
	if s.TileForcedGlobal {
		t.Fatal("tile entered from Global must not be marked forced")
	}
	next, effects := PlanExitTile(s, snap.Cells)
	if next.Mode != Global {
		t.Errorf("mode = %s, want global", next.Mode)
	}
	if countKind(effects, SetFullWindow) != 0 {
		t.Error("exiting the tile should not leave full-window")
	}
}

func TestPlanExitTile_CellsChanged(t *testing.T) {
	snap := snapshotOf(1, 2)
	s, _, _ := PlanEnterTile(NewState(), grid.Cell{}, snap)

	added := grid.Cell{Row: 1, Col: 0}
	cells := []grid.Cell{{Row: 0, Col: 0}, added} // (0,1) vanished
	_, effects := PlanExitTile(s, cells)

	for _, e := range effects {
		if e.Cell == (grid.Cell{Row: 0, Col: 1}) {
			t.Errorf("vanished cell got effect %v", e)
		}
		if e.Cell == added && e.IsPlayback() {
			t.Errorf("new cell had no saved flags but got %v", e)
		}
	}
	found := false
	for _, e := range effects {
		if e == (Effect{Kind: PlaceDefault, Cell: added}) {
			found = true
		}
	}
	if !found {
		t.Error("new cell should fall back to its default placement")
	}
}

func TestPlanRecovery_Empty(t *testing.T) {
	broken := State{Mode: Tile, SavedPause: map[grid.Cell]bool{{Row: 9}: true}}
	next, effects := PlanRecovery(broken, nil)
	if next.Mode != Normal || !next.SideVisible || next.SavedPause != nil {
		t.Errorf("state = %+v, want clean Normal", next)
	}
	if len(effects) != 2 || effects[0] != fullWindow(false) || effects[1] != sidePanel(true) {
		t.Errorf("effects = %v", effects)
	}
}

func TestPlanRecovery_ResetsPlayback(t *testing.T) {
	snap := snapshotOf(2, 1)
	s, _, _ := PlanEnterTile(NewState(), grid.Cell{}, snap)
	_, effects := PlanRecovery(s, snap.Cells)
	for _, c := range snap.Cells {
		var sawPause, sawMute bool
		for _, e := range effects {
			if e == pause(c, false) {
				sawPause = true
			}
			if e == mute(c, false) {
				sawMute = true
			}
		}
		if !sawPause || !sawMute {
			t.Errorf("cell %s not reset to playing+unmuted", c)
		}
	}
}

func TestState_CloneIsDeep(t *testing.T) {
	snap := snapshotOf(1, 2)
	s, _, _ := PlanEnterTile(NewState(), grid.Cell{}, snap)
	c := s.Clone()
	c.SavedPause[grid.Cell{Col: 1}] = true
	*c.ActiveTile = grid.Cell{Row: 7}
	if s.SavedPause[grid.Cell{Col: 1}] || s.ActiveTile.Row == 7 {
		t.Error("Clone() shares memory with the original")
	}
}
