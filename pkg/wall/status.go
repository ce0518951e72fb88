package wall

import (
	"fmt"

	"github.com/b/mpv-grid/pkg/fullscreen"
	"github.com/b/mpv-grid/pkg/grid"
	"github.com/b/mpv-grid/pkg/mpvipc"
	"github.com/b/mpv-grid/pkg/perf"
)

// Target is what an off-thread poll needs to read one cell.
type Target struct {
	Cell   grid.Cell
	Player mpvipc.Player
	Proc   grid.Process
}

// Status is one cell at one poll. Pos and Duration are -1 when unknown.
type Status struct {
	Cell     grid.Cell
	Path     string
	Pos      float64
	Duration float64
	Paused   bool
	Muted    bool
	Loop     bool
	Alive    bool
}

// Percent is the playback position as a whole percentage, or -1.
func (s Status) Percent() int {
	if s.Duration <= 0 || s.Pos < 0 {
		return -1
	}
	return int(s.Pos / s.Duration * 100)
}

// FormatClock renders seconds as mm:ss, or h:mm:ss past an hour. Negative is "--:--".
func FormatClock(seconds float64) string {
	if seconds < 0 {
		return "--:--"
	}
	s := int(seconds)
	h, m, sec := s/3600, s%3600/60, s%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", m, sec)
}

// Targets snapshots the cells for Poll.
func (w *Wall) Targets() []Target {
	entries := w.reg.Entries()
	out := make([]Target, 0, len(entries))
	for _, e := range entries {
		out = append(out, Target{Cell: e.Cell, Player: e.Player, Proc: e.Proc})
	}
	return out
}

// Poll reads every target sequentially. It only talks to players, so it may run off
// the control thread; a stalled player costs at most its own request timeouts.
func Poll(targets []Target) []Status {
	timer := perf.Start("poll", "cells", len(targets))
	defer timer.Stop()

	out := make([]Status, 0, len(targets))
	for _, t := range targets {
		st := Status{Cell: t.Cell, Pos: -1, Duration: -1, Alive: t.Proc == nil || t.Proc.Alive()}
		if !st.Alive {
			out = append(out, st)
			continue
		}
		st.Path, _ = t.Player.String("path")
		if v, ok := t.Player.Float("time-pos"); ok {
			st.Pos = v
		}
		if v, ok := t.Player.Float("duration"); ok {
			st.Duration = v
		}
		st.Paused, _ = t.Player.Bool("pause")
		st.Muted, _ = t.Player.Bool("mute")
		loop, _ := t.Player.String("loop-file")
		st.Loop = loop == "inf"
		out = append(out, st)
	}
	return out
}

// Apply folds a poll result into the wall. Rows for cells that are gone, as after a
// rebuild, are dropped.
func (w *Wall) Apply(polled []Status) {
	kept := make([]Status, 0, len(polled))
	for _, st := range polled {
		e, ok := w.reg.Get(st.Cell)
		if !ok {
			continue
		}
		if st.Path != "" {
			e.LastPath = st.Path
		}
		w.sessions.Observe(st.Cell, st.Path)
		kept = append(kept, st)
	}
	w.status = kept
	if w.machine.Mode() != fullscreen.Normal {
		w.machine.Check()
	}
	w.host.SetStatus(w.summary())
}

// Status returns the rows of the last applied poll.
func (w *Wall) Status() []Status {
	return append([]Status(nil), w.status...)
}

func (w *Wall) statusOf(c grid.Cell) (Status, bool) {
	for _, st := range w.status {
		if st.Cell == c {
			return st, true
		}
	}
	return Status{}, false
}
