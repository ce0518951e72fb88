package stats

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/b/mpv-grid/pkg/grid"
)

// Sessions turns per-cell path observations into Session events. Control thread only.
type Sessions struct {
	sink Sink
	open map[grid.Cell]*Session
	now  func() time.Time
}

func NewSessions(sink Sink) *Sessions {
	if sink == nil {
		sink = Discard{}
	}
	return &Sessions{sink: sink, open: make(map[grid.Cell]*Session), now: time.Now}
}

// Observe records that cell is now playing path. A different path closes the open
// session and starts a new one; an empty path only closes.
func (s *Sessions) Observe(cell grid.Cell, path string) {
	if cur, ok := s.open[cell]; ok {
		if cur.File == path {
			return
		}
		s.Close(cell)
	}
	if path == "" {
		return
	}
	s.open[cell] = &Session{ID: uuid.New(), Cell: cell, File: path, Start: s.now()}
}

// Close ends the cell's open session, if any.
func (s *Sessions) Close(cell grid.Cell) {
	cur, ok := s.open[cell]
	if !ok {
		return
	}
	delete(s.open, cell)
	cur.End = s.now()
	cur.Duration = cur.End.Sub(cur.Start).Seconds()
	s.sink.Emit(*cur)
}

func (s *Sessions) CloseAll() {
	for _, c := range s.Cells() {
		s.Close(c)
	}
}

// Current returns the open session of cell.
func (s *Sessions) Current(cell grid.Cell) (Session, bool) {
	cur, ok := s.open[cell]
	if !ok {
		return Session{}, false
	}
	return *cur, true
}

// Cells lists cells with an open session, row-major.
func (s *Sessions) Cells() []grid.Cell {
	out := make([]grid.Cell, 0, len(s.open))
	for c := range s.open {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
