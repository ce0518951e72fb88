// Package stats records what the wall plays: viewing sessions, skips, loop toggles,
// renames and fullscreen changes.
package stats

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/b/mpv-grid/pkg/grid"
)

// Event kinds, also used as MQTT topic suffixes.
const (
	KindSession    = "session"
	KindSkip       = "skip"
	KindLoop       = "loop"
	KindRename     = "rename"
	KindFullscreen = "fullscreen"
)

// Skip reasons.
const (
	SkipNext = "next"
	SkipPrev = "prev"
	SkipSync = "sync"
)

// Event is one recorded fact.
type Event interface {
	Kind() string
	When() time.Time
	// Fields are logfmt key/value pairs.
	Fields() []any
}

// Session is one continuous stretch of a file playing in a cell.
type Session struct {
	ID       uuid.UUID `json:"id"`
	Cell     grid.Cell `json:"cell"`
	File     string    `json:"file"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Duration float64   `json:"duration"` // seconds
}

func (e Session) Kind() string    { return KindSession }
func (e Session) When() time.Time { return e.End }
func (e Session) Fields() []any {
	return []any{"id", e.ID, "cell", e.Cell, "file", filepath.Base(e.File), "seconds", int(e.Duration)}
}

// Skip is a manual or broadcast move away from a file.
type Skip struct {
	Time time.Time `json:"time"`
	Cell grid.Cell `json:"cell"`
	File string    `json:"file"`
	From float64   `json:"from"` // position in seconds when skipped
	How  string    `json:"kind"`
}

func (e Skip) Kind() string    { return KindSkip }
func (e Skip) When() time.Time { return e.Time }
func (e Skip) Fields() []any {
	return []any{"cell", e.Cell, "file", filepath.Base(e.File), "from", int(e.From), "how", e.How}
}

type LoopToggle struct {
	Time    time.Time `json:"time"`
	Cell    grid.Cell `json:"cell"`
	File    string    `json:"file"`
	Enabled bool      `json:"enabled"`
}

func (e LoopToggle) Kind() string    { return KindLoop }
func (e LoopToggle) When() time.Time { return e.Time }
func (e LoopToggle) Fields() []any {
	return []any{"cell", e.Cell, "file", filepath.Base(e.File), "enabled", e.Enabled}
}

type Rename struct {
	Time time.Time `json:"time"`
	Old  string    `json:"old"`
	New  string    `json:"new"`
}

func (e Rename) Kind() string    { return KindRename }
func (e Rename) When() time.Time { return e.Time }
func (e Rename) Fields() []any {
	return []any{"old", filepath.Base(e.Old), "new", filepath.Base(e.New)}
}

// Fullscreen marks entering or leaving a fullscreen mode. Cell is set for tiles.
type Fullscreen struct {
	Time     time.Time  `json:"time"`
	Entering bool       `json:"entering"`
	Mode     string     `json:"mode"`
	Cell     *grid.Cell `json:"cell,omitempty"`
}

func (e Fullscreen) Kind() string    { return KindFullscreen }
func (e Fullscreen) When() time.Time { return e.Time }
func (e Fullscreen) Fields() []any {
	f := []any{"mode", e.Mode, "entering", e.Entering}
	if e.Cell != nil {
		f = append(f, "cell", *e.Cell)
	}
	return f
}
