// Package grid holds the wall's registry: which cells exist and what runs in them.
package grid

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/b/mpv-grid/pkg/mpvipc"
)

var (
	ErrDuplicateCell   = errors.New("cell already registered")
	ErrDuplicateSocket = errors.New("socket path already registered")
)

// Cell is a 0-indexed grid coordinate.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Less orders cells row-major.
func (c Cell) Less(o Cell) bool {
	if c.Row != o.Row {
		return c.Row < o.Row
	}
	return c.Col < o.Col
}

// Cells lists every coordinate of a rows x cols grid in row-major order.
func Cells(rows, cols int) []Cell {
	out := make([]Cell, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out = append(out, Cell{Row: r, Col: c})
		}
	}
	return out
}

// Process is the part of a supervised player the registry needs.
type Process interface {
	Alive() bool
	Terminate(grace time.Duration) error
}

// Entry is everything the wall tracks for one cell.
type Entry struct {
	Cell       Cell
	Proc       Process
	Player     mpvipc.Player
	SocketPath string
	Playlist   []string
	LastPath   string
	Surface    uint32
}

// IndexOf returns the first playlist index holding path, or -1.
func (e *Entry) IndexOf(path string) int {
	for i, p := range e.Playlist {
		if p == path {
			return i
		}
	}
	return -1
}

// Registry maps cells to entries. It is owned by the control thread and is not locked.
type Registry struct {
	entries map[Cell]*Entry
	sockets map[string]Cell
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[Cell]*Entry),
		sockets: make(map[string]Cell),
	}
}

// Add registers e. Cells and socket paths must be unique.
func (r *Registry) Add(e *Entry) error {
	if _, ok := r.entries[e.Cell]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCell, e.Cell)
	}
	if e.SocketPath != "" {
		if other, ok := r.sockets[e.SocketPath]; ok {
			return fmt.Errorf("%w: %s used by %s", ErrDuplicateSocket, e.SocketPath, other)
		}
		r.sockets[e.SocketPath] = e.Cell
	}
	r.entries[e.Cell] = e
	return nil
}

func (r *Registry) Get(c Cell) (*Entry, bool) {
	e, ok := r.entries[c]
	return e, ok
}

func (r *Registry) Has(c Cell) bool {
	_, ok := r.entries[c]
	return ok
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// Cells returns registered coordinates in row-major order.
func (r *Registry) Cells() []Cell {
	out := make([]Cell, 0, len(r.entries))
	for c := range r.entries {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Entries returns entries in row-major order.
func (r *Registry) Entries() []*Entry {
	cells := r.Cells()
	out := make([]*Entry, len(cells))
	for i, c := range cells {
		out[i] = r.entries[c]
	}
	return out
}

// Remove drops c and returns its entry.
func (r *Registry) Remove(c Cell) (*Entry, bool) {
	e, ok := r.entries[c]
	if !ok {
		return nil, false
	}
	delete(r.entries, c)
	if e.SocketPath != "" {
		delete(r.sockets, e.SocketPath)
	}
	return e, true
}

func (r *Registry) Clear() {
	r.entries = make(map[Cell]*Entry)
	r.sockets = make(map[string]Cell)
}

// ContainingPath returns, row-major, the entries whose playlist holds path.
func (r *Registry) ContainingPath(path string) []*Entry {
	var out []*Entry
	for _, e := range r.Entries() {
		if e.IndexOf(path) >= 0 {
			out = append(out, e)
		}
	}
	return out
}

// AnyAlive reports whether at least one registered process is still running.
func (r *Registry) AnyAlive() bool {
	for _, e := range r.entries {
		if e.Proc != nil && e.Proc.Alive() {
			return true
		}
	}
	return false
}
