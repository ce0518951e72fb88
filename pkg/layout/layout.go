// Package layout is the boundary to whatever arranges the wall's player surfaces.
package layout

import (
	"errors"

	"github.com/b/mpv-grid/pkg/grid"
)

var ErrUnknownCell = errors.New("no surface for cell")

// SurfaceID is a native window handle a player embeds into (mpv --wid). Zero means none.
type SurfaceID uint32

// Placement describes where a surface sits in grid terms.
type Placement struct {
	Row     int  `json:"row"`
	Col     int  `json:"col"`
	RowSpan int  `json:"rowspan"`
	ColSpan int  `json:"colspan"`
	Hidden  bool `json:"hidden"`
}

// Default is the placement the grid build assigns to c.
func Default(c grid.Cell) Placement {
	return Placement{Row: c.Row, Col: c.Col, RowSpan: 1, ColSpan: 1}
}

// Full spans the whole rows x cols grid.
func Full(rows, cols int) Placement {
	return Placement{RowSpan: rows, ColSpan: cols}
}

// Host arranges surfaces, the side panel and the window's full-window state.
// Implementations may be called only from the control thread.
type Host interface {
	// Build discards any previous grid and creates one surface per cell.
	Build(rows, cols int) (map[grid.Cell]SurfaceID, error)
	Placement(c grid.Cell) (Placement, error)
	Place(c grid.Cell, p Placement) error
	PlaceDefault(c grid.Cell) error
	Hide(c grid.Cell) error
	// Expand makes c cover the full grid extent.
	Expand(c grid.Cell) error

	SplitPosition() (int, error)
	SetSplitPosition(pos int) error
	SetSidePanelVisible(visible bool) error
	SetFullWindow(on bool) error

	SetStatus(text string)
	Close() error
}

// Rect is a pixel rectangle.
type Rect struct {
	X, Y, W, H int
}

// Geometry maps p onto a w x h area split into rows x cols, leaving pad pixels around each surface.
func Geometry(p Placement, rows, cols, w, h, pad int) Rect {
	if rows < 1 || cols < 1 {
		return Rect{}
	}
	rowSpan, colSpan := max(p.RowSpan, 1), max(p.ColSpan, 1)
	x0 := p.Col * w / cols
	x1 := min(p.Col+colSpan, cols) * w / cols
	y0 := p.Row * h / rows
	y1 := min(p.Row+rowSpan, rows) * h / rows
	r := Rect{X: x0 + pad, Y: y0 + pad, W: x1 - x0 - 2*pad, H: y1 - y0 - 2*pad}
	if r.W < 1 {
		r.W = 1
	}
	if r.H < 1 {
		r.H = 1
	}
	return r
}
