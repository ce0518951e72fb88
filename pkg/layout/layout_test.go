package layout

import (
	"errors"
	"testing"

	"github.com/b/mpv-grid/pkg/grid"
)

func TestGeometry(t *testing.T) {
	tests := []struct {
		name string
		p    Placement
		want Rect
	}{
		{"top left", Default(grid.Cell{Row: 0, Col: 0}), Rect{X: 0, Y: 0, W: 400, H: 300}},
		{"bottom right", Default(grid.Cell{Row: 1, Col: 1}), Rect{X: 400, Y: 300, W: 400, H: 300}},
		{"full", Full(2, 2), Rect{X: 0, Y: 0, W: 800, H: 600}},
		{"span clipped", Placement{Row: 1, Col: 1, RowSpan: 5, ColSpan: 5}, Rect{X: 400, Y: 300, W: 400, H: 300}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Geometry(tt.p, 2, 2, 800, 600, 0); got != tt.want {
				t.Errorf("Geometry() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestGeometry_Pad(t *testing.T) {
	got := Geometry(Default(grid.Cell{}), 3, 3, 300, 300, 2)
	want := Rect{X: 2, Y: 2, W: 96, H: 96}
	if got != want {
		t.Errorf("Geometry() = %+v, want %+v", got, want)
	}
}

func TestMemory_BuildAndPlace(t *testing.T) {
	m := NewMemory()
	surfaces, err := m.Build(2, 3)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(surfaces) != 6 {
		t.Errorf("Build() surfaces = %d, want 6", len(surfaces))
	}

	c := grid.Cell{Row: 1, Col: 2}
	if err := m.Expand(c); err != nil {
		t.Fatal(err)
	}
	if p, _ := m.Placement(c); p != Full(2, 3) {
		t.Errorf("Placement after Expand = %+v", p)
	}
	m.Hide(c)
	if p, _ := m.Placement(c); !p.Hidden {
		t.Error("Placement after Hide should be hidden")
	}
	m.PlaceDefault(c)
	if p, _ := m.Placement(c); p != Default(c) {
		t.Errorf("Placement after PlaceDefault = %+v", p)
	}
	if _, err := m.Placement(grid.Cell{Row: 9}); !errors.Is(err, ErrUnknownCell) {
		t.Errorf("Placement(unknown) error = %v, want ErrUnknownCell", err)
	}
}

func TestMemory_FailOn(t *testing.T) {
	m := NewMemory()
	m.Build(1, 1)
	boom := errors.New("toolkit gone")
	m.FailOn("expand", boom)
	if err := m.Expand(grid.Cell{}); !errors.Is(err, boom) {
		t.Errorf("Expand() error = %v, want injected", err)
	}
	m.FailOn("expand", nil)
	if err := m.Expand(grid.Cell{}); err != nil {
		t.Errorf("Expand() after clear error = %v", err)
	}
}
