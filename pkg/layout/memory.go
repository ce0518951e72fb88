package layout

import (
	"fmt"
	"sync"

	"github.com/b/mpv-grid/pkg/grid"
)

// Memory keeps layout state in process. Headless walls use it when there is no
// display to embed into; players then open their own windows.
type Memory struct {
	mu         sync.Mutex
	rows, cols int
	placements map[grid.Cell]Placement
	split      int
	sideShown  bool
	fullWindow bool
	status     string

	// failures injects errors per operation name ("expand", "hide", "place", ...).
	failures map[string]error
}

func NewMemory() *Memory {
	return &Memory{
		placements: make(map[grid.Cell]Placement),
		split:      600,
		sideShown:  true,
	}
}

// FailOn makes op return err until cleared with a nil err.
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures == nil {
		m.failures = make(map[string]error)
	}
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

func (m *Memory) fail(op string) error {
	return m.failures[op]
}

func (m *Memory) Build(rows, cols int) (map[grid.Cell]SurfaceID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("build"); err != nil {
		return nil, err
	}
	m.rows, m.cols = rows, cols
	m.placements = make(map[grid.Cell]Placement)
	out := make(map[grid.Cell]SurfaceID)
	for _, c := range grid.Cells(rows, cols) {
		m.placements[c] = Default(c)
		out[c] = 0
	}
	return out, nil
}

func (m *Memory) Placement(c grid.Cell) (Placement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("placement"); err != nil {
		return Placement{}, err
	}
	p, ok := m.placements[c]
	if !ok {
		return Placement{}, fmt.Errorf("%w: %s", ErrUnknownCell, c)
	}
	return p, nil
}

func (m *Memory) Place(c grid.Cell, p Placement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("place"); err != nil {
		return err
	}
	m.placements[c] = p
	return nil
}

func (m *Memory) PlaceDefault(c grid.Cell) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("place"); err != nil {
		return err
	}
	m.placements[c] = Default(c)
	return nil
}

func (m *Memory) Hide(c grid.Cell) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("hide"); err != nil {
		return err
	}
	p := m.placements[c]
	p.Hidden = true
	m.placements[c] = p
	return nil
}

func (m *Memory) Expand(c grid.Cell) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("expand"); err != nil {
		return err
	}
	m.placements[c] = Full(m.rows, m.cols)
	return nil
}

func (m *Memory) SplitPosition() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.split, m.fail("split")
}

func (m *Memory) SetSplitPosition(pos int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("split"); err != nil {
		return err
	}
	m.split = pos
	return nil
}

func (m *Memory) SetSidePanelVisible(visible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("panel"); err != nil {
		return err
	}
	m.sideShown = visible
	return nil
}

func (m *Memory) SetFullWindow(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("fullwindow"); err != nil {
		return err
	}
	m.fullWindow = on
	return nil
}

func (m *Memory) SetStatus(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = text
}

func (m *Memory) Close() error { return nil }

// Inspection helpers.

func (m *Memory) FullWindow() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fullWindow
}

func (m *Memory) SidePanelVisible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sideShown
}

func (m *Memory) Status() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}
