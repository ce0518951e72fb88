package grid

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

type stubProc struct{ alive bool }

func (p *stubProc) Alive() bool                   { return p.alive }
func (p *stubProc) Terminate(time.Duration) error { p.alive = false; return nil }

func TestCells_RowMajor(t *testing.T) {
	got := Cells(2, 3)
	want := []Cell{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}}
	if len(got) != len(want) {
		t.Fatalf("Cells(2,3) len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Cells(2,3)[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRegistry_UniqueCellsAndSockets(t *testing.T) {
	for _, dims := range [][2]int{{1, 1}, {2, 2}, {3, 4}} {
		t.Run(fmt.Sprintf("%dx%d", dims[0], dims[1]), func(t *testing.T) {
			r := NewRegistry()
			for _, c := range Cells(dims[0], dims[1]) {
				e := &Entry{Cell: c, SocketPath: fmt.Sprintf("/tmp/s-%d-%d.sock", c.Row, c.Col)}
				if err := r.Add(e); err != nil {
					t.Fatalf("Add(%v) error: %v", c, err)
				}
			}
			if r.Len() != dims[0]*dims[1] {
				t.Errorf("Len() = %d, want %d", r.Len(), dims[0]*dims[1])
			}
		})
	}
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	r.Add(&Entry{Cell: Cell{0, 0}, SocketPath: "/tmp/a.sock"})

	if err := r.Add(&Entry{Cell: Cell{0, 0}, SocketPath: "/tmp/b.sock"}); !errors.Is(err, ErrDuplicateCell) {
		t.Errorf("Add(dup cell) = %v, want ErrDuplicateCell", err)
	}
	if err := r.Add(&Entry{Cell: Cell{0, 1}, SocketPath: "/tmp/a.sock"}); !errors.Is(err, ErrDuplicateSocket) {
		t.Errorf("Add(dup socket) = %v, want ErrDuplicateSocket", err)
	}
}

func TestRegistry_RemoveFreesSocket(t *testing.T) {
	r := NewRegistry()
	r.Add(&Entry{Cell: Cell{1, 1}, SocketPath: "/tmp/a.sock"})
	if _, ok := r.Remove(Cell{1, 1}); !ok {
		t.Fatal("Remove() = false, want true")
	}
	if err := r.Add(&Entry{Cell: Cell{0, 0}, SocketPath: "/tmp/a.sock"}); err != nil {
		t.Errorf("Add after Remove error: %v", err)
	}
	if _, ok := r.Remove(Cell{5, 5}); ok {
		t.Error("Remove(unknown) = true, want false")
	}
}

func TestRegistry_ContainingPath(t *testing.T) {
	r := NewRegistry()
	r.Add(&Entry{Cell: Cell{0, 1}, Playlist: []string{"/m/a", "/m/b"}})
	r.Add(&Entry{Cell: Cell{0, 0}, Playlist: []string{"/m/b"}})
	r.Add(&Entry{Cell: Cell{1, 0}, Playlist: []string{"/m/c"}})

	got := r.ContainingPath("/m/b")
	if len(got) != 2 || got[0].Cell != (Cell{0, 0}) || got[1].Cell != (Cell{0, 1}) {
		t.Errorf("ContainingPath(/m/b) = %v", got)
	}
	if got := r.ContainingPath("/m/zzz"); len(got) != 0 {
		t.Errorf("ContainingPath(missing) len = %d, want 0", len(got))
	}
}

func TestRegistry_AnyAlive(t *testing.T) {
	r := NewRegistry()
	p1, p2 := &stubProc{alive: true}, &stubProc{alive: false}
	r.Add(&Entry{Cell: Cell{0, 0}, Proc: p1})
	r.Add(&Entry{Cell: Cell{0, 1}, Proc: p2})

	if !r.AnyAlive() {
		t.Error("AnyAlive() = false, want true")
	}
	p1.Terminate(0)
	if r.AnyAlive() {
		t.Error("AnyAlive() = true after all exited")
	}
	r.Clear()
	if r.Len() != 0 {
		t.Errorf("Len() after Clear = %d", r.Len())
	}
}
