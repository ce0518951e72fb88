package rename

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/b/mpv-grid/pkg/grid"
	"github.com/b/mpv-grid/pkg/mpvipc"
	"github.com/b/mpv-grid/pkg/mpvipc/mpvtest"
)

func mediaDir(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
		if err := os.WriteFile(paths[i], []byte(n), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return paths
}

func newTestPropagator(reg *grid.Registry) *Propagator {
	p := NewPropagator(reg, log.New(io.Discard))
	p.sleep = func(time.Duration) {}
	return p
}

func register(t *testing.T, reg *grid.Registry, c grid.Cell, fake *mpvtest.Fake, playlist []string) *grid.Entry {
	t.Helper()
	e := &grid.Entry{
		Cell:       c,
		Player:     mpvipc.NewPlayer(fake),
		SocketPath: c.String(),
		Playlist:   slices.Clone(playlist),
	}
	if err := reg.Add(e); err != nil {
		t.Fatal(err)
	}
	return e
}

func TestValidateName(t *testing.T) {
	paths := mediaDir(t, "clip.mp4", "taken.mp4")
	dir := filepath.Dir(paths[0])

	tests := []struct {
		name    string
		newBase string
		want    string
		wantErr error
	}{
		{"keeps extension", "renamed", filepath.Join(dir, "renamed.mp4"), nil},
		{"explicit extension", "renamed.mkv", filepath.Join(dir, "renamed.mkv"), nil},
		{"trims space", "  spaced  ", filepath.Join(dir, "spaced.mp4"), nil},
		{"empty", "   ", "", ErrInvalidName},
		{"slash", "sub/dir", "", ErrInvalidName},
		{"backslash", `sub\dir`, "", ErrInvalidName},
		{"dotdot", "..", "", ErrInvalidName},
		{"unchanged", "clip", "", ErrInvalidName},
		{"exists", "taken", "", ErrTargetExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateName(paths[0], tt.newBase)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ValidateName(%q) error = %v, want %v", tt.newBase, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateName(%q) error: %v", tt.newBase, err)
			}
			if got != tt.want {
				t.Errorf("ValidateName(%q) = %q, want %q", tt.newBase, got, tt.want)
			}
		})
	}
}

func TestRename_NonCurrentEntry(t *testing.T) {
	for _, noInsert := range []bool{false, true} {
		name := "insert-at"
		if noInsert {
			name = "append-move"
		}
		t.Run(name, func(t *testing.T) {
			files := mediaDir(t, "a.mp4", "b.mp4", "c.mp4")
			fake := mpvtest.NewFake(files...)
			fake.NoInsertAt = noInsert
			reg := grid.NewRegistry()
			entry := register(t, reg, grid.Cell{}, fake, files)

			newPath, err := newTestPropagator(reg).Rename(files[1], "bee")
			if err != nil {
				t.Fatalf("Rename() error: %v", err)
			}
			want := []string{files[0], newPath, files[2]}
			if got := fake.Playlist(); !slices.Equal(got, want) {
				t.Errorf("player playlist = %v, want %v", got, want)
			}
			if !slices.Equal(entry.Playlist, want) {
				t.Errorf("entry playlist = %v, want %v", entry.Playlist, want)
			}
			if fake.Pos() != 0 {
				t.Errorf("Pos() = %d, playback cursor should not move", fake.Pos())
			}
			if _, err := os.Stat(newPath); err != nil {
				t.Errorf("renamed file missing: %v", err)
			}
		})
	}
}

func TestRename_CurrentEntryKeepsPosition(t *testing.T) {
	for _, paused := range []bool{false, true} {
		files := mediaDir(t, "a.mp4", "b.mp4")
		fake := mpvtest.NewFake(files...)
		fake.LoadLatency = 3
		fake.SetProp("time-pos", 42.5)
		fake.SetProp("pause", paused)
		reg := grid.NewRegistry()
		entry := register(t, reg, grid.Cell{Row: 1}, fake, files)
		entry.LastPath = files[0]

		newPath, err := newTestPropagator(reg).Rename(files[0], "first")
		if err != nil {
			t.Fatalf("Rename() error: %v", err)
		}
		if got := fake.Playlist(); !slices.Equal(got, []string{newPath, files[1]}) {
			t.Errorf("player playlist = %v", got)
		}
		if fake.Pos() != 0 {
			t.Errorf("Pos() = %d, want 0", fake.Pos())
		}
		pos, _ := fake.Prop("time-pos").(float64)
		if math.Abs(pos-42.5) > 0.5 {
			t.Errorf("time-pos = %v, want 42.5", pos)
		}
		if fake.Prop("pause") != paused {
			t.Errorf("pause = %v, want %v", fake.Prop("pause"), paused)
		}
		if entry.LastPath != newPath {
			t.Errorf("LastPath = %q, want %q", entry.LastPath, newPath)
		}
	}
}

func TestRename_CurrentEntryWithoutInsertAt(t *testing.T) {
	files := mediaDir(t, "a.mp4", "b.mp4", "c.mp4")
	fake := mpvtest.NewFake(files...)
	fake.NoInsertAt = true
	fake.Send("playlist-play-index", 1)
	reg := grid.NewRegistry()
	register(t, reg, grid.Cell{}, fake, files)

	newPath, err := newTestPropagator(reg).Rename(files[1], "middle")
	if err != nil {
		t.Fatal(err)
	}
	if got := fake.Playlist(); !slices.Equal(got, []string{files[0], newPath, files[2]}) {
		t.Errorf("player playlist = %v", got)
	}
	if fake.Pos() != 1 {
		t.Errorf("Pos() = %d, want 1", fake.Pos())
	}
}

func TestRename_OnlyAffectedCells(t *testing.T) {
	files := mediaDir(t, "a.mp4", "b.mp4", "c.mp4")
	reg := grid.NewRegistry()
	fakes := []*mpvtest.Fake{
		mpvtest.NewFake(files[0], files[1]),
		mpvtest.NewFake(files[2]),
		mpvtest.NewFake(files[1], files[0]),
	}
	register(t, reg, grid.Cell{Col: 0}, fakes[0], []string{files[0], files[1]})
	register(t, reg, grid.Cell{Col: 1}, fakes[1], []string{files[2]})
	register(t, reg, grid.Cell{Col: 2}, fakes[2], []string{files[1], files[0]})

	var events [][2]string
	p := newTestPropagator(reg)
	p.OnRename = func(o, n string) { events = append(events, [2]string{o, n}) }

	newPath, err := p.Rename(files[1], "renamed")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0] != [2]string{files[1], newPath} {
		t.Errorf("OnRename events = %v", events)
	}
	if got := fakes[0].Playlist(); !slices.Equal(got, []string{files[0], newPath}) {
		t.Errorf("cell 0 playlist = %v", got)
	}
	if got := fakes[2].Playlist(); !slices.Equal(got, []string{newPath, files[0]}) {
		t.Errorf("cell 2 playlist = %v", got)
	}
	if n := len(fakes[1].Calls()); n != 0 {
		t.Errorf("unaffected cell received %d requests", n)
	}
}

func TestRename_FollowsPlayerOrderAfterShuffle(t *testing.T) {
	files := mediaDir(t, "a.mp4", "b.mp4", "c.mp4")
	// the player shuffled its copy; the registry still has the original order
	fake := mpvtest.NewFake(files[2], files[0], files[1])
	reg := grid.NewRegistry()
	register(t, reg, grid.Cell{}, fake, files)

	newPath, err := newTestPropagator(reg).Rename(files[0], "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if got := fake.Playlist(); !slices.Equal(got, []string{files[2], newPath, files[1]}) {
		t.Errorf("player playlist = %v", got)
	}
}

func TestRename_SwapTimeoutStillRenames(t *testing.T) {
	files := mediaDir(t, "a.mp4")
	fake := mpvtest.NewFake(files...)
	fake.LoadLatency = 1000
	reg := grid.NewRegistry()
	register(t, reg, grid.Cell{}, fake, files)

	p := newTestPropagator(reg)
	p.PollStep, p.PollDeadline = time.Millisecond, 5*time.Millisecond
	newPath, err := p.Rename(files[0], "z")
	if err != nil {
		t.Fatalf("Rename() error: %v", err)
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Errorf("file not renamed: %v", err)
	}
}

func TestRename_FailedSwapKeepsLaterEntriesAligned(t *testing.T) {
	files := mediaDir(t, "a.mp4", "b.mp4")
	// a is playing and listed twice; the swap never loads
	fake := mpvtest.NewFake(files[0], files[1], files[0])
	fake.LoadLatency = 1000
	reg := grid.NewRegistry()
	register(t, reg, grid.Cell{}, fake, []string{files[0], files[1], files[0]})

	p := newTestPropagator(reg)
	p.PollStep, p.PollDeadline = time.Millisecond, 5*time.Millisecond
	newPath, err := p.Rename(files[0], "again")
	if err != nil {
		t.Fatalf("Rename() error: %v", err)
	}
	got := fake.Playlist()
	if !slices.Contains(got, files[1]) {
		t.Errorf("player playlist = %v, lost %s", got, filepath.Base(files[1]))
	}
	if want := []string{files[0], newPath, files[1], newPath}; !slices.Equal(got, want) {
		t.Errorf("player playlist = %v, want %v", got, want)
	}
}

func TestRename_ValidationLeavesDiskAlone(t *testing.T) {
	files := mediaDir(t, "a.mp4", "b.mp4")
	p := newTestPropagator(grid.NewRegistry())
	if _, err := p.Rename(files[0], "b"); !errors.Is(err, ErrTargetExists) {
		t.Errorf("Rename() error = %v, want ErrTargetExists", err)
	}
	if _, err := os.Stat(files[0]); err != nil {
		t.Errorf("source vanished: %v", err)
	}
}
