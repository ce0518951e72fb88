// Package rename renames media files on disk and patches every running player
// whose playlist holds them.
package rename

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/b/mpv-grid/pkg/attempt"
	"github.com/b/mpv-grid/pkg/grid"
	"github.com/b/mpv-grid/pkg/mpvipc"
	"github.com/b/mpv-grid/pkg/perf"
)

var (
	ErrInvalidName  = errors.New("invalid file name")
	ErrTargetExists = errors.New("target already exists")
	ErrNotLoaded    = errors.New("renamed file never became current")
)

const (
	DefaultPollStep     = 50 * time.Millisecond
	DefaultPollDeadline = 2 * time.Second
)

// ValidateName resolves newBase against the directory of oldPath. A base without an
// extension keeps the old file's extension.
func ValidateName(oldPath, newBase string) (string, error) {
	newBase = strings.TrimSpace(newBase)
	if newBase == "" || newBase == "." || newBase == ".." {
		return "", fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if strings.ContainsAny(newBase, `/\`) {
		return "", fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, newBase)
	}
	if filepath.Ext(newBase) == "" {
		newBase += filepath.Ext(oldPath)
	}
	newPath := filepath.Join(filepath.Dir(oldPath), newBase)
	if newPath == filepath.Clean(oldPath) {
		return "", fmt.Errorf("%w: name unchanged", ErrInvalidName)
	}
	if _, err := os.Lstat(newPath); err == nil {
		return "", fmt.Errorf("%w: %s", ErrTargetExists, newPath)
	}
	return newPath, nil
}

// Propagator renames a file and keeps the registry and the players in step with it.
// It runs on the control thread.
type Propagator struct {
	Registry *grid.Registry
	Logger   *log.Logger

	PollStep     time.Duration
	PollDeadline time.Duration

	// OnRename is called once the file has moved on disk.
	OnRename func(oldPath, newPath string)

	sleep func(time.Duration)
}

func NewPropagator(reg *grid.Registry, logger *log.Logger) *Propagator {
	if logger == nil {
		logger = log.Default()
	}
	return &Propagator{
		Registry:     reg,
		Logger:       logger,
		PollStep:     DefaultPollStep,
		PollDeadline: DefaultPollDeadline,
		sleep:        time.Sleep,
	}
}

// Rename moves oldPath to newBase in the same directory. Player updates are best
// effort: the rename itself succeeded once newPath is returned, and failed patches are
// logged.
func (p *Propagator) Rename(oldPath, newBase string) (string, error) {
	timer := perf.Start("rename", "file", oldPath)
	defer timer.Stop()

	newPath, err := ValidateName(oldPath, newBase)
	if err != nil {
		return "", err
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return "", fmt.Errorf("rename %s: %w", oldPath, err)
	}
	p.Logger.Info("renamed", "from", filepath.Base(oldPath), "to", filepath.Base(newPath))
	if p.OnRename != nil {
		p.OnRename(oldPath, newPath)
	}

	if p.Registry == nil {
		return newPath, nil
	}
	batch := attempt.New("rename-propagate", p.Logger)
	for _, e := range p.Registry.ContainingPath(oldPath) {
		batch.Do(e.Cell.String(), func() error { return p.patch(e, oldPath, newPath) })
	}
	return newPath, nil
}

// patch updates one cell: its in-memory playlist first, then the player.
func (p *Propagator) patch(e *grid.Entry, oldPath, newPath string) error {
	for i := range e.Playlist {
		if e.Playlist[i] == oldPath {
			e.Playlist[i] = newPath
		}
	}
	if e.LastPath == oldPath {
		e.LastPath = newPath
	}
	if !e.Player.Valid() {
		return nil
	}

	indices, current, live := p.playerIndices(e, oldPath, newPath)
	if !live {
		var errs []error
		for _, idx := range indices {
			if err := p.patchEntry(e.Player, idx, current, newPath); err != nil {
				errs = append(errs, fmt.Errorf("entry %d: %w", idx, err))
			}
		}
		return errors.Join(errs...)
	}

	// Failed entries keep oldPath and a failed swap can leave an extra entry behind,
	// so positions are re-read after every entry.
	var errs []error
	failed := 0
	for n := len(indices); n > 0 && failed < len(indices); n-- {
		idx := indices[failed]
		if err := p.patchEntry(e.Player, idx, current, newPath); err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", idx, err))
			failed++
		}
		if indices, current, live = p.playerIndices(e, oldPath, newPath); !live {
			errs = append(errs, errors.New("playlist unreadable mid-patch"))
			break
		}
	}
	return errors.Join(errs...)
}

func (p *Propagator) patchEntry(pl mpvipc.Player, idx, current int, newPath string) error {
	if idx == current {
		return p.hotSwap(pl, idx, newPath)
	}
	return p.replace(pl, idx, newPath)
}

// playerIndices finds oldPath in the player's own playlist, which may have been
// reordered by a shuffle. When the playlist cannot be read the in-memory order is used
// and live is false.
func (p *Propagator) playerIndices(e *grid.Entry, oldPath, newPath string) (indices []int, current int, live bool) {
	current, ok := e.Player.Int("playlist-pos")
	if !ok {
		current = -1
	}

	var items []struct {
		Filename string `json:"filename"`
	}
	if err := e.Player.GetProperty("playlist").Decode(&items); err == nil {
		wd, _ := e.Player.String("working-directory")
		var out []int
		for i, it := range items {
			if samePath(it.Filename, oldPath, wd) {
				out = append(out, i)
			}
		}
		return out, current, true
	}

	var out []int
	for i, path := range e.Playlist {
		if path == newPath {
			out = append(out, i)
		}
	}
	return out, current, false
}

// insert puts path at idx, falling back to append+move for players without insert-at.
func (p *Propagator) insert(pl mpvipc.Player, path string, idx int) error {
	if pl.LoadFileInsertAt(path, idx).OK() {
		return nil
	}
	if r := pl.LoadFileAppend(path); !r.OK() {
		return fmt.Errorf("loadfile append: %s", r.Err)
	}
	count, ok := pl.Int("playlist-count")
	if !ok {
		return errors.New("playlist-count unreadable")
	}
	if r := pl.PlaylistMove(count-1, idx); !r.OK() {
		return fmt.Errorf("playlist-move: %s", r.Err)
	}
	return nil
}

func (p *Propagator) replace(pl mpvipc.Player, idx int, newPath string) error {
	if err := p.insert(pl, newPath, idx); err != nil {
		return err
	}
	if r := pl.PlaylistRemove(idx + 1); !r.OK() {
		return fmt.Errorf("playlist-remove: %s", r.Err)
	}
	return nil
}

// hotSwap replaces the playing entry and resumes at the same position and pause state.
func (p *Propagator) hotSwap(pl mpvipc.Player, idx int, newPath string) error {
	pos, havePos := pl.Float("time-pos")
	paused, _ := pl.Bool("pause")

	if err := p.insert(pl, newPath, idx+1); err != nil {
		return err
	}
	if r := pl.PlaylistPlayIndex(idx + 1); !r.OK() {
		return fmt.Errorf("playlist-play-index: %s", r.Err)
	}
	if !p.waitForPath(pl, newPath) {
		// leave the old entry in place; the player still has a valid cursor
		return fmt.Errorf("%w: %s", ErrNotLoaded, newPath)
	}

	pl.SetProperty("pause", true)
	if havePos {
		pl.SetProperty("time-pos", pos)
	}
	pl.SetProperty("pause", paused)

	if r := pl.PlaylistRemove(idx); !r.OK() {
		return fmt.Errorf("playlist-remove: %s", r.Err)
	}
	return nil
}

func (p *Propagator) waitForPath(pl mpvipc.Player, want string) bool {
	step, deadline := p.PollStep, p.PollDeadline
	if step <= 0 {
		step = DefaultPollStep
	}
	if deadline <= 0 {
		deadline = DefaultPollDeadline
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	wd, _ := pl.String("working-directory")
	for waited := time.Duration(0); waited <= deadline; waited += step {
		if got, ok := pl.String("path"); ok && samePath(got, want, wd) {
			return true
		}
		sleep(step)
	}
	return false
}

// samePath compares a player-reported path, possibly relative to the player's working
// directory, with an absolute one.
func samePath(reported, want, wd string) bool {
	if reported == want {
		return true
	}
	if !filepath.IsAbs(reported) && wd != "" {
		reported = filepath.Join(wd, reported)
	}
	return filepath.Clean(reported) == filepath.Clean(want)
}
