// Package mpvtest provides an in-memory mpv stand-in for tests.
package mpvtest

import (
	"fmt"
	"sync"

	"github.com/b/mpv-grid/pkg/mpvipc"
)

type entry struct {
	id   int
	path string
}

// Fake models the slice of mpv the grid relies on: properties, a playlist with a
// playback cursor, and the grid's script messages.
type Fake struct {
	mu sync.Mutex

	props    map[string]any
	playlist []entry
	current  int // entry id, -1 when idle
	nextID   int

	// NoInsertAt makes "loadfile ... insert-at" fail like mpv before 0.38.
	NoInsertAt bool
	// LoadLatency is how many "path" reads still report the previous file after a switch.
	LoadLatency int
	// Dead makes every request fail as if the socket refused.
	Dead bool

	pendingOld string
	pending    int

	calls    [][]any
	messages []string
	shuffles int
}

// NewFake returns a player with playlist loaded and the first entry playing.
func NewFake(playlist ...string) *Fake {
	f := &Fake{
		props: map[string]any{
			"pause":             false,
			"mute":              false,
			"volume":            30.0,
			"time-pos":          0.0,
			"duration":          120.0,
			"loop-file":         "no",
			"working-directory": "/",
		},
		current: -1,
	}
	for _, p := range playlist {
		f.appendLocked(p)
	}
	if len(f.playlist) > 0 {
		f.current = f.playlist[0].id
	}
	return f
}

func (f *Fake) appendLocked(path string) {
	f.nextID++
	f.playlist = append(f.playlist, entry{id: f.nextID, path: path})
}

func (f *Fake) posLocked() int {
	for i, e := range f.playlist {
		if e.id == f.current {
			return i
		}
	}
	return -1
}

// Send implements mpvipc.Commander.
func (f *Fake) Send(name string, args ...any) mpvipc.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]any{name}, args...))
	if f.Dead {
		return mpvipc.Failure("connect: connection refused")
	}

	switch name {
	case "get_property":
		return f.getLocked(str(args, 0))
	case "set_property":
		if len(args) < 2 {
			return mpvipc.Failure("invalid parameter")
		}
		f.props[str(args, 0)] = normalize(args[1])
		return mpvipc.Ok(nil)
	case "cycle":
		prop := str(args, 0)
		b, ok := f.props[prop].(bool)
		if !ok {
			return mpvipc.Failure("property unavailable")
		}
		f.props[prop] = !b
		return mpvipc.Ok(nil)
	case "playlist-next":
		if pos := f.posLocked(); pos >= 0 && pos+1 < len(f.playlist) {
			f.switchLocked(pos + 1)
		}
		return mpvipc.Ok(nil)
	case "playlist-prev":
		if pos := f.posLocked(); pos > 0 {
			f.switchLocked(pos - 1)
		}
		return mpvipc.Ok(nil)
	case "playlist-shuffle":
		f.shuffles++
		return mpvipc.Ok(nil)
	case "playlist-remove":
		idx, ok := num(args, 0)
		if !ok || idx < 0 || idx >= len(f.playlist) {
			return mpvipc.Failure("invalid parameter")
		}
		removed := f.playlist[idx]
		f.playlist = append(f.playlist[:idx], f.playlist[idx+1:]...)
		if removed.id == f.current {
			f.current = -1
			if idx < len(f.playlist) {
				f.current = f.playlist[idx].id
			}
		}
		return mpvipc.Ok(nil)
	case "playlist-move":
		from, ok1 := num(args, 0)
		to, ok2 := num(args, 1)
		if !ok1 || !ok2 || from < 0 || from >= len(f.playlist) || to < 0 || to > len(f.playlist) {
			return mpvipc.Failure("invalid parameter")
		}
		e := f.playlist[from]
		f.playlist = append(f.playlist[:from], f.playlist[from+1:]...)
		if to > from {
			to--
		}
		f.insertLocked(to, e)
		return mpvipc.Ok(nil)
	case "playlist-play-index":
		idx, ok := num(args, 0)
		if !ok || idx < 0 || idx >= len(f.playlist) {
			return mpvipc.Failure("invalid parameter")
		}
		f.switchLocked(idx)
		return mpvipc.Ok(nil)
	case "loadfile":
		return f.loadLocked(args)
	case "script-message":
		msg := str(args, 0)
		f.messages = append(f.messages, msg)
		switch msg {
		case mpvipc.MsgGridSyncNext:
			if f.props["loop-file"] != "inf" {
				if pos := f.posLocked(); pos >= 0 && pos+1 < len(f.playlist) {
					f.switchLocked(pos + 1)
				}
			}
		case mpvipc.MsgGridSyncShuffle:
			f.shuffles++
		}
		return mpvipc.Ok(nil)
	case "script-binding":
		binding := str(args, 0)
		f.messages = append(f.messages, binding)
		if binding == mpvipc.BindingCustomLoop {
			if f.props["loop-file"] == "inf" {
				f.props["loop-file"] = "no"
			} else {
				f.props["loop-file"] = "inf"
			}
		}
		return mpvipc.Ok(nil)
	}
	return mpvipc.Failure("unknown command %q", name)
}

func (f *Fake) getLocked(prop string) mpvipc.Result {
	switch prop {
	case "path":
		if f.pending > 0 {
			f.pending--
			return mpvipc.Ok(f.pendingOld)
		}
		pos := f.posLocked()
		if pos < 0 {
			return mpvipc.Failure("property unavailable")
		}
		return mpvipc.Ok(f.playlist[pos].path)
	case "playlist-pos":
		return mpvipc.Ok(f.posLocked())
	case "playlist-count":
		return mpvipc.Ok(len(f.playlist))
	case "playlist":
		items := make([]map[string]any, len(f.playlist))
		for i, e := range f.playlist {
			items[i] = map[string]any{"filename": e.path}
			if e.id == f.current {
				items[i]["current"] = true
			}
		}
		return mpvipc.Ok(items)
	}
	v, ok := f.props[prop]
	if !ok {
		return mpvipc.Failure("property not found")
	}
	return mpvipc.Ok(v)
}

func (f *Fake) loadLocked(args []any) mpvipc.Result {
	path := str(args, 0)
	switch str(args, 1) {
	case "append", "append-play":
		f.appendLocked(path)
		return mpvipc.Ok(nil)
	case "insert-at":
		if f.NoInsertAt {
			return mpvipc.Failure("invalid parameter")
		}
		idx, ok := num(args, 2)
		if !ok || idx < 0 || idx > len(f.playlist) {
			return mpvipc.Failure("invalid parameter")
		}
		f.nextID++
		f.insertLocked(idx, entry{id: f.nextID, path: path})
		return mpvipc.Ok(nil)
	}
	return mpvipc.Failure("invalid parameter")
}

func (f *Fake) insertLocked(idx int, e entry) {
	f.playlist = append(f.playlist, entry{})
	copy(f.playlist[idx+1:], f.playlist[idx:])
	f.playlist[idx] = e
}

func (f *Fake) switchLocked(idx int) {
	if pos := f.posLocked(); pos >= 0 && f.LoadLatency > 0 {
		f.pendingOld = f.playlist[pos].path
		f.pending = f.LoadLatency
	}
	f.current = f.playlist[idx].id
	f.props["time-pos"] = 0.0
}

// Playlist returns the player's playlist in order.
func (f *Fake) Playlist() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.playlist))
	for i, e := range f.playlist {
		out[i] = e.path
	}
	return out
}

// Pos returns the index of the playing entry, or -1.
func (f *Fake) Pos() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posLocked()
}

// Prop returns a property value as stored.
func (f *Fake) Prop(name string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.props[name]
}

// SetProp sets a property without recording a call.
func (f *Fake) SetProp(name string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.props[name] = normalize(v)
}

// Calls returns every request received so far.
func (f *Fake) Calls() [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]any(nil), f.calls...)
}

// CallNames returns the command name of every request.
func (f *Fake) CallNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.calls))
	for i, c := range f.calls {
		names[i] = fmt.Sprint(c[0])
	}
	return names
}

// Messages returns script messages and bindings received.
func (f *Fake) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

// Shuffles counts playlist-shuffle commands and grid-sync-shuffle messages.
func (f *Fake) Shuffles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shuffles
}

func str(args []any, i int) string {
	if i >= len(args) {
		return ""
	}
	s, _ := args[i].(string)
	return s
}

func num(args []any, i int) (int, bool) {
	if i >= len(args) {
		return 0, false
	}
	switch v := args[i].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return v
}
