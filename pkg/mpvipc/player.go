package mpvipc

// Script-level messages and bindings provided by the grid's player scripts.
const (
	MsgGridSyncNext    = "grid-sync-next"
	MsgGridSyncShuffle = "grid-sync-shuffle"
	BindingCustomLoop  = "toggle-custom-loop"
)

// Player layers mpv's commands over a Commander.
type Player struct {
	Commander
}

// NewPlayer wraps c.
func NewPlayer(c Commander) Player {
	return Player{Commander: c}
}

// Valid reports whether the player has a channel to talk to.
func (p Player) Valid() bool {
	return p.Commander != nil
}

func (p Player) GetProperty(name string) Result {
	return p.Send("get_property", name)
}

func (p Player) SetProperty(name string, value any) Result {
	return p.Send("set_property", name, value)
}

func (p Player) Cycle(name string) Result {
	return p.Send("cycle", name)
}

func (p Player) PlaylistNext(force bool) Result {
	if force {
		return p.Send("playlist-next", "force")
	}
	return p.Send("playlist-next")
}

func (p Player) PlaylistPrev() Result {
	return p.Send("playlist-prev")
}

func (p Player) PlaylistShuffle() Result {
	return p.Send("playlist-shuffle")
}

func (p Player) PlaylistRemove(index int) Result {
	return p.Send("playlist-remove", index)
}

// PlaylistMove moves the entry at from so it takes the place of the entry at to.
func (p Player) PlaylistMove(from, to int) Result {
	return p.Send("playlist-move", from, to)
}

func (p Player) PlaylistPlayIndex(index int) Result {
	return p.Send("playlist-play-index", index)
}

// LoadFileInsertAt needs mpv 0.38 or newer; older players reject it.
func (p Player) LoadFileInsertAt(path string, index int) Result {
	return p.Send("loadfile", path, "insert-at", index)
}

func (p Player) LoadFileAppend(path string) Result {
	return p.Send("loadfile", path, "append")
}

func (p Player) ScriptMessage(args ...any) Result {
	return p.Send("script-message", args...)
}

func (p Player) ScriptBinding(name string) Result {
	return p.Send("script-binding", name)
}

// GridSyncNext advances unless the player is looping the file forever.
func (p Player) GridSyncNext() Result {
	return p.ScriptMessage(MsgGridSyncNext)
}

func (p Player) GridSyncShuffle() Result {
	return p.ScriptMessage(MsgGridSyncShuffle)
}

func (p Player) ToggleCustomLoop() Result {
	return p.ScriptBinding(BindingCustomLoop)
}

// Bool reads a boolean property; ok is false when the player did not answer with one.
func (p Player) Bool(name string) (value, ok bool) {
	return p.GetProperty(name).Bool()
}

func (p Player) Float(name string) (float64, bool) {
	return p.GetProperty(name).Float()
}

func (p Player) Int(name string) (int, bool) {
	return p.GetProperty(name).Int()
}

func (p Player) String(name string) (string, bool) {
	return p.GetProperty(name).String()
}
