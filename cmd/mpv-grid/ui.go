package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"github.com/b/mpv-grid/pkg/daemon"
	"github.com/b/mpv-grid/pkg/grid"
	"github.com/b/mpv-grid/pkg/wall"
)

const volumeStep = "5"

var copyToClipboard = clipboard.WriteAll

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#56b6c2"))
	modeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e5c07b"))
	noteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f848e"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#c678dd")).Bold(true)
)

type keyMap struct {
	Global     key.Binding
	Tile       key.Binding
	Exit       key.Binding
	Next       key.Binding
	Prev       key.Binding
	Shuffle    key.Binding
	SyncNext   key.Binding
	SyncShuf   key.Binding
	Pause      key.Binding
	Mute       key.Binding
	VolumeUp   key.Binding
	VolumeDown key.Binding
	Volume     key.Binding
	Loop       key.Binding
	Rename     key.Binding
	Popout     key.Binding
	Reset      key.Binding
	Copy       key.Binding
	Start      key.Binding
	Resize     key.Binding
	Stop       key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Global:     key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "fullscreen")),
		Tile:       key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "tile")),
		Exit:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "exit fullscreen")),
		Next:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		Prev:       key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "prev")),
		Shuffle:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "shuffle")),
		SyncNext:   key.NewBinding(key.WithKeys("N"), key.WithHelp("N", "sync next")),
		SyncShuf:   key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "sync shuffle")),
		Pause:      key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pause")),
		Mute:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		VolumeUp:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "volume up")),
		VolumeDown: key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "volume down")),
		Volume:     key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "set volume")),
		Loop:       key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "loop")),
		Rename:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rename")),
		Popout:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "pop out")),
		Reset:      key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reset layout")),
		Copy:       key.NewBinding(key.WithKeys("y", "c"), key.WithHelp("y", "copy path")),
		Start:      key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "start/restart")),
		Resize:     key.NewBinding(key.WithKeys("G"), key.WithHelp("G", "restart as ROWS COLS")),
		Stop:       key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Global, k.Tile, k.Next, k.Pause, k.Rename, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Global, k.Tile, k.Exit, k.Reset},
		{k.Next, k.Prev, k.Shuffle, k.SyncNext, k.SyncShuf},
		{k.Pause, k.Mute, k.VolumeUp, k.VolumeDown, k.Volume},
		{k.Loop, k.Rename, k.Popout, k.Copy},
		{k.Start, k.Resize, k.Stop, k.Help, k.Quit},
	}
}

// tableKeys leaves the letters to the wall; only arrows, j/k and paging move the cursor.
func tableKeys() table.KeyMap {
	return table.KeyMap{
		LineUp:       key.NewBinding(key.WithKeys("up", "k")),
		LineDown:     key.NewBinding(key.WithKeys("down", "j")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		HalfPageUp:   key.NewBinding(key.WithDisabled()),
		HalfPageDown: key.NewBinding(key.WithDisabled()),
		GotoTop:      key.NewBinding(key.WithKeys("home")),
		GotoBottom:   key.NewBinding(key.WithKeys("end")),
	}
}

type prompt int

const (
	noPrompt prompt = iota
	renamePrompt
	volumePrompt
	gridPrompt
)

type (
	tickMsg   time.Time
	polledMsg []wall.Status
	ctlMsg    ctlRequest
	reloadMsg struct{}
	exitedMsg struct{}
)

type model struct {
	app   *app
	table table.Model
	input textinput.Model
	help  help.Model
	keys  keyMap

	cells      []grid.Cell
	prompt     prompt
	promptCell grid.Cell
	polling    bool
	width      int
}

func newModel(a *app) model {
	t := table.New(
		table.WithColumns(columns(100)),
		table.WithFocused(true),
		table.WithHeight(10),
		table.WithKeyMap(tableKeys()),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).Bold(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#282c34")).Background(lipgloss.Color("#56b6c2"))
	t.SetStyles(styles)

	in := textinput.New()
	in.CharLimit = 200
	in.Prompt = ""

	m := model{app: a, table: t, input: in, help: help.New(), keys: newKeyMap(), width: 100}
	m.refreshRows()
	return m
}

// columns sizes the file column to whatever the fixed ones leave.
func columns(width int) []table.Column {
	fixed := []table.Column{
		{Title: "Cell", Width: 7},
		{Title: "State", Width: 6},
		{Title: "Time", Width: 17},
		{Title: "Pct", Width: 4},
		{Title: "Loop", Width: 4},
	}
	used := 0
	for _, c := range fixed {
		used += c.Width + 2
	}
	return append(fixed, table.Column{Title: "File", Width: max(10, width-used-2)})
}

func stateLabel(s wall.Status) string {
	switch {
	case !s.Alive:
		return "DEAD"
	case s.Paused:
		return "PAUSE"
	default:
		return "PLAY"
	}
}

// statusRow renders one cell. Cells the poll has not reached yet show placeholders.
func statusRow(c grid.Cell, s wall.Status, ok bool, fileWidth int) table.Row {
	if !ok {
		return table.Row{c.String(), "...", "--:--/--:--", "", "", ""}
	}
	pct := ""
	if p := s.Percent(); p >= 0 {
		pct = fmt.Sprintf("%d%%", p)
	}
	loop := ""
	if s.Loop {
		loop = "on"
	}
	name := filepath.Base(s.Path)
	if s.Path == "" {
		name = ""
	}
	return table.Row{
		c.String(),
		stateLabel(s),
		wall.FormatClock(s.Pos) + "/" + wall.FormatClock(s.Duration),
		pct,
		loop,
		runewidth.Truncate(name, fileWidth, "…"),
	}
}

func (m *model) refreshRows() {
	byCell := make(map[grid.Cell]wall.Status)
	for _, s := range m.app.wall.Status() {
		byCell[s.Cell] = s
	}
	cols := columns(m.width)
	fileWidth := cols[len(cols)-1].Width
	m.cells = m.app.wall.Cells()
	rows := make([]table.Row, 0, len(m.cells))
	for _, c := range m.cells {
		s, ok := byCell[c]
		rows = append(rows, statusRow(c, s, ok, fileWidth))
	}
	m.table.SetRows(rows)
}

func (m model) selected() (grid.Cell, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.cells) {
		return grid.Cell{}, false
	}
	return m.cells[i], true
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func pollCmd(targets []wall.Target) tea.Cmd {
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				logCrash("poll", r)
				msg = polledMsg(nil)
			}
		}()
		return polledMsg(wall.Poll(targets))
	}
}

func waitRequest(ch <-chan ctlRequest) tea.Cmd {
	return func() tea.Msg { return ctlMsg(<-ch) }
}

func waitSignal(ch <-chan struct{}, msg tea.Msg) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return msg
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tick(),
		waitRequest(m.app.requests),
		waitSignal(m.app.reload, reloadMsg{}),
		waitSignal(m.app.exited, exitedMsg{}),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.table.SetColumns(columns(msg.Width))
		m.table.SetHeight(max(3, msg.Height-6))
		m.refreshRows()
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{tick()}
		if !m.polling && m.app.wall.Running() {
			m.polling = true
			cmds = append(cmds, pollCmd(m.app.wall.Targets()))
		}
		return m, tea.Batch(cmds...)

	case polledMsg:
		m.polling = false
		if msg != nil {
			m.app.applyPoll(msg)
			m.refreshRows()
		}
		return m, nil

	case ctlMsg:
		msg.reply <- m.app.handle(msg.cmd)
		m.refreshRows()
		return m, waitRequest(m.app.requests)

	case reloadMsg:
		m.app.reloadConfig()
		return m, waitSignal(m.app.reload, reloadMsg{})

	case exitedMsg:
		m.app.allExited()
		m.refreshRows()
		return m, waitSignal(m.app.exited, exitedMsg{})

	case tea.KeyMsg:
		if m.prompt != noPrompt {
			return m.updatePrompt(msg)
		}
		return m.updateKeys(msg)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *model) run(cmd daemon.CommandPayload) {
	m.app.handle(cmd)
	m.refreshRows()
}

func (m *model) runOnSelected(action string) {
	c, ok := m.selected()
	if !ok {
		m.app.note("%s: no cell selected", action)
		return
	}
	m.run(daemon.CommandPayload{Action: action, Row: c.Row, Col: c.Col})
}

func (m model) openPrompt(p prompt, value string) (tea.Model, tea.Cmd) {
	c, ok := m.selected()
	if p == renamePrompt && !ok {
		m.app.note("rename: no cell selected")
		return m, nil
	}
	m.prompt = p
	m.promptCell = c
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, k.Global):
		m.run(daemon.CommandPayload{Action: daemon.ActFullscreen})
	case key.Matches(msg, k.Tile):
		m.runOnSelected(daemon.ActTile)
	case key.Matches(msg, k.Exit):
		m.run(daemon.CommandPayload{Action: daemon.ActExitFullscreen})
	case key.Matches(msg, k.Next):
		m.run(daemon.CommandPayload{Action: daemon.ActNext})
	case key.Matches(msg, k.Prev):
		m.run(daemon.CommandPayload{Action: daemon.ActPrev})
	case key.Matches(msg, k.Shuffle):
		m.run(daemon.CommandPayload{Action: daemon.ActShuffle})
	case key.Matches(msg, k.SyncNext):
		m.run(daemon.CommandPayload{Action: daemon.ActSyncNext})
	case key.Matches(msg, k.SyncShuf):
		m.run(daemon.CommandPayload{Action: daemon.ActSyncShuffle})
	case key.Matches(msg, k.Pause):
		m.run(daemon.CommandPayload{Action: daemon.ActPause})
	case key.Matches(msg, k.Mute):
		m.run(daemon.CommandPayload{Action: daemon.ActMute})
	case key.Matches(msg, k.VolumeUp):
		m.run(daemon.CommandPayload{Action: daemon.ActVolume, Value: "+" + volumeStep})
	case key.Matches(msg, k.VolumeDown):
		m.run(daemon.CommandPayload{Action: daemon.ActVolume, Value: "-" + volumeStep})
	case key.Matches(msg, k.Volume):
		return m.openPrompt(volumePrompt, fmt.Sprint(m.app.wall.Volume()))
	case key.Matches(msg, k.Loop):
		m.runOnSelected(daemon.ActLoop)
	case key.Matches(msg, k.Rename):
		return m.openPrompt(renamePrompt, m.selectedBase())
	case key.Matches(msg, k.Popout):
		m.runOnSelected(daemon.ActPopout)
	case key.Matches(msg, k.Reset):
		m.run(daemon.CommandPayload{Action: daemon.ActReset})
	case key.Matches(msg, k.Copy):
		m.copySelectedPath()
	case key.Matches(msg, k.Start):
		m.run(daemon.CommandPayload{Action: daemon.ActStart})
	case key.Matches(msg, k.Resize):
		rows, cols := m.app.wall.Size()
		return m.openPrompt(gridPrompt, fmt.Sprintf("%d %d", rows, cols))
	case key.Matches(msg, k.Stop):
		m.run(daemon.CommandPayload{Action: daemon.ActStop})
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	return m, nil
}

// selectedPath is what the selected cell played at the last poll.
func (m model) selectedPath() string {
	c, ok := m.selected()
	if !ok {
		return ""
	}
	for _, s := range m.app.wall.Status() {
		if s.Cell == c {
			return s.Path
		}
	}
	return ""
}

// selectedBase is the current file name of the selected cell without its extension.
func (m model) selectedBase() string {
	path := m.selectedPath()
	if path == "" {
		return ""
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (m *model) copySelectedPath() {
	path := m.selectedPath()
	if path == "" {
		m.app.note("copy: nothing playing in the selected cell")
		return
	}
	if err := copyToClipboard(path); err != nil {
		m.app.note("copy failed: %v", err)
		return
	}
	m.app.note("copied %s", path)
}

func (m model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.prompt = noPrompt
		m.input.Blur()
		m.input.Reset()
		return m, nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		p, c := m.prompt, m.promptCell
		m.prompt = noPrompt
		m.input.Blur()
		m.input.Reset()
		if value == "" {
			return m, nil
		}
		switch p {
		case renamePrompt:
			m.run(daemon.CommandPayload{Action: daemon.ActRename, Row: c.Row, Col: c.Col, Value: value})
		case volumePrompt:
			m.run(daemon.CommandPayload{Action: daemon.ActVolume, Value: value})
		case gridPrompt:
			m.run(daemon.CommandPayload{Action: daemon.ActStart, Value: value})
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	var b strings.Builder
	rows, cols := m.app.wall.Size()
	b.WriteString(titleStyle.Render(fmt.Sprintf("mpv-grid %s  %dx%d", m.app.wall.ID(), rows, cols)))
	b.WriteString("  ")
	state := m.app.wall.Mode().String()
	if !m.app.wall.Running() {
		state = "stopped"
	}
	b.WriteString(modeStyle.Render(fmt.Sprintf("%s  vol %d", state, m.app.wall.Volume())))
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")

	switch m.prompt {
	case renamePrompt:
		b.WriteString(promptStyle.Render("rename "+m.promptCell.String()+": ") + m.input.View())
	case volumePrompt:
		b.WriteString(promptStyle.Render("volume: ") + m.input.View())
	case gridPrompt:
		b.WriteString(promptStyle.Render("grid (rows cols): ") + m.input.View())
	default:
		b.WriteString(noteStyle.Render(runewidth.Truncate(m.app.lastNote, max(10, m.width), "…")))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// runUI runs the panel as the control thread until q or a signal.
func runUI(ctx context.Context, a *app) error {
	lipgloss.SetColorProfile(termenv.ANSI256)
	p := tea.NewProgram(newModel(a), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
