package layout

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/charmbracelet/log"

	"github.com/b/mpv-grid/pkg/grid"
)

// X11Options sizes the wall window.
type X11Options struct {
	Title       string
	Width       int
	Height      int
	PanelHeight int
	Pad         int
	Logger      *log.Logger
}

// X11 hosts the wall in one top-level window: a child window per cell (the players'
// --wid targets) above a status strip that plays the side panel. The split position is
// the strip's top edge.
type X11 struct {
	mu sync.Mutex

	conn   *xgb.Conn
	xu     *xgbutil.XUtil
	screen *xproto.ScreenInfo
	top    xproto.Window
	panel  xproto.Window
	gc     xproto.Gcontext
	logger *log.Logger

	cells      map[grid.Cell]xproto.Window
	placements map[grid.Cell]Placement
	rows, cols int

	width, height int
	split         int
	panelHeight   int
	pad           int
	sideShown     bool
	status        string
	done          chan struct{}
}

// NewX11 connects to $DISPLAY and maps the wall window.
func NewX11(opts X11Options) (*X11, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("connect to X server: %w", err)
	}
	xu, err := xgbutil.NewConnXgb(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("init xgbutil: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Title == "" {
		opts.Title = "mpv-grid"
	}

	h := &X11{
		conn:        conn,
		xu:          xu,
		screen:      xproto.Setup(conn).DefaultScreen(conn),
		logger:      opts.Logger,
		cells:       make(map[grid.Cell]xproto.Window),
		placements:  make(map[grid.Cell]Placement),
		width:       opts.Width,
		height:      opts.Height,
		panelHeight: opts.PanelHeight,
		pad:         opts.Pad,
		sideShown:   true,
		done:        make(chan struct{}),
	}
	h.split = h.height - h.panelHeight

	if h.top, err = h.createWindow(h.screen.Root, 0, 0, h.width, h.height,
		xproto.EventMaskStructureNotify); err != nil {
		h.conn.Close()
		return nil, err
	}
	if h.panel, err = h.createWindow(h.top, 0, h.split, h.width, h.panelHeight,
		xproto.EventMaskExposure); err != nil {
		h.conn.Close()
		return nil, err
	}
	if err := ewmh.WmNameSet(xu, h.top, opts.Title); err != nil {
		h.logger.Debug("set wall title", "err", err)
	}
	if err := h.initGC(); err != nil {
		h.logger.Warn("status strip text disabled", "err", err)
	}
	xproto.MapWindow(conn, h.panel)
	xproto.MapWindow(conn, h.top)

	go h.eventLoop()
	return h, nil
}

func (h *X11) createWindow(parent xproto.Window, x, y, w, hgt int, events uint32) (xproto.Window, error) {
	win, err := xproto.NewWindowId(h.conn)
	if err != nil {
		return 0, fmt.Errorf("allocate window id: %w", err)
	}
	err = xproto.CreateWindowChecked(h.conn, h.screen.RootDepth, win, parent,
		int16(x), int16(y), uint16(max(w, 1)), uint16(max(hgt, 1)), 0,
		xproto.WindowClassInputOutput, h.screen.RootVisual,
		xproto.CwBackPixel|xproto.CwEventMask,
		[]uint32{h.screen.BlackPixel, events}).Check()
	if err != nil {
		return 0, fmt.Errorf("create window: %w", err)
	}
	return win, nil
}

func (h *X11) initGC() error {
	font, err := xproto.NewFontId(h.conn)
	if err != nil {
		return err
	}
	const name = "fixed"
	if err := xproto.OpenFontChecked(h.conn, font, uint16(len(name)), name).Check(); err != nil {
		return err
	}
	gc, err := xproto.NewGcontextId(h.conn)
	if err != nil {
		return err
	}
	err = xproto.CreateGCChecked(h.conn, gc, xproto.Drawable(h.panel),
		xproto.GcForeground|xproto.GcBackground|xproto.GcFont,
		[]uint32{h.screen.WhitePixel, h.screen.BlackPixel, uint32(font)}).Check()
	if err != nil {
		return err
	}
	h.gc = gc
	return nil
}

func (h *X11) eventLoop() {
	for {
		ev, xerr := h.conn.WaitForEvent()
		if ev == nil && xerr == nil {
			close(h.done)
			return
		}
		if xerr != nil {
			h.logger.Debug("x11 error", "err", xerr)
			continue
		}
		switch e := ev.(type) {
		case xproto.ConfigureNotifyEvent:
			if e.Window != h.top {
				continue
			}
			h.mu.Lock()
			if int(e.Width) != h.width || int(e.Height) != h.height {
				h.resizeLocked(int(e.Width), int(e.Height))
			}
			h.mu.Unlock()
		case xproto.ExposeEvent:
			if e.Window == h.panel && e.Count == 0 {
				h.mu.Lock()
				h.drawStatusLocked()
				h.mu.Unlock()
			}
		}
	}
}

func (h *X11) resizeLocked(w, hgt int) {
	fromBottom := h.height - h.split
	h.width, h.height = w, hgt
	h.split = max(hgt-fromBottom, hgt/2)
	h.relayoutLocked()
}

// gridHeight is the pixel height the cells share.
func (h *X11) gridHeight() int {
	if !h.sideShown {
		return h.height
	}
	return h.split
}

func (h *X11) relayoutLocked() {
	for c := range h.cells {
		h.applyLocked(c)
	}
	xproto.ConfigureWindow(h.conn, h.panel,
		xproto.ConfigWindowY|xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
		[]uint32{uint32(h.split), uint32(h.width), uint32(max(h.height-h.split, 1))})
}

func (h *X11) applyLocked(c grid.Cell) error {
	win, ok := h.cells[c]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCell, c)
	}
	p := h.placements[c]
	if p.Hidden {
		return xproto.UnmapWindowChecked(h.conn, win).Check()
	}
	r := Geometry(p, h.rows, h.cols, h.width, h.gridHeight(), h.pad)
	err := xproto.ConfigureWindowChecked(h.conn, win,
		xproto.ConfigWindowX|xproto.ConfigWindowY|xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
		[]uint32{uint32(r.X), uint32(r.Y), uint32(r.W), uint32(r.H)}).Check()
	if err != nil {
		return fmt.Errorf("configure %s: %w", c, err)
	}
	return xproto.MapWindowChecked(h.conn, win).Check()
}

func (h *X11) Build(rows, cols int) (map[grid.Cell]SurfaceID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c, win := range h.cells {
		xproto.DestroyWindow(h.conn, win)
		delete(h.cells, c)
	}
	h.rows, h.cols = rows, cols
	h.placements = make(map[grid.Cell]Placement)
	out := make(map[grid.Cell]SurfaceID)
	for _, c := range grid.Cells(rows, cols) {
		win, err := h.createWindow(h.top, 0, 0, 1, 1, 0)
		if err != nil {
			return nil, fmt.Errorf("surface %s: %w", c, err)
		}
		h.cells[c] = win
		h.placements[c] = Default(c)
		if err := h.applyLocked(c); err != nil {
			return nil, err
		}
		out[c] = SurfaceID(win)
	}
	return out, nil
}

func (h *X11) Placement(c grid.Cell) (Placement, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.placements[c]
	if !ok {
		return Placement{}, fmt.Errorf("%w: %s", ErrUnknownCell, c)
	}
	return p, nil
}

func (h *X11) Place(c grid.Cell, p Placement) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.placements[c] = p
	return h.applyLocked(c)
}

func (h *X11) PlaceDefault(c grid.Cell) error {
	return h.Place(c, Default(c))
}

func (h *X11) Hide(c grid.Cell) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := h.placements[c]
	p.Hidden = true
	h.placements[c] = p
	return h.applyLocked(c)
}

func (h *X11) Expand(c grid.Cell) error {
	return h.Place(c, Full(h.rows, h.cols))
}

func (h *X11) SplitPosition() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.split, nil
}

func (h *X11) SetSplitPosition(pos int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.split = min(max(pos, h.height/2), h.height-1)
	h.relayoutLocked()
	return nil
}

func (h *X11) SetSidePanelVisible(visible bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sideShown = visible
	var err error
	if visible {
		err = xproto.MapWindowChecked(h.conn, h.panel).Check()
	} else {
		err = xproto.UnmapWindowChecked(h.conn, h.panel).Check()
	}
	h.relayoutLocked()
	return err
}

func (h *X11) SetFullWindow(on bool) error {
	action := ewmh.StateRemove
	if on {
		action = ewmh.StateAdd
	}
	return ewmh.WmStateReq(h.xu, h.top, action, "_NET_WM_STATE_FULLSCREEN")
}

func (h *X11) SetStatus(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = text
	h.drawStatusLocked()
}

func (h *X11) drawStatusLocked() {
	if h.gc == 0 || !h.sideShown {
		return
	}
	text := h.status
	if len(text) > 255 {
		text = text[:255]
	}
	xproto.ClearArea(h.conn, false, h.panel, 0, 0, 0, 0)
	xproto.ImageText8(h.conn, byte(len(text)), xproto.Drawable(h.panel), h.gc, 8, 18, text)
}

func (h *X11) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	xproto.DestroyWindow(h.conn, h.top)
	h.conn.Close()
	return nil
}
