// mpv-grid plays a directory of media as a wall of mpv players.
//
//	mpv-grid [flags] [SOURCE]          run a wall
//	mpv-grid --broadcast next|shuffle  tell running players to advance or reshuffle
//	mpv-grid ctl ACTION [ROW COL] [V]  drive a running wall through its control socket
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/b/mpv-grid/pkg/broadcast"
	"github.com/b/mpv-grid/pkg/config"
	"github.com/b/mpv-grid/pkg/daemon"
	"github.com/b/mpv-grid/pkg/layout"
	"github.com/b/mpv-grid/pkg/media"
	"github.com/b/mpv-grid/pkg/paths"
	"github.com/b/mpv-grid/pkg/stats"
	"github.com/b/mpv-grid/pkg/supervisor"
	"github.com/b/mpv-grid/pkg/wall"
)

type options struct {
	rows, cols int
	configPath string
	headless   bool
	debug      bool
	broadcast  string
	glob       string
	noX11      bool
	limit      int
	source     string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := pflag.NewFlagSet("mpv-grid", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVarP(&o.rows, "rows", "r", 0, "grid rows (default from config)")
	fs.IntVarP(&o.cols, "cols", "c", 0, "grid columns (default from config)")
	fs.StringVar(&o.configPath, "config", "", "config file (default "+config.DefaultConfigPath()+")")
	fs.BoolVar(&o.headless, "headless", false, "run without the terminal panel")
	fs.BoolVar(&o.debug, "debug", false, "enable debug logging")
	fs.StringVar(&o.broadcast, "broadcast", "", "send next|shuffle to running players and exit")
	fs.StringVar(&o.glob, "glob", "", "socket glob for --broadcast (default $"+paths.SocketGlobEnv+")")
	fs.BoolVar(&o.noX11, "no-x11", false, "let every player open its own window")
	fs.IntVar(&o.limit, "limit", media.DefaultLimit, "maximum number of files to scan")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: mpv-grid [flags] [SOURCE]\n       mpv-grid ctl ACTION [ROW COL] [VALUE]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 1 {
		return nil, fmt.Errorf("at most one SOURCE, got %d", fs.NArg())
	}
	o.source = fs.Arg(0)
	if o.rows < 0 || o.cols < 0 {
		return nil, fmt.Errorf("invalid grid %dx%d", o.rows, o.cols)
	}
	if fs.Changed("broadcast") && o.broadcast == "" {
		return nil, fmt.Errorf("--broadcast needs an action: %s", broadcast.Usage)
	}
	return o, nil
}

func main() {
	args := os.Args[1:]
	if len(args) > 0 && args[0] == "ctl" {
		os.Exit(runCtl(args[1:], os.Stdout, os.Stderr))
	}
	opts, err := parseFlags(args, os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if opts.broadcast != "" {
		os.Exit(broadcast.Run(opts.broadcast, opts.glob, os.Stdout, os.Stderr))
	}
	os.Exit(run(opts))
}

func run(opts *options) (code int) {
	wallID := paths.NewWallID()
	tui := !opts.headless && term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	closeLogs := initLogs(wallID, opts.debug, tui)
	defer closeLogs()
	defer crashExit(&code)

	cfgPath := opts.configPath
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if opts.rows > 0 {
		cfg.Grid.Rows = opts.rows
	}
	if opts.cols > 0 {
		cfg.Grid.Cols = opts.cols
	}
	if opts.noX11 {
		cfg.Display.DisableX11 = true
	}

	source := opts.source
	if source == "" {
		source = cfg.Source
	}
	if source == "" {
		source = media.DefaultSource()
	}
	scan, err := media.Scan(source, opts.limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	eventLog.Info("media scanned", "source", source, "videos", scan.Videos, "images", scan.Images, "truncated", scan.Truncated)

	sup, err := newSupervisor(cfg, wallID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer sup.Cleanup()

	sink := openSink(cfg, wallID)
	defer sink.Close()
	host := openHost(cfg, wallID)
	defer host.Close()

	a := newApp(cfg, cfgPath, eventLog)
	a.wall = wall.New(wall.Options{
		WallID:      wallID,
		Host:        host,
		Spawner:     wall.Players{Supervisor: sup},
		Sink:        sink,
		Logger:      eventLog,
		Volume:      cfg.Player.Volume,
		OnAllExited: a.notifyExited,
	})
	defer a.wall.Stop()

	a.files = scan.Files
	msg, err := a.start(cfg.Grid.Rows, cfg.Grid.Cols)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	a.note("%s", msg)

	a.server = daemon.NewServer(paths.ControlSocket(wallID), eventLog)
	a.server.OnCommand = a.submit
	a.server.OnSubscribe = func(string) *daemon.StatusPayload { return a.lastStatus() }
	if err := a.server.Start(); err != nil {
		eventLog.Warn("control socket unavailable", "err", err)
	} else {
		defer a.server.Stop()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	go func() {
		defer recoverAndLog("liveness-monitor")
		a.wall.Monitor().Run(ctx)
	}()
	if err := config.Watch(ctx, cfgPath, a.notifyReload); err != nil {
		eventLog.Debug("config not watched", "path", cfgPath, "err", err)
	}

	eventLog.Info("wall running", "wall", wallID, "control", paths.ControlSocket(wallID), "tui", tui)
	if tui {
		if err := runUI(ctx, a); err != nil {
			eventLog.Error("panel failed", "err", err)
		}
	} else {
		runHeadless(ctx, a)
	}
	eventLog.Info("shutting down", "wall", wallID)
	return 0
}

func newSupervisor(cfg *config.Config, wallID string) (*supervisor.Supervisor, error) {
	dir := paths.WallDir(wallID)
	self, err := os.Executable()
	if err != nil {
		self = os.Args[0]
	}
	helper, flag := supervisor.HelperTarget(self)
	assets, err := supervisor.WriteAssets(dir, supervisor.AssetOptions{
		SeekSeconds:    cfg.Player.SeekSeconds,
		SkipperEnabled: cfg.SkipperEnabled(),
		SkipperPercent: cfg.Skipper.Percent,
		Exec:           helper,
		Flag:           flag,
	})
	if err != nil {
		return nil, err
	}
	return supervisor.New(supervisor.Options{
		Executable:    cfg.Player.Executable,
		WallID:        wallID,
		RuntimeDir:    dir,
		Volume:        cfg.Player.Volume,
		ImageDuration: cfg.Player.ImageDuration,
		ScreenshotDir: cfg.Player.ScreenshotDir,
		ExtraArgs:     cfg.Player.ExtraArgs,
		CaptureOutput: cfg.Player.CaptureOutput,
		Logger:        eventLog.WithPrefix("player"),
	}, assets)
}

func openHost(cfg *config.Config, wallID string) layout.Host {
	if cfg.Display.DisableX11 || os.Getenv("DISPLAY") == "" {
		return layout.NewMemory()
	}
	h, err := layout.NewX11(layout.X11Options{
		Title:       "mpv-grid " + wallID,
		Width:       cfg.Display.Width,
		Height:      cfg.Display.Height,
		PanelHeight: cfg.Display.PanelHeight,
		Pad:         1,
		Logger:      eventLog,
	})
	if err != nil {
		eventLog.Warn("no wall window, players open their own", "err", err)
		return layout.NewMemory()
	}
	return h
}

// openSink builds the stats pipeline. An unreachable broker only costs the MQTT copy.
func openSink(cfg *config.Config, wallID string) stats.Sink {
	if cfg.Stats.Disabled {
		return stats.Discard{}
	}
	logger := eventLog.WithPrefix("stats")
	s, err := stats.NewLogSink(logger, cfg.Stats.EventFile)
	if err != nil {
		eventLog.Warn("stats file unavailable, logging only", "err", err)
		s, _ = stats.NewLogSink(logger, "")
	}
	sinks := stats.Multi{s}
	if m := cfg.Stats.MQTT; m.Broker != "" {
		clientID := m.ClientID
		if clientID == "" {
			clientID = "mpv-grid-" + wallID
		}
		s, err := stats.NewMQTTSink(stats.MQTTOptions{
			Broker:   m.Broker,
			Topic:    m.Topic,
			ClientID: clientID,
			Username: m.Username,
			Password: m.Password,
		}, logger)
		if err != nil {
			eventLog.Warn("mqtt stats disabled", "err", err)
		} else {
			sinks = append(sinks, s)
		}
	}
	return sinks
}
