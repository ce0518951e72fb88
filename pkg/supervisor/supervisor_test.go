package supervisor

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/b/mpv-grid/pkg/grid"
	"github.com/b/mpv-grid/pkg/paths"
)

func testOptions(t *testing.T, exe string) Options {
	t.Helper()
	return Options{
		Executable:    exe,
		WallID:        "42-1700000000",
		RuntimeDir:    filepath.Join(t.TempDir(), "run"),
		Volume:        30,
		ImageDuration: 5,
		ScreenshotDir: "/shots",
		Logger:        log.New(io.Discard),
		Environ:       []string{"HOME=/home/u", "PATH=/usr/bin:/bin"},
	}
}

func testAssets(t *testing.T) *Assets {
	t.Helper()
	a, err := WriteAssets(t.TempDir(), AssetOptions{
		SeekSeconds:    30,
		SkipperEnabled: true,
		SkipperPercent: 0.33,
		Exec:           "/opt/mpv-grid",
		Flag:           "--broadcast",
	})
	if err != nil {
		t.Fatalf("WriteAssets() error: %v", err)
	}
	return a
}

// fakePlayer writes a shell script that records its arguments and environment, then
// runs body.
func fakePlayer(t *testing.T, body string) (exe, record string) {
	t.Helper()
	dir := t.TempDir()
	exe = filepath.Join(dir, "fake-mpv")
	record = filepath.Join(dir, "record")
	script := "#!/bin/sh\n" +
		"printf '%s\\n' \"$@\" > " + record + "\n" +
		"echo \"PATH=$PATH\" >> " + record + "\n" +
		"echo \"GLOB=$" + paths.SocketGlobEnv + "\" >> " + record + "\n" +
		body + "\n"
	if err := os.WriteFile(exe, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return exe, record
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWriteAssets(t *testing.T) {
	a := testAssets(t)

	conf, err := os.ReadFile(a.InputConf)
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range []string{
		"ESC ignore",
		`N run "mpv-grid-broadcast" "next"`,
		`S run "mpv-grid-broadcast" "shuffle"`,
		"MBTN_MID script-binding toggle-custom-loop",
		"WHEEL_UP seek 30",
		"WHEEL_DOWN seek -30",
		"k script-binding skipper-toggle",
	} {
		if !strings.Contains(string(conf), line+"\n") {
			t.Errorf("input.conf missing %q", line)
		}
	}

	var names []string
	for _, s := range a.Scripts {
		names = append(names, filepath.Base(s))
	}
	want := []string{"chained-next-shuffle.lua", "grid-sync.lua", "skipper.lua", "toggle-loop.lua"}
	if !slices.Equal(names, want) {
		t.Errorf("scripts = %v, want %v", names, want)
	}

	skipper, _ := os.ReadFile(filepath.Join(a.Root, "scripts", "skipper.lua"))
	if !strings.Contains(string(skipper), "local fraction = 0.33") || !strings.Contains(string(skipper), "local enabled = true") {
		t.Errorf("skipper.lua not rendered:\n%s", skipper)
	}

	helper, _ := os.ReadFile(a.Helper)
	if string(helper) != "#!/bin/sh\nexec '/opt/mpv-grid' --broadcast \"$@\"\n" {
		t.Errorf("helper = %q", helper)
	}
	if info, _ := os.Stat(a.Helper); info.Mode()&0111 == 0 {
		t.Error("helper is not executable")
	}
}

func TestHelperTarget(t *testing.T) {
	dir := t.TempDir()
	self := filepath.Join(dir, "mpv-grid")

	exe, flag := HelperTarget(self)
	if exe != self || flag != "--broadcast" {
		t.Errorf("HelperTarget() = %q %q, want self --broadcast", exe, flag)
	}

	sibling := filepath.Join(dir, HelperName)
	os.WriteFile(sibling, []byte("#!/bin/sh\n"), 0755)
	exe, flag = HelperTarget(self)
	if exe != sibling || flag != "" {
		t.Errorf("HelperTarget() = %q %q, want installed helper", exe, flag)
	}
}

func TestBuildArgs(t *testing.T) {
	opts := testOptions(t, "mpv")
	opts.ExtraArgs = []string{"--hwdec=auto"}
	a := testAssets(t)
	s, err := New(opts, a)
	if err != nil {
		t.Fatal(err)
	}

	args := s.BuildArgs(LaunchSpec{Cell: grid.Cell{Row: 1, Col: 2}, Surface: 77}, "/tmp/x.sock", "/run/cell-1-2.m3u")
	for _, want := range []string{
		"--no-config", "--no-shuffle", "--volume=30", "--keep-open=yes", "--loop-file=no",
		"--screenshot-directory=/shots", "--idle=yes", "--force-window=yes", "--focus-on=never",
		"--image-display-duration=5", "--no-border", "--no-window-dragging", "--hwdec=auto",
		"--input-conf=" + a.InputConf, "--script=" + a.Scripts[0],
		"--input-ipc-server=/tmp/x.sock", "--wid=77",
	} {
		if !slices.Contains(args, want) {
			t.Errorf("BuildArgs() missing %q", want)
		}
	}
	if args[len(args)-1] != "--playlist=/run/cell-1-2.m3u" {
		t.Errorf("last arg = %q, want the playlist", args[len(args)-1])
	}
	if slices.Contains(args, "--gpu-context=x11egl") {
		t.Error("x11egl forced without Wayland")
	}

	noSurface := s.BuildArgs(LaunchSpec{}, "/tmp/x.sock", "/p.m3u")
	for _, arg := range noSurface {
		if strings.HasPrefix(arg, "--wid") {
			t.Errorf("surface 0 produced %q", arg)
		}
	}
}

func TestBuildArgs_Wayland(t *testing.T) {
	opts := testOptions(t, "mpv")
	opts.Environ = append(opts.Environ, "WAYLAND_DISPLAY=wayland-0")
	s, _ := New(opts, nil)
	args := s.BuildArgs(LaunchSpec{Surface: 5}, "/s", "/p")
	if !slices.Contains(args, "--gpu-context=x11egl") || !slices.Contains(args, "--x11-name=mpv-grid-cell") {
		t.Errorf("Wayland args missing: %v", args)
	}
}

func TestEnv(t *testing.T) {
	opts := testOptions(t, "mpv")
	opts.Environ = append(opts.Environ, paths.SocketGlobEnv+"=/stale/*")
	a := testAssets(t)
	s, _ := New(opts, a)

	env := s.Env()
	if got := lookupEnv(env, "PATH"); got != a.BinDir+":/usr/bin:/bin" {
		t.Errorf("PATH = %q", got)
	}
	if got := lookupEnv(env, paths.SocketGlobEnv); got != paths.SocketGlob(opts.WallID) {
		t.Errorf("%s = %q, want %q", paths.SocketGlobEnv, got, paths.SocketGlob(opts.WallID))
	}
	if lookupEnv(env, "HOME") != "/home/u" {
		t.Error("unrelated variables must be kept")
	}
	n := 0
	for _, kv := range env {
		if strings.HasPrefix(kv, paths.SocketGlobEnv+"=") {
			n++
		}
	}
	if n != 1 {
		t.Errorf("%d glob entries, want 1", n)
	}
}

func TestSpawnAndTerminate(t *testing.T) {
	defer paths.SetRuntimeDirForTest(t.TempDir())()
	exe, record := fakePlayer(t, "exec sleep 30")
	opts := testOptions(t, exe)
	a := testAssets(t)
	s, err := New(opts, a)
	if err != nil {
		t.Fatal(err)
	}

	cell := grid.Cell{Row: 0, Col: 1}
	socket := paths.SocketPath(opts.WallID, 0, 1)
	os.WriteFile(socket, nil, 0644) // stale leftover

	p, err := s.Spawn(LaunchSpec{Cell: cell, Playlist: []string{"/m/a.mp4", "/m/b.mp4"}})
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	if _, err := os.Stat(socket); !os.IsNotExist(err) {
		t.Error("stale socket should be removed before launch")
	}
	if p.SocketPath() != socket || p.PID() == 0 {
		t.Errorf("process = socket %q pid %d", p.SocketPath(), p.PID())
	}
	pl, _ := os.ReadFile(p.PlaylistFile())
	if string(pl) != "/m/a.mp4\n/m/b.mp4\n" {
		t.Errorf("playlist file = %q", pl)
	}

	waitFor(t, "argument record", func() bool {
		data, _ := os.ReadFile(record)
		return strings.Contains(string(data), "GLOB=")
	})
	data, _ := os.ReadFile(record)
	if !strings.Contains(string(data), "--input-ipc-server="+socket+"\n") {
		t.Errorf("player args missing socket:\n%s", data)
	}
	if !strings.Contains(string(data), "PATH="+a.BinDir+":") {
		t.Errorf("player PATH missing helper dir:\n%s", data)
	}
	if !p.Alive() {
		t.Fatal("Alive() = false while running")
	}

	start := time.Now()
	if err := p.Terminate(time.Second); err != nil {
		t.Errorf("Terminate() error: %v", err)
	}
	if time.Since(start) > 900*time.Millisecond {
		t.Error("SIGTERM should have been enough")
	}
	if p.Alive() {
		t.Error("Alive() = true after Terminate")
	}
	if _, err := os.Stat(p.PlaylistFile()); !os.IsNotExist(err) {
		t.Error("playlist file should be removed")
	}
	if err := p.Terminate(time.Second); err != nil {
		t.Errorf("second Terminate() = %v, want nil", err)
	}
}

func TestTerminate_KillsStubbornProcess(t *testing.T) {
	defer paths.SetRuntimeDirForTest(t.TempDir())()
	exe, record := fakePlayer(t, "trap '' TERM\nwhile :; do sleep 0.05; done")
	s, _ := New(testOptions(t, exe), nil)
	p, err := s.Spawn(LaunchSpec{Playlist: []string{"/m/a.mp4"}})
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "trap installed", func() bool {
		data, _ := os.ReadFile(record)
		return strings.Contains(string(data), "GLOB=")
	})
	time.Sleep(50 * time.Millisecond)

	p.Terminate(200 * time.Millisecond)
	if p.Alive() {
		t.Error("process survived SIGKILL")
	}
}

func TestSpawn_MissingExecutable(t *testing.T) {
	defer paths.SetRuntimeDirForTest(t.TempDir())()
	s, _ := New(testOptions(t, "/nonexistent/mpv"), nil)
	if _, err := s.Spawn(LaunchSpec{Playlist: []string{"/m/a"}}); err == nil {
		t.Error("Spawn() with a missing executable should fail")
	}
}

func TestSpawn_CapturedOutput(t *testing.T) {
	defer paths.SetRuntimeDirForTest(t.TempDir())()
	exe, _ := fakePlayer(t, "echo hello from player")
	opts := testOptions(t, exe)
	opts.CaptureOutput = true
	s, _ := New(opts, nil)
	p, err := s.Spawn(LaunchSpec{Playlist: []string{"/m/a"}})
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	done := make(chan struct{})
	go func() { p.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("captured player never exited")
	}
}

type liveFlag struct{ alive atomic.Bool }

func (f *liveFlag) Alive() bool { return f.alive.Load() }

func TestMonitor_FiresOncePerRun(t *testing.T) {
	var fired int
	m := NewMonitor(func() { fired++ })

	if m.Check() {
		t.Error("empty monitor must not fire")
	}
	a, b := &liveFlag{}, &liveFlag{}
	a.alive.Store(true)
	b.alive.Store(true)
	m.Track(a)
	m.Track(b)

	a.alive.Store(false)
	if m.Check() {
		t.Error("fired while one player is alive")
	}
	b.alive.Store(false)
	if !m.Check() || m.Check() {
		t.Error("should fire exactly once")
	}
	if fired != 1 {
		t.Errorf("OnAllExited called %d times, want 1", fired)
	}

	m.Clear()
	c := &liveFlag{}
	m.Track(c)
	if !m.Check() || fired != 2 {
		t.Error("a new run should re-arm the monitor")
	}
}
