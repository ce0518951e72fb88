package mpvipc_test

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/b/mpv-grid/pkg/mpvipc"
	"github.com/b/mpv-grid/pkg/mpvipc/mpvtest"
)

// shortDir keeps socket paths under the unix socket length limit.
func shortDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "ipc")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func serve(t *testing.T, fake *mpvtest.Fake, opts ...mpvtest.Option) *mpvtest.Server {
	t.Helper()
	srv, err := mpvtest.Serve(filepath.Join(shortDir(t), "p.sock"), fake, opts...)
	if err != nil {
		t.Fatalf("Serve() error: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_GetProperty(t *testing.T) {
	fake := mpvtest.NewFake("/media/a.mkv", "/media/b.mkv")
	srv := serve(t, fake)
	p := mpvipc.NewPlayer(mpvipc.NewClient(srv.Path))

	path, ok := p.String("path")
	if !ok || path != "/media/a.mkv" {
		t.Errorf("String(path) = %q, %v, want /media/a.mkv, true", path, ok)
	}
	paused, ok := p.Bool("pause")
	if !ok || paused {
		t.Errorf("Bool(pause) = %v, %v, want false, true", paused, ok)
	}
	if pos, ok := p.Int("playlist-pos"); !ok || pos != 0 {
		t.Errorf("Int(playlist-pos) = %d, %v, want 0, true", pos, ok)
	}
}

func TestClient_SetAndCycle(t *testing.T) {
	fake := mpvtest.NewFake("/media/a.mkv")
	srv := serve(t, fake)
	p := mpvipc.NewPlayer(mpvipc.NewClient(srv.Path))

	if res := p.SetProperty("volume", 55); !res.OK() {
		t.Fatalf("SetProperty() = %+v", res)
	}
	if v, _ := p.Float("volume"); v != 55 {
		t.Errorf("volume = %v, want 55", v)
	}
	p.Cycle("mute")
	if muted, _ := p.Bool("mute"); !muted {
		t.Error("mute should be true after cycle")
	}
}

func TestClient_ErrorReply(t *testing.T) {
	srv := serve(t, mpvtest.NewFake())
	res := mpvipc.NewClient(srv.Path).Send("get_property", "no-such-property")
	if res.OK() {
		t.Fatal("expected error result")
	}
	if res.Err != "property not found" {
		t.Errorf("Err = %q, want %q", res.Err, "property not found")
	}
	if _, ok := res.Float(); ok {
		t.Error("Float() on error result should not be ok")
	}
}

func TestClient_SkipsEvents(t *testing.T) {
	srv := serve(t, mpvtest.NewFake("/media/a.mkv"), mpvtest.WithEventFirst())

	path, ok := mpvipc.NewClient(srv.Path).Send("get_property", "path").String()
	if !ok || path != "/media/a.mkv" {
		t.Errorf("path = %q, %v, want /media/a.mkv", path, ok)
	}
}

func TestClient_MalformedReply(t *testing.T) {
	srv := serve(t, mpvtest.NewFake(), mpvtest.WithGarbage())

	res := mpvipc.NewClient(srv.Path).Send("get_property", "pause")
	if res.OK() {
		t.Error("garbage reply should be an error result")
	}
}

func TestClient_MissingSocket(t *testing.T) {
	c := mpvipc.NewClient(filepath.Join(shortDir(t), "gone.sock"))
	res := c.Send("get_property", "pause")
	if res.OK() {
		t.Error("missing socket should be an error result")
	}
}

func TestClient_Timeout(t *testing.T) {
	path := filepath.Join(shortDir(t), "mute.sock")
	l, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(2 * time.Second)
	}()

	c := &mpvipc.Client{SocketPath: path, Timeout: 100 * time.Millisecond}
	start := time.Now()
	res := c.Send("get_property", "pause")
	if res.OK() {
		t.Error("silent player should time out")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Send() took %v, want about the timeout", elapsed)
	}
}

func TestNotify(t *testing.T) {
	fake := mpvtest.NewFake("/media/a.mkv")
	srv := serve(t, fake)

	if err := mpvipc.Notify(srv.Path, 0, "script-message", mpvipc.MsgGridSyncShuffle); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for fake.Shuffles() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if fake.Shuffles() != 1 {
		t.Errorf("Shuffles() = %d, want 1", fake.Shuffles())
	}
}
