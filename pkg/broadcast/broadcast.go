// Package broadcast fans one script message out to every player socket matching a glob.
//
// Discovery is the filesystem: each wall names its sockets after its own id, so a glob
// scoped to that id reaches exactly the players of one wall.
package broadcast

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/b/mpv-grid/pkg/mpvipc"
	"github.com/b/mpv-grid/pkg/paths"
)

// ErrUnknownAction is a usage error: the invoker asked for an action that does not exist.
var ErrUnknownAction = errors.New("unknown broadcast action")

// Actions lists the accepted action tokens.
var Actions = []string{"next", "shuffle"}

// Message maps an action token to its script message.
func Message(action string) (string, error) {
	switch action {
	case "next":
		return mpvipc.MsgGridSyncNext, nil
	case "shuffle":
		return mpvipc.MsgGridSyncShuffle, nil
	}
	return "", fmt.Errorf("%w: %q (want one of %v)", ErrUnknownAction, action, Actions)
}

// ResolveGlob picks the override, then $MPV_GRID_SOCKET_GLOB, then every wall on the host.
func ResolveGlob(override string) string {
	if override != "" {
		return override
	}
	if env := os.Getenv(paths.SocketGlobEnv); env != "" {
		return env
	}
	return paths.DefaultSocketGlob()
}

// Discover returns the socket paths matching glob, sorted.
func Discover(glob string) []string {
	matches, err := filepath.Glob(glob)
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	return matches
}

// Bus delivers notifications to discovered sockets.
type Bus struct {
	Timeout time.Duration
	Logger  *log.Logger
}

func (b *Bus) logger() *log.Logger {
	if b.Logger == nil {
		return log.Default()
	}
	return b.Logger
}

// Fanout sends command to every socket matching glob, in order, and returns how many were reached.
// Stale or refusing sockets are skipped; partial delivery is not an error.
func (b *Bus) Fanout(glob string, command ...any) int {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = mpvipc.BroadcastTimeout
	}
	reached := 0
	for _, sock := range Discover(glob) {
		if err := mpvipc.Notify(sock, timeout, command...); err != nil {
			b.logger().Debug("broadcast skip", "socket", sock, "err", err)
			continue
		}
		reached++
	}
	b.logger().Debug("broadcast", "glob", glob, "command", command, "reached", reached)
	return reached
}

// Send resolves action and glob and broadcasts the matching script message.
func (b *Bus) Send(action, glob string) (int, error) {
	msg, err := Message(action)
	if err != nil {
		return 0, err
	}
	return b.Fanout(ResolveGlob(glob), "script-message", msg), nil
}

// Send broadcasts with a default Bus.
func Send(action, glob string) (int, error) {
	return (&Bus{}).Send(action, glob)
}
