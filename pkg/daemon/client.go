package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"path/filepath"
	"sort"
	"time"

	"github.com/b/mpv-grid/pkg/paths"
)

// DefaultRequestTimeout bounds one command round trip. Renames may hot-swap a file,
// which takes up to a couple of seconds.
const DefaultRequestTimeout = 5 * time.Second

// Request sends one command to the wall at socketPath and waits for its result.
func Request(socketPath string, cmd CommandPayload, timeout time.Duration) (ResultPayload, error) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return ResultPayload{}, fmt.Errorf("connect to wall: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))

	data, err := json.Marshal(Message{Type: MsgCommand, Payload: cmd})
	if err != nil {
		return ResultPayload{}, err
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return ResultPayload{}, fmt.Errorf("send command: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4*1024), 1024*1024)
	for scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			return ResultPayload{}, fmt.Errorf("malformed reply: %w", err)
		}
		if msg.Type != MsgResult {
			continue
		}
		var res ResultPayload
		if err := decodePayload(msg.Payload, &res); err != nil {
			return ResultPayload{}, fmt.Errorf("malformed result: %w", err)
		}
		return res, nil
	}
	if err := scanner.Err(); err != nil {
		return ResultPayload{}, fmt.Errorf("read reply: %w", err)
	}
	return ResultPayload{}, fmt.Errorf("wall closed the connection")
}

// Watch subscribes to status pushes until ctx ends or the wall goes away.
func Watch(ctx context.Context, socketPath string, fn func(StatusPayload)) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to wall: %w", err)
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	data, _ := json.Marshal(Message{Type: MsgSubscribe})
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4*1024), 1024*1024)
	for scanner.Scan() {
		var msg Message
		if json.Unmarshal(scanner.Bytes(), &msg) != nil || msg.Type != MsgStatus {
			continue
		}
		var st StatusPayload
		if decodePayload(msg.Payload, &st) == nil {
			fn(st)
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}

// FindControlSockets lists the control sockets of running walls, sorted.
func FindControlSockets() []string {
	matches, err := filepath.Glob(paths.ControlSocketGlob())
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	return matches
}
