// Package mpvipc talks to mpv's JSON IPC socket.
//
// Every request opens a fresh connection: players come and go with the wall, and a
// dropped persistent connection is harder to notice than a refused dial.
package mpvipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

const (
	// DefaultTimeout bounds one request, dial included.
	DefaultTimeout = time.Second
	// BroadcastTimeout bounds one fire-and-forget notification.
	BroadcastTimeout = 500 * time.Millisecond

	maxLine = 1024 * 1024
)

var nextRequestID atomic.Int64

type request struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id,omitempty"`
}

type response struct {
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	RequestID int64           `json:"request_id"`
	Event     string          `json:"event"`
}

// Commander issues one request and returns its result.
type Commander interface {
	Send(name string, args ...any) Result
}

// Client is a request/response channel to one player socket.
type Client struct {
	SocketPath string
	Timeout    time.Duration
}

// NewClient returns a client with the default timeout.
func NewClient(socketPath string) *Client {
	return &Client{SocketPath: socketPath, Timeout: DefaultTimeout}
}

func (c *Client) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// Send writes {"command":[name,args...]} and waits for the matching reply line.
// Asynchronous event lines mpv pushes to every client are skipped.
func (c *Client) Send(name string, args ...any) Result {
	deadline := time.Now().Add(c.timeout())
	conn, err := net.DialTimeout("unix", c.SocketPath, c.timeout())
	if err != nil {
		return Failure("connect: %v", err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(deadline); err != nil {
		return Failure("set deadline: %v", err)
	}

	id := nextRequestID.Add(1)
	payload, err := json.Marshal(request{Command: append([]any{name}, args...), RequestID: id})
	if err != nil {
		return Failure("marshal: %v", err)
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return Failure("write: %v", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), maxLine)
	for scanner.Scan() {
		var resp response
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			return Failure("malformed response: %v", err)
		}
		if resp.Event != "" {
			continue
		}
		if resp.RequestID != 0 && resp.RequestID != id {
			continue
		}
		if resp.Error != "" && resp.Error != "success" {
			return Result{Err: resp.Error}
		}
		return Result{Data: resp.Data}
	}
	if err := scanner.Err(); err != nil {
		return Failure("read: %v", err)
	}
	return Failure("read: connection closed before reply")
}

// Notify sends one command and does not wait for a reply.
func Notify(socketPath string, timeout time.Duration, command ...any) error {
	if timeout <= 0 {
		timeout = BroadcastTimeout
	}
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return fmt.Errorf("connect %s: %w", socketPath, err)
	}
	defer conn.Close()
	conn.SetWriteDeadline(time.Now().Add(timeout))

	payload, err := json.Marshal(request{Command: command})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write %s: %w", socketPath, err)
	}
	return nil
}
