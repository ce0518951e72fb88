package mpvtest

import (
	"bufio"
	"encoding/json"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/b/mpv-grid/pkg/mpvipc"
)

// Server exposes a Commander on a unix socket using mpv's wire format.
type Server struct {
	Path     string
	listener net.Listener
	backend  mpvipc.Commander
	wg       sync.WaitGroup

	eventFirst bool
	garbage    bool

	received atomic.Int64
}

// Option tweaks how a Server misbehaves.
type Option func(*Server)

// WithEventFirst pushes an unsolicited event line before each reply.
func WithEventFirst() Option { return func(s *Server) { s.eventFirst = true } }

// WithGarbage replies with a line that is not JSON.
func WithGarbage() Option { return func(s *Server) { s.garbage = true } }

// Serve listens on path and answers requests from backend until Close.
func Serve(path string, backend mpvipc.Commander, opts ...Option) (*Server, error) {
	os.Remove(path)
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	s := &Server{Path: path, listener: l, backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// Received counts request lines read, replies or not.
func (s *Server) Received() int {
	return int(s.received.Load())
}

// Close stops listening and removes the socket file.
func (s *Server) Close() {
	s.listener.Close()
	s.wg.Wait()
	os.Remove(s.Path)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		s.received.Add(1)
		var req struct {
			Command   []any `json:"command"`
			RequestID int64 `json:"request_id"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil || len(req.Command) == 0 {
			writeLine(conn, map[string]any{"error": "invalid parameter"})
			continue
		}
		if s.garbage {
			conn.Write([]byte("not json\n"))
			continue
		}
		if s.eventFirst {
			writeLine(conn, map[string]any{"event": "playback-restart"})
		}
		name, _ := req.Command[0].(string)
		res := s.backend.Send(name, req.Command[1:]...)
		reply := map[string]any{"request_id": req.RequestID, "error": "success"}
		if !res.OK() {
			reply["error"] = res.Err
		} else if len(res.Data) > 0 {
			reply["data"] = json.RawMessage(res.Data)
		}
		writeLine(conn, reply)
	}
}

func writeLine(conn net.Conn, v any) {
	data, _ := json.Marshal(v)
	conn.Write(append(data, '\n'))
}
