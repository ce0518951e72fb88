package daemon

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ClientInfo tracks a subscribed status watcher
type ClientInfo struct {
	Conn      net.Conn
	Connected time.Time
}

// Server is the wall's control socket
type Server struct {
	socketPath  string
	listener    net.Listener
	subscribers map[string]*ClientInfo
	subsMu      sync.RWMutex
	done        chan struct{}
	stopOnce    sync.Once
	writeMu     sync.Mutex
	logger      *log.Logger

	// Callback for commands - runs on the connection goroutine, so it must
	// hand the work to the control thread itself
	OnCommand func(cmd CommandPayload) ResultPayload

	// Callback for new subscribers; the returned status is sent right away
	OnSubscribe func(clientID string) *StatusPayload
}

// NewServer creates a server for socketPath
func NewServer(socketPath string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		socketPath:  socketPath,
		subscribers: make(map[string]*ClientInfo),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Start begins listening for client connections
func (s *Server) Start() error {
	// Wall ids are unique per run, so anything at this path is stale
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	s.listener = listener

	go s.acceptLoop()
	return nil
}

// Stop shuts down the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			s.listener.Close()
		}
		s.subsMu.Lock()
		for id, client := range s.subscribers {
			client.Conn.Close()
			delete(s.subscribers, id)
		}
		s.subsMu.Unlock()
		os.Remove(s.socketPath)
	})
}

// ClientCount returns the number of status subscribers
func (s *Server) ClientCount() int {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	return len(s.subscribers)
}

// GetSocketPath returns the socket path
func (s *Server) GetSocketPath() string {
	return s.socketPath
}

// acceptLoop handles incoming connections
func (s *Server) acceptLoop() {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				continue
			}
		}

		go s.handleClient(conn)
	}
}

// handleClient processes messages from a client
func (s *Server) handleClient(conn net.Conn) {
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("control client panic", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4*1024), 256*1024)
	var clientID string

	for scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			s.sendMessage(conn, Message{Type: MsgResult, Payload: ResultPayload{Error: "malformed message"}})
			continue
		}

		switch msg.Type {
		case MsgCommand:
			var cmd CommandPayload
			if err := decodePayload(msg.Payload, &cmd); err != nil {
				s.sendMessage(conn, Message{Type: MsgResult, Payload: ResultPayload{Error: err.Error()}})
				continue
			}
			s.sendMessage(conn, Message{Type: MsgResult, Payload: s.dispatch(cmd)})

		case MsgSubscribe:
			clientID = msg.ClientID
			if clientID == "" {
				clientID = fmt.Sprintf("watch-%p", conn)
			}
			s.subsMu.Lock()
			s.subscribers[clientID] = &ClientInfo{Conn: conn, Connected: time.Now()}
			s.subsMu.Unlock()
			if s.OnSubscribe != nil {
				if st := s.OnSubscribe(clientID); st != nil {
					s.sendMessage(conn, Message{Type: MsgStatus, Payload: st})
				}
			}

		case MsgUnsubscribe:
			s.removeSubscriber(clientID)
			return

		case MsgPing:
			s.sendMessage(conn, Message{Type: MsgPong})
		}
	}

	// Client disconnected
	if clientID != "" {
		s.removeSubscriber(clientID)
	}
}

func (s *Server) dispatch(cmd CommandPayload) ResultPayload {
	if err := cmd.Validate(); err != nil {
		return ResultPayload{Error: err.Error()}
	}
	if s.OnCommand == nil {
		return ResultPayload{Error: "wall not accepting commands"}
	}
	return s.OnCommand(cmd)
}

func (s *Server) removeSubscriber(clientID string) {
	s.subsMu.Lock()
	delete(s.subscribers, clientID)
	s.subsMu.Unlock()
}

// BroadcastStatus pushes status to every subscriber, dropping the ones that fail
func (s *Server) BroadcastStatus(status StatusPayload) {
	s.subsMu.RLock()
	targets := make(map[string]net.Conn, len(s.subscribers))
	for id, client := range s.subscribers {
		targets[id] = client.Conn
	}
	s.subsMu.RUnlock()

	for id, conn := range targets {
		if err := s.sendMessage(conn, Message{Type: MsgStatus, Payload: status}); err != nil {
			s.logger.Debug("dropping status subscriber", "client", id, "err", err)
			s.removeSubscriber(id)
			conn.Close()
		}
	}
}

// sendMessage sends a message to a client
func (s *Server) sendMessage(conn net.Conn, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, err = conn.Write(append(data, '\n'))
	return err
}
