package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Sink receives events. Emit must not block the control thread for long.
type Sink interface {
	Emit(Event)
	Close() error
}

// Record is the JSON line written for every event.
type Record struct {
	Kind  string    `json:"kind"`
	Time  time.Time `json:"time"`
	Event Event     `json:"event"`
}

func encode(e Event) ([]byte, error) {
	return json.Marshal(Record{Kind: e.Kind(), Time: e.When(), Event: e})
}

// LogSink logs each event and appends it to a JSON-lines file.
type LogSink struct {
	logger *log.Logger

	mu   sync.Mutex
	file *os.File
}

// NewLogSink opens path for appending. An empty path only logs.
func NewLogSink(logger *log.Logger, path string) (*LogSink, error) {
	if logger == nil {
		logger = log.Default()
	}
	s := &LogSink{logger: logger}
	if path == "" {
		return s, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create stats dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open stats file: %w", err)
	}
	s.file = f
	return s, nil
}

func (s *LogSink) Emit(e Event) {
	s.logger.Info(e.Kind(), e.Fields()...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return
	}
	line, err := encode(e)
	if err != nil {
		s.logger.Warn("encode stats event", "kind", e.Kind(), "err", err)
		return
	}
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		s.logger.Warn("write stats event", "err", err)
	}
}

func (s *LogSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Multi fans every event out to several sinks.
type Multi []Sink

func (m Multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops everything.
type Discard struct{}

func (Discard) Emit(Event)   {}
func (Discard) Close() error { return nil }

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfKind returns the recorded events of one kind.
func (r *Recorder) OfKind(kind string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}
