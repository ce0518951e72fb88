package supervisor

import (
	"context"
	"sync"
	"time"
)

// DefaultMonitorInterval is the liveness poll period.
const DefaultMonitorInterval = 2 * time.Second

// Liveness is anything that can report whether it still runs.
type Liveness interface {
	Alive() bool
}

// Monitor watches the tracked players and fires OnAllExited once when the last one is
// gone. Tracking a new set re-arms it.
type Monitor struct {
	Interval    time.Duration
	OnAllExited func()

	mu    sync.Mutex
	procs []Liveness
	fired bool
}

func NewMonitor(onAllExited func()) *Monitor {
	return &Monitor{Interval: DefaultMonitorInterval, OnAllExited: onAllExited}
}

func (m *Monitor) Track(p Liveness) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.procs = append(m.procs, p)
	m.fired = false
}

// Clear forgets every tracked process, as on a deliberate stop.
func (m *Monitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.procs = nil
	m.fired = false
}

// Check runs one poll and reports whether it fired.
func (m *Monitor) Check() bool {
	m.mu.Lock()
	if m.fired || len(m.procs) == 0 {
		m.mu.Unlock()
		return false
	}
	for _, p := range m.procs {
		if p.Alive() {
			m.mu.Unlock()
			return false
		}
	}
	m.fired = true
	cb := m.OnAllExited
	m.mu.Unlock()

	if cb != nil {
		cb()
	}
	return true
}

// Run polls until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	interval := m.Interval
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check()
		}
	}
}
