// Package perf writes timer lines for slow paths when MPV_GRID_PERF=1.
package perf

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// LogPath is where timer lines go.
const LogPath = "/tmp/mpv-grid-perf.log"

var (
	logger   *log.Logger
	initOnce sync.Once
)

func sink() *log.Logger {
	initOnce.Do(func() {
		if os.Getenv("MPV_GRID_PERF") != "1" {
			return
		}
		f, err := os.OpenFile(LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return
		}
		logger = newLogger(f)
	})
	return logger
}

func newLogger(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Formatter:       log.LogfmtFormatter,
	})
}

// Timer measures one named operation.
type Timer struct {
	name   string
	fields []any
	start  time.Time
}

// Start begins timing name. kv pairs are written with the result.
func Start(name string, kv ...any) *Timer {
	return &Timer{name: name, fields: kv, start: time.Now()}
}

// Stop returns the elapsed time and logs it when tracing is on.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if l := sink(); l != nil {
		l.Info(t.name, append([]any{"elapsed", elapsed}, t.fields...)...)
	}
	return elapsed
}
