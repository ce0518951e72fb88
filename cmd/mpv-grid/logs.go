package main

import (
	"io"
	"os"
	"runtime/debug"

	"github.com/charmbracelet/log"

	"github.com/b/mpv-grid/pkg/paths"
)

var (
	eventLog = log.Default()
	crashLog = log.Default()
)

// initLogs opens the wall's event and crash logs. In the panel nothing may reach the
// terminal, so quiet keeps events out of stderr.
func initLogs(wallID string, debugMode, quiet bool) (closeLogs func()) {
	var files []*os.File
	open := func(kind string) io.Writer {
		f, err := os.OpenFile(paths.LogPath(wallID, kind), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil
		}
		files = append(files, f)
		return f
	}

	eventLog = log.NewWithOptions(logWriter(open("events"), os.Stderr, true, quiet), log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Formatter:       log.LogfmtFormatter,
	})
	if debugMode {
		eventLog.SetLevel(log.DebugLevel)
	}
	log.SetDefault(eventLog)

	crashLog = log.NewWithOptions(logWriter(open("crash"), os.Stderr, false, quiet), log.Options{ReportTimestamp: true})

	return func() {
		for _, f := range files {
			f.Close()
		}
	}
}

// logWriter sends a log to file, mirrored to stderr when mirror is set. Without a
// file the log falls back to stderr unless quiet.
func logWriter(file, stderr io.Writer, mirror, quiet bool) io.Writer {
	switch {
	case file == nil && quiet:
		return io.Discard
	case file == nil:
		return stderr
	case mirror && !quiet:
		return io.MultiWriter(file, stderr)
	}
	return file
}

func logCrash(where string, r interface{}) {
	crashLog.Error("=== CRASH ===", "in", where, "panic", r)
	crashLog.Print(string(debug.Stack()))
	eventLog.Error("panic recovered", "in", where, "panic", r)
}

func recoverAndLog(where string) {
	if r := recover(); r != nil {
		logCrash(where, r)
	}
}

// crashExit logs a panic in run and turns it into exit status 1.
func crashExit(code *int) {
	if r := recover(); r != nil {
		logCrash("main", r)
		*code = 1
	}
}
