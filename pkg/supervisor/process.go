package supervisor

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"

	"github.com/b/mpv-grid/pkg/grid"
)

// DefaultGrace is how long Terminate waits after SIGTERM before killing.
const DefaultGrace = 2 * time.Second

// Process is one running player.
type Process struct {
	cell         grid.Cell
	socket       string
	playlistFile string
	cmd          *exec.Cmd
	logger       *log.Logger

	done    chan struct{}
	exitErr error
	mu      sync.Mutex
	cleaned bool
}

func (p *Process) start() error {
	if err := p.cmd.Start(); err != nil {
		return err
	}
	go p.reap(nil)
	return nil
}

// startCaptured runs the player on a pty and logs its output line by line.
func (p *Process) startCaptured() error {
	tty, err := pty.Start(p.cmd)
	if err != nil {
		return err
	}
	go func() {
		scanner := bufio.NewScanner(tty)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				p.logger.Debug("player", "cell", p.cell, "out", line)
			}
		}
	}()
	go p.reap(tty)
	return nil
}

func (p *Process) reap(tty *os.File) {
	p.exitErr = p.cmd.Wait()
	if tty != nil {
		tty.Close()
	}
	close(p.done)
}

func (p *Process) Cell() grid.Cell      { return p.cell }
func (p *Process) SocketPath() string   { return p.socket }
func (p *Process) PlaylistFile() string { return p.playlistFile }

func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Alive reports whether the process has not exited yet.
func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the process exits and returns its exit error.
func (p *Process) Wait() error {
	<-p.done
	return p.exitErr
}

// Terminate sends SIGTERM, waits up to grace, then kills. The socket and playlist are
// removed afterwards. Calling it again is a no-op.
func (p *Process) Terminate(grace time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cleaned {
		return nil
	}
	if grace <= 0 {
		grace = DefaultGrace
	}

	var errs []error
	if p.Alive() && p.cmd.Process != nil {
		if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, fmt.Errorf("sigterm: %w", err))
		}
		select {
		case <-p.done:
		case <-time.After(grace):
			p.logger.Warn("player ignored SIGTERM, killing", "cell", p.cell, "pid", p.PID())
			if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				errs = append(errs, fmt.Errorf("kill: %w", err))
			}
			select {
			case <-p.done:
			case <-time.After(grace):
				errs = append(errs, fmt.Errorf("pid %d did not exit after kill", p.PID()))
			}
		}
	}

	for _, path := range []string{p.socket, p.playlistFile} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	p.cleaned = true
	return errors.Join(errs...)
}
