// Package attempt runs best-effort batches: every step runs, failures are logged and collected.
package attempt

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/charmbracelet/log"
)

// Batch collects the failures of independent steps.
type Batch struct {
	name   string
	logger *log.Logger
	errs   []error
}

// New starts a batch. A nil logger uses log.Default().
func New(name string, logger *log.Logger) *Batch {
	if logger == nil {
		logger = log.Default()
	}
	return &Batch{name: name, logger: logger}
}

// Do runs fn. A returned error or a panic is recorded and the batch continues.
func (b *Batch) Do(step string, fn func() error) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				b.logger.Debug("attempt panic", "batch", b.name, "step", step, "stack", string(debug.Stack()))
			}
		}()
		return fn()
	}()
	if err != nil {
		b.logger.Warn("step failed", "batch", b.name, "step", step, "err", err)
		b.errs = append(b.errs, fmt.Errorf("%s: %w", step, err))
	}
}

// Failed returns how many steps failed so far.
func (b *Batch) Failed() int {
	return len(b.errs)
}

// Err joins every collected failure, or returns nil.
func (b *Batch) Err() error {
	return errors.Join(b.errs...)
}
