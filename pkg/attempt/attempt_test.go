package attempt

import (
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
)

func TestBatch_ContinuesAfterFailures(t *testing.T) {
	b := New("stop", log.New(io.Discard))
	errBoom := errors.New("boom")
	ran := 0

	b.Do("first", func() error { ran++; return errBoom })
	b.Do("second", func() error { ran++; panic("kaput") })
	b.Do("third", func() error { ran++; return nil })

	if ran != 3 {
		t.Errorf("ran = %d, want 3", ran)
	}
	if b.Failed() != 2 {
		t.Errorf("Failed() = %d, want 2", b.Failed())
	}
	if !errors.Is(b.Err(), errBoom) {
		t.Errorf("Err() = %v, want it to wrap errBoom", b.Err())
	}
}

func TestBatch_NoFailures(t *testing.T) {
	b := New("ok", nil)
	b.Do("noop", func() error { return nil })
	if err := b.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}
