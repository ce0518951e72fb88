package main

import (
	"context"
	"time"

	"github.com/b/mpv-grid/pkg/wall"
)

const pollInterval = time.Second

// runHeadless is the control thread without a terminal. Polls run on their own
// goroutine; only one is in flight at a time and its result is applied here.
func runHeadless(ctx context.Context, a *app) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	polled := make(chan []wall.Status, 1)
	inFlight := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if inFlight || !a.wall.Running() {
				continue
			}
			inFlight = true
			targets := a.wall.Targets()
			go func() {
				var rows []wall.Status
				defer func() { polled <- rows }()
				defer recoverAndLog("poll")
				rows = wall.Poll(targets)
			}()
		case rows := <-polled:
			inFlight = false
			if rows != nil {
				a.applyPoll(rows)
			}
		case req := <-a.requests:
			req.reply <- a.handle(req.cmd)
		case <-a.reload:
			a.reloadConfig()
		case <-a.exited:
			a.allExited()
		}
	}
}
