package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/b/mpv-grid/pkg/daemon"
	"github.com/b/mpv-grid/pkg/wall"
)

const ctlUsage = "usage: mpv-grid ctl [--socket PATH] [--json] ACTION [ROW COL] [VALUE]\n       mpv-grid ctl [--socket PATH] --watch"

type ctlOptions struct {
	socket string
	json   bool
	watch  bool
	cmd    daemon.CommandPayload
}

func parseCtlArgs(args []string, stderr io.Writer) (*ctlOptions, error) {
	o := &ctlOptions{}
	fs := pflag.NewFlagSet("mpv-grid ctl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	// Flags end at ACTION so values like "-5" stay positional.
	fs.SetInterspersed(false)
	fs.StringVar(&o.socket, "socket", "", "control socket (default: the only running wall)")
	fs.BoolVar(&o.json, "json", false, "print the raw result as JSON")
	fs.BoolVar(&o.watch, "watch", false, "print every status push until interrupted")
	fs.Usage = func() {
		fmt.Fprintln(stderr, ctlUsage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	rest := fs.Args()
	if o.watch {
		if len(rest) > 0 {
			return nil, fmt.Errorf("--watch takes no action")
		}
		return o, nil
	}
	if len(rest) == 0 {
		return nil, fmt.Errorf("missing action")
	}
	o.cmd.Action, rest = rest[0], rest[1:]
	if daemon.NeedsCell(o.cmd.Action) {
		if len(rest) < 2 {
			return nil, fmt.Errorf("action %q needs ROW COL", o.cmd.Action)
		}
		row, err := strconv.Atoi(rest[0])
		if err != nil {
			return nil, fmt.Errorf("invalid row %q", rest[0])
		}
		col, err := strconv.Atoi(rest[1])
		if err != nil {
			return nil, fmt.Errorf("invalid col %q", rest[1])
		}
		o.cmd.Row, o.cmd.Col = row, col
		rest = rest[2:]
	}
	o.cmd.Value = strings.Join(rest, " ")
	if !daemon.TakesValue(o.cmd.Action) && o.cmd.Value != "" {
		return nil, fmt.Errorf("action %q takes no value", o.cmd.Action)
	}
	if err := o.cmd.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// resolveSocket picks the wall to talk to. With several walls running one must be named.
func resolveSocket(explicit string, found []string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	switch len(found) {
	case 0:
		return "", errors.New("no running wall found")
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%d walls running, pick one with --socket:\n  %s", len(found), strings.Join(found, "\n  "))
	}
}

func runCtl(args []string, stdout, stderr io.Writer) int {
	o, err := parseCtlArgs(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n%s\n", err, ctlUsage)
		return 2
	}
	socket, err := resolveSocket(o.socket, daemon.FindControlSockets())
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	if o.watch {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		err := daemon.Watch(ctx, socket, func(st daemon.StatusPayload) {
			if o.json {
				writeJSON(stdout, st)
				return
			}
			printStatus(stdout, st)
			fmt.Fprintln(stdout)
		})
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	res, err := daemon.Request(socket, o.cmd, daemon.DefaultRequestTimeout)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if o.json {
		writeJSON(stdout, res)
	} else if res.OK && res.Status != nil {
		printStatus(stdout, *res.Status)
	} else if res.OK {
		fmt.Fprintln(stdout, res.Message)
	}
	if !res.OK {
		fmt.Fprintf(stderr, "error: %s\n", res.Error)
		return 1
	}
	return 0
}

func writeJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func cellState(c daemon.CellStatus) string {
	switch {
	case !c.Alive:
		return "DEAD"
	case c.Paused:
		return "PAUSE"
	default:
		return "PLAY"
	}
}

func printStatus(w io.Writer, st daemon.StatusPayload) {
	fmt.Fprintf(w, "wall %s  %dx%d  %s\n", st.WallID, st.Rows, st.Cols, st.Mode)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range st.Cells {
		pct := ""
		s := wall.Status{Pos: c.Pos, Duration: c.Duration}
		if p := s.Percent(); p >= 0 {
			pct = fmt.Sprintf("%d%%", p)
		}
		flags := ""
		if c.Loop {
			flags += "loop "
		}
		if c.Muted {
			flags += "muted"
		}
		name := ""
		if c.Path != "" {
			name = filepath.Base(c.Path)
		}
		fmt.Fprintf(tw, "(%d,%d)\t%s\t%s/%s\t%s\t%s\t%s\n",
			c.Row, c.Col, cellState(c),
			wall.FormatClock(c.Pos), wall.FormatClock(c.Duration),
			pct, strings.TrimSpace(flags), name)
	}
	tw.Flush()
}
