// mpv-grid-broadcast tells every running grid player to advance or reshuffle.
// The per-wall input bindings call it through the generated wrapper script.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/b/mpv-grid/pkg/broadcast"
	"github.com/b/mpv-grid/pkg/paths"
)

func main() {
	fs := pflag.NewFlagSet("mpv-grid-broadcast", pflag.ContinueOnError)
	glob := fs.String("glob", "", "socket glob (default $"+paths.SocketGlobEnv+" or every wall)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, broadcast.Usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, broadcast.Usage)
		os.Exit(2)
	}
	os.Exit(broadcast.Run(fs.Arg(0), *glob, os.Stdout, os.Stderr))
}
