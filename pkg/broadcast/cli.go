package broadcast

import (
	"fmt"
	"io"
	"strings"
)

// Usage is the one-line synopsis of broadcast mode.
var Usage = fmt.Sprintf("usage: %s [--glob GLOB]", strings.Join(Actions, "|"))

// Run is the shared body of --broadcast and the standalone helper. It returns the exit
// code: 0 on delivery to any number of players, 2 on a bad action.
func Run(action, glob string, stdout, stderr io.Writer) int {
	n, err := Send(action, glob)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n%s\n", err, Usage)
		return 2
	}
	fmt.Fprintf(stdout, "Sent to %d instance(s)\n", n)
	return 0
}
