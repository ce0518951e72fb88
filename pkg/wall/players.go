package wall

import (
	"github.com/b/mpv-grid/pkg/grid"
	"github.com/b/mpv-grid/pkg/mpvipc"
	"github.com/b/mpv-grid/pkg/supervisor"
)

// Players spawns real mpv processes and talks to each over its IPC socket.
type Players struct {
	*supervisor.Supervisor
}

func (p Players) Spawn(spec supervisor.LaunchSpec) (*grid.Entry, error) {
	proc, err := p.Supervisor.Spawn(spec)
	if err != nil {
		return nil, err
	}
	return &grid.Entry{
		Cell:       spec.Cell,
		Proc:       proc,
		Player:     mpvipc.NewPlayer(mpvipc.NewClient(proc.SocketPath())),
		SocketPath: proc.SocketPath(),
		Playlist:   spec.Playlist,
		Surface:    spec.Surface,
	}, nil
}
