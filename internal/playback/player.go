package playback

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/mattn/go-shellwords"
)

// Player is the playback collaborator. Play blocks until the audio at path
// has finished playing or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, path string) error
}

// execPlayer shells out to an external audio player for each chunk. The file
// path is appended as the final argument.
type execPlayer struct {
	cmd []string
}

// NewExecPlayer builds a Player from a shell-style command line such as
// "ffplay -nodisp -autoexit -loglevel quiet".
func NewExecPlayer(command string) (Player, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("playback: parse player command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("playback: player command empty")
	}
	return &execPlayer{cmd: args}, nil
}

func (e *execPlayer) Play(ctx context.Context, path string) error {
	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	args = append(args, path)
	cmd := exec.CommandContext(ctx, base, args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("playback: player exited: %w", err)
	}
	return nil
}
