package proc

import (
	"context"
	"errors"
	"io"
	"os/exec"
)

// Spawner starts an OS process and exposes it as a Handle. It is the
// injection point for the process primitive: tests substitute a fake,
// production code uses OSSpawner.
type Spawner interface {
	// Spawn starts argv[0] with arguments argv[1:] in dir with the given
	// environment (key=value entries). On failure no handle is returned
	// and the error is a *LaunchError.
	Spawn(ctx context.Context, argv []string, dir string, env []string) (Handle, error)
}

// Handle is a live subprocess: its three standard streams plus the
// exit-code future. A Handle belongs to exactly one Run and is discarded
// after completion.
type Handle interface {
	// Stdout is the process's standard output. It reaches EOF when the
	// process closes the stream (usually at exit).
	Stdout() io.Reader
	// Stderr is the process's standard error.
	Stderr() io.Reader
	// Stdin is the process's standard input. It must be closed exactly
	// once, even when nothing is written.
	Stdin() io.WriteCloser
	// Wait blocks until the process terminates and returns its exit code.
	// It resolves exactly once. A non-nil error with exit code -1 means
	// the process failed in a way that produced no exit status.
	Wait() (int, error)
}

// OSSpawner spawns real processes via os/exec. Cancelling the spawn
// context kills the process; the engine itself applies no timeout policy.
type OSSpawner struct{}

// Spawn implements Spawner.
func (OSSpawner) Spawn(ctx context.Context, argv []string, dir string, env []string) (Handle, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &LaunchError{Argv: argv, Dir: dir, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, &LaunchError{Argv: argv, Dir: dir, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return nil, &LaunchError{Argv: argv, Dir: dir, Err: err}
	}

	// A failed Start closes both ends of the pipes itself.
	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Argv: argv, Dir: dir, Err: err}
	}

	return &osHandle{cmd: cmd, stdout: stdout, stderr: stderr, stdin: stdin}, nil
}

type osHandle struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser
	stdin  io.WriteCloser
}

func (h *osHandle) Stdout() io.Reader     { return h.stdout }
func (h *osHandle) Stderr() io.Reader     { return h.stderr }
func (h *osHandle) Stdin() io.WriteCloser { return h.stdin }

// Wait returns the exit code once the process terminates. The caller must
// have drained stdout and stderr first; os/exec tears the pipes down here.
func (h *osHandle) Wait() (int, error) {
	err := h.cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, err
	}
	return 0, nil
}
