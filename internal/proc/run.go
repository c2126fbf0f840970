// Package proc launches a subprocess and captures its output. One Run
// drives the whole lifecycle: spawn, concurrent drain of stdout and
// stderr, an optional stdin feed, and a join that releases the caller
// only after the process has exited and every stream has been fully
// drained.
package proc

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Runner executes subprocesses. The zero value is usable: it spawns real
// OS processes, inherits the parent environment from os.Environ, and tees
// to the controlling process's stdout/stderr when asked to.
type Runner struct {
	// Spawner starts processes. Defaults to OSSpawner.
	Spawner Spawner
	// Environ supplies the parent environment for merging. Defaults to
	// os.Environ. Injected so tests can fix the environment.
	Environ func() []string
	// Stdout and Stderr are the tee destinations when Config.Tee is set.
	// Default to os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
}

// Config describes one run. It is read once at the start of Run and
// never re-resolved mid-run.
type Config struct {
	// Argv is the command line. Argv[0] is the binary, resolved via PATH.
	// Must be non-empty.
	Argv []string
	// Dir is the working directory. Empty means the caller's current
	// directory. Resolved to an absolute path before spawning.
	Dir string
	// Env holds environment overrides.
	Env map[string]string
	// InheritEnv controls whether Env is merged over the parent
	// environment (overrides win) or replaces it entirely. Nil means true.
	InheritEnv *bool
	// Tee forwards output live to the Runner's Stdout/Stderr while
	// still capturing it.
	Tee bool
	// FailOK treats a non-zero exit code as success.
	FailOK bool
	// Stdin, when non-nil, is streamed to the process's standard input;
	// the input sink is closed when it reaches EOF. When nil the sink is
	// closed immediately.
	Stdin io.Reader
	// Decoder renders captured bytes as text. Defaults to DefaultDecoder.
	Decoder Decoder
}

// Run executes the configured command and blocks until the process has
// exited and all of its output has been captured. A non-zero exit with
// FailOK unset returns an *ExitError still carrying the full Result.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Result, error) {
	if len(cfg.Argv) == 0 || cfg.Argv[0] == "" {
		return nil, &LaunchError{Argv: cfg.Argv, Dir: cfg.Dir, Err: errors.New("empty command line")}
	}

	dir, err := resolveDir(cfg.Dir)
	if err != nil {
		return nil, &LaunchError{Argv: cfg.Argv, Dir: cfg.Dir, Err: err}
	}

	environ := os.Environ
	if r.Environ != nil {
		environ = r.Environ
	}
	inherit := cfg.InheritEnv == nil || *cfg.InheritEnv
	env := resolveEnv(environ, cfg.Env, inherit)

	spawner := r.Spawner
	if spawner == nil {
		spawner = OSSpawner{}
	}

	start := time.Now()
	handle, err := spawner.Spawn(ctx, cfg.Argv, dir, env)
	if err != nil {
		return nil, err
	}

	teeOut, teeErr := io.Discard, io.Discard
	if cfg.Tee {
		teeOut, teeErr = r.teeWriters()
	}

	bufs := &capture{}
	var g errgroup.Group
	g.Go(func() error { return drain(handle.Stdout(), bufs.appendStdout, teeOut) })
	g.Go(func() error { return drain(handle.Stderr(), bufs.appendStderr, teeErr) })
	g.Go(func() error { return feed(handle.Stdin(), cfg.Stdin) })

	// The exit code is read only after every drain and the stdin feed
	// have finished. The process may keep flushing output after stdin
	// closes, and on some platforms the exit signal resolves before the
	// stream-close notifications; waiting on the conjunction is what
	// makes the captured buffers complete.
	drainErr := g.Wait()
	code, waitErr := handle.Wait()
	if drainErr != nil {
		return nil, &FaultError{Argv: cfg.Argv, Dir: dir, Err: drainErr}
	}
	if waitErr != nil {
		return nil, &FaultError{Argv: cfg.Argv, Dir: dir, Err: waitErr}
	}

	result := newResult(uuid.New().String(), code, bufs, cfg.Decoder, time.Since(start))
	if code != 0 && !cfg.FailOK {
		return nil, &ExitError{Argv: cfg.Argv, Dir: dir, Result: result}
	}
	return result, nil
}

func (r *Runner) teeWriters() (io.Writer, io.Writer) {
	out, errw := r.Stdout, r.Stderr
	if out == nil {
		out = os.Stdout
	}
	if errw == nil {
		errw = os.Stderr
	}
	return out, errw
}

// capture accumulates the three output buffers. The mutex serialises
// appends so that a chunk from one stream is never split by a chunk from
// the other inside the combined buffer.
type capture struct {
	mu       sync.Mutex
	stdout   []byte
	stderr   []byte
	combined []byte
}

func (c *capture) appendStdout(p []byte) {
	c.mu.Lock()
	c.stdout = append(c.stdout, p...)
	c.combined = append(c.combined, p...)
	c.mu.Unlock()
}

func (c *capture) appendStderr(p []byte) {
	c.mu.Lock()
	c.stderr = append(c.stderr, p...)
	c.combined = append(c.combined, p...)
	c.mu.Unlock()
}

// drain reads src until EOF, handing each chunk to sink and mirroring it
// to tee. Tee write failures do not abort the run; capture is the
// primary destination.
func drain(src io.Reader, sink func([]byte), tee io.Writer) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			sink(buf[:n])
			_, _ = tee.Write(buf[:n])
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// feed streams input to the process's stdin sink and closes the sink
// when the input ends. A nil input closes the sink immediately so that
// programs reading stdin terminate. A process that stops reading before
// the input is exhausted is not an error.
func feed(sink io.WriteCloser, input io.Reader) error {
	if input == nil {
		return sink.Close()
	}
	_, err := io.Copy(sink, input)
	closeErr := sink.Close()
	if err != nil && !errors.Is(err, syscall.EPIPE) && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return closeErr
}

// resolveDir makes the working directory absolute, defaulting to the
// caller's current directory.
func resolveDir(dir string) (string, error) {
	if dir == "" {
		return os.Getwd()
	}
	return filepath.Abs(dir)
}

// resolveEnv builds the child environment. With inherit set, overrides
// are merged over the parent environment and win on conflict; otherwise
// the overrides alone form the environment. Entries are sorted so a
// given configuration always produces the same environment.
func resolveEnv(environ func() []string, overrides map[string]string, inherit bool) []string {
	merged := make(map[string]string)
	if inherit {
		for _, kv := range environ() {
			if i := strings.IndexByte(kv, '='); i >= 0 {
				merged[kv[:i]] = kv[i+1:]
			}
		}
	}
	for k, v := range overrides {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+merged[k])
	}
	return env
}
