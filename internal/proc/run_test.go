package proc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRun_Success(t *testing.T) {
	var r Runner
	res, err := r.Run(context.Background(), Config{Argv: []string{"echo", "hello"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if got := res.StdoutText(); got != "hello\n" {
		t.Errorf("StdoutText = %q, want %q", got, "hello\n")
	}
	if len(res.Stderr) != 0 {
		t.Errorf("Stderr = %q, want empty", res.Stderr)
	}
	if res.RunID == "" {
		t.Error("RunID is empty")
	}
}

func TestRun_StderrCaptured(t *testing.T) {
	var r Runner
	res, err := r.Run(context.Background(), Config{Argv: []string{"sh", "-c", "echo oops 1>&2"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := res.StderrText(); got != "oops\n" {
		t.Errorf("StderrText = %q, want %q", got, "oops\n")
	}
	if len(res.Stdout) != 0 {
		t.Errorf("Stdout = %q, want empty", res.Stdout)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	var r Runner
	_, err := r.Run(context.Background(), Config{Argv: []string{"sh", "-c", "exit 1"}})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error = %v, want *ExitError", err)
	}
	if exitErr.Result.ExitCode != 1 {
		t.Errorf("Result.ExitCode = %d, want 1", exitErr.Result.ExitCode)
	}
	if !strings.Contains(err.Error(), "sh -c") {
		t.Errorf("error = %q, want to include the command line", err)
	}
}

func TestRun_FailOK(t *testing.T) {
	var r Runner
	res, err := r.Run(context.Background(), Config{Argv: []string{"sh", "-c", "exit 1"}, FailOK: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", res.ExitCode)
	}
}

func TestRun_StdinFeed(t *testing.T) {
	var r Runner
	res, err := r.Run(context.Background(), Config{
		Argv:  []string{"cat"},
		Stdin: strings.NewReader("abc"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := res.StdoutText(); got != "abc" {
		t.Errorf("StdoutText = %q, want %q", got, "abc")
	}
}

func TestRun_NoStdinClosesSink(t *testing.T) {
	// cat with no input must terminate because the sink is closed.
	var r Runner
	res, err := r.Run(context.Background(), Config{Argv: []string{"cat"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Stdout) != 0 {
		t.Errorf("Stdout = %q, want empty", res.Stdout)
	}
}

func TestRun_BinaryNotFound(t *testing.T) {
	var r Runner
	_, err := r.Run(context.Background(), Config{Argv: []string{"nonexistent-binary-xyz-123"}})
	var launchErr *LaunchError
	if !errors.As(err, &launchErr) {
		t.Fatalf("error = %v, want *LaunchError", err)
	}
	if !strings.Contains(err.Error(), "nonexistent-binary-xyz-123") {
		t.Errorf("error = %q, want to mention the binary name", err)
	}
}

func TestRun_EmptyArgv(t *testing.T) {
	var r Runner
	_, err := r.Run(context.Background(), Config{})
	var launchErr *LaunchError
	if !errors.As(err, &launchErr) {
		t.Fatalf("error = %v, want *LaunchError", err)
	}
}

func TestRun_WorkingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "workdir")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	var r Runner
	res, err := r.Run(context.Background(), Config{Argv: []string{"pwd"}, Dir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.StdoutText(), "workdir") {
		t.Errorf("StdoutText = %q, want to contain 'workdir'", res.StdoutText())
	}
}

func TestRun_EnvReplace(t *testing.T) {
	inherit := false
	var r Runner
	res, err := r.Run(context.Background(), Config{
		Argv:       []string{"env"},
		Env:        map[string]string{"SIPHON_TEST": "on"},
		InheritEnv: &inherit,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := res.StdoutText(); got != "SIPHON_TEST=on\n" {
		t.Errorf("StdoutText = %q, want only the override", got)
	}
}

func TestRun_EnvInheritMerge(t *testing.T) {
	r := Runner{
		Environ: func() []string { return []string{"A=1", "B=2"} },
	}
	res, err := r.Run(context.Background(), Config{
		Argv: []string{"env"},
		Env:  map[string]string{"B": "3"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := res.StdoutText(); got != "A=1\nB=3\n" {
		t.Errorf("StdoutText = %q, want merged environment with override", got)
	}
}

func TestRun_Tee(t *testing.T) {
	var out, errw bytes.Buffer
	r := Runner{Stdout: &out, Stderr: &errw}
	res, err := r.Run(context.Background(), Config{
		Argv: []string{"sh", "-c", "echo live; echo side 1>&2"},
		Tee:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != res.StdoutText() {
		t.Errorf("teed stdout = %q, captured = %q", out.String(), res.StdoutText())
	}
	if errw.String() != res.StderrText() {
		t.Errorf("teed stderr = %q, captured = %q", errw.String(), res.StderrText())
	}
}

func TestRun_NoTeeByDefault(t *testing.T) {
	var out bytes.Buffer
	r := Runner{Stdout: &out}
	_, err := r.Run(context.Background(), Config{Argv: []string{"echo", "quiet"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("tee destination got %q without Tee", out.String())
	}
}

func TestRun_CombinedProperties(t *testing.T) {
	script := "for i in 1 2 3 4 5; do echo out$i; echo err$i 1>&2; done"
	var r Runner
	res, err := r.Run(context.Background(), Config{Argv: []string{"sh", "-c", script}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Combined) != len(res.Stdout)+len(res.Stderr) {
		t.Errorf("len(Combined) = %d, want %d+%d",
			len(res.Combined), len(res.Stdout), len(res.Stderr))
	}
	if !isSubsequence(res.Stdout, res.Combined) {
		t.Error("Stdout is not an order-preserving subsequence of Combined")
	}
	if !isSubsequence(res.Stderr, res.Combined) {
		t.Error("Stderr is not an order-preserving subsequence of Combined")
	}
}

// isSubsequence reports whether every byte of sub appears in seq in the
// same relative order.
func isSubsequence(sub, seq []byte) bool {
	j := 0
	for i := 0; i < len(seq) && j < len(sub); i++ {
		if seq[i] == sub[j] {
			j++
		}
	}
	return j == len(sub)
}

// --- fake spawner ---

type fakeSpawner struct {
	handle Handle

	argv []string
	dir  string
	env  []string
}

func (s *fakeSpawner) Spawn(_ context.Context, argv []string, dir string, env []string) (Handle, error) {
	s.argv, s.dir, s.env = argv, dir, env
	return s.handle, nil
}

type fakeHandle struct {
	stdout io.Reader
	stderr io.Reader
	stdin  io.WriteCloser
	wait   func() (int, error)
}

func (h *fakeHandle) Stdout() io.Reader     { return h.stdout }
func (h *fakeHandle) Stderr() io.Reader     { return h.stderr }
func (h *fakeHandle) Stdin() io.WriteCloser { return h.stdin }
func (h *fakeHandle) Wait() (int, error)    { return h.wait() }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// The exit-code future may resolve before the streams close. The run
// must still block until every stream has been fully drained, so output
// flushed around exit is never lost.
func TestRun_WaitsForStreamsAfterExit(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		time.Sleep(50 * time.Millisecond)
		_, _ = pw.Write([]byte("late bytes"))
		_ = pw.Close()
	}()

	spawner := &fakeSpawner{handle: &fakeHandle{
		stdout: pr,
		stderr: strings.NewReader(""),
		stdin:  nopWriteCloser{io.Discard},
		wait:   func() (int, error) { return 0, nil }, // exit already known
	}}

	r := Runner{Spawner: spawner}
	res, err := r.Run(context.Background(), Config{Argv: []string{"fake"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := res.StdoutText(); got != "late bytes" {
		t.Errorf("StdoutText = %q, want %q (output after exit signal)", got, "late bytes")
	}
}

func TestRun_ResolvesDirAndEnvBeforeSpawn(t *testing.T) {
	spawner := &fakeSpawner{handle: &fakeHandle{
		stdout: strings.NewReader(""),
		stderr: strings.NewReader(""),
		stdin:  nopWriteCloser{io.Discard},
		wait:   func() (int, error) { return 0, nil },
	}}
	inherit := false
	r := Runner{Spawner: spawner}
	_, err := r.Run(context.Background(), Config{
		Argv:       []string{"fake", "arg"},
		Dir:        ".",
		Env:        map[string]string{"Z": "26", "A": "1"},
		InheritEnv: &inherit,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filepath.IsAbs(spawner.dir) {
		t.Errorf("dir = %q, want absolute", spawner.dir)
	}
	want := []string{"A=1", "Z=26"}
	if len(spawner.env) != len(want) || spawner.env[0] != want[0] || spawner.env[1] != want[1] {
		t.Errorf("env = %v, want %v (sorted)", spawner.env, want)
	}
}

func TestRun_WaitFault(t *testing.T) {
	spawner := &fakeSpawner{handle: &fakeHandle{
		stdout: strings.NewReader(""),
		stderr: strings.NewReader(""),
		stdin:  nopWriteCloser{io.Discard},
		wait:   func() (int, error) { return -1, errors.New("invocation fault") },
	}}
	r := Runner{Spawner: spawner}
	_, err := r.Run(context.Background(), Config{Argv: []string{"fake"}})
	var fault *FaultError
	if !errors.As(err, &fault) {
		t.Fatalf("error = %v, want *FaultError", err)
	}
}
