package proc

import (
	"sync"
	"time"
)

// Decoder renders captured bytes as text. It must be pure: deterministic
// and free of side effects, never mutating its input.
type Decoder func([]byte) string

// DefaultDecoder interprets bytes as UTF-8 verbatim.
func DefaultDecoder(b []byte) string { return string(b) }

// Result is the consolidated outcome of one run. The byte slices are
// frozen at completion and must not be mutated. Result is safe to share
// across goroutines: the only post-construction writes are the lazily
// decoded text fields, each guarded by a sync.Once.
type Result struct {
	RunID    string        // unique identifier for this run
	ExitCode int           // process exit code
	Stdout   []byte        // captured stdout only
	Stderr   []byte        // captured stderr only
	Combined []byte        // both streams in arrival order
	Duration time.Duration // spawn to exit, including drain time

	decoder Decoder

	stdoutOnce   sync.Once
	stdoutText   string
	stderrOnce   sync.Once
	stderrText   string
	combinedOnce sync.Once
	combinedText string
}

func newResult(runID string, exitCode int, c *capture, dec Decoder, d time.Duration) *Result {
	if dec == nil {
		dec = DefaultDecoder
	}
	return &Result{
		RunID:    runID,
		ExitCode: exitCode,
		Stdout:   c.stdout,
		Stderr:   c.stderr,
		Combined: c.combined,
		Duration: d,
		decoder:  dec,
	}
}

// StdoutText decodes Stdout. The decode runs at most once; later calls
// return the cached string.
func (r *Result) StdoutText() string {
	r.stdoutOnce.Do(func() { r.stdoutText = r.decode(r.Stdout) })
	return r.stdoutText
}

// StderrText decodes Stderr, computed at most once.
func (r *Result) StderrText() string {
	r.stderrOnce.Do(func() { r.stderrText = r.decode(r.Stderr) })
	return r.stderrText
}

// CombinedText decodes Combined, computed at most once.
func (r *Result) CombinedText() string {
	r.combinedOnce.Do(func() { r.combinedText = r.decode(r.Combined) })
	return r.combinedText
}

// decode tolerates Results built as plain literals, e.g. in tests.
func (r *Result) decode(b []byte) string {
	if r.decoder == nil {
		return DefaultDecoder(b)
	}
	return r.decoder(b)
}
