// Package history provides persistence and retrieval of completed run
// records so past output can be inspected without re-running commands.
package history

import (
	"time"

	"github.com/deixis/siphon/internal/proc"
)

// Record is the stored form of one completed run.
type Record struct {
	ID        string            `json:"id"`
	Argv      []string          `json:"argv"`
	Dir       string            `json:"dir"`
	Env       map[string]string `json:"env,omitempty"`
	ExitCode  int               `json:"exit_code"`
	Stdout    string            `json:"stdout,omitempty"`
	Stderr    string            `json:"stderr,omitempty"`
	Combined  string            `json:"combined,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
}

// FromResult builds a Record from a completed run.
func FromResult(res *proc.Result, cfg proc.Config, dir string, started time.Time) *Record {
	return &Record{
		ID:        res.RunID,
		Argv:      cfg.Argv,
		Dir:       dir,
		Env:       cfg.Env,
		ExitCode:  res.ExitCode,
		Stdout:    res.StdoutText(),
		Stderr:    res.StderrText(),
		Combined:  res.CombinedText(),
		StartedAt: started,
		Duration:  res.Duration,
	}
}

// Stream returns the named captured stream: "stdout", "stderr" or
// "combined". Unknown names return the combined stream.
func (r *Record) Stream(name string) string {
	switch name {
	case "stdout":
		return r.Stdout
	case "stderr":
		return r.Stderr
	default:
		return r.Combined
	}
}

// Store persists and retrieves run records.
type Store interface {
	Save(record *Record) error
	Load(runID string) (*Record, error)
	// List returns all stored records, newest first.
	List() ([]*Record, error)
}
