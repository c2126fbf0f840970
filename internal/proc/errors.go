package proc

import (
	"fmt"
	"strings"
)

// LaunchError reports that the subprocess could not be started: missing
// executable, empty or malformed argv, permission problems. Nothing was
// captured and no handle exists.
type LaunchError struct {
	Argv []string
	Dir  string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %s in %s: %v", quoteArgv(e.Argv), e.Dir, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ExitError reports a non-zero exit from a run that did not opt into
// tolerating failure. Result carries everything that was captured so
// callers can diagnose without re-running.
type ExitError struct {
	Argv   []string
	Dir    string
	Result *Result
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s in %s: exit code %d", quoteArgv(e.Argv), e.Dir, e.Result.ExitCode)
}

// FaultError reports a failure of the process primitive distinct from a
// clean non-zero exit: a drain read error, or Wait failing without an
// exit status.
type FaultError struct {
	Argv []string
	Dir  string
	Err  error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("running %s in %s: %v", quoteArgv(e.Argv), e.Dir, e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

// quoteArgv renders a command line for error messages.
func quoteArgv(argv []string) string {
	if len(argv) == 0 {
		return "(empty command)"
	}
	quoted := make([]string, len(argv))
	for i, a := range argv {
		if strings.ContainsAny(a, " \t\"") {
			quoted[i] = fmt.Sprintf("%q", a)
		} else {
			quoted[i] = a
		}
	}
	return strings.Join(quoted, " ")
}
