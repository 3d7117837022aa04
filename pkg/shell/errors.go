package shell

import (
	"errors"
	"fmt"
)

// ErrInterrupted is returned when the caller was interrupted while a child
// process was running. The interrupt has already been forwarded to the child.
var ErrInterrupted = errors.New("interrupted")

// SpawnError reports that a program could not be started at all.
type SpawnError struct {
	Program string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("cannot run %s: %v", e.Program, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExitError reports a child process that exited with a nonzero status.
// It is only produced by RunOrError; Run leaves the status to the caller.
type ExitError struct {
	Argv   []string
	Result *Result
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Argv[0], e.Result.ExitCode)
}
