package relay

import (
	"errors"
	"fmt"
)

var ErrOutputLimit = errors.New("relay: child output exceeds limit")

type SpawnError struct {
	Executable string
	Err        error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn child executable %s: %v", e.Executable, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// MalformedOutputError is reported when a child exits with an error code but
// its stdout is not valid JSON.
type MalformedOutputError struct {
	ExitCode int
	Output   string
	Err      error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("child exited with code %d and malformed error output: %v", e.ExitCode, e.Err)
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Err
}

type CrashError struct {
	State string
}

func (e *CrashError) Error() string {
	return fmt.Sprintf("child terminated abnormally: %s", e.State)
}
