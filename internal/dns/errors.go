package dns

import (
	"errors"
	"fmt"
)

// ErrNotApplicable is returned by an OSConfigurator which can not work on
// this system, for example because its helper program is missing.
var ErrNotApplicable = errors.New("dns configurator not applicable")

// FileError records a failed file system operation while writing resolver state.
type FileError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("could not %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// HelperError records a helper program which ran but did not succeed.
type HelperError struct {
	Helper   string
	ExitCode int
	// Status is the process state, e.g "signal: killed", if the helper
	// did not exit normally.
	Status string
	Output string
	Err    error
}

func (e *HelperError) Error() string {
	switch {
	case e.Status != "":
		return fmt.Sprintf("running %s: %s: %s", e.Helper, e.Status, e.Output)
	case e.Err != nil && e.ExitCode == 0:
		return fmt.Sprintf("running %s: %v", e.Helper, e.Err)
	}
	return fmt.Sprintf("running %s: exit status %d: %s", e.Helper, e.ExitCode, e.Output)
}

func (e *HelperError) Unwrap() error { return e.Err }
