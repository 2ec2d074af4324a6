package dns

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultHelperTimeout bounds the time a helper program may run.
const DefaultHelperTimeout = time.Second

// helper is an external program which applies the resolver config on our behalf.
type helper struct {
	path    string
	timeout time.Duration
}

func (h helper) available() bool {
	fi, err := os.Stat(h.path)
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular() && fi.Mode().Perm()&0o111 != 0
}

// run executes the helper with args, writing stdin to its standard input.
// It returns ErrNotApplicable if the helper is not installed, or a *HelperError
// if it fails or does not finish in time.
func (h helper) run(args []string, stdin []byte) error {
	if !h.available() {
		return ErrNotApplicable
	}
	timeout := h.timeout
	if timeout <= 0 {
		timeout = DefaultHelperTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, h.path, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	// Do not wait forever for grandchildren holding the output pipe.
	cmd.WaitDelay = timeout
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	herr := &HelperError{Helper: cmd.String(), Output: strings.TrimSpace(string(out)), Err: err}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		herr.Status = "timed out after " + timeout.String()
		return herr
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		herr.ExitCode = ee.ExitCode()
		if !ee.Exited() {
			herr.Status = ee.ProcessState.String()
		}
		return herr
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
		return ErrNotApplicable
	}
	return herr
}
