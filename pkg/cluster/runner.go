// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

package cluster

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Runner executes an external command and returns its stdout. Implementations
// must be non-interactive; stderr travels on the returned error. Injected so
// tests can substitute canned subprocess behavior.
type Runner func(ctx context.Context, timeout time.Duration, env []string, name string, arg ...string) ([]byte, error)

// ExecRunner runs commands through os/exec. Extra env entries are appended to
// the inherited environment.
func ExecRunner(ctx context.Context, timeout time.Duration, env []string, name string, arg ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, arg...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	return cmd.Output()
}

// flagRejected reports whether a command failed because it did not recognize
// an output-format flag. Some stripped-down kubectl builds reject "-o"; the
// caller then retries with tabular output.
func flagRejected(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(commandError(err))
	return strings.Contains(msg, "unknown shorthand flag") ||
		strings.Contains(msg, "unknown flag")
}

// commandError returns the error message including captured stderr when the
// error came from a non-zero exit.
func commandError(err error) string {
	if err == nil {
		return ""
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) && len(ee.Stderr) > 0 {
		return err.Error() + ": " + string(ee.Stderr)
	}
	return err.Error()
}
