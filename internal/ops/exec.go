// Package ops provides bulk.Operation constructors and decorators used by the
// bulkops command line.
package ops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/kballard/go-shellquote"

	"github.com/rshade/bulkops/internal/bulk"
)

// Placeholder is replaced by the item in every argument of a command template.
const Placeholder = "{}"

// maxStderrInError bounds the display width of stderr copied into an item's error.
const maxStderrInError = 512

// Errors returned while building an exec operation.
var (
	ErrEmptyCommand = errors.New("command template is empty")
)

// ExecOptions tunes how commands are run.
type ExecOptions struct {
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env, if non-nil, replaces the process environment.
	Env []string
	// AppendItem passes the item as a trailing argument when the template has
	// no placeholder.
	AppendItem bool
}

// ExecError describes a command that exited unsuccessfully.
type ExecError struct {
	Item     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("exit status %d: %s", e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("exit status %d", e.ExitCode)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Exec builds an operation that runs the command template once per item.
// The template is split with POSIX shell quoting rules; no shell is invoked.
// A successful run yields the command's trimmed stdout.
func Exec(template string, opts ExecOptions) (bulk.Operation[string, string], error) {
	args, err := shellquote.Split(template)
	if err != nil {
		return nil, fmt.Errorf("parsing command template: %w", err)
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}

	hasPlaceholder := strings.Contains(template, Placeholder)

	return func(ctx context.Context, item string) (string, error) {
		argv := Expand(args, item)
		if !hasPlaceholder && opts.AppendItem {
			argv = append(argv, item)
		}

		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Dir = opts.Dir
		if opts.Env != nil {
			cmd.Env = opts.Env
		}

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if runErr := cmd.Run(); runErr != nil {
			var exitErr *exec.ExitError
			if errors.As(runErr, &exitErr) {
				return "", &ExecError{
					Item:     item,
					ExitCode: exitErr.ExitCode(),
					Stderr:   ansi.Truncate(strings.TrimSpace(stderr.String()), maxStderrInError, "..."),
					Err:      runErr,
				}
			}
			return "", fmt.Errorf("running %s: %w", argv[0], runErr)
		}

		return strings.TrimSpace(stdout.String()), nil
	}, nil
}

// Expand returns a copy of args with every placeholder replaced by item.
func Expand(args []string, item string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = strings.ReplaceAll(arg, Placeholder, item)
	}
	return out
}
