package ops

import (
	"bytes"
	"context"
	"errors"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/bulkops/internal/bulk"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("exec tests need a POSIX shell")
	}
}

func TestExpand(t *testing.T) {
	args := []string{"curl", "-X", "DELETE", "https://api.example.com/jobs/{}", "--data", "id={}&force=1"}
	got := Expand(args, "42")
	assert.Equal(t, []string{"curl", "-X", "DELETE", "https://api.example.com/jobs/42", "--data", "id=42&force=1"}, got)
	assert.Equal(t, "https://api.example.com/jobs/{}", args[3], "input is not modified")
}

func TestExec_TemplateErrors(t *testing.T) {
	_, err := Exec("   ", ExecOptions{})
	require.ErrorIs(t, err, ErrEmptyCommand)

	_, err = Exec(`echo "unterminated`, ExecOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing command template")
}

func TestExec_Run(t *testing.T) {
	skipWithoutShell(t)

	t.Run("Placeholder", func(t *testing.T) {
		op, err := Exec(`echo "candidate {}"`, ExecOptions{})
		require.NoError(t, err)

		out, err := op(context.Background(), "c-17")
		require.NoError(t, err)
		assert.Equal(t, "candidate c-17", out)
	})

	t.Run("AppendItem", func(t *testing.T) {
		op, err := Exec("echo archived", ExecOptions{AppendItem: true})
		require.NoError(t, err)

		out, err := op(context.Background(), "job-3")
		require.NoError(t, err)
		assert.Equal(t, "archived job-3", out)
	})

	t.Run("ItemIsNotShellExpanded", func(t *testing.T) {
		op, err := Exec("echo {}", ExecOptions{})
		require.NoError(t, err)

		out, err := op(context.Background(), "$(whoami);ls")
		require.NoError(t, err)
		assert.Equal(t, "$(whoami);ls", out)
	})

	t.Run("NonZeroExit", func(t *testing.T) {
		op, err := Exec(`sh -c 'echo "no such record: $0" >&2; exit 3' {}`, ExecOptions{})
		require.NoError(t, err)

		_, err = op(context.Background(), "app-9")
		require.Error(t, err)

		var execErr *ExecError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, 3, execErr.ExitCode)
		assert.Equal(t, "no such record: app-9", execErr.Stderr)
		assert.Equal(t, "exit status 3: no such record: app-9", err.Error())
	})

	t.Run("LongStderrKeepsRunes", func(t *testing.T) {
		op, err := Exec(`sh -c 'i=0; while [ $i -lt 600 ]; do printf "é"; i=$((i+1)); done >&2; exit 1' {}`, ExecOptions{})
		require.NoError(t, err)

		_, err = op(context.Background(), "x")
		var execErr *ExecError
		require.ErrorAs(t, err, &execErr)
		assert.True(t, utf8.ValidString(execErr.Stderr))
		assert.True(t, strings.HasSuffix(execErr.Stderr, "..."))
		assert.LessOrEqual(t, ansi.StringWidth(execErr.Stderr), maxStderrInError)
	})

	t.Run("Env", func(t *testing.T) {
		op, err := Exec(`sh -c 'echo "$GREETING $0"' {}`, ExecOptions{
			Env: []string{"GREETING=hello", "PATH=" + os.Getenv("PATH")},
		})
		require.NoError(t, err)

		out, err := op(context.Background(), "req-5")
		require.NoError(t, err)
		assert.Equal(t, "hello req-5", out)
	})

	t.Run("MissingBinary", func(t *testing.T) {
		op, err := Exec("definitely-not-a-real-binary-xyz {}", ExecOptions{})
		require.NoError(t, err)

		_, err = op(context.Background(), "1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "running definitely-not-a-real-binary-xyz")
	})

	t.Run("WorkingDir", func(t *testing.T) {
		dir := t.TempDir()
		op, err := Exec("pwd", ExecOptions{Dir: dir})
		require.NoError(t, err)

		out, err := op(context.Background(), "x")
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(out, dir[strings.LastIndex(dir, "/"):]))
	})
}

func TestExec_WithRunner(t *testing.T) {
	skipWithoutShell(t)

	op, err := Exec(`sh -c 'test "$0" != bad' {}`, ExecOptions{})
	require.NoError(t, err)

	results, err := bulk.RunParallel(context.Background(), []string{"a", "bad", "c"}, op, bulk.Config[string]{})
	require.NoError(t, err)
	assert.Equal(t, bulk.Summary{Total: 3, Succeeded: 2, Failed: 1, SuccessRate: 66.67}, bulk.Summarize(results))
	assert.Equal(t, "exit status 1", results[1].Err.Message)
}

func TestWithTimeout(t *testing.T) {
	slow := func(ctx context.Context, _ int) (int, error) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Second):
			return 1, nil
		}
	}

	_, err := WithTimeout(slow, 10*time.Millisecond)(context.Background(), 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	fast := func(context.Context, int) (int, error) { return 7, nil }
	v, err := WithTimeout(fast, time.Second)(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	unchanged := WithTimeout(fast, 0)
	v, err = unchanged(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestWithRateLimit(t *testing.T) {
	op := func(context.Context, int) (int, error) { return 1, nil }

	assert.Nil(t, NewLimiter(0))

	limited := WithRateLimit(op, NewLimiter(50))
	start := time.Now()
	for range 4 {
		_, err := limited(context.Background(), 0)
		require.NoError(t, err)
	}
	// Burst of one, then three waits of 20ms each.
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	t.Run("CancelledWait", func(t *testing.T) {
		limiter := NewLimiter(0.001)
		require.True(t, limiter.Allow())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := WithRateLimit(op, limiter)(ctx, 0)
		require.Error(t, err)
	})

	t.Run("NilLimiter", func(t *testing.T) {
		v, err := WithRateLimit(op, nil)(context.Background(), 0)
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	})
}

func TestWithLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	op := func(_ context.Context, item string) (string, error) {
		if item == "bad" {
			return "", errors.New("rejected")
		}
		return item, nil
	}
	logged := WithLogging(op, logger, func(s string) string { return "item:" + s })

	_, err := logged(context.Background(), "good")
	require.NoError(t, err)
	_, err = logged(context.Background(), "bad")
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, `"item":"item:good"`)
	assert.Contains(t, out, `"message":"item succeeded"`)
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"error":"rejected"`)
}
