package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sh(script string) []string {
	return []string{"/bin/sh", "-c", script}
}

func TestRunCapturesStdout(t *testing.T) {
	r := &Runner{}

	res, err := r.Run(context.Background(), sh(`printf 'hello\nworld\n'`), false)
	require.NoError(t, err)

	assert.Equal(t, 0, res.ExitCode)
	assert.True(t, res.Success())
	assert.Equal(t, "hello\nworld\n", string(res.Stdout))
	assert.Empty(t, res.Stderr)
	assert.Empty(t, res.Stdin)
}

func TestRunNonzeroExitIsNotAnError(t *testing.T) {
	r := &Runner{}

	res, err := r.Run(context.Background(), sh(`echo oops >&2; exit 2`), false)
	require.NoError(t, err)

	assert.Equal(t, 2, res.ExitCode)
	assert.False(t, res.Success())
	assert.Equal(t, "oops\n", string(res.Stderr))
	assert.Empty(t, res.Stdout)
}

func TestRunKeepsStreamsSeparate(t *testing.T) {
	r := &Runner{}

	res, err := r.Run(context.Background(), sh(`echo out1; echo err1 >&2; echo out2; echo err2 >&2`), false)
	require.NoError(t, err)

	assert.Equal(t, "out1\nout2\n", string(res.Stdout))
	assert.Equal(t, "err1\nerr2\n", string(res.Stderr))
	assert.Equal(t, "out1\nout2\nerr1\nerr2\n", string(res.CombinedOutput()))
}

func TestRunIsBinarySafe(t *testing.T) {
	r := &Runner{}

	res, err := r.Run(context.Background(), sh(`printf '\000\001\377'`), false)
	require.NoError(t, err)

	assert.Equal(t, []byte{0x00, 0x01, 0xff}, res.Stdout)
}

func TestRunAssemblesPartialReads(t *testing.T) {
	r := &Runner{ChunkSize: 7}

	res, err := r.Run(context.Background(), sh(`head -c 100000 /dev/zero`), false)
	require.NoError(t, err)

	assert.Len(t, res.Stdout, 100000)
}

func TestRunNonInteractiveClosesChildStdin(t *testing.T) {
	r := &Runner{Stdin: strings.NewReader("must not be read\n")}

	// cat would block forever if its stdin stayed open.
	res, err := r.Run(context.Background(), []string{"cat"}, false)
	require.NoError(t, err)

	assert.Equal(t, 0, res.ExitCode)
	assert.Empty(t, res.Stdout)
	assert.Empty(t, res.Stdin)
}

func TestRunInteractiveForwardsAndEchoes(t *testing.T) {
	var echoedOut, echoedErr bytes.Buffer
	r := &Runner{
		Stdin:  strings.NewReader("ping\n"),
		Stdout: &echoedOut,
		Stderr: &echoedErr,
	}

	res, err := r.Run(context.Background(), sh(`cat; echo done >&2`), true)
	require.NoError(t, err)

	assert.Equal(t, "ping\n", string(res.Stdout))
	assert.Equal(t, "done\n", string(res.Stderr))
	assert.Equal(t, "ping\n", string(res.Stdin))
	assert.Equal(t, "ping\n", echoedOut.String())
	assert.Equal(t, "done\n", echoedErr.String())
}

func TestRunInteractiveStdinSurvivesEarlierRun(t *testing.T) {
	stdinR, stdinW := io.Pipe()
	var echoed bytes.Buffer
	r := &Runner{Stdin: stdinR, Stdout: &echoed, Stderr: io.Discard}

	res, err := r.Run(context.Background(), sh(`true`), true)
	require.NoError(t, err)
	assert.Empty(t, res.Stdin)

	go func() {
		_, _ = stdinW.Write([]byte("second-input\n"))
		_ = stdinW.Close()
	}()

	res, err = r.Run(context.Background(), sh(`cat`), true)
	require.NoError(t, err)
	assert.Equal(t, "second-input\n", string(res.Stdout))
	assert.Equal(t, "second-input\n", string(res.Stdin))
	assert.Equal(t, "second-input\n", echoed.String())
}

func TestRunInteractiveAfterStdinEOF(t *testing.T) {
	r := &Runner{Stdin: strings.NewReader("once\n"), Stdout: io.Discard, Stderr: io.Discard}

	res, err := r.Run(context.Background(), sh(`cat`), true)
	require.NoError(t, err)
	assert.Equal(t, "once\n", string(res.Stdout))

	res, err = r.Run(context.Background(), sh(`cat`), true)
	require.NoError(t, err)
	assert.Empty(t, res.Stdout)
	assert.Empty(t, res.Stdin)
}

func TestRunUsesDirAndEnv(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	r := &Runner{Dir: dir, Env: []string{"COMPOSE_SHIM_TEST=yes"}}

	res, err := r.Run(context.Background(), sh(`pwd; echo "$COMPOSE_SHIM_TEST"`), false)
	require.NoError(t, err)

	assert.Equal(t, dir+"\nyes\n", string(res.Stdout))
}

func TestRunSpawnFailure(t *testing.T) {
	r := &Runner{}

	_, err := r.Run(context.Background(), []string{"compose-shim-no-such-program"}, false)
	require.Error(t, err)

	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, "compose-shim-no-such-program", spawnErr.Program)
	assert.ErrorIs(t, err, exec.ErrNotFound)
	assert.Contains(t, err.Error(), "compose-shim-no-such-program")
}

func TestRunEmptyCommand(t *testing.T) {
	_, err := (&Runner{}).Run(context.Background(), nil, false)
	assert.Error(t, err)
}

func TestRunContextCancelForwardsInterrupt(t *testing.T) {
	r := &Runner{}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	started := time.Now()
	_, err := r.Run(ctx, sh(`exec sleep 10`), false)
	require.Error(t, err)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestRunInterruptIsForwardedAndReturned(t *testing.T) {
	r := &Runner{
		notify: func(c chan<- os.Signal) {
			go func() {
				time.Sleep(100 * time.Millisecond)
				c <- os.Interrupt
			}()
		},
		stop: func(chan<- os.Signal) {},
	}

	_, err := r.Run(context.Background(), sh(`exec sleep 10`), false)
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrInterrupted))
}

func TestRunOrError(t *testing.T) {
	r := &Runner{}

	res, err := r.RunOrError(context.Background(), sh(`echo partial; exit 3`), false)
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Result.ExitCode)
	assert.Equal(t, "partial\n", string(res.Stdout))
	assert.Contains(t, err.Error(), "status 3")

	res, err = r.RunOrError(context.Background(), sh(`true`), false)
	require.NoError(t, err)
	assert.True(t, res.Success())
}
