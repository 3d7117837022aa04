// Package shell spawns child processes and captures their output.
//
// A Runner starts the program named by argv[0] directly (no shell is
// involved), drains the child's stdout and stderr as data arrives and returns
// both streams together with the exit status. In interactive mode the output
// is also echoed to the caller's terminal and the caller's stdin is forwarded
// to the child.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"time"

	"compose-shim/pkg/log"
)

const defaultChunkSize = 64 * 1024

// Result is the outcome of a finished child process.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	// Stdin holds what was forwarded to the child in interactive mode.
	Stdin    []byte
	Duration time.Duration
}

// Success reports whether the child exited with status 0.
func (r *Result) Success() bool { return r.ExitCode == 0 }

// CombinedOutput returns stdout followed by stderr.
func (r *Result) CombinedOutput() []byte {
	out := make([]byte, 0, len(r.Stdout)+len(r.Stderr))
	out = append(out, r.Stdout...)
	return append(out, r.Stderr...)
}

// Executor runs a command line and captures its output. *Runner implements it.
type Executor interface {
	Run(ctx context.Context, argv []string, interactive bool) (*Result, error)
}

// Runner spawns child processes. The zero value is ready to use and runs
// children in the current directory with the current environment.
type Runner struct {
	// Dir is the child's working directory.
	Dir string
	// Env is appended to the current environment of the child.
	Env []string

	// Stdin, Stdout and Stderr are the caller-side streams used in
	// interactive mode. They default to the process's own streams.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// ChunkSize bounds a single read from a child stream.
	ChunkSize int

	notify func(c chan<- os.Signal)
	stop   func(c chan<- os.Signal)

	feedOnce sync.Once
	feed     *stdinFeed
}

// NewRunner returns a Runner working in dir.
func NewRunner(dir string) *Runner {
	return &Runner{Dir: dir}
}

type stream int

const (
	streamStdout stream = iota
	streamStderr
)

// chunk is a partial read from one child stream. A non-nil err marks the end
// of that stream.
type chunk struct {
	stream stream
	data   []byte
	err    error
}

// Run executes argv and blocks until the child has exited. A nonzero exit
// status is reported in the Result, not as an error. Errors are returned when
// the program cannot be spawned (*SpawnError), when the caller is interrupted
// (ErrInterrupted) or when ctx is done; in both of the latter cases SIGINT has
// been forwarded to the child.
func (r *Runner) Run(ctx context.Context, argv []string, interactive bool) (*Result, error) {
	if len(argv) == 0 {
		return nil, errors.New("shell: empty command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("shell: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("shell: stderr pipe: %w", err)
	}
	// A nil cmd.Stdin attaches the null device, so a non-interactive child
	// sees end-of-file on its first read.
	var stdin io.WriteCloser
	if interactive {
		if stdin, err = cmd.StdinPipe(); err != nil {
			return nil, fmt.Errorf("shell: stdin pipe: %w", err)
		}
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Program: argv[0], Err: err}
	}

	sigCh := make(chan os.Signal, 1)
	r.notifyFunc()(sigCh)
	defer r.stopFunc()(sigCh)

	done := make(chan struct{})
	defer close(done)

	size := r.chunkSize()
	chunks := make(chan chunk)
	go pump(stdout, streamStdout, size, chunks, done)
	go pump(stderr, streamStderr, size, chunks, done)

	var fwd *forwarder
	if interactive {
		fwd = newForwarder()
		defer fwd.stop()
		go fwd.run(r.stdinFeed(), stdin)
	}

	var outBuf, errBuf bytes.Buffer
	for open := 2; open > 0; {
		select {
		case c := <-chunks:
			if c.err != nil {
				if !errors.Is(c.err, io.EOF) && !errors.Is(c.err, os.ErrClosed) {
					log.Debug("child stream read failed", "program", argv[0], "error", c.err)
				}
				open--
				continue
			}
			r.collect(c, interactive, &outBuf, &errBuf)
		case sig := <-sigCh:
			r.abort(cmd, sig, true)
			return nil, fmt.Errorf("%s: %w", argv[0], ErrInterrupted)
		case <-ctx.Done():
			r.abort(cmd, os.Interrupt, true)
			return nil, fmt.Errorf("%s: %w", argv[0], ctx.Err())
		}
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-waitCh:
	case sig := <-sigCh:
		r.abort(cmd, sig, false)
		return nil, fmt.Errorf("%s: %w", argv[0], ErrInterrupted)
	case <-ctx.Done():
		r.abort(cmd, os.Interrupt, false)
		return nil, fmt.Errorf("%s: %w", argv[0], ctx.Err())
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("wait for %s: %w", argv[0], waitErr)
		}
	}

	res := &Result{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   outBuf.Bytes(),
		Stderr:   errBuf.Bytes(),
		Duration: time.Since(started),
	}
	if fwd != nil {
		// Wait has closed the child's stdin, so a pending write fails and
		// the forwarder returns promptly.
		fwd.stop()
		<-fwd.done
		res.Stdin = fwd.bytes()
	}
	return res, nil
}

// RunOrError is Run, with a nonzero exit status reported as *ExitError.
// The Result is returned alongside the ExitError.
func (r *Runner) RunOrError(ctx context.Context, argv []string, interactive bool) (*Result, error) {
	res, err := r.Run(ctx, argv, interactive)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return res, &ExitError{Argv: argv, Result: res}
	}
	return res, nil
}

func (r *Runner) collect(c chunk, interactive bool, outBuf, errBuf *bytes.Buffer) {
	switch c.stream {
	case streamStdout:
		outBuf.Write(c.data)
		if interactive {
			_, _ = r.stdout().Write(c.data)
		}
	case streamStderr:
		errBuf.Write(c.data)
		if interactive {
			_, _ = r.stderr().Write(c.data)
		}
	}
}

// abort forwards sig to the child. Failure to signal is ignored: the child
// may already be gone. When reap is set the child is waited for in the
// background so it does not linger as a zombie.
func (r *Runner) abort(cmd *exec.Cmd, sig os.Signal, reap bool) {
	if err := cmd.Process.Signal(sig); err != nil {
		log.Debug("failed to forward signal to child", "pid", cmd.Process.Pid, "signal", sig, "error", err)
	}
	if reap {
		go func() { _ = cmd.Wait() }()
	}
}

func pump(src io.Reader, s stream, size int, out chan<- chunk, done <-chan struct{}) {
	for {
		buf := make([]byte, size)
		n, err := src.Read(buf)
		if n > 0 {
			select {
			case out <- chunk{stream: s, data: buf[:n]}:
			case <-done:
				return
			}
		}
		if err != nil {
			select {
			case out <- chunk{stream: s, err: err}:
			case <-done:
			}
			return
		}
	}
}

// stdinFeed is the single reader of a Runner's stdin. It outlives the runs
// so that a read still pending when one child exits delivers its data to the
// next interactive child instead of dropping it.
type stdinFeed struct {
	chunks chan chunk

	mu      sync.Mutex
	pending []byte
	err     error
}

func newStdinFeed(src io.Reader, size int) *stdinFeed {
	f := &stdinFeed{chunks: make(chan chunk)}
	go func() {
		for {
			buf := make([]byte, size)
			n, err := src.Read(buf)
			if n > 0 {
				f.chunks <- chunk{data: buf[:n]}
			}
			if err != nil {
				f.chunks <- chunk{err: err}
				return
			}
		}
	}()
	return f
}

// next returns the next piece of input. stopped is set when stop was closed
// first; any data received at that point is kept for the next caller.
func (f *stdinFeed) next(stop <-chan struct{}) (data []byte, stopped bool, err error) {
	f.mu.Lock()
	if len(f.pending) > 0 {
		data, f.pending = f.pending, nil
		f.mu.Unlock()
		return data, false, nil
	}
	if f.err != nil {
		err = f.err
		f.mu.Unlock()
		return nil, false, err
	}
	f.mu.Unlock()

	select {
	case c := <-f.chunks:
		if c.err != nil {
			f.mu.Lock()
			f.err = c.err
			f.mu.Unlock()
			return nil, false, c.err
		}
		select {
		case <-stop:
			f.unread(c.data)
			return nil, true, nil
		default:
		}
		return c.data, false, nil
	case <-stop:
		return nil, true, nil
	}
}

// unread puts data back in front of the feed.
func (f *stdinFeed) unread(data []byte) {
	if len(data) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(bytes.Clone(data), f.pending...)
}

// forwarder copies input from the feed to one child and keeps what the child
// accepted. It closes the child's stdin when the feed reaches end-of-file and
// stops when the run ends.
type forwarder struct {
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}

	mu       sync.Mutex
	captured bytes.Buffer
}

func newForwarder() *forwarder {
	return &forwarder{quit: make(chan struct{}), done: make(chan struct{})}
}

func (f *forwarder) run(feed *stdinFeed, dst io.WriteCloser) {
	defer close(f.done)
	defer dst.Close()
	for {
		data, stopped, err := feed.next(f.quit)
		if stopped {
			return
		}
		if len(data) > 0 {
			n, werr := dst.Write(data)
			f.mu.Lock()
			f.captured.Write(data[:n])
			f.mu.Unlock()
			if werr != nil {
				feed.unread(data[n:])
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (f *forwarder) stop() {
	f.quitOnce.Do(func() { close(f.quit) })
}

func (f *forwarder) bytes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return bytes.Clone(f.captured.Bytes())
}

// stdinFeed starts reading the caller's stdin on first use.
func (r *Runner) stdinFeed() *stdinFeed {
	r.feedOnce.Do(func() { r.feed = newStdinFeed(r.stdin(), r.chunkSize()) })
	return r.feed
}

func (r *Runner) chunkSize() int {
	if r.ChunkSize > 0 {
		return r.ChunkSize
	}
	return defaultChunkSize
}

func (r *Runner) stdin() io.Reader {
	if r.Stdin != nil {
		return r.Stdin
	}
	return os.Stdin
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *Runner) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}

func (r *Runner) notifyFunc() func(chan<- os.Signal) {
	if r.notify != nil {
		return r.notify
	}
	return func(c chan<- os.Signal) { signal.Notify(c, os.Interrupt) }
}

func (r *Runner) stopFunc() func(chan<- os.Signal) {
	if r.stop != nil {
		return r.stop
	}
	return func(c chan<- os.Signal) { signal.Stop(c) }
}
