package docker_compose

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compose-shim/internal/domain/model"
	"compose-shim/pkg/metrics"
	"compose-shim/pkg/psformat"
	"compose-shim/pkg/shell"
)

type call struct {
	argv        []string
	interactive bool
}

// fakeExecutor records every command line and answers with respond.
type fakeExecutor struct {
	mu      sync.Mutex
	calls   []call
	respond func(argv []string) (*shell.Result, error)
}

func (f *fakeExecutor) Run(_ context.Context, argv []string, interactive bool) (*shell.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{argv: append([]string(nil), argv...), interactive: interactive})
	f.mu.Unlock()

	if f.respond == nil {
		return &shell.Result{}, nil
	}
	return f.respond(argv)
}

func (f *fakeExecutor) argv(i int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i].argv
}

func ok(stdout string) (*shell.Result, error) {
	return &shell.Result{Stdout: []byte(stdout)}, nil
}

func newTestSession(t *testing.T, exec *fakeExecutor, opts Options) *Session {
	t.Helper()
	opts.Executor = exec
	if opts.Project == "" {
		opts.Project = "proj"
	}
	return NewSession(opts)
}

func compose(args ...string) []string {
	return append([]string{"docker", "compose", "--project-name=proj"}, args...)
}

func TestComposeArgvWithoutProject(t *testing.T) {
	exec := &fakeExecutor{}
	s := NewSession(Options{Executor: exec})

	require.NoError(t, s.Pause(context.Background(), "web"))
	assert.Equal(t, []string{"docker", "compose", "pause", "web"}, exec.argv(0))
}

func TestComposeArgvOrder(t *testing.T) {
	exec := &fakeExecutor{}
	s := newTestSession(t, exec, Options{Files: []string{"a.yml", "b.yml"}})

	require.NoError(t, s.Up(context.Background(), UpOptions{Detached: true}, "web", "db"))

	assert.Equal(t, []string{
		"docker", "compose", "--file=a.yml", "--file=b.yml", "--project-name=proj",
		"up", "-d", "web", "db",
	}, exec.argv(0))
}

func TestCustomComposeCommand(t *testing.T) {
	exec := &fakeExecutor{}
	s := NewSession(Options{ComposeCommand: []string{"docker-compose"}, Executor: exec})

	require.NoError(t, s.Pause(context.Background(), "web"))
	assert.Equal(t, []string{"docker-compose", "pause", "web"}, exec.argv(0))
}

func TestWithFilesLeavesOriginal(t *testing.T) {
	s := newTestSession(t, &fakeExecutor{}, Options{Files: []string{"a.yml"}})
	other := s.WithFiles([]string{"b.yml"})

	assert.Equal(t, []string{"a.yml"}, s.Files())
	assert.Equal(t, []string{"b.yml"}, other.Files())
	assert.Equal(t, s.Project(), other.Project())
}

func TestExecuteFailure(t *testing.T) {
	tests := []struct {
		name   string
		result *shell.Result
		detail string
	}{
		{
			name:   "first non-empty line",
			result: &shell.Result{ExitCode: 1, Stderr: []byte("\n\x1b[31mERROR: boom\x1b[0m\nmore\n")},
			detail: "ERROR: boom",
		},
		{
			name:   "stdout before stderr",
			result: &shell.Result{ExitCode: 2, Stdout: []byte("  \nfrom stdout\n"), Stderr: []byte("from stderr\n")},
			detail: "from stdout",
		},
		{
			name:   "no output",
			result: &shell.Result{ExitCode: 3},
			detail: "(no output)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{respond: func([]string) (*shell.Result, error) { return tt.result, nil }}
			s := newTestSession(t, exec, Options{})

			err := s.Stop(context.Background(), StopOptions{})

			var e *Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, "stop", e.Subcommand)
			assert.Equal(t, tt.result.ExitCode, e.Status)
			assert.Equal(t, tt.detail, e.Detail)
		})
	}
}

func TestErrorMessage(t *testing.T) {
	e := &Error{Subcommand: "up", Status: 1, Detail: "no such service: x"}
	assert.Equal(t, "'up' failed with status 1: no such service: x", e.Error())
}

func TestSpawnErrorPropagates(t *testing.T) {
	spawn := &shell.SpawnError{Program: "docker", Err: exec.ErrNotFound}
	fake := &fakeExecutor{respond: func([]string) (*shell.Result, error) { return nil, spawn }}
	s := newTestSession(t, fake, Options{})

	_, err := s.PS(context.Background())
	assert.ErrorIs(t, err, exec.ErrNotFound)
}

func TestPS(t *testing.T) {
	record := "(abc) (nginx:1.25) (1kB (virtual 187MB)) (Up 3 minutes) (proj-web-1) " +
		"(com.docker.compose.service=web) (0.0.0.0:32769->80/tcp)"

	exec := &fakeExecutor{respond: func(argv []string) (*shell.Result, error) {
		switch {
		case argv[1] == "compose":
			return ok("\x1b[0mabc\ngone\n\n")
		case strings.Contains(strings.Join(argv, " "), "id=abc"):
			return ok(record + "\n")
		default:
			return ok("")
		}
	}}
	s := newTestSession(t, exec, Options{})

	containers, err := s.PS(context.Background(), "web")
	require.NoError(t, err)

	assert.Equal(t, compose("ps", "-q", "web"), exec.argv(0))
	assert.Equal(t, []string{
		"docker", "ps", "-a", "-f", "id=abc", "--no-trunc", "--format=" + psformat.Format,
	}, exec.argv(1))

	require.Len(t, containers, 1)
	c := containers[0]
	assert.Equal(t, "abc", c.ID)
	assert.Equal(t, int64(1024), c.Size)
	assert.True(t, c.IsRunning())
	assert.Equal(t, "web", c.Service())
	assert.Equal(t, []string{"0.0.0.0:32769->80/tcp"}, c.Ports)
}

func TestPSNoContainers(t *testing.T) {
	exec := &fakeExecutor{respond: func([]string) (*shell.Result, error) { return ok("\n") }}
	s := newTestSession(t, exec, Options{})

	containers, err := s.PS(context.Background())
	require.NoError(t, err)
	assert.Empty(t, containers)
	assert.NotNil(t, containers)
	assert.Len(t, exec.calls, 1)
}

func TestPSBadRecord(t *testing.T) {
	exec := &fakeExecutor{respond: func(argv []string) (*shell.Result, error) {
		if argv[1] == "compose" {
			return ok("abc\n")
		}
		return ok("(abc) (img) (1 parsec) (Up) () () ()\n")
	}}
	s := newTestSession(t, exec, Options{})

	_, err := s.PS(context.Background())
	var de *model.DecodeError
	assert.True(t, errors.As(err, &de))
}

func TestPort(t *testing.T) {
	tests := []struct {
		name     string
		opts     model.PortOptions
		result   *shell.Result
		wantArgv []string
		wantAddr string
		wantOK   bool
	}{
		{
			name:     "published",
			opts:     model.DefaultPortOptions(),
			result:   &shell.Result{Stdout: []byte("0.0.0.0:32769\n")},
			wantArgv: compose("port", "web", "80"),
			wantAddr: "0.0.0.0:32769",
			wantOK:   true,
		},
		{
			name:     "non-default protocol and index",
			opts:     model.PortOptions{Protocol: "udp", Index: 2},
			result:   &shell.Result{Stdout: []byte("0.0.0.0:5353")},
			wantArgv: compose("port", "--protocol=udp", "--index=2", "web", "80"),
			wantAddr: "0.0.0.0:5353",
			wantOK:   true,
		},
		{
			name:     "zero options behave as defaults",
			opts:     model.PortOptions{},
			result:   &shell.Result{Stdout: []byte("\n")},
			wantArgv: compose("port", "web", "80"),
		},
		{
			name:     "unbound port",
			opts:     model.DefaultPortOptions(),
			result:   &shell.Result{Stdout: []byte(":0\n")},
			wantArgv: compose("port", "web", "80"),
		},
		{
			name:     "no container",
			opts:     model.DefaultPortOptions(),
			result:   &shell.Result{ExitCode: 1, Stderr: []byte("no container found for web_1\n")},
			wantArgv: compose("port", "web", "80"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{respond: func([]string) (*shell.Result, error) { return tt.result, nil }}
			s := newTestSession(t, exec, Options{})

			addr, published, err := s.Port(context.Background(), "web", "80", tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantArgv, exec.argv(0))
			assert.Equal(t, tt.wantAddr, addr)
			assert.Equal(t, tt.wantOK, published)
		})
	}
}

func TestPortOtherFailure(t *testing.T) {
	exec := &fakeExecutor{respond: func([]string) (*shell.Result, error) {
		return &shell.Result{ExitCode: 1, Stderr: []byte("no such service: web")}, nil
	}}
	s := newTestSession(t, exec, Options{})

	_, _, err := s.Port(context.Background(), "web", "80", model.DefaultPortOptions())
	var e *Error
	assert.True(t, errors.As(err, &e))
}

func TestWaitPort(t *testing.T) {
	attempts := 0
	exec := &fakeExecutor{respond: func([]string) (*shell.Result, error) {
		attempts++
		if attempts < 3 {
			return ok("")
		}
		return ok("127.0.0.1:8080")
	}}
	s := newTestSession(t, exec, Options{})

	addr, err := s.WaitPort(context.Background(), "web", "80", model.DefaultPortOptions())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", addr)
	assert.Equal(t, 3, attempts)
}

func TestWaitPortCancelled(t *testing.T) {
	exec := &fakeExecutor{respond: func([]string) (*shell.Result, error) { return ok("") }}
	s := newTestSession(t, exec, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.WaitPort(ctx, "web", "80", model.DefaultPortOptions())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCommandFlags(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		run  func(s *Session) error
		want []string
	}{
		{
			name: "up with default timeout",
			run: func(s *Session) error {
				return s.Up(ctx, UpOptions{Detached: true, Timeout: 10, NoDeps: true}, "web")
			},
			want: compose("up", "-d", "--no-deps", "web"),
		},
		{
			name: "up with all flags",
			run: func(s *Session) error {
				return s.Up(ctx, UpOptions{
					Timeout: 30, Build: true, ForceRecreate: true, RemoveOrphans: true,
					AbortOnContainerExit: true, ExitCodeFrom: "tests",
				})
			},
			want: compose("up", "--timeout=30", "--build", "--force-recreate", "--remove-orphans",
				"--abort-on-container-exit", "--exit-code-from=tests"),
		},
		{
			name: "down",
			run: func(s *Session) error {
				return s.Down(ctx, DownOptions{RemoveVolumes: true, RemoveOrphans: true, RMI: "local", Timeout: 5})
			},
			want: compose("down", "-v", "--remove-orphans", "--rmi=local", "--timeout=5"),
		},
		{
			name: "restart",
			run:  func(s *Session) error { return s.Restart(ctx, StopOptions{Timeout: 1}, "db") },
			want: compose("restart", "--timeout=1", "db"),
		},
		{
			name: "kill with default signal",
			run:  func(s *Session) error { return s.Kill(ctx, KillOptions{Signal: "KILL"}) },
			want: compose("kill"),
		},
		{
			name: "kill with empty signal",
			run:  func(s *Session) error { return s.Kill(ctx, KillOptions{}) },
			want: compose("kill"),
		},
		{
			name: "kill with signal",
			run:  func(s *Session) error { return s.Kill(ctx, KillOptions{Signal: "HUP"}, "web") },
			want: compose("kill", "-s", "HUP", "web"),
		},
		{
			name: "unpause",
			run:  func(s *Session) error { return s.Unpause(ctx) },
			want: compose("unpause"),
		},
		{
			name: "rm",
			run:  func(s *Session) error { return s.Rm(ctx, RmOptions{Force: true, Stop: true}, "web") },
			want: compose("rm", "-f", "-s", "web"),
		},
		{
			name: "scale sorted by service",
			run: func(s *Session) error {
				return s.Scale(ctx, map[string]int{"web": 3, "db": 1}, ScaleOptions{})
			},
			want: compose("scale", "db=1", "web=3"),
		},
		{
			name: "run",
			run: func(s *Session) error {
				_, err := s.Run(ctx, RunOptions{
					Rm: true, NoTTY: true, User: "root", Workdir: "/app",
					Env:     map[string]string{"B": "2", "A": "1"},
					Volumes: []string{"/src:/app", "/tmp:/tmp"},
				}, "web", "rake", "test")
				return err
			},
			want: compose("run", "--rm", "-T", "-u", "root", "-w", "/app",
				"-e", "A=1", "-e", "B=2", "-v", "/src:/app", "-v", "/tmp:/tmp", "web", "rake", "test"),
		},
		{
			name: "build",
			run:  func(s *Session) error { return s.Build(ctx, BuildOptions{NoCache: true, Pull: true}) },
			want: compose("build", "--no-cache", "--pull"),
		},
		{
			name: "logs",
			run: func(s *Session) error {
				_, err := s.Logs(ctx, LogsOptions{Timestamps: true, Tail: "all", NoColor: true}, "web")
				return err
			},
			want: compose("logs", "-t", "--no-color", "web"),
		},
		{
			name: "logs with empty tail",
			run: func(s *Session) error {
				_, err := s.Logs(ctx, LogsOptions{})
				return err
			},
			want: compose("logs"),
		},
		{
			name: "run without optional strings",
			run: func(s *Session) error {
				_, err := s.Run(ctx, RunOptions{Detached: true}, "web")
				return err
			},
			want: compose("run", "-d", "web"),
		},
		{
			name: "down without rmi",
			run:  func(s *Session) error { return s.Down(ctx, DownOptions{RemoveOrphans: true}) },
			want: compose("down", "--remove-orphans"),
		},
		{
			name: "logs with tail",
			run: func(s *Session) error {
				_, err := s.Logs(ctx, LogsOptions{Tail: "50"})
				return err
			},
			want: compose("logs", "--tail=50"),
		},
		{
			name: "pull",
			run:  func(s *Session) error { return s.Pull(ctx, PullOptions{Quiet: true, IgnorePullFailures: true}) },
			want: compose("pull", "-q", "--ignore-pull-failures"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{}
			s := newTestSession(t, exec, Options{})

			require.NoError(t, tt.run(s))
			assert.Equal(t, tt.want, exec.argv(0))
		})
	}
}

func TestScaleRejectsBadCounts(t *testing.T) {
	s := newTestSession(t, &fakeExecutor{}, Options{})

	assert.Error(t, s.Scale(context.Background(), nil, ScaleOptions{}))
	assert.Error(t, s.Scale(context.Background(), map[string]int{"web": -1}, ScaleOptions{}))
}

func TestInteractiveCommands(t *testing.T) {
	exec := &fakeExecutor{}
	s := newTestSession(t, exec, Options{Interactive: true})
	ctx := context.Background()

	require.NoError(t, s.Up(ctx, UpOptions{}))
	require.NoError(t, s.Up(ctx, UpOptions{Detached: true}))
	_, err := s.Logs(ctx, LogsOptions{Follow: true})
	require.NoError(t, err)
	require.NoError(t, s.Stop(ctx, StopOptions{}))

	assert.True(t, exec.calls[0].interactive)
	assert.False(t, exec.calls[1].interactive)
	assert.True(t, exec.calls[2].interactive)
	assert.False(t, exec.calls[3].interactive)
}

func TestVersion(t *testing.T) {
	out := "docker-compose version 1.29.2, build 5becea4c\n" +
		"docker-py version: 5.0.0\n" +
		"CPython version: 3.7.10\n"
	exec := &fakeExecutor{respond: func([]string) (*shell.Result, error) { return ok(out) }}
	s := newTestSession(t, exec, Options{Files: []string{"a.yml"}})

	info, err := s.Version(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, []string{"docker", "compose", "version"}, exec.argv(0))
	assert.Equal(t, map[string]string{
		"docker-compose version": "1.29.2, build 5becea4c",
		"docker-py version":      "5.0.0",
		"CPython version":        "3.7.10",
	}, info)
}

func TestVersionShort(t *testing.T) {
	exec := &fakeExecutor{respond: func([]string) (*shell.Result, error) { return ok("2.27.0\n") }}
	s := newTestSession(t, exec, Options{})

	info, err := s.Version(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"docker", "compose", "version", "--short"}, exec.argv(0))
	assert.Equal(t, map[string]string{"version": "2.27.0"}, info)
}

func TestNeedsSubstitution(t *testing.T) {
	tests := []struct {
		banner string
		want   bool
	}{
		{"docker-compose version 1.4.2, build b0a1bc1\n", true},
		{"docker-compose version 1.29.2, build 5becea4c\n", false},
		{"Docker Compose version v2.27.0\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.banner, func(t *testing.T) {
			exec := &fakeExecutor{respond: func([]string) (*shell.Result, error) { return ok(tt.banner) }}
			s := newTestSession(t, exec, Options{})

			got, err := s.NeedsSubstitution(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfig(t *testing.T) {
	exec := &fakeExecutor{respond: func([]string) (*shell.Result, error) {
		return ok("services:\n  web:\n    image: nginx\n")
	}}
	s := newTestSession(t, exec, Options{})

	doc, err := s.Config(context.Background())
	require.NoError(t, err)
	assert.Equal(t, compose("config"), exec.argv(0))
	assert.Contains(t, doc, "services")
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollectorWith(reg, reg)
	exec := &fakeExecutor{respond: func(argv []string) (*shell.Result, error) {
		if argv[len(argv)-1] == "bad" {
			return &shell.Result{ExitCode: 1}, nil
		}
		return ok("")
	}}
	s := newTestSession(t, exec, Options{Metrics: collector})

	require.NoError(t, s.Pause(context.Background(), "web"))
	assert.Error(t, s.Pause(context.Background(), "bad"))

	expected := `
# HELP compose_shim_invocations_total Total number of external commands run, by outcome
# TYPE compose_shim_invocations_total counter
compose_shim_invocations_total{outcome="failed",program="docker",subcommand="pause"} 1
compose_shim_invocations_total{outcome="ok",program="docker",subcommand="pause"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "compose_shim_invocations_total"))
}

func TestSubstitutingSession(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docker-compose.yml"),
		[]byte("services:\n  web:\n    image: ${IMAGE}:${TAG:-latest}\n"), 0o600))

	s := newTestSession(t, &fakeExecutor{}, Options{Dir: dir})
	ss := NewSubstitutingSession(s, map[string]string{"IMAGE": "nginx"})

	var rendered []string
	err := ss.Do(context.Background(), func(_ context.Context, inner *Session) error {
		rendered = inner.Files()
		require.Len(t, rendered, 1)
		assert.Equal(t, dir, filepath.Dir(rendered[0]))

		data, err := os.ReadFile(rendered[0])
		require.NoError(t, err)
		assert.Equal(t, "services:\n  web:\n    image: nginx:latest\n", string(data))
		return nil
	})
	require.NoError(t, err)

	_, err = os.Stat(rendered[0])
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, s.Files())
}

func TestSubstitutingSessionFailures(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t, &fakeExecutor{}, Options{Dir: dir})

	called := false
	err := NewSubstitutingSession(s, nil).Do(context.Background(), func(context.Context, *Session) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yml"), []byte("image: ${MISSING_VAR_FOR_TEST:?required}\n"), 0o600))
	err = NewSubstitutingSession(s.WithFiles([]string{"a.yml"}), nil).Do(context.Background(), func(context.Context, *Session) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
