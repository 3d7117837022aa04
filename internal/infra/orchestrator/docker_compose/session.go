// Package docker_compose drives a compose project by running the compose
// command line tool and the docker CLI.
package docker_compose

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"

	"compose-shim/internal/domain/repository"
	"compose-shim/pkg/cliflags"
	"compose-shim/pkg/log"
	"compose-shim/pkg/metrics"
	"compose-shim/pkg/shell"
)

const noOutput = "(no output)"

var (
	defaultComposeCommand = []string{"docker", "compose"}
	defaultDockerCommand  = []string{"docker"}
)

// Error reports a compose subcommand that exited with a nonzero status.
type Error struct {
	Subcommand string
	Status     int
	// Detail is the first non-empty line of the command's output.
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("'%s' failed with status %d: %s", e.Subcommand, e.Status, e.Detail)
}

// Options configures a Session.
type Options struct {
	// Dir is the project directory the tools run in.
	Dir string
	// Files are the compose files in override order. Empty lets compose
	// pick its default file.
	Files []string
	// Project is the compose project name. Empty lets compose derive it.
	Project string
	// ComposeCommand defaults to "docker compose".
	ComposeCommand []string
	// DockerCommand defaults to "docker".
	DockerCommand []string
	// Executor defaults to a shell.Runner working in Dir.
	Executor shell.Executor
	// Interactive streams the output of long running commands (up, logs,
	// run, ...) to the terminal and forwards stdin.
	Interactive bool
	Metrics     *metrics.Collector
}

// Session runs compose commands against one project. It is immutable after
// construction and safe for concurrent use as long as its Executor is.
type Session struct {
	dir         string
	files       []string
	project     string
	compose     []string
	docker      []string
	exec        shell.Executor
	interactive bool
	metrics     *metrics.Collector
}

var (
	_ repository.PortLookup      = (*Session)(nil)
	_ repository.ContainerLister = (*Session)(nil)
)

// NewSession creates a session from opts, filling in defaults.
func NewSession(opts Options) *Session {
	s := &Session{
		dir:         opts.Dir,
		files:       append([]string(nil), opts.Files...),
		project:     opts.Project,
		compose:     append([]string(nil), opts.ComposeCommand...),
		docker:      append([]string(nil), opts.DockerCommand...),
		exec:        opts.Executor,
		interactive: opts.Interactive,
		metrics:     opts.Metrics,
	}
	if len(s.compose) == 0 {
		s.compose = append(s.compose, defaultComposeCommand...)
	}
	if len(s.docker) == 0 {
		s.docker = append(s.docker, defaultDockerCommand...)
	}
	if s.exec == nil {
		s.exec = shell.NewRunner(opts.Dir)
	}
	return s
}

// Dir returns the project directory.
func (s *Session) Dir() string { return s.dir }

// Files returns a copy of the compose file list.
func (s *Session) Files() []string { return append([]string(nil), s.files...) }

// Project returns the compose project name.
func (s *Session) Project() string { return s.project }

// WithFiles returns a copy of the session that targets another file list.
func (s *Session) WithFiles(files []string) *Session {
	c := *s
	c.files = append([]string(nil), files...)
	return &c
}

// composeArgv assembles the full compose command line: the compose prefix,
// one --file per compose file, the project name, the subcommand, its flags
// and the positional arguments.
func (s *Session) composeArgv(subcommand string, opts *cliflags.Options, args []string) []string {
	global := cliflags.New()
	if len(s.files) > 0 {
		global.Set("file", s.files)
	}
	global.SetDefault("project_name", s.project, "")

	argv := append([]string(nil), s.compose...)
	argv = append(argv, global.Encode()...)
	argv = append(argv, subcommand)
	argv = append(argv, opts.Encode()...)
	return append(argv, args...)
}

// globalArgv is composeArgv without the file and project flags, for
// subcommands that do not act on a project.
func (s *Session) globalArgv(subcommand string, opts *cliflags.Options, args []string) []string {
	argv := append([]string(nil), s.compose...)
	argv = append(argv, subcommand)
	argv = append(argv, opts.Encode()...)
	return append(argv, args...)
}

// execute runs a compose subcommand and returns its stdout. A nonzero exit
// becomes an *Error.
func (s *Session) execute(ctx context.Context, interactive bool, subcommand string, opts *cliflags.Options, args ...string) (string, error) {
	return s.executeArgv(ctx, interactive, subcommand, s.composeArgv(subcommand, opts, args))
}

func (s *Session) executeArgv(ctx context.Context, interactive bool, subcommand string, argv []string) (string, error) {
	res, err := s.invoke(ctx, subcommand, argv, interactive)
	if err != nil {
		return "", err
	}
	if !res.Success() {
		e := &Error{Subcommand: subcommand, Status: res.ExitCode, Detail: firstLine(res)}
		log.Error("Compose command failed", "subcommand", subcommand, "status", e.Status, "detail", e.Detail)
		return "", e
	}
	return string(res.Stdout), nil
}

// inspect runs the docker CLI and returns its stdout.
func (s *Session) inspect(ctx context.Context, args ...string) (string, error) {
	argv := append(append([]string(nil), s.docker...), args...)
	subcommand := args[0]

	res, err := s.invoke(ctx, subcommand, argv, false)
	if err != nil {
		return "", err
	}
	if !res.Success() {
		e := &Error{Subcommand: subcommand, Status: res.ExitCode, Detail: firstLine(res)}
		log.Error("Docker command failed", "subcommand", subcommand, "status", e.Status, "detail", e.Detail)
		return "", e
	}
	return string(res.Stdout), nil
}

// invoke runs argv through the executor, logging and recording it.
func (s *Session) invoke(ctx context.Context, subcommand string, argv []string, interactive bool) (*shell.Result, error) {
	logger := log.With("invocation", uuid.NewString(), "subcommand", subcommand)
	logger.Debug("Running command", "argv", argv, "dir", s.dir, "interactive", interactive)

	start := time.Now()
	res, err := s.exec.Run(ctx, argv, interactive)
	elapsed := time.Since(start)

	if err != nil {
		logger.Error("Command did not complete", "error", err, "duration", elapsed)
		s.metrics.RecordInvocation(argv[0], subcommand, -1, err, elapsed)
		return nil, err
	}

	logger.Debug("Command finished", "exit_code", res.ExitCode, "duration", elapsed,
		"stdout_bytes", len(res.Stdout), "stderr_bytes", len(res.Stderr))
	s.metrics.RecordInvocation(argv[0], subcommand, res.ExitCode, nil, elapsed)
	return res, nil
}

// firstLine returns the first non-empty line of stdout followed by stderr,
// stripped of terminal escapes.
func firstLine(res *shell.Result) string {
	for _, line := range strings.Split(ansi.Strip(string(res.CombinedOutput())), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return noOutput
}

// clean strips terminal escapes and surrounding whitespace.
func clean(out string) string {
	return strings.TrimSpace(ansi.Strip(out))
}

// lines splits cleaned output into its non-empty lines.
func lines(out string) []string {
	var result []string
	for _, line := range strings.Split(ansi.Strip(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			result = append(result, line)
		}
	}
	return result
}

