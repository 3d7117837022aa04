package docker_compose

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"compose-shim/pkg/cliflags"
	"compose-shim/pkg/log"
	"compose-shim/pkg/yaml"
)

// defaultTimeout is compose's own shutdown timeout in seconds.
const defaultTimeout = 10

// UpOptions are the flags of `compose up`.
type UpOptions struct {
	Detached bool
	// Timeout is the shutdown timeout in seconds; zero keeps compose's default.
	Timeout              int
	Build                bool
	NoBuild              bool
	NoDeps               bool
	NoStart              bool
	ForceRecreate        bool
	RemoveOrphans        bool
	AbortOnContainerExit bool
	ExitCodeFrom         string
}

// Up creates and starts the services. Without Detached the command runs in
// the foreground and streams its output when the session is interactive.
func (s *Session) Up(ctx context.Context, opts UpOptions, services ...string) error {
	o := cliflags.New().
		Set("d", opts.Detached)
	setTimeout(o, opts.Timeout)
	o.Set("build", opts.Build).
		Set("no_build", opts.NoBuild).
		Set("no_deps", opts.NoDeps).
		Set("no_start", opts.NoStart).
		Set("force_recreate", opts.ForceRecreate).
		Set("remove_orphans", opts.RemoveOrphans).
		Set("abort_on_container_exit", opts.AbortOnContainerExit).
		SetDefault("exit_code_from", opts.ExitCodeFrom, "")

	_, err := s.execute(ctx, s.interactive && !opts.Detached, "up", o, services...)
	return err
}

// DownOptions are the flags of `compose down`.
type DownOptions struct {
	RemoveVolumes bool
	RemoveOrphans bool
	// RMI is "all" or "local"; empty removes no images.
	RMI     string
	Timeout int
}

// Down stops and removes the project's containers and networks.
func (s *Session) Down(ctx context.Context, opts DownOptions) error {
	o := cliflags.New().
		Set("v", opts.RemoveVolumes).
		Set("remove_orphans", opts.RemoveOrphans).
		SetDefault("rmi", opts.RMI, "")
	setTimeout(o, opts.Timeout)

	_, err := s.execute(ctx, false, "down", o)
	return err
}

// StopOptions are the flags of `compose stop` and `compose restart`.
type StopOptions struct {
	Timeout int
}

// Stop stops running services without removing them.
func (s *Session) Stop(ctx context.Context, opts StopOptions, services ...string) error {
	o := cliflags.New()
	setTimeout(o, opts.Timeout)

	_, err := s.execute(ctx, false, "stop", o, services...)
	return err
}

// Restart restarts services.
func (s *Session) Restart(ctx context.Context, opts StopOptions, services ...string) error {
	o := cliflags.New()
	setTimeout(o, opts.Timeout)

	_, err := s.execute(ctx, false, "restart", o, services...)
	return err
}

// KillOptions are the flags of `compose kill`.
type KillOptions struct {
	// Signal defaults to KILL.
	Signal string
}

// Kill sends a signal to the services' containers.
func (s *Session) Kill(ctx context.Context, opts KillOptions, services ...string) error {
	signal := opts.Signal
	if signal == "" {
		signal = "KILL"
	}
	o := cliflags.New().SetDefault("s", signal, "KILL")

	_, err := s.execute(ctx, false, "kill", o, services...)
	return err
}

// Pause pauses the services' containers.
func (s *Session) Pause(ctx context.Context, services ...string) error {
	_, err := s.execute(ctx, false, "pause", nil, services...)
	return err
}

// Unpause resumes paused containers.
func (s *Session) Unpause(ctx context.Context, services ...string) error {
	_, err := s.execute(ctx, false, "unpause", nil, services...)
	return err
}

// RmOptions are the flags of `compose rm`.
type RmOptions struct {
	Force   bool
	Volumes bool
	Stop    bool
}

// Rm removes stopped service containers.
func (s *Session) Rm(ctx context.Context, opts RmOptions, services ...string) error {
	o := cliflags.New().
		Set("f", opts.Force).
		Set("v", opts.Volumes).
		Set("s", opts.Stop)

	_, err := s.execute(ctx, false, "rm", o, services...)
	return err
}

// ScaleOptions are the flags of `compose scale`.
type ScaleOptions struct {
	Timeout int
}

// Scale sets the number of containers per service. Arguments are emitted
// sorted by service name.
func (s *Session) Scale(ctx context.Context, counts map[string]int, opts ScaleOptions) error {
	if len(counts) == 0 {
		return fmt.Errorf("scale: no services given")
	}

	services := make([]string, 0, len(counts))
	for svc := range counts {
		services = append(services, svc)
	}
	sort.Strings(services)

	args := make([]string, 0, len(services))
	for _, svc := range services {
		if counts[svc] < 0 {
			return fmt.Errorf("scale: negative count %d for service %s", counts[svc], svc)
		}
		args = append(args, fmt.Sprintf("%s=%d", svc, counts[svc]))
	}

	o := cliflags.New()
	setTimeout(o, opts.Timeout)

	_, err := s.execute(ctx, false, "scale", o, args...)
	return err
}

// RunOptions are the flags of `compose run`.
type RunOptions struct {
	Detached     bool
	NoDeps       bool
	Rm           bool
	NoTTY        bool
	User         string
	Workdir      string
	Entrypoint   string
	ServicePorts bool
	// Env is passed as repeated -e KEY=VALUE, sorted by key.
	Env map[string]string
	// Volumes is passed as repeated -v src:dst, in order.
	Volumes []string
}

// Run runs a one-off command in a new container of service and returns its
// output.
func (s *Session) Run(ctx context.Context, opts RunOptions, service string, command ...string) (string, error) {
	env := make([]string, 0, len(opts.Env))
	for k, v := range opts.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)

	o := cliflags.New().
		Set("d", opts.Detached).
		Set("no_deps", opts.NoDeps).
		Set("rm", opts.Rm).
		Set("T", opts.NoTTY).
		SetDefault("u", opts.User, "").
		SetDefault("w", opts.Workdir, "").
		SetDefault("entrypoint", opts.Entrypoint, "").
		Set("service_ports", opts.ServicePorts).
		Set("e", env).
		Set("v", opts.Volumes)

	args := append([]string{service}, command...)
	return s.execute(ctx, s.interactive && !opts.Detached, "run", o, args...)
}

// BuildOptions are the flags of `compose build`.
type BuildOptions struct {
	ForceRm bool
	NoCache bool
	Pull    bool
}

// Build builds or rebuilds service images.
func (s *Session) Build(ctx context.Context, opts BuildOptions, services ...string) error {
	o := cliflags.New().
		Set("force_rm", opts.ForceRm).
		Set("no_cache", opts.NoCache).
		Set("pull", opts.Pull)

	_, err := s.execute(ctx, s.interactive, "build", o, services...)
	return err
}

// LogsOptions are the flags of `compose logs`.
type LogsOptions struct {
	Follow     bool
	Timestamps bool
	// Tail is a line count or "all".
	Tail    string
	NoColor bool
}

// Logs returns the services' output. With Follow it blocks until the
// containers stop or ctx is cancelled.
func (s *Session) Logs(ctx context.Context, opts LogsOptions, services ...string) (string, error) {
	tail := opts.Tail
	if tail == "" {
		tail = "all"
	}
	o := cliflags.New().
		Set("f", opts.Follow).
		Set("t", opts.Timestamps).
		SetDefault("tail", tail, "all").
		Set("no_color", opts.NoColor)

	return s.execute(ctx, s.interactive, "logs", o, services...)
}

// PullOptions are the flags of `compose pull`.
type PullOptions struct {
	Quiet              bool
	IgnorePullFailures bool
}

// Pull pulls service images.
func (s *Session) Pull(ctx context.Context, opts PullOptions, services ...string) error {
	o := cliflags.New().
		Set("q", opts.Quiet).
		Set("ignore_pull_failures", opts.IgnorePullFailures)

	_, err := s.execute(ctx, s.interactive, "pull", o, services...)
	return err
}

// Version reports the compose version. With short the map holds a single
// "version" key. Otherwise every "key: value" line becomes an entry and a
// banner such as "docker-compose version 1.29.2, build 5becea4c" is stored
// under "docker-compose version".
func (s *Session) Version(ctx context.Context, short bool) (map[string]string, error) {
	o := cliflags.New().Set("short", short)
	out, err := s.executeArgv(ctx, false, "version", s.globalArgv("version", o, nil))
	if err != nil {
		return nil, err
	}

	if short {
		return map[string]string{"version": clean(out)}, nil
	}

	info := map[string]string{}
	for _, line := range lines(out) {
		if k, v, ok := strings.Cut(line, ": "); ok {
			info[strings.TrimSpace(k)] = strings.TrimSpace(v)
			continue
		}
		if i := strings.Index(line, " version "); i >= 0 {
			info[line[:i+len(" version")]] = strings.TrimSpace(line[i+len(" version "):])
			continue
		}
		info[line] = line
	}
	return info, nil
}

// Config returns the resolved compose configuration.
func (s *Session) Config(ctx context.Context) (map[string]any, error) {
	out, err := s.execute(ctx, false, "config", nil)
	if err != nil {
		return nil, err
	}

	doc, err := yaml.ToMap([]byte(out))
	if err != nil {
		return nil, log.Errorf("cannot parse compose config: %w", err)
	}
	return doc, nil
}

// setTimeout records a shutdown timeout unless it is compose's default.
func setTimeout(o *cliflags.Options, seconds int) {
	if seconds == 0 {
		return
	}
	o.SetDefault("timeout", seconds, defaultTimeout)
}
