// Package cli implements the compose-shim command line.
package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"compose-shim/internal/application/config"
	"compose-shim/internal/application/version"
	"compose-shim/internal/infra/mapper"
	"compose-shim/internal/infra/orchestrator/docker_compose"
	"compose-shim/pkg/capabilities"
	"compose-shim/pkg/env"
	"compose-shim/pkg/log"
	"compose-shim/pkg/metrics"
	"compose-shim/pkg/shell"
)

// Deps are the collaborators the commands use. Zero fields get the real
// implementations.
type Deps struct {
	Executor shell.Executor
	NetInfo  *mapper.NetInfo
	// Lookup reads the process environment.
	Lookup config.LookupFunc
	// IsTerminal reports whether stdin is interactive.
	IsTerminal func() bool
}

type app struct {
	deps Deps

	configPath string
	dir        string
	files      []string
	project    string
	logLevel   string

	cfg     *config.Config
	session *docker_compose.Session
	// composeVersion is set when the compose command was detected.
	composeVersion string
	metrics *metrics.Collector
}

// Execute runs the command line with the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCommand(Deps{}).ExecuteContext(ctx)
}

// NewRootCommand builds the command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	a := &app{deps: deps}

	root := &cobra.Command{
		Use:   "compose-shim",
		Short: "Drive docker compose projects and map service addresses",
		Long: `compose-shim runs docker compose for a project, lists its containers
and rewrites service:port references into the addresses where compose
published them.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { a.metrics.LogSummary() },
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", config.DefaultFileName, "config file")
	flags.StringVarP(&a.dir, "dir", "C", "", "project directory")
	flags.StringSliceVarP(&a.files, "file", "f", nil, "compose files, in override order")
	flags.StringVarP(&a.project, "project-name", "p", "", "compose project name")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		a.newPSCommand(),
		a.newPortCommand(),
		a.newMapCommand(),
		a.newUpCommand(),
		a.newDownCommand(),
		a.newConfigCommand(),
		a.newVersionCommand(),
	)
	return root
}

// setup loads the configuration and builds the session shared by all
// subcommands.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.deps.Lookup == nil {
		a.deps.Lookup = os.LookupEnv
	}
	if a.deps.IsTerminal == nil {
		a.deps.IsTerminal = func() bool {
			fd := os.Stdin.Fd()
			return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		}
	}

	cfg, err := config.LoadConfigWith(a.configPath, a.deps.Lookup)
	if err != nil {
		return err
	}
	if a.dir != "" {
		if cfg.Dir, err = filepath.Abs(a.dir); err != nil {
			return err
		}
	}
	if len(a.files) > 0 {
		cfg.Files = a.files
	}
	if a.project != "" {
		cfg.Project = a.project
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	log.InitLogTo(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	a.cfg = cfg

	interactive := cfg.IsInteractive(a.deps.IsTerminal())
	if a.deps.Executor == nil {
		runner := shell.NewRunner(cfg.Dir)
		runner.Stdin = cmd.InOrStdin()
		runner.Stdout = cmd.OutOrStdout()
		runner.Stderr = cmd.ErrOrStderr()
		a.deps.Executor = runner
	}

	composeCommand := cfg.ComposeCommand
	if len(composeCommand) == 0 {
		detected, detectedVersion, err := capabilities.NewCapabilityFactory(a.deps.Executor).DetectCompose(cmd.Context())
		if err != nil {
			return err
		}
		log.Debug("Using detected compose", "command", detected, "version", detectedVersion)
		composeCommand = detected
		a.composeVersion = detectedVersion
	}

	a.metrics = metrics.NewCollector()
	a.session = docker_compose.NewSession(docker_compose.Options{
		Dir:            cfg.Dir,
		Files:          cfg.Files,
		Project:        cfg.Project,
		ComposeCommand: composeCommand,
		DockerCommand:  cfg.DockerCommand,
		Executor:       a.deps.Executor,
		Interactive:    interactive,
		Metrics:        a.metrics,
	})
	return nil
}

// withSession runs fn against the session, rendering the compose files
// first when the configured compose cannot substitute variables itself.
func (a *app) withSession(ctx context.Context, fn func(context.Context, *docker_compose.Session) error) error {
	substitute := false
	switch a.cfg.Substitute {
	case config.SubstituteAlways:
		substitute = true
	case config.SubstituteAuto:
		needed, err := a.needsSubstitution(ctx)
		if err != nil {
			log.Warn("Cannot determine compose version, not substituting", "error", err)
		}
		substitute = needed
	}

	if !substitute {
		return fn(ctx, a.session)
	}

	vars, err := env.Load(append([]string{filepath.Join(a.cfg.Dir, ".env")}, a.cfg.EnvFiles...)...)
	if err != nil {
		return err
	}
	return docker_compose.NewSubstitutingSession(a.session, vars).Do(ctx, fn)
}

// needsSubstitution reuses the version found during detection and only asks
// compose when the command was configured.
func (a *app) needsSubstitution(ctx context.Context) (bool, error) {
	if a.composeVersion != "" {
		return version.NeedsSubstitution(a.composeVersion)
	}
	return a.session.NeedsSubstitution(ctx)
}

func (a *app) netInfo() *mapper.NetInfo {
	if a.deps.NetInfo != nil {
		return a.deps.NetInfo
	}
	return mapper.DefaultNetInfo()
}
