package cli

import (
	"context"

	"github.com/spf13/cobra"

	"compose-shim/internal/infra/orchestrator/docker_compose"
)

func (a *app) newUpCommand() *cobra.Command {
	var opts docker_compose.UpOptions

	cmd := &cobra.Command{
		Use:   "up [SERVICE...]",
		Short: "Create and start the project's containers",
		RunE: func(cmd *cobra.Command, services []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, s *docker_compose.Session) error {
				return s.Up(ctx, opts, services...)
			})
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.Detached, "detach", "d", false, "run containers in the background")
	flags.IntVarP(&opts.Timeout, "timeout", "t", 0, "shutdown timeout in seconds")
	flags.BoolVar(&opts.Build, "build", false, "build images before starting")
	flags.BoolVar(&opts.NoBuild, "no-build", false, "don't build missing images")
	flags.BoolVar(&opts.NoDeps, "no-deps", false, "don't start linked services")
	flags.BoolVar(&opts.NoStart, "no-start", false, "create containers without starting them")
	flags.BoolVar(&opts.ForceRecreate, "force-recreate", false, "recreate containers even if unchanged")
	flags.BoolVar(&opts.RemoveOrphans, "remove-orphans", false, "remove containers of services not in the compose files")
	flags.BoolVar(&opts.AbortOnContainerExit, "abort-on-container-exit", false, "stop all containers if any exits")
	flags.StringVar(&opts.ExitCodeFrom, "exit-code-from", "", "return the exit code of this service's container")
	return cmd
}

func (a *app) newDownCommand() *cobra.Command {
	var opts docker_compose.DownOptions

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Stop and remove the project's containers and networks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, s *docker_compose.Session) error {
				return s.Down(ctx, opts)
			})
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.RemoveVolumes, "volumes", "v", false, "remove named and anonymous volumes")
	flags.BoolVar(&opts.RemoveOrphans, "remove-orphans", false, "remove containers of services not in the compose files")
	flags.StringVar(&opts.RMI, "rmi", "", `remove images, "local" or "all"`)
	flags.IntVarP(&opts.Timeout, "timeout", "t", 0, "shutdown timeout in seconds")
	return cmd
}
