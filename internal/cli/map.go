package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"compose-shim/internal/infra/mapper"
	"compose-shim/internal/infra/orchestrator/docker_compose"
	"compose-shim/pkg/env"
	"compose-shim/pkg/log"
)

func (a *app) newMapCommand() *cobra.Command {
	var (
		envFiles []string
		output   string
		host     string
		strict   bool
	)

	cmd := &cobra.Command{
		Use:   "map [NAME=VALUE...]",
		Short: "Rewrite service references into published host addresses",
		Long: `map resolves every value of the given variables. "db:5432" becomes the
host address compose published the port on, "[db]:5432" only the port,
"db:[5432]" only the host and URLs get their host and port replaced.

The result is printed as shell statements to eval; variables whose service
is not running are unset. With --output the resolved variables are written
to a dotenv file instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := env.Load(envFiles...)
			if err != nil {
				return err
			}
			for _, arg := range args {
				name, value, ok := strings.Cut(arg, "=")
				if !ok || name == "" {
					return fmt.Errorf("invalid assignment %q, want NAME=VALUE", arg)
				}
				vars[name] = value
			}

			if !cmd.Flags().Changed("strict") {
				strict = a.cfg.IsStrict()
			}
			if host == "" {
				host = a.cfg.HostOverride
			}

			var entries []mapper.Entry
			err = a.withSession(cmd.Context(), func(ctx context.Context, s *docker_compose.Session) error {
				var err error
				entries, err = mapper.MapEnv(ctx, s, vars, mapper.EnvOptions{
					Strict:       strict,
					HostOverride: host,
					NetInfo:      a.netInfo(),
				})
				return err
			})
			if err != nil {
				return err
			}

			if output != "" {
				resolved := make(map[string]string, len(entries))
				for _, e := range entries {
					if e.Found {
						resolved[e.Name] = e.Value
					}
				}
				log.Info("Writing mapped variables", "path", output, "count", len(resolved))
				return env.Save(output, resolved)
			}

			assignments := make([]env.Assignment, 0, len(entries))
			for _, e := range entries {
				assignments = append(assignments, env.Assignment{Name: e.Name, Value: e.Value, Unset: !e.Found})
			}
			return env.WriteShell(cmd.OutOrStdout(), assignments)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&envFiles, "env-file", "e", nil, "read variables from dotenv files")
	flags.StringVarP(&output, "output", "o", "", "write resolved variables to this dotenv file")
	flags.StringVar(&host, "host", "", "replace the host of every mapped address")
	flags.BoolVar(&strict, "strict", true, "fail on values that are not service references")
	return cmd
}
