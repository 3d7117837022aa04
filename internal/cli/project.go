package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"compose-shim/internal/application/version"
	"compose-shim/internal/infra/orchestrator/docker_compose"
	"compose-shim/pkg/capabilities"
	"compose-shim/pkg/yaml"
)

func (a *app) newConfigCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved compose configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var doc map[string]any
			err := a.withSession(cmd.Context(), func(ctx context.Context, s *docker_compose.Session) error {
				var err error
				doc, err = s.Config(ctx)
				return err
			})
			if err != nil {
				return err
			}

			out, err := yaml.MarshalYAML(doc)
			if err != nil {
				return err
			}
			if asJSON {
				if out, err = yaml.YAMLToJSON(out); err != nil {
					return err
				}
				out = append(out, '\n')
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func (a *app) newVersionCommand() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the shim and compose versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, version.GetVersion())
				return nil
			}

			info, err := a.session.Version(cmd.Context(), false)
			if err != nil {
				return err
			}

			sys := capabilities.GetSystemInfo()
			fmt.Fprintf(out, "compose-shim version %s (%s/%s)\n", version.GetVersion(), sys.OS, sys.Arch)
			keys := make([]string, 0, len(info))
			for k := range info {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "%s: %s\n", k, info[k])
			}

			fmt.Fprintln(out, "Detected tools:")
			for _, c := range capabilities.NewCapabilityFactory(a.deps.Executor).GetAllCapabilities() {
				status := "not found"
				if c.IsAvailable(cmd.Context()) {
					status = c.Version()
				}
				fmt.Fprintf(out, "  %s: %s\n", c.Name(), status)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "only print the shim version")
	return cmd
}
