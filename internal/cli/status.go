package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"compose-shim/internal/domain/model"
	"compose-shim/internal/infra/orchestrator/docker_compose"
)

func (a *app) newPSCommand() *cobra.Command {
	var quiet, asJSON bool

	cmd := &cobra.Command{
		Use:   "ps [SERVICE...]",
		Short: "List the project's containers",
		RunE: func(cmd *cobra.Command, services []string) error {
			var containers model.Containers
			err := a.withSession(cmd.Context(), func(ctx context.Context, s *docker_compose.Session) error {
				var err error
				containers, err = s.PS(ctx, services...)
				return err
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case quiet:
				for _, id := range containers.IDs() {
					fmt.Fprintln(out, id)
				}
				return nil
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(containers)
			}

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSERVICE\tSTATUS\tEXIT\tPORTS")
			for _, c := range containers {
				exit := "-"
				if c.ExitCode != nil {
					exit = fmt.Sprint(*c.ExitCode)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					shortID(c.ID), c.PrimaryName(), c.Service(), c.Status, exit, strings.Join(c.Ports, ", "))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only print container ids")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print containers as JSON")
	return cmd
}

func (a *app) newPortCommand() *cobra.Command {
	var (
		protocol string
		index    int
		wait     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "port SERVICE PRIVATE_PORT",
		Short: "Print the host address a container port is published on",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := model.PortOptions{Protocol: protocol, Index: index}

			var addr string
			err := a.withSession(cmd.Context(), func(ctx context.Context, s *docker_compose.Session) error {
				if wait > 0 {
					ctx, cancel := context.WithTimeout(ctx, wait)
					defer cancel()

					var err error
					addr, err = s.WaitPort(ctx, args[0], args[1], opts)
					return err
				}

				published, ok, err := s.Port(ctx, args[0], args[1], opts)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("port %s of service %s is not published", args[1], args[0])
				}
				addr = published
				return nil
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), addr)
			return nil
		},
	}

	cmd.Flags().StringVar(&protocol, "protocol", "tcp", "tcp or udp")
	cmd.Flags().IntVar(&index, "index", 1, "index of the container if the service is scaled")
	cmd.Flags().DurationVar(&wait, "wait", 0, "wait up to this long for the port to be published")
	return cmd
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
