package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"compose-shim/internal/cli"
	"compose-shim/internal/infra/orchestrator/docker_compose"
	"compose-shim/pkg/shell"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)

		var composeErr *docker_compose.Error
		switch {
		case errors.As(err, &composeErr) && composeErr.Status > 0:
			os.Exit(composeErr.Status)
		case errors.Is(err, shell.ErrInterrupted):
			os.Exit(130)
		}
		os.Exit(1)
	}
}
