package repository

import (
	"context"

	"compose-shim/internal/domain/model"
)

// PortLookup reports where a service's container port is published on the
// host. The bool is false when the port is not published.
//
// The docker compose Session implements it; the mapper depends only on this
// contract so it can be driven by a fake in tests.
type PortLookup interface {
	Port(ctx context.Context, service, port string, opts model.PortOptions) (string, bool, error)
}

// ContainerLister lists the containers of a compose project, optionally
// limited to some services.
type ContainerLister interface {
	PS(ctx context.Context, services ...string) (model.Containers, error)
}
