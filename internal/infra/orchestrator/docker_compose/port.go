package docker_compose

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff"

	"compose-shim/internal/domain/model"
	"compose-shim/pkg/cliflags"
	"compose-shim/pkg/log"
)

// notPublished holds the phrases compose uses when a port lookup finds no
// container or no binding.
var notPublished = []string{"no container found", "no port"}

// Port returns the host address ("ip:port") a service's container port is
// published on. The bool is false when the port is not published.
func (s *Session) Port(ctx context.Context, service, port string, opts model.PortOptions) (string, bool, error) {
	protocol, index := opts.Protocol, opts.Index
	if protocol == "" {
		protocol = "tcp"
	}
	if index == 0 {
		index = 1
	}
	o := cliflags.New().
		SetDefault("protocol", protocol, "tcp").
		SetDefault("index", index, 1)

	out, err := s.execute(ctx, false, "port", o, service, port)
	if err != nil {
		var e *Error
		if errors.As(err, &e) && mentionsUnpublished(e.Detail) {
			return "", false, nil
		}
		return "", false, err
	}

	addr := clean(out)
	if addr == "" || strings.HasSuffix(addr, ":0") {
		return "", false, nil
	}
	return addr, true, nil
}

// errPortPending makes the retry loop poll again.
var errPortPending = errors.New("port not published yet")

// WaitPort polls Port with exponential backoff until the port is published
// or ctx is done.
func (s *Session) WaitPort(ctx context.Context, service, port string, opts model.PortOptions) (string, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	policy.MaxElapsedTime = 0

	var addr string
	poll := func() error {
		published, ok, err := s.Port(ctx, service, port, opts)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			log.Debug("Port not published yet", "service", service, "port", port)
			return errPortPending
		}
		addr = published
		return nil
	}

	if err := backoff.Retry(poll, backoff.WithContext(policy, ctx)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}
	return addr, nil
}

func mentionsUnpublished(detail string) bool {
	detail = strings.ToLower(detail)
	for _, phrase := range notPublished {
		if strings.Contains(detail, phrase) {
			return true
		}
	}
	return false
}
