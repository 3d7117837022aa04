package docker_compose

import (
	"context"
	"fmt"

	"compose-shim/internal/domain/model"
	"compose-shim/pkg/cliflags"
	"compose-shim/pkg/log"
	"compose-shim/pkg/psformat"
)

// PS lists the project's containers, optionally limited to services, in the
// order compose reports them. Compose only yields container ids; each one is
// then inspected with `docker ps` to fill in the record.
func (s *Session) PS(ctx context.Context, services ...string) (model.Containers, error) {
	out, err := s.execute(ctx, false, "ps", cliflags.New().Set("q", true), services...)
	if err != nil {
		return nil, err
	}

	ids := lines(out)
	containers := make(model.Containers, 0, len(ids))
	for _, id := range ids {
		c, err := s.inspectContainer(ctx, id)
		if err != nil {
			return nil, err
		}
		if c == nil {
			log.Debug("Container disappeared before inspection", "id", id)
			continue
		}
		containers = append(containers, c)
	}

	log.Debug("Listed compose containers", "project", s.project, "containers", len(containers))
	return containers, nil
}

// inspectContainer fetches one container's record. It returns nil when
// docker no longer knows the id.
func (s *Session) inspectContainer(ctx context.Context, id string) (*model.Container, error) {
	o := cliflags.New().
		Set("a", true).
		Set("f", "id="+id).
		Set("no_trunc", true).
		Set("format", psformat.Format)

	out, err := s.inspect(ctx, append([]string{"ps"}, o.Encode()...)...)
	if err != nil {
		return nil, err
	}

	rows := lines(out)
	if len(rows) == 0 {
		return nil, nil
	}

	fields, err := psformat.ParseN(rows[0], psformat.FieldCount)
	if err != nil {
		return nil, fmt.Errorf("cannot parse docker ps output for container %s: %w", id, err)
	}
	return model.NewContainer(fields[0], fields[1], fields[2], fields[3], fields[4], fields[5], fields[6])
}
