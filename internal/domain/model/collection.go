package model

// Containers is an ordered collection of containers, in the order docker
// compose listed them.
type Containers []*Container

// Where returns the containers for which pred is true, keeping their order.
func (cs Containers) Where(pred func(*Container) bool) Containers {
	out := Containers{}
	for _, c := range cs {
		if pred(c) {
			out = append(out, c)
		}
	}
	return out
}

// Running returns the containers that are up.
func (cs Containers) Running() Containers {
	return cs.Where((*Container).IsRunning)
}

// ByService returns the containers of one compose service.
func (cs Containers) ByService(service string) Containers {
	return cs.Where(func(c *Container) bool { return c.Service() == service })
}

// First returns the first container, or nil when the collection is empty.
func (cs Containers) First() *Container {
	if len(cs) == 0 {
		return nil
	}
	return cs[0]
}

// IDs returns the container ids in order.
func (cs Containers) IDs() []string {
	ids := make([]string, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.ID)
	}
	return ids
}

// StatusCode derives an overall status for a set of containers: any
// problematic container wins, then restarting ones; a mix of running and
// stopped containers is idle.
func (cs Containers) StatusCode() ContainerStatusCode {
	if len(cs) == 0 {
		return ContainerStatusStopped
	}

	var active, idle, stopped, restarting, problematic int
	for _, c := range cs {
		switch c.StatusCode() {
		case ContainerStatusActive:
			active++
		case ContainerStatusIdle:
			idle++
		case ContainerStatusStopped:
			if c.ExitCode != nil && *c.ExitCode != 0 {
				problematic++
			} else {
				stopped++
			}
		case ContainerStatusRestarting:
			restarting++
		default:
			problematic++
		}
	}

	switch {
	case problematic > 0:
		return ContainerStatusProblematic
	case restarting > 0:
		return ContainerStatusRestarting
	case active > 0 && stopped == 0 && idle == 0:
		return ContainerStatusActive
	case stopped > 0 && active == 0 && idle == 0:
		return ContainerStatusStopped
	case idle > 0 || (active > 0 && stopped > 0):
		return ContainerStatusIdle
	default:
		return ContainerStatusUnknown
	}
}
