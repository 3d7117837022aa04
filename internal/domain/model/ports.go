package model

import (
	"errors"
	"strings"

	"github.com/docker/go-connections/nat"
)

// PublishedPorts decodes the ports column ("0.0.0.0:32769->80/tcp, 443/tcp")
// into a port map. Exposed but unpublished ports map to an empty binding list.
func (c *Container) PublishedPorts() (nat.PortMap, error) {
	ports := nat.PortMap{}
	for _, entry := range c.Ports {
		host, target, published := strings.Cut(entry, "->")
		if !published {
			target = host
		}

		port, err := nat.NewPort(nat.SplitProtoPort(strings.TrimSpace(target)))
		if err != nil {
			return nil, &DecodeError{Field: "ports", Value: entry, Err: err}
		}
		if _, ok := ports[port]; !ok {
			ports[port] = []nat.PortBinding{}
		}
		if !published {
			continue
		}

		i := strings.LastIndex(host, ":")
		if i < 0 {
			return nil, &DecodeError{Field: "ports", Value: entry, Err: errors.New("host side has no port")}
		}
		ports[port] = append(ports[port], nat.PortBinding{
			HostIP:   strings.Trim(host[:i], "[]"),
			HostPort: host[i+1:],
		})
	}
	return ports, nil
}

// PortOptions selects which published port a lookup reports.
type PortOptions struct {
	// Protocol is "tcp" or "udp".
	Protocol string
	// Index picks the container when a service is scaled, starting at 1.
	Index int
}

// DefaultPortOptions looks up the tcp port of the first container.
func DefaultPortOptions() PortOptions {
	return PortOptions{Protocol: "tcp", Index: 1}
}
