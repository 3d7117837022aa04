package mapper

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/docker/docker/client"
)

// DefaultDockerPort is assumed when DOCKER_HOST names no port.
const DefaultDockerPort = 2376

// NetInfo answers questions about the network position of this host and
// of the docker daemon. The function fields are replaced in tests.
type NetInfo struct {
	Getenv         func(string) string
	InterfaceAddrs func() ([]net.Addr, error)
	LookupIP       func(host string) ([]net.IP, error)
}

// DefaultNetInfo uses the process environment, the host's interfaces and
// the system resolver.
func DefaultNetInfo() *NetInfo {
	return &NetInfo{
		Getenv:         os.Getenv,
		InterfaceAddrs: net.InterfaceAddrs,
		LookupIP:       net.LookupIP,
	}
}

// HostIPs returns the IPv4 addresses of the local interfaces.
func (n *NetInfo) HostIPs() ([]string, error) {
	addrs, err := n.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("cannot list interface addresses: %w", err)
	}

	var ips []string
	for _, addr := range addrs {
		var ip net.IP
		switch a := addr.(type) {
		case *net.IPNet:
			ip = a.IP
		case *net.IPAddr:
			ip = a.IP
		}
		if v4 := ip.To4(); v4 != nil {
			ips = append(ips, v4.String())
		}
	}
	return ips, nil
}

// HostRoutableIP guesses which local address target can reach by picking
// the one sharing the longest leading run of characters with it. This is a
// textual heuristic, not a subnet computation. The first address wins ties;
// the result is empty when there are no IPv4 interfaces.
func (n *NetInfo) HostRoutableIP(target string) (string, error) {
	ips, err := n.HostIPs()
	if err != nil {
		return "", err
	}

	best, bestLen := "", -1
	for _, ip := range ips {
		if l := commonPrefixLen(ip, target); l > bestLen {
			best, bestLen = ip, l
		}
	}
	return best, nil
}

// DockerEndpoint returns the daemon host name and port from DOCKER_HOST.
// Local sockets and named pipes map to localhost.
func (n *NetInfo) DockerEndpoint() (string, int, error) {
	raw := n.Getenv("DOCKER_HOST")
	if raw == "" {
		raw = client.DefaultDockerHost
	}

	u, err := client.ParseHostURL(raw)
	if err != nil {
		return "", 0, fmt.Errorf("invalid DOCKER_HOST %q: %w", raw, err)
	}

	switch u.Scheme {
	case "tcp", "http", "https":
	default:
		return "localhost", DefaultDockerPort, nil
	}

	host, port := u.Host, DefaultDockerPort
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host = h
		if p != "" {
			if port, err = strconv.Atoi(p); err != nil {
				return "", 0, fmt.Errorf("invalid DOCKER_HOST port %q: %w", p, err)
			}
		}
	}
	return host, port, nil
}

// DockerRoutableIP resolves the docker daemon host to an IPv4 address.
func (n *NetInfo) DockerRoutableIP() (string, error) {
	host, _, err := n.DockerEndpoint()
	if err != nil {
		return "", err
	}

	ips, err := n.LookupIP(host)
	if err != nil {
		return "", fmt.Errorf("cannot resolve docker host %s: %w", host, err)
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "", fmt.Errorf("docker host %s has no IPv4 address", host)
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
