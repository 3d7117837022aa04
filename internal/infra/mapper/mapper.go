// Package mapper rewrites "service:port" references and URLs into the host
// addresses where compose published those ports.
package mapper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/go-connections/nat"

	"compose-shim/internal/domain/model"
	"compose-shim/internal/domain/repository"
	"compose-shim/pkg/log"
)

var (
	// ErrBadSubstitution is returned in strict mode for values that are
	// neither a URL nor a service:port pair.
	ErrBadSubstitution = errors.New("bad substitution")
	// ErrNoService is returned when the referenced port is not published,
	// usually because the service is not running.
	ErrNoService = errors.New("no such service")
)

// schemePorts are used for URLs without an explicit port.
var schemePorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// Value is what Map accepts and returns: a Scalar or a List.
type Value interface {
	isValue()
}

// Scalar is a single reference such as "db:5432" or "http://web:80/path".
type Scalar string

// List is a sequence of references mapped element by element.
type List []string

func (Scalar) isValue() {}
func (List) isValue()   {}

// Mapper resolves references through a port lookup.
type Mapper struct {
	lookup       repository.PortLookup
	hostOverride string
	strict       bool
}

// New creates a mapper. A non-empty overrideHost replaces the host of every
// published address. In strict mode unparseable values, and URLs whose port
// is neither given nor implied by the scheme, are an error; otherwise they
// are returned unchanged.
func New(lookup repository.PortLookup, overrideHost string, strict bool) *Mapper {
	return &Mapper{lookup: lookup, hostOverride: overrideHost, strict: strict}
}

// Map resolves a Scalar or every element of a List.
func (m *Mapper) Map(ctx context.Context, v Value) (Value, error) {
	switch v := v.(type) {
	case Scalar:
		out, err := m.MapScalar(ctx, string(v))
		if err != nil {
			return nil, err
		}
		return Scalar(out), nil
	case List:
		out := make(List, 0, len(v))
		for _, item := range v {
			mapped, err := m.MapScalar(ctx, item)
			if err != nil {
				return nil, err
			}
			out = append(out, mapped)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// MapScalar resolves one reference:
//
//	http://svc:8080/x  -> http://<host>:<port>/x
//	svc:8080           -> <host>:<port>
//	[svc]:8080         -> <port>
//	svc:[8080]         -> <host>
//
// The port side may name a protocol, as in "dns:53/udp".
func (m *Mapper) MapScalar(ctx context.Context, value string) (string, error) {
	if u, err := url.Parse(value); err == nil && u.Scheme != "" && u.Host != "" {
		return m.mapURL(ctx, value, u)
	}

	parts := strings.Split(value, ":")
	if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		service, port := parts[0], parts[1]

		switch {
		case isElided(service):
			_, p, err := m.HostAndPort(ctx, unelide(service), port)
			if err != nil {
				return "", err
			}
			return strconv.Itoa(p), nil
		case isElided(port):
			h, _, err := m.HostAndPort(ctx, service, unelide(port))
			if err != nil {
				return "", err
			}
			return h, nil
		default:
			h, p, err := m.HostAndPort(ctx, service, port)
			if err != nil {
				return "", err
			}
			return net.JoinHostPort(h, strconv.Itoa(p)), nil
		}
	}

	if m.strict {
		return "", fmt.Errorf("%w: %q", ErrBadSubstitution, value)
	}
	return value, nil
}

func (m *Mapper) mapURL(ctx context.Context, value string, u *url.URL) (string, error) {
	port := u.Port()
	if port == "" {
		port = schemePorts[strings.ToLower(u.Scheme)]
	}
	if port == "" {
		if !m.strict {
			return value, nil
		}
		return "", fmt.Errorf("%w: %q has no port", ErrBadSubstitution, value)
	}

	h, p, err := m.HostAndPort(ctx, u.Hostname(), port)
	if err != nil {
		return "", err
	}

	mapped := *u
	mapped.Host = net.JoinHostPort(h, strconv.Itoa(p))
	return mapped.String(), nil
}

// HostAndPort returns where service's port is published. port may carry a
// protocol suffix ("53/udp"); it defaults to tcp.
func (m *Mapper) HostAndPort(ctx context.Context, service, port string) (string, int, error) {
	proto, number := nat.SplitProtoPort(port)
	if number == "" {
		return "", 0, fmt.Errorf("%w: empty port for service %s", ErrBadSubstitution, service)
	}

	addr, published, err := m.lookup.Port(ctx, service, number, model.PortOptions{Protocol: proto, Index: 1})
	if err != nil {
		return "", 0, err
	}
	if !published {
		return "", 0, fmt.Errorf("%w: %s:%s is not published", ErrNoService, service, port)
	}

	host, hostPort, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("unexpected port lookup result %q for %s:%s: %w", addr, service, port, err)
	}
	p, err := strconv.Atoi(hostPort)
	if err != nil {
		return "", 0, fmt.Errorf("unexpected port lookup result %q for %s:%s: %w", addr, service, port, err)
	}

	if m.hostOverride != "" {
		host = m.hostOverride
	}
	return host, p, nil
}

func isElided(s string) bool {
	return len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']'
}

func unelide(s string) string {
	return s[1 : len(s)-1]
}

// Entry is the outcome of mapping one environment variable. Found is false
// when the referenced service is not running.
type Entry struct {
	Name  string
	Value string
	Found bool
}

// EnvOptions configures MapEnv.
type EnvOptions struct {
	Strict bool
	// HostOverride wins over the docker host derived from NetInfo.
	HostOverride string
	// NetInfo locates the docker daemon; nil uses the process environment.
	NetInfo *NetInfo
}

// MapEnv maps every value of env and returns the entries sorted by name.
// Unpublished services yield an entry with Found set to false; any other
// error aborts the batch.
func MapEnv(ctx context.Context, lookup repository.PortLookup, env map[string]string, opts EnvOptions) ([]Entry, error) {
	override := opts.HostOverride
	if override == "" {
		netInfo := opts.NetInfo
		if netInfo == nil {
			netInfo = DefaultNetInfo()
		}
		ip, err := netInfo.DockerRoutableIP()
		if err != nil {
			log.Warn("Cannot resolve docker host, keeping published addresses", "error", err)
		} else {
			override = ip
		}
	}

	m := New(lookup, override, opts.Strict)

	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		value, err := m.MapScalar(ctx, env[name])
		switch {
		case errors.Is(err, ErrNoService):
			log.Debug("Service not running, leaving variable unset", "name", name, "error", err)
			entries = append(entries, Entry{Name: name})
		case err != nil:
			return nil, fmt.Errorf("cannot map %s: %w", name, err)
		default:
			entries = append(entries, Entry{Name: name, Value: value, Found: true})
		}
	}
	return entries, nil
}
