package capabilities

import (
	"context"
	"errors"
	"runtime"

	"compose-shim/pkg/log"
	"compose-shim/pkg/shell"
)

// Capability names
const (
	CapabilityDocker              = "docker"
	CapabilityDockerCompose       = "docker-compose-plugin"
	CapabilityDockerComposeLegacy = "docker-compose"
)

// ErrNoCompose is returned when neither compose flavour can be run.
var ErrNoCompose = errors.New("neither `docker compose` nor `docker-compose` is available")

// Capability is a tool that can be detected on the host.
type Capability interface {
	// Name returns the name of the capability
	Name() string
	// Version returns the detected version, or "" before detection
	Version() string
	// IsAvailable runs the tool and reports whether it answered
	IsAvailable(ctx context.Context) bool
}

// SystemInfo represents basic system information
type SystemInfo struct {
	OS   string
	Arch string
}

// GetSystemInfo returns the current system information
func GetSystemInfo() SystemInfo {
	return SystemInfo{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
}

// CapabilityFactory holds the detectable tools.
type CapabilityFactory struct {
	capabilities []Capability
}

// NewCapabilityFactory creates a factory whose detection commands run through exec.
func NewCapabilityFactory(exec shell.Executor) *CapabilityFactory {
	return &CapabilityFactory{
		capabilities: []Capability{
			NewDockerCapability(exec),
			NewDockerComposeCapability(exec, []string{"docker", "compose"}, CapabilityDockerCompose),
			NewDockerComposeCapability(exec, []string{"docker-compose"}, CapabilityDockerComposeLegacy),
		},
	}
}

// GetAllCapabilities returns all capabilities
func (f *CapabilityFactory) GetAllCapabilities() []Capability {
	return f.capabilities
}

// GetCapabilityByName returns a capability by its name
func (f *CapabilityFactory) GetCapabilityByName(name string) Capability {
	for _, c := range f.capabilities {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// DetectCompose returns the command prefix of the first compose flavour
// that runs, preferring the docker CLI plugin, and its version.
func (f *CapabilityFactory) DetectCompose(ctx context.Context) ([]string, string, error) {
	for _, name := range []string{CapabilityDockerCompose, CapabilityDockerComposeLegacy} {
		c, ok := f.GetCapabilityByName(name).(*DockerComposeCapability)
		if !ok {
			continue
		}
		if c.IsAvailable(ctx) {
			log.Debug("Detected compose", "command", c.Command(), "version", c.Version())
			return c.Command(), c.Version(), nil
		}
	}
	return nil, "", ErrNoCompose
}
