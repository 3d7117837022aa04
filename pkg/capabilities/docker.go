package capabilities

import (
	"context"
	"strings"

	"compose-shim/pkg/shell"
)

// DockerCapability represents the docker CLI.
type DockerCapability struct {
	exec    shell.Executor
	version string
}

// NewDockerCapability creates a new Docker capability
func NewDockerCapability(exec shell.Executor) *DockerCapability {
	return &DockerCapability{exec: exec}
}

// Name returns the name of the capability
func (c *DockerCapability) Name() string {
	return CapabilityDocker
}

// Version returns the version of the capability
func (c *DockerCapability) Version() string {
	return c.version
}

// IsAvailable checks if the docker CLI answers `docker --version`.
func (c *DockerCapability) IsAvailable(ctx context.Context) bool {
	res, err := c.exec.Run(ctx, []string{"docker", "--version"}, false)
	if err != nil || !res.Success() {
		return false
	}

	// "Docker version 27.0.3, build 7d4bcd8"
	parts := strings.Fields(string(res.Stdout))
	if len(parts) >= 3 {
		c.version = strings.TrimSuffix(parts[2], ",")
	}
	return true
}
