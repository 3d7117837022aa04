package capabilities

import (
	"context"
	"strings"

	"compose-shim/pkg/shell"
)

// DockerComposeCapability represents one compose flavour: the docker CLI
// plugin ("docker compose") or the standalone "docker-compose".
type DockerComposeCapability struct {
	exec    shell.Executor
	command []string
	name    string
	version string
}

// NewDockerComposeCapability creates a compose capability run as command.
func NewDockerComposeCapability(exec shell.Executor, command []string, name string) *DockerComposeCapability {
	return &DockerComposeCapability{
		exec:    exec,
		command: append([]string(nil), command...),
		name:    name,
	}
}

// Name returns the name of the capability
func (c *DockerComposeCapability) Name() string {
	return c.name
}

// Version returns the version of the capability
func (c *DockerComposeCapability) Version() string {
	return c.version
}

// Command returns the argv prefix that runs this flavour.
func (c *DockerComposeCapability) Command() []string {
	return append([]string(nil), c.command...)
}

// IsAvailable runs `<command> version` and records the reported version.
func (c *DockerComposeCapability) IsAvailable(ctx context.Context) bool {
	argv := append(c.Command(), "version")
	res, err := c.exec.Run(ctx, argv, false)
	if err != nil || !res.Success() {
		return false
	}

	// "Docker Compose version v2.27.0" or
	// "docker-compose version 1.29.2, build 5becea4c"
	first, _, _ := strings.Cut(strings.TrimSpace(string(res.Stdout)), "\n")
	if _, after, ok := strings.Cut(strings.ToLower(first), "version "); ok {
		v, _, _ := strings.Cut(after, ",")
		c.version = strings.TrimPrefix(strings.TrimSpace(v), "v")
	}
	return true
}
