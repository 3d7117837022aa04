package model

import (
	"strings"
)

type ContainerStatusCode int8

const (
	ContainerStatusUnknown     ContainerStatusCode = 0
	ContainerStatusActive      ContainerStatusCode = 1
	ContainerStatusIdle        ContainerStatusCode = 2
	ContainerStatusRestarting  ContainerStatusCode = 3
	ContainerStatusProblematic ContainerStatusCode = 4
	ContainerStatusStopped     ContainerStatusCode = 5
)

const (
	StatusUp = "up"

	LabelComposeService = "com.docker.compose.service"
	LabelComposeProject = "com.docker.compose.project"
)

// Container is one row of `docker ps`, decoded from the psformat record.
type Container struct {
	ID    string `json:"id"`
	Image string `json:"image"`
	// Size is the container's writable layer in bytes.
	Size int64 `json:"size"`
	// Status is the lowercased leading keyword of the status column, e.g. "up" or "exited".
	Status string `json:"status"`
	// ExitCode is nil while the container is up.
	ExitCode *int     `json:"exit_code,omitempty"`
	Names    []string `json:"names"`
	Labels   []string `json:"labels"`
	Ports    []string `json:"ports"`
}

// NewContainer decodes the raw docker ps fields into a Container. It fails
// with a *DecodeError when the size unit or the status shape is not
// recognised.
func NewContainer(id, image, size, status, names, labels, ports string) (*Container, error) {
	bytes, err := ParseSize(size)
	if err != nil {
		return nil, err
	}
	keyword, exitCode, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}

	return &Container{
		ID:       strings.TrimSpace(id),
		Image:    strings.TrimSpace(image),
		Size:     bytes,
		Status:   keyword,
		ExitCode: exitCode,
		Names:    splitList(names),
		Labels:   splitList(labels),
		Ports:    splitList(ports),
	}, nil
}

// IsRunning reports whether the container is up.
func (c *Container) IsRunning() bool {
	return c.Status == StatusUp
}

// PrimaryName returns the first name of the container, or "".
func (c *Container) PrimaryName() string {
	if len(c.Names) == 0 {
		return ""
	}
	return c.Names[0]
}

// LabelMap returns the labels as key/value pairs. A label without "=" maps
// to the empty string.
func (c *Container) LabelMap() map[string]string {
	labels := make(map[string]string, len(c.Labels))
	for _, l := range c.Labels {
		k, v, _ := strings.Cut(l, "=")
		labels[k] = v
	}
	return labels
}

// Service returns the compose service the container belongs to, or "".
func (c *Container) Service() string {
	return c.LabelMap()[LabelComposeService]
}

// Project returns the compose project the container belongs to, or "".
func (c *Container) Project() string {
	return c.LabelMap()[LabelComposeProject]
}

// StatusCode maps the docker status keyword onto a ContainerStatusCode.
func (c *Container) StatusCode() ContainerStatusCode {
	switch c.Status {
	case StatusUp:
		return ContainerStatusActive
	case "paused":
		return ContainerStatusIdle
	case "exited", "created":
		return ContainerStatusStopped
	case "restarting":
		return ContainerStatusRestarting
	case "dead":
		return ContainerStatusProblematic
	default:
		return ContainerStatusUnknown
	}
}

// splitList splits a comma separated docker ps column. An empty column
// yields an empty, non-nil slice.
func splitList(field string) []string {
	items := []string{}
	if strings.TrimSpace(field) == "" {
		return items
	}
	for _, item := range strings.Split(field, ",") {
		items = append(items, strings.TrimSpace(item))
	}
	return items
}
