package model

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/docker/go-units"
)

var (
	// sizePattern finds the first "<number><unit>" in a size column such as
	// "1.09kB (virtual 187MB)".
	sizePattern = regexp.MustCompile(`(?i)(\d*\.?\d+)\s*([kmgt]?b)`)
	// statusPattern matches "Up 3 minutes", "Exited (1) 3 minutes ago", "Created".
	statusPattern = regexp.MustCompile(`^([A-Za-z]+) ?\(?([0-9]*)\)? ?(.*)$`)

	errUnknownSizeUnit = errors.New("no size with a B, KB, MB, GB or TB unit")
	errStatusShape     = errors.New("status does not start with a keyword")
)

// DecodeError reports a docker ps column that could not be decoded.
type DecodeError struct {
	Field string
	Value string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode container %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ParseSize returns the byte count of the first size found in field, using
// binary multipliers (1KB = 1024B). Anything after it, such as a virtual
// size annotation, is ignored.
func ParseSize(field string) (int64, error) {
	m := sizePattern.FindStringSubmatch(field)
	if m == nil {
		return 0, &DecodeError{Field: "size", Value: field, Err: errUnknownSizeUnit}
	}

	n, err := units.RAMInBytes(m[1] + m[2])
	if err != nil {
		return 0, &DecodeError{Field: "size", Value: field, Err: err}
	}
	return n, nil
}

// ParseStatus splits a docker ps status column into its lowercased keyword
// and exit code. The exit code is nil when the container is up and defaults
// to 0 when the column carries none.
func ParseStatus(field string) (string, *int, error) {
	m := statusPattern.FindStringSubmatch(strings.TrimSpace(field))
	if m == nil {
		return "", nil, &DecodeError{Field: "status", Value: field, Err: errStatusShape}
	}

	keyword := strings.ToLower(m[1])
	if keyword == StatusUp {
		return keyword, nil, nil
	}

	code := 0
	if m[2] != "" {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return "", nil, &DecodeError{Field: "status", Value: field, Err: err}
		}
		code = n
	}
	return keyword, &code, nil
}
