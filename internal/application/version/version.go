package version

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
)

var (
	// version is set at build time with -ldflags "-X ...version.version=1.2.3".
	version = "0.0.0"
	// versionRegex finds "1.2.3" in "docker-compose version 1.29.2, build 5becea4c"
	// or "v2.27.0-desktop.1".
	versionRegex = regexp.MustCompile(`(\d+\.\d+\.\d+)`)
)

// NativeSubstitution is the first compose release that interpolates ${VAR}
// in compose files by itself.
const NativeSubstitution = "1.5.0"

func GetVersion() string {
	return version
}

// Parse extracts the first x.y.z triple from raw.
func Parse(raw string) (*semver.Version, error) {
	matches := versionRegex.FindStringSubmatch(raw)
	if len(matches) < 2 {
		return nil, fmt.Errorf("no version number in %q", raw)
	}
	v, err := semver.NewVersion(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	return v, nil
}

// IsSmallerThan reports whether raw is an older version than other.
func IsSmallerThan(raw, other string) (bool, error) {
	v, err := Parse(raw)
	if err != nil {
		return false, err
	}
	o, err := Parse(other)
	if err != nil {
		return false, err
	}
	return v.LessThan(o), nil
}

// NeedsSubstitution reports whether a compose of the given version lacks
// native variable substitution.
func NeedsSubstitution(composeVersion string) (bool, error) {
	return IsSmallerThan(composeVersion, NativeSubstitution)
}
