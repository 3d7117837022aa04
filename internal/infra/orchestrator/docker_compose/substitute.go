package docker_compose

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"compose-shim/internal/application/version"
	"compose-shim/pkg/log"
	"compose-shim/pkg/template"
)

// legacyDefaultFiles are the file names compose looks for when none is given.
var legacyDefaultFiles = []string{"docker-compose.yml", "docker-compose.yaml", "compose.yml", "compose.yaml"}

// NeedsSubstitution asks compose for its version and reports whether it
// predates native ${VAR} substitution in compose files.
func (s *Session) NeedsSubstitution(ctx context.Context) (bool, error) {
	info, err := s.Version(ctx, false)
	if err != nil {
		return false, err
	}

	for k, v := range info {
		switch strings.ToLower(k) {
		case "docker-compose version", "docker compose version":
			return version.NeedsSubstitution(v)
		}
	}
	return false, fmt.Errorf("cannot find compose version in %v", info)
}

// SubstitutingSession renders ${VAR} references in the compose files itself
// before handing them to a compose release that cannot.
type SubstitutingSession struct {
	session *Session
	vars    map[string]string
}

// NewSubstitutingSession wraps s. vars take precedence over the process
// environment.
func NewSubstitutingSession(s *Session, vars map[string]string) *SubstitutingSession {
	return &SubstitutingSession{session: s, vars: vars}
}

// Do renders every compose file into a temporary sibling, runs fn against a
// session that uses the rendered files and removes them afterwards.
func (ss *SubstitutingSession) Do(ctx context.Context, fn func(context.Context, *Session) error) error {
	files, err := ss.sourceFiles()
	if err != nil {
		return err
	}

	rendered := make([]string, 0, len(files))
	defer func() {
		for _, f := range rendered {
			if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
				log.Warn("Failed to remove rendered compose file", "path", f, "error", err)
			}
		}
	}()

	for _, src := range files {
		dst, err := ss.render(src)
		if err != nil {
			return err
		}
		rendered = append(rendered, dst)
	}

	log.Debug("Rendered compose files", "files", rendered)
	return fn(ctx, ss.session.WithFiles(rendered))
}

// sourceFiles resolves the session's files against its directory, falling
// back to the first default compose file that exists.
func (ss *SubstitutingSession) sourceFiles() ([]string, error) {
	dir := ss.session.Dir()
	files := ss.session.Files()

	if len(files) == 0 {
		for _, name := range legacyDefaultFiles {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return []string{path}, nil
			}
		}
		return nil, fmt.Errorf("no compose file found in %s", dir)
	}

	resolved := make([]string, 0, len(files))
	for _, f := range files {
		if !filepath.IsAbs(f) {
			f = filepath.Join(dir, f)
		}
		resolved = append(resolved, f)
	}
	return resolved, nil
}

// render writes the substituted content of src next to it, so that relative
// paths inside the file keep resolving.
func (ss *SubstitutingSession) render(src string) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("failed to read compose file %s: %w", src, err)
	}

	out, err := template.Substitute(string(data), ss.vars)
	if err != nil {
		return "", fmt.Errorf("failed to substitute variables in %s: %w", src, err)
	}

	ext := filepath.Ext(src)
	base := strings.TrimSuffix(filepath.Base(src), ext)
	dst := filepath.Join(filepath.Dir(src), fmt.Sprintf(".%s.%s%s", base, uuid.NewString(), ext))
	if err := os.WriteFile(dst, []byte(out), 0o600); err != nil {
		return "", fmt.Errorf("failed to write rendered compose file %s: %w", dst, err)
	}
	return dst, nil
}
