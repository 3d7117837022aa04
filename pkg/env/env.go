package env

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Load reads dotenv files in order; later files override earlier ones.
// Missing files are skipped.
func Load(paths ...string) (map[string]string, error) {
	vars := map[string]string{}
	for _, p := range paths {
		fileVars, err := godotenv.Read(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read env file %s: %w", p, err)
		}
		for k, v := range fileVars {
			vars[k] = v
		}
	}
	return vars, nil
}

// Save writes vars to path in dotenv format, sorted by name. An empty map
// writes nothing.
func Save(path string, vars map[string]string) error {
	if len(vars) == 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create env directory: %w", err)
	}
	if err := godotenv.Write(vars, path); err != nil {
		return fmt.Errorf("failed to write env file %s: %w", path, err)
	}
	return nil
}

// Assignment is one variable to set or, when Unset is true, to remove.
type Assignment struct {
	Name  string
	Value string
	Unset bool
}

// WriteShell writes POSIX shell statements for the assignments, one per
// line, in order: `export NAME='value'` or `unset NAME`.
func WriteShell(w io.Writer, assignments []Assignment) error {
	for _, a := range assignments {
		var err error
		if a.Unset {
			_, err = fmt.Fprintf(w, "unset %s\n", a.Name)
		} else {
			_, err = fmt.Fprintf(w, "export %s=%s\n", a.Name, quote(a.Value))
		}
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", a.Name, err)
		}
	}
	return nil
}

// quote single-quotes s for a POSIX shell.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
