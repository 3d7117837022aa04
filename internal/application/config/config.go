package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"compose-shim/pkg/env"
	"compose-shim/pkg/log"
	"compose-shim/pkg/yaml"
)

// SubstituteMode controls whether compose files are rendered by the shim
// before compose sees them.
type SubstituteMode string

const (
	// SubstituteAuto renders files only for compose releases without native
	// variable substitution.
	SubstituteAuto   SubstituteMode = "auto"
	SubstituteAlways SubstituteMode = "always"
	SubstituteNever  SubstituteMode = "never"
)

const (
	// DefaultFileName is looked up in the working directory when no config
	// path is given.
	DefaultFileName = "compose-shim.yml"

	defaultLogLevel  = "warn"
	defaultLogFormat = "text"
	dotEnvFile       = ".env"

	EnvComposeFile          = "COMPOSE_FILE"
	EnvComposePathSeparator = "COMPOSE_PATH_SEPARATOR"
	EnvComposeProjectName   = "COMPOSE_PROJECT_NAME"
	EnvLogLevel             = "COMPOSE_SHIM_LOG_LEVEL"
)

var defaultDockerCommand = []string{"docker"}

// Config holds the shim configuration.
type Config struct {
	// Dir is the compose project directory; commands run there.
	Dir string `yaml:"dir,omitempty"`
	// Files are the compose files, in override order.
	Files []string `yaml:"files,omitempty"`
	// Project is the compose project name. Empty lets compose derive it.
	Project string `yaml:"project,omitempty"`
	// ComposeCommand is the argv prefix of the orchestration tool. Empty
	// means detect "docker compose" or "docker-compose".
	ComposeCommand []string `yaml:"compose_command,omitempty"`
	// DockerCommand is the argv prefix of the inspection tool.
	DockerCommand []string `yaml:"docker_command,omitempty"`
	LogLevel      string   `yaml:"log_level,omitempty"`
	LogFormat     string   `yaml:"log_format,omitempty"`
	// Strict makes unparseable address values an error. Defaults to true.
	Strict *bool `yaml:"strict,omitempty"`
	// Interactive forces streaming mode on or off. Nil means detect a terminal.
	Interactive *bool          `yaml:"interactive,omitempty"`
	Substitute  SubstituteMode `yaml:"substitute,omitempty"`
	// HostOverride replaces the host part of every mapped address.
	HostOverride string `yaml:"host_override,omitempty"`
	// EnvFiles are extra dotenv files read after <dir>/.env.
	EnvFiles []string `yaml:"env_files,omitempty"`
}

// LookupFunc reads an environment variable.
type LookupFunc func(string) (string, bool)

// LoadConfig reads the YAML config at configPath, applies environment
// overrides from the process and the project's .env file, then fills in
// defaults. A missing file yields the defaults.
func LoadConfig(configPath string) (*Config, error) {
	return LoadConfigWith(configPath, os.LookupEnv)
}

// LoadConfigWith is LoadConfig with a custom environment lookup.
func LoadConfigWith(configPath string, lookup LookupFunc) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Debug("Config file not found, using defaults", "path", configPath)
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
		default:
			if err := yaml.UnmarshalYAML(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", configPath, err)
			}
		}
	}

	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	dotEnv, err := env.Load(append([]string{filepath.Join(cfg.Dir, dotEnvFile)}, cfg.EnvFiles...)...)
	if err != nil {
		return nil, err
	}

	applyEnv(cfg, func(name string) (string, bool) {
		if v, ok := lookup(name); ok {
			return v, true
		}
		v, ok := dotEnv[name]
		return v, ok
	})

	if err := prepareConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file settings with compose's own environment variables.
func applyEnv(cfg *Config, lookup LookupFunc) {
	if files, ok := lookup(EnvComposeFile); ok && files != "" {
		sep := string(os.PathListSeparator)
		if s, ok := lookup(EnvComposePathSeparator); ok && s != "" {
			sep = s
		}
		cfg.Files = nil
		for _, f := range strings.Split(files, sep) {
			if f = strings.TrimSpace(f); f != "" {
				cfg.Files = append(cfg.Files, f)
			}
		}
	}
	if project, ok := lookup(EnvComposeProjectName); ok && project != "" {
		cfg.Project = project
	}
	if level, ok := lookup(EnvLogLevel); ok && level != "" {
		cfg.LogLevel = level
	}
}

// prepareConfig applies defaults and validates the enumerations.
func prepareConfig(cfg *Config) error {
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return fmt.Errorf("invalid project directory %s: %w", cfg.Dir, err)
	}
	cfg.Dir = dir

	if len(cfg.DockerCommand) == 0 {
		cfg.DockerCommand = append([]string(nil), defaultDockerCommand...)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = defaultLogFormat
	}
	if cfg.Substitute == "" {
		cfg.Substitute = SubstituteAuto
	}

	switch cfg.Substitute {
	case SubstituteAuto, SubstituteAlways, SubstituteNever:
	default:
		return fmt.Errorf("invalid substitute mode %q, must be one of: %s, %s, %s",
			cfg.Substitute, SubstituteAuto, SubstituteAlways, SubstituteNever)
	}
	return nil
}

// IsStrict reports whether address mapping rejects unparseable values.
func (c *Config) IsStrict() bool {
	return c.Strict == nil || *c.Strict
}

// IsInteractive resolves the interactive setting; detected is used when
// the config leaves it open.
func (c *Config) IsInteractive(detected bool) bool {
	if c.Interactive == nil {
		return detected
	}
	return *c.Interactive
}
