// Package config resolves git-filegraph settings from defaults, an optional
// YAML file and the environment. Command-line flags are applied last by cmd.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thiagokokada/git-filegraph/internal/dot"
	"github.com/thiagokokada/git-filegraph/internal/history"
)

// FileName is looked up in the repository root when no explicit config file
// is given.
const FileName = ".git-filegraph.yaml"

const (
	EnvBackend  = "GIT_FILEGRAPH_BACKEND"
	EnvJobs     = "GIT_FILEGRAPH_JOBS"
	EnvFont     = "GIT_FILEGRAPH_FONT"
	EnvGraphviz = "GIT_FILEGRAPH_GRAPHVIZ"
)

const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	RepoPath     string `yaml:"repo_path"`
	FileName     string `yaml:"file_name"`
	OutputPath   string `yaml:"output_path"`
	GraphvizPath string `yaml:"graphviz_path"`

	Backend string `yaml:"backend"`
	Jobs    int    `yaml:"jobs"`
	Font    string `yaml:"font"`
	Color   string `yaml:"color"`
	Mode    string `yaml:"mode"`
	Strict  bool   `yaml:"strict"`
	Watch   bool   `yaml:"watch"`
	Verbose bool   `yaml:"verbose"`
}

func Default() Config {
	return Config{
		Backend: string(history.DefaultKind),
		Jobs:    1,
		Font:    dot.DefaultFontName,
		Color:   ColorAuto,
		Mode:    dot.ThemeAuto.String(),
	}
}

// LoadFile overlays the YAML document at path onto cfg. Keys absent from the
// file keep their current values. A missing file is only an error when
// required is set.
func LoadFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// RepoFile returns the per-repository config path for repoPath.
func RepoFile(repoPath string) string {
	return filepath.Join(repoPath, FileName)
}

// ApplyEnv overrides cfg with the GIT_FILEGRAPH_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv(EnvBackend); ok && v != "" {
		cfg.Backend = v
	}
	if v, ok := os.LookupEnv(EnvJobs); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalid, EnvJobs, v, err)
		}
		cfg.Jobs = n
	}
	if v, ok := os.LookupEnv(EnvFont); ok && v != "" {
		cfg.Font = v
	}
	if v, ok := os.LookupEnv(EnvGraphviz); ok && v != "" {
		cfg.GraphvizPath = v
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.RepoPath) == "" {
		errs = append(errs, errors.New("repo_path is required"))
	}
	if strings.TrimSpace(c.FileName) == "" {
		errs = append(errs, errors.New("file_name is required"))
	}
	if _, err := history.ParseKind(c.Backend); err != nil {
		errs = append(errs, err)
	}
	if c.Jobs < 1 {
		errs = append(errs, fmt.Errorf("jobs must be at least 1, got %d", c.Jobs))
	}
	switch strings.ToLower(c.Color) {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		errs = append(errs, fmt.Errorf("unknown color setting %q (want auto, always or never)", c.Color))
	}
	if _, err := dot.ThemeFromString(c.Mode); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
