// Package config loads runtime settings from the environment.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/caarlos0/env/v11"
	"go.trai.ch/zerr"
)

// Settings holds the runtime configuration, parsed from PORTO_* environment
// variables with derived defaults.
type Settings struct {
	// Root is the live filesystem root packages are installed into.
	Root string `env:"PORTO_ROOT" envDefault:"/"`

	// StateDir holds the caches, build areas and the package database.
	// Defaults to ~/.porto.
	StateDir string `env:"PORTO_STATE"`

	// TreeDir is the ports tree containing recipe directories.
	TreeDir string `env:"PORTO_TREE" envDefault:"ports"`

	// Prefix is the installation prefix handed to recipe builds.
	Prefix string `env:"PORTO_PREFIX" envDefault:"/usr/local"`

	// Jobs is the parallelism hint exported to recipe builds.
	// Defaults to the number of CPUs.
	Jobs int `env:"PORTO_JOBS"`

	// FetchRetries bounds automatic retries of transient fetch failures.
	FetchRetries uint `env:"PORTO_FETCH_RETRIES" envDefault:"3"`

	// Progress enables the progress tape instead of plain logging.
	Progress bool `env:"PORTO_PROGRESS"`
}

// Load parses settings from the environment and fills derived defaults.
func Load() (*Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return nil, zerr.Wrap(err, "failed to parse environment settings")
	}

	if s.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, zerr.Wrap(err, "failed to determine home directory")
		}
		s.StateDir = filepath.Join(home, ".porto")
	}
	if s.Jobs <= 0 {
		s.Jobs = runtime.NumCPU()
	}

	return &s, nil
}

// SourceCacheDir is the shared content-addressed source cache.
func (s *Settings) SourceCacheDir() string { return filepath.Join(s.StateDir, "sources") }

// ArtifactDir is the binary cache holding built artifacts.
func (s *Settings) ArtifactDir() string { return filepath.Join(s.StateDir, "artifacts") }

// BuildRoot holds per-identity private build areas. Staging areas are
// discarded between attempts; only the caches persist.
func (s *Settings) BuildRoot() string { return filepath.Join(s.StateDir, "build") }

// DBRoot is the package database directory.
func (s *Settings) DBRoot() string { return filepath.Join(s.StateDir, "db") }

// LogDir holds per-package build logs.
func (s *Settings) LogDir() string { return filepath.Join(s.StateDir, "logs") }
