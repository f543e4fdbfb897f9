// Package config carries file-based defaults for the build and run commands.
package config

import (
	"fmt"

	"github.com/pelletier/go-toml"

	"github.com/forgeworks-io/crossrun/pkg/util"
)

// Config holds defaults that individual command flags may override.
type Config struct {
	// Input is the directory containing the program to cross-compile.
	Input string `toml:"input"`
	// Dest is the root of the per-target artifact directories.
	Dest string `toml:"dest"`
	// Name is the binary name built and run.
	Name string `toml:"name"`
	// HeapMultiplier is multiplied by 1024 to form the megabyte memory hint
	// passed to compiled binaries and the compiler.
	HeapMultiplier int `toml:"heap-multiplier"`
	// Listen is the control server address.
	Listen string `toml:"listen"`
	// DB is the path of the build/run history database.
	DB string `toml:"db"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Input:          ".",
		Dest:           "dist",
		Name:           "agent",
		HeapMultiplier: 4,
		Listen:         "127.0.0.1:8080",
		DB:             "~/.crossrun/history.db",
	}
}

// Load reads a TOML config file over the defaults. An empty path returns the
// defaults unchanged; a missing file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := util.LoadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load config at %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config at %s: %w", path, err)
	}
	return cfg, nil
}
