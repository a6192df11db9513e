// Package config loads bbtrace.toml.
//
// Values are layered: built-in defaults, then the file, then command-line
// flags. Apply* helpers only copy fields that were set at the higher layer.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "bbtrace.toml"

// Config is the root of bbtrace.toml.
type Config struct {
	Log    Log    `toml:"log"`
	Cache  Cache  `toml:"cache"`
	Replay Replay `toml:"replay"`
}

// Log configures the trace log.
type Log struct {
	Path      string `toml:"path"`
	Verbosity string `toml:"verbosity"`
	Format    string `toml:"format"`
	RingSize  int    `toml:"ring_size"`
}

// Cache configures the block cache.
type Cache struct {
	Buckets   int    `toml:"buckets"`
	Dump      string `toml:"dump"`
	Addresses bool   `toml:"addresses"`
}

// Replay configures the replay host.
type Replay struct {
	Jobs      int  `toml:"jobs"`
	OSThreads bool `toml:"os_threads"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: Log{
			Path:      "bbtrace.log",
			Verbosity: "annotated",
			Format:    "auto",
			RingSize:  256,
		},
		Cache: Cache{Buckets: 1024},
	}
}

// Load reads path over the defaults. A missing file is an error unless
// optional is set, in which case the defaults are returned.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges. Names such as verbosity are checked where
// they are parsed.
func (c Config) Validate() error {
	if c.Log.RingSize < 0 {
		return fmt.Errorf("[log].ring_size must not be negative, got %d", c.Log.RingSize)
	}
	if c.Cache.Buckets < 0 {
		return fmt.Errorf("[cache].buckets must not be negative, got %d", c.Cache.Buckets)
	}
	if c.Replay.Jobs < 0 {
		return fmt.Errorf("[replay].jobs must not be negative, got %d", c.Replay.Jobs)
	}
	return nil
}
