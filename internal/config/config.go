// Package config loads copyir.toml, the per-project tool configuration.
// Command-line flags override every value read here.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"copyir/internal/trace"
)

// Config is the decoded tool configuration.
type Config struct {
	// Path is the file the configuration came from, empty for defaults.
	Path string `toml:"-"`

	Build  BuildConfig  `toml:"build"`
	Cache  CacheConfig  `toml:"cache"`
	Trace  TraceConfig  `toml:"trace"`
	Heap   HeapConfig   `toml:"heap"`
	Server ServerConfig `toml:"server"`
}

type BuildConfig struct {
	Jobs           int `toml:"jobs"`
	MaxDiagnostics int `toml:"max_diagnostics"`
}

type CacheConfig struct {
	Dir      string `toml:"dir"`
	Disabled bool   `toml:"disabled"`
}

type TraceConfig struct {
	Level  string `toml:"level"`
	Mode   string `toml:"mode"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

type HeapConfig struct {
	Alignment     uint64 `toml:"alignment"`
	ReservedBytes uint64 `toml:"reserved_bytes"`
	Base          uint64 `toml:"base"`
}

type ServerConfig struct {
	Port int `toml:"port"`
}

// DefaultPort is the build server port when none is configured.
const DefaultPort = 26681

// Default returns the configuration used when no copyir.toml exists.
func Default() Config {
	return Config{
		Build: BuildConfig{MaxDiagnostics: 100},
		Trace: TraceConfig{Level: "off", Mode: "stream", Output: "stderr"},
		Heap:  HeapConfig{Alignment: 4096, Base: 0x100000000},
		Server: ServerConfig{
			Port: DefaultPort,
		},
	}
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Load decodes path over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	cfg.Path = path
	if keys := meta.Undecoded(); len(keys) > 0 {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: %w: unknown keys %s", path, ErrInvalid, strings.Join(names, ", "))
	}
	if cfg.Cache.Dir != "" && !filepath.IsAbs(cfg.Cache.Dir) {
		cfg.Cache.Dir = filepath.Join(filepath.Dir(path), cfg.Cache.Dir)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Discover loads the nearest copyir.toml above startDir, or the defaults.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Build.Jobs < 0 {
		errs = append(errs, fmt.Errorf("%w: build.jobs must not be negative", ErrInvalid))
	}
	if c.Build.MaxDiagnostics < 0 {
		errs = append(errs, fmt.Errorf("%w: build.max_diagnostics must not be negative", ErrInvalid))
	}
	if a := c.Heap.Alignment; a == 0 || a&(a-1) != 0 {
		errs = append(errs, fmt.Errorf("%w: heap.alignment %d is not a power of two", ErrInvalid, a))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: server.port %d out of range", ErrInvalid, c.Server.Port))
	}
	if _, err := trace.ParseLevel(c.Trace.Level); err != nil {
		errs = append(errs, fmt.Errorf("%w: trace.level: %v", ErrInvalid, err))
	}
	if _, err := trace.ParseMode(c.Trace.Mode); err != nil {
		errs = append(errs, fmt.Errorf("%w: trace.mode: %v", ErrInvalid, err))
	}
	if _, err := trace.ParseFormat(c.Trace.Format); err != nil {
		errs = append(errs, fmt.Errorf("%w: trace.format: %v", ErrInvalid, err))
	}
	return errors.Join(errs...)
}
