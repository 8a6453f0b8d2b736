// Package manifest handles lox.toml interpreter configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the configuration file.
const FileName = "lox.toml"

// DefaultStackSize is the value stack size used when lox.toml does not set one.
const DefaultStackSize = 256

// Manifest represents a lox.toml configuration.
type Manifest struct {
	VM       VMConfig       `toml:"vm"`
	Compiler CompilerConfig `toml:"compiler"`
	Cache    CacheConfig    `toml:"cache"`
	Log      LogConfig      `toml:"log"`

	// Dir is the directory containing the lox.toml file (set at load time).
	// Empty for defaults.
	Dir string `toml:"-"`
}

// VMConfig configures the virtual machine.
type VMConfig struct {
	StackSize int  `toml:"stack-size"`
	Trace     bool `toml:"trace"`
}

// CompilerConfig configures compilation.
type CompilerConfig struct {
	PrintCode bool `toml:"print-code"`
}

// CacheConfig configures the compiled chunk cache.
type CacheConfig struct {
	// Path of the SQLite database. Empty disables the cache.
	Path string `toml:"path"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no lox.toml exists.
func Default() *Manifest {
	return &Manifest{
		VM: VMConfig{StackSize: DefaultStackSize},
	}
}

// Load parses a lox.toml file from the given directory. Keys that are not
// set keep their default values; unknown keys are an error.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	md, err := toml.Decode(string(data), m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	return m, nil
}

// FindAndLoad walks up from startDir to find a lox.toml file, then loads
// and returns it. Returns Default() if no file is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return Default(), nil
		}
		dir = parent
	}
}

func (m *Manifest) validate() error {
	if m.VM.StackSize < 1 {
		return errors.New("vm.stack-size must be at least 1")
	}
	if m.Log.Verbosity < 0 {
		return errors.New("log.verbosity must not be negative")
	}
	return nil
}

// CachePath returns the cache database path, resolved against the manifest
// directory, or "" when caching is disabled.
func (m *Manifest) CachePath() string {
	return m.resolve(m.Cache.Path)
}

// LogPath returns the log file path, resolved against the manifest
// directory, or "" to log to stderr.
func (m *Manifest) LogPath() string {
	return m.resolve(m.Log.File)
}

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}
