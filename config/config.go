// Package config handles tessera.toml configuration.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"
	"github.com/goccy/go-json"

	"github.com/chazu/tessera/vm"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "tessera.toml"

//go:embed schema.cue
var schemaSource string

// Config represents a tessera.toml file.
type Config struct {
	Render Render `toml:"render" json:"render"`
	Log    Log    `toml:"log" json:"log"`
	Store  Store  `toml:"store" json:"store"`
	Cache  Cache  `toml:"cache" json:"cache"`

	// Dir is the directory containing the tessera.toml file (set at load time).
	Dir string `toml:"-" json:"-"`
}

// Render configures the VM.
type Render struct {
	MaxFrameDepth int  `toml:"max-frame-depth" json:"max-frame-depth"`
	Trace         bool `toml:"trace" json:"trace"`
}

// Log configures commonlog. Verbosity follows commonlog: -4 is silent, 0
// notices, 1 info, 2 and up debug.
type Log struct {
	Verbosity int    `toml:"verbosity" json:"verbosity"`
	File      string `toml:"file" json:"file,omitempty"`
}

// Store configures the template store. An empty path disables it.
type Store struct {
	Path string `toml:"path" json:"path,omitempty"`
}

// Cache configures the compiled program cache. The cache lives for one
// process, so it pays off for hosts and runs that compile the same
// template more than once.
type Cache struct {
	Enabled bool `toml:"enabled" json:"enabled"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Render: Render{MaxFrameDepth: vm.DefaultMaxFrameDepth},
		Cache:  Cache{Enabled: true},
	}
}

// Load parses a tessera.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return c, nil
}

// Parse decodes and validates a configuration. Missing keys keep their
// defaults.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if _, err := toml.Decode(string(data), c); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if err := Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a tessera.toml file, then
// loads it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate checks c against the embedded schema.
func Validate(c *Config) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	v := ctx.CompileBytes(data, cue.Filename(FileName))
	if err := v.Err(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Derived settings
// ---------------------------------------------------------------------------

// VMOptions returns the VM options the configuration selects.
func (c *Config) VMOptions() []vm.Option {
	return []vm.Option{
		vm.WithMaxFrameDepth(c.Render.MaxFrameDepth),
		vm.WithTrace(c.Render.Trace),
	}
}

// StorePath returns the store path resolved against Dir, or "" when no
// store is configured.
func (c *Config) StorePath() string {
	if c.Store.Path == "" {
		return ""
	}
	if filepath.IsAbs(c.Store.Path) || c.Dir == "" {
		return c.Store.Path
	}
	return filepath.Join(c.Dir, c.Store.Path)
}

// LogFile returns the log file resolved against Dir, or nil for stderr.
func (c *Config) LogFile() *string {
	if c.Log.File == "" {
		return nil
	}
	path := c.Log.File
	if !filepath.IsAbs(path) && c.Dir != "" {
		path = filepath.Join(c.Dir, path)
	}
	return &path
}
