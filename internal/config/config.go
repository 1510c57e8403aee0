// Package config loads ctxview.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"ctxview/internal/query"
)

// FileName is the name searched for by Find.
const FileName = "ctxview.toml"

// ErrInvalidColor reports an [output].color value other than auto, on or off.
var ErrInvalidColor = errors.New("invalid [output].color")

// Engine holds the [engine] section.
type Engine struct {
	WindowSize int `toml:"window_size"`
}

// View holds the [view] section.
type View struct {
	ShowContext  bool     `toml:"show_context"`
	ContextTypes []string `toml:"context_types"`
}

// Output holds the [output] section.
type Output struct {
	Color    string `toml:"color"`
	MaxWidth int    `toml:"max_width"`
}

// Config is the decoded configuration file. Zero values mean "not set".
type Config struct {
	Path   string      `toml:"-"`
	Engine Engine      `toml:"engine"`
	View   View        `toml:"view"`
	Output Output      `toml:"output"`
	Query  query.Query `toml:"query"`

	hasQuery       bool
	hasShowContext bool
}

// HasQuery reports whether the file defines a [query] section.
func (c *Config) HasQuery() bool { return c != nil && c.hasQuery }

// ShowContextSet reports whether [view].show_context was given explicitly.
func (c *Config) ShowContextSet() bool { return c != nil && c.hasShowContext }

// Load parses the configuration at path.
func Load(path string) (*Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Path = path
	cfg.hasQuery = meta.IsDefined("query")
	cfg.hasShowContext = meta.IsDefined("view", "show_context")

	if meta.IsDefined("output", "color") {
		switch strings.ToLower(strings.TrimSpace(cfg.Output.Color)) {
		case "auto", "on", "off":
			cfg.Output.Color = strings.ToLower(strings.TrimSpace(cfg.Output.Color))
		default:
			return nil, fmt.Errorf("%s: %w %q (expected: auto|on|off)", path, ErrInvalidColor, cfg.Output.Color)
		}
	}
	if cfg.Engine.WindowSize < 0 {
		return nil, fmt.Errorf("%s: [engine].window_size must not be negative", path)
	}
	return &cfg, nil
}

// Find walks up from startDir to locate ctxview.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover loads the explicit path when given, otherwise the nearest
// ctxview.toml above startDir. A missing file yields an empty Config.
func Discover(explicit, startDir string) (*Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	path, ok, err := Find(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Config{}, nil
	}
	return Load(path)
}
