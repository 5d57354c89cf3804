package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/standardbeagle/gtc/internal/errors"
	"github.com/standardbeagle/gtc/internal/selector"
)

const (
	DefaultWidth      = 4
	MaxWidth          = 18
	DefaultIntervalMs = 100
	DefaultDebounceMs = 300
)

type Config struct {
	Version  int      `toml:"version"`
	Corpus   Corpus   `toml:"corpus"`
	Renumber Renumber `toml:"renumber"`
	Progress Progress `toml:"progress"`
	Watch    Watch    `toml:"watch"`
	Lock     Lock     `toml:"lock"`
}

type Corpus struct {
	Root          string   `toml:"root"`
	Selector      string   `toml:"selector"`       // glob, or regex with a re: prefix
	Exclude       []string `toml:"exclude"`        // doublestar patterns on root-relative paths
	RespectIgnore bool     `toml:"respect_ignore"` // read .gtcignore at the corpus root
}

type Renumber struct {
	Width int `toml:"width"`
}

type Progress struct {
	IntervalMs int `toml:"interval_ms"`
}

type Watch struct {
	DebounceMs int `toml:"debounce_ms"`
}

type Lock struct {
	Enabled bool `toml:"enabled"`
}

// Default returns the configuration used when no file is present
func Default(root string) *Config {
	return &Config{
		Version: 1,
		Corpus: Corpus{
			Root:          root,
			Selector:      selector.DefaultSelection,
			Exclude:       []string{"**/.*/**"}, // hidden directories such as .git
			RespectIgnore: true,
		},
		Renumber: Renumber{Width: DefaultWidth},
		Progress: Progress{IntervalMs: DefaultIntervalMs},
		Watch:    Watch{DebounceMs: DefaultDebounceMs},
		Lock:     Lock{Enabled: true},
	}
}

// Load reads the configuration for the corpus in dir, layered over the
// user's global ~/.gtc.kdl when one exists
func Load(fsys afero.Fs, dir string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return LoadWithHome(fsys, dir, home)
}

// LoadWithHome is Load with an explicit home directory ("" skips the global file)
func LoadWithHome(fsys afero.Fs, dir, home string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		absDir = dir
	}

	// Step 1: global base config
	var base *Config
	if home != "" && filepath.Clean(home) != absDir {
		if base, err = LoadKDL(fsys, home); err != nil {
			return nil, err
		}
		if base != nil {
			// the global file never names a corpus
			base.Corpus.Root = absDir
		}
	}

	// Step 2: project config, KDL first then TOML
	project, err := LoadKDL(fsys, absDir)
	if err != nil {
		return nil, err
	}
	if project == nil {
		if project, err = LoadTOML(fsys, absDir); err != nil {
			return nil, err
		}
	}

	// Step 3: merge
	var cfg *Config
	switch {
	case base != nil && project != nil:
		cfg = mergeConfigs(base, project)
	case project != nil:
		cfg = project
	case base != nil:
		cfg = base
	default:
		cfg = Default(absDir)
	}

	if cfg.Corpus.RespectIgnore {
		patterns, err := LoadIgnore(fsys, cfg.Corpus.Root)
		if err != nil {
			return nil, err
		}
		cfg.Corpus.Exclude = dedupePatterns(append(cfg.Corpus.Exclude, patterns...))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveRoot makes a configured root absolute relative to the directory
// holding the config file
func resolveRoot(root, dir string) string {
	if root == "" {
		return dir
	}
	if !filepath.IsAbs(root) {
		root = filepath.Join(dir, root)
	}
	return filepath.Clean(root)
}

// mergeConfigs layers a project config over a base config. Project values
// win; base exclusions are kept.
func mergeConfigs(base, project *Config) *Config {
	merged := *project
	merged.Corpus.Exclude = dedupePatterns(append(append([]string{}, base.Corpus.Exclude...), project.Corpus.Exclude...))
	return &merged
}

func dedupePatterns(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// Validate rejects values the engine cannot run with
func (c *Config) Validate() error {
	if c.Corpus.Root == "" {
		return errors.NewConfigError("corpus.root", "", fmt.Errorf("corpus root cannot be empty"))
	}
	if _, err := selector.Parse(c.Corpus.Selector); err != nil {
		return err
	}
	for _, p := range c.Corpus.Exclude {
		if !doublestar.ValidatePattern(p) {
			return errors.NewConfigError("corpus.exclude", p, fmt.Errorf("invalid glob pattern"))
		}
	}
	if c.Renumber.Width < 1 || c.Renumber.Width > MaxWidth {
		return errors.NewConfigError("renumber.width", fmt.Sprint(c.Renumber.Width),
			fmt.Errorf("must be between 1 and %d", MaxWidth))
	}
	if c.Progress.IntervalMs < 0 {
		return errors.NewConfigError("progress.interval_ms", fmt.Sprint(c.Progress.IntervalMs), fmt.Errorf("cannot be negative"))
	}
	if c.Watch.DebounceMs < 0 {
		return errors.NewConfigError("watch.debounce_ms", fmt.Sprint(c.Watch.DebounceMs), fmt.Errorf("cannot be negative"))
	}
	return nil
}

// Selector parses the configured selector
func (c *Config) Selector() (selector.Selector, error) {
	return selector.Parse(c.Corpus.Selector)
}

// ProgressInterval is the minimum spacing between progress callbacks
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.Progress.IntervalMs) * time.Millisecond
}

// WatchDebounce is the quiet period the watcher waits for before rescanning
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}
