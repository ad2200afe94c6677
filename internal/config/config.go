package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the StackLens configuration.
type Config struct {
	SuRoot        string        `yaml:"su_root"`
	SourceRoot    string        `yaml:"source_root"`
	SourceExts    []string      `yaml:"source_exts"`
	Exclude       ExcludeConfig `yaml:"exclude"`
	NonCallIdents []string      `yaml:"non_call_idents"`
	CriticalPaths []string      `yaml:"critical_paths"`
	Report        ReportConfig  `yaml:"report"`
	Diff          DiffConfig    `yaml:"diff"`
}

// ExcludeConfig defines directories skipped while scanning sources.
type ExcludeConfig struct {
	Dirs []string `yaml:"dirs"`
}

// ReportConfig controls report rendering.
type ReportConfig struct {
	Top int `yaml:"top"`
}

// DiffConfig controls baseline comparison thresholds, in percent.
type DiffConfig struct {
	ThresholdPct   float64 `yaml:"threshold_pct"`
	ImprovementPct float64 `yaml:"improvement_pct"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		SuRoot:     filepath.Join("build", "stack-usage"),
		SourceRoot: "src",
		SourceExts: []string{".c"},
		Exclude: ExcludeConfig{
			Dirs: []string{"build", "vendor", "third_party", ".git"},
		},
		Report: ReportConfig{
			Top: 10,
		},
		Diff: DiffConfig{
			ThresholdPct:   10.0,
			ImprovementPct: 5.0,
		},
	}
}

// Load reads configuration from file, falling back to defaults.
// If configPath is empty, it looks for stacklens.yaml in the current
// directory. Values in the config file replace defaults entirely
// (no merging).
func Load(configPath string) (*Config, error) {
	defaults := Default()

	if configPath == "" {
		configPath = "stacklens.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// No config file, use defaults
			return defaults, nil
		}
		return nil, err
	}

	// Unmarshal into empty struct first
	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, err
	}

	// Apply defaults for missing fields
	defaults.Merge(&fileCfg)
	return defaults, nil
}

// LoadFromDir loads configuration from the specified directory.
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, "stacklens.yaml"))
}

// Merge combines another config into this one, with other taking precedence.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.SuRoot != "" {
		c.SuRoot = other.SuRoot
	}
	if other.SourceRoot != "" {
		c.SourceRoot = other.SourceRoot
	}
	if len(other.SourceExts) > 0 {
		c.SourceExts = other.SourceExts
	}
	if len(other.Exclude.Dirs) > 0 {
		c.Exclude.Dirs = other.Exclude.Dirs
	}
	if len(other.NonCallIdents) > 0 {
		c.NonCallIdents = other.NonCallIdents
	}
	if len(other.CriticalPaths) > 0 {
		c.CriticalPaths = other.CriticalPaths
	}
	if other.Report.Top > 0 {
		c.Report.Top = other.Report.Top
	}
	if other.Diff.ThresholdPct > 0 {
		c.Diff.ThresholdPct = other.Diff.ThresholdPct
	}
	if other.Diff.ImprovementPct > 0 {
		c.Diff.ImprovementPct = other.Diff.ImprovementPct
	}
}

// IsExcludedDir checks if a directory should be excluded from scanning.
func (c *Config) IsExcludedDir(dir string) bool {
	base := filepath.Base(dir)
	for _, excluded := range c.Exclude.Dirs {
		if base == excluded {
			return true
		}
	}
	return false
}
