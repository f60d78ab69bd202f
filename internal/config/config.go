package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Ledger is the default hash list path for cull.
	Ledger       string   `yaml:"ledger" toml:"ledger"`
	Exclude      []string `yaml:"exclude" toml:"exclude"`
	SizeLimit    int64    `yaml:"size_limit" toml:"size_limit"`
	ReportEvery  int      `yaml:"report_every" toml:"report_every"`
	PruneMissing bool     `yaml:"prune_missing" toml:"prune_missing"`
	VerifyStale  bool     `yaml:"verify_stale" toml:"verify_stale"`
	Sort         Sort     `yaml:"sort" toml:"sort"`
}

// Sort configures the date sorter.
type Sort struct {
	Format     string   `yaml:"format" toml:"format"` // Go time layout, / separates directories
	Extensions []string `yaml:"extensions" toml:"extensions"`
	HoldDir    string   `yaml:"hold_dir" toml:"hold_dir"`
	Rename     bool     `yaml:"rename" toml:"rename"`
	IgnoreExif bool     `yaml:"ignore_exif" toml:"ignore_exif"`
}

func DefaultConfig() *Config {
	return &Config{
		Ledger: filepath.Join("~", ".phoso", "hashes.json"),
		Exclude: []string{
			"@eaDir/",
			".@__thumb/",
			".stfolder/",
			".Trashes/",
			".Spotlight-V100/",
		},
		SizeLimit:    500_000_000,
		ReportEvery:  50,
		PruneMissing: true,
		Sort: Sort{
			Format: "2006/01",
			Extensions: []string{
				"jpg", "jpeg", "tiff", "arw", "avi", "mov",
				"mp4", "mts", "mkv", "rw2", "png", "3gp",
			},
			Rename: true,
		},
	}
}

// LoadConfig reads a YAML config, or TOML when the file ends in .toml.
// Keys absent from the file keep their defaults; a missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(ExpandHome(path))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config TOML: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SizeLimit < 0 {
		return fmt.Errorf("size_limit must not be negative, got %d", c.SizeLimit)
	}
	if c.ReportEvery < 0 {
		return fmt.Errorf("report_every must not be negative, got %d", c.ReportEvery)
	}
	if strings.TrimSpace(c.Sort.Format) == "" {
		return fmt.Errorf("sort.format must not be empty")
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~"+string(filepath.Separator)) && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
