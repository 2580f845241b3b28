package config

import (
	"fmt"
	"time"
)

// Config represents a sift.yaml configuration file.
// All values are optional and act as defaults for sift command flags.
// CLI flags always override config values.
type Config struct {
	Python  string        `yaml:"python"`
	Capture CaptureConfig `yaml:"capture"`
	Storage StorageConfig `yaml:"storage"`
	Cache   CacheConfig   `yaml:"cache"`
	Catalog CatalogConfig `yaml:"catalog"`
}

// CaptureConfig holds chart capture defaults from the config file.
type CaptureConfig struct {
	DPI         int      `yaml:"dpi"`
	CellTimeout Duration `yaml:"cell_timeout"`
	Keywords    []string `yaml:"keywords"`
}

// StorageConfig holds storage defaults from the config file.
type StorageConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// CacheConfig holds chart cache defaults from the config file.
type CacheConfig struct {
	URL string   `yaml:"url"`
	TTL Duration `yaml:"ttl"`
}

// CatalogConfig holds catalog defaults from the config file.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
