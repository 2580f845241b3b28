// Package cmd provides CLI commands for the sift binary.
package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pulto-io/sift/cli/config"
	"github.com/pulto-io/sift/metrics"
	"github.com/pulto-io/sift/store"
	"github.com/pulto-io/sift/types"
)

// Exit codes for commands that execute work.
const (
	exitSuccess        = 0
	exitExtractError   = 1
	exitHarnessCrash   = 2
	exitStorageFailure = 3
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// ConfigFlag points at a sift.yaml file supplying flag defaults.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to sift.yaml config file",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		ConfigFlag,
	}
}

// StorageFlags returns the flags shared by commands that persist results.
func StorageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "backend",
			Usage: "Storage backend: fs or s3",
		},
		&cli.StringFlag{
			Name:  "path",
			Usage: "Storage path (fs: directory, s3: bucket/prefix)",
		},
		&cli.StringFlag{
			Name:  "region",
			Usage: "AWS region for S3 backend (optional, uses default chain)",
		},
		&cli.StringFlag{
			Name:  "endpoint",
			Usage: "Custom S3 endpoint URL (for S3-compatible stores)",
		},
		&cli.BoolFlag{
			Name:  "s3-path-style",
			Usage: "Use path-style S3 addressing",
		},
		&cli.StringFlag{
			Name:  "extract-id",
			Usage: "Extraction ID (default: random UUID)",
		},
		&cli.StringFlag{
			Name:  "day",
			Usage: "Partition day YYYY-MM-DD (default: today, UTC)",
		},
		&cli.StringFlag{
			Name:  "catalog",
			Usage: "Path to SQLite catalog database (optional)",
		},
	}
}

// settings holds resolved command configuration: config file values with
// CLI flag overrides applied on top.
type settings struct {
	python      string
	dpi         int
	cellTimeout time.Duration
	keywords    []string

	backend     string
	path        string
	region      string
	endpoint    string
	s3PathStyle bool

	cacheURL string
	cacheTTL time.Duration

	catalogPath string
}

// resolveSettings loads the config file named by --config (if any) and
// overlays flag values. Flags always win over the file.
func resolveSettings(c *cli.Context) (*settings, error) {
	s := &settings{}

	if path := c.String("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		s.python = cfg.Python
		s.dpi = cfg.Capture.DPI
		s.cellTimeout = cfg.Capture.CellTimeout.Duration
		s.keywords = cfg.Capture.Keywords
		s.backend = cfg.Storage.Backend
		s.path = cfg.Storage.Path
		s.region = cfg.Storage.Region
		s.endpoint = cfg.Storage.Endpoint
		s.s3PathStyle = cfg.Storage.S3PathStyle
		s.cacheURL = cfg.Cache.URL
		s.cacheTTL = cfg.Cache.TTL.Duration
		s.catalogPath = cfg.Catalog.Path
	}

	if v := c.String("python"); v != "" {
		s.python = v
	}
	if v := c.Int("dpi"); v > 0 {
		s.dpi = v
	}
	if v := c.Duration("cell-timeout"); v > 0 {
		s.cellTimeout = v
	}
	if v := c.StringSlice("keyword"); len(v) > 0 {
		s.keywords = v
	}
	if v := c.String("backend"); v != "" {
		s.backend = v
	}
	if v := c.String("path"); v != "" {
		s.path = v
	}
	if v := c.String("region"); v != "" {
		s.region = v
	}
	if v := c.String("endpoint"); v != "" {
		s.endpoint = v
	}
	if c.Bool("s3-path-style") {
		s.s3PathStyle = true
	}
	if v := c.String("cache-url"); v != "" {
		s.cacheURL = v
	}
	if v := c.String("catalog"); v != "" {
		s.catalogPath = v
	}

	if s.backend == "" {
		s.backend = "fs"
	}

	return s, nil
}

// resolveMeta builds the extraction identity from flags, filling defaults:
// a random UUID for the extract ID and today's UTC day for the partition.
func resolveMeta(c *cli.Context, notebookPath string) *types.ExtractMeta {
	meta := &types.ExtractMeta{
		ExtractID: c.String("extract-id"),
		Notebook:  notebookStem(notebookPath),
		Day:       c.String("day"),
	}
	if meta.ExtractID == "" {
		meta.ExtractID = uuid.NewString()
	}
	if meta.Day == "" {
		meta.Day = types.DeriveDay(time.Now())
	}
	return meta
}

// notebookStem derives the logical notebook name from a file path.
func notebookStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// buildStore creates the storage backend named in settings.
func buildStore(ctx context.Context, s *settings, collector *metrics.Collector) (store.Store, error) {
	switch s.backend {
	case "fs", "":
		if s.path == "" {
			return nil, fmt.Errorf("--path required for fs backend")
		}
		return store.NewFSStore(s.path, collector)
	case "s3":
		if s.path == "" {
			return nil, fmt.Errorf("--path required for s3 backend (bucket/prefix)")
		}
		bucket, prefix := store.ParseS3Path(s.path)
		cfg := store.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       s.region,
			Endpoint:     s.endpoint,
			UsePathStyle: s.s3PathStyle,
		}
		return store.NewS3Store(ctx, cfg, collector)
	default:
		return nil, fmt.Errorf("unknown backend: %s (must be fs or s3)", s.backend)
	}
}
