package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pulto-io/sift/metrics"
	"github.com/pulto-io/sift/types"
)

// FSStore persists extraction artifacts on the local filesystem.
type FSStore struct {
	root      string
	collector *metrics.Collector
}

// NewFSStore creates a filesystem store rooted at the given directory.
// The directory is created if missing.
func NewFSStore(root string, collector *metrics.Collector) (*FSStore, error) {
	if root == "" {
		return nil, errors.New("fs store requires a root directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("fs store: create root: %w", err)
	}
	return &FSStore{root: root, collector: collector}, nil
}

// Root returns the store root directory.
func (s *FSStore) Root() string {
	return s.root
}

// WriteOutputs persists normalized output records as JSONL.
func (s *FSStore) WriteOutputs(ctx context.Context, meta *types.ExtractMeta, records []types.OutputRecord) error {
	body, err := encodeOutputs(records)
	if err != nil {
		return err
	}
	return s.writeFile(ctx, meta, OutputsFile, body)
}

// WriteCharts persists captured figures, one PNG file per image.
func (s *FSStore) WriteCharts(ctx context.Context, meta *types.ExtractMeta, charts *types.ChartSet) error {
	files, err := chartFiles(charts)
	if err != nil {
		s.collector.IncStoreFailure()
		return err
	}
	for rel, body := range files {
		if err := s.writeFile(ctx, meta, rel, body); err != nil {
			return err
		}
	}
	return nil
}

// WriteNotebook persists the raw notebook document verbatim.
func (s *FSStore) WriteNotebook(ctx context.Context, meta *types.ExtractMeta, raw []byte) error {
	return s.writeFile(ctx, meta, NotebookFile, raw)
}

// WriteAnalysis persists the structural report as JSON.
func (s *FSStore) WriteAnalysis(ctx context.Context, meta *types.ExtractMeta, report any) error {
	body, err := encodeAnalysis(report)
	if err != nil {
		return err
	}
	return s.writeFile(ctx, meta, AnalysisFile, body)
}

// writeFile writes one artifact under the extraction prefix. The write
// goes through a temp file and rename so partial writes never surface
// under the final name.
func (s *FSStore) writeFile(ctx context.Context, meta *types.ExtractMeta, rel string, body []byte) error {
	if err := validateMeta(meta); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("fs store: %w", err)
	}

	target := filepath.Join(s.root, filepath.FromSlash(Prefix(meta)), filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		s.collector.IncStoreFailure()
		return fmt.Errorf("fs store: mkdir: %w", err)
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		s.collector.IncStoreFailure()
		return fmt.Errorf("fs store: write %s: %w", rel, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		s.collector.IncStoreFailure()
		_ = os.Remove(tmp)
		return fmt.Errorf("fs store: rename %s: %w", rel, err)
	}

	s.collector.IncStoreWrite()
	return nil
}

// Close releases store resources. No-op for the filesystem backend.
func (s *FSStore) Close() error {
	return nil
}

var _ Store = (*FSStore)(nil)
