// Package store persists extraction results to a storage backend.
//
// Both backends share a Hive-style layout keyed by notebook, day, and
// extraction id:
//
//	notebook=<name>/day=<YYYY-MM-DD>/extract_id=<id>/outputs.jsonl
//	notebook=<name>/day=<YYYY-MM-DD>/extract_id=<id>/analysis.json
//	notebook=<name>/day=<YYYY-MM-DD>/extract_id=<id>/notebook.ipynb
//	notebook=<name>/day=<YYYY-MM-DD>/extract_id=<id>/charts/<chartKey>_<n>.png
package store

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/pulto-io/sift/types"
)

// Artifact file names within an extraction prefix.
const (
	OutputsFile  = "outputs.jsonl"
	AnalysisFile = "analysis.json"
	NotebookFile = "notebook.ipynb"
	ChartsDir    = "charts"
)

// Store persists extraction artifacts under the extraction prefix.
type Store interface {
	// WriteOutputs persists normalized output records as JSONL.
	WriteOutputs(ctx context.Context, meta *types.ExtractMeta, records []types.OutputRecord) error
	// WriteCharts persists captured figures as PNG files, one per image.
	WriteCharts(ctx context.Context, meta *types.ExtractMeta, charts *types.ChartSet) error
	// WriteNotebook persists the raw notebook document verbatim.
	WriteNotebook(ctx context.Context, meta *types.ExtractMeta, raw []byte) error
	// WriteAnalysis persists the structural report as JSON.
	WriteAnalysis(ctx context.Context, meta *types.ExtractMeta, report any) error
	// Close releases backend resources.
	Close() error
}

// Prefix returns the layout prefix for one extraction. Day defaults to the
// current UTC day when unset.
func Prefix(meta *types.ExtractMeta) string {
	day := meta.Day
	if day == "" {
		day = types.DeriveDay(time.Now())
	}
	return fmt.Sprintf("notebook=%s/day=%s/extract_id=%s",
		sanitizeSegment(meta.Notebook), day, sanitizeSegment(meta.ExtractID))
}

// ChartPath returns the relative path for one captured figure.
func ChartPath(cellIndex, imageIndex int) string {
	return path.Join(ChartsDir, fmt.Sprintf("%s_%d.png", types.ChartKey(cellIndex), imageIndex))
}

// sanitizeSegment strips path separators so user-supplied names cannot
// escape the layout.
func sanitizeSegment(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	return strings.ReplaceAll(s, "\\", "_")
}

// encodeOutputs renders records as JSONL.
func encodeOutputs(records []types.OutputRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// encodeAnalysis renders the report as indented JSON.
func encodeAnalysis(report any) ([]byte, error) {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}
	return append(body, '\n'), nil
}

// chartFiles expands a chart set into relative paths and decoded PNG bytes.
func chartFiles(charts *types.ChartSet) (map[string][]byte, error) {
	files := make(map[string][]byte)
	for _, rec := range charts.Records {
		for i, image := range rec.Images {
			raw, err := base64.StdEncoding.DecodeString(image)
			if err != nil {
				return nil, fmt.Errorf("chart %s image %d: %w", types.ChartKey(rec.CellIndex), i, err)
			}
			files[ChartPath(rec.CellIndex, i)] = raw
		}
	}
	return files, nil
}

func validateMeta(meta *types.ExtractMeta) error {
	if meta == nil {
		return errors.New("store: nil extraction metadata")
	}
	return meta.Validate()
}
