package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pulto-io/sift/analyze"
	"github.com/pulto-io/sift/catalog"
	"github.com/pulto-io/sift/cli/render"
	"github.com/pulto-io/sift/extract"
	"github.com/pulto-io/sift/log"
	"github.com/pulto-io/sift/metrics"
	"github.com/pulto-io/sift/notebook"
	"github.com/pulto-io/sift/types"
)

// ExtractSummary is the result printed after a successful extract.
type ExtractSummary struct {
	ExtractID  string `json:"extract_id"`
	Notebook   string `json:"notebook"`
	Day        string `json:"day"`
	Records    int    `json:"records"`
	CodeCells  int    `json:"code_cells"`
	TotalCells int    `json:"total_cells"`
	Backend    string `json:"backend"`
}

// ExtractCommand returns the extract command. Extract parses a notebook,
// normalizes every cell output into records, and persists records, raw
// notebook, and analysis report to the configured storage backend.
func ExtractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Extract normalized output records from a notebook",
		ArgsUsage: "<notebook.ipynb>",
		Flags: append(append(ReadOnlyFlags(), StorageFlags()...),
			&cli.BoolFlag{
				Name:  "skip-unchanged",
				Usage: "Skip extraction when the catalog digest matches",
			},
		),
		Action: extractAction,
	}
}

func extractAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: sift extract <notebook.ipynb>", exitExtractError)
	}
	notebookPath := c.Args().First()

	s, err := resolveSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), exitExtractError)
	}

	raw, err := os.ReadFile(notebookPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read notebook: %v", err), exitExtractError)
	}

	doc, err := notebook.Parse(raw)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid notebook: %v", err), exitExtractError)
	}
	digest := notebook.Digest(raw)

	meta := resolveMeta(c, notebookPath)
	logger := log.NewLogger(meta)
	defer func() { _ = logger.Sync() }()

	ctx := c.Context

	// Skip early when the catalog says the notebook is unchanged.
	if c.Bool("skip-unchanged") && s.catalogPath != "" {
		unchanged, err := catalogUnchanged(ctx, s.catalogPath, meta.Notebook, digest)
		if err != nil {
			return cli.Exit(fmt.Sprintf("catalog check failed: %v", err), exitExtractError)
		}
		if unchanged {
			logger.Info("notebook unchanged, skipping extraction", map[string]any{
				"digest": digest,
			})
			return nil
		}
	}

	records := extract.Records(doc)
	report := analyze.Analyze(doc)

	collector := metrics.NewCollector(s.backend, meta.ExtractID, meta.Notebook)
	st, err := buildStore(ctx, s, collector)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create store: %v", err), exitStorageFailure)
	}
	defer func() { _ = st.Close() }()

	if err := st.WriteOutputs(ctx, meta, records); err != nil {
		return cli.Exit(fmt.Sprintf("failed to write records: %v", err), exitStorageFailure)
	}
	if err := st.WriteNotebook(ctx, meta, raw); err != nil {
		return cli.Exit(fmt.Sprintf("failed to write notebook: %v", err), exitStorageFailure)
	}
	if err := st.WriteAnalysis(ctx, meta, report); err != nil {
		return cli.Exit(fmt.Sprintf("failed to write analysis: %v", err), exitStorageFailure)
	}

	if s.catalogPath != "" {
		entry := &catalog.Entry{
			Name:          meta.Notebook,
			Digest:        digest,
			TotalCells:    report.TotalCells,
			CodeCells:     report.CodeCells,
			HasSpatial:    hasSpatialMetadata(doc),
			LastExtractID: meta.ExtractID,
			LastExtracted: time.Now().UTC(),
		}
		if err := updateCatalog(ctx, s.catalogPath, entry); err != nil {
			logger.Warn("catalog update failed", map[string]any{
				"error": err.Error(),
			})
		}
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(ExtractSummary{
		ExtractID:  meta.ExtractID,
		Notebook:   meta.Notebook,
		Day:        meta.Day,
		Records:    len(records),
		CodeCells:  report.CodeCells,
		TotalCells: report.TotalCells,
		Backend:    s.backend,
	})
}

// hasSpatialMetadata reports whether any cell carries a spatial placement
// payload in its metadata.
func hasSpatialMetadata(doc *types.Document) bool {
	for i := range doc.Cells {
		if _, ok := doc.Cells[i].Metadata[types.SpatialMetadataKey]; ok {
			return true
		}
	}
	return false
}

// updateCatalog opens the catalog, upserts the entry, and closes it.
// Existing chart counts are preserved when the entry has none.
func updateCatalog(ctx context.Context, path string, entry *catalog.Entry) error {
	cat, err := catalog.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = cat.Close() }()

	if entry.ChartCount == 0 {
		if prev, err := cat.Get(ctx, entry.Name); err == nil {
			entry.ChartCount = prev.ChartCount
		}
	}

	return cat.Upsert(ctx, entry)
}

// catalogUnchanged reports whether the catalog holds the same digest.
func catalogUnchanged(ctx context.Context, path, name, digest string) (bool, error) {
	cat, err := catalog.Open(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = cat.Close() }()
	return cat.Unchanged(ctx, name, digest)
}
