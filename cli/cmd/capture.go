package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pulto-io/sift/cache"
	"github.com/pulto-io/sift/catalog"
	"github.com/pulto-io/sift/cli/render"
	"github.com/pulto-io/sift/harness"
	"github.com/pulto-io/sift/log"
	"github.com/pulto-io/sift/metrics"
	"github.com/pulto-io/sift/notebook"
	"github.com/pulto-io/sift/runtime"
	"github.com/pulto-io/sift/types"
)

// CaptureSummary is the result printed after a capture run.
type CaptureSummary struct {
	ExtractID string              `json:"extract_id"`
	Notebook  string              `json:"notebook"`
	Day       string              `json:"day"`
	Cells     int                 `json:"cells"`
	Evaluated int                 `json:"evaluated"`
	Skipped   int                 `json:"skipped"`
	Errors    int                 `json:"errors"`
	Timeouts  int                 `json:"timeouts"`
	Charts    int                 `json:"charts"`
	CacheHit  bool                `json:"cache_hit"`
	Duration  string              `json:"duration"`
	Outcomes  []types.CellOutcome `json:"outcomes,omitempty"`
}

// CaptureCommand returns the capture command. Capture evaluates plot-like
// code cells in isolated Python harness processes, collects rendered figures
// as base64 PNG, and persists them to the configured storage backend.
func CaptureCommand() *cli.Command {
	return &cli.Command{
		Name:      "capture",
		Usage:     "Evaluate plot cells and capture rendered charts",
		ArgsUsage: "<notebook.ipynb>",
		Flags: append(append(ReadOnlyFlags(), StorageFlags()...),
			&cli.StringFlag{
				Name:  "python",
				Usage: "Python interpreter to launch the harness with",
			},
			&cli.IntFlag{
				Name:  "dpi",
				Usage: "Figure render resolution",
			},
			&cli.DurationFlag{
				Name:  "cell-timeout",
				Usage: "Per-cell evaluation timeout (e.g. 30s)",
			},
			&cli.StringSliceFlag{
				Name:  "keyword",
				Usage: "Plot detection keyword (repeatable, replaces defaults)",
			},
			&cli.StringFlag{
				Name:  "cache-url",
				Usage: "Redis URL for the chart cache (optional)",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Bypass the chart cache even when configured",
			},
			&cli.BoolFlag{
				Name:  "outcomes",
				Usage: "Include per-cell outcomes in the summary",
			},
		),
		Action: captureAction,
	}
}

func captureAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: sift capture <notebook.ipynb>", exitExtractError)
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

	collector := metrics.NewCollector(s.backend, meta.ExtractID, meta.Notebook)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	chartCache := openCache(s, logger)
	if chartCache != nil {
		defer func() { _ = chartCache.Close() }()
	}

	var charts *types.ChartSet
	var outcomes []types.CellOutcome
	var duration time.Duration
	cacheHit := false

	if chartCache != nil && !c.Bool("no-cache") {
		cached, err := chartCache.Get(ctx, digest)
		switch {
		case err == nil:
			charts = cached
			cacheHit = true
			collector.IncCacheHit()
			logger.Info("chart cache hit", map[string]any{"digest": digest})
		case errors.Is(err, cache.ErrMiss):
			collector.IncCacheMiss()
		default:
			logger.Warn("chart cache lookup failed", map[string]any{
				"error": err.Error(),
			})
		}
	}

	if charts == nil {
		harnessPath, err := harness.ExtractedPath()
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to extract harness: %v", err), exitHarnessCrash)
		}

		capturer, err := runtime.NewCapturer(&runtime.CaptureConfig{
			PythonPath:  s.python,
			HarnessPath: harnessPath,
			DPI:         s.dpi,
			CellTimeout: s.cellTimeout,
			Keywords:    s.keywords,
			Meta:        meta,
			Collector:   collector,
		})
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to create capturer: %v", err), exitHarnessCrash)
		}

		result, err := capturer.Capture(ctx, doc)
		if err != nil {
			return cli.Exit(fmt.Sprintf("capture aborted: %v", err), exitHarnessCrash)
		}
		charts = result.Charts
		outcomes = result.Outcomes
		duration = result.Duration

		if chartCache != nil && !c.Bool("no-cache") {
			if err := chartCache.Put(ctx, digest, charts); err != nil {
				logger.Warn("chart cache store failed", map[string]any{
					"error": err.Error(),
				})
			}
		}
	}

	st, err := buildStore(ctx, s, collector)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create store: %v", err), exitStorageFailure)
	}
	defer func() { _ = st.Close() }()

	if err := st.WriteCharts(ctx, meta, charts); err != nil {
		return cli.Exit(fmt.Sprintf("failed to write charts: %v", err), exitStorageFailure)
	}

	if s.catalogPath != "" {
		entry := &catalog.Entry{
			Name:          meta.Notebook,
			Digest:        digest,
			TotalCells:    len(doc.Cells),
			CodeCells:     codeCellCount(doc),
			ChartCount:    charts.ImageCount(),
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

	summary := CaptureSummary{
		ExtractID: meta.ExtractID,
		Notebook:  meta.Notebook,
		Day:       meta.Day,
		Cells:     len(doc.Cells),
		Charts:    charts.ImageCount(),
		CacheHit:  cacheHit,
		Duration:  duration.Round(time.Millisecond).String(),
	}
	for _, o := range outcomes {
		switch o.Status {
		case types.CellStatusSkipped:
			summary.Skipped++
		case types.CellStatusError:
			summary.Evaluated++
			summary.Errors++
		case types.CellStatusTimeout:
			summary.Evaluated++
			summary.Timeouts++
		default:
			summary.Evaluated++
		}
	}
	if c.Bool("outcomes") {
		summary.Outcomes = outcomes
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(summary)
}

// openCache connects to the chart cache when a URL is configured.
// Cache trouble is never fatal for capture: a nil cache disables it.
func openCache(s *settings, logger *log.Logger) *cache.Cache {
	if s.cacheURL == "" {
		return nil
	}
	ch, err := cache.New(cache.Config{URL: s.cacheURL, TTL: s.cacheTTL})
	if err != nil {
		logger.Warn("chart cache unavailable", map[string]any{
			"error": err.Error(),
		})
		return nil
	}
	return ch
}

func codeCellCount(doc *types.Document) int {
	n := 0
	for i := range doc.Cells {
		if doc.Cells[i].IsCode() {
			n++
		}
	}
	return n
}
