package runtime

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pulto-io/sift/analyze"
	"github.com/pulto-io/sift/log"
	"github.com/pulto-io/sift/metrics"
	"github.com/pulto-io/sift/types"
)

// Capture defaults.
const (
	DefaultDPI         = 150
	DefaultCellTimeout = 30 * time.Second
	DefaultPythonPath  = "python3"
)

// Harness abstracts harness process lifecycle for testing.
type Harness interface {
	Start(ctx context.Context) error
	Stdout() io.Reader
	Wait() (*HarnessResult, error)
	Kill() error
}

// HarnessFactory creates a Harness. Used for test injection.
type HarnessFactory func(config *HarnessConfig) Harness

// CaptureConfig configures chart capture over one notebook.
type CaptureConfig struct {
	// PythonPath is the Python interpreter (default: python3).
	PythonPath string
	// HarnessPath is the path to the harness script.
	HarnessPath string
	// DPI is the figure render resolution (default: 150).
	DPI int
	// CellTimeout bounds each cell evaluation (default: 30s).
	CellTimeout time.Duration
	// Keywords are the plot detection substrings
	// (default: analyze.DefaultPlotKeywords).
	Keywords []string
	// Meta is the extraction identity metadata.
	Meta *types.ExtractMeta
	// HarnessFactory overrides harness creation (for testing).
	// If nil, uses NewHarnessManager.
	HarnessFactory HarnessFactory
	// Collector is the metrics collector for this extraction.
	// If nil, no metrics are recorded (all Collector methods are nil-safe).
	Collector *metrics.Collector
}

// CaptureResult represents the result of capturing one notebook.
type CaptureResult struct {
	// Charts holds one record per evaluated cell, in document order.
	Charts *types.ChartSet
	// Outcomes holds one outcome per code cell, including skipped cells.
	Outcomes []types.CellOutcome
	// Duration is the total capture duration.
	Duration time.Duration
}

// Capturer evaluates plot-like cells and collects their figures. Each cell
// runs in its own harness process: a cell error, crash, or timeout is
// recorded in the outcome and capture continues with the next cell.
type Capturer struct {
	config *CaptureConfig
	logger *log.Logger
}

// NewCapturer creates a capturer. Returns error if the extraction metadata
// is invalid or no harness path is configured.
func NewCapturer(config *CaptureConfig) (*Capturer, error) {
	if err := config.Meta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid extraction metadata: %w", err)
	}
	if config.HarnessPath == "" && config.HarnessFactory == nil {
		return nil, fmt.Errorf("harness path not configured")
	}
	if config.PythonPath == "" {
		config.PythonPath = DefaultPythonPath
	}
	if config.DPI <= 0 {
		config.DPI = DefaultDPI
	}
	if config.CellTimeout <= 0 {
		config.CellTimeout = DefaultCellTimeout
	}
	if len(config.Keywords) == 0 {
		config.Keywords = analyze.DefaultPlotKeywords
	}

	return &Capturer{
		config: config,
		logger: log.NewLogger(config.Meta),
	}, nil
}

// Capture walks the document and evaluates every plot-like code cell.
// Non-code cells and cells without plot keywords are skipped without
// evaluation. Returns an error only when ctx is canceled before the walk
// completes; per-cell failures are reported in the outcomes.
func (c *Capturer) Capture(ctx context.Context, doc *types.Document) (*CaptureResult, error) {
	start := time.Now()
	charts := &types.ChartSet{}
	var outcomes []types.CellOutcome

	for i := range doc.Cells {
		cell := &doc.Cells[i]
		if !cell.IsCode() {
			continue
		}
		c.config.Collector.IncCellScanned()

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("capture canceled: %w", err)
		}

		source := string(cell.Source)
		if !analyze.HasPlotCall(source, c.config.Keywords) {
			c.config.Collector.IncCellSkipped()
			outcomes = append(outcomes, types.CellOutcome{
				CellIndex: i,
				Status:    types.CellStatusSkipped,
			})
			continue
		}

		c.config.Collector.IncCellEvaluated()
		outcome, images := c.evaluateCell(ctx, i, source)
		outcomes = append(outcomes, *outcome)
		charts.Records = append(charts.Records, types.ChartRecord{
			CellIndex: i,
			Images:    images,
		})

		switch outcome.Status {
		case types.CellStatusError:
			c.config.Collector.IncCellError()
		case types.CellStatusTimeout:
			c.config.Collector.IncCellTimeout()
		}
	}

	return &CaptureResult{
		Charts:   charts,
		Outcomes: outcomes,
		Duration: time.Since(start),
	}, nil
}

// evaluateCell runs one cell in a fresh harness process and returns the
// outcome plus the captured figures as base64 PNG strings.
func (c *Capturer) evaluateCell(ctx context.Context, cellIndex int, source string) (*types.CellOutcome, []string) {
	cellStart := time.Now()
	cellCtx, cancel := context.WithTimeout(ctx, c.config.CellTimeout)
	defer cancel()

	harnessConfig := &HarnessConfig{
		PythonPath:  c.config.PythonPath,
		HarnessPath: c.config.HarnessPath,
		CellIndex:   cellIndex,
		Source:      source,
		DPI:         c.config.DPI,
	}

	var h Harness
	if c.config.HarnessFactory != nil {
		h = c.config.HarnessFactory(harnessConfig)
	} else {
		h = NewHarnessManager(harnessConfig)
	}

	c.logger.Debug("evaluating cell", map[string]any{
		"cell_index": cellIndex,
		"timeout":    c.config.CellTimeout.String(),
	})

	if err := h.Start(cellCtx); err != nil {
		c.config.Collector.IncHarnessLaunchFailure()
		c.logger.Error("failed to start harness", map[string]any{
			"cell_index": cellIndex,
			"error":      err.Error(),
		})
		return &types.CellOutcome{
			CellIndex: cellIndex,
			Status:    types.CellStatusCrash,
			Message:   fmt.Sprintf("failed to start harness: %v", err),
			Duration:  time.Since(cellStart),
		}, nil
	}
	c.config.Collector.IncHarnessLaunchSuccess()

	figures := NewFigureManager()
	ingestion := NewIngestionEngine(h.Stdout(), figures, c.logger, c.config.Collector)

	// Run ingestion to completion BEFORE reaping the process: exec.Cmd.Wait
	// closes the stdout pipe, which would fail ingestion reads even with
	// data still buffered.
	ingErr := ingestion.Run(cellCtx)

	if ingErr != nil {
		c.logger.Warn("killing harness due to ingestion error", map[string]any{
			"cell_index": cellIndex,
			"error":      ingErr.Error(),
		})
		_ = h.Kill()
	}

	result, waitErr := h.Wait()
	duration := time.Since(cellStart)

	if waitErr != nil {
		c.logger.Error("harness wait failed", map[string]any{
			"cell_index": cellIndex,
			"error":      waitErr.Error(),
		})
		return &types.CellOutcome{
			CellIndex: cellIndex,
			Status:    types.CellStatusCrash,
			Message:   fmt.Sprintf("harness wait failed: %v", waitErr),
			Duration:  duration,
		}, nil
	}

	// A cell killed at its deadline usually surfaces as a clean pipe
	// closure without a terminal frame. Classify by the cell context.
	if errors.Is(cellCtx.Err(), context.DeadlineExceeded) && !ingestion.HasTerminal() {
		c.logger.Warn("cell timed out", map[string]any{
			"cell_index": cellIndex,
			"timeout":    c.config.CellTimeout.String(),
		})
		return &types.CellOutcome{
			CellIndex: cellIndex,
			Status:    types.CellStatusTimeout,
			Message:   fmt.Sprintf("cell exceeded %s timeout", c.config.CellTimeout),
			Duration:  duration,
		}, nil
	}

	if ingErr != nil {
		if IsCanceledError(ingErr) {
			return &types.CellOutcome{
				CellIndex: cellIndex,
				Status:    types.CellStatusTimeout,
				Message:   fmt.Sprintf("cell exceeded %s timeout", c.config.CellTimeout),
				Duration:  duration,
			}, nil
		}
		return &types.CellOutcome{
			CellIndex: cellIndex,
			Status:    types.CellStatusCrash,
			Message:   fmt.Sprintf("stream error: %v", ingErr),
			Duration:  duration,
		}, nil
	}

	if orphans := figures.GetOrphanIDs(); len(orphans) > 0 {
		c.logger.Warn("discarding orphaned figures", map[string]any{
			"cell_index": cellIndex,
			"orphans":    len(orphans),
		})
	}

	terminal, hasTerminal := ingestion.GetTerminal()
	outcome := DetermineOutcome(cellIndex, result.ExitCode, hasTerminal, terminal)
	outcome.Duration = duration

	var images []string
	if outcome.Status == types.CellStatusCompleted {
		for _, raw := range figures.Images() {
			c.config.Collector.AddFigure(int64(len(raw)))
			images = append(images, base64.StdEncoding.EncodeToString(raw))
		}
		outcome.Figures = len(images)
	}

	c.logger.Info("cell evaluated", map[string]any{
		"cell_index": cellIndex,
		"status":     outcome.Status,
		"figures":    outcome.Figures,
		"exit_code":  result.ExitCode,
		"duration":   duration.String(),
	})

	return outcome, images
}
