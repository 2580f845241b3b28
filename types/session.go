package types

import (
	"errors"
	"fmt"
	"time"
)

// ExtractMeta identifies a single extraction invocation. Every log line,
// stored object, and catalog row carries this identity.
type ExtractMeta struct {
	// ExtractID is the unique identifier for this invocation.
	ExtractID string
	// Notebook is the logical notebook name (usually the file stem).
	Notebook string
	// Day is the partition day in YYYY-MM-DD form, derived from start time.
	Day string
}

// Validate checks that the identity fields are usable as partition keys.
func (m *ExtractMeta) Validate() error {
	if m.ExtractID == "" {
		return errors.New("extract_id must be non-empty")
	}
	if m.Notebook == "" {
		return errors.New("notebook must be non-empty")
	}
	if m.Day != "" {
		if _, err := time.Parse("2006-01-02", m.Day); err != nil {
			return fmt.Errorf("day must be YYYY-MM-DD: %w", err)
		}
	}
	return nil
}

// DeriveDay formats the partition day for a start time (UTC).
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// CellStatus classifies the outcome of evaluating one cell in the harness.
type CellStatus string

const (
	// CellStatusCompleted indicates the cell evaluated and figures (if any)
	// were captured.
	CellStatusCompleted CellStatus = "completed"
	// CellStatusError indicates the cell source raised during evaluation.
	// The cell contributes no images; capture continues with later cells.
	CellStatusError CellStatus = "error"
	// CellStatusCrash indicates the harness process died or emitted an
	// undecodable stream.
	CellStatusCrash CellStatus = "crash"
	// CellStatusTimeout indicates the per-cell wall-clock bound expired and
	// the harness was killed.
	CellStatusTimeout CellStatus = "timeout"
	// CellStatusSkipped indicates the cell was not plot-like and was never
	// evaluated.
	CellStatusSkipped CellStatus = "skipped"
)

// CellOutcome is the per-cell capture verdict.
type CellOutcome struct {
	// CellIndex is the cell position in document order.
	CellIndex int `json:"cell_index"`
	// Status is the outcome classification.
	Status CellStatus `json:"status"`
	// Message is a human-readable description for non-completed outcomes.
	Message string `json:"message,omitempty"`
	// ErrorType is the exception class name for evaluation errors.
	ErrorType string `json:"error_type,omitempty"`
	// Figures is the number of images captured from this cell.
	Figures int `json:"figures"`
	// Duration is the wall-clock evaluation time.
	Duration time.Duration `json:"-"`
}
