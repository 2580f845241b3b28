package runtime

import (
	"context"
	"encoding/base64"
	"io"
	"testing"
	"time"

	"github.com/pulto-io/sift/ipc"
	"github.com/pulto-io/sift/metrics"
	"github.com/pulto-io/sift/notebook"
	"github.com/pulto-io/sift/types"
)

// fakeHarness replays a canned frame stream and exit code.
type fakeHarness struct {
	config   *HarnessConfig
	frames   []any
	exitCode int
	startErr error
	// blockUntilCancel simulates a hung cell: Stdout yields nothing until
	// the start context is canceled, then closes as a killed process would.
	blockUntilCancel bool

	stdout *io.PipeReader
	killed bool
}

func (f *fakeHarness) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	reader, writer := io.Pipe()
	f.stdout = reader
	go func() {
		if f.blockUntilCancel {
			<-ctx.Done()
			_ = writer.Close()
			return
		}
		for _, frame := range f.frames {
			encoded, err := ipc.EncodeFrame(frame)
			if err != nil {
				_ = writer.CloseWithError(err)
				return
			}
			if _, err := writer.Write(encoded); err != nil {
				return
			}
		}
		_ = writer.Close()
	}()
	return nil
}

func (f *fakeHarness) Stdout() io.Reader { return f.stdout }

func (f *fakeHarness) Wait() (*HarnessResult, error) {
	return &HarnessResult{ExitCode: f.exitCode}, nil
}

func (f *fakeHarness) Kill() error {
	f.killed = true
	return nil
}

func parseNotebook(t *testing.T, raw string) *types.Document {
	t.Helper()
	doc, err := notebook.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

const captureNotebook = `{
  "nbformat": 4, "nbformat_minor": 5, "metadata": {},
  "cells": [
    {"cell_type": "markdown", "metadata": {}, "source": "# Charts"},
    {"cell_type": "code", "metadata": {}, "source": "x = load()", "outputs": []},
    {"cell_type": "code", "metadata": {}, "source": "plt.plot(x)", "outputs": []},
    {"cell_type": "code", "metadata": {}, "source": "plt.scatter(x, y)", "outputs": []}
  ]
}`

func newTestCapturer(t *testing.T, factory HarnessFactory, collector *metrics.Collector) *Capturer {
	t.Helper()
	c, err := NewCapturer(&CaptureConfig{
		Meta:           &types.ExtractMeta{ExtractID: "cap-test", Notebook: "cap.ipynb"},
		HarnessFactory: factory,
		CellTimeout:    time.Second,
		Collector:      collector,
	})
	if err != nil {
		t.Fatalf("NewCapturer: %v", err)
	}
	c.logger = c.logger.WithOutput(io.Discard)
	return c
}

func completedFrames(cellIndex int, png []byte) []any {
	return []any{
		&types.FigureFrame{Type: types.FrameTypeFigure, FigureID: "f1", Index: 0, ContentType: "image/png", SizeBytes: int64(len(png))},
		&types.FigureChunkFrame{Type: types.FrameTypeFigureChunk, FigureID: "f1", Seq: 1, IsLast: true, Data: png},
		&types.CellResultFrame{
			Type: types.FrameTypeCellResult, Protocol: types.ProtocolVersion,
			CellIndex: cellIndex, Status: types.CellStatusCompleted, Figures: 1,
		},
	}
}

func TestCapture_SkipsNonPlotCells(t *testing.T) {
	collector := metrics.NewCollector("fs", "cap-test", "cap.ipynb")
	var launched []int
	factory := func(config *HarnessConfig) Harness {
		launched = append(launched, config.CellIndex)
		return &fakeHarness{config: config, frames: completedFrames(config.CellIndex, []byte("PNG"))}
	}

	c := newTestCapturer(t, factory, collector)
	result, err := c.Capture(context.Background(), parseNotebook(t, captureNotebook))
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	// Only the two plot-like cells get a harness.
	if len(launched) != 2 || launched[0] != 2 || launched[1] != 3 {
		t.Errorf("launched = %v", launched)
	}

	snap := collector.Snapshot()
	if snap.CellsScanned != 3 || snap.CellsEvaluated != 2 || snap.CellsSkipped != 1 {
		t.Errorf("counters = %+v", snap)
	}

	// Outcomes cover all code cells, including the skipped one.
	if len(result.Outcomes) != 3 {
		t.Fatalf("outcomes = %d", len(result.Outcomes))
	}
	if result.Outcomes[0].Status != types.CellStatusSkipped {
		t.Errorf("cell 1 status = %q", result.Outcomes[0].Status)
	}
}

func TestCapture_CollectsFigures(t *testing.T) {
	png := []byte("fake png bytes")
	factory := func(config *HarnessConfig) Harness {
		return &fakeHarness{config: config, frames: completedFrames(config.CellIndex, png)}
	}

	c := newTestCapturer(t, factory, nil)
	result, err := c.Capture(context.Background(), parseNotebook(t, captureNotebook))
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if len(result.Charts.Records) != 2 {
		t.Fatalf("chart records = %d", len(result.Charts.Records))
	}
	rec := result.Charts.Records[0]
	if rec.CellIndex != 2 || len(rec.Images) != 1 {
		t.Fatalf("record = %+v", rec)
	}
	if rec.Images[0] != base64.StdEncoding.EncodeToString(png) {
		t.Errorf("image not base64 of raw bytes")
	}

	byKey := result.Charts.ByKey()
	if _, ok := byKey["chartKey_002"]; !ok {
		t.Errorf("keys = %v", byKey)
	}
}

func TestCapture_ErrorCellContinues(t *testing.T) {
	factory := func(config *HarnessConfig) Harness {
		if config.CellIndex == 2 {
			return &fakeHarness{
				config:   config,
				exitCode: ExitCodeError,
				frames: []any{&types.CellResultFrame{
					Type: types.FrameTypeCellResult, Protocol: types.ProtocolVersion,
					CellIndex: 2, Status: types.CellStatusError,
					ErrorType: "NameError", Message: "name 'x' is not defined",
				}},
			}
		}
		return &fakeHarness{config: config, frames: completedFrames(config.CellIndex, []byte("PNG"))}
	}

	c := newTestCapturer(t, factory, nil)
	result, err := c.Capture(context.Background(), parseNotebook(t, captureNotebook))
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	var errOutcome, okOutcome *types.CellOutcome
	for i := range result.Outcomes {
		switch result.Outcomes[i].CellIndex {
		case 2:
			errOutcome = &result.Outcomes[i]
		case 3:
			okOutcome = &result.Outcomes[i]
		}
	}
	if errOutcome == nil || errOutcome.Status != types.CellStatusError {
		t.Fatalf("error outcome = %+v", errOutcome)
	}
	if errOutcome.ErrorType != "NameError" {
		t.Errorf("error type = %q", errOutcome.ErrorType)
	}
	// The failing cell does not stop the cell after it.
	if okOutcome == nil || okOutcome.Status != types.CellStatusCompleted {
		t.Fatalf("later cell outcome = %+v", okOutcome)
	}
	if okOutcome.Figures != 1 {
		t.Errorf("later cell figures = %d", okOutcome.Figures)
	}
}

func TestCapture_Timeout(t *testing.T) {
	collector := metrics.NewCollector("fs", "cap-test", "cap.ipynb")
	factory := func(config *HarnessConfig) Harness {
		return &fakeHarness{config: config, blockUntilCancel: true, exitCode: -1}
	}

	c, err := NewCapturer(&CaptureConfig{
		Meta:           &types.ExtractMeta{ExtractID: "cap-test", Notebook: "cap.ipynb"},
		HarnessFactory: factory,
		CellTimeout:    50 * time.Millisecond,
		Collector:      collector,
	})
	if err != nil {
		t.Fatalf("NewCapturer: %v", err)
	}
	c.logger = c.logger.WithOutput(io.Discard)

	const nb = `{
	  "nbformat": 4, "nbformat_minor": 5, "metadata": {},
	  "cells": [{"cell_type": "code", "metadata": {}, "source": "plt.plot(x)", "outputs": []}]
	}`
	result, err := c.Capture(context.Background(), parseNotebook(t, nb))
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if len(result.Outcomes) != 1 {
		t.Fatalf("outcomes = %d", len(result.Outcomes))
	}
	if result.Outcomes[0].Status != types.CellStatusTimeout {
		t.Errorf("status = %q, want timeout", result.Outcomes[0].Status)
	}
	if collector.Snapshot().CellTimeouts != 1 {
		t.Errorf("timeout counter = %d", collector.Snapshot().CellTimeouts)
	}
}

func TestCapture_LaunchFailure(t *testing.T) {
	collector := metrics.NewCollector("fs", "cap-test", "cap.ipynb")
	factory := func(config *HarnessConfig) Harness {
		return &fakeHarness{config: config, startErr: io.ErrClosedPipe}
	}

	c := newTestCapturer(t, factory, collector)
	const nb = `{
	  "nbformat": 4, "nbformat_minor": 5, "metadata": {},
	  "cells": [{"cell_type": "code", "metadata": {}, "source": "plt.plot(x)", "outputs": []}]
	}`
	result, err := c.Capture(context.Background(), parseNotebook(t, nb))
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if result.Outcomes[0].Status != types.CellStatusCrash {
		t.Errorf("status = %q", result.Outcomes[0].Status)
	}
	if collector.Snapshot().HarnessLaunchFailure != 1 {
		t.Errorf("launch failures = %d", collector.Snapshot().HarnessLaunchFailure)
	}
}

func TestDetermineOutcome(t *testing.T) {
	completed := &types.CellResultFrame{Status: types.CellStatusCompleted, Figures: 2}
	errored := &types.CellResultFrame{Status: types.CellStatusError, ErrorType: "ValueError", Message: "boom"}

	tests := []struct {
		name        string
		exitCode    int
		hasTerminal bool
		terminal    *types.CellResultFrame
		wantStatus  types.CellStatus
	}{
		{"completed", ExitCodeCompleted, true, completed, types.CellStatusCompleted},
		{"exit 0 without terminal", ExitCodeCompleted, false, nil, types.CellStatusCrash},
		{"script error", ExitCodeError, true, errored, types.CellStatusError},
		{"exit 1 without terminal", ExitCodeError, false, nil, types.CellStatusCrash},
		{"crash", ExitCodeCrash, false, nil, types.CellStatusCrash},
		{"invalid input", ExitCodeInvalidInput, false, nil, types.CellStatusCrash},
		{"unknown code", 42, false, nil, types.CellStatusCrash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := DetermineOutcome(5, tt.exitCode, tt.hasTerminal, tt.terminal)
			if outcome.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", outcome.Status, tt.wantStatus)
			}
			if outcome.CellIndex != 5 {
				t.Errorf("cell index = %d", outcome.CellIndex)
			}
		})
	}

	t.Run("error details carried", func(t *testing.T) {
		outcome := DetermineOutcome(0, ExitCodeError, true, errored)
		if outcome.ErrorType != "ValueError" || outcome.Message != "boom" {
			t.Errorf("outcome = %+v", outcome)
		}
	})
}
