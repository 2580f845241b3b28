package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pulto-io/sift/ipc"
	"github.com/pulto-io/sift/log"
	"github.com/pulto-io/sift/metrics"
	"github.com/pulto-io/sift/types"
)

// IngestionErrorKind classifies ingestion errors.
type IngestionErrorKind int

const (
	// IngestionErrorStream indicates a frame/stream error (harness crash outcome).
	IngestionErrorStream IngestionErrorKind = iota
	// IngestionErrorCanceled indicates context cancellation (timeout outcome).
	IngestionErrorCanceled
)

// IngestionError classifies ingestion failures for outcome determination.
type IngestionError struct {
	Kind IngestionErrorKind
	Err  error
}

func (e *IngestionError) Error() string {
	return e.Err.Error()
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// IsCanceledError returns true if the error is due to context cancellation.
func IsCanceledError(err error) bool {
	var ingErr *IngestionError
	if errors.As(err, &ingErr) {
		return ingErr.Kind == IngestionErrorCanceled
	}
	return false
}

// IsStreamError returns true if the error is a stream/frame error.
func IsStreamError(err error) bool {
	var ingErr *IngestionError
	if errors.As(err, &ingErr) {
		return ingErr.Kind == IngestionErrorStream
	}
	return false
}

// IngestionEngine reads harness frames for one cell run:
//   - Frames are read in order
//   - Chunk sequence numbers must be strictly monotonic per figure (1, 2, 3...)
//   - First terminal cell_result wins; subsequent terminals ignored
//   - Invalid framing is fatal (no resync)
type IngestionEngine struct {
	decoder      *ipc.FrameDecoder
	figures      *FigureManager
	logger       *log.Logger
	collector    *metrics.Collector
	terminalSeen bool
	terminal     *types.CellResultFrame
}

// NewIngestionEngine creates a new ingestion engine.
func NewIngestionEngine(
	reader io.Reader,
	figures *FigureManager,
	logger *log.Logger,
	collector *metrics.Collector,
) *IngestionEngine {
	return &IngestionEngine{
		decoder:   ipc.NewFrameDecoder(reader),
		figures:   figures,
		logger:    logger,
		collector: collector,
	}
}

// Run runs the ingestion loop until EOF or fatal error.
// Returns:
//   - nil: stream ended cleanly (EOF)
//   - *IngestionError with Kind=IngestionErrorStream: frame/stream error
//   - *IngestionError with Kind=IngestionErrorCanceled: context canceled
func (e *IngestionEngine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return &IngestionError{
				Kind: IngestionErrorCanceled,
				Err:  ctx.Err(),
			}
		default:
		}

		payload, err := e.decoder.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			// If the terminal frame was already received, pipe closure is
			// normal harness exit behavior.
			if e.terminalSeen {
				e.logger.Debug("pipe closed after terminal frame (expected)", map[string]any{
					"error": err.Error(),
				})
				return nil
			}

			e.logger.Error("frame error", map[string]any{
				"error": err.Error(),
			})
			e.collector.IncHarnessCrash()
			return &IngestionError{
				Kind: IngestionErrorStream,
				Err:  fmt.Errorf("frame error: %w", err),
			}
		}

		if err := e.processFrame(payload); err != nil {
			if IsStreamError(err) {
				e.collector.IncHarnessCrash()
			}
			return err
		}
	}
}

// processFrame decodes and dispatches a single frame.
func (e *IngestionEngine) processFrame(payload []byte) error {
	decoded, err := ipc.DecodeFrame(payload)
	if err != nil {
		e.logger.Error("frame decode error", map[string]any{
			"error": err.Error(),
		})
		e.collector.IncIPCDecodeErrors()
		return &IngestionError{
			Kind: IngestionErrorStream,
			Err:  fmt.Errorf("frame decode error: %w", err),
		}
	}

	switch frame := decoded.(type) {
	case *types.LogFrame:
		e.processLog(frame)
		return nil
	case *types.FigureFrame:
		return e.processFigure(frame)
	case *types.FigureChunkFrame:
		return e.processFigureChunk(frame)
	case *types.CellResultFrame:
		return e.processCellResult(frame)
	default:
		return &IngestionError{
			Kind: IngestionErrorStream,
			Err:  fmt.Errorf("unexpected frame type: %T", decoded),
		}
	}
}

// processLog forwards a harness log frame to the runtime logger.
func (e *IngestionEngine) processLog(frame *types.LogFrame) {
	fields := map[string]any{"origin": "harness"}
	switch frame.Level {
	case types.LogLevelDebug:
		e.logger.Debug(frame.Message, fields)
	case types.LogLevelWarn:
		e.logger.Warn(frame.Message, fields)
	case types.LogLevelError:
		e.logger.Error(frame.Message, fields)
	default:
		e.logger.Info(frame.Message, fields)
	}
}

// processFigure processes a figure commit frame.
func (e *IngestionEngine) processFigure(frame *types.FigureFrame) error {
	if frame.FigureID == "" {
		return &IngestionError{
			Kind: IngestionErrorStream,
			Err:  errors.New("figure frame missing figure_id"),
		}
	}

	if err := e.figures.CommitFigure(frame.FigureID, frame.Index, frame.SizeBytes); err != nil {
		e.logger.Error("figure commit failed", map[string]any{
			"figure_id":  frame.FigureID,
			"size_bytes": frame.SizeBytes,
			"error":      err.Error(),
		})
		return &IngestionError{
			Kind: IngestionErrorStream,
			Err:  fmt.Errorf("figure commit failed: %w", err),
		}
	}

	e.logger.Debug("figure committed", map[string]any{
		"figure_id":  frame.FigureID,
		"index":      frame.Index,
		"size_bytes": frame.SizeBytes,
	})

	return nil
}

// processFigureChunk processes a figure chunk frame.
func (e *IngestionEngine) processFigureChunk(frame *types.FigureChunkFrame) error {
	if frame.Seq < 1 {
		return &IngestionError{
			Kind: IngestionErrorStream,
			Err:  fmt.Errorf("invalid chunk seq: %d", frame.Seq),
		}
	}

	if len(frame.Data) > ipc.MaxChunkSize {
		return &IngestionError{
			Kind: IngestionErrorStream,
			Err:  fmt.Errorf("chunk data exceeds max size: %d > %d", len(frame.Data), ipc.MaxChunkSize),
		}
	}

	chunk := &types.FigureChunk{
		FigureID: frame.FigureID,
		Seq:      frame.Seq,
		IsLast:   frame.IsLast,
		Data:     frame.Data,
	}

	if err := e.figures.AddChunk(chunk); err != nil {
		e.logger.Error("figure chunk rejected", map[string]any{
			"figure_id": chunk.FigureID,
			"seq":       chunk.Seq,
			"is_last":   chunk.IsLast,
			"error":     err.Error(),
		})
		return &IngestionError{
			Kind: IngestionErrorStream,
			Err:  fmt.Errorf("figure chunk failed: %w", err),
		}
	}

	return nil
}

// processCellResult processes the terminal cell_result frame.
// First terminal wins; subsequent terminals are ignored.
func (e *IngestionEngine) processCellResult(frame *types.CellResultFrame) error {
	if frame.Protocol != types.ProtocolVersion {
		e.logger.Error("protocol version mismatch", map[string]any{
			"expected": types.ProtocolVersion,
			"got":      frame.Protocol,
		})
		return &IngestionError{
			Kind: IngestionErrorStream,
			Err: fmt.Errorf("protocol version mismatch: expected %s, got %s",
				types.ProtocolVersion, frame.Protocol),
		}
	}

	if e.terminalSeen {
		e.logger.Warn("ignoring duplicate cell_result frame", nil)
		return nil
	}

	e.terminalSeen = true
	e.terminal = frame

	e.logger.Info("cell result received", map[string]any{
		"cell_index": frame.CellIndex,
		"status":     frame.Status,
		"figures":    frame.Figures,
	})

	return nil
}

// GetTerminal returns the terminal cell_result frame if seen.
func (e *IngestionEngine) GetTerminal() (*types.CellResultFrame, bool) {
	return e.terminal, e.terminalSeen
}

// HasTerminal returns true if a terminal frame has been seen.
func (e *IngestionEngine) HasTerminal() bool {
	return e.terminalSeen
}
