package types

// ProtocolVersion is the harness wire protocol version. The harness embeds
// the same constant and the ingestion loop rejects mismatched frames.
const ProtocolVersion = "1.0.0"

// FrameType discriminates harness frames.
type FrameType string

// Frame type constants. cell_result is terminal: the harness emits it once,
// immediately before exiting.
const (
	FrameTypeLog         FrameType = "log"
	FrameTypeFigure      FrameType = "figure"
	FrameTypeFigureChunk FrameType = "figure_chunk"
	FrameTypeCellResult  FrameType = "cell_result"
)

// LogLevel is the severity of a harness log frame.
type LogLevel string

// Log level constants mirrored by the Python harness.
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFrame is a diagnostic message emitted by the harness during evaluation.
type LogFrame struct {
	Type    FrameType `json:"type"`
	Level   LogLevel  `json:"level"`
	Message string    `json:"message"`
}

// FigureFrame is the commit record for one captured figure. Bytes travel
// separately in figure_chunk frames; this frame declares the authoritative
// total size for reconciliation.
type FigureFrame struct {
	Type FrameType `json:"type"`
	// FigureID is unique within the cell evaluation.
	FigureID string `json:"figure_id"`
	// Index is the figure's creation order within the cell, starting at 0.
	Index int `json:"index"`
	// ContentType is the raster MIME type (always image/png today).
	ContentType string `json:"content_type"`
	// SizeBytes is the total raw (pre-base64) figure size.
	SizeBytes int64 `json:"size_bytes"`
}

// FigureChunkFrame carries one ordered slice of a figure's raw bytes.
// Data is base64 on the wire; encoding/json decodes it transparently.
type FigureChunkFrame struct {
	Type     FrameType `json:"type"`
	FigureID string    `json:"figure_id"`
	// Seq starts at 1 and increases strictly.
	Seq int64 `json:"seq"`
	// IsLast marks the final chunk of the figure.
	IsLast bool `json:"is_last"`
	// Data is the raw chunk bytes.
	Data []byte `json:"data"`
}

// CellResultFrame is the terminal control frame for a cell evaluation.
// The harness exit code is authoritative for outcome classification; this
// frame supplies the detail (error type, message, stack).
type CellResultFrame struct {
	Type FrameType `json:"type"`
	// Protocol is the wire protocol version the harness spoke.
	Protocol string `json:"protocol"`
	// CellIndex echoes the evaluated cell's index.
	CellIndex int `json:"cell_index"`
	// Status is completed or error.
	Status CellStatus `json:"status"`
	// Figures is the number of committed figures.
	Figures int `json:"figures"`
	// ErrorType is the exception class name for error status.
	ErrorType string `json:"error_type,omitempty"`
	// Message is a human-readable description for error status.
	Message string `json:"message,omitempty"`
	// Stack is the formatted traceback for error status.
	Stack string `json:"stack,omitempty"`
}

// FigureChunk is the internal representation of a decoded chunk.
type FigureChunk struct {
	FigureID string
	Seq      int64
	IsLast   bool
	Data     []byte
}

// FigureAccumulator tracks chunk accumulation for one figure.
type FigureAccumulator struct {
	// FigureID is the figure identifier.
	FigureID string
	// Index is the figure's creation order, set by the commit frame (-1
	// until committed).
	Index int
	// Chunks holds accumulated chunks in seq order.
	Chunks []*FigureChunk
	// TotalBytes is the sum of chunk data lengths.
	TotalBytes int64
	// Committed is set once the figure frame arrived and sizes reconciled.
	Committed bool
	// NextSeq is the expected next chunk sequence number.
	NextSeq int64
	// Complete is set once is_last was seen.
	Complete bool
	// ErrorState is set on unrecoverable accumulation errors (size mismatch).
	ErrorState bool
}

// Bytes concatenates the accumulated chunks in order.
func (a *FigureAccumulator) Bytes() []byte {
	buf := make([]byte, 0, a.TotalBytes)
	for _, c := range a.Chunks {
		buf = append(buf, c.Data...)
	}
	return buf
}
