// Package types defines core domain types for the sift extraction toolkit.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"encoding/json"
	"fmt"
)

// Cell types per the notebook interchange format (nbformat 4.x).
const (
	CellTypeCode     = "code"
	CellTypeMarkdown = "markdown"
	CellTypeRaw      = "raw"
)

// Output types produced by code cells.
const (
	OutputTypeStream        = "stream"
	OutputTypeDisplayData   = "display_data"
	OutputTypeExecuteResult = "execute_result"
	OutputTypeError         = "error"
)

// MIME types recognized in display data bundles, in selection priority order:
// PNG > JPEG > JSON > plain text > HTML.
const (
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeJSON = "application/json"
	MimeText = "text/plain"
	MimeHTML = "text/html"
)

// SpatialMetadataKey is the cell metadata key that carries spatial placement
// payloads. The payload shape is opaque pass-through data for 3D viewers.
const SpatialMetadataKey = "spatial"

// VisionOS metadata keys emitted by spatial notebook clients.
const (
	VisionOSExportKey = "visionos_export"
	VisionOSWindowKey = "visionos_window"
)

// MultilineString decodes a notebook text field that may be encoded either as
// a plain string or as an array of lines. Array form is joined verbatim: the
// format stores trailing newlines inside each line, so no separator is added.
type MultilineString string

// UnmarshalJSON accepts both the string and array-of-lines encodings.
func (m *MultilineString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = MultilineString(s)
		return nil
	}

	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("multiline field is neither string nor string array: %w", err)
	}

	joined := ""
	for _, line := range lines {
		joined += line
	}
	*m = MultilineString(joined)
	return nil
}

func (m MultilineString) String() string {
	return string(m)
}

// Document is a parsed notebook in the standard JSON interchange format.
// Cell order is the document's canonical order and is preserved in every
// structure derived from it.
type Document struct {
	// NBFormat is the major format version (4 for all supported documents).
	NBFormat int `json:"nbformat"`
	// NBFormatMinor is the minor format version.
	NBFormatMinor int `json:"nbformat_minor"`
	// Metadata is the document-level metadata block.
	Metadata map[string]any `json:"metadata"`
	// Cells is the ordered cell sequence.
	Cells []Cell `json:"cells"`
}

// Cell is one unit of a notebook document.
type Cell struct {
	// CellType is "code", "markdown", or "raw".
	CellType string `json:"cell_type"`
	// Source is the cell source text, joined from the line-array form.
	Source MultilineString `json:"source"`
	// Metadata is the per-cell metadata block.
	Metadata map[string]any `json:"metadata,omitempty"`
	// Outputs is the ordered output sequence (code cells only).
	Outputs []Output `json:"outputs,omitempty"`
	// ExecutionCount is the kernel execution counter. Nil if never executed.
	ExecutionCount *int `json:"execution_count,omitempty"`
}

// IsCode returns true for executable code cells.
func (c *Cell) IsCode() bool {
	return c.CellType == CellTypeCode
}

// Output is one captured result attached to a code cell. Exactly one variant
// is populated, discriminated by OutputType:
//   - stream: Name + Text
//   - display_data / execute_result: Data (MIME bundle)
//   - error: EName + EValue + Traceback
type Output struct {
	OutputType string `json:"output_type"`

	// Stream variant.
	Name string          `json:"name,omitempty"`
	Text MultilineString `json:"text,omitempty"`

	// Display data variant. Values stay raw: text MIMEs may be string or
	// line-array, application/json may be any JSON value.
	Data     map[string]json.RawMessage `json:"data,omitempty"`
	Metadata map[string]any             `json:"metadata,omitempty"`

	// Error variant.
	EName     string   `json:"ename,omitempty"`
	EValue    string   `json:"evalue,omitempty"`
	Traceback []string `json:"traceback,omitempty"`
}

// TextData decodes a text-bearing MIME payload (string or line-array form)
// from the bundle. Returns "" and false if the MIME type is absent.
func (o *Output) TextData(mime string) (string, bool) {
	raw, ok := o.Data[mime]
	if !ok {
		return "", false
	}
	var m MultilineString
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", false
	}
	return string(m), true
}
