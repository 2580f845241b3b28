package types

import "fmt"

// OutputRecord is the normalized view of a single cell output. Records are
// derived fresh on every extraction and are never persisted by the extractor
// itself; the store layer handles persistence when the caller asks for it.
type OutputRecord struct {
	// CellIndex is the position of the owning cell in document order.
	CellIndex int `json:"cell_index"`
	// OutputIndex is the position within the cell's output list.
	OutputIndex int `json:"output_index"`
	// Type is the source output type (stream, display_data, execute_result, error).
	Type string `json:"type"`
	// Representation is the MIME type selected as the display representation,
	// by priority: image/png > image/jpeg > application/json > text/plain > text/html.
	// Empty for stream and error records.
	Representation string `json:"representation,omitempty"`

	// Stream is the stream name (stdout or stderr) for stream records.
	Stream string `json:"stream,omitempty"`
	// Text is the plain text payload, retained even when an image is selected.
	Text string `json:"text,omitempty"`
	// Image is the base64-encoded raster payload.
	Image string `json:"image,omitempty"`
	// ImageType is "png" or "jpeg" when Image is set.
	ImageType string `json:"image_type,omitempty"`
	// JSONData is the decoded application/json payload.
	JSONData any `json:"json_data,omitempty"`
	// HTML is the text/html payload.
	HTML string `json:"html,omitempty"`
	// IsDataframe is set when the text/html payload looks like a rendered
	// dataframe (substring check, case-insensitive).
	IsDataframe bool `json:"is_dataframe,omitempty"`

	// Error carries exception details for error records.
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail is the exception captured by an error output, verbatim.
type ErrorDetail struct {
	Name      string   `json:"name"`
	Value     string   `json:"value"`
	Traceback []string `json:"traceback"`
}

// OutputGroup collects the records of one code cell, in output order.
// Extraction yields at most one group per code cell: cells without outputs
// contribute no group.
type OutputGroup struct {
	CellIndex int            `json:"cell_index"`
	Records   []OutputRecord `json:"records"`
}

// ChartRecord pairs a cell index with the ordered figures captured from it.
// Images are base64-encoded PNG bytes in figure-creation order.
type ChartRecord struct {
	CellIndex int      `json:"cell_index" msgpack:"cell_index"`
	Images    []string `json:"images" msgpack:"images"`
}

// ChartSet is the full capture result for one document, in cell order.
type ChartSet struct {
	Records []ChartRecord `json:"records" msgpack:"records"`
}

// ChartKey formats the canonical per-cell chart key. Indices are zero-padded
// to three digits so keys sort lexically in cell order.
func ChartKey(cellIndex int) string {
	return fmt.Sprintf("chartKey_%03d", cellIndex)
}

// ByKey returns the transport form: chart key mapped to the ordered image
// list for that cell. Only cells that produced images appear.
func (s *ChartSet) ByKey() map[string][]string {
	out := make(map[string][]string, len(s.Records))
	for _, rec := range s.Records {
		if len(rec.Images) > 0 {
			out[ChartKey(rec.CellIndex)] = rec.Images
		}
	}
	return out
}

// ImageCount returns the total number of captured images across all cells.
func (s *ChartSet) ImageCount() int {
	n := 0
	for _, rec := range s.Records {
		n += len(rec.Images)
	}
	return n
}
