// Package extract normalizes code cell outputs into ordered records.
//
// Extraction is a pure read of the parsed document: it allocates fresh
// records, never touches the input, and performs no I/O. Cell and output
// order are preserved exactly.
package extract

import (
	"encoding/json"
	"strings"

	"github.com/pulto-io/sift/types"
)

// representationPriority is the MIME selection order for display data:
// raster images first (PNG over JPEG), then structured JSON, then plain
// text, then HTML.
var representationPriority = []string{
	types.MimePNG,
	types.MimeJPEG,
	types.MimeJSON,
	types.MimeText,
	types.MimeHTML,
}

// Groups produces one output group per code cell that has outputs, in
// document order. Markdown cells and code cells without outputs contribute
// nothing, so len(groups) <= number of code cells always holds.
func Groups(doc *types.Document) []types.OutputGroup {
	var groups []types.OutputGroup

	for i := range doc.Cells {
		cell := &doc.Cells[i]
		if !cell.IsCode() || len(cell.Outputs) == 0 {
			continue
		}

		records := make([]types.OutputRecord, 0, len(cell.Outputs))
		for j := range cell.Outputs {
			records = append(records, makeRecord(i, j, &cell.Outputs[j]))
		}
		groups = append(groups, types.OutputGroup{
			CellIndex: i,
			Records:   records,
		})
	}

	return groups
}

// Records returns the flattened record list across all groups, preserving
// cell and output order.
func Records(doc *types.Document) []types.OutputRecord {
	var records []types.OutputRecord
	for _, group := range Groups(doc) {
		records = append(records, group.Records...)
	}
	return records
}

// makeRecord normalizes one output into its record form.
func makeRecord(cellIndex, outputIndex int, out *types.Output) types.OutputRecord {
	rec := types.OutputRecord{
		CellIndex:   cellIndex,
		OutputIndex: outputIndex,
		Type:        out.OutputType,
	}

	switch out.OutputType {
	case types.OutputTypeStream:
		rec.Stream = out.Name
		rec.Text = string(out.Text)

	case types.OutputTypeError:
		rec.Error = &types.ErrorDetail{
			Name:      out.EName,
			Value:     out.EValue,
			Traceback: out.Traceback,
		}

	case types.OutputTypeDisplayData, types.OutputTypeExecuteResult:
		fillDisplayData(&rec, out)
	}

	return rec
}

// fillDisplayData copies every recognized MIME payload into the record and
// selects the display representation. All present payloads are retained: a
// cell carrying both image/png and text/plain keeps both, with the image
// selected as the representation.
func fillDisplayData(rec *types.OutputRecord, out *types.Output) {
	if text, ok := out.TextData(types.MimeText); ok {
		rec.Text = text
	}

	if png, ok := out.TextData(types.MimePNG); ok {
		rec.Image = png
		rec.ImageType = "png"
	} else if jpeg, ok := out.TextData(types.MimeJPEG); ok {
		rec.Image = jpeg
		rec.ImageType = "jpeg"
	}

	if raw, ok := out.Data[types.MimeJSON]; ok {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			rec.JSONData = decoded
		}
	}

	if html, ok := out.TextData(types.MimeHTML); ok {
		rec.HTML = html
		if strings.Contains(strings.ToLower(html), "dataframe") {
			rec.IsDataframe = true
		}
	}

	rec.Representation = selectRepresentation(out)
}

// selectRepresentation picks the highest-priority MIME type present in the
// bundle. Empty when the bundle carries none of the recognized types.
func selectRepresentation(out *types.Output) string {
	for _, mime := range representationPriority {
		if _, ok := out.Data[mime]; ok {
			return mime
		}
	}
	return ""
}
