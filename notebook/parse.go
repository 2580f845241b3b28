// Package notebook parses and validates documents in the standard JSON
// notebook interchange format (nbformat 4.x).
//
// Parsing is strict about required fields and read-only: a parsed Document is
// a derived view, never a mutation of the caller's bytes. Malformed documents
// surface as *ValidationError rather than silent skips.
package notebook

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pulto-io/sift/types"
)

// ValidationError reports a document that fails interchange-format
// requirements. Extraction aborts on validation errors; they are never
// downgraded to per-cell warnings.
type ValidationError struct {
	// Field names the offending location (e.g. "cells[3].cell_type").
	Field string
	// Msg describes the failure.
	Msg string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// IsValidationError returns true if err is a document validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// knownOutputTypes are the output variants the interchange format defines.
var knownOutputTypes = map[string]bool{
	types.OutputTypeStream:        true,
	types.OutputTypeDisplayData:   true,
	types.OutputTypeExecuteResult: true,
	types.OutputTypeError:         true,
}

var knownCellTypes = map[string]bool{
	types.CellTypeCode:     true,
	types.CellTypeMarkdown: true,
	types.CellTypeRaw:      true,
}

// Parse decodes and validates a notebook document.
func Parse(data []byte) (*types.Document, error) {
	// Probe for required top-level fields first so "missing" and "malformed"
	// produce distinct messages.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &ValidationError{Msg: fmt.Sprintf("document is not valid JSON: %v", err)}
	}
	if _, ok := probe["nbformat"]; !ok {
		return nil, &ValidationError{Field: "nbformat", Msg: "missing required field"}
	}
	if _, ok := probe["cells"]; !ok {
		return nil, &ValidationError{Field: "cells", Msg: "missing required field"}
	}

	var doc types.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ValidationError{Msg: fmt.Sprintf("document does not match interchange format: %v", err)}
	}

	if err := Validate(&doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// Validate checks a parsed document against interchange-format requirements.
func Validate(doc *types.Document) error {
	if doc.NBFormat != 4 {
		return &ValidationError{
			Field: "nbformat",
			Msg:   fmt.Sprintf("unsupported format version %d (want 4)", doc.NBFormat),
		}
	}

	for i := range doc.Cells {
		cell := &doc.Cells[i]

		if cell.CellType == "" {
			return &ValidationError{
				Field: fmt.Sprintf("cells[%d].cell_type", i),
				Msg:   "missing required field",
			}
		}
		if !knownCellTypes[cell.CellType] {
			return &ValidationError{
				Field: fmt.Sprintf("cells[%d].cell_type", i),
				Msg:   fmt.Sprintf("unknown cell type %q", cell.CellType),
			}
		}

		// Outputs only exist on code cells; tolerate their absence everywhere.
		if !cell.IsCode() {
			continue
		}
		for j := range cell.Outputs {
			out := &cell.Outputs[j]
			if out.OutputType == "" {
				return &ValidationError{
					Field: fmt.Sprintf("cells[%d].outputs[%d].output_type", i, j),
					Msg:   "missing required field",
				}
			}
			if !knownOutputTypes[out.OutputType] {
				return &ValidationError{
					Field: fmt.Sprintf("cells[%d].outputs[%d].output_type", i, j),
					Msg:   fmt.Sprintf("unknown output type %q", out.OutputType),
				}
			}
		}
	}

	return nil
}

// Digest returns the SHA-256 hex digest of the raw document bytes.
// Used as the cache key and catalog fingerprint.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
