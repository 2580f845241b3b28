// Package spatial attaches window placement payloads to notebook cell
// metadata.
//
// The merge is surgical: it operates on raw JSON and rewrites only the
// targeted cell, so every untargeted cell survives byte for byte. The
// payload itself is stored verbatim under the dedicated metadata key and
// is never inspected beyond a syntactic validity check.
package spatial

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pulto-io/sift/types"
)

// ErrCellIndexOutOfRange is returned when the target cell index does not
// name an existing cell. Out-of-range placement is an error, never a
// silent no-op.
var ErrCellIndexOutOfRange = errors.New("cell index out of range")

// envelope holds the top-level document with cells kept raw.
type envelope struct {
	top   map[string]json.RawMessage
	cells []json.RawMessage
}

func parseEnvelope(doc []byte) (*envelope, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(doc, &top); err != nil {
		return nil, fmt.Errorf("malformed notebook document: %w", err)
	}
	rawCells, ok := top["cells"]
	if !ok {
		return nil, errors.New("malformed notebook document: missing cells")
	}
	var cells []json.RawMessage
	if err := json.Unmarshal(rawCells, &cells); err != nil {
		return nil, fmt.Errorf("malformed notebook document: cells: %w", err)
	}
	return &envelope{top: top, cells: cells}, nil
}

func (e *envelope) marshal() ([]byte, error) {
	rawCells, err := json.Marshal(e.cells)
	if err != nil {
		return nil, err
	}
	e.top["cells"] = rawCells
	return json.Marshal(e.top)
}

// Apply returns a copy of doc with payload attached to the metadata of the
// cell at cellIndex. The payload must be valid JSON; it is stored verbatim
// under the spatial metadata key, replacing any previous value there.
func Apply(doc []byte, payload json.RawMessage, cellIndex int) ([]byte, error) {
	if !json.Valid(payload) {
		return nil, errors.New("spatial payload is not valid JSON")
	}
	env, err := parseEnvelope(doc)
	if err != nil {
		return nil, err
	}
	if cellIndex < 0 || cellIndex >= len(env.cells) {
		return nil, fmt.Errorf("%w: %d (document has %d cells)",
			ErrCellIndexOutOfRange, cellIndex, len(env.cells))
	}

	patched, err := patchCell(env.cells[cellIndex], payload)
	if err != nil {
		return nil, fmt.Errorf("cell %d: %w", cellIndex, err)
	}
	env.cells[cellIndex] = patched
	return env.marshal()
}

// ApplyAll attaches the same payload to every cell in the document. A
// document with no cells round-trips unchanged apart from re-serialization.
func ApplyAll(doc []byte, payload json.RawMessage) ([]byte, error) {
	if !json.Valid(payload) {
		return nil, errors.New("spatial payload is not valid JSON")
	}
	env, err := parseEnvelope(doc)
	if err != nil {
		return nil, err
	}
	for i := range env.cells {
		patched, err := patchCell(env.cells[i], payload)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		env.cells[i] = patched
	}
	return env.marshal()
}

// ApplyDocument attaches the payload to the document-level metadata block
// instead of a cell. Cells are untouched.
func ApplyDocument(doc []byte, payload json.RawMessage) ([]byte, error) {
	if !json.Valid(payload) {
		return nil, errors.New("spatial payload is not valid JSON")
	}
	env, err := parseEnvelope(doc)
	if err != nil {
		return nil, err
	}

	meta := map[string]json.RawMessage{}
	if rawMeta, ok := env.top["metadata"]; ok {
		if err := json.Unmarshal(rawMeta, &meta); err != nil {
			return nil, fmt.Errorf("metadata: %w", err)
		}
	}
	meta[types.SpatialMetadataKey] = payload

	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	env.top["metadata"] = rawMeta
	return env.marshal()
}

// Placement reads back the spatial payload attached to the cell at
// cellIndex, reporting whether one is present.
func Placement(doc []byte, cellIndex int) (json.RawMessage, bool, error) {
	env, err := parseEnvelope(doc)
	if err != nil {
		return nil, false, err
	}
	if cellIndex < 0 || cellIndex >= len(env.cells) {
		return nil, false, fmt.Errorf("%w: %d (document has %d cells)",
			ErrCellIndexOutOfRange, cellIndex, len(env.cells))
	}

	var cell map[string]json.RawMessage
	if err := json.Unmarshal(env.cells[cellIndex], &cell); err != nil {
		return nil, false, fmt.Errorf("cell %d: %w", cellIndex, err)
	}
	rawMeta, ok := cell["metadata"]
	if !ok {
		return nil, false, nil
	}
	var meta map[string]json.RawMessage
	if err := json.Unmarshal(rawMeta, &meta); err != nil {
		return nil, false, fmt.Errorf("cell %d: metadata: %w", cellIndex, err)
	}
	payload, ok := meta[types.SpatialMetadataKey]
	return payload, ok, nil
}

// patchCell rewrites one raw cell with the payload merged into its
// metadata object. Only the metadata key changes; the cell's other fields
// are carried through as raw values.
func patchCell(raw json.RawMessage, payload json.RawMessage) (json.RawMessage, error) {
	var cell map[string]json.RawMessage
	if err := json.Unmarshal(raw, &cell); err != nil {
		return nil, err
	}

	meta := map[string]json.RawMessage{}
	if rawMeta, ok := cell["metadata"]; ok {
		if err := json.Unmarshal(rawMeta, &meta); err != nil {
			return nil, fmt.Errorf("metadata: %w", err)
		}
	}
	meta[types.SpatialMetadataKey] = payload

	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	cell["metadata"] = rawMeta
	return json.Marshal(cell)
}
