package notebook

import (
	"strings"
	"testing"

	"github.com/pulto-io/sift/types"
)

const minimalNotebook = `{
  "nbformat": 4,
  "nbformat_minor": 5,
  "metadata": {"kernelspec": {"name": "python3"}},
  "cells": [
    {"cell_type": "markdown", "source": ["# Title\n"], "metadata": {}},
    {
      "cell_type": "code",
      "source": ["import numpy as np\n", "print(np.pi)\n"],
      "metadata": {},
      "execution_count": 1,
      "outputs": [
        {"output_type": "stream", "name": "stdout", "text": ["3.141592653589793\n"]}
      ]
    }
  ]
}`

func TestParse_Minimal(t *testing.T) {
	doc, err := Parse([]byte(minimalNotebook))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if doc.NBFormat != 4 {
		t.Errorf("NBFormat = %d, want 4", doc.NBFormat)
	}
	if len(doc.Cells) != 2 {
		t.Fatalf("len(Cells) = %d, want 2", len(doc.Cells))
	}
	if doc.Cells[0].CellType != types.CellTypeMarkdown {
		t.Errorf("cell 0 type = %q", doc.Cells[0].CellType)
	}

	code := doc.Cells[1]
	if got := string(code.Source); got != "import numpy as np\nprint(np.pi)\n" {
		t.Errorf("joined source = %q", got)
	}
	if len(code.Outputs) != 1 {
		t.Fatalf("len(Outputs) = %d, want 1", len(code.Outputs))
	}
	if code.Outputs[0].Name != "stdout" {
		t.Errorf("stream name = %q", code.Outputs[0].Name)
	}
	if code.ExecutionCount == nil || *code.ExecutionCount != 1 {
		t.Errorf("execution_count = %v", code.ExecutionCount)
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantField string
	}{
		{
			name:      "not JSON",
			input:     `{"nbformat": 4,`,
			wantField: "",
		},
		{
			name:      "missing nbformat",
			input:     `{"cells": []}`,
			wantField: "nbformat",
		},
		{
			name:      "missing cells",
			input:     `{"nbformat": 4}`,
			wantField: "cells",
		},
		{
			name:      "unsupported format version",
			input:     `{"nbformat": 3, "cells": []}`,
			wantField: "nbformat",
		},
		{
			name:      "cell missing cell_type",
			input:     `{"nbformat": 4, "cells": [{"source": "x = 1"}]}`,
			wantField: "cells[0].cell_type",
		},
		{
			name: "output missing output_type",
			input: `{"nbformat": 4, "cells": [
				{"cell_type": "code", "source": "", "outputs": [{"text": "hi"}]}
			]}`,
			wantField: "cells[0].outputs[0].output_type",
		},
		{
			name: "unknown output type",
			input: `{"nbformat": 4, "cells": [
				{"cell_type": "code", "source": "", "outputs": [{"output_type": "exotic"}]}
			]}`,
			wantField: "cells[0].outputs[0].output_type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !IsValidationError(err) {
				t.Fatalf("error is not a ValidationError: %v", err)
			}
			if tt.wantField != "" && !strings.Contains(err.Error(), tt.wantField) {
				t.Errorf("error %q does not name field %q", err.Error(), tt.wantField)
			}
		})
	}
}

func TestParse_StringSource(t *testing.T) {
	input := `{
	  "nbformat": 4, "nbformat_minor": 2, "metadata": {},
	  "cells": [{"cell_type": "code", "source": "plt.plot([1,2,3])", "outputs": []}]
	}`

	doc, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := string(doc.Cells[0].Source); got != "plt.plot([1,2,3])" {
		t.Errorf("source = %q", got)
	}
}

func TestDigest_Stable(t *testing.T) {
	a := Digest([]byte(minimalNotebook))
	b := Digest([]byte(minimalNotebook))
	if a != b {
		t.Error("digest not deterministic")
	}
	if len(a) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(a))
	}
	if a == Digest([]byte(minimalNotebook+" ")) {
		t.Error("digest ignores content changes")
	}
}
