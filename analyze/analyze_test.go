package analyze

import (
	"reflect"
	"testing"

	"github.com/pulto-io/sift/notebook"
)

func TestHasPlotCall(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   bool
	}{
		{"plt attribute", "plt.plot(x, y)", true},
		{"matplotlib import", "import matplotlib.pyplot as plt", true},
		{"plot call", "df.plot(kind='line')", true},
		{"scatter call", "ax.scatter(a, b)", true},
		{"bar call", "ax.bar(labels, counts)", true},
		{"hist call", "ax.hist(values)", true},
		{"uppercase", "PLT.PLOT(x)", true},
		{"plain code", "x = sum(values)", false},
		{"plot without paren", "strategy = plot", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasPlotCall(tt.source, DefaultPlotKeywords); got != tt.want {
				t.Errorf("HasPlotCall(%q) = %v, want %v", tt.source, got, tt.want)
			}
		})
	}
}

func TestAnalyze(t *testing.T) {
	const nb = `{
	  "nbformat": 4, "nbformat_minor": 5, "metadata": {},
	  "cells": [
	    {"cell_type": "markdown", "metadata": {}, "source": "# Title"},
	    {"cell_type": "code", "metadata": {}, "source": "import numpy as np\nfrom pandas.io import parsers\nimport os", "outputs": []},
	    {"cell_type": "code", "metadata": {}, "source": "import numpy\nplt.plot(np.arange(10))", "outputs": []},
	    {"cell_type": "raw", "metadata": {}, "source": "raw text"}
	  ]
	}`
	doc, err := notebook.Parse([]byte(nb))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	report := Analyze(doc)
	if report.TotalCells != 4 {
		t.Errorf("total = %d", report.TotalCells)
	}
	if report.CodeCells != 2 {
		t.Errorf("code = %d", report.CodeCells)
	}
	if report.MarkdownCells != 1 {
		t.Errorf("markdown = %d", report.MarkdownCells)
	}
	if !report.HasPlots {
		t.Error("expected plots detected")
	}
	wantImports := []string{"numpy", "os", "pandas"}
	if !reflect.DeepEqual(report.Imports, wantImports) {
		t.Errorf("imports = %v, want %v", report.Imports, wantImports)
	}
	if report.HasExport {
		t.Error("unexpected export flag")
	}
}

func TestAnalyze_WindowMetadata(t *testing.T) {
	const nb = `{
	  "nbformat": 4, "nbformat_minor": 5,
	  "metadata": {"visionos_export": {"version": 1}},
	  "cells": [
	    {"cell_type": "code", "metadata": {"visionos_window": {"title": "Overview", "width": 800}}, "source": "x", "outputs": []},
	    {"cell_type": "code", "metadata": {}, "source": "y", "outputs": []}
	  ]
	}`
	doc, err := notebook.Parse([]byte(nb))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	report := Analyze(doc)
	if !report.HasExport {
		t.Error("expected export flag")
	}
	if len(report.WindowCells) != 1 {
		t.Fatalf("window cells = %d", len(report.WindowCells))
	}
	if report.WindowCells[0].CellIndex != 0 || report.WindowCells[0].Title != "Overview" {
		t.Errorf("window summary = %+v", report.WindowCells[0])
	}
}

func TestAnalyze_EmptyImports(t *testing.T) {
	const nb = `{
	  "nbformat": 4, "nbformat_minor": 5, "metadata": {},
	  "cells": [{"cell_type": "code", "metadata": {}, "source": "x = 1", "outputs": []}]
	}`
	doc, err := notebook.Parse([]byte(nb))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	report := Analyze(doc)
	if report.Imports == nil {
		t.Error("imports should be empty, not nil")
	}
	if len(report.Imports) != 0 {
		t.Errorf("imports = %v", report.Imports)
	}
}
