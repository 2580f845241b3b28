// Package analyze builds lightweight structural reports over a parsed
// notebook: cell counts, imported modules, plot detection, and window
// export metadata.
package analyze

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pulto-io/sift/types"
)

// DefaultPlotKeywords are the source substrings that mark a code cell as
// plot-like. Matching is case-insensitive and purely textual: a keyword
// inside a comment or string literal still counts.
var DefaultPlotKeywords = []string{
	"plt.",
	"matplotlib",
	"plot(",
	"scatter(",
	"bar(",
	"hist(",
}

var (
	importRe     = regexp.MustCompile(`^\s*import\s+([\w.]+)`)
	fromImportRe = regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import`)
)

// WindowSummary describes one cell carrying window placement metadata.
type WindowSummary struct {
	CellIndex int    `json:"cell_index"`
	Title     string `json:"title,omitempty"`
}

// Report is the structural summary of one notebook.
type Report struct {
	TotalCells    int             `json:"total_cells"`
	CodeCells     int             `json:"code_cells"`
	MarkdownCells int             `json:"markdown_cells"`
	HasPlots      bool            `json:"has_plots"`
	Imports       []string        `json:"imports"`
	WindowCells   []WindowSummary `json:"window_cells,omitempty"`
	HasExport     bool            `json:"has_export"`
}

// HasPlotCall reports whether source contains any of the given keywords,
// case-insensitively. An empty keyword list matches nothing.
func HasPlotCall(source string, keywords []string) bool {
	lower := strings.ToLower(source)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Analyze walks the document once and assembles the report. Imports are
// deduplicated and sorted; top-level module names only (the first dotted
// path segment of each import line).
func Analyze(doc *types.Document) *Report {
	report := &Report{
		TotalCells: len(doc.Cells),
		Imports:    []string{},
	}

	seen := map[string]bool{}
	for i := range doc.Cells {
		cell := &doc.Cells[i]
		switch cell.CellType {
		case types.CellTypeMarkdown:
			report.MarkdownCells++
		case types.CellTypeCode:
			report.CodeCells++
			source := string(cell.Source)
			if HasPlotCall(source, DefaultPlotKeywords) {
				report.HasPlots = true
			}
			for _, mod := range cellImports(source) {
				if !seen[mod] {
					seen[mod] = true
					report.Imports = append(report.Imports, mod)
				}
			}
		}

		if summary, ok := windowSummary(i, cell); ok {
			report.WindowCells = append(report.WindowCells, summary)
		}
	}

	if meta, ok := doc.Metadata[types.VisionOSExportKey]; ok && meta != nil {
		report.HasExport = true
	}
	if len(report.WindowCells) > 0 {
		report.HasExport = true
	}

	sort.Strings(report.Imports)
	return report
}

// cellImports extracts top-level module names from import statements in the
// cell source, line by line.
func cellImports(source string) []string {
	var mods []string
	for _, line := range strings.Split(source, "\n") {
		var name string
		if m := importRe.FindStringSubmatch(line); m != nil {
			name = m[1]
		} else if m := fromImportRe.FindStringSubmatch(line); m != nil {
			name = m[1]
		}
		if name == "" {
			continue
		}
		if dot := strings.IndexByte(name, '.'); dot > 0 {
			name = name[:dot]
		}
		mods = append(mods, name)
	}
	return mods
}

// windowSummary inspects cell metadata for a window placement block.
func windowSummary(index int, cell *types.Cell) (WindowSummary, bool) {
	raw, ok := cell.Metadata[types.VisionOSWindowKey]
	if !ok || raw == nil {
		return WindowSummary{}, false
	}
	summary := WindowSummary{CellIndex: index}
	if m, ok := raw.(map[string]any); ok {
		if title, ok := m["title"].(string); ok {
			summary.Title = title
		}
	}
	return summary, true
}
