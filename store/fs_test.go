package store

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pulto-io/sift/metrics"
	"github.com/pulto-io/sift/types"
)

func testMeta() *types.ExtractMeta {
	return &types.ExtractMeta{
		ExtractID: "ex-001",
		Notebook:  "demo.ipynb",
		Day:       "2026-08-30",
	}
}

func TestPrefix(t *testing.T) {
	got := Prefix(testMeta())
	want := "notebook=demo.ipynb/day=2026-08-30/extract_id=ex-001"
	if got != want {
		t.Errorf("Prefix = %q, want %q", got, want)
	}
}

func TestPrefix_SanitizesSegments(t *testing.T) {
	meta := &types.ExtractMeta{
		ExtractID: "ex-1",
		Notebook:  "../escape/nb.ipynb",
		Day:       "2026-08-30",
	}
	got := Prefix(meta)
	if strings.Contains(got, "../") {
		t.Errorf("prefix not sanitized: %q", got)
	}
}

func TestFSStore_WriteOutputs(t *testing.T) {
	s, err := NewFSStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	defer s.Close()

	records := []types.OutputRecord{
		{CellIndex: 0, OutputIndex: 0, Type: types.OutputTypeStream, Stream: "stdout", Text: "hi\n"},
		{CellIndex: 2, OutputIndex: 0, Type: types.OutputTypeError,
			Error: &types.ErrorDetail{Name: "ValueError", Value: "bad"}},
	}
	if err := s.WriteOutputs(t.Context(), testMeta(), records); err != nil {
		t.Fatalf("WriteOutputs: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(s.Root(), Prefix(testMeta()), OutputsFile))
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var lines []types.OutputRecord
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		var rec types.OutputRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		lines = append(lines, rec)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %d", len(lines))
	}
	if lines[0].Stream != "stdout" || lines[1].Error == nil {
		t.Errorf("records = %+v", lines)
	}
}

func TestFSStore_WriteCharts(t *testing.T) {
	collector := metrics.NewCollector("fs", "ex-001", "demo.ipynb")
	s, err := NewFSStore(t.TempDir(), collector)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	defer s.Close()

	png := []byte("fake png")
	charts := &types.ChartSet{
		Records: []types.ChartRecord{
			{CellIndex: 3, Images: []string{base64.StdEncoding.EncodeToString(png)}},
		},
	}
	if err := s.WriteCharts(t.Context(), testMeta(), charts); err != nil {
		t.Fatalf("WriteCharts: %v", err)
	}

	target := filepath.Join(s.Root(), Prefix(testMeta()), "charts", "chartKey_003_0.png")
	raw, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(raw, png) {
		t.Errorf("chart bytes = %q", raw)
	}
	if collector.Snapshot().StoreWrites != 1 {
		t.Errorf("store writes = %d", collector.Snapshot().StoreWrites)
	}
}

func TestFSStore_WriteCharts_BadBase64(t *testing.T) {
	s, err := NewFSStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	defer s.Close()

	charts := &types.ChartSet{
		Records: []types.ChartRecord{{CellIndex: 0, Images: []string{"%%% not base64"}}},
	}
	if err := s.WriteCharts(t.Context(), testMeta(), charts); err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestFSStore_WriteNotebookAndAnalysis(t *testing.T) {
	s, err := NewFSStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	defer s.Close()

	raw := []byte(`{"nbformat": 4, "cells": []}`)
	if err := s.WriteNotebook(t.Context(), testMeta(), raw); err != nil {
		t.Fatalf("WriteNotebook: %v", err)
	}
	stored, err := os.ReadFile(filepath.Join(s.Root(), Prefix(testMeta()), NotebookFile))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(stored, raw) {
		t.Error("notebook not stored verbatim")
	}

	report := map[string]any{"total_cells": 4}
	if err := s.WriteAnalysis(t.Context(), testMeta(), report); err != nil {
		t.Fatalf("WriteAnalysis: %v", err)
	}
	body, err := os.ReadFile(filepath.Join(s.Root(), Prefix(testMeta()), AnalysisFile))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["total_cells"] != float64(4) {
		t.Errorf("analysis = %v", decoded)
	}
}

func TestFSStore_InvalidMeta(t *testing.T) {
	s, err := NewFSStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	defer s.Close()

	bad := &types.ExtractMeta{Notebook: "demo.ipynb"}
	if err := s.WriteNotebook(t.Context(), bad, []byte("{}")); err == nil {
		t.Error("expected error for missing extract id")
	}
}
