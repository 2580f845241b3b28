package runtime

import (
	"strings"
	"testing"

	"github.com/pulto-io/sift/types"
)

func chunk(id string, seq int64, last bool, data []byte) *types.FigureChunk {
	return &types.FigureChunk{FigureID: id, Seq: seq, IsLast: last, Data: data}
}

func TestFigureManager_ChunksThenCommit(t *testing.T) {
	m := NewFigureManager()

	if err := m.AddChunk(chunk("f1", 1, false, []byte("abc"))); err != nil {
		t.Fatalf("chunk 1: %v", err)
	}
	if err := m.AddChunk(chunk("f1", 2, true, []byte("def"))); err != nil {
		t.Fatalf("chunk 2: %v", err)
	}
	if m.IsCommitted("f1") {
		t.Error("committed before figure frame")
	}

	if err := m.CommitFigure("f1", 0, 6); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !m.IsCommitted("f1") {
		t.Error("not committed after figure frame")
	}

	acc, ok := m.GetFigure("f1")
	if !ok {
		t.Fatal("figure missing")
	}
	if string(acc.Bytes()) != "abcdef" {
		t.Errorf("bytes = %q", acc.Bytes())
	}
}

func TestFigureManager_CommitBeforeChunks(t *testing.T) {
	m := NewFigureManager()

	if err := m.CommitFigure("f1", 0, 3); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if m.IsCommitted("f1") {
		t.Error("committed before chunks complete")
	}

	if err := m.AddChunk(chunk("f1", 1, true, []byte("xyz"))); err != nil {
		t.Fatalf("chunk: %v", err)
	}
	if !m.IsCommitted("f1") {
		t.Error("not committed after reconciliation")
	}
}

func TestFigureManager_SizeMismatch(t *testing.T) {
	m := NewFigureManager()

	// Commit first, then chunks totaling a different size.
	if err := m.CommitFigure("f1", 0, 10); err != nil {
		t.Fatalf("commit: %v", err)
	}
	err := m.AddChunk(chunk("f1", 1, true, []byte("abc")))
	if err == nil || !strings.Contains(err.Error(), "size mismatch") {
		t.Fatalf("err = %v", err)
	}

	// Chunks first, then a mismatching commit.
	if err := m.AddChunk(chunk("f2", 1, true, []byte("abc"))); err != nil {
		t.Fatalf("chunk: %v", err)
	}
	err = m.CommitFigure("f2", 1, 99)
	if err == nil || !strings.Contains(err.Error(), "size mismatch") {
		t.Fatalf("err = %v", err)
	}
}

func TestFigureManager_SequenceViolations(t *testing.T) {
	m := NewFigureManager()

	// First chunk must be seq 1.
	if err := m.AddChunk(chunk("f1", 2, false, []byte("a"))); err == nil {
		t.Error("expected error for seq starting at 2")
	}

	if err := m.AddChunk(chunk("f2", 1, false, []byte("a"))); err != nil {
		t.Fatalf("chunk: %v", err)
	}
	if err := m.AddChunk(chunk("f2", 3, false, []byte("b"))); err == nil {
		t.Error("expected error for seq gap")
	}
	if err := m.AddChunk(chunk("f2", 1, false, []byte("b"))); err == nil {
		t.Error("expected error for seq repeat")
	}
}

func TestFigureManager_ChunkAfterLast(t *testing.T) {
	m := NewFigureManager()
	if err := m.AddChunk(chunk("f1", 1, true, []byte("a"))); err != nil {
		t.Fatalf("chunk: %v", err)
	}
	if err := m.AddChunk(chunk("f1", 2, false, []byte("b"))); err == nil {
		t.Error("expected error for chunk after is_last")
	}
}

func TestFigureManager_Orphans(t *testing.T) {
	m := NewFigureManager()

	// f1: chunks complete, committed.
	_ = m.AddChunk(chunk("f1", 1, true, []byte("a")))
	_ = m.CommitFigure("f1", 0, 1)

	// f2: chunks without a commit (orphan).
	_ = m.AddChunk(chunk("f2", 1, true, []byte("b")))

	// f3: pending commit, chunks not complete (not an orphan).
	_ = m.CommitFigure("f3", 2, 5)
	_ = m.AddChunk(chunk("f3", 1, false, []byte("c")))

	orphans := m.GetOrphanIDs()
	if len(orphans) != 1 || orphans[0] != "f2" {
		t.Errorf("orphans = %v", orphans)
	}

	stats := m.Stats()
	if stats.TotalFigures != 3 || stats.CommittedFigures != 1 || stats.OrphanedFigures != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestFigureManager_ImagesOrderedByIndex(t *testing.T) {
	m := NewFigureManager()

	// Commit out of index order.
	_ = m.AddChunk(chunk("second", 1, true, []byte("B")))
	_ = m.CommitFigure("second", 1, 1)
	_ = m.AddChunk(chunk("first", 1, true, []byte("A")))
	_ = m.CommitFigure("first", 0, 1)
	// Uncommitted figure excluded.
	_ = m.AddChunk(chunk("loose", 1, true, []byte("C")))

	images := m.Images()
	if len(images) != 2 {
		t.Fatalf("images = %d", len(images))
	}
	if string(images[0]) != "A" || string(images[1]) != "B" {
		t.Errorf("order = %q, %q", images[0], images[1])
	}
}
