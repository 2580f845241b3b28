// Package runtime implements cell evaluation orchestration: harness
// process lifecycle, IPC ingestion, figure accumulation, and outcome
// classification.
package runtime

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pulto-io/sift/ipc"
	"github.com/pulto-io/sift/types"
)

// MaxFigureSize is the maximum allowed figure size (256 MiB).
const MaxFigureSize = 256 * 1024 * 1024

// FigureManager manages figure chunk accumulation and orphan tracking.
// Chunks may arrive before the figure commit frame. Thread-safe.
type FigureManager struct {
	mu           sync.RWMutex
	accumulators map[string]*types.FigureAccumulator
	// pendingCommits tracks figures where the commit arrived before all
	// chunks. Maps figure_id -> declared size_bytes for reconciliation.
	pendingCommits map[string]int64
}

// NewFigureManager creates a new figure manager.
func NewFigureManager() *FigureManager {
	return &FigureManager{
		accumulators:   make(map[string]*types.FigureAccumulator),
		pendingCommits: make(map[string]int64),
	}
}

// AddChunk adds a chunk to a figure. Seq must start at 1 and be strictly
// increasing; chunks may arrive before the figure commit frame.
//
// Returns error if:
//   - seq is not the expected next sequence
//   - chunk arrives after is_last=true was seen
//   - chunk data exceeds max chunk size
//   - accumulated size exceeds MaxFigureSize
//   - size mismatch when commit arrived before chunks and is_last is seen
func (m *FigureManager) AddChunk(chunk *types.FigureChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(chunk.Data) > ipc.MaxChunkSize {
		return fmt.Errorf("figure %s: chunk size %d exceeds max %d",
			chunk.FigureID, len(chunk.Data), ipc.MaxChunkSize)
	}

	acc, exists := m.accumulators[chunk.FigureID]
	if !exists {
		acc = &types.FigureAccumulator{
			FigureID: chunk.FigureID,
			Index:    -1,
			Chunks:   make([]*types.FigureChunk, 0),
			NextSeq:  1,
		}
		m.accumulators[chunk.FigureID] = acc
	}

	if chunk.Seq != acc.NextSeq {
		return fmt.Errorf("figure %s: expected seq %d, got %d",
			chunk.FigureID, acc.NextSeq, chunk.Seq)
	}

	if acc.Complete {
		return fmt.Errorf("figure %s: chunk received after is_last", chunk.FigureID)
	}

	newTotal := acc.TotalBytes + int64(len(chunk.Data))
	if newTotal > MaxFigureSize {
		return fmt.Errorf("figure %s: size %d exceeds max %d",
			chunk.FigureID, newTotal, MaxFigureSize)
	}

	acc.Chunks = append(acc.Chunks, chunk)
	acc.TotalBytes = newTotal
	acc.NextSeq++

	if chunk.IsLast {
		acc.Complete = true

		// If commit arrived before chunks, reconcile size now
		if declaredSize, pending := m.pendingCommits[chunk.FigureID]; pending {
			delete(m.pendingCommits, chunk.FigureID)

			if acc.TotalBytes != declaredSize {
				acc.ErrorState = true
				return fmt.Errorf("figure %s: size mismatch (chunks=%d, declared=%d)",
					chunk.FigureID, acc.TotalBytes, declaredSize)
			}
			acc.Committed = true
		}
	}

	return nil
}

// CommitFigure marks a figure as committed (figure frame received). The
// figure frame is the authoritative commit record; chunks may arrive
// before or after this call.
func (m *FigureManager) CommitFigure(figureID string, index int, sizeBytes int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sizeBytes > MaxFigureSize {
		return fmt.Errorf("figure %s: declared size %d exceeds max %d",
			figureID, sizeBytes, MaxFigureSize)
	}

	acc, exists := m.accumulators[figureID]
	if !exists {
		// Figure frame arrived before any chunks. Track the declared size
		// for reconciliation when chunks complete.
		m.pendingCommits[figureID] = sizeBytes
		acc = &types.FigureAccumulator{
			FigureID: figureID,
			Index:    index,
			Chunks:   make([]*types.FigureChunk, 0),
			NextSeq:  1,
		}
		m.accumulators[figureID] = acc
		return nil
	}

	acc.Index = index

	if acc.Complete {
		if acc.TotalBytes != sizeBytes {
			return fmt.Errorf("figure %s: size mismatch (chunks=%d, declared=%d)",
				figureID, acc.TotalBytes, sizeBytes)
		}
		acc.Committed = true
	} else {
		m.pendingCommits[figureID] = sizeBytes
	}

	return nil
}

// GetOrphanIDs returns figure IDs with chunks but no commit. Figures with
// a pending commit are not orphans: they have a valid commit and are
// waiting for data.
func (m *FigureManager) GetOrphanIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var orphans []string
	for id, acc := range m.accumulators {
		if acc.Committed || acc.ErrorState || len(acc.Chunks) == 0 {
			continue
		}
		if _, hasPendingCommit := m.pendingCommits[id]; hasPendingCommit {
			continue
		}
		orphans = append(orphans, id)
	}
	return orphans
}

// GetFigure returns the accumulator for a figure.
func (m *FigureManager) GetFigure(figureID string) (*types.FigureAccumulator, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acc, exists := m.accumulators[figureID]
	return acc, exists
}

// IsCommitted returns true if the figure has been committed.
func (m *FigureManager) IsCommitted(figureID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acc, exists := m.accumulators[figureID]
	return exists && acc.Committed
}

// Images returns the raw bytes of all committed figures, ordered by the
// figure index declared in the commit frame.
func (m *FigureManager) Images() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var committed []*types.FigureAccumulator
	for _, acc := range m.accumulators {
		if acc.Committed {
			committed = append(committed, acc)
		}
	}
	sort.Slice(committed, func(i, j int) bool {
		return committed[i].Index < committed[j].Index
	})

	images := make([][]byte, 0, len(committed))
	for _, acc := range committed {
		images = append(images, acc.Bytes())
	}
	return images
}

// Stats returns figure accumulation statistics.
func (m *FigureManager) Stats() FigureStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := FigureStats{}
	for id, acc := range m.accumulators {
		stats.TotalFigures++
		stats.TotalChunks += int64(len(acc.Chunks))
		stats.TotalBytes += acc.TotalBytes

		switch {
		case acc.Committed:
			stats.CommittedFigures++
		case acc.ErrorState:
			// Error state figures are neither orphaned nor committed
		case len(acc.Chunks) > 0:
			if _, hasPendingCommit := m.pendingCommits[id]; !hasPendingCommit {
				stats.OrphanedFigures++
			}
		}
	}
	return stats
}

// FigureStats holds figure accumulation statistics.
type FigureStats struct {
	TotalFigures     int64
	CommittedFigures int64
	OrphanedFigures  int64
	TotalChunks      int64
	TotalBytes       int64
}
