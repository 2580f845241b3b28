// Package metrics provides per-extraction metrics collection.
//
// The Collector accumulates counters during a single extraction run. It is
// a leaf package with no internal dependencies.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Cell lifecycle
	CellsScanned   int64
	CellsEvaluated int64
	CellsSkipped   int64
	CellErrors     int64
	CellTimeouts   int64

	// Figures
	FiguresCaptured int64
	FigureBytes     int64

	// Harness
	HarnessLaunchSuccess int64
	HarnessLaunchFailure int64
	HarnessCrash         int64
	IPCDecodeErrors      int64

	// Cache / Storage
	CacheHits     int64
	CacheMisses   int64
	StoreWrites   int64
	StoreFailures int64

	// Dimensions (informational, set at construction)
	Backend   string
	ExtractID string
	Notebook  string
}

// Collector accumulates metrics during a single extraction.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	cellsScanned   int64
	cellsEvaluated int64
	cellsSkipped   int64
	cellErrors     int64
	cellTimeouts   int64

	figuresCaptured int64
	figureBytes     int64

	harnessLaunchSuccess int64
	harnessLaunchFailure int64
	harnessCrash         int64
	ipcDecodeErrors      int64

	cacheHits     int64
	cacheMisses   int64
	storeWrites   int64
	storeFailures int64

	backend   string
	extractID string
	notebook  string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(backend, extractID, notebook string) *Collector {
	return &Collector{
		backend:   backend,
		extractID: extractID,
		notebook:  notebook,
	}
}

// --- Cell lifecycle ---

// IncCellScanned records one cell considered during capture.
func (c *Collector) IncCellScanned() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cellsScanned++
	c.mu.Unlock()
}

// IncCellEvaluated records one cell executed in the harness.
func (c *Collector) IncCellEvaluated() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cellsEvaluated++
	c.mu.Unlock()
}

// IncCellSkipped records one cell skipped without evaluation.
func (c *Collector) IncCellSkipped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cellsSkipped++
	c.mu.Unlock()
}

// IncCellError records one cell that raised during evaluation.
func (c *Collector) IncCellError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cellErrors++
	c.mu.Unlock()
}

// IncCellTimeout records one cell killed at its deadline.
func (c *Collector) IncCellTimeout() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cellTimeouts++
	c.mu.Unlock()
}

// --- Figures ---

// AddFigure records one captured figure of the given size.
func (c *Collector) AddFigure(sizeBytes int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.figuresCaptured++
	c.figureBytes += sizeBytes
	c.mu.Unlock()
}

// --- Harness ---

// IncHarnessLaunchSuccess records a successful harness start.
func (c *Collector) IncHarnessLaunchSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.harnessLaunchSuccess++
	c.mu.Unlock()
}

// IncHarnessLaunchFailure records a failed harness start.
func (c *Collector) IncHarnessLaunchFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.harnessLaunchFailure++
	c.mu.Unlock()
}

// IncHarnessCrash records a harness crash (no terminal frame).
func (c *Collector) IncHarnessCrash() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.harnessCrash++
	c.mu.Unlock()
}

// IncIPCDecodeErrors records a frame decode failure.
func (c *Collector) IncIPCDecodeErrors() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.ipcDecodeErrors++
	c.mu.Unlock()
}

// --- Cache / Storage ---

// IncCacheHit records a chart cache hit.
func (c *Collector) IncCacheHit() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cacheHits++
	c.mu.Unlock()
}

// IncCacheMiss records a chart cache miss.
func (c *Collector) IncCacheMiss() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cacheMisses++
	c.mu.Unlock()
}

// IncStoreWrite records a successful storage write.
func (c *Collector) IncStoreWrite() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.storeWrites++
	c.mu.Unlock()
}

// IncStoreFailure records a failed storage write.
func (c *Collector) IncStoreFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.storeFailures++
	c.mu.Unlock()
}

// Snapshot returns an immutable copy of all counters.
// Nil-receiver safe: returns a zero Snapshot.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		CellsScanned:         c.cellsScanned,
		CellsEvaluated:       c.cellsEvaluated,
		CellsSkipped:         c.cellsSkipped,
		CellErrors:           c.cellErrors,
		CellTimeouts:         c.cellTimeouts,
		FiguresCaptured:      c.figuresCaptured,
		FigureBytes:          c.figureBytes,
		HarnessLaunchSuccess: c.harnessLaunchSuccess,
		HarnessLaunchFailure: c.harnessLaunchFailure,
		HarnessCrash:         c.harnessCrash,
		IPCDecodeErrors:      c.ipcDecodeErrors,
		CacheHits:            c.cacheHits,
		CacheMisses:          c.cacheMisses,
		StoreWrites:          c.storeWrites,
		StoreFailures:        c.storeFailures,
		Backend:              c.backend,
		ExtractID:            c.extractID,
		Notebook:             c.notebook,
	}
}
