// Package catalog maintains a local SQLite registry of extracted
// notebooks: one row per notebook name with its latest digest, cell
// counts, and extraction summary.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a notebook has no catalog entry.
var ErrNotFound = errors.New("notebook not in catalog")

const schema = `
CREATE TABLE IF NOT EXISTS notebooks (
	name           TEXT PRIMARY KEY,
	digest         TEXT NOT NULL,
	total_cells    INTEGER NOT NULL,
	code_cells     INTEGER NOT NULL,
	chart_count    INTEGER NOT NULL DEFAULT 0,
	has_spatial    INTEGER NOT NULL DEFAULT 0,
	last_extract   TEXT NOT NULL,
	last_extracted TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notebooks_digest ON notebooks(digest);
`

// Entry is one catalog row.
type Entry struct {
	Name          string
	Digest        string
	TotalCells    int
	CodeCells     int
	ChartCount    int
	HasSpatial    bool
	LastExtractID string
	LastExtracted time.Time
}

// Catalog is a SQLite-backed notebook registry.
type Catalog struct {
	db   *sql.DB
	path string
}

// Open opens or creates the catalog database at the given path.
func Open(path string) (*Catalog, error) {
	if path == "" {
		return nil, errors.New("catalog path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open: %w", err)
	}

	// WAL keeps readers unblocked during extraction writes.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("catalog: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog: init schema: %w", err)
	}

	return &Catalog{db: db, path: path}, nil
}

// Path returns the database file path.
func (c *Catalog) Path() string {
	return c.path
}

// Upsert records an extraction for a notebook, replacing any previous row
// for the same name.
func (c *Catalog) Upsert(ctx context.Context, entry *Entry) error {
	if entry.Name == "" {
		return errors.New("catalog: entry requires a name")
	}
	if entry.Digest == "" {
		return errors.New("catalog: entry requires a digest")
	}
	if entry.LastExtracted.IsZero() {
		entry.LastExtracted = time.Now().UTC()
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO notebooks
			(name, digest, total_cells, code_cells, chart_count, has_spatial, last_extract, last_extracted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			digest = excluded.digest,
			total_cells = excluded.total_cells,
			code_cells = excluded.code_cells,
			chart_count = excluded.chart_count,
			has_spatial = excluded.has_spatial,
			last_extract = excluded.last_extract,
			last_extracted = excluded.last_extracted`,
		entry.Name, entry.Digest, entry.TotalCells, entry.CodeCells,
		entry.ChartCount, boolToInt(entry.HasSpatial),
		entry.LastExtractID, entry.LastExtracted.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("catalog: upsert %s: %w", entry.Name, err)
	}
	return nil
}

// Get returns the catalog entry for a notebook name.
// Returns ErrNotFound when the notebook has never been extracted.
func (c *Catalog) Get(ctx context.Context, name string) (*Entry, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT name, digest, total_cells, code_cells, chart_count, has_spatial, last_extract, last_extracted
		FROM notebooks WHERE name = ?`, name)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get %s: %w", name, err)
	}
	return entry, nil
}

// List returns all catalog entries ordered by most recent extraction.
func (c *Catalog) List(ctx context.Context) ([]*Entry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT name, digest, total_cells, code_cells, chart_count, has_spatial, last_extract, last_extracted
		FROM notebooks ORDER BY last_extracted DESC`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: list: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	return entries, nil
}

// Unchanged reports whether the catalog already holds this digest for the
// notebook, meaning its content has not changed since the last extraction.
func (c *Catalog) Unchanged(ctx context.Context, name, digest string) (bool, error) {
	entry, err := c.Get(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return entry.Digest == digest, nil
}

// Delete removes a notebook entry. Removing a missing entry is not an error.
func (c *Catalog) Delete(ctx context.Context, name string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM notebooks WHERE name = ?`, name); err != nil {
		return fmt.Errorf("catalog: delete %s: %w", name, err)
	}
	return nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var entry Entry
	var hasSpatial int
	var extracted string
	if err := row.Scan(&entry.Name, &entry.Digest, &entry.TotalCells, &entry.CodeCells,
		&entry.ChartCount, &hasSpatial, &entry.LastExtractID, &extracted); err != nil {
		return nil, err
	}
	entry.HasSpatial = hasSpatial != 0

	ts, err := time.Parse(time.RFC3339, extracted)
	if err != nil {
		return nil, fmt.Errorf("invalid last_extracted %q: %w", extracted, err)
	}
	entry.LastExtracted = ts
	return &entry, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
