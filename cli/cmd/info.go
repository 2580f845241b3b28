package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pulto-io/sift/catalog"
	"github.com/pulto-io/sift/cli/render"
)

// NotebookInfo is the rendered form of a catalog entry.
type NotebookInfo struct {
	Name          string    `json:"name"`
	Digest        string    `json:"digest"`
	TotalCells    int       `json:"total_cells"`
	CodeCells     int       `json:"code_cells"`
	ChartCount    int       `json:"chart_count"`
	HasSpatial    bool      `json:"has_spatial"`
	LastExtractID string    `json:"last_extract_id"`
	LastExtracted time.Time `json:"last_extracted"`
}

func infoFromEntry(e *catalog.Entry) NotebookInfo {
	return NotebookInfo{
		Name:          e.Name,
		Digest:        e.Digest,
		TotalCells:    e.TotalCells,
		CodeCells:     e.CodeCells,
		ChartCount:    e.ChartCount,
		HasSpatial:    e.HasSpatial,
		LastExtractID: e.LastExtractID,
		LastExtracted: e.LastExtracted,
	}
}

// InfoCommand returns the info command. Info is read-only and reports the
// catalog record for one notebook.
func InfoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "Show catalog details for a notebook",
		ArgsUsage: "<name>",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{
				Name:  "catalog",
				Usage: "Path to SQLite catalog database",
			},
		),
		Action: infoAction,
	}
}

func infoAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: sift info <name>", exitExtractError)
	}
	name := c.Args().First()

	s, err := resolveSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), exitExtractError)
	}
	if s.catalogPath == "" {
		return cli.Exit("--catalog required (or set catalog.path in config)", exitExtractError)
	}

	cat, err := catalog.Open(s.catalogPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open catalog: %v", err), exitExtractError)
	}
	defer func() { _ = cat.Close() }()

	entry, err := cat.Get(c.Context, name)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return cli.Exit(fmt.Sprintf("notebook %q not in catalog", name), exitExtractError)
		}
		return cli.Exit(fmt.Sprintf("catalog lookup failed: %v", err), exitExtractError)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(infoFromEntry(entry))
}
