package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pulto-io/sift/catalog"
	"github.com/pulto-io/sift/cli/render"
)

// listWarningThreshold is the number of items above which we warn about
// using --limit.
const listWarningThreshold = 100

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// ListCommand returns the list command. List returns catalog entries in
// most-recently-extracted order.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List cataloged notebooks",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{
				Name:  "catalog",
				Usage: "Path to SQLite catalog database",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of entries to return (0 = no limit)",
				Value: 0,
			},
		),
		Action: listAction,
	}
}

func listAction(c *cli.Context) error {
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

	entries, err := cat.List(c.Context)
	if err != nil {
		return cli.Exit(fmt.Sprintf("catalog list failed: %v", err), exitExtractError)
	}

	limit := c.Int("limit")
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	// Warn on large output when --limit was not given (TTY only to avoid
	// noise in pipelines).
	if len(entries) > listWarningThreshold && limit == 0 && isStderrTTY() {
		fmt.Fprintf(os.Stderr, "Warning: returning %d results. Consider using --limit to reduce output.\n\n", len(entries))
	}

	infos := make([]NotebookInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, infoFromEntry(e))
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(infos)
}
