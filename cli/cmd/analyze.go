package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pulto-io/sift/analyze"
	"github.com/pulto-io/sift/cli/render"
	"github.com/pulto-io/sift/notebook"
)

// AnalyzeCommand returns the analyze command. Analyze is read-only: it
// summarizes notebook structure without evaluating any code.
func AnalyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Summarize notebook structure, imports, and plot usage",
		ArgsUsage: "<notebook.ipynb>",
		Flags:     ReadOnlyFlags(),
		Action:    analyzeAction,
	}
}

func analyzeAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: sift analyze <notebook.ipynb>", exitExtractError)
	}

	raw, err := os.ReadFile(c.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read notebook: %v", err), exitExtractError)
	}

	doc, err := notebook.Parse(raw)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid notebook: %v", err), exitExtractError)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(analyze.Analyze(doc))
}
