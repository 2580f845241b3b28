package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pulto-io/sift/cli/render"
	"github.com/pulto-io/sift/spatial"
)

// SpatialCommand returns the spatial command with subcommands for merging
// and inspecting spatial placement metadata.
func SpatialCommand() *cli.Command {
	return &cli.Command{
		Name:  "spatial",
		Usage: "Merge or inspect spatial placement metadata",
		Subcommands: []*cli.Command{
			spatialApplyCommand(),
			spatialShowCommand(),
		},
	}
}

func spatialApplyCommand() *cli.Command {
	return &cli.Command{
		Name:      "apply",
		Usage:     "Merge a spatial payload into cell metadata",
		ArgsUsage: "<notebook.ipynb>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "payload",
				Usage: "Spatial payload as inline JSON",
			},
			&cli.StringFlag{
				Name:  "payload-file",
				Usage: "Path to a JSON file holding the spatial payload",
			},
			&cli.IntFlag{
				Name:  "cell",
				Usage: "Target cell index (omit to apply to all cells)",
				Value: -1,
			},
			&cli.BoolFlag{
				Name:  "document",
				Usage: "Attach to document-level metadata instead of cells",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output path (default: stdout)",
			},
		},
		Action: spatialApplyAction,
	}
}

func spatialApplyAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: sift spatial apply <notebook.ipynb>", exitExtractError)
	}

	raw, err := os.ReadFile(c.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read notebook: %v", err), exitExtractError)
	}

	payload, err := readPayload(c)
	if err != nil {
		return cli.Exit(err.Error(), exitExtractError)
	}

	var merged []byte
	switch cell := c.Int("cell"); {
	case c.Bool("document"):
		if cell >= 0 {
			return cli.Exit("--document and --cell are mutually exclusive", exitExtractError)
		}
		merged, err = spatial.ApplyDocument(raw, payload)
	case cell >= 0:
		merged, err = spatial.Apply(raw, payload, cell)
	default:
		merged, err = spatial.ApplyAll(raw, payload)
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("merge failed: %v", err), exitExtractError)
	}

	if out := c.String("output"); out != "" {
		if err := os.WriteFile(out, merged, 0o644); err != nil {
			return cli.Exit(fmt.Sprintf("failed to write output: %v", err), exitStorageFailure)
		}
		return nil
	}

	_, err = os.Stdout.Write(merged)
	return err
}

func readPayload(c *cli.Context) (json.RawMessage, error) {
	inline := c.String("payload")
	file := c.String("payload-file")

	switch {
	case inline != "" && file != "":
		return nil, fmt.Errorf("--payload and --payload-file are mutually exclusive")
	case inline != "":
		return json.RawMessage(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload file: %w", err)
		}
		return json.RawMessage(data), nil
	default:
		return nil, fmt.Errorf("--payload or --payload-file required")
	}
}

func spatialShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show the spatial payload attached to a cell",
		ArgsUsage: "<notebook.ipynb>",
		Flags: append(ReadOnlyFlags(),
			&cli.IntFlag{
				Name:     "cell",
				Usage:    "Cell index to inspect",
				Required: true,
			},
		),
		Action: spatialShowAction,
	}
}

// SpatialPlacement is the response for spatial show.
type SpatialPlacement struct {
	CellIndex int             `json:"cell_index"`
	Present   bool            `json:"present"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func spatialShowAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: sift spatial show <notebook.ipynb>", exitExtractError)
	}

	raw, err := os.ReadFile(c.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read notebook: %v", err), exitExtractError)
	}

	cell := c.Int("cell")
	payload, present, err := spatial.Placement(raw, cell)
	if err != nil {
		return cli.Exit(fmt.Sprintf("lookup failed: %v", err), exitExtractError)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(SpatialPlacement{
		CellIndex: cell,
		Present:   present,
		Payload:   payload,
	})
}
