package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pulto-io/sift/cli/render"
	"github.com/pulto-io/sift/harness"
	"github.com/pulto-io/sift/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version         string `json:"version"`
	Commit          string `json:"commit"`
	HarnessChecksum string `json:"harness_checksum"`
	HarnessSize     int    `json:"harness_size"`
}

// VersionCommand returns the version command. It reports the binary version
// and the embedded harness fingerprint, and never launches Python.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}

		return r.Render(VersionResponse{
			Version:         types.Version,
			Commit:          commit,
			HarnessChecksum: harness.EmbeddedChecksum(),
			HarnessSize:     harness.EmbeddedSize(),
		})
	}
}
