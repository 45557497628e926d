package cli

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/iossim/pkg/ui"
)

var describeCommand = &cli.Command{
	Name:  "describe",
	Usage: "Describe all UI elements on screen",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print idb's raw JSON",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Also list every element with frame, center, and state",
		},
		udidFlag(),
	},
	Action: func(c *cli.Context) error {
		snap, err := driver(c).Snapshot(c.Context)
		if err != nil {
			return err
		}

		w := c.App.Writer
		if c.Bool("json") {
			var buf bytes.Buffer
			if err := json.Indent(&buf, snap.Raw, "", "  "); err != nil {
				buf.Reset()
				buf.Write(snap.Raw)
			}
			fmt.Fprintln(w, buf.String())
			return nil
		}

		ui.RenderSummary(w, snap, "Full UI Accessibility Tree")
		if c.Bool("verbose") {
			ui.RenderElements(w, snap.Elements)
		}
		return nil
	},
}

var findCommand = &cli.Command{
	Name:      "find",
	Usage:     "Find an element by label and print its tap coordinates",
	ArgsUsage: "<label>",
	Flags:     []cli.Flag{udidFlag()},
	Action: func(c *cli.Context) error {
		if err := requireArgs(c, 1); err != nil {
			return err
		}
		_, err := driver(c).Find(c.Context, c.Args().First())
		return err
	},
}

var screenshotCommand = &cli.Command{
	Name:      "screenshot",
	Usage:     "Save a screenshot",
	ArgsUsage: "<path.png>",
	Flags:     []cli.Flag{udidFlag()},
	Action: func(c *cli.Context) error {
		if err := requireArgs(c, 1); err != nil {
			return err
		}
		return driver(c).Screenshot(c.Context, c.Args().First())
	},
}
