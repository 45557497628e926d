package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/iossim/pkg/shell"
	"github.com/devicelab-dev/iossim/pkg/xcodebuild"
)

var buildCommand = &cli.Command{
	Name:  "build",
	Usage: "Build an app for the simulator with xcodebuild",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "project",
			Aliases: []string{"p"},
			Usage:   ".xcodeproj path",
		},
		&cli.StringFlag{
			Name:    "workspace",
			Aliases: []string{"w"},
			Usage:   ".xcworkspace path",
		},
		&cli.StringFlag{
			Name:    "scheme",
			Aliases: []string{"s"},
			Usage:   "Scheme to build (default from config)",
		},
		&cli.StringFlag{
			Name:    "configuration",
			Aliases: []string{"c"},
			Usage:   "Build configuration (default from config, else Debug)",
		},
		&cli.StringFlag{
			Name:    "derived-data",
			Aliases: []string{"d"},
			Usage:   "DerivedData path (default from config, else /tmp/ios_sim_derived)",
		},
		udidFlag(),
	},
	Action: func(c *cli.Context) error {
		opts := buildOptions(c)
		if err := opts.Validate(); err != nil {
			return err
		}

		w := c.App.Writer
		fmt.Fprintln(w, "Building:", shell.CommandLine(append([]string{"xcodebuild"}, opts.Args()...)))
		start := time.Now()
		if err := xcodebuild.Build(c.Context, state(c).runner, w, c.App.ErrWriter, opts); err != nil {
			return err
		}
		fmt.Fprintf(w, "\n%sBuild succeeded%s in %s\n", color(colorGreen), color(colorReset), formatDuration(time.Since(start)))

		dir := opts.ProductsDir()
		fmt.Fprintf(w, "\nBuild products: %s\n", dir)
		products, err := xcodebuild.FindProducts(dir)
		if err != nil {
			return err
		}
		for _, p := range products {
			if p.BundleID != "" {
				fmt.Fprintf(w, "  → %s  (%s)\n", p.Path, p.BundleID)
				continue
			}
			fmt.Fprintf(w, "  → %s\n", p.Path)
		}
		return nil
	},
}

// buildOptions merges build flags over the config file's build section.
func buildOptions(c *cli.Context) xcodebuild.Options {
	b := state(c).cfg.Build
	opts := xcodebuild.Options{
		Project:         c.String("project"),
		Workspace:       c.String("workspace"),
		Scheme:          b.Scheme,
		Configuration:   b.Configuration,
		DerivedData:     b.DerivedData,
		UDID:            udid(c),
		DestinationName: b.DestinationName,
	}
	if v := c.String("scheme"); v != "" {
		opts.Scheme = v
	}
	if v := c.String("configuration"); v != "" {
		opts.Configuration = v
	}
	if v := c.String("derived-data"); v != "" {
		opts.DerivedData = v
	}
	return opts
}

var installCommand = &cli.Command{
	Name:      "install",
	Usage:     "Install an .app or .ipa",
	ArgsUsage: "<path>",
	Flags:     []cli.Flag{udidFlag()},
	Action: func(c *cli.Context) error {
		if err := requireArgs(c, 1); err != nil {
			return err
		}
		path := c.Args().First()
		fmt.Fprintf(c.App.Writer, "Installing %s …\n", path)
		if err := idbClient(c).Install(c.Context, c.App.Writer, c.App.ErrWriter, path); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, "Installed.")
		return nil
	},
}

var launchCommand = &cli.Command{
	Name:      "launch",
	Usage:     "Launch an app by bundle ID and show its first screen",
	ArgsUsage: "<bundle-id>",
	Flags:     []cli.Flag{udidFlag()},
	Action: func(c *cli.Context) error {
		if err := requireArgs(c, 1); err != nil {
			return err
		}
		_, err := driver(c).Launch(c.Context, c.Args().First())
		return err
	},
}

var terminateCommand = &cli.Command{
	Name:      "terminate",
	Usage:     "Terminate a running app",
	ArgsUsage: "<bundle-id>",
	Flags:     []cli.Flag{udidFlag()},
	Action: func(c *cli.Context) error {
		if err := requireArgs(c, 1); err != nil {
			return err
		}
		return driver(c).Terminate(c.Context, c.Args().First())
	},
}

var listAppsCommand = &cli.Command{
	Name:  "list-apps",
	Usage: "List installed apps",
	Flags: []cli.Flag{udidFlag()},
	Action: func(c *cli.Context) error {
		apps, err := idbClient(c).ListApps(c.Context)
		if err != nil {
			return err
		}

		w := c.App.Writer
		fmt.Fprintf(w, "\n%-50s  %-12s  %s\n", "Bundle ID", "State", "Name")
		fmt.Fprintln(w, strings.Repeat("─", 80))
		for _, app := range apps {
			bundleID := app.BundleID
			if bundleID == "" {
				bundleID = "?"
			}
			st := app.ProcessState
			if st == "" {
				st = "?"
			}
			fmt.Fprintf(w, "%-50s  %-12s  %s\n", bundleID, st, app.DisplayName())
		}
		return nil
	},
}
