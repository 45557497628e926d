package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/iossim/pkg/simulator"
)

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "List available simulators",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "min-os",
			Usage: "Only show runtimes at or above this OS version (e.g. 17.0)",
		},
		&cli.BoolFlag{
			Name:  "booted",
			Usage: "Only show booted simulators",
		},
	},
	Action: func(c *cli.Context) error {
		sims, err := simulator.New(state(c).runner).List(c.Context, simulator.ListOptions{
			MinOS:      c.String("min-os"),
			BootedOnly: c.Bool("booted"),
		})
		if err != nil {
			return err
		}

		w := c.App.Writer
		fmt.Fprintf(w, "\n%-38s  %-10s  %s\n", "UDID", "State", "Name")
		fmt.Fprintln(w, strings.Repeat("─", 78))
		for _, sim := range sims {
			st := fmt.Sprintf("%-10s", sim.DisplayState())
			if sim.IsBooted() {
				st = color(colorGreen) + st + color(colorReset)
			}
			fmt.Fprintf(w, "%s  %s  %s  [%s]\n", sim.UDID, st, sim.Name, sim.RuntimeLabel())
		}
		if len(sims) == 0 {
			fmt.Fprintln(w, "No simulators found.")
		}
		return nil
	},
}

var bootCommand = &cli.Command{
	Name:      "boot",
	Usage:     "Boot a simulator",
	ArgsUsage: "<udid|name>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "wait",
			Usage: "Wait until the simulator reports Booted",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "How long --wait waits",
			Value: 2 * time.Minute,
		},
	},
	Action: func(c *cli.Context) error {
		if err := requireArgs(c, 1); err != nil {
			return err
		}
		simctl := simulator.New(state(c).runner)
		target, err := simctl.Resolve(c.Context, c.Args().First())
		if err != nil {
			return err
		}

		fmt.Fprintf(c.App.Writer, "Booting %s …\n", target)
		if err := simctl.Boot(c.Context, target); err != nil {
			return err
		}
		if c.Bool("wait") {
			fmt.Fprintf(c.App.Writer, "Waiting for %s to finish booting …\n", target)
			if err := simctl.WaitForBoot(c.Context, target, c.Duration("timeout")); err != nil {
				return err
			}
		}
		fmt.Fprintln(c.App.Writer, "Done.")
		return nil
	},
}

var shutdownCommand = &cli.Command{
	Name:      "shutdown",
	Usage:     "Shut down a simulator",
	ArgsUsage: "<udid|name>",
	Action: func(c *cli.Context) error {
		if err := requireArgs(c, 1); err != nil {
			return err
		}
		simctl := simulator.New(state(c).runner)
		target, err := simctl.Resolve(c.Context, c.Args().First())
		if err != nil {
			return err
		}

		fmt.Fprintf(c.App.Writer, "Shutting down %s …\n", target)
		if err := simctl.Shutdown(c.Context, target); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, "Done.")
		return nil
	},
}
