package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/iossim/pkg/core"
	"github.com/devicelab-dev/iossim/pkg/gesture"
	"github.com/devicelab-dev/iossim/pkg/idb"
)

// Navigation commands all run through the action driver, which prints the
// UI state before and after each action.

var tapCommand = &cli.Command{
	Name:      "tap",
	Usage:     "Tap at x,y coordinates",
	ArgsUsage: "<x> <y>",
	Flags: []cli.Flag{
		&cli.Float64Flag{
			Name:  "duration",
			Usage: "Press duration in seconds (long press)",
		},
		udidFlag(),
	},
	Action: func(c *cli.Context) error {
		if err := requireArgs(c, 2); err != nil {
			return err
		}
		xy, err := floatArgs(c)
		if err != nil {
			return err
		}
		return driver(c).Tap(c.Context, gesture.Point{X: xy[0], Y: xy[1]}, c.Float64("duration"))
	},
}

var tapElementCommand = &cli.Command{
	Name:      "tap-element",
	Usage:     "Find an element by label, title, or value and tap its center",
	ArgsUsage: "<label>",
	Flags:     []cli.Flag{udidFlag()},
	Action: func(c *cli.Context) error {
		if err := requireArgs(c, 1); err != nil {
			return err
		}
		_, err := driver(c).TapElement(c.Context, c.Args().First())
		return err
	},
}

var swipeCommand = &cli.Command{
	Name:      "swipe",
	Usage:     "Swipe from (x1,y1) to (x2,y2)",
	ArgsUsage: "<x1> <y1> <x2> <y2>",
	Flags: []cli.Flag{
		&cli.Float64Flag{
			Name:  "duration",
			Usage: "Swipe duration in seconds",
		},
		&cli.IntFlag{
			Name:  "delta",
			Usage: "Points between touch events",
		},
		udidFlag(),
	},
	Action: func(c *cli.Context) error {
		if err := requireArgs(c, 4); err != nil {
			return err
		}
		p, err := floatArgs(c)
		if err != nil {
			return err
		}
		s := gesture.Swipe{
			Start: gesture.Point{X: p[0], Y: p[1]},
			End:   gesture.Point{X: p[2], Y: p[3]},
		}
		return driver(c).Swipe(c.Context, s, idb.SwipeOptions{
			Duration: c.Float64("duration"),
			Delta:    c.Int("delta"),
		})
	},
}

var scrollCommand = &cli.Command{
	Name:      "scroll",
	Usage:     "Scroll in a direction (up, down, left, right)",
	ArgsUsage: "<direction>",
	Flags: []cli.Flag{
		&cli.Float64Flag{
			Name:  "distance",
			Usage: "Scroll distance in points (default from config, else 300)",
		},
		&cli.Float64Flag{
			Name:  "speed",
			Usage: "Swipe duration in seconds; lower is faster (default from config, else 0.4)",
		},
		udidFlag(),
	},
	Before: func(c *cli.Context) error {
		if err := requireArgs(c, 1); err != nil {
			return err
		}
		if _, err := gesture.ParseDirection(c.Args().First()); err != nil {
			return core.ErrInvalidDirection.WithMessage(err.Error())
		}
		return nil
	},
	Action: func(c *cli.Context) error {
		dir, _ := gesture.ParseDirection(c.Args().First())
		scroll := state(c).cfg.Scroll
		distance, speed := scroll.Distance, scroll.Speed
		if c.IsSet("distance") {
			distance = c.Float64("distance")
		}
		if c.IsSet("speed") {
			speed = c.Float64("speed")
		}
		_, err := driver(c).Scroll(c.Context, dir, distance, speed)
		return err
	},
}

var textCommand = &cli.Command{
	Name:      "text",
	Usage:     "Type text into the focused element",
	ArgsUsage: "<text>",
	Flags:     []cli.Flag{udidFlag()},
	Action: func(c *cli.Context) error {
		if err := requireArgs(c, 1); err != nil {
			return err
		}
		return driver(c).Text(c.Context, c.Args().First())
	},
}

var keyCommand = &cli.Command{
	Name:      "key",
	Usage:     "Press a key by keycode or name (enter, backspace, tab, …)",
	ArgsUsage: "<key>",
	Flags:     []cli.Flag{udidFlag()},
	Action: func(c *cli.Context) error {
		if err := requireArgs(c, 1); err != nil {
			return err
		}
		return driver(c).Key(c.Context, c.Args().First())
	},
}

var buttonCommand = &cli.Command{
	Name:      "button",
	Usage:     "Press a hardware button: APPLE_PAY, HOME, LOCK, SIDE_BUTTON, SIRI",
	ArgsUsage: "<name>",
	Flags:     []cli.Flag{udidFlag()},
	Action: func(c *cli.Context) error {
		if err := requireArgs(c, 1); err != nil {
			return err
		}
		return driver(c).Button(c.Context, c.Args().First())
	},
}

var openURLCommand = &cli.Command{
	Name:      "openurl",
	Usage:     "Open a URL (http/https or a deep-link scheme)",
	ArgsUsage: "<url>",
	Flags:     []cli.Flag{udidFlag()},
	Action: func(c *cli.Context) error {
		if err := requireArgs(c, 1); err != nil {
			return err
		}
		return driver(c).OpenURL(c.Context, c.Args().First())
	},
}
