// Package cli provides the command-line interface for iossim.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/iossim/pkg/action"
	"github.com/devicelab-dev/iossim/pkg/config"
	"github.com/devicelab-dev/iossim/pkg/core"
	"github.com/devicelab-dev/iossim/pkg/idb"
	"github.com/devicelab-dev/iossim/pkg/logger"
	"github.com/devicelab-dev/iossim/pkg/shell"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable debug logging",
		EnvVars: []string{"IOSSIM_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Config file (default .iossim.yaml, then <home>/config.yaml)",
		EnvVars: []string{"IOSSIM_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Log file path (default <home>/iossim.log)",
		EnvVars: []string{"IOSSIM_LOG_FILE"},
	},
}

// udidFlag is added to every command that targets a simulator. urfave/cli
// stops flag parsing at the first argument, so it lives on the command
// rather than the app.
func udidFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "udid",
		Usage:   "Target simulator UDID",
		EnvVars: []string{"IOSSIM_UDID"},
	}
}

// newRunner creates the process runner. Tests replace it with a fake.
var newRunner = func(cfg *config.Config) shell.Runner {
	return shell.NewExecRunner(cfg.Binaries())
}

// sleep is the settle and launch delay used by drivers. Tests replace it.
var sleep = time.Sleep

const stateKey = "iossim"

// appState is built once per invocation by the app's Before hook.
type appState struct {
	cfg    *config.Config
	runner shell.Runner
}

func state(c *cli.Context) *appState {
	return c.App.Metadata[stateKey].(*appState)
}

// udid returns the --udid flag (or IOSSIM_UDID), falling back to the config file.
func udid(c *cli.Context) string {
	if v := c.String("udid"); v != "" {
		return v
	}
	return state(c).cfg.UDID
}

func idbClient(c *cli.Context) *idb.Client {
	return idb.NewClient(state(c).runner, udid(c))
}

func newDriver(c *cli.Context, target string) *action.Driver {
	d := action.New(idb.NewClient(state(c).runner, target), c.App.Writer)
	d.Sleep = sleep
	return d
}

func driver(c *cli.Context) *action.Driver {
	return newDriver(c, udid(c))
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:    "iossim",
		Usage:   "iOS Simulator automation via idb, xcrun simctl, and xcodebuild",
		Version: Version,
		Description: `iossim drives iOS simulators from the command line. Every UI action
prints the accessibility state before and after it runs, with tap
coordinates for each interactive element.

Examples:
  iossim list --booted
  iossim boot "iPhone 16 Pro" --wait
  iossim launch com.example.app
  iossim tap-element "Sign In"
  iossim scroll down --distance 400
  iossim run flows/ -e USER=test`,
		Flags:          GlobalFlags,
		Writer:         stdout,
		ErrWriter:      stderr,
		Metadata:       map[string]interface{}{},
		Before:         setup,
		After:          teardown,
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			listCommand,
			bootCommand,
			shutdownCommand,
			buildCommand,
			installCommand,
			launchCommand,
			terminateCommand,
			listAppsCommand,
			tapCommand,
			tapElementCommand,
			swipeCommand,
			scrollCommand,
			textCommand,
			keyCommand,
			buttonCommand,
			openURLCommand,
			describeCommand,
			findCommand,
			screenshotCommand,
			runCommand,
			scriptCommand,
		},
	}
}

// setup loads config, opens the log file, and decides on colors.
func setup(c *cli.Context) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}

	cfg, err := config.Resolve(c.String("config"), wd)
	if err != nil {
		return core.ErrInvalidConfig.WithCause(err)
	}

	logPath := c.String("log-file")
	if logPath == "" {
		logPath = config.GetLogPath()
	}
	if err := logger.Init(logPath, c.Bool("verbose")); err != nil {
		fmt.Fprintf(c.App.ErrWriter, "Warning: logging disabled: %v\n", err)
	}
	logger.Info("=== iossim %s: %s ===", Version, strings.Join(os.Args[1:], " "))

	colorsEnabled = detectColors(c.App.Writer, c.Bool("no-ansi"))

	c.App.Metadata[stateKey] = &appState{cfg: cfg, runner: newRunner(cfg)}
	return nil
}

func teardown(*cli.Context) error {
	logger.Close()
	return nil
}

// Execute runs the CLI and exits with the resulting status.
func Execute() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

// run executes args and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	if wd, err := os.Getwd(); err == nil {
		if err := config.LoadDotEnv(wd); err != nil {
			fmt.Fprintf(stderr, "Warning: failed to load .env: %v\n", err)
		}
	}

	err := newApp(stdout, stderr).Run(args)
	if err == nil {
		return 0
	}
	printError(stderr, err)
	return core.ExitCode(err)
}

// printError reports a failure the way the operator expects: the failing
// command line and its stderr for external tools, the message otherwise.
func printError(w io.Writer, err error) {
	var exitErr *shell.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintf(w, "ERROR: %s\n", shell.CommandLine(exitErr.Command))
		if stderr := strings.TrimRight(exitErr.Stderr, "\n"); stderr != "" {
			fmt.Fprintln(w, stderr)
		}
		return
	}
	fmt.Fprintf(w, "ERROR: %v\n", err)
}
