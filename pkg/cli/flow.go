package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/iossim/pkg/action"
	"github.com/devicelab-dev/iossim/pkg/core"
	"github.com/devicelab-dev/iossim/pkg/executor"
	"github.com/devicelab-dev/iossim/pkg/flow"
	"github.com/devicelab-dev/iossim/pkg/jsengine"
	"github.com/devicelab-dev/iossim/pkg/logger"
	"github.com/devicelab-dev/iossim/pkg/validator"
)

var errFlowsFailed = errors.New("one or more flows failed")

// Slow step threshold in milliseconds
const slowThreshold = 5000

func envFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:    "env",
		Aliases: []string{"e"},
		Usage:   "Variables for the flow or script (KEY=VALUE)",
	}
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run YAML flows against a simulator",
	ArgsUsage: "<flow-file-or-folder>...",
	Description: `Run one or more flow files. A flow is an optional header (udid, appId,
name, tags, env), a "---" line, and a list of steps.

The simulator is picked from --udid (or IOSSIM_UDID), then the flow's
udid header, then the config file.

Examples:
  iossim run login.yaml
  iossim run flows/ -e USER=test -e PASS=secret
  iossim run flows/ --include-tags smoke --stop-on-fail`,
	Flags: []cli.Flag{
		envFlag(),
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include flows with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude flows with these tags",
		},
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Skip the remaining flows after the first failure",
		},
		udidFlag(),
	},
	Action: runFlows,
}

func runFlows(c *cli.Context) error {
	if c.NArg() == 0 {
		return core.ErrInvalidArgument.WithMessage("run needs at least one flow file or folder")
	}

	flows, err := collectFlows(c.App.ErrWriter, c.Args().Slice(),
		c.StringSlice("include-tags"), c.StringSlice("exclude-tags"))
	if err != nil {
		return err
	}

	env := parseEnvVars(c.StringSlice("env"))
	for _, f := range flows {
		f.Config.Env = mergeEnv(f.Config.Env, env)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := state(c).cfg
	w := c.App.Writer
	runner := executor.New(
		func(target string) *action.Driver { return newDriver(c, target) },
		executor.RunnerConfig{
			UDID:           c.String("udid"),
			DefaultUDID:    cfg.UDID,
			StopOnFail:     c.Bool("stop-on-fail"),
			ScrollDistance: cfg.Scroll.Distance,
			ScrollSpeed:    cfg.Scroll.Speed,
			OnFlowStart: func(flowIdx, totalFlows int, name, udid string) {
				onFlowStart(w, flowIdx, totalFlows, name, udid)
			},
			OnStepStart: func(depth int, desc string) {
				onStepStart(w, depth, desc)
			},
			OnStepComplete: func(result core.StepResult) {
				onStepComplete(w, result)
			},
			OnFlowEnd: func(result *core.FlowResult) {
				onFlowEnd(w, result)
			},
		},
	)

	logger.Info("Running %d flow(s)", len(flows))
	suite := runner.Run(ctx, flows)
	printSummary(w, suite)

	if !suite.Success() {
		return errFlowsFailed
	}
	return nil
}

// collectFlows validates every path upfront so nothing runs when any flow is broken.
func collectFlows(errw io.Writer, paths, includeTags, excludeTags []string) ([]*flow.Flow, error) {
	v := validator.New(includeTags, excludeTags)
	var flows []*flow.Flow
	var errs []error

	for _, path := range paths {
		result := v.Validate(path)
		flows = append(flows, result.Flows...)
		errs = append(errs, result.Errors...)
	}

	if len(errs) > 0 {
		fmt.Fprintln(errw, "Validation errors:")
		for _, err := range errs {
			fmt.Fprintf(errw, "  - %v\n", err)
		}
		return nil, core.ErrInvalidFlow.WithMessage(fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}
	if len(flows) == 0 {
		return nil, core.ErrInvalidFlow.WithMessage("no flows found")
	}
	return flows, nil
}

// mergeEnv overlays command-line variables on a flow's header env.
func mergeEnv(header, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(header)+len(overrides))
	for k, v := range header {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// Live progress callbacks

func onFlowStart(w io.Writer, flowIdx, totalFlows int, name, udid string) {
	target := udid
	if target == "" {
		target = "default simulator"
	}
	fmt.Fprintf(w, "\n  %s[%d/%d]%s %s%s%s (%s)\n",
		color(colorCyan), flowIdx+1, totalFlows, color(colorReset),
		color(colorBold), name, color(colorReset), target)
	fmt.Fprintln(w, strings.Repeat("─", 60))
}

func onStepStart(w io.Writer, depth int, desc string) {
	indent := strings.Repeat("  ", 2+depth)
	fmt.Fprintf(w, "%s%s▸%s %s\n", indent, color(colorCyan), color(colorReset), desc)
}

func onStepComplete(w io.Writer, r core.StepResult) {
	indent := strings.Repeat("  ", 2+r.Depth)
	dur := formatDuration(r.Duration)

	switch r.Status {
	case core.StatusPassed:
		symbol, symbolColor, durColor := "✓", color(colorGreen), ""
		if r.Duration.Milliseconds() >= slowThreshold && r.Command != string(flow.StepRepeat) {
			symbol, symbolColor, durColor = "⚠", color(colorYellow), color(colorYellow)
		}
		fmt.Fprintf(w, "%s%s%s%s %s %s(%s)%s\n",
			indent, symbolColor, symbol, color(colorReset), r.Description, durColor, dur, color(colorReset))
	case core.StatusWarned:
		fmt.Fprintf(w, "%s%s⚠%s %s (%s, optional)\n", indent, color(colorYellow), color(colorReset), r.Description, dur)
		printStepError(w, indent, r.Error)
	case core.StatusSkipped:
		fmt.Fprintf(w, "%s%s-%s %s (skipped)\n", indent, color(colorGray), color(colorReset), r.Description)
	default:
		fmt.Fprintf(w, "%s%s✗%s %s (%s)\n", indent, color(colorRed), color(colorReset), r.Description, dur)
		printStepError(w, indent, r.Error)
	}
}

func printStepError(w io.Writer, indent, msg string) {
	if msg != "" {
		fmt.Fprintf(w, "%s  %s╰─%s %s\n", indent, color(colorGray), color(colorReset), msg)
	}
}

func onFlowEnd(w io.Writer, r *core.FlowResult) {
	symbol, symbolColor := "✓", color(colorGreen)
	if !r.Status.IsSuccess() {
		symbol, symbolColor = "✗", color(colorRed)
	}
	fmt.Fprintf(w, "%s%s %s%s %s%s%s\n",
		symbolColor, symbol, color(colorReset), r.Name, color(colorGray), formatDuration(r.Duration), color(colorReset))
}

func printSummary(w io.Writer, suite *core.SuiteResult) {
	totalSteps, passedSteps, failedSteps, skippedSteps := 0, 0, 0, 0
	for _, fr := range suite.Flows {
		totalSteps += fr.TotalSteps
		passedSteps += fr.PassedSteps + fr.WarnedSteps
		failedSteps += fr.FailedSteps
		skippedSteps += fr.SkippedSteps
	}

	fmt.Fprintln(w)
	if passedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps passing%s (%s)\n", color(colorGreen), passedSteps, color(colorReset), formatDuration(suite.Duration))
	}
	if failedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps failing%s\n", color(colorRed), failedSteps, color(colorReset))
	}
	if skippedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps skipped%s\n", color(colorCyan), skippedSteps, color(colorReset))
	}
	fmt.Fprintln(w)

	tableWidth := 92
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
	fmt.Fprintf(w, "  %-42s %6s %7s %6s %6s %6s %10s\n", "Flow", "Status", "Steps", "Pass", "Fail", "Skip", "Duration")
	fmt.Fprintln(w, strings.Repeat("─", tableWidth))

	for _, fr := range suite.Flows {
		var status, statusColor string
		switch fr.Status {
		case core.StatusFailed:
			status, statusColor = "✗ FAIL", color(colorRed)
		case core.StatusSkipped:
			status, statusColor = "- SKIP", color(colorCyan)
		default:
			status, statusColor = "✓ PASS", color(colorGreen)
		}

		name := fr.Name
		if len(name) > 42 {
			name = name[:39] + "..."
		}

		fmt.Fprintf(w, "  %-42s %s%6s%s %7d %6d %6d %6d %10s\n",
			name, statusColor, status, color(colorReset),
			fr.TotalSteps, fr.PassedSteps+fr.WarnedSteps, fr.FailedSteps, fr.SkippedSteps,
			formatDuration(fr.Duration))
	}

	fmt.Fprintln(w, strings.Repeat("─", tableWidth))
	statusStr := fmt.Sprintf("%d/%d", suite.PassedFlows, suite.TotalFlows)
	statusColor := color(colorGreen)
	if suite.FailedFlows > 0 {
		statusColor = color(colorRed)
	}
	fmt.Fprintf(w, "  %s%-42s%s %s%6s%s %7d %6d %6d %6d %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, statusStr, color(colorReset),
		totalSteps, passedSteps, failedSteps, skippedSteps,
		formatDuration(suite.Duration))
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
}

var scriptCommand = &cli.Command{
	Name:      "script",
	Usage:     "Run a JavaScript file with a sim object bound to the simulator",
	ArgsUsage: "<file.js>",
	Description: `The script sees a global sim object whose methods run the same actions
as the CLI verbs: tap, tapElement, find, scroll, swipe, text, key,
button, openURL, launch, terminate, describe, and screenshot.
console.log writes to stdout. Values set on the output object are
printed when the script finishes.

Example:
  sim.launch("com.example.app");
  var btn = sim.find("Sign In");
  if (btn) sim.tap(btn.centerX, btn.centerY);
  output.buttons = sim.describe().length;`,
	Flags: []cli.Flag{envFlag(), udidFlag()},
	Action: func(c *cli.Context) error {
		if err := requireArgs(c, 1); err != nil {
			return err
		}
		path := c.Args().First()
		src, err := os.ReadFile(path) //#nosec G304 -- user-provided script
		if err != nil {
			return core.ErrScriptFailed.WithMessage("cannot read script " + path).WithCause(err)
		}

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		w := c.App.Writer
		scroll := state(c).cfg.Scroll
		se := executor.NewScriptEngine(w)
		defer se.Close()
		se.ImportSystemEnv()
		se.SetFlowDir(filepath.Dir(path))
		se.BindSimulator(ctx, driver(c), jsengine.ScrollDefaults{
			Distance: scroll.Distance,
			Speed:    scroll.Speed,
		})

		logger.Info("Running script %s", path)
		if err := se.RunScript(filepath.Base(path), string(src), parseEnvVars(c.StringSlice("env"))); err != nil {
			return err
		}
		printOutput(w, se.GetOutput())
		return nil
	},
}

// printOutput lists the script's output values, sorted by key.
func printOutput(w io.Writer, output map[string]interface{}) {
	if len(output) == 0 {
		return
	}
	keys := make([]string, 0, len(output))
	for k := range output {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "\n%sOutput%s\n", color(colorBold), color(colorReset))
	fmt.Fprintln(w, strings.Repeat("─", 40))
	for _, k := range keys {
		fmt.Fprintf(w, "  %s = %v\n", k, output[k])
	}
}
