package executor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"time"

	"github.com/devicelab-dev/iossim/pkg/action"
	"github.com/devicelab-dev/iossim/pkg/core"
	"github.com/devicelab-dev/iossim/pkg/flow"
	"github.com/devicelab-dev/iossim/pkg/gesture"
	"github.com/devicelab-dev/iossim/pkg/idb"
	"github.com/devicelab-dev/iossim/pkg/jsengine"
	"github.com/devicelab-dev/iossim/pkg/logger"
	"github.com/devicelab-dev/iossim/pkg/shell"
	"github.com/devicelab-dev/iossim/pkg/ui"
)

// FlowRunner executes a single flow.
type FlowRunner struct {
	ctx        context.Context
	flow       *flow.Flow
	udid       string
	driver     *action.Driver
	config     RunnerConfig
	script     *ScriptEngine
	result     *core.FlowResult
	flowIdx    int // Current flow index (0-based)
	totalFlows int
}

// Run executes the flow and returns the result. Steps run in order; the
// first failed step that is not optional fails the flow and skips the rest.
func (fr *FlowRunner) Run() *core.FlowResult {
	fr.result = &core.FlowResult{
		Name:      fr.flow.DisplayName(),
		FilePath:  fr.flow.SourcePath,
		Tags:      fr.flow.Config.Tags,
		UDID:      fr.udid,
		StartTime: time.Now(),
	}

	fr.script = NewScriptEngine(fr.driver.Out)
	defer fr.script.Close()

	fr.script.ImportSystemEnv()
	if fr.flow.SourcePath != "" {
		fr.script.SetFlowDir(filepath.Dir(fr.flow.SourcePath))
	}
	if fr.flow.Config.AppID != "" {
		fr.script.SetVariable("APP_ID", fr.flow.Config.AppID)
	}
	fr.script.SetVariables(fr.flow.Config.Env)
	fr.script.BindSimulator(fr.ctx, fr.driver, jsengine.ScrollDefaults{
		Distance: fr.config.ScrollDistance,
		Speed:    fr.config.ScrollSpeed,
	})

	if fr.config.OnFlowStart != nil {
		fr.config.OnFlowStart(fr.flowIdx, fr.totalFlows, fr.result.Name, fr.udid)
	}
	logger.Info("flow %q: %d step(s) on %s", fr.result.Name, len(fr.flow.Steps), fr.udid)

	for i, step := range fr.flow.Steps {
		if fr.ctx.Err() != nil {
			fr.skipRemaining(i, "execution cancelled")
			fr.result.Error = "execution cancelled"
			break
		}

		res, err := fr.executeStep(i, step, 0)
		if res.Status == core.StatusFailed {
			fr.skipRemaining(i+1, "previous step failed")
			fr.result.Error = err.Error()
			break
		}
	}

	fr.result.Duration = time.Since(fr.result.StartTime)
	fr.result.ComputeSummary()
	fr.result.Status = fr.result.AggregateStatus()
	if fr.result.Error != "" && fr.result.Status == core.StatusPassed {
		// cancelled before any failure
		fr.result.Status = core.StatusSkipped
	}

	logger.Info("flow %q: %s in %s", fr.result.Name, fr.result.Status, fr.result.Duration)
	if fr.config.OnFlowEnd != nil {
		fr.config.OnFlowEnd(fr.result)
	}
	return fr.result
}

// skipRemaining records top-level steps from index start as skipped.
func (fr *FlowRunner) skipRemaining(start int, reason string) {
	for j := start; j < len(fr.flow.Steps); j++ {
		step := fr.flow.Steps[j]
		fr.result.Steps = append(fr.result.Steps, core.StepResult{
			Index:       j,
			Command:     string(step.Type()),
			Description: describe(step),
			Status:      core.StatusSkipped,
			Message:     reason,
		})
	}
}

// executeStep runs one step and records its result. The returned error is
// the step's failure, nil when it passed or was optional.
func (fr *FlowRunner) executeStep(idx int, step flow.Step, depth int) (core.StepResult, error) {
	start := time.Now()

	// Expand a copy so steps inside repeat see fresh variable values each time
	step = copyStep(step)
	fr.script.ExpandStep(step)

	desc := describe(step)
	if fr.config.OnStepStart != nil {
		fr.config.OnStepStart(depth, desc)
	}

	msg, err := fr.dispatch(step, depth)

	res := core.StepResult{
		Index:       idx,
		Command:     string(step.Type()),
		Description: desc,
		Depth:       depth,
		Status:      core.StatusPassed,
		StartTime:   start,
		Duration:    time.Since(start),
		Message:     msg,
	}
	if err != nil {
		res.Error = err.Error()
		res.Category = errorCategory(err)
		res.Status = core.StatusFailed
		if step.IsOptional() {
			res.Status = core.StatusWarned
			logger.Warn("optional step %q failed: %v", desc, err)
			err = nil
		} else {
			logger.Error("step %q failed: %v", desc, err)
		}
	}

	fr.result.Steps = append(fr.result.Steps, res)
	if fr.config.OnStepComplete != nil {
		fr.config.OnStepComplete(res)
	}
	return res, err
}

// dispatch routes a step to the driver or the script engine.
func (fr *FlowRunner) dispatch(step flow.Step, depth int) (string, error) {
	ctx, d := fr.ctx, fr.driver

	switch s := step.(type) {
	// JS/Scripting steps - handled by ScriptEngine
	case *flow.DefineVariablesStep:
		return fr.script.ExecuteDefineVariables(s)
	case *flow.RunScriptStep:
		return fr.script.ExecuteRunScript(s)
	case *flow.EvalScriptStep:
		return fr.script.ExecuteEvalScript(s)
	case *flow.AssertTrueStep:
		return fr.script.ExecuteAssertTrue(s)

	// Flow control
	case *flow.RepeatStep:
		return fr.executeRepeat(s, depth)

	// UI actions
	case *flow.TapOnStep:
		if s.Point != "" {
			return fr.tapPoint(s.Point, s.Duration)
		}
		if s.Duration > 0 {
			elem, _, err := d.Locate(ctx, s.Text)
			if err != nil {
				return "", err
			}
			center := elem.Center().Whole()
			return fmt.Sprintf("Long-pressed '%s' at %s", elem.Text(), center), d.Tap(ctx, center, s.Duration)
		}
		elem, err := d.TapElement(ctx, s.Text)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Tapped '%s'", elem.Text()), nil

	case *flow.TapOnPointStep:
		return fr.tapPoint(s.Point, s.Duration)

	case *flow.SwipeStep:
		from, err := flow.ParsePoint(s.Start)
		if err != nil {
			return "", core.ErrInvalidFlow.WithCause(err)
		}
		to, err := flow.ParsePoint(s.End)
		if err != nil {
			return "", core.ErrInvalidFlow.WithCause(err)
		}
		opts := idb.SwipeOptions{Duration: s.Duration, Delta: s.Delta}
		return fmt.Sprintf("Swiped %s → %s", from, to), d.Swipe(ctx, gesture.Swipe{Start: from, End: to}, opts)

	case *flow.ScrollStep:
		distance, speed := s.Distance, s.Speed
		if distance <= 0 {
			distance = fr.config.ScrollDistance
		}
		if speed <= 0 {
			speed = fr.config.ScrollSpeed
		}
		sw, err := d.Scroll(ctx, gesture.Direction(s.Direction), distance, speed)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Scrolled %s: %s → %s", s.Direction, sw.Start, sw.End), nil

	case *flow.InputTextStep:
		return fmt.Sprintf("Typed %q", s.Text), d.Text(ctx, s.Text)

	case *flow.PressKeyStep:
		return "Pressed " + s.Key, d.Key(ctx, s.Key)

	case *flow.PressButtonStep:
		return "Pressed " + s.Button, d.Button(ctx, s.Button)

	case *flow.AssertVisibleStep:
		elem, _, err := d.Locate(ctx, s.Text)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Visible: [%s] '%s'", elem.DisplayRole(), elem.Text()), nil

	case *flow.AssertNotVisibleStep:
		elem, _, err := d.Locate(ctx, s.Text)
		switch {
		case errors.Is(err, core.ErrElementNotFound):
			return fmt.Sprintf("Not visible: '%s'", s.Text), nil
		case err != nil:
			return "", err
		}
		return "", core.ErrAssertionFailed.WithMessage(
			fmt.Sprintf("'%s' is visible as [%s] '%s'", s.Text, elem.DisplayRole(), elem.Text()))

	// App lifecycle steps - inject flow's appId if not specified
	case *flow.LaunchAppStep:
		appID, err := fr.appID(s.AppID, "launchApp")
		if err != nil {
			return "", err
		}
		if _, err := d.Launch(ctx, appID); err != nil {
			return "", err
		}
		return "Launched " + appID, nil

	case *flow.TerminateAppStep:
		appID, err := fr.appID(s.AppID, "terminateApp")
		if err != nil {
			return "", err
		}
		return "Terminated " + appID, d.Terminate(ctx, appID)

	case *flow.OpenLinkStep:
		return "Opened " + s.Link, d.OpenURL(ctx, s.Link)

	case *flow.TakeScreenshotStep:
		path := screenshotPath(s.Path)
		return "Saved " + path, d.Screenshot(ctx, path)

	case *flow.WaitForAnimationToEndStep:
		d.Sleep(action.SettleDelay)
		return fmt.Sprintf("Waited %s", action.SettleDelay), nil
	}

	return "", core.ErrInvalidFlow.WithMessage(fmt.Sprintf("unsupported step type: %s", step.Type()))
}

func (fr *FlowRunner) tapPoint(point string, duration float64) (string, error) {
	p, err := flow.ParsePoint(point)
	if err != nil {
		return "", core.ErrInvalidFlow.WithCause(err)
	}
	return "Tapped " + p.String(), fr.driver.Tap(fr.ctx, p, duration)
}

// appID returns the step's app ID, falling back to the flow header appId.
func (fr *FlowRunner) appID(stepAppID, command string) (string, error) {
	if stepAppID != "" {
		return stepAppID, nil
	}
	if fr.flow.Config.AppID != "" {
		return fr.flow.Config.AppID, nil
	}
	return "", core.ErrInvalidFlow.WithMessage(command + " needs an appId (in the step or the flow header)")
}

// maxWhileIterations bounds a repeat that has a while condition but no times.
const maxWhileIterations = 1000

// executeRepeat runs the nested steps Times times, or while the While
// condition holds before each iteration, whichever ends first. A failed
// nested step that is not optional stops the loop.
func (fr *FlowRunner) executeRepeat(step *flow.RepeatStep, depth int) (string, error) {
	hasWhile := !step.While.IsZero()
	times := 1
	switch {
	case step.Times != "":
		times = fr.script.ParseInt(step.Times, 1)
	case hasWhile:
		times = maxWhileIterations
	}
	if times < 0 {
		return "", core.ErrInvalidFlow.WithMessage(fmt.Sprintf("repeat times must not be negative, got %d", times))
	}

	i := 0
	for ; i < times; i++ {
		if fr.ctx.Err() != nil {
			return "", fr.ctx.Err()
		}
		if hasWhile {
			ok, err := fr.checkCondition(step.While)
			if err != nil {
				return "", fmt.Errorf("repeat while %s: %w", step.While, err)
			}
			if !ok {
				break
			}
		}
		for j, nested := range step.Steps {
			if _, err := fr.executeStep(j, nested, depth+1); err != nil {
				return "", fmt.Errorf("repeat iteration %d: %w", i+1, err)
			}
		}
	}

	if hasWhile && step.Times == "" && i == times {
		logger.Warn("repeat while %s stopped after %d iterations", step.While, times)
		return fmt.Sprintf("Repeat stopped at the iteration limit (%d)", times), nil
	}
	return fmt.Sprintf("Repeat completed (%d iterations)", i), nil
}

// checkCondition reports whether every part of cond holds on the current
// screen and variables.
func (fr *FlowRunner) checkCondition(cond flow.Condition) (bool, error) {
	if cond.Visible != "" || cond.NotVisible != "" {
		snap, err := fr.driver.Snapshot(fr.ctx)
		if err != nil {
			return false, err
		}
		if cond.Visible != "" {
			if _, ok := ui.FindElement(snap.Elements, fr.script.ExpandVariables(cond.Visible)); !ok {
				return false, nil
			}
		}
		if cond.NotVisible != "" {
			if _, ok := ui.FindElement(snap.Elements, fr.script.ExpandVariables(cond.NotVisible)); ok {
				return false, nil
			}
		}
	}
	if cond.Script != "" {
		return fr.script.EvalCondition(cond.Script)
	}
	return true, nil
}

func describe(step flow.Step) string {
	if label := step.Label(); label != "" {
		return label
	}
	return step.Describe()
}

// screenshotPath adds the .png extension when the path has none.
func screenshotPath(path string) string {
	if path == "" {
		path = fmt.Sprintf("screenshot-%s", time.Now().Format("20060102-150405"))
	}
	if filepath.Ext(path) == "" {
		path += ".png"
	}
	return path
}

func errorCategory(err error) core.ErrorCategory {
	var execErr *core.ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Category
	}
	var exitErr *shell.ExitError
	if errors.As(err, &exitErr) {
		return core.ErrCategoryProcess
	}
	return core.ErrCategoryNone
}

// copyStep returns a shallow copy of the step so expansion leaves the
// parsed flow untouched.
func copyStep(step flow.Step) flow.Step {
	v := reflect.ValueOf(step)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return step
	}
	c := reflect.New(v.Elem().Type())
	c.Elem().Set(v.Elem())
	if s, ok := c.Interface().(flow.Step); ok {
		return s
	}
	return step
}
