package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/devicelab-dev/iossim/pkg/core"
	"github.com/devicelab-dev/iossim/pkg/flow"
	"github.com/devicelab-dev/iossim/pkg/jsengine"
)

var (
	// envVarPattern matches ALL_CAPS identifiers that look like env variables.
	envVarPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9_]{2,})\b`)
	dollarVar     = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// ScriptEngine holds the variables of one flow run and the JavaScript
// runtime they are mirrored into.
type ScriptEngine struct {
	js        *jsengine.Engine
	variables map[string]string
	flowDir   string
}

// NewScriptEngine creates a script engine whose console writes to out.
func NewScriptEngine(out io.Writer) *ScriptEngine {
	return &ScriptEngine{
		js:        jsengine.New(jsengine.WithConsole(out)),
		variables: make(map[string]string),
	}
}

// Close interrupts any script still running.
func (se *ScriptEngine) Close() {
	if se.js != nil {
		se.js.Close()
	}
}

// BindSimulator exposes the driver to scripts as the sim object.
func (se *ScriptEngine) BindSimulator(ctx context.Context, sim jsengine.Simulator, scroll jsengine.ScrollDefaults) {
	se.js.BindSimulator(ctx, sim, scroll)
}

// SetFlowDir sets the directory relative script paths resolve against.
func (se *ScriptEngine) SetFlowDir(dir string) {
	se.flowDir = dir
}

func (se *ScriptEngine) SetVariable(name, value string) {
	se.variables[name] = value
	se.js.SetVariable(name, value)
}

func (se *ScriptEngine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		se.SetVariable(k, v)
	}
}

// ImportSystemEnv copies ALL_CAPS process environment variables in.
func (se *ScriptEngine) ImportSystemEnv() {
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if ok && envVarPattern.MatchString(name) {
			se.SetVariable(name, value)
		}
	}
}

func (se *ScriptEngine) GetVariable(name string) string {
	return se.variables[name]
}

// GetOutput returns what scripts have assigned to output.
func (se *ScriptEngine) GetOutput() map[string]interface{} {
	return se.js.Output()
}

// SyncOutputToVariables makes each output property a flow variable.
func (se *ScriptEngine) SyncOutputToVariables() {
	for k, v := range se.js.Output() {
		se.SetVariable(k, fmt.Sprint(v))
	}
}

// ExpandVariables evaluates ${expr} in text, then substitutes $NAME for
// known variables. Unknown names are left alone.
func (se *ScriptEngine) ExpandVariables(text string) string {
	return se.expandDollarVars(se.js.Expand(text))
}

func (se *ScriptEngine) expandDollarVars(text string) string {
	return dollarVar.ReplaceAllStringFunc(text, func(m string) string {
		if v, ok := se.variables[m[1:]]; ok {
			return v
		}
		return m
	})
}

// RunScript executes a JavaScript program with extra env variables.
func (se *ScriptEngine) RunScript(name, script string, env map[string]string) error {
	for k, v := range env {
		se.SetVariable(k, v)
	}
	se.js.Declare(envVarPattern.FindAllString(script, -1)...)

	if err := se.js.RunScript(name, script); err != nil {
		return core.ErrScriptFailed.WithMessage("script " + name + " failed").WithCause(err)
	}

	se.SyncOutputToVariables()
	return nil
}

// EvalCondition evaluates a condition, with or without a ${} wrapper.
func (se *ScriptEngine) EvalCondition(script string) (bool, error) {
	script = se.expandDollarVars(extractJS(script))
	se.js.Declare(envVarPattern.FindAllString(script, -1)...)

	ok, err := se.js.Truthy(script)
	if err != nil {
		return false, core.ErrScriptFailed.WithCause(err)
	}
	return ok, nil
}

// ResolvePath resolves a relative path against the flow directory.
func (se *ScriptEngine) ResolvePath(path string) string {
	if filepath.IsAbs(path) || se.flowDir == "" {
		return path
	}
	return filepath.Join(se.flowDir, path)
}

// ============================================
// Step Execution Helpers
// ============================================

// ExecuteDefineVariables handles the defineVariables step.
func (se *ScriptEngine) ExecuteDefineVariables(step *flow.DefineVariablesStep) (string, error) {
	for k, v := range step.Env {
		se.SetVariable(k, se.ExpandVariables(v))
	}
	return fmt.Sprintf("Defined %d variable(s)", len(step.Env)), nil
}

// ExecuteRunScript handles the runScript step. A value ending in .js is read
// as a file relative to the flow; anything else runs as inline JavaScript.
func (se *ScriptEngine) ExecuteRunScript(step *flow.RunScriptStep) (string, error) {
	script := step.ScriptPath()
	name := "inline"

	if strings.HasSuffix(script, ".js") {
		filePath := se.ResolvePath(script)
		content, err := os.ReadFile(filePath) //#nosec G304 -- script path comes from the flow file
		if err != nil {
			return "", core.ErrScriptFailed.WithMessage("cannot read script file " + filePath).WithCause(err)
		}
		name = filepath.Base(filePath)
		script = string(content)
	} else {
		script = se.ExpandVariables(script)
	}

	if err := se.RunScript(name, script, step.Env); err != nil {
		return "", err
	}
	return "Script executed successfully", nil
}

// ExecuteEvalScript handles the evalScript step.
func (se *ScriptEngine) ExecuteEvalScript(step *flow.EvalScriptStep) (string, error) {
	if err := se.RunScript("eval", extractJS(step.Script), nil); err != nil {
		return "", err
	}
	return "Eval completed", nil
}

// ExecuteAssertTrue handles the assertTrue step.
func (se *ScriptEngine) ExecuteAssertTrue(step *flow.AssertTrueStep) (string, error) {
	ok, err := se.EvalCondition(step.Script)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", core.ErrAssertionFailed.WithMessage("assertTrue failed: " + step.Script)
	}
	return "Assertion passed", nil
}

// extractJS extracts JavaScript from a ${...} wrapper if present.
func extractJS(script string) string {
	script = strings.TrimSpace(script)
	if strings.HasPrefix(script, "${") && strings.HasSuffix(script, "}") {
		return script[2 : len(script)-1]
	}
	return script
}

// ParseInt parses an integer from string, supporting variable expansion.
func (se *ScriptEngine) ParseInt(s string, defaultVal int) int {
	s = se.ExpandVariables(s)
	s = strings.ReplaceAll(s, "_", "") // Support 10_000 format
	if val, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return val
	}
	return defaultVal
}

// ExpandStep expands variables in the string fields of a step.
// Note: This modifies the step in place; the runner expands a copy.
func (se *ScriptEngine) ExpandStep(step flow.Step) {
	switch s := step.(type) {
	case *flow.TapOnStep:
		s.Text = se.ExpandVariables(s.Text)
		s.Point = se.ExpandVariables(s.Point)
	case *flow.TapOnPointStep:
		s.Point = se.ExpandVariables(s.Point)
	case *flow.SwipeStep:
		s.Start = se.ExpandVariables(s.Start)
		s.End = se.ExpandVariables(s.End)
	case *flow.InputTextStep:
		s.Text = se.ExpandVariables(s.Text)
	case *flow.PressKeyStep:
		s.Key = se.ExpandVariables(s.Key)
	case *flow.PressButtonStep:
		s.Button = se.ExpandVariables(s.Button)
	case *flow.AssertVisibleStep:
		s.Text = se.ExpandVariables(s.Text)
	case *flow.AssertNotVisibleStep:
		s.Text = se.ExpandVariables(s.Text)
	case *flow.LaunchAppStep:
		s.AppID = se.ExpandVariables(s.AppID)
	case *flow.TerminateAppStep:
		s.AppID = se.ExpandVariables(s.AppID)
	case *flow.OpenLinkStep:
		s.Link = se.ExpandVariables(s.Link)
	case *flow.TakeScreenshotStep:
		s.Path = se.ExpandVariables(s.Path)
	}
}
