package flow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/devicelab-dev/iossim/pkg/gesture"
	"gopkg.in/yaml.v3"
)

// StepType represents the type of step.
type StepType string

// Step type constants.
const (
	// Navigation & Interaction
	StepTapOn      StepType = "tapOn"
	StepTapOnPoint StepType = "tapOnPoint"
	StepSwipe      StepType = "swipe"
	StepScroll     StepType = "scroll"

	// Input
	StepInputText   StepType = "inputText"
	StepPressKey    StepType = "pressKey"
	StepPressButton StepType = "pressButton"

	// Assertions
	StepAssertVisible    StepType = "assertVisible"
	StepAssertNotVisible StepType = "assertNotVisible"
	StepAssertTrue       StepType = "assertTrue"

	// App Management
	StepLaunchApp    StepType = "launchApp"
	StepTerminateApp StepType = "terminateApp"
	StepOpenLink     StepType = "openLink"

	// Flow Control
	StepRepeat          StepType = "repeat"
	StepRunScript       StepType = "runScript"
	StepEvalScript      StepType = "evalScript"
	StepDefineVariables StepType = "defineVariables"

	// Other
	StepTakeScreenshot        StepType = "takeScreenshot"
	StepWaitForAnimationToEnd StepType = "waitForAnimationToEnd"
)

// Step is the interface for all flow steps.
type Step interface {
	Type() StepType
	IsOptional() bool
	Label() string
	Describe() string
}

// BaseStep contains common fields for all steps.
type BaseStep struct {
	StepType  StepType `yaml:"-"`
	Optional  bool     `yaml:"optional"`
	StepLabel string   `yaml:"label"`
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// IsOptional returns whether the step is optional.
func (b *BaseStep) IsOptional() bool { return b.Optional }

// Label returns the step label.
func (b *BaseStep) Label() string { return b.StepLabel }

// Describe returns a human-readable description.
func (b *BaseStep) Describe() string { return string(b.StepType) }

// ============================================
// Navigation & Interaction Steps
// ============================================

// TapOnStep taps an element by label, or a point when Point is set.
type TapOnStep struct {
	BaseStep `yaml:",inline"`
	Text     string  `yaml:"text"`
	Point    string  `yaml:"point"`    // "x,y"
	Duration float64 `yaml:"duration"` // seconds; long press when > 0
}

// TapOnPointStep taps on specific coordinates.
type TapOnPointStep struct {
	BaseStep `yaml:",inline"`
	Point    string  `yaml:"point"` // "x,y"
	Duration float64 `yaml:"duration"`
}

// SwipeStep drags a finger between two points.
type SwipeStep struct {
	BaseStep `yaml:",inline"`
	Start    string  `yaml:"start"`    // "x,y"
	End      string  `yaml:"end"`      // "x,y"
	Duration float64 `yaml:"duration"` // seconds
	Delta    int     `yaml:"delta"`    // points between touch events
}

// ScrollStep scrolls the screen in a direction.
type ScrollStep struct {
	BaseStep  `yaml:",inline"`
	Direction string  `yaml:"direction"` // up, down, left, right
	Distance  float64 `yaml:"distance"`  // points; 0 uses the configured default
	Speed     float64 `yaml:"speed"`     // swipe duration in seconds; 0 uses the default
}

// ============================================
// Input Steps
// ============================================

// InputTextStep types text into the focused element.
type InputTextStep struct {
	BaseStep `yaml:",inline"`
	Text     string `yaml:"text"`
}

// PressKeyStep presses a key by name or keycode.
type PressKeyStep struct {
	BaseStep `yaml:",inline"`
	Key      string `yaml:"key"`
}

// PressButtonStep presses a hardware button.
type PressButtonStep struct {
	BaseStep `yaml:",inline"`
	Button   string `yaml:"button"`
}

// ============================================
// Assertion Steps
// ============================================

// AssertVisibleStep asserts an element with the label is on screen.
type AssertVisibleStep struct {
	BaseStep `yaml:",inline"`
	Text     string `yaml:"text"`
}

// AssertNotVisibleStep asserts no element with the label is on screen.
type AssertNotVisibleStep struct {
	BaseStep `yaml:",inline"`
	Text     string `yaml:"text"`
}

// AssertTrueStep asserts a script condition is true.
type AssertTrueStep struct {
	BaseStep `yaml:",inline"`
	Script   string `yaml:"condition"`
}

// ============================================
// App Management Steps
// ============================================

// LaunchAppStep launches an app.
type LaunchAppStep struct {
	BaseStep `yaml:",inline"`
	AppID    string `yaml:"appId"`
}

// TerminateAppStep terminates an app.
type TerminateAppStep struct {
	BaseStep `yaml:",inline"`
	AppID    string `yaml:"appId"`
}

// OpenLinkStep opens a URL or deep link.
type OpenLinkStep struct {
	BaseStep `yaml:",inline"`
	Link     string `yaml:"link"`
}

// ============================================
// Flow Control Steps
// ============================================

// RepeatStep runs its steps Times times, or while While holds, or both,
// whichever ends first.
type RepeatStep struct {
	BaseStep `yaml:",inline"`
	Times    string    `yaml:"times"` // String for variable support
	While    Condition `yaml:"while"`
	Steps    []Step    `yaml:"-"`
}

// Condition is checked before each repeat iteration. Every part that is set
// must hold. In YAML it is either a JS expression or a mapping with
// visible, notVisible and scriptCondition.
type Condition struct {
	Visible    string `yaml:"visible"`
	NotVisible string `yaml:"notVisible"`
	Script     string `yaml:"scriptCondition"`
}

// IsZero reports whether no part of the condition is set.
func (c Condition) IsZero() bool {
	return c.Visible == "" && c.NotVisible == "" && c.Script == ""
}

func (c Condition) String() string {
	var parts []string
	if c.Visible != "" {
		parts = append(parts, "visible "+c.Visible)
	}
	if c.NotVisible != "" {
		parts = append(parts, "notVisible "+c.NotVisible)
	}
	if c.Script != "" {
		parts = append(parts, c.Script)
	}
	return strings.Join(parts, " and ")
}

// UnmarshalYAML accepts the scalar shorthand `while: "${n < 3}"`.
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		c.Script = node.Value
		return nil
	}
	type plain Condition
	return node.Decode((*plain)(c))
}

// RunScriptStep runs a script.
type RunScriptStep struct {
	BaseStep `yaml:",inline"`
	Script   string            `yaml:"script"` // Script content or filename (string form)
	File     string            `yaml:"file"`   // Script filename (map form)
	Env      map[string]string `yaml:"env"`
}

// ScriptPath returns the script path (either Script or File field).
func (s *RunScriptStep) ScriptPath() string {
	if s.File != "" {
		return s.File
	}
	return s.Script
}

// EvalScriptStep evaluates inline JavaScript.
type EvalScriptStep struct {
	BaseStep `yaml:",inline"`
	Script   string `yaml:"script"`
}

// DefineVariablesStep defines variables.
type DefineVariablesStep struct {
	BaseStep `yaml:",inline"`
	Env      map[string]string `yaml:"env"`
}

// ============================================
// Other Steps
// ============================================

// TakeScreenshotStep takes a screenshot.
type TakeScreenshotStep struct {
	BaseStep `yaml:",inline"`
	Path     string `yaml:"path"`
}

// WaitForAnimationToEndStep waits for the UI to settle.
type WaitForAnimationToEndStep struct {
	BaseStep `yaml:",inline"`
}

// ============================================
// Describe() implementations for detailed output
// ============================================

// Describe returns a human-readable description of the tap step.
func (s *TapOnStep) Describe() string {
	if s.Point != "" {
		return "tapOn: point " + s.Point
	}
	return fmt.Sprintf("tapOn: %q", s.Text)
}

// Describe returns a human-readable description of the tap-on-point step.
func (s *TapOnPointStep) Describe() string {
	return "tapOnPoint: " + s.Point
}

// Describe returns a human-readable description of the swipe step.
func (s *SwipeStep) Describe() string {
	return "swipe: " + s.Start + " → " + s.End
}

// Describe returns a human-readable description of the scroll step.
func (s *ScrollStep) Describe() string {
	return "scroll: " + s.Direction
}

// Describe returns a human-readable description of the input step.
func (s *InputTextStep) Describe() string {
	return fmt.Sprintf("inputText: %q", s.Text)
}

// Describe returns a human-readable description of the key step.
func (s *PressKeyStep) Describe() string {
	return "pressKey: " + s.Key
}

// Describe returns a human-readable description of the button step.
func (s *PressButtonStep) Describe() string {
	return "pressButton: " + s.Button
}

// Describe returns a human-readable description of the assert visible step.
func (s *AssertVisibleStep) Describe() string {
	return fmt.Sprintf("assertVisible: %q", s.Text)
}

// Describe returns a human-readable description of the assert not visible step.
func (s *AssertNotVisibleStep) Describe() string {
	return fmt.Sprintf("assertNotVisible: %q", s.Text)
}

// Describe returns a human-readable description of the launch step.
func (s *LaunchAppStep) Describe() string {
	if s.AppID == "" {
		return "launchApp"
	}
	return "launchApp: " + s.AppID
}

// Describe returns a human-readable description of the terminate step.
func (s *TerminateAppStep) Describe() string {
	if s.AppID == "" {
		return "terminateApp"
	}
	return "terminateApp: " + s.AppID
}

// Describe returns a human-readable description of the open link step.
func (s *OpenLinkStep) Describe() string {
	return "openLink: " + s.Link
}

// Describe returns a human-readable description of the repeat step.
func (s *RepeatStep) Describe() string {
	switch {
	case s.While.IsZero():
		return fmt.Sprintf("repeat: %s times (%d steps)", s.Times, len(s.Steps))
	case s.Times == "":
		return fmt.Sprintf("repeat while %s (%d steps)", s.While, len(s.Steps))
	default:
		return fmt.Sprintf("repeat: at most %s times while %s (%d steps)", s.Times, s.While, len(s.Steps))
	}
}

// Describe returns a human-readable description of the screenshot step.
func (s *TakeScreenshotStep) Describe() string {
	return "takeScreenshot: " + s.Path
}

// ParsePoint parses an "x,y" coordinate pair.
func ParsePoint(s string) (gesture.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return gesture.Point{}, fmt.Errorf("invalid point %q: want \"x,y\"", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return gesture.Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return gesture.Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	return gesture.Point{X: x, Y: y}, nil
}
