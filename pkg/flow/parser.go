package flow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/iossim/pkg/gesture"
	"github.com/devicelab-dev/iossim/pkg/logger"
)

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseFile parses a single YAML flow file.
func ParseFile(path string) (*Flow, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided flow file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses YAML flow content. With a "---" line the first document is
// the header and the second the steps; otherwise the whole file is steps.
func Parse(data []byte, sourcePath string) (*Flow, error) {
	parts := splitYAMLDocuments(string(data))

	flow := &Flow{
		SourcePath: sourcePath,
	}

	if len(parts) == 0 {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    1,
			Message: "empty flow file",
		}
	}

	if len(parts) == 1 {
		if err := parseSteps(parts[0], 0, flow); err != nil {
			return nil, err
		}
	} else {
		if err := parseConfig(parts[0].text, flow); err != nil {
			return nil, err
		}
		if err := parseSteps(parts[1], parts[1].line-1, flow); err != nil {
			return nil, err
		}
	}

	return flow, nil
}

// document is one "---"-separated section and the file line it starts on.
type document struct {
	text string
	line int
}

func splitYAMLDocuments(content string) []document {
	var parts []document
	var current strings.Builder
	start := 1
	inMultiline := false
	multilineIndent := 0

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if !inMultiline {
			if strings.HasSuffix(trimmed, "|") || strings.HasSuffix(trimmed, ">") ||
				strings.HasSuffix(trimmed, "|-") || strings.HasSuffix(trimmed, ">-") {
				inMultiline = true
				if i+1 < len(lines) {
					next := lines[i+1]
					multilineIndent = len(next) - len(strings.TrimLeft(next, " \t"))
				}
			}
		} else {
			indent := len(line) - len(strings.TrimLeft(line, " \t"))
			if trimmed != "" && indent < multilineIndent {
				inMultiline = false
			}
		}

		if !inMultiline && trimmed == "---" && strings.TrimLeft(line, " \t") == "---" {
			if current.Len() > 0 {
				parts = append(parts, document{text: current.String(), line: start})
				current.Reset()
			}
			start = i + 2
		} else {
			current.WriteString(line)
			current.WriteString("\n")
		}
	}

	if current.Len() > 0 {
		s := strings.TrimSpace(current.String())
		if s != "" {
			parts = append(parts, document{text: current.String(), line: start})
		}
	}

	return parts
}

func parseConfig(content string, flow *Flow) error {
	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return &ParseError{
			Path:    flow.SourcePath,
			Message: fmt.Sprintf("invalid config: %v", err),
		}
	}
	flow.Config = config
	return nil
}

// parseSteps decodes the step list. offset is added to node line numbers so
// errors point at the line in the whole file.
func parseSteps(doc document, offset int, flow *Flow) error {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(doc.text), &root); err != nil {
		return &ParseError{
			Path:    flow.SourcePath,
			Message: fmt.Sprintf("invalid steps: %v", err),
		}
	}
	shiftLines(&root, offset)

	if len(root.Content) == 0 {
		return nil
	}
	list := root.Content[0]
	if list.Kind != yaml.SequenceNode {
		return &ParseError{
			Path:    flow.SourcePath,
			Line:    list.Line,
			Message: "steps must be a list",
		}
	}

	for _, node := range list.Content {
		step, err := parseStep(node, flow.SourcePath)
		if err != nil {
			return err
		}
		flow.Steps = append(flow.Steps, step)
	}

	return nil
}

func shiftLines(node *yaml.Node, offset int) {
	if offset == 0 {
		return
	}
	node.Line += offset
	for _, child := range node.Content {
		shiftLines(child, offset)
	}
}

func parseStep(node *yaml.Node, sourcePath string) (Step, error) {
	// Handle scalar nodes like "- waitForAnimationToEnd" (no colon, no params)
	if node.Kind == yaml.ScalarNode {
		stepType := node.Value
		if !isStepType(stepType) {
			return nil, &ParseError{
				Path:    sourcePath,
				Line:    node.Line,
				Message: fmt.Sprintf("unknown step type: %s", stepType),
			}
		}
		// Create empty value node for steps with no parameters
		emptyNode := &yaml.Node{Kind: yaml.MappingNode, Line: node.Line}
		return decodeStep(StepType(stepType), emptyNode, sourcePath)
	}

	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: "step must be a mapping or command name",
		}
	}

	stepType, valueNode := extractStepType(node)
	if stepType == "" || valueNode == nil {
		msg := "unknown step type"
		if len(node.Content) > 0 {
			msg = fmt.Sprintf("unknown step type: %s", node.Content[0].Value)
		}
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: msg,
		}
	}

	return decodeStep(StepType(stepType), valueNode, sourcePath)
}

func extractStepType(node *yaml.Node) (string, *yaml.Node) {
	for i := 0; i < len(node.Content)-1; i += 2 {
		key := node.Content[i].Value
		if isStepType(key) {
			return key, node.Content[i+1]
		}
	}
	return "", nil
}

func isStepType(key string) bool {
	switch StepType(key) {
	case StepTapOn, StepTapOnPoint, StepSwipe, StepScroll,
		StepInputText, StepPressKey, StepPressButton,
		StepAssertVisible, StepAssertNotVisible, StepAssertTrue,
		StepLaunchApp, StepTerminateApp, StepOpenLink,
		StepRepeat, StepRunScript, StepEvalScript, StepDefineVariables,
		StepTakeScreenshot, StepWaitForAnimationToEnd:
		return true
	}
	return false
}

// decodeInto sets *scalar from a scalar node, or decodes a mapping into v.
func decodeInto(node *yaml.Node, scalar *string, v interface{}, sourcePath string) error {
	if node.Kind == yaml.ScalarNode && scalar != nil {
		*scalar = node.Value
		return nil
	}
	if err := node.Decode(v); err != nil {
		return wrapParseError(sourcePath, node.Line, err)
	}
	return nil
}

//nolint:gocyclo
func decodeStep(stepType StepType, valueNode *yaml.Node, sourcePath string) (Step, error) {
	line := valueNode.Line
	base := BaseStep{StepType: stepType}

	switch stepType {
	case StepTapOn:
		s := TapOnStep{}
		if err := decodeInto(valueNode, &s.Text, &s, sourcePath); err != nil {
			return nil, err
		}
		if s.Text == "" && s.Point == "" {
			return nil, &ParseError{Path: sourcePath, Line: line, Message: "tapOn needs a label or point"}
		}
		if s.Point != "" {
			if _, err := ParsePoint(s.Point); err != nil {
				return nil, wrapParseError(sourcePath, line, err)
			}
		}
		s.StepType = stepType
		return &s, nil

	case StepTapOnPoint:
		s := TapOnPointStep{}
		if err := decodeInto(valueNode, &s.Point, &s, sourcePath); err != nil {
			return nil, err
		}
		if _, err := ParsePoint(s.Point); err != nil {
			return nil, wrapParseError(sourcePath, line, err)
		}
		s.StepType = stepType
		return &s, nil

	case StepSwipe:
		s := SwipeStep{}
		if err := decodeInto(valueNode, nil, &s, sourcePath); err != nil {
			return nil, err
		}
		for _, p := range []string{s.Start, s.End} {
			if _, err := ParsePoint(p); err != nil {
				return nil, wrapParseError(sourcePath, line, err)
			}
		}
		s.StepType = stepType
		return &s, nil

	case StepScroll:
		s := ScrollStep{}
		if err := decodeInto(valueNode, &s.Direction, &s, sourcePath); err != nil {
			return nil, err
		}
		dir, err := gesture.ParseDirection(s.Direction)
		if err != nil {
			return nil, wrapParseError(sourcePath, line, err)
		}
		s.Direction = string(dir)
		s.StepType = stepType
		return &s, nil

	case StepInputText:
		s := InputTextStep{}
		if err := decodeInto(valueNode, &s.Text, &s, sourcePath); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepPressKey:
		s := PressKeyStep{}
		if err := decodeInto(valueNode, &s.Key, &s, sourcePath); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepPressButton:
		s := PressButtonStep{}
		if err := decodeInto(valueNode, &s.Button, &s, sourcePath); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepAssertVisible:
		s := AssertVisibleStep{}
		if err := decodeInto(valueNode, &s.Text, &s, sourcePath); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepAssertNotVisible:
		s := AssertNotVisibleStep{}
		if err := decodeInto(valueNode, &s.Text, &s, sourcePath); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepAssertTrue:
		s := AssertTrueStep{}
		if err := decodeInto(valueNode, &s.Script, &s, sourcePath); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepLaunchApp:
		s := LaunchAppStep{}
		if err := decodeInto(valueNode, &s.AppID, &s, sourcePath); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepTerminateApp:
		s := TerminateAppStep{}
		if err := decodeInto(valueNode, &s.AppID, &s, sourcePath); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepOpenLink:
		s := OpenLinkStep{}
		if err := decodeInto(valueNode, &s.Link, &s, sourcePath); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepRepeat:
		return parseRepeatStep(valueNode, sourcePath)

	case StepRunScript:
		s := RunScriptStep{}
		if err := decodeInto(valueNode, &s.Script, &s, sourcePath); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepEvalScript:
		s := EvalScriptStep{}
		if err := decodeInto(valueNode, &s.Script, &s, sourcePath); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepDefineVariables:
		s := DefineVariablesStep{BaseStep: base, Env: make(map[string]string)}
		if valueNode.Kind == yaml.MappingNode {
			for i := 0; i < len(valueNode.Content)-1; i += 2 {
				s.Env[valueNode.Content[i].Value] = valueNode.Content[i+1].Value
			}
		}
		return &s, nil

	case StepTakeScreenshot:
		s := TakeScreenshotStep{}
		if err := decodeInto(valueNode, &s.Path, &s, sourcePath); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil

	case StepWaitForAnimationToEnd:
		s := WaitForAnimationToEndStep{}
		if err := decodeInto(valueNode, nil, &s, sourcePath); err != nil {
			return nil, err
		}
		s.StepType = stepType
		return &s, nil
	}

	return nil, &ParseError{Path: sourcePath, Line: line, Message: fmt.Sprintf("unknown step type: %s", stepType)}
}

// parseRepeatStep handles repeat with nested commands.
func parseRepeatStep(valueNode *yaml.Node, sourcePath string) (Step, error) {
	var raw struct {
		Times    string      `yaml:"times"` // String for variable support
		While    Condition   `yaml:"while"`
		Commands []yaml.Node `yaml:"commands"`
		Optional bool        `yaml:"optional"`
		Label    string      `yaml:"label"`
	}

	if err := valueNode.Decode(&raw); err != nil {
		return nil, wrapParseError(sourcePath, valueNode.Line, err)
	}

	s := &RepeatStep{
		BaseStep: BaseStep{
			StepType:  StepRepeat,
			Optional:  raw.Optional,
			StepLabel: raw.Label,
		},
		Times: raw.Times,
		While: raw.While,
	}

	for i := range raw.Commands {
		step, err := parseStep(&raw.Commands[i], sourcePath)
		if err != nil {
			return nil, err
		}
		s.Steps = append(s.Steps, step)
	}

	return s, nil
}

func wrapParseError(path string, line int, err error) error {
	return &ParseError{
		Path:    path,
		Line:    line,
		Message: err.Error(),
	}
}

// ParseDirectory parses all YAML files in a directory. Files that fail to
// parse are logged and skipped.
func ParseDirectory(dir string, includeTags, excludeTags []string) ([]*Flow, error) {
	var flows []*Flow

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		flow, parseErr := ParseFile(path)
		if parseErr != nil {
			logger.Warn("skipping %s: %v", path, parseErr)
			return nil
		}

		if ShouldIncludeFlow(flow, includeTags, excludeTags) {
			flows = append(flows, flow)
		}
		return nil
	})

	return flows, err
}

// ShouldIncludeFlow checks if a flow matches tag filters.
func ShouldIncludeFlow(flow *Flow, includeTags, excludeTags []string) bool {
	if len(includeTags) > 0 {
		hasTag := false
		for _, tag := range flow.Config.Tags {
			for _, include := range includeTags {
				if tag == include {
					hasTag = true
					break
				}
			}
		}
		if !hasTag {
			return false
		}
	}

	for _, tag := range flow.Config.Tags {
		for _, exclude := range excludeTags {
			if tag == exclude {
				return false
			}
		}
	}

	return true
}
