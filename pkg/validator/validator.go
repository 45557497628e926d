// Package validator checks flow files before execution.
// It parses every file upfront, applies tag filters, and verifies that
// script files referenced by runScript steps exist.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/iossim/pkg/flow"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Flows are the parsed flows that passed the tag filters, in execution order.
	Flows []*flow.Flow
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates flow files.
type Validator struct {
	includeTags []string
	excludeTags []string
	seen        map[string]bool
}

// New creates a new Validator.
func New(includeTags, excludeTags []string) *Validator {
	return &Validator{
		includeTags: includeTags,
		excludeTags: excludeTags,
		seen:        make(map[string]bool),
	}
}

// Validate validates a file or directory. A file given twice, directly or
// through a directory, is only run once.
func (v *Validator) Validate(path string) *Result {
	result := &Result{}

	info, err := os.Stat(path)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    path,
			Message: fmt.Sprintf("cannot access: %v", err),
		})
		return result
	}

	var files []string
	if info.IsDir() {
		files, err = collectFlowFiles(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("failed to scan directory: %v", err),
			})
			return result
		}
	} else {
		files = []string{path}
	}

	for _, file := range files {
		v.validateFile(file, result)
	}
	return result
}

// collectFlowFiles finds all .yaml/.yml files in a directory, in lexical order.
func collectFlowFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// validateFile parses one flow and checks its steps.
func (v *Validator) validateFile(filePath string, result *Result) {
	key := filePath
	if abs, err := filepath.Abs(filePath); err == nil {
		key = abs
	}
	if v.seen[key] {
		return
	}
	v.seen[key] = true

	f, err := flow.ParseFile(filePath)
	if err != nil {
		// ParseError already carries the path and line.
		result.Errors = append(result.Errors, err)
		return
	}

	if !flow.ShouldIncludeFlow(f, v.includeTags, v.excludeTags) {
		return
	}

	if len(f.Steps) == 0 {
		result.Errors = append(result.Errors, &ValidationError{
			File:    filePath,
			Message: "flow has no steps",
		})
		return
	}

	before := len(result.Errors)
	v.validateSteps(f.Steps, filePath, result)
	if len(result.Errors) == before {
		result.Flows = append(result.Flows, f)
	}
}

// validateSteps checks script references and repeat bounds, descending
// into repeat blocks.
func (v *Validator) validateSteps(steps []flow.Step, flowFile string, result *Result) {
	flowDir := filepath.Dir(flowFile)

	for _, step := range steps {
		switch s := step.(type) {
		case *flow.RunScriptStep:
			path := s.ScriptPath()
			if path == "" {
				result.Errors = append(result.Errors, &ValidationError{
					File:    flowFile,
					Message: "runScript needs a script",
				})
				continue
			}
			if !strings.HasSuffix(path, ".js") || strings.Contains(path, "${") {
				continue
			}
			ref := resolveFilePath(flowDir, path)
			if _, err := os.Stat(ref); err != nil {
				result.Errors = append(result.Errors, &ValidationError{
					File:    flowFile,
					Message: fmt.Sprintf("runScript file not found: %s", ref),
				})
			}

		case *flow.RepeatStep:
			if len(s.Steps) == 0 {
				result.Errors = append(result.Errors, &ValidationError{
					File:    flowFile,
					Message: "repeat has no commands",
				})
				continue
			}
			if s.Times == "" && s.While.IsZero() {
				result.Errors = append(result.Errors, &ValidationError{
					File:    flowFile,
					Message: "repeat needs times or while",
				})
			}
			v.validateSteps(s.Steps, flowFile, result)
		}
	}
}

// resolveFilePath resolves a file path relative to a base directory.
func resolveFilePath(baseDir, filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}
	return filepath.Join(baseDir, filePath)
}
