package core

import (
	"time"
)

// StepResult is the outcome of one flow step.
type StepResult struct {
	Index       int    `json:"index"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Depth       int    `json:"depth,omitempty"` // repeat nesting

	Status   StepStatus    `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`

	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// FlowResult is the outcome of one flow file.
type FlowResult struct {
	Name     string   `json:"name"`
	FilePath string   `json:"filePath"`
	Tags     []string `json:"tags,omitempty"`
	UDID     string   `json:"udid,omitempty"`

	Status StepStatus `json:"status"`

	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Steps []StepResult `json:"steps"`

	TotalSteps   int `json:"totalSteps"`
	PassedSteps  int `json:"passedSteps"`
	FailedSteps  int `json:"failedSteps"`
	SkippedSteps int `json:"skippedSteps"`
	WarnedSteps  int `json:"warnedSteps"`

	Error string `json:"error,omitempty"`
}

// ComputeSummary recounts the step totals.
func (f *FlowResult) ComputeSummary() {
	counts := make(map[StepStatus]int)
	for _, step := range f.Steps {
		counts[step.Status]++
	}
	f.TotalSteps = len(f.Steps)
	f.PassedSteps = counts[StatusPassed]
	f.FailedSteps = counts[StatusFailed]
	f.SkippedSteps = counts[StatusSkipped]
	f.WarnedSteps = counts[StatusWarned]
}

// AggregateStatus derives the flow status from the top-level steps: failed
// if any failed, warned if any optional step failed, otherwise passed.
// Steps nested inside a repeat count only through their parent.
func (f *FlowResult) AggregateStatus() StepStatus {
	warned := false
	for _, step := range f.Steps {
		if step.Depth > 0 {
			continue
		}
		switch step.Status {
		case StatusFailed:
			return StatusFailed
		case StatusWarned:
			warned = true
		}
	}
	if warned {
		return StatusWarned
	}
	return StatusPassed
}

// SuiteResult is the outcome of one run command.
type SuiteResult struct {
	RunID string `json:"runId"`

	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Flows []FlowResult `json:"flows"`

	TotalFlows   int `json:"totalFlows"`
	PassedFlows  int `json:"passedFlows"`
	FailedFlows  int `json:"failedFlows"`
	SkippedFlows int `json:"skippedFlows"`
}

// ComputeSummary recounts the flow totals. Warned flows count as passed.
func (s *SuiteResult) ComputeSummary() {
	s.TotalFlows = len(s.Flows)
	s.PassedFlows, s.FailedFlows, s.SkippedFlows = 0, 0, 0
	for _, f := range s.Flows {
		switch {
		case f.Status.IsSuccess():
			s.PassedFlows++
		case f.Status == StatusFailed:
			s.FailedFlows++
		case f.Status == StatusSkipped:
			s.SkippedFlows++
		}
	}
}

// Success reports whether there was at least one flow and every flow passed.
func (s *SuiteResult) Success() bool {
	for _, f := range s.Flows {
		if !f.Status.IsSuccess() {
			return false
		}
	}
	return len(s.Flows) > 0
}
