package core

import (
	"testing"
)

func TestFlowResult_ComputeSummary(t *testing.T) {
	flow := &FlowResult{
		Name: "login",
		Steps: []StepResult{
			{Index: 0, Status: StatusPassed},
			{Index: 1, Status: StatusPassed},
			{Index: 2, Status: StatusFailed},
			{Index: 3, Status: StatusSkipped},
			{Index: 4, Status: StatusWarned},
		},
	}

	flow.ComputeSummary()

	if flow.TotalSteps != 5 {
		t.Errorf("TotalSteps = %d, want 5", flow.TotalSteps)
	}
	if flow.PassedSteps != 2 {
		t.Errorf("PassedSteps = %d, want 2", flow.PassedSteps)
	}
	if flow.FailedSteps != 1 {
		t.Errorf("FailedSteps = %d, want 1", flow.FailedSteps)
	}
	if flow.SkippedSteps != 1 {
		t.Errorf("SkippedSteps = %d, want 1", flow.SkippedSteps)
	}
	if flow.WarnedSteps != 1 {
		t.Errorf("WarnedSteps = %d, want 1", flow.WarnedSteps)
	}
}

func TestFlowResult_ComputeSummary_Empty(t *testing.T) {
	flow := &FlowResult{}
	flow.ComputeSummary()
	if flow.TotalSteps != 0 || flow.PassedSteps != 0 {
		t.Errorf("empty flow summary = %+v", flow)
	}
}

func TestFlowResult_AggregateStatus(t *testing.T) {
	tests := []struct {
		name  string
		steps []StepStatus
		want  StepStatus
	}{
		{"all passed", []StepStatus{StatusPassed, StatusPassed}, StatusPassed},
		{"with warned", []StepStatus{StatusPassed, StatusWarned}, StatusWarned},
		{"with failed", []StepStatus{StatusWarned, StatusFailed, StatusSkipped}, StatusFailed},
		{"empty", nil, StatusPassed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &FlowResult{}
			for i, s := range tt.steps {
				f.Steps = append(f.Steps, StepResult{Index: i, Status: s})
			}
			if got := f.AggregateStatus(); got != tt.want {
				t.Errorf("AggregateStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFlowResult_AggregateStatus_IgnoresNested(t *testing.T) {
	f := &FlowResult{Steps: []StepResult{
		{Index: 0, Depth: 1, Status: StatusFailed},
		{Index: 0, Status: StatusWarned}, // optional repeat around the failure
		{Index: 1, Status: StatusPassed},
	}}
	if got := f.AggregateStatus(); got != StatusWarned {
		t.Errorf("AggregateStatus() = %v, want warned", got)
	}
}

func TestSuiteResult_ComputeSummary(t *testing.T) {
	suite := &SuiteResult{
		Flows: []FlowResult{
			{Name: "a", Status: StatusPassed},
			{Name: "b", Status: StatusWarned},
			{Name: "c", Status: StatusFailed},
			{Name: "d", Status: StatusSkipped},
		},
	}

	suite.ComputeSummary()

	if suite.TotalFlows != 4 || suite.PassedFlows != 2 || suite.FailedFlows != 1 || suite.SkippedFlows != 1 {
		t.Errorf("summary = %+v", suite)
	}
}

func TestSuiteResult_Success(t *testing.T) {
	tests := []struct {
		name  string
		flows []FlowResult
		want  bool
	}{
		{"all passed", []FlowResult{{Status: StatusPassed}, {Status: StatusWarned}}, true},
		{"one failed", []FlowResult{{Status: StatusPassed}, {Status: StatusFailed}}, false},
		{"no flows", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &SuiteResult{Flows: tt.flows}
			if got := s.Success(); got != tt.want {
				t.Errorf("Success() = %v, want %v", got, tt.want)
			}
		})
	}
}
