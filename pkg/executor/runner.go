// Package executor runs parsed flows step by step against a simulator.
package executor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/iossim/pkg/action"
	"github.com/devicelab-dev/iossim/pkg/core"
	"github.com/devicelab-dev/iossim/pkg/flow"
	"github.com/devicelab-dev/iossim/pkg/logger"
)

// DriverFactory returns the action driver for a simulator UDID.
type DriverFactory func(udid string) *action.Driver

// RunnerConfig configures the flow runner.
type RunnerConfig struct {
	// UDID set explicitly (flag or env) wins over a flow's header udid.
	// DefaultUDID applies when neither is set.
	UDID        string
	DefaultUDID string

	StopOnFail bool // Skip remaining flows after a failed one

	// Defaults for scroll steps and sim.scroll
	ScrollDistance float64
	ScrollSpeed    float64

	// Live progress callbacks
	OnFlowStart    func(flowIdx, totalFlows int, name, udid string)
	OnStepStart    func(depth int, desc string)
	OnStepComplete func(result core.StepResult)
	OnFlowEnd      func(result *core.FlowResult)
}

// Runner orchestrates flow execution.
type Runner struct {
	config    RunnerConfig
	newDriver DriverFactory
}

// New creates a new Runner.
func New(newDriver DriverFactory, cfg RunnerConfig) *Runner {
	return &Runner{
		config:    cfg,
		newDriver: newDriver,
	}
}

// Run executes flows in order and aggregates their results.
func (r *Runner) Run(ctx context.Context, flows []*flow.Flow) *core.SuiteResult {
	suite := &core.SuiteResult{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
	}
	logger.Info("run %s: %d flow(s)", suite.RunID, len(flows))

	stop := false
	for i, f := range flows {
		if stop || ctx.Err() != nil {
			suite.Flows = append(suite.Flows, core.FlowResult{
				Name:     f.DisplayName(),
				FilePath: f.SourcePath,
				Tags:     f.Config.Tags,
				Status:   core.StatusSkipped,
				Error:    "run stopped",
			})
			continue
		}

		result := r.executeFlow(ctx, f, i, len(flows))
		suite.Flows = append(suite.Flows, *result)

		if r.config.StopOnFail && result.Status == core.StatusFailed {
			stop = true
		}
	}

	suite.Duration = time.Since(suite.StartTime)
	suite.ComputeSummary()
	logger.Info("run %s: %d passed, %d failed, %d skipped",
		suite.RunID, suite.PassedFlows, suite.FailedFlows, suite.SkippedFlows)
	return suite
}

// UDIDFor returns the simulator a flow runs against.
func (r *Runner) UDIDFor(f *flow.Flow) string {
	switch {
	case r.config.UDID != "":
		return r.config.UDID
	case f.Config.UDID != "":
		return f.Config.UDID
	default:
		return r.config.DefaultUDID
	}
}

// executeFlow runs a single flow.
func (r *Runner) executeFlow(ctx context.Context, f *flow.Flow, flowIdx, totalFlows int) *core.FlowResult {
	udid := r.UDIDFor(f)
	fr := &FlowRunner{
		ctx:        ctx,
		flow:       f,
		udid:       udid,
		driver:     r.newDriver(udid),
		config:     r.config,
		flowIdx:    flowIdx,
		totalFlows: totalFlows,
	}
	return fr.Run()
}
