// Package executor runs parsed flows against a device and records a report.
package executor

import (
	"context"
	"io"
	"time"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/flow"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/logger"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/report"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/uiautomator"
	"github.com/google/uuid"
)

// RunnerConfig configures the flow runner.
type RunnerConfig struct {
	OutputDir  string            // report directory; empty skips writing
	StopOnFail bool              // skip remaining flows after a failure
	Env        map[string]string // variables shared by every flow
	Address    string            // snippet address for the report
	Stdout     io.Writer         // console output of scripts

	// Live progress callbacks
	OnFlowStart    func(flowIdx, totalFlows int, name, file string)
	OnStepComplete func(idx int, desc string, passed bool, durationMs int64, err string)
	OnFlowEnd      func(name string, passed bool, durationMs int64)
}

// Runner orchestrates flow execution on one device.
type Runner struct {
	config RunnerConfig
	device *uiautomator.Device
}

// New creates a new Runner.
func New(device *uiautomator.Device, cfg RunnerConfig) *Runner {
	if cfg.Stdout == nil {
		cfg.Stdout = io.Discard
	}
	return &Runner{config: cfg, device: device}
}

// Run executes flows in order and returns the finished report. The report
// is also written to OutputDir when set.
func (r *Runner) Run(ctx context.Context, flows []*flow.Flow) (*report.Index, error) {
	idx := &report.Index{
		Version:   report.Version,
		RunID:     uuid.New().String(),
		Status:    report.StatusRunning,
		StartTime: time.Now(),
		Device: report.Device{
			ID:      r.device.Options().Device,
			Address: r.config.Address,
		},
	}
	logger.Info("run %s: %d flow(s)", idx.RunID, len(flows))

	stop := false
	for i, f := range flows {
		if stop || ctx.Err() != nil {
			idx.Flows = append(idx.Flows, skippedFlow(f))
			continue
		}
		fr := &FlowRunner{
			ctx:        ctx,
			flow:       f,
			device:     r.device,
			config:     r.config,
			runID:      idx.RunID,
			flowIdx:    i,
			totalFlows: len(flows),
		}
		result := fr.Run()
		idx.Flows = append(idx.Flows, result)
		if result.Status == report.StatusFailed && r.config.StopOnFail {
			stop = true
		}
	}

	idx.Finish()
	logger.Info("run %s %s: %d passed, %d failed, %d skipped",
		idx.RunID, idx.Status, idx.Summary.Passed, idx.Summary.Failed, idx.Summary.Skipped)

	if r.config.OutputDir != "" {
		if err := report.Write(r.config.OutputDir, idx); err != nil {
			return idx, err
		}
	}
	return idx, nil
}

func skippedFlow(f *flow.Flow) report.Flow {
	result := report.Flow{
		Name:       f.DisplayName(),
		SourceFile: f.SourcePath,
		Status:     report.StatusSkipped,
	}
	for i, step := range f.Steps {
		result.Commands = append(result.Commands, skippedCommand(i, step))
	}
	return result
}

func skippedCommand(i int, step flow.Step) report.Command {
	return report.Command{
		Index:       i,
		Type:        string(step.Type()),
		Description: step.Describe(),
		Status:      report.StatusSkipped,
	}
}
