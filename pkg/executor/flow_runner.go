package executor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/core"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/flow"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/logger"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/report"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/uiautomator"
)

// FlowRunner executes a single flow.
type FlowRunner struct {
	ctx        context.Context
	flow       *flow.Flow
	device     *uiautomator.Device
	config     RunnerConfig
	script     *ScriptEngine
	runID      string
	flowIdx    int
	totalFlows int
}

// Run executes the flow and returns its report entry.
func (fr *FlowRunner) Run() report.Flow {
	flowStart := time.Now()
	name := fr.flow.DisplayName()
	result := report.Flow{Name: name, SourceFile: fr.flow.SourcePath, Status: report.StatusPassed}

	// A flow timeout replaces the device's default wait timeout.
	if ms := fr.flow.Config.Timeout; ms > 0 {
		opts := fr.device.Options()
		opts.WaitTimeout = time.Duration(ms) * time.Millisecond
		fr.device = uiautomator.NewDevice(fr.device.Remote(), opts)
	}

	fr.script = NewScriptEngine(fr.ctx, fr.device, fr.config.Stdout)
	fr.script.ImportSystemEnv()
	if fr.flow.SourcePath != "" {
		fr.script.SetFlowDir(filepath.Dir(fr.flow.SourcePath))
	}
	fr.script.SetVariable("RUN_ID", fr.runID)
	fr.script.SetVariables(fr.config.Env)
	fr.script.SetVariables(fr.flow.Config.Env)

	if fr.config.OnFlowStart != nil {
		fr.config.OnFlowStart(fr.flowIdx, fr.totalFlows, name, filepath.Base(fr.flow.SourcePath))
	}
	logger.Info("flow %q started (%d steps)", name, len(fr.flow.Steps))

	// onFlowComplete runs even when the flow fails.
	defer func() {
		for _, step := range fr.flow.Config.OnEnd {
			if _, err := fr.execute(step); err != nil {
				logger.Warn("flow %q onFlowComplete %s: %v", name, step.Describe(), err)
			}
		}
	}()

	for _, step := range fr.flow.Config.OnStart {
		if _, err := fr.execute(step); err != nil && !step.IsOptional() {
			result.Status = report.StatusFailed
			result.Error = toReportError(fmt.Errorf("onFlowStart failed: %w", err))
			for i, s := range fr.flow.Steps {
				result.Commands = append(result.Commands, skippedCommand(i, s))
			}
			return fr.finish(result, flowStart)
		}
	}

	for i, step := range fr.flow.Steps {
		if fr.ctx.Err() != nil || result.Status == report.StatusFailed {
			result.Commands = append(result.Commands, skippedCommand(i, step))
			if result.Status != report.StatusFailed {
				result.Status = report.StatusFailed
				result.Error = &report.Error{Message: "execution cancelled"}
			}
			continue
		}

		cmd, _ := fr.executeStep(i, step)
		result.Commands = append(result.Commands, cmd)
		if fr.config.OnStepComplete != nil {
			fr.config.OnStepComplete(i, cmd.Description, cmd.Status == report.StatusPassed, cmd.Duration, errorMessage(cmd.Error))
		}
		if cmd.Status == report.StatusFailed && !step.IsOptional() {
			result.Status = report.StatusFailed
			result.Error = cmd.Error
		}
	}
	return fr.finish(result, flowStart)
}

func (fr *FlowRunner) finish(result report.Flow, start time.Time) report.Flow {
	result.Duration = time.Since(start).Milliseconds()
	passed := result.Status == report.StatusPassed
	if passed {
		logger.Info("flow %q passed in %dms", result.Name, result.Duration)
	} else {
		logger.Error("flow %q failed in %dms: %s", result.Name, result.Duration, errorMessage(result.Error))
	}
	if fr.config.OnFlowEnd != nil {
		fr.config.OnFlowEnd(result.Name, passed, result.Duration)
	}
	return result
}

// executeStep runs one step and records it as a command.
func (fr *FlowRunner) executeStep(idx int, step flow.Step) (report.Command, error) {
	start := time.Now()
	cmd := report.Command{
		Index:       idx,
		Type:        string(step.Type()),
		Description: step.Describe(),
		Status:      report.StatusPassed,
	}

	subs, err := fr.execute(step)
	cmd.SubCommands = subs
	cmd.Duration = time.Since(start).Milliseconds()
	if err != nil {
		cmd.Status = report.StatusFailed
		cmd.Error = toReportError(err)
		if step.IsOptional() {
			logger.Warn("optional step %d %s failed: %v", idx+1, cmd.Description, err)
		} else {
			logger.Error("step %d %s failed: %v", idx+1, cmd.Description, err)
		}
		return cmd, err
	}
	logger.Debug("step %d %s passed in %dms", idx+1, cmd.Description, cmd.Duration)
	return cmd, nil
}

func toReportError(err error) *report.Error {
	category := string(core.CategoryOf(err))
	var se *scriptError
	if category == "" && errors.As(err, &se) {
		category = "script"
	}
	return &report.Error{Message: err.Error(), Category: category}
}

func errorMessage(e *report.Error) string {
	if e == nil {
		return ""
	}
	return e.Message
}
