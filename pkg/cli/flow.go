package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/config"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/executor"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/flow"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/uiautomator"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/validator"
	"github.com/urfave/cli/v2"
)

var flowCommand = &cli.Command{
	Name:      "flow",
	Usage:     "Run YAML step flows",
	ArgsUsage: "<flow.yaml | dir>...",
	Description: `Each flow is a list of steps run in order against UI objects:

  - tapOn: Sign in
  - inputText:
      value: ${USER}
      selector: {res: com.example:id/user}
  - scrollUntilVisible: {element: About, tap: true}
  - assertVisible: Welcome

Directories are searched for .yaml and .yml files. Every run is written as
report.json and junit.xml under --output, or under <home>/reports/<time>
unless --no-report is given.

Examples:
  snippet-ui flow login.yaml
  snippet-ui flow flows/ --include-tags smoke --output reports -e USER=bob`,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{Name: "env", Aliases: []string{"e"}, Usage: "Flow variable as NAME=value (repeatable)"},
		&cli.StringSliceFlag{Name: "include-tags", Usage: "Only run flows carrying one of these tags"},
		&cli.StringSliceFlag{Name: "exclude-tags", Usage: "Skip flows carrying any of these tags"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Report directory (default: <home>/reports/<time>)"},
		&cli.BoolFlag{Name: "no-report", Usage: "Do not write report files"},
		&cli.BoolFlag{Name: "stop-on-fail", Usage: "Skip remaining flows after the first failure"},
	},
	Action: runFlows,
}

func runFlows(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one flow file or directory is required")
	}
	vars, err := parseEnv(c.StringSlice("env"))
	if err != nil {
		return err
	}
	flows, err := collectFlows(c.Args().Slice(), c.StringSlice("include-tags"), c.StringSlice("exclude-tags"))
	if err != nil {
		return err
	}
	if len(flows) == 0 {
		return fmt.Errorf("no flows matched")
	}

	outputDir := c.String("output")
	if outputDir == "" && !c.Bool("no-report") {
		outputDir = filepath.Join(config.GetReportsDir(), time.Now().Format("20060102-150405"))
	}

	return withDevice(c, func(ctx context.Context, dev *uiautomator.Device) error {
		out := c.App.Writer
		runner := executor.New(dev, executor.RunnerConfig{
			OutputDir:  outputDir,
			StopOnFail: c.Bool("stop-on-fail"),
			Env:        vars,
			Address:    c.String("address"),
			Stdout:     out,
			OnFlowStart: func(flowIdx, total int, name, file string) {
				fmt.Fprintf(out, "[%d/%d] %s (%s)\n", flowIdx+1, total, name, file)
			},
			OnStepComplete: func(idx int, desc string, passed bool, durationMs int64, errMsg string) {
				if passed {
					fmt.Fprintf(out, "  ✓ %s (%dms)\n", desc, durationMs)
					return
				}
				fmt.Fprintf(out, "  ✗ %s (%dms): %s\n", desc, durationMs, errMsg)
			},
		})

		idx, err := runner.Run(ctx, flows)
		if err != nil {
			return err
		}
		s := idx.Summary
		fmt.Fprintf(out, "%d flow(s): %d passed, %d failed, %d skipped\n", s.Total, s.Passed, s.Failed, s.Skipped)
		if outputDir != "" {
			fmt.Fprintf(out, "Report: %s\n", outputDir)
		}
		if !idx.Passed() {
			return fmt.Errorf("%d flow(s) failed", s.Failed)
		}
		return nil
	})
}

// collectFlows validates every path and returns the runnable flows.
func collectFlows(paths, include, exclude []string) ([]*flow.Flow, error) {
	result := validator.New(include, exclude).Validate(paths...)
	if !result.IsValid() {
		return nil, fmt.Errorf("flow validation failed:\n%w", errors.Join(result.Errors...))
	}
	return result.Flows, nil
}

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Check flows without connecting to a device",
	ArgsUsage: "<flow.yaml | dir>...",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{Name: "include-tags", Usage: "Only check flows carrying one of these tags"},
		&cli.StringSliceFlag{Name: "exclude-tags", Usage: "Skip flows carrying any of these tags"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return fmt.Errorf("at least one flow file or directory is required")
		}
		result := validator.New(c.StringSlice("include-tags"), c.StringSlice("exclude-tags")).Validate(c.Args().Slice()...)
		for _, f := range result.Flows {
			fmt.Fprintf(c.App.Writer, "ok   %s (%d steps)\n", f.DisplayName(), len(f.Steps))
		}
		for _, err := range result.Errors {
			fmt.Fprintf(c.App.Writer, "FAIL %v\n", err)
		}
		if !result.IsValid() {
			return fmt.Errorf("%d validation error(s)", len(result.Errors))
		}
		return nil
	},
}
