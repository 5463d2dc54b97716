package mcpserver

import (
	"context"
	"errors"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/core"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/executor"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/flow"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/report"
	"github.com/mark3labs/mcp-go/mcp"
)

// stepOutcome is one step line of a run_flow result.
type stepOutcome struct {
	Step   string `yaml:"step"`
	Status string `yaml:"status"`
	Error  string `yaml:"error,omitempty"`
}

// flowOutcome is the run_flow result body.
type flowOutcome struct {
	Name       string        `yaml:"name"`
	Status     string        `yaml:"status"`
	DurationMs int64         `yaml:"durationMs"`
	Steps      []stepOutcome `yaml:"steps"`
}

func outcomeOf(f report.Flow) *flowOutcome {
	out := &flowOutcome{Name: f.Name, Status: string(f.Status), DurationMs: f.Duration}
	for _, c := range f.Commands {
		step := stepOutcome{Step: c.Description, Status: string(c.Status)}
		if c.Error != nil {
			step.Error = c.Error.Message
		}
		out.Steps = append(out.Steps, step)
	}
	return out
}

func runFlowTool() mcp.Tool {
	return mcp.NewTool("run_flow",
		mcp.WithDescription("Run a YAML step flow (tapOn, inputText, scrollUntilVisible, assertVisible, ...) and report each step"),
		mcp.WithString("flow", mcp.Description("Flow YAML: an optional config document, then a list of steps"), mcp.Required()),
	)
}

func (s *Server) handleRunFlow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r := toolResult{Action: "run_flow"}
	src, ok := request.GetArguments()["flow"].(string)
	if !ok || src == "" {
		return respond(r, core.NewInvalidArgument("flow is required"))
	}
	f, err := flow.Parse([]byte(src), "run_flow")
	if err != nil {
		return respond(r, core.NewInvalidArgument("%s", err.Error()))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := executor.New(s.device, executor.RunnerConfig{}).Run(ctx, []*flow.Flow{f})
	if err != nil {
		return respond(r, err)
	}
	result := idx.Flows[0]
	r.Flow = outcomeOf(result)
	if result.Status != report.StatusPassed {
		msg := "flow did not pass"
		if result.Error != nil {
			msg = result.Error.Message
		}
		return respond(r, errors.New(msg))
	}
	return respond(r, nil)
}
