package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/core"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/uiautomator"
	"github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"
)

// toolResult is the YAML body of every tool response.
type toolResult struct {
	OK       bool              `yaml:"ok"`
	Action   string            `yaml:"action"`
	Selector string            `yaml:"selector,omitempty"`
	Found    *bool             `yaml:"found,omitempty"`
	Count    *int              `yaml:"count,omitempty"`
	Info     *uiautomator.Info `yaml:"info,omitempty"`
	Flow     *flowOutcome      `yaml:"flow,omitempty"`
	Error    string            `yaml:"error,omitempty"`
	Category string            `yaml:"category,omitempty"`
}

func resultToText(r toolResult) string {
	b, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Sprintf("ok: %v\naction: %s\nerror: %s", r.OK, r.Action, r.Error)
	}
	return string(b)
}

// respond turns an operation outcome into a tool result. Failures are tool
// errors the agent can read, not protocol errors.
func respond(r toolResult, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		r.OK = false
		r.Error = err.Error()
		r.Category = string(core.CategoryOf(err))
		return mcp.NewToolResultError(resultToText(r)), nil
	}
	r.OK = true
	return mcp.NewToolResultText(resultToText(r)), nil
}

// Parameter extraction helpers for tool arguments.

func stringParam(params map[string]interface{}, key, defaultVal string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return defaultVal
}

func intParam(params map[string]interface{}, key string, defaultVal int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case int64:
			return int(n)
		}
	}
	return defaultVal
}

func boolParam(params map[string]interface{}, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

func msParam(params map[string]interface{}, key string) time.Duration {
	return time.Duration(intParam(params, key, 0)) * time.Millisecond
}

// selectorParam builds the selector from the shared selector arguments.
func selectorParam(params map[string]interface{}) (uiautomator.Selector, error) {
	sel := uiautomator.By()
	for _, field := range []struct {
		key   string
		apply func(uiautomator.Selector, string) uiautomator.Selector
	}{
		{"text", uiautomator.Selector.Text},
		{"text-contains", uiautomator.Selector.TextContains},
		{"desc", uiautomator.Selector.Desc},
		{"res", uiautomator.Selector.Res},
		{"clazz", uiautomator.Selector.Clazz},
		{"pkg", uiautomator.Selector.Pkg},
	} {
		if v := stringParam(params, field.key, ""); v != "" {
			sel = field.apply(sel, v)
		}
	}
	if _, ok := params["scrollable"]; ok {
		sel = sel.Scrollable(boolParam(params, "scrollable", true))
	}
	if _, ok := params["index"]; ok {
		sel = sel.Index(intParam(params, "index", 0))
	}
	if sel.IsZero() {
		return sel, core.NewInvalidArgument("at least one selector argument is required (text, res, desc, clazz, ...)")
	}
	return sel, sel.Err()
}

// elementHandler resolves the selector, locks the device and runs fn.
func (s *Server) elementHandler(
	ctx context.Context,
	request mcp.CallToolRequest,
	action string,
	fn func(ctx context.Context, obj *uiautomator.Object, params map[string]interface{}, r *toolResult) error,
) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	r := toolResult{Action: action}

	sel, err := selectorParam(params)
	if err != nil {
		return respond(r, err)
	}
	r.Selector = sel.String()

	s.mu.Lock()
	defer s.mu.Unlock()
	return respond(r, fn(ctx, s.device.UI(sel), params, &r))
}

func (s *Server) handleExists(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.elementHandler(ctx, request, "exists", func(ctx context.Context, obj *uiautomator.Object, _ map[string]interface{}, r *toolResult) error {
		n, err := obj.Count(ctx)
		if err != nil {
			return err
		}
		found := n > 0
		r.Found = &found
		r.Count = &n
		return nil
	})
}

func (s *Server) handleInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.elementHandler(ctx, request, "info", func(ctx context.Context, obj *uiautomator.Object, _ map[string]interface{}, r *toolResult) error {
		info, err := obj.Info(ctx)
		if err != nil {
			return err
		}
		r.Info = info
		return nil
	})
}

func (s *Server) handleClick(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.elementHandler(ctx, request, "click", func(ctx context.Context, obj *uiautomator.Object, params map[string]interface{}, _ *toolResult) error {
		if wait := msParam(params, "wait"); wait > 0 {
			if err := obj.Wait().AssertExists(ctx, "", wait); err != nil {
				return err
			}
		}
		var ok bool
		var err error
		switch {
		case boolParam(params, "long", false):
			ok, err = obj.LongClick(ctx)
		case msParam(params, "hold") > 0:
			ok, err = obj.Click(ctx, uiautomator.WithDuration(msParam(params, "hold")))
		default:
			ok, err = obj.Click(ctx)
		}
		return acknowledged("click", ok, err)
	})
}

func (s *Server) handleSetText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.elementHandler(ctx, request, "set_text", func(ctx context.Context, obj *uiautomator.Object, params map[string]interface{}, _ *toolResult) error {
		value, ok := params["value"].(string)
		if !ok {
			return core.NewInvalidArgument("value is required")
		}
		done, err := obj.SetText(ctx, value)
		return acknowledged("set_text", done, err)
	})
}

func (s *Server) handleWait(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.elementHandler(ctx, request, "wait", func(ctx context.Context, obj *uiautomator.Object, params map[string]interface{}, _ *toolResult) error {
		msg := stringParam(params, "message", "")
		timeout := msParam(params, "timeout")
		if boolParam(params, "gone", false) {
			return obj.Wait().AssertGone(ctx, msg, timeout)
		}
		return obj.Wait().AssertExists(ctx, msg, timeout)
	})
}

func (s *Server) gestureHandler(kind uiautomator.GestureKind) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.elementHandler(ctx, request, string(kind), func(ctx context.Context, obj *uiautomator.Object, params map[string]interface{}, r *toolResult) error {
			var g uiautomator.Gesture
			switch kind {
			case uiautomator.KindSwipe:
				g = obj.Swipe()
			case uiautomator.KindFling:
				g = obj.Fling()
			default:
				g = obj.Scroll()
			}
			if _, ok := params["margin"]; ok {
				g = g.Margin(intParam(params, "margin", 0))
			}
			if _, ok := params["margin-percent"]; ok {
				g = g.MarginPercent(intParam(params, "margin-percent", 0))
			}

			var opts []uiautomator.GestureOption
			if _, ok := params["percent"]; ok {
				opts = append(opts, uiautomator.Percent(intParam(params, "percent", 0)))
			}
			if _, ok := params["speed"]; ok {
				opts = append(opts, uiautomator.Speed(intParam(params, "speed", 0)))
			}
			if target := stringParam(params, "until-text", ""); target != "" {
				opts = append(opts, uiautomator.Until(uiautomator.By().Text(target)))
			}

			dir := uiautomator.Direction(strings.ToUpper(stringParam(params, "direction", "")))
			ok, err := g.Toward(ctx, dir, opts...)
			if err != nil {
				return err
			}
			r.Found = &ok
			return nil
		})
	}
}

// acknowledged turns a false acknowledgment into an error.
func acknowledged(action string, ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: device reported failure", action)
	}
	return nil
}
