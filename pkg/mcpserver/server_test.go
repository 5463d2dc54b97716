package mcpserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/uiautomator"
	"github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"
)

var buttonInfo = &uiautomator.Info{
	ClassName:     "android.widget.Button",
	Text:          "OK",
	VisibleBounds: uiautomator.Rect{Left: 0, Top: 0, Right: 100, Bottom: 40},
	VisibleCenter: uiautomator.Point{X: 50, Y: 20},
}

func newTestServer(remote uiautomator.Remote) *Server {
	dev := uiautomator.NewDevice(remote, uiautomator.Options{
		PollInterval: 5 * time.Millisecond,
		WaitTimeout:  30 * time.Millisecond,
	})
	return New(dev, "test")
}

func toolRequest(t *testing.T, name string, args map[string]interface{}) mcp.CallToolRequest {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{
		"params": map[string]interface{}{"name": name, "arguments": args},
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	var req mcp.CallToolRequest
	if err := json.Unmarshal(data, &req); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	return req
}

// decode parses the YAML body of a tool result.
func decode(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	var text string
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		text = c.Text
	case *mcp.TextContent:
		text = c.Text
	default:
		t.Fatalf("unexpected content %T", res.Content[0])
	}
	var out map[string]interface{}
	if err := yaml.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("parse result %q: %v", text, err)
	}
	return out
}

func TestExistsTool(t *testing.T) {
	s := newTestServer(uiautomator.NewFakeRemote(2, buttonInfo))

	res, err := s.handleExists(context.Background(), toolRequest(t, "exists", map[string]interface{}{"text": "OK"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %v", decode(t, res))
	}
	out := decode(t, res)
	if out["found"] != true || out["count"] != 2 {
		t.Errorf("unexpected result %v", out)
	}
	if out["selector"] != "Selector{'text': 'OK'}" {
		t.Errorf("selector = %v", out["selector"])
	}
}

func TestInfoTool(t *testing.T) {
	s := newTestServer(uiautomator.NewFakeRemote(1, buttonInfo))

	res, _ := s.handleInfo(context.Background(), toolRequest(t, "info", map[string]interface{}{"res": "id/ok"}))
	out := decode(t, res)
	info, ok := out["info"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected info map, got %v", out)
	}
	if info["className"] != "android.widget.Button" || info["text"] != "OK" {
		t.Errorf("unexpected info %v", info)
	}
}

func TestToolNotFound(t *testing.T) {
	s := newTestServer(uiautomator.NewFakeRemote(0, nil))

	res, err := s.handleClick(context.Background(), toolRequest(t, "click", map[string]interface{}{"text": "Gone"}))
	if err != nil {
		t.Fatalf("tool failures should not be protocol errors: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool error")
	}
	out := decode(t, res)
	if out["ok"] != false || out["category"] != "search" {
		t.Errorf("unexpected result %v", out)
	}
}

func TestToolRequiresSelector(t *testing.T) {
	remote := uiautomator.NewFakeRemote(1, buttonInfo)
	s := newTestServer(remote)

	res, _ := s.handleClick(context.Background(), toolRequest(t, "click", map[string]interface{}{}))
	if !res.IsError {
		t.Fatal("expected tool error")
	}
	if decode(t, res)["category"] != "operation" {
		t.Errorf("expected operation category")
	}
	if len(remote.Calls()) != 0 {
		t.Error("no remote call expected")
	}
}

func TestClickTool(t *testing.T) {
	tests := []struct {
		name string
		args map[string]interface{}
		op   string
	}{
		{"plain", map[string]interface{}{"text": "OK"}, uiautomator.OpClickObj},
		{"long", map[string]interface{}{"text": "OK", "long": true}, uiautomator.OpLongClick},
		{"hold", map[string]interface{}{"text": "OK", "hold": 800}, uiautomator.OpClickObj},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := uiautomator.NewFakeRemote(1, buttonInfo)
			s := newTestServer(remote)

			res, _ := s.handleClick(context.Background(), toolRequest(t, "click", tt.args))
			if res.IsError {
				t.Fatalf("unexpected tool error: %v", decode(t, res))
			}
			if got := remote.LastCall().Op; got != tt.op {
				t.Errorf("op = %s, want %s", got, tt.op)
			}
		})
	}
}

func TestSetTextTool(t *testing.T) {
	remote := uiautomator.NewFakeRemote(1, buttonInfo)
	s := newTestServer(remote)

	res, _ := s.handleSetText(context.Background(), toolRequest(t, "set_text", map[string]interface{}{"res": "id/name", "value": "Bob"}))
	if res.IsError {
		t.Fatalf("unexpected tool error: %v", decode(t, res))
	}
	call := remote.LastCall()
	if call.Op != uiautomator.OpSetText || call.Params["text"] != "Bob" {
		t.Errorf("unexpected call %+v", call)
	}

	res, _ = s.handleSetText(context.Background(), toolRequest(t, "set_text", map[string]interface{}{"res": "id/name"}))
	if !res.IsError {
		t.Error("expected error without value")
	}
}

func TestWaitTool(t *testing.T) {
	s := newTestServer(uiautomator.NewFakeRemote(1, buttonInfo))

	res, _ := s.handleWait(context.Background(), toolRequest(t, "wait", map[string]interface{}{"text": "OK", "timeout": 50}))
	if res.IsError {
		t.Errorf("unexpected tool error: %v", decode(t, res))
	}

	res, _ = s.handleWait(context.Background(), toolRequest(t, "wait", map[string]interface{}{"text": "OK", "gone": true, "timeout": 20}))
	if !res.IsError {
		t.Fatal("expected timeout while element is still present")
	}
	if out := decode(t, res); out["category"] != "search" {
		t.Errorf("unexpected result %v", out)
	}
}

func TestGestureTools(t *testing.T) {
	tests := []struct {
		kind    uiautomator.GestureKind
		args    map[string]interface{}
		op      string
		wantErr bool
	}{
		{uiautomator.KindScroll, map[string]interface{}{"scrollable": true, "direction": "down", "percent": 40, "margin": 5}, uiautomator.OpScroll, false},
		{uiautomator.KindScroll, map[string]interface{}{"scrollable": true, "direction": "up"}, uiautomator.OpScrollUntilFinished, false},
		{uiautomator.KindScroll, map[string]interface{}{"scrollable": true, "direction": "down", "until-text": "About"}, uiautomator.OpScrollUntil, false},
		{uiautomator.KindSwipe, map[string]interface{}{"res": "id/card", "direction": "left", "speed": 500}, uiautomator.OpSwipeObj, false},
		{uiautomator.KindFling, map[string]interface{}{"scrollable": true, "direction": "down"}, uiautomator.OpFling, false},
		{uiautomator.KindFling, map[string]interface{}{"scrollable": true, "direction": "down", "percent": 50}, "", true},
		{uiautomator.KindSwipe, map[string]interface{}{"res": "id/card", "direction": "sideways"}, "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+"_"+stringParam(tt.args, "direction", ""), func(t *testing.T) {
			remote := uiautomator.NewFakeRemote(1, buttonInfo)
			s := newTestServer(remote)

			res, err := s.gestureHandler(tt.kind)(context.Background(), toolRequest(t, string(tt.kind), tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.IsError != tt.wantErr {
				t.Fatalf("IsError = %v, want %v: %v", res.IsError, tt.wantErr, decode(t, res))
			}
			if tt.wantErr {
				if len(remote.Calls()) != 0 {
					t.Error("invalid gesture should not reach the remote")
				}
				return
			}
			if got := remote.LastCall().Op; got != tt.op {
				t.Errorf("op = %s, want %s", got, tt.op)
			}
		})
	}
}

func TestSelectorParam(t *testing.T) {
	sel, err := selectorParam(map[string]interface{}{
		"res":        "id/list",
		"text":       "Row",
		"scrollable": false,
		"index":      float64(3),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := uiautomator.By().Text("Row").Res("id/list").Scrollable(false).Index(3)
	if !sel.Equal(want) {
		t.Errorf("selector = %s, want %s", sel, want)
	}
}

func TestRunFlowTool(t *testing.T) {
	remote := uiautomator.NewFakeRemote(1, buttonInfo)
	s := newTestServer(remote)

	src := "name: Confirm\n---\n- tapOn: OK\n- assertVisible:\n    res: id/done\n"
	res, err := s.handleRunFlow(context.Background(), toolRequest(t, "run_flow", map[string]interface{}{"flow": src}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %v", decode(t, res))
	}
	f, ok := decode(t, res)["flow"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected flow outcome, got %v", decode(t, res))
	}
	if f["name"] != "Confirm" || f["status"] != "passed" {
		t.Errorf("unexpected outcome %v", f)
	}
	if steps, _ := f["steps"].([]interface{}); len(steps) != 2 {
		t.Errorf("expected 2 steps, got %v", f["steps"])
	}
}

func TestRunFlowToolFailures(t *testing.T) {
	s := newTestServer(uiautomator.NewFakeRemote(0, nil))

	res, _ := s.handleRunFlow(context.Background(), toolRequest(t, "run_flow", map[string]interface{}{"flow": "- tapOn: Gone\n- assertVisible: Never\n"}))
	if !res.IsError {
		t.Fatal("expected tool error for a failing flow")
	}
	out := decode(t, res)
	f, _ := out["flow"].(map[string]interface{})
	if f["status"] != "failed" {
		t.Errorf("unexpected outcome %v", out)
	}
	steps, _ := f["steps"].([]interface{})
	if len(steps) != 2 {
		t.Fatalf("expected both steps reported, got %v", f["steps"])
	}
	if last, _ := steps[1].(map[string]interface{}); last["status"] != "skipped" {
		t.Errorf("second step should be skipped, got %v", last)
	}

	res, _ = s.handleRunFlow(context.Background(), toolRequest(t, "run_flow", map[string]interface{}{"flow": "- bogusStep: x\n"}))
	if !res.IsError || decode(t, res)["category"] != "operation" {
		t.Errorf("expected invalid argument, got %v", decode(t, res))
	}

	res, _ = s.handleRunFlow(context.Background(), toolRequest(t, "run_flow", map[string]interface{}{}))
	if !res.IsError {
		t.Error("expected error without a flow")
	}
}
