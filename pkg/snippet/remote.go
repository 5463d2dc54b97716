package snippet

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/core"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/uiautomator"
)

var _ uiautomator.Remote = (*Client)(nil)

// Invoke maps op and its named params onto the snippet's positional method
// signature and classifies the outcome.
func (c *Client) Invoke(ctx context.Context, sel uiautomator.Selector, op string, params map[string]interface{}) (uiautomator.Result, error) {
	args, err := buildArgs(sel, op, params)
	if err != nil {
		return uiautomator.Result{}, err
	}
	resp, err := c.Call(ctx, op, args...)
	if err != nil {
		return uiautomator.Result{}, err
	}
	return classify(op, resp), nil
}

// Info reads the property snapshot of the first match.
func (c *Client) Info(ctx context.Context, sel uiautomator.Selector) (*uiautomator.Info, error) {
	res, err := c.Invoke(ctx, sel, "getObjInfo", nil)
	if err != nil {
		return nil, err
	}
	switch res.Reason {
	case uiautomator.ReasonOK:
	case uiautomator.ReasonNotFound:
		return nil, fmt.Errorf("getObjInfo %s: %w", sel, core.ErrNotFound)
	default:
		return nil, protocolError("getObjInfo", res.Detail)
	}

	var info uiautomator.Info
	if err := json.Unmarshal(res.Value, &info); err != nil {
		return nil, fmt.Errorf("parse object info: %w", err)
	}
	if info.VisibleCenter == (uiautomator.Point{}) && info.VisibleBounds != (uiautomator.Rect{}) {
		info.VisibleCenter = info.VisibleBounds.Center()
	}
	return &info, nil
}

// Count returns the number of current matches.
func (c *Client) Count(ctx context.Context, sel uiautomator.Selector) (int, error) {
	res, err := c.Invoke(ctx, sel, "findObjects", nil)
	if err != nil {
		return 0, err
	}
	switch res.Reason {
	case uiautomator.ReasonOK:
	case uiautomator.ReasonNotFound:
		return 0, nil
	default:
		return 0, protocolError("findObjects", res.Detail)
	}
	if len(res.Value) == 0 || string(res.Value) == "null" {
		return 0, nil
	}
	var matches []json.RawMessage
	if err := json.Unmarshal(res.Value, &matches); err != nil {
		return 0, fmt.Errorf("parse findObjects result: %w", err)
	}
	return len(matches), nil
}

func buildArgs(sel uiautomator.Selector, op string, params map[string]interface{}) ([]interface{}, error) {
	var args []interface{}
	if !noSelector[op] {
		args = append(args, sel)
	}
	names, known := methodParams[op]
	if !known {
		if len(params) > 0 {
			args = append(args, params)
		}
		return args, nil
	}
	for name := range params {
		if !contains(names, name) {
			return nil, &core.OperationError{
				Code:      core.CodeInvalidArgument,
				Operation: op,
				Message:   fmt.Sprintf("unexpected parameter %q", name),
			}
		}
	}
	for _, name := range names {
		args = append(args, params[name])
	}
	return args, nil
}

func protocolError(op, detail string) *core.OperationError {
	return &core.OperationError{Code: core.CodeProtocol, Operation: op, Message: detail}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// notFoundException is the exception the snippet raises when a selector
// matches nothing.
const notFoundException = "UiObjectNotFoundException"

// classify turns a snippet response into a Result. The snippet reports
// missing objects and exhausted scrollables through its error string.
func classify(op string, resp *Response) uiautomator.Result {
	if resp.Error != nil {
		msg := *resp.Error
		lower := strings.ToLower(msg)
		switch {
		case strings.Contains(msg, notFoundException):
			return uiautomator.Result{Reason: uiautomator.ReasonNotFound, Detail: msg}
		case strings.Contains(lower, "reached end"), strings.Contains(lower, "reachedend"):
			return uiautomator.Result{Reason: uiautomator.ReasonReachedEnd, Detail: msg}
		default:
			return uiautomator.Result{Reason: uiautomator.ReasonProtocolError, Detail: msg}
		}
	}
	if nullMeansNotFound[op] && (len(resp.Result) == 0 || string(resp.Result) == "null") {
		return uiautomator.Result{Reason: uiautomator.ReasonNotFound}
	}
	return uiautomator.Result{Value: resp.Result}
}
