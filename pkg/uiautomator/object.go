package uiautomator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/core"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/logger"
)

// Device binds a Remote to the options shared by all of its handles.
type Device struct {
	remote Remote
	opts   Options
}

// NewDevice creates a Device over remote.
func NewDevice(remote Remote, opts Options) *Device {
	return &Device{remote: remote, opts: opts.withDefaults()}
}

// UI returns a lazy handle for sel. No remote call is made.
func (d *Device) UI(sel Selector) *Object {
	return &Object{remote: d.remote, sel: sel, opts: d.opts}
}

// Options returns the effective options.
func (d *Device) Options() Options {
	return d.opts
}

// Remote returns the underlying collaborator.
func (d *Device) Remote() Remote {
	return d.remote
}

// Object is a lazy reference to the element(s) matching a selector. It holds
// no resolved state: existence and properties are looked up on every call.
type Object struct {
	remote Remote
	sel    Selector
	opts   Options
}

// NewObject creates a handle without a Device.
func NewObject(remote Remote, sel Selector, opts Options) *Object {
	return &Object{remote: remote, sel: sel, opts: opts.withDefaults()}
}

// Selector returns the handle's selector.
func (o *Object) Selector() Selector {
	return o.sel
}

// String renders the handle's selector.
func (o *Object) String() string {
	return o.sel.String()
}

func (o *Object) derive(sel Selector) *Object {
	return &Object{remote: o.remote, sel: sel, opts: o.opts}
}

// Parent returns a handle for this object's parent.
func (o *Object) Parent() *Object { return o.derive(o.sel.Parent()) }

// Ancestor returns a handle for the closest ancestor matching target.
func (o *Object) Ancestor(target Selector) *Object { return o.derive(o.sel.Ancestor(target)) }

// Child returns a handle for a direct child matching target.
func (o *Object) Child(target Selector) *Object { return o.derive(o.sel.Child(target)) }

// Sibling returns a handle for a sibling matching target.
func (o *Object) Sibling(target Selector) *Object { return o.derive(o.sel.Sibling(target)) }

// Bottom returns a handle for the closest match below this object.
func (o *Object) Bottom(target Selector) *Object { return o.derive(o.sel.Bottom(target)) }

// Left returns a handle for the closest match left of this object.
func (o *Object) Left(target Selector) *Object { return o.derive(o.sel.Left(target)) }

// Right returns a handle for the closest match right of this object.
func (o *Object) Right(target Selector) *Object { return o.derive(o.sel.Right(target)) }

// Top returns a handle for the closest match above this object.
func (o *Object) Top(target Selector) *Object { return o.derive(o.sel.Top(target)) }

func (o *Object) searchError(msg string, timeout time.Duration, cause error) *core.SearchError {
	return &core.SearchError{
		Selector: o.sel.String(),
		Device:   o.opts.Device,
		Timeout:  timeout,
		Message:  msg,
		Cause:    cause,
	}
}

func (o *Object) operationError(code, op, msg string, cause error) *core.OperationError {
	return &core.OperationError{
		Code:      code,
		Operation: op,
		Selector:  o.sel.String(),
		Device:    o.opts.Device,
		Message:   msg,
		Cause:     cause,
	}
}

func (o *Object) invalid(format string, args ...interface{}) *core.OperationError {
	return o.operationError(core.CodeInvalidArgument, "", fmt.Sprintf(format, args...), nil)
}

// remoteFailure wraps an error returned by the Remote, keeping the code of
// an OperationError the Remote already classified.
func (o *Object) remoteFailure(op string, err error) *core.OperationError {
	code := core.CodeTransport
	var oe *core.OperationError
	if errors.As(err, &oe) {
		code = oe.Code
	}
	return o.operationError(code, op, "remote call failed", err)
}

// checkSelector reports selector construction errors as caller violations.
func (o *Object) checkSelector(sel Selector) error {
	if err := sel.Err(); err != nil {
		return o.operationError(core.CodeInvalidArgument, "", "invalid selector", err)
	}
	return nil
}

// call issues one Invoke for sel and maps remote outcomes onto the error
// taxonomy. ReasonReachedEnd is returned as a Result for the caller to read.
func (o *Object) call(ctx context.Context, sel Selector, op string, params map[string]interface{}) (Result, error) {
	if err := o.checkSelector(sel); err != nil {
		return Result{}, err
	}
	start := time.Now()
	res, err := o.remote.Invoke(ctx, sel, op, params)
	if err != nil {
		logger.Error("%s %s failed after %v: %v", op, sel, time.Since(start), err)
		return res, o.remoteFailure(op, err)
	}
	logger.Debug("%s %s [%v] %s", op, sel, time.Since(start), reasonLabel(res.Reason))

	switch res.Reason {
	case ReasonOK, ReasonReachedEnd:
		return res, nil
	case ReasonNotFound:
		if sel.Equal(o.sel) {
			return res, o.searchError("", 0, core.ErrNotFound)
		}
		return res, &core.SearchError{Selector: sel.String(), Device: o.opts.Device, Cause: core.ErrNotFound}
	default:
		return res, o.operationError(core.CodeProtocol, op, res.Detail, nil)
	}
}

func reasonLabel(r Reason) string {
	if r == ReasonOK {
		return "OK"
	}
	return string(r)
}

// callBool issues one Invoke and decodes its boolean payload.
func (o *Object) callBool(ctx context.Context, sel Selector, op string, params map[string]interface{}) (bool, error) {
	res, err := o.call(ctx, sel, op, params)
	if err != nil {
		return false, err
	}
	ok, err := res.Bool()
	if err != nil {
		return false, o.operationError(core.CodeBadResponse, op, "unexpected payload", err)
	}
	return ok, nil
}

// Count returns how many elements currently match. Zero is not an error.
func (o *Object) Count(ctx context.Context) (int, error) {
	if err := o.checkSelector(o.sel); err != nil {
		return 0, err
	}
	n, err := o.remote.Count(ctx, o.sel)
	if err != nil {
		return 0, o.remoteFailure("count", err)
	}
	return n, nil
}

// Exists reports whether at least one element matches, in one round trip.
func (o *Object) Exists(ctx context.Context) (bool, error) {
	n, err := o.Count(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AssertExists returns a SearchError carrying msg when nothing matches.
func (o *Object) AssertExists(ctx context.Context, msg string) error {
	ok, err := o.Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return o.searchError(msg, 0, core.ErrNotFound)
	}
	return nil
}

// Info returns a full property snapshot of the first match.
func (o *Object) Info(ctx context.Context) (*Info, error) {
	if err := o.checkSelector(o.sel); err != nil {
		return nil, err
	}
	info, err := o.remote.Info(ctx, o.sel)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, o.searchError("", 0, err)
		}
		return nil, o.remoteFailure("info", err)
	}
	return info, nil
}

// Find returns one handle per descendant matching target. An empty result is
// not an error.
func (o *Object) Find(ctx context.Context, target Selector) ([]*Object, error) {
	if err := o.checkSelector(target); err != nil {
		return nil, err
	}
	matches, err := o.selectorList(ctx, OpFindChildObjects, map[string]interface{}{"selector": target})
	if err != nil {
		if core.IsSearchError(err) {
			return nil, nil
		}
		return nil, err
	}
	objects := make([]*Object, len(matches))
	for i, m := range matches {
		objects[i] = o.derive(o.sel.Descendant(m))
	}
	return objects, nil
}

// Has reports whether any descendant matches target.
func (o *Object) Has(ctx context.Context, target Selector) (bool, error) {
	found, err := o.Find(ctx, target)
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

// Children returns handles for the direct children of the first match.
func (o *Object) Children(ctx context.Context) ([]*Object, error) {
	matches, err := o.selectorList(ctx, OpGetChildren, nil)
	if err != nil {
		return nil, err
	}
	objects := make([]*Object, len(matches))
	for i, m := range matches {
		objects[i] = o.derive(o.sel.Child(m))
	}
	return objects, nil
}

func (o *Object) selectorList(ctx context.Context, op string, params map[string]interface{}) ([]Selector, error) {
	res, err := o.call(ctx, o.sel, op, params)
	if err != nil {
		return nil, err
	}
	if len(res.Value) == 0 || string(res.Value) == "null" {
		return nil, nil
	}
	var selectors []Selector
	if err := json.Unmarshal(res.Value, &selectors); err != nil {
		return nil, o.operationError(core.CodeBadResponse, op, "unexpected payload", err)
	}
	return selectors, nil
}

// ClickOption configures Click.
type ClickOption func(*clickConfig)

type clickConfig struct {
	duration *time.Duration
	point    *Point
}

// WithDuration holds the click for d.
func WithDuration(d time.Duration) ClickOption {
	return func(c *clickConfig) { c.duration = &d }
}

// AtPoint clicks at (x, y), which should lie within the visible bounds.
// The remote side rejects points outside them.
func AtPoint(x, y int) ClickOption {
	return func(c *clickConfig) { c.point = &Point{X: x, Y: y} }
}

// Click clicks the first match.
func (o *Object) Click(ctx context.Context, opts ...ClickOption) (bool, error) {
	var cfg clickConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	params := map[string]interface{}{"duration": nil}
	if cfg.duration != nil {
		params["duration"] = cfg.duration.Milliseconds()
	}
	if cfg.point != nil {
		params["x"] = cfg.point.X
		params["y"] = cfg.point.Y
		return o.callBool(ctx, o.sel, OpClickObjPoint, params)
	}
	return o.callBool(ctx, o.sel, OpClickObj, params)
}

// ClickTopLeft clicks the upper left corner of the visible bounds.
func (o *Object) ClickTopLeft(ctx context.Context) (bool, error) {
	bounds, err := o.VisibleBounds(ctx)
	if err != nil {
		return false, err
	}
	return o.clickAt(ctx, bounds.Left, bounds.Top)
}

// ClickBottomRight clicks the lower right corner of the visible bounds.
func (o *Object) ClickBottomRight(ctx context.Context) (bool, error) {
	bounds, err := o.VisibleBounds(ctx)
	if err != nil {
		return false, err
	}
	return o.clickAt(ctx, bounds.Right, bounds.Bottom)
}

// clickAt clicks a screen coordinate; the device-level click takes no selector.
func (o *Object) clickAt(ctx context.Context, x, y int) (bool, error) {
	return o.callBool(ctx, By(), OpClick, map[string]interface{}{"x": x, "y": y})
}

// ClickAndWait clicks and waits up to timeout for a new window. The wait
// runs on the device, so timeout must stay below the RPC timeout.
func (o *Object) ClickAndWait(ctx context.Context, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		timeout = o.opts.WaitTimeout
	}
	if timeout >= o.opts.RPCTimeout {
		return false, o.invalid("timeout %v must be shorter than the RPC timeout %v", timeout, o.opts.RPCTimeout)
	}
	return o.callBool(ctx, o.sel, OpClickObjAndWait, map[string]interface{}{"timeout": timeout.Milliseconds()})
}

// LongClick long-presses the first match.
func (o *Object) LongClick(ctx context.Context) (bool, error) {
	return o.callBool(ctx, o.sel, OpLongClick, nil)
}

// ClearText clears an editable field.
func (o *Object) ClearText(ctx context.Context) (bool, error) {
	return o.callBool(ctx, o.sel, OpClear, nil)
}

// SetText replaces the content of an editable field.
func (o *Object) SetText(ctx context.Context, text string) (bool, error) {
	return o.callBool(ctx, o.sel, OpSetText, map[string]interface{}{"text": text})
}

// Scroll returns a scroll gesture builder.
func (o *Object) Scroll() Gesture { return Gesture{obj: o, kind: KindScroll} }

// Swipe returns a swipe gesture builder.
func (o *Object) Swipe() Gesture { return Gesture{obj: o, kind: KindSwipe} }

// Fling returns a fling gesture builder.
func (o *Object) Fling() Gesture { return Gesture{obj: o, kind: KindFling} }

// Pinch returns a pinch gesture builder.
func (o *Object) Pinch() Pinch { return Pinch{obj: o} }

// Drag returns a drag gesture builder.
func (o *Object) Drag() Drag { return Drag{obj: o} }

// Wait returns the polling wait controller.
func (o *Object) Wait() Waiter { return Waiter{obj: o} }
