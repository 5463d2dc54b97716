package uiautomator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Remote is the device-side automation surface. Implementations must
// serialize concurrent calls on a single connection.
type Remote interface {
	// Invoke runs an operation against the elements matching sel. A returned
	// error means a transport failure; remote outcomes travel in Result.
	Invoke(ctx context.Context, sel Selector, op string, params map[string]interface{}) (Result, error)

	// Info returns an atomic snapshot of the first match. It returns an error
	// wrapping core.ErrNotFound when nothing matches.
	Info(ctx context.Context, sel Selector) (*Info, error)

	// Count returns how many elements currently match sel.
	Count(ctx context.Context, sel Selector) (int, error)
}

// Reason classifies a remote outcome.
type Reason string

const (
	ReasonOK            Reason = ""
	ReasonNotFound      Reason = "not_found"
	ReasonReachedEnd    Reason = "reached_end"
	ReasonProtocolError Reason = "protocol_error"
)

// Result is the outcome of one Invoke.
type Result struct {
	Value  json.RawMessage
	Reason Reason
	Detail string
}

// OK reports whether the remote side acknowledged the operation.
func (r Result) OK() bool {
	return r.Reason == ReasonOK
}

// Bool decodes a boolean payload. An empty or null payload counts as true,
// since some operations acknowledge without a value.
func (r Result) Bool() (bool, error) {
	if len(r.Value) == 0 || string(r.Value) == "null" {
		return true, nil
	}
	var b bool
	if err := json.Unmarshal(r.Value, &b); err != nil {
		return false, fmt.Errorf("decode bool result: %w", err)
	}
	return b, nil
}

// BoolResult builds an acknowledged Result carrying b.
func BoolResult(b bool) Result {
	if b {
		return Result{Value: json.RawMessage("true")}
	}
	return Result{Value: json.RawMessage("false")}
}

// ValueResult builds an acknowledged Result carrying v encoded as JSON.
func ValueResult(v interface{}) (Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Result{}, err
	}
	return Result{Value: data}, nil
}

// Rect is an element's visible bounds in screen pixels.
type Rect struct {
	Left   int `json:"left" yaml:"left"`
	Top    int `json:"top" yaml:"top"`
	Right  int `json:"right" yaml:"right"`
	Bottom int `json:"bottom" yaml:"bottom"`
}

// Width returns the horizontal extent.
func (r Rect) Width() int { return r.Right - r.Left }

// Height returns the vertical extent.
func (r Rect) Height() int { return r.Bottom - r.Top }

// Center returns the point in the middle of the bounds.
func (r Rect) Center() Point {
	return Point{X: (r.Left + r.Right) / 2, Y: (r.Top + r.Bottom) / 2}
}

// Contains reports whether p lies within the bounds.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left && p.X <= r.Right && p.Y >= r.Top && p.Y <= r.Bottom
}

// Point is a screen coordinate.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Info is a property snapshot of one element, read atomically by the remote.
type Info struct {
	ChildCount         int    `json:"childCount" yaml:"childCount"`
	ClassName          string `json:"className" yaml:"className"`
	ContentDescription string `json:"contentDescription" yaml:"contentDescription"`
	Hint               string `json:"hint" yaml:"hint"`
	PackageName        string `json:"packageName" yaml:"packageName"`
	ResourceName       string `json:"resourceName" yaml:"resourceName"`
	Text               string `json:"text" yaml:"text"`
	DisplayID          int    `json:"displayId" yaml:"displayId"`
	VisibleBounds      Rect   `json:"visibleBounds" yaml:"visibleBounds"`
	VisibleCenter      Point  `json:"visibleCenter" yaml:"visibleCenter"`
	Checkable          bool   `json:"checkable" yaml:"checkable"`
	Checked            bool   `json:"checked" yaml:"checked"`
	Clickable          bool   `json:"clickable" yaml:"clickable"`
	Enabled            bool   `json:"enabled" yaml:"enabled"`
	Focusable          bool   `json:"focusable" yaml:"focusable"`
	Focused            bool   `json:"focused" yaml:"focused"`
	LongClickable      bool   `json:"longClickable" yaml:"longClickable"`
	Scrollable         bool   `json:"scrollable" yaml:"scrollable"`
	Selected           bool   `json:"selected" yaml:"selected"`
}

// Direction of a gesture.
type Direction string

const (
	DirectionDown  Direction = "DOWN"
	DirectionUp    Direction = "UP"
	DirectionLeft  Direction = "LEFT"
	DirectionRight Direction = "RIGHT"
	DirectionOpen  Direction = "OPEN"
	DirectionClose Direction = "CLOSE"
)

// Remote operation names.
const (
	OpClick               = "click"
	OpClickObj            = "clickObj"
	OpClickObjPoint       = "clickObjPoint"
	OpClickObjAndWait     = "clickObjAndWait"
	OpLongClick           = "longClick"
	OpClear               = "clear"
	OpSetText             = "setText"
	OpFindChildObjects    = "findChildObjects"
	OpGetChildren         = "getChildren"
	OpDragObj             = "dragObj"
	OpDragObjToObj        = "dragObjToObj"
	OpFling               = "fling"
	OpSwipeObj            = "swipeObj"
	OpScroll              = "scroll"
	OpScrollUntil         = "scrollUntil"
	OpScrollUntilFinished = "scrollUntilFinished"
	OpPinchOpen           = "pinchOpen"
	OpPinchClose          = "pinchClose"
)

// Defaults used when Options leaves a field unset.
const (
	DefaultPollInterval      = 250 * time.Millisecond
	DefaultWaitTimeout       = 10 * time.Second
	DefaultRPCTimeout        = 60 * time.Second
	DefaultMaxScrollAttempts = 30
)

// Options tune waits and scroll loops for every handle of a Device.
type Options struct {
	Device            string        // identity used in diagnostics only
	PollInterval      time.Duration // delay between polls of a wait
	WaitTimeout       time.Duration // default wait timeout
	RPCTimeout        time.Duration // remote-side waits must stay below this
	MaxScrollAttempts int           // attempts of a scroll-until-found loop
}

// withDefaults fills zero values.
func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = DefaultWaitTimeout
	}
	if o.RPCTimeout <= 0 {
		o.RPCTimeout = DefaultRPCTimeout
	}
	if o.MaxScrollAttempts <= 0 {
		o.MaxScrollAttempts = DefaultMaxScrollAttempts
	}
	return o
}
