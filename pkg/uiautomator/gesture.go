package uiautomator

import (
	"context"
	"fmt"
	"time"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/core"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/logger"
)

// GestureKind names a gesture family.
type GestureKind string

const (
	KindDrag   GestureKind = "drag"
	KindFling  GestureKind = "fling"
	KindSwipe  GestureKind = "swipe"
	KindScroll GestureKind = "scroll"
	KindPinch  GestureKind = "pinch"
)

// Margin is the dead zone kept clear at the edges of the element while a
// gesture runs: either PixelMargin or PercentMargin. A nil Margin leaves the
// remote default in place.
type Margin interface {
	apply(params map[string]interface{})
	validate() error
}

// PixelMargin is a margin in absolute pixels.
type PixelMargin int

func (m PixelMargin) apply(params map[string]interface{}) { params["margin"] = int(m) }

func (m PixelMargin) validate() error {
	if m < 0 {
		return fmt.Errorf("margin %d must not be negative", int(m))
	}
	return nil
}

// PercentMargin is a margin as a percentage of the element's size.
type PercentMargin int

func (m PercentMargin) apply(params map[string]interface{}) { params["marginPercent"] = int(m) }

func (m PercentMargin) validate() error {
	return checkPercent("margin percent", int(m))
}

// DragTarget is where a drag ends: PointTarget or ObjectTarget.
type DragTarget interface {
	operation() string
	apply(params map[string]interface{})
}

// PointTarget ends a drag on a screen coordinate.
type PointTarget Point

func (PointTarget) operation() string { return OpDragObj }

func (t PointTarget) apply(params map[string]interface{}) {
	params["x"] = t.X
	params["y"] = t.Y
}

// ObjectTarget ends a drag on the element matching Selector.
type ObjectTarget struct {
	Selector Selector
}

func (ObjectTarget) operation() string { return OpDragObjToObj }

func (t ObjectTarget) apply(params map[string]interface{}) {
	params["target"] = t.Selector
}

// ToPoint targets a coordinate.
func ToPoint(x, y int) DragTarget { return PointTarget{X: x, Y: y} }

// ToObject targets another element.
func ToObject(sel Selector) DragTarget { return ObjectTarget{Selector: sel} }

// GestureRequest is a fully assembled gesture, ready for one Invoke.
type GestureRequest struct {
	Kind      GestureKind
	Direction Direction
	Margin    Margin
	Percent   *int       // distance as a share of the element's extent
	Speed     *int       // pixels per second; remote default when nil
	Until     *Selector  // scroll until this selector matches
	DragTo    DragTarget // drag destination
}

// GestureOption configures a terminal gesture call.
type GestureOption func(*GestureRequest)

// Percent sets the gesture length as a percentage (0-100) of the element.
func Percent(p int) GestureOption {
	return func(r *GestureRequest) { r.Percent = &p }
}

// Speed sets the gesture speed in pixels per second.
func Speed(pxPerSecond int) GestureOption {
	return func(r *GestureRequest) { r.Speed = &pxPerSecond }
}

// Until makes a scroll repeat until target matches.
func Until(target Selector) GestureOption {
	return func(r *GestureRequest) { r.Until = &target }
}

// UntilObject makes a scroll repeat until obj matches.
func UntilObject(obj *Object) GestureOption {
	return func(r *GestureRequest) {
		sel := obj.Selector()
		r.Until = &sel
	}
}

func checkPercent(name string, p int) error {
	if p < 0 || p > 100 {
		return fmt.Errorf("%s %d must be between 0 and 100", name, p)
	}
	return nil
}

// Validate checks the request against the rules of its kind.
func (r GestureRequest) Validate() error {
	if r.Margin != nil {
		if err := r.Margin.validate(); err != nil {
			return err
		}
	}
	if r.Percent != nil {
		if err := checkPercent("percent", *r.Percent); err != nil {
			return err
		}
	}
	if r.Speed != nil && *r.Speed <= 0 {
		return fmt.Errorf("speed %d must be positive", *r.Speed)
	}
	if r.Until != nil {
		if err := r.Until.Err(); err != nil {
			return err
		}
	}

	switch r.Kind {
	case KindFling, KindSwipe, KindScroll:
		switch r.Direction {
		case DirectionDown, DirectionUp, DirectionLeft, DirectionRight:
		default:
			return fmt.Errorf("%s gesture does not support direction %q", r.Kind, r.Direction)
		}
	}

	switch r.Kind {
	case KindFling:
		if r.Percent != nil {
			return fmt.Errorf("fling gesture does not support changing the percent")
		}
		if r.Until != nil {
			return fmt.Errorf("fling gesture does not support a scroll target")
		}
	case KindSwipe:
		if r.Until != nil {
			return fmt.Errorf("swipe gesture does not support a scroll target")
		}
	case KindScroll:
		if r.Until != nil && (r.Percent != nil || r.Speed != nil) {
			return fmt.Errorf("scroll by percentage and scroll by condition cannot be mixed")
		}
	case KindPinch:
		if r.Direction != DirectionOpen && r.Direction != DirectionClose {
			return fmt.Errorf("pinch gesture does not support direction %q", r.Direction)
		}
		if r.Percent == nil {
			return fmt.Errorf("pinch gesture requires a percent")
		}
	case KindDrag:
		if r.DragTo == nil {
			return fmt.Errorf("drag requires either a coordinate or an object target")
		}
		if t, ok := r.DragTo.(ObjectTarget); ok {
			if t.Selector.IsZero() {
				return fmt.Errorf("drag object target has no criteria")
			}
			if err := t.Selector.Err(); err != nil {
				return err
			}
		}
		if r.Percent != nil || r.Until != nil || r.Margin != nil {
			return fmt.Errorf("drag gesture only accepts a target and a speed")
		}
	default:
		return fmt.Errorf("unknown gesture kind %q", r.Kind)
	}
	return nil
}

// Operation returns the remote operation the request maps to.
func (r GestureRequest) Operation() string {
	switch r.Kind {
	case KindFling:
		return OpFling
	case KindSwipe:
		return OpSwipeObj
	case KindScroll:
		switch {
		case r.Until != nil:
			return OpScrollUntil
		case r.Percent != nil || r.Speed != nil:
			return OpScroll
		default:
			return OpScrollUntilFinished
		}
	case KindPinch:
		if r.Direction == DirectionOpen {
			return OpPinchOpen
		}
		return OpPinchClose
	case KindDrag:
		if r.DragTo != nil {
			return r.DragTo.operation()
		}
		return OpDragObj
	}
	return string(r.Kind)
}

// Params renders the request as remote parameters. Unset fields are absent.
func (r GestureRequest) Params() map[string]interface{} {
	params := make(map[string]interface{})
	if r.Direction != "" && r.Kind != KindPinch {
		params["direction"] = string(r.Direction)
	}
	if r.Margin != nil {
		r.Margin.apply(params)
	}
	if r.Percent != nil {
		params["percent"] = *r.Percent
	} else if r.Kind == KindSwipe {
		params["percent"] = 0
	}
	if r.Speed != nil {
		params["speed"] = *r.Speed
	}
	if r.Until != nil {
		params["target"] = *r.Until
	}
	if r.DragTo != nil {
		r.DragTo.apply(params)
	}
	return params
}

// Gesture is an immutable builder for fling, swipe and scroll. Margin and
// MarginPercent return a new Gesture; the receiver is left untouched.
type Gesture struct {
	obj    *Object
	kind   GestureKind
	margin Margin
}

// Kind returns the gesture family.
func (g Gesture) Kind() GestureKind { return g.kind }

// Margin returns a builder with a pixel margin, replacing any percent margin.
func (g Gesture) Margin(px int) Gesture {
	g.margin = PixelMargin(px)
	return g
}

// MarginPercent returns a builder with a percent margin, replacing any pixel
// margin.
func (g Gesture) MarginPercent(p int) Gesture {
	g.margin = PercentMargin(p)
	return g
}

// Request assembles the request for dir without sending it.
func (g Gesture) Request(dir Direction, opts ...GestureOption) GestureRequest {
	req := GestureRequest{Kind: g.kind, Direction: dir, Margin: g.margin}
	for _, opt := range opts {
		opt(&req)
	}
	return req
}

// Down performs the gesture downwards.
func (g Gesture) Down(ctx context.Context, opts ...GestureOption) (bool, error) {
	return g.Toward(ctx, DirectionDown, opts...)
}

// Up performs the gesture upwards.
func (g Gesture) Up(ctx context.Context, opts ...GestureOption) (bool, error) {
	return g.Toward(ctx, DirectionUp, opts...)
}

// Left performs the gesture to the left.
func (g Gesture) Left(ctx context.Context, opts ...GestureOption) (bool, error) {
	return g.Toward(ctx, DirectionLeft, opts...)
}

// Right performs the gesture to the right.
func (g Gesture) Right(ctx context.Context, opts ...GestureOption) (bool, error) {
	return g.Toward(ctx, DirectionRight, opts...)
}

// Toward performs the gesture in dir.
func (g Gesture) Toward(ctx context.Context, dir Direction, opts ...GestureOption) (bool, error) {
	return g.obj.perform(ctx, g.Request(dir, opts...))
}

// Click scrolls in dir until target matches, then clicks it. It returns
// false without clicking when the target never appears.
func (g Gesture) Click(ctx context.Context, dir Direction, target Selector) (bool, error) {
	if g.kind != KindScroll {
		return false, g.obj.invalid("%s gesture does not support scroll-then-click", g.kind)
	}
	if target.IsZero() {
		return false, g.obj.invalid("target to scroll to is not defined")
	}
	found, err := g.Toward(ctx, dir, Until(target))
	if err != nil || !found {
		return false, err
	}
	return g.obj.callBool(ctx, target, OpClickObj, map[string]interface{}{"duration": nil})
}

// perform validates req and sends it. Scroll-until requests loop here, one
// Invoke per attempt.
func (o *Object) perform(ctx context.Context, req GestureRequest) (bool, error) {
	if err := req.Validate(); err != nil {
		return false, o.invalid("%v", err)
	}
	if req.Operation() == OpScrollUntil {
		return o.scrollUntil(ctx, req)
	}
	return o.callBool(ctx, o.sel, req.Operation(), req.Params())
}

// scrollUntil repeats the scroll until the target matches, the container
// reports its end, or the attempt and time budgets run out.
func (o *Object) scrollUntil(ctx context.Context, req GestureRequest) (bool, error) {
	deadline := time.Now().Add(o.opts.WaitTimeout)
	params := req.Params()

	for attempt := 1; attempt <= o.opts.MaxScrollAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, o.operationError(core.CodeTransport, OpScrollUntil, "scroll cancelled", err)
		}
		res, err := o.call(ctx, o.sel, OpScrollUntil, params)
		if err != nil {
			return false, err
		}
		if res.Reason == ReasonReachedEnd {
			logger.Debug("scroll %s reached end after %d attempts", req.Direction, attempt)
			return false, nil
		}
		found, err := res.Bool()
		if err != nil {
			return false, o.operationError(core.CodeBadResponse, OpScrollUntil, "unexpected payload", err)
		}
		if found {
			return true, nil
		}
		if time.Now().After(deadline) {
			break
		}
	}
	logger.Warn("scroll %s gave up looking for %s", req.Direction, req.Until)
	return false, nil
}

// Pinch builds pinch-open and pinch-close gestures.
type Pinch struct {
	obj *Object
}

// Open spreads two fingers over percent of the element.
func (p Pinch) Open(ctx context.Context, percent int, opts ...GestureOption) (bool, error) {
	return p.obj.perform(ctx, p.Request(DirectionOpen, percent, opts...))
}

// Close draws two fingers together over percent of the element.
func (p Pinch) Close(ctx context.Context, percent int, opts ...GestureOption) (bool, error) {
	return p.obj.perform(ctx, p.Request(DirectionClose, percent, opts...))
}

// Request assembles a pinch request without sending it.
func (p Pinch) Request(dir Direction, percent int, opts ...GestureOption) GestureRequest {
	req := GestureRequest{Kind: KindPinch, Direction: dir}
	for _, opt := range opts {
		opt(&req)
	}
	req.Percent = &percent
	return req
}

// Drag builds drag gestures.
type Drag struct {
	obj *Object
}

// To drags the element to target.
func (d Drag) To(ctx context.Context, target DragTarget, opts ...GestureOption) (bool, error) {
	return d.obj.perform(ctx, d.Request(target, opts...))
}

// Request assembles a drag request without sending it.
func (d Drag) Request(target DragTarget, opts ...GestureOption) GestureRequest {
	req := GestureRequest{Kind: KindDrag}
	for _, opt := range opts {
		opt(&req)
	}
	req.DragTo = target
	return req
}
