package executor

import (
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/core"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/flow"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/logger"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/report"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/uiautomator"
)

// maxWhileIterations bounds a repeat step driven only by a while selector.
const maxWhileIterations = 100

// scriptError marks failures raised by flow scripts.
type scriptError struct {
	err error
}

func (e *scriptError) Error() string { return e.err.Error() }
func (e *scriptError) Unwrap() error { return e.err }

// execute runs step against the device. Compound steps return the
// commands of their nested steps.
//
//nolint:gocyclo
func (fr *FlowRunner) execute(step flow.Step) ([]report.Command, error) {
	ctx := fr.ctx
	timeout := fr.stepTimeout(step)

	switch s := step.(type) {
	case *flow.TapOnStep:
		return nil, fr.tapOn(s, timeout)

	case *flow.LongPressOnStep:
		obj := fr.object(&s.Selector, nil)
		if err := obj.Wait().AssertExists(ctx, "", timeout); err != nil {
			return nil, err
		}
		return nil, fr.performed(obj, "long click")(obj.LongClick(ctx))

	case *flow.InputTextStep:
		obj := fr.object(s.Selector, focused)
		if err := obj.Wait().AssertExists(ctx, "", timeout); err != nil {
			return nil, err
		}
		return nil, fr.performed(obj, "set text")(obj.SetText(ctx, fr.script.ExpandVariables(s.Value)))

	case *flow.EraseTextStep:
		obj := fr.object(s.Selector, focused)
		if err := obj.Wait().AssertExists(ctx, "", timeout); err != nil {
			return nil, err
		}
		return nil, fr.performed(obj, "clear text")(obj.ClearText(ctx))

	case *flow.GestureStep:
		return nil, fr.gesture(s)

	case *flow.ScrollUntilVisibleStep:
		return nil, fr.scrollUntilVisible(s)

	case *flow.DragStep:
		obj := fr.object(&s.Selector, nil)
		if err := obj.Wait().AssertExists(ctx, "", timeout); err != nil {
			return nil, err
		}
		var target uiautomator.DragTarget
		if s.To != nil {
			target = uiautomator.ToObject(s.To.Build(fr.script.ExpandVariables))
		} else {
			target = uiautomator.ToPoint(*s.ToX, *s.ToY)
		}
		var opts []uiautomator.GestureOption
		if s.Speed != nil {
			opts = append(opts, uiautomator.Speed(*s.Speed))
		}
		return nil, fr.performed(obj, "drag")(obj.Drag().To(ctx, target, opts...))

	case *flow.PinchStep:
		obj := fr.object(&s.Selector, nil)
		if err := obj.Wait().AssertExists(ctx, "", timeout); err != nil {
			return nil, err
		}
		var opts []uiautomator.GestureOption
		if s.Speed != nil {
			opts = append(opts, uiautomator.Speed(*s.Speed))
		}
		if strings.EqualFold(s.Direction, "open") {
			return nil, fr.performed(obj, "pinch open")(obj.Pinch().Open(ctx, s.Percent, opts...))
		}
		return nil, fr.performed(obj, "pinch close")(obj.Pinch().Close(ctx, s.Percent, opts...))

	case *flow.AssertVisibleStep:
		return nil, fr.object(&s.Selector, nil).Wait().AssertExists(ctx, s.Label(), timeout)

	case *flow.AssertNotVisibleStep:
		return nil, fr.object(&s.Selector, nil).Wait().AssertGone(ctx, s.Label(), timeout)

	case *flow.WaitUntilStep:
		if s.Visible != nil {
			return nil, fr.object(s.Visible, nil).Wait().AssertExists(ctx, s.Label(), timeout)
		}
		return nil, fr.object(s.NotVisible, nil).Wait().AssertGone(ctx, s.Label(), timeout)

	case *flow.RepeatStep:
		return fr.repeat(s)

	case *flow.RunScriptStep:
		if err := fr.script.RunFile(fr.script.ExpandVariables(s.File), s.Env); err != nil {
			return nil, &scriptError{err: err}
		}
		return nil, nil

	case *flow.EvalScriptStep:
		if err := fr.script.Eval(s.Script); err != nil {
			return nil, &scriptError{err: err}
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported step type: %s", step.Type())
}

func focused() uiautomator.Selector { return uiautomator.By().Focused(true) }

func scrollable() uiautomator.Selector { return uiautomator.By().Scrollable(true) }

// object builds a handle for sel, falling back to fallback when sel is
// empty.
func (fr *FlowRunner) object(sel *flow.Selector, fallback func() uiautomator.Selector) *uiautomator.Object {
	if sel.IsEmpty() && fallback != nil {
		return fr.device.UI(fallback())
	}
	return fr.device.UI(sel.Build(fr.script.ExpandVariables))
}

func (fr *FlowRunner) stepTimeout(step flow.Step) time.Duration {
	if ms := step.Timeout(); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fr.device.Options().WaitTimeout
}

// performed turns a (done, err) pair into an error when the remote side
// answered false.
func (fr *FlowRunner) performed(obj *uiautomator.Object, action string) func(bool, error) error {
	return func(ok bool, err error) error {
		if err != nil {
			return err
		}
		if !ok {
			return &core.OperationError{
				Code:     core.CodeProtocol,
				Selector: obj.Selector().String(),
				Device:   fr.device.Options().Device,
				Message:  action + " was not performed",
			}
		}
		return nil
	}
}

func (fr *FlowRunner) tapOn(s *flow.TapOnStep, timeout time.Duration) error {
	ctx := fr.ctx
	obj := fr.object(&s.Selector, nil)
	if err := obj.Wait().AssertExists(ctx, "", timeout); err != nil {
		return err
	}

	times := s.Repeat
	if times <= 0 {
		times = 1
	}
	for i := 0; i < times; i++ {
		if i > 0 && s.DelayMs > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(s.DelayMs) * time.Millisecond):
			}
		}
		var err error
		switch {
		case s.WaitNewMs > 0:
			err = fr.performed(obj, "click and wait")(obj.ClickAndWait(ctx, time.Duration(s.WaitNewMs)*time.Millisecond))
		case s.LongPress:
			err = fr.performed(obj, "long click")(obj.LongClick(ctx))
		case s.DurationMs > 0:
			err = fr.performed(obj, "click")(obj.Click(ctx, uiautomator.WithDuration(time.Duration(s.DurationMs)*time.Millisecond)))
		default:
			err = fr.performed(obj, "click")(obj.Click(ctx))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (fr *FlowRunner) gesture(s *flow.GestureStep) error {
	obj := fr.object(s.Selector, scrollable)
	var g uiautomator.Gesture
	switch s.Type() {
	case flow.StepSwipe:
		g = obj.Swipe()
	case flow.StepFling:
		g = obj.Fling()
	default:
		g = obj.Scroll()
	}
	if s.Margin != nil {
		g = g.Margin(*s.Margin)
	}
	if s.MarginPercent != nil {
		g = g.MarginPercent(*s.MarginPercent)
	}

	var opts []uiautomator.GestureOption
	if s.Percent != nil {
		opts = append(opts, uiautomator.Percent(*s.Percent))
	}
	if s.Speed != nil {
		opts = append(opts, uiautomator.Speed(*s.Speed))
	}

	// A false result only means the container had nothing left to move.
	moved, err := g.Toward(fr.ctx, uiautomator.Direction(strings.ToUpper(s.Direction)), opts...)
	if err != nil {
		return err
	}
	logger.Debug("%s %s on %s: moved=%v", s.Type(), s.Direction, obj, moved)
	return nil
}

func (fr *FlowRunner) scrollUntilVisible(s *flow.ScrollUntilVisibleStep) error {
	container := fr.object(s.Container, scrollable)
	target := s.Element.Build(fr.script.ExpandVariables)
	dir := uiautomator.DirectionDown
	if s.Direction != "" {
		dir = uiautomator.Direction(strings.ToUpper(s.Direction))
	}

	var found bool
	var err error
	if s.Tap {
		found, err = container.Scroll().Click(fr.ctx, dir, target)
	} else {
		found, err = container.Scroll().Toward(fr.ctx, dir, uiautomator.Until(target))
	}
	if err != nil {
		return err
	}
	if !found {
		return &core.SearchError{
			Selector: target.String(),
			Device:   fr.device.Options().Device,
			Message:  fmt.Sprintf("scrolled %s in %s", strings.ToLower(string(dir)), container.Selector()),
		}
	}
	return nil
}

// repeat runs nested steps Times times, or while its selector matches.
func (fr *FlowRunner) repeat(s *flow.RepeatStep) ([]report.Command, error) {
	var subs []report.Command
	limit := s.Times
	if limit <= 0 {
		limit = maxWhileIterations
	}

	for i := 0; i < limit; i++ {
		if s.While != nil {
			present, err := fr.object(s.While, nil).Exists(fr.ctx)
			if err != nil {
				return subs, err
			}
			if !present {
				return subs, nil
			}
		}
		for _, nested := range s.Steps {
			cmd, err := fr.executeStep(len(subs), nested)
			subs = append(subs, cmd)
			if err != nil && !nested.IsOptional() {
				return subs, fmt.Errorf("iteration %d: %w", i+1, err)
			}
		}
	}
	return subs, nil
}
