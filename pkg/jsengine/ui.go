package jsengine

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/uiautomator"
	"github.com/dop251/goja"
)

// uiFunc returns the ui({...}) global.
func (e *Engine) uiFunc() func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if e.device == nil {
			panic(e.runtime.NewTypeError("ui() requires a connected device"))
		}
		sel := e.selectorArg(call.Argument(0))
		return e.wrapObject(e.device.UI(sel))
	}
}

// selectorArg converts a JS object into a Selector, keeping property order.
func (e *Engine) selectorArg(v goja.Value) uiautomator.Selector {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		panic(e.runtime.NewTypeError("selector object required"))
	}
	obj := v.ToObject(e.runtime)
	sel := uiautomator.By()
	for _, key := range obj.Keys() {
		sel = sel.With(key, obj.Get(key).Export())
	}
	if err := sel.Err(); err != nil {
		panic(e.runtime.NewGoError(err))
	}
	return sel
}

// check throws err into the script.
func (e *Engine) check(err error) {
	if err != nil {
		panic(e.runtime.NewGoError(err))
	}
}

func (e *Engine) millis(v goja.Value) time.Duration {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0
	}
	return time.Duration(v.ToInteger()) * time.Millisecond
}

// gestureOptions reads {percent, speed, margin, marginPercent, until}.
func (e *Engine) gestureOptions(g uiautomator.Gesture, v goja.Value) (uiautomator.Gesture, []uiautomator.GestureOption) {
	var opts []uiautomator.GestureOption
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return g, opts
	}
	obj := v.ToObject(e.runtime)
	for _, key := range obj.Keys() {
		val := obj.Get(key)
		switch key {
		case "percent":
			opts = append(opts, uiautomator.Percent(int(val.ToInteger())))
		case "speed":
			opts = append(opts, uiautomator.Speed(int(val.ToInteger())))
		case "margin":
			g = g.Margin(int(val.ToInteger()))
		case "marginPercent":
			g = g.MarginPercent(int(val.ToInteger()))
		case "until":
			opts = append(opts, uiautomator.Until(e.selectorArg(val)))
		default:
			panic(e.runtime.NewTypeError(fmt.Sprintf("unknown gesture option %q", key)))
		}
	}
	return g, opts
}

func (e *Engine) direction(v goja.Value) uiautomator.Direction {
	return uiautomator.Direction(strings.ToUpper(v.String()))
}

// wrapObject exposes an Object's operations as JS methods.
func (e *Engine) wrapObject(o *uiautomator.Object) *goja.Object {
	rt := e.runtime
	js := rt.NewObject()

	boolCall := func(fn func() (bool, error)) goja.Value {
		ok, err := fn()
		e.check(err)
		return rt.ToValue(ok)
	}

	js.Set("selector", o.Selector().String())
	js.Set("exists", func(goja.FunctionCall) goja.Value {
		return boolCall(func() (bool, error) { return o.Exists(e.ctx) })
	})
	js.Set("count", func(goja.FunctionCall) goja.Value {
		n, err := o.Count(e.ctx)
		e.check(err)
		return rt.ToValue(n)
	})
	js.Set("info", func(goja.FunctionCall) goja.Value {
		info, err := o.Info(e.ctx)
		e.check(err)
		return e.toJS(info)
	})
	js.Set("text", func(goja.FunctionCall) goja.Value {
		text, err := o.Text(e.ctx)
		e.check(err)
		return rt.ToValue(text)
	})
	js.Set("click", func(goja.FunctionCall) goja.Value {
		return boolCall(func() (bool, error) { return o.Click(e.ctx) })
	})
	js.Set("longClick", func(goja.FunctionCall) goja.Value {
		return boolCall(func() (bool, error) { return o.LongClick(e.ctx) })
	})
	js.Set("setText", func(call goja.FunctionCall) goja.Value {
		return boolCall(func() (bool, error) { return o.SetText(e.ctx, call.Argument(0).String()) })
	})
	js.Set("clearText", func(goja.FunctionCall) goja.Value {
		return boolCall(func() (bool, error) { return o.ClearText(e.ctx) })
	})
	js.Set("assertExists", func(call goja.FunctionCall) goja.Value {
		e.check(o.Wait().AssertExists(e.ctx, call.Argument(0).String(), e.millis(call.Argument(1))))
		return goja.Undefined()
	})
	js.Set("waitExists", func(call goja.FunctionCall) goja.Value {
		return rt.ToValue(o.Wait().Exists(e.ctx, e.millis(call.Argument(0))))
	})
	js.Set("waitGone", func(call goja.FunctionCall) goja.Value {
		return rt.ToValue(o.Wait().Gone(e.ctx, e.millis(call.Argument(0))))
	})

	gesture := func(base func() uiautomator.Gesture) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			g, opts := e.gestureOptions(base(), call.Argument(1))
			return boolCall(func() (bool, error) { return g.Toward(e.ctx, e.direction(call.Argument(0)), opts...) })
		}
	}
	js.Set("scroll", gesture(o.Scroll))
	js.Set("swipe", gesture(o.Swipe))
	js.Set("fling", gesture(o.Fling))

	js.Set("child", func(call goja.FunctionCall) goja.Value {
		return e.wrapObject(o.Child(e.selectorArg(call.Argument(0))))
	})
	js.Set("sibling", func(call goja.FunctionCall) goja.Value {
		return e.wrapObject(o.Sibling(e.selectorArg(call.Argument(0))))
	})
	return js
}

// toJS converts a Go value to a JS value by way of its JSON form, so field
// names match the wire names.
func (e *Engine) toJS(v interface{}) goja.Value {
	data, err := json.Marshal(v)
	e.check(err)
	var generic interface{}
	e.check(json.Unmarshal(data, &generic))
	return e.runtime.ToValue(generic)
}
