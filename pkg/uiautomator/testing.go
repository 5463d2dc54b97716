package uiautomator

import (
	"context"
	"fmt"
	"sync"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/core"
)

// Call records one request received by a FakeRemote.
type Call struct {
	Selector Selector
	Op       string
	Params   map[string]interface{}
}

// FakeRemote is an in-memory Remote for tests. Unset funcs answer with no
// matches for Count and Info and an acknowledged true for Invoke.
type FakeRemote struct {
	CountFunc  func(sel Selector) (int, error)
	InfoFunc   func(sel Selector) (*Info, error)
	InvokeFunc func(sel Selector, op string, params map[string]interface{}) (Result, error)

	mu    sync.Mutex
	calls []Call
}

// NewFakeRemote creates a FakeRemote where every selector matches n elements
// and Info returns info.
func NewFakeRemote(n int, info *Info) *FakeRemote {
	return &FakeRemote{
		CountFunc: func(Selector) (int, error) { return n, nil },
		InfoFunc: func(sel Selector) (*Info, error) {
			if n == 0 || info == nil {
				return nil, fmt.Errorf("%s: %w", sel, core.ErrNotFound)
			}
			c := *info
			return &c, nil
		},
		InvokeFunc: func(Selector, string, map[string]interface{}) (Result, error) {
			if n == 0 {
				return Result{Reason: ReasonNotFound}, nil
			}
			return BoolResult(true), nil
		},
	}
}

func (f *FakeRemote) record(sel Selector, op string, params map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Selector: sel, Op: op, Params: params})
}

// Calls returns a copy of the recorded calls.
func (f *FakeRemote) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// LastCall returns the most recent call, or a zero Call.
func (f *FakeRemote) LastCall() Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return Call{}
	}
	return f.calls[len(f.calls)-1]
}

// Invoke implements Remote.
func (f *FakeRemote) Invoke(ctx context.Context, sel Selector, op string, params map[string]interface{}) (Result, error) {
	f.record(sel, op, params)
	if f.InvokeFunc == nil {
		return BoolResult(true), nil
	}
	return f.InvokeFunc(sel, op, params)
}

// Info implements Remote.
func (f *FakeRemote) Info(ctx context.Context, sel Selector) (*Info, error) {
	f.record(sel, "info", nil)
	if f.InfoFunc == nil {
		return nil, core.ErrNotFound
	}
	return f.InfoFunc(sel)
}

// Count implements Remote.
func (f *FakeRemote) Count(ctx context.Context, sel Selector) (int, error) {
	f.record(sel, "count", nil)
	if f.CountFunc == nil {
		return 0, nil
	}
	return f.CountFunc(sel)
}
