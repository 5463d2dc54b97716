// Package jsengine runs JavaScript automation scripts against a device.
// Scripts get a ui() global that builds lazy UI object handles.
package jsengine

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/logger"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/uiautomator"
	"github.com/dop251/goja"
)

// Engine wraps a goja runtime bound to one device.
type Engine struct {
	runtime *goja.Runtime
	device  *uiautomator.Device
	ctx     context.Context
	stdout  io.Writer
	output  map[string]interface{}
	mu      sync.Mutex
}

// New creates an engine. A nil device leaves ui() throwing on use.
func New(device *uiautomator.Device) *Engine {
	e := &Engine{
		runtime: goja.New(),
		device:  device,
		ctx:     context.Background(),
		stdout:  os.Stdout,
		output:  make(map[string]interface{}),
	}
	e.setupBuiltins()
	return e
}

// SetContext sets the context used by every device call made from scripts.
func (e *Engine) SetContext(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ctx = ctx
}

// SetStdout redirects console.log output.
func (e *Engine) SetStdout(w io.Writer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stdout = w
}

func (e *Engine) setupBuiltins() {
	e.setupConsole()

	e.runtime.Set("sleep", func(call goja.FunctionCall) goja.Value {
		ms := call.Argument(0).ToInteger()
		select {
		case <-e.ctx.Done():
			panic(e.runtime.NewGoError(e.ctx.Err()))
		case <-time.After(time.Duration(ms) * time.Millisecond):
		}
		return goja.Undefined()
	})

	e.runtime.Set("output", e.output)
	e.runtime.Set("ui", e.uiFunc())
}

// setupConsole adds console.log, console.error and console.warn.
func (e *Engine) setupConsole() {
	makeConsoleFunc := func(prefix string, logf func(string, ...interface{})) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = fmt.Sprintf("%v", arg.Export())
			}
			line := strings.Join(parts, " ")
			if prefix != "" {
				line = prefix + " " + line
			}
			fmt.Fprintln(e.stdout, line)
			logf("script: %s", line)
			return goja.Undefined()
		}
	}

	console := e.runtime.NewObject()
	console.Set("log", makeConsoleFunc("", logger.Info))
	console.Set("error", makeConsoleFunc("ERROR:", logger.Error))
	console.Set("warn", makeConsoleFunc("WARN:", logger.Warn))
	e.runtime.Set("console", console)
}

// SetVariable sets a variable accessible in JS as a global
func (e *Engine) SetVariable(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runtime.Set(name, value)
}

// GetOutput returns a copy of the output object filled by the script.
func (e *Engine) GetOutput() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	source := e.output
	if v := e.runtime.Get("output"); v != nil && !goja.IsUndefined(v) {
		if m, ok := v.Export().(map[string]interface{}); ok {
			source = m
		}
	}
	result := make(map[string]interface{}, len(source))
	for k, v := range source {
		result[k] = v
	}
	return result
}

// Eval evaluates a JavaScript expression and returns the result
func (e *Engine) Eval(script string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.runtime.RunString(script)
	if err != nil {
		return nil, fmt.Errorf("JS eval error: %w", err)
	}
	return result.Export(), nil
}

// RunScript runs a JavaScript file/script
func (e *Engine) RunScript(script string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.runtime.RunString(script); err != nil {
		return fmt.Errorf("JS runtime error: %w", err)
	}
	return nil
}

// RunFile reads and runs a script file.
func (e *Engine) RunFile(path string) error {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided script
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	return e.RunScript(string(data))
}

// Interrupt aborts a running script.
func (e *Engine) Interrupt(reason string) {
	e.runtime.Interrupt(reason)
}
