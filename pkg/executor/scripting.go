package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/jsengine"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/uiautomator"
)

// envVarPattern matches ALL_CAPS names that look like env variables.
var envVarPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{2,}$`)

// exprPattern matches ${...} expressions inside step values.
var exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ScriptEngine holds flow variables and the JavaScript runtime of a flow.
type ScriptEngine struct {
	js        *jsengine.Engine
	variables map[string]string
	flowDir   string // directory of the flow, for relative script paths
}

// NewScriptEngine creates a script engine whose ui() global drives device.
func NewScriptEngine(ctx context.Context, device *uiautomator.Device, stdout io.Writer) *ScriptEngine {
	js := jsengine.New(device)
	js.SetContext(ctx)
	js.SetStdout(stdout)
	return &ScriptEngine{js: js, variables: make(map[string]string)}
}

// SetFlowDir sets the directory relative script paths resolve against.
func (se *ScriptEngine) SetFlowDir(dir string) {
	se.flowDir = dir
}

// SetVariable sets a variable in both the Go map and the JS runtime.
func (se *ScriptEngine) SetVariable(name, value string) {
	se.variables[name] = value
	se.js.SetVariable(name, value)
}

// SetVariables sets multiple variables.
func (se *ScriptEngine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		se.SetVariable(k, v)
	}
}

// ImportSystemEnv copies upper-case environment variables into the engine.
func (se *ScriptEngine) ImportSystemEnv() {
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if ok && envVarPattern.MatchString(name) {
			se.SetVariable(name, value)
		}
	}
}

// GetVariable returns a variable value.
func (se *ScriptEngine) GetVariable(name string) string {
	return se.variables[name]
}

// GetOutput returns the JS output object.
func (se *ScriptEngine) GetOutput() map[string]interface{} {
	return se.js.GetOutput()
}

// ExpandVariables replaces every ${expr} in text. A plain variable name is
// looked up first; anything else is evaluated as JavaScript. Expressions
// that fail to evaluate are left untouched.
func (se *ScriptEngine) ExpandVariables(text string) string {
	if !strings.Contains(text, "${") {
		return text
	}
	return exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-1])
		if v, ok := se.variables[expr]; ok {
			return v
		}
		result, err := se.js.Eval(expr)
		if err != nil || result == nil {
			return match
		}
		return fmt.Sprintf("%v", result)
	})
}

// ResolvePath resolves a relative path against the flow directory.
func (se *ScriptEngine) ResolvePath(path string) string {
	if filepath.IsAbs(path) || se.flowDir == "" {
		return path
	}
	return filepath.Join(se.flowDir, path)
}

// RunFile runs a script file with extra variables set first.
func (se *ScriptEngine) RunFile(path string, env map[string]string) error {
	for k, v := range env {
		se.SetVariable(k, se.ExpandVariables(v))
	}
	return se.js.RunFile(se.ResolvePath(path))
}

// Eval runs an inline script. A ${...} wrapper around the whole script is
// stripped.
func (se *ScriptEngine) Eval(script string) error {
	return se.js.RunScript(extractJS(script))
}

// Interrupt aborts a running script.
func (se *ScriptEngine) Interrupt(reason string) {
	se.js.Interrupt(reason)
}

// extractJS extracts JavaScript from a ${...} wrapper if present.
func extractJS(script string) string {
	script = strings.TrimSpace(script)
	if strings.HasPrefix(script, "${") && strings.HasSuffix(script, "}") {
		return script[2 : len(script)-1]
	}
	return script
}
