// Package validator checks flow files before anything touches a device.
// It parses every file up front, checks script references, and collects all
// errors instead of stopping at the first one.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/flow"
	"github.com/dop251/goja"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Step    string // Step description, empty for file-level errors
	Message string
}

func (e *ValidationError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Flows are the parsed flows that passed the tag filters, in file order.
	Flows []*flow.Flow
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates flow files.
type Validator struct {
	includeTags []string
	excludeTags []string
}

// New creates a new Validator.
func New(includeTags, excludeTags []string) *Validator {
	return &Validator{
		includeTags: includeTags,
		excludeTags: excludeTags,
	}
}

// Validate validates files and directories. Directories are searched
// recursively for .yaml and .yml files.
func (v *Validator) Validate(paths ...string) *Result {
	result := &Result{}
	seen := make(map[string]bool)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			result.addf(path, "", "cannot access: %v", err)
			continue
		}

		files := []string{path}
		if info.IsDir() {
			files, err = collectFlowFiles(path)
			if err != nil {
				result.addf(path, "", "failed to scan directory: %v", err)
				continue
			}
		}
		for _, file := range files {
			if seen[file] {
				continue
			}
			seen[file] = true
			v.validateFile(file, result)
		}
	}
	return result
}

// collectFlowFiles finds all .yaml/.yml files in a directory.
func collectFlowFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func (v *Validator) validateFile(file string, result *Result) {
	f, err := flow.ParseFile(file)
	if err != nil {
		result.Errors = append(result.Errors, err)
		return
	}
	if !flow.ShouldIncludeFlow(f, v.includeTags, v.excludeTags) {
		return
	}

	before := len(result.Errors)
	dir := filepath.Dir(file)
	v.validateSteps(f.Config.OnStart, file, dir, result)
	v.validateSteps(f.Steps, file, dir, result)
	v.validateSteps(f.Config.OnEnd, file, dir, result)
	if len(result.Errors) == before {
		result.Flows = append(result.Flows, f)
	}
}

// validateSteps checks script references and inline scripts, descending
// into repeat blocks.
func (v *Validator) validateSteps(steps []flow.Step, file, dir string, result *Result) {
	for _, step := range steps {
		switch s := step.(type) {
		case *flow.RunScriptStep:
			if hasExpression(s.File) {
				continue
			}
			path := resolveFilePath(dir, s.File)
			src, err := os.ReadFile(path)
			if err != nil {
				result.addf(file, s.Describe(), "script not readable: %v", err)
				continue
			}
			if _, err := goja.Compile(path, string(src), false); err != nil {
				result.addf(file, s.Describe(), "script does not compile: %v", err)
			}

		case *flow.EvalScriptStep:
			src := strings.TrimSpace(s.Script)
			if strings.HasPrefix(src, "${") && strings.HasSuffix(src, "}") {
				src = src[2 : len(src)-1]
			}
			if _, err := goja.Compile("", src, false); err != nil {
				result.addf(file, s.Describe(), "script does not compile: %v", err)
			}

		case *flow.RepeatStep:
			v.validateSteps(s.Steps, file, dir, result)
		}
	}
}

func (r *Result) addf(file, step, format string, args ...interface{}) {
	r.Errors = append(r.Errors, &ValidationError{
		File:    file,
		Step:    step,
		Message: fmt.Sprintf(format, args...),
	})
}

// hasExpression reports whether path is only known at run time.
func hasExpression(path string) bool {
	return strings.Contains(path, "${")
}

// resolveFilePath resolves a file path relative to a base directory.
func resolveFilePath(baseDir, filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}
	return filepath.Join(baseDir, filePath)
}
