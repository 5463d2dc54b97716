package validator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestValidate_SingleFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"login.yaml": `name: Login
---
- tapOn: "Login"
- inputText: "username"
`,
	})

	result := New(nil, nil).Validate(filepath.Join(dir, "login.yaml"))
	if !result.IsValid() {
		t.Fatalf("expected valid result, got errors: %v", result.Errors)
	}
	if len(result.Flows) != 1 || result.Flows[0].Config.Name != "Login" {
		t.Errorf("unexpected flows %+v", result.Flows)
	}
}

func TestValidate_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"flow1.yaml":       `- tapOn: "Button1"`,
		"nested/flow2.yml": `- tapOn: "Button2"`,
		"notes.txt":        "not a flow",
		"nested/helper.js": "output.ok = true;",
	})

	result := New(nil, nil).Validate(dir)
	if !result.IsValid() {
		t.Fatalf("expected valid result, got errors: %v", result.Errors)
	}
	if len(result.Flows) != 2 {
		t.Errorf("expected 2 flows, got %d", len(result.Flows))
	}
}

func TestValidate_DeduplicatesPaths(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.yaml": `- tapOn: A`})

	result := New(nil, nil).Validate(dir, filepath.Join(dir, "a.yaml"))
	if len(result.Flows) != 1 {
		t.Errorf("expected the file once, got %d flows", len(result.Flows))
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"bad.yaml":     `- bogusStep: x`,
		"missing.yaml": `- runScript: nope.js`,
		"broken.yaml":  `- evalScript: "${output.x = }"`,
		"good.yaml":    `- tapOn: OK`,
	})

	result := New(nil, nil).Validate(dir, filepath.Join(dir, "absent.yaml"))
	if result.IsValid() {
		t.Fatal("expected errors")
	}
	if len(result.Errors) != 4 {
		t.Fatalf("expected 4 errors, got %d: %v", len(result.Errors), result.Errors)
	}

	joined := ""
	for _, err := range result.Errors {
		joined += err.Error() + "\n"
	}
	for _, want := range []string{
		"unknown step type: bogusStep",
		"runScript nope.js: script not readable",
		"evalScript",
		"absent.yaml: cannot access",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("errors should mention %q:\n%s", want, joined)
		}
	}
	if len(result.Flows) != 1 {
		t.Errorf("only the valid flow should be returned, got %d", len(result.Flows))
	}
}

func TestValidate_ScriptReferences(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"scripts/setup.js":  "output.ready = true;",
		"scripts/broken.js": "function (",
		"flow.yaml": `onFlowStart:
  - runScript: scripts/setup.js
---
- repeat:
    times: 2
    commands:
      - runScript: scripts/broken.js
- runScript: ${SCRIPT_DIR}/later.js
`,
	})

	result := New(nil, nil).Validate(filepath.Join(dir, "flow.yaml"))
	if len(result.Errors) != 1 {
		t.Fatalf("expected one error, got %v", result.Errors)
	}
	var verr *ValidationError
	if e, ok := result.Errors[0].(*ValidationError); ok {
		verr = e
	}
	if verr == nil || !strings.Contains(verr.Message, "does not compile") || verr.Step != "runScript scripts/broken.js" {
		t.Errorf("unexpected error %v", result.Errors[0])
	}
	if len(result.Flows) != 0 {
		t.Error("an invalid flow should not be returned")
	}
}

func TestValidate_TagFilters(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"smoke.yaml": "tags: [smoke]\n---\n- tapOn: A\n",
		"slow.yaml":  "tags: [slow]\n---\n- runScript: missing.js\n",
		"plain.yaml": "- tapOn: B\n",
	})

	tests := []struct {
		name    string
		include []string
		exclude []string
		want    int
		valid   bool
	}{
		{"no filters", nil, nil, 2, false},
		{"include smoke", []string{"smoke"}, nil, 1, true},
		{"exclude slow", nil, []string{"slow"}, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := New(tt.include, tt.exclude).Validate(dir)
			if len(result.Flows) != tt.want {
				t.Errorf("flows = %d, want %d", len(result.Flows), tt.want)
			}
			if result.IsValid() != tt.valid {
				t.Errorf("valid = %v, errors %v", result.IsValid(), result.Errors)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{File: "a.yaml", Message: "boom"}
	if err.Error() != "a.yaml: boom" {
		t.Errorf("got %q", err.Error())
	}
	err.Step = "tapOn OK"
	if err.Error() != "a.yaml: tapOn OK: boom" {
		t.Errorf("got %q", err.Error())
	}
}
