package flow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseError reports a malformed flow file with its location.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseFile reads and parses a flow file.
func ParseFile(path string) (*Flow, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided flow file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses flow content. sourcePath is used in errors and to resolve
// script files.
func Parse(data []byte, sourcePath string) (*Flow, error) {
	parts := splitYAMLDocuments(string(data))
	if len(parts) == 0 {
		return nil, &ParseError{Path: sourcePath, Line: 1, Message: "empty flow file"}
	}

	f := &Flow{SourcePath: sourcePath}
	steps := parts[0]
	if len(parts) > 1 {
		if err := parseConfig(parts[0], f); err != nil {
			return nil, err
		}
		steps = parts[1]
	}
	if err := parseSteps(steps, f); err != nil {
		return nil, err
	}
	if len(f.Steps) == 0 {
		return nil, &ParseError{Path: sourcePath, Message: "flow has no steps"}
	}
	return f, nil
}

// splitYAMLDocuments splits content on "---" separators that are not part
// of a block scalar.
func splitYAMLDocuments(content string) []string {
	var parts []string
	var current strings.Builder
	inBlock := false
	blockIndent := 0

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		indent := len(line) - len(strings.TrimLeft(line, " \t"))

		if inBlock && trimmed != "" && indent < blockIndent {
			inBlock = false
		}
		if !inBlock && isBlockScalarStart(trimmed) && i+1 < len(lines) {
			next := lines[i+1]
			inBlock = true
			blockIndent = len(next) - len(strings.TrimLeft(next, " \t"))
		}

		if !inBlock && strings.TrimRight(line, " \t\r") == "---" {
			if strings.TrimSpace(current.String()) != "" {
				parts = append(parts, current.String())
			}
			current.Reset()
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
	}

	if strings.TrimSpace(current.String()) != "" {
		parts = append(parts, current.String())
	}
	return parts
}

func isBlockScalarStart(trimmed string) bool {
	for _, suffix := range []string{"|", ">", "|-", ">-", "|+", ">+"} {
		if strings.HasSuffix(trimmed, suffix) {
			return true
		}
	}
	return false
}

func parseConfig(content string, f *Flow) error {
	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return &ParseError{Path: f.SourcePath, Message: fmt.Sprintf("invalid config: %v", err)}
	}

	var hooks struct {
		OnFlowStart    []yaml.Node `yaml:"onFlowStart"`
		OnFlowComplete []yaml.Node `yaml:"onFlowComplete"`
	}
	if err := yaml.Unmarshal([]byte(content), &hooks); err != nil {
		return &ParseError{Path: f.SourcePath, Message: fmt.Sprintf("invalid config: %v", err)}
	}
	var err error
	if config.OnStart, err = parseNodes(hooks.OnFlowStart, f.SourcePath); err != nil {
		return err
	}
	if config.OnEnd, err = parseNodes(hooks.OnFlowComplete, f.SourcePath); err != nil {
		return err
	}

	f.Config = config
	return nil
}

func parseSteps(content string, f *Flow) error {
	var nodes []yaml.Node
	if err := yaml.Unmarshal([]byte(content), &nodes); err != nil {
		return &ParseError{Path: f.SourcePath, Message: fmt.Sprintf("invalid steps: %v", err)}
	}
	steps, err := parseNodes(nodes, f.SourcePath)
	if err != nil {
		return err
	}
	f.Steps = steps
	return nil
}

func parseNodes(nodes []yaml.Node, sourcePath string) ([]Step, error) {
	var steps []Step
	for i := range nodes {
		step, err := parseStep(&nodes[i], sourcePath)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func parseStep(node *yaml.Node, sourcePath string) (Step, error) {
	// "- eraseText" with no parameters
	if node.Kind == yaml.ScalarNode {
		if !isStepType(node.Value) {
			return nil, &ParseError{Path: sourcePath, Line: node.Line, Message: fmt.Sprintf("unknown step type: %s", node.Value)}
		}
		return decodeStep(StepType(node.Value), &yaml.Node{Kind: yaml.MappingNode, Line: node.Line}, sourcePath)
	}

	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{Path: sourcePath, Line: node.Line, Message: "step must be a mapping or step name"}
	}
	if len(node.Content) != 2 {
		return nil, &ParseError{Path: sourcePath, Line: node.Line, Message: "step must have exactly one type key"}
	}
	key, value := node.Content[0], node.Content[1]
	if !isStepType(key.Value) {
		return nil, &ParseError{Path: sourcePath, Line: key.Line, Message: fmt.Sprintf("unknown step type: %s", key.Value)}
	}
	return decodeStep(StepType(key.Value), value, sourcePath)
}

func isStepType(key string) bool {
	switch StepType(key) {
	case StepTapOn, StepLongPressOn, StepInputText, StepEraseText,
		StepScroll, StepSwipe, StepFling, StepScrollUntilVisible, StepDrag, StepPinch,
		StepAssertVisible, StepAssertNotVisible, StepWaitUntil,
		StepRepeat, StepRunScript, StepEvalScript:
		return true
	}
	return false
}

// decodeInto decodes a mapping into v, or hands a scalar to shorthand.
func decodeInto(node *yaml.Node, v interface{}, shorthand func(string)) error {
	if node.Kind == yaml.ScalarNode {
		if shorthand == nil {
			return fmt.Errorf("expected a mapping, got %q", node.Value)
		}
		shorthand(node.Value)
		return nil
	}
	return node.Decode(v)
}

//nolint:gocyclo
func decodeStep(stepType StepType, node *yaml.Node, sourcePath string) (Step, error) {
	var step Step
	var err error

	switch stepType {
	case StepTapOn:
		s := &TapOnStep{}
		err = decodeInto(node, s, func(v string) { s.Selector.Text = v })
		step = s
	case StepLongPressOn:
		s := &LongPressOnStep{}
		err = decodeInto(node, s, func(v string) { s.Selector.Text = v })
		step = s
	case StepInputText:
		s := &InputTextStep{}
		err = decodeInto(node, s, func(v string) { s.Value = v })
		step = s
	case StepEraseText:
		s := &EraseTextStep{}
		err = decodeInto(node, s, nil)
		step = s
	case StepScroll, StepSwipe, StepFling:
		s := &GestureStep{}
		err = decodeInto(node, s, func(v string) { s.Direction = v })
		step = s
	case StepScrollUntilVisible:
		s := &ScrollUntilVisibleStep{}
		err = decodeInto(node, s, func(v string) { s.Element.Text = v })
		step = s
	case StepDrag:
		s := &DragStep{}
		err = decodeInto(node, s, nil)
		step = s
	case StepPinch:
		s := &PinchStep{}
		err = decodeInto(node, s, func(v string) { s.Direction = v })
		step = s
	case StepAssertVisible:
		s := &AssertVisibleStep{}
		err = decodeInto(node, s, func(v string) { s.Selector.Text = v })
		step = s
	case StepAssertNotVisible:
		s := &AssertNotVisibleStep{}
		err = decodeInto(node, s, func(v string) { s.Selector.Text = v })
		step = s
	case StepWaitUntil:
		s := &WaitUntilStep{}
		err = decodeInto(node, s, nil)
		step = s
	case StepRunScript:
		s := &RunScriptStep{}
		err = decodeInto(node, s, func(v string) { s.File = v })
		step = s
	case StepEvalScript:
		s := &EvalScriptStep{}
		err = decodeInto(node, s, func(v string) { s.Script = v })
		step = s
	case StepRepeat:
		step, err = parseRepeatStep(node, sourcePath)
		if err != nil {
			return nil, err
		}
	default:
		return nil, &ParseError{Path: sourcePath, Line: node.Line, Message: fmt.Sprintf("unknown step type: %s", stepType)}
	}
	if err != nil {
		return nil, wrapParseError(sourcePath, node.Line, err)
	}

	step.base().StepType = stepType
	if msg := validateStep(step); msg != "" {
		return nil, &ParseError{Path: sourcePath, Line: node.Line, Message: fmt.Sprintf("%s: %s", stepType, msg)}
	}
	return step, nil
}

// parseRepeatStep handles repeat with nested commands.
func parseRepeatStep(node *yaml.Node, sourcePath string) (Step, error) {
	var raw struct {
		Times    int         `yaml:"times"`
		While    *Selector   `yaml:"while"`
		Commands []yaml.Node `yaml:"commands"`
		Optional bool        `yaml:"optional"`
		Label    string      `yaml:"label"`
	}
	if err := decodeInto(node, &raw, nil); err != nil {
		return nil, wrapParseError(sourcePath, node.Line, err)
	}

	steps, err := parseNodes(raw.Commands, sourcePath)
	if err != nil {
		return nil, err
	}
	return &RepeatStep{
		BaseStep: BaseStep{Optional: raw.Optional, StepLabel: raw.Label},
		Times:    raw.Times,
		While:    raw.While,
		Steps:    steps,
	}, nil
}

var gestureDirections = map[string]bool{"up": true, "down": true, "left": true, "right": true}

// validateStep checks what decoding alone cannot and returns a message
// describing the first problem.
func validateStep(step Step) string {
	switch s := step.(type) {
	case *TapOnStep:
		if s.Selector.IsEmpty() {
			return "needs a selector"
		}
		if s.WaitNewMs > 0 && (s.LongPress || s.DurationMs > 0) {
			return "waitForNewWindow cannot be combined with longPress or duration"
		}
	case *LongPressOnStep:
		if s.Selector.IsEmpty() {
			return "needs a selector"
		}
	case *AssertVisibleStep:
		if s.Selector.IsEmpty() {
			return "needs a selector"
		}
	case *AssertNotVisibleStep:
		if s.Selector.IsEmpty() {
			return "needs a selector"
		}
	case *GestureStep:
		if !gestureDirections[strings.ToLower(s.Direction)] {
			return fmt.Sprintf("direction must be up, down, left or right, got %q", s.Direction)
		}
	case *ScrollUntilVisibleStep:
		if s.Element.IsEmpty() {
			return "needs an element"
		}
		if s.Direction != "" && !gestureDirections[strings.ToLower(s.Direction)] {
			return fmt.Sprintf("direction must be up, down, left or right, got %q", s.Direction)
		}
	case *DragStep:
		if s.Selector.IsEmpty() {
			return "needs a selector"
		}
		if s.To == nil && (s.ToX == nil || s.ToY == nil) {
			return "needs toX and toY or a to selector"
		}
		if s.To != nil && (s.ToX != nil || s.ToY != nil) {
			return "to cannot be combined with toX or toY"
		}
	case *PinchStep:
		if s.Selector.IsEmpty() {
			return "needs a selector"
		}
		if d := strings.ToLower(s.Direction); d != "open" && d != "close" {
			return fmt.Sprintf("direction must be open or close, got %q", s.Direction)
		}
	case *WaitUntilStep:
		if (s.Visible == nil) == (s.NotVisible == nil) {
			return "needs exactly one of visible or notVisible"
		}
	case *RepeatStep:
		if s.Times <= 0 && s.While == nil {
			return "needs times or while"
		}
		if len(s.Steps) == 0 {
			return "needs commands"
		}
	case *RunScriptStep:
		if s.File == "" {
			return "needs a file"
		}
	case *EvalScriptStep:
		if strings.TrimSpace(s.Script) == "" {
			return "needs a script"
		}
	}
	return ""
}

func wrapParseError(path string, line int, err error) error {
	return &ParseError{Path: path, Line: line, Message: err.Error()}
}

// ParseDirectory parses every .yaml and .yml file under dir, keeping the
// flows that pass the tag filters.
func ParseDirectory(dir string, includeTags, excludeTags []string) ([]*Flow, error) {
	var flows []*Flow
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		f, err := ParseFile(path)
		if err != nil {
			return err
		}
		if ShouldIncludeFlow(f, includeTags, excludeTags) {
			flows = append(flows, f)
		}
		return nil
	})
	return flows, err
}

// ShouldIncludeFlow applies tag filters. A flow must carry one of
// includeTags, when given, and none of excludeTags.
func ShouldIncludeFlow(f *Flow, includeTags, excludeTags []string) bool {
	has := func(tags []string) bool {
		for _, tag := range f.Config.Tags {
			for _, want := range tags {
				if tag == want {
					return true
				}
			}
		}
		return false
	}
	if len(includeTags) > 0 && !has(includeTags) {
		return false
	}
	return !has(excludeTags)
}
