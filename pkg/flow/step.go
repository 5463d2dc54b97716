package flow

import "fmt"

// StepType names a step in a flow file.
type StepType string

// Step type constants.
const (
	// Interaction
	StepTapOn       StepType = "tapOn"
	StepLongPressOn StepType = "longPressOn"
	StepInputText   StepType = "inputText"
	StepEraseText   StepType = "eraseText"

	// Gestures
	StepScroll             StepType = "scroll"
	StepSwipe              StepType = "swipe"
	StepFling              StepType = "fling"
	StepScrollUntilVisible StepType = "scrollUntilVisible"
	StepDrag               StepType = "drag"
	StepPinch              StepType = "pinch"

	// Assertions and waits
	StepAssertVisible    StepType = "assertVisible"
	StepAssertNotVisible StepType = "assertNotVisible"
	StepWaitUntil        StepType = "extendedWaitUntil"

	// Flow control
	StepRepeat     StepType = "repeat"
	StepRunScript  StepType = "runScript"
	StepEvalScript StepType = "evalScript"
)

// Step is implemented by every flow step.
type Step interface {
	Type() StepType
	IsOptional() bool
	Label() string
	Describe() string
	Timeout() int
	base() *BaseStep
}

// BaseStep holds the fields shared by all steps.
type BaseStep struct {
	StepType  StepType `yaml:"-"`
	Optional  bool     `yaml:"optional"`
	StepLabel string   `yaml:"label"`
	TimeoutMs int      `yaml:"timeout"`
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// IsOptional reports whether a failure of the step is tolerated.
func (b *BaseStep) IsOptional() bool { return b.Optional }

// Timeout returns the step timeout in ms, 0 when unset.
func (b *BaseStep) Timeout() int { return b.TimeoutMs }

// Label returns the step label.
func (b *BaseStep) Label() string { return b.StepLabel }

// Describe returns the label or the step type.
func (b *BaseStep) Describe() string {
	if b.StepLabel != "" {
		return b.StepLabel
	}
	return string(b.StepType)
}

func (b *BaseStep) describe(detail string) string {
	if b.StepLabel != "" || detail == "" {
		return b.Describe()
	}
	return string(b.StepType) + " " + detail
}

// TapOnStep clicks an element once it is visible.
type TapOnStep struct {
	BaseStep   `yaml:",inline"`
	Selector   Selector `yaml:",inline"`
	LongPress  bool     `yaml:"longPress"`
	DurationMs int      `yaml:"duration"`         // hold time of the click
	WaitNewMs  int      `yaml:"waitForNewWindow"` // click and wait for a new window
	Repeat     int      `yaml:"repeat"`
	DelayMs    int      `yaml:"delay"` // pause between repeats
}

// Describe returns a human-readable description.
func (s *TapOnStep) Describe() string { return s.describe(s.Selector.Describe()) }

// LongPressOnStep long clicks an element.
type LongPressOnStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// Describe returns a human-readable description.
func (s *LongPressOnStep) Describe() string { return s.describe(s.Selector.Describe()) }

// InputTextStep replaces the text of an editable element. Without a
// selector the focused element is used.
type InputTextStep struct {
	BaseStep `yaml:",inline"`
	Value    string    `yaml:"value"`
	Selector *Selector `yaml:"selector"`
}

// Describe returns a human-readable description.
func (s *InputTextStep) Describe() string { return s.describe(fmt.Sprintf("%q", s.Value)) }

// EraseTextStep clears an editable element, the focused one by default.
type EraseTextStep struct {
	BaseStep `yaml:",inline"`
	Selector *Selector `yaml:"selector"`
}

// Describe returns a human-readable description.
func (s *EraseTextStep) Describe() string { return s.describe(s.Selector.Describe()) }

// GestureStep covers scroll, swipe and fling. Without a selector the first
// scrollable element is used.
type GestureStep struct {
	BaseStep      `yaml:",inline"`
	Direction     string    `yaml:"direction"`
	Selector      *Selector `yaml:"selector"`
	Percent       *int      `yaml:"percent"`
	Speed         *int      `yaml:"speed"`
	Margin        *int      `yaml:"margin"`
	MarginPercent *int      `yaml:"marginPercent"`
}

// Describe returns a human-readable description.
func (s *GestureStep) Describe() string { return s.describe(s.Direction) }

// ScrollUntilVisibleStep scrolls a container until an element matches.
type ScrollUntilVisibleStep struct {
	BaseStep  `yaml:",inline"`
	Element   Selector  `yaml:"element"`
	Direction string    `yaml:"direction"`
	Container *Selector `yaml:"container"`
	Tap       bool      `yaml:"tap"` // click the element once found
}

// Describe returns a human-readable description.
func (s *ScrollUntilVisibleStep) Describe() string { return s.describe(s.Element.Describe()) }

// DragStep drags an element to a point or onto another element.
type DragStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector  `yaml:",inline"`
	ToX      *int      `yaml:"toX"`
	ToY      *int      `yaml:"toY"`
	To       *Selector `yaml:"to"`
	Speed    *int      `yaml:"speed"`
}

// Describe returns a human-readable description.
func (s *DragStep) Describe() string { return s.describe(s.Selector.Describe()) }

// PinchStep pinches an element open or closed.
type PinchStep struct {
	BaseStep  `yaml:",inline"`
	Selector  Selector `yaml:",inline"`
	Direction string   `yaml:"direction"` // open or close
	Percent   int      `yaml:"percent"`
	Speed     *int     `yaml:"speed"`
}

// Describe returns a human-readable description.
func (s *PinchStep) Describe() string { return s.describe(s.Direction) }

// AssertVisibleStep waits for an element to appear.
type AssertVisibleStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// Describe returns a human-readable description.
func (s *AssertVisibleStep) Describe() string { return s.describe(s.Selector.Describe()) }

// AssertNotVisibleStep waits for an element to disappear.
type AssertNotVisibleStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// Describe returns a human-readable description.
func (s *AssertNotVisibleStep) Describe() string { return s.describe(s.Selector.Describe()) }

// WaitUntilStep waits for one element to appear or another to disappear.
type WaitUntilStep struct {
	BaseStep   `yaml:",inline"`
	Visible    *Selector `yaml:"visible"`
	NotVisible *Selector `yaml:"notVisible"`
}

// Describe returns a human-readable description.
func (s *WaitUntilStep) Describe() string {
	if s.Visible != nil {
		return s.describe("visible " + s.Visible.Describe())
	}
	return s.describe("notVisible " + s.NotVisible.Describe())
}

// RepeatStep runs nested steps a number of times, or until a selector
// stops matching when While is set.
type RepeatStep struct {
	BaseStep `yaml:",inline"`
	Times    int       `yaml:"times"`
	While    *Selector `yaml:"while"`
	Steps    []Step    `yaml:"-"`
}

// RunScriptStep runs a JavaScript file relative to the flow.
type RunScriptStep struct {
	BaseStep `yaml:",inline"`
	File     string            `yaml:"file"`
	Env      map[string]string `yaml:"env"`
}

// Describe returns a human-readable description.
func (s *RunScriptStep) Describe() string { return s.describe(s.File) }

// EvalScriptStep evaluates an inline JavaScript expression.
type EvalScriptStep struct {
	BaseStep `yaml:",inline"`
	Script   string `yaml:"script"`
}

func (b *BaseStep) base() *BaseStep { return b }
