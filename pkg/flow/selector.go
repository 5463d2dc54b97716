package flow

import (
	"fmt"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/uiautomator"
	"gopkg.in/yaml.v3"
)

// Selector is the YAML form of a UI object selector. A scalar value is
// shorthand for text.
type Selector struct {
	Text           string `yaml:"text"`
	TextContains   string `yaml:"textContains"`
	TextStartsWith string `yaml:"textStartsWith"`
	TextMatches    string `yaml:"textMatches"`
	Desc           string `yaml:"desc"`
	DescContains   string `yaml:"descContains"`
	Res            string `yaml:"res"`
	Clazz          string `yaml:"clazz"`
	Pkg            string `yaml:"pkg"`
	Index          *int   `yaml:"index"`

	Checked    *bool `yaml:"checked"`
	Clickable  *bool `yaml:"clickable"`
	Enabled    *bool `yaml:"enabled"`
	Focused    *bool `yaml:"focused"`
	Scrollable *bool `yaml:"scrollable"`
	Selected   *bool `yaml:"selected"`

	// Relative selectors anchor this selector to another object.
	ChildOf *Selector `yaml:"childOf"`
	Below   *Selector `yaml:"below"`
	Above   *Selector `yaml:"above"`
	LeftOf  *Selector `yaml:"leftOf"`
	RightOf *Selector `yaml:"rightOf"`
}

// selectorFields mirrors Selector for decoding without recursion into
// UnmarshalYAML.
type selectorFields Selector

// UnmarshalYAML accepts either a plain string (text) or a mapping.
func (s *Selector) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*s = Selector{Text: node.Value}
		return nil
	}
	var raw selectorFields
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*s = Selector(raw)
	return nil
}

// IsEmpty reports whether no criterion is set.
func (s *Selector) IsEmpty() bool {
	return s == nil || *s == (Selector{})
}

// Describe returns a short label for step descriptions.
func (s *Selector) Describe() string {
	switch {
	case s == nil:
		return ""
	case s.Text != "":
		return fmt.Sprintf("%q", s.Text)
	case s.Res != "":
		return "#" + s.Res
	case s.Desc != "":
		return "desc=" + fmt.Sprintf("%q", s.Desc)
	case s.TextContains != "":
		return fmt.Sprintf("*%s*", s.TextContains)
	case s.Clazz != "":
		return s.Clazz
	default:
		return "element"
	}
}

// Build converts the selector into device criteria. expand is applied to
// every string value.
func (s *Selector) Build(expand func(string) string) uiautomator.Selector {
	if expand == nil {
		expand = func(v string) string { return v }
	}
	sel := uiautomator.By()
	str := func(name, v string) {
		if v != "" {
			sel = sel.With(name, expand(v))
		}
	}
	flag := func(name string, v *bool) {
		if v != nil {
			sel = sel.With(name, *v)
		}
	}

	str("text", s.Text)
	str("textContains", s.TextContains)
	str("textStartsWith", s.TextStartsWith)
	str("textMatches", s.TextMatches)
	str("desc", s.Desc)
	str("descContains", s.DescContains)
	str("res", s.Res)
	str("clazz", s.Clazz)
	str("pkg", s.Pkg)
	flag("checked", s.Checked)
	flag("clickable", s.Clickable)
	flag("enabled", s.Enabled)
	flag("focused", s.Focused)
	flag("scrollable", s.Scrollable)
	flag("selected", s.Selected)
	if s.Index != nil {
		sel = sel.Index(*s.Index)
	}

	// The anchor becomes the base and this selector its related target.
	switch {
	case s.ChildOf != nil:
		return s.ChildOf.Build(expand).Child(sel)
	case s.Below != nil:
		return s.Below.Build(expand).Bottom(sel)
	case s.Above != nil:
		return s.Above.Build(expand).Top(sel)
	case s.LeftOf != nil:
		return s.LeftOf.Build(expand).Left(sel)
	case s.RightOf != nil:
		return s.RightOf.Build(expand).Right(sel)
	}
	return sel
}
