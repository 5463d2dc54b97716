// Package uiautomator provides a lazy UI object model over a remote
// UiAutomator snippet. An Object names "the element matching a selector" and
// re-resolves it on every access; nothing is cached between calls.
package uiautomator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Relation names used to derive one selector from another.
const (
	RelParent     = "parent"
	RelAncestor   = "ancestor"
	RelChild      = "child"
	RelDescendant = "descendant"
	RelSibling    = "sibling"
	RelBottom     = "bottom"
	RelLeft       = "left"
	RelRight      = "right"
	RelTop        = "top"
)

var relations = map[string]bool{
	RelParent: true, RelAncestor: true, RelChild: true, RelDescendant: true,
	RelSibling: true, RelBottom: true, RelLeft: true, RelRight: true, RelTop: true,
}

// Criterion is one name/value pair of a selector.
type Criterion struct {
	Name  string
	Value interface{} // string, bool or int
}

// Selector is an immutable description of which UI element(s) to target.
// Every builder method returns a new Selector; the receiver is never changed.
type Selector struct {
	criteria []Criterion
	relation string
	related  *Selector
	err      error
}

// By returns an empty selector.
func By() Selector {
	return Selector{}
}

// With returns a selector with the named criterion set. Setting an existing
// name replaces its value and keeps its position. Values other than string,
// bool and int are recorded as an error surfaced on first use.
func (s Selector) With(name string, value interface{}) Selector {
	if s.related != nil {
		related := s.related.With(name, value)
		s.related = &related
		return s
	}
	switch v := value.(type) {
	case string, bool:
	case int:
	case int64:
		value = int(v)
	case int32:
		value = int(v)
	case float64:
		if v != float64(int(v)) {
			return s.withErr(fmt.Errorf("criterion %q: non-integer number %v", name, v))
		}
		value = int(v)
	default:
		return s.withErr(fmt.Errorf("criterion %q: unsupported value type %T", name, value))
	}
	if relations[name] {
		return s.withErr(fmt.Errorf("criterion %q is a relation, use the relation methods", name))
	}

	criteria := make([]Criterion, 0, len(s.criteria)+1)
	replaced := false
	for _, c := range s.criteria {
		if c.Name == name {
			c.Value = value
			replaced = true
		}
		criteria = append(criteria, c)
	}
	if !replaced {
		criteria = append(criteria, Criterion{Name: name, Value: value})
	}
	s.criteria = criteria
	return s
}

func (s Selector) withErr(err error) Selector {
	if s.err == nil {
		s.err = err
	}
	return s
}

// Text matches the exact text.
func (s Selector) Text(v string) Selector { return s.With("text", v) }

// TextContains matches text containing v.
func (s Selector) TextContains(v string) Selector { return s.With("textContains", v) }

// TextStartsWith matches text starting with v.
func (s Selector) TextStartsWith(v string) Selector { return s.With("textStartsWith", v) }

// TextEndsWith matches text ending with v.
func (s Selector) TextEndsWith(v string) Selector { return s.With("textEndsWith", v) }

// TextMatches matches text against a regular expression.
func (s Selector) TextMatches(v string) Selector { return s.With("textMatches", v) }

// Desc matches the exact content description.
func (s Selector) Desc(v string) Selector { return s.With("desc", v) }

// DescContains matches a content description containing v.
func (s Selector) DescContains(v string) Selector { return s.With("descContains", v) }

// DescStartsWith matches a content description starting with v.
func (s Selector) DescStartsWith(v string) Selector { return s.With("descStartsWith", v) }

// DescEndsWith matches a content description ending with v.
func (s Selector) DescEndsWith(v string) Selector { return s.With("descEndsWith", v) }

// DescMatches matches the content description against a regular expression.
func (s Selector) DescMatches(v string) Selector { return s.With("descMatches", v) }

// Res matches the fully qualified resource id.
func (s Selector) Res(v string) Selector { return s.With("res", v) }

// ResMatches matches the resource id against a regular expression.
func (s Selector) ResMatches(v string) Selector { return s.With("resMatches", v) }

// Clazz matches the class name.
func (s Selector) Clazz(v string) Selector { return s.With("clazz", v) }

// ClazzMatches matches the class name against a regular expression.
func (s Selector) ClazzMatches(v string) Selector { return s.With("clazzMatches", v) }

// Pkg matches the application package.
func (s Selector) Pkg(v string) Selector { return s.With("pkg", v) }

// Checkable matches elements by whether they can be checked.
func (s Selector) Checkable(v bool) Selector { return s.With("checkable", v) }

// Checked matches elements by whether they are checked.
func (s Selector) Checked(v bool) Selector { return s.With("checked", v) }

// Clickable matches elements by whether they accept clicks.
func (s Selector) Clickable(v bool) Selector { return s.With("clickable", v) }

// Enabled matches elements by whether they are enabled.
func (s Selector) Enabled(v bool) Selector { return s.With("enabled", v) }

// Focusable matches elements by whether they can take focus.
func (s Selector) Focusable(v bool) Selector { return s.With("focusable", v) }

// Focused matches elements by whether they have focus.
func (s Selector) Focused(v bool) Selector { return s.With("focused", v) }

// LongClickable matches elements by whether they accept long clicks.
func (s Selector) LongClickable(v bool) Selector { return s.With("longClickable", v) }

// Scrollable matches elements by whether they can scroll.
func (s Selector) Scrollable(v bool) Selector { return s.With("scrollable", v) }

// Selected matches elements by whether they are selected.
func (s Selector) Selected(v bool) Selector { return s.With("selected", v) }

// Depth matches elements at the given hierarchy depth.
func (s Selector) Depth(v int) Selector { return s.With("depth", v) }

// Index matches the element at a position among its siblings.
func (s Selector) Index(v int) Selector { return s.With("index", v) }

// DisplayID matches elements on the given display.
func (s Selector) DisplayID(v int) Selector { return s.With("displayId", v) }

// relate derives a selector qualified by a relation. The relation is attached
// to the deepest level so chains read left to right.
func (s Selector) relate(relation string, target Selector) Selector {
	if s.related != nil {
		related := s.related.relate(relation, target)
		s.related = &related
		return s
	}
	if target.err != nil {
		s = s.withErr(target.err)
	}
	target.err = nil
	s.relation = relation
	s.related = &target
	return s
}

// Parent targets the parent of the matched element.
func (s Selector) Parent() Selector { return s.relate(RelParent, By()) }

// Ancestor targets the closest ancestor matching target.
func (s Selector) Ancestor(target Selector) Selector { return s.relate(RelAncestor, target) }

// Child targets a direct child matching target.
func (s Selector) Child(target Selector) Selector { return s.relate(RelChild, target) }

// Descendant targets any descendant matching target.
func (s Selector) Descendant(target Selector) Selector { return s.relate(RelDescendant, target) }

// Sibling targets an element sharing the parent of the matched element.
func (s Selector) Sibling(target Selector) Selector { return s.relate(RelSibling, target) }

// Bottom targets the closest match below the matched element.
func (s Selector) Bottom(target Selector) Selector { return s.relate(RelBottom, target) }

// Left targets the closest match left of the matched element.
func (s Selector) Left(target Selector) Selector { return s.relate(RelLeft, target) }

// Right targets the closest match right of the matched element.
func (s Selector) Right(target Selector) Selector { return s.relate(RelRight, target) }

// Top targets the closest match above the matched element.
func (s Selector) Top(target Selector) Selector { return s.relate(RelTop, target) }

// Err returns the first construction error, if any.
func (s Selector) Err() error {
	return s.err
}

// IsZero reports whether the selector has no criteria and no relation.
func (s Selector) IsZero() bool {
	return len(s.criteria) == 0 && s.related == nil
}

// Criteria returns a copy of the top-level criteria in insertion order.
func (s Selector) Criteria() []Criterion {
	out := make([]Criterion, len(s.criteria))
	copy(out, s.criteria)
	return out
}

// Get returns the top-level value for name.
func (s Selector) Get(name string) (interface{}, bool) {
	for _, c := range s.criteria {
		if c.Name == name {
			return c.Value, true
		}
	}
	return nil, false
}

// Map returns the wire dictionary handed to the remote side.
func (s Selector) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(s.criteria)+1)
	for _, c := range s.criteria {
		m[c.Name] = c.Value
	}
	if s.related != nil {
		m[s.relation] = s.related.Map()
	}
	return m
}

// Equal reports whether both selectors have the same criteria and relations,
// ignoring criterion order.
func (s Selector) Equal(o Selector) bool {
	if len(s.criteria) != len(o.criteria) || s.relation != o.relation {
		return false
	}
	for _, c := range s.criteria {
		v, ok := o.Get(c.Name)
		if !ok || v != c.Value {
			return false
		}
	}
	if (s.related == nil) != (o.related == nil) {
		return false
	}
	if s.related == nil {
		return true
	}
	return s.related.Equal(*o.related)
}

// String renders the selector for diagnostics, e.g. Selector{'text': 'OK'}.
func (s Selector) String() string {
	return "Selector" + s.render()
}

func (s Selector) render() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, c := range s.criteria {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "'%s': %s", c.Name, renderValue(c.Value))
	}
	if s.related != nil {
		if len(s.criteria) > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "'%s': %s", s.relation, s.related.render())
	}
	b.WriteByte('}')
	return b.String()
}

func renderValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(val, "'", `\'`) + "'"
	case bool:
		if val {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// MarshalJSON encodes the selector in insertion order.
func (s Selector) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range s.criteria {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONPair(&buf, c.Name, c.Value); err != nil {
			return nil, err
		}
	}
	if s.related != nil {
		if len(s.criteria) > 0 {
			buf.WriteByte(',')
		}
		related, err := s.related.MarshalJSON()
		if err != nil {
			return nil, err
		}
		key, _ := json.Marshal(s.relation)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(related)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSONPair(buf *bytes.Buffer, name string, value interface{}) error {
	key, err := json.Marshal(name)
	if err != nil {
		return err
	}
	val, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(key)
	buf.WriteByte(':')
	buf.Write(val)
	return nil
}

// UnmarshalJSON decodes a selector dictionary, keeping key order.
func (s *Selector) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	sel, err := decodeSelector(dec)
	if err != nil {
		return err
	}
	*s = sel
	return nil
}

func decodeSelector(dec *json.Decoder) (Selector, error) {
	tok, err := dec.Token()
	if err != nil {
		return Selector{}, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Selector{}, fmt.Errorf("selector: expected object, got %v", tok)
	}

	sel := By()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Selector{}, err
		}
		name, _ := tok.(string)

		if relations[name] {
			related, err := decodeSelector(dec)
			if err != nil {
				return Selector{}, err
			}
			sel = sel.relate(name, related)
			continue
		}

		var raw interface{}
		if err := dec.Decode(&raw); err != nil {
			return Selector{}, err
		}
		if n, ok := raw.(json.Number); ok {
			i, err := n.Int64()
			if err != nil {
				return Selector{}, fmt.Errorf("selector: criterion %q: %w", name, err)
			}
			raw = int(i)
		}
		sel = sel.With(name, raw)
	}
	if _, err := dec.Token(); err != nil {
		return Selector{}, err
	}
	return sel, sel.Err()
}
