package uiautomator

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSelectorString(t *testing.T) {
	tests := []struct {
		name string
		sel  Selector
		want string
	}{
		{"empty", By(), "Selector{}"},
		{"text", By().Text("Example"), "Selector{'text': 'Example'}"},
		{
			name: "insertion order",
			sel:  By().Res("com.example:id/ok").Text("OK").Clickable(true),
			want: "Selector{'res': 'com.example:id/ok', 'text': 'OK', 'clickable': True}",
		},
		{"int value", By().Clazz("android.widget.Button").Index(2), "Selector{'clazz': 'android.widget.Button', 'index': 2}"},
		{"quote escaping", By().Text("it's"), `Selector{'text': 'it\'s'}`},
		{
			name: "child relation",
			sel:  By().Text("List").Child(By().Text("Item")),
			want: "Selector{'text': 'List', 'child': {'text': 'Item'}}",
		},
		{"parent relation", By().Text("Item").Parent(), "Selector{'text': 'Item', 'parent': {}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sel.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSelectorImmutable(t *testing.T) {
	base := By().Text("A")
	derived := base.Clickable(true)
	_ = base.Child(By().Text("B"))

	if base.String() != "Selector{'text': 'A'}" {
		t.Errorf("base was modified: %s", base)
	}
	if derived.String() != "Selector{'text': 'A', 'clickable': True}" {
		t.Errorf("unexpected derived selector: %s", derived)
	}
}

func TestSelectorReplaceKeepsPosition(t *testing.T) {
	sel := By().Text("A").Res("r").Text("B")
	if got := sel.String(); got != "Selector{'text': 'B', 'res': 'r'}" {
		t.Errorf("String() = %q", got)
	}
}

func TestSelectorEqual(t *testing.T) {
	a := By().Text("OK").Clickable(true)
	b := By().Clickable(true).Text("OK")
	if !a.Equal(b) {
		t.Error("selectors with the same criteria in different order should be equal")
	}
	if a.Equal(By().Text("OK")) {
		t.Error("selectors with different criteria should not be equal")
	}
	if a.Equal(By().Text("OK").Clickable(false)) {
		t.Error("selectors with different values should not be equal")
	}
	if By().Text("A").Child(By().Text("B")).Equal(By().Text("A").Sibling(By().Text("B"))) {
		t.Error("different relations should not be equal")
	}
	if !By().Text("A").Child(By().Text("B")).Equal(By().Text("A").Child(By().Text("B"))) {
		t.Error("identical relations should be equal")
	}
}

func TestSelectorRelationChain(t *testing.T) {
	sel := By().Text("A").Child(By().Text("B")).Sibling(By().Text("C"))
	m := sel.Map()
	child, ok := m["child"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected child map, got %v", m)
	}
	if child["text"] != "B" {
		t.Errorf("expected child text B, got %v", child["text"])
	}
	sibling, ok := child["sibling"].(map[string]interface{})
	if !ok || sibling["text"] != "C" {
		t.Errorf("expected sibling nested under child, got %v", child)
	}
}

func TestSelectorInvalidValue(t *testing.T) {
	sel := By().With("text", []string{"a"})
	if sel.Err() == nil {
		t.Fatal("expected error for unsupported value type")
	}
	if By().With("child", "x").Err() == nil {
		t.Error("expected error when using a relation name as a criterion")
	}
	if By().With("index", 1.5).Err() == nil {
		t.Error("expected error for non-integer number")
	}
	if err := By().With("index", float64(3)).Err(); err != nil {
		t.Errorf("unexpected error for integral float: %v", err)
	}
}

func TestSelectorJSONRoundTripKeepsOrder(t *testing.T) {
	data := []byte(`{"res":"id/list","text":"Row","depth":3,"checked":false,"child":{"clazz":"TextView"}}`)
	var sel Selector
	if err := json.Unmarshal(data, &sel); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Selector{'res': 'id/list', 'text': 'Row', 'depth': 3, 'checked': False, 'child': {'clazz': 'TextView'}}"
	if got := sel.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	out, err := json.Marshal(sel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != string(data) {
		t.Errorf("Marshal() = %s, want %s", out, data)
	}
}

func TestSelectorUnmarshalRejectsNonObject(t *testing.T) {
	var sel Selector
	if err := json.Unmarshal([]byte(`["text"]`), &sel); err == nil {
		t.Error("expected error for array input")
	}
}

func TestSelectorCriteriaCopy(t *testing.T) {
	sel := By().Text("A")
	c := sel.Criteria()
	c[0].Value = "changed"
	if v, _ := sel.Get("text"); v != "A" {
		t.Errorf("Criteria() exposed internal state, text = %v", v)
	}
	if !strings.Contains(sel.String(), "'A'") {
		t.Errorf("unexpected rendering %s", sel)
	}
}
