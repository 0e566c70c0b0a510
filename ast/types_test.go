package ast

import "testing"

func TestPositionIsValid(t *testing.T) {
	tests := []struct {
		name     string
		pos      Position
		expected bool
	}{
		{"zero position", Position{}, false},
		{"valid position", Position{Offset: 0, Line: 1, Column: 1}, true},
		{"zero line", Position{Offset: 10, Line: 0, Column: 5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pos.IsValid(); got != tt.expected {
				t.Errorf("Position.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestPositionString(t *testing.T) {
	if got := NewPosition(12, 3, 7).String(); got != "3:7" {
		t.Errorf("String() = %q, want 3:7", got)
	}
}

func TestRangeIsValid(t *testing.T) {
	tests := []struct {
		name     string
		r        Range
		expected bool
	}{
		{"zero range", Range{}, false},
		{"valid range", Range{
			Start: Position{Offset: 0, Line: 1, Column: 1},
			End:   Position{Offset: 10, Line: 1, Column: 11},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.IsValid(); got != tt.expected {
				t.Errorf("Range.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNodeTypes(t *testing.T) {
	var _ Node = &GoCode{}
	var _ Node = &Element{}
	var _ Node = &Text{}
	var _ Node = &Comment{}
	var _ Node = &Expression{}
	var _ Node = &Fragment{}
	var _ Node = &ControlIf{}
	var _ Node = &ControlFor{}
	var _ Node = &ControlWhile{}
	var _ Node = &ControlSwitch{}
	var _ Node = &ControlTry{}
	var _ Node = &ComponentCall{}
	var _ Node = &ClientComponentCall{}
}

func TestSplitBuiltins(t *testing.T) {
	attrs := []*Attribute{
		{Name: "class", Kind: AttrString, Value: "a"},
		{Name: "@async", Kind: AttrBuiltin, Bare: true},
		{Name: "id", Kind: AttrExpression},
		{Name: "@escaping", Kind: AttrBuiltin, Value: "none"},
	}

	regular, builtins := SplitBuiltins(attrs)
	if len(regular) != 2 || regular[0].Name != "class" || regular[1].Name != "id" {
		t.Errorf("regular = %v", names(regular))
	}
	if len(builtins) != 2 || builtins[0].Name != "@async" || builtins[1].Name != "@escaping" {
		t.Errorf("builtins = %v", names(builtins))
	}

	if a := FindAttribute(attrs, "@escaping"); a == nil || a.Value != "none" {
		t.Errorf("FindAttribute(@escaping) = %v", a)
	}
	if a := FindAttribute(attrs, "missing"); a != nil {
		t.Errorf("FindAttribute(missing) = %v, want nil", a)
	}
}

func TestExpressionAccessors(t *testing.T) {
	elem := &Element{Tag: "p"}

	tests := []struct {
		name       string
		expr       *Expression
		wantCode   string
		wantIsCode bool
		wantMarkup bool
		wantEmpty  bool
	}{
		{
			name:       "plain code",
			expr:       &Expression{Segments: []Node{&GoCode{Value: "user.Name"}}},
			wantCode:   "user.Name",
			wantIsCode: true,
		},
		{
			name:       "comment only",
			expr:       &Expression{Segments: []Node{&GoCode{Value: " /* note */ "}}},
			wantCode:   " /* note */ ",
			wantIsCode: true,
			wantEmpty:  true,
		},
		{
			name:       "markup only",
			expr:       &Expression{Segments: []Node{&GoCode{Value: " "}, elem, &GoCode{Value: "\n"}}},
			wantMarkup: true,
		},
		{
			name: "markup inside code",
			expr: &Expression{Segments: []Node{&GoCode{Value: "wrap("}, elem, &GoCode{Value: ")"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := tt.expr.Code()
			if ok != tt.wantIsCode || code != tt.wantCode {
				t.Errorf("Code() = %q, %v; want %q, %v", code, ok, tt.wantCode, tt.wantIsCode)
			}
			if _, ok := tt.expr.Markup(); ok != tt.wantMarkup {
				t.Errorf("Markup() ok = %v, want %v", ok, tt.wantMarkup)
			}
			if got := tt.expr.IsEmpty(); got != tt.wantEmpty {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.wantEmpty)
			}
		})
	}
}

func TestIsCommentOnly(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"   ", true},
		{"// note", true},
		{"/* a */ /* b */", true},
		{"// a\n// b\n", true},
		{"/* open", false},
		{"x // trailing", false},
		{"/* a */ x", false},
	}

	for _, tt := range tests {
		if got := IsCommentOnly(tt.in); got != tt.want {
			t.Errorf("IsCommentOnly(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWalk(t *testing.T) {
	inner := &Element{Tag: "li"}
	tree := &Element{
		Tag: "ul",
		Children: []Node{
			&ControlFor{
				Header: "_, x := range xs",
				Body:   inner,
			},
			&ControlIf{
				Branches: []IfBranch{{Condition: "ok", Body: &Text{Value: "yes"}}},
				Else:     &Fragment{Implicit: true, Children: []Node{&Text{Value: "no"}}},
			},
		},
	}

	var tags []string
	count := 0
	Walk(tree, func(n Node) bool {
		count++
		if e, ok := n.(*Element); ok {
			tags = append(tags, e.Tag)
		}
		return true
	})

	// ul, for, li, if, text, fragment, text
	if count != 7 {
		t.Errorf("visited %d nodes, want 7", count)
	}
	if len(tags) != 2 || tags[0] != "ul" || tags[1] != "li" {
		t.Errorf("tags = %v, want [ul li]", tags)
	}

	count = 0
	Walk(tree, func(n Node) bool {
		count++
		_, isFor := n.(*ControlFor)
		return !isFor
	})
	if count != 6 {
		t.Errorf("visited %d nodes with for skipped, want 6", count)
	}
}

func TestBodyChildren(t *testing.T) {
	text := &Text{Value: "a"}
	if got := BodyChildren(text); len(got) != 1 || got[0] != text {
		t.Errorf("BodyChildren(single) = %v", got)
	}

	frag := &Fragment{Implicit: true, Children: []Node{text, text}}
	if got := BodyChildren(frag); len(got) != 2 {
		t.Errorf("BodyChildren(implicit) = %d nodes, want 2", len(got))
	}

	explicit := &Fragment{Children: []Node{text, text}}
	if got := BodyChildren(explicit); len(got) != 1 {
		t.Errorf("BodyChildren(explicit) = %d nodes, want 1", len(got))
	}

	if got := BodyChildren(nil); got != nil {
		t.Errorf("BodyChildren(nil) = %v, want nil", got)
	}
}

func TestFileImportPath(t *testing.T) {
	f := &File{Imports: []Import{{Alias: "ui", Path: "example.com/app/ui"}}}
	if p, ok := f.ImportPath("ui"); !ok || p != "example.com/app/ui" {
		t.Errorf("ImportPath(ui) = %q, %v", p, ok)
	}
	if _, ok := f.ImportPath("other"); ok {
		t.Error("ImportPath(other) found, want missing")
	}
}

func names(attrs []*Attribute) []string {
	var out []string
	for _, a := range attrs {
		out = append(out, a.Name)
	}
	return out
}
