package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/germtb/zx/ast"
	"github.com/germtb/zx/lexer"
)

func TestParseSimpleElement(t *testing.T) {
	file := mustParse(t, `<box></box>`)

	if len(file.Nodes) != 1 {
		t.Fatalf("Expected 1 node, got %d", len(file.Nodes))
	}
	elem, ok := file.Nodes[0].(*ast.Element)
	if !ok {
		t.Fatalf("Expected Element, got %T", file.Nodes[0])
	}
	if elem.Tag != "box" {
		t.Errorf("Expected tag 'box', got %q", elem.Tag)
	}
	if elem.SelfClosing {
		t.Error("Expected non-self-closing element")
	}
}

func TestParseSelfClosingElement(t *testing.T) {
	elem := firstNode(t, `<input />`).(*ast.Element)
	if !elem.SelfClosing {
		t.Error("Expected self-closing element")
	}
}

func TestParseAttributes(t *testing.T) {
	elem := firstNode(t, `<button class="btn" id={id} disabled onClick={handle} @escaping="none"></button>`).(*ast.Element)

	tests := []struct {
		name string
		kind ast.AttributeKind
		bare bool
	}{
		{"class", ast.AttrString, false},
		{"id", ast.AttrExpression, false},
		{"disabled", ast.AttrBoolean, true},
		{"onClick", ast.AttrEventHandler, false},
		{"@escaping", ast.AttrBuiltin, false},
	}

	if len(elem.Attributes) != len(tests) {
		t.Fatalf("got %d attributes, want %d", len(elem.Attributes), len(tests))
	}
	for i, tt := range tests {
		a := elem.Attributes[i]
		if a.Name != tt.name || a.Kind != tt.kind || a.Bare != tt.bare {
			t.Errorf("attr[%d] = {%s %v bare=%v}, want {%s %v bare=%v}", i, a.Name, a.Kind, a.Bare, tt.name, tt.kind, tt.bare)
		}
	}

	if elem.Attributes[0].Value != "btn" {
		t.Errorf("class value = %q, want btn", elem.Attributes[0].Value)
	}
	if code, _ := elem.Attributes[1].Expr.Code(); code != "id" {
		t.Errorf("id expression = %q, want id", code)
	}
	if elem.Attributes[4].Value != "none" {
		t.Errorf("@escaping value = %q, want none", elem.Attributes[4].Value)
	}
}

func TestParseTextAndExpressionChildren(t *testing.T) {
	elem := firstNode(t, `<p>Hello {name}!</p>`).(*ast.Element)

	if len(elem.Children) != 3 {
		t.Fatalf("got %d children, want 3", len(elem.Children))
	}
	if text, ok := elem.Children[0].(*ast.Text); !ok || text.Value != "Hello " {
		t.Errorf("children[0] = %#v, want Text(Hello )", elem.Children[0])
	}
	expr, ok := elem.Children[1].(*ast.Expression)
	if !ok {
		t.Fatalf("children[1] = %T, want Expression", elem.Children[1])
	}
	if code, _ := expr.Code(); code != "name" {
		t.Errorf("expression = %q, want name", code)
	}
}

func TestParseMarkupInsideExpression(t *testing.T) {
	elem := firstNode(t, `<ul>{render(<li>a</li>)}</ul>`).(*ast.Element)

	expr := elem.Children[0].(*ast.Expression)
	if len(expr.Segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(expr.Segments))
	}
	if _, ok := expr.Segments[1].(*ast.Element); !ok {
		t.Errorf("segments[1] = %T, want Element", expr.Segments[1])
	}
	if _, ok := expr.Code(); ok {
		t.Error("Code() reported plain code for an expression with markup")
	}
}

func TestParseGoCodeAndMarkup(t *testing.T) {
	src := `package main

import (
	"fmt"
	ui "example.com/app/components"
)

func App() zx.Component {
	return <div>{fmt.Sprint(1)}</div>
}
`
	file := mustParse(t, src)

	if file.Package != "main" {
		t.Errorf("Package = %q, want main", file.Package)
	}
	if len(file.Imports) != 2 {
		t.Fatalf("got %d imports, want 2", len(file.Imports))
	}
	if file.Imports[1].Alias != "ui" || file.Imports[1].Path != "example.com/app/components" {
		t.Errorf("imports[1] = %+v", file.Imports[1])
	}
	if file.Imports[0].Alias != "fmt" {
		t.Errorf("imports[0].Alias = %q, want fmt", file.Imports[0].Alias)
	}

	if len(file.Nodes) != 3 {
		t.Fatalf("got %d nodes, want 3", len(file.Nodes))
	}
	if _, ok := file.Nodes[0].(*ast.GoCode); !ok {
		t.Errorf("nodes[0] = %T, want GoCode", file.Nodes[0])
	}
	if _, ok := file.Nodes[1].(*ast.Element); !ok {
		t.Errorf("nodes[1] = %T, want Element", file.Nodes[1])
	}
}

func TestParseComponentCall(t *testing.T) {
	node := firstNode(t, `<Card title="x" count={2} @async @fallback={<p>loading</p>}>body</Card>`)

	call, ok := node.(*ast.ComponentCall)
	if !ok {
		t.Fatalf("got %T, want ComponentCall", node)
	}
	if call.Name != "Card" {
		t.Errorf("Name = %q, want Card", call.Name)
	}
	if len(call.Props) != 2 || call.Props[0].Name != "title" || call.Props[1].Name != "count" {
		t.Errorf("Props = %v", attrNames(call.Props))
	}
	if len(call.Builtins) != 2 || call.Builtins[0].Name != "@async" || call.Builtins[1].Name != "@fallback" {
		t.Errorf("Builtins = %v", attrNames(call.Builtins))
	}
	if len(call.Children) != 1 {
		t.Errorf("got %d children, want 1", len(call.Children))
	}
	if _, ok := call.Builtins[1].Expr.Markup(); !ok {
		t.Error("@fallback value is not markup")
	}
}

func TestParseQualifiedComponent(t *testing.T) {
	if _, ok := firstNode(t, `<ui.Card />`).(*ast.ComponentCall); !ok {
		t.Error("ui.Card did not parse as a component call")
	}
	if _, ok := firstNode(t, `<my-element />`).(*ast.Element); !ok {
		t.Error("my-element did not parse as an element")
	}
}

func TestParseClientComponents(t *testing.T) {
	src := `package main

import ui "example.com/app/ui"

func Page() zx.Component {
	return <div>
		<Counter start={1} @rendering="client" />
		<ui.Chart @client="react" />
		<Counter start={2} @rendering="client" />
		<Plain />
	</div>
}
`
	p := New("pages/index.zx", []byte(src))
	file, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	clients := p.ClientComponents()
	if len(clients) != 2 {
		t.Fatalf("got %d client components, want 2: %+v", len(clients), clients)
	}

	counter := clients[0]
	if counter.Name != "Counter" || counter.Path != "pages/index.zx" || counter.Kind != "client" {
		t.Errorf("clients[0] = %+v", counter)
	}
	if counter.ID != ClientID("pages/index.zx", "Counter") {
		t.Errorf("clients[0].ID = %q", counter.ID)
	}

	chart := clients[1]
	if chart.Name != "ui.Chart" || chart.Path != "example.com/app/ui" || chart.Kind != "react" {
		t.Errorf("clients[1] = %+v", chart)
	}

	if len(file.ClientComponents) != 2 {
		t.Errorf("file.ClientComponents has %d entries, want 2", len(file.ClientComponents))
	}

	var calls int
	for _, n := range file.Nodes {
		ast.Walk(n, func(n ast.Node) bool {
			if _, ok := n.(*ast.ClientComponentCall); ok {
				calls++
			}
			return true
		})
	}
	if calls != 3 {
		t.Errorf("found %d client component calls, want 3", calls)
	}
}

func TestClientID(t *testing.T) {
	id := ClientID("a.zx", "Counter")
	if !strings.HasPrefix(id, "zx-") || len(id) != 11 {
		t.Errorf("ClientID = %q, want zx- followed by 8 hex digits", id)
	}
	if id != ClientID("a.zx", "Counter") {
		t.Error("ClientID is not stable")
	}
	if id == ClientID("b.zx", "Counter") {
		t.Error("ClientID ignores the path")
	}
}

func TestParseIf(t *testing.T) {
	node := firstChild(t, `<div>{if a > 1 {
		<p>big</p>
	} else if a == 1 {
		<p>one</p>
		<p>exactly</p>
	} else {
		small
	}}</div>`)

	n, ok := node.(*ast.ControlIf)
	if !ok {
		t.Fatalf("got %T, want ControlIf", node)
	}
	if len(n.Branches) != 2 {
		t.Fatalf("got %d branches, want 2", len(n.Branches))
	}
	if n.Branches[0].Condition != "a > 1" || n.Branches[1].Condition != "a == 1" {
		t.Errorf("conditions = %q, %q", n.Branches[0].Condition, n.Branches[1].Condition)
	}
	if _, ok := n.Branches[0].Body.(*ast.Element); !ok {
		t.Errorf("first body = %T, want Element", n.Branches[0].Body)
	}
	frag, ok := n.Branches[1].Body.(*ast.Fragment)
	if !ok || !frag.Implicit || len(frag.Children) != 2 {
		t.Errorf("second body = %#v, want implicit fragment with 2 children", n.Branches[1].Body)
	}
	if text, ok := n.Else.(*ast.Text); !ok || strings.TrimSpace(text.Value) != "small" {
		t.Errorf("else body = %#v, want Text(small)", n.Else)
	}
}

func TestParseIfWithoutElse(t *testing.T) {
	n := firstChild(t, `<div>{if ok {<p/>}}</div>`).(*ast.ControlIf)
	if n.Else != nil {
		t.Errorf("Else = %#v, want nil", n.Else)
	}
}

func TestParseFor(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		bindings []string
		iterable string
	}{
		{"range key value", `<ul>{for i, item := range items {<li>{item}</li>}}</ul>`, []string{"i", "item"}, "items"},
		{"range value", `<ul>{for _, item := range []string{"a", "b"} {<li>{item}</li>}}</ul>`, []string{"_", "item"}, `[]string{"a", "b"}`},
		{"range integer", `<ul>{for i := range 3 {<li>{i}</li>}}</ul>`, []string{"i"}, "3"},
		{"three clause", `<ul>{for i := 0; i < n; i++ {<li>{i}</li>}}</ul>`, []string{"i"}, ""},
		{"condition", `<ul>{for more() {<li/>}}</ul>`, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := firstChild(t, tt.src).(*ast.ControlFor)
			if !ok {
				t.Fatal("not a ControlFor")
			}
			if strings.Join(n.Bindings, ",") != strings.Join(tt.bindings, ",") {
				t.Errorf("Bindings = %v, want %v", n.Bindings, tt.bindings)
			}
			if n.Iterable != tt.iterable {
				t.Errorf("Iterable = %q, want %q", n.Iterable, tt.iterable)
			}
		})
	}
}

func TestParseForBindingsInScope(t *testing.T) {
	n := firstChild(t, `<ul>{for _, item := range items {<li>{item}</li>}}</ul>`).(*ast.ControlFor)

	li := n.Body.(*ast.Element)
	expr := li.Children[0].(*ast.Expression)
	if len(expr.Scope) != 1 || expr.Scope[0] != "item" {
		t.Errorf("Scope = %v, want [item]", expr.Scope)
	}
}

func TestParseWhile(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		condition string
		bindings  []string
		errName   string
		call      string
		post      string
		hasElse   bool
	}{
		{
			name:      "condition",
			src:       `<ul>{while i < 3 : i++ {<li>{i}</li>}}</ul>`,
			condition: "i < 3",
			post:      "i++",
		},
		{
			name:      "error union with else",
			src:       `<ul>{while line, err := it.Next() {<li>{line}</li>} else {<p>{err.Error()}</p>}}</ul>`,
			condition: "line, err := it.Next()",
			bindings:  []string{"line"},
			errName:   "err",
			call:      "it.Next()",
			hasElse:   true,
		},
		{
			name:      "slice in condition",
			src:       `<ul>{while len(xs[1:]) > 0 : xs = xs[1:] {<li/>}}</ul>`,
			condition: "len(xs[1:]) > 0",
			post:      "xs = xs[1:]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := firstChild(t, tt.src).(*ast.ControlWhile)
			if !ok {
				t.Fatal("not a ControlWhile")
			}
			if n.Condition != tt.condition {
				t.Errorf("Condition = %q, want %q", n.Condition, tt.condition)
			}
			if strings.Join(n.Bindings, ",") != strings.Join(tt.bindings, ",") {
				t.Errorf("Bindings = %v, want %v", n.Bindings, tt.bindings)
			}
			if n.ErrorBinding != tt.errName {
				t.Errorf("ErrorBinding = %q, want %q", n.ErrorBinding, tt.errName)
			}
			if n.Call != tt.call {
				t.Errorf("Call = %q, want %q", n.Call, tt.call)
			}
			if n.Continue != tt.post {
				t.Errorf("Continue = %q, want %q", n.Continue, tt.post)
			}
			if (n.Else != nil) != tt.hasElse {
				t.Errorf("Else = %#v, want present=%v", n.Else, tt.hasElse)
			}
		})
	}
}

func TestParseSwitch(t *testing.T) {
	n := firstChild(t, `<div>{switch s := shape.(type) {
	case Circle:
		<p>{s.Radius}</p>
	case Square, Rect:
		<p>{s.Side}</p>
	default:
		<p>unknown</p>
	}}</div>`).(*ast.ControlSwitch)

	if n.Scrutinee != "s := shape.(type)" {
		t.Errorf("Scrutinee = %q", n.Scrutinee)
	}
	if n.Capture != "s" {
		t.Errorf("Capture = %q, want s", n.Capture)
	}
	if len(n.Cases) != 3 {
		t.Fatalf("got %d cases, want 3", len(n.Cases))
	}
	if n.Cases[0].Pattern != "Circle" || n.Cases[1].Pattern != "Square, Rect" || !n.Cases[2].Default {
		t.Errorf("cases = %+v", n.Cases)
	}
	for i, c := range n.Cases {
		if c.Capture != "s" {
			t.Errorf("cases[%d].Capture = %q, want s", i, c.Capture)
		}
		if _, ok := c.Body.(*ast.Element); !ok {
			t.Errorf("cases[%d].Body = %T, want Element", i, c.Body)
		}
	}
}

func TestParseValueSwitch(t *testing.T) {
	n := firstChild(t, `<div>{switch kind { case "a": A case "b": B }}</div>`).(*ast.ControlSwitch)
	if n.Capture != "" {
		t.Errorf("Capture = %q, want empty", n.Capture)
	}
	if len(n.Cases) != 2 || n.Cases[0].Pattern != `"a"` {
		t.Errorf("cases = %+v", n.Cases)
	}
}

func TestParseTry(t *testing.T) {
	n := firstChild(t, `<div>{try user, ok := load(id) {<p>{user.Name}</p>} catch err {<p>{err.Error()}</p>}}</div>`).(*ast.ControlTry)

	if strings.Join(n.Bindings, ",") != "user,ok" {
		t.Errorf("Bindings = %v", n.Bindings)
	}
	if n.Call != "load(id)" {
		t.Errorf("Call = %q", n.Call)
	}
	if n.ErrorBinding != "err" {
		t.Errorf("ErrorBinding = %q, want err", n.ErrorBinding)
	}
	if n.Catch == nil {
		t.Error("Catch is nil")
	}

	plain := firstChild(t, `<div>{try save() {<p>saved</p>}}</div>`).(*ast.ControlTry)
	if len(plain.Bindings) != 0 || plain.Call != "save()" || plain.Catch != nil {
		t.Errorf("plain try = %+v", plain)
	}
}

func TestParseNestedControlFlow(t *testing.T) {
	src := `<div>{if show {
		{while v, err := it.Next() {
			{for _, x := range v {
				<span>{x}</span>
			}}
		}}
	}}</div>`
	n := firstChild(t, src).(*ast.ControlIf)

	w, ok := n.Branches[0].Body.(*ast.ControlWhile)
	if !ok {
		t.Fatalf("if body = %T, want ControlWhile", n.Branches[0].Body)
	}
	f, ok := w.Body.(*ast.ControlFor)
	if !ok {
		t.Fatalf("while body = %T, want ControlFor", w.Body)
	}
	span := f.Body.(*ast.Element)
	expr := span.Children[0].(*ast.Expression)
	if strings.Join(expr.Scope, ",") != "v,x" {
		t.Errorf("Scope = %v, want [v x]", expr.Scope)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind ErrorKind
	}{
		{"mismatched tag", `<div></span>`, MismatchedTag},
		{"fragment closed by tag", `<></div>`, MismatchedTag},
		{"element closed by fragment", `<div></>`, MismatchedTag},
		{"unknown builtin", `<div @bogus="x"></div>`, UnknownBuiltinAttribute},
		{"fallback without async", `<Card @fallback={<p/>} />`, MissingRequiredAttribute},
		{"duplicate attribute", `<div id="a" id="b"></div>`, DuplicateAttribute},
		{"duplicate builtin", `<div @async @async></div>`, DuplicateAttribute},
		{"reserved binding", `<ul>{for _, _zx_x := range xs {<li/>}}</ul>`, InvalidCaptureBinding},
		{"binding twice", `<ul>{for x, x := range xs {<li/>}}</ul>`, InvalidCaptureBinding},
		{"blank error binding", `<ul>{while v, _ := next() {<li/>}}</ul>`, InvalidCaptureBinding},
		{"bad catch binding", `<ul>{try f() {<li/>} catch a.b {<li/>}}</ul>`, InvalidCaptureBinding},
		{"invalid for header", `<ul>{for x := := y {<li/>}}</ul>`, UnexpectedToken},
		{"try without call", `<ul>{try x := 1 {<li/>}}</ul>`, UnexpectedToken},
		{"empty if condition", `<ul>{if {<li/>}}</ul>`, UnexpectedToken},
		{"client on element", `<div @client></div>`, UnexpectedToken},
		{"multiple defaults", `<ul>{switch x { default: a default: b }}</ul>`, UnexpectedToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("test.zx", []byte(tt.src))
			if err == nil {
				t.Fatal("expected error")
			}
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("error %v (%T) is not a *Error", err, err)
			}
			if perr.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v (%v)", perr.Kind, tt.kind, err)
			}
			if !perr.Pos.IsValid() {
				t.Errorf("error has no position: %v", err)
			}
			if !strings.HasPrefix(err.Error(), "test.zx:") {
				t.Errorf("Error() = %q, want file prefix", err.Error())
			}
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse("page.zx", []byte("package main\n\nvar x = <div>\n</span>\n"))
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("got %v, want *Error", err)
	}
	if perr.Pos.Line != 4 || perr.Pos.Column != 1 {
		t.Errorf("Pos = %d:%d, want 4:1", perr.Pos.Line, perr.Pos.Column)
	}
	if got, want := err.Error(), "page.zx:4:1: mismatched closing tag: expected </div>, got </span>"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestParseReportsTokenizeErrors(t *testing.T) {
	_, err := Parse("page.zx", []byte(`<div>`))
	var lexErr *lexer.Error
	if !errors.As(err, &lexErr) {
		t.Fatalf("got %v, want *lexer.Error", err)
	}
	if lexErr.File != "page.zx" {
		t.Errorf("File = %q, want page.zx", lexErr.File)
	}
}

func TestParseTokens(t *testing.T) {
	tokens, err := lexer.Tokenize(`<p>hi</p>`)
	if err != nil {
		t.Fatalf("Tokenize error: %v", err)
	}
	file, err := ParseTokens("x.zx", tokens)
	if err != nil {
		t.Fatalf("ParseTokens error: %v", err)
	}
	if len(file.Nodes) != 1 {
		t.Errorf("got %d nodes, want 1", len(file.Nodes))
	}
}

func TestParseRanges(t *testing.T) {
	elem := firstNode(t, "<div>\n  <p>x</p>\n</div>").(*ast.Element)

	if elem.Range.Start.Line != 1 || elem.Range.Start.Column != 1 {
		t.Errorf("div start = %+v", elem.Range.Start)
	}
	if elem.Range.End.Line != 3 || elem.Range.End.Column != 7 {
		t.Errorf("div end = %+v, want 3:7", elem.Range.End)
	}

	p := elem.Children[1].(*ast.Element)
	if p.Range.Start.Line != 2 || p.Range.Start.Column != 3 {
		t.Errorf("p start = %+v, want 2:3", p.Range.Start)
	}
}

func TestSplitPost(t *testing.T) {
	tests := []struct {
		in, cond, post string
	}{
		{"i < 3 : i++", "i < 3 ", " i++"},
		{"v, err := f()", "v, err := f()", ""},
		{"v, err := f() : n++", "v, err := f() ", " n++"},
		{`m[":"] : i++`, `m[":"] `, " i++"},
		{"a[1:2] != nil", "a[1:2] != nil", ""},
	}

	for _, tt := range tests {
		cond, post := splitPost(tt.in)
		if cond != tt.cond || post != tt.post {
			t.Errorf("splitPost(%q) = %q, %q; want %q, %q", tt.in, cond, post, tt.cond, tt.post)
		}
	}
}

// Helper functions

func mustParse(t *testing.T, src string) *ast.File {
	t.Helper()
	file, err := Parse("test.zx", []byte(src))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	return file
}

func firstNode(t *testing.T, src string) ast.Node {
	t.Helper()
	file := mustParse(t, src)
	for _, n := range file.Nodes {
		if _, ok := n.(*ast.GoCode); !ok {
			return n
		}
	}
	t.Fatal("no markup node")
	return nil
}

// firstChild returns the first non-text child of the first element.
func firstChild(t *testing.T, src string) ast.Node {
	t.Helper()
	elem, ok := firstNode(t, src).(*ast.Element)
	if !ok {
		t.Fatal("first node is not an element")
	}
	for _, c := range elem.Children {
		if _, ok := c.(*ast.Text); !ok {
			return c
		}
	}
	t.Fatal("element has no non-text child")
	return nil
}

func attrNames(attrs []*ast.Attribute) []string {
	var out []string
	for _, a := range attrs {
		out = append(out, a.Name)
	}
	return out
}
