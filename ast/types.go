// Package ast defines the AST types for zx files.
package ast

import "strings"

// File represents a complete .zx file.
type File struct {
	SourcePath string
	Package    string
	Imports    []Import
	Nodes      []Node // Go code + markup intermixed

	// ClientComponents lists every client component the file references,
	// once each, in first-seen order.
	ClientComponents []ClientComponent
}

// Import represents a Go import statement.
type Import struct {
	Alias string // explicit alias or the last path element
	Path  string
}

// ImportPath returns the import path bound to alias, if any.
func (f *File) ImportPath(alias string) (string, bool) {
	for _, imp := range f.Imports {
		if imp.Alias == alias {
			return imp.Path, true
		}
	}
	return "", false
}

// ClientComponent describes a component hydrated on the client.
type ClientComponent struct {
	ID   string // "zx-" + 8 hex digits
	Name string // component name as written, e.g. "ui.Counter"
	Path string // import path of the qualifier, or the .zx file path
	Kind string // "client" or "react"
}

// Node is the interface for all nodes in a zx file.
type Node interface {
	node()
	GetRange() Range
}

// GoCode represents pass-through Go code.
type GoCode struct {
	Value string
	Range Range
}

func (*GoCode) node()             {}
func (c *GoCode) GetRange() Range { return c.Range }

// Element represents an intrinsic element <tag ...>...</tag> or <tag ... />.
type Element struct {
	Range       Range
	Tag         string
	Attributes  []*Attribute // source order, builtins included
	Children    []Node
	SelfClosing bool
}

func (*Element) node()             {}
func (e *Element) GetRange() Range { return e.Range }

// Builtins returns the builtin (@name) attributes.
func (e *Element) Builtins() []*Attribute {
	_, builtins := SplitBuiltins(e.Attributes)
	return builtins
}

// AttributeKind classifies an attribute value.
type AttributeKind int

const (
	AttrString       AttributeKind = iota // name="value"
	AttrExpression                        // name={expr}
	AttrBoolean                           // bare name
	AttrEventHandler                      // on*={expr}
	AttrBuiltin                           // @name, @name="value" or @name={expr}
)

var attributeKindNames = [...]string{"string", "expression", "boolean", "event handler", "builtin"}

func (k AttributeKind) String() string {
	if int(k) < len(attributeKindNames) {
		return attributeKindNames[k]
	}
	return "unknown"
}

// Attribute is one attribute of an element or component call.
type Attribute struct {
	Name  string
	Kind  AttributeKind
	Value string      // unescaped string value
	Expr  *Expression // set for {expr} values
	Bare  bool        // no value at all
	Range Range
}

// IsBuiltin reports whether the attribute is a builtin (@name) attribute.
func (a *Attribute) IsBuiltin() bool {
	return strings.HasPrefix(a.Name, "@")
}

// SplitBuiltins separates regular attributes from builtin ones, keeping
// the relative order of each.
func SplitBuiltins(attrs []*Attribute) (regular, builtins []*Attribute) {
	for _, a := range attrs {
		if a.IsBuiltin() {
			builtins = append(builtins, a)
		} else {
			regular = append(regular, a)
		}
	}
	return regular, builtins
}

// FindAttribute returns the attribute with the given name.
func FindAttribute(attrs []*Attribute, name string) *Attribute {
	for _, a := range attrs {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Text represents text content between tags, verbatim.
type Text struct {
	Value string
	Range Range
}

func (*Text) node()             {}
func (t *Text) GetRange() Range { return t.Range }

// Comment represents <!-- comment -->.
type Comment struct {
	Value string
	Range Range
}

func (*Comment) node()             {}
func (c *Comment) GetRange() Range { return c.Range }

// Expression represents {expression}. Segments are *GoCode and nested
// markup (*Element, *Fragment, *ComponentCall, *ClientComponentCall) in
// source order.
type Expression struct {
	Segments []Node
	Range    Range

	// Scope lists the names bound by enclosing control constructs,
	// outermost first.
	Scope []string
}

func (*Expression) node()             {}
func (e *Expression) GetRange() Range { return e.Range }

// Code returns the expression source when it contains no markup.
func (e *Expression) Code() (string, bool) {
	var sb strings.Builder
	for _, seg := range e.Segments {
		code, ok := seg.(*GoCode)
		if !ok {
			return "", false
		}
		sb.WriteString(code.Value)
	}
	return sb.String(), true
}

// Markup returns the expression's markup when the expression is nothing but
// a single markup node surrounded by whitespace.
func (e *Expression) Markup() (Node, bool) {
	var markup Node
	for _, seg := range e.Segments {
		if code, ok := seg.(*GoCode); ok {
			if strings.TrimSpace(code.Value) != "" {
				return nil, false
			}
			continue
		}
		if markup != nil {
			return nil, false
		}
		markup = seg
	}
	return markup, markup != nil
}

// IsEmpty reports whether the expression holds only whitespace or comments.
func (e *Expression) IsEmpty() bool {
	code, ok := e.Code()
	if !ok {
		return false
	}
	return IsCommentOnly(code)
}

// IsCommentOnly reports whether s contains only whitespace and Go comments.
func IsCommentOnly(s string) bool {
	s = strings.TrimSpace(s)
	for s != "" {
		switch {
		case strings.HasPrefix(s, "//"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return true
			}
			s = strings.TrimSpace(s[i+1:])
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s[2:], "*/")
			if i < 0 {
				return false
			}
			s = strings.TrimSpace(s[i+4:])
		default:
			return false
		}
	}
	return true
}

// Fragment represents <>...</>. Implicit fragments group the children of a
// control body and have no markup of their own.
type Fragment struct {
	Range    Range
	Children []Node
	Implicit bool
}

func (*Fragment) node()             {}
func (f *Fragment) GetRange() Range { return f.Range }

// BodyChildren returns the nodes of a control body.
func BodyChildren(body Node) []Node {
	if body == nil {
		return nil
	}
	if f, ok := body.(*Fragment); ok && f.Implicit {
		return f.Children
	}
	return []Node{body}
}

// IfBranch is one if/else-if arm.
type IfBranch struct {
	Condition string   // raw Go header, trimmed
	CondPos   Position // start of Condition
	Range     Range    // header range
	Body      Node
}

// ControlIf represents {if c {..} else if d {..} else {..}}.
type ControlIf struct {
	Range    Range
	Branches []IfBranch
	Else     Node // nil when absent
}

func (*ControlIf) node()             {}
func (c *ControlIf) GetRange() Range { return c.Range }

// ControlFor represents {for HEADER {..}}. The header is kept verbatim.
type ControlFor struct {
	Range       Range
	Header      string
	HeaderPos   Position // start of Header
	HeaderRange Range
	Bindings    []string // names declared by the header
	Iterable    string   // range expression, empty for non-range loops
	Body        Node
}

func (*ControlFor) node()             {}
func (c *ControlFor) GetRange() Range { return c.Range }

// ControlWhile represents {while COND [: POST] {..} [else {..}]}.
//
// When the header is a short variable declaration with two or more names it
// is the error-union form: Call is re-evaluated each iteration, Bindings
// receive the values and ErrorBinding the error that ends the loop.
type ControlWhile struct {
	Range        Range
	Condition    string // full header before the post statement
	CondPos      Position
	HeaderRange  Range
	Bindings     []string
	ErrorBinding string
	Call         string
	CallPos      Position
	Continue     string // post statement, empty when absent
	ContinuePos  Position
	Body         Node
	Else         Node
}

func (*ControlWhile) node()             {}
func (c *ControlWhile) GetRange() Range { return c.Range }

// IsErrorUnion reports whether the loop iterates an error-returning call.
func (c *ControlWhile) IsErrorUnion() bool {
	return c.ErrorBinding != ""
}

// SwitchCase is one case or default arm.
type SwitchCase struct {
	Pattern    string // raw case list, empty for default
	PatternPos Position
	Default    bool
	Capture    string // type switch binding visible in this arm
	Range      Range
	Body       Node
}

// ControlSwitch represents {switch HEADER { case P: .. default: .. }}.
type ControlSwitch struct {
	Range       Range
	Scrutinee   string   // raw Go header, trimmed
	HeaderPos   Position // start of Scrutinee
	HeaderRange Range
	Capture     string // x in switch x := e.(type)
	Cases       []SwitchCase
}

func (*ControlSwitch) node()             {}
func (c *ControlSwitch) GetRange() Range { return c.Range }

// ControlTry represents {try a := call() {..} [catch err {..}]}.
type ControlTry struct {
	Range        Range
	Header       string
	HeaderRange  Range
	Bindings     []string
	Call         string
	CallPos      Position
	ErrorBinding string // catch binding, empty when unnamed
	Body         Node
	Catch        Node // nil when absent
}

func (*ControlTry) node()             {}
func (c *ControlTry) GetRange() Range { return c.Range }

// ComponentCall represents <Name props...>children</Name>.
type ComponentCall struct {
	Range       Range
	Name        string // may be qualified: ui.Card
	Props       []*Attribute
	Builtins    []*Attribute
	Children    []Node
	SelfClosing bool
}

func (*ComponentCall) node()             {}
func (c *ComponentCall) GetRange() Range { return c.Range }

// ClientComponentCall is a component call hydrated on the client.
type ClientComponentCall struct {
	ComponentCall
	Meta ClientComponent
}

// Walk calls fn for node and every node below it, depth first. If fn
// returns false the children of that node are skipped.
func Walk(node Node, fn func(Node) bool) {
	if node == nil || !fn(node) {
		return
	}
	switch n := node.(type) {
	case *Element:
		for _, a := range n.Attributes {
			if a.Expr != nil {
				Walk(a.Expr, fn)
			}
		}
		walkList(n.Children, fn)
	case *Fragment:
		walkList(n.Children, fn)
	case *Expression:
		walkList(n.Segments, fn)
	case *ControlIf:
		for _, b := range n.Branches {
			Walk(b.Body, fn)
		}
		Walk(n.Else, fn)
	case *ControlFor:
		Walk(n.Body, fn)
	case *ControlWhile:
		Walk(n.Body, fn)
		Walk(n.Else, fn)
	case *ControlSwitch:
		for _, c := range n.Cases {
			Walk(c.Body, fn)
		}
	case *ControlTry:
		Walk(n.Body, fn)
		Walk(n.Catch, fn)
	case *ComponentCall:
		walkCall(n, fn)
	case *ClientComponentCall:
		walkCall(&n.ComponentCall, fn)
	}
}

func walkCall(c *ComponentCall, fn func(Node) bool) {
	for _, a := range c.Props {
		if a.Expr != nil {
			Walk(a.Expr, fn)
		}
	}
	for _, a := range c.Builtins {
		if a.Expr != nil {
			Walk(a.Expr, fn)
		}
	}
	walkList(c.Children, fn)
}

func walkList(nodes []Node, fn func(Node) bool) {
	for _, n := range nodes {
		Walk(n, fn)
	}
}
