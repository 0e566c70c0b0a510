// Package generator transforms zx AST into Go source code.
package generator

import (
	"bytes"
	"fmt"
	"go/scanner"
	"go/token"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/germtb/zx"
	"github.com/germtb/zx/ast"
	"github.com/germtb/zx/parser"
)

// DefaultRuntimePackage is the import path of the component runtime.
const DefaultRuntimePackage = "github.com/germtb/zx"

// Options configures the generator.
type Options struct {
	// RuntimePackage is the import path for the zx package.
	// Default: "github.com/germtb/zx"
	RuntimePackage string

	// SourceMap requests a source map in the result.
	SourceMap bool
}

// DefaultOptions returns the default generator options.
func DefaultOptions() *Options {
	return &Options{RuntimePackage: DefaultRuntimePackage}
}

// Result is the output of a generation.
type Result struct {
	Source           []byte
	SourceMap        *SourceMap // nil unless requested
	ClientComponents []ast.ClientComponent
}

// Generator transforms AST to Go code.
type Generator struct {
	buf       bytes.Buffer
	indent    int
	sourceMap *SourceMap
	opts      Options
	file      *ast.File

	// qual is the identifier the generated code uses for the runtime
	// package; pendingImport is set until the import has been written.
	qual          string
	pendingImport bool

	// seq numbers generated identifiers. It only ever increases.
	seq    int
	scopes []scope
	params map[ast.Node]scope
	titler cases.Caser
	err    error

	// Position tracking for source maps
	outLine uint32 // Current output line (0-indexed)
	outCol  uint32 // Current output column (0-indexed)
}

// New creates a new Generator.
func New(opts *Options) *Generator {
	g := &Generator{
		sourceMap: NewSourceMap(),
		opts:      *DefaultOptions(),
		titler:    cases.Title(language.Und, cases.NoLower),
	}
	if opts != nil {
		g.opts.SourceMap = opts.SourceMap
		if opts.RuntimePackage != "" {
			g.opts.RuntimePackage = opts.RuntimePackage
		}
	}
	return g
}

// Generate transforms a zx file AST into Go source code.
func Generate(file *ast.File, opts *Options) (*Result, error) {
	return New(opts).Generate(file)
}

// Generate generates Go code from the AST.
func (g *Generator) Generate(file *ast.File) (*Result, error) {
	g.file = file
	g.qual = "zx"
	g.pendingImport = hasMarkup(file)
	for _, imp := range file.Imports {
		if imp.Path != g.opts.RuntimePackage || imp.Alias == "_" {
			continue
		}
		g.pendingImport = false
		g.qual = imp.Alias
		if imp.Alias == "." {
			g.qual = ""
		}
		break
	}

	if file.SourcePath != "" {
		g.sourceMap.SetFiles(file.SourcePath, strings.TrimSuffix(file.SourcePath, ".zx")+".go")
	}

	g.params = paramScopes(file)
	for _, node := range file.Nodes {
		g.generateNode(node)
	}
	if g.err != nil {
		return nil, g.err
	}

	res := &Result{
		Source:           bytes.Clone(g.buf.Bytes()),
		ClientComponents: file.ClientComponents,
	}
	if g.opts.SourceMap {
		res.SourceMap = g.sourceMap
	}
	return res, nil
}

// hasMarkup checks if the file contains any markup.
func hasMarkup(file *ast.File) bool {
	for _, node := range file.Nodes {
		if _, ok := node.(*ast.GoCode); !ok {
			return true
		}
	}
	return false
}

// rt qualifies a runtime identifier.
func (g *Generator) rt(name string) string {
	if g.qual == "" {
		return name
	}
	return g.qual + "." + name
}

// generateNode generates code for a top-level node.
func (g *Generator) generateNode(node ast.Node) {
	if code, ok := node.(*ast.GoCode); ok {
		g.generateGoCode(code)
		return
	}
	if s, ok := g.params[node]; ok {
		g.pushScope(s)
		defer g.popScope()
	}
	g.generateChild(node)
}

// generateGoCode passes Go code through, inserting the runtime import after
// the package clause when the file needs it.
func (g *Generator) generateGoCode(code *ast.GoCode) {
	if g.pendingImport {
		if i := packageClauseEnd(code.Value); i >= 0 {
			head := code.Value[:i]
			g.writeWithMapping(head, code.Range.Start)
			if !strings.HasSuffix(head, "\n") {
				g.write("\n")
			}
			g.write(fmt.Sprintf("\nimport %s %q\n", g.qual, g.opts.RuntimePackage))
			g.writeWithMapping(code.Value[i:], advance(code.Range.Start, head))
			g.pendingImport = false
			return
		}
	}
	g.writeWithMapping(code.Value, code.Range.Start)
}

// packageClauseEnd returns the offset just past the line holding the
// package clause, or -1 if src has none.
func packageClauseEnd(src string) int {
	fset := token.NewFileSet()
	file := fset.AddFile("", -1, len(src))
	var s scanner.Scanner
	s.Init(file, []byte(src), nil, 0)

	_, tok, _ := s.Scan()
	if tok != token.PACKAGE {
		return -1
	}
	pos, tok, lit := s.Scan()
	if tok != token.IDENT {
		return -1
	}
	end := file.Offset(pos) + len(lit)
	if nl := strings.IndexByte(src[end:], '\n'); nl >= 0 {
		return end + nl + 1
	}
	return len(src)
}

// generateChild generates a component-valued expression for a markup node.
func (g *Generator) generateChild(node ast.Node) {
	switch n := node.(type) {
	case *ast.Element:
		g.generateElement(n)
	case *ast.Fragment:
		g.generateFragment(n)
	case *ast.Text:
		g.mapNode(n.Range.Start, "")
		g.write(g.rt("Text") + "(" + strconv.Quote(cleanText(n.Value)) + ")")
	case *ast.Expression:
		g.generateExpressionChild(n)
	case *ast.ComponentCall:
		g.generateComponent(n)
	case *ast.ClientComponentCall:
		g.generateClientComponent(n)
	case *ast.ControlIf:
		g.generateIf(n)
	case *ast.ControlFor:
		g.generateFor(n)
	case *ast.ControlWhile:
		g.generateWhile(n)
	case *ast.ControlSwitch:
		g.generateSwitch(n)
	case *ast.ControlTry:
		g.generateTry(n)
	default:
		g.write(g.rt("Fragment") + "()")
	}
}

// renders reports whether a child produces output; whitespace-only text,
// comments and empty expressions are skipped.
func renders(node ast.Node) bool {
	switch n := node.(type) {
	case *ast.Text:
		return cleanText(n.Value) != ""
	case *ast.Comment:
		return false
	case *ast.Expression:
		return !n.IsEmpty()
	}
	return true
}

func renderedChildren(children []ast.Node) []ast.Node {
	var out []ast.Node
	for _, c := range children {
		if renders(c) {
			out = append(out, c)
		}
	}
	return out
}

// cleanText applies JSX whitespace rules: lines are trimmed where they meet
// a line break, blank lines dropped and the rest joined with a space.
func cleanText(s string) string {
	lines := strings.Split(s, "\n")
	parts := make([]string, 0, len(lines))
	for i, line := range lines {
		if i > 0 {
			line = strings.TrimLeft(line, " \t\r")
		}
		if i < len(lines)-1 {
			line = strings.TrimRight(line, " \t\r")
		}
		if line != "" {
			parts = append(parts, line)
		}
	}
	return html.UnescapeString(strings.Join(parts, " "))
}

// generateChildren writes each rendered child as a call argument.
func (g *Generator) generateChildren(children []ast.Node) {
	g.indent++
	for _, child := range renderedChildren(children) {
		g.write(",\n")
		g.writeIndent()
		g.generateChild(child)
	}
	g.indent--
}

// generateElement generates code for an intrinsic element.
// Output: zx.Element("tag", zx.Attrs{...}, child1, child2, ...)
func (g *Generator) generateElement(elem *ast.Element) {
	regular, builtins := ast.SplitBuiltins(elem.Attributes)
	b, ok := g.builtins(builtins, false)
	if !ok {
		return
	}

	g.withOptions(elem.Range.Start, b, func() {
		g.mapNode(elem.Range.Start, "")
		g.write(g.rt("Element") + "(" + strconv.Quote(elem.Tag) + ", ")
		g.generateAttrs(regular)
		g.generateChildren(elem.Children)
		g.write(")")
	})
}

// generateAttrs generates the attribute list of an element.
func (g *Generator) generateAttrs(attrs []*ast.Attribute) {
	if len(attrs) == 0 {
		g.write("nil")
		return
	}

	g.write(g.rt("Attrs") + "{")
	for i, a := range attrs {
		if i > 0 {
			g.write(", ")
		}
		g.mapNode(a.Range.Start, "")
		builder := "A"
		if a.Kind == ast.AttrEventHandler {
			builder = "On"
		}
		g.write(g.rt(builder) + "(" + strconv.Quote(a.Name) + ", ")
		g.generateAttrValue(a)
		g.write(")")
	}
	g.write("}")
}

// generateAttrValue writes the Go value of an attribute or prop.
func (g *Generator) generateAttrValue(a *ast.Attribute) {
	switch {
	case a.Bare:
		g.write("true")
	case a.Expr != nil:
		g.generateExpressionValue(a.Expr)
	default:
		g.write(strconv.Quote(html.UnescapeString(a.Value)))
	}
}

// generateFragment generates code for a fragment.
func (g *Generator) generateFragment(frag *ast.Fragment) {
	g.mapNode(frag.Range.Start, "")
	g.write(g.rt("Fragment") + "(")
	children := renderedChildren(frag.Children)
	g.indent++
	for i, child := range children {
		if i > 0 {
			g.write(",")
		}
		g.write("\n")
		g.writeIndent()
		g.generateChild(child)
	}
	g.indent--
	if len(children) > 0 {
		g.write(",\n")
		g.writeIndent()
	}
	g.write(")")
}

// generateBody writes the single component value of a control body.
func (g *Generator) generateBody(body ast.Node) {
	children := renderedChildren(ast.BodyChildren(body))
	if len(children) == 1 {
		g.generateChild(children[0])
		return
	}
	g.generateFragment(&ast.Fragment{Range: rangeOf(body), Children: children})
}

func rangeOf(n ast.Node) ast.Range {
	if n == nil {
		return ast.Range{}
	}
	return n.GetRange()
}

// Expressions

// generateExpressionChild generates an {expression} in child position,
// coercing its value to a component.
func (g *Generator) generateExpressionChild(e *ast.Expression) {
	if e.IsEmpty() {
		g.write(g.rt("Fragment") + "()")
		return
	}
	if m, ok := e.Markup(); ok {
		g.generateChild(m)
		return
	}

	if code, ok := e.Code(); ok {
		trimmed := strings.TrimSpace(code)
		start := advance(e.Segments[0].GetRange().Start, leadingSpace(code))

		c := classify(trimmed, g.qual, g.lookup)
		switch {
		case c.folded:
			g.mapNode(start, "")
			g.write(g.rt("Text") + "(" + strconv.Quote(c.text) + ")")
		case c.empty:
			g.mapNode(start, "")
			g.write(g.rt("Fragment") + "()")
		case c.helper != "":
			g.write(g.rt(c.helper) + "(")
			g.writeWithMapping(trimmed, start)
			g.write(")")
		case c.splice:
			g.writeWithMapping(trimmed, start)
		default:
			g.write(g.rt("Any") + "(")
			g.writeWithMapping(trimmed, start)
			g.write(")")
		}
		return
	}

	if cond, m, ok := whenPattern(e); ok {
		g.write(g.rt("When") + "(")
		g.writeWithMapping(strings.TrimSpace(cond.Value), advance(cond.Range.Start, leadingSpace(cond.Value)))
		g.write(", ")
		g.generateChild(m)
		g.write(")")
		return
	}

	g.write(g.rt("Any") + "(")
	g.generateSegments(e)
	g.write(")")
}

// whenPattern matches {cond && <markup>}.
func whenPattern(e *ast.Expression) (*ast.GoCode, ast.Node, bool) {
	segs := e.Segments
	if n := len(segs); n == 3 {
		if tail, ok := segs[2].(*ast.GoCode); !ok || strings.TrimSpace(tail.Value) != "" {
			return nil, nil, false
		}
		segs = segs[:2]
	}
	if len(segs) != 2 {
		return nil, nil, false
	}
	head, ok := segs[0].(*ast.GoCode)
	if !ok {
		return nil, nil, false
	}
	if _, isCode := segs[1].(*ast.GoCode); isCode {
		return nil, nil, false
	}
	trimmed := strings.TrimRight(head.Value, " \t\r\n")
	if !strings.HasSuffix(trimmed, "&&") {
		return nil, nil, false
	}
	cond := &ast.GoCode{Value: strings.TrimSuffix(trimmed, "&&"), Range: head.Range}
	if strings.TrimSpace(cond.Value) == "" {
		return nil, nil, false
	}
	return cond, segs[1], true
}

// generateExpressionValue writes an expression used as a Go value, such as
// an attribute or prop. Markup inside it becomes component values.
func (g *Generator) generateExpressionValue(e *ast.Expression) {
	if e.IsEmpty() {
		g.write("nil")
		return
	}
	if m, ok := e.Markup(); ok {
		g.generateChild(m)
		return
	}
	if code, ok := e.Code(); ok {
		trimmed := strings.TrimSpace(code)
		start := advance(e.Segments[0].GetRange().Start, leadingSpace(code))
		g.writeWithMapping(trimmed, start)
		return
	}
	g.generateSegments(e)
}

// generateSegments writes Go code segments verbatim and markup segments as
// generated components.
func (g *Generator) generateSegments(e *ast.Expression) {
	for _, seg := range e.Segments {
		if code, ok := seg.(*ast.GoCode); ok {
			g.writeWithMapping(code.Value, code.Range.Start)
			continue
		}
		g.generateChild(seg)
	}
}

func leadingSpace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t\r\n"))]
}

// lookup returns the inferred type of a bound name, innermost scope first.
func (g *Generator) lookup(name string) (string, bool) {
	for i := len(g.scopes) - 1; i >= 0; i-- {
		if typ, ok := g.scopes[i][name]; ok {
			return typ, true
		}
	}
	return "", false
}

func (g *Generator) pushScope(s scope) { g.scopes = append(g.scopes, s) }
func (g *Generator) popScope()         { g.scopes = g.scopes[:len(g.scopes)-1] }

// Components

// propsType returns the props struct type of a component: Card -> CardProps,
// ui.Card -> ui.CardProps.
func propsType(name string) string {
	return name + "Props"
}

// fieldName converts an attribute name to an exported Go field name:
// title -> Title, onClick -> OnClick, on-click -> OnClick.
func (g *Generator) fieldName(attr string) string {
	parts := strings.FieldsFunc(attr, func(r rune) bool {
		return r == '-' || r == ':' || r == '.'
	})
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(g.titler.String(p))
	}
	return sb.String()
}

// generateProps generates a typed props struct literal.
// Output: PropsType{Field: value, ...}
func (g *Generator) generateProps(props []*ast.Attribute, typ string) {
	g.write(typ + "{")
	for i, a := range props {
		if i > 0 {
			g.write(", ")
		}
		g.mapNode(a.Range.Start, "")
		g.write(g.fieldName(a.Name) + ": ")
		g.generateAttrValue(a)
	}
	g.write("}")
}

// generateComponent generates a deferred component call.
// Output: zx.Lazy("Name", func() zx.Component { return Name(NameProps{...}, children...) })
func (g *Generator) generateComponent(call *ast.ComponentCall) {
	b, ok := g.builtins(call.Builtins, false)
	if !ok {
		return
	}

	g.withOptions(call.Range.Start, b, func() {
		g.mapNode(call.Range.Start, call.Name)
		g.write(g.rt("Lazy") + "(" + strconv.Quote(call.Name) + ", func() " + g.rt("Component") + " {\n")
		g.indent++
		g.writeIndent()
		g.write("return " + call.Name + "(")
		g.generateProps(call.Props, propsType(call.Name))
		g.generateChildren(call.Children)
		g.write(")\n")
		g.indent--
		g.writeIndent()
		g.write("})")
	})
}

// generateClientComponent generates a component hydrated on the client.
// Output: zx.Client(zx.ClientRef{...}, NameProps{...}, func(p NameProps) zx.Component { ... })
func (g *Generator) generateClientComponent(call *ast.ClientComponentCall) {
	b, ok := g.builtins(call.Builtins, true)
	if !ok {
		return
	}

	typ := propsType(call.Name)
	g.withOptions(call.Range.Start, b, func() {
		g.mapNode(call.Range.Start, call.Name)
		m := call.Meta
		g.write(fmt.Sprintf("%s(%s{ID: %q, Name: %q, Path: %q, Kind: %q}, ",
			g.rt("Client"), g.rt("ClientRef"), m.ID, m.Name, m.Path, m.Kind))
		g.generateProps(call.Props, typ)
		g.write(", func(p " + typ + ") " + g.rt("Component") + " {\n")
		g.indent++
		g.writeIndent()
		g.write("return " + call.Name + "(p")
		g.generateChildren(call.Children)
		g.write(")\n")
		g.indent--
		g.writeIndent()
		g.write("})")
	})
}

// Builtins

// builtinOptions holds the Go source of each zx.Options field.
type builtinOptions struct {
	fields   []string // "Escaping: zx.EscapingNone", ...
	fallback *ast.Expression
}

func (b *builtinOptions) empty() bool {
	return len(b.fields) == 0 && b.fallback == nil
}

// builtins validates builtin attributes and translates them to options.
// clientCall is set for client components, whose rendering mode is carried
// by zx.Client.
func (g *Generator) builtins(attrs []*ast.Attribute, clientCall bool) (*builtinOptions, bool) {
	b := &builtinOptions{}
	client := clientCall
	var async, rendering *ast.Attribute

	for _, a := range attrs {
		switch a.Name {
		case parser.BuiltinAllocator:
			// Go is garbage collected.
		case parser.BuiltinEscaping:
			v, ok := g.stringBuiltin(a, "html", "none")
			if !ok {
				return nil, false
			}
			b.fields = append(b.fields, "Escaping: "+g.rt(map[string]string{"html": "EscapingHTML", "none": "EscapingNone"}[v]))
		case parser.BuiltinRendering:
			v, ok := g.stringBuiltin(a, "server", "client")
			if !ok {
				return nil, false
			}
			rendering = a
			if v == "client" {
				client = true
				continue
			}
			b.fields = append(b.fields, "Rendering: "+g.rt("RenderingServer"))
		case parser.BuiltinAsync:
			if !a.Bare {
				if _, ok := g.stringBuiltin(a, "stream"); !ok {
					return nil, false
				}
			}
			async = a
			b.fields = append(b.fields, "Async: "+g.rt("AsyncStream"))
		case parser.BuiltinFallback:
			if a.Expr == nil {
				g.fail(InvalidBuiltinValue, a.Range.Start, "@fallback expects an expression: @fallback={<markup>}")
				return nil, false
			}
			b.fallback = a.Expr
		case parser.BuiltinCaching:
			v, ok := g.stringBuiltin(a)
			if !ok {
				return nil, false
			}
			spec, err := g.cachingSpec(v, a.Range.Start)
			if err != nil {
				g.fail(InvalidBuiltinValue, a.Range.Start, "@caching: %v", err)
				return nil, false
			}
			b.fields = append(b.fields, "Caching: "+g.rt("MustParseCaching")+"("+strconv.Quote(spec)+")")
		case parser.BuiltinClient:
			if !a.Bare {
				if _, ok := g.stringBuiltin(a, "client", "react"); !ok {
					return nil, false
				}
			}
			client = true
		}
	}

	if client && async != nil {
		g.fail(UnresolvedBuiltinCombination, async.Range.Start, "@async cannot be combined with client rendering")
		return nil, false
	}
	if client && rendering != nil && rendering.Value == "server" {
		g.fail(UnresolvedBuiltinCombination, rendering.Range.Start, "@rendering=\"server\" cannot be combined with @client")
		return nil, false
	}
	if client && !clientCall {
		b.fields = append(b.fields, "Rendering: "+g.rt("RenderingClient"))
	}
	return b, true
}

// stringBuiltin returns the string value of a builtin, checking it against
// allowed when given.
func (g *Generator) stringBuiltin(a *ast.Attribute, allowed ...string) (string, bool) {
	if a.Bare || a.Expr != nil {
		g.fail(InvalidBuiltinValue, a.Range.Start, "%s expects a string value", a.Name)
		return "", false
	}
	if len(allowed) == 0 {
		return a.Value, true
	}
	for _, v := range allowed {
		if a.Value == v {
			return v, true
		}
	}
	g.fail(InvalidBuiltinValue, a.Range.Start, "invalid %s value %q: want %s", a.Name, a.Value, strings.Join(quoteAll(allowed), " or "))
	return "", false
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strconv.Quote(s)
	}
	return out
}

// cachingSpec validates a @caching value and fills in the default key, the
// position of the attribute in the source file.
func (g *Generator) cachingSpec(v string, pos ast.Position) (string, error) {
	c, err := zx.ParseCaching(v)
	if err != nil {
		return "", err
	}
	if c.Key != "" {
		return v, nil
	}
	ttl, _, _ := strings.Cut(v, ":")
	return fmt.Sprintf("%s:%s:%d:%d", ttl, g.file.SourcePath, pos.Line, pos.Column), nil
}

// withOptions wraps the node written by fn in zx.With when builtins set any
// options.
func (g *Generator) withOptions(pos ast.Position, b *builtinOptions, fn func()) {
	if b.empty() {
		fn()
		return
	}
	g.mapNode(pos, "")
	g.write(g.rt("With") + "(" + g.rt("Options") + "{" + strings.Join(b.fields, ", "))
	if b.fallback != nil {
		if len(b.fields) > 0 {
			g.write(", ")
		}
		g.write("Fallback: ")
		g.generateExpressionChild(b.fallback)
	}
	g.write("}, ")
	fn()
	g.write(")")
}

// Control flow

// openFunc starts an immediately invoked function returning a component.
func (g *Generator) openFunc() {
	g.write("func() " + g.rt("Component") + " {\n")
	g.indent++
}

func (g *Generator) closeFunc() {
	g.indent--
	g.writeIndent()
	g.write("}()")
}

func (g *Generator) line(s string) {
	g.writeIndent()
	g.write(s + "\n")
}

// nextID returns a fresh generated identifier.
func (g *Generator) nextID(kind string) string {
	id := fmt.Sprintf("_zx_%s_%d", kind, g.seq)
	g.seq++
	return id
}

// generateIf generates a function with one return per branch.
func (g *Generator) generateIf(n *ast.ControlIf) {
	g.mapNode(n.Range.Start, "")
	g.openFunc()
	for i, br := range n.Branches {
		if i == 0 {
			g.writeIndent()
			g.write("if ")
		} else {
			g.write(" else if ")
		}
		g.writeWithMapping(br.Condition, br.CondPos)
		g.write(" {\n")
		g.indent++
		g.writeIndent()
		g.write("return ")
		g.generateBody(br.Body)
		g.write("\n")
		g.indent--
		g.writeIndent()
		g.write("}")
	}
	g.write("\n")
	g.writeIndent()
	g.write("return ")
	if n.Else != nil {
		g.generateBody(n.Else)
	} else {
		g.write(g.rt("Fragment") + "()")
	}
	g.write("\n")
	g.closeFunc()
}

// generateSwitch generates a function returning from each case.
func (g *Generator) generateSwitch(n *ast.ControlSwitch) {
	g.mapNode(n.Range.Start, "")
	g.openFunc()
	g.writeIndent()
	g.write("switch ")
	g.writeWithMapping(n.Scrutinee, n.HeaderPos)
	g.write(" {\n")
	for _, c := range n.Cases {
		g.writeIndent()
		if c.Default {
			g.write("default:\n")
		} else {
			g.write("case ")
			g.writeWithMapping(c.Pattern, c.PatternPos)
			g.write(":\n")
		}
		g.indent++
		capture := c.Capture
		if capture == "" {
			capture = n.Capture
		}
		if capture != "" && capture != "_" {
			g.line("_ = " + capture)
		}
		g.pushScope(untypedScope(capture))
		g.writeIndent()
		g.write("return ")
		g.generateBody(c.Body)
		g.write("\n")
		g.popScope()
		g.indent--
	}
	g.line("}")
	g.line("return " + g.rt("Fragment") + "()")
	g.closeFunc()
}

// generateTry generates a function that returns the catch branch, or fails
// the render, when the call returns an error.
func (g *Generator) generateTry(n *ast.ControlTry) {
	g.mapNode(n.Range.Start, "")
	errName := n.ErrorBinding
	if errName == "" || errName == "_" {
		errName = g.nextID("err")
	}

	g.openFunc()
	g.writeIndent()
	g.write(strings.Join(append(append([]string{}, n.Bindings...), errName), ", ") + " := ")
	g.writeWithMapping(n.Call, n.CallPos)
	g.write("\n")
	g.line("if " + errName + " != nil {")
	g.indent++
	g.writeIndent()
	g.write("return ")
	if n.Catch != nil {
		g.pushScope(untypedScope(n.ErrorBinding))
		g.generateBody(n.Catch)
		g.popScope()
	} else {
		g.write(g.rt("Fail") + "(" + errName + ")")
	}
	g.write("\n")
	g.indent--
	g.line("}")
	for _, b := range n.Bindings {
		if b != "_" {
			g.line("_ = " + b)
		}
	}
	g.pushScope(untypedScope(n.Bindings...))
	g.writeIndent()
	g.write("return ")
	g.generateBody(n.Body)
	g.write("\n")
	g.popScope()
	g.closeFunc()
}

// generateFor generates a block collecting one set of children per
// iteration.
// Output: func() zx.Component { var _zx_blk_N []zx.Component; for HEADER { ... }; return zx.Fragment(_zx_blk_N...) }()
func (g *Generator) generateFor(n *ast.ControlFor) {
	g.mapNode(n.Range.Start, "")
	blk := g.nextID("blk")

	g.openFunc()
	g.line("var " + blk + " []" + g.rt("Component"))
	g.writeIndent()
	g.write("for ")
	g.writeWithMapping(n.Header, n.HeaderPos)
	g.write(" {\n")
	g.indent++
	g.pushScope(loopScope(n.Header, n.Bindings))
	for _, b := range n.Bindings {
		if b != "_" {
			g.line("_ = " + b)
		}
	}
	g.appendChildren(blk, ast.BodyChildren(n.Body))
	g.popScope()
	g.indent--
	g.line("}")
	g.line("return " + g.rt("Fragment") + "(" + blk + "...)")
	g.closeFunc()
}

// generateWhile generates a block for both while forms. The condition form
// renders Else once after the loop; the error-union form renders it with the
// error that ended the loop.
func (g *Generator) generateWhile(n *ast.ControlWhile) {
	g.mapNode(n.Range.Start, "")
	blk := g.nextID("blk")

	g.openFunc()
	g.line("var " + blk + " []" + g.rt("Component"))
	g.writeIndent()

	if !n.IsErrorUnion() {
		if n.Continue == "" {
			g.write("for ")
			g.writeWithMapping(n.Condition, n.CondPos)
		} else {
			g.write("for ; ")
			g.writeWithMapping(n.Condition, n.CondPos)
			g.write("; ")
			g.writeWithMapping(n.Continue, n.ContinuePos)
		}
		g.write(" {\n")
		g.indent++
		g.appendChildren(blk, ast.BodyChildren(n.Body))
		g.indent--
		g.line("}")
		if n.Else != nil {
			g.appendChildren(blk, ast.BodyChildren(n.Else))
		}
		g.line("return " + g.rt("Fragment") + "(" + blk + "...)")
		g.closeFunc()
		return
	}

	if n.Continue == "" {
		g.write("for {\n")
	} else {
		g.write("for ; ; ")
		g.writeWithMapping(n.Continue, n.ContinuePos)
		g.write(" {\n")
	}
	g.indent++
	g.writeIndent()
	g.write(strings.Join(append(append([]string{}, n.Bindings...), n.ErrorBinding), ", ") + " := ")
	g.writeWithMapping(n.Call, n.CallPos)
	g.write("\n")
	g.line("if " + n.ErrorBinding + " != nil {")
	g.indent++
	if n.Else != nil {
		g.pushScope(untypedScope(n.ErrorBinding))
		g.appendChildren(blk, ast.BodyChildren(n.Else))
		g.popScope()
	}
	g.line("break")
	g.indent--
	g.line("}")
	for _, b := range n.Bindings {
		if b != "_" {
			g.line("_ = " + b)
		}
	}
	g.pushScope(untypedScope(n.Bindings...))
	g.appendChildren(blk, ast.BodyChildren(n.Body))
	g.popScope()
	g.indent--
	g.line("}")
	g.line("return " + g.rt("Fragment") + "(" + blk + "...)")
	g.closeFunc()
}

// appendChildren writes blk = append(blk, children...).
func (g *Generator) appendChildren(blk string, children []ast.Node) {
	children = renderedChildren(children)
	if len(children) == 0 {
		return
	}
	g.writeIndent()
	g.write(blk + " = append(" + blk)
	g.generateChildren(children)
	g.write(")\n")
}

// Errors

func (g *Generator) fail(kind ErrorKind, pos ast.Position, format string, args ...any) {
	if g.err != nil {
		return
	}
	g.err = &Error{Kind: kind, File: g.file.SourcePath, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// Helper methods

func (g *Generator) write(s string) {
	g.buf.WriteString(s)
	// Update position tracking
	for _, r := range s {
		if r == '\n' {
			g.outLine++
			g.outCol = 0
		} else {
			g.outCol++
		}
	}
}

// mapNode records a mapping from the current output position to a source
// position (1-indexed, from the AST).
func (g *Generator) mapNode(pos ast.Position, name string) {
	if pos.Line < 1 || pos.Column < 1 {
		return
	}
	g.sourceMap.AddMapping(NewPosition(g.outLine, g.outCol), original(pos), name)
}

// writeWithMapping writes source text copied from pos and maps each of its
// lines.
func (g *Generator) writeWithMapping(s string, pos ast.Position) {
	if pos.Line > 0 && pos.Column > 0 {
		g.sourceMap.AddSegment(s, original(pos), NewPosition(g.outLine, g.outCol))
	}
	g.write(s)
}

func original(pos ast.Position) Position {
	return NewPosition(uint32(pos.Line-1), uint32(pos.Column-1))
}

// advance returns the position just past s when s starts at pos.
func advance(pos ast.Position, s string) ast.Position {
	for _, r := range s {
		pos.Offset += utf8.RuneLen(r)
		if r == '\n' {
			pos.Line++
			pos.Column = 1
		} else {
			pos.Column++
		}
	}
	return pos
}

func (g *Generator) writeIndent() {
	for i := 0; i < g.indent; i++ {
		g.write("\t")
	}
}
