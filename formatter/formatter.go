// Package formatter provides formatting for .zx files.
package formatter

import (
	"bytes"
	"go/format"
	"slices"
	"strings"

	"github.com/germtb/zx/ast"
	"github.com/germtb/zx/parser"
	"golang.org/x/net/html/atom"
)

// Options configures the formatter.
type Options struct {
	// TabWidth is the number of spaces per tab (for display purposes).
	TabWidth int
	// UseTabs uses tabs instead of spaces.
	UseTabs bool
	// MaxLineLength is the target max line length before wrapping attributes.
	MaxLineLength int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() *Options {
	return &Options{
		TabWidth:      4,
		UseTabs:       true,
		MaxLineLength: 100,
	}
}

// Backend formats zx source. The default backend parses the source and
// prints the tree; other implementations can be plugged in behind the same
// contract.
type Backend interface {
	Format(filename string, src []byte) ([]byte, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(filename string, src []byte) ([]byte, error)

// Format implements Backend.
func (f BackendFunc) Format(filename string, src []byte) ([]byte, error) {
	return f(filename, src)
}

// Printer returns the Backend that parses source and prints it with opts.
func Printer(opts *Options) Backend {
	return BackendFunc(func(filename string, src []byte) ([]byte, error) {
		file, err := parser.Parse(filename, src)
		if err != nil {
			return nil, err
		}
		return Format(file, opts)
	})
}

// Source parses and formats src with the default options.
func Source(filename string, src []byte) ([]byte, error) {
	return Printer(nil).Format(filename, src)
}

// builtinOrder is the order builtin attributes are printed in, after all
// regular attributes.
var builtinOrder = []string{
	"@rendering",
	"@escaping",
	"@async",
	"@fallback",
	"@caching",
	"@client",
	"@allocator",
}

// Children of these elements are printed as written.
var verbatimElements = map[atom.Atom]bool{
	atom.Pre:      true,
	atom.Textarea: true,
	atom.Script:   true,
	atom.Style:    true,
}

// Formatter formats .zx files.
type Formatter struct {
	opts   *Options
	buf    *bytes.Buffer
	indent int
}

// New creates a new Formatter.
func New(opts *Options) *Formatter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Formatter{opts: opts, buf: new(bytes.Buffer)}
}

// Format formats a parsed .zx file.
func Format(file *ast.File, opts *Options) ([]byte, error) {
	f := New(opts)
	return f.Format(file)
}

// Format formats the AST back to source code.
func (f *Formatter) Format(file *ast.File) ([]byte, error) {
	f.buf.Reset()
	f.indent = 0

	for _, node := range file.Nodes {
		if code, ok := node.(*ast.GoCode); ok {
			f.formatGoCode(code, len(file.Nodes) == 1)
			continue
		}
		f.formatMarkup(node)
	}

	return bytes.Clone(f.buf.Bytes()), nil
}

// formatGoCode formats Go code, preserving it mostly as-is.
// Only a file without markup is formatted as Go.
func (f *Formatter) formatGoCode(code *ast.GoCode, whole bool) {
	value := code.Value

	// Markup that follows is indented relative to the last Go line.
	f.indent = f.detectIndent(value)

	if whole && strings.HasPrefix(strings.TrimSpace(value), "package ") {
		formatted, err := format.Source([]byte(value))
		if err == nil {
			f.buf.Write(formatted)
			return
		}
	}

	// "return    " -> "return "
	value = normalizeTrailingWhitespace(value)
	f.buf.WriteString(value)
}

// normalizeTrailingWhitespace normalizes whitespace at the end of Go code.
// It collapses multiple trailing spaces/tabs on the last line to a single space,
// while preserving newlines and indentation structure.
func normalizeTrailingWhitespace(code string) string {
	if code == "" {
		return code
	}

	lastNewline := strings.LastIndex(code, "\n")
	if lastNewline == -1 {
		trimmed := strings.TrimRight(code, " \t")
		if trimmed != code {
			return trimmed + " "
		}
		return code
	}

	prefix := code[:lastNewline+1]
	suffix := code[lastNewline+1:]

	trimmedSuffix := strings.TrimRight(suffix, " \t")
	if trimmedSuffix == "" {
		// Indentation before markup.
		return code
	}

	content := strings.TrimLeft(trimmedSuffix, " \t")
	leading := suffix[:len(suffix)-len(strings.TrimLeft(suffix, " \t"))]
	if len(suffix) > len(trimmedSuffix) {
		return prefix + leading + content + " "
	}
	return code
}

func (f *Formatter) formatMarkup(node ast.Node) {
	switch n := node.(type) {
	case *ast.Element:
		regular, builtins := ast.SplitBuiltins(n.Attributes)
		f.formatTag(n.Tag, regular, builtins, n.Children, n.SelfClosing)
	case *ast.ComponentCall:
		f.formatTag(n.Name, n.Props, n.Builtins, n.Children, n.SelfClosing)
	case *ast.ClientComponentCall:
		f.formatTag(n.Name, n.Props, n.Builtins, n.Children, n.SelfClosing)
	case *ast.Fragment:
		f.formatTag("", nil, nil, n.Children, false)
	case *ast.Expression:
		f.formatExpression(n)
	case *ast.Comment:
		f.buf.WriteString("<!--")
		f.buf.WriteString(n.Value)
		f.buf.WriteString("-->")
	case *ast.Text:
		f.buf.WriteString(n.Value)
	case *ast.ControlIf:
		f.formatIf(n)
	case *ast.ControlFor:
		f.buf.WriteString("{for ")
		f.buf.WriteString(n.Header)
		f.buf.WriteByte(' ')
		f.formatBody(n.Body)
		f.buf.WriteByte('}')
	case *ast.ControlWhile:
		f.formatWhile(n)
	case *ast.ControlSwitch:
		f.formatSwitch(n)
	case *ast.ControlTry:
		f.formatTry(n)
	}
}

// formatTag formats an element, component call or fragment (empty name).
func (f *Formatter) formatTag(name string, regular, builtins []*ast.Attribute, children []ast.Node, selfClosing bool) {
	attrs := append(slices.Clone(regular), sortBuiltins(builtins)...)

	f.buf.WriteByte('<')
	f.buf.WriteString(name)

	formatted := make([]string, len(attrs))
	width := f.indentWidth() + len(name) + 1
	multiline := false
	for i, attr := range attrs {
		formatted[i] = f.capture(func() { f.formatAttribute(attr) })
		width += len(formatted[i]) + 1
		multiline = multiline || strings.Contains(formatted[i], "\n")
	}
	wrap := len(attrs) > 1 && !multiline && width > f.opts.MaxLineLength

	if wrap {
		f.indent++
		for _, attr := range formatted {
			f.buf.WriteByte('\n')
			f.writeIndent()
			f.buf.WriteString(attr)
		}
		f.indent--
	} else {
		for _, attr := range formatted {
			f.buf.WriteByte(' ')
			f.buf.WriteString(attr)
		}
	}

	if selfClosing {
		f.buf.WriteString(" />")
		return
	}
	f.buf.WriteByte('>')

	switch {
	case name != "" && verbatimElements[atom.Lookup([]byte(name))]:
		for _, child := range children {
			f.formatMarkup(child)
		}
	case f.shouldInline(children):
		f.formatInline(children)
	default:
		f.indent++
		f.formatFlow(children)
		f.indent--
		f.newline()
	}

	f.buf.WriteString("</")
	f.buf.WriteString(name)
	f.buf.WriteByte('>')
}

// formatAttribute formats a single attribute.
func (f *Formatter) formatAttribute(attr *ast.Attribute) {
	f.buf.WriteString(attr.Name)
	switch {
	case attr.Bare:
	case attr.Expr != nil:
		f.buf.WriteByte('=')
		f.formatExpression(attr.Expr)
	default:
		f.buf.WriteString(`="`)
		attrEscaper.WriteString(f.buf, attr.Value)
		f.buf.WriteByte('"')
	}
}

var attrEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func sortBuiltins(builtins []*ast.Attribute) []*ast.Attribute {
	sorted := slices.Clone(builtins)
	slices.SortStableFunc(sorted, func(a, b *ast.Attribute) int {
		return slices.Index(builtinOrder, a.Name) - slices.Index(builtinOrder, b.Name)
	})
	return sorted
}

// formatExpression formats {expr}, trimming the space just inside the braces.
func (f *Formatter) formatExpression(e *ast.Expression) {
	f.buf.WriteByte('{')
	last := len(e.Segments) - 1
	for i, seg := range e.Segments {
		code, ok := seg.(*ast.GoCode)
		if !ok {
			f.formatMarkup(seg)
			continue
		}
		v := code.Value
		if i == 0 {
			v = strings.TrimLeft(v, " \t\r\n")
		}
		if i == last {
			v = strings.TrimRight(v, " \t\r\n")
			lastLine := v[strings.LastIndexByte(v, '\n')+1:]
			if strings.Contains(lastLine, "//") {
				// A line comment must not swallow the closing brace.
				f.buf.WriteString(v)
				f.newline()
				continue
			}
		}
		f.buf.WriteString(v)
	}
	f.buf.WriteByte('}')
}

func (f *Formatter) formatIf(n *ast.ControlIf) {
	for i, b := range n.Branches {
		if i == 0 {
			f.buf.WriteString("{if ")
		} else {
			f.buf.WriteString(" else if ")
		}
		f.buf.WriteString(b.Condition)
		f.buf.WriteByte(' ')
		f.formatBody(b.Body)
	}
	if n.Else != nil {
		f.buf.WriteString(" else ")
		f.formatBody(n.Else)
	}
	f.buf.WriteByte('}')
}

func (f *Formatter) formatWhile(n *ast.ControlWhile) {
	f.buf.WriteString("{while ")
	f.buf.WriteString(n.Condition)
	if n.Continue != "" {
		f.buf.WriteString(" : ")
		f.buf.WriteString(n.Continue)
	}
	f.buf.WriteByte(' ')
	f.formatBody(n.Body)
	if n.Else != nil {
		f.buf.WriteString(" else ")
		f.formatBody(n.Else)
	}
	f.buf.WriteByte('}')
}

func (f *Formatter) formatSwitch(n *ast.ControlSwitch) {
	f.buf.WriteString("{switch ")
	f.buf.WriteString(n.Scrutinee)
	f.buf.WriteString(" {")
	for _, c := range n.Cases {
		f.newline()
		if c.Default {
			f.buf.WriteString("default:")
		} else {
			f.buf.WriteString("case ")
			f.buf.WriteString(c.Pattern)
			f.buf.WriteByte(':')
		}
		f.indent++
		f.formatFlow(ast.BodyChildren(c.Body))
		f.indent--
	}
	f.newline()
	f.buf.WriteString("}}")
}

func (f *Formatter) formatTry(n *ast.ControlTry) {
	f.buf.WriteString("{try ")
	f.buf.WriteString(n.Header)
	f.buf.WriteByte(' ')
	f.formatBody(n.Body)
	if n.Catch != nil {
		f.buf.WriteString(" catch ")
		if n.ErrorBinding != "" {
			f.buf.WriteString(n.ErrorBinding)
			f.buf.WriteByte(' ')
		}
		f.formatBody(n.Catch)
	}
	f.buf.WriteByte('}')
}

// formatBody formats the { ... } body of a control construct.
func (f *Formatter) formatBody(body ast.Node) {
	f.buf.WriteByte('{')
	f.indent++
	f.formatFlow(ast.BodyChildren(body))
	f.indent--
	f.newline()
	f.buf.WriteByte('}')
}

// separator is the whitespace between two items of a child flow.
type separator int

const (
	sepNone  separator = iota // adjacent
	sepSpace                  // whitespace without a newline, rendered as a space
	sepBreak                  // whitespace with a newline, dropped at text edges
)

// item is a word of text or a non-text child.
type item struct {
	word string
	node ast.Node
	sep  separator // whitespace before the item
}

// flow splits children into words and nodes, recording the whitespace
// between them and after the last one.
func flow(children []ast.Node) (items []item, trailing separator) {
	pending := sepNone
	for _, child := range children {
		text, ok := child.(*ast.Text)
		if !ok {
			items = append(items, item{node: child, sep: pending})
			pending = sepNone
			continue
		}
		s := text.Value
		for s != "" {
			rest := strings.TrimLeft(s, " \t\r\n")
			if ws := s[:len(s)-len(rest)]; ws != "" {
				switch {
				case strings.ContainsRune(ws, '\n'):
					pending = sepBreak
				case pending == sepNone:
					pending = sepSpace
				}
				s = rest
				continue
			}
			end := strings.IndexAny(s, " \t\r\n")
			if end < 0 {
				end = len(s)
			}
			items = append(items, item{word: s[:end], sep: pending})
			pending = sepNone
			s = s[end:]
		}
	}
	return items, pending
}

// formatFlow writes children one line each at the current indent. Words
// separated only by spaces, and nodes touching words, stay on one line.
func (f *Formatter) formatFlow(children []ast.Node) {
	items, _ := flow(children)
	for i, it := range items {
		switch {
		case i == 0 || it.sep == sepBreak:
			f.newline()
		case it.sep == sepSpace:
			f.buf.WriteByte(' ')
		case it.node != nil && items[i-1].node != nil:
			f.newline()
		}
		f.writeItem(it)
	}
}

// formatInline writes children on the current line. Whitespace with a
// newline at a text edge is dropped; any other whitespace becomes one space.
func (f *Formatter) formatInline(children []ast.Node) {
	items, trailing := flow(children)
	for i, it := range items {
		switch it.sep {
		case sepSpace:
			f.buf.WriteByte(' ')
		case sepBreak:
			if i > 0 && it.node == nil && items[i-1].node == nil {
				f.buf.WriteByte(' ')
			}
		}
		f.writeItem(it)
	}
	if trailing == sepSpace {
		f.buf.WriteByte(' ')
	}
}

func (f *Formatter) writeItem(it item) {
	if it.node != nil {
		f.formatMarkup(it.node)
		return
	}
	f.buf.WriteString(it.word)
}

// shouldInline reports whether children fit on the line of their parent:
// text and plain expressions only, and short.
func (f *Formatter) shouldInline(children []ast.Node) bool {
	if len(children) == 0 {
		return true
	}
	total := 0
	for _, child := range children {
		switch c := child.(type) {
		case *ast.Text:
			total += len(strings.TrimSpace(c.Value))
		case *ast.Expression:
			code, ok := c.Code()
			if !ok || strings.Contains(code, "\n") {
				return false
			}
			total += len(strings.TrimSpace(code)) + 2
		default:
			return false
		}
	}
	return total < 60
}

// capture returns what fn writes instead of writing it.
func (f *Formatter) capture(fn func()) string {
	saved := f.buf
	f.buf = new(bytes.Buffer)
	fn()
	out := f.buf.String()
	f.buf = saved
	return out
}

func (f *Formatter) newline() {
	f.buf.WriteByte('\n')
	f.writeIndent()
}

func (f *Formatter) indentWidth() int {
	return f.indent * f.opts.TabWidth
}

// writeIndent writes the current indentation.
func (f *Formatter) writeIndent() {
	if f.opts.UseTabs {
		for i := 0; i < f.indent; i++ {
			f.buf.WriteByte('\t')
		}
	} else {
		for i := 0; i < f.indent*f.opts.TabWidth; i++ {
			f.buf.WriteByte(' ')
		}
	}
}

// detectIndent detects the indentation level from a Go code snippet.
// It looks at the last line to determine the current indent level.
func (f *Formatter) detectIndent(code string) int {
	lines := strings.Split(code, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}
		tabs := 0
		for _, r := range line {
			if r != '\t' {
				break
			}
			tabs++
		}
		return tabs
	}
	return 0
}
