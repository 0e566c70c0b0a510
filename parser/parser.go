// Package parser parses zx files into an AST.
package parser

import (
	"errors"
	"fmt"
	"go/token"
	"hash/fnv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/germtb/zx/ast"
	"github.com/germtb/zx/lexer"
)

// Builtin attribute names.
const (
	BuiltinAllocator = "@allocator"
	BuiltinRendering = "@rendering"
	BuiltinEscaping  = "@escaping"
	BuiltinAsync     = "@async"
	BuiltinCaching   = "@caching"
	BuiltinFallback  = "@fallback"
	BuiltinClient    = "@client"
)

var builtinNames = map[string]bool{
	BuiltinAllocator: true,
	BuiltinRendering: true,
	BuiltinEscaping:  true,
	BuiltinAsync:     true,
	BuiltinCaching:   true,
	BuiltinFallback:  true,
	BuiltinClient:    true,
}

// IsBuiltin reports whether name is one of the builtin attributes.
func IsBuiltin(name string) bool {
	return builtinNames[name]
}

// reservedPrefix is used by generated identifiers.
const reservedPrefix = "_zx_"

// Parser parses zx source files.
type Parser struct {
	filename string
	src      []byte
	tokens   []lexer.Token
	pos      int
	tok      lexer.Token

	file    *ast.File
	scopes  [][]string
	clients []ast.ClientComponent
	seen    map[string]bool
}

// New creates a new Parser.
func New(filename string, src []byte) *Parser {
	return &Parser{
		filename: filename,
		src:      src,
	}
}

// Parse parses a zx file and returns the AST.
func Parse(filename string, src []byte) (*ast.File, error) {
	return New(filename, src).Parse()
}

// ParseTokens parses an already tokenized file.
func ParseTokens(filename string, tokens []lexer.Token) (*ast.File, error) {
	p := &Parser{filename: filename, tokens: tokens}
	return p.parseFile()
}

// Parse tokenizes and parses the source.
func (p *Parser) Parse() (*ast.File, error) {
	tokens, err := lexer.Tokenize(string(p.src))
	if err != nil {
		var lexErr *lexer.Error
		if errors.As(err, &lexErr) {
			lexErr.File = p.filename
		}
		return nil, err
	}
	p.tokens = tokens
	return p.parseFile()
}

// ClientComponents returns the client components discovered so far, in
// first-seen order.
func (p *Parser) ClientComponents() []ast.ClientComponent {
	return p.clients
}

func (p *Parser) parseFile() (*ast.File, error) {
	if len(p.tokens) == 0 || p.tokens[len(p.tokens)-1].Type != lexer.TOKEN_EOF {
		p.tokens = append(p.tokens, lexer.Token{Type: lexer.TOKEN_EOF})
	}
	p.pos = 0
	p.tok = p.tokens[0]
	p.seen = map[string]bool{}

	p.file = &ast.File{SourcePath: p.filename}
	if p.tok.Type == lexer.TOKEN_GO_CODE {
		p.file.Package, p.file.Imports = parseImports(p.tok.Value)
	}

	for p.tok.Type != lexer.TOKEN_EOF {
		switch p.tok.Type {
		case lexer.TOKEN_GO_CODE:
			p.file.Nodes = append(p.file.Nodes, &ast.GoCode{Value: p.tok.Value, Range: p.tokenRange()})
			p.advance()
		case lexer.TOKEN_TAG_OPEN, lexer.TOKEN_FRAG_OPEN:
			node, err := p.parseMarkup()
			if err != nil {
				return nil, err
			}
			p.file.Nodes = append(p.file.Nodes, node)
		default:
			return nil, p.unexpected("in Go code")
		}
	}

	p.file.ClientComponents = p.clients
	return p.file, nil
}

// parseMarkup parses an element, component call or fragment.
func (p *Parser) parseMarkup() (ast.Node, error) {
	if p.tok.Type == lexer.TOKEN_FRAG_OPEN {
		return p.parseFragment()
	}
	return p.parseElement()
}

// parseFragment parses <>...</>.
func (p *Parser) parseFragment() (*ast.Fragment, error) {
	frag := &ast.Fragment{Range: p.tokenRange()}
	p.advance() // consume <>

	children, err := p.parseChildren()
	if err != nil {
		return nil, err
	}
	frag.Children = children

	switch p.tok.Type {
	case lexer.TOKEN_FRAG_CLOSE:
		frag.Range.End = p.tokenRange().End
		p.advance()
	case lexer.TOKEN_TAG_END_OPEN:
		return nil, p.errorf(MismatchedTag, p.tok, "expected </> to close fragment, got </%s>", p.peekValue(1))
	default:
		return nil, p.unexpected("in fragment")
	}
	return frag, nil
}

// parseElement parses <tag ...> ... </tag> or <tag ... />.
func (p *Parser) parseElement() (ast.Node, error) {
	start := p.tokenRange()
	p.advance() // consume <

	nameTok, err := p.expect(lexer.TOKEN_TAG_NAME, "tag name")
	if err != nil {
		return nil, err
	}
	name := nameTok.Value

	attrs, err := p.parseAttributes()
	if err != nil {
		return nil, err
	}

	var children []ast.Node
	selfClosing := false
	end := start.End

	switch p.tok.Type {
	case lexer.TOKEN_TAG_SELF_CLOSE:
		selfClosing = true
		end = p.tokenRange().End
		p.advance()
	case lexer.TOKEN_TAG_CLOSE:
		p.advance()
		children, err = p.parseChildren()
		if err != nil {
			return nil, err
		}
		end, err = p.parseClosingTag(name)
		if err != nil {
			return nil, err
		}
	default:
		return nil, p.unexpected("in tag")
	}

	rng := ast.Range{Start: start.Start, End: end}
	regular, builtins := ast.SplitBuiltins(attrs)

	if !isComponentName(name) {
		if a := ast.FindAttribute(builtins, BuiltinClient); a != nil {
			return nil, p.errorAtf(UnexpectedToken, a.Range.Start, "@client is only valid on components, not <%s>", name)
		}
		return &ast.Element{
			Range:       rng,
			Tag:         name,
			Attributes:  attrs,
			Children:    children,
			SelfClosing: selfClosing,
		}, nil
	}

	call := ast.ComponentCall{
		Range:       rng,
		Name:        name,
		Props:       regular,
		Builtins:    builtins,
		Children:    children,
		SelfClosing: selfClosing,
	}
	if kind, ok := clientKind(builtins); ok {
		return &ast.ClientComponentCall{ComponentCall: call, Meta: p.registerClient(name, kind)}, nil
	}
	return &call, nil
}

// parseClosingTag parses </name> and returns the end position.
func (p *Parser) parseClosingTag(name string) (ast.Position, error) {
	switch p.tok.Type {
	case lexer.TOKEN_TAG_END_OPEN:
	case lexer.TOKEN_FRAG_CLOSE:
		return ast.Position{}, p.errorf(MismatchedTag, p.tok, "expected </%s>, got </>", name)
	default:
		return ast.Position{}, p.unexpected(fmt.Sprintf("in <%s>", name))
	}
	endOpen := p.tok
	p.advance()

	closeTok, err := p.expect(lexer.TOKEN_TAG_NAME, "closing tag name")
	if err != nil {
		return ast.Position{}, err
	}
	if closeTok.Value != name {
		return ast.Position{}, p.errorf(MismatchedTag, endOpen, "mismatched closing tag: expected </%s>, got </%s>", name, closeTok.Value)
	}

	gt, err := p.expect(lexer.TOKEN_TAG_CLOSE, "'>'")
	if err != nil {
		return ast.Position{}, err
	}
	return tokenEnd(gt), nil
}

// parseAttributes parses attributes until > or />.
func (p *Parser) parseAttributes() ([]*ast.Attribute, error) {
	var attrs []*ast.Attribute
	seen := map[string]bool{}

	for p.tok.Type == lexer.TOKEN_ATTR_NAME {
		attr, err := p.parseAttribute()
		if err != nil {
			return nil, err
		}
		if seen[attr.Name] {
			return nil, p.errorAtf(DuplicateAttribute, attr.Range.Start, "duplicate attribute %s", attr.Name)
		}
		seen[attr.Name] = true
		attrs = append(attrs, attr)
	}

	if seen[BuiltinFallback] && !seen[BuiltinAsync] {
		a := ast.FindAttribute(attrs, BuiltinFallback)
		return nil, p.errorAtf(MissingRequiredAttribute, a.Range.Start, "@fallback requires @async")
	}
	return attrs, nil
}

// parseAttribute parses a single attribute.
func (p *Parser) parseAttribute() (*ast.Attribute, error) {
	nameTok := p.tok
	attr := &ast.Attribute{
		Name:  nameTok.Value,
		Range: p.tokenRange(),
	}
	builtin := attr.IsBuiltin()
	if builtin && !IsBuiltin(attr.Name) {
		return nil, p.errorf(UnknownBuiltinAttribute, nameTok, "unknown builtin attribute %s", attr.Name)
	}
	p.advance()

	if p.tok.Type != lexer.TOKEN_ATTR_EQUALS {
		attr.Bare = true
		attr.Kind = attrKind(attr.Name, ast.AttrBoolean)
		return attr, nil
	}
	p.advance() // consume =

	switch p.tok.Type {
	case lexer.TOKEN_ATTR_STRING:
		attr.Kind = attrKind(attr.Name, ast.AttrString)
		attr.Value = p.tok.Value
		attr.Range.End = tokenEnd(p.tok)
		p.advance()
	case lexer.TOKEN_EXPR_OPEN:
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		attr.Expr = expr
		attr.Range.End = expr.Range.End
		attr.Kind = attrKind(attr.Name, ast.AttrExpression)
		if attr.Kind == ast.AttrExpression && isEventHandler(attr.Name) {
			attr.Kind = ast.AttrEventHandler
		}
	default:
		return nil, p.unexpected("as attribute value")
	}
	return attr, nil
}

// attrKind returns AttrBuiltin for builtin names and kind otherwise.
func attrKind(name string, kind ast.AttributeKind) ast.AttributeKind {
	if strings.HasPrefix(name, "@") {
		return ast.AttrBuiltin
	}
	return kind
}

// isEventHandler reports whether name looks like onclick or onClick.
func isEventHandler(name string) bool {
	return len(name) > 2 && strings.HasPrefix(name, "on")
}

// parseExpression parses {expression}; the current token is EXPR_OPEN.
func (p *Parser) parseExpression() (*ast.Expression, error) {
	expr := &ast.Expression{Range: p.tokenRange(), Scope: p.visible()}
	p.advance() // consume {

	for {
		switch p.tok.Type {
		case lexer.TOKEN_GO_CODE:
			expr.Segments = append(expr.Segments, &ast.GoCode{Value: p.tok.Value, Range: p.tokenRange()})
			p.advance()
		case lexer.TOKEN_TAG_OPEN, lexer.TOKEN_FRAG_OPEN:
			node, err := p.parseMarkup()
			if err != nil {
				return nil, err
			}
			expr.Segments = append(expr.Segments, node)
		case lexer.TOKEN_EXPR_CLOSE:
			expr.Range.End = tokenEnd(p.tok)
			p.advance()
			return expr, nil
		default:
			return nil, p.unexpected("in expression")
		}
	}
}

// parseChildren parses children until a closing tag, the end of a fragment,
// the end of a control body or the next switch label.
func (p *Parser) parseChildren() ([]ast.Node, error) {
	var children []ast.Node

	for {
		switch p.tok.Type {
		case lexer.TOKEN_TEXT:
			children = append(children, &ast.Text{Value: p.tok.Value, Range: p.tokenRange()})
			p.advance()
		case lexer.TOKEN_COMMENT:
			children = append(children, &ast.Comment{Value: p.tok.Value, Range: p.tokenRange()})
			p.advance()
		case lexer.TOKEN_TAG_OPEN, lexer.TOKEN_FRAG_OPEN:
			node, err := p.parseMarkup()
			if err != nil {
				return nil, err
			}
			children = append(children, node)
		case lexer.TOKEN_EXPR_OPEN:
			var node ast.Node
			var err error
			if p.peek(1).Type == lexer.TOKEN_KEYWORD {
				node, err = p.parseControl()
			} else {
				node, err = p.parseExpression()
			}
			if err != nil {
				return nil, err
			}
			children = append(children, node)
		case lexer.TOKEN_TAG_END_OPEN, lexer.TOKEN_FRAG_CLOSE, lexer.TOKEN_BODY_CLOSE, lexer.TOKEN_KEYWORD:
			return children, nil
		default:
			return nil, p.unexpected("in children")
		}
	}
}

// Control flow

// parseControl parses {if ...}, {for ...}, {while ...}, {switch ...} or
// {try ...}; the current token is EXPR_OPEN.
func (p *Parser) parseControl() (ast.Node, error) {
	open := p.tokenRange()
	p.advance() // consume {

	kw := p.tok
	p.advance()

	var node ast.Node
	var err error
	switch kw.Value {
	case lexer.KeywordIf:
		node, err = p.parseIf()
	case lexer.KeywordFor:
		node, err = p.parseFor()
	case lexer.KeywordWhile:
		node, err = p.parseWhile()
	case lexer.KeywordSwitch:
		node, err = p.parseSwitch()
	case lexer.KeywordTry:
		node, err = p.parseTry()
	default:
		return nil, p.errorf(UnexpectedToken, kw, "unexpected keyword %q", kw.Value)
	}
	if err != nil {
		return nil, err
	}

	closeTok, err := p.expect(lexer.TOKEN_EXPR_CLOSE, "'}'")
	if err != nil {
		return nil, err
	}
	rng := ast.Range{Start: open.Start, End: tokenEnd(closeTok)}

	switch n := node.(type) {
	case *ast.ControlIf:
		n.Range = rng
	case *ast.ControlFor:
		n.Range = rng
	case *ast.ControlWhile:
		n.Range = rng
	case *ast.ControlSwitch:
		n.Range = rng
	case *ast.ControlTry:
		n.Range = rng
	}
	return node, nil
}

func (p *Parser) parseIf() (*ast.ControlIf, error) {
	n := &ast.ControlIf{}
	for {
		hdr, err := p.expect(lexer.TOKEN_HEADER, "if condition")
		if err != nil {
			return nil, err
		}
		cond := strings.TrimSpace(hdr.Value)
		if cond == "" {
			return nil, p.errorf(UnexpectedToken, hdr, "missing condition in if")
		}
		body, err := p.parseBody(nil)
		if err != nil {
			return nil, err
		}
		n.Branches = append(n.Branches, ast.IfBranch{
			Condition: cond,
			CondPos:   posIn(hdr, leadingSpace(hdr.Value)),
			Range:     headerRange(hdr),
			Body:      body,
		})

		if !p.atKeyword(lexer.KeywordElse) {
			return n, nil
		}
		p.advance() // consume else
		if p.atKeyword(lexer.KeywordIf) {
			p.advance()
			continue
		}
		n.Else, err = p.parseBody(nil)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
}

func (p *Parser) parseFor() (*ast.ControlFor, error) {
	hdr, err := p.expect(lexer.TOKEN_HEADER, "for header")
	if err != nil {
		return nil, err
	}
	header := strings.TrimSpace(hdr.Value)

	bindings, iterable, err := forHeader(header)
	if err != nil {
		return nil, p.errorf(UnexpectedToken, hdr, "invalid for header: %v", err)
	}
	if err := p.checkBindings(hdr, bindings); err != nil {
		return nil, err
	}

	body, err := p.parseBody(bindings)
	if err != nil {
		return nil, err
	}
	return &ast.ControlFor{
		Header:      header,
		HeaderPos:   posIn(hdr, leadingSpace(hdr.Value)),
		HeaderRange: headerRange(hdr),
		Bindings:    bindings,
		Iterable:    iterable,
		Body:        body,
	}, nil
}

func (p *Parser) parseWhile() (*ast.ControlWhile, error) {
	hdr, err := p.expect(lexer.TOKEN_HEADER, "while condition")
	if err != nil {
		return nil, err
	}
	rawCond, post := splitPost(hdr.Value)
	cond := strings.TrimSpace(rawCond)
	if cond == "" {
		return nil, p.errorf(UnexpectedToken, hdr, "missing condition in while")
	}
	condOff := leadingSpace(rawCond)

	bindings, errBinding, call, callOff, err := whileHeader(cond)
	if err != nil {
		return nil, p.errorf(UnexpectedToken, hdr, "invalid while header: %v", err)
	}
	if errBinding == "_" {
		return nil, p.errorf(InvalidCaptureBinding, hdr, "the error binding of a while loop cannot be _")
	}
	all := bindings
	if errBinding != "" {
		all = append(append([]string{}, bindings...), errBinding)
	}
	if err := p.checkBindings(hdr, all); err != nil {
		return nil, err
	}

	n := &ast.ControlWhile{
		Condition:    cond,
		CondPos:      posIn(hdr, condOff),
		HeaderRange:  headerRange(hdr),
		Bindings:     bindings,
		ErrorBinding: errBinding,
		Call:         call,
		Continue:     strings.TrimSpace(post),
	}
	if call != "" {
		n.CallPos = posIn(hdr, condOff+callOff)
	}
	if n.Continue != "" {
		n.ContinuePos = posIn(hdr, len(rawCond)+1+leadingSpace(post))
	}
	n.Body, err = p.parseBody(bindings)
	if err != nil {
		return nil, err
	}

	if p.atKeyword(lexer.KeywordElse) {
		p.advance()
		var scope []string
		if errBinding != "" {
			scope = []string{errBinding}
		}
		n.Else, err = p.parseBody(scope)
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (p *Parser) parseSwitch() (*ast.ControlSwitch, error) {
	hdr, err := p.expect(lexer.TOKEN_HEADER, "switch header")
	if err != nil {
		return nil, err
	}
	header := strings.TrimSpace(hdr.Value)

	capture, err := switchHeader(header)
	if err != nil {
		return nil, p.errorf(UnexpectedToken, hdr, "invalid switch header: %v", err)
	}
	var scope []string
	if capture != "" {
		scope = []string{capture}
		if err := p.checkBindings(hdr, scope); err != nil {
			return nil, err
		}
	}

	n := &ast.ControlSwitch{
		Scrutinee:   header,
		HeaderPos:   posIn(hdr, leadingSpace(hdr.Value)),
		HeaderRange: headerRange(hdr),
		Capture:     capture,
	}

	if _, err := p.expect(lexer.TOKEN_BODY_OPEN, "'{'"); err != nil {
		return nil, err
	}
	p.pushScope(scope)
	defer p.popScope()

	hasDefault := false
	for !p.at(lexer.TOKEN_BODY_CLOSE) {
		label := p.tok
		c := ast.SwitchCase{Capture: capture, Range: p.tokenRange()}

		switch {
		case p.atKeyword(lexer.KeywordCase):
			p.advance()
			pat, err := p.expect(lexer.TOKEN_CASE, "case pattern")
			if err != nil {
				return nil, err
			}
			c.Pattern = strings.TrimSpace(pat.Value)
			c.PatternPos = posIn(pat, leadingSpace(pat.Value))
			if c.Pattern == "" {
				return nil, p.errorf(UnexpectedToken, pat, "missing case pattern")
			}
		case p.atKeyword(lexer.KeywordDefault):
			if hasDefault {
				return nil, p.errorf(UnexpectedToken, label, "multiple defaults in switch")
			}
			hasDefault = true
			c.Default = true
			p.advance()
		default:
			return nil, p.unexpected("in switch body")
		}

		children, err := p.parseChildren()
		if err != nil {
			return nil, err
		}
		c.Body = makeBody(children, c.Range)
		n.Cases = append(n.Cases, c)
	}
	p.advance() // consume }
	return n, nil
}

func (p *Parser) parseTry() (*ast.ControlTry, error) {
	hdr, err := p.expect(lexer.TOKEN_HEADER, "try header")
	if err != nil {
		return nil, err
	}
	header := strings.TrimSpace(hdr.Value)
	if header == "" {
		return nil, p.errorf(UnexpectedToken, hdr, "missing call in try")
	}

	bindings, call, callOff, err := tryHeader(header)
	if err != nil {
		return nil, p.errorf(UnexpectedToken, hdr, "invalid try header: %v", err)
	}
	if err := p.checkBindings(hdr, bindings); err != nil {
		return nil, err
	}

	n := &ast.ControlTry{
		Header:      header,
		HeaderRange: headerRange(hdr),
		Bindings:    bindings,
		Call:        call,
		CallPos:     posIn(hdr, leadingSpace(hdr.Value)+callOff),
	}
	n.Body, err = p.parseBody(bindings)
	if err != nil {
		return nil, err
	}

	if p.atKeyword(lexer.KeywordCatch) {
		p.advance()
		catchHdr, err := p.expect(lexer.TOKEN_HEADER, "catch binding")
		if err != nil {
			return nil, err
		}
		n.ErrorBinding = strings.TrimSpace(catchHdr.Value)
		var scope []string
		if n.ErrorBinding != "" {
			scope = []string{n.ErrorBinding}
			if err := p.checkBindings(catchHdr, scope); err != nil {
				return nil, err
			}
		}
		n.Catch, err = p.parseBody(scope)
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}

// parseBody parses { children } with bindings in scope.
func (p *Parser) parseBody(bindings []string) (ast.Node, error) {
	open, err := p.expect(lexer.TOKEN_BODY_OPEN, "'{'")
	if err != nil {
		return nil, err
	}
	p.pushScope(bindings)
	children, err := p.parseChildren()
	p.popScope()
	if err != nil {
		return nil, err
	}
	closeTok, err := p.expect(lexer.TOKEN_BODY_CLOSE, "'}'")
	if err != nil {
		return nil, err
	}
	return makeBody(children, ast.Range{Start: tokenPos(open), End: tokenEnd(closeTok)}), nil
}

// makeBody drops layout whitespace and returns the single remaining child
// or an implicit fragment.
func makeBody(children []ast.Node, rng ast.Range) ast.Node {
	var kept []ast.Node
	for i, c := range children {
		if t, ok := c.(*ast.Text); ok && strings.TrimSpace(t.Value) == "" {
			edge := i == 0 || i == len(children)-1
			if edge || strings.ContainsRune(t.Value, '\n') {
				continue
			}
		}
		kept = append(kept, c)
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return &ast.Fragment{Range: rng, Children: kept, Implicit: true}
}

// checkBindings validates names declared by one control header.
func (p *Parser) checkBindings(hdr lexer.Token, names []string) error {
	seen := map[string]bool{}
	for _, name := range names {
		if name == "_" {
			continue
		}
		if !token.IsIdentifier(name) {
			return p.errorf(InvalidCaptureBinding, hdr, "%q is not a valid binding", name)
		}
		if strings.HasPrefix(name, reservedPrefix) {
			return p.errorf(InvalidCaptureBinding, hdr, "binding %s uses the reserved prefix %s", name, reservedPrefix)
		}
		if seen[name] {
			return p.errorf(InvalidCaptureBinding, hdr, "%s is bound twice", name)
		}
		seen[name] = true
	}
	return nil
}

// Scopes

func (p *Parser) pushScope(names []string) {
	p.scopes = append(p.scopes, names)
}

func (p *Parser) popScope() {
	p.scopes = p.scopes[:len(p.scopes)-1]
}

// visible returns the names bound by enclosing constructs, outermost first.
func (p *Parser) visible() []string {
	var out []string
	for _, s := range p.scopes {
		for _, name := range s {
			if name != "_" {
				out = append(out, name)
			}
		}
	}
	return out
}

// Components

// isComponentName reports whether a tag names a component: Card, ui.Card.
func isComponentName(name string) bool {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

// clientKind reports whether builtins make a component call client side.
func clientKind(builtins []*ast.Attribute) (string, bool) {
	if a := ast.FindAttribute(builtins, BuiltinClient); a != nil {
		if a.Value == "react" {
			return "react", true
		}
		return "client", true
	}
	if a := ast.FindAttribute(builtins, BuiltinRendering); a != nil && a.Value == "client" {
		return "client", true
	}
	return "", false
}

func (p *Parser) registerClient(name, kind string) ast.ClientComponent {
	path := p.filename
	if i := strings.IndexByte(name, '.'); i >= 0 {
		if imp, ok := p.file.ImportPath(name[:i]); ok {
			path = imp
		}
	}

	meta := ast.ClientComponent{
		ID:   ClientID(path, name),
		Name: name,
		Path: path,
		Kind: kind,
	}
	if !p.seen[meta.ID] {
		p.seen[meta.ID] = true
		p.clients = append(p.clients, meta)
	}
	return meta
}

// ClientID derives the stable id of a client component.
func ClientID(path, name string) string {
	h := fnv.New32a()
	h.Write([]byte(path + "#" + name))
	return fmt.Sprintf("zx-%08x", h.Sum32())
}

// Helper methods

func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	p.tok = p.tokens[p.pos]
}

func (p *Parser) peek(n int) lexer.Token {
	if p.pos+n < len(p.tokens) {
		return p.tokens[p.pos+n]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) peekValue(n int) string {
	return p.peek(n).Value
}

func (p *Parser) at(typ lexer.TokenType) bool {
	return p.tok.Type == typ
}

func (p *Parser) atKeyword(kw string) bool {
	return p.tok.Type == lexer.TOKEN_KEYWORD && p.tok.Value == kw
}

// expect consumes a token of the given type.
func (p *Parser) expect(typ lexer.TokenType, what string) (lexer.Token, error) {
	if p.tok.Type != typ {
		return lexer.Token{}, p.unexpected("expected " + what)
	}
	tok := p.tok
	p.advance()
	return tok, nil
}

func (p *Parser) unexpected(context string) error {
	if p.tok.Type == lexer.TOKEN_EOF {
		return p.errorf(UnexpectedToken, p.tok, "unexpected end of file %s", context)
	}
	return p.errorf(UnexpectedToken, p.tok, "unexpected %s %s", p.tok, context)
}

func (p *Parser) errorf(kind ErrorKind, tok lexer.Token, format string, args ...any) error {
	return p.errorAtf(kind, tokenPos(tok), format, args...)
}

func (p *Parser) errorAtf(kind ErrorKind, pos ast.Position, format string, args ...any) error {
	return &Error{
		Kind: kind,
		File: p.filename,
		Pos:  pos,
		Msg:  fmt.Sprintf(format, args...),
	}
}

func (p *Parser) tokenRange() ast.Range {
	return ast.Range{Start: tokenPos(p.tok), End: tokenEnd(p.tok)}
}

func tokenPos(tok lexer.Token) ast.Position {
	return ast.NewPosition(tok.Offset, tok.Line, tok.Column)
}

// advancePos returns the position just past s when s starts at pos.
func advancePos(pos ast.Position, s string) ast.Position {
	pos.Offset += len(s)
	for _, r := range s {
		if r == '\n' {
			pos.Line++
			pos.Column = 1
		} else {
			pos.Column++
		}
	}
	return pos
}

// posIn returns the position of byte off within the value of tok.
func posIn(tok lexer.Token, off int) ast.Position {
	return advancePos(tokenPos(tok), tok.Value[:off])
}

// leadingSpace returns the length of the whitespace that starts s.
func leadingSpace(s string) int {
	return len(s) - len(strings.TrimLeftFunc(s, unicode.IsSpace))
}

// tokenEnd returns the position just past a token.
func tokenEnd(tok lexer.Token) ast.Position {
	pos := advancePos(tokenPos(tok), tok.Value)
	switch tok.Type {
	case lexer.TOKEN_ATTR_STRING:
		pos.Offset += 2
		pos.Column += 2
	case lexer.TOKEN_COMMENT:
		pos.Offset += 7
		pos.Column += 7
	}
	return pos
}

func headerRange(tok lexer.Token) ast.Range {
	return ast.Range{Start: tokenPos(tok), End: tokenEnd(tok)}
}
