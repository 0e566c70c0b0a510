// Package lexer tokenizes zx files: Go source with embedded markup.
package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// mode is one entry of the lexer's context stack.
type mode int

const (
	modeGo       mode = iota // pass-through Go code
	modeTag                  // inside <tag ...>
	modeChildren             // element, fragment or control body children
	modeExpr                 // {expression}
	modeControl              // {if ...}, {for ...}, ...
)

func (m mode) String() string {
	switch m {
	case modeGo:
		return "go code"
	case modeTag:
		return "tag"
	case modeChildren:
		return "children"
	case modeExpr:
		return "expression"
	case modeControl:
		return "control block"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// childrenKind tells lexChildren what terminates the children list.
type childrenKind int

const (
	childrenElement childrenKind = iota // closing tag
	childrenBody                        // } of a control body
	childrenCase                        // next case/default or } of a switch body
)

// maxDepth bounds the mode stack so hostile input cannot exhaust the stack.
const maxDepth = 512

type mark struct {
	offset int
	line   int
	column int
}

// Lexer tokenizes a zx source file containing Go + markup.
type Lexer struct {
	input  string
	pos    int // current position in input
	line   int // current line number (1-indexed)
	column int // current column number (1-indexed, in runes)

	modes  []mode
	tokens []Token
	err    error
	ran    bool
	next   int
}

// New creates a new Lexer for the given input.
func New(input string) *Lexer {
	return &Lexer{
		input:  input,
		line:   1,
		column: 1,
	}
}

// Tokenize scans the whole input in a single pass.
func Tokenize(input string) ([]Token, error) {
	return New(input).Run()
}

// Run tokenizes the input. The token slice always ends with TOKEN_EOF when
// err is nil.
func (l *Lexer) Run() ([]Token, error) {
	if l.ran {
		return l.tokens, l.err
	}
	l.ran = true
	if err := l.push(modeGo); err != nil {
		l.err = err
		return l.tokens, l.err
	}
	if err := l.lexCode(false, l.mark()); err != nil {
		l.err = err
		return l.tokens, l.err
	}
	l.pop()
	l.tokens = append(l.tokens, Token{Type: TOKEN_EOF, Offset: l.pos, Line: l.line, Column: l.column})
	return l.tokens, nil
}

// NextToken returns the next token from the input. After the last token, or
// once tokenizing failed, it keeps returning TOKEN_EOF; Err reports the failure.
func (l *Lexer) NextToken() Token {
	l.Run()
	if l.next >= len(l.tokens) {
		return Token{Type: TOKEN_EOF, Offset: l.pos, Line: l.line, Column: l.column}
	}
	tok := l.tokens[l.next]
	l.next++
	return tok
}

// Err returns the tokenize error, if any.
func (l *Lexer) Err() error {
	l.Run()
	return l.err
}

// lexCode scans Go code. Inside an embedded expression it stops before the
// } that balances the opening brace.
func (l *Lexer) lexCode(inExpr bool, open mark) error {
	start := l.mark()
	depth := 0

	for l.pos < len(l.input) {
		ch := l.peek()
		switch {
		case ch == '<' && l.atMarkupStart():
			l.emitSpan(TOKEN_GO_CODE, start)
			if err := l.lexElement(); err != nil {
				return err
			}
			start = l.mark()
		case ch == '"' || ch == '\'':
			if err := l.skipQuoted(ch); err != nil {
				return err
			}
		case ch == '`':
			if err := l.skipRawString(); err != nil {
				return err
			}
		case ch == '/' && l.peekNext() == '/':
			l.skipLineComment()
		case ch == '/' && l.peekNext() == '*':
			if err := l.skipBlockComment(); err != nil {
				return err
			}
		case ch == '{':
			depth++
			l.advance()
		case ch == '}':
			if inExpr && depth == 0 {
				l.emitSpan(TOKEN_GO_CODE, start)
				return nil
			}
			depth--
			l.advance()
		default:
			l.advance()
		}
	}

	if inExpr {
		return l.errorAt(UnterminatedExpression, open, "missing '}'")
	}
	l.emitSpan(TOKEN_GO_CODE, start)
	return nil
}

// atMarkupStart reports whether the < at the current position opens markup.
// Markup may only appear where a Go expression can start.
func (l *Lexer) atMarkupStart() bool {
	next := l.peekNext()
	if next != '>' && !unicode.IsLetter(next) {
		return false
	}

	i := l.pos - 1
	for i >= 0 && isSpaceByte(l.input[i]) {
		i--
	}
	if i < 0 {
		return true
	}

	c := l.input[i]
	if strings.IndexByte("(,=:{[!&|;?", c) >= 0 {
		return true
	}
	if isIdentByte(c) {
		j := i
		for j >= 0 && isIdentByte(l.input[j]) {
			j--
		}
		return l.input[j+1:i+1] == "return"
	}
	return false
}

// lexElement lexes one element or fragment, including its children and
// closing tag.
func (l *Lexer) lexElement() error {
	open := l.mark()
	l.advance() // consume <

	if l.peek() == '>' {
		l.advance()
		l.emitAt(TOKEN_FRAG_OPEN, open, "<>")
		return l.lexChildren(open, childrenElement)
	}

	l.emitAt(TOKEN_TAG_OPEN, open, "<")
	if err := l.lexTagName(); err != nil {
		return err
	}

	if err := l.push(modeTag); err != nil {
		return err
	}
	for {
		l.skipSpace()
		if l.eof() {
			return l.errorAt(UnterminatedTag, open, "missing '>'")
		}

		ch := l.peek()
		switch {
		case ch == '/':
			m := l.mark()
			l.advance()
			if l.peek() != '>' {
				if l.eof() {
					return l.errorAt(UnterminatedTag, open, "missing '>'")
				}
				return l.errorAt(InvalidCharacter, m, "expected '>' after '/'")
			}
			l.advance()
			l.emitAt(TOKEN_TAG_SELF_CLOSE, m, "/>")
			l.pop()
			return nil
		case ch == '>':
			m := l.mark()
			l.advance()
			l.emitAt(TOKEN_TAG_CLOSE, m, ">")
			l.pop()
			return l.lexChildren(open, childrenElement)
		case ch == '@' || isIdentStart(ch):
			if err := l.lexAttribute(); err != nil {
				return err
			}
		default:
			return l.errorAt(InvalidAttribute, l.mark(), fmt.Sprintf("unexpected %q", ch))
		}
	}
}

// lexTagName lexes an element or component name. Names start with a letter
// and may contain dots for qualified components (ui.Button).
func (l *Lexer) lexTagName() error {
	m := l.mark()
	if !unicode.IsLetter(l.peek()) {
		if l.eof() {
			return l.errorAt(UnterminatedTag, m, "missing tag name")
		}
		return l.errorAt(InvalidCharacter, m, "tag name must start with a letter")
	}
	for !l.eof() && isTagChar(l.peek()) {
		l.advance()
	}
	l.emitSpan(TOKEN_TAG_NAME, m)
	return nil
}

// lexAttribute lexes name, name="value", name='value' or name={expr}.
func (l *Lexer) lexAttribute() error {
	m := l.mark()
	if l.peek() == '@' {
		l.advance()
		if !isIdentStart(l.peek()) {
			return l.errorAt(InvalidAttribute, m, "expected builtin name after '@'")
		}
	}
	for !l.eof() && isAttrChar(l.peek()) {
		l.advance()
	}
	l.emitSpan(TOKEN_ATTR_NAME, m)

	l.skipSpace()
	if l.peek() != '=' {
		return nil
	}
	eq := l.mark()
	l.advance()
	l.emitAt(TOKEN_ATTR_EQUALS, eq, "=")

	l.skipSpace()
	switch l.peek() {
	case '"', '\'':
		return l.lexAttrString()
	case '{':
		return l.lexEmbedded(false)
	default:
		if l.eof() {
			return l.errorAt(UnterminatedTag, m, "missing attribute value")
		}
		return l.errorAt(InvalidAttribute, l.mark(), "expected quoted string or {expression}")
	}
}

// lexAttrString lexes a quoted attribute value. A backslash escapes the
// quote character or another backslash; any other backslash is literal.
// The token value is the unescaped content.
func (l *Lexer) lexAttrString() error {
	m := l.mark()
	quote := l.peek()
	l.advance()

	var sb strings.Builder
	for {
		if l.eof() {
			return l.errorAt(UnterminatedString, m, "missing closing quote")
		}
		ch := l.peek()
		if next := l.peekNext(); ch == '\\' && (next == quote || next == '\\') {
			sb.WriteRune(next)
			l.advance()
			l.advance()
			continue
		}
		if ch == quote {
			l.advance()
			break
		}
		sb.WriteRune(ch)
		l.advance()
	}

	l.tokens = append(l.tokens, Token{
		Type:   TOKEN_ATTR_STRING,
		Value:  sb.String(),
		Offset: m.offset,
		Line:   m.line,
		Column: m.column,
	})
	return nil
}

// lexEmbedded lexes {expr}. Inside children, a control keyword right after
// the brace turns it into a control construct.
func (l *Lexer) lexEmbedded(allowControl bool) error {
	open := l.mark()
	l.advance() // consume {
	l.emitAt(TOKEN_EXPR_OPEN, open, "{")

	if allowControl {
		if kw := l.peekKeyword(controlKeywords...); kw != "" {
			return l.lexControl(open, kw)
		}
	}

	if err := l.push(modeExpr); err != nil {
		return err
	}
	if err := l.lexCode(true, open); err != nil {
		return err
	}
	l.pop()

	m := l.mark()
	l.advance() // consume }
	l.emitAt(TOKEN_EXPR_CLOSE, m, "}")
	return nil
}

// lexChildren lexes text, elements, comments and embedded expressions until
// the terminator for kind.
func (l *Lexer) lexChildren(open mark, kind childrenKind) error {
	if err := l.push(modeChildren); err != nil {
		return err
	}

	for {
		if l.eof() {
			if kind == childrenElement {
				return l.errorAt(UnterminatedTag, open, "missing closing tag")
			}
			return l.errorAt(UnterminatedExpression, open, "missing '}'")
		}

		ch := l.peek()
		switch {
		case ch == '<':
			next := l.peekNext()
			switch {
			case next == '/':
				if kind != childrenElement {
					return l.errorAt(InvalidCharacter, l.mark(), "unexpected closing tag in control body")
				}
				l.pop()
				return l.lexClosingTag(open)
			case next == '!' && strings.HasPrefix(l.input[l.pos:], "<!--"):
				if err := l.lexComment(); err != nil {
					return err
				}
			case next == '>' || unicode.IsLetter(next):
				if err := l.lexElement(); err != nil {
					return err
				}
			default:
				return l.errorAt(InvalidCharacter, l.mark(), "unescaped '<' in text")
			}
		case ch == '{':
			if err := l.lexEmbedded(true); err != nil {
				return err
			}
		case ch == '}':
			if kind == childrenElement {
				return l.errorAt(InvalidCharacter, l.mark(), "unexpected '}' in text")
			}
			l.pop()
			return nil
		default:
			if kind == childrenCase && l.atCaseLabel() {
				l.pop()
				return nil
			}
			l.lexText(kind == childrenCase)
		}
	}
}

// lexClosingTag lexes </tag> or </>.
func (l *Lexer) lexClosingTag(open mark) error {
	m := l.mark()
	l.advance() // <
	l.advance() // /

	if l.peek() == '>' {
		l.advance()
		l.emitAt(TOKEN_FRAG_CLOSE, m, "</>")
		return nil
	}

	l.emitAt(TOKEN_TAG_END_OPEN, m, "</")
	if err := l.lexTagName(); err != nil {
		return err
	}
	l.skipSpace()
	if l.eof() {
		return l.errorAt(UnterminatedTag, open, "missing '>' in closing tag")
	}
	if l.peek() != '>' {
		return l.errorAt(InvalidCharacter, l.mark(), "expected '>' in closing tag")
	}
	c := l.mark()
	l.advance()
	l.emitAt(TOKEN_TAG_CLOSE, c, ">")
	return nil
}

// lexComment lexes <!-- ... -->. The token value is the comment body.
func (l *Lexer) lexComment() error {
	m := l.mark()
	idx := strings.Index(l.input[l.pos+4:], "-->")
	if idx < 0 {
		return l.errorAt(UnterminatedComment, m, "missing '-->'")
	}
	body := l.input[l.pos+4 : l.pos+4+idx]
	l.advanceBytes(4 + idx + 3)
	l.tokens = append(l.tokens, Token{
		Type:   TOKEN_COMMENT,
		Value:  body,
		Offset: m.offset,
		Line:   m.line,
		Column: m.column,
	})
	return nil
}

// lexText lexes text content between tags. Whitespace is kept verbatim.
func (l *Lexer) lexText(stopAtCase bool) {
	m := l.mark()
	for !l.eof() {
		ch := l.peek()
		if ch == '<' || ch == '{' || ch == '}' {
			break
		}
		if stopAtCase && isSpaceRune(ch) && l.atCaseLabel() {
			break
		}
		l.advance()
	}
	l.emitSpan(TOKEN_TEXT, m)
}

// lexControl lexes a control construct whose opening { was already emitted.
func (l *Lexer) lexControl(open mark, kw string) error {
	if err := l.push(modeControl); err != nil {
		return err
	}
	l.skipSpace()
	l.emitKeyword(kw)
	if err := l.lexClause(kw, open); err != nil {
		return err
	}

	switch kw {
	case KeywordIf:
		for {
			l.skipSpace()
			if !l.atWord(KeywordElse) {
				break
			}
			l.emitKeyword(KeywordElse)
			l.skipSpace()
			if l.atWord(KeywordIf) {
				l.emitKeyword(KeywordIf)
				if err := l.lexClause(KeywordIf, open); err != nil {
					return err
				}
				continue
			}
			l.skipSpace()
			if err := l.lexBody(KeywordElse, open); err != nil {
				return err
			}
			break
		}
	case KeywordWhile:
		l.skipSpace()
		if l.atWord(KeywordElse) {
			l.emitKeyword(KeywordElse)
			l.skipSpace()
			if err := l.lexBody(KeywordElse, open); err != nil {
				return err
			}
		}
	case KeywordTry:
		l.skipSpace()
		if l.atWord(KeywordCatch) {
			l.emitKeyword(KeywordCatch)
			if err := l.lexClause(KeywordCatch, open); err != nil {
				return err
			}
		}
	}

	l.skipSpace()
	if l.eof() {
		return l.errorAt(UnterminatedExpression, open, "missing '}'")
	}
	if l.peek() != '}' {
		return l.errorAt(InvalidCharacter, l.mark(), fmt.Sprintf("expected '}' to close %s", kw))
	}
	l.pop()
	m := l.mark()
	l.advance()
	l.emitAt(TOKEN_EXPR_CLOSE, m, "}")
	return nil
}

// lexClause lexes a raw header followed by a body.
func (l *Lexer) lexClause(kw string, open mark) error {
	m := l.mark()
	if err := l.scanUntil('{', open); err != nil {
		return err
	}
	l.tokens = append(l.tokens, Token{
		Type:   TOKEN_HEADER,
		Value:  l.input[m.offset:l.pos],
		Offset: m.offset,
		Line:   m.line,
		Column: m.column,
	})
	return l.lexBody(kw, open)
}

// lexBody lexes { children } for a control clause.
func (l *Lexer) lexBody(kw string, open mark) error {
	if l.eof() {
		return l.errorAt(UnterminatedExpression, open, "missing body")
	}
	if l.peek() != '{' {
		return l.errorAt(InvalidCharacter, l.mark(), fmt.Sprintf("expected '{' to open %s body", kw))
	}
	m := l.mark()
	l.advance()
	l.emitAt(TOKEN_BODY_OPEN, m, "{")

	var err error
	if kw == KeywordSwitch {
		err = l.lexSwitchBody(m)
	} else {
		err = l.lexChildren(m, childrenBody)
	}
	if err != nil {
		return err
	}

	c := l.mark()
	l.advance() // consume }
	l.emitAt(TOKEN_BODY_CLOSE, c, "}")
	return nil
}

// lexSwitchBody lexes case/default labels, each followed by children.
func (l *Lexer) lexSwitchBody(open mark) error {
	for {
		l.skipSpace()
		if l.eof() {
			return l.errorAt(UnterminatedExpression, open, "missing '}' after switch body")
		}
		if l.peek() == '}' {
			return nil
		}

		switch {
		case l.atWord(KeywordCase):
			l.emitKeyword(KeywordCase)
			m := l.mark()
			if err := l.scanUntil(':', open); err != nil {
				return err
			}
			l.tokens = append(l.tokens, Token{
				Type:   TOKEN_CASE,
				Value:  l.input[m.offset:l.pos],
				Offset: m.offset,
				Line:   m.line,
				Column: m.column,
			})
			l.advance() // consume :
		case l.atWord(KeywordDefault):
			l.emitKeyword(KeywordDefault)
			l.skipSpace()
			if l.peek() != ':' {
				return l.errorAt(InvalidCharacter, l.mark(), "expected ':' after default")
			}
			l.advance()
		default:
			return l.errorAt(InvalidCharacter, l.mark(), "expected case or default in switch body")
		}

		if err := l.lexChildren(open, childrenCase); err != nil {
			return err
		}
	}
}

// scanUntil advances to the first stop byte outside brackets, strings and
// comments without consuming it.
func (l *Lexer) scanUntil(stop rune, open mark) error {
	depth := 0
	for !l.eof() {
		ch := l.peek()
		switch {
		case ch == stop && depth == 0 && !(stop == '{' && l.atCompositeLiteral()):
			return nil
		case ch == '"' || ch == '\'':
			if err := l.skipQuoted(ch); err != nil {
				return err
			}
			continue
		case ch == '`':
			if err := l.skipRawString(); err != nil {
				return err
			}
			continue
		case ch == '/' && l.peekNext() == '/':
			l.skipLineComment()
			continue
		case ch == '/' && l.peekNext() == '*':
			if err := l.skipBlockComment(); err != nil {
				return err
			}
			continue
		case ch == '(' || ch == '[' || ch == '{':
			depth++
		case ch == ')' || ch == ']' || ch == '}':
			if depth == 0 {
				return l.errorAt(InvalidCharacter, l.mark(), fmt.Sprintf("unexpected %q, expected %q", ch, stop))
			}
			depth--
		}
		l.advance()
	}
	return l.errorAt(UnterminatedExpression, open, "missing '}'")
}

// atCompositeLiteral reports whether the { at the current position opens a
// composite literal such as []string{...} or map[K]V{...} rather than a body.
func (l *Lexer) atCompositeLiteral() bool {
	i := l.pos - 1
	for i >= 0 && (isIdentByte(l.input[i]) || l.input[i] == '.') {
		i--
	}
	return i >= 0 && i < l.pos-1 && l.input[i] == ']'
}

// atCaseLabel reports whether the next non-space word is case or default.
func (l *Lexer) atCaseLabel() bool {
	i := l.pos
	for i < len(l.input) && isSpaceByte(l.input[i]) {
		i++
	}
	return wordAt(l.input, i, KeywordCase) || wordAt(l.input, i, KeywordDefault)
}

// peekKeyword returns the first keyword that follows optional whitespace.
func (l *Lexer) peekKeyword(keywords ...string) string {
	i := l.pos
	for i < len(l.input) && isSpaceByte(l.input[i]) {
		i++
	}
	for _, kw := range keywords {
		if wordAt(l.input, i, kw) {
			return kw
		}
	}
	return ""
}

func (l *Lexer) atWord(word string) bool {
	return wordAt(l.input, l.pos, word)
}

func (l *Lexer) emitKeyword(kw string) {
	m := l.mark()
	l.advanceBytes(len(kw))
	l.emitAt(TOKEN_KEYWORD, m, kw)
}

func wordAt(s string, i int, word string) bool {
	if !strings.HasPrefix(s[i:], word) {
		return false
	}
	end := i + len(word)
	return end == len(s) || !isIdentByte(s[end])
}

// Go literal and comment skipping

// skipQuoted skips an interpreted string or rune literal.
func (l *Lexer) skipQuoted(quote rune) error {
	m := l.mark()
	l.advance() // opening quote
	for !l.eof() {
		ch := l.peek()
		switch ch {
		case quote:
			l.advance()
			return nil
		case '\\':
			l.advance()
		case '\n':
			return l.errorAt(UnterminatedString, m, "newline in literal")
		}
		l.advance()
	}
	return l.errorAt(UnterminatedString, m, "missing closing quote")
}

func (l *Lexer) skipRawString() error {
	m := l.mark()
	l.advance() // opening `
	for !l.eof() {
		if l.peek() == '`' {
			l.advance()
			return nil
		}
		l.advance()
	}
	return l.errorAt(UnterminatedString, m, "missing closing '`'")
}

func (l *Lexer) skipLineComment() {
	for !l.eof() && l.peek() != '\n' {
		l.advance()
	}
}

func (l *Lexer) skipBlockComment() error {
	m := l.mark()
	l.advance() // /
	l.advance() // *
	for !l.eof() {
		if l.peek() == '*' && l.peekNext() == '/' {
			l.advance()
			l.advance()
			return nil
		}
		l.advance()
	}
	return l.errorAt(UnterminatedComment, m, "missing '*/'")
}

// Mode stack

func (l *Lexer) push(m mode) error {
	if len(l.modes) >= maxDepth {
		return l.errorAt(InvalidCharacter, l.mark(), "nesting too deep")
	}
	l.modes = append(l.modes, m)
	return nil
}

func (l *Lexer) pop() {
	l.modes = l.modes[:len(l.modes)-1]
}

// Helper functions

func (l *Lexer) mark() mark {
	return mark{offset: l.pos, line: l.line, column: l.column}
}

func (l *Lexer) eof() bool {
	return l.pos >= len(l.input)
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.input) {
		return 0
	}
	_, size := utf8.DecodeRuneInString(l.input[l.pos:])
	r, _ := utf8.DecodeRuneInString(l.input[l.pos+size:])
	return r
}

func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	if r == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos += size
}

func (l *Lexer) advanceBytes(n int) {
	end := l.pos + n
	for l.pos < end && l.pos < len(l.input) {
		l.advance()
	}
}

func (l *Lexer) skipSpace() {
	for !l.eof() && isSpaceRune(l.peek()) {
		l.advance()
	}
}

func (l *Lexer) emitAt(typ TokenType, m mark, value string) {
	l.tokens = append(l.tokens, Token{
		Type:   typ,
		Value:  value,
		Offset: m.offset,
		Line:   m.line,
		Column: m.column,
	})
}

// emitSpan emits the input between m and the current position, if any.
func (l *Lexer) emitSpan(typ TokenType, m mark) {
	if l.pos <= m.offset {
		return
	}
	l.emitAt(typ, m, l.input[m.offset:l.pos])
}

func (l *Lexer) errorAt(kind ErrorKind, m mark, msg string) error {
	if len(l.modes) > 0 {
		msg = fmt.Sprintf("%s (in %s)", msg, l.modes[len(l.modes)-1])
	}
	return &Error{Kind: kind, Line: m.line, Column: m.column, Msg: msg}
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func isTagChar(r rune) bool {
	return isIdentChar(r) || r == '-' || r == '.' || r == ':'
}

func isAttrChar(r rune) bool {
	return isIdentChar(r) || r == '-' || r == ':' || r == '.'
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= utf8.RuneSelf
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isSpaceRune(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
