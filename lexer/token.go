package lexer

import "fmt"

// TokenType represents the type of a lexical token.
type TokenType int

const (
	TOKEN_EOF TokenType = iota

	// Go code (pass-through)
	TOKEN_GO_CODE

	// Markup tokens
	TOKEN_TAG_OPEN       // <
	TOKEN_TAG_END_OPEN   // </
	TOKEN_TAG_NAME       // element/component name
	TOKEN_TAG_CLOSE      // >
	TOKEN_TAG_SELF_CLOSE // />
	TOKEN_FRAG_OPEN      // <>
	TOKEN_FRAG_CLOSE     // </>
	TOKEN_ATTR_NAME      // attribute name, builtins keep their leading @
	TOKEN_ATTR_EQUALS    // =
	TOKEN_ATTR_STRING    // "value" (unquoted)
	TOKEN_EXPR_OPEN      // {
	TOKEN_EXPR_CLOSE     // }
	TOKEN_TEXT           // text between tags
	TOKEN_COMMENT        // <!-- comment -->

	// Control flow tokens
	TOKEN_KEYWORD    // if, else, for, while, switch, case, default, try, catch
	TOKEN_HEADER     // raw Go header of a control construct
	TOKEN_CASE       // raw switch case pattern
	TOKEN_BODY_OPEN  // { opening a control body
	TOKEN_BODY_CLOSE // } closing a control body
)

var tokenNames = map[TokenType]string{
	TOKEN_EOF:            "EOF",
	TOKEN_GO_CODE:        "GO_CODE",
	TOKEN_TAG_OPEN:       "TAG_OPEN",
	TOKEN_TAG_END_OPEN:   "TAG_END_OPEN",
	TOKEN_TAG_NAME:       "TAG_NAME",
	TOKEN_TAG_CLOSE:      "TAG_CLOSE",
	TOKEN_TAG_SELF_CLOSE: "TAG_SELF_CLOSE",
	TOKEN_FRAG_OPEN:      "FRAG_OPEN",
	TOKEN_FRAG_CLOSE:     "FRAG_CLOSE",
	TOKEN_ATTR_NAME:      "ATTR_NAME",
	TOKEN_ATTR_EQUALS:    "ATTR_EQUALS",
	TOKEN_ATTR_STRING:    "ATTR_STRING",
	TOKEN_EXPR_OPEN:      "EXPR_OPEN",
	TOKEN_EXPR_CLOSE:     "EXPR_CLOSE",
	TOKEN_TEXT:           "TEXT",
	TOKEN_COMMENT:        "COMMENT",
	TOKEN_KEYWORD:        "KEYWORD",
	TOKEN_HEADER:         "HEADER",
	TOKEN_CASE:           "CASE",
	TOKEN_BODY_OPEN:      "BODY_OPEN",
	TOKEN_BODY_CLOSE:     "BODY_CLOSE",
}

// String returns a string representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

// Keywords that open or continue a control construct inside markup.
const (
	KeywordIf      = "if"
	KeywordElse    = "else"
	KeywordFor     = "for"
	KeywordWhile   = "while"
	KeywordSwitch  = "switch"
	KeywordCase    = "case"
	KeywordDefault = "default"
	KeywordTry     = "try"
	KeywordCatch   = "catch"
)

// controlKeywords may directly follow the { of an embedded expression.
var controlKeywords = []string{KeywordIf, KeywordFor, KeywordWhile, KeywordSwitch, KeywordTry}

// Token represents a lexical token.
type Token struct {
	Type   TokenType
	Value  string
	Offset int
	Line   int
	Column int
}

// String returns a string representation of the token.
func (t Token) String() string {
	if len(t.Value) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Value[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Value)
}
