package lexer

import "fmt"

// ErrorKind classifies tokenizer failures.
type ErrorKind int

const (
	UnterminatedTag ErrorKind = iota
	UnterminatedExpression
	UnterminatedString
	UnterminatedComment
	InvalidCharacter
	InvalidAttribute
)

func (k ErrorKind) String() string {
	switch k {
	case UnterminatedTag:
		return "unterminated tag"
	case UnterminatedExpression:
		return "unterminated expression"
	case UnterminatedString:
		return "unterminated string"
	case UnterminatedComment:
		return "unterminated comment"
	case InvalidCharacter:
		return "invalid character"
	case InvalidAttribute:
		return "invalid attribute"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is a tokenize error. Line and Column are 1-based and point at the
// construct that could not be completed.
type Error struct {
	Kind   ErrorKind
	File   string
	Line   int
	Column int
	Msg    string
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, msg)
	}
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, msg)
}
