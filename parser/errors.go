package parser

import (
	"fmt"

	"github.com/germtb/zx/ast"
)

// ErrorKind classifies parse failures.
type ErrorKind int

const (
	UnexpectedToken ErrorKind = iota
	UnknownBuiltinAttribute
	MissingRequiredAttribute
	DuplicateAttribute
	InvalidCaptureBinding
	MismatchedTag
)

func (k ErrorKind) String() string {
	switch k {
	case UnexpectedToken:
		return "unexpected token"
	case UnknownBuiltinAttribute:
		return "unknown builtin attribute"
	case MissingRequiredAttribute:
		return "missing required attribute"
	case DuplicateAttribute:
		return "duplicate attribute"
	case InvalidCaptureBinding:
		return "invalid capture binding"
	case MismatchedTag:
		return "mismatched tag"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is a parse error. Parsing stops at the first one.
type Error struct {
	Kind ErrorKind
	File string
	Pos  ast.Position
	Msg  string
}

func (e *Error) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%s: %s", e.File, e.Pos, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}
