package generator

import (
	"fmt"

	"github.com/germtb/zx/ast"
)

// ErrorKind classifies code generation errors.
type ErrorKind int

const (
	// UnresolvedBuiltinCombination is reported for builtins that cannot be
	// combined, such as client rendering with @async.
	UnresolvedBuiltinCombination ErrorKind = iota
	// InvalidBuiltinValue is reported for a builtin with a value it does
	// not accept.
	InvalidBuiltinValue
)

func (k ErrorKind) String() string {
	switch k {
	case UnresolvedBuiltinCombination:
		return "unresolved builtin combination"
	case InvalidBuiltinValue:
		return "invalid builtin value"
	}
	return "unknown"
}

// Error is a code generation error.
type Error struct {
	Kind ErrorKind
	File string
	Pos  ast.Position
	Msg  string
}

func (e *Error) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
	}
	return fmt.Sprintf("%s:%s: %s", e.File, e.Pos, e.Msg)
}
