package ast

import "strconv"

// Position is a point in a .zx file.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based
	Column int // 1-based, in runes
}

// Range is the span of a node, End exclusive.
type Range struct {
	Start Position
	End   Position
}

// NewPosition creates a Position.
func NewPosition(offset, line, column int) Position {
	return Position{Offset: offset, Line: line, Column: column}
}

// IsValid reports whether the position has been set.
func (p Position) IsValid() bool {
	return p.Line > 0
}

// String formats p as "line:column".
func (p Position) String() string {
	return strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Column)
}

// IsValid reports whether the range has been set.
func (r Range) IsValid() bool {
	return r.Start.IsValid()
}
