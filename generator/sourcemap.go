package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Position represents a location in a file.
type Position struct {
	Line   uint32 // 0-indexed line number
	Column uint32 // 0-indexed column (in runes, not bytes)
}

// NewPosition creates a new Position.
func NewPosition(line, col uint32) Position {
	return Position{Line: line, Column: col}
}

func (p Position) less(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Column < q.Column
}

// Mapping links a generated (.go) position to an original (.zx) position.
type Mapping struct {
	Generated Position
	Original  Position
	Source    int    // index into SourceMap.Sources
	Name      string // optional symbol name
}

// SourceMap maps generated Go positions back to the .zx source. Mappings
// are kept sorted by generated position.
type SourceMap struct {
	File           string
	Sources        []string
	SourcesContent []string

	mappings []Mapping
}

// NewSourceMap creates a new SourceMap.
func NewSourceMap() *SourceMap {
	return &SourceMap{}
}

// SetFiles sets the source and target file paths.
func (sm *SourceMap) SetFiles(source, target string) {
	sm.Sources = []string{source}
	sm.File = target
}

// AddMapping records that generated maps to original. Mappings added out of
// generated order are inserted in place, so the list stays sorted even when
// the original positions go backwards.
func (sm *SourceMap) AddMapping(generated, original Position, name string) {
	m := Mapping{Generated: generated, Original: original, Name: name}
	i := sort.Search(len(sm.mappings), func(i int) bool {
		return generated.less(sm.mappings[i].Generated)
	})
	if i == len(sm.mappings) {
		sm.mappings = append(sm.mappings, m)
		return
	}
	sm.mappings = append(sm.mappings, Mapping{})
	copy(sm.mappings[i+1:], sm.mappings[i:])
	sm.mappings[i] = m
}

// AddSegment maps a chunk copied verbatim from the source, one mapping per
// line.
func (sm *SourceMap) AddSegment(value string, original, generated Position) {
	for i, line := range strings.Split(value, "\n") {
		if i > 0 {
			original = Position{Line: original.Line + 1}
			generated = Position{Line: generated.Line + 1}
		}
		if line == "" {
			continue
		}
		sm.AddMapping(generated, original, "")
	}
}

// Mappings returns the mappings in generated order.
func (sm *SourceMap) Mappings() []Mapping {
	return sm.mappings
}

// HasMappings returns true if the source map contains any mappings.
func (sm *SourceMap) HasMappings() bool {
	return len(sm.mappings) > 0
}

// Original returns the source position for a generated position: the
// closest mapping at or before it, searching previous lines when the line
// has none.
func (sm *SourceMap) Original(line, col uint32) (Position, bool) {
	target := Position{Line: line, Column: col}
	i := sort.Search(len(sm.mappings), func(i int) bool {
		return target.less(sm.mappings[i].Generated)
	})
	if i == 0 {
		return Position{}, false
	}
	m := sm.mappings[i-1]
	if m.Generated.Line == line {
		return Position{Line: m.Original.Line, Column: m.Original.Column + (col - m.Generated.Column)}, true
	}
	return m.Original, true
}

// Generated returns the generated position for a source position, using the
// closest mapping on the same source line.
func (sm *SourceMap) Generated(line, col uint32) (Position, bool) {
	var best *Mapping
	for i := range sm.mappings {
		m := &sm.mappings[i]
		if m.Original.Line != line || m.Original.Column > col {
			continue
		}
		if best == nil || m.Original.Column > best.Original.Column {
			best = m
		}
	}
	if best == nil {
		return Position{}, false
	}
	return Position{Line: best.Generated.Line, Column: best.Generated.Column + (col - best.Original.Column)}, true
}

// sourceMapV3 is the source map revision 3 wire format.
type sourceMapV3 struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// ToJSON serializes the source map as source map v3 JSON.
func (sm *SourceMap) ToJSON() ([]byte, error) {
	out := sourceMapV3{
		Version:        3,
		File:           sm.File,
		Sources:        sm.Sources,
		SourcesContent: sm.SourcesContent,
		Names:          []string{},
	}
	if out.Sources == nil {
		out.Sources = []string{}
	}

	nameIndex := map[string]int{}
	var sb strings.Builder
	var line uint32
	var prevCol, prevSource, prevOrigLine, prevOrigCol, prevName int
	first := true

	for _, m := range sm.mappings {
		for line < m.Generated.Line {
			sb.WriteByte(';')
			line++
			prevCol = 0
			first = true
		}
		if !first {
			sb.WriteByte(',')
		}
		first = false

		writeVLQ(&sb, int(m.Generated.Column)-prevCol)
		writeVLQ(&sb, m.Source-prevSource)
		writeVLQ(&sb, int(m.Original.Line)-prevOrigLine)
		writeVLQ(&sb, int(m.Original.Column)-prevOrigCol)
		prevCol = int(m.Generated.Column)
		prevSource = m.Source
		prevOrigLine = int(m.Original.Line)
		prevOrigCol = int(m.Original.Column)

		if m.Name != "" {
			idx, ok := nameIndex[m.Name]
			if !ok {
				idx = len(out.Names)
				nameIndex[m.Name] = idx
				out.Names = append(out.Names, m.Name)
			}
			writeVLQ(&sb, idx-prevName)
			prevName = idx
		}
	}
	out.Mappings = sb.String()

	return json.Marshal(out)
}

// FromJSON decodes a source map v3 document.
func FromJSON(data []byte) (*SourceMap, error) {
	var in sourceMapV3
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	if in.Version != 3 {
		return nil, fmt.Errorf("unsupported source map version %d", in.Version)
	}

	sm := &SourceMap{File: in.File, Sources: in.Sources, SourcesContent: in.SourcesContent}
	var prevSource, prevOrigLine, prevOrigCol, prevName int

	for lineNo, line := range strings.Split(in.Mappings, ";") {
		prevCol := 0
		if line == "" {
			continue
		}
		for _, seg := range strings.Split(line, ",") {
			fields, err := readVLQs(seg)
			if err != nil {
				return nil, fmt.Errorf("mappings line %d: %w", lineNo, err)
			}
			if len(fields) != 1 && len(fields) != 4 && len(fields) != 5 {
				return nil, fmt.Errorf("mappings line %d: segment with %d fields", lineNo, len(fields))
			}
			prevCol += fields[0]
			if len(fields) == 1 {
				continue
			}
			prevSource += fields[1]
			prevOrigLine += fields[2]
			prevOrigCol += fields[3]

			m := Mapping{
				Generated: Position{Line: uint32(lineNo), Column: uint32(prevCol)},
				Original:  Position{Line: uint32(prevOrigLine), Column: uint32(prevOrigCol)},
				Source:    prevSource,
			}
			if len(fields) == 5 {
				prevName += fields[4]
				if prevName < 0 || prevName >= len(in.Names) {
					return nil, fmt.Errorf("mappings line %d: name index %d out of range", lineNo, prevName)
				}
				m.Name = in.Names[prevName]
			}
			sm.mappings = append(sm.mappings, m)
		}
	}
	return sm, nil
}

// Base64 VLQ

const base64Digits = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

const (
	vlqBaseShift = 5
	vlqBase      = 1 << vlqBaseShift
	vlqBaseMask  = vlqBase - 1
	vlqContinue  = vlqBase
)

func writeVLQ(sb *strings.Builder, value int) {
	v := value << 1
	if value < 0 {
		v = (-value << 1) | 1
	}
	for {
		digit := v & vlqBaseMask
		v >>= vlqBaseShift
		if v > 0 {
			digit |= vlqContinue
		}
		sb.WriteByte(base64Digits[digit])
		if v == 0 {
			return
		}
	}
}

var errVLQ = errors.New("invalid VLQ segment")

func readVLQs(seg string) ([]int, error) {
	var out []int
	value, shift := 0, 0
	for i := 0; i < len(seg); {
		r, size := utf8.DecodeRuneInString(seg[i:])
		i += size
		digit := strings.IndexRune(base64Digits, r)
		if digit < 0 {
			return nil, errVLQ
		}
		value += (digit & vlqBaseMask) << shift
		if digit&vlqContinue != 0 {
			shift += vlqBaseShift
			continue
		}
		if value&1 == 1 {
			out = append(out, -(value >> 1))
		} else {
			out = append(out, value>>1)
		}
		value, shift = 0, 0
	}
	if shift != 0 {
		return nil, errVLQ
	}
	return out, nil
}
