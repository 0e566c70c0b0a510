// Package compiler turns .zx sources into Go sources.
package compiler

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/germtb/zx/ast"
	"github.com/germtb/zx/formatter"
	"github.com/germtb/zx/generator"
	"github.com/germtb/zx/parser"
	"golang.org/x/tools/imports"
)

// SourceMapMode selects how a source map is produced.
type SourceMapMode int

const (
	SourceMapNone   SourceMapMode = iota
	SourceMapInline               // data URL comment at the end of the Go file
	SourceMapFile                 // separate X.go.map file
)

var sourceMapModes = [...]string{"none", "inline", "file"}

func (m SourceMapMode) String() string {
	if int(m) < len(sourceMapModes) {
		return sourceMapModes[m]
	}
	return fmt.Sprintf("SourceMapMode(%d)", int(m))
}

// ParseSourceMapMode parses "none", "inline" or "file".
func ParseSourceMapMode(s string) (SourceMapMode, error) {
	for i, name := range sourceMapModes {
		if s == name {
			return SourceMapMode(i), nil
		}
	}
	return SourceMapNone, fmt.Errorf("invalid source map mode %q: want none, inline or file", s)
}

// Options configures Compile.
type Options struct {
	// Path is the .zx path used in errors and source maps.
	Path string

	SourceMap SourceMapMode

	// RuntimePackage is the import path of the zx package.
	RuntimePackage string

	// Format runs the Go formatter over the output. It is skipped when a
	// source map is requested since it moves generated positions.
	Format bool
}

// DefaultOptions returns options that produce formatted Go without a
// source map.
func DefaultOptions() *Options {
	return &Options{
		RuntimePackage: generator.DefaultRuntimePackage,
		Format:         true,
	}
}

// Result is the output of Compile.
type Result struct {
	Source []byte

	// ClientComponents lists the client components the file references.
	ClientComponents []ast.ClientComponent

	// SourceMap is the source map JSON in SourceMapFile mode.
	SourceMap []byte
}

// GoPath returns the Go file a .zx file compiles to.
func GoPath(path string) string {
	return strings.TrimSuffix(path, ".zx") + ".go"
}

// Compile parses src and generates Go source.
func Compile(src []byte, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	file, err := parser.Parse(opts.Path, src)
	if err != nil {
		return nil, err
	}

	gen, err := generator.Generate(file, &generator.Options{
		RuntimePackage: opts.RuntimePackage,
		SourceMap:      opts.SourceMap != SourceMapNone,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		Source:           gen.Source,
		ClientComponents: gen.ClientComponents,
	}

	switch opts.SourceMap {
	case SourceMapNone:
		if opts.Format {
			out, err := imports.Process(GoPath(opts.Path), res.Source, &imports.Options{
				Comments:   true,
				TabIndent:  true,
				TabWidth:   8,
				FormatOnly: true,
			})
			if err != nil {
				return nil, fmt.Errorf("%s: formatting generated code: %w", opts.Path, err)
			}
			res.Source = out
		}
	case SourceMapInline:
		// Inline maps embed the .zx source.
		if len(gen.SourceMap.Sources) == 1 {
			gen.SourceMap.SourcesContent = []string{string(src)}
		}
		data, err := gen.SourceMap.ToJSON()
		if err != nil {
			return nil, err
		}
		res.Source = appendMappingURL(res.Source, "data:application/json;base64,"+base64.StdEncoding.EncodeToString(data))
	case SourceMapFile:
		data, err := gen.SourceMap.ToJSON()
		if err != nil {
			return nil, err
		}
		res.SourceMap = data
		res.Source = appendMappingURL(res.Source, filepath.Base(GoPath(opts.Path))+".map")
	}
	return res, nil
}

func appendMappingURL(src []byte, url string) []byte {
	if len(src) > 0 && !bytes.HasSuffix(src, []byte("\n")) {
		src = append(src, '\n')
	}
	return append(src, "//# sourceMappingURL="+url+"\n"...)
}

// Format formats zx source and reports whether it changed.
func Format(path string, src []byte) ([]byte, bool, error) {
	out, err := formatter.Source(path, src)
	if err != nil {
		return nil, false, err
	}
	return out, !bytes.Equal(out, src), nil
}
