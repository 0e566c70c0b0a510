package compiler

import (
	"encoding/base64"
	"errors"
	"go/format"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/germtb/zx/generator"
	"github.com/germtb/zx/lexer"
	zxparser "github.com/germtb/zx/parser"
)

const page = `package views

import "fmt"

func Page(items []string, shape Shape, it *Iter, user *User, id int) zx.Component {
	n := 0
	return <div class="page">
		<h1>{fmt.Sprint(len(items))} items</h1>
		{if user.Admin {
			<p>admin</p>
		} else {
			<p>member</p>
		}}
		{for i, item := range items {
			<li data-index={i}>{item}</li>
		}}
		{while line, err := it.Next() : n++ {
			<pre>{line}</pre>
		} else {
			<p>{err.Error()}</p>
		}}
		{switch s := shape.(type) {
		case Circle:
			<p>{s.Radius}</p>
		default:
			<p>unknown</p>
		}}
		{try u := load(id) {
			<p>{u.Name}</p>
		} catch err {
			<p>{err.Error()}</p>
		}}
		<Counter start={1} @client />
		<Chart data={items} @client="react" />
		<Counter start={2} @client />
	</div>
}
`

func assertValidGo(t *testing.T, src []byte) {
	t.Helper()
	if _, err := parser.ParseFile(token.NewFileSet(), "out.go", src, parser.AllErrors); err != nil {
		t.Fatalf("generated code is not valid Go: %v\n%s", err, src)
	}
}

func TestCompile(t *testing.T) {
	res, err := Compile([]byte(page), &Options{Path: "views/page.zx", Format: true})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	assertValidGo(t, res.Source)

	out := string(res.Source)
	for _, want := range []string{
		`"github.com/germtb/zx"`,
		`zx.Element("div"`,
		`zx.Client(`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "sourceMappingURL") || res.SourceMap != nil {
		t.Error("no source map was requested")
	}

	formatted, err := format.Source(res.Source)
	if err != nil {
		t.Fatal(err)
	}
	if string(formatted) != out {
		t.Error("output is not gofmt'ed")
	}
}

func TestCompileDefaultOptions(t *testing.T) {
	res, err := Compile([]byte("package x\n\nvar v = <p>hi</p>\n"), nil)
	if err != nil {
		t.Fatal(err)
	}
	assertValidGo(t, res.Source)
}

func TestClientComponentsDeduplicated(t *testing.T) {
	res, err := Compile([]byte(page), &Options{Path: "views/page.zx"})
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, c := range res.ClientComponents {
		names = append(names, c.Name+"/"+c.Kind)
	}
	if got := strings.Join(names, ","); got != "Counter/client,Chart/react" {
		t.Errorf("ClientComponents = %s", got)
	}
	if id := res.ClientComponents[0].ID; id != zxparser.ClientID("views/page.zx", "Counter") {
		t.Errorf("ID = %s", id)
	}
}

func TestCompileInlineSourceMap(t *testing.T) {
	res, err := Compile([]byte(page), &Options{Path: "views/page.zx", SourceMap: SourceMapInline, Format: true})
	if err != nil {
		t.Fatal(err)
	}
	assertValidGo(t, res.Source)

	out := strings.TrimSuffix(string(res.Source), "\n")
	last := out[strings.LastIndexByte(out, '\n')+1:]
	encoded, ok := strings.CutPrefix(last, "//# sourceMappingURL=data:application/json;base64,")
	if !ok {
		t.Fatalf("last line = %q", last)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatal(err)
	}
	sm, err := generator.FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if !sm.HasMappings() || sm.Sources[0] != "views/page.zx" || sm.File != "views/page.go" {
		t.Errorf("source map = %+v", sm)
	}
	if len(sm.SourcesContent) != 1 || sm.SourcesContent[0] != page {
		t.Errorf("sourcesContent = %q, want the .zx source", sm.SourcesContent)
	}
}

func TestCompileFileSourceMap(t *testing.T) {
	res, err := Compile([]byte(page), &Options{Path: "views/page.zx", SourceMap: SourceMapFile})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(res.Source), "\n//# sourceMappingURL=page.go.map\n") {
		t.Errorf("missing mapping URL:\n%s", res.Source)
	}
	sm, err := generator.FromJSON(res.SourceMap)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if sm.SourcesContent != nil {
		t.Errorf("file source maps should not embed the source, got %d entries", len(sm.SourcesContent))
	}

	// The div on line 7 of the source is mapped from the generated code.
	var found bool
	for _, m := range sm.Mappings() {
		if m.Original.Line == 6 && m.Original.Column == 8 {
			found = true
		}
	}
	if !found {
		t.Error("no mapping for the root element")
	}
}

const headers = `package views

func List(items []string, v any, it *Iter, id int) zx.Component {
	return <ul>
		{for _, item := range items {
			<li>{item}</li>
		}}
		{switch s := v.(type) {
		case Circle:
			<p>{s.Radius}</p>
		}}
		{try u := load(id) {
			<p>{u.Name}</p>
		}}
		{while x, err := it.Next() : bump() {
			<p>{x}</p>
		} else {
			<p>{err.Error()}</p>
		}}
		{while more(it) {
			<p>more</p>
		}}
		{if len(items) > 2 {
			<p>many</p>
		}}
	</ul>
}
`

// locate returns the 0-based line and column of the only occurrence of
// piece in src.
func locate(t *testing.T, src, piece string) (line, col uint32) {
	t.Helper()
	if strings.Count(src, piece) != 1 {
		t.Fatalf("%q occurs %d times", piece, strings.Count(src, piece))
	}
	before := src[:strings.Index(src, piece)]
	line = uint32(strings.Count(before, "\n"))
	col = uint32(len(before) - strings.LastIndexByte(before, '\n') - 1)
	return line, col
}

func TestSourceMapControlHeaders(t *testing.T) {
	res, err := Compile([]byte(headers), &Options{Path: "views/list.zx", SourceMap: SourceMapFile})
	if err != nil {
		t.Fatal(err)
	}
	assertValidGo(t, res.Source)
	sm, err := generator.FromJSON(res.SourceMap)
	if err != nil {
		t.Fatal(err)
	}

	for _, piece := range []string{
		"_, item := range items",
		"s := v.(type)",
		"Circle",
		"load(id)",
		"it.Next()",
		"bump()",
		"more(it)",
		"len(items) > 2",
	} {
		t.Run(piece, func(t *testing.T) {
			genLine, genCol := locate(t, string(res.Source), piece)
			wantLine, wantCol := locate(t, headers, piece)

			got, ok := sm.Original(genLine, genCol)
			if !ok {
				t.Fatalf("no mapping for %d:%d", genLine, genCol)
			}
			if got.Line != wantLine || got.Column != wantCol {
				t.Errorf("Original(%d:%d) = %d:%d, want %d:%d", genLine, genCol, got.Line, got.Column, wantLine, wantCol)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		check func(error) bool
	}{
		{
			name: "tokenize",
			src:  "package x\n\nvar v = <p class=\"a></p>\n",
			check: func(err error) bool {
				var e *lexer.Error
				return errors.As(err, &e) && e.File == "bad.zx"
			},
		},
		{
			name: "parse",
			src:  "package x\n\nvar v = <p @bogus=\"x\"></p>\n",
			check: func(err error) bool {
				var e *zxparser.Error
				return errors.As(err, &e) && e.Kind == zxparser.UnknownBuiltinAttribute
			},
		},
		{
			name: "generate",
			src:  "package x\n\nvar v = <p @escaping=\"xml\"></p>\n",
			check: func(err error) bool {
				var e *generator.Error
				return errors.As(err, &e) && e.Kind == generator.InvalidBuiltinValue
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile([]byte(tt.src), &Options{Path: "bad.zx"})
			if err == nil || !tt.check(err) {
				t.Errorf("unexpected error %T: %v", err, err)
			}
			if !strings.HasPrefix(err.Error(), "bad.zx:3:") {
				t.Errorf("error should carry the position, got %q", err)
			}
		})
	}
}

func TestParseSourceMapMode(t *testing.T) {
	for _, mode := range []SourceMapMode{SourceMapNone, SourceMapInline, SourceMapFile} {
		got, err := ParseSourceMapMode(mode.String())
		if err != nil || got != mode {
			t.Errorf("ParseSourceMapMode(%q) = %v, %v", mode.String(), got, err)
		}
	}
	if _, err := ParseSourceMapMode("external"); err == nil {
		t.Error("expected an error for an unknown mode")
	}
}

func TestGoPath(t *testing.T) {
	if got := GoPath("views/page.zx"); got != "views/page.go" {
		t.Errorf("GoPath = %q", got)
	}
}

func TestFormat(t *testing.T) {
	src := []byte("package x\n\nvar v = <div><p   class=\"a\">hi</p></div>\n")
	out, changed, err := Format("x.zx", src)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Error("expected a change")
	}
	if want := "package x\n\nvar v = <div>\n\t<p class=\"a\">hi</p>\n</div>\n"; string(out) != want {
		t.Errorf("Format = %q, want %q", out, want)
	}

	_, changed, err = Format("x.zx", out)
	if err != nil || changed {
		t.Errorf("formatted source should be stable, changed = %v, err = %v", changed, err)
	}

	if _, _, err := Format("x.zx", []byte("package x\n\nvar v = <p>\n")); err == nil {
		t.Error("expected an error for unterminated markup")
	}
}
