package generator

import (
	goast "go/ast"
	goparser "go/parser"
	"go/token"
	"strconv"
	"strings"

	"github.com/germtb/zx/ast"
)

// Coercion helpers for values whose Go type is known at compile time.
var basicHelpers = map[string]string{
	"string":  "Text",
	"int":     "Int",
	"int8":    "Int",
	"int16":   "Int",
	"int32":   "Int",
	"int64":   "Int",
	"uint":    "Int",
	"uint8":   "Int",
	"uint16":  "Int",
	"uint32":  "Int",
	"uint64":  "Int",
	"uintptr": "Int",
	"byte":    "Int",
	"float32": "Float",
	"float64": "Float",
	"bool":    "Bool",
}

// Runtime builders that already return a component.
var componentBuilders = map[string]bool{
	"Element":  true,
	"Text":     true,
	"Raw":      true,
	"Fragment": true,
	"Lazy":     true,
	"LazyErr":  true,
	"Fail":     true,
	"Client":   true,
	"With":     true,
	"Any":      true,
	"Int":      true,
	"Float":    true,
	"Bool":     true,
	"When":     true,
	"WhenElse": true,
	"Map":      true,
}

// scope maps the names bound by one control construct to their basic type
// name, or "" when the type is unknown.
type scope map[string]string

func untypedScope(names ...string) scope {
	s := scope{}
	for _, n := range names {
		if n != "" && n != "_" {
			s[n] = ""
		}
	}
	return s
}

// loopScope infers the types of the names a for header declares from the
// literals it ranges over or initializes them with.
func loopScope(header string, bindings []string) scope {
	s := untypedScope(bindings...)

	src := "package p\nfunc _() {\nfor " + header + " {}\n}\n"
	f, err := goparser.ParseFile(token.NewFileSet(), "", src, goparser.SkipObjectResolution)
	if err != nil {
		return s
	}
	body := f.Decls[0].(*goast.FuncDecl).Body
	if len(body.List) != 1 {
		return s
	}

	set := func(e goast.Expr, typ string) {
		if id, ok := e.(*goast.Ident); ok && id.Name != "_" {
			s[id.Name] = typ
		}
	}

	switch stmt := body.List[0].(type) {
	case *goast.RangeStmt:
		if stmt.Tok != token.DEFINE {
			return s
		}
		key, value := rangeTypes(stmt.X)
		if stmt.Key != nil {
			set(stmt.Key, key)
		}
		if stmt.Value != nil {
			set(stmt.Value, value)
		}
	case *goast.ForStmt:
		as, ok := stmt.Init.(*goast.AssignStmt)
		if !ok || as.Tok != token.DEFINE || len(as.Lhs) != len(as.Rhs) {
			return s
		}
		for i, lhs := range as.Lhs {
			set(lhs, literalType(as.Rhs[i]))
		}
	}
	return s
}

// paramScopes maps each top-level markup node of file to the parameters of
// the functions enclosing it. Markup is replaced by nil so the Go around it
// parses as one file. Names redeclared in an enclosing body before the
// markup are left untyped.
func paramScopes(file *ast.File) map[ast.Node]scope {
	var sb strings.Builder
	offsets := map[ast.Node]int{}
	for _, n := range file.Nodes {
		if code, ok := n.(*ast.GoCode); ok {
			sb.WriteString(code.Value)
			continue
		}
		offsets[n] = sb.Len()
		sb.WriteString("nil")
	}
	if len(offsets) == 0 {
		return nil
	}

	fset := token.NewFileSet()
	f, err := goparser.ParseFile(fset, "", sb.String(), goparser.SkipObjectResolution)
	if err != nil {
		return nil
	}
	tf := fset.File(f.Pos())

	scopes := map[ast.Node]scope{}
	for n, off := range offsets {
		if s := enclosingParams(f, tf.Pos(off)); len(s) > 0 {
			scopes[n] = s
		}
	}
	return scopes
}

// enclosingParams collects the parameters visible at pos, outermost function
// first so inner parameters win.
func enclosingParams(f *goast.File, pos token.Pos) scope {
	type fn struct {
		typ  *goast.FuncType
		body *goast.BlockStmt
	}
	var chain []fn
	goast.Inspect(f, func(n goast.Node) bool {
		if n == nil || pos < n.Pos() || pos >= n.End() {
			return false
		}
		switch n := n.(type) {
		case *goast.FuncDecl:
			if n.Body != nil && n.Body.Pos() <= pos {
				chain = append(chain, fn{n.Type, n.Body})
			}
		case *goast.FuncLit:
			if n.Body.Pos() <= pos {
				chain = append(chain, fn{n.Type, n.Body})
			}
		}
		return true
	})

	s := scope{}
	fields := func(l *goast.FieldList) {
		if l == nil {
			return
		}
		for _, field := range l.List {
			for _, name := range field.Names {
				if name.Name != "_" {
					s[name.Name] = typeName(field.Type)
				}
			}
		}
	}
	for i, c := range chain {
		fields(c.typ.Params)
		fields(c.typ.Results)
		var next goast.Node
		if i+1 < len(chain) {
			next = chain[i+1].body
		}
		shadow(s, c.body, pos, next)
	}
	return s
}

// shadow clears the type of every name in s that body declares before pos,
// not descending into skip.
func shadow(s scope, body *goast.BlockStmt, pos token.Pos, skip goast.Node) {
	unset := func(e goast.Expr) {
		if id, ok := e.(*goast.Ident); ok {
			if _, bound := s[id.Name]; bound {
				s[id.Name] = ""
			}
		}
	}
	goast.Inspect(body, func(n goast.Node) bool {
		if n == nil || n == skip || n.Pos() >= pos {
			return false
		}
		switch n := n.(type) {
		case *goast.AssignStmt:
			if n.Tok == token.DEFINE {
				for _, lhs := range n.Lhs {
					unset(lhs)
				}
			}
		case *goast.ValueSpec:
			for _, name := range n.Names {
				unset(name)
			}
		case *goast.RangeStmt:
			if n.Tok == token.DEFINE {
				if n.Key != nil {
					unset(n.Key)
				}
				if n.Value != nil {
					unset(n.Value)
				}
			}
		case *goast.FuncType:
			for _, l := range []*goast.FieldList{n.Params, n.Results} {
				if l == nil {
					continue
				}
				for _, field := range l.List {
					for _, name := range field.Names {
						unset(name)
					}
				}
			}
		}
		return true
	})
}

// rangeTypes returns the key and value types of ranging over x.
func rangeTypes(x goast.Expr) (key, value string) {
	switch x := x.(type) {
	case *goast.CompositeLit:
		switch t := x.Type.(type) {
		case *goast.ArrayType:
			return "int", typeName(t.Elt)
		case *goast.MapType:
			return typeName(t.Key), typeName(t.Value)
		}
	case *goast.BasicLit:
		switch x.Kind {
		case token.INT:
			return "int", ""
		case token.STRING:
			return "int", ""
		}
	case *goast.ParenExpr:
		return rangeTypes(x.X)
	}
	return "", ""
}

func typeName(e goast.Expr) string {
	if id, ok := e.(*goast.Ident); ok {
		if _, basic := basicHelpers[id.Name]; basic {
			return id.Name
		}
	}
	return ""
}

// literalType returns the default type of a constant literal.
func literalType(e goast.Expr) string {
	switch e := e.(type) {
	case *goast.BasicLit:
		switch e.Kind {
		case token.INT:
			return "int"
		case token.FLOAT:
			return "float64"
		case token.STRING:
			return "string"
		}
	case *goast.Ident:
		if e.Name == "true" || e.Name == "false" {
			return "bool"
		}
	}
	return ""
}

// coercion describes how a pure Go expression becomes a component.
type coercion struct {
	text   string // folded text content, when constant
	folded bool
	empty  bool   // nil
	helper string // typed helper for a known binding
	splice bool   // already a component
}

// classify decides the coercion of a child expression. lookup resolves the
// type of a bound name; qual is the runtime package qualifier.
func classify(code, qual string, lookup func(string) (string, bool)) coercion {
	expr, err := goparser.ParseExpr(code)
	if err != nil {
		return coercion{}
	}
	for {
		p, ok := expr.(*goast.ParenExpr)
		if !ok {
			break
		}
		expr = p.X
	}

	switch e := expr.(type) {
	case *goast.BasicLit:
		if text, ok := foldLiteral(e); ok {
			return coercion{text: text, folded: true}
		}
	case *goast.Ident:
		switch e.Name {
		case "true", "false":
			return coercion{text: e.Name, folded: true}
		case "nil":
			return coercion{empty: true}
		}
		if typ, ok := lookup(e.Name); ok && typ != "" {
			return coercion{helper: basicHelpers[typ]}
		}
	case *goast.CallExpr:
		if isBuilderCall(e.Fun, qual) {
			return coercion{splice: true}
		}
	}
	return coercion{}
}

func isBuilderCall(fun goast.Expr, qual string) bool {
	if idx, ok := fun.(*goast.IndexExpr); ok {
		fun = idx.X
	}
	if qual == "" {
		id, ok := fun.(*goast.Ident)
		return ok && componentBuilders[id.Name]
	}
	sel, ok := fun.(*goast.SelectorExpr)
	if !ok {
		return false
	}
	x, ok := sel.X.(*goast.Ident)
	return ok && x.Name == qual && componentBuilders[sel.Sel.Name]
}

// foldLiteral returns the text a constant literal renders as.
func foldLiteral(lit *goast.BasicLit) (string, bool) {
	switch lit.Kind {
	case token.STRING:
		s, err := strconv.Unquote(lit.Value)
		return s, err == nil
	case token.INT:
		n, err := strconv.ParseInt(lit.Value, 0, 64)
		if err != nil {
			return "", false
		}
		return strconv.FormatInt(n, 10), true
	case token.FLOAT:
		f, err := strconv.ParseFloat(strings.ReplaceAll(lit.Value, "_", ""), 64)
		if err != nil {
			return "", false
		}
		return strconv.FormatFloat(f, 'g', -1, 64), true
	case token.CHAR:
		r, _, _, err := strconv.UnquoteChar(lit.Value[1:len(lit.Value)-1], '\'')
		if err != nil {
			return "", false
		}
		return string(r), true
	}
	return "", false
}
