package parser

import (
	"errors"
	goast "go/ast"
	goparser "go/parser"
	"go/scanner"
	"go/token"
	"path"
	"strconv"
	"strings"

	"github.com/germtb/zx/ast"
)

const stmtPrologue = "package p\nfunc _() {\n"

// goHeader is a control header wrapped in a Go statement so go/parser can
// check it and report the names it declares.
type goHeader struct {
	fset *token.FileSet
	src  string
	base int // offset of the header in src
	stmt goast.Stmt
}

// parseHeader parses prefix+header+suffix as the only statement of a
// function body.
func parseHeader(prefix, header, suffix string) (*goHeader, error) {
	src := stmtPrologue + prefix + header + suffix + "\n}\n"
	fset := token.NewFileSet()
	f, err := goparser.ParseFile(fset, "", src, goparser.SkipObjectResolution)
	if err != nil {
		var list scanner.ErrorList
		if errors.As(err, &list) && len(list) > 0 {
			return nil, errors.New(list[0].Msg)
		}
		return nil, err
	}

	fn := f.Decls[0].(*goast.FuncDecl)
	if len(fn.Body.List) != 1 {
		return nil, errors.New("expected a single statement")
	}
	return &goHeader{fset: fset, src: src, base: len(stmtPrologue) + len(prefix), stmt: fn.Body.List[0]}, nil
}

// offset returns the byte offset of n within the header.
func (h *goHeader) offset(n goast.Node) int {
	return h.fset.Position(n.Pos()).Offset - h.base
}

// text returns the source of a node inside the wrapped header.
func (h *goHeader) text(n goast.Node) string {
	start := h.fset.Position(n.Pos()).Offset
	end := h.fset.Position(n.End()).Offset
	return h.src[start:end]
}

// identNames returns the names of exprs, which must all be identifiers.
func identNames(exprs []goast.Expr) ([]string, bool) {
	names := make([]string, 0, len(exprs))
	for _, e := range exprs {
		id, ok := e.(*goast.Ident)
		if !ok {
			return nil, false
		}
		names = append(names, id.Name)
	}
	return names, true
}

// forHeader reports the names declared by a for header and, for range
// loops, the ranged-over expression.
func forHeader(header string) (bindings []string, iterable string, err error) {
	h, err := parseHeader("for ", header, " {}")
	if err != nil {
		return nil, "", err
	}

	switch s := h.stmt.(type) {
	case *goast.RangeStmt:
		iterable = h.text(s.X)
		if s.Tok == token.DEFINE {
			var lhs []goast.Expr
			if s.Key != nil {
				lhs = append(lhs, s.Key)
			}
			if s.Value != nil {
				lhs = append(lhs, s.Value)
			}
			names, ok := identNames(lhs)
			if !ok {
				return nil, "", errors.New("range bindings must be identifiers")
			}
			bindings = names
		}
	case *goast.ForStmt:
		if as, ok := s.Init.(*goast.AssignStmt); ok && as.Tok == token.DEFINE {
			names, ok := identNames(as.Lhs)
			if !ok {
				return nil, "", errors.New("loop bindings must be identifiers")
			}
			bindings = names
		}
	default:
		return nil, "", errors.New("not a for header")
	}
	return bindings, iterable, nil
}

// whileHeader classifies a while condition. A short variable declaration
// with two or more names and one call is the error-union form; callOff is
// the offset of the call in cond.
func whileHeader(cond string) (bindings []string, errBinding, call string, callOff int, err error) {
	h, err := parseHeader("", cond, "")
	if err != nil {
		return nil, "", "", 0, err
	}

	switch s := h.stmt.(type) {
	case *goast.ExprStmt:
		return nil, "", "", 0, nil
	case *goast.AssignStmt:
		if s.Tok != token.DEFINE || len(s.Lhs) < 2 || len(s.Rhs) != 1 {
			return nil, "", "", 0, errors.New("while header must be a condition or v, err := call()")
		}
		names, ok := identNames(s.Lhs)
		if !ok {
			return nil, "", "", 0, errors.New("while bindings must be identifiers")
		}
		return names[:len(names)-1], names[len(names)-1], h.text(s.Rhs[0]), h.offset(s.Rhs[0]), nil
	default:
		return nil, "", "", 0, errors.New("while header must be a condition or v, err := call()")
	}
}

// switchHeader reports the capture of a type switch (x in x := e.(type)).
func switchHeader(header string) (capture string, err error) {
	h, err := parseHeader("switch ", header, " {}")
	if err != nil {
		return "", err
	}

	switch s := h.stmt.(type) {
	case *goast.TypeSwitchStmt:
		if as, ok := s.Assign.(*goast.AssignStmt); ok && len(as.Lhs) == 1 {
			if id, ok := as.Lhs[0].(*goast.Ident); ok {
				return id.Name, nil
			}
		}
		return "", nil
	case *goast.SwitchStmt:
		return "", nil
	default:
		return "", errors.New("not a switch header")
	}
}

// tryHeader splits "a, b := call()" or "call()" into bindings and call;
// callOff is the offset of the call in header.
func tryHeader(header string) (bindings []string, call string, callOff int, err error) {
	h, err := parseHeader("", header, "")
	if err != nil {
		return nil, "", 0, err
	}

	switch s := h.stmt.(type) {
	case *goast.ExprStmt:
		if _, ok := s.X.(*goast.CallExpr); !ok {
			return nil, "", 0, errors.New("try expects a call")
		}
		return nil, h.text(s.X), h.offset(s.X), nil
	case *goast.AssignStmt:
		if s.Tok != token.DEFINE || len(s.Rhs) != 1 {
			return nil, "", 0, errors.New("try expects bindings := call()")
		}
		if _, ok := s.Rhs[0].(*goast.CallExpr); !ok {
			return nil, "", 0, errors.New("try expects a call")
		}
		names, ok := identNames(s.Lhs)
		if !ok {
			return nil, "", 0, errors.New("try bindings must be identifiers")
		}
		return names, h.text(s.Rhs[0]), h.offset(s.Rhs[0]), nil
	default:
		return nil, "", 0, errors.New("try expects bindings := call()")
	}
}

// splitPost splits a while header at its first top-level ':' that is not
// part of ':='.
func splitPost(header string) (cond, post string) {
	depth := 0
	for i := 0; i < len(header); i++ {
		switch c := header[i]; c {
		case '"', '\'':
			i = skipLiteral(header, i, c)
		case '`':
			if j := strings.IndexByte(header[i+1:], '`'); j >= 0 {
				i += j + 1
			} else {
				i = len(header)
			}
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ':':
			if depth == 0 && (i+1 >= len(header) || header[i+1] != '=') {
				return header[:i], header[i+1:]
			}
		}
	}
	return header, ""
}

func skipLiteral(s string, i int, quote byte) int {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case quote:
			return j
		}
	}
	return len(s)
}

// parseImports reads the package clause and imports from the leading Go
// code of a file. Anything after the imports is ignored.
func parseImports(src string) (pkg string, imports []ast.Import) {
	fset := token.NewFileSet()
	f, _ := goparser.ParseFile(fset, "", src, goparser.ImportsOnly|goparser.SkipObjectResolution)
	if f == nil {
		return "", nil
	}
	if f.Name != nil {
		pkg = f.Name.Name
	}
	for _, spec := range f.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		alias := path.Base(p)
		if spec.Name != nil {
			alias = spec.Name.Name
		}
		imports = append(imports, ast.Import{Alias: alias, Path: p})
	}
	return pkg, imports
}
