package runtime

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/germtb/zx"
	"golang.org/x/net/html/atom"
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

// EscapeString escapes the five HTML special characters.
func EscapeString(s string) string {
	return htmlEscaper.Replace(s)
}

// Void elements are written as <tag /> and never have children.
var voidElements = map[atom.Atom]bool{
	atom.Br:     true,
	atom.Hr:     true,
	atom.Img:    true,
	atom.Source: true,
	atom.Track:  true,
	atom.Wbr:    true,
	atom.Area:   true,
	atom.Base:   true,
	atom.Col:    true,
	atom.Embed:  true,
	atom.Param:  true,
}

// Elements written without a closing tag.
var noClosingTag = map[atom.Atom]bool{
	atom.Meta:  true,
	atom.Link:  true,
	atom.Input: true,
}

// Text inside raw text elements is never escaped.
var rawTextElements = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
}

// attrValue returns the rendered form of an attribute value and whether the
// attribute is written at all. A bare attribute has an empty value and ok.
func attrValue(v any) (value string, bare, ok bool) {
	switch v := v.(type) {
	case nil:
		return "", false, false
	case bool:
		return "", v, v
	case string:
		return v, false, true
	case *string:
		if v == nil {
			return "", false, false
		}
		return *v, false, true
	case int:
		return strconv.Itoa(v), false, true
	case int64:
		return strconv.FormatInt(v, 10), false, true
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), false, true
	case fmt.Stringer:
		return v.String(), false, true
	}
	return fmt.Sprint(v), false, true
}

func (st *state) renderElement(w writer, c zx.Component, opts renderOpts) error {
	a := atom.Lookup([]byte(c.Tag))

	w.WriteByte('<')
	w.WriteString(c.Tag)
	for _, attr := range c.Attrs {
		if attr.Event {
			continue
		}
		value, bare, ok := attrValue(attr.Value)
		if !ok {
			continue
		}
		w.WriteByte(' ')
		w.WriteString(attr.Name)
		if bare {
			continue
		}
		w.WriteString(`="`)
		w.WriteString(EscapeString(value))
		w.WriteByte('"')
	}

	switch {
	case noClosingTag[a]:
		w.WriteByte('>')
		return nil
	case voidElements[a]:
		w.WriteString(" />")
		return nil
	}
	w.WriteByte('>')

	childOpts := opts
	if rawTextElements[a] {
		childOpts.escaping = zx.EscapingNone
	}
	for _, child := range c.Children {
		if err := st.render(w, child, childOpts); err != nil {
			return err
		}
	}

	w.WriteString("</")
	w.WriteString(c.Tag)
	w.WriteByte('>')
	return nil
}
