// Package zx provides the component model that compiled .zx files build:
// elements, text, fragments and deferred component calls.
package zx

import (
	"errors"
	"fmt"
)

// Kind identifies the variant held by a Component.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindElement
	KindText
	KindFragment
	KindRaw
	KindFunc
	KindClient
)

var kindNames = [...]string{"empty", "element", "text", "fragment", "raw", "func", "client"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Component is a node of a component tree. The zero value is empty and
// renders nothing.
type Component struct {
	Kind     Kind
	Tag      string      // element tag
	Attrs    Attrs       // element attributes
	Children []Component // element and fragment children
	Text     string      // text or raw HTML content
	Name     string      // name of a func or client component

	// Options holds builtin options applied with With; nil when unset.
	Options *Options

	// Ref and Props are set for client components.
	Ref   *ClientRef
	Props any

	fn func() (Component, error)
}

// Attr is an element attribute. Value is rendered according to its type:
// strings as-is, true as a bare attribute, false and nil omitted.
type Attr struct {
	Name  string
	Value any
	Event bool // event handler, never rendered on the server
}

// Attrs is an ordered attribute list.
type Attrs []Attr

// A creates an attribute.
func A(name string, value any) Attr {
	return Attr{Name: name, Value: value}
}

// On creates an event handler attribute.
func On(name string, handler any) Attr {
	return Attr{Name: name, Value: handler, Event: true}
}

// Get returns the value of the last attribute named name.
func (a Attrs) Get(name string) (any, bool) {
	for i := len(a) - 1; i >= 0; i-- {
		if a[i].Name == name {
			return a[i].Value, true
		}
	}
	return nil, false
}

// Empty returns a component that renders nothing.
func Empty() Component {
	return Component{}
}

// IsEmpty reports whether c renders nothing.
func (c Component) IsEmpty() bool {
	return c.Kind == KindEmpty
}

// Element creates an intrinsic element.
func Element(tag string, attrs Attrs, children ...Component) Component {
	return Component{Kind: KindElement, Tag: tag, Attrs: attrs, Children: children}
}

// Text creates a text node. Its content is escaped unless escaping is
// disabled.
func Text(s string) Component {
	return Component{Kind: KindText, Text: s}
}

// Raw creates a node whose content is written without escaping.
func Raw(html string) Component {
	return Component{Kind: KindRaw, Text: html}
}

// Fragment wraps multiple children without a parent element.
func Fragment(children ...Component) Component {
	return Component{Kind: KindFragment, Children: children}
}

// Lazy defers a component call until the tree is rendered.
func Lazy(name string, fn func() Component) Component {
	return Component{Kind: KindFunc, Name: name, fn: func() (Component, error) {
		return fn(), nil
	}}
}

// LazyErr defers a component call that may fail. A non-nil error aborts
// the render.
func LazyErr(name string, fn func() (Component, error)) Component {
	return Component{Kind: KindFunc, Name: name, fn: fn}
}

// Fail returns a component whose rendering fails with err.
func Fail(err error) Component {
	if err == nil {
		err = errors.New("zx: Fail called with nil error")
	}
	return Component{Kind: KindFunc, fn: func() (Component, error) {
		return Component{}, err
	}}
}

// ClientRef identifies a component hydrated on the client.
type ClientRef struct {
	ID   string
	Name string
	Path string
	Kind string // "client" or "react"
}

// Client creates a client component. The server renders it with render and
// marks the output so the client can hydrate it with props.
func Client[P any](ref ClientRef, props P, render func(P) Component) Component {
	return Component{
		Kind:  KindClient,
		Name:  ref.Name,
		Ref:   &ref,
		Props: props,
		fn: func() (Component, error) {
			return render(props), nil
		},
	}
}

// With applies builtin options to c. Fields set in opts override options
// already on c.
func With(opts Options, c Component) Component {
	merged := opts
	if c.Options != nil {
		merged = c.Options.merge(opts)
	}
	c.Options = &merged
	return c
}

// IsDeferred reports whether c must be resolved before rendering.
func (c Component) IsDeferred() bool {
	return c.fn != nil
}

// Resolve calls a deferred component and returns the component it produced,
// carrying over c's options. Components that are not deferred are returned
// unchanged. A panicking component is reported as an error.
func (c Component) Resolve() (out Component, err error) {
	if c.fn == nil {
		return c, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &ComponentError{Name: c.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	out, err = c.fn()
	if err != nil {
		return Component{}, &ComponentError{Name: c.Name, Err: err}
	}
	if c.Options != nil {
		out = With(*c.Options, out)
	}
	return out, nil
}

// ComponentError reports a failed component call.
type ComponentError struct {
	Name string
	Err  error
}

func (e *ComponentError) Error() string {
	if e.Name == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("component %s: %v", e.Name, e.Err)
}

func (e *ComponentError) Unwrap() error {
	return e.Err
}
