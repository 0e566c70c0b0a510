package runtime

import "github.com/germtb/zx"

// Walk visits root and every component below it, depth first. Deferred
// components are resolved and their output is visited one level below
// them; async fallbacks are visited like children. If fn returns false
// the component's children are skipped.
//
// Walking calls component functions, so a walked tree that is rendered
// afterwards runs them again.
func Walk(root zx.Component, fn func(c zx.Component, depth int) bool) error {
	return walk(root, fn, 0)
}

func walk(c zx.Component, fn func(zx.Component, int) bool, depth int) error {
	if !fn(c, depth) {
		return nil
	}
	if c.IsDeferred() {
		out, err := c.Resolve()
		if err != nil {
			return &RenderError{Kind: ComponentFailed, Err: err}
		}
		// Resolve carries the options, and the fallback with them, onto out.
		return walk(out, fn, depth+1)
	}
	if c.Options != nil && !c.Options.Fallback.IsEmpty() {
		if err := walk(c.Options.Fallback, fn, depth+1); err != nil {
			return err
		}
	}
	for _, child := range c.Children {
		if err := walk(child, fn, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// ClientRefs returns the client components reachable from root, once per
// ID, in the order they are first seen.
func ClientRefs(root zx.Component) ([]zx.ClientRef, error) {
	var refs []zx.ClientRef
	seen := map[string]bool{}
	err := Walk(root, func(c zx.Component, _ int) bool {
		if c.Kind == zx.KindClient && c.Ref != nil && !seen[c.Ref.ID] {
			seen[c.Ref.ID] = true
			refs = append(refs, *c.Ref)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}
