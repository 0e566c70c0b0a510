// Package runtime renders zx component trees to HTML.
package runtime

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/germtb/zx"
	"golang.org/x/sync/errgroup"
)

// BodyMarker is replaced by the rendered tree in page templates.
const BodyMarker = "<!--zx:body-->"

// Cache stores rendered HTML of subtrees marked with @caching.
// *cache.Cache implements it.
type Cache interface {
	Do(key string, ttl time.Duration, fn func() (string, bool, error)) (string, bool, error)
}

// Renderer writes component trees as HTML. The zero value renders without a
// cache or logging.
type Renderer struct {
	Cache  Cache
	Logger *log.Logger
}

type writer interface {
	io.Writer
	io.StringWriter
	io.ByteWriter
}

type renderOpts struct {
	escaping  zx.Escaping
	rendering zx.Rendering
}

var rootOpts = renderOpts{escaping: zx.EscapingHTML, rendering: zx.RenderingServer}

// deferred is an async subtree waiting to replace its placeholder.
type deferred struct {
	id   int64
	node zx.Component
	opts renderOpts
}

// state is the per-goroutine render state. Placeholder ids are shared by all
// states of one render.
type state struct {
	ctx      context.Context
	r        *Renderer
	ids      *atomic.Int64
	deferred []deferred
}

func (st *state) fork(ctx context.Context) *state {
	return &state{ctx: ctx, r: st.r, ids: st.ids}
}

// Render writes c to w. Async subtrees are written as placeholders and
// streamed as scripts after the main tree.
func (r *Renderer) Render(ctx context.Context, w io.Writer, c zx.Component) error {
	bw := bufio.NewWriter(w)
	if err := r.renderTo(ctx, bw, c); err != nil {
		return err
	}
	return bw.Flush()
}

// RenderString renders c and returns the HTML.
func (r *Renderer) RenderString(ctx context.Context, c zx.Component) (string, error) {
	var sb strings.Builder
	if err := r.renderTo(ctx, &sb, c); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// RenderPage renders c into template in place of BodyMarker.
func (r *Renderer) RenderPage(ctx context.Context, w io.Writer, template string, c zx.Component) error {
	head, tail, ok := strings.Cut(template, BodyMarker)
	if !ok {
		return &RenderError{Kind: MissingPlaceholderMarker, Err: ErrMissingPlaceholder}
	}
	bw := bufio.NewWriter(w)
	bw.WriteString(head)
	if err := r.renderTo(ctx, bw, c); err != nil {
		return err
	}
	bw.WriteString(tail)
	return bw.Flush()
}

// Render renders c with a zero Renderer.
func Render(ctx context.Context, w io.Writer, c zx.Component) error {
	var r Renderer
	return r.Render(ctx, w, c)
}

// RenderString renders c to a string with a zero Renderer.
func RenderString(ctx context.Context, c zx.Component) (string, error) {
	var r Renderer
	return r.RenderString(ctx, c)
}

func (r *Renderer) renderTo(ctx context.Context, w writer, c zx.Component) error {
	st := &state{ctx: ctx, r: r, ids: new(atomic.Int64)}
	if err := st.render(w, c, rootOpts); err != nil {
		return err
	}

	pending := st.deferred
	for len(pending) > 0 {
		html := make([]string, len(pending))
		nested := make([][]deferred, len(pending))

		g, gctx := errgroup.WithContext(ctx)
		for i, d := range pending {
			g.Go(func() error {
				sub := st.fork(gctx)
				var sb strings.Builder
				if err := sub.render(&sb, d.node, d.opts); err != nil {
					return err
				}
				html[i] = sb.String()
				nested[i] = sub.deferred
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		r.logf("streaming %d async subtree(s)", len(pending))
		var next []deferred
		for i, d := range pending {
			if err := writeSwap(w, d.id, html[i]); err != nil {
				return err
			}
			next = append(next, nested[i]...)
		}
		pending = next
	}
	return nil
}

func placeholderID(id int64) string {
	return "__ZX_S-" + strconv.FormatInt(id, 10)
}

// writeSwap writes the script replacing placeholder id with html.
func writeSwap(w writer, id int64, html string) error {
	js, err := json.Marshal(html)
	if err != nil {
		return err
	}
	w.WriteString(`<script>document.getElementById("`)
	w.WriteString(placeholderID(id))
	w.WriteString(`").outerHTML=`)
	w.Write(js)
	_, err = w.WriteString("</script>")
	return err
}

func (st *state) render(w writer, c zx.Component, opts renderOpts) error {
	if err := st.ctx.Err(); err != nil {
		return err
	}

	if c.Options != nil {
		o := *c.Options
		if o.Escaping != zx.EscapingInherit {
			opts.escaping = o.Escaping
		}
		if o.Rendering != zx.RenderingInherit {
			opts.rendering = o.Rendering
		}
		switch {
		case o.Async == zx.AsyncStream:
			fallback := o.Fallback
			o.Async, o.Fallback = zx.AsyncNone, zx.Component{}
			c.Options = &o
			return st.renderPlaceholder(w, c, fallback, opts)
		case !o.Caching.IsZero() && st.r.Cache != nil:
			caching := o.Caching
			o.Caching = zx.Caching{}
			c.Options = &o
			return st.renderCached(w, c, caching, opts)
		}
		c.Options = nil
	}

	switch c.Kind {
	case zx.KindEmpty:
		return nil
	case zx.KindText:
		if opts.escaping == zx.EscapingNone {
			w.WriteString(c.Text)
		} else {
			w.WriteString(EscapeString(c.Text))
		}
		return nil
	case zx.KindRaw:
		w.WriteString(c.Text)
		return nil
	case zx.KindFragment:
		for _, child := range c.Children {
			if err := st.render(w, child, opts); err != nil {
				return err
			}
		}
		return nil
	case zx.KindElement:
		return st.renderElement(w, c, opts)
	case zx.KindFunc:
		out, err := c.Resolve()
		if err != nil {
			return &RenderError{Kind: ComponentFailed, Err: err}
		}
		if opts.rendering == zx.RenderingClient && c.Name != "" {
			return st.renderMarked(w, c.Name, out, opts)
		}
		return st.render(w, out, opts)
	case zx.KindClient:
		return st.renderClient(w, c, opts)
	}
	return &RenderError{Kind: ComponentFailed, Err: errors.New("unknown component kind " + c.Kind.String())}
}

func (st *state) renderPlaceholder(w writer, c, fallback zx.Component, opts renderOpts) error {
	id := st.ids.Add(1)
	w.WriteString(`<div id="`)
	w.WriteString(placeholderID(id))
	w.WriteString(`">`)
	if err := st.render(w, fallback, opts); err != nil {
		return err
	}
	w.WriteString("</div>")
	st.deferred = append(st.deferred, deferred{id: id, node: c, opts: opts})
	return nil
}

// renderCached writes c from the cache, rendering it on a miss. Output that
// contains async placeholders is tied to this render and is not stored.
func (st *state) renderCached(w writer, c zx.Component, caching zx.Caching, opts renderOpts) error {
	ran := false
	html, stored, err := st.r.Cache.Do(caching.Key, caching.TTL, func() (string, bool, error) {
		ran = true
		st.r.logf("cache miss %s", caching.Key)
		before := len(st.deferred)
		var sb strings.Builder
		if err := st.render(&sb, c, opts); err != nil {
			return "", false, err
		}
		return sb.String(), len(st.deferred) == before, nil
	})
	if err != nil {
		return err
	}
	if !ran && !stored {
		// Another render filled the key with output we cannot reuse.
		return st.render(w, c, opts)
	}
	w.WriteString(html)
	return nil
}

func (st *state) renderMarked(w writer, id string, c zx.Component, opts renderOpts) error {
	w.WriteString("<!--$")
	w.WriteString(id)
	w.WriteString("-->")
	if err := st.render(w, c, opts); err != nil {
		return err
	}
	w.WriteString("<!--/$")
	w.WriteString(id)
	w.WriteString("-->")
	return nil
}

// renderClient writes the server HTML of a client component between
// hydration markers, followed by its serialized props.
func (st *state) renderClient(w writer, c zx.Component, opts renderOpts) error {
	out, err := c.Resolve()
	if err != nil {
		return &RenderError{Kind: ComponentFailed, Err: err}
	}
	id := c.Name
	if c.Ref != nil {
		id = c.Ref.ID
	}
	props, err := marshalProps(id, c.Props)
	if err != nil {
		return err
	}

	if err := st.renderMarked(w, id, out, opts); err != nil {
		return err
	}
	w.WriteString(`<script type="application/json" data-zx-props="`)
	w.WriteString(EscapeString(id))
	w.WriteString(`">`)
	w.Write(props)
	w.WriteString("</script>")
	return nil
}

func (r *Renderer) logf(format string, args ...any) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}
