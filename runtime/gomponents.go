package runtime

import (
	"context"
	"io"
	"strings"

	"github.com/germtb/zx"
	g "maragu.dev/gomponents"
)

// Node adapts c to a gomponents node rendered by r.
func (r *Renderer) Node(ctx context.Context, c zx.Component) g.Node {
	return g.NodeFunc(func(w io.Writer) error {
		return r.Render(ctx, w, c)
	})
}

// Node adapts c to a gomponents node rendered with a zero Renderer.
func Node(c zx.Component) g.Node {
	var r Renderer
	return r.Node(context.Background(), c)
}

// FromNode embeds a gomponents node in a zx tree. The node is rendered when
// the tree is, and its output is written as raw HTML.
func FromNode(n g.Node) zx.Component {
	return zx.LazyErr("gomponents", func() (zx.Component, error) {
		var sb strings.Builder
		if err := n.Render(&sb); err != nil {
			return zx.Component{}, err
		}
		return zx.Raw(sb.String()), nil
	})
}
