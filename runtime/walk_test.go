package runtime

import (
	"errors"
	"strings"
	"testing"

	"github.com/germtb/zx"
)

func TestWalk(t *testing.T) {
	tree := zx.Element("div", nil,
		zx.Lazy("Card", func() zx.Component {
			return zx.Element("section", nil, zx.Text("x"))
		}),
		zx.With(zx.Options{Async: zx.AsyncStream, Fallback: zx.Element("i", nil)},
			zx.Lazy("Slow", func() zx.Component { return zx.Element("b", nil) })),
		zx.Fragment(zx.Element("em", nil)),
	)

	var visited []string
	err := Walk(tree, func(c zx.Component, depth int) bool {
		if c.Kind == zx.KindElement {
			visited = append(visited, c.Tag+":"+string(rune('0'+depth)))
		}
		return c.Kind != zx.KindFragment
	})
	if err != nil {
		t.Fatal(err)
	}

	if got, want := strings.Join(visited, ","), "div:0,section:2,b:2,i:3"; got != want {
		t.Errorf("visited %s, want %s", got, want)
	}
}

func TestWalkComponentError(t *testing.T) {
	boom := errors.New("boom")
	tree := zx.Fragment(zx.LazyErr("User", func() (zx.Component, error) {
		return zx.Component{}, boom
	}))

	err := Walk(tree, func(zx.Component, int) bool { return true })
	var renderErr *RenderError
	if !errors.As(err, &renderErr) || renderErr.Kind != ComponentFailed {
		t.Fatalf("expected ComponentFailed RenderError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Error("error should wrap the component error")
	}
}

func TestClientRefs(t *testing.T) {
	button := func(id string) zx.Component {
		return zx.Client(zx.ClientRef{ID: id, Name: "Button", Kind: "client"}, struct{ Label string }{"go"},
			func(p struct{ Label string }) zx.Component {
				return zx.Element("button", nil, zx.Text(p.Label))
			})
	}
	tree := zx.Element("main", nil,
		button("zx-a"),
		zx.Lazy("Panel", func() zx.Component {
			return zx.Fragment(button("zx-b"), button("zx-a"))
		}),
	)

	refs, err := ClientRefs(tree)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	if got, want := strings.Join(ids, ","), "zx-a,zx-b"; got != want {
		t.Errorf("refs = %s, want %s", got, want)
	}
}
