package signal

import (
	"context"
	"fmt"
	"testing"

	"github.com/germtb/zx"
	"github.com/germtb/zx/runtime"
)

func TestSignal(t *testing.T) {
	rt := NewRuntime()
	count := NewSignal(rt, 1)

	if count.Get() != 1 {
		t.Fatalf("Get() = %d, want 1", count.Get())
	}
	count.Set(5)
	count.Update(func(n int) int { return n * 2 })
	if count.Peek() != 10 {
		t.Errorf("Peek() = %d, want 10", count.Peek())
	}
}

func TestIDsAreUnique(t *testing.T) {
	rt := NewRuntime()
	a := NewSignal(rt, "a")
	b := NewComputed(rt, func() string { return a.Get() })
	c := NewSignal(rt, 0)

	if a.ID() != 1 || b.ID() != 2 || c.ID() != 3 {
		t.Errorf("ids = %d %d %d, want 1 2 3", a.ID(), b.ID(), c.ID())
	}
	if other := NewSignal(NewRuntime(), 0); other.ID() != 1 {
		t.Errorf("ids are per runtime, got %d", other.ID())
	}
}

func TestSubscribe(t *testing.T) {
	rt := NewRuntime()
	s := NewSignal(rt, "")
	var got []string

	unsubscribe := s.Subscribe(func(v string) { got = append(got, "first:"+v) })
	s.Subscribe(func(v string) { got = append(got, "second:"+v) })

	s.Set("a")
	unsubscribe()
	s.Set("b")

	want := []string{"first:a", "second:a", "second:b"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("notifications = %v, want %v", got, want)
	}
}

func TestComputed(t *testing.T) {
	rt := NewRuntime()
	price := NewSignal(rt, 10)
	qty := NewSignal(rt, 2)
	calls := 0
	total := NewComputed(rt, func() int {
		calls++
		return price.Get() * qty.Get()
	})

	if calls != 0 {
		t.Fatal("computed should not run before Get")
	}
	if total.Get() != 20 || total.Get() != 20 || calls != 1 {
		t.Fatalf("Get() = %d after %d calls", total.Get(), calls)
	}

	qty.Set(3)
	if calls != 1 {
		t.Error("computed should recompute lazily")
	}
	if total.Get() != 30 || calls != 2 {
		t.Errorf("Get() = %d after %d calls, want 30 after 2", total.Get(), calls)
	}
}

func TestEffect(t *testing.T) {
	rt := NewRuntime()
	name := NewSignal(rt, "ada")
	greeting := NewComputed(rt, func() string { return "hello " + name.Get() })

	var seen []string
	stop := rt.Effect(func() { seen = append(seen, greeting.Get()) })

	name.Set("grace")
	stop()
	name.Set("linus")

	want := []string{"hello ada", "hello grace"}
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Errorf("effect saw %v, want %v", seen, want)
	}
}

func TestEffectTracksDynamicDependencies(t *testing.T) {
	rt := NewRuntime()
	useA := NewSignal(rt, true)
	a := NewSignal(rt, "a")
	b := NewSignal(rt, "b")

	runs := 0
	rt.Effect(func() {
		runs++
		if useA.Get() {
			a.Get()
		} else {
			b.Get()
		}
	})

	b.Set("b2")
	if runs != 1 {
		t.Errorf("effect ran for an unread signal, runs = %d", runs)
	}
	useA.Set(false)
	a.Set("a2")
	if runs != 2 {
		t.Errorf("effect still depends on a dropped signal, runs = %d", runs)
	}
	b.Set("b3")
	if runs != 3 {
		t.Errorf("effect should depend on b now, runs = %d", runs)
	}
}

func TestBindings(t *testing.T) {
	rt := NewRuntime()
	for i := range 100 {
		rt.Bind(uint64(i), fmt.Sprintf("#el-%d", i))
	}

	bindings := rt.Bindings()
	if len(bindings) != 100 || bindings[42] != (Binding{Signal: 42, Target: "#el-42"}) {
		t.Fatalf("Bindings() = %d entries, [42] = %+v", len(bindings), bindings[42])
	}

	bindings[0].Target = "changed"
	if rt.Bindings()[0].Target != "#el-0" {
		t.Error("Bindings should return a copy")
	}
}

func TestRender(t *testing.T) {
	rt := NewRuntime()
	count := NewSignal(rt, 5)
	label := NewSignal(rt, "<b>")
	double := NewComputed(rt, func() int { return count.Get() * 2 })

	tests := []struct {
		name string
		r    zx.Renderable
		want string
	}{
		{"int", count, "<!--$s1-->5<!--/$s1-->"},
		{"escaped", label, "<!--$s2-->&lt;b&gt;<!--/$s2-->"},
		{"computed", double, "<!--$s3-->10<!--/$s3-->"},
	}

	for _, tt := range tests {
		got, err := runtime.RenderString(context.Background(), tt.r.Render())
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestRenderInTree(t *testing.T) {
	rt := NewRuntime()
	count := NewSignal(rt, 0)
	count.Set(7)
	rt.Bind(count.ID(), "#counter")

	got, err := runtime.RenderString(context.Background(),
		zx.Element("span", zx.Attrs{zx.A("id", "counter")}, zx.Any(count)))
	if err != nil {
		t.Fatal(err)
	}
	if want := `<span id="counter"><!--$s1-->7<!--/$s1--></span>`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}
