// Package signal implements reactive values that render with hydration
// markers so the client can update them in place.
//
// A Runtime and the signals created from it form one dependency graph.
// Reading and writing signals of the same Runtime from several goroutines
// must be synchronized by the caller; ID allocation and bindings are safe for
// concurrent use.
package signal

import (
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/germtb/zx"
)

// Binding connects a signal to a client-side target, such as an element id
// or attribute selector.
type Binding struct {
	Signal uint64
	Target string
}

// Runtime allocates signal ids and records bindings.
type Runtime struct {
	ids atomic.Uint64

	mu       sync.Mutex
	bindings []Binding

	current *observer
}

// NewRuntime returns an empty runtime.
func NewRuntime() *Runtime {
	return &Runtime{}
}

func (rt *Runtime) nextID() uint64 {
	return rt.ids.Add(1)
}

// Bind records that target displays the signal with the given id.
func (rt *Runtime) Bind(signalID uint64, target string) {
	rt.mu.Lock()
	rt.bindings = append(rt.bindings, Binding{Signal: signalID, Target: target})
	rt.mu.Unlock()
}

// Bindings returns the recorded bindings in the order they were added.
func (rt *Runtime) Bindings() []Binding {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return slices.Clone(rt.bindings)
}

// track records n as a dependency of the running computation, if any.
func (rt *Runtime) track(n *node) {
	if rt.current != nil {
		rt.current.dependOn(n)
	}
}

// run calls fn with o as the running computation.
func (rt *Runtime) run(o *observer, fn func()) {
	o.clear()
	prev := rt.current
	rt.current = o
	defer func() { rt.current = prev }()
	fn()
}

// node is a value that computations can depend on.
type node struct {
	observers []*observer
}

func (n *node) notify() {
	for _, o := range slices.Clone(n.observers) {
		o.notify()
	}
}

// observer is a computation with its current dependencies.
type observer struct {
	sources []*node
	notify  func()
}

func (o *observer) dependOn(n *node) {
	if slices.Contains(o.sources, n) {
		return
	}
	o.sources = append(o.sources, n)
	n.observers = append(n.observers, o)
}

func (o *observer) clear() {
	for _, n := range o.sources {
		n.observers = slices.DeleteFunc(n.observers, func(x *observer) bool { return x == o })
	}
	o.sources = nil
}

// Signal is a reactive value.
type Signal[T any] struct {
	node
	rt    *Runtime
	id    uint64
	value T

	subs    map[int]func(T)
	nextSub int
}

// NewSignal creates a signal holding initial.
func NewSignal[T any](rt *Runtime, initial T) *Signal[T] {
	return &Signal[T]{rt: rt, id: rt.nextID(), value: initial, subs: make(map[int]func(T))}
}

// ID returns the signal id, unique within its Runtime.
func (s *Signal[T]) ID() uint64 {
	return s.id
}

// Get returns the current value and records it as a dependency of the
// running computed or effect.
func (s *Signal[T]) Get() T {
	s.rt.track(&s.node)
	return s.value
}

// Peek returns the current value without recording a dependency.
func (s *Signal[T]) Peek() T {
	return s.value
}

// Set replaces the value and notifies dependents and subscribers.
func (s *Signal[T]) Set(v T) {
	s.value = v
	s.notify()
	keys := make([]int, 0, len(s.subs))
	for k := range s.subs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if fn, ok := s.subs[k]; ok {
			fn(v)
		}
	}
}

// Update sets the value to fn applied to the current value.
func (s *Signal[T]) Update(fn func(T) T) {
	s.Set(fn(s.value))
}

// Subscribe calls fn with every new value. Subscribers run in subscription
// order. The returned function removes the subscription.
func (s *Signal[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	k := s.nextSub
	s.nextSub++
	s.subs[k] = fn
	return func() { delete(s.subs, k) }
}

// Render writes the current value between markers naming the signal.
func (s *Signal[T]) Render() zx.Component {
	return marked("s"+strconv.FormatUint(s.id, 10), zx.Any(s.value))
}

func marked(id string, c zx.Component) zx.Component {
	return zx.Fragment(zx.Raw("<!--$"+id+"-->"), c, zx.Raw("<!--/$"+id+"-->"))
}

// Computed is a value derived from signals. It is recomputed lazily, on the
// first Get after one of its dependencies changed.
type Computed[T any] struct {
	node
	rt    *Runtime
	id    uint64
	fn    func() T
	value T
	dirty bool
	obs   observer
}

// NewComputed creates a computed value. fn is not called until Get.
func NewComputed[T any](rt *Runtime, fn func() T) *Computed[T] {
	c := &Computed[T]{rt: rt, id: rt.nextID(), fn: fn, dirty: true}
	c.obs.notify = func() {
		if !c.dirty {
			c.dirty = true
			c.notify()
		}
	}
	return c
}

// ID returns the computed id, unique within its Runtime.
func (c *Computed[T]) ID() uint64 {
	return c.id
}

// Get returns the value, recomputing it if a dependency changed.
func (c *Computed[T]) Get() T {
	c.rt.track(&c.node)
	if c.dirty {
		c.rt.run(&c.obs, func() { c.value = c.fn() })
		c.dirty = false
	}
	return c.value
}

// Render writes the current value between markers naming the computed.
func (c *Computed[T]) Render() zx.Component {
	return marked("s"+strconv.FormatUint(c.id, 10), zx.Any(c.Get()))
}

// Effect runs fn now and again whenever a signal or computed it read during
// its last run changes. The returned function stops it.
func (rt *Runtime) Effect(fn func()) (stop func()) {
	stopped := false
	o := &observer{}
	o.notify = func() {
		if !stopped {
			rt.run(o, fn)
		}
	}
	rt.run(o, fn)
	return func() {
		stopped = true
		o.clear()
	}
}
