package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache() (*Cache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(WithClock(clock.now)), clock
}

func TestGetSet(t *testing.T) {
	c, _ := newTestCache()

	if _, ok := c.Get("nav"); ok {
		t.Fatal("Get on empty cache should miss")
	}
	c.Set("nav", "<nav></nav>", time.Minute)
	if v, ok := c.Get("nav"); !ok || v != "<nav></nav>" {
		t.Errorf("Get(nav) = %q, %v", v, ok)
	}
	c.Set("nav", "<nav>2</nav>", time.Minute)
	if v, _ := c.Get("nav"); v != "<nav>2</nav>" {
		t.Errorf("Set should overwrite, got %q", v)
	}
}

func TestExpiry(t *testing.T) {
	c, clock := newTestCache()
	c.Set("k", "v", 5*time.Minute)

	clock.advance(4 * time.Minute)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired too early")
	}

	clock.advance(time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should expire at its deadline")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be dropped on read, Len = %d", c.Len())
	}
}

func TestDeleteAndLen(t *testing.T) {
	c, _ := newTestCache()
	keys := []string{"a", "b", "c", "page.zx:3:7", "5m:nav"}
	for _, k := range keys {
		c.Set(k, k, time.Hour)
	}
	if c.Len() != len(keys) {
		t.Fatalf("Len = %d, want %d", c.Len(), len(keys))
	}

	c.Delete("b")
	c.Delete("missing")
	if _, ok := c.Get("b"); ok {
		t.Error("deleted key still present")
	}
	if c.Len() != len(keys)-1 {
		t.Errorf("Len = %d, want %d", c.Len(), len(keys)-1)
	}

	c.Set("a", "x", 0)
	if _, ok := c.Get("a"); ok {
		t.Error("Set with zero ttl should remove the key")
	}
}

func TestDo(t *testing.T) {
	c, clock := newTestCache()
	calls := 0
	fill := func() (string, bool, error) {
		calls++
		return "html", true, nil
	}

	v, stored, err := c.Do("k", time.Minute, fill)
	if err != nil || v != "html" || !stored {
		t.Fatalf("Do = %q, %v, %v", v, stored, err)
	}
	if _, _, err := c.Do("k", time.Minute, fill); err != nil || calls != 1 {
		t.Errorf("second Do should hit the cache, calls = %d", calls)
	}

	clock.advance(time.Minute)
	c.Do("k", time.Minute, fill)
	if calls != 2 {
		t.Errorf("Do after expiry should refill, calls = %d", calls)
	}
}

func TestDoWithoutStore(t *testing.T) {
	c, _ := newTestCache()
	calls := 0
	fill := func() (string, bool, error) {
		calls++
		return "streamed", false, nil
	}

	for range 2 {
		v, stored, err := c.Do("k", time.Minute, fill)
		if err != nil || v != "streamed" || stored {
			t.Fatalf("Do = %q, %v, %v", v, stored, err)
		}
	}
	if calls != 2 || c.Len() != 0 {
		t.Errorf("unstored values must not be cached: calls = %d, Len = %d", calls, c.Len())
	}
}

func TestDoError(t *testing.T) {
	c, _ := newTestCache()
	boom := errors.New("boom")

	_, _, err := c.Do("k", time.Minute, func() (string, bool, error) {
		return "", true, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Do error = %v, want %v", err, boom)
	}
	if c.Len() != 0 {
		t.Error("failed fill should not be stored")
	}
}

func TestDoSharesConcurrentFills(t *testing.T) {
	c := New()
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	fill := func() (string, bool, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "shared", true, nil
	}

	var wg sync.WaitGroup
	results := make([]string, 8)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _, _ = c.Do("k", time.Minute, fill)
	}()
	<-started
	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _, _ = c.Do("k", time.Minute, fill)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("fill called %d times, want 1", n)
	}
	for i, r := range results {
		if r != "shared" {
			t.Errorf("results[%d] = %q", i, r)
		}
	}
}
