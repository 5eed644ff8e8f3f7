package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[string, int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %v %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestLRUCacheTTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string, string](10, time.Minute).WithClock(clock.now)

	c.Set("k", "v")
	clock.advance(59 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired early")
	}
	clock.advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected expired entry")
	}

	c.Set("x", "y")
	c.Set("z", "w")
	clock.advance(30 * time.Second)
	c.Set("z", "w2")
	clock.advance(30 * time.Second)
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 cleaned, got %d", n)
	}
	if v, ok := c.Get("z"); !ok || v != "w2" {
		t.Fatalf("refreshed entry lost: %q %v", v, ok)
	}
}

func TestLRUCacheFillRespectsGeneration(t *testing.T) {
	c := NewLRUCache[int, string](10, time.Minute)

	_, gen, ok := c.Lookup(1)
	if ok {
		t.Fatal("unexpected hit")
	}
	c.Clear()
	if c.Fill(gen, 1, "stale") {
		t.Fatal("fill after clear should be dropped")
	}
	if c.Size() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Size())
	}

	_, gen, _ = c.Lookup(1)
	if !c.Fill(gen, 1, "fresh") {
		t.Fatal("fill in current generation should store")
	}
	if v, ok := c.Get(1); !ok || v != "fresh" {
		t.Fatalf("got %q %v", v, ok)
	}
}

func TestLRUCacheClear(t *testing.T) {
	c := NewLRUCache[string, int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()
	if c.Size() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Size())
	}
	c.Set("a", 3)
	if v, _ := c.Get("a"); v != 3 {
		t.Fatalf("cache unusable after clear")
	}
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected a deleted")
	}
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager(nil)
	m.Register(NewLRUCache[string, int](1, time.Second))
	m.Stop()

	m = NewManager(nil)
	m.StartCleanup(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	m.Stop()
}
