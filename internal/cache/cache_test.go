package cache

import (
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[string](3, time.Hour)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")
	c.Set("key4", "value4")

	if _, found := c.Get("key1"); found {
		t.Error("key1 should have been evicted")
	}
	for _, k := range []string{"key2", "key3", "key4"} {
		if _, found := c.Get(k); !found {
			t.Errorf("%s should still exist", k)
		}
	}
	if c.Size() != 3 {
		t.Errorf("Size() = %d, want 3", c.Size())
	}
}

func TestLRUCacheTTLExpiration(t *testing.T) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, 5*time.Minute).WithClock(clk.now)

	c.Set("key1", "value1")
	_, exp, found := c.GetWithExpiry("key1")
	if !found {
		t.Fatal("key1 should exist immediately")
	}
	if want := clk.t.Add(5 * time.Minute); !exp.Equal(want) {
		t.Errorf("expiry = %v, want %v", exp, want)
	}

	clk.t = clk.t.Add(5*time.Minute + time.Second)
	if _, found := c.Get("key1"); found {
		t.Error("key1 should have expired")
	}
}

func TestLRUCacheCleanExpired(t *testing.T) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](10, time.Minute).WithClock(clk.now)
	c.Set("a", 1)
	c.Set("b", 2)
	clk.t = clk.t.Add(30 * time.Second)
	c.Set("c", 3)
	clk.t = clk.t.Add(45 * time.Second)

	m := NewManager(nil)
	m.Register(c)
	if removed := m.Sweep(); removed != 2 {
		t.Errorf("Sweep() = %d, want 2", removed)
	}
	if _, found := c.Get("c"); !found {
		t.Error("c should survive the sweep")
	}
}

func TestLRUCacheDelete(t *testing.T) {
	c := NewLRUCache[string](2, time.Hour)
	c.Set("k", "v")
	c.Delete("k")
	c.Delete("missing")
	if _, found := c.Get("k"); found {
		t.Error("k should be gone")
	}
}

func TestManagerStartStop(t *testing.T) {
	m := NewManager(nil)
	m.Register(NewLRUCache[string](1, time.Millisecond))
	m.StartCleanup(time.Millisecond)
	m.StartCleanup(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	m.Stop()
}

func BenchmarkLRUCache(b *testing.B) {
	c := NewLRUCache[int](1000, time.Hour)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if i%10 == 0 {
			c.Set("bench-key", i)
		} else {
			c.Get("bench-key")
		}
	}
}
