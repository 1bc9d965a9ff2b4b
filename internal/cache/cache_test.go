package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := New(time.Minute, 10)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get() hit for missing key")
	}

	c.Set("kpi", "payload")
	got, ok := c.Get("kpi")
	if !ok || got != "payload" {
		t.Errorf("Get() = %v, %v, want payload, true", got, ok)
	}
}

func TestExpiry(t *testing.T) {
	c := New(time.Minute, 10)
	base := time.Now()
	c.now = func() time.Time { return base }

	c.Set("kpi", "payload")

	// Exactly at the TTL boundary the entry is still live.
	c.now = func() time.Time { return base.Add(time.Minute) }
	if _, ok := c.Get("kpi"); !ok {
		t.Error("entry expired at the boundary, want live")
	}

	c.now = func() time.Time { return base.Add(time.Minute + time.Nanosecond) }
	if _, ok := c.Get("kpi"); ok {
		t.Error("entry live past its TTL")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want expired entry removed on access", c.Len())
	}
}

func TestPruneEvictsOldest(t *testing.T) {
	c := New(time.Minute, 3)
	base := time.Now()
	for i := 0; i < 4; i++ {
		tick := base.Add(time.Duration(i) * time.Second)
		c.now = func() time.Time { return tick }
		c.Set(fmt.Sprintf("key-%d", i), i)
	}

	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 after prune", c.Len())
	}
	c.now = func() time.Time { return base.Add(4 * time.Second) }
	if _, ok := c.Get("key-0"); ok {
		t.Error("oldest entry survived the prune")
	}
	for i := 1; i < 4; i++ {
		if _, ok := c.Get(fmt.Sprintf("key-%d", i)); !ok {
			t.Errorf("key-%d evicted, want kept", i)
		}
	}
}

func TestPurge(t *testing.T) {
	c := New(time.Minute, 10)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Purge, want 0", c.Len())
	}
}

func TestDefaults(t *testing.T) {
	c := New(0, 0)
	if c.ttl != DefaultTTL || c.maxSize != DefaultMaxSize {
		t.Errorf("defaults = %v/%d, want %v/%d", c.ttl, c.maxSize, DefaultTTL, DefaultMaxSize)
	}
}
