package cache

import (
	"errors"
	"testing"
)

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	var gone []string
	c := New[string, int](2, func(k string, _ int) { gone = append(gone, k) })

	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a to be cached")
	}
	c.Set("c", 3)

	if len(gone) != 1 || gone[0] != "b" {
		t.Fatalf("expected b evicted, got %v", gone)
	}
	if _, ok := c.Get("b"); ok {
		t.Error("b should be gone")
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.Len())
	}
	if s := c.Stats(); s.Evictions != 1 || s.Hits != 1 || s.Misses != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestCacheGetOrCreate(t *testing.T) {
	c := New[uint64, string](0, nil)
	calls := 0
	create := func() (string, error) {
		calls++
		return "pipeline", nil
	}
	for range 3 {
		v, err := c.GetOrCreate(7, create)
		if err != nil || v != "pipeline" {
			t.Fatalf("GetOrCreate() = %q, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 creation, got %d", calls)
	}

	boom := errors.New("boom")
	if _, err := c.GetOrCreate(8, func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Errorf("expected creation error, got %v", err)
	}
	if c.Len() != 1 {
		t.Errorf("failed creation should not be stored, Len() = %d", c.Len())
	}
}

func TestCacheReplaceAndClearNotify(t *testing.T) {
	var gone []int
	c := New[string, int](0, func(_ string, v int) { gone = append(gone, v) })
	c.Set("a", 1)
	c.Set("a", 2)
	c.Set("b", 3)
	if !c.Delete("b") || c.Delete("b") {
		t.Error("Delete should report presence once")
	}
	c.Clear()

	want := map[int]bool{1: true, 2: true, 3: true}
	if len(gone) != 3 {
		t.Fatalf("expected 3 notifications, got %v", gone)
	}
	for _, v := range gone {
		if !want[v] {
			t.Errorf("unexpected eviction of %d", v)
		}
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d", c.Len())
	}
}
