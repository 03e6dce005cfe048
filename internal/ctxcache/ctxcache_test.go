package ctxcache

import (
	"testing"
	"time"
)

func TestKeyStableAcrossWhitespaceAndCase(t *testing.T) {
	a := KeyParams{Query: "cake  baking", Threshold: 0.7, MaxResults: 10}
	b := KeyParams{Query: " Cake Baking ", Threshold: 0.7, MaxResults: 10}

	if a.Hash() != b.Hash() {
		t.Errorf("normalized-equal queries hash differently: %s vs %s", a.Hash(), b.Hash())
	}
}

func TestKeyDistinguishesOptions(t *testing.T) {
	base := KeyParams{Query: "cake baking", Threshold: 0.7, MaxResults: 10}

	variants := []KeyParams{
		{Query: "cake baking", Threshold: 0.5, MaxResults: 10},
		{Query: "cake baking", Threshold: 0.7, MaxResults: 5},
		{Query: "cake baking", Threshold: 0.7, MaxResults: 10, AllowInsufficient: true},
		{Query: "cake baking", Threshold: 0.7, MaxResults: 10, MaxTokens: 2000},
		{Query: "pie baking", Threshold: 0.7, MaxResults: 10},
	}

	for i, v := range variants {
		if v.Hash() == base.Hash() {
			t.Errorf("variant %d hashes identically to base", i)
		}
	}
}

func TestCacheHitReturnsStoredValue(t *testing.T) {
	c := New(time.Minute, time.Minute)
	key := KeyParams{Query: "cake baking"}.Hash()

	stored := []string{"result one", "result two"}
	c.Set(key, stored)

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	results, ok := got.([]string)
	if !ok {
		t.Fatalf("cached value has type %T, want []string", got)
	}
	if len(results) != 2 || results[0] != "result one" {
		t.Errorf("cached value = %v, want original", results)
	}
}

func TestCacheMiss(t *testing.T) {
	c := New(time.Minute, time.Minute)

	if _, ok := c.Get("absent"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestCacheEntryExpires(t *testing.T) {
	c := New(20*time.Millisecond, time.Hour)
	c.Set("k", "v")

	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit before expiry")
	}

	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after TTL elapsed")
	}
}

func TestCacheExplicitTTL(t *testing.T) {
	c := New(time.Hour, time.Hour)
	c.SetWithTTL("short", "v", 20*time.Millisecond)

	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get("short"); ok {
		t.Error("expected miss after explicit TTL elapsed")
	}
}

func TestCacheDefaults(t *testing.T) {
	c := New(0, 0)
	if c.TTL() != DefaultTTL {
		t.Errorf("TTL() = %v, want default %v", c.TTL(), DefaultTTL)
	}
}

func TestCacheFlush(t *testing.T) {
	c := New(time.Minute, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	c.Flush()
	if c.Len() != 0 {
		t.Errorf("Len() after Flush = %d, want 0", c.Len())
	}
}
