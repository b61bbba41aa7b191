package cache

import (
	"encoding/json"
	"testing"
	"time"

	"inferd/pkg/types"
)

func TestCache_PutGet(t *testing.T) {
	c := New(10, time.Minute)
	res := types.InferenceResult{ModelName: "m", Payload: json.RawMessage(`{"ok":true}`)}
	c.Put("k", res)
	got, ok := c.Get("k")
	if !ok {
		t.Fatalf("expected hit")
	}
	if got.ModelName != "m" || string(got.Payload) != `{"ok":true}` {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestCache_MissOnAbsent(t *testing.T) {
	c := New(10, time.Minute)
	if _, ok := c.Get("absent"); ok {
		t.Fatalf("expected miss")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New(10, time.Minute)
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Put("k", types.InferenceResult{ModelName: "m"})

	c.now = func() time.Time { return base.Add(59 * time.Second) }
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("expected hit before expiry")
	}
	c.now = func() time.Time { return base.Add(61 * time.Second) }
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected miss after expiry")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not removed, len=%d", c.Len())
	}
}

func TestCache_NoExpiryWhenTTLZero(t *testing.T) {
	c := New(10, 0)
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Put("k", types.InferenceResult{ModelName: "m"})
	c.now = func() time.Time { return base.Add(24 * time.Hour) }
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("entry expired despite ttl=0")
	}
}

func TestCache_CapacityEviction(t *testing.T) {
	c := New(2, time.Minute)
	c.Put("a", types.InferenceResult{ModelName: "a"})
	c.Put("b", types.InferenceResult{ModelName: "b"})
	// touch a so b becomes least recently used
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected hit for a")
	}
	c.Put("c", types.InferenceResult{ModelName: "c"})
	if c.Len() != 2 {
		t.Fatalf("len = %d", c.Len())
	}
	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a retained")
	}
}

func TestCache_PutOverwrites(t *testing.T) {
	c := New(2, time.Minute)
	c.Put("k", types.InferenceResult{ModelVersion: "1"})
	c.Put("k", types.InferenceResult{ModelVersion: "2"})
	got, ok := c.Get("k")
	if !ok || got.ModelVersion != "2" {
		t.Fatalf("expected overwrite, got %+v ok=%v", got, ok)
	}
	if c.Len() != 1 {
		t.Fatalf("len = %d", c.Len())
	}
}
