package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/MrWong99/speakeval/pkg/cache"
	"github.com/MrWong99/speakeval/pkg/cache/memory"
)

func TestCache_SetGetDeleteExists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := memory.New(time.Minute)

	if _, ok, err := c.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("Get(missing) = ok %v, err %v; want false, nil", ok, err)
	}

	val := []byte("사과")
	if err := c.Set(ctx, "k", val, time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	val[0] = 'x'

	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get(k) = ok %v, err %v; want true, nil", ok, err)
	}
	if string(got) != "사과" {
		t.Errorf("Get(k) = %q, want %q (stored value must not alias caller slice)", got, "사과")
	}

	if ok, _ := c.Exists(ctx, "k"); !ok {
		t.Error("Exists(k) = false after Set, want true")
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := c.Exists(ctx, "k"); ok {
		t.Error("Exists(k) = true after Delete, want false")
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete of absent key: %v, want nil", err)
	}
}

func TestCache_Expiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := memory.New(time.Minute)
	if err := c.Set(ctx, "short", []byte("1"), 20*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Set(ctx, "forever", []byte("2"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	if ok, _ := c.Exists(ctx, "short"); ok {
		t.Error("Exists(short) = true after ttl, want false")
	}
	if ok, _ := c.Exists(ctx, "forever"); !ok {
		t.Error("Exists(forever) = false, want true for non-positive ttl")
	}
}

func TestCache_VectorAndJSONHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := memory.New(0)

	if _, ok, err := cache.GetVector(ctx, c, "embedding:x"); ok || err != nil {
		t.Fatalf("GetVector(absent) = ok %v, err %v; want false, nil", ok, err)
	}
	want := []float32{0.5, -1, 2}
	if err := cache.SetVector(ctx, c, "embedding:x", want, time.Hour); err != nil {
		t.Fatalf("SetVector: %v", err)
	}
	got, ok, err := cache.GetVector(ctx, c, "embedding:x")
	if err != nil || !ok {
		t.Fatalf("GetVector = ok %v, err %v", ok, err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("GetVector[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	var words []string
	if err := cache.GetJSON(ctx, c, "keywords:none", &words); err != cache.ErrNotFound {
		t.Errorf("GetJSON(absent) error = %v, want ErrNotFound", err)
	}
	if err := c.Set(ctx, "broken", []byte("{"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := cache.GetJSON(ctx, c, "broken", &words); err == nil || err == cache.ErrNotFound {
		t.Errorf("GetJSON(broken) error = %v, want decode error", err)
	}
}
