package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type doc struct {
	Name string `json:"name"`
}

func newTestCache(t *testing.T) *TenantCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, time.Minute)
}

func TestTenantCacheRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	var missed doc
	if err := c.Get(ctx, "org-1", "activity:a1", &missed); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss, got %v", err)
	}

	if err := c.Put(ctx, "org-1", "activity:a1", doc{Name: "Alpine Tandem"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	var got doc
	if err := c.Get(ctx, "org-1", "activity:a1", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Alpine Tandem" {
		t.Fatalf("unexpected doc: %+v", got)
	}

	if err := c.Forget(ctx, "org-1", "activity:a1"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if err := c.Get(ctx, "org-1", "activity:a1", &got); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss after forget, got %v", err)
	}
}

func TestTenantCacheKeysAreOrgScoped(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Put(ctx, "org-1", "activity:a1", doc{Name: "Alpine Tandem"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	var got doc
	if err := c.Get(ctx, "org-2", "activity:a1", &got); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected cross-org miss, got %v", err)
	}
}

func TestNilClientIsNoOp(t *testing.T) {
	c := New(nil, time.Minute)
	ctx := context.Background()

	if err := c.Put(ctx, "org-1", "k", doc{}); err != nil {
		t.Fatalf("nil client put: %v", err)
	}
	var got doc
	if err := c.Get(ctx, "org-1", "k", &got); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss from nil client, got %v", err)
	}
	if err := c.Forget(ctx, "org-1", "k"); err != nil {
		t.Fatalf("nil client forget: %v", err)
	}
}
