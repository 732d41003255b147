package redisx_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"channel_sync/internal/adapters/redisx"
)

func testCache(t *testing.T) (*miniredis.Miniredis, *redisx.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, redisx.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestCacheRoundTrip(t *testing.T) {
	_, c := testCache(t)
	ctx := context.Background()

	type entry struct {
		Name string          `json:"name"`
		Rate decimal.Decimal `json:"rate"`
	}
	in := entry{Name: "eur", Rate: decimal.RequireFromString("0.011")}
	if err := c.Set(ctx, "fx:INR:EUR", in, 60); err != nil {
		t.Fatalf("set: %v", err)
	}

	var out entry
	ok, err := c.Get(ctx, "fx:INR:EUR", &out)
	if err != nil || !ok {
		t.Fatalf("get = %v, %v", ok, err)
	}
	if out.Name != in.Name || !out.Rate.Equal(in.Rate) {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}
}

func TestCacheMiss(t *testing.T) {
	_, c := testCache(t)
	var out string
	ok, err := c.Get(context.Background(), "absent", &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("hit on absent key")
	}
}

func TestCacheTTL(t *testing.T) {
	mr, c := testCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", 30); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(31 * time.Second)

	var out string
	ok, err := c.Get(ctx, "k", &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("key survived its ttl")
	}
}

func TestCacheDel(t *testing.T) {
	_, c := testCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", 42, 60); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	var out int
	if ok, _ := c.Get(ctx, "k", &out); ok {
		t.Fatalf("deleted key still present")
	}
}
