package querycache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"github.com/waymark-app/waymark/internal/cache/redisstore"
	"github.com/waymark-app/waymark/internal/model"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	cli, err := redisstore.New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("redisstore.New: %v", err)
	}
	t.Cleanup(func() { _ = cli.Close() })

	return New(cli, true, 250*time.Millisecond, zerolog.Nop()), mr
}

func sample() []model.Marker {
	return []model.Marker{
		{ID: 1, Lat: 59.3293, Lng: 18.0686, Category: "friendly_clinic", Title: "clinic", IsPublic: true, ReviewStatus: model.ReviewApproved, IsActive: true},
		{ID: 2, Lat: 59.33, Lng: 18.07, Category: "self_definition", Title: "spot", IsPublic: true, ReviewStatus: model.ReviewApproved, IsActive: true},
	}
}

func TestPutLookup_RoundTrip(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	if _, out := s.Lookup(ctx, "k"); out != Miss {
		t.Fatalf("fresh key outcome=%v, want Miss", out)
	}

	s.Put(ctx, "k", sample(), 10*time.Second)

	got, out := s.Lookup(ctx, "k")
	if out != Hit {
		t.Fatalf("outcome=%v, want Hit", out)
	}
	if len(got) != 2 || got[0].ID != 1 || got[1].Category != "self_definition" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestLookup_ExpiresByTTL(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	s.Put(ctx, "k", sample(), 5*time.Second)
	mr.FastForward(6 * time.Second)

	if _, out := s.Lookup(ctx, "k"); out != Miss {
		t.Fatalf("expired entry outcome=%v, want Miss", out)
	}
}

func TestPut_ClampsZeroTTL(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	s.Put(ctx, "k", sample(), 0)
	if ttl := mr.TTL("k"); ttl < MinTTL {
		t.Fatalf("TTL=%v, want >= %v", ttl, MinTTL)
	}
}

func TestLookup_CorruptPayloadIsStoreError(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	if err := mr.Set("k", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, out := s.Lookup(ctx, "k"); out != StoreError {
		t.Fatalf("corrupt payload outcome=%v, want StoreError", out)
	}
}

func TestLookup_OutageIsStoreError_PutSwallowed(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	mr.Close()

	if _, out := s.Lookup(ctx, "k"); out != StoreError {
		t.Fatalf("outage outcome=%v, want StoreError", out)
	}
	// Must not panic or surface anything.
	s.Put(ctx, "k", sample(), 10*time.Second)
}

func TestDisabled_PermanentMissNoOpPut(t *testing.T) {
	s := New(nil, false, 0, zerolog.Nop())
	ctx := context.Background()

	s.Put(ctx, "k", sample(), 10*time.Second)
	if _, out := s.Lookup(ctx, "k"); out != Miss {
		t.Fatalf("disabled cache outcome=%v, want Miss", out)
	}
}

func TestClampTTL(t *testing.T) {
	if got := ClampTTL(-3 * time.Second); got != MinTTL {
		t.Fatalf("ClampTTL(-3s)=%v", got)
	}
	if got := ClampTTL(12 * time.Second); got != 12*time.Second {
		t.Fatalf("ClampTTL(12s)=%v", got)
	}
}
