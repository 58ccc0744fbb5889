package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

// creates new client connected to miniredis for testing
func newMini(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	rc, err := New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestSetGetDel_HappyPath(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rc.Set(ctx, "k1", []byte("v1"), 5*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := rc.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("Get=%q", got)
	}

	if err := rc.Del(ctx, "k1"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, err := rc.Get(ctx, "k1"); !errors.Is(err, ErrMiss) {
		t.Fatalf("Get after Del err=%v, want ErrMiss", err)
	}
}

func TestGet_MissingKeyIsErrMiss(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := rc.Get(ctx, "nope"); !errors.Is(err, ErrMiss) {
		t.Fatalf("err=%v, want ErrMiss", err)
	}
}

func TestSet_TTLExpires(t *testing.T) {
	rc, mr := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rc.Set(ctx, "k", []byte("v"), 10*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(11 * time.Second)
	if _, err := rc.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expired key err=%v, want ErrMiss", err)
	}
}

func TestIncrWindow_CountsAndExpires(t *testing.T) {
	rc, mr := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for want := int64(1); want <= 3; want++ {
		got, err := rc.IncrWindow(ctx, "rl:k", 10*time.Minute)
		if err != nil {
			t.Fatalf("IncrWindow: %v", err)
		}
		if got != want {
			t.Fatalf("IncrWindow=%d, want %d", got, want)
		}
	}

	if ttl := mr.TTL("rl:k"); ttl != 10*time.Minute {
		t.Fatalf("window TTL=%v, want 10m", ttl)
	}

	mr.FastForward(11 * time.Minute)
	got, err := rc.IncrWindow(ctx, "rl:k", 10*time.Minute)
	if err != nil {
		t.Fatalf("IncrWindow after expiry: %v", err)
	}
	if got != 1 {
		t.Fatalf("fresh window count=%d, want 1", got)
	}
}

func TestContextDeadline_IsRespected(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rc.Set(ctx, "k", []byte("v"), time.Second); err == nil {
		t.Fatalf("expected error on Set with canceled context")
	}
	if _, err := rc.Get(ctx, "k"); err == nil || errors.Is(err, ErrMiss) {
		t.Fatalf("expected transport error on Get with canceled context")
	}
	if _, err := rc.IncrWindow(ctx, "k", time.Second); err == nil {
		t.Fatalf("expected error on IncrWindow with canceled context")
	}
}
