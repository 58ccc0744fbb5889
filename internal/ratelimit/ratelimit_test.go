package ratelimit

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"github.com/waymark-app/waymark/internal/cache/redisstore"
)

func newRedisLimiter(t *testing.T, max int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
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

	return New(cli, Config{RedisEnabled: true, MaxAttempts: max, Window: window}, zerolog.Nop()), mr
}

func TestTryAcquire_RedisWindow(t *testing.T) {
	l, mr := newRedisLimiter(t, 5, 600*time.Second)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if !l.TryAcquire(ctx, "1.2.3.4") {
			t.Fatalf("attempt %d denied, want allowed", i)
		}
	}
	if l.TryAcquire(ctx, "1.2.3.4") {
		t.Fatalf("6th attempt allowed, want denied")
	}

	// Other clients are unaffected.
	if !l.TryAcquire(ctx, "5.6.7.8") {
		t.Fatalf("independent client denied")
	}

	mr.FastForward(601 * time.Second)
	if !l.TryAcquire(ctx, "1.2.3.4") {
		t.Fatalf("attempt after window elapsed denied")
	}
}

func TestTryAcquire_FallsBackOnOutage(t *testing.T) {
	l, mr := newRedisLimiter(t, 2, 10*time.Minute)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	var mu sync.Mutex
	l.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	})
	ctx := context.Background()

	mr.Close()

	if !l.TryAcquire(ctx, "1.2.3.4") || !l.TryAcquire(ctx, "1.2.3.4") {
		t.Fatalf("local fallback denied within limit")
	}
	if l.TryAcquire(ctx, "1.2.3.4") {
		t.Fatalf("local fallback allowed above limit")
	}

	mu.Lock()
	now = base.Add(11 * time.Minute)
	mu.Unlock()
	if !l.TryAcquire(ctx, "1.2.3.4") {
		t.Fatalf("local fallback denied after window elapsed")
	}
}

func TestTryAcquire_LocalSlidingWindow(t *testing.T) {
	l := New(nil, Config{MaxAttempts: 5, Window: 600 * time.Second}, zerolog.Nop())
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	l.WithClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if !l.TryAcquire(ctx, "1.2.3.4") {
			t.Fatalf("attempt %d denied", i)
		}
		now = now.Add(time.Minute)
	}
	if l.TryAcquire(ctx, "1.2.3.4") {
		t.Fatalf("6th attempt within window allowed")
	}

	// The window slides: once the first attempt ages out, one slot
	// frees up.
	now = base.Add(601 * time.Second)
	if !l.TryAcquire(ctx, "1.2.3.4") {
		t.Fatalf("slot not freed after oldest attempt aged out")
	}
	if l.TryAcquire(ctx, "1.2.3.4") {
		t.Fatalf("second slot should still be occupied")
	}
}

func TestTryAcquire_BlankKeyIsUnknown(t *testing.T) {
	l := New(nil, Config{MaxAttempts: 1, Window: time.Minute}, zerolog.Nop())
	ctx := context.Background()

	if !l.TryAcquire(ctx, "  ") {
		t.Fatalf("blank key denied on first attempt")
	}
	// "" and "unknown" share a bucket.
	if l.TryAcquire(ctx, "unknown") {
		t.Fatalf("blank key and literal unknown must share a bucket")
	}
}

func TestTryAcquire_ConcurrentSameKey(t *testing.T) {
	l := New(nil, Config{MaxAttempts: 50, Window: time.Minute}, zerolog.Nop())
	ctx := context.Background()

	var wg sync.WaitGroup
	allowed := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- l.TryAcquire(ctx, "9.9.9.9")
		}()
	}
	wg.Wait()
	close(allowed)

	n := 0
	for ok := range allowed {
		if ok {
			n++
		}
	}
	if n != 50 {
		t.Fatalf("allowed %d of 100 concurrent attempts, want exactly 50", n)
	}
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/register", nil)
	r.Header.Set("X-Forwarded-For", " 1.2.3.4 , 10.0.0.1")
	if got := ClientKey(r); got != "1.2.3.4" {
		t.Fatalf("ClientKey=%q, want first forwarded token", got)
	}

	r = httptest.NewRequest("POST", "/api/register", nil)
	r.RemoteAddr = "192.0.2.7:4312"
	if got := ClientKey(r); got != "192.0.2.7" {
		t.Fatalf("ClientKey=%q, want remote host", got)
	}

	r = httptest.NewRequest("POST", "/api/register", nil)
	r.Header.Set("X-Forwarded-For", "  ")
	r.RemoteAddr = ""
	if got := ClientKey(r); got != "unknown" {
		t.Fatalf("ClientKey=%q, want unknown", got)
	}
}
