package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

// --- RedisRateLimiter ---

func TestRateLimiterAllow(t *testing.T) {
	ctx := context.Background()
	policy := RateLimit{MaxAttempts: 3, Window: 15 * time.Minute, LockoutTTL: 15 * time.Minute}

	t.Run("allows up to MaxAttempts then locks out", func(t *testing.T) {
		_, rdb := newTestRedis(t)
		l := NewRedisRateLimiter(rdb)

		for i := 1; i <= policy.MaxAttempts; i++ {
			if err := l.Allow(ctx, "login:ada@example.com", policy); err != nil {
				t.Fatalf("attempt %d: unexpected error %v", i, err)
			}
		}
		if err := l.Allow(ctx, "login:ada@example.com", policy); !errors.Is(err, ErrRateLimitExceeded) {
			t.Fatalf("attempt %d: expected ErrRateLimitExceeded, got %v", policy.MaxAttempts+1, err)
		}
		// Still locked even though the counter was cleared.
		if err := l.Allow(ctx, "login:ada@example.com", policy); !errors.Is(err, ErrRateLimitExceeded) {
			t.Errorf("during lockout: expected ErrRateLimitExceeded, got %v", err)
		}
	})

	t.Run("keys are independent", func(t *testing.T) {
		_, rdb := newTestRedis(t)
		l := NewRedisRateLimiter(rdb)
		for i := 0; i <= policy.MaxAttempts; i++ {
			l.Allow(ctx, "login:locked@example.com", policy)
		}
		if err := l.Allow(ctx, "login:other@example.com", policy); err != nil {
			t.Errorf("other key: unexpected error %v", err)
		}
	})

	t.Run("lockout expires", func(t *testing.T) {
		mr, rdb := newTestRedis(t)
		l := NewRedisRateLimiter(rdb)
		for i := 0; i <= policy.MaxAttempts; i++ {
			l.Allow(ctx, "login:ada@example.com", policy)
		}
		mr.FastForward(policy.LockoutTTL + time.Second)
		if err := l.Allow(ctx, "login:ada@example.com", policy); err != nil {
			t.Errorf("after lockout: unexpected error %v", err)
		}
	})

	t.Run("window expiry resets the count", func(t *testing.T) {
		mr, rdb := newTestRedis(t)
		l := NewRedisRateLimiter(rdb)
		for i := 0; i < policy.MaxAttempts; i++ {
			l.Allow(ctx, "login:ada@example.com", policy)
		}
		mr.FastForward(policy.Window + time.Second)
		if err := l.Allow(ctx, "login:ada@example.com", policy); err != nil {
			t.Errorf("after window: unexpected error %v", err)
		}
	})

	t.Run("reset clears counter and lockout", func(t *testing.T) {
		_, rdb := newTestRedis(t)
		l := NewRedisRateLimiter(rdb)
		for i := 0; i <= policy.MaxAttempts; i++ {
			l.Allow(ctx, "login:ada@example.com", policy)
		}
		if err := l.Reset(ctx, "login:ada@example.com"); err != nil {
			t.Fatalf("Reset: %v", err)
		}
		if err := l.Allow(ctx, "login:ada@example.com", policy); err != nil {
			t.Errorf("after reset: unexpected error %v", err)
		}
	})

	t.Run("zero policy disables limiting", func(t *testing.T) {
		_, rdb := newTestRedis(t)
		l := NewRedisRateLimiter(rdb)
		for i := 0; i < 20; i++ {
			if err := l.Allow(ctx, "login:ada@example.com", RateLimit{}); err != nil {
				t.Fatalf("attempt %d: unexpected error %v", i, err)
			}
		}
	})

	t.Run("redis failure is not a rate limit rejection", func(t *testing.T) {
		mr, rdb := newTestRedis(t)
		l := NewRedisRateLimiter(rdb)
		mr.Close()
		err := l.Allow(ctx, "login:ada@example.com", policy)
		if err == nil || errors.Is(err, ErrRateLimitExceeded) {
			t.Errorf("expected infrastructure error, got %v", err)
		}
	})
}

// --- RedisDenylist ---

func TestDenylist(t *testing.T) {
	ctx := context.Background()

	t.Run("revoked id is reported until expiry", func(t *testing.T) {
		mr, rdb := newTestRedis(t)
		d := NewRedisDenylist(rdb)

		if err := d.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
			t.Fatalf("Revoke: %v", err)
		}
		revoked, err := d.IsRevoked(ctx, "jti-1")
		if err != nil || !revoked {
			t.Fatalf("expected (true, nil), got (%v, %v)", revoked, err)
		}

		mr.FastForward(time.Hour + time.Second)
		if revoked, _ := d.IsRevoked(ctx, "jti-1"); revoked {
			t.Error("expected entry to expire with the token")
		}
	})

	t.Run("unknown id is not revoked", func(t *testing.T) {
		_, rdb := newTestRedis(t)
		d := NewRedisDenylist(rdb)
		if revoked, err := d.IsRevoked(ctx, "jti-unknown"); err != nil || revoked {
			t.Errorf("expected (false, nil), got (%v, %v)", revoked, err)
		}
	})

	t.Run("already expired token writes nothing", func(t *testing.T) {
		mr, rdb := newTestRedis(t)
		d := NewRedisDenylist(rdb)
		if err := d.Revoke(ctx, "jti-old", time.Now().Add(-time.Minute)); err != nil {
			t.Fatalf("Revoke: %v", err)
		}
		if mr.Exists(revokedKey("jti-old")) {
			t.Error("expected no key for expired token")
		}
	})

	t.Run("redis failure surfaces as error", func(t *testing.T) {
		mr, rdb := newTestRedis(t)
		d := NewRedisDenylist(rdb)
		mr.Close()
		if _, err := d.IsRevoked(ctx, "jti-1"); err == nil {
			t.Error("expected error with redis down")
		}
	})
}

// --- ChangeFeed ---

func TestChangeFeed(t *testing.T) {
	ctx := context.Background()

	t.Run("subscriber is signalled on publish", func(t *testing.T) {
		_, rdb := newTestRedis(t)
		feed := NewChangeFeed(rdb)

		changes, cancel, err := feed.Subscribe(ctx, CollectionAdmins)
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		defer cancel()

		if err := feed.Publish(ctx, CollectionAdmins); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		select {
		case <-changes:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for change signal")
		}
	})

	t.Run("other collections do not signal", func(t *testing.T) {
		_, rdb := newTestRedis(t)
		feed := NewChangeFeed(rdb)

		changes, cancel, err := feed.Subscribe(ctx, CollectionUsers)
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		defer cancel()

		feed.Publish(ctx, CollectionAdmins)
		select {
		case <-changes:
			t.Error("unexpected signal for another collection")
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("cancel ends the signal channel and is idempotent", func(t *testing.T) {
		_, rdb := newTestRedis(t)
		feed := NewChangeFeed(rdb)

		changes, cancel, err := feed.Subscribe(ctx, CollectionDocuments)
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		cancel()
		cancel()
		select {
		case _, ok := <-changes:
			if ok {
				t.Error("expected closed channel")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for channel close")
		}
	})
}
