package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tb := NewTokenBucket(2, 1, now)

	ok, _ := tb.Allow(now)
	assert.True(t, ok)
	ok, _ = tb.Allow(now)
	assert.True(t, ok)

	ok, wait := tb.Allow(now)
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	ok, _ = tb.Allow(now.Add(time.Second))
	assert.True(t, ok, "one token refilled after a second")
}

func TestRateLimiterPerKeyAndSweep(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	ok, _ := rl.Allow("alice")
	assert.True(t, ok)
	ok, _ = rl.Allow("alice")
	assert.False(t, ok)
	ok, _ = rl.Allow("bob")
	assert.True(t, ok, "buckets are per key")

	now = now.Add(time.Hour)
	rl.Sweep(10 * time.Minute)
	rl.mu.Lock()
	assert.Empty(t, rl.buckets)
	rl.mu.Unlock()
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	h := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := func(owner string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		return r.WithContext(context.WithValue(r.Context(), OwnerKey, owner))
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req("alice"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req("alice"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req("bob"))
	assert.Equal(t, http.StatusOK, rec.Code)
}
