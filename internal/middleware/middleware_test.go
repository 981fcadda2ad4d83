package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/promovista/app/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_slidingWindow(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rl := NewRateLimiter(10*time.Minute, 3, fc)
	key := GetPhoneKey("0722123456")

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow(key), "request %d", i+1)
	}
	assert.False(t, rl.Allow(key))
	assert.True(t, rl.Allow(GetPhoneKey("0733123456")), "keys are independent")

	fc.Advance(10*time.Minute + time.Second)
	assert.True(t, rl.Allow(key))
}

func TestRateLimiter_cleanup(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rl := NewRateLimiter(time.Minute, 1, fc)
	rl.Allow("a")
	rl.Allow("b")
	require.Equal(t, 2, rl.size())

	fc.Advance(2 * time.Minute)
	rl.Cleanup()
	assert.Equal(t, 0, rl.size())
}

func TestRateLimiter_runStopsOnCancel(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rl := NewRateLimiter(time.Minute, 1, fc)
	rl.Allow("a")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rl.Run(ctx, time.Hour) }()

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(time.Hour)
	require.Eventually(t, func() bool { return rl.size() == 0 }, time.Second, time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(time.Minute, 1, clockwork.NewFakeClock())
	h := RateLimitMiddleware(rl, GetIPKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rec.Body.String())
}

func TestGetIPKey_ignoresForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "ip:192.0.2.1:1234", GetIPKey(req))

	req.Header.Set("X-Forwarded-For", " 10.0.0.1 , 10.0.0.2")
	assert.Equal(t, "ip:192.0.2.1:1234", GetIPKey(req))
}

func TestRateLimitMiddleware_rotatingForwardedForStillLimited(t *testing.T) {
	rl := NewRateLimiter(time.Minute, 2, clockwork.NewFakeClock())
	h := RateLimitMiddleware(rl, GetIPKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	for _, xff := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestSessionScope(t *testing.T) {
	store := session.NewStore(nil, nil, nil)
	var got *session.Store
	h := SessionScope(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		got, err = session.FromContext(r.Context())
		require.NoError(t, err)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Same(t, store, got)
}
