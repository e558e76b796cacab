package ratelimit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTokenBucket_TakeAndRefill(t *testing.T) {
	start := time.Now()
	tb := newTokenBucket(2, 10, start)

	ok, remaining, _ := tb.take(start)
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)
	ok, _, _ = tb.take(start)
	assert.True(t, ok)
	ok, _, full := tb.take(start)
	assert.False(t, ok)
	assert.Equal(t, start.Add(200*time.Millisecond), full)

	ok, _, _ = tb.take(start.Add(150 * time.Millisecond))
	assert.True(t, ok, "a token is earned after 100ms at 10/s")
}

func newTestLimiter(configs ...EndpointConfig) *Limiter {
	return NewLimiter(&Config{
		Enabled:         true,
		DefaultLimit:    10,
		DefaultWindow:   time.Minute,
		EndpointConfigs: configs,
	})
}

func TestLimiter_DefaultLimit(t *testing.T) {
	l := newTestLimiter()
	defer l.Stop()

	for i := 0; i < 10; i++ {
		ok, _ := l.Allow("127.0.0.1", "/api/view", "GET")
		require.True(t, ok, "request %d", i+1)
	}
	ok, info := l.Allow("127.0.0.1", "/api/view", "GET")
	assert.False(t, ok)
	assert.Equal(t, 10, info.Limit)
	assert.Positive(t, info.RetryAfter)

	ok, _ = l.Allow("127.0.0.2", "/api/view", "GET")
	assert.True(t, ok, "buckets are per client")
}

func TestLimiter_ListsAndDisabled(t *testing.T) {
	l := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Hour,
		Whitelist:     map[string]bool{"10.0.0.1": true},
		Blacklist:     map[string]bool{"10.0.0.2": true},
	})
	defer l.Stop()

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("10.0.0.1", "/x", "GET")
		assert.True(t, ok)
	}
	ok, _ := l.Allow("10.0.0.2", "/x", "GET")
	assert.False(t, ok)

	off := NewLimiter(&Config{Enabled: false})
	defer off.Stop()
	ok, info := off.Allow("10.0.0.2", "/x", "GET")
	assert.True(t, ok)
	assert.Zero(t, info.Limit)
}

func TestLimiter_EndpointBurst(t *testing.T) {
	l := newTestLimiter(EndpointConfig{Path: "/api/auth/signin", Method: "POST", Limit: 10, Window: time.Minute, Burst: 3})
	defer l.Stop()

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("127.0.0.1", "/api/auth/signin", "POST")
		require.True(t, ok)
	}
	ok, _ := l.Allow("127.0.0.1", "/api/auth/signin", "POST")
	assert.False(t, ok)
}

func TestLimiter_Concurrent(t *testing.T) {
	l := NewLimiter(&Config{Enabled: true, DefaultLimit: 100, DefaultWindow: time.Hour})
	defer l.Stop()

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow("127.0.0.1", "/api/view", "GET"); ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(100), allowed.Load())
}

func TestLimiter_SweepDropsIdleBuckets(t *testing.T) {
	l := NewLimiter(&Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute, IdleTTL: time.Hour})
	defer l.Stop()
	now := time.Now()
	l.now = func() time.Time { return now }

	for i := 0; i < 4; i++ {
		l.Allow(fmt.Sprintf("127.0.0.%d", i), "/x", "GET")
	}
	now = now.Add(30 * time.Minute)
	l.Allow("127.0.0.0", "/x", "GET")

	now = now.Add(45 * time.Minute)
	assert.Equal(t, 3, l.sweep())
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs()

	c := MatchEndpoint("/api/auth/signin", "POST", configs)
	require.NotNil(t, c)
	assert.Equal(t, 10, c.Limit)

	c = MatchEndpoint("/api/dashboard/edit/IEA-1", "POST", configs)
	require.NotNil(t, c)
	assert.Equal(t, "/api/dashboard/", c.Path)

	assert.Nil(t, MatchEndpoint("/api/view", "GET", configs))
	assert.Zero(t, MatchEndpoint("/health", "GET", configs).Limit)
	assert.Zero(t, MatchEndpoint("/api/view/stream", "GET", configs).Limit)
}

func TestMiddleware(t *testing.T) {
	l := newTestLimiter(EndpointConfig{Path: "/api/auth/signup", Method: "POST", Limit: 1, Window: time.Hour, Burst: 1})
	defer l.Stop()
	h := l.Middleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", nil)
		req.RemoteAddr = "192.0.2.1:4321"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := do()
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))

	second := do()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "Rate limit exceeded")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", ClientIP(req))
	req.RemoteAddr = "unix"
	assert.Equal(t, "unix", ClientIP(req))
}
