package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-coach/internal/config"
)

func TestBucket_TakeAndRefill(t *testing.T) {
	start := time.Now()
	b := newBucket(3, 20, start) // 20 tokens per second

	for i := 0; i < 3; i++ {
		ok, _, _ := b.take(start)
		assert.True(t, ok, "request %d", i+1)
	}
	ok, remaining, full := b.take(start)
	assert.False(t, ok)
	assert.Zero(t, remaining)
	assert.WithinDuration(t, start.Add(150*time.Millisecond), full, time.Millisecond)
	assert.InDelta(t, float64(50*time.Millisecond), float64(b.nextToken(start)), float64(time.Millisecond))

	ok, _, _ = b.take(start.Add(60 * time.Millisecond))
	assert.True(t, ok, "a token refilled")
}

func TestBucket_NeverExceedsCapacity(t *testing.T) {
	start := time.Now()
	b := newBucket(10, 1, start)
	for i := 0; i < 5; i++ {
		b.take(start)
	}

	ok, remaining, full := b.take(start.Add(time.Hour))
	assert.True(t, ok)
	assert.Equal(t, 9, remaining)
	assert.True(t, full.After(start.Add(time.Hour)))
}

func TestLimiter_DefaultLimit(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 3, DefaultWindow: time.Minute})
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/api/patterns", "GET")
		require.True(t, allowed)
		assert.Equal(t, 3, info.Limit)
	}
	allowed, info := limiter.Allow("127.0.0.1", "/api/patterns", "GET")
	assert.False(t, allowed)
	assert.Zero(t, info.Remaining)
	assert.Positive(t, info.RetryAfter)

	allowed, _ = limiter.Allow("10.0.0.2", "/api/patterns", "GET")
	assert.True(t, allowed, "clients have separate buckets")
}

func TestLimiter_WhitelistAndBlacklist(t *testing.T) {
	limiter := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{"127.0.0.1": true},
		Blacklist:     map[string]bool{"192.168.1.1": true},
	})
	defer limiter.Stop()

	for i := 0; i < 20; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/api/patterns", "GET")
		require.True(t, allowed)
		assert.Zero(t, info.Limit)
	}
	allowed, _ := limiter.Allow("192.168.1.1", "/api/patterns", "GET")
	assert.False(t, allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: false})
	defer limiter.Stop()

	for i := 0; i < 50; i++ {
		allowed, _ := limiter.Allow("127.0.0.1", "/api/documents/a/turns", "POST")
		require.True(t, allowed)
	}
}

func TestLimiter_TurnBucketSharedAcrossDocuments(t *testing.T) {
	limiter := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		EndpointConfigs: []EndpointConfig{
			{Path: "/api/documents/*/turns", Method: "POST", Limit: 2, Window: time.Hour, Burst: 2},
		},
	})
	defer limiter.Stop()

	allowed, info := limiter.Allow("127.0.0.1", "/api/documents/a/turns", "POST")
	require.True(t, allowed)
	assert.Equal(t, 2, info.Limit)
	allowed, _ = limiter.Allow("127.0.0.1", "/api/documents/b/turns", "POST")
	require.True(t, allowed)
	allowed, _ = limiter.Allow("127.0.0.1", "/api/documents/c/turns", "POST")
	assert.False(t, allowed)

	allowed, info = limiter.Allow("127.0.0.1", "/api/documents/c/turns", "GET")
	assert.True(t, allowed, "listing turns uses the default limit")
	assert.Equal(t, 1000, info.Limit)
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 100, DefaultWindow: time.Minute})
	defer limiter.Stop()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.Allow("127.0.0.1", "/api/patterns", "GET"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, allowed)
}

func TestLimiter_CleanupRemovesIdleBuckets(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})
	defer limiter.Stop()
	limiter.idleTTL = 10 * time.Millisecond

	for i := 0; i < 5; i++ {
		limiter.Allow(fmt.Sprintf("127.0.0.%d", i+1), "/api/patterns", "GET")
	}
	require.Equal(t, 5, limiter.size())

	time.Sleep(20 * time.Millisecond)
	limiter.Allow("127.0.0.1", "/api/patterns", "GET")
	limiter.cleanupBuckets()
	assert.Equal(t, 1, limiter.size())
}

func TestLimiter_StopTwice(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute, CleanupInterval: time.Second})
	limiter.Stop()
	assert.NotPanics(t, limiter.Stop)
}

func TestNewLimiter_NilConfig(t *testing.T) {
	limiter := NewLimiter(nil)
	defer limiter.Stop()

	allowed, info := limiter.Allow("127.0.0.1", "/api/patterns", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 1000, info.Limit)
}

func TestMatchEndpoint(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/api/documents/*/turns", Method: "POST", Limit: 1},
		{Path: "/api/documents/*/turns/ws", Method: "GET", Limit: 2},
		{Path: "/api/prompts", Method: "POST", Limit: 3},
		{Path: "/api/admin/", Method: "POST", Limit: 4},
	}

	tests := []struct {
		path, method string
		want         int // expected Limit, -1 for no match
	}{
		{"/api/documents/abc/turns", "POST", 1},
		{"/api/documents/abc/turns/", "POST", 1},
		{"/api/documents/abc/turns/ws", "GET", 2},
		{"/api/documents//turns", "POST", -1},
		{"/api/documents/abc/turns", "GET", -1},
		{"/api/prompts", "POST", 3},
		{"/api/admin/reset", "POST", 4},
		{"/api/patterns", "GET", -1},
		{"/health", "GET", 0},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.want < 0 {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Limit)
		})
	}
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.RateLimitConfig{
		Enabled:       true,
		DefaultLimit:  600,
		DefaultWindow: time.Minute,
		TurnLimit:     30,
		TurnWindow:    time.Minute,
		TurnBurst:     5,
		Whitelist:     []string{"10.0.0.1, 10.0.0.2"},
		Blacklist:     []string{"1.2.3.4"},
	})

	assert.True(t, cfg.Enabled)
	assert.True(t, cfg.Whitelist["10.0.0.1"])
	assert.True(t, cfg.Whitelist["10.0.0.2"])
	assert.True(t, cfg.Blacklist["1.2.3.4"])

	turns := MatchEndpoint("/api/documents/x/turns", "POST", cfg.EndpointConfigs)
	require.NotNil(t, turns)
	assert.Equal(t, 30, turns.Limit)
	assert.Equal(t, 5, turns.Burst)

	training := MatchEndpoint("/api/training/levels/2/run", "POST", cfg.EndpointConfigs)
	require.NotNil(t, training)
	assert.Equal(t, time.Hour, training.Window)

	assert.False(t, FromSettings(config.RateLimitConfig{}).Enabled)
}
