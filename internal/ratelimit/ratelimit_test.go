package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestStore_GetSameKeyReturnsSameLimiter(t *testing.T) {
	s := NewStore(10, 1)
	require.Same(t, s.Get("k"), s.Get("k"))
}

func TestStore_DecideRefusesAfterBurst(t *testing.T) {
	s := NewStore(0.02, 1)

	ok, _ := s.Decide("k")
	require.True(t, ok)
	ok, wait := s.Decide("k")
	require.False(t, ok)
	require.Greater(t, wait, time.Duration(0))

	// a refused decision must not consume the next token
	ok, _ = s.Decide("other")
	require.True(t, ok)
}

func TestStore_CleanupRemovesIdleEntries(t *testing.T) {
	s := NewStore(10, 1, WithIdleTTL(2*time.Millisecond), WithCleanupEvery(0))

	before := s.Get("k")
	time.Sleep(4 * time.Millisecond)
	s.Cleanup()

	require.Equal(t, 0, s.Len())
	require.NotSame(t, before, s.Get("k"))
}

func TestStore_JanitorStopsWithContext(t *testing.T) {
	s := NewStore(10, 1, WithIdleTTL(time.Millisecond), WithCleanupEvery(2*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	s.StartJanitor(ctx)
	s.Get("k")
	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 2*time.Millisecond)
	cancel()
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	require.Equal(t, "10.0.0.1", ClientIP(r, false))
	require.Equal(t, "203.0.113.9", ClientIP(r, true))
}

type memStats struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (m *memStats) Record(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return m.err
}

func TestMiddleware_RejectsAndRecords(t *testing.T) {
	stats := &memStats{err: errors.New("stats down")}
	var rejected int
	mw := Middleware(Options{
		Store: NewStore(0.01, 2),
		Stats: stats,
		Reject: func(w http.ResponseWriter, _ *http.Request, _ time.Duration) {
			rejected++
			w.WriteHeader(http.StatusTooManyRequests)
		},
	})
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		r.RemoteAddr = "192.0.2.1:1234"
		h.ServeHTTP(rr, r)
		codes = append(codes, rr.Code)
		if rr.Code == http.StatusTooManyRequests {
			require.NotEmpty(t, rr.Header().Get("Retry-After"))
		}
	}

	require.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
	require.Equal(t, 1, rejected)
	require.Len(t, stats.events, 3)
	require.False(t, stats.events[2].Allowed)
	require.Equal(t, "192.0.2.1", stats.events[0].Key)
}

// blockingStats waits for its context like a stalled Redis round-trip.
type blockingStats struct{ deadline bool }

func (b *blockingStats) Record(ctx context.Context, _ Event) error {
	_, b.deadline = ctx.Deadline()
	<-ctx.Done()
	return ctx.Err()
}

func TestMiddleware_StatsTimeoutBoundsLatency(t *testing.T) {
	stats := &blockingStats{}
	mw := Middleware(Options{
		Store:        NewStore(100, 10),
		Stats:        stats,
		StatsTimeout: 20 * time.Millisecond,
	})
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	start := time.Now()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil))

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.True(t, stats.deadline)
	require.Less(t, time.Since(start), time.Second)
}

func TestRedisStats_NilIsNoop(t *testing.T) {
	var s *RedisStats
	require.NoError(t, s.Record(context.Background(), Event{Allowed: true}))
}

func TestRedisStats_UnreachableReturnsError(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	s := NewRedisStats(rdb, WithStatsPrefix("test:"), WithStatsTTL(time.Minute))
	require.Equal(t, "test", s.prefix)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.Error(t, s.Record(ctx, Event{Key: "k", Method: "POST", Path: "/login"}))
}
