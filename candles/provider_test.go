package candles

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const barsPayload = `[
	[1630430280, 47036.86, 47114.52, 47101.89, 47049.76, 12.2],
	[1630430220, 47042.01, 47120.00, 47055.31, 47101.89, 8.5]
]`

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*Provider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewProvider(srv.URL), srv
}

func TestProvider_FetchAndParse(t *testing.T) {
	var gotPath, gotGranularity atomic.Value
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		gotGranularity.Store(r.URL.Query().Get("granularity"))
		w.Write([]byte(barsPayload))
	})

	bars, err := provider.Get(context.Background(), "BTC-USD", 60)
	require.NoError(t, err)

	assert.Equal(t, "/products/BTC-USD/candles", gotPath.Load())
	assert.Equal(t, "60", gotGranularity.Load())
	require.Len(t, bars, 2)
	assert.Equal(t, Bar{
		Time: 1630430280, Low: 47036.86, High: 47114.52,
		Open: 47101.89, Close: 47049.76, Volume: 12.2,
	}, bars[0])
}

func TestProvider_CachesPerGranularity(t *testing.T) {
	var calls atomic.Int64
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(barsPayload))
	})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := provider.Get(ctx, "BTC-USD", 60)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), calls.Load(), "repeated polls inside the TTL hit the cache")

	_, err := provider.Get(ctx, "BTC-USD", 300)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load(), "a different granularity is a different cache entry")
}

func TestProvider_RefetchesAfterTTL(t *testing.T) {
	var calls atomic.Int64
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(barsPayload))
	})

	now := time.Now()
	provider.now = func() time.Time { return now }

	ctx := context.Background()
	_, err := provider.Get(ctx, "BTC-USD", 60)
	require.NoError(t, err)

	provider.now = func() time.Time { return now.Add(61 * time.Second) }
	_, err = provider.Get(ctx, "BTC-USD", 60)
	require.NoError(t, err)

	assert.Equal(t, int64(2), calls.Load())
}

func TestProvider_ServesStaleOnUpstreamFailure(t *testing.T) {
	var calls atomic.Int64
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Write([]byte(barsPayload))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})

	now := time.Now()
	provider.now = func() time.Time { return now }

	ctx := context.Background()
	bars, err := provider.Get(ctx, "BTC-USD", 60)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	provider.now = func() time.Time { return now.Add(2 * time.Minute) }
	bars, err = provider.Get(ctx, "BTC-USD", 60)
	require.NoError(t, err, "stale bars are better than an error")
	assert.Len(t, bars, 2)
}

func TestProvider_CachedKeysUnaffectedBySlowFetch(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "SLOW-USD") {
			time.Sleep(200 * time.Millisecond)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(barsPayload))
	})

	ctx := context.Background()
	_, err := provider.Get(ctx, "FAST-USD", 60)
	require.NoError(t, err)

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		provider.Get(ctx, "SLOW-USD", 60)
	}()

	// Let the failing fetch get in flight before timing the cached read.
	time.Sleep(50 * time.Millisecond)

	started := time.Now()
	bars, err := provider.Get(ctx, "FAST-USD", 60)
	elapsed := time.Since(started)

	require.NoError(t, err)
	assert.Len(t, bars, 2)
	assert.Less(t, elapsed, 100*time.Millisecond,
		"a cached read must not wait on another instrument's fetch")

	<-slowDone
}

func TestProvider_FailureCooldown(t *testing.T) {
	var calls atomic.Int64
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Write([]byte(barsPayload))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})

	now := time.Now()
	provider.now = func() time.Time { return now }

	ctx := context.Background()
	_, err := provider.Get(ctx, "BTC-USD", 60)
	require.NoError(t, err)
	require.Equal(t, int64(1), calls.Load())

	// Expire the entry; the upstream is now failing, so this pays one
	// retried fetch and falls back to the stale bars.
	provider.now = func() time.Time { return now.Add(61 * time.Second) }
	bars, err := provider.Get(ctx, "BTC-USD", 60)
	require.NoError(t, err)
	assert.Len(t, bars, 2)
	after := calls.Load()
	assert.Greater(t, after, int64(1))

	// The failed refresh re-stamped the entry: polls inside the next
	// interval are served from cache without touching the upstream.
	for i := 0; i < 5; i++ {
		_, err = provider.Get(ctx, "BTC-USD", 60)
		require.NoError(t, err)
	}
	assert.Equal(t, after, calls.Load(), "cooldown must absorb sub-interval polls")
}

func TestProvider_InvalidGranularity(t *testing.T) {
	provider := NewProvider("http://unused.invalid")
	_, err := provider.Get(context.Background(), "BTC-USD", 0)
	assert.Error(t, err)
}
