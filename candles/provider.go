package candles

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"bookwatch/logger"
)

const (
	// barWindow is how many trailing bars a fetch requests; the exchange
	// serves at most 300 per call.
	barWindow     = 300
	fetchAttempts = 3
)

// Bar is one OHLCV candle. The wire format is a bare six-number array:
// [time, low, high, open, close, volume].
type Bar struct {
	Time   int64
	Low    float64
	High   float64
	Open   float64
	Close  float64
	Volume float64
}

func (b *Bar) UnmarshalJSON(data []byte) error {
	var raw [6]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	b.Time = int64(raw[0])
	b.Low = raw[1]
	b.High = raw[2]
	b.Open = raw[3]
	b.Close = raw[4]
	b.Volume = raw[5]
	return nil
}

type cacheKey struct {
	instrument  string
	granularity int
}

func (k cacheKey) String() string {
	return k.instrument + "/" + strconv.Itoa(k.granularity)
}

type cacheEntry struct {
	bars      []Bar
	fetchedAt time.Time
}

// Provider serves historical candles for a trailing window, cached per
// (instrument, granularity). A cached result stays valid for one granularity
// interval, so a display layer polling sub-second costs one upstream request
// per interval.
//
// The map mutex only guards cache lookups; fetches run outside it, coalesced
// per key through a singleflight group. A slow or failing instrument
// therefore never stalls cached reads of another, and concurrent pollers of
// one expired key line up behind a single upstream request.
type Provider struct {
	baseURL string
	client  *http.Client

	mu    sync.Mutex
	cache map[cacheKey]*cacheEntry
	group singleflight.Group

	now func() time.Time
	log *zap.SugaredLogger
}

func NewProvider(baseURL string) *Provider {
	return &Provider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   make(map[cacheKey]*cacheEntry),
		now:     time.Now,
		log:     logger.Named("candles"),
	}
}

// Get returns the trailing bars for the instrument at the given granularity
// (in seconds), newest first.
func (p *Provider) Get(ctx context.Context, instrument string, granularity int) ([]Bar, error) {
	if granularity <= 0 {
		return nil, fmt.Errorf("granularity must be positive, got %d", granularity)
	}

	key := cacheKey{instrument: instrument, granularity: granularity}
	ttl := time.Duration(granularity) * time.Second

	if bars, ok := p.cached(key, ttl); ok {
		return bars, nil
	}

	v, err, _ := p.group.Do(key.String(), func() (interface{}, error) {
		// A waiter queued behind the flight that just refreshed the entry
		// must not trigger a second fetch.
		if bars, ok := p.cached(key, ttl); ok {
			return bars, nil
		}

		bars, err := p.fetch(ctx, instrument, granularity)
		if err != nil {
			return p.serveStale(key, err)
		}

		p.mu.Lock()
		p.cache[key] = &cacheEntry{bars: bars, fetchedAt: p.now()}
		p.mu.Unlock()
		return bars, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Bar), nil
}

func (p *Provider) cached(key cacheKey, ttl time.Duration) ([]Bar, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.cache[key]
	if !ok || p.now().Sub(entry.fetchedAt) >= ttl {
		return nil, false
	}
	return entry.bars, true
}

// serveStale falls back to the expired entry when the upstream degrades: the
// feed side of the dashboard stays useful without candles. Re-stamping the
// entry acts as a failure cooldown, so sub-second pollers keep hitting the
// cache for a full interval instead of each paying a retried fetch.
func (p *Provider) serveStale(key cacheKey, cause error) (interface{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.cache[key]
	if !ok {
		return nil, cause
	}

	entry.fetchedAt = p.now()
	p.log.Warnw("candle fetch failed, serving stale bars",
		"instrument", key.instrument, "granularity", key.granularity, "err", cause)
	return entry.bars, nil
}

func (p *Provider) fetch(ctx context.Context, instrument string, granularity int) ([]Bar, error) {
	end := p.now().UTC()
	start := end.Add(-time.Duration(barWindow*granularity) * time.Second)

	query := url.Values{}
	query.Set("granularity", strconv.Itoa(granularity))
	query.Set("start", start.Format(time.RFC3339))
	query.Set("end", end.Format(time.RFC3339))

	endpoint := fmt.Sprintf("%s/products/%s/candles?%s", p.baseURL, instrument, query.Encode())

	b := &backoff.Backoff{
		Min:    250 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(b.Duration()):
			}
		}

		bars, err := p.doRequest(ctx, endpoint)
		if err == nil {
			return bars, nil
		}
		lastErr = err
	}

	return nil, lastErr
}

func (p *Provider) doRequest(ctx context.Context, endpoint string) ([]Bar, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("candle endpoint returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var bars []Bar
	if err := json.Unmarshal(body, &bars); err != nil {
		return nil, fmt.Errorf("failed to parse candle response: %w", err)
	}

	return bars, nil
}
