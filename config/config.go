package config

import (
	"fmt"
	"os"
	"strings"
)

// DebugMode enables verbose per-event logging on the ingestion path.
var DebugMode = os.Getenv("DEBUG_MODE") == "true"

// Instrument is one configured product together with its display metadata.
type Instrument struct {
	Symbol   string
	Label    string
	SizeUnit string
}

type Config struct {
	Instruments     []Instrument
	FeedEndpoint    string
	CandlesEndpoint string
	ListenAddr      string
	MetricsAddr     string
	LogFile         string
}

var defaultProducts = []string{
	"BTC-USD", "ETH-USD", "ADA-USD", "MATIC-USD",
	"BAT-USD", "DOT-USD", "ALGO-USD", "UNI-USD",
}

// FromEnv builds the runtime configuration from environment variables,
// falling back to the defaults of the public Coinbase exchange feed. The
// instrument set is fixed for the process lifetime.
func FromEnv() (*Config, error) {
	products := defaultProducts
	if v := os.Getenv("INSTRUMENTS"); v != "" {
		products = strings.Split(v, ",")
	}

	instruments := make([]Instrument, 0, len(products))
	for _, p := range products {
		p = strings.TrimSpace(p)
		base, _, found := strings.Cut(p, "-")
		if !found || base == "" {
			return nil, fmt.Errorf("invalid instrument %q: want BASE-QUOTE", p)
		}
		instruments = append(instruments, Instrument{
			Symbol:   p,
			Label:    p + " Live Chart",
			SizeUnit: base,
		})
	}

	return &Config{
		Instruments:     instruments,
		FeedEndpoint:    getenv("FEED_WS_ENDPOINT", "wss://ws-feed.exchange.coinbase.com"),
		CandlesEndpoint: getenv("CANDLES_API_ENDPOINT", "https://api.exchange.coinbase.com"),
		ListenAddr:      getenv("LISTEN_ADDR", ":8900"),
		MetricsAddr:     getenv("METRICS_ADDR", ":8080"),
		LogFile:         os.Getenv("LOG_FILE"),
	}, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
