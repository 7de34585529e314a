package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *BookRegistry {
	t.Helper()

	books := make([]*OrderBook, 0, 2)
	for _, base := range []string{"BTC", "ETH"} {
		symbol, err := NewMarketSymbol(base, "USD")
		require.NoError(t, err)
		books = append(books, NewOrderBook(symbol, base+"-USD Live Chart", base))
	}

	return NewBookRegistry(books)
}

func TestBookRegistry_Get(t *testing.T) {
	registry := newTestRegistry(t)

	ob, err := registry.Get("BTC-USD")
	assert.NoError(t, err)
	assert.Equal(t, "BTC-USD", ob.Symbol.String())

	_, err = registry.Get("DOGE-USD")
	assert.ErrorIs(t, err, ErrUnknownInstrument)
}

func TestBookRegistry_Symbols(t *testing.T) {
	registry := newTestRegistry(t)
	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, registry.Symbols())
	assert.Equal(t, 2, registry.Len())
}

func TestBookRegistry_RouteDispatches(t *testing.T) {
	registry := newTestRegistry(t)

	err := registry.Route(&SnapshotEvent{
		Instrument: "BTC-USD",
		Bids:       []PriceLevel{{Price: 100, Size: 2}},
		Asks:       []PriceLevel{{Price: 101, Size: 3}},
	})
	require.NoError(t, err)

	err = registry.Route(&DeltaEvent{
		Instrument: "BTC-USD",
		Changes:    []Change{{Side: SideBuy, Price: 99.5, Size: 1}},
	})
	require.NoError(t, err)

	err = registry.Route(&TradeEvent{Instrument: "BTC-USD", Side: SideSell, Amount: 1, Price: 100.5})
	require.NoError(t, err)

	ob, err := registry.Get("BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, []PriceLevel{{Price: 100, Size: 2}, {Price: 99.5, Size: 1}}, ob.SnapshotView(0).Bids)
	assert.Equal(t, int64(1), ob.Stats().NumSells)

	// Other books stay untouched.
	eth, err := registry.Get("ETH-USD")
	require.NoError(t, err)
	assert.False(t, eth.Initialized())
}

func TestBookRegistry_RouteUnknownInstrument(t *testing.T) {
	registry := newTestRegistry(t)

	err := registry.Route(&TradeEvent{Instrument: "DOGE-USD", Side: SideBuy, Amount: 1, Price: 1})
	assert.ErrorIs(t, err, ErrUnknownInstrument)
}

func TestBookRegistry_RouteUpdateBeforeSnapshot(t *testing.T) {
	registry := newTestRegistry(t)

	err := registry.Route(&DeltaEvent{
		Instrument: "ETH-USD",
		Changes:    []Change{{Side: SideBuy, Price: 10, Size: 1}},
	})
	assert.ErrorIs(t, err, ErrNotInitialized)
}
