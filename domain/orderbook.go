package domain

import (
	"sync"

	"github.com/gammazero/deque"
)

// TradeTapeCapacity bounds the recent-trade tape kept for display.
const TradeTapeCapacity = 10

type Trade struct {
	Symbol string
	Side   Side
	Amount float64
	Price  float64
}

// SessionStats are running totals for the life of the process. They only
// grow.
type SessionStats struct {
	NumBuys    int64
	NumSells   int64
	ValueBuys  float64
	ValueSells float64
}

// BookSnapshot is a consistent, depth-limited read of one book.
type BookSnapshot struct {
	Bids      []PriceLevel
	Asks      []PriceLevel
	MidMarket float64
}

// OrderBook is the live level-2 book of a single instrument. It starts
// uninitialized and turns live on the first snapshot; it stays live for the
// process lifetime. A single ingestion goroutine mutates it while any number
// of readers take snapshot copies concurrently.
type OrderBook struct {
	Symbol   *MarketSymbol
	Label    string
	SizeUnit string

	mu          sync.RWMutex
	bids        *PriceLevelMap
	asks        *PriceLevelMap
	midMarket   float64
	initialized bool
	tape        deque.Deque[Trade]
	stats       SessionStats
}

func NewOrderBook(symbol *MarketSymbol, label, sizeUnit string) *OrderBook {
	return &OrderBook{
		Symbol:   symbol,
		Label:    label,
		SizeUnit: sizeUnit,
		bids:     NewPriceLevelMap(Bid),
		asks:     NewPriceLevelMap(Ask),
	}
}

// ApplySnapshot replaces both sides wholesale and marks the book live.
//
// On a book that is already live the incoming snapshot is first compared
// against the current state: a matching snapshot is a no-op (the feed simply
// re-confirmed the book), a mismatch means the feed and the local book have
// desynchronized. The incoming snapshot wins either way, since the feed is
// the authority, but a mismatch is reported as ErrConsistencyFault so the
// caller can log and count it.
func (ob *OrderBook) ApplySnapshot(bids, asks []PriceLevel) error {
	for _, levels := range [][]PriceLevel{bids, asks} {
		for _, l := range levels {
			if l.Size < 0 {
				return ErrNegativeSize
			}
		}
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	wasLive := ob.initialized
	if wasLive && ob.bids.Matches(bids) && ob.asks.Matches(asks) {
		return nil
	}

	// Levels were validated above, Replace cannot fail here.
	ob.bids.Replace(bids)
	ob.asks.Replace(asks)
	ob.initialized = true
	ob.recomputeMidMarket()

	if wasLive {
		return ErrConsistencyFault
	}
	return nil
}

// ApplyUpdate mutates a single price level. The book must be live: an update
// accepted before the baseline snapshot would corrupt the book irrecoverably,
// so it is refused with ErrNotInitialized instead of being silently dropped.
func (ob *OrderBook) ApplyUpdate(side Side, price, size float64) error {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	return ob.applyChange(side, price, size)
}

// ApplyDelta applies an ordered batch of changes under a single lock
// acquisition. The first invalid change aborts the rest of the batch.
func (ob *OrderBook) ApplyDelta(changes []Change) error {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	for _, c := range changes {
		if err := ob.applyChange(c.Side, c.Price, c.Size); err != nil {
			return err
		}
	}
	return nil
}

func (ob *OrderBook) applyChange(side Side, price, size float64) error {
	if !ob.initialized {
		return ErrNotInitialized
	}

	levels := ob.asks
	if side == SideBuy {
		levels = ob.bids
	}
	if err := levels.Upsert(price, size); err != nil {
		return err
	}

	ob.recomputeMidMarket()
	return nil
}

// ApplyTrade updates the session counters and appends to the bounded trade
// tape, evicting the oldest entry at capacity.
func (ob *OrderBook) ApplyTrade(side Side, amount, price float64) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	if side == SideBuy {
		ob.stats.NumBuys++
		ob.stats.ValueBuys += price * amount
	} else {
		ob.stats.NumSells++
		ob.stats.ValueSells += price * amount
	}

	if ob.tape.Len() >= TradeTapeCapacity {
		ob.tape.PopFront()
	}
	ob.tape.PushBack(Trade{
		Symbol: ob.Symbol.String(),
		Side:   side,
		Amount: amount,
		Price:  price,
	})
}

// SnapshotView returns a depth-limited sorted copy of both sides together
// with the current mid-market price. The copy is safe to hold after the lock
// is released; later writes are not observed.
func (ob *OrderBook) SnapshotView(limit int) *BookSnapshot {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	return &BookSnapshot{
		Bids:      ob.bids.SortedView(limit),
		Asks:      ob.asks.SortedView(limit),
		MidMarket: ob.midMarket,
	}
}

// RecentTrades returns up to TradeTapeCapacity trades in arrival order,
// oldest first.
func (ob *OrderBook) RecentTrades() []Trade {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	trades := make([]Trade, ob.tape.Len())
	for i := 0; i < ob.tape.Len(); i++ {
		trades[i] = ob.tape.At(i)
	}
	return trades
}

func (ob *OrderBook) Stats() SessionStats {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.stats
}

// MidMarket is (best ask + best bid) / 2 after the latest mutation. While
// either side is empty the previous value is retained; before the first
// two-sided state it is 0.
func (ob *OrderBook) MidMarket() float64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.midMarket
}

func (ob *OrderBook) Initialized() bool {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.initialized
}

// recomputeMidMarket runs under ob.mu.
func (ob *OrderBook) recomputeMidMarket() {
	bestBid, okBid := ob.bids.BestPrice()
	bestAsk, okAsk := ob.asks.BestPrice()
	if !okBid || !okAsk {
		return
	}
	ob.midMarket = (bestAsk + bestBid) / 2
}
