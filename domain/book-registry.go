package domain

// BookRegistry owns one OrderBook per configured instrument. The set is fixed
// at construction; instruments are never added or removed at runtime, so
// lookups need no locking.
type BookRegistry struct {
	books map[string]*OrderBook
	order []string
}

func NewBookRegistry(books []*OrderBook) *BookRegistry {
	r := &BookRegistry{
		books: make(map[string]*OrderBook, len(books)),
		order: make([]string, 0, len(books)),
	}

	for _, ob := range books {
		symbol := ob.Symbol.String()
		if _, ok := r.books[symbol]; ok {
			continue
		}
		r.books[symbol] = ob
		r.order = append(r.order, symbol)
	}

	return r
}

func (r *BookRegistry) Get(symbol string) (*OrderBook, error) {
	ob, ok := r.books[symbol]
	if !ok {
		return nil, ErrUnknownInstrument
	}
	return ob, nil
}

// Symbols returns the configured instruments in registration order.
func (r *BookRegistry) Symbols() []string {
	symbols := make([]string, len(r.order))
	copy(symbols, r.order)
	return symbols
}

func (r *BookRegistry) Len() int {
	return len(r.books)
}

// Route forwards a decoded feed event to the instrument's book. Feeds may
// carry symbols outside the configured set, so ErrUnknownInstrument is
// expected and the caller decides whether to count or log it.
func (r *BookRegistry) Route(ev Event) error {
	ob, err := r.Get(ev.InstrumentID())
	if err != nil {
		return err
	}

	switch e := ev.(type) {
	case *SnapshotEvent:
		return ob.ApplySnapshot(e.Bids, e.Asks)
	case *DeltaEvent:
		return ob.ApplyDelta(e.Changes)
	case *TradeEvent:
		ob.ApplyTrade(e.Side, e.Amount, e.Price)
		return nil
	}

	return nil
}
