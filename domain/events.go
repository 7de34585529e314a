package domain

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// PriceLevel is one resting level of a book side. Size is strictly positive
// while the level exists; a size of zero on the wire means removal.
type PriceLevel struct {
	Price float64
	Size  float64
}

// Change is a single price-level mutation carried by a delta event.
type Change struct {
	Side  Side
	Price float64
	Size  float64
}

// Event is any decoded feed message that can be routed to an order book.
type Event interface {
	InstrumentID() string
}

// SnapshotEvent replaces both sides of a book wholesale.
type SnapshotEvent struct {
	Instrument string
	Bids       []PriceLevel
	Asks       []PriceLevel
}

// DeltaEvent carries an ordered batch of level changes for one instrument.
type DeltaEvent struct {
	Instrument string
	Changes    []Change
}

// TradeEvent reports an executed trade on the instrument.
type TradeEvent struct {
	Instrument string
	Side       Side
	Amount     float64
	Price      float64
}

func (e *SnapshotEvent) InstrumentID() string { return e.Instrument }
func (e *DeltaEvent) InstrumentID() string    { return e.Instrument }
func (e *TradeEvent) InstrumentID() string    { return e.Instrument }
