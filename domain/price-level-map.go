package domain

import "sort"

// DefaultDepthLimit caps sorted views when the caller does not ask for a
// specific depth.
const DefaultDepthLimit = 500

type BookSide int

const (
	Bid BookSide = iota
	Ask
)

// PriceLevelMap holds the resting size per price for one side of a book.
// Ordering is not stored; it is computed on read per side convention
// (descending for bids, ascending for asks). The map holds no entry with a
// size of zero.
//
// The map is not internally synchronized. The owning OrderBook serializes
// access.
type PriceLevelMap struct {
	side   BookSide
	levels map[float64]float64
}

func NewPriceLevelMap(side BookSide) *PriceLevelMap {
	return &PriceLevelMap{
		side:   side,
		levels: make(map[float64]float64),
	}
}

// Upsert inserts or overwrites the level at price. A size of zero removes the
// level; removing an absent price is a no-op.
func (m *PriceLevelMap) Upsert(price, size float64) error {
	if size < 0 {
		return ErrNegativeSize
	}

	if size == 0 {
		delete(m.levels, price)
		return nil
	}

	m.levels[price] = size
	return nil
}

// Replace swaps the whole side for the given levels. Levels with a size of
// zero are dropped. On a negative size nothing is mutated.
func (m *PriceLevelMap) Replace(levels []PriceLevel) error {
	for _, l := range levels {
		if l.Size < 0 {
			return ErrNegativeSize
		}
	}

	next := make(map[float64]float64, len(levels))
	for _, l := range levels {
		if l.Size == 0 {
			continue
		}
		next[l.Price] = l.Size
	}

	m.levels = next
	return nil
}

// BestPrice returns the max price for the bid side and the min price for the
// ask side. The second return value is false when the side is empty.
func (m *PriceLevelMap) BestPrice() (float64, bool) {
	if len(m.levels) == 0 {
		return 0, false
	}

	first := true
	best := 0.0
	for price := range m.levels {
		if first {
			best = price
			first = false
			continue
		}
		if m.side == Bid && price > best {
			best = price
		}
		if m.side == Ask && price < best {
			best = price
		}
	}

	return best, true
}

// SortedView returns a point-in-time copy of the side, sorted per side
// convention and truncated to limit entries. A non-positive limit returns the
// full depth. The returned slice never observes later writes.
func (m *PriceLevelMap) SortedView(limit int) []PriceLevel {
	view := make([]PriceLevel, 0, len(m.levels))
	for price, size := range m.levels {
		view = append(view, PriceLevel{Price: price, Size: size})
	}

	if m.side == Ask {
		sort.Slice(view, func(i, j int) bool {
			return view[i].Price < view[j].Price
		})
	} else {
		sort.Slice(view, func(i, j int) bool {
			return view[i].Price > view[j].Price
		})
	}

	if limit > 0 && len(view) > limit {
		view = view[:limit]
	}

	return view
}

func (m *PriceLevelMap) Size(price float64) (float64, bool) {
	size, ok := m.levels[price]
	return size, ok
}

func (m *PriceLevelMap) Len() int {
	return len(m.levels)
}

// Matches reports whether the side holds exactly the given set of levels,
// comparing both prices and sizes. The input is reduced to a price-keyed set
// first, so a duplicated price repeats rather than widens it (the last
// occurrence wins, as it would when applied). Zero-size entries are ignored
// since they can never be present in the map.
func (m *PriceLevelMap) Matches(levels []PriceLevel) bool {
	want := make(map[float64]float64, len(levels))
	for _, l := range levels {
		if l.Size == 0 {
			continue
		}
		want[l.Price] = l.Size
	}

	if len(want) != len(m.levels) {
		return false
	}
	for price, size := range want {
		got, ok := m.levels[price]
		if !ok || got != size {
			return false
		}
	}
	return true
}
