package usecase

import (
	"context"

	"bookwatch/candles"
	"bookwatch/domain"
)

// InstrumentInfo is the display-facing identity of one configured book.
type InstrumentInfo struct {
	Symbol   string
	Label    string
	SizeUnit string
	Live     bool
}

// BookQueryService is the pull-side facade over the registry and the candle
// provider. All methods are safe under the display layer's sub-second polling
// concurrency; reads never block the ingestion path beyond taking a snapshot
// copy.
type BookQueryService struct {
	registry *domain.BookRegistry
	candles  *candles.Provider
}

func NewBookQueryService(registry *domain.BookRegistry, provider *candles.Provider) *BookQueryService {
	return &BookQueryService{
		registry: registry,
		candles:  provider,
	}
}

func (s *BookQueryService) Instruments() []InstrumentInfo {
	symbols := s.registry.Symbols()
	infos := make([]InstrumentInfo, 0, len(symbols))

	for _, symbol := range symbols {
		ob, err := s.registry.Get(symbol)
		if err != nil {
			continue
		}
		infos = append(infos, InstrumentInfo{
			Symbol:   ob.Symbol.String(),
			Label:    ob.Label,
			SizeUnit: ob.SizeUnit,
			Live:     ob.Initialized(),
		})
	}

	return infos
}

// SnapshotView returns a depth-limited sorted view of both sides plus the
// mid-market price. A non-positive limit falls back to DefaultDepthLimit.
func (s *BookQueryService) SnapshotView(symbol string, limit int) (*domain.BookSnapshot, error) {
	ob, err := s.registry.Get(symbol)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = domain.DefaultDepthLimit
	}
	return ob.SnapshotView(limit), nil
}

func (s *BookQueryService) RecentTrades(symbol string) ([]domain.Trade, error) {
	ob, err := s.registry.Get(symbol)
	if err != nil {
		return nil, err
	}
	return ob.RecentTrades(), nil
}

func (s *BookQueryService) SessionStats(symbol string) (domain.SessionStats, error) {
	ob, err := s.registry.Get(symbol)
	if err != nil {
		return domain.SessionStats{}, err
	}
	return ob.Stats(), nil
}

// Candles proxies the cached candle provider; the symbol is validated
// against the configured set first so unknown instruments fail the same way
// as book queries.
func (s *BookQueryService) Candles(ctx context.Context, symbol string, granularity int) ([]candles.Bar, error) {
	if _, err := s.registry.Get(symbol); err != nil {
		return nil, err
	}
	return s.candles.Get(ctx, symbol, granularity)
}
