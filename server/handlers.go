package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"bookwatch/domain"
)

const defaultGranularity = 60

type levelJSON struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

type instrumentJSON struct {
	Symbol   string `json:"symbol"`
	Label    string `json:"label"`
	SizeUnit string `json:"sizeUnit"`
	Live     bool   `json:"live"`
}

type bookJSON struct {
	Instrument string      `json:"instrument"`
	Bids       []levelJSON `json:"bids"`
	Asks       []levelJSON `json:"asks"`
	MidMarket  float64     `json:"midMarket"`
}

type tradeJSON struct {
	Symbol string  `json:"symbol"`
	Side   string  `json:"side"`
	Amount float64 `json:"amount"`
	Price  float64 `json:"price"`
}

type statsJSON struct {
	NumBuys    int64   `json:"numBuys"`
	NumSells   int64   `json:"numSells"`
	ValueBuys  float64 `json:"valueBuys"`
	ValueSells float64 `json:"valueSells"`
}

type barJSON struct {
	Time   int64   `json:"time"`
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

func (s *Server) handleInstruments(c *fiber.Ctx) error {
	infos := s.query.Instruments()

	out := make([]instrumentJSON, len(infos))
	for i, info := range infos {
		out[i] = instrumentJSON{
			Symbol:   info.Symbol,
			Label:    info.Label,
			SizeUnit: info.SizeUnit,
			Live:     info.Live,
		}
	}
	return c.JSON(out)
}

func (s *Server) handleBookSnapshot(c *fiber.Ctx) error {
	instrument := c.Params("instrument")
	limit := c.QueryInt("limit", domain.DefaultDepthLimit)

	snapshot, err := s.query.SnapshotView(instrument, limit)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(bookJSON{
		Instrument: instrument,
		Bids:       toLevelJSON(snapshot.Bids),
		Asks:       toLevelJSON(snapshot.Asks),
		MidMarket:  snapshot.MidMarket,
	})
}

func (s *Server) handleRecentTrades(c *fiber.Ctx) error {
	trades, err := s.query.RecentTrades(c.Params("instrument"))
	if err != nil {
		return errorResponse(c, err)
	}

	out := make([]tradeJSON, len(trades))
	for i, trade := range trades {
		out[i] = tradeJSON{
			Symbol: trade.Symbol,
			Side:   string(trade.Side),
			Amount: trade.Amount,
			Price:  trade.Price,
		}
	}
	return c.JSON(out)
}

func (s *Server) handleSessionStats(c *fiber.Ctx) error {
	stats, err := s.query.SessionStats(c.Params("instrument"))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(statsJSON{
		NumBuys:    stats.NumBuys,
		NumSells:   stats.NumSells,
		ValueBuys:  stats.ValueBuys,
		ValueSells: stats.ValueSells,
	})
}

func (s *Server) handleCandles(c *fiber.Ctx) error {
	granularity := c.QueryInt("granularity", defaultGranularity)

	bars, err := s.query.Candles(c.UserContext(), c.Params("instrument"), granularity)
	if err != nil {
		return errorResponse(c, err)
	}

	out := make([]barJSON, len(bars))
	for i, bar := range bars {
		out[i] = barJSON{
			Time:   bar.Time,
			Low:    bar.Low,
			High:   bar.High,
			Open:   bar.Open,
			Close:  bar.Close,
			Volume: bar.Volume,
		}
	}
	return c.JSON(out)
}

func toLevelJSON(levels []domain.PriceLevel) []levelJSON {
	out := make([]levelJSON, len(levels))
	for i, l := range levels {
		out[i] = levelJSON{Price: l.Price, Size: l.Size}
	}
	return out
}

func errorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusBadRequest
	if errors.Is(err, domain.ErrUnknownInstrument) {
		status = fiber.StatusNotFound
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
