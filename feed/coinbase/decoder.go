package coinbase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"bookwatch/domain"
)

// ErrDecode marks an inbound frame the decoder could not turn into an event.
// Such frames are dropped by the ingestor; they never stop the loop.
var ErrDecode = errors.New("malformed feed message")

type wireMessage struct {
	Type      string     `json:"type"`
	ProductID string     `json:"product_id"`
	Bids      [][]string `json:"bids"`
	Asks      [][]string `json:"asks"`
	Changes   [][]string `json:"changes"`
	Side      string     `json:"side"`
	Size      string     `json:"size"`
	Price     string     `json:"price"`
	Message   string     `json:"message"`
}

// Decoder maps the exchange wire format onto typed feed events:
// "snapshot" frames carry the full depth of both sides, "l2update" frames an
// ordered list of [side, price, size] changes (size "0" removes the level),
// "match" frames an executed trade.
type Decoder struct{}

func NewDecoder() *Decoder {
	return &Decoder{}
}

func (d *Decoder) Decode(msg []byte) (domain.Event, error) {
	var m wireMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecode, err)
	}

	switch m.Type {
	case "snapshot":
		return d.decodeSnapshot(&m)
	case "l2update":
		return d.decodeDelta(&m)
	case "match", "last_match":
		return d.decodeTrade(&m)
	case "subscriptions", "heartbeat":
		// Protocol chatter, nothing to route.
		return nil, nil
	case "error":
		return nil, fmt.Errorf("%w: feed error: %s", ErrDecode, m.Message)
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", ErrDecode, m.Type)
	}
}

func (d *Decoder) decodeSnapshot(m *wireMessage) (domain.Event, error) {
	if m.ProductID == "" {
		return nil, fmt.Errorf("%w: snapshot without product_id", ErrDecode)
	}

	bids, err := parseLevels(m.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := parseLevels(m.Asks)
	if err != nil {
		return nil, err
	}

	return &domain.SnapshotEvent{
		Instrument: m.ProductID,
		Bids:       bids,
		Asks:       asks,
	}, nil
}

func (d *Decoder) decodeDelta(m *wireMessage) (domain.Event, error) {
	if m.ProductID == "" {
		return nil, fmt.Errorf("%w: l2update without product_id", ErrDecode)
	}

	changes := make([]domain.Change, 0, len(m.Changes))
	for _, c := range m.Changes {
		if len(c) != 3 {
			return nil, fmt.Errorf("%w: change with %d fields", ErrDecode, len(c))
		}

		side, err := parseSide(c[0])
		if err != nil {
			return nil, err
		}
		price, err := parsePrice(c[1])
		if err != nil {
			return nil, err
		}
		size, err := parsePrice(c[2])
		if err != nil {
			return nil, err
		}

		changes = append(changes, domain.Change{Side: side, Price: price, Size: size})
	}

	return &domain.DeltaEvent{
		Instrument: m.ProductID,
		Changes:    changes,
	}, nil
}

func (d *Decoder) decodeTrade(m *wireMessage) (domain.Event, error) {
	if m.ProductID == "" {
		return nil, fmt.Errorf("%w: match without product_id", ErrDecode)
	}

	side, err := parseSide(m.Side)
	if err != nil {
		return nil, err
	}
	amount, err := parsePrice(m.Size)
	if err != nil {
		return nil, err
	}
	price, err := parsePrice(m.Price)
	if err != nil {
		return nil, err
	}

	return &domain.TradeEvent{
		Instrument: m.ProductID,
		Side:       side,
		Amount:     amount,
		Price:      price,
	}, nil
}

func parseLevels(raw [][]string) ([]domain.PriceLevel, error) {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, l := range raw {
		if len(l) != 2 {
			return nil, fmt.Errorf("%w: level with %d fields", ErrDecode, len(l))
		}

		price, err := parsePrice(l[0])
		if err != nil {
			return nil, err
		}
		size, err := parsePrice(l[1])
		if err != nil {
			return nil, err
		}

		levels = append(levels, domain.PriceLevel{Price: price, Size: size})
	}
	return levels, nil
}

func parsePrice(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad number %q", ErrDecode, s)
	}
	return v, nil
}

func parseSide(s string) (domain.Side, error) {
	switch s {
	case "buy":
		return domain.SideBuy, nil
	case "sell":
		return domain.SideSell, nil
	default:
		return "", fmt.Errorf("%w: unknown side %q", ErrDecode, s)
	}
}
