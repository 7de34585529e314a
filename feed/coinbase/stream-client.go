package coinbase

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/recws-org/recws"
	"go.uber.org/zap"

	"bookwatch/logger"
)

const (
	defaultHandshakeTimeout = 5 * time.Second
	keepAliveTimeout        = time.Minute
	// outboundBuffer keeps a bursty feed from blocking the websocket read
	// loop while the ingestor drains its queue.
	outboundBuffer = 4096
)

type subscribeRequest struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

// StreamClient keeps a persistent websocket connection to the exchange feed.
// The connection auto-reconnects, and the subscribe request naming the
// configured product set is re-sent after every reconnect. The feed answers a
// subscription with fresh full-depth snapshots, so a reconnect is always
// followed by a resynchronization of the live books.
type StreamClient struct {
	endpoint string
	products []string

	conn   *recws.RecConn
	out    chan []byte
	done   chan struct{}
	closed atomic.Bool

	log *zap.SugaredLogger
}

func NewStreamClient(endpoint string, products []string) *StreamClient {
	return &StreamClient{
		endpoint: endpoint,
		products: products,
		out:      make(chan []byte, outboundBuffer),
		done:     make(chan struct{}),
		log:      logger.Named("coinbase-stream"),
	}
}

func (c *StreamClient) Connect() error {
	conn := &recws.RecConn{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: defaultHandshakeTimeout,
		KeepAliveTimeout: keepAliveTimeout,
		NonVerbose:       true,
	}
	// The subscribe handler fires on the initial dial too, so the conn must
	// be in place before Dial.
	c.conn = conn
	conn.SubscribeHandler = c.subscribe

	conn.Dial(c.endpoint, nil)

	go c.read()
	return nil
}

// Messages returns the stream of raw feed frames, in receipt order.
func (c *StreamClient) Messages() <-chan []byte {
	return c.out
}

func (c *StreamClient) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.done)
		c.conn.Close()
	}
	return nil
}

// subscribe runs on the initial dial and on every reconnect.
func (c *StreamClient) subscribe() error {
	c.log.Infow("subscribing to feed", "products", len(c.products))

	return c.conn.WriteJSON(subscribeRequest{
		Type:       "subscribe",
		ProductIDs: c.products,
		Channels:   []string{"level2", "matches"},
	})
}

func (c *StreamClient) read() {
	defer close(c.out)

	for {
		if c.closed.Load() {
			return
		}

		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			if errors.Is(err, recws.ErrNotConnected) {
				// Still dialing or mid-reconnect.
				time.Sleep(100 * time.Millisecond)
				continue
			}
			c.log.Warnw("feed read failed, awaiting reconnect", "err", err)
			time.Sleep(time.Second)
			continue
		}

		// The send must stay interruptible: with the buffer full and no
		// consumer left, Close would otherwise strand this goroutine.
		select {
		case c.out <- msg:
		case <-c.done:
			return
		}
	}
}
