package coinbase

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamClient_SubscribeAndRelay(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan subscribeRequest, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req subscribeRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		subscribed <- req

		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat","product_id":"BTC-USD"}`))

		// Hold the connection open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewStreamClient(endpoint, []string{"BTC-USD", "ETH-USD"})
	require.NoError(t, client.Connect())
	t.Cleanup(func() { client.Close() })

	select {
	case req := <-subscribed:
		assert.Equal(t, "subscribe", req.Type)
		assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, req.ProductIDs)
		assert.Equal(t, []string{"level2", "matches"}, req.Channels)
	case <-time.After(3 * time.Second):
		t.Fatal("subscribe request never arrived")
	}

	select {
	case msg := <-client.Messages():
		assert.JSONEq(t, `{"type":"heartbeat","product_id":"BTC-USD"}`, string(msg))
	case <-time.After(3 * time.Second):
		t.Fatal("feed frame never arrived")
	}
}

func TestStreamClient_CloseUnblocksReadWithFullBuffer(t *testing.T) {
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req subscribeRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		// Flood the client with more frames than its buffer holds.
		for i := 0; i < 32; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewStreamClient(endpoint, []string{"BTC-USD"})
	client.out = make(chan []byte, 1)
	require.NoError(t, client.Connect())

	// Wait until the read loop is wedged on a send nobody is draining.
	require.Eventually(t, func() bool {
		return len(client.out) == 1
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, client.Close())

	// The read goroutine must exit, observed as the stream channel closing.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-client.Messages():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("read loop never exited after Close")
		}
	}
}
