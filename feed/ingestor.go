package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"go.uber.org/zap"

	"bookwatch/config"
	"bookwatch/domain"
	"bookwatch/helpers"
	promclient "bookwatch/infrastructure/prometheus"
	"bookwatch/logger"
)

// queuePollInterval is how long the apply loop sleeps when the event queue
// runs dry.
const queuePollInterval = 5 * time.Millisecond

// Decoder turns a raw transport frame into a typed event. A nil event with a
// nil error means the frame is valid but irrelevant (heartbeats, acks).
type Decoder interface {
	Decode(msg []byte) (domain.Event, error)
}

// Ingestor is the single writer of every order book. A reader goroutine
// decodes raw frames and queues typed events; the apply loop drains the queue
// and routes events to the registry in receipt order, which preserves the
// per-instrument ordering guarantee of the transport.
//
// Mutation errors never stop the loop: one bad message must not take the feed
// down.
type Ingestor struct {
	source   <-chan []byte
	decoder  Decoder
	registry *domain.BookRegistry

	queue deque.Deque[domain.Event]
	mu    sync.Mutex

	log *zap.SugaredLogger
}

func NewIngestor(source <-chan []byte, decoder Decoder, registry *domain.BookRegistry) *Ingestor {
	return &Ingestor{
		source:   source,
		decoder:  decoder,
		registry: registry,
		log:      logger.Named("ingestor"),
	}
}

// Run blocks until ctx is cancelled. The event being applied when
// cancellation arrives is always finished; a book is never left mid-mutation.
func (in *Ingestor) Run(ctx context.Context) error {
	go in.readLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		in.mu.Lock()
		if in.queue.Len() == 0 {
			in.mu.Unlock()
			time.Sleep(queuePollInterval)
			continue
		}
		ev := in.queue.PopFront()
		in.mu.Unlock()

		in.dispatch(ev)
	}
}

func (in *Ingestor) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in.source:
			if !ok {
				return
			}

			ev, err := in.decoder.Decode(msg)
			if err != nil {
				promclient.DecodeErrors.Inc()
				in.log.Warnw("dropping malformed feed message", "err", err)
				continue
			}
			if ev == nil {
				continue
			}

			in.mu.Lock()
			in.queue.PushBack(ev)
			in.mu.Unlock()
		}
	}
}

func (in *Ingestor) dispatch(ev domain.Event) {
	if config.DebugMode {
		in.log.Debugf("event %s", helpers.ToJsonString(ev))
	}

	err := in.registry.Route(ev)
	if err == nil {
		in.observe(ev)
		return
	}

	switch {
	case errors.Is(err, domain.ErrUnknownInstrument):
		promclient.UnknownInstrumentDrops.Inc()
		in.log.Debugf("dropping event for unconfigured instrument %s", ev.InstrumentID())
	case errors.Is(err, domain.ErrConsistencyFault):
		// The book was already replaced with the authoritative snapshot.
		promclient.ConsistencyFaults.Inc()
		in.log.Errorw("feed desynchronized, book replaced from snapshot",
			"instrument", ev.InstrumentID())
	case errors.Is(err, domain.ErrNotInitialized):
		in.log.Errorw("update arrived before the initial snapshot",
			"instrument", ev.InstrumentID())
	default:
		in.log.Errorw("failed to apply feed event",
			"instrument", ev.InstrumentID(), "err", err)
	}
}

func (in *Ingestor) observe(ev domain.Event) {
	switch ev.(type) {
	case *domain.SnapshotEvent:
		promclient.LiveOrderBooks.Set(float64(in.liveBooks()))
	case *domain.DeltaEvent:
		promclient.BookUpdatesApplied.Inc()
	case *domain.TradeEvent:
		promclient.TradesRecorded.Inc()
	}
}

func (in *Ingestor) liveBooks() int {
	live := 0
	for _, symbol := range in.registry.Symbols() {
		if ob, err := in.registry.Get(symbol); err == nil && ob.Initialized() {
			live++
		}
	}
	return live
}
