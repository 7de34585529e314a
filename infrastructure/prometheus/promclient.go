package promclient

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var BookUpdatesApplied = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "book_updates_applied_total",
		Help: "depth updates applied to local order books",
	},
)

var TradesRecorded = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "book_trades_recorded_total",
		Help: "trades recorded on local order books",
	},
)

var DecodeErrors = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "feed_decode_errors_total",
		Help: "inbound feed messages dropped as malformed",
	},
)

var UnknownInstrumentDrops = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "feed_unknown_instrument_drops_total",
		Help: "feed events dropped for unconfigured instruments",
	},
)

var ConsistencyFaults = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "book_consistency_faults_total",
		Help: "re-sent snapshots that mismatched the live book",
	},
)

var LiveOrderBooks = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "live_order_books",
		Help: "order books that received their initial snapshot",
	},
)

func StartPromClientServer(addr string) {
	reg := prometheus.NewRegistry()
	promHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	reg.MustRegister(BookUpdatesApplied)
	reg.MustRegister(TradesRecorded)
	reg.MustRegister(DecodeErrors)
	reg.MustRegister(UnknownInstrumentDrops)
	reg.MustRegister(ConsistencyFaults)
	reg.MustRegister(LiveOrderBooks)
	reg.MustRegister(collectors.NewGoCollector())

	http.Handle("/metrics", promHandler)
	log.Printf("prometheus server listening at %s", addr)

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
