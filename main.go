package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"bookwatch/candles"
	"bookwatch/config"
	"bookwatch/domain"
	"bookwatch/feed"
	"bookwatch/feed/coinbase"
	promclient "bookwatch/infrastructure/prometheus"
	"bookwatch/logger"
	"bookwatch/server"
	"bookwatch/usecase"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// A missing .env is fine; the environment may be set by the runtime.
	_ = godotenv.Load()

	log := logger.Named("main")

	conf, err := config.FromEnv()
	if err != nil {
		log.Fatalw("invalid configuration", "err", err)
	}

	books := make([]*domain.OrderBook, 0, len(conf.Instruments))
	products := make([]string, 0, len(conf.Instruments))
	for _, inst := range conf.Instruments {
		symbol, err := domain.NewMarketSymbolFromString(inst.Symbol)
		if err != nil {
			log.Fatalw("invalid instrument", "symbol", inst.Symbol, "err", err)
		}
		books = append(books, domain.NewOrderBook(symbol, inst.Label, inst.SizeUnit))
		products = append(products, symbol.String())
	}
	registry := domain.NewBookRegistry(books)

	client := coinbase.NewStreamClient(conf.FeedEndpoint, products)
	if err := client.Connect(); err != nil {
		log.Fatalw("failed to connect to feed", "endpoint", conf.FeedEndpoint, "err", err)
	}

	ingestor := feed.NewIngestor(client.Messages(), coinbase.NewDecoder(), registry)
	query := usecase.NewBookQueryService(registry, candles.NewProvider(conf.CandlesEndpoint))
	srv := server.New(conf.ListenAddr, query)

	go promclient.StartPromClientServer(conf.MetricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ingestor.Run(ctx)
	})
	g.Go(func() error {
		return srv.Listen()
	})
	g.Go(func() error {
		<-ctx.Done()
		client.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Infow("bookwatch started",
		"instruments", len(conf.Instruments),
		"listen", conf.ListenAddr,
		"metrics", conf.MetricsAddr,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalw("terminated", "err", err)
	}
	log.Infow("bookwatch stopped")
}
