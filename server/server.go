package server

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"bookwatch/usecase"
)

// Server is the display-facing HTTP surface. The dashboard polls it on a
// sub-second cadence; every handler reads a point-in-time copy, so pollers
// never hold up the ingestion path.
type Server struct {
	app   *fiber.App
	query *usecase.BookQueryService
	addr  string
}

func New(addr string, query *usecase.BookQueryService) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "bookwatch",
			ServerHeader:          "bookwatch",
			DisableStartupMessage: true,
		}),
		query: query,
		addr:  addr,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.app.Group("/api")

	api.Get("/instruments", s.handleInstruments)
	api.Get("/books/:instrument", s.handleBookSnapshot)
	api.Get("/books/:instrument/trades", s.handleRecentTrades)
	api.Get("/books/:instrument/stats", s.handleSessionStats)
	api.Get("/candles/:instrument", s.handleCandles)
}

func (s *Server) Listen() error {
	return s.app.Listen(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
