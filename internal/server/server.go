package server

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/emoney-ledger/internal/config"
	"github.com/congo-pay/emoney-ledger/internal/ledger"
	"github.com/congo-pay/emoney-ledger/internal/routes"
)

// Server wraps the Fiber application and the ledger engine it serves.
type Server struct {
	app    *fiber.App
	cfg    config.Config
	engine *ledger.Engine
	logger *slog.Logger
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
// db and cache may be nil in development.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(routes.AppConfig(cfg.AppName, logger))

	engine, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, engine: engine, logger: logger}, nil
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	t := s.engine.Totals()
	s.logger.Info("ledger ready",
		slog.Uint64("total_supply", t.Supply),
		slog.Uint64("total_supply_on_hold", t.SupplyOnHold),
		slog.Uint64("total_drawn_amount", t.Drawn),
	)
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
