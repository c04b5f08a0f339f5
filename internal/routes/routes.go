package routes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/emoney-ledger/internal/access"
	"github.com/congo-pay/emoney-ledger/internal/apierr"
	"github.com/congo-pay/emoney-ledger/internal/clearing"
	"github.com/congo-pay/emoney-ledger/internal/compliance"
	"github.com/congo-pay/emoney-ledger/internal/config"
	"github.com/congo-pay/emoney-ledger/internal/funding"
	"github.com/congo-pay/emoney-ledger/internal/holds"
	"github.com/congo-pay/emoney-ledger/internal/ledger"
	"github.com/congo-pay/emoney-ledger/internal/metrics"
	"github.com/congo-pay/emoney-ledger/internal/middleware"
	"github.com/congo-pay/emoney-ledger/internal/notification"
	"github.com/congo-pay/emoney-ledger/internal/payout"
	"github.com/congo-pay/emoney-ledger/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// AppConfig returns the fiber configuration the ledger API must be served
// with. Request strings become ledger keys that outlive the request, so the
// app is immutable.
func AppConfig(name string, logger *slog.Logger) fiber.Config {
	return fiber.Config{
		AppName:      name,
		Immutable:    true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: apierr.Handler(logger),
	}
}

// Setup configures middlewares, builds the ledger engine and registers all
// application routes. It returns the engine it wired.
func Setup(app *fiber.App, d Deps) (*ledger.Engine, error) {
	if !app.Config().Immutable {
		return nil, errors.New("routes: fiber app must be configured with Immutable")
	}
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	ctx := context.Background()

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Ledger engine and its collaborators
	var store ledger.Store
	if d.DB != nil {
		pg := ledger.NewPostgresStore(d.DB)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		store = pg
	} else {
		store = ledger.NewMemoryStore()
	}

	checker, err := buildCompliance(ctx, d)
	if err != nil {
		return nil, err
	}

	var principals access.Repository
	if d.DB != nil {
		pg := access.NewPostgresRepository(d.DB)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		principals = pg
	} else {
		principals = access.NewMemoryRepository()
	}
	accessSvc := access.NewService(principals, d.Logger)
	regs, err := access.ParseRegistrations(d.Cfg.Principals)
	if err != nil {
		return nil, err
	}
	if err := accessSvc.Seed(ctx, regs); err != nil {
		return nil, err
	}

	registry := metrics.New(d.Logger)
	sinks := notification.Fanout{notification.NewLoggerNotifier(d.Logger), registry}
	if d.Cache != nil {
		sinks = append(sinks, notification.NewRedisPublisher(d.Cache, d.Cfg.EventsChannel))
	}

	engine, err := ledger.NewEngine(ctx, store,
		ledger.WithAuthorizer(accessSvc),
		ledger.WithCompliance(checker),
		ledger.WithEventSink(sinks),
		ledger.WithLogger(d.Logger),
		ledger.WithDirectHoldFundsCheck(d.Cfg.DirectHoldFundsCheck),
	)
	if err != nil {
		return nil, err
	}
	if err := registry.Track(engine); err != nil {
		return nil, err
	}

	// Operational endpoints
	RegisterHealthRoutes(app, d)
	app.Get("/metrics", registry.Handler())

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDOf(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	limiter := middleware.NewFailureLimiter(d.Cache, d.Cfg.AuthMaxFailures)
	protected := api.Group("", middleware.PrincipalAuth(accessSvc, limiter, d.Logger))
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterAccountRoutes(protected, wallet.NewHandler(wallet.NewService(engine)))
	RegisterHoldRoutes(protected, holds.NewHandler(engine))
	RegisterFundingRoutes(protected, funding.NewHandler(engine))
	RegisterPayoutRoutes(protected, payout.NewHandler(engine))
	RegisterClearingRoutes(protected, clearing.NewHandler(engine))

	return engine, nil
}

func buildCompliance(ctx context.Context, d Deps) (ledger.Compliance, error) {
	if d.Cfg.ComplianceMode != config.ComplianceWhitelist {
		return compliance.AllowAll{}, nil
	}
	addrs := make([]ledger.Address, 0, len(d.Cfg.ComplianceWhitelist))
	for _, a := range d.Cfg.ComplianceWhitelist {
		addrs = append(addrs, ledger.Address(a))
	}
	if d.Cache == nil {
		return compliance.NewWhitelist(addrs...), nil
	}
	wl := compliance.NewRedisWhitelist(d.Cache, "", d.Logger)
	if len(addrs) > 0 {
		if err := wl.Add(ctx, addrs...); err != nil {
			return nil, fmt.Errorf("seed compliance whitelist: %w", err)
		}
	}
	return wl, nil
}
