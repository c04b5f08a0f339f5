package metrics

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/congo-pay/emoney-ledger/internal/ledger"
)

// TotalsSource exposes the running ledger aggregates.
type TotalsSource interface {
	Totals() ledger.Totals
}

// Metrics owns the service registry.
type Metrics struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
	logger   *slog.Logger
}

// New builds a registry with the ledger event counter and the Go runtime collectors.
func New(logger *slog.Logger) *Metrics {
	reg := prometheus.NewRegistry()
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_events_total",
		Help: "Number of committed ledger events by name.",
	}, []string{"name"})
	reg.MustRegister(events, collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &Metrics{registry: reg, events: events, logger: logger}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Track registers gauges that read the ledger totals at scrape time.
func (m *Metrics) Track(src TotalsSource) error {
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "ledger_total_supply",
			Help: "Sum of all positive balances.",
		}, func() float64 { return float64(src.Totals().Supply) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "ledger_total_supply_on_hold",
			Help: "Sum of amounts locked by ordered holds.",
		}, func() float64 { return float64(src.Totals().SupplyOnHold) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "ledger_total_drawn_amount",
			Help: "Sum of overdraft drawn by all wallets.",
		}, func() float64 { return float64(src.Totals().Drawn) }),
	}
	for _, g := range gauges {
		if err := m.registry.Register(g); err != nil {
			return err
		}
	}
	return nil
}

// Publish implements ledger.EventSink by counting events.
func (m *Metrics) Publish(_ context.Context, ev ledger.Event) error {
	m.events.WithLabelValues(ev.Name).Inc()
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() fiber.Handler {
	opts := promhttp.HandlerOpts{}
	if m.logger != nil {
		opts.ErrorLog = slog.NewLogLogger(m.logger.Handler(), slog.LevelError)
	}
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, opts))
}
