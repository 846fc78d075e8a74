// Package metrics exposes Prometheus counters and gauges for the
// trading pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/koshedutech/binance-futures-bot/internal/events"
	"github.com/koshedutech/binance-futures-bot/internal/execution"
)

// Metrics holds the pipeline instruments.
type Metrics struct {
	TicksReceived   prometheus.Counter
	BarsClosed      prometheus.Counter
	SignalsEmitted  prometheus.Counter
	OrdersExecuted  prometheus.Counter
	OrdersFailed    prometheus.Counter
	StreamConnected prometheus.Gauge
	CurrentPrice    prometheus.Gauge

	registry *prometheus.Registry
}

// New creates the metric set on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		TicksReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradingbot_ticks_received_total",
			Help: "Ticker updates received from the feed.",
		}),
		BarsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradingbot_bars_closed_total",
			Help: "OHLCV bars closed into history.",
		}),
		SignalsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradingbot_signals_emitted_total",
			Help: "Trade signals emitted by the engine.",
		}),
		OrdersExecuted: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradingbot_orders_executed_total",
			Help: "Orders successfully filled at the venue.",
		}),
		OrdersFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradingbot_orders_failed_total",
			Help: "Order attempts rejected or failed.",
		}),
		StreamConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tradingbot_stream_connected",
			Help: "1 while the market-data stream is open.",
		}),
		CurrentPrice: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tradingbot_current_price",
			Help: "Last traded price from the feed.",
		}),
		registry: registry,
	}
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe wires the metric set to the event bus.
func (m *Metrics) Observe(bus *events.Bus) {
	bus.Subscribe(events.TypeSignal, func(events.Event) {
		m.SignalsEmitted.Inc()
	})
	bus.Subscribe(events.TypeOrder, func(event events.Event) {
		if result, ok := event.Data.(execution.OrderResult); ok && result.Success {
			m.OrdersExecuted.Inc()
		}
	})
	bus.Subscribe(events.TypeError, func(events.Event) {
		m.OrdersFailed.Inc()
	})
}
