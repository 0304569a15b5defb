// Package metrics exposes Prometheus instrumentation for the agent loop.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the agent records into.
type Metrics struct {
	registry *prometheus.Registry

	TicksTotal        prometheus.Counter
	TickErrors        prometheus.Counter
	TickDuration      prometheus.Histogram
	DexTrades         *prometheus.CounterVec
	DexPaperBalance   prometheus.Gauge
	DexOpenPositions  prometheus.Gauge
	DexDrawdownPct    prometheus.Gauge
	CrisisLevel       prometheus.Gauge
	SignalCacheSize   prometheus.Gauge
	OrdersSubmitted   *prometheus.CounterVec
	LLMTokens         *prometheus.CounterVec
	LLMCostUSD        prometheus.Counter
	NotificationsSent prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		TicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradewind_ticks_total",
			Help: "Completed agent ticks.",
		}),
		TickErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradewind_tick_errors_total",
			Help: "Ticks that logged a top-level error.",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradewind_tick_duration_seconds",
			Help:    "Wall time per tick.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		DexTrades: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tradewind_dex_trades_total",
			Help: "Closed DEX paper trades by exit reason.",
		}, []string{"exit_reason"}),
		DexPaperBalance: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tradewind_dex_paper_balance_sol",
			Help: "Current DEX paper balance in SOL.",
		}),
		DexOpenPositions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tradewind_dex_open_positions",
			Help: "Open DEX paper positions.",
		}),
		DexDrawdownPct: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tradewind_dex_drawdown_pct",
			Help: "Current DEX portfolio drawdown from peak, percent.",
		}),
		CrisisLevel: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tradewind_crisis_level",
			Help: "Crisis level 0-3.",
		}),
		SignalCacheSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tradewind_signal_cache_size",
			Help: "Signals currently cached.",
		}),
		OrdersSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tradewind_orders_submitted_total",
			Help: "Broker orders submitted by side.",
		}, []string{"side"}),
		LLMTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tradewind_llm_tokens_total",
			Help: "LLM tokens consumed by direction.",
		}, []string{"direction"}),
		LLMCostUSD: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradewind_llm_cost_usd_total",
			Help: "Cumulative LLM spend in USD.",
		}),
		NotificationsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradewind_notifications_sent_total",
			Help: "Notifications dispatched.",
		}),
	}
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
