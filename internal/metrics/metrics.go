// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the trading core. Scraped via the ops server's
// /metrics endpoint.

// TradesTotal counts scheduler and monitor trade attempts by direction and
// result ("success", "failed").
var TradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "volumebot",
		Subsystem: "trading",
		Name:      "trades_total",
		Help:      "Total number of trade attempts",
	},
	[]string{"direction", "result"},
)

// ExecutedVolumeSol accumulates realized traded volume in SOL.
var ExecutedVolumeSol = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "volumebot",
		Subsystem: "trading",
		Name:      "executed_volume_sol_total",
		Help:      "Total executed trade volume in SOL",
	},
)

// SessionsActive tracks the number of non-terminal volume sessions.
var SessionsActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "volumebot",
		Subsystem: "trading",
		Name:      "sessions_active",
		Help:      "Number of active volume sessions",
	},
)

// MonitorsActive tracks the number of running smart profit monitors.
var MonitorsActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "volumebot",
		Subsystem: "smartprofit",
		Name:      "monitors_active",
		Help:      "Number of active smart profit monitors",
	},
)

// RuleTriggersTotal counts risk rule firings by rule name.
var RuleTriggersTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "volumebot",
		Subsystem: "smartprofit",
		Name:      "rule_triggers_total",
		Help:      "Total number of risk rule triggers",
	},
	[]string{"rule"},
)

// PriceFetchFailuresTotal counts skipped monitor cycles due to missing or
// stale prices.
var PriceFetchFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "volumebot",
		Subsystem: "smartprofit",
		Name:      "price_fetch_failures_total",
		Help:      "Total number of failed price fetches",
	},
)

// TradeExecutionSeconds observes venue execution latency.
var TradeExecutionSeconds = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "volumebot",
		Subsystem: "trading",
		Name:      "trade_execution_seconds",
		Help:      "Time to execute a trade at the venue in seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	},
	[]string{"direction"},
)
