// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QuotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyprop_quotes_total",
		Help: "Liquidity Guard quotes by outcome",
	}, []string{"outcome"})

	QuoteSlippage = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyprop_quote_slippage_fraction",
		Help:    "Estimated slippage fraction of quoted orders",
		Buckets: []float64{0, 0.001, 0.0025, 0.005, 0.01, 0.02, 0.05, 0.1, 0.25},
	})

	DepthFetchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "polyprop_depth_fetch_seconds",
		Help: "Latency of depth snapshot lookups",
	}, []string{"source"})

	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyprop_settlements_total",
		Help: "Trade settlements by result",
	}, []string{"result"})

	StageTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyprop_stage_transitions_total",
		Help: "Account status transitions",
	}, []string{"to"})

	PayoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyprop_payout_requests_total",
		Help: "Payout requests by result",
	}, []string{"result"})

	LockWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyprop_account_lock_wait_seconds",
		Help:    "Time spent waiting for a per-account lock",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	ArchivedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyprop_archived_records_total",
		Help: "Ledger records exported to object storage",
	}, []string{"kind"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "polyprop_http_request_duration_seconds",
		Help: "HTTP request latency",
	}, []string{"method", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyprop_ws_connections",
		Help: "Active WebSocket connections",
	})
)
