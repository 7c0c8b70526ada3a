// FILE: metrics.go
// Package main – Prometheus metrics for observability.
//
// Exposes:
//   • goldbot_signals_total{mode,action}     – one per signal record emitted by the gate chain
//   • goldbot_orders_total{mode,direction}    – orders successfully placed
//   • goldbot_trades_total{result}            – closed trades by result (win|loss)
//   • goldbot_realized_pnl_usd                – running daily realized PnL (gauge)
//   • goldbot_open_positions                  – current tracked-position count (gauge)
//   • goldbot_reconcile_misses_total          – reconcile miss-counter increments
//   • goldbot_reconcile_recoveries_total      – broker-closed recoveries via activity history
//   • goldbot_ml_score{model}                 – last champion/challenger score (gauge)
//
// Registered in init() and served by the HTTP handler in main.go at /metrics.
package main

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goldbot_signals_total",
			Help: "Signal records emitted by the gate chain, one per evaluation.",
		},
		[]string{"mode", "action"},
	)

	mtxOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goldbot_orders_total",
			Help: "Orders successfully placed.",
		},
		[]string{"mode", "direction"},
	)

	mtxTrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goldbot_trades_total",
			Help: "Closed trades by result (win|loss).",
		},
		[]string{"result"},
	)

	mtxRealizedPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "goldbot_realized_pnl_usd",
			Help: "Running daily realized PnL in USD.",
		},
	)

	mtxOpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "goldbot_open_positions",
			Help: "Current tracked-position count.",
		},
	)

	mtxReconcileMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "goldbot_reconcile_misses_total",
			Help: "Reconcile miss-counter increments (position absent from remote list).",
		},
	)

	mtxReconcileRecoveries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "goldbot_reconcile_recoveries_total",
			Help: "Broker-initiated closes recovered via activity history.",
		},
	)

	mtxMLScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "goldbot_ml_score",
			Help: "Last computed score per model slot (champion|challenger).",
		},
		[]string{"model"},
	)
)

func init() {
	prometheus.MustRegister(mtxSignals, mtxOrders, mtxTrades)
	prometheus.MustRegister(mtxRealizedPnL, mtxOpenPositions)
	prometheus.MustRegister(mtxReconcileMisses, mtxReconcileRecoveries)
	prometheus.MustRegister(mtxMLScore)
}

func IncSignal(mode, action string)  { mtxSignals.WithLabelValues(mode, action).Inc() }
func IncOrder(mode, direction string) { mtxOrders.WithLabelValues(mode, direction).Inc() }
func IncTrade(result string)          { mtxTrades.WithLabelValues(result).Inc() }
func SetRealizedPnL(v float64)         { mtxRealizedPnL.Set(v) }
func SetOpenPositions(n int)           { mtxOpenPositions.Set(float64(n)) }
func IncReconcileMiss()                { mtxReconcileMisses.Inc() }
func IncReconcileRecovery()             { mtxReconcileRecoveries.Inc() }
func SetMLScore(model string, score float64) { mtxMLScore.WithLabelValues(model).Set(score) }
