// FILE: reconciler.go
// Package main – Reconciliation against an eventually-consistent remote
// positions list.
//
// Mirrors §4.F: tolerate transient list staleness via a per-dealId miss
// counter, escalate to a direct single-position fetch at threshold, and
// recover realized PnL from activity history on a confirmed broker-initiated
// close.
package main

import (
	"context"
	"errors"
)

// Reconciler periodically compares tracked positions against the broker's
// remote view and removes positions the broker confirms are gone.
type Reconciler struct {
	Epic      string
	Cfg       Config
	Broker    Broker
	State     *RuntimeState
	Notify    *Notifier
	SQL       *SQLSink
}

// NewReconciler wires the reconciliation loop.
func NewReconciler(epic string, cfg Config, broker Broker, state *RuntimeState, notify *Notifier, sql *SQLSink) *Reconciler {
	return &Reconciler{Epic: epic, Cfg: cfg, Broker: broker, State: state, Notify: notify, SQL: sql}
}

// Run performs one reconciliation pass.
func (r *Reconciler) Run(ctx context.Context) {
	remote, err := r.Broker.GetPositions(ctx)
	if err != nil {
		logWarn("reconciler", "get positions failed", "err", err)
		return
	}
	present := make(map[string]struct{}, len(remote))
	for _, rp := range remote {
		present[rp.DealID] = struct{}{}
	}

	for _, p := range r.State.Positions() {
		if _, ok := present[p.DealID]; ok {
			r.State.ResetMiss(p.DealID)
			continue
		}
		r.handleMiss(ctx, p)
	}
	r.State.GCMissCounters()
}

func (r *Reconciler) handleMiss(ctx context.Context, p Position) {
	miss := r.State.IncMiss(p.DealID)
	IncReconcileMiss()
	if miss < r.Cfg.ReconcileMissThreshold {
		return
	}

	_, err := r.Broker.GetPosition(ctx, p.DealID)
	if err == nil {
		// Remote list was momentarily stale; the position is still open.
		r.State.ResetMiss(p.DealID)
		return
	}
	if !errors.Is(err, ErrPositionNotFound) {
		logWarn("reconciler", "direct position fetch failed", "dealId", p.DealID, "err", err)
		return
	}

	pnl, recovered := r.recoverPnL(ctx, p)
	r.State.RemovePosition(p.DealID)
	if recovered {
		r.State.UpdatePnL(pnl, pnl < 0)
		IncReconcileRecovery()
		IncTrade(resultLabel(pnl < 0))
		r.SQL.RecordTrade(p.DealID, "broker_close", p.OpenedAt, p.Mode, p.Direction, p.Size, p.Entry, pnl)
	}
	r.Notify.BrokerClosed(p.DealID, pnl)
}

// recoverPnL scans activity history for a close event matching dealId after
// openedAt.
func (r *Reconciler) recoverPnL(ctx context.Context, p Position) (float64, bool) {
	events, err := r.Broker.GetActivity(ctx, p.OpenedAt)
	if err != nil {
		logWarn("reconciler", "activity fetch failed", "dealId", p.DealID, "err", err)
		return 0, false
	}
	for _, ev := range events {
		if ev.DealID == p.DealID && ev.HasProfit {
			return ev.Profit, true
		}
	}
	return 0, false
}
