// FILE: positionmanager.go
// Package main – Tick-driven SL/TP1-partial/TP2 position management.
//
// Adapts the teacher's closeLot settlement-then-notify shape (trader.go) to
// the new Position/RuntimeState types and the two-phase close/re-entry flow
// required by §4.E.
package main

import (
	"context"
	"math"
	"time"
)

// PositionManager evaluates every tracked position against the latest quote
// once per tick.
type PositionManager struct {
	Epic   string
	Cfg    Config
	Broker Broker
	State  *RuntimeState
	Notify *Notifier
	SQL    *SQLSink
}

// NewPositionManager wires the tick-driven exit/partial logic.
func NewPositionManager(epic string, cfg Config, broker Broker, state *RuntimeState, notify *Notifier, sql *SQLSink) *PositionManager {
	return &PositionManager{Epic: epic, Cfg: cfg, Broker: broker, State: state, Notify: notify, SQL: sql}
}

// exitPrice returns the price a position would currently close at: bid for a
// BUY exit, ask for a SELL exit.
func exitPrice(q Quote, dir OrderSide) float64 {
	if dir == SideBuy {
		return q.Bid
	}
	return q.Ask
}

// Tick evaluates every tracked position once.
func (pm *PositionManager) Tick(ctx context.Context) {
	q, err := pm.Broker.GetPrice(ctx, pm.Epic)
	if err != nil {
		logWarn("positionmanager", "price fetch failed", "err", err)
		return
	}
	for _, p := range pm.State.Positions() {
		pm.evaluate(ctx, p, q)
	}
}

func (pm *PositionManager) evaluate(ctx context.Context, p Position, q Quote) {
	exit := exitPrice(q, p.Direction)

	slHit := (p.Direction == SideBuy && exit <= p.SL) || (p.Direction == SideSell && exit >= p.SL)
	if slHit {
		pm.closeAndSettle(ctx, p, p.Size, "sl")
		return
	}

	tp2Hit := (p.Direction == SideBuy && exit >= p.TP2) || (p.Direction == SideSell && exit <= p.TP2)
	if tp2Hit {
		pm.closeAndSettle(ctx, p, p.Size, "tp2")
		return
	}

	if p.TP1Done {
		return
	}
	tp1Hit := (p.Direction == SideBuy && exit >= p.TP1) || (p.Direction == SideSell && exit <= p.TP1)
	if !tp1Hit {
		return
	}
	pm.handleTP1(ctx, p, q)
}

func (pm *PositionManager) handleTP1(ctx context.Context, p Position, q Quote) {
	closeSize := math.Floor(p.Size * pm.Cfg.PartialCloseTP1)
	if closeSize < 1 {
		pm.State.MutatePosition(p.DealID, func(pos *Position) { pos.TP1Done = true })
		if pm.Cfg.MoveSLToBreakevenOnTP1 {
			be := pm.Broker.RoundForEpic(pm.Epic, p.Entry)
			if err := pm.Broker.UpdatePosition(ctx, p.DealID, &be, nil); err != nil {
				logWarn("positionmanager", "breakeven sl update failed", "dealId", p.DealID, "err", err)
			} else {
				pm.State.MutatePosition(p.DealID, func(pos *Position) { pos.SL = p.Entry })
			}
		}
		pm.Notify.TP1Hit(p.DealID, 0, false)
		return
	}

	// Capital.com-shaped brokers have no true partial close: closing must be
	// in full, then the remainder re-enters as a fresh position at market.
	dealRef, err := pm.Broker.ClosePosition(ctx, p.DealID, p.Size)
	if err != nil {
		logWarn("positionmanager", "tp1 close failed", "dealId", p.DealID, "err", err)
		return
	}
	conf, err := pm.Broker.ConfirmDeal(ctx, dealRef)
	if err != nil {
		logWarn("positionmanager", "tp1 close confirm failed", "dealId", p.DealID, "err", err)
		return
	}
	pnl := pm.resolvePnL(ctx, conf, p, p.Entry, exitPrice(q, p.Direction), p.Size)
	isLoss := pnl < 0
	pm.State.UpdatePnL(pnl, isLoss)
	pm.SQL.RecordTrade(p.DealID, "tp1", time.Now(), p.Mode, p.Direction, p.Size, exitPrice(q, p.Direction), pnl)
	IncTrade(resultLabel(isLoss))
	pm.Notify.TP1Hit(p.DealID, pnl, true)

	remaining := p.Size - closeSize
	sl := p.SL
	if pm.Cfg.MoveSLToBreakevenOnTP1 {
		sl = p.Entry
	}
	reentryRef, err := pm.Broker.CreatePosition(ctx, OrderRequest{
		Epic: pm.Epic, Direction: p.Direction, Size: remaining,
		StopLevel: pm.Broker.RoundForEpic(pm.Epic, sl), ProfitLevel: pm.Broker.RoundForEpic(pm.Epic, p.TP2),
	})
	if err != nil {
		logWarn("positionmanager", "tp1 reentry failed", "dealId", p.DealID, "err", ErrReentryFailed, "cause", err)
		pm.State.RemovePosition(p.DealID)
		return
	}
	reConf, err := pm.Broker.ConfirmDeal(ctx, reentryRef)
	if err != nil || reConf.DealStatus != DealAccepted {
		logWarn("positionmanager", "tp1 reentry not accepted", "dealId", p.DealID)
		pm.State.RemovePosition(p.DealID)
		return
	}

	next := Position{
		Mode: p.Mode, Direction: p.Direction, Size: remaining,
		Entry: exitPrice(q, p.Direction), SL: sl, TP1: p.TP1, TP2: p.TP2,
		TP1Done: true, DealID: reConf.DealID, DealReference: reentryRef, OpenedAt: p.OpenedAt,
	}
	pm.State.ReplacePosition(p.DealID, next)
}

func (pm *PositionManager) closeAndSettle(ctx context.Context, p Position, size float64, leg string) {
	dealRef, err := pm.Broker.ClosePosition(ctx, p.DealID, size)
	if err != nil {
		logWarn("positionmanager", "close failed", "dealId", p.DealID, "leg", leg, "err", err)
		return
	}
	conf, err := pm.Broker.ConfirmDeal(ctx, dealRef)
	if err != nil {
		logWarn("positionmanager", "close confirm failed", "dealId", p.DealID, "leg", leg, "err", err)
		return
	}
	q, qerr := pm.Broker.GetPrice(ctx, pm.Epic)
	exit := p.Entry
	if qerr == nil {
		exit = exitPrice(q, p.Direction)
	}
	pnl := pm.resolvePnL(ctx, conf, p, p.Entry, exit, size)
	isLoss := pnl < 0
	pm.State.UpdatePnL(pnl, isLoss)
	pm.State.RemovePosition(p.DealID)
	pm.SQL.RecordTrade(p.DealID, leg, time.Now(), p.Mode, p.Direction, size, exit, pnl)
	IncTrade(resultLabel(isLoss))

	switch leg {
	case "sl":
		pm.Notify.SLHit(p.DealID, pnl)
	case "tp2":
		pm.Notify.TP2Hit(p.DealID, pnl)
	}
}

// resolvePnL implements the §9-decided priority: broker-confirmed profit,
// then an activity-history lookup by dealId, then directional math.
func (pm *PositionManager) resolvePnL(ctx context.Context, conf DealConfirmation, p Position, entry, exit, size float64) float64 {
	if conf.HasProfit {
		return conf.Profit
	}
	if events, err := pm.Broker.GetActivity(ctx, p.OpenedAt); err == nil {
		for _, ev := range events {
			if ev.DealID == p.DealID && ev.HasProfit {
				return ev.Profit
			}
		}
	}
	return directionalPnL(p.Direction, entry, exit, size)
}

func resultLabel(isLoss bool) string {
	if isLoss {
		return "loss"
	}
	return "win"
}
