// FILE: broker_paper.go
// Package main – In-memory paper broker satisfying Broker, no external I/O.
//
// Simulates fills against the latest known quote, with immediate synthetic
// confirmation instead of a real two-phase deal flow. Used for dry runs and
// smoke tests; candles still come from a seeded fixture since a paper
// account has no real market data of its own.
package main

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PaperBroker keeps mutable in-memory quote, candle, and position state to
// simulate the full Broker surface without touching a remote account.
type PaperBroker struct {
	mu          sync.Mutex
	quote       Quote
	candles     map[Timeframe][]Bar
	positions   map[string]RemotePosition
	activity    []ActivityEvent
	pendingRefs map[string]string  // dealReference -> dealId, awaiting ConfirmDeal
	closeRefs   map[string]float64 // dealReference -> realized pnl, awaiting confirm
}

// NewPaperBroker returns a paper broker seeded with a flat starting quote.
func NewPaperBroker() *PaperBroker {
	return &PaperBroker{
		quote:       Quote{Bid: 1999.9, Ask: 2000.1, Status: StatusTradeable},
		candles:     make(map[Timeframe][]Bar),
		positions:   make(map[string]RemotePosition),
		pendingRefs: make(map[string]string),
		closeRefs:   make(map[string]float64),
	}
}

// SeedCandles installs fixture bars for tf, used by smoke tests and dry runs
// that want deterministic history without a remote feed.
func (p *PaperBroker) SeedCandles(tf Timeframe, bars []Bar) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candles[tf] = bars
}

// SeedQuote overrides the simulated quote.
func (p *PaperBroker) SeedQuote(q Quote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quote = q
}

func (p *PaperBroker) CreateSession(ctx context.Context) error    { return nil }
func (p *PaperBroker) RefreshSession(ctx context.Context) error   { return nil }
func (p *PaperBroker) DestroySession(ctx context.Context) error   { return nil }

func (p *PaperBroker) GetCandles(ctx context.Context, epic string, tf Timeframe, max int) ([]Bar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bars := p.candles[tf]
	if len(bars) > max {
		bars = bars[len(bars)-max:]
	}
	return append([]Bar(nil), bars...), nil
}

func (p *PaperBroker) GetPrice(ctx context.Context, epic string) (Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quote, nil
}

func (p *PaperBroker) CreatePosition(ctx context.Context, req OrderRequest) (string, error) {
	ref := uuid.New().String()
	p.mu.Lock()
	defer p.mu.Unlock()
	dealID := "paper-" + ref
	p.positions[dealID] = RemotePosition{
		DealID:    dealID,
		Direction: req.Direction,
		Size:      req.Size,
		Level:     p.fillPriceLocked(req.Direction),
		StopLevel: req.StopLevel,
		LimitLevel: req.ProfitLevel,
	}
	p.pendingRefs[ref] = dealID
	return ref, nil
}

func (p *PaperBroker) fillPriceLocked(side OrderSide) float64 {
	if side == SideBuy {
		return p.quote.Ask
	}
	return p.quote.Bid
}

func (p *PaperBroker) ConfirmDeal(ctx context.Context, dealReference string) (DealConfirmation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if dealID, ok := p.pendingRefs[dealReference]; ok {
		delete(p.pendingRefs, dealReference)
		return DealConfirmation{
			DealReference: dealReference,
			DealStatus:    DealAccepted,
			DealID:        dealID,
		}, nil
	}
	if pnl, ok := p.closeRefs[dealReference]; ok {
		delete(p.closeRefs, dealReference)
		return DealConfirmation{
			DealReference: dealReference,
			DealStatus:    DealAccepted,
			Profit:        pnl,
			HasProfit:     true,
		}, nil
	}
	return DealConfirmation{}, ErrDealConfirmTimeout
}

func (p *PaperBroker) ClosePosition(ctx context.Context, dealID string, size float64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[dealID]
	if !ok {
		return "", ErrPositionNotFound
	}
	exit := p.fillPriceLocked(oppositeSide(pos.Direction))
	pnl := directionalPnL(pos.Direction, pos.Level, exit, size)
	ref := uuid.New().String()
	p.closeRefs[ref] = pnl
	if size >= pos.Size {
		delete(p.positions, dealID)
	} else {
		pos.Size -= size
		p.positions[dealID] = pos
	}
	p.activity = append(p.activity, ActivityEvent{
		DealID: dealID, Type: "POSITION_CLOSED", Profit: pnl, HasProfit: true, Time: time.Now().UTC(),
	})
	return ref, nil
}

func oppositeSide(s OrderSide) OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

func directionalPnL(side OrderSide, entry, exit, size float64) float64 {
	if side == SideBuy {
		return (exit - entry) * size
	}
	return (entry - exit) * size
}

func (p *PaperBroker) UpdatePosition(ctx context.Context, dealID string, stopLevel, profitLevel *float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[dealID]
	if !ok {
		return ErrPositionNotFound
	}
	if stopLevel != nil {
		pos.StopLevel = *stopLevel
	}
	if profitLevel != nil {
		pos.LimitLevel = *profitLevel
	}
	p.positions[dealID] = pos
	return nil
}

func (p *PaperBroker) GetPositions(ctx context.Context) ([]RemotePosition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]RemotePosition, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}
	return out, nil
}

func (p *PaperBroker) GetPosition(ctx context.Context, dealID string) (RemotePosition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[dealID]
	if !ok {
		return RemotePosition{}, ErrPositionNotFound
	}
	return pos, nil
}

func (p *PaperBroker) GetActivity(ctx context.Context, fromTs time.Time) ([]ActivityEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ActivityEvent, 0, len(p.activity))
	for _, ev := range p.activity {
		if !ev.Time.Before(fromTs) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (p *PaperBroker) RoundForEpic(epic string, price float64) float64 {
	return float64(int64(price*100)) / 100
}
