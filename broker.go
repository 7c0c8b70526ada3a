// FILE: broker.go
// Package main – Broker abstractions shared by all execution backends.
//
// Broker is the full surface the engine needs against a Capital.com-shaped
// CFD API: session lifecycle, multi-timeframe candles, price+market status,
// two-phase order placement/close with deal confirmation, position lookup,
// and activity history for PnL recovery. Two concrete implementations live
// in separate files:
//   • broker_rest.go   – real Capital.com REST client
//   • broker_paper.go  – in-memory dry-run simulator satisfying the same
//     interface, for local testing and smoke runs.
package main

import (
	"context"
	"time"
)

// OrderSide is the side of a trade.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// MarketStatus mirrors the broker's reported tradeability of an epic.
type MarketStatus string

const (
	StatusTradeable MarketStatus = "TRADEABLE"
	StatusClosed    MarketStatus = "CLOSED"
	StatusEditsOnly MarketStatus = "EDITS_ONLY"
	StatusOffline   MarketStatus = "OFFLINE"
	StatusSuspended MarketStatus = "SUSPENDED"
)

// Quote is the current two-sided price and market status for an epic.
type Quote struct {
	Bid    float64
	Ask    float64
	Status MarketStatus
}

// Mid returns the midpoint of bid/ask.
func (q Quote) Mid() float64 { return (q.Bid + q.Ask) / 2 }

// Spread returns ask - bid.
func (q Quote) Spread() float64 { return q.Ask - q.Bid }

// DealStatus is the terminal state of a confirmed deal.
type DealStatus string

const (
	DealAccepted DealStatus = "ACCEPTED"
	DealRejected DealStatus = "REJECTED"
)

// OrderRequest describes a market order to open, with broker-native SL/TP.
type OrderRequest struct {
	Epic        string
	Direction   OrderSide
	Size        float64
	StopLevel   float64
	ProfitLevel float64
}

// DealConfirmation is the resolved outcome of a two-phase order placement.
type DealConfirmation struct {
	DealReference string
	DealStatus    DealStatus
	DealID        string
	Profit        float64 // broker-confirmed realized profit, if present
	HasProfit     bool
}

// RemotePosition is the broker's view of one open position.
type RemotePosition struct {
	DealID    string
	Direction OrderSide
	Size      float64
	Level     float64 // entry level
	StopLevel float64
	LimitLevel float64
}

// ActivityEvent is one entry from the broker's activity history.
type ActivityEvent struct {
	DealID    string
	Type      string // e.g. "POSITION_CLOSED"
	Profit    float64
	HasProfit bool
	Time      time.Time
}

// Broker is the full surface the engine needs to operate against a remote
// brokerage account.
type Broker interface {
	// CreateSession authenticates and establishes the process-wide session.
	CreateSession(ctx context.Context) error
	// RefreshSession renews the session tokens without losing account scope.
	RefreshSession(ctx context.Context) error
	// DestroySession tears down the remote session on shutdown.
	DestroySession(ctx context.Context) error

	// GetCandles returns up to max most recent bars for epic/tf, ascending by time.
	GetCandles(ctx context.Context, epic string, tf Timeframe, max int) ([]Bar, error)
	// GetPrice returns the current quote and market status for epic.
	GetPrice(ctx context.Context, epic string) (Quote, error)

	// CreatePosition submits a market order and returns its deal reference.
	CreatePosition(ctx context.Context, req OrderRequest) (dealReference string, err error)
	// ConfirmDeal polls until the dealReference resolves to a terminal status.
	ConfirmDeal(ctx context.Context, dealReference string) (DealConfirmation, error)
	// ClosePosition submits a close order for dealID and returns its deal reference.
	ClosePosition(ctx context.Context, dealID string, size float64) (dealReference string, err error)
	// UpdatePosition adjusts the remote SL/TP levels of an open position.
	UpdatePosition(ctx context.Context, dealID string, stopLevel, profitLevel *float64) error

	// GetPositions lists every currently open remote position.
	GetPositions(ctx context.Context) ([]RemotePosition, error)
	// GetPosition performs a direct single-position lookup; returns
	// ErrPositionNotFound on a confirmed 404.
	GetPosition(ctx context.Context, dealID string) (RemotePosition, error)
	// GetActivity returns activity-history events at or after fromTs.
	GetActivity(ctx context.Context, fromTs time.Time) ([]ActivityEvent, error)

	// RoundForEpic rounds a price to the epic's discovered decimal precision.
	RoundForEpic(epic string, price float64) float64
}
