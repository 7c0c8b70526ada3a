package main

import (
	"context"
	"testing"
)

func pmTestCfg() Config {
	return Config{
		PartialCloseTP1:        0.50,
		MoveSLToBreakevenOnTP1: true,
		MaxTradesPerDay:        10,
		DailyLossLimitUSD:      1000,
		MaxConsecutiveLosses:   10,
	}
}

// openPaperPosition drives a real create+confirm through the paper broker and
// tracks the resulting position in state, mirroring what strategy_gates.go
// does on order issue.
func openPaperPosition(t *testing.T, ctx context.Context, broker *PaperBroker, state *RuntimeState, dir OrderSide, size, sl, tp1, tp2 float64) Position {
	t.Helper()
	ref, err := broker.CreatePosition(ctx, OrderRequest{Epic: "XAUUSD", Direction: dir, Size: size, StopLevel: sl, ProfitLevel: tp2})
	if err != nil {
		t.Fatalf("create position: %v", err)
	}
	conf, err := broker.ConfirmDeal(ctx, ref)
	if err != nil {
		t.Fatalf("confirm deal: %v", err)
	}
	p := Position{Mode: ModeScalp, Direction: dir, Size: size, Entry: broker.quote.Ask, SL: sl, TP1: tp1, TP2: tp2, DealID: conf.DealID, DealReference: ref}
	if dir == SideSell {
		p.Entry = broker.quote.Bid
	}
	state.AddPosition(p)
	return p
}

func TestPositionManagerClosesOnSLHit(t *testing.T) {
	ctx := context.Background()
	cfg := pmTestCfg()
	state := NewRuntimeState(cfg)
	broker := NewPaperBroker()
	broker.SeedQuote(Quote{Bid: 1999.9, Ask: 2000.1, Status: StatusTradeable})

	p := openPaperPosition(t, ctx, broker, state, SideBuy, 10, 1998, 2002, 2005)
	pm := NewPositionManager("XAUUSD", cfg, broker, state, NewNotifier(""), NewSQLSink(""))

	broker.SeedQuote(Quote{Bid: 1997.0, Ask: 1997.2, Status: StatusTradeable})
	pm.Tick(ctx)

	if len(state.Positions()) != 0 {
		t.Fatal("position should be removed after sl hit")
	}
	if state.Counters().RealizedPnL >= 0 {
		t.Fatalf("sl hit on a long should realize a loss, got %v", state.Counters().RealizedPnL)
	}
	_ = p
}

func TestPositionManagerClosesOnTP2Hit(t *testing.T) {
	ctx := context.Background()
	cfg := pmTestCfg()
	state := NewRuntimeState(cfg)
	broker := NewPaperBroker()
	broker.SeedQuote(Quote{Bid: 1999.9, Ask: 2000.1, Status: StatusTradeable})

	openPaperPosition(t, ctx, broker, state, SideBuy, 10, 1998, 2002, 2005)
	pm := NewPositionManager("XAUUSD", cfg, broker, state, NewNotifier(""), NewSQLSink(""))

	broker.SeedQuote(Quote{Bid: 2006.0, Ask: 2006.2, Status: StatusTradeable})
	pm.Tick(ctx)

	if len(state.Positions()) != 0 {
		t.Fatal("position should be removed after tp2 hit")
	}
	if state.Counters().RealizedPnL <= 0 {
		t.Fatalf("tp2 hit on a long should realize a profit, got %v", state.Counters().RealizedPnL)
	}
}

func TestPositionManagerTP1PartialReopensRemainder(t *testing.T) {
	ctx := context.Background()
	cfg := pmTestCfg()
	state := NewRuntimeState(cfg)
	broker := NewPaperBroker()
	broker.SeedQuote(Quote{Bid: 1999.9, Ask: 2000.1, Status: StatusTradeable})

	orig := openPaperPosition(t, ctx, broker, state, SideBuy, 10, 1998, 2002, 2005)
	pm := NewPositionManager("XAUUSD", cfg, broker, state, NewNotifier(""), NewSQLSink(""))

	broker.SeedQuote(Quote{Bid: 2002.5, Ask: 2002.7, Status: StatusTradeable})
	pm.Tick(ctx)

	positions := state.Positions()
	if len(positions) != 1 {
		t.Fatalf("expected exactly one position after tp1 partial-and-reopen, got %d", len(positions))
	}
	next := positions[0]
	if next.DealID == orig.DealID {
		t.Fatal("the tp1 remainder should be tracked under a fresh dealId")
	}
	if next.Size != 5 {
		t.Fatalf("want remaining size 5, got %v", next.Size)
	}
	if !next.TP1Done {
		t.Fatal("the reopened remainder must carry tp1Done forward")
	}
	if cfg.MoveSLToBreakevenOnTP1 && next.SL != orig.Entry {
		t.Fatalf("breakeven sl should equal original entry %v, got %v", orig.Entry, next.SL)
	}
	if state.Counters().RealizedPnL <= 0 {
		t.Fatalf("the tp1 partial itself should realize a profit, got %v", state.Counters().RealizedPnL)
	}

	remote, err := broker.GetPositions(ctx)
	if err != nil {
		t.Fatalf("get positions: %v", err)
	}
	if len(remote) != 1 {
		t.Fatalf("the original position must be closed in full before the remainder reopens, want 1 remote position, got %d", len(remote))
	}
	if remote[0].DealID != next.DealID {
		t.Fatalf("remote position should match the locally tracked remainder, want %q got %q", next.DealID, remote[0].DealID)
	}
	if remote[0].Size != 5 {
		t.Fatalf("remote remainder size should be 5, got %v", remote[0].Size)
	}
}

func TestPositionManagerIgnoresUntouchedPosition(t *testing.T) {
	ctx := context.Background()
	cfg := pmTestCfg()
	state := NewRuntimeState(cfg)
	broker := NewPaperBroker()
	broker.SeedQuote(Quote{Bid: 1999.9, Ask: 2000.1, Status: StatusTradeable})

	openPaperPosition(t, ctx, broker, state, SideBuy, 10, 1998, 2002, 2005)
	pm := NewPositionManager("XAUUSD", cfg, broker, state, NewNotifier(""), NewSQLSink(""))

	pm.Tick(ctx)

	if len(state.Positions()) != 1 {
		t.Fatal("a position between sl and tp1 must be left untouched")
	}
	if state.Counters().RealizedPnL != 0 {
		t.Fatal("no pnl should be realized without a level being hit")
	}
}
