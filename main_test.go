package main

import (
	"context"
	"testing"
)

func TestAdoptExistingPositionsAdoptsValidRemote(t *testing.T) {
	ctx := context.Background()
	broker := NewPaperBroker()
	broker.positions["live-1"] = RemotePosition{
		DealID: "live-1", Direction: SideBuy, Size: 3, Level: 2000, StopLevel: 1990, LimitLevel: 2020,
	}
	state := NewRuntimeState(Config{})

	adoptExistingPositions(ctx, broker, state)

	positions := state.Positions()
	if len(positions) != 1 {
		t.Fatalf("want 1 adopted position, got %d", len(positions))
	}
	p := positions[0]
	if p.Mode != ModeAdopted {
		t.Fatalf("adopted position must carry ModeAdopted, got %v", p.Mode)
	}
	if p.Entry != 2000 || p.SL != 1990 || p.TP2 != 2020 {
		t.Fatalf("unexpected adopted levels: %+v", p)
	}
	if state.Counters().TradesCount != 0 {
		t.Fatal("adoption must not count against the daily trade budget")
	}
}

func TestAdoptExistingPositionsSkipsMissingEntryOrStop(t *testing.T) {
	ctx := context.Background()
	broker := NewPaperBroker()
	broker.positions["bad-1"] = RemotePosition{DealID: "bad-1", Direction: SideBuy, Size: 1, Level: 2000, StopLevel: 0}
	broker.positions["bad-2"] = RemotePosition{DealID: "bad-2", Direction: SideBuy, Size: 1, Level: 0, StopLevel: 1990}
	state := NewRuntimeState(Config{})

	adoptExistingPositions(ctx, broker, state)

	if len(state.Positions()) != 0 {
		t.Fatal("positions missing entry or stop level must not be adopted")
	}
}

func TestAdoptExistingPositionsSkipsAlreadyKnownDeal(t *testing.T) {
	ctx := context.Background()
	broker := NewPaperBroker()
	broker.positions["known-1"] = RemotePosition{DealID: "known-1", Direction: SideBuy, Size: 1, Level: 2000, StopLevel: 1990}
	state := NewRuntimeState(Config{})
	state.AddPosition(Position{DealID: "known-1", Direction: SideBuy, Size: 1, Entry: 2000, SL: 1990})

	adoptExistingPositions(ctx, broker, state)

	positions := state.Positions()
	if len(positions) != 1 {
		t.Fatalf("want the restored position left untouched, got %d", len(positions))
	}
	if positions[0].Mode == ModeAdopted {
		t.Fatal("a position already tracked from a restored snapshot must not be re-adopted")
	}
}
