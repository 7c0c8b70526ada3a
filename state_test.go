package main

import "testing"

func testCfg() Config {
	return Config{
		MaxTradesPerDay:      3,
		DailyLossLimitUSD:    10,
		MaxConsecutiveLosses: 3,
	}
}

func TestRiskOKGates(t *testing.T) {
	rs := NewRuntimeState(testCfg())
	if !rs.RiskOK() {
		t.Fatal("fresh state should allow trading")
	}
	rs.AddPosition(Position{DealID: "d1"})
	rs.AddPosition(Position{DealID: "d2"})
	rs.AddPosition(Position{DealID: "d3"})
	if rs.RiskOK() {
		t.Fatal("trade count at max should block trading")
	}
}

func TestAdoptPositionDoesNotCountTrade(t *testing.T) {
	rs := NewRuntimeState(testCfg())
	rs.AdoptPosition(Position{DealID: "pre-existing"})
	if rs.Counters().TradesCount != 0 {
		t.Fatal("adopted position must not count against the daily trade budget")
	}
	if len(rs.Positions()) != 1 {
		t.Fatal("adopted position should still be tracked")
	}
}

func TestReplacePositionDoesNotCountTrade(t *testing.T) {
	rs := NewRuntimeState(testCfg())
	rs.AddPosition(Position{DealID: "d1", Size: 4})
	rs.ReplacePosition("d1", Position{DealID: "d1b", Size: 2, TP1Done: true})
	if rs.Counters().TradesCount != 1 {
		t.Fatal("replace must not increment tradesCount")
	}
	pos := rs.Positions()
	if len(pos) != 1 || pos[0].DealID != "d1b" {
		t.Fatalf("unexpected positions after replace: %+v", pos)
	}
}

func TestUpdatePnLResetsConsecutiveLossesOnWin(t *testing.T) {
	rs := NewRuntimeState(testCfg())
	rs.UpdatePnL(-3, true)
	rs.UpdatePnL(-2, true)
	if rs.Counters().ConsecutiveLosses != 2 {
		t.Fatalf("want 2 consecutive losses, got %d", rs.Counters().ConsecutiveLosses)
	}
	rs.UpdatePnL(5, false)
	if rs.Counters().ConsecutiveLosses != 0 {
		t.Fatal("a non-negative pnl must reset the consecutive-loss counter")
	}
}

func TestDailyResetClearsSetupsAndCounters(t *testing.T) {
	rs := NewRuntimeState(testCfg())
	rs.SetSetup(ModeScalp, &Setup{Active: true, Direction: SideBuy})
	rs.AddPosition(Position{DealID: "d1"})
	rs.UpdatePnL(-1, true)

	rs.DailyReset(1000)

	if rs.Setup(ModeScalp) != nil {
		t.Fatal("daily reset must clear active setups")
	}
	c := rs.Counters()
	if c.TradesCount != 0 || c.RealizedPnL != 0 || c.ConsecutiveLosses != 0 || c.StartEquity != 1000 {
		t.Fatalf("unexpected counters after reset: %+v", c)
	}
	if len(rs.Positions()) != 1 {
		t.Fatal("daily reset must not drop tracked positions")
	}
}

func TestMissCounterLifecycle(t *testing.T) {
	rs := NewRuntimeState(testCfg())
	rs.AddPosition(Position{DealID: "d1"})
	if got := rs.IncMiss("d1"); got != 1 {
		t.Fatalf("want 1, got %d", got)
	}
	if got := rs.IncMiss("d1"); got != 2 {
		t.Fatalf("want 2, got %d", got)
	}
	rs.ResetMiss("d1")
	if rs.MissCount("d1") != 0 {
		t.Fatal("reset should zero the miss counter")
	}
	rs.RemovePosition("d1")
	rs.IncMiss("ghost")
	rs.GCMissCounters()
	if rs.MissCount("ghost") != 0 {
		t.Fatal("GC should drop miss counters for untracked deal ids")
	}
}
