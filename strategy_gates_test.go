package main

import (
	"context"
	"testing"
	"time"
)

func gateTestCfg() Config {
	return Config{
		EMATrendPeriod:    10,
		Oversold:          30,
		Overbought:        70,
		M15StrengthMin:    0.25,
		ATRPeriod:         3,
		M1EMAFastPeriod:   3,
		M1EMASlowPeriod:   5,
		MaxTradesPerDay:   3,
		DailyLossLimitUSD: 10,
	}
}

func risingBars(n int, base time.Time, start, step float64) []Bar {
	out := make([]Bar, 0, n)
	for i := 0; i < n; i++ {
		t := base.Add(time.Duration(i) * time.Minute)
		c := start + float64(i)*step
		out = append(out, Bar{T: t, O: c, H: c + 0.1, L: c - 0.1, C: c, V: 1})
	}
	return out
}

func TestH1MacroAlignedRejectsOverbought(t *testing.T) {
	cfg := gateTestCfg()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := risingBars(cfg.EMATrendPeriod+rsiPeriod+5, base, 100, 1.0)
	ok, reason := h1MacroAligned(SideBuy, bars, cfg)
	if ok {
		t.Fatal("a straight rising run without pullback should blow through overbought and be rejected")
	}
	if reason != "h1 rsi outside oversold/overbought band" {
		t.Fatalf("unexpected reason: %q", reason)
	}
}

func TestH1MacroAlignedInsufficientHistory(t *testing.T) {
	cfg := gateTestCfg()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := risingBars(3, base, 100, 1.0)
	ok, reason := h1MacroAligned(SideBuy, bars, cfg)
	if ok || reason != "insufficient h1 history" {
		t.Fatalf("want insufficient history rejection, got ok=%v reason=%q", ok, reason)
	}
}

func TestM1MicroConfirmBuyRequiresFastAboveSlowAndPriceAboveFast(t *testing.T) {
	cfg := gateTestCfg()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := risingBars(cfg.M1EMASlowPeriod+5, base, 100, 0.5)
	ok, reason := m1MicroConfirm(SideBuy, bars, cfg)
	if !ok {
		t.Fatalf("rising m1 closes should confirm a buy, got reason %q", reason)
	}
}

func TestM1MicroConfirmRejectsOppositeDirection(t *testing.T) {
	cfg := gateTestCfg()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := risingBars(cfg.M1EMASlowPeriod+5, base, 100, 0.5)
	ok, _ := m1MicroConfirm(SideSell, bars, cfg)
	if ok {
		t.Fatal("a rising m1 sequence must not confirm a sell")
	}
}

func TestModeParamsScalpVsSwing(t *testing.T) {
	cfg := Config{SetupExpiryBarsScalp: 6, SetupExpiryBarsSwing: 12, BOSLookbackScalp: 8, BOSLookbackSwing: 10, ScalpSizeUnits: 1, SwingSizeUnits: 2}
	e := &StrategyEngine{Cfg: cfg}
	entryTF, contextTF, expiry, lookback, size := e.modeParams(ModeScalp)
	if entryTF != TF_M5 || contextTF != TF_M15 || expiry != 6 || lookback != 8 || size != 1 {
		t.Fatalf("unexpected scalp params: %v %v %v %v %v", entryTF, contextTF, expiry, lookback, size)
	}
	entryTF, contextTF, expiry, lookback, size = e.modeParams(ModeSwing)
	if entryTF != TF_H1 || contextTF != TF_H4 || expiry != 12 || lookback != 10 || size != 2 {
		t.Fatalf("unexpected swing params: %v %v %v %v %v", entryTF, contextTF, expiry, lookback, size)
	}
}

func TestEvaluateSkipsOnRiskLockout(t *testing.T) {
	cfg := gateTestCfg()
	state := NewRuntimeState(cfg)
	state.AddPosition(Position{DealID: "d1"})
	state.AddPosition(Position{DealID: "d2"})
	state.AddPosition(Position{DealID: "d3"})

	broker := NewPaperBroker()
	candles := NewCandleStore(300)
	ml := NewMLGate("", "")
	notify := NewNotifier("")
	sql := NewSQLSink("")

	engine := NewStrategyEngine("XAUUSD", cfg, broker, state, candles, ml, notify, sql)
	rec := engine.Evaluate(context.Background(), ModeScalp, time.Now())
	if rec.Action != SigSkipRisk {
		t.Fatalf("want SigSkipRisk, got %v (%s)", rec.Action, rec.Reason)
	}
}

func TestEvaluateWatchesOnInsufficientHistory(t *testing.T) {
	cfg := gateTestCfg()
	cfg.EMAPullbackPeriod = 50
	state := NewRuntimeState(cfg)
	broker := NewPaperBroker()
	candles := NewCandleStore(300)
	ml := NewMLGate("", "")
	notify := NewNotifier("")
	sql := NewSQLSink("")

	engine := NewStrategyEngine("XAUUSD", cfg, broker, state, candles, ml, notify, sql)
	rec := engine.Evaluate(context.Background(), ModeScalp, time.Now())
	if rec.Action != SigWatching {
		t.Fatalf("want SigWatching with empty candle store, got %v (%s)", rec.Action, rec.Reason)
	}
}
