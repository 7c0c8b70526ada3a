package main

import (
	"testing"
	"time"
)

func setupTestCfg() Config {
	return Config{
		EMAFastPeriod:     3,
		EMAPullbackPeriod: 5,
		ATRPeriod:         3,
		ChopMin:           0.01,
		TolBase:           0.40,
		TolK:              0.20,
		TolMax:            0.80,
		FastMin:           0.50,
		FastTol:           0.20,
		ClosePct:          0.60,
		WickPct:           0.30,
		InvalidationK:     1.0,
	}
}

func TestClassifyTrendUpDown(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19}
	if got := classifyTrend(closes, 5); got != trendUp {
		t.Fatalf("want trendUp, got %v", got)
	}
	down := []float64{19, 18, 17, 16, 15, 14, 13, 12, 11, 10}
	if got := classifyTrend(down, 5); got != trendDown {
		t.Fatalf("want trendDown, got %v", got)
	}
}

func TestChopOKRejectsNarrowSeparation(t *testing.T) {
	flat := []float64{100, 100, 100, 100, 100, 100}
	ok, _ := chopOK(flat, 3, 5, 1.0, 0.12)
	if ok {
		t.Fatal("flat series has zero ema separation, chop gate must reject")
	}
}

func TestRejectionCandleBuyRequiresBullishCloseAndLowerWick(t *testing.T) {
	bar := Bar{O: 100, H: 102, L: 97, C: 101.5}
	if !rejectionCandle(SideBuy, bar, 0.60, 0.30) {
		t.Fatal("expected a valid bullish rejection candle to pass")
	}
	bearish := Bar{O: 101.5, H: 102, L: 97, C: 100}
	if rejectionCandle(SideBuy, bearish, 0.60, 0.30) {
		t.Fatal("a bearish-close bar must never satisfy a buy rejection")
	}
}

func TestAdvancePullbackExtremeOnlyMovesAdverse(t *testing.T) {
	s := &Setup{Direction: SideBuy, PullbackExtreme: 100}
	next, moved := advancePullbackExtreme(s, Bar{L: 99, H: 103})
	if !moved || next != 99 {
		t.Fatalf("lower low should advance the buy extreme, got %v moved=%v", next, moved)
	}
	same, moved2 := advancePullbackExtreme(s, Bar{L: 99.5, H: 103})
	if moved2 || same != 100 {
		t.Fatalf("a higher low must not move the extreme, got %v moved=%v", same, moved2)
	}
}

func TestSetupStillValidExpiresAfterBudget(t *testing.T) {
	cfg := setupTestCfg()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &Setup{Direction: SideBuy, CreatedAt: base}

	bars := make([]Bar, 0, 10)
	for i := 0; i < 8; i++ {
		t := base.Add(time.Duration(i+1) * time.Minute)
		bars = append(bars, mkOHLC(t, 100, 101, 99, 100+float64(i)*0.1))
	}
	ok, cause, reason := setupStillValid(s, trendUp, bars, cfg, 2)
	if ok {
		t.Fatalf("setup should have expired after 2 bars, got ok with reason %q", reason)
	}
	if reason != "setup expired" {
		t.Fatalf("want expiry reason, got %q", reason)
	}
	if cause != causeExpired {
		t.Fatalf("want causeExpired, got %v", cause)
	}
	if setupInvalidAction(cause) != SigSkipExpired {
		t.Fatalf("want SigSkipExpired, got %v", setupInvalidAction(cause))
	}
}

func TestSetupStillValidRejectsTrendFlip(t *testing.T) {
	cfg := setupTestCfg()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &Setup{Direction: SideBuy, CreatedAt: base}
	bars := []Bar{mkOHLC(base.Add(time.Minute), 100, 101, 99, 100)}
	ok, cause, reason := setupStillValid(s, trendDown, bars, cfg, 10)
	if ok {
		t.Fatal("a trend flip away from the setup direction must invalidate it")
	}
	if reason != "trend no longer matches setup direction" {
		t.Fatalf("unexpected reason: %q", reason)
	}
	if cause != causeTrendFlip {
		t.Fatalf("want causeTrendFlip, got %v", cause)
	}
	if setupInvalidAction(cause) != SigSkipTrendFlip {
		t.Fatalf("want SigSkipTrendFlip, got %v", setupInvalidAction(cause))
	}
}
