package main

import (
	"testing"
	"time"
)

func mkOHLC(t time.Time, o, h, l, c float64) Bar {
	return Bar{T: t, O: o, H: h, L: l, C: c, V: 1}
}

// flatBars builds n bars of a fixed range so ATR stabilizes, then appends the
// caller's trailing bars so evaluateBOS sees a predictable structure level.
func flatBars(n int, base time.Time, rng float64, trailing ...Bar) []Bar {
	out := make([]Bar, 0, n+len(trailing))
	for i := 0; i < n; i++ {
		t := base.Add(time.Duration(i) * time.Minute)
		out = append(out, mkOHLC(t, 100, 100+rng, 100-rng, 100))
	}
	for i, b := range trailing {
		b.T = base.Add(time.Duration(n+i) * time.Minute)
		out = append(out, b)
	}
	return out
}

func TestEvaluateBOSInsufficientHistory(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := flatBars(2, base, 1)
	got := evaluateBOS(SideBuy, bars, 8, 0.1, 1.5, 0.1, 14)
	if got.Triggered {
		t.Fatal("expected no trigger with insufficient history")
	}
}

func TestEvaluateBOSBigCandleSkipped(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	huge := mkOHLC(base, 100, 200, 50, 190)
	bars := flatBars(20, base, 1, huge)
	got := evaluateBOS(SideBuy, bars, 8, 0.1, 1.5, 0.1, 14)
	if got.Triggered {
		t.Fatal("oversized bar range must not trigger bos")
	}
	if got.Reason != "bar range exceeds big candle cap" {
		t.Fatalf("unexpected reason: %q", got.Reason)
	}
}

func TestEvaluateBOSTriggersOnMarginBreak(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	breakout := mkOHLC(base, 100, 103, 99.5, 103)
	bars := flatBars(20, base, 1, breakout)
	got := evaluateBOS(SideBuy, bars, 8, 0.1, 1.5, 0.1, 14)
	if !got.Triggered {
		t.Fatalf("expected trigger, got reason %q", got.Reason)
	}
}

func TestEvaluateBOSNoTriggerWithinMargin(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tiny := mkOHLC(base, 100, 101.01, 99.5, 101.01)
	bars := flatBars(20, base, 1, tiny)
	got := evaluateBOS(SideBuy, bars, 8, 0.1, 1.5, 2.0, 14)
	if got.Triggered {
		t.Fatal("close barely past the level within margin must not trigger")
	}
}

func TestComputeSLTPScalp(t *testing.T) {
	cfg := Config{SLBufferATR: 0.1, TP1ATR: 1.0, TP2ATR: 2.0}
	got := computeSLTP(ModeScalp, SideBuy, 2000, 1995, 2.0, cfg)
	if got.SL != 1995-0.2 {
		t.Fatalf("want sl %v, got %v", 1995-0.2, got.SL)
	}
	if got.TP1 != 2002 || got.TP2 != 2004 {
		t.Fatalf("unexpected tp1/tp2: %+v", got)
	}
}

func TestComputeSLTPSwingUsesRMultiples(t *testing.T) {
	cfg := Config{SLBufferATR: 0.0, TP1R: 1.0, TP2RSwing: 3.0}
	got := computeSLTP(ModeSwing, SideSell, 2000, 2010, 2.0, cfg)
	r := 10.0 // |entry-sl| = |2000-2010| = 10
	if got.SL != 2010 {
		t.Fatalf("want sl 2010, got %v", got.SL)
	}
	if got.TP1 != 2000-r || got.TP2 != 2000-3*r {
		t.Fatalf("unexpected swing tp1/tp2: %+v", got)
	}
}

func TestTP1SaneVsSpread(t *testing.T) {
	if !tp1SaneVsSpread(2000, 2002, 0.5, 1.5) {
		t.Fatal("tp1 2pts away vs 0.75 minimum should be sane")
	}
	if tp1SaneVsSpread(2000, 2000.3, 0.5, 1.5) {
		t.Fatal("tp1 0.3pts away vs 0.75 minimum should fail sanity")
	}
}
