package main

import (
	"math"
	"testing"
)

func TestSMAInsufficientHistory(t *testing.T) {
	if !math.IsNaN(SMA([]float64{1, 2}, 5)) {
		t.Fatal("expected NaN for insufficient history")
	}
}

func TestSMAExact(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 5)
	if got != 3 {
		t.Fatalf("want 3, got %v", got)
	}
}

func TestEMASeededBySMA(t *testing.T) {
	// With exactly n values, EMA must equal SMA (no smoothing applied yet).
	vals := []float64{10, 11, 12, 13, 14}
	if got, want := EMA(vals, 5), SMA(vals, 5); got != want {
		t.Fatalf("EMA(n values) = %v, want %v", got, want)
	}
}

func TestEMATracksTrend(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5, 100}
	got := EMA(vals, 5)
	if got <= SMA(vals[:5], 5) {
		t.Fatalf("EMA should move toward the new extreme value, got %v", got)
	}
}

func TestATRBarZeroIsHighMinusLow(t *testing.T) {
	h := []float64{10, 11, 12}
	l := []float64{8, 9, 10}
	c := []float64{9, 10, 11}
	got := ATR(h, l, c, 3)
	if math.IsNaN(got) {
		t.Fatal("expected a value, got NaN")
	}
}

func TestRSIZeroAvgLossReturns100(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	got := RSI(vals, 14)
	if got != 100 {
		t.Fatalf("want 100 on monotonic rise, got %v", got)
	}
}

func TestRSIInsufficientHistory(t *testing.T) {
	if !math.IsNaN(RSI([]float64{1, 2, 3}, 14)) {
		t.Fatal("expected NaN for insufficient history")
	}
}

func TestHighestHighLowestLow(t *testing.T) {
	highs := []float64{1, 5, 3, 9, 2}
	lows := []float64{0, 4, 2, 8, 1}
	if got := HighestHigh(highs, 3); got != 9 {
		t.Fatalf("want 9, got %v", got)
	}
	if got := LowestLow(lows, 3); got != 1 {
		t.Fatalf("want 1, got %v", got)
	}
}

func TestBollingerWidthConstantSeriesIsZero(t *testing.T) {
	vals := []float64{5, 5, 5, 5, 5}
	got := BollingerWidth(vals, 5)
	if got != 0 {
		t.Fatalf("want 0 width on constant series, got %v", got)
	}
}
