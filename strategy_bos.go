// FILE: strategy_bos.go
// Package main – Break-of-structure trigger and SL/TP computation.
package main

import "math"

// bosResult carries the outcome of evaluating a break-of-structure trigger
// on the entry timeframe's most recently closed bar.
type bosResult struct {
	Triggered bool
	ATR       float64
	Level     float64 // the highestHigh/lowestLow structure level used
	Margin    float64
	Reason    string // set when Triggered is false
}

// evaluateBOS implements §4.D.3: skip oversized bars, compute the prior
// structure extreme over lookback bars, and trigger on a close beyond it by
// at least margin = max(spread, atrMarginK*ATR).
func evaluateBOS(dir OrderSide, bars []Bar, lookback int, spread, bigCandleATRMax, atrMarginK float64, atrPeriod int) bosResult {
	if len(bars) < lookback+2 {
		return bosResult{Reason: "insufficient history for bos lookback"}
	}
	h := highs(bars)
	l := lows(bars)
	c := closes(bars)

	atr := ATR(h, l, c, atrPeriod)
	if math.IsNaN(atr) {
		return bosResult{Reason: "atr undefined"}
	}

	cur := bars[len(bars)-1]
	rng := cur.H - cur.L
	if rng > bigCandleATRMax*atr {
		return bosResult{ATR: atr, Reason: "bar range exceeds big candle cap"}
	}

	prior := bars[:len(bars)-1]
	window := prior[len(prior)-lookback:]

	margin := math.Max(spread, atrMarginK*atr)

	switch dir {
	case SideBuy:
		level := HighestHigh(highs(window), lookback)
		if cur.C > level+margin {
			return bosResult{Triggered: true, ATR: atr, Level: level, Margin: margin}
		}
		return bosResult{ATR: atr, Level: level, Margin: margin, Reason: "close has not broken prior high by margin"}
	case SideSell:
		level := LowestLow(lows(window), lookback)
		if cur.C < level-margin {
			return bosResult{Triggered: true, ATR: atr, Level: level, Margin: margin}
		}
		return bosResult{ATR: atr, Level: level, Margin: margin, Reason: "close has not broken prior low by margin"}
	default:
		return bosResult{Reason: "unknown direction"}
	}
}

// slTP holds the computed stop-loss and two take-profit levels for a
// triggered setup, per §4.D.4.
type slTP struct {
	SL, TP1, TP2 float64
}

// computeSLTP implements the scalp and swing SL/TP formulas. pullbackExtreme
// is the adverse-side extreme recorded by the setup; entry is the BOS bar's
// close (the price the order is issued at).
func computeSLTP(mode PositionMode, dir OrderSide, entry, pullbackExtreme, atr float64, cfg Config) slTP {
	buffer := cfg.SLBufferATR * atr
	var sl float64
	if dir == SideBuy {
		sl = pullbackExtreme - buffer
	} else {
		sl = pullbackExtreme + buffer
	}

	if mode == ModeSwing {
		r := math.Abs(entry - sl)
		if dir == SideBuy {
			return slTP{SL: sl, TP1: entry + cfg.TP1R*r, TP2: entry + cfg.TP2RSwing*r}
		}
		return slTP{SL: sl, TP1: entry - cfg.TP1R*r, TP2: entry - cfg.TP2RSwing*r}
	}

	if dir == SideBuy {
		return slTP{SL: sl, TP1: entry + cfg.TP1ATR*atr, TP2: entry + cfg.TP2ATR*atr}
	}
	return slTP{SL: sl, TP1: entry - cfg.TP1ATR*atr, TP2: entry - cfg.TP2ATR*atr}
}

// tp1SaneVsSpread implements the §4.D.4 sanity abort: a TP1 distance smaller
// than min_tp1_spread_mult * spread is too close to be worth the round-trip
// cost, so the order is not issued.
func tp1SaneVsSpread(entry, tp1, spread, minMult float64) bool {
	return math.Abs(tp1-entry) >= minMult*spread
}
