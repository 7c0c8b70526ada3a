// FILE: strategy_setup.go
// Package main – Pullback setup lifecycle: creation, validity, extreme update.
package main

import (
	"math"
	"time"
)

// trendDir classifies the context-timeframe trend relative to EMA200.
type trendDir string

const (
	trendUp   trendDir = "UP"
	trendDown trendDir = "DOWN"
	trendNone trendDir = "NONE"
)

// classifyTrend implements §4.D.1 step 4.
func classifyTrend(contextCloses []float64, emaTrendPeriod int) trendDir {
	ema := EMA(contextCloses, emaTrendPeriod)
	if math.IsNaN(ema) || len(contextCloses) == 0 {
		return trendNone
	}
	last := contextCloses[len(contextCloses)-1]
	switch {
	case last > ema:
		return trendUp
	case last < ema:
		return trendDown
	default:
		return trendNone
	}
}

func (d trendDir) side() (OrderSide, bool) {
	switch d {
	case trendUp:
		return SideBuy, true
	case trendDown:
		return SideSell, true
	default:
		return "", false
	}
}

// chopOK implements §4.D.1 step 5: entry-tf EMA20/EMA50 separation, normalized
// by ATR, must clear chop_min.
func chopOK(entryCloses []float64, emaFast, emaSlow int, atr, chopMin float64) (ok bool, spreadATR float64) {
	f := EMA(entryCloses, emaFast)
	s := EMA(entryCloses, emaSlow)
	if math.IsNaN(f) || math.IsNaN(s) || atr == 0 || math.IsNaN(atr) {
		return false, math.NaN()
	}
	spreadATR = math.Abs(f-s) / atr
	return spreadATR >= chopMin, spreadATR
}

// emaAligned reports whether EMA20 vs EMA50 ordering matches dir.
func emaAligned(dir OrderSide, emaFast, emaSlow float64) bool {
	if dir == SideBuy {
		return emaFast > emaSlow
	}
	return emaFast < emaSlow
}

// pullbackTolerances implements the §4.D.2 adaptive tolerance formula.
func pullbackTolerances(spreadATR, atr float64, cfg Config) (tol50, tol20 float64, hasTol20 bool) {
	tol50 = math.Min(cfg.TolMax, cfg.TolBase+cfg.TolK*math.Max(0, spreadATR-cfg.ChopMin)) * atr
	if spreadATR >= cfg.FastMin {
		return tol50, cfg.FastTol * atr, true
	}
	return tol50, 0, false
}

// setupTouch implements the §4.D.2 "touch" condition against EMA50 (and,
// when fast pullback is allowed, the tighter EMA20 tolerance).
func setupTouch(dir OrderSide, bar Bar, emaFast, emaSlow, tol50, tol20 float64, hasTol20 bool) (touched bool, touchType TouchType, refEMA float64) {
	if dir == SideBuy {
		d50 := math.Abs(bar.L - emaSlow)
		if hasTol20 {
			d20 := math.Abs(bar.L - emaFast)
			if d20 <= tol20 {
				return true, TouchEMA20, emaFast
			}
		}
		if d50 <= tol50 {
			return true, TouchEMA50, emaSlow
		}
		return false, "", 0
	}
	d50 := math.Abs(bar.H - emaSlow)
	if hasTol20 {
		d20 := math.Abs(bar.H - emaFast)
		if d20 <= tol20 {
			return true, TouchEMA20, emaFast
		}
	}
	if d50 <= tol50 {
		return true, TouchEMA50, emaSlow
	}
	return false, "", 0
}

// rejectionCandle implements the §4.D.2 rejection-candle condition.
func rejectionCandle(dir OrderSide, bar Bar, closePct, wickPct float64) bool {
	rng := bar.H - bar.L
	if rng <= 0 {
		return false
	}
	if dir == SideBuy {
		if bar.C <= bar.O {
			return false
		}
		closePos := (bar.C - bar.L) / rng
		lowerWick := (math.Min(bar.O, bar.C) - bar.L) / rng
		return closePos >= closePct && lowerWick >= wickPct
	}
	if bar.C >= bar.O {
		return false
	}
	closePos := (bar.H - bar.C) / rng
	upperWick := (bar.H - math.Max(bar.O, bar.C)) / rng
	return closePos >= closePct && upperWick >= wickPct
}

// tryCreateSetup implements §4.D.2 end to end against the entry tf's most
// recently closed bar. Returns nil when preconditions, touch, or rejection
// fail.
func tryCreateSetup(dir OrderSide, entryBars []Bar, cfg Config, now time.Time) *Setup {
	if len(entryBars) < cfg.EMAPullbackPeriod+1 {
		return nil
	}
	c := closes(entryBars)
	h := highs(entryBars)
	l := lows(entryBars)

	emaFast := EMA(c, cfg.EMAFastPeriod)
	emaSlow := EMA(c, cfg.EMAPullbackPeriod)
	atr := ATR(h, l, c, cfg.ATRPeriod)
	if math.IsNaN(emaFast) || math.IsNaN(emaSlow) || math.IsNaN(atr) || atr == 0 {
		return nil
	}

	ok, spreadATR := chopOK(c, cfg.EMAFastPeriod, cfg.EMAPullbackPeriod, atr, cfg.ChopMin)
	if !ok || !emaAligned(dir, emaFast, emaSlow) {
		return nil
	}

	tol50, tol20, hasTol20 := pullbackTolerances(spreadATR, atr, cfg)
	bar := entryBars[len(entryBars)-1]
	touched, touchType, refEMA := setupTouch(dir, bar, emaFast, emaSlow, tol50, tol20, hasTol20)
	if !touched {
		return nil
	}
	if !rejectionCandle(dir, bar, cfg.ClosePct, cfg.WickPct) {
		return nil
	}

	extreme := bar.L
	if dir == SideSell {
		extreme = bar.H
	}
	return &Setup{
		Active:          true,
		Direction:       dir,
		CreatedAt:       now,
		PullbackExtreme: extreme,
		TouchType:       touchType,
		RefEMA:          refEMA,
	}
}

// barsSinceCreation counts entry-tf bars strictly after s.CreatedAt.
func barsSinceCreation(entryBars []Bar, s *Setup) int {
	n := 0
	for _, b := range entryBars {
		if b.T.After(s.CreatedAt) {
			n++
		}
	}
	return n
}

// invalidationCause names which of the four §9 setup-invalidation causes
// tripped setupStillValid, so Evaluate can emit the matching signal action
// instead of a single catch-all.
type invalidationCause string

const (
	causeTrendFlip    invalidationCause = "trend_flip"
	causeEMAAlignment invalidationCause = "ema_alignment"
	causeMeanBreak    invalidationCause = "mean_break"
	causeExpired      invalidationCause = "expired"
)

// setupStillValid implements §4.D.1 step 7. expiryBars is mode-specific
// (scalp vs swing use different budgets). On failure it also reports which
// of the four distinct invalidation causes fired.
func setupStillValid(s *Setup, trend trendDir, entryBars []Bar, cfg Config, expiryBars int) (ok bool, cause invalidationCause, reason string) {
	dirSide, hasTrend := trend.side()
	if !hasTrend || dirSide != s.Direction {
		return false, causeTrendFlip, "trend no longer matches setup direction"
	}
	if len(entryBars) < cfg.EMAPullbackPeriod+1 {
		return false, causeEMAAlignment, "insufficient entry tf history"
	}
	c := closes(entryBars)
	h := highs(entryBars)
	l := lows(entryBars)
	emaFast := EMA(c, cfg.EMAFastPeriod)
	emaSlow := EMA(c, cfg.EMAPullbackPeriod)
	atr := ATR(h, l, c, cfg.ATRPeriod)
	if math.IsNaN(emaFast) || math.IsNaN(emaSlow) || math.IsNaN(atr) {
		return false, causeEMAAlignment, "indicators undefined"
	}
	if !emaAligned(s.Direction, emaFast, emaSlow) {
		return false, causeEMAAlignment, "ema20/ema50 alignment broken"
	}
	price := entryBars[len(entryBars)-1].C
	if s.Direction == SideBuy && price < emaSlow-cfg.InvalidationK*atr {
		return false, causeMeanBreak, "price broke through ema50 beyond invalidation margin"
	}
	if s.Direction == SideSell && price > emaSlow+cfg.InvalidationK*atr {
		return false, causeMeanBreak, "price broke through ema50 beyond invalidation margin"
	}
	if barsSinceCreation(entryBars, s) > expiryBars {
		return false, causeExpired, "setup expired"
	}
	return true, "", ""
}

// advancePullbackExtreme implements §4.D.1 step 8: the extreme only ever
// moves further into the adverse side.
func advancePullbackExtreme(s *Setup, bar Bar) (float64, bool) {
	if s.Direction == SideBuy {
		if bar.L < s.PullbackExtreme {
			return bar.L, true
		}
		return s.PullbackExtreme, false
	}
	if bar.H > s.PullbackExtreme {
		return bar.H, true
	}
	return s.PullbackExtreme, false
}
