// FILE: strategy_gates.go
// Package main – The 17-step gate chain, evaluated once per new closed bar.
//
// Every evaluation emits exactly one signal record regardless of which gate
// stopped it (finally-flush discipline), via a single deferred emit at the
// top of Evaluate.
package main

import (
	"context"
	"math"
	"time"
)

// SignalAction labels why a gate-chain evaluation stopped.
type SignalAction string

const (
	SigOrderPlaced      SignalAction = "ORDER_PLACED"
	SigOrderFailed      SignalAction = "ORDER_FAILED"
	SigWatching         SignalAction = "WATCHING"
	SigSetupCreated     SignalAction = "SETUP_CREATED"
	SigSkipRisk         SignalAction = "SKIP_RISK"
	SigSkipMarketStatus SignalAction = "SKIP_MARKET_STATUS"
	SigSkipSpread       SignalAction = "SKIP_SPREAD"
	SigSkipTrend        SignalAction = "SKIP_TREND"
	SigSkipChop         SignalAction = "SKIP_CHOP"
	SigSkipTrendFlip    SignalAction = "SKIP_TREND_FLIP"
	SigSkipEMAAlignment SignalAction = "SKIP_EMA_ALIGNMENT"
	SigSkipMeanBreak    SignalAction = "SKIP_MEAN_BREAK"
	SigSkipExpired      SignalAction = "SKIP_EXPIRED"
	SigSkipMacro        SignalAction = "SKIP_MACRO_ALIGNMENT"
	SigSkipM15          SignalAction = "SKIP_M15_STRENGTH"
	SigSkipRSI          SignalAction = "SKIP_RSI"
	SigSkipATRRatio     SignalAction = "SKIP_ATR_RATIO"
	SigSkipBody         SignalAction = "SKIP_BODY"
	SigSkipM1           SignalAction = "SKIP_M1_MICRO"
	SigSkipML           SignalAction = "SKIP_ML"
	SigSkipTPSanity     SignalAction = "SKIP_TP_SANITY"
)

// SignalRecord is the one-per-evaluation outcome of the gate chain.
type SignalRecord struct {
	Mode   PositionMode
	Action SignalAction
	Reason string
	Time   time.Time
}

// rsiPeriod is the Wilder RSI lookback used throughout the gate chain; it is
// not mode- or timeframe-specific, so it is not duplicated across config keys.
const rsiPeriod = 14

// StrategyEngine owns the gate chain against one epic.
type StrategyEngine struct {
	Epic    string
	Cfg     Config
	Broker  Broker
	State   *RuntimeState
	Candles *CandleStore
	ML      *MLGate
	Notify  *Notifier
	SQL     *SQLSink
}

// NewStrategyEngine wires the gate chain's collaborators.
func NewStrategyEngine(epic string, cfg Config, broker Broker, state *RuntimeState, candles *CandleStore, ml *MLGate, notify *Notifier, sql *SQLSink) *StrategyEngine {
	return &StrategyEngine{Epic: epic, Cfg: cfg, Broker: broker, State: state, Candles: candles, ML: ml, Notify: notify, SQL: sql}
}

func (e *StrategyEngine) modeParams(mode PositionMode) (entryTF, contextTF Timeframe, expiryBars, bosLookback int, size float64) {
	if mode == ModeSwing {
		return TF_H1, TF_H4, e.Cfg.SetupExpiryBarsSwing, e.Cfg.BOSLookbackSwing, e.Cfg.SwingSizeUnits
	}
	return TF_M5, TF_M15, e.Cfg.SetupExpiryBarsScalp, e.Cfg.BOSLookbackScalp, e.Cfg.ScalpSizeUnits
}

// Evaluate runs the full gate chain for mode against the freshest candle
// store contents and returns the single signal record it produced.
func (e *StrategyEngine) Evaluate(ctx context.Context, mode PositionMode, now time.Time) SignalRecord {
	rec := SignalRecord{Mode: mode, Time: now, Action: SigWatching}
	defer func() {
		IncSignal(string(mode), string(rec.Action))
		e.SQL.RecordSignal(e.Epic, mode, now, string(rec.Action), rec.Reason)
		logInfo("strategy", "signal evaluated", "mode", mode, "action", rec.Action, "reason", rec.Reason)
	}()

	entryTF, contextTF, expiryBars, bosLookback, size := e.modeParams(mode)

	// 1. Risk gate.
	if !e.State.RiskOK() {
		rec.Action, rec.Reason = SigSkipRisk, "daily risk budget exhausted"
		return rec
	}

	// 2. Market status.
	q, err := e.Broker.GetPrice(ctx, e.Epic)
	if err != nil {
		rec.Action, rec.Reason = SigOrderFailed, "price fetch failed: "+err.Error()
		return rec
	}
	e.SQL.RecordQuote(e.Epic, now, q)
	if q.Status != StatusTradeable {
		rec.Action, rec.Reason = SigSkipMarketStatus, "market status is "+string(q.Status)
		return rec
	}

	entryBars := e.Candles.get(entryTF)
	if len(entryBars) < e.Cfg.EMAPullbackPeriod+1 {
		rec.Reason = "insufficient entry tf history"
		return rec
	}
	entryCloses, entryHighs, entryLows := closes(entryBars), highs(entryBars), lows(entryBars)

	atr := ATR(entryHighs, entryLows, entryCloses, e.Cfg.ATRPeriod)
	if math.IsNaN(atr) {
		rec.Reason = "atr undefined on entry tf"
		return rec
	}

	// 3. Dynamic spread.
	spread := q.Spread()
	spreadCap := math.Min(e.Cfg.SpreadMax, math.Max(e.Cfg.SpreadMin, e.Cfg.KSpread*atr))
	if spread > spreadCap {
		rec.Action, rec.Reason = SigSkipSpread, "spread exceeds dynamic cap"
		return rec
	}

	// 4. Trend filter (context tf).
	contextBars := e.Candles.get(contextTF)
	trend := classifyTrend(closes(contextBars), e.Cfg.EMATrendPeriod)
	dir, hasTrend := trend.side()
	if !hasTrend {
		rec.Action, rec.Reason = SigSkipTrend, "no clear trend on context tf"
		return rec
	}

	// 5. Chop filter (entry tf).
	chopPass, spreadATR := chopOK(entryCloses, e.Cfg.EMAFastPeriod, e.Cfg.EMAPullbackPeriod, atr, e.Cfg.ChopMin)
	if !chopPass {
		rec.Action, rec.Reason = SigSkipChop, "entry tf ema separation below chop minimum"
		return rec
	}

	// 6. Setup state.
	setup := e.State.Setup(mode)
	if setup == nil {
		ns := tryCreateSetup(dir, entryBars, e.Cfg, now)
		if ns == nil {
			rec.Reason = "no setup: touch/rejection condition not met"
			return rec
		}
		e.State.SetSetup(mode, ns)
		rec.Action, rec.Reason = SigSetupCreated, "setup created on "+string(ns.TouchType)+" touch"
		return rec
	}

	// 7. Setup still valid.
	if ok, cause, reason := setupStillValid(setup, trend, entryBars, e.Cfg, expiryBars); !ok {
		e.State.ClearSetup(mode)
		rec.Action, rec.Reason = setupInvalidAction(cause), reason
		return rec
	}

	// 8. Update pullback extreme.
	lastBar := entryBars[len(entryBars)-1]
	if newExtreme, moved := advancePullbackExtreme(setup, lastBar); moved {
		e.State.UpdatePullbackExtreme(mode, newExtreme)
		setup.PullbackExtreme = newExtreme
	}

	// 9. H1 macro alignment (scalp only).
	if mode == ModeScalp {
		if ok, reason := h1MacroAligned(dir, e.Candles.get(TF_H1), e.Cfg); !ok {
			rec.Action, rec.Reason = SigSkipMacro, reason
			return rec
		}
	}

	// 10. Context-tf strength + slope (M15 for scalp, H4 for swing).
	m15Strength, m15Slope, m15OK, m15Reason := contextStrengthOK(dir, contextBars, e.Cfg)
	if !m15OK {
		rec.Action, rec.Reason = SigSkipM15, m15Reason
		return rec
	}

	// 11. BOS trigger.
	bos := evaluateBOS(dir, entryBars, bosLookback, spread, e.Cfg.BigCandleATRMax, e.Cfg.ATRMarginK, e.Cfg.ATRPeriod)
	if !bos.Triggered {
		rec.Reason = bos.Reason
		return rec
	}

	// 12. RSI gate (entry tf).
	rsi := RSI(entryCloses, rsiPeriod)
	if (dir == SideBuy && rsi < e.Cfg.RSIBuyMin) || (dir == SideSell && rsi > e.Cfg.RSISellMax) {
		rec.Action, rec.Reason = SigSkipRSI, "rsi outside directional band"
		return rec
	}

	// 13. ATR-ratio gate (entry tf).
	atrRatio := ATRRatio(entryHighs, entryLows, entryCloses, e.Cfg.ATRPeriod, e.Cfg.ATRRatioWindow)
	if atr < e.Cfg.ATRAbsMin || math.IsNaN(atrRatio) || atrRatio < e.Cfg.ATRRatioMin {
		rec.Action, rec.Reason = SigSkipATRRatio, "atr or atr-ratio below minimum"
		return rec
	}

	// 14. Body gate (entry tf).
	body := math.Abs(lastBar.C - lastBar.O)
	if body < e.Cfg.BodyK*atr {
		rec.Action, rec.Reason = SigSkipBody, "bos bar body too small relative to atr"
		return rec
	}

	// 15. M1 micro-confirm.
	if ok, reason := m1MicroConfirm(dir, e.Candles.get(TF_M1), e.Cfg); !ok {
		rec.Action, rec.Reason = SigSkipM1, reason
		return rec
	}

	// 16. ML gate.
	features := map[string]float64{
		"rsi":           rsi,
		"atr_ratio":     atrRatio,
		"atr":           atr,
		"spread_atr":    spreadATR,
		"m15_strength":  m15Strength,
		"m15_slope":     m15Slope,
		"body_atr":      body / atr,
		"bos_margin_atr": bos.Margin / atr,
	}
	if score, version, ok := e.ML.ChampionScore(features); ok {
		SetMLScore("champion", score)
		e.SQL.RecordPrediction(e.Epic, "champion", now, score, version)
		if (dir == SideBuy && score < e.Cfg.MLBuyThreshold) || (dir == SideSell && score > e.Cfg.MLSellThreshold) {
			rec.Action, rec.Reason = SigSkipML, "champion score on wrong side of threshold"
			return rec
		}
	}
	if score, version, ok := e.ML.ChallengerScore(features); ok {
		SetMLScore("challenger", score)
		e.SQL.RecordPrediction(e.Epic, "challenger", now, score, version)
	}

	// 17. Order issue. The setup is deactivated regardless of outcome.
	defer e.State.ClearSetup(mode)

	entry := q.Ask
	if dir == SideSell {
		entry = q.Bid
	}
	sltp := computeSLTP(mode, dir, entry, setup.PullbackExtreme, atr, e.Cfg)
	if !tp1SaneVsSpread(entry, sltp.TP1, spread, e.Cfg.MinTP1SpreadMult) {
		rec.Action, rec.Reason = SigSkipTPSanity, "tp1 too close to current spread"
		return rec
	}

	sl := e.Broker.RoundForEpic(e.Epic, sltp.SL)
	tp2 := e.Broker.RoundForEpic(e.Epic, sltp.TP2)
	dealRef, err := e.Broker.CreatePosition(ctx, OrderRequest{Epic: e.Epic, Direction: dir, Size: size, StopLevel: sl, ProfitLevel: tp2})
	if err != nil {
		rec.Action, rec.Reason = SigOrderFailed, "create position failed: "+err.Error()
		return rec
	}
	conf, err := e.Broker.ConfirmDeal(ctx, dealRef)
	if err != nil {
		rec.Action, rec.Reason = SigOrderFailed, "deal confirmation failed: "+err.Error()
		return rec
	}
	if conf.DealStatus != DealAccepted {
		rec.Action, rec.Reason = SigOrderFailed, "deal rejected"
		return rec
	}

	pos := Position{
		Mode: mode, Direction: dir, Size: size, Entry: entry,
		SL: sltp.SL, TP1: sltp.TP1, TP2: tp2,
		DealID: conf.DealID, DealReference: dealRef, OpenedAt: now,
	}
	e.State.AddPosition(pos)
	IncOrder(string(mode), string(dir))
	e.SQL.RecordTrade(pos.DealID, "open", now, mode, dir, pos.Size, pos.Entry, 0)
	e.Notify.OrderPlaced(mode, dir, pos.Entry, pos.SL, pos.TP1, pos.TP2)

	rec.Action, rec.Reason = SigOrderPlaced, "order placed"
	return rec
}

// setupInvalidAction maps a setupStillValid invalidation cause to its
// distinct signal action (§9).
func setupInvalidAction(cause invalidationCause) SignalAction {
	switch cause {
	case causeTrendFlip:
		return SigSkipTrendFlip
	case causeMeanBreak:
		return SigSkipMeanBreak
	case causeExpired:
		return SigSkipExpired
	default:
		return SigSkipEMAAlignment
	}
}

// h1MacroAligned implements §4.D.1 step 9.
func h1MacroAligned(dir OrderSide, h1Bars []Bar, cfg Config) (bool, string) {
	if len(h1Bars) < cfg.EMATrendPeriod+1 || len(h1Bars) < rsiPeriod+1 {
		return false, "insufficient h1 history"
	}
	c := closes(h1Bars)
	ema := EMA(c, cfg.EMATrendPeriod)
	rsi := RSI(c, rsiPeriod)
	if math.IsNaN(ema) || math.IsNaN(rsi) {
		return false, "h1 indicators undefined"
	}
	last := c[len(c)-1]
	if dir == SideBuy && last <= ema {
		return false, "h1 close not above h1 ema200"
	}
	if dir == SideSell && last >= ema {
		return false, "h1 close not below h1 ema200"
	}
	if rsi < cfg.Oversold || rsi > cfg.Overbought {
		return false, "h1 rsi outside oversold/overbought band"
	}
	return true, ""
}

// contextSlopeK is the bar offset used to measure EMA200 slope on the
// context timeframe (M15 for scalp, H4 for swing).
const contextSlopeK = 5

// contextStrengthOK implements §4.D.1 step 10 against contextBars, the same
// context timeframe used by the step-4 trend filter (M15 for scalp, H4 for
// swing) rather than a literal M15 regardless of mode.
func contextStrengthOK(dir OrderSide, contextBars []Bar, cfg Config) (strength, slope float64, ok bool, reason string) {
	if len(contextBars) < cfg.EMATrendPeriod+contextSlopeK+1 {
		return 0, 0, false, "insufficient context tf history"
	}
	c, h, l := closes(contextBars), highs(contextBars), lows(contextBars)
	ema := EMA(c, cfg.EMATrendPeriod)
	atr := ATR(h, l, c, cfg.ATRPeriod)
	if math.IsNaN(ema) || math.IsNaN(atr) || atr == 0 {
		return 0, 0, false, "context tf indicators undefined"
	}
	strength = math.Abs(c[len(c)-1]-ema) / atr
	slope = EMASlope(c, cfg.EMATrendPeriod, contextSlopeK, atr)
	if math.IsNaN(slope) {
		return strength, 0, false, "context tf slope undefined"
	}
	if strength < cfg.M15StrengthMin {
		return strength, slope, false, "context tf strength below minimum"
	}
	if dir == SideBuy && slope <= 0 {
		return strength, slope, false, "context tf ema200 slope not rising"
	}
	if dir == SideSell && slope >= 0 {
		return strength, slope, false, "context tf ema200 slope not falling"
	}
	return strength, slope, true, ""
}

// m1MicroConfirm implements §4.D.1 step 15.
func m1MicroConfirm(dir OrderSide, m1Bars []Bar, cfg Config) (bool, string) {
	if len(m1Bars) < cfg.M1EMASlowPeriod+1 {
		return false, "insufficient m1 history"
	}
	c := closes(m1Bars)
	fast := EMA(c, cfg.M1EMAFastPeriod)
	slow := EMA(c, cfg.M1EMASlowPeriod)
	if math.IsNaN(fast) || math.IsNaN(slow) {
		return false, "m1 ema undefined"
	}
	last := c[len(c)-1]
	if dir == SideBuy {
		if fast > slow && last > fast {
			return true, ""
		}
		return false, "m1 micro trend not confirmed for buy"
	}
	if fast < slow && last < fast {
		return true, ""
	}
	return false, "m1 micro trend not confirmed for sell"
}
