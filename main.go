// FILE: main.go
// Package main – Program entrypoint: boot sequence, scheduler wiring, and
// HTTP surface.
//
// Boot sequence:
//   1) loadBotEnv()       – read the restricted-allowlist .env file
//   2) loadConfigFromEnv() – build the runtime Config
//   3) initLogger()       – structured zap logging
//   4) wire broker/state/candles/ml/notify/sql
//   5) warm up candle stores, restore persisted state
//   6) start the scheduler's independent jobs
//   7) serve /healthz, /metrics, /status
//   8) block until SIGINT/SIGTERM, then shut down everything best-effort
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	loadBotEnv()
	cfg := loadConfigFromEnv()
	initLogger()
	defer syncLogger()

	notifier := NewNotifier(cfg.NotifyWebhookURL)

	if ShouldFatalNoStateMount(cfg.StateFile) {
		logError("main", "state file parent directory is not a durable mount", "path", cfg.StateFile)
		notifier.Fatal("state mount check failed: " + cfg.StateFile)
		os.Exit(1)
	}

	var broker Broker
	if cfg.DryRun {
		broker = NewPaperBroker()
	} else {
		broker = NewRESTBroker(cfg)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := broker.CreateSession(ctx); err != nil {
		logError("main", "broker session creation failed", "err", err)
		notifier.Fatal("broker session creation failed: " + err.Error())
		os.Exit(1)
	}
	defer func() {
		shCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = broker.DestroySession(shCtx)
	}()

	state := NewRuntimeState(cfg)
	if err := LoadState(state, cfg.StateFile, cfg.PersistState); err != nil {
		logWarn("main", "state load failed, starting empty", "err", err)
	}
	adoptExistingPositions(ctx, broker, state)

	candles := NewCandleStore(cfg.HistoryBars)
	warmupCandles(ctx, candles, broker, cfg.Epic, cfg.HistoryBars)

	sqlSink := NewSQLSink(cfg.PostgresDSN)
	defer sqlSink.Close()

	mlGate := NewMLGate(cfg.ChampionPath, cfg.ChallengerPath)
	mlGate.Reload()

	scalpEngine := NewStrategyEngine(cfg.Epic, cfg, broker, state, candles, mlGate, notifier, sqlSink)
	posMgr := NewPositionManager(cfg.Epic, cfg, broker, state, notifier, sqlSink)
	recon := NewReconciler(cfg.Epic, cfg, broker, state, notifier, sqlSink)

	sched := NewScheduler(state)
	sched.AddJob("m1-update", time.Duration(cfg.M1PollSec)*time.Second, tfRefreshJob(candles, broker, cfg.Epic, TF_M1, cfg.IncrementalBars, sqlSink, nil, ""))
	sched.AddJob("m5-update-scalp", time.Duration(cfg.M5PollSec)*time.Second, tfRefreshJob(candles, broker, cfg.Epic, TF_M5, cfg.IncrementalBars, sqlSink, scalpEngine, ModeScalp))
	sched.AddJob("m15-update", time.Duration(cfg.M15PollSec)*time.Second, tfRefreshJob(candles, broker, cfg.Epic, TF_M15, cfg.IncrementalBars, sqlSink, nil, ""))

	if cfg.SwingEnabled {
		swingEngine := NewStrategyEngine(cfg.Epic, cfg, broker, state, candles, mlGate, notifier, sqlSink)
		sched.AddJob("h1-update-swing", time.Duration(cfg.H1PollSec)*time.Second, tfRefreshJob(candles, broker, cfg.Epic, TF_H1, cfg.IncrementalBars, sqlSink, swingEngine, ModeSwing))
	} else {
		sched.AddJob("h1-update", time.Duration(cfg.H1PollSec)*time.Second, tfRefreshJob(candles, broker, cfg.Epic, TF_H1, cfg.IncrementalBars, sqlSink, nil, ""))
	}
	sched.AddJob("h4-update", time.Duration(cfg.H4PollSec)*time.Second, tfRefreshJob(candles, broker, cfg.Epic, TF_H4, cfg.IncrementalBars, sqlSink, nil, ""))

	sched.AddJob("tick", time.Duration(cfg.TickPollSec)*time.Second, func(ctx context.Context) {
		posMgr.Tick(ctx)
	})
	sched.AddJob("reconcile", time.Duration(cfg.ReconcilePollSec)*time.Second, func(ctx context.Context) {
		recon.Run(ctx)
	})
	sched.AddJob("session-refresh", time.Duration(cfg.SessionRefreshSec)*time.Second, func(ctx context.Context) {
		if err := broker.RefreshSession(ctx); err != nil {
			logWarn("main", "session refresh failed", "err", err)
		}
	})
	sched.AddJob("status", time.Duration(cfg.StatusPollSec)*time.Second, func(ctx context.Context) {
		SetRealizedPnL(state.Counters().RealizedPnL)
		SetOpenPositions(len(state.Positions()))
		if err := SaveState(state, cfg.StateFile, cfg.PersistState); err != nil {
			logWarn("main", "state save failed", "err", err)
		}
	})
	sched.AddJob("mlgate-reload", 5*time.Minute, func(ctx context.Context) {
		mlGate.Reload()
	})

	auth := NewStatusAuthenticator(cfg.StatusAuthKey)
	mux := chi.NewRouter()
	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.With(auth.Middleware).Get("/status", statusHandler(state))

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: mux}
	go func() {
		logInfo("main", "serving http", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logError("main", "http server failed", "err", err)
		}
	}()

	// The broker contract exposes no account-balance endpoint, so startEquity
	// tracks cumulative realized PnL carried into the new day rather than a
	// true account balance.
	equityAtBoot := func() float64 { return state.Counters().RealizedPnL }
	sched.Run(ctx, equityAtBoot)

	shCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
	defer c()
	_ = srv.Shutdown(shCtx)
	if err := SaveState(state, cfg.StateFile, cfg.PersistState); err != nil {
		logWarn("main", "final state save failed", "err", err)
	}
	logInfo("main", "shutdown complete")
}

// adoptExistingPositions discovers platform positions already open at boot
// (e.g. left over from a previous run) and folds the valid ones into state
// under ModeAdopted, skipping anything already tracked by a restored state
// snapshot. A remote position missing its entry level or stop level fails
// ErrInvalidAdoption and is left for the broker's own SL/TP to manage.
func adoptExistingPositions(ctx context.Context, broker Broker, state *RuntimeState) {
	remote, err := broker.GetPositions(ctx)
	if err != nil {
		logWarn("main", "startup position adoption: list failed", "err", err)
		return
	}
	known := make(map[string]bool)
	for _, p := range state.Positions() {
		known[p.DealID] = true
	}
	for _, rp := range remote {
		if known[rp.DealID] {
			continue
		}
		if rp.Level == 0 || rp.StopLevel == 0 {
			logWarn("main", "startup position adoption: invalid, skipping", "dealId", rp.DealID, "err", ErrInvalidAdoption)
			continue
		}
		state.AdoptPosition(Position{
			DealID:    rp.DealID,
			Direction: rp.Direction,
			Size:      rp.Size,
			Entry:     rp.Level,
			SL:        rp.StopLevel,
			TP2:       rp.LimitLevel,
			OpenedAt:  time.Now(),
		})
		logInfo("main", "adopted pre-existing position", "dealId", rp.DealID, "direction", rp.Direction, "size", rp.Size)
	}
}

// warmupCandles seeds every tracked timeframe from the broker at boot.
func warmupCandles(ctx context.Context, cs *CandleStore, broker Broker, epic string, max int) {
	for _, tf := range []Timeframe{TF_M1, TF_M5, TF_M15, TF_H1, TF_H4} {
		bars, err := broker.GetCandles(ctx, epic, tf, max)
		if err != nil {
			logWarn("main", "warmup candle fetch failed", "tf", tf, "err", err)
			continue
		}
		cs.loadHistory(tf, bars, time.Now())
	}
}

// tfRefreshJob returns a scheduler job body that incrementally updates tf's
// candle sequence and, when engine is non-nil, evaluates the gate chain for
// mode on every newly closed bar.
func tfRefreshJob(cs *CandleStore, broker Broker, epic string, tf Timeframe, max int, sql *SQLSink, engine *StrategyEngine, mode PositionMode) func(context.Context) {
	return func(ctx context.Context) {
		bars, err := broker.GetCandles(ctx, epic, tf, max)
		if err != nil {
			logWarn("main", "candle refresh failed", "tf", tf, "err", err)
			return
		}
		now := time.Now()
		added := cs.update(tf, bars, now)
		if !added {
			return
		}
		if seq := cs.get(tf); len(seq) > 0 {
			sql.RecordCandle(epic, tf, seq[len(seq)-1])
		}
		if engine != nil {
			engine.Evaluate(ctx, mode, now)
		}
	}
}

type statusResponse struct {
	RealizedPnL       float64    `json:"realizedPnl"`
	TradesCount       int        `json:"tradesCount"`
	ConsecutiveLosses int        `json:"consecutiveLosses"`
	OpenPositions     int        `json:"openPositions"`
	Positions         []Position `json:"positions"`
}

func statusHandler(state *RuntimeState) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		counters := state.Counters()
		positions := state.Positions()
		resp := statusResponse{
			RealizedPnL:       counters.RealizedPnL,
			TradesCount:       counters.TradesCount,
			ConsecutiveLosses: counters.ConsecutiveLosses,
			OpenPositions:     len(positions),
			Positions:         positions,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
