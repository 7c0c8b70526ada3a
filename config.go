// FILE: config.go
// Package main – Runtime configuration for the trading engine.
//
// Every threshold named by the strategy gate chain, the candle store, the
// scheduler cadences, and the broker session lives here, sourced from the
// environment with the teacher's getEnv*/defaults idiom. Nothing here is
// hot-tunable beyond process restart except where noted.
package main

import "strings"

// Config is the full, immutable-after-boot runtime configuration.
type Config struct {
	// Instrument / account
	Epic         string
	AccountType  string // "demo" | "live"
	BaseURL      string
	APIKey       string
	Email        string
	Password     string
	SwingEnabled bool
	DryRun       bool

	// Risk gates (§4.C)
	MaxTradesPerDay      int
	DailyLossLimitUSD    float64
	MaxConsecutiveLosses int

	// Position sizing
	ScalpSizeUnits float64
	SwingSizeUnits float64

	// Spread gate (§4.D.1 step 3)
	SpreadMax float64
	SpreadMin float64
	KSpread   float64

	// Indicator periods (§4.A / §4.D)
	EMATrendPeriod    int // 200, on context tf
	EMAFastPeriod     int // 20, entry tf
	EMAPullbackPeriod int // 50, entry tf
	ATRPeriod         int // 14, entry tf
	ATRRatioWindow    int // SMA window for ATR-ratio denominator
	M1EMAFastPeriod   int // 20, M1
	M1EMASlowPeriod   int // 50, M1

	// BOS (§4.D.3)
	BOSLookbackScalp int
	BOSLookbackSwing int
	BigCandleATRMax  float64
	ATRMarginK       float64

	// Setup lifecycle (§4.D.2, §4.D.1 step 7)
	SetupExpiryBarsScalp int
	SetupExpiryBarsSwing int
	InvalidationK        float64

	// Pullback touch tolerance (§4.D.2)
	ChopMin  float64 // chop_min
	TolBase  float64
	TolK     float64
	TolMax   float64
	FastMin  float64
	FastTol  float64
	ClosePct float64 // rejection-candle close position in range
	WickPct  float64 // rejection-candle opposite-wick fraction

	// H1 macro alignment (scalp) (§4.D.1 step 9)
	Oversold   float64
	Overbought float64

	// M15 strength + slope (§4.D.1 step 10)
	M15StrengthMin float64

	// RSI / ATR-ratio / body gates (§4.D.1 steps 12-14)
	RSIBuyMin   float64
	RSISellMax  float64
	ATRAbsMin   float64
	ATRRatioMin float64
	BodyK       float64

	// SL/TP computation (§4.D.4)
	SLBufferATR           float64
	TP1ATR                 float64 // scalp
	TP2ATR                 float64 // scalp
	TP1R                   float64 // swing, in R
	TP2RSwing              float64 // swing, in R
	PartialCloseTP1        float64 // fraction closed at TP1
	MoveSLToBreakevenOnTP1 bool
	MinTP1SpreadMult       float64

	// ML gate (§4.H)
	MLBuyThreshold  float64
	MLSellThreshold float64
	ChampionPath    string
	ChallengerPath  string

	// Candle store (§4.B)
	HistoryBars     int
	IncrementalBars int

	// Scheduler cadences, seconds (§4.G)
	TickPollSec      int
	M1PollSec        int
	M5PollSec        int
	M15PollSec       int
	H1PollSec        int
	H4PollSec        int
	ReconcilePollSec int
	StatusPollSec    int

	// Broker session (§5 "Shared resources")
	SessionRefreshSec int

	// Reconciler (§4.F)
	ReconcileMissThreshold int

	// Persistence (§4.I / §4.L)
	StateFile    string
	PersistState bool
	PostgresDSN  string

	// Notification sink (§6)
	NotifyWebhookURL string

	// Process controls
	Port           int
	StatusAuthKey  string
}

func loadConfigFromEnv() Config {
	return Config{
		Epic:         getEnv("EPIC", "XAUUSD"),
		AccountType:  strings.ToLower(getEnv("ACCOUNT_TYPE", "demo")),
		BaseURL:      resolveBaseURL(),
		APIKey:       getEnv("CAPITAL_API_KEY", ""),
		Email:        getEnv("CAPITAL_EMAIL", ""),
		Password:     getEnv("CAPITAL_PASSWORD", ""),
		SwingEnabled: getEnvBool("SWING_ENABLED", false),
		DryRun:       getEnvBool("DRY_RUN", true),

		MaxTradesPerDay:      getEnvInt("MAX_TRADES_PER_DAY", 3),
		DailyLossLimitUSD:    getEnvFloat("DAILY_LOSS_LIMIT_USD", 10.0),
		MaxConsecutiveLosses: getEnvInt("MAX_CONSECUTIVE_LOSSES", 3),

		ScalpSizeUnits: getEnvFloat("SCALP_SIZE_UNITS", 1),
		SwingSizeUnits: getEnvFloat("SWING_SIZE_UNITS", 1),

		SpreadMax: getEnvFloat("SPREAD_MAX", 0.60),
		SpreadMin: getEnvFloat("SPREAD_MIN", 0.05),
		KSpread:   getEnvFloat("K_SPREAD", 0.05),

		EMATrendPeriod:    getEnvInt("EMA_TREND_PERIOD", 200),
		EMAFastPeriod:     getEnvInt("EMA_FAST_PERIOD", 20),
		EMAPullbackPeriod: getEnvInt("EMA_PULLBACK_PERIOD", 50),
		ATRPeriod:         getEnvInt("ATR_PERIOD", 14),
		ATRRatioWindow:    getEnvInt("ATR_RATIO_WINDOW", 20),
		M1EMAFastPeriod:   getEnvInt("M1_EMA_FAST_PERIOD", 20),
		M1EMASlowPeriod:   getEnvInt("M1_EMA_SLOW_PERIOD", 50),

		BOSLookbackScalp: getEnvInt("BOS_LOOKBACK_SCALP", 8),
		BOSLookbackSwing: getEnvInt("BOS_LOOKBACK_SWING", 10),
		BigCandleATRMax:  getEnvFloat("BIG_CANDLE_ATR_MAX", 1.50),
		ATRMarginK:       getEnvFloat("ATR_MARGIN_K", 0.10),

		SetupExpiryBarsScalp: getEnvInt("SETUP_EXPIRY_BARS_SCALP", 6),
		SetupExpiryBarsSwing: getEnvInt("SETUP_EXPIRY_BARS_SWING", 12),
		InvalidationK:        getEnvFloat("INVALIDATION_K", 1.0),

		ChopMin:  getEnvFloat("CHOP_EMA_DIST_ATR_MIN", 0.12),
		TolBase:  getEnvFloat("PULLBACK_TOL_BASE", 0.40),
		TolK:     getEnvFloat("PULLBACK_TOL_K", 0.20),
		TolMax:   getEnvFloat("PULLBACK_TOL_MAX", 0.80),
		FastMin:  getEnvFloat("PULLBACK_FAST_MIN", 0.50),
		FastTol:  getEnvFloat("PULLBACK_FAST_TOL", 0.20),
		ClosePct: getEnvFloat("REJECTION_CLOSE_PCT", 0.60),
		WickPct:  getEnvFloat("REJECTION_WICK_PCT", 0.30),

		Oversold:   getEnvFloat("H1_RSI_OVERSOLD", 30),
		Overbought: getEnvFloat("H1_RSI_OVERBOUGHT", 70),

		M15StrengthMin: getEnvFloat("M15_STRENGTH_MIN", 0.25),

		RSIBuyMin:   getEnvFloat("RSI_BUY_MIN", 50),
		RSISellMax:  getEnvFloat("RSI_SELL_MAX", 50),
		ATRAbsMin:   getEnvFloat("ATR_ABS_MIN", 0.05),
		ATRRatioMin: getEnvFloat("ATR_RATIO_MIN", 0.80),
		BodyK:       getEnvFloat("BODY_K", 0.30),

		SLBufferATR:            getEnvFloat("SL_BUFFER_ATR", 0.15),
		TP1ATR:                 getEnvFloat("TP1_ATR", 0.8),
		TP2ATR:                 getEnvFloat("TP2_ATR", 1.6),
		TP1R:                   getEnvFloat("TP1_R", 1.0),
		TP2RSwing:              getEnvFloat("TP2_R_SWING", 3.0),
		PartialCloseTP1:        getEnvFloat("PARTIAL_CLOSE_TP1", 0.50),
		MoveSLToBreakevenOnTP1: getEnvBool("MOVE_SL_TO_BREAKEVEN_ON_TP1", true),
		MinTP1SpreadMult:       getEnvFloat("MIN_TP1_SPREAD_MULT", 1.5),

		MLBuyThreshold:  getEnvFloat("ML_BUY_THRESHOLD", 0.55),
		MLSellThreshold: getEnvFloat("ML_SELL_THRESHOLD", 0.45),
		ChampionPath:    getEnv("ML_CHAMPION_PATH", ""),
		ChallengerPath:  getEnv("ML_CHALLENGER_PATH", ""),

		HistoryBars:     getEnvInt("HISTORY_BARS", 300),
		IncrementalBars: getEnvInt("INCREMENTAL_BARS", 7),

		TickPollSec:      getEnvInt("TICK_POLL_S", 5),
		M1PollSec:        getEnvInt("M1_POLL_S", 10),
		M5PollSec:        getEnvInt("M5_POLL_S", 30),
		M15PollSec:       getEnvInt("M15_POLL_S", 60),
		H1PollSec:        getEnvInt("H1_POLL_S", 300),
		H4PollSec:        getEnvInt("H4_POLL_S", 1200),
		ReconcilePollSec: getEnvInt("RECONCILE_POLL_S", 60),
		StatusPollSec:    getEnvInt("STATUS_POLL_S", 60),

		SessionRefreshSec: getEnvInt("SESSION_REFRESH_S", 540),

		ReconcileMissThreshold: getEnvInt("RECONCILE_MISS_THRESHOLD", 3),

		StateFile:    getEnv("STATE_FILE", "./state/goldbot_state.json"),
		PersistState: getEnvBool("PERSIST_STATE", true),
		PostgresDSN:  getEnv("POSTGRES_DSN", ""),

		NotifyWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),

		Port:          getEnvInt("PORT", 8080),
		StatusAuthKey: getEnv("STATUS_AUTH_KEY", ""),
	}
}

func resolveBaseURL() string {
	if strings.ToLower(getEnv("ACCOUNT_TYPE", "demo")) == "live" {
		return getEnv("CAPITAL_BASE_URL_LIVE", "https://api-capital.backend-capital.com")
	}
	return getEnv("CAPITAL_BASE_URL_DEMO", "https://demo-api-capital.backend-capital.com")
}
