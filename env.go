// FILE: env.go
// Package main – Environment helpers for the trading bot.
//
// This file provides:
//   1) Small helpers to read environment variables with sane defaults
//      (strings, ints, floats, bools).
//   2) A safe loader (loadBotEnv) that reads /opt/goldbot/env/bot.env only,
//      setting only variables not already present in the process env.
//
// Notes:
//   - The bot never requires `export $(cat .env ...)`.

package main

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
)

// --------- Env helpers (used across files) ---------

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
func getEnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
func getEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "y", "yes":
		return true
	case "0", "false", "n", "no":
		return false
	case "":
		return def
	default:
		return def
	}
}
func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// --------- .env loader (bot-only) ---------

// loadBotEnv reads /opt/goldbot/env/bot.env and sets ONLY the keys the engine
// needs, without overriding variables already present in the environment.
func loadBotEnv() {
	path := getEnv("BOT_ENV_FILE", "/opt/goldbot/env/bot.env")
	f, err := os.Open(path)
	if err != nil {
		log.Printf("env: %s not found, relying on process env", path)
		return
	}
	defer f.Close()

	needed := map[string]struct{}{
		"EPIC": {}, "ACCOUNT_TYPE": {}, "CAPITAL_API_KEY": {}, "CAPITAL_EMAIL": {}, "CAPITAL_PASSWORD": {},
		"CAPITAL_BASE_URL_LIVE": {}, "CAPITAL_BASE_URL_DEMO": {}, "SWING_ENABLED": {}, "DRY_RUN": {},
		"MAX_TRADES_PER_DAY": {}, "DAILY_LOSS_LIMIT_USD": {}, "MAX_CONSECUTIVE_LOSSES": {},
		"SCALP_SIZE_UNITS": {}, "SWING_SIZE_UNITS": {},
		"SPREAD_MAX": {}, "SPREAD_MIN": {}, "K_SPREAD": {},
		"EMA_TREND_PERIOD": {}, "EMA_FAST_PERIOD": {}, "EMA_PULLBACK_PERIOD": {}, "ATR_PERIOD": {}, "ATR_RATIO_WINDOW": {},
		"M1_EMA_FAST_PERIOD": {}, "M1_EMA_SLOW_PERIOD": {},
		"BOS_LOOKBACK_SCALP": {}, "BOS_LOOKBACK_SWING": {}, "BIG_CANDLE_ATR_MAX": {}, "ATR_MARGIN_K": {},
		"SETUP_EXPIRY_BARS_SCALP": {}, "SETUP_EXPIRY_BARS_SWING": {}, "INVALIDATION_K": {},
		"CHOP_EMA_DIST_ATR_MIN": {}, "PULLBACK_TOL_BASE": {}, "PULLBACK_TOL_K": {}, "PULLBACK_TOL_MAX": {},
		"PULLBACK_FAST_MIN": {}, "PULLBACK_FAST_TOL": {}, "REJECTION_CLOSE_PCT": {}, "REJECTION_WICK_PCT": {},
		"H1_RSI_OVERSOLD": {}, "H1_RSI_OVERBOUGHT": {}, "M15_STRENGTH_MIN": {},
		"RSI_BUY_MIN": {}, "RSI_SELL_MAX": {}, "ATR_ABS_MIN": {}, "ATR_RATIO_MIN": {}, "BODY_K": {},
		"SL_BUFFER_ATR": {}, "TP1_ATR": {}, "TP2_ATR": {}, "TP1_R": {}, "TP2_R_SWING": {},
		"PARTIAL_CLOSE_TP1": {}, "MOVE_SL_TO_BREAKEVEN_ON_TP1": {}, "MIN_TP1_SPREAD_MULT": {},
		"ML_BUY_THRESHOLD": {}, "ML_SELL_THRESHOLD": {}, "ML_CHAMPION_PATH": {}, "ML_CHALLENGER_PATH": {},
		"HISTORY_BARS": {}, "INCREMENTAL_BARS": {},
		"TICK_POLL_S": {}, "M1_POLL_S": {}, "M5_POLL_S": {}, "M15_POLL_S": {}, "H1_POLL_S": {}, "H4_POLL_S": {},
		"RECONCILE_POLL_S": {}, "STATUS_POLL_S": {}, "SESSION_REFRESH_S": {}, "RECONCILE_MISS_THRESHOLD": {},
		"STATE_FILE": {}, "PERSIST_STATE": {}, "POSTGRES_DSN": {}, "NOTIFY_WEBHOOK_URL": {},
		"PORT": {}, "LOG_LEVEL": {}, "STATUS_AUTH_KEY": {},
	}

	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(line[len("export "):])
		}
		eq := strings.Index(line, "=")
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		if _, ok := needed[key]; !ok {
			continue
		}
		val := strings.TrimSpace(line[eq+1:])
		if len(val) >= 2 && ((val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'')) {
			val = val[1 : len(val)-1]
		}
		if idx := strings.Index(val, "#"); idx >= 0 {
			val = strings.TrimSpace(val[:idx])
		}
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}
	log.Printf("env: loaded %s", path)
}
