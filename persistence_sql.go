// FILE: persistence_sql.go
// Package main – Optional relational sink (lib/pq) for candles, signals,
// predictions, trades, and quotes.
//
// Loss-tolerant: every Record* call swallows and logs its own error rather
// than propagating it into the scheduler loop. A component that never got a
// PostgresDSN configured runs as a silent no-op, matching the teacher's
// "absent means off" convention for optional sinks.
package main

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

const sqlSchema = `
CREATE TABLE IF NOT EXISTS candles (
	epic TEXT NOT NULL,
	tf   TEXT NOT NULL,
	t    TIMESTAMPTZ NOT NULL,
	o DOUBLE PRECISION NOT NULL, h DOUBLE PRECISION NOT NULL,
	l DOUBLE PRECISION NOT NULL, c DOUBLE PRECISION NOT NULL,
	v DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (epic, tf, t)
);
CREATE TABLE IF NOT EXISTS signals (
	epic TEXT NOT NULL, mode TEXT NOT NULL, t TIMESTAMPTZ NOT NULL,
	action TEXT NOT NULL, reason TEXT NOT NULL,
	PRIMARY KEY (epic, mode, t)
);
CREATE TABLE IF NOT EXISTS predictions (
	epic TEXT NOT NULL, model TEXT NOT NULL, t TIMESTAMPTZ NOT NULL,
	score DOUBLE PRECISION NOT NULL, version TEXT NOT NULL,
	PRIMARY KEY (epic, model, t)
);
CREATE TABLE IF NOT EXISTS trades (
	deal_id TEXT NOT NULL, leg TEXT NOT NULL, t TIMESTAMPTZ NOT NULL,
	mode TEXT NOT NULL, direction TEXT NOT NULL,
	size DOUBLE PRECISION NOT NULL, price DOUBLE PRECISION NOT NULL,
	pnl DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (deal_id, leg)
);
CREATE TABLE IF NOT EXISTS quotes (
	epic TEXT NOT NULL, t TIMESTAMPTZ NOT NULL,
	bid DOUBLE PRECISION NOT NULL, ask DOUBLE PRECISION NOT NULL, status TEXT NOT NULL,
	PRIMARY KEY (epic, t)
);
`

// SQLSink is a best-effort lib/pq-backed persistence sink. A nil *SQLSink (or
// one with db == nil) makes every method a no-op.
type SQLSink struct {
	db *sql.DB
}

// NewSQLSink opens dsn and ensures the schema exists. An empty dsn yields a
// disabled sink rather than an error, since Postgres persistence is optional.
func NewSQLSink(dsn string) *SQLSink {
	if dsn == "" {
		return &SQLSink{}
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logWarn("sql", "open failed", "err", err)
		return &SQLSink{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		logWarn("sql", "ping failed", "err", err)
		return &SQLSink{}
	}
	if _, err := db.ExecContext(ctx, sqlSchema); err != nil {
		logWarn("sql", "schema migration failed", "err", err)
		return &SQLSink{}
	}
	return &SQLSink{db: db}
}

func (s *SQLSink) enabled() bool { return s != nil && s.db != nil }

// RecordCandle upserts a single closed bar, ignoring duplicates.
func (s *SQLSink) RecordCandle(epic string, tf Timeframe, b Bar) {
	if !s.enabled() {
		return
	}
	_, err := s.db.Exec(
		`INSERT INTO candles (epic, tf, t, o, h, l, c, v) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT DO NOTHING`,
		epic, string(tf), b.T, b.O, b.H, b.L, b.C, b.V,
	)
	if err != nil {
		logWarn("sql", "record candle failed", "err", err)
	}
}

// RecordSignal appends a gate-chain signal record.
func (s *SQLSink) RecordSignal(epic string, mode PositionMode, t time.Time, action, reason string) {
	if !s.enabled() {
		return
	}
	_, err := s.db.Exec(
		`INSERT INTO signals (epic, mode, t, action, reason) VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT DO NOTHING`,
		epic, string(mode), t, action, reason,
	)
	if err != nil {
		logWarn("sql", "record signal failed", "err", err)
	}
}

// RecordPrediction appends an ML gate score for a model slot.
func (s *SQLSink) RecordPrediction(epic, model string, t time.Time, score float64, version string) {
	if !s.enabled() {
		return
	}
	_, err := s.db.Exec(
		`INSERT INTO predictions (epic, model, t, score, version) VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT DO NOTHING`,
		epic, model, t, score, version,
	)
	if err != nil {
		logWarn("sql", "record prediction failed", "err", err)
	}
}

// RecordTrade appends a single trade leg (open, tp1, tp2, sl, close).
func (s *SQLSink) RecordTrade(dealID, leg string, t time.Time, mode PositionMode, dir OrderSide, size, price, pnl float64) {
	if !s.enabled() {
		return
	}
	_, err := s.db.Exec(
		`INSERT INTO trades (deal_id, leg, t, mode, direction, size, price, pnl) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT DO NOTHING`,
		dealID, leg, t, string(mode), string(dir), size, price, pnl,
	)
	if err != nil {
		logWarn("sql", "record trade failed", "err", err)
	}
}

// RecordQuote appends a point-in-time bid/ask/status sample.
func (s *SQLSink) RecordQuote(epic string, t time.Time, q Quote) {
	if !s.enabled() {
		return
	}
	_, err := s.db.Exec(
		`INSERT INTO quotes (epic, t, bid, ask, status) VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT DO NOTHING`,
		epic, t, q.Bid, q.Ask, string(q.Status),
	)
	if err != nil {
		logWarn("sql", "record quote failed", "err", err)
	}
}

// Close releases the underlying connection pool, if any.
func (s *SQLSink) Close() error {
	if !s.enabled() {
		return nil
	}
	return s.db.Close()
}
