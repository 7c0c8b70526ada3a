// FILE: scheduler.go
// Package main – Independent periodic jobs with non-overlap guards.
//
// Generalizes the teacher's single ticker/ctx.Done loop (live.go's runLive)
// into N independently-cadenced jobs, each carrying its own busy flag so a
// slow iteration is skipped rather than overlapped, plus a one-shot
// UTC-midnight daily-reset alarm that re-arms itself.
package main

import (
	"context"
	"sync/atomic"
	"time"
)

// job is one periodic unit of work: a cadence and a body. The scheduler
// guarantees bodies never run concurrently with themselves.
type job struct {
	name    string
	period  time.Duration
	body    func(ctx context.Context)
	busy    atomic.Bool
}

// Scheduler owns every periodic job plus the daily-reset alarm and graceful
// shutdown.
type Scheduler struct {
	jobs  []*job
	state *RuntimeState
}

// NewScheduler returns an empty scheduler bound to state (for the daily
// reset alarm).
func NewScheduler(state *RuntimeState) *Scheduler {
	return &Scheduler{state: state}
}

// AddJob registers a periodic job. period <= 0 disables the job entirely.
func (s *Scheduler) AddJob(name string, period time.Duration, body func(ctx context.Context)) {
	if period <= 0 {
		return
	}
	s.jobs = append(s.jobs, &job{name: name, period: period, body: body})
}

// Run starts every job and the daily-reset alarm, blocking until ctx is
// cancelled (SIGINT/SIGTERM via signal.NotifyContext at the caller).
func (s *Scheduler) Run(ctx context.Context, equityAtBoot func() float64) {
	for _, j := range s.jobs {
		go s.runJob(ctx, j)
	}
	go s.runDailyReset(ctx, equityAtBoot)
	<-ctx.Done()
	logInfo("scheduler", "shutdown signal received, jobs observe cancellation and return")
}

func (s *Scheduler) runJob(ctx context.Context, j *job) {
	ticker := time.NewTicker(j.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !j.busy.CompareAndSwap(false, true) {
				logDebug("scheduler", "job tick skipped, previous iteration still running", "job", j.name)
				continue
			}
			j.body(ctx)
			j.busy.Store(false)
		}
	}
}

// nextUTCMidnight returns the next UTC midnight strictly after now.
func nextUTCMidnight(now time.Time) time.Time {
	u := now.UTC()
	next := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return next
}

// runDailyReset arms a one-shot timer to the next UTC midnight, performs the
// reset, then re-arms itself indefinitely until ctx is cancelled.
func (s *Scheduler) runDailyReset(ctx context.Context, equityAtBoot func() float64) {
	for {
		now := time.Now().UTC()
		wait := nextUTCMidnight(now).Sub(now)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			equity := equityAtBoot()
			s.state.DailyReset(equity)
			logInfo("scheduler", "daily reset applied", "equity", equity)
		}
	}
}
