package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestNextUTCMidnightIsStrictlyAfterNow(t *testing.T) {
	now := time.Date(2026, 3, 5, 23, 59, 59, 0, time.UTC)
	next := nextUTCMidnight(now)
	want := time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("want %v, got %v", want, next)
	}
	if !next.After(now) {
		t.Fatal("next midnight must be strictly after now")
	}
}

func TestSchedulerRunsJobsPeriodically(t *testing.T) {
	var count int32
	sched := NewScheduler(NewRuntimeState(Config{}))
	sched.AddJob("test-job", 10*time.Millisecond, func(ctx context.Context) {
		atomic.AddInt32(&count, 1)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	sched.Run(ctx, func() float64 { return 0 })

	if atomic.LoadInt32(&count) < 2 {
		t.Fatalf("expected the job to fire multiple times, fired %d", count)
	}
}

func TestSchedulerSkipsOverlappingSlowJob(t *testing.T) {
	var concurrent int32
	var maxConcurrent int32
	sched := NewScheduler(NewRuntimeState(Config{}))
	sched.AddJob("slow-job", 5*time.Millisecond, func(ctx context.Context) {
		n := atomic.AddInt32(&concurrent, 1)
		if n > atomic.LoadInt32(&maxConcurrent) {
			atomic.StoreInt32(&maxConcurrent, n)
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&concurrent, -1)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	sched.Run(ctx, func() float64 { return 0 })

	if atomic.LoadInt32(&maxConcurrent) > 1 {
		t.Fatalf("busy flag must prevent overlapping runs of the same job, saw %d concurrent", maxConcurrent)
	}
}

func TestAddJobIgnoresNonPositivePeriod(t *testing.T) {
	sched := NewScheduler(NewRuntimeState(Config{}))
	sched.AddJob("disabled", 0, func(ctx context.Context) {})
	if len(sched.jobs) != 0 {
		t.Fatal("a zero or negative period must not register a job")
	}
}
