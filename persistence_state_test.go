package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveLoadStateRoundTrip(t *testing.T) {
	cfg := Config{MaxTradesPerDay: 5, DailyLossLimitUSD: 100, MaxConsecutiveLosses: 5}
	rs := NewRuntimeState(cfg)
	rs.AddPosition(Position{DealID: "d1", Direction: SideBuy, Size: 2, Entry: 2000, SL: 1990, TP1: 2010, TP2: 2020, OpenedAt: time.Now()})
	rs.UpdatePnL(-5, true)
	rs.IncMiss("d1")

	path := filepath.Join(t.TempDir(), "state.json")
	if err := SaveState(rs, path, true); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored := NewRuntimeState(cfg)
	if err := LoadState(restored, path, true); err != nil {
		t.Fatalf("load: %v", err)
	}

	if restored.Counters().RealizedPnL != -5 || restored.Counters().ConsecutiveLosses != 1 {
		t.Fatalf("unexpected restored counters: %+v", restored.Counters())
	}
	pos := restored.Positions()
	if len(pos) != 1 || pos[0].DealID != "d1" {
		t.Fatalf("unexpected restored positions: %+v", pos)
	}
	if restored.MissCount("d1") != 1 {
		t.Fatal("restored miss counter should round-trip")
	}
}

func TestLoadStateMissingFileIsNotAnError(t *testing.T) {
	cfg := Config{}
	rs := NewRuntimeState(cfg)
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	if err := LoadState(rs, path, true); err != nil {
		t.Fatalf("a missing state file must not be an error, got %v", err)
	}
	if len(rs.Positions()) != 0 {
		t.Fatal("state should remain empty when nothing was persisted")
	}
}

func TestSaveStateDisabledIsNoOp(t *testing.T) {
	cfg := Config{}
	rs := NewRuntimeState(cfg)
	path := filepath.Join(t.TempDir(), "state.json")
	if err := SaveState(rs, path, false); err != nil {
		t.Fatalf("disabled persistence must not error: %v", err)
	}
	if _, err := os.Stat(path); err == nil {
		t.Fatal("disabled persistence must not write a file")
	}
}

func TestShouldFatalNoStateMountFalseWhenFileAlreadyExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	if err := SaveState(NewRuntimeState(Config{}), path, true); err != nil {
		t.Fatalf("seed state file: %v", err)
	}
	if ShouldFatalNoStateMount(path) {
		t.Fatal("an already-existing state file must never trip the fatal mount check")
	}
}

func TestShouldFatalNoStateMountTrueWhenParentDirMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-subdir", "state.json")
	if !ShouldFatalNoStateMount(path) {
		t.Fatal("a state file whose parent directory does not exist must trip the fatal check")
	}
}

func TestShouldFatalNoStateMountFalseOnEmptyPath(t *testing.T) {
	if ShouldFatalNoStateMount("") {
		t.Fatal("an empty state file path means persistence is disabled and must never fatal")
	}
}
