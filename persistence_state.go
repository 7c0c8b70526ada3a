// FILE: persistence_state.go
// Package main – Local atomic JSON snapshot of runtime state.
//
// Mirrors the teacher's saveStateFrom/loadState write-temp-then-rename
// idiom and its startup mount fail-fast check, applied to the new
// RuntimeState shape (positions, daily counters, reconcile miss counters).
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// StateSnapshot is the serializable view of RuntimeState persisted to disk.
type StateSnapshot struct {
	Counters  DailyCounters        `json:"counters"`
	Positions []Position           `json:"positions"`
	MissCount map[string]int       `json:"missCount"`
}

// Snapshot builds a StateSnapshot from the current runtime state.
func (rs *RuntimeState) Snapshot() StateSnapshot {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	positions := make([]Position, 0, len(rs.positions))
	for _, p := range rs.positions {
		positions = append(positions, *p)
	}
	missCopy := make(map[string]int, len(rs.missCount))
	for k, v := range rs.missCount {
		missCopy[k] = v
	}
	return StateSnapshot{
		Counters:  rs.counters,
		Positions: positions,
		MissCount: missCopy,
	}
}

// Restore replaces the runtime state's positions, counters, and miss map
// with a previously persisted snapshot. Setups are never persisted; they are
// rebuilt fresh from live candle data after restart.
func (rs *RuntimeState) Restore(st StateSnapshot) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.counters = st.Counters
	rs.positions = make(map[string]*Position, len(st.Positions))
	for _, p := range st.Positions {
		cp := p
		rs.positions[p.DealID] = &cp
	}
	rs.missCount = make(map[string]int, len(st.MissCount))
	for k, v := range st.MissCount {
		rs.missCount[k] = v
	}
}

// SaveState writes the current runtime state to path using the teacher's
// write-temp-then-rename idiom, when persistence is enabled.
func SaveState(rs *RuntimeState, path string, enabled bool) error {
	if !enabled || path == "" {
		return nil
	}
	bs, err := json.MarshalIndent(rs.Snapshot(), "", " ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, bs, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadState reads a previously saved snapshot from path and restores it into
// rs. A missing file is not an error: the engine simply starts empty.
func LoadState(rs *RuntimeState, path string, enabled bool) error {
	if !enabled || path == "" {
		return nil
	}
	bs, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var st StateSnapshot
	if err := json.Unmarshal(bs, &st); err != nil {
		return err
	}
	rs.Restore(st)
	return nil
}

// ShouldFatalNoStateMount reports whether stateFile's parent directory is
// missing, unwritable, or (when persistence is expected to survive restarts)
// not a mounted volume — mirroring the teacher's startup fail-fast check so
// that a misconfigured deployment is caught immediately rather than silently
// losing state on every restart.
func ShouldFatalNoStateMount(stateFile string) bool {
	stateFile = strings.TrimSpace(stateFile)
	if stateFile == "" {
		return false
	}
	dir := filepath.Dir(stateFile)

	if _, err := os.Stat(stateFile); err == nil {
		return false
	}

	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		return true
	}

	if f, err := os.CreateTemp(dir, "wtest-*.tmp"); err == nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
	} else {
		return true
	}

	isMount, err := isMountedDir(dir)
	if err == nil && !isMount {
		return true
	}
	return false
}

// isMountedDir checks /proc/self/mountinfo to see if dir is a mount point.
func isMountedDir(dir string) (bool, error) {
	bs, err := os.ReadFile("/proc/self/mountinfo")
	if err != nil {
		return false, err
	}
	dir = filepath.Clean(dir)
	for _, ln := range strings.Split(string(bs), "\n") {
		parts := strings.Split(ln, " ")
		if len(parts) < 5 {
			continue
		}
		if filepath.Clean(parts[4]) == dir {
			return true, nil
		}
	}
	return false, fmt.Errorf("mount point not found for %s", dir)
}
