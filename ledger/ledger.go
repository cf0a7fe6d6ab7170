// Package ledger keeps derived counts of live playback resources.
//
// The counts are bookkeeping, not the source of truth: the engine overwrites
// them from its instance lists on every sweep.
package ledger

import "sync"

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Units    int `json:"units"`
	NodeSets int `json:"node_sets"`
	Handles  int `json:"handles"`
}

// Exceeds reports whether units or node-sets are above limit.
func (s Snapshot) Exceeds(limit int) bool {
	return s.Units > limit || s.NodeSets > limit
}

// Ledger counts sound-producing units, effect node-sets, and disposable clip handles.
type Ledger struct {
	mu       sync.Mutex
	current  Snapshot
	cleanups int
}

// New returns a zeroed ledger.
func New() *Ledger {
	return &Ledger{}
}

// AddUnit records a new sound-producing unit. disposable marks a one-shot
// that holds its own clip handle; cached instances do not.
func (l *Ledger) AddUnit(disposable bool) {
	l.mu.Lock()
	l.current.Units++
	if disposable {
		l.current.Handles++
	}
	l.mu.Unlock()
}

// RemoveUnit is the inverse of AddUnit. Counts never drop below zero.
func (l *Ledger) RemoveUnit(disposable bool) {
	l.mu.Lock()
	l.current.Units = max(l.current.Units-1, 0)
	if disposable {
		l.current.Handles = max(l.current.Handles-1, 0)
	}
	l.mu.Unlock()
}

// AddNodeSet records a connected pan/gain chain.
func (l *Ledger) AddNodeSet() {
	l.mu.Lock()
	l.current.NodeSets++
	l.mu.Unlock()
}

// RemoveNodeSet is the inverse of AddNodeSet.
func (l *Ledger) RemoveNodeSet() {
	l.mu.Lock()
	l.current.NodeSets = max(l.current.NodeSets-1, 0)
	l.mu.Unlock()
}

// Overwrite replaces the counters with values recomputed from authoritative state.
func (l *Ledger) Overwrite(s Snapshot) {
	l.mu.Lock()
	l.current = Snapshot{
		Units:    max(s.Units, 0),
		NodeSets: max(s.NodeSets, 0),
		Handles:  max(s.Handles, 0),
	}
	l.mu.Unlock()
}

// Reset zeroes the counters after a forced cleanup.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.current = Snapshot{}
	l.cleanups++
	l.mu.Unlock()
}

// Snapshot returns the current counters.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Cleanups returns how many forced cleanups have been recorded.
func (l *Ledger) Cleanups() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cleanups
}
