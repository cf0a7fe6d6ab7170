package engine

import (
	"log/slog"

	"soundgrid/ledger"
	"soundgrid/output"
)

func (e *Engine) sweepTick() {
	e.sweep()
	e.sweeper = e.clock.AfterFunc(e.cfg.SweepInterval, func() { e.post(e.sweepTick) })
}

// sweep recounts live resources from the instance lists, overwrites the
// ledger with the result, and forces a cleanup when a limit is exceeded.
func (e *Engine) sweep() ledger.Snapshot {
	if e.audio != nil && e.audio.State() == output.Closed {
		e.logger.Warn("Audio context closed, dropping it")
		e.audio = nil
		e.forcedCleanup("audio context closed")
	}
	e.buffers.DeleteExpired()

	snap := e.recount()
	e.ledger.Overwrite(snap)
	e.logger.Debug("Sweep",
		slog.Int("units", snap.Units),
		slog.Int("node_sets", snap.NodeSets),
		slog.Int("handles", snap.Handles))

	if snap.Exceeds(e.cfg.ResourceLimit) {
		e.logger.Warn("Resource limit exceeded, forcing cleanup",
			slog.Int("units", snap.Units),
			slog.Int("node_sets", snap.NodeSets),
			slog.Int("limit", e.cfg.ResourceLimit))
		e.forcedCleanup("resource limit")
		snap = e.ledger.Snapshot()
	}
	return snap
}

func (e *Engine) recount() ledger.Snapshot {
	var snap ledger.Snapshot
	count := func(in *Instance) {
		snap.Units++
		if !in.cached {
			snap.Handles++
		}
		if in.nodes != nil {
			snap.NodeSets++
		}
	}
	for _, st := range e.slots {
		if st.cached != nil {
			count(st.cached)
		}
		for _, in := range st.instances {
			if !in.cached {
				count(in)
			}
		}
	}
	return snap
}

// forcedCleanup halts and releases every instance, cached or not, cancels
// pending echoes and zeroes the ledger. Running it twice is harmless.
func (e *Engine) forcedCleanup(reason string) {
	e.cancelAllEchoes()
	for _, st := range e.slots {
		for _, in := range st.instances {
			in.halt()
			in.live = false
			e.release(in)
		}
		if st.cached != nil {
			st.cached.halt()
			st.cached.live = false
			e.release(st.cached)
		}
		st.instances = nil
		st.cached = nil
		st.playing = false
	}
	e.buffers.Flush()
	e.ledger.Reset()
	e.logger.Info("Forced cleanup", slog.String("reason", reason))
}
