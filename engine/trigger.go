package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/gopxl/beep/v2"

	"soundgrid/output"
	"soundgrid/slot"
)

func (e *Engine) trigger(id slot.ID) error {
	p, err := e.store.Get(id)
	if err != nil {
		return err
	}
	logger := e.logger.With(slog.Int("slot", int(id)))
	if !p.HasClip() {
		logger.Debug("Trigger ignored, slot is empty")
		return nil
	}

	st := e.state(id)
	if p.Loop && st.playing {
		e.stopSlot(id)
		logger.Debug("Loop stopped")
		return nil
	}

	e.enforceCap(id, st, e.cfg.InstanceCap-1)

	audio, ok := e.ensureContext()
	if !ok {
		return nil
	}

	if p.EchoActive() {
		e.scheduleEcho(id, p)
		return nil
	}
	return e.playCached(id, st, p, audio)
}

// playCached (re)starts the slot's long-lived instance.
func (e *Engine) playCached(id slot.ID, st *slotState, p slot.Parameters, audio output.Context) error {
	// Bind first: a running instance keeps playing when there is no route.
	sink := e.bind(audio)
	if sink == nil {
		e.settle(id)
		return nil
	}

	in := st.cached
	fresh := in == nil
	if fresh {
		in = e.newInstance(id, e.buffer(id, p), true)
		st.cached = in
	} else {
		in.halt()
		e.deregister(in)
	}

	in.loop = p.Loop
	in.speed = p.Speed
	in.started = e.clock.Now()
	in.volume = min(p.Gain, 1)
	in.sink = sink
	if fresh && needsGraph(p) {
		e.connect(in, p.Balance, p.Gain)
	}
	if in.nodes != nil {
		in.volume = 1
	}

	e.register(in)
	return e.start(in, audio)
}

// needsGraph reports whether playback requires the pan/gain chain.
func needsGraph(p slot.Parameters) bool {
	return p.Balance != 0 || p.Gain > 1 || (p.EchoDelay > 0 && !p.EchoActive())
}

func (e *Engine) newInstance(id slot.ID, buf *beep.Buffer, cached bool) *Instance {
	e.nextID++
	in := &Instance{
		id:     e.nextID,
		slot:   id,
		buffer: buf,
		cached: cached,
		speed:  1,
		volume: 1,
	}
	e.ledger.AddUnit(!cached)
	return in
}

// connect attaches a node-set; a wiring failure leaves the direct path in place.
func (e *Engine) connect(in *Instance, pan, gain float64) {
	nodes, err := newNodeSet(pan, gain)
	if err != nil {
		e.logger.Warn("Playing without effects", slog.Int("slot", int(in.slot)), slog.Any("error", err))
		return
	}
	in.nodes = nodes
	e.ledger.AddNodeSet()
}

func (e *Engine) disconnect(in *Instance) {
	if in.nodes == nil {
		return
	}
	in.nodes = nil
	e.ledger.RemoveNodeSet()
}

// bind resolves the output sink for a new start. nil means no route at all.
func (e *Engine) bind(audio output.Context) output.Sink {
	sink, err := e.router.Bind(audio)
	if err != nil {
		e.logger.Warn("No output route available", slog.Any("error", err))
		return nil
	}
	return sink
}

// start begins playback, resuming a suspended context once before giving up.
func (e *Engine) start(in *Instance, audio output.Context) error {
	onEnd := func(gen uint64) {
		e.post(func() { e.ended(in, gen) })
	}
	err := in.play(audio.SampleRate(), e.cfg.ResampleQuality, onEnd)
	if errors.Is(err, output.ErrSuspended) {
		if rerr := audio.Resume(); rerr != nil {
			e.logger.Warn("Failed to resume audio context", slog.Any("error", rerr))
		}
		err = in.play(audio.SampleRate(), e.cfg.ResampleQuality, onEnd)
	}
	if err == nil {
		return nil
	}

	in.halt()
	e.deregister(in)
	if !in.cached {
		e.release(in)
	}
	e.settle(in.slot)
	return fmt.Errorf("%w: slot %d: %v", ErrPlaybackRejected, in.slot, err)
}

func (e *Engine) register(in *Instance) {
	st := e.state(in.slot)
	if !in.live {
		st.instances = append(st.instances, in)
		in.live = true
	}
	st.playing = true
}

// deregister removes in from its slot's list. Safe to repeat.
func (e *Engine) deregister(in *Instance) {
	if !in.live {
		return
	}
	in.live = false
	st := e.state(in.slot)
	st.instances = slices.DeleteFunc(st.instances, func(x *Instance) bool { return x == in })
}

// release drops the instance's clip handle and node-set. Cached instances
// are only released when they leave the cache.
func (e *Engine) release(in *Instance) {
	if in.buffer == nil {
		return
	}
	e.disconnect(in)
	in.buffer = nil
	in.sink = nil
	e.ledger.RemoveUnit(!in.cached)
}

// settle marks the slot idle once nothing is live or scheduled.
func (e *Engine) settle(id slot.ID) {
	st := e.state(id)
	if len(st.instances) == 0 && st.pending == 0 {
		st.playing = false
	}
}

// ended handles an end-of-stream notification. Duplicate and stale
// notifications are ignored.
func (e *Engine) ended(in *Instance, gen uint64) {
	if in.gen != gen || !in.live {
		return
	}
	in.ctrl = nil
	e.deregister(in)
	if !in.cached {
		e.release(in)
	}
	e.settle(in.slot)
}

// enforceCap evicts the oldest instances until at most keep remain.
func (e *Engine) enforceCap(id slot.ID, st *slotState, keep int) {
	for len(st.instances) > max(keep, 0) {
		oldest := st.instances[0]
		e.logger.Debug("Evicting instance", slog.Int("slot", int(id)), slog.Uint64("instance", oldest.id))
		oldest.halt()
		e.deregister(oldest)
		if oldest == st.cached {
			st.cached = nil
		}
		e.release(oldest)
	}
	e.settle(id)
}

// stopSlot halts everything the slot is doing. The cached instance is kept,
// paused and rewound.
func (e *Engine) stopSlot(id slot.ID) {
	st, ok := e.slots[id]
	if !ok {
		return
	}
	e.cancelEchoes(id)
	for _, in := range slices.Clone(st.instances) {
		in.halt()
		e.deregister(in)
		if !in.cached {
			e.release(in)
		}
	}
	st.playing = false
}

// invalidate tears down the slot's cached instance after its parameters changed.
func (e *Engine) invalidate(id slot.ID) {
	e.buffers.Delete(bufferKey(id))
	st, ok := e.slots[id]
	if !ok || st.cached == nil {
		return
	}
	in := st.cached
	st.cached = nil
	in.halt()
	e.deregister(in)
	e.release(in)
	e.settle(id)
	e.logger.Debug("Cached instance invalidated", slog.Int("slot", int(id)))
}

// buffer returns the playback buffer for the slot's clip, converting it once
// and keeping it until the slot changes or it idles out.
func (e *Engine) buffer(id slot.ID, p slot.Parameters) *beep.Buffer {
	key := bufferKey(id)
	if v, ok := e.buffers.Get(key); ok {
		return v.(*beep.Buffer)
	}
	buf := p.Clip.Beep()
	e.buffers.SetDefault(key, buf)
	return buf
}

func bufferKey(id slot.ID) string {
	return strconv.Itoa(int(id))
}
