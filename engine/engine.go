// Package engine turns slot parameters into live, overlapping playback and
// keeps the resulting audio resources bounded.
//
// All engine state is owned by a single event-loop goroutine. Exported methods
// hand closures to the loop and wait for them; timer and end-of-stream
// notifications are posted to the same loop, so every mutation happens in one
// callback turn.
package engine

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"soundgrid/device"
	"soundgrid/ledger"
	"soundgrid/output"
	"soundgrid/slot"
)

// Config tunes the engine.
type Config struct {
	InstanceCap     int
	ResourceLimit   int
	SweepInterval   time.Duration
	InitialSweep    time.Duration
	MinEchoDelay    time.Duration
	ResampleQuality int
	BufferTTL       time.Duration
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		InstanceCap:     8,
		ResourceLimit:   50,
		SweepInterval:   5 * time.Minute,
		InitialSweep:    30 * time.Second,
		MinEchoDelay:    100 * time.Millisecond,
		ResampleQuality: 4,
		BufferTTL:       10 * time.Minute,
	}
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithContext hands the engine an already created audio context.
func WithContext(audio output.Context) Option {
	return func(e *Engine) { e.audio = audio }
}

// WithLedger makes the engine account into l instead of a private ledger.
func WithLedger(l *ledger.Ledger) Option {
	return func(e *Engine) { e.ledger = l }
}

// Engine is the playback instance manager.
type Engine struct {
	cfg     Config
	store   *slot.Store
	router  *device.Router
	factory output.Factory
	clock   Clock
	ledger  *ledger.Ledger
	buffers *cache.Cache
	logger  *slog.Logger

	events   chan func()
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// Owned by the loop goroutine.
	audio   output.Context
	slots   map[slot.ID]*slotState
	echoes  map[*echoTimer]struct{}
	sweeper Timer
	nextID  uint64
	stopped bool
}

type slotState struct {
	instances []*Instance // oldest first
	cached    *Instance
	pending   int // scheduled echo fires
	playing   bool
}

// New creates an engine and starts its event loop. Call Start to arm the
// periodic sweep and Stop to release everything.
func New(cfg Config, store *slot.Store, router *device.Router, factory output.Factory, opts ...Option) *Engine {
	e := &Engine{
		cfg:     cfg,
		store:   store,
		router:  router,
		factory: factory,
		clock:   systemClock{},
		buffers: cache.New(cfg.BufferTTL, cache.NoExpiration),
		logger:  slog.With("component", "engine"),
		events:  make(chan func(), 256),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		slots:   make(map[slot.ID]*slotState),
		echoes:  make(map[*echoTimer]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ledger == nil {
		e.ledger = ledger.New()
	}
	go e.run()
	return e
}

// Start arms the sweep timers and starts following slot edits.
func (e *Engine) Start() error {
	e.store.Subscribe(func(id slot.ID) {
		e.post(func() { e.invalidate(id) })
	})
	return e.do(context.Background(), func() {
		e.sweeper = e.clock.AfterFunc(e.cfg.InitialSweep, func() { e.post(e.sweepTick) })
		e.logger.Info("Engine started",
			slog.Duration("initial_sweep", e.cfg.InitialSweep),
			slog.Duration("sweep_interval", e.cfg.SweepInterval))
	})
}

// Stop cancels all timers, forcibly releases every instance, closes the audio
// context and ends the event loop. It is safe to call more than once.
func (e *Engine) Stop() error {
	var err error
	e.stopOnce.Do(func() {
		err = e.do(context.Background(), e.shutdown)
		close(e.quit)
		<-e.done
	})
	return err
}

// Ledger returns the ledger the engine accounts into.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Trigger plays the slot once, toggles a looping slot, or starts an echo burst.
// Contained failures (no clip, no audio context) return nil; only a start that
// is still rejected after one resume returns ErrPlaybackRejected.
func (e *Engine) Trigger(ctx context.Context, id slot.ID) error {
	var err error
	if derr := e.do(ctx, func() { err = e.trigger(id) }); derr != nil {
		return derr
	}
	return err
}

// StopSlot silences every instance of the slot and cancels its pending echoes.
func (e *Engine) StopSlot(ctx context.Context, id slot.ID) error {
	if _, err := e.store.Get(id); err != nil {
		return err
	}
	return e.do(ctx, func() { e.stopSlot(id) })
}

// Cleanup runs a forced cleanup now.
func (e *Engine) Cleanup(ctx context.Context) error {
	return e.do(ctx, func() { e.forcedCleanup("requested") })
}

// Sweep runs one accounting pass now and returns the recomputed counts.
func (e *Engine) Sweep(ctx context.Context) (ledger.Snapshot, error) {
	var snap ledger.Snapshot
	err := e.do(ctx, func() { snap = e.sweep() })
	return snap, err
}

// IsPlaying reports whether the slot has live or scheduled instances.
func (e *Engine) IsPlaying(id slot.ID) bool {
	var playing bool
	_ = e.do(context.Background(), func() {
		if st, ok := e.slots[id]; ok {
			playing = st.playing
		}
	})
	return playing
}

// Devices enumerates the sinks of the current audio context.
func (e *Engine) Devices(ctx context.Context) ([]output.Device, error) {
	var (
		devices []output.Device
		err     error
	)
	if derr := e.do(ctx, func() {
		if e.audio == nil || e.audio.State() == output.Closed {
			err = ErrNoContext
			return
		}
		devices, err = e.audio.Devices()
	}); derr != nil {
		return nil, derr
	}
	return devices, err
}

// InstanceInfo describes one live instance.
type InstanceInfo struct {
	ID      uint64    `json:"id"`
	Started time.Time `json:"started"`
	Gain    float64   `json:"gain"`
	Pan     float64   `json:"pan"`
	Cached  bool      `json:"cached"`
	Loop    bool      `json:"loop"`
	Sink    string    `json:"sink"`
}

// SlotStatus is the live state of one slot.
type SlotStatus struct {
	ID        slot.ID        `json:"id"`
	Playing   bool           `json:"playing"`
	Pending   int            `json:"pending_echoes"`
	Instances []InstanceInfo `json:"instances"`
}

// Status is a consistent snapshot of the engine.
type Status struct {
	Context  string          `json:"context"`
	Slots    []SlotStatus    `json:"slots"`
	Ledger   ledger.Snapshot `json:"ledger"`
	Cleanups int             `json:"forced_cleanups"`
}

// Playing returns the ids of the playing slots.
func (s Status) Playing() []slot.ID {
	var ids []slot.ID
	for _, st := range s.Slots {
		if st.Playing {
			ids = append(ids, st.ID)
		}
	}
	return ids
}

// Slot returns the status of id, or a zero SlotStatus if it has never played.
func (s Status) Slot(id slot.ID) SlotStatus {
	for _, st := range s.Slots {
		if st.ID == id {
			return st
		}
	}
	return SlotStatus{ID: id}
}

// Status returns a snapshot of every slot that holds instances or pending echoes.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	var status Status
	err := e.do(ctx, func() {
		status.Context = "none"
		if e.audio != nil {
			status.Context = e.audio.State().String()
		}
		for id, st := range e.slots {
			if !st.playing && len(st.instances) == 0 && st.pending == 0 {
				continue
			}
			ss := SlotStatus{ID: id, Playing: st.playing, Pending: st.pending}
			for _, in := range st.instances {
				ss.Instances = append(ss.Instances, in.info())
			}
			status.Slots = append(status.Slots, ss)
		}
		slices.SortFunc(status.Slots, func(a, b SlotStatus) int { return int(a.ID) - int(b.ID) })
		status.Ledger = e.ledger.Snapshot()
		status.Cleanups = e.ledger.Cleanups()
	})
	return status, err
}

func (e *Engine) run() {
	defer close(e.done)
	for {
		select {
		case fn := <-e.events:
			fn()
		case <-e.quit:
			return
		}
	}
}

// do runs fn on the loop and waits for it.
func (e *Engine) do(ctx context.Context, fn func()) error {
	var skipped bool
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		if e.stopped {
			skipped = true
			return
		}
		fn()
	}
	select {
	case e.events <- task:
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	if skipped || e.isStopped() {
		return ErrStopped
	}
	return nil
}

func (e *Engine) isStopped() bool {
	select {
	case <-e.quit:
		return true
	default:
		return false
	}
}

// post queues fn without waiting. It never blocks the caller when the queue
// has room, which keeps audio-thread callbacks short.
func (e *Engine) post(fn func()) {
	task := func() {
		if !e.stopped {
			fn()
		}
	}
	select {
	case e.events <- task:
	default:
		go func() {
			select {
			case e.events <- task:
			case <-e.done:
			}
		}()
	}
}

func (e *Engine) state(id slot.ID) *slotState {
	st, ok := e.slots[id]
	if !ok {
		st = &slotState{}
		e.slots[id] = st
	}
	return st
}

// ensureContext returns a usable audio context, creating or resuming it as needed.
func (e *Engine) ensureContext() (output.Context, bool) {
	if e.audio != nil && e.audio.State() == output.Closed {
		e.logger.Warn("Audio context closed, dropping it")
		e.audio = nil
		e.forcedCleanup("audio context closed")
	}
	if e.audio == nil {
		audio, err := e.factory()
		if err != nil {
			e.logger.Warn("Audio context unavailable", slog.Any("error", err))
			return nil, false
		}
		e.audio = audio
		e.logger.Info("Audio context created", slog.Int("sample_rate", int(audio.SampleRate())))
	}
	if e.audio.State() == output.Suspended {
		if err := e.audio.Resume(); err != nil {
			e.logger.Warn("Failed to resume audio context", slog.Any("error", err))
		}
	}
	return e.audio, true
}

func (e *Engine) shutdown() {
	if e.sweeper != nil {
		e.sweeper.Stop()
		e.sweeper = nil
	}
	e.forcedCleanup("shutdown")
	if e.audio != nil {
		if err := e.audio.Close(); err != nil {
			e.logger.Warn("Failed to close audio context", slog.Any("error", err))
		}
		e.audio = nil
	}
	e.stopped = true
	e.logger.Info("Engine stopped")
}
