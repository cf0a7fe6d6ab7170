// Package board wires the slot store, playback engine, device routing and
// HTTP API into one running soundboard.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"soundgrid/api"
	"soundgrid/config"
	"soundgrid/device"
	"soundgrid/engine"
	"soundgrid/ledger"
	"soundgrid/output"
	"soundgrid/persist"
	"soundgrid/slot"
)

const shutdownTimeout = 5 * time.Second

// Board represents the running application
type Board struct {
	config   *config.Config
	store    *slot.Store
	db       *persist.Store
	router   *device.Router
	engine   *engine.Engine
	watcher  *device.Watcher
	api      *api.Controller
	registry *prometheus.Registry
	logger   *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	errorChan chan error
}

// New creates a new Board instance
func New(cfg *config.Config) *Board {
	ctx, cancel := context.WithCancel(context.Background())
	return &Board{
		config:    cfg,
		logger:    slog.With("component", "board"),
		ctx:       ctx,
		cancel:    cancel,
		errorChan: make(chan error, 10),
	}
}

// EngineConfig maps the engine section of cfg onto engine limits.
func EngineConfig(cfg config.EngineConfig) engine.Config {
	return engine.Config{
		InstanceCap:     cfg.InstanceCap,
		ResourceLimit:   cfg.ResourceLimit,
		SweepInterval:   cfg.SweepInterval,
		InitialSweep:    cfg.InitialSweep,
		MinEchoDelay:    cfg.MinEchoDelay,
		ResampleQuality: cfg.ResampleQuality,
		BufferTTL:       cfg.BufferTTL,
	}
}

// Initialize sets up every component. An audio device that cannot be opened
// yet is not fatal: the engine retries on the next trigger.
func (b *Board) Initialize() error {
	b.logger.Info("Initializing board...")

	factory, err := output.NewFactory(output.Options{
		Backend:    b.config.Output.Backend,
		SampleRate: b.config.Output.SampleRate,
		Buffer:     b.config.Output.Buffer,
	})
	if err != nil {
		return err
	}

	b.store = slot.NewStore(b.config.Engine.Slots)
	if b.config.Store.Enabled {
		db, err := persist.Open(b.config.Store.Path)
		if err != nil {
			return fmt.Errorf("failed to open slot database: %w", err)
		}
		if err := b.store.Attach(db); err != nil {
			_ = db.Close()
			return err
		}
		b.db = db
	}

	audio, err := factory()
	if err != nil {
		b.logger.Warn("Audio output unavailable, will retry on first trigger", slog.Any("error", err))
		audio = nil
	}

	b.router = device.NewRouter(audio != nil && audio.SupportsSinkSelection())
	if audio != nil {
		if devices, err := audio.Devices(); err != nil {
			b.logger.Warn("Failed to enumerate output devices", slog.Any("error", err))
		} else {
			b.router.Update(devices)
		}
	}
	if id := b.config.Output.Device; id != "" {
		if err := b.router.Select(id); err != nil {
			b.logger.Warn("Configured output device not selectable, using default",
				slog.String("device", id),
				slog.Any("error", err))
		}
	}

	l := ledger.New()
	opts := []engine.Option{engine.WithLedger(l)}
	if audio != nil {
		opts = append(opts, engine.WithContext(audio))
	}
	b.engine = engine.New(EngineConfig(b.config.Engine), b.store, b.router, factory, opts...)

	b.watcher = device.NewWatcher(b.router,
		enumerateOutputs(b.ctx, b.engine),
		b.config.Device.PollInterval,
		func(devices []output.Device) {
			b.logger.Info("Output devices changed",
				slog.Int("count", len(devices)),
				slog.String("selected", b.router.Selected()))
		})

	var gatherer prometheus.Gatherer
	if b.config.API.Metrics {
		b.registry = prometheus.NewRegistry()
		b.registry.MustRegister(
			ledger.NewCollector(l),
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		gatherer = b.registry
	}
	b.api = api.New(b.store, b.engine, b.router, gatherer)

	b.logger.Info("Board initialized successfully",
		slog.Int("slots", b.store.Count()),
		slog.String("backend", b.config.Output.Backend))
	return nil
}

// enumerateOutputs lists the sinks of the engine's audio context. Having no
// context yet is not an error worth reporting on every poll.
func enumerateOutputs(ctx context.Context, eng *engine.Engine) device.EnumerateFunc {
	return func() ([]output.Device, error) {
		devices, err := eng.Devices(ctx)
		if errors.Is(err, engine.ErrNoContext) {
			return nil, fmt.Errorf("%w: %w", device.ErrNotReady, err)
		}
		return devices, err
	}
}

// Start begins playback housekeeping, device polling and the HTTP API.
func (b *Board) Start() error {
	b.logger.Info("Starting board...")

	if err := b.engine.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	b.watcher.Start(b.ctx)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.api.Start(b.config.API.Listen); err != nil {
			b.logger.Error("HTTP API failed", slog.Any("error", err))
			select {
			case b.errorChan <- err:
			default:
			}
		}
	}()

	b.logger.Info("Board started successfully")
	return nil
}

// Stop gracefully shuts down the board
func (b *Board) Stop() error {
	b.logger.Info("Stopping board...")

	b.cancel()

	if b.api != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := b.api.Shutdown(ctx); err != nil {
			b.logger.Warn("HTTP API shutdown failed", slog.Any("error", err))
		}
		cancel()
	}
	if b.watcher != nil {
		b.watcher.Stop()
	}

	var err error
	if b.engine != nil {
		err = b.engine.Stop()
	}
	if b.db != nil {
		if cerr := b.db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	b.wg.Wait()
	b.logger.Info("Board stopped")
	return err
}

// Error returns the error channel for monitoring errors
func (b *Board) Error() <-chan error {
	return b.errorChan
}

// Store returns the slot store.
func (b *Board) Store() *slot.Store { return b.store }

// Engine returns the playback engine.
func (b *Board) Engine() *engine.Engine { return b.engine }

// Router returns the output device router.
func (b *Board) Router() *device.Router { return b.router }
