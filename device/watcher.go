package device

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"soundgrid/output"
)

// ErrNotReady is returned by an EnumerateFunc that has nothing to enumerate
// yet, such as before an audio context is open. Polls that hit it are skipped.
var ErrNotReady = errors.New("device enumeration not ready")

// EnumerateFunc lists the currently available output sinks.
type EnumerateFunc func() ([]output.Device, error)

// Watcher polls for output device changes and feeds them to a Router.
type Watcher struct {
	router    *Router
	enumerate EnumerateFunc
	interval  time.Duration
	onChange  func([]output.Device)
	logger    *slog.Logger
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewWatcher creates a Watcher. onChange may be nil.
func NewWatcher(router *Router, enumerate EnumerateFunc, interval time.Duration, onChange func([]output.Device)) *Watcher {
	return &Watcher{
		router:    router,
		enumerate: enumerate,
		interval:  interval,
		onChange:  onChange,
		logger:    slog.With("component", "device-watcher"),
	}
}

// Start polls until ctx is cancelled or Stop is called. The first poll runs immediately.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		w.logger.Info("Starting device watcher", slog.Duration("interval", w.interval))
		w.Poll()

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.Poll()
			case <-ctx.Done():
				w.logger.Info("Device watcher stopped")
				return
			}
		}
	}()
}

// Poll enumerates once and notifies on change.
func (w *Watcher) Poll() {
	devices, err := w.enumerate()
	if errors.Is(err, ErrNotReady) {
		w.logger.Debug("Skipping device poll", slog.Any("error", err))
		return
	}
	if err != nil {
		w.logger.Error("Failed to enumerate output devices", slog.Any("error", err))
		return
	}
	if !w.router.Update(devices) {
		return
	}
	w.logger.Debug("Output devices changed", slog.Int("count", len(devices)))
	if w.onChange != nil {
		w.onChange(w.router.Devices())
	}
}

// Stop cancels polling and waits for the goroutine to exit.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
