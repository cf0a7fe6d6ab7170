// Package device routes new playback instances to the selected output sink.
package device

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"soundgrid/output"
)

var (
	// ErrUnknownDevice is returned when selecting an id that is not enumerated.
	ErrUnknownDevice = errors.New("unknown output device")
	// ErrSelectionUnsupported is returned when the runtime cannot route to a specific sink.
	ErrSelectionUnsupported = errors.New("output sink selection not supported")
)

// Router holds the current sink selection and the enumerated sinks.
type Router struct {
	mu        sync.RWMutex
	selection bool
	selected  string
	devices   []output.Device
	logger    *slog.Logger
}

// NewRouter creates a Router. selection is the runtime capability flag and is
// fixed for the Router's lifetime.
func NewRouter(selection bool) *Router {
	return &Router{
		selection: selection,
		devices:   []output.Device{output.DefaultDevice},
		logger:    slog.With("component", "device-router"),
	}
}

// SupportsSelection reports the capability flag the Router was built with.
func (r *Router) SupportsSelection() bool { return r.selection }

// Selected returns the selected sink id; "" is the system default.
func (r *Router) Selected() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selected
}

// Devices returns the last enumerated sinks.
func (r *Router) Devices() []output.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.devices)
}

// Select changes the selected sink. Only future instances are affected.
func (r *Router) Select(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id != "" {
		if !r.selection {
			return ErrSelectionUnsupported
		}
		if !containsID(r.devices, id) {
			return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
		}
	}
	r.selected = id
	r.logger.Info("Output device selected", slog.String("device", id))
	return nil
}

// Update replaces the enumerated sinks after a device-change notification.
// A selection that disappeared falls back to the default route. It reports
// whether the list changed.
func (r *Router) Update(devices []output.Device) bool {
	if !containsID(devices, "") {
		devices = append([]output.Device{output.DefaultDevice}, devices...)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Equal(r.devices, devices) {
		return false
	}
	r.devices = slices.Clone(devices)
	if r.selected != "" && !containsID(devices, r.selected) {
		r.logger.Warn("Selected output device vanished, using default",
			slog.String("device", r.selected))
		r.selected = ""
	}
	return true
}

// Bind opens the sink a new instance should play into. A selected sink that
// cannot be opened is skipped in favour of the default route; the error is
// only returned when the default route itself is unavailable.
func (r *Router) Bind(ctx output.Context) (output.Sink, error) {
	if id := r.Selected(); r.selection && id != "" {
		sink, err := ctx.Sink(id)
		if err == nil {
			return sink, nil
		}
		r.logger.Debug("Sink binding failed, falling back to default",
			slog.String("device", id), slog.Any("error", err))
	}
	return ctx.Sink("")
}

func containsID(devices []output.Device, id string) bool {
	return slices.ContainsFunc(devices, func(d output.Device) bool { return d.ID == id })
}
