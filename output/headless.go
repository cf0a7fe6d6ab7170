package output

import (
	"slices"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
)

// DefaultDevice is the device every backend reports for the system default route.
var DefaultDevice = Device{ID: "", Label: "System default", Default: true}

// Headless is a Context with no audio hardware. Nothing is pulled from its
// sinks until Pump is called, which makes playback deterministic in tests
// and lets the board run on machines without a sound card.
type Headless struct {
	mu        sync.Mutex
	rate      beep.SampleRate
	state     State
	devices   []Device
	sinks     map[string]*mixerSink
	resumeErr error
}

var _ Context = (*Headless)(nil)

// NewHeadless creates a running headless context that exposes the default
// device plus any extra devices given.
func NewHeadless(rate beep.SampleRate, extra ...Device) *Headless {
	return &Headless{
		rate:    rate,
		devices: append([]Device{DefaultDevice}, extra...),
		sinks:   make(map[string]*mixerSink),
	}
}

func (h *Headless) SampleRate() beep.SampleRate { return h.rate }

func (h *Headless) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// SetState forces a lifecycle state, e.g. to emulate an autoplay suspension.
func (h *Headless) SetState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// FailResume makes subsequent Resume calls return err (nil restores success).
func (h *Headless) FailResume(err error) {
	h.mu.Lock()
	h.resumeErr = err
	h.mu.Unlock()
}

func (h *Headless) Resume() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Closed {
		return ErrContextClosed
	}
	if h.resumeErr != nil {
		return h.resumeErr
	}
	h.state = Running
	return nil
}

func (h *Headless) Suspend() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Closed {
		return ErrContextClosed
	}
	h.state = Suspended
	return nil
}

func (h *Headless) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Closed {
		return nil
	}
	h.state = Closed
	for _, s := range h.sinks {
		s.lock.Lock()
		s.mixer.Clear()
		s.lock.Unlock()
	}
	return nil
}

func (h *Headless) SupportsSinkSelection() bool { return true }

func (h *Headless) Devices() ([]Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.devices), nil
}

// SetDevices replaces the reported device list, as if hardware changed.
// Sinks for vanished devices stay open until Close.
func (h *Headless) SetDevices(devices []Device) {
	h.mu.Lock()
	h.devices = append([]Device{DefaultDevice}, devices...)
	h.mu.Unlock()
}

func (h *Headless) Sink(id string) (Sink, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Closed {
		return nil, ErrContextClosed
	}
	if s, ok := h.sinks[id]; ok {
		return s, nil
	}
	if !slices.ContainsFunc(h.devices, func(d Device) bool { return d.ID == id }) {
		return nil, ErrSinkUnavailable
	}
	s := newMixerSink(id, &sync.Mutex{}, h.State)
	h.sinks[id] = s
	return s, nil
}

// Pump advances every sink by d of audio, discarding the mixed output.
// Streamers that finish during the pump are dropped by their mixer.
func (h *Headless) Pump(d time.Duration) {
	if h.State() != Running {
		return
	}
	h.mu.Lock()
	sinks := make([]*mixerSink, 0, len(h.sinks))
	for _, s := range h.sinks {
		sinks = append(sinks, s)
	}
	h.mu.Unlock()

	frames := h.rate.N(d)
	buf := make([][2]float64, 512)
	for _, s := range sinks {
		for left := frames; left > 0; left -= len(buf) {
			s.stream(buf[:min(left, len(buf))])
		}
	}
}

// Active returns how many streamers the sink with id is still mixing.
func (h *Headless) Active(id string) int {
	h.mu.Lock()
	s, ok := h.sinks[id]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	return s.active()
}
