// Package output abstracts the shared audio-processing context that playback
// instances are mixed into, and the sinks (output devices) it can route to.
package output

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
)

var (
	// ErrContextClosed is returned by a context that has been shut down.
	ErrContextClosed = errors.New("audio context closed")
	// ErrSuspended is returned when playback is started on a suspended context.
	ErrSuspended = errors.New("audio context suspended")
	// ErrSinkUnavailable is returned when a sink id cannot be opened.
	ErrSinkUnavailable = errors.New("output sink unavailable")
	// ErrUnknownBackend is returned by NewFactory for unsupported backend names.
	ErrUnknownBackend = errors.New("unknown output backend")
)

// State is the lifecycle state of a Context.
type State int

const (
	Running State = iota
	Suspended
	Closed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Device is one selectable output destination.
type Device struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Default bool   `json:"default"`
}

// Sink mixes streamers into one output route.
//
// Streamers handed to Play are pulled from the audio thread. Any mutation of a
// playing streamer (pausing, seeking, detaching) must happen between Lock and Unlock.
type Sink interface {
	ID() string
	Play(s beep.Streamer) error
	Lock()
	Unlock()
}

// Context is the shared audio-processing context.
type Context interface {
	SampleRate() beep.SampleRate
	State() State
	Resume() error
	Suspend() error
	Close() error
	// SupportsSinkSelection reports whether Sink accepts ids other than "".
	SupportsSinkSelection() bool
	Devices() ([]Device, error)
	// Sink opens the route for id; "" is the system default.
	Sink(id string) (Sink, error)
}

// Factory creates a Context on demand.
type Factory func() (Context, error)

// Options selects and configures a backend.
type Options struct {
	Backend    string
	SampleRate int
	Buffer     time.Duration
}

// NewFactory returns a Factory for the named backend: "malgo", "speaker", or "headless".
func NewFactory(opts Options) (Factory, error) {
	rate := beep.SampleRate(opts.SampleRate)
	switch strings.ToLower(opts.Backend) {
	case "malgo":
		return func() (Context, error) { return NewMalgo(rate, opts.Buffer) }, nil
	case "speaker":
		return func() (Context, error) { return NewSpeaker(rate, opts.Buffer) }, nil
	case "headless":
		return func() (Context, error) { return NewHeadless(rate), nil }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

// mixerSink is a beep.Mixer guarded by a lock the audio thread also takes.
type mixerSink struct {
	id    string
	lock  sync.Locker
	mixer *beep.Mixer
	state func() State
}

func newMixerSink(id string, lock sync.Locker, state func() State) *mixerSink {
	return &mixerSink{id: id, lock: lock, mixer: &beep.Mixer{}, state: state}
}

func (s *mixerSink) ID() string { return s.id }

func (s *mixerSink) Play(st beep.Streamer) error {
	switch s.state() {
	case Closed:
		return ErrContextClosed
	case Suspended:
		return ErrSuspended
	}
	s.lock.Lock()
	s.mixer.Add(st)
	s.lock.Unlock()
	return nil
}

func (s *mixerSink) Lock()   { s.lock.Lock() }
func (s *mixerSink) Unlock() { s.lock.Unlock() }

// stream fills samples from the mixer, leaving silence where nothing plays.
func (s *mixerSink) stream(samples [][2]float64) {
	clear(samples)
	s.lock.Lock()
	s.mixer.Stream(samples)
	s.lock.Unlock()
}

// active returns how many streamers the mixer still holds.
func (s *mixerSink) active() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.mixer.Len()
}
