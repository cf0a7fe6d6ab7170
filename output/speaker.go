package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// Speaker plays through beep's process-wide speaker. It can only reach the
// system default device.
type Speaker struct {
	mu    sync.Mutex
	rate  beep.SampleRate
	state State
	sink  *mixerSink
}

var _ Context = (*Speaker)(nil)

// speakerLock adapts the package-level speaker lock to sync.Locker.
type speakerLock struct{}

func (speakerLock) Lock()   { speaker.Lock() }
func (speakerLock) Unlock() { speaker.Unlock() }

func NewSpeaker(rate beep.SampleRate, buffer time.Duration) (*Speaker, error) {
	if buffer <= 0 {
		buffer = 100 * time.Millisecond
	}
	if err := speaker.Init(rate, rate.N(buffer)); err != nil {
		return nil, fmt.Errorf("initialize speaker: %w", err)
	}
	s := &Speaker{rate: rate}
	s.sink = newMixerSink("", speakerLock{}, s.State)
	speaker.Play(s.sink.mixer)
	return s, nil
}

func (s *Speaker) SampleRate() beep.SampleRate { return s.rate }

func (s *Speaker) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Speaker) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return ErrContextClosed
	}
	if s.state == Suspended {
		if err := speaker.Resume(); err != nil {
			return fmt.Errorf("resume speaker: %w", err)
		}
	}
	s.state = Running
	return nil
}

func (s *Speaker) Suspend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return ErrContextClosed
	}
	if s.state == Running {
		if err := speaker.Suspend(); err != nil {
			return fmt.Errorf("suspend speaker: %w", err)
		}
	}
	s.state = Suspended
	return nil
}

func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return nil
	}
	s.state = Closed
	speaker.Clear()
	speaker.Close()
	return nil
}

func (s *Speaker) SupportsSinkSelection() bool { return false }

func (s *Speaker) Devices() ([]Device, error) {
	return []Device{DefaultDevice}, nil
}

func (s *Speaker) Sink(id string) (Sink, error) {
	if s.State() == Closed {
		return nil, ErrContextClosed
	}
	if id != "" {
		return nil, ErrSinkUnavailable
	}
	return s.sink, nil
}
