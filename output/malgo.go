package output

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/gopxl/beep/v2"
)

const malgoChannels = 2

// Malgo opens one miniaudio playback device per sink, so different slots can
// be routed to different hardware outputs at the same time.
type Malgo struct {
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	rate   beep.SampleRate
	buffer time.Duration
	state  State
	sinks  map[string]*malgoSink
	log    *slog.Logger
}

var _ Context = (*Malgo)(nil)

type malgoSink struct {
	*mixerSink
	device  *malgo.Device
	scratch [][2]float64
}

func NewMalgo(rate beep.SampleRate, buffer time.Duration) (*Malgo, error) {
	log := slog.With("component", "output", "backend", "malgo")
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		log.Debug("miniaudio", "message", strings.TrimSpace(msg))
	})
	if err != nil {
		return nil, fmt.Errorf("initialize audio context: %w", err)
	}
	if buffer <= 0 {
		buffer = 100 * time.Millisecond
	}
	return &Malgo{
		ctx:    ctx,
		rate:   rate,
		buffer: buffer,
		sinks:  make(map[string]*malgoSink),
		log:    log,
	}, nil
}

func (m *Malgo) SampleRate() beep.SampleRate { return m.rate }

func (m *Malgo) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Malgo) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Closed {
		return ErrContextClosed
	}
	var errs []error
	for id, s := range m.sinks {
		if s.device.IsStarted() {
			continue
		}
		if err := s.device.Start(); err != nil {
			errs = append(errs, fmt.Errorf("start sink %q: %w", id, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	m.state = Running
	return nil
}

func (m *Malgo) Suspend() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Closed {
		return ErrContextClosed
	}
	for id, s := range m.sinks {
		if !s.device.IsStarted() {
			continue
		}
		if err := s.device.Stop(); err != nil {
			m.log.Warn("Failed to stop sink", "sink", id, "error", err)
		}
	}
	m.state = Suspended
	return nil
}

func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Closed {
		return nil
	}
	m.state = Closed
	for _, s := range m.sinks {
		s.device.Uninit()
	}
	m.sinks = nil
	err := m.ctx.Uninit()
	m.ctx.Free()
	if err != nil {
		return fmt.Errorf("release audio context: %w", err)
	}
	return nil
}

func (m *Malgo) SupportsSinkSelection() bool { return true }

func (m *Malgo) Devices() ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Closed {
		return nil, ErrContextClosed
	}
	infos, err := m.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("enumerate playback devices: %w", err)
	}
	devices := []Device{DefaultDevice}
	for _, info := range infos {
		devices = append(devices, Device{
			ID:      info.ID.String(),
			Label:   info.Name(),
			Default: info.IsDefault != 0,
		})
	}
	return devices, nil
}

func (m *Malgo) Sink(id string) (Sink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Closed {
		return nil, ErrContextClosed
	}
	if s, ok := m.sinks[id]; ok {
		return s, nil
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = malgoChannels
	cfg.SampleRate = uint32(m.rate)
	cfg.PeriodSizeInMilliseconds = uint32(m.buffer.Milliseconds())
	if id != "" {
		info, err := m.lookup(id)
		if err != nil {
			return nil, err
		}
		cfg.Playback.DeviceID = info.ID.Pointer()
	}

	s := &malgoSink{}
	s.mixerSink = newMixerSink(id, &sync.Mutex{}, m.State)
	device, err := malgo.InitDevice(m.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: s.fill,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSinkUnavailable, id, err)
	}
	s.device = device
	if m.state == Running {
		if err := device.Start(); err != nil {
			device.Uninit()
			return nil, fmt.Errorf("%w: start %s: %v", ErrSinkUnavailable, id, err)
		}
	}
	m.sinks[id] = s
	m.log.Debug("Opened sink", "sink", id)
	return s, nil
}

func (m *Malgo) lookup(id string) (malgo.DeviceInfo, error) {
	infos, err := m.ctx.Devices(malgo.Playback)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("enumerate playback devices: %w", err)
	}
	for _, info := range infos {
		if info.ID.String() == id {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("%w: %s", ErrSinkUnavailable, id)
}

// fill runs on the miniaudio thread and writes interleaved float32 frames.
func (s *malgoSink) fill(out, _ []byte, frames uint32) {
	n := int(frames)
	if cap(s.scratch) < n {
		s.scratch = make([][2]float64, n)
	}
	buf := s.scratch[:n]
	s.stream(buf)
	for i, frame := range buf {
		binary.LittleEndian.PutUint32(out[i*8:], math.Float32bits(float32(frame[0])))
		binary.LittleEndian.PutUint32(out[i*8+4:], math.Float32bits(float32(frame[1])))
	}
}
