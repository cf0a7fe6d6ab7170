// Package capture records microphone input into a clip.
package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"soundgrid/clip"
	"soundgrid/output"
)

// ErrNoInput is returned when the requested capture device does not exist.
var ErrNoInput = errors.New("capture device not found")

// Options selects the input and its format.
type Options struct {
	DeviceID   string // "" is the system default
	SampleRate int
	Channels   int
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = 48000
	}
	if o.Channels <= 0 || o.Channels > 2 {
		o.Channels = 1
	}
	return o
}

// Devices lists the capture devices.
func Devices() ([]output.Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize audio context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate capture devices: %w", err)
	}
	devices := make([]output.Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, output.Device{
			ID:      info.ID.String(),
			Label:   info.Name(),
			Default: info.IsDefault != 0,
		})
	}
	return devices, nil
}

// Recorder accumulates frames from a running capture device.
type Recorder struct {
	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	opts    Options
	data    [][]float32
	stopped bool
	logger  *slog.Logger
}

// Start opens the capture device and begins recording.
func Start(opts Options) (*Recorder, error) {
	opts = opts.withDefaults()
	r := &Recorder{
		opts:   opts,
		data:   make([][]float32, opts.Channels),
		logger: slog.With("component", "capture"),
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		r.logger.Debug("miniaudio", "message", strings.TrimSpace(msg))
	})
	if err != nil {
		return nil, fmt.Errorf("initialize audio context: %w", err)
	}
	r.ctx = ctx

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(opts.Channels)
	cfg.SampleRate = uint32(opts.SampleRate)
	if opts.DeviceID != "" {
		infos, err := ctx.Devices(malgo.Capture)
		if err != nil {
			r.release()
			return nil, fmt.Errorf("enumerate capture devices: %w", err)
		}
		found := false
		for _, info := range infos {
			if info.ID.String() == opts.DeviceID {
				cfg.Capture.DeviceID = info.ID.Pointer()
				found = true
				break
			}
		}
		if !found {
			r.release()
			return nil, fmt.Errorf("%w: %s", ErrNoInput, opts.DeviceID)
		}
	}

	device, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: r.onFrames,
	})
	if err != nil {
		r.release()
		return nil, fmt.Errorf("initialize capture device: %w", err)
	}
	r.device = device
	if err := device.Start(); err != nil {
		r.release()
		return nil, fmt.Errorf("start capture device: %w", err)
	}
	r.logger.Info("Recording started",
		slog.String("device", opts.DeviceID),
		slog.Int("sample_rate", opts.SampleRate),
		slog.Int("channels", opts.Channels))
	return r, nil
}

func (r *Recorder) onFrames(_, input []byte, _ uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.data = appendS16(r.data, input)
}

// Stop ends the recording and returns what was captured.
func (r *Recorder) Stop() (*clip.Buffer, error) {
	if err := r.device.Stop(); err != nil {
		r.logger.Warn("Failed to stop capture device", slog.Any("error", err))
	}
	r.mu.Lock()
	r.stopped = true
	data := r.data
	r.mu.Unlock()
	r.release()

	b := &clip.Buffer{SampleRate: r.opts.SampleRate, Data: data}
	if b.Len() == 0 {
		return nil, clip.ErrEmptyClip
	}
	r.logger.Info("Recording stopped", slog.Duration("duration", b.Duration()))
	return b, nil
}

// Record captures for d, or until ctx is cancelled, whichever comes first.
func Record(ctx context.Context, opts Options, d time.Duration) (*clip.Buffer, error) {
	r, err := Start(opts)
	if err != nil {
		return nil, err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	return r.Stop()
}

func (r *Recorder) release() {
	if r.device != nil {
		r.device.Uninit()
		r.device = nil
	}
	if r.ctx != nil {
		_ = r.ctx.Uninit()
		r.ctx.Free()
		r.ctx = nil
	}
}

// appendS16 de-interleaves little-endian 16-bit frames onto per-channel slices.
// A trailing partial frame is dropped.
func appendS16(dst [][]float32, data []byte) [][]float32 {
	channels := len(dst)
	if channels == 0 {
		return dst
	}
	frames := len(data) / (2 * channels)
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			off := (f*channels + c) * 2
			v := int16(binary.LittleEndian.Uint16(data[off:]))
			dst[c] = append(dst[c], float32(v)/32768)
		}
	}
	return dst
}
