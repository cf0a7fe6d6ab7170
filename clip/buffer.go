package clip

import (
	"fmt"
	"time"

	"github.com/gopxl/beep/v2"
)

// Buffer is a decoded clip: one float32 slice per channel, all of equal length.
type Buffer struct {
	SampleRate int
	Data       [][]float32
}

// New allocates a silent buffer.
func New(sampleRate, channels, frames int) *Buffer {
	data := make([][]float32, channels)
	for i := range data {
		data[i] = make([]float32, frames)
	}
	return &Buffer{SampleRate: sampleRate, Data: data}
}

// Len returns the number of frames per channel.
func (b *Buffer) Len() int {
	if b == nil || len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// NumChannels returns the channel count.
func (b *Buffer) NumChannels() int {
	if b == nil {
		return 0
	}
	return len(b.Data)
}

// Duration returns the playing time of the buffer at its native rate.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Len()) * time.Second / time.Duration(b.SampleRate)
}

// Validate reports whether the buffer has a usable shape.
func (b *Buffer) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil buffer", ErrDecodeFailure)
	}
	if b.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrDecodeFailure, b.SampleRate)
	}
	if len(b.Data) == 0 {
		return fmt.Errorf("%w: no channels", ErrDecodeFailure)
	}
	n := len(b.Data[0])
	for i, ch := range b.Data[1:] {
		if len(ch) != n {
			return fmt.Errorf("%w: channel %d has %d frames, want %d", ErrDecodeFailure, i+1, len(ch), n)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	if b == nil {
		return nil
	}
	out := &Buffer{SampleRate: b.SampleRate, Data: make([][]float32, len(b.Data))}
	for i, ch := range b.Data {
		out.Data[i] = append([]float32(nil), ch...)
	}
	return out
}

// Format returns the beep format used when the clip is played back.
func (b *Buffer) Format() beep.Format {
	return beep.Format{SampleRate: beep.SampleRate(b.SampleRate), NumChannels: 2, Precision: 3}
}

// Beep converts the clip into a beep.Buffer. Mono clips are duplicated to both sides.
func (b *Buffer) Beep() *beep.Buffer {
	out := beep.NewBuffer(b.Format())
	out.Append(&bufferStreamer{buf: b})
	return out
}

// FromStreamer drains s into a new Buffer. Mono sources keep a single channel.
func FromStreamer(s beep.Streamer, format beep.Format) (*Buffer, error) {
	channels := 2
	if format.NumChannels == 1 {
		channels = 1
	}
	out := &Buffer{SampleRate: int(format.SampleRate), Data: make([][]float32, channels)}

	chunk := make([][2]float64, 512)
	for {
		n, ok := s.Stream(chunk)
		for _, frame := range chunk[:n] {
			for c := 0; c < channels; c++ {
				out.Data[c] = append(out.Data[c], float32(frame[c]))
			}
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}
	return out, nil
}

type bufferStreamer struct {
	buf *Buffer
	pos int
}

var _ beep.Streamer = (*bufferStreamer)(nil)

func (s *bufferStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	total := s.buf.Len()
	if s.pos >= total {
		return 0, false
	}
	left := s.buf.Data[0]
	right := left
	if len(s.buf.Data) > 1 {
		right = s.buf.Data[1]
	}
	for n < len(samples) && s.pos < total {
		samples[n][0] = float64(left[s.pos])
		samples[n][1] = float64(right[s.pos])
		n++
		s.pos++
	}
	return n, true
}

func (s *bufferStreamer) Err() error {
	return nil
}
