package clip

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	// HeaderSize is the length of the canonical PCM WAV header.
	HeaderSize = 44
	// BitDepth is the only sample depth EncodeWAV produces.
	BitDepth = 16

	pcmFormat = 1
)

// Header mirrors the fields of a canonical 44-byte PCM WAV header.
type Header struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataLen       uint32
}

// EncodeWAV renders the buffer as a little-endian 16-bit PCM WAV container.
func EncodeWAV(b *Buffer) ([]byte, error) {
	ws := &writeSeeker{}
	if err := WriteWAV(ws, b); err != nil {
		return nil, err
	}
	return ws.Bytes(), nil
}

// WriteWAV streams the buffer as a 16-bit PCM WAV container into w.
// Samples are clamped to [-1, 1] and scaled by 32767.
func WriteWAV(w io.WriteSeeker, b *Buffer) error {
	if err := b.Validate(); err != nil {
		return err
	}

	channels := b.NumChannels()
	frames := b.Len()
	data := make([]int, frames*channels)
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			data[f*channels+c] = quantize(b.Data[c][f])
		}
	}

	enc := wav.NewEncoder(w, b.SampleRate, BitDepth, channels, pcmFormat)
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: channels, SampleRate: b.SampleRate},
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write WAV samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV header: %w", err)
	}
	return nil
}

// ReadHeader parses the canonical 44-byte header at the start of data.
func ReadHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrNotWAV, len(data))
	}
	if !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return Header{}, ErrNotWAV
	}
	if !bytes.Equal(data[12:16], []byte("fmt ")) || !bytes.Equal(data[36:40], []byte("data")) {
		return Header{}, fmt.Errorf("%w: non-canonical chunk layout", ErrUnsupportedFormat)
	}

	return Header{
		AudioFormat:   binary.LittleEndian.Uint16(data[20:22]),
		Channels:      binary.LittleEndian.Uint16(data[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(data[24:28]),
		ByteRate:      binary.LittleEndian.Uint32(data[28:32]),
		BlockAlign:    binary.LittleEndian.Uint16(data[32:34]),
		BitsPerSample: binary.LittleEndian.Uint16(data[34:36]),
		DataLen:       binary.LittleEndian.Uint32(data[40:44]),
	}, nil
}

// DecodeWAV reads an integer PCM WAV container into a Buffer.
func DecodeWAV(data []byte) (*Buffer, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	d.ReadInfo()
	if err := d.Err(); err != nil || d.NumChans == 0 {
		return nil, ErrNotWAV
	}
	if d.WavAudioFormat != pcmFormat {
		return nil, fmt.Errorf("%w: format tag %d", ErrUnsupportedFormat, d.WavAudioFormat)
	}

	var scale float32
	switch d.BitDepth {
	case 16, 24, 32:
		scale = float32(int64(1) << (d.BitDepth - 1))
	default:
		return nil, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedFormat, d.BitDepth)
	}

	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM data: %w", err)
	}

	channels := int(d.NumChans)
	frames := len(pcm.Data) / channels
	out := New(int(d.SampleRate), channels, frames)
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			out.Data[c][f] = float32(pcm.Data[f*channels+c]) / scale
		}
	}
	return out, nil
}

func quantize(s float32) int {
	v := float64(s)
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int(v * 32767)
}

// writeSeeker is an in-memory io.WriteSeeker; the WAV encoder seeks back to patch sizes.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	end := w.pos + len(p)
	if end > len(w.buf) {
		w.buf = append(w.buf, make([]byte, end-len(w.buf))...)
	}
	copy(w.buf[w.pos:], p)
	w.pos = end
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(w.pos) + offset
	case io.SeekEnd:
		next = int64(len(w.buf)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if next < 0 {
		return 0, errors.New("negative position")
	}
	w.pos = int(next)
	return next, nil
}

func (w *writeSeeker) Bytes() []byte {
	return w.buf
}
