package clip

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWAV_Header(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		rate     int
		channels int
		frames   int
	}{
		{name: "mono", rate: 8000, channels: 1, frames: 5},
		{name: "stereo", rate: 44100, channels: 2, frames: 100},
		{name: "empty", rate: 48000, channels: 2, frames: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, err := EncodeWAV(New(tt.rate, tt.channels, tt.frames))
			require.NoError(t, err)

			wantData := tt.frames * tt.channels * 2
			require.Len(t, data, HeaderSize+wantData)

			h, err := ReadHeader(data)
			require.NoError(t, err)
			assert.Equal(t, uint16(1), h.AudioFormat)
			assert.Equal(t, uint16(tt.channels), h.Channels)
			assert.Equal(t, uint32(tt.rate), h.SampleRate)
			assert.Equal(t, uint32(tt.rate*tt.channels*2), h.ByteRate)
			assert.Equal(t, uint16(tt.channels*2), h.BlockAlign)
			assert.Equal(t, uint16(16), h.BitsPerSample)
			assert.Equal(t, uint32(wantData), h.DataLen)
			assert.Equal(t, uint32(36+wantData), binary.LittleEndian.Uint32(data[4:8]))
		})
	}
}

func TestEncodeWAV_ClampsAndInterleaves(t *testing.T) {
	t.Parallel()

	b := &Buffer{SampleRate: 8000, Data: [][]float32{
		{0, 1, 2},
		{-0.5, -1, -3},
	}}
	data, err := EncodeWAV(b)
	require.NoError(t, err)

	pcm := data[HeaderSize:]
	want := []int16{0, -16383, 32767, -32767, 32767, -32767}
	require.Len(t, pcm, len(want)*2)
	for i, w := range want {
		assert.Equal(t, w, int16(binary.LittleEndian.Uint16(pcm[i*2:])), "sample %d", i)
	}
}

func TestEncodeWAV_RejectsMalformed(t *testing.T) {
	t.Parallel()

	_, err := EncodeWAV(&Buffer{SampleRate: 8000})
	assert.ErrorIs(t, err, ErrDecodeFailure)
}

func TestDecodeWAV_RoundTrip(t *testing.T) {
	t.Parallel()

	in := New(16000, 2, 64)
	for i := 0; i < 64; i++ {
		in.Data[0][i] = float32(i)/64 - 0.5
		in.Data[1][i] = 0.25
	}
	data, err := EncodeWAV(in)
	require.NoError(t, err)

	out, err := DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, in.SampleRate, out.SampleRate)
	require.Equal(t, in.NumChannels(), out.NumChannels())
	require.Equal(t, in.Len(), out.Len())
	for c := range in.Data {
		for i := range in.Data[c] {
			assert.InDelta(t, in.Data[c][i], out.Data[c][i], 1e-3)
		}
	}
}

func TestReadHeader_Errors(t *testing.T) {
	t.Parallel()

	_, err := ReadHeader([]byte("RIFF"))
	assert.ErrorIs(t, err, ErrNotWAV)

	junk := make([]byte, HeaderSize)
	copy(junk, "OggS")
	_, err = ReadHeader(junk)
	assert.ErrorIs(t, err, ErrNotWAV)

	_, err = DecodeWAV(junk)
	assert.ErrorIs(t, err, ErrNotWAV)
}
