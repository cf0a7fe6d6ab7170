package clip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 8000

// padded returns a stereo buffer with `silent` quiet frames followed by `loud` frames at 0.5.
func padded(silent, loud int) *Buffer {
	b := New(testRate, 2, silent+loud)
	for c := range b.Data {
		for i := silent; i < silent+loud; i++ {
			b.Data[c][i] = 0.5
		}
	}
	return b
}

func TestTrimLeadingSilence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		buf     *Buffer
		wantLen int
		same    bool
	}{
		{
			name:    "trims long silent head",
			buf:     padded(testRate/5, testRate/2), // 200ms silence
			wantLen: testRate / 2,
		},
		{
			name: "keeps head shorter than 50ms",
			buf:  padded(testRate/40, testRate/2), // 25ms silence
			same: true,
		},
		{
			name:    "forces 100ms on all-silent buffer",
			buf:     New(testRate, 1, testRate), // 1s silence
			wantLen: testRate - testRate/10,
		},
		{
			name: "leaves short silent buffer alone",
			buf:  New(testRate, 1, testRate/20), // 50ms silence
			same: true,
		},
		{
			name: "starts loud",
			buf:  padded(0, testRate),
			same: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := TrimLeadingSilence(tt.buf, DefaultSilenceThreshold)
			if tt.same {
				assert.Same(t, tt.buf, got)
				return
			}
			require.NotSame(t, tt.buf, got)
			assert.Equal(t, tt.wantLen, got.Len())
			assert.Equal(t, tt.buf.NumChannels(), got.NumChannels())
			assert.Equal(t, tt.buf.SampleRate, got.SampleRate)
		})
	}
}

func TestTrimLeadingSilence_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := padded(testRate/5, testRate/4)
	before := in.Clone()

	out := TrimLeadingSilence(in, DefaultSilenceThreshold)
	require.NotSame(t, in, out)
	assert.Equal(t, before, in)

	out.Data[0][0] = -1
	assert.Equal(t, before, in)
}

func TestTrimLeadingSilence_Idempotent(t *testing.T) {
	t.Parallel()

	once := TrimLeadingSilence(padded(testRate/3, testRate/3), DefaultSilenceThreshold)
	twice := TrimLeadingSilence(once, DefaultSilenceThreshold)
	assert.Same(t, once, twice)
}

func TestTrimLeadingSilence_ThresholdOnChannelZero(t *testing.T) {
	t.Parallel()

	b := New(testRate, 2, testRate)
	// Only channel 1 has early sound; channel 0 decides.
	b.Data[1][0] = 0.9
	b.Data[0][testRate/2] = 0.9

	got := TrimLeadingSilence(b, DefaultSilenceThreshold)
	assert.Equal(t, testRate/2, got.Len())
	assert.InDelta(t, 0.9, got.Data[0][0], 1e-6)
}

func TestTrimLeadingSilence_FailsClosed(t *testing.T) {
	t.Parallel()

	ragged := &Buffer{SampleRate: testRate, Data: [][]float32{make([]float32, 10), make([]float32, 4)}}
	assert.Same(t, ragged, TrimLeadingSilence(ragged, DefaultSilenceThreshold))

	noRate := &Buffer{Data: [][]float32{make([]float32, testRate)}}
	assert.Same(t, noRate, TrimLeadingSilence(noRate, DefaultSilenceThreshold))

	assert.Nil(t, TrimLeadingSilence(nil, DefaultSilenceThreshold))
}
