package clip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_Beep(t *testing.T) {
	t.Parallel()

	mono := New(8000, 1, 3)
	mono.Data[0] = []float32{0.1, 0.2, 0.3}

	bb := mono.Beep()
	require.Equal(t, 3, bb.Len())

	samples := make([][2]float64, 4)
	n, ok := bb.Streamer(0, bb.Len()).Stream(samples)
	assert.True(t, ok)
	require.Equal(t, 3, n)
	for i, want := range []float64{0.1, 0.2, 0.3} {
		assert.InDelta(t, want, samples[i][0], 1e-3)
		assert.InDelta(t, want, samples[i][1], 1e-3)
	}
}

func TestFromStreamer(t *testing.T) {
	t.Parallel()

	in := New(8000, 2, 1000)
	in.Data[0][999] = 0.5
	in.Data[1][0] = -0.5

	bb := in.Beep()
	out, err := FromStreamer(bb.Streamer(0, bb.Len()), bb.Format())
	require.NoError(t, err)
	assert.Equal(t, 1000, out.Len())
	assert.InDelta(t, 0.5, out.Data[0][999], 1e-3)
	assert.InDelta(t, -0.5, out.Data[1][0], 1e-3)
}

func TestBuffer_Duration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 500*time.Millisecond, New(8000, 1, 4000).Duration())
	assert.Zero(t, (*Buffer)(nil).Duration())
	assert.Zero(t, (*Buffer)(nil).Len())
}
