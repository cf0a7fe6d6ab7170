package clip

import (
	"log/slog"
	"math"
	"time"
)

const (
	// DefaultSilenceThreshold is the magnitude above which a sample counts as sound.
	DefaultSilenceThreshold = 0.005

	forcedTrim  = 100 * time.Millisecond
	minimumTrim = 50 * time.Millisecond
)

// TrimLeadingSilence drops the silent head of a recording.
//
// Channel 0 is scanned for the first sample whose magnitude exceeds threshold.
// A buffer with no such sample that is longer than 100ms loses a fixed 100ms.
// Trim points under 50ms leave the input untouched. The input is never mutated;
// a malformed buffer is returned as is.
func TrimLeadingSilence(b *Buffer, threshold float64) *Buffer {
	if err := b.Validate(); err != nil {
		slog.Debug("Skipping silence trim", slog.String("component", "clip"), slog.Any("error", err))
		return b
	}

	start := trimPoint(b, threshold)
	if start < framesFor(b.SampleRate, minimumTrim) {
		return b
	}

	out := &Buffer{SampleRate: b.SampleRate, Data: make([][]float32, len(b.Data))}
	for i, ch := range b.Data {
		out.Data[i] = append(make([]float32, 0, len(ch)-start), ch[start:]...)
	}
	return out
}

func trimPoint(b *Buffer, threshold float64) int {
	for i, s := range b.Data[0] {
		if math.Abs(float64(s)) > threshold {
			return i
		}
	}
	forced := framesFor(b.SampleRate, forcedTrim)
	if b.Len() > forced {
		return forced
	}
	return 0
}

func framesFor(sampleRate int, d time.Duration) int {
	return int(int64(sampleRate) * int64(d) / int64(time.Second))
}
