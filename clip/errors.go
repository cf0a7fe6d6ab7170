package clip

import "errors"

var (
	// ErrDecodeFailure is reported when a buffer's shape is malformed.
	ErrDecodeFailure = errors.New("malformed audio buffer")
	// ErrNotWAV is returned when a byte sequence is not a RIFF/WAVE container.
	ErrNotWAV = errors.New("not a WAV container")
	// ErrUnsupportedFormat is returned for containers this package cannot decode.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrEmptyClip is returned when an operation needs at least one frame.
	ErrEmptyClip = errors.New("clip has no audio frames")
)
