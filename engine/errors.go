package engine

import "errors"

var (
	// ErrPlaybackRejected is returned by Trigger when playback could not be
	// started even after resuming the audio context once.
	ErrPlaybackRejected = errors.New("playback rejected")
	// ErrStopped is returned by calls made after Stop.
	ErrStopped = errors.New("engine stopped")
	// ErrGraphWiring is logged when an effect node-set cannot be built; the
	// instance then plays on the direct path.
	ErrGraphWiring = errors.New("effect graph wiring failed")
	// ErrNoContext is returned by Devices while no audio context is open.
	ErrNoContext = errors.New("no audio context")
)
