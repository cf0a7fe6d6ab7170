package slot

import (
	"errors"
	"fmt"
	"math"

	"soundgrid/clip"
)

// DefaultCount is the number of pads on a board.
const DefaultCount = 36

// Parameter bounds.
const (
	MinSpeed        = 0.0
	MaxSpeed        = 4.0
	MaxGain         = 2.0
	MaxEchoDelay    = 5.0
	MaxEchoFeedback = 0.8
)

var (
	// ErrUnknownSlot is returned for ids outside the board.
	ErrUnknownSlot = errors.New("unknown slot")
	// ErrInvalidParameter is matched by every *ParameterError.
	ErrInvalidParameter = errors.New("invalid slot parameter")
)

// ID addresses one pad, in [0, count).
type ID int

// Parameters is everything a pad stores: its clip and how to play it.
type Parameters struct {
	Name         string
	Clip         *clip.Buffer
	Speed        float64
	Balance      float64
	Gain         float64
	EchoDelay    float64 // seconds, 0 disables echo
	EchoFeedback float64
	Loop         bool
	Color        Color
}

// Defaults returns the parameters of an empty pad.
func Defaults() Parameters {
	return Parameters{
		Speed: 1,
		Gain:  1,
		Color: Gray,
	}
}

// HasClip reports whether the pad holds audio.
func (p Parameters) HasClip() bool {
	return p.Clip != nil && p.Clip.Len() > 0
}

// EchoActive reports whether a trigger should produce an echo burst.
// Looping pads never echo.
func (p Parameters) EchoActive() bool {
	return p.EchoDelay > 0 && p.EchoFeedback > 0 && !p.Loop
}

// Validate checks every numeric parameter against its range.
func (p Parameters) Validate() error {
	switch {
	case !finite(p.Speed) || p.Speed <= MinSpeed || p.Speed > MaxSpeed:
		return &ParameterError{Field: "speed", Reason: fmt.Sprintf("%v outside (0, %v]", p.Speed, MaxSpeed)}
	case !finite(p.Balance) || p.Balance < -1 || p.Balance > 1:
		return &ParameterError{Field: "balance", Reason: fmt.Sprintf("%v outside [-1, 1]", p.Balance)}
	case !finite(p.Gain) || p.Gain < 0 || p.Gain > MaxGain:
		return &ParameterError{Field: "gain", Reason: fmt.Sprintf("%v outside [0, %v]", p.Gain, MaxGain)}
	case !finite(p.EchoDelay) || p.EchoDelay < 0 || p.EchoDelay > MaxEchoDelay:
		return &ParameterError{Field: "echo_delay", Reason: fmt.Sprintf("%v outside [0, %v]", p.EchoDelay, MaxEchoDelay)}
	case !finite(p.EchoFeedback) || p.EchoFeedback < 0 || p.EchoFeedback > MaxEchoFeedback:
		return &ParameterError{Field: "echo_feedback", Reason: fmt.Sprintf("%v outside [0, %v]", p.EchoFeedback, MaxEchoFeedback)}
	case p.Color < Gray || p.Color > Pink:
		return &ParameterError{Field: "color", Reason: "out of palette"}
	}
	if p.Clip != nil {
		if err := p.Clip.Validate(); err != nil {
			return &ParameterError{Field: "clip", Reason: err.Error()}
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Patch is a partial update. Nil fields keep their previous value;
// ClearClip drops the audio even when Clip is nil.
type Patch struct {
	Name         *string
	Clip         *clip.Buffer
	ClearClip    bool
	Speed        *float64
	Balance      *float64
	Gain         *float64
	EchoDelay    *float64
	EchoFeedback *float64
	Loop         *bool
	Color        *Color
}

// Apply merges the patch onto p.
func (pt Patch) Apply(p Parameters) Parameters {
	if pt.Name != nil {
		p.Name = *pt.Name
	}
	if pt.ClearClip {
		p.Clip = nil
	}
	if pt.Clip != nil {
		p.Clip = pt.Clip
	}
	if pt.Speed != nil {
		p.Speed = *pt.Speed
	}
	if pt.Balance != nil {
		p.Balance = *pt.Balance
	}
	if pt.Gain != nil {
		p.Gain = *pt.Gain
	}
	if pt.EchoDelay != nil {
		p.EchoDelay = *pt.EchoDelay
	}
	if pt.EchoFeedback != nil {
		p.EchoFeedback = *pt.EchoFeedback
	}
	if pt.Loop != nil {
		p.Loop = *pt.Loop
	}
	if pt.Color != nil {
		p.Color = *pt.Color
	}
	return p
}

// Replace builds a patch that overwrites every field with p.
func Replace(p Parameters) Patch {
	return Patch{
		Name:         &p.Name,
		Clip:         p.Clip,
		ClearClip:    p.Clip == nil,
		Speed:        &p.Speed,
		Balance:      &p.Balance,
		Gain:         &p.Gain,
		EchoDelay:    &p.EchoDelay,
		EchoFeedback: &p.EchoFeedback,
		Loop:         &p.Loop,
		Color:        &p.Color,
	}
}

// ParameterError describes a rejected field.
type ParameterError struct {
	Field  string
	Reason string
}

func (e *ParameterError) Error() string {
	return e.Field + ": " + e.Reason
}

// Is lets errors.Is match ErrInvalidParameter.
func (e *ParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}
