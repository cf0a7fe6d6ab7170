package slot

import (
	"fmt"
	"strings"
)

// Color is the palette tag shown on a pad.
type Color int

const (
	Gray Color = iota
	Red
	Orange
	Yellow
	Green
	Teal
	Blue
	Purple
	Pink
)

var colorNames = [...]string{"gray", "red", "orange", "yellow", "green", "teal", "blue", "purple", "pink"}

func (c Color) String() string {
	if c < 0 || int(c) >= len(colorNames) {
		return fmt.Sprintf("color(%d)", int(c))
	}
	return colorNames[c]
}

// ParseColor resolves a palette name, case-insensitively.
func ParseColor(s string) (Color, error) {
	for i, name := range colorNames {
		if strings.EqualFold(s, name) {
			return Color(i), nil
		}
	}
	return Gray, &ParameterError{Field: "color", Reason: fmt.Sprintf("unknown color %q", s)}
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	if c < 0 || int(c) >= len(colorNames) {
		return nil, &ParameterError{Field: "color", Reason: "out of palette"}
	}
	return []byte(colorNames[c]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
