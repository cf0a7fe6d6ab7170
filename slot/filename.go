package slot

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FileName builds a stable, ASCII-only file name for a pad's clip,
// e.g. "07_air_horn.wav". Pads without a usable name get "07.wav".
func FileName(id ID, name string) string {
	base := fmt.Sprintf("%02d", int(id))
	if ascii := toASCII(name); ascii != "" {
		base += "_" + ascii
	}
	return base + ".wav"
}

func toASCII(str string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
	)
	normalized, _, err := transform.String(t, str)
	if err != nil {
		return ""
	}

	filtered := strings.Map(func(r rune) rune {
		if r > 127 {
			return -1
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, normalized)

	filtered = strings.TrimSpace(strings.ToLower(filtered))
	return strings.Join(strings.Fields(filtered), "_")
}
