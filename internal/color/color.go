package color

import (
	"errors"
	"strings"
)

// ErrUnrecognizedColor indicates the description matched neither the named
// color table nor the descriptive phrase table. Callers must treat this as a
// validation failure rather than guess.
var ErrUnrecognizedColor = errors.New("unrecognized color description")

// Spec is a normalized color: either an RGB triple or a white temperature in
// Kelvin, never both.
type Spec struct {
	RGB          *[3]uint8
	TemperatureK *int
}

// IsTemperature reports whether the value is a white temperature.
func (s Spec) IsTemperature() bool { return s.TemperatureK != nil }

func rgb(r, g, b uint8) Spec {
	v := [3]uint8{r, g, b}
	return Spec{RGB: &v}
}

func kelvin(k int) Spec {
	return Spec{TemperatureK: &k}
}

// namedColors is the direct lookup table: plain color names.
var namedColors = map[string]Spec{
	"red":       rgb(255, 0, 0),
	"green":     rgb(0, 128, 0),
	"blue":      rgb(0, 0, 255),
	"yellow":    rgb(255, 255, 0),
	"orange":    rgb(255, 165, 0),
	"purple":    rgb(128, 0, 128),
	"violet":    rgb(238, 130, 238),
	"pink":      rgb(255, 192, 203),
	"magenta":   rgb(255, 0, 255),
	"cyan":      rgb(0, 255, 255),
	"teal":      rgb(0, 128, 128),
	"lime":      rgb(0, 255, 0),
	"white":     rgb(255, 255, 255),
	"gold":      rgb(255, 215, 0),
	"brown":     rgb(165, 42, 42),
	"crimson":   rgb(220, 20, 60),
	"indigo":    rgb(75, 0, 130),
	"salmon":    rgb(250, 128, 114),
	"coral":     rgb(255, 127, 80),
	"turquoise": rgb(64, 224, 208),
	"lavender":  rgb(230, 230, 250),
	"sky blue":  rgb(135, 206, 235),
}

// temperatureWords is the direct lookup table for common white-temperature
// descriptions.
var temperatureWords = map[string]Spec{
	"candlelight":   kelvin(1800),
	"warm white":    kelvin(2700),
	"warm":          kelvin(2700),
	"soft white":    kelvin(3000),
	"neutral white": kelvin(3500),
	"cool white":    kelvin(4000),
	"cool":          kelvin(4000),
	"daylight":      kelvin(5500),
	"cold white":    kelvin(6500),
}

// phrases is the fallback table: descriptive and metaphorical color language.
// Keys are normalized; the "the color of X" prefix is stripped before lookup
// so "the color of the sky" resolves through the "sky" entry.
var phrases = map[string]Spec{
	"sky":          rgb(135, 206, 235),
	"sunset":       rgb(252, 94, 3),
	"sunrise":      rgb(255, 163, 77),
	"ocean":        rgb(0, 105, 148),
	"sea":          rgb(0, 105, 148),
	"grass":        rgb(86, 156, 24),
	"forest":       rgb(34, 89, 34),
	"fire":         rgb(226, 88, 34),
	"snow":         rgb(255, 250, 250),
	"midnight":     rgb(25, 25, 112),
	"moonlight":    rgb(212, 222, 234),
	"sand":         rgb(194, 178, 128),
	"blood":        rgb(138, 3, 3),
	"cotton candy": rgb(255, 188, 217),
	"rose":         rgb(255, 0, 127),
	"mint":         rgb(152, 255, 152),
	"peach":        rgb(255, 229, 180),
	"night sky":    rgb(25, 25, 112),
}

// Interpret maps a natural-language color or temperature description to a
// normalized Spec. Resolution is two-tier: named colors and temperature words
// first, then the descriptive phrase table. It is a deterministic local
// lookup so color requests stay reproducible.
func Interpret(description string) (Spec, error) {
	key := normalize(description)
	if key == "" {
		return Spec{}, ErrUnrecognizedColor
	}

	if spec, ok := namedColors[key]; ok {
		return spec, nil
	}
	if spec, ok := temperatureWords[key]; ok {
		return spec, nil
	}

	phrase := strippedPhrase(key)
	if spec, ok := phrases[phrase]; ok {
		return spec, nil
	}

	return Spec{}, ErrUnrecognizedColor
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// strippedPhrase removes metaphor scaffolding ("the color of the sky" ->
// "sky") so the phrase table stays small.
func strippedPhrase(key string) string {
	for _, prefix := range []string{"the color of ", "color of ", "like "} {
		if strings.HasPrefix(key, prefix) {
			key = strings.TrimPrefix(key, prefix)
			break
		}
	}
	key = strings.TrimPrefix(key, "the ")
	key = strings.TrimPrefix(key, "a ")
	return strings.TrimSpace(key)
}
