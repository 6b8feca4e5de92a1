package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wudi/pdfedit/builder"
)

// ParseColor reads a hex color with or without a leading '#'. Both the
// six-digit and the three-digit forms are accepted.
func ParseColor(s string) (builder.Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return builder.Color{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return builder.Color{}, fmt.Errorf("invalid color %q", s)
	}
	return builder.Color{
		R: float64(v>>16&0xFF) / 255,
		G: float64(v>>8&0xFF) / 255,
		B: float64(v&0xFF) / 255,
	}, nil
}

// hexDigits returns the color as six lowercase hex digits without '#'.
func hexDigits(s string) string {
	c, err := ParseColor(s)
	if err != nil {
		return "000000"
	}
	return fmt.Sprintf("%02x%02x%02x", channel(c.R), channel(c.G), channel(c.B))
}

func channel(v float64) int {
	return int(v*255 + 0.5)
}
