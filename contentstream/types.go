package contentstream

// TextRenderMode matches PDF text rendering modes set via Tr operator.
type TextRenderMode int

const (
	TextFill TextRenderMode = iota
	TextStroke
	TextFillStroke
	TextInvisible
	TextFillClip
	TextStrokeClip
	TextFillStrokeClip
	TextClip
)

// Visible reports whether glyphs drawn in this mode leave marks on the page.
func (m TextRenderMode) Visible() bool { return m != TextInvisible && m != TextClip }

// RGB is a color with components in [0,1].
type RGB [3]float64

var Black = RGB{0, 0, 0}

func GrayRGB(g float64) RGB { return RGB{clamp(g), clamp(g), clamp(g)} }

// CMYKRGB converts with the naive complement formula.
func CMYKRGB(c, m, y, k float64) RGB {
	return RGB{
		clamp((1 - c) * (1 - k)),
		clamp((1 - m) * (1 - k)),
		clamp((1 - y) * (1 - k)),
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
