package fonts

import (
	"bytes"
	"unicode"

	"github.com/go-text/typesetting/di"
	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
)

// Shaper measures text with HarfBuzz shaping against an embedded font
// program. It is used for fonts that carry no width table.
type Shaper struct {
	face   *gofont.Face
	shaper shaping.HarfbuzzShaper
}

func NewShaper(program []byte) (*Shaper, error) {
	face, err := gofont.ParseTTF(bytes.NewReader(program))
	if err != nil {
		return nil, err
	}
	return &Shaper{face: face}, nil
}

// Measure returns the advance of text in thousandths of an em.
func (s *Shaper) Measure(text string) float64 {
	runes := []rune(text)
	if len(runes) == 0 {
		return 0
	}
	script := DetectScript(runes)
	out := s.shaper.Shape(shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: scriptDirection(script),
		Face:      s.face,
		// One em is 1000 units so advances come back in glyph space.
		Size:     fixed.Int26_6(1000 * 64),
		Script:   script,
		Language: language.DefaultLanguage(),
	})
	var total float64
	for _, g := range out.Glyphs {
		total += float64(g.XAdvance) / 64.0
	}
	return total
}

// MeasureShaped parses program and measures text in one step.
func MeasureShaped(program []byte, text string) (float64, error) {
	s, err := NewShaper(program)
	if err != nil {
		return 0, err
	}
	return s.Measure(text), nil
}

func scriptDirection(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew, language.Syriac, language.Thaana, language.Nko:
		return di.DirectionRTL
	}
	return di.DirectionLTR
}

// DetectScript returns the most frequent script among runes, Latin when
// nothing is recognised.
func DetectScript(runes []rune) language.Script {
	counts := make(map[language.Script]int)
	best, bestCount := language.Latin, 0
	for _, r := range runes {
		script := scriptFromRune(r)
		if script == language.Unknown {
			continue
		}
		counts[script]++
		if counts[script] > bestCount {
			bestCount = counts[script]
			best = script
		}
	}
	return best
}

func scriptFromRune(r rune) language.Script {
	switch {
	case unicode.Is(unicode.Latin, r):
		return language.Latin
	case unicode.Is(unicode.Greek, r):
		return language.Greek
	case unicode.Is(unicode.Cyrillic, r):
		return language.Cyrillic
	case unicode.Is(unicode.Arabic, r):
		return language.Arabic
	case unicode.Is(unicode.Hebrew, r):
		return language.Hebrew
	case unicode.Is(unicode.Han, r):
		return language.Han
	case unicode.Is(unicode.Hiragana, r):
		return language.Hiragana
	case unicode.Is(unicode.Katakana, r):
		return language.Katakana
	case unicode.Is(unicode.Hangul, r):
		return language.Hangul
	}
	return language.Unknown
}
