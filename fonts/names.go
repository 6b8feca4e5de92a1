package fonts

import (
	"regexp"
	"strings"
	"unicode"
)

const FallbackFamily = "Arial"

var (
	subsetPrefix  = regexp.MustCompile(`^[A-Z]{6}\+`)
	styleSuffix   = regexp.MustCompile(`(PSMT|MT|PS|BoldItalic|BoldOblique|Bold|Italic|Oblique|Regular)$`)
	boldPattern   = regexp.MustCompile(`Bold|Black|Heavy|Bd`)
	italicPattern = regexp.MustCompile(`Italic|Oblique|It([A-Z]|$)`)
)

// StandardFamilies is the fallback palette offered next to discovered fonts.
var StandardFamilies = []string{
	"Arial",
	"Helvetica",
	"Times New Roman",
	"Georgia",
	"Courier New",
	"Verdana",
	"Tahoma",
	"Trebuchet MS",
}

var canonical = map[string]string{
	"times":         "Times New Roman",
	"timesroman":    "Times New Roman",
	"timesnewroman": "Times New Roman",
	"helvetica":     "Helvetica",
	"courier":       "Courier New",
	"couriernew":    "Courier New",
	"arial":         "Arial",
	"georgia":       "Georgia",
	"verdana":       "Verdana",
	"tahoma":        "Tahoma",
	"trebuchet":     "Trebuchet MS",
	"trebuchetms":   "Trebuchet MS",
}

// Checked in order when no exact entry matches.
var canonicalSubstrings = []string{"times", "helvetica", "courier", "arial", "georgia", "verdana", "tahoma", "trebuchet"}

// StripSubset removes a six-letter subset tag such as "ABCDEF+".
func StripSubset(name string) string { return subsetPrefix.ReplaceAllString(name, "") }

// CleanFamily reduces a raw PDF font name to a family name:
// "ABCDEF+TimesNewRomanPS-BoldMT" becomes "Times New Roman".
func CleanFamily(raw string) string {
	name := StripSubset(strings.TrimSpace(raw))
	if i := strings.IndexByte(name, ','); i >= 0 {
		name = name[:i]
	}
	if i := strings.IndexByte(name, '-'); i > 0 {
		name = name[:i]
	}
	for {
		next := styleSuffix.ReplaceAllString(name, "")
		next = strings.TrimRightFunc(next, unicode.IsDigit)
		if next == name || next == "" {
			break
		}
		name = next
	}
	return splitCamel(name)
}

func splitCamel(s string) string {
	if strings.ContainsRune(s, ' ') {
		return strings.Join(strings.Fields(s), " ")
	}
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte(' ')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ResolveFamily maps a raw or cleaned name to a canonical family: an exact
// table hit, then a substring hit, then FallbackFamily.
func ResolveFamily(raw string) string {
	key := familyKey(CleanFamily(raw))
	if fam, ok := canonical[key]; ok {
		return fam
	}
	full := familyKey(StripSubset(raw))
	for _, sub := range canonicalSubstrings {
		if strings.Contains(full, sub) {
			return canonical[sub]
		}
	}
	return FallbackFamily
}

func familyKey(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' || r == '_' {
			return -1
		}
		return r
	}, s)
}

// IsBold infers weight from the name or a numeric /FontWeight.
func IsBold(name string, weight float64) bool {
	return weight >= 600 || boldPattern.MatchString(StripSubset(name))
}

func IsItalic(name string) bool { return italicPattern.MatchString(StripSubset(name)) }

// Base14 identifies one of the standard Latin Type1 families.
type Base14 int

const (
	Helvetica Base14 = iota
	Times
	Courier
)

func (b Base14) String() string {
	switch b {
	case Times:
		return "Times"
	case Courier:
		return "Courier"
	}
	return "Helvetica"
}

// ClassifyFamily picks the standard family closest in appearance.
func ClassifyFamily(family string) Base14 {
	key := familyKey(family)
	switch {
	case strings.Contains(key, "courier"), strings.Contains(key, "mono"), strings.Contains(key, "consol"):
		return Courier
	case strings.Contains(key, "times"), strings.Contains(key, "georgia"), strings.Contains(key, "garamond"),
		strings.Contains(key, "cambria"), strings.Contains(key, "book"), strings.Contains(key, "minion"),
		strings.Contains(key, "serif") && !strings.Contains(key, "sans"):
		return Times
	}
	return Helvetica
}

// StandardName returns the standard Type1 font name for a family variant,
// e.g. (Times, bold, italic) gives "Times-BoldItalic".
func StandardName(fam Base14, bold, italic bool) string {
	switch fam {
	case Times:
		switch {
		case bold && italic:
			return "Times-BoldItalic"
		case bold:
			return "Times-Bold"
		case italic:
			return "Times-Italic"
		}
		return "Times-Roman"
	}
	return fam.String() + obliqueSuffix(bold, italic)
}

func obliqueSuffix(bold, italic bool) string {
	switch {
	case bold && italic:
		return "-BoldOblique"
	case bold:
		return "-Bold"
	case italic:
		return "-Oblique"
	}
	return ""
}

var standardNames = map[string]bool{
	"Times-Roman": true, "Times-Bold": true, "Times-Italic": true, "Times-BoldItalic": true,
	"Helvetica": true, "Helvetica-Bold": true, "Helvetica-Oblique": true, "Helvetica-BoldOblique": true,
	"Courier": true, "Courier-Bold": true, "Courier-Oblique": true, "Courier-BoldOblique": true,
	"Symbol": true, "ZapfDingbats": true,
}

// IsStandardName reports whether name is one of the fourteen standard fonts.
func IsStandardName(name string) bool { return standardNames[StripSubset(name)] }
