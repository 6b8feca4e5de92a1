package fonts

import (
	"strconv"
	"strings"

	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Encoding maps single-byte codes to Unicode. Zero entries are unmapped.
type Encoding [256]rune

// winAnsiNames lists the glyph names of WinAnsiEncoding from 0x20 to 0xFF.
// "-" marks unused codes.
var winAnsiNames = strings.Fields(`
space exclam quotedbl numbersign dollar percent ampersand quotesingle
parenleft parenright asterisk plus comma hyphen period slash
zero one two three four five six seven eight nine colon semicolon less equal greater question
at A B C D E F G H I J K L M N O P Q R S T U V W X Y Z
bracketleft backslash bracketright asciicircum underscore
grave a b c d e f g h i j k l m n o p q r s t u v w x y z
braceleft bar braceright asciitilde -
Euro - quotesinglbase florin quotedblbase ellipsis dagger daggerdbl
circumflex perthousand Scaron guilsinglleft OE - Zcaron -
- quoteleft quoteright quotedblleft quotedblright bullet endash emdash
tilde trademark scaron guilsinglright oe - zcaron Ydieresis
nbspace exclamdown cent sterling currency yen brokenbar section
dieresis copyright ordfeminine guillemotleft logicalnot sfthyphen registered macron
degree plusminus twosuperior threesuperior acute mu paragraph periodcentered
cedilla onesuperior ordmasculine guillemotright onequarter onehalf threequarters questiondown
Agrave Aacute Acircumflex Atilde Adieresis Aring AE Ccedilla
Egrave Eacute Ecircumflex Edieresis Igrave Iacute Icircumflex Idieresis
Eth Ntilde Ograve Oacute Ocircumflex Otilde Odieresis multiply
Oslash Ugrave Uacute Ucircumflex Udieresis Yacute Thorn germandbls
agrave aacute acircumflex atilde adieresis aring ae ccedilla
egrave eacute ecircumflex edieresis igrave iacute icircumflex idieresis
eth ntilde ograve oacute ocircumflex otilde odieresis divide
oslash ugrave uacute ucircumflex udieresis yacute thorn ydieresis
`)

var (
	glyphRunes = buildGlyphNames()

	WinAnsi  = fromCharmap(charmap.Windows1252)
	MacRoman = fromCharmap(charmap.Macintosh)
	Standard = standardEncoding()
	PDFDoc   = fromCharmap(charmap.ISO8859_1)
)

func fromCharmap(cm *charmap.Charmap) Encoding {
	var e Encoding
	for i := 0; i < 256; i++ {
		r := cm.DecodeByte(byte(i))
		if r != utf8.RuneError && (i >= 32 || r >= 32) {
			e[i] = r
		}
	}
	return e
}

func buildGlyphNames() map[string]rune {
	m := map[string]rune{
		"space": ' ', "nbspace": '\u00a0', "sfthyphen": '\u00ad', "minus": '−',
		"fi": 'ﬁ', "fl": 'ﬂ', "ff": 'ﬀ', "ffi": 'ﬃ', "ffl": 'ﬄ', "dotlessi": 'ı',
		"fraction": '⁄', "lslash": 'ł', "Lslash": 'Ł', "ring": '˚', "caron": 'ˇ',
		"breve": '˘', "dotaccent": '˙', "ogonek": '˛', "hungarumlaut": '˝',
		"arrowright": '→', "checkmark": '✓', "uni2022": '•', "periodcentered": '·',
		"middot": '·', "quotesingle": '\'', "grave": '`',
	}
	for i, name := range winAnsiNames {
		if name == "-" {
			continue
		}
		if _, ok := m[name]; ok {
			continue
		}
		if r := charmap.Windows1252.DecodeByte(byte(0x20 + i)); r != utf8.RuneError {
			m[name] = r
		}
	}
	return m
}

// GlyphRune resolves an Adobe glyph name, including the uniXXXX and uXXXX
// forms.
func GlyphRune(name string) (rune, bool) {
	if r, ok := glyphRunes[name]; ok {
		return r, true
	}
	if i := strings.IndexByte(name, '.'); i > 0 {
		return GlyphRune(name[:i])
	}
	var hex string
	switch {
	case strings.HasPrefix(name, "uni") && len(name) >= 7:
		hex = name[3:7]
	case strings.HasPrefix(name, "u") && len(name) >= 5 && len(name) <= 7:
		hex = name[1:]
	default:
		return 0, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(v), true
}

// standardEncoding is Adobe StandardEncoding for the codes résumé text uses;
// it differs from ASCII in the quote characters and has its own upper half.
func standardEncoding() Encoding {
	var e Encoding
	for i := 32; i < 127; i++ {
		e[i] = rune(i)
	}
	e['\''] = '’'
	e['`'] = '‘'
	upper := map[byte]rune{
		0xA1: '¡', 0xA2: '¢', 0xA3: '£', 0xA4: '⁄', 0xA5: '¥', 0xA6: 'ƒ', 0xA7: '§',
		0xA8: '¤', 0xA9: '\'', 0xAA: '“', 0xAB: '«', 0xAC: '‹', 0xAD: '›', 0xAE: 'ﬁ',
		0xAF: 'ﬂ', 0xB1: '–', 0xB2: '†', 0xB3: '‡', 0xB4: '·', 0xB6: '¶', 0xB7: '•',
		0xB8: '‚', 0xB9: '„', 0xBA: '”', 0xBB: '»', 0xBC: '…', 0xBD: '‰', 0xBF: '¿',
		0xC1: '`', 0xC2: '´', 0xC3: 'ˆ', 0xC4: '˜', 0xC5: '¯', 0xC8: '¨', 0xD0: '—',
		0xE1: 'Æ', 0xE8: 'Ł', 0xE9: 'Ø', 0xEA: 'Œ', 0xF1: 'æ', 0xF5: 'ı', 0xF8: 'ł',
		0xF9: 'ø', 0xFA: 'œ', 0xFB: 'ß',
	}
	for k, v := range upper {
		e[k] = v
	}
	return e
}

// BaseEncoding returns the named predefined encoding.
func BaseEncoding(name string) (Encoding, bool) {
	switch name {
	case "WinAnsiEncoding":
		return WinAnsi, true
	case "MacRomanEncoding":
		return MacRoman, true
	case "StandardEncoding":
		return Standard, true
	case "PDFDocEncoding":
		return PDFDoc, true
	}
	return Encoding{}, false
}

// EncodeWinAnsi converts text for a simple font using WinAnsiEncoding.
// Characters outside the code page become '?'.
func EncodeWinAnsi(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}

// DecodeWinAnsi is the inverse of EncodeWinAnsi.
func DecodeWinAnsi(b []byte) string {
	runes := make([]rune, 0, len(b))
	for _, c := range b {
		if r := WinAnsi[c]; r != 0 {
			runes = append(runes, r)
		}
	}
	return string(runes)
}
