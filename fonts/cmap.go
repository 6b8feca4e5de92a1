package fonts

import (
	"bufio"
	"sort"
	"strings"
	"unicode/utf16"
)

// CMap is a parsed ToUnicode map: source codes of one or more bytes to text.
type CMap struct {
	entries map[string]string
	// lengths are the code lengths in use, longest first.
	lengths []int
}

var keywordBreaks = strings.NewReplacer(
	"begincodespacerange", "begincodespacerange\n",
	"endcodespacerange", "\nendcodespacerange",
	"beginbfchar", "beginbfchar\n",
	"endbfchar", "\nendbfchar",
	"beginbfrange", "beginbfrange\n",
	"endbfrange", "\nendbfrange",
)

// ParseToUnicode reads the bfchar and bfrange sections of a ToUnicode CMap.
func ParseToUnicode(data []byte) *CMap {
	lines := bufio.NewScanner(strings.NewReader(keywordBreaks.Replace(string(data))))
	lines.Buffer(make([]byte, 0, 64*1024), 1<<20)
	m := &CMap{entries: make(map[string]string)}
	lengthSet := make(map[int]struct{})
	state := ""
	for lines.Scan() {
		line := strings.TrimSpace(lines.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		switch {
		case strings.HasSuffix(line, "begincodespacerange"):
			state = "codespace"
			continue
		case strings.HasSuffix(line, "beginbfchar"):
			state = "bfchar"
			continue
		case strings.HasSuffix(line, "beginbfrange"):
			state = "bfrange"
			continue
		case strings.HasPrefix(line, "end"):
			state = ""
			continue
		}
		switch state {
		case "codespace":
			if hexes := hexTokens(line); len(hexes) >= 1 {
				if b := hexBytes(hexes[0]); len(b) > 0 {
					lengthSet[len(b)] = struct{}{}
				}
			}
		case "bfchar":
			hexes := hexTokens(line)
			for i := 0; i+1 < len(hexes); i += 2 {
				src := hexBytes(hexes[i])
				if len(src) == 0 {
					continue
				}
				m.entries[string(src)] = utf16Text(hexBytes(hexes[i+1]))
				lengthSet[len(src)] = struct{}{}
			}
		case "bfrange":
			line = joinUntilBracket(line, lines)
			hexes := hexTokens(line)
			if strings.Contains(line, "[") {
				if len(hexes) >= 3 {
					m.addRange(hexes[0], hexes[1], hexes[2:], true, lengthSet)
				}
				continue
			}
			for i := 0; i+2 < len(hexes); i += 3 {
				m.addRange(hexes[i], hexes[i+1], hexes[i+2:i+3], false, lengthSet)
			}
		}
	}
	if len(lengthSet) == 0 {
		for k := range m.entries {
			lengthSet[len(k)] = struct{}{}
		}
	}
	for l := range lengthSet {
		m.lengths = append(m.lengths, l)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(m.lengths)))
	return m
}

func (m *CMap) addRange(loHex, hiHex string, dst []string, array bool, lengthSet map[int]struct{}) {
	lo, hi := hexBytes(loHex), hexBytes(hiHex)
	n := len(lo)
	if n == 0 {
		return
	}
	lengthSet[n] = struct{}{}
	start, end := bytesInt(lo), bytesInt(hi)
	if end < start || end-start > 0xFFFF {
		return
	}
	if array {
		for i := 0; i <= end-start && i < len(dst); i++ {
			m.entries[string(intBytes(start+i, n))] = utf16Text(hexBytes(dst[i]))
		}
		return
	}
	base := hexBytes(dst[0])
	for i := 0; i <= end-start; i++ {
		// Only the last UTF-16 unit increments.
		d := append([]byte(nil), base...)
		if len(d) >= 2 {
			unit := (int(d[len(d)-2])<<8 | int(d[len(d)-1])) + i
			d[len(d)-2], d[len(d)-1] = byte(unit>>8), byte(unit)
		} else if len(d) == 1 {
			d[0] += byte(i)
		}
		m.entries[string(intBytes(start+i, n))] = utf16Text(d)
	}
}

// Next splits the first code off data and returns its text, the code
// length, and whether the map had an entry. Unknown codes consume the
// shortest code length.
func (m *CMap) Next(data []byte) (string, int, bool) {
	for _, l := range m.lengths {
		if len(data) < l {
			continue
		}
		if val, ok := m.entries[string(data[:l])]; ok {
			return val, l, true
		}
	}
	n := 1
	if len(m.lengths) > 0 {
		n = m.lengths[len(m.lengths)-1]
	}
	if n > len(data) {
		n = len(data)
	}
	return "", n, false
}

// Lookup returns the text for a single code of the given byte length.
func (m *CMap) Lookup(code, length int) (string, bool) {
	v, ok := m.entries[string(intBytes(code, length))]
	return v, ok
}

func (m *CMap) Len() int { return len(m.entries) }

func joinUntilBracket(line string, lines *bufio.Scanner) string {
	if !strings.Contains(line, "[") || strings.Contains(line, "]") {
		return line
	}
	for lines.Scan() {
		next := strings.TrimSpace(lines.Text())
		line += " " + next
		if strings.Contains(next, "]") {
			break
		}
	}
	return line
}

func hexTokens(line string) []string {
	var tokens []string
	for {
		start := strings.IndexByte(line, '<')
		if start == -1 {
			break
		}
		end := strings.IndexByte(line[start+1:], '>')
		if end == -1 {
			break
		}
		tokens = append(tokens, strings.Join(strings.Fields(line[start+1:start+1+end]), ""))
		line = line[start+1+end+1:]
	}
	return tokens
}

func hexBytes(hex string) []byte {
	if len(hex)%2 == 1 {
		hex += "0"
	}
	out := make([]byte, len(hex)/2)
	for i := 0; i < len(hex); i += 2 {
		out[i/2] = hexNibble(hex[i])<<4 | hexNibble(hex[i+1])
	}
	return out
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	}
	return 0
}

func bytesInt(b []byte) int {
	v := 0
	for _, c := range b {
		v = v<<8 | int(c)
	}
	return v
}

func intBytes(v, n int) []byte {
	out := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

func utf16Text(b []byte) string {
	if len(b)%2 == 1 {
		b = append(b, 0)
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return string(utf16.Decode(units))
}
