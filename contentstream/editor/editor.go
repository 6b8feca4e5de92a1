// Package editor rewrites parsed content streams in place by byte span.
package editor

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/wudi/pdfedit/contentstream"
)

var ErrOverlap = errors.New("patches overlap")

// Patch replaces data[Start:End].
type Patch struct {
	Start, End  int64
	Replacement []byte
}

// Apply returns a copy of data with every patch applied. Patches may be given
// in any order but must not overlap.
func Apply(data []byte, patches []Patch) ([]byte, error) {
	sorted := make([]Patch, len(patches))
	copy(sorted, patches)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var out bytes.Buffer
	out.Grow(len(data))
	var pos int64
	for _, p := range sorted {
		if p.Start < pos || p.End < p.Start || p.End > int64(len(data)) {
			return nil, fmt.Errorf("%w: [%d,%d)", ErrOverlap, p.Start, p.End)
		}
		out.Write(data[pos:p.Start])
		out.Write(p.Replacement)
		pos = p.End
	}
	out.Write(data[pos:])
	return out.Bytes(), nil
}

// Blank produces a replacement for a text-showing operation that draws no
// glyphs but moves the text position by the same displacement. advance is
// in text space units; fontSize and hscale are the state at the operation.
func Blank(op contentstream.Operation, advance, fontSize, hscale float64) []byte {
	var b bytes.Buffer
	switch op.Operator {
	case "'":
		b.WriteString("T* ")
	case "\"":
		if len(op.Operands) >= 2 {
			fmt.Fprintf(&b, "%s Tw %s Tc T* ", formatOperand(op, 0), formatOperand(op, 1))
		} else {
			b.WriteString("T* ")
		}
	}
	scale := fontSize * hscale
	if scale == 0 || advance == 0 {
		b.WriteString("[] TJ")
		return b.Bytes()
	}
	fmt.Fprintf(&b, "[%s] TJ", Format(-advance*1000/scale))
	return b.Bytes()
}

func formatOperand(op contentstream.Operation, i int) string {
	v, _ := op.Number(i)
	return Format(v)
}

// Format writes a number the way content streams expect: no exponent, at
// most four decimals, no trailing zeros.
func Format(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	s = trimZeros(s)
	if s == "-0" {
		return "0"
	}
	return s
}

func trimZeros(s string) string {
	if !bytes.ContainsRune([]byte(s), '.') {
		return s
	}
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}
