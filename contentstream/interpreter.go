package contentstream

import (
	"fmt"

	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/ir/raw"
)

// Segment is one element of a text-showing operation: a string or a TJ
// position adjustment in thousandths of text space.
type Segment struct {
	Bytes    []byte
	Adjust   float64
	IsAdjust bool
}

// TextShow describes a Tj, TJ, ' or " operation.
type TextShow struct {
	Index    int
	Op       *Operation
	Segments []Segment
}

// Interpreter tracks state over a sequence of operations and reports text
// showing and XObject invocations to its callbacks.
type Interpreter struct {
	// OnText receives each text-showing operation and returns the horizontal
	// displacement in text space, which advances the text matrix.
	OnText func(st *State, show TextShow) float64
	// OnXObject is called for Do. Nil ignores XObjects.
	OnXObject func(st *State, name string) error
	// Strict makes an unbalanced Q an error instead of being ignored.
	Strict bool
}

func (in *Interpreter) Run(ops []Operation, st *State) error {
	for i := range ops {
		if err := in.step(i, &ops[i], st); err != nil {
			return fmt.Errorf("operation %d (%s): %w", i, ops[i].Operator, err)
		}
	}
	return nil
}

// RunForm interprets a form XObject's operations with matrix concatenated to
// the current CTM, isolating the caller's graphics state.
func (in *Interpreter) RunForm(ops []Operation, matrix coords.Matrix, st *State) error {
	outer := *st
	st.stack = nil
	st.CTM = matrix.Multiply(st.CTM)
	err := in.Run(ops, st)
	*st = outer
	return err
}

func (in *Interpreter) step(i int, op *Operation, st *State) error {
	switch op.Operator {
	case "q":
		st.Save()
	case "Q":
		if err := st.Restore(); err != nil && in.Strict {
			return err
		}
	case "cm":
		if m, ok := matrixOperands(op); ok {
			st.CTM = m.Multiply(st.CTM)
		}

	case "g":
		if v, ok := op.Number(0); ok {
			st.FillColor, st.fillComps = GrayRGB(v), 1
		}
	case "G":
		if v, ok := op.Number(0); ok {
			st.StrokeColor, st.strokeComps = GrayRGB(v), 1
		}
	case "rg":
		if c, ok := numbers(op, 3); ok {
			st.FillColor, st.fillComps = RGB{clamp(c[0]), clamp(c[1]), clamp(c[2])}, 3
		}
	case "RG":
		if c, ok := numbers(op, 3); ok {
			st.StrokeColor, st.strokeComps = RGB{clamp(c[0]), clamp(c[1]), clamp(c[2])}, 3
		}
	case "k":
		if c, ok := numbers(op, 4); ok {
			st.FillColor, st.fillComps = CMYKRGB(c[0], c[1], c[2], c[3]), 4
		}
	case "K":
		if c, ok := numbers(op, 4); ok {
			st.StrokeColor, st.strokeComps = CMYKRGB(c[0], c[1], c[2], c[3]), 4
		}
	case "cs":
		st.fillComps = spaceComponents(op)
		st.FillColor = Black
	case "CS":
		st.strokeComps = spaceComponents(op)
		st.StrokeColor = Black
	case "sc", "scn":
		if c, ok := colorFromComponents(op); ok {
			st.FillColor = c
		}
	case "SC", "SCN":
		if c, ok := colorFromComponents(op); ok {
			st.StrokeColor = c
		}

	case "BT":
		st.TextMatrix = coords.Identity()
		st.TextLineMatrix = coords.Identity()
		st.InText = true
	case "ET":
		st.InText = false
	case "Tf":
		if name, ok := op.Name(0); ok {
			st.Font = name
		}
		if size, ok := op.Number(1); ok {
			st.FontSize = size
		}
	case "Tc":
		if v, ok := op.Number(0); ok {
			st.CharSpacing = v
		}
	case "Tw":
		if v, ok := op.Number(0); ok {
			st.WordSpacing = v
		}
	case "Tz":
		if v, ok := op.Number(0); ok {
			st.HScale = v / 100
		}
	case "TL":
		if v, ok := op.Number(0); ok {
			st.Leading = v
		}
	case "Ts":
		if v, ok := op.Number(0); ok {
			st.Rise = v
		}
	case "Tr":
		if v, ok := op.Number(0); ok {
			st.RenderMode = TextRenderMode(int(v))
		}
	case "Td":
		tx, _ := op.Number(0)
		ty, _ := op.Number(1)
		st.nextLine(tx, ty)
	case "TD":
		tx, _ := op.Number(0)
		ty, _ := op.Number(1)
		st.Leading = -ty
		st.nextLine(tx, ty)
	case "Tm":
		if m, ok := matrixOperands(op); ok {
			st.TextLineMatrix = m
			st.TextMatrix = m
		}
	case "T*":
		st.nextLine(0, -st.Leading)

	case "Tj":
		if s, ok := stringOperand(op, 0); ok {
			in.show(i, op, st, []Segment{{Bytes: s}})
		}
	case "'":
		st.nextLine(0, -st.Leading)
		if s, ok := stringOperand(op, 0); ok {
			in.show(i, op, st, []Segment{{Bytes: s}})
		}
	case "\"":
		if aw, ok := op.Number(0); ok {
			st.WordSpacing = aw
		}
		if ac, ok := op.Number(1); ok {
			st.CharSpacing = ac
		}
		st.nextLine(0, -st.Leading)
		if s, ok := stringOperand(op, 2); ok {
			in.show(i, op, st, []Segment{{Bytes: s}})
		}
	case "TJ":
		if len(op.Operands) == 0 {
			return nil
		}
		arr, ok := op.Operands[0].(*raw.ArrayObj)
		if !ok {
			return nil
		}
		segs := make([]Segment, 0, arr.Len())
		for _, it := range arr.Items {
			switch v := it.(type) {
			case raw.StringObj:
				segs = append(segs, Segment{Bytes: v.Bytes})
			case raw.NumberObj:
				segs = append(segs, Segment{Adjust: v.Float(), IsAdjust: true})
			}
		}
		in.show(i, op, st, segs)

	case "Do":
		if name, ok := op.Name(0); ok && in.OnXObject != nil {
			return in.OnXObject(st, name)
		}
	}
	return nil
}

func (in *Interpreter) show(i int, op *Operation, st *State, segs []Segment) {
	if in.OnText == nil {
		return
	}
	st.Advance(in.OnText(st, TextShow{Index: i, Op: op, Segments: segs}))
}

func matrixOperands(op *Operation) (coords.Matrix, bool) {
	v, ok := numbers(op, 6)
	if !ok {
		return coords.Matrix{}, false
	}
	return coords.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}, true
}

func numbers(op *Operation, n int) ([]float64, bool) {
	if len(op.Operands) < n {
		return nil, false
	}
	out := make([]float64, n)
	base := len(op.Operands) - n
	for i := 0; i < n; i++ {
		v, ok := op.Number(base + i)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func stringOperand(op *Operation, i int) ([]byte, bool) {
	if i >= len(op.Operands) {
		return nil, false
	}
	s, ok := op.Operands[i].(raw.StringObj)
	return s.Bytes, ok
}

func spaceComponents(op *Operation) int {
	name, _ := op.Name(0)
	switch name {
	case "DeviceGray", "CalGray", "G":
		return 1
	case "DeviceRGB", "CalRGB", "RGB":
		return 3
	case "DeviceCMYK", "CMYK":
		return 4
	}
	return 0
}

// colorFromComponents interprets sc/scn operands by their count. Pattern
// names are ignored.
func colorFromComponents(op *Operation) (RGB, bool) {
	var vals []float64
	for i := range op.Operands {
		if v, ok := op.Number(i); ok {
			vals = append(vals, v)
		}
	}
	switch len(vals) {
	case 1:
		return GrayRGB(vals[0]), true
	case 3:
		return RGB{clamp(vals[0]), clamp(vals[1]), clamp(vals[2])}, true
	case 4:
		return CMYKRGB(vals[0], vals[1], vals[2], vals[3]), true
	}
	return RGB{}, false
}
