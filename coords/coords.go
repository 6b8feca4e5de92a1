package coords

import (
	"errors"
	"math"
)

const (
	// CapHeightRatio approximates the distance from baseline to glyph top as
	// a fraction of the font size.
	CapHeightRatio = 0.75
	// HeuristicAdvance is the average glyph advance as a fraction of the font
	// size, used when no metrics are known.
	HeuristicAdvance = 0.6
)

type Matrix [6]float64

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

// Multiply returns m×o: applying m first, then o.
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

type Point struct{ X, Y float64 }

func (m Matrix) Transform(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-10 {
		return Matrix{}, errors.New("matrix singular")
	}
	return Matrix{
		m[3] / det, -m[1] / det, -m[2] / det, m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det, (m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}

// ScaleY is the length of the transformed unit Y vector, the effective
// vertical scale of text drawn with m.
func (m Matrix) ScaleY() float64 { return math.Hypot(m[2], m[3]) }

// ScaleX is the length of the transformed unit X vector.
func (m Matrix) ScaleX() float64 { return math.Hypot(m[0], m[1]) }

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }
func Scale(sx, sy float64) Matrix     { return Matrix{sx, 0, 0, sy, 0, 0} }
func Rotate(angle float64) Matrix {
	c, s := math.Cos(angle), math.Sin(angle)
	return Matrix{c, s, -s, c, 0, 0}
}

// UIY converts a PDF baseline to the UI-space top of the glyph box.
func UIY(pageHeight, pdfBaselineY, fontSize float64) float64 {
	return pageHeight - pdfBaselineY - CapHeightRatio*fontSize
}

// PDFBaselineY is the inverse of UIY.
func PDFBaselineY(pageHeight, uiY, fontSize float64) float64 {
	return pageHeight - uiY - CapHeightRatio*fontSize
}

// HeuristicWidth estimates the advance of text when the font gives no metrics.
func HeuristicWidth(text string, fontSize float64) float64 {
	n := 0
	for range text {
		n++
	}
	return float64(n) * fontSize * HeuristicAdvance
}

// Viewport maps page space to screen space for a zoom factor.
type Viewport struct {
	Zoom float64
}

// ToScreen scales a UI-space point. A zero zoom is treated as 1.
func (v Viewport) ToScreen(x, y float64) (float64, float64) {
	z := v.Zoom
	if z == 0 {
		z = 1
	}
	return x * z, y * z
}

// FromScreen maps a screen point back to UI space.
func (v Viewport) FromScreen(x, y float64) (float64, float64) {
	z := v.Zoom
	if z == 0 {
		z = 1
	}
	return x / z, y / z
}
