package contentstream

import (
	"errors"

	"github.com/wudi/pdfedit/coords"
)

var ErrStateUnderflow = errors.New("state stack empty")

// GraphicsState holds the parameters saved and restored by q/Q, including
// the text state parameters.
type GraphicsState struct {
	CTM         coords.Matrix
	FillColor   RGB
	StrokeColor RGB
	// fillComps is the component count of the current fill color space; 0
	// means the space is not a device space we can convert.
	fillComps   int
	strokeComps int

	Font        string // resource name set by Tf
	FontSize    float64
	CharSpacing float64
	WordSpacing float64
	HScale      float64 // Tz, as a fraction (1 = 100%)
	Leading     float64
	Rise        float64
	RenderMode  TextRenderMode
}

// State is the full interpreter state: graphics stack and text matrices.
type State struct {
	GraphicsState
	TextMatrix     coords.Matrix
	TextLineMatrix coords.Matrix
	InText         bool

	stack []GraphicsState
}

func NewState(ctm coords.Matrix) *State {
	return &State{
		GraphicsState: GraphicsState{
			CTM:         ctm,
			FillColor:   Black,
			StrokeColor: Black,
			fillComps:   1,
			strokeComps: 1,
			HScale:      1,
		},
		TextMatrix:     coords.Identity(),
		TextLineMatrix: coords.Identity(),
	}
}

func (s *State) Save() { s.stack = append(s.stack, s.GraphicsState) }

func (s *State) Restore() error {
	n := len(s.stack)
	if n == 0 {
		return ErrStateUnderflow
	}
	s.GraphicsState = s.stack[n-1]
	s.stack = s.stack[:n-1]
	return nil
}

// Depth is the number of saved graphics states.
func (s *State) Depth() int { return len(s.stack) }

// TextRenderingMatrix maps glyph space (scaled by the font size) to device
// space at the current text position.
func (s *State) TextRenderingMatrix() coords.Matrix {
	params := coords.Matrix{s.FontSize * s.HScale, 0, 0, s.FontSize, 0, s.Rise}
	return params.Multiply(s.TextMatrix).Multiply(s.CTM)
}

// BaselineMatrix is TextMatrix×CTM with rise applied, the transform of a run
// origin in user space without font scaling.
func (s *State) BaselineMatrix() coords.Matrix {
	return coords.Translate(0, s.Rise).Multiply(s.TextMatrix).Multiply(s.CTM)
}

func (s *State) nextLine(tx, ty float64) {
	s.TextLineMatrix = coords.Translate(tx, ty).Multiply(s.TextLineMatrix)
	s.TextMatrix = s.TextLineMatrix
}

// Advance moves the text matrix by tx unscaled text space units.
func (s *State) Advance(tx float64) {
	s.TextMatrix = coords.Translate(tx, 0).Multiply(s.TextMatrix)
}
