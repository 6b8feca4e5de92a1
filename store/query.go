package store

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/wudi/pdfedit/model"
)

// DefaultTolerance is the hit-test slack, in points, around run boxes.
const DefaultTolerance = 5

// TextAt returns the run whose UI box, grown by tolerance, contains (x, y).
// When several do, the one whose box is closest to the point wins, then the
// earliest in page order.
func (s *Store) TextAt(pageIndex int, x, y, tolerance float64) (model.TextRun, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return model.TextRun{}, false, ErrNoDocumentLoaded
	}
	if pageIndex < 0 || pageIndex >= len(s.doc.pages) {
		return model.TextRun{}, false, nil
	}
	if tolerance < 0 {
		tolerance = DefaultTolerance
	}
	page := s.doc.pages[pageIndex]
	probe := model.Rect{X: x - tolerance, Y: y - tolerance, Width: 2 * tolerance, Height: 2 * tolerance}
	hits := s.doc.index[pageIndex].query(probe)
	sort.Ints(hits)

	best, bestDist := -1, 0.0
	for _, i := range hits {
		r := page.TextRuns[i]
		if !r.Rect().Contains(x, y, tolerance) {
			continue
		}
		d := distance(r.Rect(), x, y)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return model.TextRun{}, false, nil
	}
	return page.TextRuns[best], true, nil
}

// distance is zero inside r and the Euclidean gap to r outside it.
func distance(r model.Rect, x, y float64) float64 {
	dx := max(r.X-x, 0, x-(r.X+r.Width))
	dy := max(r.Y-y, 0, y-(r.Y+r.Height))
	return dx*dx + dy*dy
}

// FindTextRuns returns every run whose text matches pattern, in page order.
func (s *Store) FindTextRuns(pattern string) ([]model.TextRun, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil, ErrNoDocumentLoaded
	}
	var out []model.TextRun
	for _, p := range s.doc.pages {
		for _, r := range p.TextRuns {
			if re.MatchString(r.Text) {
				out = append(out, r)
			}
		}
	}
	return out, nil
}
