package store

import "github.com/wudi/pdfedit/model"

const quadCapacity = 10

// quadTree indexes run rectangles of one page in UI space.
type quadTree struct {
	bounds model.Rect
	points []quadPoint
	nodes  []*quadTree
}

type quadPoint struct {
	rect  model.Rect
	index int
}

func newQuadTree(bounds model.Rect) *quadTree {
	return &quadTree{bounds: bounds, points: make([]quadPoint, 0, quadCapacity)}
}

// insert adds rect. Rectangles outside the tree bounds are kept at the root
// so queries still find them.
func (qt *quadTree) insert(rect model.Rect, index int) {
	if !qt.tryInsert(rect, index) {
		qt.points = append(qt.points, quadPoint{rect: rect, index: index})
	}
}

func (qt *quadTree) tryInsert(rect model.Rect, index int) bool {
	if !intersects(qt.bounds, rect) {
		return false
	}
	if qt.nodes != nil {
		for _, node := range qt.nodes {
			if contains(node.bounds, rect) && node.tryInsert(rect, index) {
				return true
			}
		}
		qt.points = append(qt.points, quadPoint{rect: rect, index: index})
		return true
	}
	if len(qt.points) < quadCapacity || qt.bounds.Width < 1 || qt.bounds.Height < 1 {
		qt.points = append(qt.points, quadPoint{rect: rect, index: index})
		return true
	}
	qt.subdivide()
	old := qt.points
	qt.points = make([]quadPoint, 0, quadCapacity)
	for _, p := range old {
		qt.tryInsert(p.rect, p.index)
	}
	return qt.tryInsert(rect, index)
}

func (qt *quadTree) subdivide() {
	b := qt.bounds
	w, h := b.Width/2, b.Height/2
	qt.nodes = []*quadTree{
		newQuadTree(model.Rect{X: b.X, Y: b.Y, Width: w, Height: h}),
		newQuadTree(model.Rect{X: b.X + w, Y: b.Y, Width: w, Height: h}),
		newQuadTree(model.Rect{X: b.X, Y: b.Y + h, Width: w, Height: h}),
		newQuadTree(model.Rect{X: b.X + w, Y: b.Y + h, Width: w, Height: h}),
	}
}

// query returns the indexes of rectangles intersecting r.
func (qt *quadTree) query(r model.Rect) []int {
	var found []int
	for _, p := range qt.points {
		if intersects(p.rect, r) {
			found = append(found, p.index)
		}
	}
	if qt.nodes != nil && intersects(qt.bounds, r) {
		for _, node := range qt.nodes {
			found = append(found, node.query(r)...)
		}
	}
	return found
}

func intersects(a, b model.Rect) bool {
	return !(b.X > a.X+a.Width || b.X+b.Width < a.X || b.Y > a.Y+a.Height || b.Y+b.Height < a.Y)
}

func contains(outer, inner model.Rect) bool {
	return inner.X >= outer.X && inner.X+inner.Width <= outer.X+outer.Width &&
		inner.Y >= outer.Y && inner.Y+inner.Height <= outer.Y+outer.Height
}
