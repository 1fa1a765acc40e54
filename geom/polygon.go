package geom

import (
	"errors"
	"math"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/rect"
)

// ErrDegeneratePolygon is returned for polygons with fewer than three vertices.
var ErrDegeneratePolygon = errors.New("geom: polygon needs at least three vertices")

// Polygon is a simple closed polygon in pixel coordinates. The closing edge
// from the last vertex back to the first is implicit.
//
// Polygons are immutable after construction and may be shared between
// coadd elements.
type Polygon struct {
	vertices []Point
	bounds   rect.Rect
}

// NewPolygon creates a polygon from its vertices.
func NewPolygon(vertices []Point) (*Polygon, error) {
	if len(vertices) < 3 {
		return nil, ErrDegeneratePolygon
	}
	vs := make([]Point, len(vertices))
	copy(vs, vertices)

	b := rect.Rect{LLx: math.Inf(1), LLy: math.Inf(1), URx: math.Inf(-1), URy: math.Inf(-1)}
	for _, v := range vs {
		b.LLx = math.Min(b.LLx, v.X)
		b.LLy = math.Min(b.LLy, v.Y)
		b.URx = math.Max(b.URx, v.X)
		b.URy = math.Max(b.URy, v.Y)
	}
	return &Polygon{vertices: vs, bounds: b}, nil
}

// PolygonFromBox returns the polygon tracing the pixel extent of b.
func PolygonFromBox(b Box) (*Polygon, error) {
	r := b.Rect()
	return NewPolygon([]Point{
		Pt(r.LLx, r.LLy), Pt(r.URx, r.LLy), Pt(r.URx, r.URy), Pt(r.LLx, r.URy),
	})
}

// Vertices returns a copy of the vertex list.
func (p *Polygon) Vertices() []Point {
	vs := make([]Point, len(p.vertices))
	copy(vs, p.vertices)
	return vs
}

// Bounds returns the axis-aligned bounding rectangle.
func (p *Polygon) Bounds() rect.Rect {
	return p.bounds
}

// Contains reports whether pt is inside the polygon (even-odd rule).
func (p *Polygon) Contains(pt Point) bool {
	if pt.X < p.bounds.LLx || pt.X > p.bounds.URx || pt.Y < p.bounds.LLy || pt.Y > p.bounds.URy {
		return false
	}
	inside := false
	n := len(p.vertices)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := p.vertices[i], p.vertices[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) {
			xCross := (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y) + a.X
			if pt.X < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

// Area returns the unsigned polygon area.
func (p *Polygon) Area() float64 {
	var s float64
	n := len(p.vertices)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		s += p.vertices[j].X*p.vertices[i].Y - p.vertices[i].X*p.vertices[j].Y
	}
	return math.Abs(s) / 2
}

// Transform returns a new polygon with every vertex mapped through m.
func (p *Polygon) Transform(m matrix.Matrix) *Polygon {
	vs := make([]Point, len(p.vertices))
	for i, v := range p.vertices {
		vs[i] = Apply(m, v)
	}
	q, _ := NewPolygon(vs) // vertex count unchanged
	return q
}

// Equal reports whether both polygons have identical vertex lists.
func (p *Polygon) Equal(q *Polygon) bool {
	if p == q {
		return true
	}
	if p == nil || q == nil || len(p.vertices) != len(q.vertices) {
		return false
	}
	for i := range p.vertices {
		if p.vertices[i] != q.vertices[i] {
			return false
		}
	}
	return true
}
