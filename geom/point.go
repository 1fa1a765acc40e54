// Package geom provides the planar primitives shared by the coadd and
// shapelet packages: points, pixel boxes and valid-region polygons.
package geom

import (
	"math"
	"reflect"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/vec"
)

// Point is a position in a pixel frame. Integer values fall on pixel centres.
type Point = vec.Vec2

// Pt is a convenience function to create a Point.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// IsFinite reports whether both coordinates are finite.
func IsFinite(p Point) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Apply maps p through the affine transformation m.
func Apply(m matrix.Matrix, p Point) Point {
	x, y := m.Apply(p.X, p.Y)
	return Point{X: x, Y: y}
}

// Region is the valid-region contract of a per-exposure contribution.
// Box and *Polygon implement it.
type Region interface {
	Contains(p Point) bool
}

// RegionEqual compares two optional regions by value. Region types other
// than Box and *Polygon compare through an Equal(Region) bool method when
// they have one; otherwise only identical pointers are equal.
func RegionEqual(a, b Region) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	}
	switch ra := a.(type) {
	case Box:
		rb, ok := b.(Box)
		return ok && ra == rb
	case *Polygon:
		rb, ok := b.(*Polygon)
		return ok && ra.Equal(rb)
	}
	if eq, ok := a.(interface{ Equal(Region) bool }); ok {
		return eq.Equal(b)
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || ta.Kind() != reflect.Pointer {
		return false
	}
	return a == b
}
