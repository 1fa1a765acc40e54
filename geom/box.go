package geom

import (
	"fmt"
	"math"

	"seehuhn.de/go/geom/rect"
)

// Box is an inclusive integer pixel box. The zero Box contains the single
// pixel (0, 0); use EmptyBox for a box without pixels.
type Box struct {
	MinX, MinY int
	MaxX, MaxY int
}

// EmptyBox returns a box that contains no pixels.
func EmptyBox() Box {
	return Box{MinX: 0, MinY: 0, MaxX: -1, MaxY: -1}
}

// NewBox creates a box with the given minimum corner and dimensions.
func NewBox(minX, minY, width, height int) Box {
	return Box{MinX: minX, MinY: minY, MaxX: minX + width - 1, MaxY: minY + height - 1}
}

// Width returns the number of pixel columns.
func (b Box) Width() int {
	if b.IsEmpty() {
		return 0
	}
	return b.MaxX - b.MinX + 1
}

// Height returns the number of pixel rows.
func (b Box) Height() int {
	if b.IsEmpty() {
		return 0
	}
	return b.MaxY - b.MinY + 1
}

// IsEmpty reports whether the box contains no pixels.
func (b Box) IsEmpty() bool {
	return b.MaxX < b.MinX || b.MaxY < b.MinY
}

// ContainsInt reports whether pixel (x, y) lies in the box.
func (b Box) ContainsInt(x, y int) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Contains reports whether p lies within the pixel extent of the box,
// [Min-0.5, Max+0.5) along each axis.
func (b Box) Contains(p Point) bool {
	if b.IsEmpty() {
		return false
	}
	return p.X >= float64(b.MinX)-0.5 && p.X < float64(b.MaxX)+0.5 &&
		p.Y >= float64(b.MinY)-0.5 && p.Y < float64(b.MaxY)+0.5
}

// Center returns the centre of the box in pixel coordinates.
func (b Box) Center() Point {
	return Pt(0.5*float64(b.MinX+b.MaxX), 0.5*float64(b.MinY+b.MaxY))
}

// Rect returns the continuous pixel extent of the box.
func (b Box) Rect() rect.Rect {
	if b.IsEmpty() {
		return rect.Rect{}
	}
	return rect.Rect{
		LLx: float64(b.MinX) - 0.5,
		LLy: float64(b.MinY) - 0.5,
		URx: float64(b.MaxX) + 0.5,
		URy: float64(b.MaxY) + 0.5,
	}
}

// BoxFromRect returns the smallest box whose pixel extent covers r.
func BoxFromRect(r rect.Rect) Box {
	if r.IsZero() {
		return EmptyBox()
	}
	return Box{
		MinX: int(math.Floor(r.LLx + 0.5)),
		MinY: int(math.Floor(r.LLy + 0.5)),
		MaxX: int(math.Ceil(r.URx - 0.5)),
		MaxY: int(math.Ceil(r.URy - 0.5)),
	}
}

// String returns a compact representation of the box.
func (b Box) String() string {
	return fmt.Sprintf("Box(%d,%d)-(%d,%d)", b.MinX, b.MinY, b.MaxX, b.MaxY)
}
