package archive

import (
	"fmt"

	"github.com/measalg/coaddpsf/geom"
)

// BoxRecord is the archived form of a geom.Box.
type BoxRecord struct {
	MinX int `yaml:"minX"`
	MinY int `yaml:"minY"`
	MaxX int `yaml:"maxX"`
	MaxY int `yaml:"maxY"`
}

// NewBoxRecord converts a box.
func NewBoxRecord(b geom.Box) BoxRecord {
	return BoxRecord{MinX: b.MinX, MinY: b.MinY, MaxX: b.MaxX, MaxY: b.MaxY}
}

// Box converts the record back.
func (r BoxRecord) Box() geom.Box {
	return geom.Box{MinX: r.MinX, MinY: r.MinY, MaxX: r.MaxX, MaxY: r.MaxY}
}

// RegionRecord is the archived form of an optional geom.Region. Regions are
// stored inline since they compare by value.
type RegionRecord struct {
	Box      *BoxRecord   `yaml:"box,omitempty"`
	Vertices [][2]float64 `yaml:"vertices,omitempty"`
}

// EncodeRegion converts a region; nil yields nil.
func EncodeRegion(r geom.Region) (*RegionRecord, error) {
	switch r := r.(type) {
	case nil:
		return nil, nil
	case geom.Box:
		b := NewBoxRecord(r)
		return &RegionRecord{Box: &b}, nil
	case *geom.Polygon:
		if r == nil {
			return nil, nil
		}
		vs := r.Vertices()
		rec := &RegionRecord{Vertices: make([][2]float64, len(vs))}
		for i, v := range vs {
			rec.Vertices[i] = [2]float64{v.X, v.Y}
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("archive: region %T: %w", r, ErrUnknownType)
	}
}

// DecodeRegion is the inverse of EncodeRegion.
func DecodeRegion(rec *RegionRecord) (geom.Region, error) {
	switch {
	case rec == nil:
		return nil, nil
	case rec.Box != nil:
		return rec.Box.Box(), nil
	default:
		vs := make([]geom.Point, len(rec.Vertices))
		for i, v := range rec.Vertices {
			vs[i] = geom.Pt(v[0], v[1])
		}
		return geom.NewPolygon(vs)
	}
}
