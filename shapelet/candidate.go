package shapelet

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/measalg/coaddpsf"
	"github.com/measalg/coaddpsf/geom"
)

// ErrCandidateType is returned when a candidate does not carry a shapelet
// of the configured order.
var ErrCandidateType = errors.New("shapelet: candidate has no usable shapelet")

// CandidateID identifies a candidate within its source.
type CandidateID int

// Candidate is a PSF star candidate.
type Candidate interface {
	ID() CandidateID
	Position() geom.Point
	// Rating is the candidate's signal-to-noise; it weights the fit.
	Rating() float64
}

// ShapeletCandidate is a candidate whose PSF has been measured as a
// shapelet.
type ShapeletCandidate interface {
	Candidate
	Shapelet() *Shapelet
}

// CandidateSource yields candidates cell by cell, at most maxPerCell from
// each, in a deterministic order. Returning an error from visit stops the
// traversal and is passed through.
type CandidateSource interface {
	VisitCandidates(maxPerCell int, visit func(Candidate) error) error
}

// BadMarker is implemented by sources that record rejected candidates.
type BadMarker interface {
	MarkBad(id CandidateID)
}

// Star is a measured candidate.
type Star struct {
	Ident CandidateID
	X, Y  float64
	Nu    float64
	Shape *Shapelet
}

// ID implements Candidate.
func (s *Star) ID() CandidateID { return s.Ident }

// Position implements Candidate.
func (s *Star) Position() geom.Point { return geom.Pt(s.X, s.Y) }

// Rating implements Candidate.
func (s *Star) Rating() float64 { return s.Nu }

// Shapelet implements ShapeletCandidate.
func (s *Star) Shapelet() *Shapelet { return s.Shape }

// Grid is a CandidateSource that bins candidates into square cells over a
// box. Within a cell, candidates are visited by decreasing rating; cells
// are visited row by row. Candidates marked bad are skipped.
type Grid struct {
	bbox     geom.Box
	cellSize int
	nx, ny   int
	cells    [][]Candidate
	bad      map[CandidateID]bool
}

// NewGrid creates an empty grid of cellSize x cellSize pixel cells.
func NewGrid(bbox geom.Box, cellSize int) (*Grid, error) {
	if bbox.IsEmpty() || cellSize <= 0 {
		return nil, fmt.Errorf("shapelet: grid over %v with cell size %d: %w", bbox, cellSize, coaddpsf.ErrInvalidConfiguration)
	}
	nx := (bbox.Width() + cellSize - 1) / cellSize
	ny := (bbox.Height() + cellSize - 1) / cellSize
	return &Grid{
		bbox:     bbox,
		cellSize: cellSize,
		nx:       nx,
		ny:       ny,
		cells:    make([][]Candidate, nx*ny),
		bad:      make(map[CandidateID]bool),
	}, nil
}

// Insert adds a candidate to the cell containing its position. Candidates
// outside the grid box are dropped and reported as false.
func (g *Grid) Insert(c Candidate) bool {
	p := c.Position()
	if !g.bbox.Contains(p) {
		return false
	}
	ix := (int(math.Floor(p.X+0.5)) - g.bbox.MinX) / g.cellSize
	iy := (int(math.Floor(p.Y+0.5)) - g.bbox.MinY) / g.cellSize
	cell := &g.cells[iy*g.nx+ix]
	*cell = append(*cell, c)
	slices.SortStableFunc(*cell, func(a, b Candidate) int {
		return cmp.Compare(b.Rating(), a.Rating())
	})
	return true
}

// Len returns the number of candidates, including bad ones.
func (g *Grid) Len() int {
	n := 0
	for _, c := range g.cells {
		n += len(c)
	}
	return n
}

// VisitCandidates implements CandidateSource.
func (g *Grid) VisitCandidates(maxPerCell int, visit func(Candidate) error) error {
	for _, cell := range g.cells {
		n := 0
		for _, c := range cell {
			if n >= maxPerCell {
				break
			}
			if g.bad[c.ID()] {
				continue
			}
			if err := visit(c); err != nil {
				return err
			}
			n++
		}
	}
	return nil
}

// MarkBad implements BadMarker.
func (g *Grid) MarkBad(id CandidateID) { g.bad[id] = true }

// IsBad reports whether id has been marked bad.
func (g *Grid) IsBad(id CandidateID) bool { return g.bad[id] }
