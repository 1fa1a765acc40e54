package shapelet

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/measalg/coaddpsf"
	"github.com/measalg/coaddpsf/geom"
)

// ErrIndexOutOfRange is returned for a coefficient index outside
// [0, Size()).
var ErrIndexOutOfRange = errors.New("shapelet: coefficient index out of range")

// State is the lifecycle stage of an Interpolation.
type State int

const (
	Unfit State = iota
	Fitting
	Fitted
)

func (s State) String() string {
	switch s {
	case Unfit:
		return "Unfit"
	case Fitting:
		return "Fitting"
	case Fitted:
		return "Fitted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FitResult reports what Calculate did with the candidates.
type FitResult struct {
	// Positions of every candidate taken from the source, in visit order.
	Positions []geom.Point
	// Rejected lists the candidates excluded from the final fit.
	Rejected []CandidateID
	// NumUsed is the number of candidates in the final fit.
	NumUsed int
	// Passes is the number of sigma-clipping passes.
	Passes int
}

// Interpolation is a spatially varying shapelet PSF model.
//
// Calculate must not run concurrently with other methods; once fitted,
// Interpolate and InterpolateSingleElement are safe for concurrent use.
type Interpolation struct {
	cfg   Config
	sigma float64

	mu    sync.RWMutex
	state State
	model *fittedModel
}

// NewInterpolation creates an unfitted model.
func NewInterpolation(cfg Config) (*Interpolation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Interpolation{cfg: cfg, sigma: cfg.Sigma}, nil
}

// Config returns the configuration.
func (in *Interpolation) Config() Config { return in.cfg }

// Order returns the shapelet order.
func (in *Interpolation) Order() int { return in.cfg.ShapeletOrder }

// FitOrder returns the order of the spatial polynomial.
func (in *Interpolation) FitOrder() int { return in.cfg.InterpOrder }

// Size returns the number of shapelet coefficients.
func (in *Interpolation) Size() int { return Size(in.cfg.ShapeletOrder) }

// FitSize returns the number of spatial polynomial coefficients.
func (in *Interpolation) FitSize() int { return Size(in.cfg.InterpOrder) }

// Sigma returns the shapelet scale in pixels; zero until set or fitted.
func (in *Interpolation) Sigma() float64 {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.sigma
}

// SetSigma overrides the shapelet scale of interpolated shapelets.
func (in *Interpolation) SetSigma(sigma float64) error {
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return fmt.Errorf("shapelet: sigma %g: %w", sigma, coaddpsf.ErrInvalidConfiguration)
	}
	in.mu.Lock()
	in.sigma = sigma
	in.mu.Unlock()
	return nil
}

// State returns the lifecycle stage.
func (in *Interpolation) State() State {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.state
}

// Calculate fits the model to the candidates of src, taking at most
// NStarsPerCell from each cell.
//
// Every candidate must implement ShapeletCandidate with a shapelet of the
// configured order, otherwise Calculate fails with ErrCandidateType.
// Candidates with a non-positive rating are rejected up front; the others
// are weighted by their rating. Rejected candidates are returned in the
// result and, if src implements BadMarker, marked bad there.
//
// On failure the model is left unfitted.
func (in *Interpolation) Calculate(src CandidateSource) (*FitResult, error) {
	in.mu.Lock()
	in.state = Fitting
	in.model = nil
	in.mu.Unlock()

	res, model, sigma, err := in.fit(src)

	in.mu.Lock()
	defer in.mu.Unlock()
	if err != nil {
		in.state = Unfit
		return nil, err
	}
	in.model = model
	if in.sigma == 0 {
		in.sigma = sigma
	}
	in.state = Fitted

	if marker, ok := src.(BadMarker); ok {
		for _, id := range res.Rejected {
			marker.MarkBad(id)
		}
	}
	log := coaddpsf.Logger()
	log.Info("shapelet fit finished",
		"candidates", len(res.Positions), "used", res.NumUsed,
		"rejected", len(res.Rejected), "passes", res.Passes)
	for _, id := range res.Rejected {
		log.Warn("PSF candidate rejected", "id", int(id))
	}
	return res, nil
}

func (in *Interpolation) fit(src CandidateSource) (*FitResult, *fittedModel, float64, error) {
	size := in.Size()
	var (
		ids     []CandidateID
		samples []sample
		sigmas  []float64
	)
	err := src.VisitCandidates(in.cfg.NStarsPerCell, func(c Candidate) error {
		sc, ok := c.(ShapeletCandidate)
		if !ok {
			return fmt.Errorf("candidate %d is %T: %w", c.ID(), c, ErrCandidateType)
		}
		s := sc.Shapelet()
		if s == nil || s.Order() != in.cfg.ShapeletOrder {
			return fmt.Errorf("candidate %d: want order %d: %w", c.ID(), in.cfg.ShapeletOrder, ErrCandidateType)
		}
		nu := c.Rating()
		ids = append(ids, c.ID())
		samples = append(samples, sample{
			pos:    c.Position(),
			vec:    s.Coefficients(),
			weight: nu,
			bad:    !(nu > 0) || math.IsInf(nu, 0) || !geom.IsFinite(c.Position()),
		})
		sigmas = append(sigmas, s.Sigma())
		return nil
	})
	if err != nil {
		return nil, nil, 0, err
	}
	if len(samples) == 0 {
		return nil, nil, 0, fmt.Errorf("shapelet: no candidates: %w", ErrTooFewCandidates)
	}

	model, passes, err := fitModel(samples, size, in.cfg.InterpOrder, in.cfg.InterpNSigmaClip, in.cfg.PcaThresh)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("shapelet: %w", err)
	}

	res := &FitResult{Positions: make([]geom.Point, len(samples)), Passes: passes}
	for i, s := range samples {
		res.Positions[i] = s.pos
		if s.bad {
			res.Rejected = append(res.Rejected, ids[i])
		} else {
			res.NumUsed++
		}
	}

	slices.Sort(sigmas)
	sigma := stat.Quantile(0.5, stat.Empirical, sigmas, nil)
	return res, model, sigma, nil
}

// Interpolate returns the model shapelet at p.
func (in *Interpolation) Interpolate(p geom.Point) (*Shapelet, error) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if in.state != Fitted {
		return nil, fmt.Errorf("shapelet: interpolate in state %v: %w", in.state, coaddpsf.ErrNotFitted)
	}
	return &Shapelet{order: in.cfg.ShapeletOrder, sigma: in.sigma, coeffs: in.model.at(p)}, nil
}

// InterpolateSingleElement returns coefficient i of the model shapelet at
// p.
func (in *Interpolation) InterpolateSingleElement(p geom.Point, i int) (float64, error) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if in.state != Fitted {
		return 0, fmt.Errorf("shapelet: interpolate in state %v: %w", in.state, coaddpsf.ErrNotFitted)
	}
	if i < 0 || i >= in.Size() {
		return 0, fmt.Errorf("shapelet: index %d of %d: %w", i, in.Size(), ErrIndexOutOfRange)
	}
	return in.model.element(p, i), nil
}
