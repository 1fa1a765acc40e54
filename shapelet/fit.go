package shapelet

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/measalg/coaddpsf/geom"
)

// ErrTooFewCandidates is returned when fewer usable stars remain than the
// spatial polynomial has coefficients.
var ErrTooFewCandidates = errors.New("shapelet: too few candidates for the spatial fit")

// chi2Floor is the mean chi² below which residuals are taken to be
// round-off and no clipping is done, relative to the mean weighted norm of
// the data.
const chi2Floor = 1e-20

// sample is one star's input to the fit.
type sample struct {
	pos    geom.Point
	vec    []float64
	weight float64
	bad    bool
}

// fittedModel is the PCA-reduced spatial model
//
//	b(p) = mean + V·(Cᵀ·L(p))
//
// where L(p) are the Legendre products of the scaled position, C holds the
// polynomial coefficients of each principal component and the columns of
// V are the retained components.
type fittedModel struct {
	fitOrder int
	center   geom.Point
	scale    geom.Point

	mean   []float64
	basis  *mat.Dense // size x k, nil when k == 0
	coeffs *mat.Dense // fitSize x k
}

// fitModel fits samples, flagging outliers as bad, and returns the model
// and the number of clipping passes.
func fitModel(samples []sample, size, fitOrder int, nSigma, pcaThresh float64) (*fittedModel, int, error) {
	m := &fittedModel{fitOrder: fitOrder}
	m.setBounds(samples)

	for pass := 1; ; pass++ {
		used := make([]int, 0, len(samples))
		for i, s := range samples {
			if !s.bad {
				used = append(used, i)
			}
		}
		if len(used) < Size(fitOrder) {
			return nil, pass, fmt.Errorf("%d usable of %d: %w", len(used), len(samples), ErrTooFewCandidates)
		}

		m.solve(samples, used, size, pcaThresh)

		chi2 := make([]float64, len(used))
		var norm float64
		for j, i := range used {
			s := samples[i]
			chi2[j] = s.weight * sqDist(s.vec, m.at(s.pos))
			norm += s.weight * floats.Dot(s.vec, s.vec)
		}
		meanChi2 := stat.Mean(chi2, nil)
		if meanChi2 <= chi2Floor*norm/float64(len(used)) {
			return m, pass, nil
		}

		limit := nSigma * nSigma * meanChi2
		rejected := 0
		for j, i := range used {
			if chi2[j] > limit {
				samples[i].bad = true
				rejected++
			}
		}
		if rejected == 0 {
			return m, pass, nil
		}
	}
}

// setBounds chooses the affine map of the usable positions onto [-1, 1].
func (m *fittedModel) setBounds(samples []sample) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, s := range samples {
		if s.bad {
			continue
		}
		minX, maxX = math.Min(minX, s.pos.X), math.Max(maxX, s.pos.X)
		minY, maxY = math.Min(minY, s.pos.Y), math.Max(maxY, s.pos.Y)
	}
	if minX > maxX {
		minX, maxX, minY, maxY = 0, 0, 0, 0
	}
	m.center = geom.Pt((minX+maxX)/2, (minY+maxY)/2)
	m.scale = geom.Pt(halfWidth(minX, maxX), halfWidth(minY, maxY))
}

func halfWidth(lo, hi float64) float64 {
	if h := (hi - lo) / 2; h > 0 {
		return h
	}
	return 1
}

// solve computes the mean, principal components and spatial coefficients
// from the samples listed in used.
func (m *fittedModel) solve(samples []sample, used []int, size int, pcaThresh float64) {
	n := len(used)

	m.mean = make([]float64, size)
	var wSum float64
	for _, i := range used {
		floats.AddScaled(m.mean, samples[i].weight, samples[i].vec)
		wSum += samples[i].weight
	}
	floats.Scale(1/wSum, m.mean)

	// weighted residuals from the mean, one row per star
	resid := mat.NewDense(n, size, nil)
	sqrtW := make([]float64, n)
	for j, i := range used {
		sqrtW[j] = math.Sqrt(samples[i].weight)
		row := resid.RawRowView(j)
		floats.SubTo(row, samples[i].vec, m.mean)
		floats.Scale(sqrtW[j], row)
	}

	m.basis, m.coeffs = nil, nil
	var svd mat.SVD
	if !svd.Factorize(resid, mat.SVDThinV) {
		return
	}
	k := svd.Rank(pcaThresh)
	if k == 0 {
		return
	}
	var v mat.Dense
	svd.VTo(&v)
	m.basis = mat.DenseCopyOf(v.Slice(0, size, 0, k))

	// component amplitudes per star, already weighted
	var amp mat.Dense
	amp.Mul(resid, m.basis)

	fitSize := Size(m.fitOrder)
	design := mat.NewDense(n, fitSize, nil)
	for j, i := range used {
		row := design.RawRowView(j)
		m.legendre(samples[i].pos, row)
		floats.Scale(sqrtW[j], row)
	}

	var lsq mat.SVD
	if !lsq.Factorize(design, mat.SVDThin) {
		m.basis = nil
		return
	}
	rank := lsq.Rank(1e-12)
	if rank == 0 {
		m.basis = nil
		return
	}
	m.coeffs = mat.NewDense(fitSize, k, nil)
	lsq.SolveTo(m.coeffs, &amp, rank)
}

// legendre fills dst with P_p(u)·P_q(v) for p+q ≤ fitOrder, ordered by
// degree and then by increasing q.
func (m *fittedModel) legendre(p geom.Point, dst []float64) {
	u := (p.X - m.center.X) / m.scale.X
	v := (p.Y - m.center.Y) / m.scale.Y
	pu := legendre(m.fitOrder, u)
	pv := legendre(m.fitOrder, v)
	k := 0
	for n := 0; n <= m.fitOrder; n++ {
		for q := 0; q <= n; q++ {
			dst[k] = pu[n-q] * pv[q]
			k++
		}
	}
}

// at evaluates the model at p.
func (m *fittedModel) at(p geom.Point) []float64 {
	out := make([]float64, len(m.mean))
	if m.basis == nil {
		copy(out, m.mean)
		return out
	}
	l := make([]float64, Size(m.fitOrder))
	m.legendre(p, l)

	_, k := m.basis.Dims()
	amp := mat.NewVecDense(k, nil)
	amp.MulVec(m.coeffs.T(), mat.NewVecDense(len(l), l))
	res := mat.NewVecDense(len(out), out)
	res.MulVec(m.basis, amp)
	floats.Add(out, m.mean)
	return out
}

// element evaluates coefficient i of the model at p.
func (m *fittedModel) element(p geom.Point, i int) float64 {
	v := m.mean[i]
	if m.basis == nil {
		return v
	}
	l := make([]float64, Size(m.fitOrder))
	m.legendre(p, l)
	_, k := m.basis.Dims()
	for c := range k {
		var a float64
		for j, lj := range l {
			a += m.coeffs.At(j, c) * lj
		}
		v += m.basis.At(i, c) * a
	}
	return v
}

// legendre returns P_0..P_order at x.
func legendre(order int, x float64) []float64 {
	p := make([]float64, order+1)
	p[0] = 1
	if order >= 1 {
		p[1] = x
	}
	for n := 1; n < order; n++ {
		fn := float64(n)
		p[n+1] = ((2*fn+1)*x*p[n] - fn*p[n-1]) / (fn + 1)
	}
	return p
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}
