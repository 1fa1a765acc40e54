package coadd

import (
	"bytes"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/measalg/coaddpsf"
	"github.com/measalg/coaddpsf/archive"
	"github.com/measalg/coaddpsf/geom"
	"github.com/measalg/coaddpsf/image"
	"github.com/measalg/coaddpsf/psf"
	"github.com/measalg/coaddpsf/wcs"
)

var bigBox = geom.NewBox(-1000, -1000, 2001, 2001)

func mustGaussian(t *testing.T, size int, sigma float64) *psf.SingleGaussian {
	t.Helper()
	g, err := psf.NewSingleGaussian(size, size, sigma)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// dyadicPsf has an asymmetric 5x5 kernel whose pixels sum to exactly 1.
func dyadicPsf(t *testing.T) *psf.Fixed {
	t.Helper()
	k, _ := image.NewKernel(5, 5)
	k.Set(0, 0, 0.5)
	k.Set(1, 0, 0.25)
	k.Set(-2, 1, 0.125)
	k.Set(2, -2, 0.0625)
	k.Set(0, 2, 0.0625)
	f, err := psf.NewFixed(k)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestComputeImageNormalizedSum(t *testing.T) {
	g := mustGaussian(t, 15, 1.5)
	k, err := NewBuilder(15, 15, nil).
		Add(g, nil, bigBox, 1).
		Add(g.Clone(), nil, bigBox, 1).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	out, _ := image.New(15, 15)
	w, err := k.ComputeImage(out, true, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if w != 2 {
		t.Errorf("weight = %v, want 2", w)
	}
	if s := out.Sum(); math.Abs(s-1) > 1e-12 {
		t.Errorf("sum = %v, want 1", s)
	}
	if x0, y0 := out.XY0(); x0 != -7 || y0 != -7 {
		t.Errorf("XY0 = (%d, %d), want (-7, -7)", x0, y0)
	}
}

func TestComputeImageUnnormalized(t *testing.T) {
	k, _ := NewPsfKernel(21, 21, nil)
	_ = k.AddPsfComponent(mustGaussian(t, 21, 1), nil, bigBox, 1)
	_ = k.AddPsfComponent(mustGaussian(t, 21, 2), nil, bigBox, 3)

	out, _ := image.New(21, 21)
	w, err := k.ComputeImage(out, false, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	if w != 4 {
		t.Errorf("weight = %v, want 4", w)
	}
	if s := out.Sum(); math.Abs(s-4) > 1e-9 {
		t.Errorf("sum = %v, want 4", s)
	}
}

func TestComputeImagePixelAligned(t *testing.T) {
	f := dyadicPsf(t)
	k, err := NewFrozenPsfKernel(5, 5, wcs.NewOffset(0, 0), []Component{
		{Psf: f, Wcs: wcs.NewOffset(100, 50), BBox: bigBox, Weight: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	out, _ := image.New(5, 5)
	if _, err := k.ComputeImage(out, true, 12, -3); err != nil {
		t.Fatal(err)
	}
	want := f.Kernel()
	if diff := cmp.Diff(want.Data(), out.Data()); diff != "" {
		t.Errorf("aligned resampling mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeImageMagnified(t *testing.T) {
	// coadd pixels are half the size of exposure pixels
	coaddWcs, err := wcs.NewLinear(wcs.SkyCoord{}, geom.Pt(0, 0), wcs.CD(0.5, 0, 0, 0.5))
	if err != nil {
		t.Fatal(err)
	}
	k, _ := NewFrozenPsfKernel(41, 41, coaddWcs, []Component{
		{Psf: mustGaussian(t, 21, 2), Wcs: wcs.NewOffset(0, 0), BBox: bigBox, Weight: 1},
	})
	out, _ := image.New(41, 41)
	if _, err := k.ComputeImage(out, false, 0, 0); err != nil {
		t.Fatal(err)
	}
	if s := out.Sum(); math.Abs(s-1) > 1e-4 {
		t.Errorf("flux = %v, want 1", s)
	}
	m, err := psf.ComputeMoments(out)
	if err != nil {
		t.Fatal(err)
	}
	if r := m.DeterminantRadius(); math.Abs(r-4) > 0.2 {
		t.Errorf("radius = %v, want about 4", r)
	}
	if math.Abs(m.Ixx-m.Iyy) > 1e-9 || math.Abs(m.Ixy) > 1e-9 {
		t.Errorf("moments not circular: %+v", m)
	}
}

func TestComputeImageCoarseGrid(t *testing.T) {
	// coadd pixels are ten times the size of exposure pixels
	coaddWcs, err := wcs.NewLinear(wcs.SkyCoord{}, geom.Pt(0, 0), wcs.CD(10, 0, 0, 10))
	if err != nil {
		t.Fatal(err)
	}
	k, _ := NewFrozenPsfKernel(5, 5, coaddWcs, []Component{
		{Psf: mustGaussian(t, 21, 2), Wcs: wcs.NewOffset(0, 0), BBox: bigBox, Weight: 1},
	})
	out, _ := image.New(5, 5)
	if _, err := k.ComputeImage(out, false, 0, 0); err != nil {
		t.Fatal(err)
	}
	if s := out.Sum(); math.Abs(s-1) > 1e-6 {
		t.Errorf("flux = %v, want 1", s)
	}
	// erf(5/(2√2))² of the flux lands in the central pixel
	if c := out.At(0, 0); math.Abs(c-0.9754) > 1e-3 {
		t.Errorf("central pixel = %v, want about 0.975", c)
	}
}

func TestComputeImageZeroFlux(t *testing.T) {
	kern, _ := image.NewKernel(11, 11)
	kern.Set(4, 0, 1)
	f, err := psf.NewFixed(kern)
	if err != nil {
		t.Fatal(err)
	}
	// the flux falls outside the 3x3 output
	k, _ := NewFrozenPsfKernel(3, 3, nil, []Component{{Psf: f, BBox: bigBox, Weight: 1}})
	out, _ := image.New(3, 3)

	w, err := k.ComputeImage(out, false, 0, 0)
	if err != nil || w != 1 || out.Sum() != 0 {
		t.Errorf("unnormalized: weight %v, sum %v, err %v", w, out.Sum(), err)
	}
	if _, err := k.ComputeImage(out, true, 0, 0); !errors.Is(err, psf.ErrZeroFlux) {
		t.Errorf("normalized: err = %v, want ErrZeroFlux", err)
	}
}

func TestComputeImageSkipsComponents(t *testing.T) {
	coaddWcs, _ := wcs.NewTanScale(wcs.Degrees(0, 0), geom.Pt(0, 0), 1, 0)
	farWcs, _ := wcs.NewTanScale(wcs.Degrees(180, 0), geom.Pt(0, 0), 1, 0)
	f := dyadicPsf(t)

	k, _ := NewFrozenPsfKernel(5, 5, coaddWcs, []Component{
		{Psf: mustGaussian(t, 5, 1), Wcs: farWcs, BBox: bigBox, Weight: 1},
		{Psf: mustGaussian(t, 5, 1), Wcs: nil, BBox: geom.NewBox(500, 500, 10, 10), Weight: 1},
		{Psf: f, Wcs: nil, BBox: bigBox, Weight: 1},
	})
	out, _ := image.New(5, 5)
	w, err := k.ComputeImage(out, true, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if w != 1 {
		t.Errorf("weight = %v, want 1", w)
	}
	if diff := cmp.Diff(f.Kernel().Data(), out.Data()); diff != "" {
		t.Errorf("image mismatch (-want +got):\n%s", diff)
	}

	_, err = k.ComputeImage(out, true, 5000, 5000)
	if !errors.Is(err, coaddpsf.ErrNoContribution) {
		t.Errorf("err = %v, want ErrNoContribution", err)
	}
}

func TestComputeImageWrongSize(t *testing.T) {
	k, _ := NewPsfKernel(5, 5, nil)
	out, _ := image.New(4, 5)
	if _, err := k.ComputeImage(out, true, 0, 0); !errors.Is(err, image.ErrInvalidDimensions) {
		t.Errorf("err = %v, want ErrInvalidDimensions", err)
	}
}

func TestAddPsfComponentValidation(t *testing.T) {
	g := mustGaussian(t, 5, 1)
	k, _ := NewPsfKernel(5, 5, nil)
	tests := []struct {
		name   string
		p      psf.Psf
		bbox   geom.Box
		weight float64
	}{
		{"nil psf", nil, bigBox, 1},
		{"empty box", g, geom.EmptyBox(), 1},
		{"zero weight", g, bigBox, 0},
		{"nan weight", g, bigBox, math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := k.AddPsfComponent(tt.p, nil, tt.bbox, tt.weight); !errors.Is(err, coaddpsf.ErrInvalidConfiguration) {
				t.Errorf("err = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
	if k.ComponentCount() != 0 {
		t.Errorf("ComponentCount = %d, want 0", k.ComponentCount())
	}

	if err := k.AddPsfComponent(g, nil, bigBox, 1); err != nil {
		t.Fatal(err)
	}
	k.Freeze()
	k.Freeze()
	if err := k.AddPsfComponent(g, nil, bigBox, 1); !errors.Is(err, ErrFrozen) {
		t.Errorf("err = %v, want ErrFrozen", err)
	}
	if k.ComponentCount() != 1 {
		t.Errorf("ComponentCount = %d, want 1", k.ComponentCount())
	}
}

func TestNewPsfKernelInvalid(t *testing.T) {
	if _, err := NewPsfKernel(0, 5, nil); !errors.Is(err, coaddpsf.ErrInvalidConfiguration) {
		t.Errorf("err = %v", err)
	}
	if _, err := NewBuilder(5, 5, nil).Add(nil, nil, bigBox, 1).Add(mustGaussian(t, 5, 1), nil, bigBox, 1).Build(); !errors.Is(err, coaddpsf.ErrInvalidConfiguration) {
		t.Errorf("builder err = %v", err)
	}
}

func TestIncrementalMatchesOneShot(t *testing.T) {
	comps := []Component{
		{Psf: mustGaussian(t, 11, 1), Wcs: wcs.NewOffset(3, 4), BBox: bigBox, Weight: 1},
		{Psf: mustGaussian(t, 11, 2), Wcs: nil, BBox: bigBox, Weight: 0.5},
	}
	oneShot, _ := NewFrozenPsfKernel(11, 11, wcs.NewOffset(0, 0), comps)
	inc, _ := NewPsfKernel(11, 11, wcs.NewOffset(0, 0))
	for _, c := range comps {
		if err := inc.AddPsfComponent(c.Psf, c.Wcs, c.BBox, c.Weight); err != nil {
			t.Fatal(err)
		}
	}
	if !inc.Equal(oneShot) {
		t.Error("incremental kernel differs from one-shot kernel")
	}
	a, _ := image.New(11, 11)
	b, _ := image.New(11, 11)
	wa, _ := oneShot.ComputeImage(a, true, 1.5, 2.5)
	wb, _ := inc.ComputeImage(b, true, 1.5, 2.5)
	if wa != wb || !cmp.Equal(a.Data(), b.Data()) {
		t.Error("images differ")
	}
}

func TestCloneCopyOnWrite(t *testing.T) {
	g := mustGaussian(t, 5, 1)
	k, _ := NewPsfKernel(5, 5, nil)
	_ = k.AddPsfComponent(g, nil, bigBox, 1)

	c := k.Clone()
	if err := c.AddPsfComponent(g, nil, bigBox, 2); err != nil {
		t.Fatal(err)
	}
	if k.ComponentCount() != 1 || c.ComponentCount() != 2 {
		t.Errorf("counts = %d, %d, want 1, 2", k.ComponentCount(), c.ComponentCount())
	}
	if err := k.AddPsfComponent(g, nil, bigBox, 3); err != nil {
		t.Fatal(err)
	}
	if c.Component(1).Weight != 2 {
		t.Errorf("clone component overwritten: weight %v", c.Component(1).Weight)
	}
}

func TestKernelCache(t *testing.T) {
	k, _ := NewFrozenPsfKernel(9, 9, nil, []Component{
		{Psf: mustGaussian(t, 9, 1.2), BBox: bigBox, Weight: 1},
	}, WithKernelCache(4))

	a, _ := image.New(9, 9)
	b, _ := image.New(9, 9)
	if _, err := k.ComputeImage(a, true, 1, 2); err != nil {
		t.Fatal(err)
	}
	a.Set(0, 0, 100) // must not reach the cache
	if _, err := k.ComputeImage(b, true, 1, 2); err != nil {
		t.Fatal(err)
	}
	st := k.cache.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit and 1 miss", st)
	}
	if b.At(0, 0) == 100 {
		t.Error("cached image shared with caller")
	}
	if s := b.Sum(); math.Abs(s-1) > 1e-12 {
		t.Errorf("sum = %v", s)
	}

	// the cache is not shared with clones
	if c := k.Clone(); c.cache == k.cache || c.cache == nil {
		t.Error("clone should get its own cache")
	}
}

func TestInterpolationModes(t *testing.T) {
	coaddWcs, _ := wcs.NewLinear(wcs.SkyCoord{}, geom.Pt(0, 0), wcs.CD(0.7, 0.1, -0.1, 0.7))
	tests := []struct {
		mode image.InterpolationMode
		tol  float64
	}{
		{image.InterpNearest, 0.2},
		{image.InterpBilinear, 0.02},
		{image.InterpBicubic, 0.02},
	}
	for _, tt := range tests {
		mode := tt.mode
		t.Run(mode.String(), func(t *testing.T) {
			k, _ := NewFrozenPsfKernel(31, 31, coaddWcs, []Component{
				{Psf: mustGaussian(t, 31, 2.5), Wcs: wcs.NewOffset(0, 0), BBox: bigBox, Weight: 1},
			}, WithInterpolation(mode))
			if k.Interpolation() != mode {
				t.Errorf("Interpolation = %v", k.Interpolation())
			}
			out, _ := image.New(31, 31)
			if _, err := k.ComputeImage(out, false, 0, 0); err != nil {
				t.Fatal(err)
			}
			if s := out.Sum(); math.Abs(s-1) > tt.tol {
				t.Errorf("flux = %v, want about 1", s)
			}
		})
	}
}

func TestPsfFacade(t *testing.T) {
	k, _ := NewPsfKernel(25, 25, nil)
	_ = k.AddPsfComponent(mustGaussian(t, 25, 2), nil, bigBox, 1)
	p, err := NewPsf(k)
	if err != nil {
		t.Fatal(err)
	}
	if k.IsFrozen() {
		t.Error("NewPsf froze the caller's kernel")
	}
	if pk := p.Kernel(); pk == k || !pk.IsFrozen() || !pk.Equal(k) {
		t.Error("Kernel should return a frozen copy of k")
	}
	if err := k.AddPsfComponent(mustGaussian(t, 25, 3), nil, bigBox, 1); err != nil {
		t.Fatalf("AddPsfComponent after NewPsf: %v", err)
	}
	if n := p.Kernel().ComponentCount(); n != 1 {
		t.Errorf("wrapped kernel has %d components, want 1", n)
	}
	frozen := mustFrozen(t, dyadicPsf(t))
	if fp, _ := NewPsf(frozen); fp.Kernel() != frozen {
		t.Error("a frozen kernel should be wrapped as is")
	}
	if w, h := p.Dimensions(); w != 25 || h != 25 {
		t.Errorf("Dimensions = %dx%d", w, h)
	}

	img, err := p.ComputeImage(geom.Pt(3, 3), true)
	if err != nil {
		t.Fatal(err)
	}
	if s := img.Sum(); math.Abs(s-1) > 1e-12 {
		t.Errorf("sum = %v", s)
	}
	m, err := p.ComputeShape(geom.Pt(3, 3))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(m.Ixx-4) > 1e-3 || math.Abs(m.Iyy-4) > 1e-3 {
		t.Errorf("shape = %+v, want Ixx = Iyy = 4", m)
	}

	c := p.Clone().(*Psf)
	if c == p || c.Kernel() == k || !c.Equal(p) {
		t.Error("Clone should wrap an equal copy of the kernel")
	}

	if _, err := NewPsf(nil); !errors.Is(err, coaddpsf.ErrInvalidConfiguration) {
		t.Errorf("err = %v", err)
	}
}

func TestNestedCoaddPsf(t *testing.T) {
	inner, _ := NewPsf(mustFrozen(t, dyadicPsf(t)))
	outer, _ := NewFrozenPsfKernel(5, 5, nil, []Component{{Psf: inner, BBox: bigBox, Weight: 1}})

	out, _ := image.New(5, 5)
	if _, err := outer.ComputeImage(out, true, 0, 0); err != nil {
		t.Fatal(err)
	}
	want := dyadicPsf(t).Kernel()
	if !cmp.Equal(want.Data(), out.Data(), cmpopts.EquateApprox(0, 1e-15)) {
		t.Errorf("nested kernel = %v, want %v", out.Data(), want.Data())
	}
}

func mustFrozen(t *testing.T, p psf.Psf) *PsfKernel {
	t.Helper()
	w, h := p.Dimensions()
	k, err := NewFrozenPsfKernel(w, h, nil, []Component{{Psf: p, BBox: bigBox, Weight: 1}})
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func TestPsfRoundTrip(t *testing.T) {
	shared := wcs.NewOffset(2, 3)
	k, _ := NewBuilder(9, 9, wcs.NewOffset(0, 0), WithInterpolation(image.InterpBicubic), WithKernelCache(16)).
		Add(mustGaussian(t, 9, 1.0/3), shared, geom.NewBox(-50, -50, 100, 100), 0.1).
		Add(dyadicPsf(t), shared, bigBox, 0.7).
		Build()
	p, _ := NewPsf(k)

	var buf bytes.Buffer
	if err := archive.Write(&buf, p); err != nil {
		t.Fatal(err)
	}
	obj, err := archive.Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	back, ok := obj.(*Psf)
	if !ok {
		t.Fatalf("read %T", obj)
	}
	if !back.Equal(p) || !psf.Equal(p, back) {
		t.Error("round trip is not equal")
	}
	bk := back.Kernel()
	if !bk.IsFrozen() || bk.cache == nil {
		t.Error("frozen state or cache lost")
	}
	if bk.Component(0).Wcs != bk.Component(1).Wcs {
		t.Error("shared WCS no longer shared")
	}

	a, _ := p.ComputeImage(geom.Pt(1.25, -4), true)
	b, _ := back.ComputeImage(geom.Pt(1.25, -4), true)
	if diff := cmp.Diff(a.Data(), b.Data()); diff != "" {
		t.Errorf("images differ after round trip:\n%s", diff)
	}
}

func TestPsfNotPersistable(t *testing.T) {
	k, _ := NewFrozenPsfKernel(3, 3, nil, []Component{{Psf: opaquePsf{}, BBox: bigBox, Weight: 1}})
	var buf bytes.Buffer
	if err := archive.Write(&buf, k); !errors.Is(err, ErrNotPersistable) {
		t.Errorf("err = %v, want ErrNotPersistable", err)
	}
}

type opaquePsf struct{}

func (opaquePsf) ComputeImage(geom.Point, bool) (*image.Image, error) { return image.NewKernel(3, 3) }
func (opaquePsf) Clone() psf.Psf                                     { return opaquePsf{} }
func (opaquePsf) Dimensions() (int, int)                             { return 3, 3 }

func TestComputeImageConcurrent(t *testing.T) {
	coaddWcs, _ := wcs.NewTanScale(wcs.Degrees(30, 10), geom.Pt(0, 0), 0.2, 0)
	expA, _ := wcs.NewTanScale(wcs.Degrees(30.001, 10), geom.Pt(40, -20), 0.25, 0.05)
	expB, _ := wcs.NewTanScale(wcs.Degrees(30, 10.002), geom.Pt(-15, 60), 0.18, -0.1)
	components := []Component{
		{Psf: mustGaussian(t, 21, 2), Wcs: expA, BBox: bigBox, Weight: 1},
		{Psf: dyadicPsf(t), Wcs: expB, BBox: bigBox, Weight: 0.5},
	}
	cached, _ := NewFrozenPsfKernel(17, 17, coaddWcs, components, WithKernelCache(8))
	plain, _ := NewFrozenPsfKernel(17, 17, coaddWcs, components)

	var points []geom.Point
	for j := range 4 {
		for i := range 4 {
			points = append(points, geom.Pt(-30+20*float64(i), -25+15*float64(j)))
		}
	}
	want := make([][]float64, len(points))
	for i, p := range points {
		out, _ := image.New(17, 17)
		if _, err := plain.ComputeImage(out, true, p.X, p.Y); err != nil {
			t.Fatal(err)
		}
		want[i] = out.Data()
	}

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			out, _ := image.New(17, 17)
			for n := range 2 * len(points) {
				i := (n + g) % len(points)
				k := plain
				if (n+g)%2 == 0 {
					k = cached
				}
				if _, err := k.ComputeImage(out, true, points[i].X, points[i].Y); err != nil {
					t.Errorf("ComputeImage(%v): %v", points[i], err)
					return
				}
				if !cmp.Equal(out.Data(), want[i]) {
					t.Errorf("ComputeImage(%v) differs from the serial result", points[i])
				}
			}
		}(g)
	}
	wg.Wait()
}
