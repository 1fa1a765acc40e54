package wcs

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"seehuhn.de/go/geom/matrix"

	"github.com/measalg/coaddpsf"
	"github.com/measalg/coaddpsf/geom"
)

func mustTan(t *testing.T, ra, dec, arcsec, rot float64, crpix geom.Point) *Tan {
	t.Helper()
	w, err := NewTanScale(Degrees(ra, dec), crpix, arcsec, rot)
	if err != nil {
		t.Fatalf("NewTanScale: %v", err)
	}
	return w
}

func TestTanRoundTrip(t *testing.T) {
	w := mustTan(t, 150, 2.2, 0.2, 0.3, geom.Pt(1000, 1000))
	for _, p := range []geom.Point{geom.Pt(0, 0), geom.Pt(1000, 1000), geom.Pt(2047.5, 13.25), geom.Pt(-300, 4000)} {
		sky, err := w.PixelToSky(p)
		if err != nil {
			t.Fatalf("PixelToSky(%v): %v", p, err)
		}
		back, err := w.SkyToPixel(sky)
		if err != nil {
			t.Fatalf("SkyToPixel(%v): %v", sky, err)
		}
		if d := back.Sub(p).Length(); d > 1e-6 {
			t.Errorf("round trip of %v = %v (err %g pixels)", p, back, d)
		}
	}
}

func TestTanReferencePixel(t *testing.T) {
	crval := Degrees(10, -30)
	w := mustTan(t, 10, -30, 0.5, 0, geom.Pt(50, 60))
	sky, err := w.PixelToSky(geom.Pt(50, 60))
	if err != nil {
		t.Fatal(err)
	}
	if sky.Separation(crval) > 1e-12 {
		t.Errorf("CRPix maps to %v, want %v", sky, crval)
	}
	// one pixel step is 0.5 arcsec
	next, _ := w.PixelToSky(geom.Pt(51, 60))
	got := next.Separation(sky) * 180 / math.Pi * 3600
	if math.Abs(got-0.5) > 1e-6 {
		t.Errorf("pixel scale = %g arcsec, want 0.5", got)
	}
}

func TestTanBehindPlane(t *testing.T) {
	w := mustTan(t, 0, 0, 1, 0, geom.Pt(0, 0))
	_, err := w.SkyToPixel(Degrees(180, 0))
	if !errors.Is(err, coaddpsf.ErrTransformFailure) {
		t.Errorf("SkyToPixel(antipode) err = %v, want ErrTransformFailure", err)
	}
}

func TestNewTanSingular(t *testing.T) {
	_, err := NewTan(Degrees(0, 0), geom.Pt(0, 0), CD(1, 1, 1, 1))
	if !errors.Is(err, coaddpsf.ErrInvalidConfiguration) {
		t.Errorf("NewTan(singular) err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestTransformOffsetFrames(t *testing.T) {
	coadd := NewOffset(0, 0)
	exposure := NewOffset(-10, 5) // exposure pixel (0,0) sits at coadd pixel (-10,5)

	got, err := Transform(geom.Pt(3, 4), coadd, exposure)
	if err != nil {
		t.Fatal(err)
	}
	if want := geom.Pt(13, -1); got != want {
		t.Errorf("Transform = %v, want %v", got, want)
	}

	same, err := Transform(geom.Pt(3, 4), coadd, nil)
	if err != nil || same != geom.Pt(3, 4) {
		t.Errorf("Transform to nil frame = %v, %v", same, err)
	}

	if _, err := Transform(geom.Pt(0, 0), nil, exposure); !errors.Is(err, coaddpsf.ErrTransformFailure) {
		t.Errorf("Transform from nil frame err = %v", err)
	}
}

func TestLocalLinear(t *testing.T) {
	coadd := mustTan(t, 45, 45, 0.2, 0, geom.Pt(500, 500))
	exposure := mustTan(t, 45.01, 45.005, 0.25, 0.1, geom.Pt(800, 200))
	p := geom.Pt(420, 610)

	m, err := LocalLinear(p, coadd, exposure)
	if err != nil {
		t.Fatal(err)
	}
	center, _ := Transform(p, coadd, exposure)
	if d := geom.Apply(m, p).Sub(center).Length(); d > 1e-9 {
		t.Errorf("LocalLinear does not map p onto its image (off by %g)", d)
	}
	// Pixel area ratio (0.2/0.25)^2.
	if det := Determinant(m); math.Abs(det-0.64) > 1e-4 {
		t.Errorf("Determinant = %g, want ~0.64", det)
	}

	id, err := LocalLinear(p, coadd, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(matrix.Identity, id); d != "" {
		t.Error(d)
	}
}

func TestLinearRoundTrip(t *testing.T) {
	w, err := NewLinear(SkyCoord{RA: 1, Dec: 0.5}, geom.Pt(10, 10), CD(1e-5, 2e-6, -1e-6, 1e-5))
	if err != nil {
		t.Fatal(err)
	}
	p := geom.Pt(123.5, -7.25)
	sky, _ := w.PixelToSky(p)
	back, err := w.SkyToPixel(sky)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(p, back, cmpopts.EquateApprox(0, 1e-7)); d != "" {
		t.Error(d)
	}
}

func TestEqual(t *testing.T) {
	a := mustTan(t, 1, 2, 0.2, 0, geom.Pt(0, 0))
	b := mustTan(t, 1, 2, 0.2, 0, geom.Pt(0, 0))
	c := mustTan(t, 1, 2, 0.3, 0, geom.Pt(0, 0))
	tests := []struct {
		name string
		x, y Wcs
		want bool
	}{
		{"same values", a, b, true},
		{"different scale", a, c, false},
		{"nil nil", nil, nil, true},
		{"nil vs tan", nil, a, false},
		{"tan vs linear", a, NewOffset(0, 0), false},
		{"offsets", NewOffset(1, 2), NewOffset(1, 2), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.x, tt.y); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}
