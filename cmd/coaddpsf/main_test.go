package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/measalg/coaddpsf/archive"
	"github.com/measalg/coaddpsf/coadd"
	"github.com/measalg/coaddpsf/field"
	"github.com/measalg/coaddpsf/geom"
	"github.com/measalg/coaddpsf/psf"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeArchive(t *testing.T, obj archive.Persistable) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "obj.yaml")
	var buf bytes.Buffer
	if err := archive.Write(&buf, obj); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEvalCommand(t *testing.T) {
	box := geom.NewBox(0, 0, 10, 10)
	e1, _ := coadd.NewElement(field.NewConstant(box, 10), nil, nil, 2)
	e2, _ := coadd.NewElement(field.NewConstant(box, 4), nil, nil, 1)
	bf, err := coadd.New(box, nil, []coadd.Element{e1, e2})
	if err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "eval", "--archive", writeArchive(t, bf), "--x", "3", "--y", "4")
	if err != nil {
		t.Fatalf("eval: %v\n%s", err, out)
	}
	if !strings.Contains(out, "value at (3, 4): 8") {
		t.Errorf("output:\n%s", out)
	}
}

func TestEvalWrongType(t *testing.T) {
	g, _ := psf.NewSingleGaussian(5, 5, 1)
	if _, err := run(t, "eval", "--archive", writeArchive(t, g)); err == nil {
		t.Error("eval of a PSF archive succeeded")
	}
}

func TestRenderCommand(t *testing.T) {
	g, _ := psf.NewSingleGaussian(15, 15, 2)
	k, err := coadd.NewBuilder(15, 15, nil).Add(g, nil, geom.NewBox(0, 0, 100, 100), 1).Build()
	if err != nil {
		t.Fatal(err)
	}
	cp, _ := coadd.NewPsf(k)
	png := filepath.Join(t.TempDir(), "psf.png")
	out, err := run(t, "render", "--archive", writeArchive(t, cp), "--x", "50", "--y", "50", "--out", png, "--scale", "2")
	if err != nil {
		t.Fatalf("render: %v\n%s", err, out)
	}
	if !strings.Contains(out, "kernel 15x15, sum 1, ") || !strings.Contains(out, "wrote "+png) {
		t.Errorf("output:\n%s", out)
	}
	info, err := os.Stat(png)
	if err != nil || info.Size() == 0 {
		t.Errorf("png not written: %v", err)
	}
}

func TestFitCommand(t *testing.T) {
	doc := candidateFile{Order: 1}
	id := 0
	for j := range 5 {
		for i := range 5 {
			x, y := 20*float64(i), 20*float64(j)
			doc.Stars = append(doc.Stars, candidateStar{
				ID: id, X: x, Y: y, Nu: 10, Sigma: 1.5,
				Coeffs: []float64{1 + 0.001*x, 0.01, -0.002 * y},
			})
			id++
		}
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	cands := filepath.Join(dir, "stars.yaml")
	cfg := filepath.Join(dir, "fit.yaml")
	if err := os.WriteFile(cands, data, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg, []byte("shapeletOrder: 1\ninterpOrder: 1\nnStarsPerCell: 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "fit", "--config", cfg, "--candidates", cands, "--cell", "20", "--x", "40", "--y", "40")
	if err != nil {
		t.Fatalf("fit: %v\n%s", err, out)
	}
	for _, want := range []string{
		"fitted 25 of 25 candidates",
		"sigma 1.5000",
		fmt.Sprintf("b[0] = %.10g", 1.04),
		"b[1] = 0.01",
		fmt.Sprintf("b[2] = %.10g", -0.08),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestFitCommandOrderMismatch(t *testing.T) {
	dir := t.TempDir()
	cands := filepath.Join(dir, "stars.yaml")
	data := "order: 0\nstars:\n  - {id: 1, x: 0, y: 0, nu: 1, sigma: 1, coeffs: [1]}\n"
	if err := os.WriteFile(cands, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "fit", "--candidates", cands); err == nil {
		t.Error("fit with order-0 candidates and an order-4 config succeeded")
	}
}
