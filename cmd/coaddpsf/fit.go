package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/measalg/coaddpsf/geom"
	"github.com/measalg/coaddpsf/shapelet"
)

// candidateFile is the YAML layout of a star list.
type candidateFile struct {
	Order int             `yaml:"order"`
	Stars []candidateStar `yaml:"stars"`
}

type candidateStar struct {
	ID     int       `yaml:"id"`
	X      float64   `yaml:"x"`
	Y      float64   `yaml:"y"`
	Nu     float64   `yaml:"nu"`
	Sigma  float64   `yaml:"sigma"`
	Coeffs []float64 `yaml:"coeffs,flow"`
}

// readCandidates bins the stars of r into a grid of cellSize cells over
// their bounding box.
func readCandidates(r io.Reader, cellSize int) (*shapelet.Grid, error) {
	var doc candidateFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("candidates: %w", err)
	}
	if len(doc.Stars) == 0 {
		return nil, errors.New("candidates: no stars")
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	stars := make([]*shapelet.Star, len(doc.Stars))
	for i, s := range doc.Stars {
		sh, err := shapelet.New(doc.Order, s.Sigma, s.Coeffs)
		if err != nil {
			return nil, fmt.Errorf("candidates: star %d: %w", s.ID, err)
		}
		stars[i] = &shapelet.Star{Ident: shapelet.CandidateID(s.ID), X: s.X, Y: s.Y, Nu: s.Nu, Shape: sh}
		minX, maxX = math.Min(minX, s.X), math.Max(maxX, s.X)
		minY, maxY = math.Min(minY, s.Y), math.Max(maxY, s.Y)
	}

	x0, y0 := int(math.Floor(minX)), int(math.Floor(minY))
	bbox := geom.NewBox(x0, y0, int(math.Ceil(maxX))-x0+1, int(math.Ceil(maxY))-y0+1)
	grid, err := shapelet.NewGrid(bbox, cellSize)
	if err != nil {
		return nil, err
	}
	for _, s := range stars {
		grid.Insert(s)
	}
	return grid, nil
}

func newFitCmd() *cobra.Command {
	var (
		cfgPath, candPath string
		x, y              float64
		cellSize          int
	)
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit a shapelet PSF model to star candidates and interpolate it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := shapelet.DefaultConfig()
			if cfgPath != "" {
				var err error
				if cfg, err = shapelet.LoadConfig(cfgPath); err != nil {
					return err
				}
			}
			f, err := os.Open(candPath)
			if err != nil {
				return err
			}
			grid, err := readCandidates(f, cellSize)
			f.Close()
			if err != nil {
				return err
			}

			interp, err := shapelet.NewInterpolation(cfg)
			if err != nil {
				return err
			}
			res, err := interp.Calculate(grid)
			if err != nil {
				return err
			}
			s, err := interp.Interpolate(geom.Pt(x, y))
			if err != nil {
				return err
			}

			printf := printer(cmd.OutOrStdout())
			printf("fitted %d of %d candidates in %d passes, sigma %.4f\n",
				res.NumUsed, len(res.Positions), res.Passes, interp.Sigma())
			if len(res.Rejected) > 0 {
				printf("rejected: %v\n", res.Rejected)
			}
			printf("shapelet at (%g, %g), order %d, flux %.6g:\n", x, y, s.Order(), s.Flux())
			for i, c := range s.Coefficients() {
				printf("  b[%d] = %.10g\n", i, c)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "YAML fit configuration (defaults if empty)")
	cmd.Flags().StringVar(&candPath, "candidates", "", "YAML star list")
	cmd.Flags().Float64Var(&x, "x", 0, "x pixel coordinate")
	cmd.Flags().Float64Var(&y, "y", 0, "y pixel coordinate")
	cmd.Flags().IntVar(&cellSize, "cell", 256, "candidate cell size in pixels")
	_ = cmd.MarkFlagRequired("candidates")
	return cmd
}
