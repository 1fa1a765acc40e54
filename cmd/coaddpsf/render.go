package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/measalg/coaddpsf/geom"
	"github.com/measalg/coaddpsf/psf"
)

func newRenderCmd() *cobra.Command {
	var (
		path, out string
		x, y      float64
		scale     int
		raw       bool
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a persisted PSF at a coadd pixel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			obj, err := readArchive(path)
			if err != nil {
				return err
			}
			p, ok := obj.(psf.Psf)
			if !ok {
				return fmt.Errorf("%s holds a %s, not a PSF", path, obj.PersistenceName())
			}
			pos := geom.Pt(x, y)
			img, err := p.ComputeImage(pos, !raw)
			if err != nil {
				return err
			}

			printf := printer(cmd.OutOrStdout())
			printf("%v\n", p)
			printf("kernel %dx%d, sum %.6g, peak %.6g\n", img.Width(), img.Height(), img.Sum(), img.Max())
			if m, err := psf.ComputeMoments(img); err == nil {
				printf("centroid (%.4f, %.4f), Ixx %.4f, Iyy %.4f, Ixy %.4f, radius %.4f\n",
					m.X, m.Y, m.Ixx, m.Iyy, m.Ixy, m.DeterminantRadius())
			}

			if out == "" {
				return nil
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := img.WritePNG(f, scale); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			printf("wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "archive", "", "archive file holding the PSF")
	cmd.Flags().StringVar(&out, "out", "", "PNG file to write")
	cmd.Flags().Float64Var(&x, "x", 0, "x pixel coordinate")
	cmd.Flags().Float64Var(&y, "y", 0, "y pixel coordinate")
	cmd.Flags().IntVar(&scale, "scale", 8, "PNG pixels per kernel pixel")
	cmd.Flags().BoolVar(&raw, "raw", false, "render without normalizing")
	_ = cmd.MarkFlagRequired("archive")
	return cmd
}
