package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/measalg/coaddpsf/field"
	"github.com/measalg/coaddpsf/geom"
)

func newEvalCmd() *cobra.Command {
	var (
		path string
		x, y float64
	)
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate a persisted bounded field at a coadd pixel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			obj, err := readArchive(path)
			if err != nil {
				return err
			}
			f, ok := obj.(field.BoundedField)
			if !ok {
				return fmt.Errorf("%s holds a %s, not a bounded field", path, obj.PersistenceName())
			}
			v, err := f.Evaluate(geom.Pt(x, y))
			if err != nil {
				return err
			}
			printf := printer(cmd.OutOrStdout())
			printf("%v\n", f)
			printf("value at (%g, %g): %.10g\n", x, y, v)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "archive", "", "archive file holding the field")
	cmd.Flags().Float64Var(&x, "x", 0, "x pixel coordinate")
	cmd.Flags().Float64Var(&y, "y", 0, "y pixel coordinate")
	_ = cmd.MarkFlagRequired("archive")
	return cmd
}
