// Command coaddpsf inspects persisted coadd models and fits shapelet PSF
// models to star candidates.
//
// Usage:
//
//	coaddpsf eval --archive weights.yaml --x 120 --y 340
//	coaddpsf render --archive psf.yaml --x 120 --y 340 --out psf.png --scale 8
//	coaddpsf fit --config shapelet.yaml --candidates stars.yaml --x 512 --y 512
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/measalg/coaddpsf"
	"github.com/measalg/coaddpsf/archive"
	// registers the coadd, field, psf and wcs archive readers
	_ "github.com/measalg/coaddpsf/coadd"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globals shared by the sub-commands of one invocation.
type globals struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "coaddpsf",
		Short:         "Evaluate coadd weight fields and PSFs, fit shapelet PSF models",
		Version:       coaddpsf.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if g.verbose {
				coaddpsf.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})))
			}
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			coaddpsf.SetLogger(nil)
		},
	}
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log diagnostics to stderr")

	root.AddCommand(newEvalCmd(), newRenderCmd(), newFitCmd())
	return root
}

// printer formats numbers for terminal output.
func printer(w io.Writer) func(format string, args ...any) {
	p := message.NewPrinter(language.English)
	return func(format string, args ...any) {
		p.Fprintf(w, format, args...)
	}
}

func readArchive(path string) (archive.Persistable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	obj, err := archive.Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return obj, nil
}
