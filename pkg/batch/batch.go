// Package batch white-balances every image in a directory.
package batch

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"miniisp/pkg/imageio"
	"miniisp/pkg/isp"
)

// DefaultExtensions are the files picked up when Options.Extensions is empty.
var DefaultExtensions = []string{".jpg", ".png"}

// Options configures Run.
type Options struct {
	InputDir  string
	OutputDir string

	WhiteBalance isp.WhiteBalanceParams
	// Extensions are matched case-insensitively against file names.
	Extensions []string
	// Workers bounds concurrent images. Zero means one per CPU.
	Workers int

	Logger *zerolog.Logger

	// Load and Save default to imageio.Load and imageio.Save.
	Load func(path string) (*isp.Buffer, error)
	Save func(path string, buf *isp.Buffer) error
}

// Failure records one image that could not be processed.
type Failure struct {
	File string
	Kind string
	Err  error
}

// Report lists the outcome of every matched file, in file name order.
type Report struct {
	RunID     string
	Processed []string
	Failed    []Failure
}

// Run processes every matching file of InputDir and writes the result under
// the same name in OutputDir. A failing image is logged and recorded in the
// report; it does not stop the others. The returned error is reserved for
// problems with the run itself, such as an unreadable input directory or a
// cancelled context.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Load == nil {
		opts.Load = imageio.Load
	}
	if opts.Save == nil {
		opts.Save = imageio.Save
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	report := &Report{RunID: uuid.NewString()}
	base := zerolog.Nop()
	if opts.Logger != nil {
		base = *opts.Logger
	}
	log := base.With().Str("run", report.RunID).Logger()

	p, err := isp.NewPipeline(isp.Options{
		Pattern:      isp.RGGB,
		WhiteBalance: opts.WhiteBalance,
		Gamma:        isp.DefaultGammaParams(),
		Logger:       &log,
	})
	if err != nil {
		return nil, err
	}

	files, err := ListImages(opts.InputDir, opts.Extensions)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating output directory")
	}
	log.Info().
		Str("input", opts.InputDir).
		Str("output", opts.OutputDir).
		Int("files", len(files)).
		Str("method", opts.WhiteBalance.Method.String()).
		Msg("batch started")

	errs := make([]error, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range files {
		if gctx.Err() != nil {
			break
		}
		i, name := i, name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			errs[i] = processFile(p, opts, name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	for i, name := range files {
		if errs[i] == nil {
			report.Processed = append(report.Processed, name)
			log.Info().Str("file", name).Msg("processed")
			continue
		}
		f := Failure{File: name, Kind: isp.Kind(errs[i]), Err: errs[i]}
		report.Failed = append(report.Failed, f)
		log.Error().Err(f.Err).Str("file", f.File).Str("kind", f.Kind).Msg("image failed")
	}
	log.Info().
		Int("processed", len(report.Processed)).
		Int("failed", len(report.Failed)).
		Msg("batch finished")
	return report, nil
}

func processFile(p *isp.Pipeline, opts Options, name string) error {
	img, err := opts.Load(filepath.Join(opts.InputDir, name))
	if err != nil {
		return err
	}
	res, err := p.Balance(img)
	if err != nil {
		return err
	}
	return opts.Save(filepath.Join(opts.OutputDir, name), res.Image)
}

// ListImages returns the names of regular files in dir whose extension is in
// exts, sorted.
func ListImages(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "reading input directory")
	}
	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		want[strings.ToLower(e)] = true
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if want[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
