package isp

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Dumper receives every intermediate buffer the pipeline produces. index is
// the buffer's position in the run, starting at 0.
type Dumper interface {
	Dump(index int, stage Stage, buf *Buffer) error
}

// Options configures a Pipeline.
type Options struct {
	Pattern      CFAPattern
	WhiteBalance WhiteBalanceParams
	Gamma        GammaParams
	// Logger receives one debug event per stage. Nil disables logging.
	Logger *zerolog.Logger
	// Dumper, when set, is handed each intermediate buffer.
	Dumper Dumper
}

// DefaultOptions returns RGGB, perfect-reflector white balance over the
// brightest 20% and gamma 2.2 over 10-bit values.
func DefaultOptions() Options {
	return Options{
		Pattern:      RGGB,
		WhiteBalance: DefaultWhiteBalanceParams(),
		Gamma:        DefaultGammaParams(),
	}
}

// Pipeline runs demosaic, white balance, color correction and gamma encoding
// over one capture at a time. A Pipeline holds no per-image state and may be
// shared between goroutines.
type Pipeline struct {
	opts Options
	log  zerolog.Logger
}

// StageStats records the statistics of one intermediate buffer.
type StageStats struct {
	Stage Stage
	Range Range
	Stats BufferStats
}

// Result is the output of a successful run.
type Result struct {
	Image  *Buffer
	Gains  GainVector
	Stages []StageStats
}

// NewPipeline validates the options.
func NewPipeline(opts Options) (*Pipeline, error) {
	if _, ok := tiles[opts.Pattern]; !ok {
		return nil, errors.Wrapf(ErrInvalidPattern, "unsupported pattern %v", opts.Pattern)
	}
	switch opts.WhiteBalance.Method {
	case PerfectReflector:
		if !(opts.WhiteBalance.Ratio > 0 && opts.WhiteBalance.Ratio < 1) {
			return nil, errors.Wrapf(ErrInvalidConfiguration, "ratio must be in (0,1), got %v", opts.WhiteBalance.Ratio)
		}
	case GreyWorld, AsShot:
	default:
		return nil, errors.Wrapf(ErrInvalidConfiguration, "unsupported white balance method %v", opts.WhiteBalance.Method)
	}
	if err := opts.Gamma.validate(); err != nil {
		return nil, err
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Pipeline{opts: opts, log: log}, nil
}

// Options returns the configuration the pipeline was built with.
func (p *Pipeline) Options() Options { return p.opts }

// run tracks one invocation.
type run struct {
	p      *Pipeline
	index  int
	stages []StageStats
}

func (r *run) observe(stage Stage, buf *Buffer) error {
	s := buf.Stats()
	r.stages = append(r.stages, StageStats{Stage: stage, Range: buf.Range, Stats: s})
	r.p.log.Debug().
		Str("stage", string(stage)).
		Str("range", buf.Range.String()).
		Float64("min", s.Min).
		Float64("max", s.Max).
		Msg("stage done")

	idx := r.index
	r.index++
	if r.p.opts.Dumper == nil {
		return nil
	}
	if err := r.p.opts.Dumper.Dump(idx, stage, buf); err != nil {
		return &StageError{Stage: StageDump, Err: errors.Wrapf(err, "dump %s", stage)}
	}
	return nil
}

// Run converts a sensor capture to a byte-range RGB image. A nil matrix is
// treated as the identity. The color-corrected buffer is rescaled from [0,1]
// to [0, Gamma.MaxValue] before gamma encoding. Any stage failure aborts the
// run and is returned as a *StageError; no partial result is returned.
func (p *Pipeline) Run(grid *SensorGrid, ccm *ColorMatrix) (*Result, error) {
	if grid == nil {
		return nil, &StageError{Stage: StageMasks, Err: errors.Wrap(ErrShapeMismatch, "nil sensor grid")}
	}
	if ccm == nil {
		ccm = IdentityMatrix()
	}
	r := &run{p: p}

	masks, err := BayerMasks(grid.Height, grid.Width, p.opts.Pattern)
	if err != nil {
		return nil, &StageError{Stage: StageMasks, Err: err}
	}

	rgb, err := Demosaic(grid, masks)
	if err != nil {
		return nil, &StageError{Stage: StageDemosaic, Err: err}
	}
	if err := r.observe(StageDemosaic, rgb); err != nil {
		return nil, err
	}

	// Demosaic may overshoot [0,1]; white balance reads it as-is and clips.
	balanced, gains, err := AutoWhiteBalance(rgb, p.opts.WhiteBalance)
	if err != nil {
		return nil, &StageError{Stage: StageWhiteBal, Err: err}
	}
	p.logGains(gains)
	if err := r.observe(StageWhiteBal, balanced); err != nil {
		return nil, err
	}

	corrected, err := ColorCorrect(balanced, ccm)
	if err != nil {
		return nil, &StageError{Stage: StageColorCorr, Err: err}
	}
	if err := r.observe(StageColorCorr, corrected); err != nil {
		return nil, err
	}

	linear, err := Linear(p.opts.Gamma.MaxValue)
	if err != nil {
		return nil, &StageError{Stage: StageRescale, Err: err}
	}
	scaled, err := corrected.Rescale(linear)
	if err != nil {
		return nil, &StageError{Stage: StageRescale, Err: err}
	}

	out, err := GammaEncode(scaled, p.opts.Gamma)
	if err != nil {
		return nil, &StageError{Stage: StageGamma, Err: err}
	}
	if err := r.observe(StageGamma, out); err != nil {
		return nil, err
	}

	return &Result{Image: out, Gains: gains, Stages: r.stages}, nil
}

// Balance white-balances an already decoded byte-range image, as the batch
// runner does for stored JPEG and PNG files. The result has the same size
// and range as the input.
func (p *Pipeline) Balance(img *Buffer) (*Result, error) {
	if err := img.Validate(); err != nil {
		return nil, &StageError{Stage: StageWhiteBal, Err: err}
	}
	if img.Range != Byte {
		return nil, &StageError{Stage: StageWhiteBal,
			Err: errors.Wrapf(ErrRangeMismatch, "balance needs a byte buffer, got %v", img.Range)}
	}
	r := &run{p: p}

	out, gains, err := AutoWhiteBalance(img, p.opts.WhiteBalance)
	if err != nil {
		return nil, &StageError{Stage: StageWhiteBal, Err: err}
	}
	p.logGains(gains)
	if err := r.observe(StageWhiteBal, out); err != nil {
		return nil, err
	}
	return &Result{Image: out, Gains: gains, Stages: r.stages}, nil
}

func (p *Pipeline) logGains(g GainVector) {
	p.log.Debug().
		Str("method", p.opts.WhiteBalance.Method.String()).
		Float64("blue", g.Blue).
		Float64("green", g.Green).
		Float64("red", g.Red).
		Msg("white balance gains")
}
