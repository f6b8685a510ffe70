package rawio

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"miniisp/pkg/isp"
)

// Capture is everything the pipeline needs from one raw file.
type Capture struct {
	Grid    *isp.SensorGrid
	Matrix  *isp.ColorMatrix
	Pattern isp.CFAPattern
	// Multipliers are as-shot white balance gains; zero entries mean 1.
	Multipliers isp.GainVector
}

// RawOptions describe what the container itself cannot.
type RawOptions struct {
	// Width and Height are required for raw16 files.
	Width  int
	Height int
	// BitDepth is the sensor bit depth. raw16 defaults to 10; for FITS a
	// non-zero value replaces the depth implied by BITPIX.
	BitDepth int
	// Pattern is used when the container does not name one. Zero means RGGB.
	Pattern isp.CFAPattern
	// CCMPath points at a CCM text file. Without one the identity is used.
	CCMPath     string
	Multipliers isp.GainVector
}

// DefaultBitDepth is the sensor depth assumed for raw16 files.
const DefaultBitDepth = 10

// Extensions lists the raw container extensions Open understands.
var Extensions = []string{".raw", ".fits", ".fit", ".fts"}

// Open decodes a raw capture, choosing the reader by file extension.
func Open(path string, opts RawOptions) (*Capture, error) {
	var c *Capture
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".raw":
		depth := opts.BitDepth
		if depth == 0 {
			depth = DefaultBitDepth
		}
		grid, err := ReadRaw16(path, opts.Width, opts.Height, depth)
		if err != nil {
			return nil, err
		}
		c = newCapture(opts)
		c.Grid = grid
	case ".fits", ".fit", ".fts":
		img, err := ReadFits(path)
		if err != nil {
			return nil, err
		}
		if c, err = FromFits(img, opts); err != nil {
			return nil, errors.Wrap(err, path)
		}
	default:
		return nil, errors.Wrapf(isp.ErrDecodeFailure, "unsupported raw container %q", ext)
	}

	if opts.CCMPath != "" {
		m, err := ReadCCM(opts.CCMPath)
		if err != nil {
			return nil, err
		}
		c.Matrix = m
	}
	return c, nil
}

func newCapture(opts RawOptions) *Capture {
	c := &Capture{Pattern: opts.Pattern, Multipliers: opts.Multipliers, Matrix: isp.IdentityMatrix()}
	if c.Pattern == 0 {
		c.Pattern = isp.RGGB
	}
	return c
}

// FromFits builds a capture from an already decoded FITS image.
func FromFits(img *FitsImage, opts RawOptions) (*Capture, error) {
	c := newCapture(opts)
	if err := c.fromFits(img, opts.BitDepth); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Capture) fromFits(img *FitsImage, bitDepth int) error {
	p, ok, err := img.Header.Pattern()
	if err != nil {
		return err
	}
	if ok {
		c.Pattern = p
	}
	c.Grid = img.Grid
	if bitDepth == 0 || bitDepth == img.Grid.BitDepth {
		return nil
	}

	maxVal := uint32(1)<<uint(bitDepth) - 1
	for i, v := range img.Grid.Pix {
		if uint32(v) > maxVal {
			return errors.Wrapf(isp.ErrDecodeFailure, "sample %d at index %d exceeds %d-bit range", v, i, bitDepth)
		}
	}
	grid, err := isp.NewSensorGrid(img.Grid.Width, img.Grid.Height, bitDepth, img.Grid.Pix)
	if err != nil {
		return err
	}
	c.Grid = grid
	return nil
}
