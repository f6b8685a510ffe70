// Package rawio reads and writes the raw sensor captures consumed by the
// pipeline: flat 16-bit sample files, CCM text files and FITS images.
package rawio

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"

	"miniisp/pkg/isp"
)

// DecodeRaw16 parses a flat little-endian uint16 buffer of width*height
// row-major samples. Every sample must fit bitDepth.
func DecodeRaw16(data []byte, width, height, bitDepth int) (*isp.SensorGrid, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(isp.ErrShapeMismatch, "raw size must be positive, got %dx%d", width, height)
	}
	if want := width * height * 2; len(data) != want {
		return nil, errors.Wrapf(isp.ErrDecodeFailure, "raw16 %dx%d needs %d bytes, got %d", width, height, want, len(data))
	}
	if bitDepth < 1 || bitDepth > 16 {
		return nil, errors.Wrapf(isp.ErrInvalidConfiguration, "bit depth must be in [1,16], got %d", bitDepth)
	}

	maxVal := uint32(1)<<uint(bitDepth) - 1
	pix := make([]uint16, width*height)
	for i := range pix {
		v := binary.LittleEndian.Uint16(data[i*2:])
		if uint32(v) > maxVal {
			return nil, errors.Wrapf(isp.ErrDecodeFailure, "sample %d at (%d,%d) exceeds %d-bit range", v, i%width, i/width, bitDepth)
		}
		pix[i] = v
	}
	return isp.NewSensorGrid(width, height, bitDepth, pix)
}

// ReadRaw16 reads a raw16 file from disk.
func ReadRaw16(path string, width, height, bitDepth int) (*isp.SensorGrid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading raw16 file")
	}
	grid, err := DecodeRaw16(data, width, height, bitDepth)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return grid, nil
}

// EncodeRaw16 serialises a grid as little-endian uint16 samples.
func EncodeRaw16(grid *isp.SensorGrid) []byte {
	data := make([]byte, len(grid.Pix)*2)
	for i, v := range grid.Pix {
		binary.LittleEndian.PutUint16(data[i*2:], v)
	}
	return data
}

// WriteRaw16 writes a grid to path as raw16.
func WriteRaw16(path string, grid *isp.SensorGrid) error {
	if err := os.WriteFile(path, EncodeRaw16(grid), 0o644); err != nil {
		return errors.Wrap(err, "writing raw16 file")
	}
	return nil
}
