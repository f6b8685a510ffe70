package isp

import "github.com/pkg/errors"

// SyntheticGrid builds a width x height capture in which every photosite
// holds the value of the channel it samples under pattern. This is the flat
// checkerboard used to exercise the pipeline without a camera.
func SyntheticGrid(width, height, bitDepth int, pattern CFAPattern, r, g, b uint16) (*SensorGrid, error) {
	if bitDepth < 1 || bitDepth > 16 {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "bit depth must be in [1,16], got %d", bitDepth)
	}
	maxVal := uint32(1)<<uint(bitDepth) - 1
	values := [3]uint16{ChannelR: r, ChannelG: g, ChannelB: b}
	for c, v := range values {
		if uint32(v) > maxVal {
			return nil, errors.Wrapf(ErrInvalidConfiguration, "%s value %d exceeds %d-bit range", channelNames[c], v, bitDepth)
		}
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrShapeMismatch, "sensor size must be positive, got %dx%d", width, height)
	}

	pix := make([]uint16, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c, err := pattern.ChannelAt(x, y)
			if err != nil {
				return nil, err
			}
			pix[y*width+x] = values[c]
		}
	}
	return NewSensorGrid(width, height, bitDepth, pix)
}
