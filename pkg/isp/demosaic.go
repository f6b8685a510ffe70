package isp

import (
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// fillRadius is the half-size of the neighbourhood averaged into a hole.
const fillRadius = 1

// Demosaic rebuilds a three-channel image from a single-channel sensor grid.
//
// Each photosite's normalised value is scattered into the channel its mask
// selects. Unsampled positions are then filled per channel by averaging the
// non-zero known values in the surrounding 3x3 window; positions filled on one pass
// become known for the next, so values spread outward from the samples until
// no hole remains. Sampled positions are never rewritten.
//
// The result is a Normalized buffer. It is not clipped.
func Demosaic(grid *SensorGrid, masks Masks) (*Buffer, error) {
	if grid == nil {
		return nil, errors.Wrap(ErrShapeMismatch, "nil sensor grid")
	}
	if err := masks.Validate(); err != nil {
		return nil, err
	}
	w, h := grid.Width, grid.Height
	if masks[0].Width != w || masks[0].Height != h {
		return nil, errors.Wrapf(ErrShapeMismatch, "masks are %dx%d, sensor is %dx%d", masks[0].Width, masks[0].Height, w, h)
	}

	gray := grid.Normalize()

	var planes [3][]float64
	var g errgroup.Group
	for c := 0; c < 3; c++ {
		c := c
		g.Go(func() error {
			plane, known := scatterChannel(gray, masks[c])
			if err := fillHoles(plane, known, w, h); err != nil {
				return errors.Wrapf(err, "channel %s", channelNames[c])
			}
			planes[c] = plane
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out, err := NewBuffer(w, h, Normalized)
	if err != nil {
		return nil, err
	}
	for c := range planes {
		out.SetChannel(c, planes[c])
	}
	return out, nil
}

// scatterChannel multiplies the gray plane by a mask and records which
// positions hold a native sample.
func scatterChannel(gray []float64, mask ChannelMask) ([]float64, []bool) {
	plane := make([]float64, len(gray))
	known := make([]bool, len(gray))
	for i, v := range gray {
		if mask.Bits[i] != 0 {
			plane[i] = v
			known[i] = true
		}
	}
	return plane, known
}

// fillHoles fills every unknown position of plane in place. Only non-zero
// known values are averaged; a hole with nothing but zero neighbours waits
// for a later pass and is left at 0 if no non-zero value ever reaches it.
func fillHoles(plane []float64, known []bool, width, height int) error {
	holes := 0
	for _, k := range known {
		if !k {
			holes++
		}
	}
	if holes == len(known) {
		return errors.Wrap(ErrDegenerateStatistics, "channel has no sampled pixels")
	}

	next := make([]bool, len(known))
	prev := make([]float64, len(plane))
	for holes > 0 {
		copy(prev, plane)
		copy(next, known)
		filled := 0
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := y*width + x
				if known[i] {
					continue
				}
				var sum float64
				count := 0
				for dy := -fillRadius; dy <= fillRadius; dy++ {
					ny := y + dy
					if ny < 0 || ny >= height {
						continue
					}
					for dx := -fillRadius; dx <= fillRadius; dx++ {
						nx := x + dx
						if (dx == 0 && dy == 0) || nx < 0 || nx >= width {
							continue
						}
						if j := ny*width + nx; known[j] && prev[j] != 0 {
							sum += prev[j]
							count++
						}
					}
				}
				if count > 0 {
					plane[i] = sum / float64(count)
					next[i] = true
					filled++
				}
			}
		}
		if filled == 0 {
			// No non-zero value can reach the remaining holes; they stay 0.
			return nil
		}
		holes -= filled
		known, next = next, known
	}
	return nil
}
