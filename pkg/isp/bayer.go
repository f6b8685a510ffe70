package isp

import (
	"strings"

	"github.com/pkg/errors"
)

// CFAPattern is the 2x2 colour filter arrangement repeated across the sensor.
type CFAPattern uint8

const (
	RGGB CFAPattern = iota + 1
	BGGR
	GRBG
	GBRG
)

// tiles maps a pattern to the channel at [row%2][col%2].
var tiles = map[CFAPattern][2][2]int{
	RGGB: {{ChannelR, ChannelG}, {ChannelG, ChannelB}},
	BGGR: {{ChannelB, ChannelG}, {ChannelG, ChannelR}},
	GRBG: {{ChannelG, ChannelR}, {ChannelB, ChannelG}},
	GBRG: {{ChannelG, ChannelB}, {ChannelR, ChannelG}},
}

func (p CFAPattern) String() string {
	switch p {
	case RGGB:
		return "RGGB"
	case BGGR:
		return "BGGR"
	case GRBG:
		return "GRBG"
	case GBRG:
		return "GBRG"
	default:
		return "UNKNOWN"
	}
}

// ParsePattern accepts a pattern name in any case. The four-letter colour
// descriptor "RGBG" reported by some raw containers means RGGB.
func ParsePattern(s string) (CFAPattern, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RGGB", "RGBG":
		return RGGB, nil
	case "BGGR":
		return BGGR, nil
	case "GRBG":
		return GRBG, nil
	case "GBRG":
		return GBRG, nil
	default:
		return 0, errors.Wrapf(ErrInvalidPattern, "unknown Bayer pattern %q", s)
	}
}

// ChannelAt returns the channel sampled at (x, y).
func (p CFAPattern) ChannelAt(x, y int) (int, error) {
	t, ok := tiles[p]
	if !ok {
		return 0, errors.Wrapf(ErrInvalidPattern, "unsupported pattern %v", p)
	}
	return t[y&1][x&1], nil
}

// Shift returns the pattern seen by a sensor window whose origin is offset
// by (dx, dy) photosites, as FITS XBAYROFF/YBAYROFF describe.
func (p CFAPattern) Shift(dx, dy int) (CFAPattern, error) {
	t, ok := tiles[p]
	if !ok {
		return 0, errors.Wrapf(ErrInvalidPattern, "unsupported pattern %v", p)
	}
	var shifted [2][2]int
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			shifted[y][x] = t[(y+dy)&1][(x+dx)&1]
		}
	}
	for q, qt := range tiles {
		if qt == shifted {
			return q, nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidPattern, "no pattern matches %v shifted by (%d,%d)", p, dx, dy)
}

// ChannelMask marks with 1 the photosites that sample one channel.
type ChannelMask struct {
	Width  int
	Height int
	Bits   []uint8
}

// At returns the mask value at (x, y).
func (m ChannelMask) At(x, y int) uint8 {
	return m.Bits[y*m.Width+x]
}

// Masks holds one ChannelMask per channel, indexed by ChannelR, ChannelG, ChannelB.
type Masks [3]ChannelMask

// BayerMasks builds the R, G and B sampling masks for a height x width sensor.
func BayerMasks(height, width int, p CFAPattern) (Masks, error) {
	var masks Masks
	t, ok := tiles[p]
	if !ok {
		return masks, errors.Wrapf(ErrInvalidPattern, "unsupported pattern %v", p)
	}
	if width <= 0 || height <= 0 {
		return masks, errors.Wrapf(ErrShapeMismatch, "mask size must be positive, got %dx%d", width, height)
	}
	for c := range masks {
		masks[c] = ChannelMask{Width: width, Height: height, Bits: make([]uint8, width*height)}
	}
	for y := 0; y < height; y++ {
		row := t[y&1]
		for x := 0; x < width; x++ {
			masks[row[x&1]].Bits[y*width+x] = 1
		}
	}
	return masks, nil
}

// Validate checks that the three masks share one size and that every pixel
// belongs to exactly one channel.
func (m Masks) Validate() error {
	w, h := m[0].Width, m[0].Height
	for c := range m {
		if m[c].Width != w || m[c].Height != h || len(m[c].Bits) != w*h {
			return errors.Wrapf(ErrShapeMismatch, "mask %s is %dx%d, want %dx%d", channelNames[c], m[c].Width, m[c].Height, w, h)
		}
	}
	for i := 0; i < w*h; i++ {
		sum := 0
		for c := range m {
			b := m[c].Bits[i]
			if b > 1 {
				return errors.Wrapf(ErrInvalidConfiguration, "mask %s has bit %d at (%d,%d), want 0 or 1", channelNames[c], b, i%w, i/w)
			}
			sum += int(b)
		}
		if sum != 1 {
			return errors.Wrapf(ErrInvalidConfiguration, "pixel (%d,%d) is covered by %d masks", i%w, i/w, sum)
		}
	}
	return nil
}
