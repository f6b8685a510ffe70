package isp

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemosaicPreservesSamples(t *testing.T) {
	const w, h = 7, 6
	pix := make([]uint16, w*h)
	for i := range pix {
		pix[i] = uint16((i*37 + 11) % 1024)
	}
	grid, err := NewSensorGrid(w, h, 10, pix)
	require.NoError(t, err)

	for _, p := range []CFAPattern{RGGB, BGGR, GRBG, GBRG} {
		masks, err := BayerMasks(h, w, p)
		require.NoError(t, err)
		out, err := Demosaic(grid, masks)
		require.NoError(t, err, p.String())
		assert.Equal(t, Normalized, out.Range)

		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c, err := p.ChannelAt(x, y)
				require.NoError(t, err)
				assert.Equal(t, float64(grid.At(x, y))/1023, out.At(x, y, c), "%v (%d,%d)", p, x, y)
			}
		}
		for i, v := range out.Pix {
			assert.GreaterOrEqual(t, v, 0.0, "%v sample %d", p, i)
		}
	}
}

func TestDemosaic2x2(t *testing.T) {
	grid, err := NewSensorGrid(2, 2, 10, []uint16{100, 200, 300, 400})
	require.NoError(t, err)
	masks, err := BayerMasks(2, 2, RGGB)
	require.NoError(t, err)

	out, err := Demosaic(grid, masks)
	require.NoError(t, err)

	r, b := 100.0/1023, 400.0/1023
	g := (200.0/1023 + 300.0/1023) / 2
	want := []float64{
		r, g, b, r, 200.0 / 1023, b,
		r, 300.0 / 1023, b, r, g, b,
	}
	assert.InDeltaSlice(t, want, out.Pix, 1e-12)
}

func TestDemosaicPropagatesOverSeveralPasses(t *testing.T) {
	const w, h = 4, 4
	// R is sampled only at the top-left corner and B only at the bottom-right,
	// so both must travel across the whole grid.
	var masks Masks
	for c := range masks {
		masks[c] = ChannelMask{Width: w, Height: h, Bits: make([]uint8, w*h)}
	}
	for i := 0; i < w*h; i++ {
		masks[ChannelG].Bits[i] = 1
	}
	masks[ChannelG].Bits[0], masks[ChannelR].Bits[0] = 0, 1
	masks[ChannelG].Bits[w*h-1], masks[ChannelB].Bits[w*h-1] = 0, 1
	require.NoError(t, masks.Validate())

	pix := make([]uint16, w*h)
	for i := range pix {
		pix[i] = 500
	}
	pix[0] = 100
	pix[w*h-1] = 900
	grid, err := NewSensorGrid(w, h, 10, pix)
	require.NoError(t, err)

	out, err := Demosaic(grid, masks)
	require.NoError(t, err)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			assert.InDelta(t, 100.0/1023, out.At(x, y, ChannelR), 1e-12)
			assert.InDelta(t, 900.0/1023, out.At(x, y, ChannelB), 1e-12)
		}
	}
	assert.InDelta(t, 500.0/1023, out.At(0, 0, ChannelG), 1e-12)
}

func TestDemosaicKeepsZeroSamples(t *testing.T) {
	grid, err := SyntheticGrid(4, 4, 10, RGGB, 0, 500, 900)
	require.NoError(t, err)
	masks, err := BayerMasks(4, 4, RGGB)
	require.NoError(t, err)

	out, err := Demosaic(grid, masks)
	require.NoError(t, err)
	for _, v := range out.Channel(ChannelR) {
		assert.Equal(t, 0.0, v)
	}
}

// A black-clipped photosite keeps its 0 but does not darken its neighbours.
func TestDemosaicSkipsZeroNeighbours(t *testing.T) {
	pix := make([]uint16, 16)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			switch {
			case x%2 == 0 && y%2 == 0:
				pix[y*4+x] = 500
			case x%2 == 1 && y%2 == 1:
				pix[y*4+x] = 900
			default:
				pix[y*4+x] = 300
			}
		}
	}
	pix[0] = 0
	grid, err := NewSensorGrid(4, 4, 10, pix)
	require.NoError(t, err)
	masks, err := BayerMasks(4, 4, RGGB)
	require.NoError(t, err)

	out, err := Demosaic(grid, masks)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.At(0, 0, ChannelR))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if x == 0 && y == 0 {
				continue
			}
			assert.InDelta(t, 500.0/1023, out.At(x, y, ChannelR), 1e-12, "(%d,%d)", x, y)
		}
	}
}

func TestDemosaicChannelWithoutSamples(t *testing.T) {
	const w, h = 2, 2
	var masks Masks
	for c := range masks {
		masks[c] = ChannelMask{Width: w, Height: h, Bits: make([]uint8, w*h)}
	}
	masks[ChannelR].Bits = []uint8{1, 0, 0, 0}
	masks[ChannelG].Bits = []uint8{0, 1, 1, 1}
	grid, err := NewSensorGrid(w, h, 10, []uint16{1, 2, 3, 4})
	require.NoError(t, err)

	_, err = Demosaic(grid, masks)
	assert.True(t, errors.Is(err, ErrDegenerateStatistics), "got %v", err)
}

func TestDemosaicShapeMismatch(t *testing.T) {
	grid, err := NewSensorGrid(4, 4, 10, make([]uint16, 16))
	require.NoError(t, err)
	masks, err := BayerMasks(2, 2, RGGB)
	require.NoError(t, err)

	_, err = Demosaic(grid, masks)
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	_, err = Demosaic(nil, masks)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}
