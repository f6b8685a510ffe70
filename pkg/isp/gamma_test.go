package isp

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearRamp(t *testing.T, maxVal float64) *Buffer {
	t.Helper()
	rng, err := Linear(maxVal)
	require.NoError(t, err)
	n := int(maxVal) + 1
	b, err := NewBuffer(n, 1, rng)
	require.NoError(t, err)
	for x := 0; x < n; x++ {
		for c := 0; c < 3; c++ {
			b.Set(x, 0, c, float64(x))
		}
	}
	return b
}

func TestGammaEncodeMonotonic(t *testing.T) {
	in := linearRamp(t, 1023)
	out, err := GammaEncode(in, DefaultGammaParams())
	require.NoError(t, err)
	assert.Equal(t, Byte, out.Range)

	prev := -1.0
	for x := 0; x < out.Width; x++ {
		v := out.At(x, 0, ChannelG)
		assert.GreaterOrEqual(t, v, prev, "x=%d", x)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 255.0)
		assert.Equal(t, math.Trunc(v), v)
		prev = v
	}
	assert.Equal(t, 0.0, out.At(0, 0, ChannelR))
	assert.Equal(t, 255.0, out.At(1023, 0, ChannelR))
}

func TestGammaEncodeKnownValues(t *testing.T) {
	in := bufferFrom(t, 2, 1, mustLinear(t, 1023),
		100, 500, 900,
		0, 512, 1023,
	)
	out, err := GammaEncode(in, DefaultGammaParams())
	require.NoError(t, err)
	assert.Equal(t, []float64{88, 184, 240, 0, 186, 255}, out.Pix)
}

func TestGammaOneIsLinear(t *testing.T) {
	in := linearRamp(t, 255)
	out, err := GammaEncode(in, GammaParams{Gamma: 1, MaxValue: 255})
	require.NoError(t, err)
	for x := 0; x < out.Width; x++ {
		assert.Equal(t, float64(x), out.At(x, 0, ChannelB))
	}
}

func TestGammaEncodeClipsOutOfRange(t *testing.T) {
	in := bufferFrom(t, 1, 1, mustLinear(t, 1023), -5, 2000, 1023)
	out, err := GammaEncode(in, DefaultGammaParams())
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 255, 255}, out.Pix)
}

func TestGammaEncodeRangeMismatch(t *testing.T) {
	// A normalized buffer fed to a 1023 encoder would come out near black.
	in := uniform(t, 2, 2, Normalized, 0.9)
	_, err := GammaEncode(in, DefaultGammaParams())
	assert.True(t, errors.Is(err, ErrRangeMismatch), "got %v", err)

	// Chaining directly from [0,1] works when max value is 1.
	out, err := GammaEncode(in, GammaParams{Gamma: 2.2, MaxValue: 1})
	require.NoError(t, err)
	assert.Equal(t, math.Trunc(math.Pow(0.9, 1/2.2)*255), out.Pix[0])
}

func TestGammaEncodeInvalidParams(t *testing.T) {
	in := uniform(t, 1, 1, mustLinear(t, 1023), 10)
	for _, p := range []GammaParams{
		{Gamma: 2.2, MaxValue: 0},
		{Gamma: 2.2, MaxValue: -1},
		{Gamma: 0, MaxValue: 1023},
		{Gamma: math.Inf(1), MaxValue: 1023},
	} {
		_, err := GammaEncode(in, p)
		assert.True(t, errors.Is(err, ErrInvalidConfiguration), "%+v", p)
	}

	in.Pix[1] = math.NaN()
	_, err := GammaEncode(in, DefaultGammaParams())
	assert.True(t, errors.Is(err, ErrDegenerateStatistics))
}

func mustLinear(t *testing.T, maxVal float64) Range {
	t.Helper()
	r, err := Linear(maxVal)
	require.NoError(t, err)
	return r
}
