package isp

import (
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// WhiteBalanceMethod selects how channel gains are estimated.
type WhiteBalanceMethod uint8

const (
	// PerfectReflector scales each channel so the mean of the brightest
	// pixels reaches the image peak.
	PerfectReflector WhiteBalanceMethod = iota + 1
	// GreyWorld scales each channel mean to the mean of all three.
	GreyWorld
	// AsShot applies camera-supplied multipliers.
	AsShot
)

func (m WhiteBalanceMethod) String() string {
	switch m {
	case PerfectReflector:
		return "perfect-reflector"
	case GreyWorld:
		return "grey-world"
	case AsShot:
		return "as-shot"
	default:
		return "unknown"
	}
}

// ParseWhiteBalanceMethod accepts the String form, with underscores or
// hyphens, plus the short aliases "pra" and "grey"/"gray".
func ParseWhiteBalanceMethod(s string) (WhiteBalanceMethod, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-") {
	case "perfect-reflector", "pra":
		return PerfectReflector, nil
	case "grey-world", "gray-world", "grey", "gray":
		return GreyWorld, nil
	case "as-shot":
		return AsShot, nil
	default:
		return 0, errors.Wrapf(ErrInvalidConfiguration, "unknown white balance method %q", s)
	}
}

// WhiteBalanceParams configures AutoWhiteBalance.
type WhiteBalanceParams struct {
	Method WhiteBalanceMethod
	// Ratio is the fraction of brightest pixels used by PerfectReflector, in (0, 1).
	Ratio float64
	// Multipliers are the camera gains used by AsShot. Non-positive entries mean 1.
	Multipliers GainVector
}

// DefaultWhiteBalanceParams returns PerfectReflector over the top 20%.
func DefaultWhiteBalanceParams() WhiteBalanceParams {
	return WhiteBalanceParams{Method: PerfectReflector, Ratio: 0.2}
}

// AutoWhiteBalance estimates per-channel gains, applies them and clips the
// result to the input's range. Byte input yields byte output truncated to
// whole values; other ranges keep full precision. The input is not modified.
func AutoWhiteBalance(in *Buffer, p WhiteBalanceParams) (*Buffer, GainVector, error) {
	if err := in.Validate(); err != nil {
		return nil, GainVector{}, err
	}
	if floats.HasNaN(in.Pix) {
		return nil, GainVector{}, errors.Wrap(ErrDegenerateStatistics, "input contains NaN")
	}

	var gains GainVector
	var err error
	switch p.Method {
	case PerfectReflector:
		gains, err = perfectReflectorGains(in, p.Ratio)
	case GreyWorld:
		gains, err = greyWorldGains(in)
	case AsShot:
		gains = asShotGains(p.Multipliers)
	default:
		err = errors.Wrapf(ErrInvalidConfiguration, "unsupported white balance method %v", p.Method)
	}
	if err != nil {
		return nil, GainVector{}, err
	}

	out, err := applyGains(in, gains)
	if err != nil {
		return nil, GainVector{}, err
	}
	return out, gains, nil
}

func perfectReflectorGains(in *Buffer, ratio float64) (GainVector, error) {
	if !(ratio > 0 && ratio < 1) {
		return GainVector{}, errors.Wrapf(ErrInvalidConfiguration, "ratio must be in (0,1), got %v", ratio)
	}
	n := in.Width * in.Height
	thresholdNum := int(math.Floor(ratio * float64(in.Height) * float64(in.Width)))
	if thresholdNum < 1 {
		return GainVector{}, errors.Wrapf(ErrInvalidConfiguration,
			"ratio %v selects no pixels of a %dx%d image", ratio, in.Width, in.Height)
	}

	sums := make([]float64, n)
	order := make([]int, n)
	for i := range sums {
		sums[i] = in.Pix[i*3] + in.Pix[i*3+1] + in.Pix[i*3+2]
		order[i] = i
	}
	// Only the membership of the top thresholdNum matters; order among
	// equal sums is unspecified.
	sort.Slice(order, func(a, b int) bool { return sums[order[a]] > sums[order[b]] })

	var means [3]float64
	for _, i := range order[:thresholdNum] {
		for c := 0; c < 3; c++ {
			means[c] += in.Pix[i*3+c]
		}
	}
	for c := range means {
		means[c] /= float64(thresholdNum)
	}

	peak := floats.Max(in.Pix)
	return gainsFromMeans(peak, means)
}

func greyWorldGains(in *Buffer) (GainVector, error) {
	var means [3]float64
	for c := range means {
		means[c] = stat.Mean(in.Channel(c), nil)
	}
	grey := (means[ChannelB] + means[ChannelG] + means[ChannelR]) / 3
	return gainsFromMeans(grey, means)
}

// gainsFromMeans returns target/mean per channel, rejecting zero means and
// non-finite results.
func gainsFromMeans(target float64, means [3]float64) (GainVector, error) {
	var g [3]float64
	for c, m := range means {
		if m == 0 {
			return GainVector{}, errors.Wrapf(ErrDegenerateStatistics, "channel %s mean is zero", channelNames[c])
		}
		g[c] = target / m
		if math.IsNaN(g[c]) || math.IsInf(g[c], 0) {
			return GainVector{}, errors.Wrapf(ErrDegenerateStatistics, "channel %s gain is %v", channelNames[c], g[c])
		}
	}
	return GainVector{Blue: g[ChannelB], Green: g[ChannelG], Red: g[ChannelR]}, nil
}

func asShotGains(m GainVector) GainVector {
	one := func(v float64) float64 {
		if !(v > 0) || math.IsInf(v, 0) {
			return 1
		}
		return v
	}
	return GainVector{Blue: one(m.Blue), Green: one(m.Green), Red: one(m.Red)}
}

func applyGains(in *Buffer, gains GainVector) (*Buffer, error) {
	out := in.Clone()
	g := gains.byChannel()
	for i := range out.Pix {
		out.Pix[i] *= g[i%3]
	}
	if err := out.Clip(); err != nil {
		return nil, err
	}
	if out.Range.Kind == KindByte {
		for i, v := range out.Pix {
			out.Pix[i] = math.Trunc(v)
		}
	}
	return out, nil
}
