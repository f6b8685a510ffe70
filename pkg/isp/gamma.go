package isp

import (
	"math"

	"github.com/pkg/errors"
)

// GammaParams configures GammaEncode.
type GammaParams struct {
	Gamma float64
	// MaxValue is the sample value mapped to full scale. The input buffer's
	// range must end at exactly this value.
	MaxValue float64
}

// DefaultGammaParams returns gamma 2.2 over 10-bit code values.
func DefaultGammaParams() GammaParams {
	return GammaParams{Gamma: 2.2, MaxValue: 1023}
}

func (p GammaParams) validate() error {
	if !(p.MaxValue > 0) || math.IsInf(p.MaxValue, 0) {
		return errors.Wrapf(ErrInvalidConfiguration, "max value must be positive and finite, got %v", p.MaxValue)
	}
	if !(p.Gamma > 0) || math.IsInf(p.Gamma, 0) {
		return errors.Wrapf(ErrInvalidConfiguration, "gamma must be positive and finite, got %v", p.Gamma)
	}
	return nil
}

// GammaEncode maps linear samples in [0, MaxValue] to display-referred bytes:
// clip(v/MaxValue, 0, 1)^(1/Gamma) * 255, truncated to a whole value.
func GammaEncode(in *Buffer, p GammaParams) (*Buffer, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.Range.Max != p.MaxValue {
		return nil, errors.Wrapf(ErrRangeMismatch, "gamma expects samples in [0,%g], buffer is %v", p.MaxValue, in.Range)
	}

	out, err := NewBuffer(in.Width, in.Height, Byte)
	if err != nil {
		return nil, err
	}
	inv := 1 / p.Gamma
	for i, s := range in.Pix {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, errors.Wrapf(ErrDegenerateStatistics, "non-finite sample %v at index %d", s, i)
		}
		v := s / p.MaxValue
		switch {
		case v < 0:
			v = 0
		case v > 1:
			v = 1
		}
		out.Pix[i] = math.Trunc(math.Pow(v, inv) * 255)
	}
	return out, nil
}
