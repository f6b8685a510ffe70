package isp

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Channel indices into a Buffer pixel. Buffers are always stored R, G, B;
// BGR ordering only exists at the image I/O boundary.
const (
	ChannelR = 0
	ChannelG = 1
	ChannelB = 2
)

var channelNames = [3]string{"R", "G", "B"}

// RangeKind names the value convention of a Buffer.
type RangeKind uint8

const (
	KindNormalized RangeKind = iota + 1 // [0, 1]
	KindByte                            // [0, 255], integer valued
	KindLinear                          // [0, Max] sensor code values
)

func (k RangeKind) String() string {
	switch k {
	case KindNormalized:
		return "normalized"
	case KindByte:
		return "byte"
	case KindLinear:
		return "linear"
	default:
		return "unknown"
	}
}

// Range is the numeric convention carried by every Buffer. Stages check it on
// entry so a buffer in one convention is never read as another.
type Range struct {
	Kind RangeKind
	Max  float64
}

var (
	Normalized = Range{Kind: KindNormalized, Max: 1}
	Byte       = Range{Kind: KindByte, Max: 255}
)

// Linear returns the range of sensor code values [0, max].
func Linear(max float64) (Range, error) {
	if !(max > 0) || math.IsInf(max, 0) {
		return Range{}, errors.Wrapf(ErrInvalidConfiguration, "max value must be positive and finite, got %v", max)
	}
	return Range{Kind: KindLinear, Max: max}, nil
}

func (r Range) String() string {
	return fmt.Sprintf("%s[0,%g]", r.Kind, r.Max)
}

func (r Range) valid() bool {
	return r.Kind != 0 && r.Max > 0 && !math.IsInf(r.Max, 0)
}

// Buffer is a height x width x 3 image of float64 samples in one Range.
// Pixels are interleaved R, G, B in row-major order.
type Buffer struct {
	Width  int
	Height int
	Range  Range
	Pix    []float64
}

// NewBuffer allocates a zeroed buffer.
func NewBuffer(width, height int, r Range) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrShapeMismatch, "buffer size must be positive, got %dx%d", width, height)
	}
	if !r.valid() {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "invalid range %v", r)
	}
	return &Buffer{
		Width:  width,
		Height: height,
		Range:  r,
		Pix:    make([]float64, width*height*3),
	}, nil
}

// Validate checks the buffer's backing slice against its dimensions.
func (b *Buffer) Validate() error {
	if b == nil {
		return errors.Wrap(ErrShapeMismatch, "nil buffer")
	}
	if b.Width <= 0 || b.Height <= 0 || len(b.Pix) != b.Width*b.Height*3 {
		return errors.Wrapf(ErrShapeMismatch, "buffer %dx%d has %d samples", b.Width, b.Height, len(b.Pix))
	}
	if !b.Range.valid() {
		return errors.Wrapf(ErrInvalidConfiguration, "invalid range %v", b.Range)
	}
	return nil
}

// At returns channel c of pixel (x, y).
func (b *Buffer) At(x, y, c int) float64 {
	return b.Pix[(y*b.Width+x)*3+c]
}

// Set stores channel c of pixel (x, y).
func (b *Buffer) Set(x, y, c int, v float64) {
	b.Pix[(y*b.Width+x)*3+c] = v
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	pix := make([]float64, len(b.Pix))
	copy(pix, b.Pix)
	return &Buffer{Width: b.Width, Height: b.Height, Range: b.Range, Pix: pix}
}

// Channel copies one channel into a width*height plane.
func (b *Buffer) Channel(c int) []float64 {
	plane := make([]float64, b.Width*b.Height)
	for i := range plane {
		plane[i] = b.Pix[i*3+c]
	}
	return plane
}

// SetChannel writes a width*height plane into channel c.
func (b *Buffer) SetChannel(c int, plane []float64) {
	for i, v := range plane {
		b.Pix[i*3+c] = v
	}
}

// Clip clamps every sample to the buffer's range in place. A NaN or infinite
// sample is reported as ErrDegenerateStatistics instead of being clamped.
func (b *Buffer) Clip() error {
	hi := b.Range.Max
	for i, v := range b.Pix {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			y, x, c := i/3/b.Width, i/3%b.Width, i%3
			return errors.Wrapf(ErrDegenerateStatistics, "non-finite sample %v at (%d,%d) channel %s", v, x, y, channelNames[c])
		}
		switch {
		case v < 0:
			b.Pix[i] = 0
		case v > hi:
			b.Pix[i] = hi
		}
	}
	return nil
}

// Rescale returns a copy of the buffer mapped linearly onto another range.
func (b *Buffer) Rescale(to Range) (*Buffer, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if !to.valid() {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "invalid range %v", to)
	}
	out := b.Clone()
	out.Range = to
	if to.Max == b.Range.Max {
		return out, nil
	}
	k := to.Max / b.Range.Max
	floats.Scale(k, out.Pix)
	return out, nil
}

// ChannelStats summarises one channel of a buffer.
type ChannelStats struct {
	Min  float64
	Max  float64
	Mean float64
}

// BufferStats holds per-channel statistics plus the global extremes.
type BufferStats struct {
	Channels [3]ChannelStats
	Min      float64
	Max      float64
}

func (s BufferStats) String() string {
	return fmt.Sprintf("{Min=%f, Max=%f, R=%+v, G=%+v, B=%+v}",
		s.Min, s.Max, s.Channels[ChannelR], s.Channels[ChannelG], s.Channels[ChannelB])
}

// Stats computes min, max and mean for each channel.
func (b *Buffer) Stats() BufferStats {
	var s BufferStats
	s.Min = math.Inf(1)
	s.Max = math.Inf(-1)
	for c := 0; c < 3; c++ {
		plane := b.Channel(c)
		cs := ChannelStats{
			Min:  floats.Min(plane),
			Max:  floats.Max(plane),
			Mean: stat.Mean(plane, nil),
		}
		s.Channels[c] = cs
		s.Min = math.Min(s.Min, cs.Min)
		s.Max = math.Max(s.Max, cs.Max)
	}
	return s
}

// SensorGrid is one raw sample per photosite, as read from the sensor.
// It is not modified after construction.
type SensorGrid struct {
	Width    int
	Height   int
	BitDepth int
	Pix      []uint16
}

// NewSensorGrid validates dimensions and bit depth.
func NewSensorGrid(width, height, bitDepth int, pix []uint16) (*SensorGrid, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrShapeMismatch, "sensor size must be positive, got %dx%d", width, height)
	}
	if len(pix) != width*height {
		return nil, errors.Wrapf(ErrShapeMismatch, "sensor %dx%d needs %d samples, got %d", width, height, width*height, len(pix))
	}
	if bitDepth < 1 || bitDepth > 16 {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "bit depth must be in [1,16], got %d", bitDepth)
	}
	return &SensorGrid{Width: width, Height: height, BitDepth: bitDepth, Pix: pix}, nil
}

// MaxValue is the largest code value representable at the grid's bit depth.
func (g *SensorGrid) MaxValue() float64 {
	return float64(uint32(1)<<uint(g.BitDepth) - 1)
}

// At returns the raw sample at (x, y).
func (g *SensorGrid) At(x, y int) uint16 {
	return g.Pix[y*g.Width+x]
}

// Normalize maps the raw samples onto [0, 1] by the bit-depth maximum.
func (g *SensorGrid) Normalize() []float64 {
	maxVal := g.MaxValue()
	out := make([]float64, len(g.Pix))
	for i, p := range g.Pix {
		out[i] = float64(p) / maxVal
	}
	return out
}

// GainVector holds the per-channel multipliers applied by white balance.
type GainVector struct {
	Blue  float64
	Green float64
	Red   float64
}

func (g GainVector) String() string {
	return fmt.Sprintf("{Blue=%f, Green=%f, Red=%f}", g.Blue, g.Green, g.Red)
}

// byChannel returns the gains indexed by ChannelR, ChannelG, ChannelB.
func (g GainVector) byChannel() [3]float64 {
	return [3]float64{ChannelR: g.Red, ChannelG: g.Green, ChannelB: g.Blue}
}
