package isp

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ColorMatrix maps a camera-native RGB triple to a target RGB triple:
// out[i] = sum_j M[i][j] * in[j]. A fourth column, when present, is an affine
// offset that is kept for round-tripping but not applied.
type ColorMatrix struct {
	m      *mat.Dense
	offset []float64
}

// NewColorMatrix builds a matrix from 3 rows of 3 or 4 values.
func NewColorMatrix(rows [][]float64) (*ColorMatrix, error) {
	if len(rows) != 3 {
		return nil, errors.Wrapf(ErrShapeMismatch, "color matrix needs 3 rows, got %d", len(rows))
	}
	cols := len(rows[0])
	if cols != 3 && cols != 4 {
		return nil, errors.Wrapf(ErrShapeMismatch, "color matrix needs 3 or 4 columns, got %d", cols)
	}
	data := make([]float64, 0, 9)
	var offset []float64
	if cols == 4 {
		offset = make([]float64, 3)
	}
	for i, row := range rows {
		if len(row) != cols {
			return nil, errors.Wrapf(ErrShapeMismatch, "color matrix row %d has %d columns, want %d", i, len(row), cols)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.Wrapf(ErrInvalidConfiguration, "color matrix entry (%d,%d) is %v", i, j, v)
			}
		}
		data = append(data, row[:3]...)
		if cols == 4 {
			offset[i] = row[3]
		}
	}
	return &ColorMatrix{m: mat.NewDense(3, 3, data), offset: offset}, nil
}

// IdentityMatrix returns the 3x3 identity.
func IdentityMatrix() *ColorMatrix {
	m, _ := NewColorMatrix([][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}})
	return m
}

// At returns M[i][j] of the 3x3 part.
func (c *ColorMatrix) At(i, j int) float64 { return c.m.At(i, j) }

// Cols reports 3, or 4 when the matrix carried an offset column.
func (c *ColorMatrix) Cols() int {
	if c.offset != nil {
		return 4
	}
	return 3
}

// Rows returns the matrix as written, including any offset column.
func (c *ColorMatrix) Rows() [][]float64 {
	rows := make([][]float64, 3)
	for i := range rows {
		rows[i] = append([]float64(nil), c.m.RawRowView(i)...)
		if c.offset != nil {
			rows[i] = append(rows[i], c.offset[i])
		}
	}
	return rows
}

// ColorCorrect applies the matrix to every pixel of a Normalized buffer and
// clips the result to [0, 1]. Input values outside [0, 1] are accepted.
func ColorCorrect(in *Buffer, c *ColorMatrix) (*Buffer, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if c == nil || c.m == nil {
		return nil, errors.Wrap(ErrShapeMismatch, "nil color matrix")
	}
	if in.Range.Kind != KindNormalized {
		return nil, errors.Wrapf(ErrRangeMismatch, "color correction needs a normalized buffer, got %v", in.Range)
	}

	// Pixels as an N x 3 matrix of row vectors; the product with M^T applies
	// M to each of them.
	n := in.Width * in.Height
	src := mat.NewDense(n, 3, in.Pix)
	var dst mat.Dense
	dst.Mul(src, c.m.T())

	out := &Buffer{Width: in.Width, Height: in.Height, Range: Normalized, Pix: dst.RawMatrix().Data}
	if err := out.Clip(); err != nil {
		return nil, err
	}
	return out, nil
}
