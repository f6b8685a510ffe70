package rawio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"miniisp/pkg/isp"
)

// ParseCCM reads a color matrix written one row per line with
// space-separated values. Blank lines are ignored.
func ParseCCM(r io.Reader) (*isp.ColorMatrix, error) {
	var rows [][]float64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, errors.Wrapf(isp.ErrDecodeFailure, "line %d: %v", line, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "reading ccm")
	}
	return isp.NewColorMatrix(rows)
}

// ReadCCM reads a CCM text file.
func ReadCCM(path string) (*isp.ColorMatrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening ccm file")
	}
	defer f.Close()
	m, err := ParseCCM(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return m, nil
}

// FormatCCM writes m with six decimal digits per value, including the
// offset column when the matrix has one.
func FormatCCM(w io.Writer, m *isp.ColorMatrix) error {
	for _, row := range m.Rows() {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprintf("%.6f", v)
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, " ")); err != nil {
			return errors.Wrap(err, "writing ccm")
		}
	}
	return nil
}

// WriteCCM writes m to path.
func WriteCCM(path string, m *isp.ColorMatrix) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating ccm file")
	}
	if err := FormatCCM(f, m); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "closing ccm file")
}
