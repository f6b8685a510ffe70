package rawio

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"miniisp/pkg/isp"
)

const (
	fitsCardSize   = 80
	fitsCardsBlock = 36
)

// FitsHeader holds header keywords (upper case) and their unquoted values.
type FitsHeader map[string]string

// String returns the value of key, or "".
func (h FitsHeader) String(key string) string {
	return h[strings.ToUpper(key)]
}

// Int returns key parsed as an integer.
func (h FitsHeader) Int(key string) (int, bool) {
	v, ok := h[strings.ToUpper(key)]
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return i, true
}

// Float returns key parsed as a float.
func (h FitsHeader) Float(key string) (float64, bool) {
	v, ok := h[strings.ToUpper(key)]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Pattern returns the CFA described by BAYERPAT, adjusted for odd
// XBAYROFF/YBAYROFF offsets. ok is false when the image carries no BAYERPAT.
func (h FitsHeader) Pattern() (p isp.CFAPattern, ok bool, err error) {
	name := h.String("BAYERPAT")
	if name == "" {
		return 0, false, nil
	}
	p, err = isp.ParsePattern(name)
	if err != nil {
		return 0, true, err
	}
	dx, _ := h.Int("XBAYROFF")
	dy, _ := h.Int("YBAYROFF")
	p, err = p.Shift(dx, dy)
	return p, true, err
}

// FitsImage is a single-plane FITS image read as a sensor grid.
type FitsImage struct {
	Grid   *isp.SensorGrid
	Header FitsHeader
}

// ReadFits reads a FITS file from disk.
func ReadFits(path string) (*FitsImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening FITS file")
	}
	defer f.Close()
	img, err := readFits(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return img, nil
}

// ReadFitsFromBytes reads a FITS image held in memory.
func ReadFitsFromBytes(data []byte) (*FitsImage, error) {
	return readFits(bytes.NewReader(data))
}

func readFits(r io.Reader) (*FitsImage, error) {
	header, err := readFitsHeader(r)
	if err != nil {
		return nil, err
	}

	bitpix, _ := header.Int("BITPIX")
	naxis, _ := header.Int("NAXIS")
	width, _ := header.Int("NAXIS1")
	height, _ := header.Int("NAXIS2")
	if naxis < 2 || width <= 0 || height <= 0 {
		return nil, errors.Wrapf(isp.ErrDecodeFailure, "FITS NAXIS=%d NAXIS1=%d NAXIS2=%d is not an image", naxis, width, height)
	}
	if planes, ok := header.Int("NAXIS3"); naxis > 2 && ok && planes > 1 {
		return nil, errors.Wrapf(isp.ErrDecodeFailure, "FITS has %d planes, want a single CFA plane", planes)
	}
	bzero, ok := header.Float("BZERO")
	if !ok {
		bzero = 0
	}
	bscale, ok := header.Float("BSCALE")
	if !ok {
		bscale = 1
	}

	var sampleSize int
	var sample func([]byte) float64
	switch bitpix {
	case 8:
		sampleSize = 1
		sample = func(b []byte) float64 { return float64(b[0]) }
	case 16:
		sampleSize = 2
		sample = func(b []byte) float64 { return float64(int16(binary.BigEndian.Uint16(b))) }
	case 32:
		sampleSize = 4
		sample = func(b []byte) float64 { return float64(int32(binary.BigEndian.Uint32(b))) }
	case -32:
		sampleSize = 4
		sample = func(b []byte) float64 { return float64(math.Float32frombits(binary.BigEndian.Uint32(b))) }
	default:
		return nil, errors.Wrapf(isp.ErrDecodeFailure, "unsupported BITPIX %d", bitpix)
	}

	n := width * height
	raw := make([]byte, n*sampleSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, errors.Wrapf(isp.ErrDecodeFailure, "reading %d-bit pixel data: %v", bitpix, err)
	}
	pix := make([]uint16, n)
	for i := range pix {
		v := sample(raw[i*sampleSize:])*bscale + bzero
		switch {
		case math.IsNaN(v) || v < 0:
			v = 0
		case v > math.MaxUint16:
			v = math.MaxUint16
		}
		pix[i] = uint16(v)
	}

	bitDepth := 16
	if bitpix == 8 {
		bitDepth = 8
	}
	grid, err := isp.NewSensorGrid(width, height, bitDepth, pix)
	if err != nil {
		return nil, err
	}
	return &FitsImage{Grid: grid, Header: header}, nil
}

// readFitsHeader consumes header blocks up to and including the one holding END.
func readFitsHeader(r io.Reader) (FitsHeader, error) {
	header := FitsHeader{}
	block := make([]byte, fitsCardSize*fitsCardsBlock)
	for {
		if _, err := io.ReadFull(r, block); err != nil {
			return nil, errors.Wrapf(isp.ErrDecodeFailure, "reading FITS header: %v", err)
		}
		for i := 0; i < fitsCardsBlock; i++ {
			card := string(block[i*fitsCardSize : (i+1)*fitsCardSize])
			keyword := strings.TrimSpace(card[:8])
			if keyword == "END" {
				return header, nil
			}
			if keyword == "" || card[8] != '=' || card[9] != ' ' {
				continue
			}
			raw := strings.TrimSpace(splitComment(card[10:]))
			if v := fitsValue(raw); v != "" {
				header[strings.ToUpper(keyword)] = v
			}
		}
	}
}

// splitComment drops a trailing "/ comment", ignoring slashes inside quotes.
func splitComment(s string) string {
	quoted := false
	for i, c := range s {
		switch {
		case c == '\'':
			quoted = !quoted
		case c == '/' && !quoted:
			return s[:i]
		}
	}
	return s
}

func fitsValue(raw string) string {
	switch {
	case raw == "":
		return ""
	case raw == "T":
		return "True"
	case raw == "F":
		return "False"
	case strings.HasPrefix(raw, "'"):
		if end := strings.LastIndex(raw, "'"); end > 0 {
			return strings.TrimRight(raw[1:end], " ")
		}
		return strings.Trim(raw, "' ")
	}
	return raw
}
