//go:build !purego && !js

package imageio

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"miniisp/pkg/isp"
)

// JPEGQuality is used when Save writes a .jpg file.
const JPEGQuality = 95

// Load reads an 8-bit colour image through OpenCV.
func Load(path string) (*isp.Buffer, error) {
	src := gocv.IMRead(path, gocv.IMReadColor)
	if src.Empty() {
		return nil, errors.Wrapf(isp.ErrDecodeFailure, "could not load image: %s", path)
	}
	defer src.Close()

	data, err := src.DataPtrUint8()
	if err != nil {
		return nil, errors.Wrapf(isp.ErrDecodeFailure, "%s: %v", path, err)
	}
	return FromBGR(data, src.Cols(), src.Rows())
}

// Save writes a byte-range buffer, picking the format from the extension.
func Save(path string, buf *isp.Buffer) error {
	data, err := ToBGR(buf)
	if err != nil {
		return err
	}
	m, err := gocv.NewMatFromBytes(buf.Height, buf.Width, gocv.MatTypeCV8UC3, data)
	if err != nil {
		return errors.Wrap(err, "building image matrix")
	}
	defer m.Close()

	if !gocv.IMWriteWithParams(path, m, []int{int(gocv.IMWriteJpegQuality), JPEGQuality}) {
		return errors.Errorf("could not write image: %s", path)
	}
	return nil
}
