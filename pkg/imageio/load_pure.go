//go:build purego || js

package imageio

import (
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"miniisp/pkg/isp"
)

// JPEGQuality is used when Save writes a .jpg file.
const JPEGQuality = 95

// Load decodes a JPEG, PNG, BMP or TIFF file.
func Load(path string) (*isp.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening image")
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(isp.ErrDecodeFailure, "decoding %s: %v", path, err)
	}
	return FromImage(img)
}

// Save writes a byte-range buffer, picking the format from the extension.
func Save(path string, buf *isp.Buffer) error {
	if buf != nil && buf.Range != isp.Byte {
		return errors.Wrapf(isp.ErrRangeMismatch, "image output needs a byte buffer, got %v", buf.Range)
	}
	img, err := ToImage(buf)
	if err != nil {
		return err
	}

	var encode func(io.Writer, image.Image) error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jpg", ".jpeg":
		encode = func(w io.Writer, m image.Image) error {
			return jpeg.Encode(w, m, &jpeg.Options{Quality: JPEGQuality})
		}
	case ".png":
		encode = png.Encode
	case ".bmp":
		encode = bmp.Encode
	case ".tif", ".tiff":
		encode = func(w io.Writer, m image.Image) error {
			return tiff.Encode(w, m, &tiff.Options{Compression: tiff.Deflate})
		}
	default:
		return errors.Errorf("writing %s: unsupported image extension %q", path, ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating image")
	}
	if err := encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return errors.Wrapf(err, "writing %s", path)
	}
	return errors.Wrap(f.Close(), "closing image")
}
