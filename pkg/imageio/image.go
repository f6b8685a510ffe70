// Package imageio converts between pipeline buffers and encoded images, and
// writes intermediate buffers for inspection.
package imageio

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"

	"github.com/pkg/errors"

	"miniisp/pkg/isp"
)

// Extensions lists the decoded image formats Load understands.
var Extensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff"}

// FromImage converts a decoded image into a byte-range buffer.
func FromImage(img image.Image) (*isp.Buffer, error) {
	b := img.Bounds()
	buf, err := isp.NewBuffer(b.Dx(), b.Dy(), isp.Byte)
	if err != nil {
		return nil, err
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			buf.Set(x, y, isp.ChannelR, float64(c.R))
			buf.Set(x, y, isp.ChannelG, float64(c.G))
			buf.Set(x, y, isp.ChannelB, float64(c.B))
		}
	}
	return buf, nil
}

// ToImage renders a buffer as 8-bit RGBA. Byte buffers are copied as-is;
// other ranges are scaled by their maximum and rounded.
func ToImage(buf *isp.Buffer) (*image.RGBA, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, buf.Width, buf.Height))
	for i := 0; i < buf.Width*buf.Height; i++ {
		for c := 0; c < 3; c++ {
			img.Pix[i*4+c] = toByte(buf.Pix[i*3+c], buf.Range)
		}
		img.Pix[i*4+3] = 255
	}
	return img, nil
}

func toByte(v float64, r isp.Range) uint8 {
	if r.Kind != isp.KindByte {
		v = math.Round(v / r.Max * 255)
	}
	switch {
	case !(v > 0):
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}

// FromBGR wraps packed 8-bit BGR pixels, as OpenCV stores them, in a
// byte-range buffer.
func FromBGR(data []byte, width, height int) (*isp.Buffer, error) {
	if len(data) != width*height*3 {
		return nil, errors.Wrapf(isp.ErrShapeMismatch, "BGR %dx%d needs %d bytes, got %d", width, height, width*height*3, len(data))
	}
	buf, err := isp.NewBuffer(width, height, isp.Byte)
	if err != nil {
		return nil, err
	}
	for i := 0; i < width*height; i++ {
		buf.Pix[i*3+isp.ChannelB] = float64(data[i*3])
		buf.Pix[i*3+isp.ChannelG] = float64(data[i*3+1])
		buf.Pix[i*3+isp.ChannelR] = float64(data[i*3+2])
	}
	return buf, nil
}

// ToBGR packs a byte-range buffer as 8-bit BGR.
func ToBGR(buf *isp.Buffer) ([]byte, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	if buf.Range != isp.Byte {
		return nil, errors.Wrapf(isp.ErrRangeMismatch, "BGR output needs a byte buffer, got %v", buf.Range)
	}
	data := make([]byte, buf.Width*buf.Height*3)
	for i := 0; i < buf.Width*buf.Height; i++ {
		data[i*3] = toByte(buf.Pix[i*3+isp.ChannelB], isp.Byte)
		data[i*3+1] = toByte(buf.Pix[i*3+isp.ChannelG], isp.Byte)
		data[i*3+2] = toByte(buf.Pix[i*3+isp.ChannelR], isp.Byte)
	}
	return data, nil
}

// EncodePNG writes buf as an 8-bit PNG.
func EncodePNG(w io.Writer, buf *isp.Buffer) error {
	img, err := ToImage(buf)
	if err != nil {
		return err
	}
	return errors.Wrap(png.Encode(w, img), "encoding png")
}

// EncodeJPEG writes buf as a JPEG of the given quality.
func EncodeJPEG(w io.Writer, buf *isp.Buffer, quality int) error {
	img, err := ToImage(buf)
	if err != nil {
		return err
	}
	return errors.Wrap(jpeg.Encode(w, img, &jpeg.Options{Quality: quality}), "encoding jpeg")
}
